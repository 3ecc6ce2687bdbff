package app

import (
	"math/big"

	"github.com/artpar/trustmeter/ports"
)

// nopObserver discards events when no metrics collector is configured.
type nopObserver struct{}

func (nopObserver) AuthFailed(string)              {}
func (nopObserver) UsageRecorded(string, *big.Int) {}
func (nopObserver) BatchClosed(string, *big.Int)   {}
func (nopObserver) SettlementConfirmed(string)     {}
func (nopObserver) SettlementRejected(string)      {}
func (nopObserver) StoreConflict(string)           {}
func (nopObserver) ChainRegistrationFailed()       {}

func observerOrNop(o ports.Observer) ports.Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
