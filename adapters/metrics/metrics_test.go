package metrics_test

import (
	"math/big"
	"testing"

	"github.com/artpar/trustmeter/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// counterValue gathers reg and returns the counter named name whose labels
// include all of labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	regA, regB := prometheus.NewRegistry(), prometheus.NewRegistry()
	a := metrics.NewWithRegistry(regA)
	metrics.NewWithRegistry(regB)

	a.AuthFailed("bad_signature")

	if got := counterValue(t, regA, "trustmeter_auth_failures_total", map[string]string{"reason": "bad_signature"}); got != 1 {
		t.Errorf("first registry = %v, want 1", got)
	}
	if got := counterValue(t, regB, "trustmeter_auth_failures_total", map[string]string{"reason": "bad_signature"}); got != 0 {
		t.Errorf("second registry = %v, want 0", got)
	}
}

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.AuthFailed("bad_signature")
	m.AuthFailed("bad_signature")
	m.UsageRecorded("api-1", big.NewInt(100))
	m.UsageRecorded("api-1", big.NewInt(200))
	m.BatchClosed("api-1", big.NewInt(300))
	m.SettlementConfirmed("direct")
	m.SettlementRejected("mismatch")
	m.StoreConflict("record_usage")
	m.ChainRegistrationFailed()

	api := map[string]string{"api_id": "api-1"}
	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"trustmeter_auth_failures_total", map[string]string{"reason": "bad_signature"}, 2},
		{"trustmeter_usage_requests_total", api, 2},
		{"trustmeter_usage_charged_wei_total", api, 300},
		{"trustmeter_batches_closed_total", api, 1},
		{"trustmeter_batch_amount_wei_total", api, 300},
		{"trustmeter_settlements_total", map[string]string{"outcome": "confirmed", "detail": "direct"}, 1},
		{"trustmeter_settlements_total", map[string]string{"outcome": "rejected", "detail": "mismatch"}, 1},
		{"trustmeter_store_conflicts_total", map[string]string{"op": "record_usage"}, 1},
		{"trustmeter_chain_registration_failures_total", map[string]string{}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestUsageRecorded_ZeroPrice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	m.UsageRecorded("free", big.NewInt(0))
	m.UsageRecorded("free", nil)

	labels := map[string]string{"api_id": "free"}
	if got := counterValue(t, reg, "trustmeter_usage_requests_total", labels); got != 2 {
		t.Errorf("usage requests = %v, want 2", got)
	}
	if got := counterValue(t, reg, "trustmeter_usage_charged_wei_total", labels); got != 0 {
		t.Errorf("usage wei = %v, want 0", got)
	}
}
