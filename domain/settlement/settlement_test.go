package settlement_test

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/domain/usage"
)

const (
	payer    = "0x1111111111111111111111111111111111111111"
	owner    = "0x2222222222222222222222222222222222222222"
	contract = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
	batchID  = "aa00000000000000000000000000000000000000000000000000000000000001"
)

func closedBatch(t *testing.T) settlement.Batch {
	t.Helper()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := usage.Open("p1", "u1", "a1", at)
	for i := 0; i < 3; i++ {
		p, _ = usage.Record(p, big.NewInt(100), at)
	}
	p, err := usage.Close(p, batchID, at)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	return settlement.NewBatch(p, payer, owner, big.NewInt(7))
}

func TestNewInstruction(t *testing.T) {
	b := closedBatch(t)

	direct := settlement.NewInstruction(b, settlement.ModeDirect, contract)
	if direct.PayTo != owner || direct.Value.Int64() != 300 || direct.Call != nil {
		t.Errorf("direct instruction = %+v", direct)
	}

	viaContract := settlement.NewInstruction(b, settlement.ModeContract, contract)
	if viaContract.PayTo != contract {
		t.Errorf("PayTo = %s, want contract", viaContract.PayTo)
	}
	if viaContract.Call == nil || viaContract.Call.RequestCount.Int64() != 3 || viaContract.Call.APIID.Int64() != 7 {
		t.Errorf("Call = %+v", viaContract.Call)
	}
}

func TestVerify(t *testing.T) {
	b := closedBatch(t)
	goodCall := &settlement.SettleCall{BatchID: batchID, User: payer, APIID: big.NewInt(7), RequestCount: big.NewInt(3)}

	direct := settlement.Expectation{Mode: settlement.ModeDirect, MinConfirmations: 2}
	viaContract := settlement.Expectation{Mode: settlement.ModeContract, Contract: contract, MinConfirmations: 1}

	base := settlement.Transaction{
		From:          strings.ToUpper(payer[:2]) + payer[2:],
		To:            owner,
		Value:         big.NewInt(300),
		Succeeded:     true,
		Confirmations: 5,
	}

	tests := []struct {
		name    string
		mutate  func(tx *settlement.Transaction)
		exp     settlement.Expectation
		wantErr error
	}{
		{"valid direct", func(tx *settlement.Transaction) {}, direct, nil},
		{"wrong sender", func(tx *settlement.Transaction) { tx.From = owner }, direct, settlement.ErrMismatch},
		{"wrong value", func(tx *settlement.Transaction) { tx.Value = big.NewInt(299) }, direct, settlement.ErrMismatch},
		{"overpayment", func(tx *settlement.Transaction) { tx.Value = big.NewInt(301) }, direct, settlement.ErrMismatch},
		{"wrong recipient", func(tx *settlement.Transaction) { tx.To = payer }, direct, settlement.ErrMismatch},
		{"reverted", func(tx *settlement.Transaction) { tx.Succeeded = false }, direct, settlement.ErrMismatch},
		{"not enough confirmations", func(tx *settlement.Transaction) { tx.Confirmations = 1 }, direct, settlement.ErrInsufficientConfirmations},
		{"unmined", func(tx *settlement.Transaction) { tx.Confirmations = 0 }, settlement.Expectation{Mode: settlement.ModeDirect}, settlement.ErrInsufficientConfirmations},
		{"valid contract", func(tx *settlement.Transaction) { tx.To = contract; tx.Call = goodCall }, viaContract, nil},
		{"contract without call", func(tx *settlement.Transaction) { tx.To = contract }, viaContract, settlement.ErrMismatch},
		{"contract wrong address", func(tx *settlement.Transaction) { tx.Call = goodCall }, viaContract, settlement.ErrMismatch},
		{"contract wrong batch", func(tx *settlement.Transaction) {
			tx.To = contract
			c := *goodCall
			c.BatchID = strings.Repeat("0", 64)
			tx.Call = &c
		}, viaContract, settlement.ErrMismatch},
		{"contract wrong count", func(tx *settlement.Transaction) {
			tx.To = contract
			c := *goodCall
			c.RequestCount = big.NewInt(4)
			tx.Call = &c
		}, viaContract, settlement.ErrMismatch},
		{"contract wrong api", func(tx *settlement.Transaction) {
			tx.To = contract
			c := *goodCall
			c.APIID = big.NewInt(8)
			tx.Call = &c
		}, viaContract, settlement.ErrMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tt.mutate(&tx)
			err := settlement.Verify(b, tx, tt.exp)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Verify = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeTxHash(t *testing.T) {
	h := "0x" + strings.Repeat("AB", 32)
	got, err := settlement.NormalizeTxHash(h)
	if err != nil {
		t.Fatalf("NormalizeTxHash: %v", err)
	}
	if got != "0x"+strings.Repeat("ab", 32) {
		t.Errorf("NormalizeTxHash = %s", got)
	}

	for _, bad := range []string{"", "0x1234", "0x" + strings.Repeat("zz", 32)} {
		if _, err := settlement.NormalizeTxHash(bad); err == nil {
			t.Errorf("NormalizeTxHash(%q) should fail", bad)
		}
	}
}

func TestBatchIDBytes(t *testing.T) {
	b, err := settlement.BatchIDBytes(batchID)
	if err != nil {
		t.Fatalf("BatchIDBytes: %v", err)
	}
	if b[0] != 0xaa || b[31] != 0x01 {
		t.Errorf("BatchIDBytes = %x", b)
	}
	if _, err := settlement.BatchIDBytes("abcd"); err == nil {
		t.Error("short batch id should fail")
	}
}
