package selector

import (
	"errors"
	"testing"

	"github.com/atomex-go/swapengine/internal/swapfsm"
)

func TestSelectAccountAddressesSingleAddressCoversAmount(t *testing.T) {
	candidates := []Candidate{{Address: "addr1", AvailableBalance: 1000}}
	estimate := func(txCount int, isFirst bool) (uint64, error) { return 10, nil }

	got, err := SelectAccountAddresses(candidates, 500, MaxBalanceFirst, EstimatedFee, estimate, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Amount != 500 || got[0].Fee != 10 {
		t.Errorf("got %+v", got)
	}
}

func TestSelectAccountAddressesSpansMultipleAddresses(t *testing.T) {
	candidates := []Candidate{
		{Address: "a", AvailableBalance: 300},
		{Address: "b", AvailableBalance: 300},
	}
	estimate := func(txCount int, isFirst bool) (uint64, error) { return 10, nil }

	got, err := SelectAccountAddresses(candidates, 500, MaxBalanceFirst, EstimatedFee, estimate, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total uint64
	for _, s := range got {
		total += s.Amount
	}
	if total != 500 {
		t.Errorf("expected total 500, got %d across %+v", total, got)
	}
}

func TestSelectAccountAddressesOnlyOneRejectsMultiAddressNeed(t *testing.T) {
	candidates := []Candidate{
		{Address: "a", AvailableBalance: 300},
		{Address: "b", AvailableBalance: 300},
	}
	estimate := func(txCount int, isFirst bool) (uint64, error) { return 10, nil }

	_, err := SelectAccountAddresses(candidates, 500, OnlyOne, EstimatedFee, estimate, 0, 0)
	if err == nil {
		t.Fatal("expected insufficient funds error when OnlyOne can't cover the amount alone")
	}
}

func TestSelectAccountAddressesFeeForAllTransactionsDividesEvenly(t *testing.T) {
	candidates := []Candidate{
		{Address: "a", AvailableBalance: 1000},
		{Address: "b", AvailableBalance: 1000},
	}
	got, err := SelectAccountAddresses(candidates, 1800, MaxBalanceFirst, FeeForAllTransactions, nil, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected a 2-address selection, got %+v", got)
	}
	if got[0].Fee != 50 || got[1].Fee != 50 {
		t.Errorf("expected 100 split evenly across 2 txs, got fees %d and %d", got[0].Fee, got[1].Fee)
	}
}

func TestSelectAccountAddressesInsufficientFunds(t *testing.T) {
	candidates := []Candidate{{Address: "a", AvailableBalance: 100}}
	estimate := func(txCount int, isFirst bool) (uint64, error) { return 10, nil }
	_, err := SelectAccountAddresses(candidates, 1000, MaxBalanceFirst, EstimatedFee, estimate, 0, 0)
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
}

func TestSelectAccountAddressesFeeBelowGasLimitYieldsInsufficientGas(t *testing.T) {
	candidates := []Candidate{
		{Address: "a", AvailableBalance: 1000},
		{Address: "b", AvailableBalance: 1000},
	}

	// 100 split across 2 transactions is 50 per tx, below the 60 gas
	// limit, so no selection can produce a minable transaction.
	_, err := SelectAccountAddresses(candidates, 1800, MaxBalanceFirst, FeeForAllTransactions, nil, 100, 60)
	if err == nil {
		t.Fatal("expected insufficient gas error")
	}
	var gasErr *ErrInsufficientGas
	if !errors.As(err, &gasErr) {
		t.Fatalf("err = %v, want *ErrInsufficientGas", err)
	}
	if gasErr.FeePerTx != 50 || gasErr.GasLimit != 60 {
		t.Errorf("got fee %d / limit %d, want 50 / 60", gasErr.FeePerTx, gasErr.GasLimit)
	}
	if !errors.Is(err, swapfsm.ErrInsufficientGas) {
		t.Error("expected error to wrap swapfsm.ErrInsufficientGas")
	}
}

func TestSelectAccountAddressesInsufficientFundsWrapsTaxonomy(t *testing.T) {
	candidates := []Candidate{{Address: "a", AvailableBalance: 100}}
	estimate := func(txCount int, isFirst bool) (uint64, error) { return 10, nil }

	_, err := SelectAccountAddresses(candidates, 1000, MaxBalanceFirst, EstimatedFee, estimate, 0, 0)
	if !errors.Is(err, swapfsm.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want wrap of swapfsm.ErrInsufficientFunds", err)
	}
}
