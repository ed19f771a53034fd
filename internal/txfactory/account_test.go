package txfactory

import (
	"context"
	"math/big"
	"testing"

	"github.com/atomex-go/swapengine/internal/amount"
	"github.com/atomex-go/swapengine/internal/chain"
	"github.com/atomex-go/swapengine/internal/nonce"
)

func TestAssembleEVMCallUsesManagerNonceAndGasSchedule(t *testing.T) {
	nonces := nonce.New(func(ctx context.Context, address string) (uint64, error) { return 7, nil })
	schedule := amount.GasSchedule{
		amount.OpInitiate: {GasLimit: 1000},
		amount.OpAdd:      {GasLimit: 300},
	}

	call, err := AssembleEVMCall(context.Background(), nonces, "0xfrom", "0xto", big.NewInt(500), big.NewInt(2e9), amount.OpInitiate, true, schedule, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Nonce != 7 {
		t.Errorf("got nonce %d, want 7", call.Nonce)
	}
	if call.GasLimit != 1000 {
		t.Errorf("got gas limit %d, want 1000 for first payment", call.GasLimit)
	}
}

func TestAssembleTezosCallComputesFee(t *testing.T) {
	params, ok := chain.Get("XTZ", chain.Mainnet)
	if !ok {
		t.Fatal("XTZ mainnet params not registered")
	}
	nonces := nonce.New(func(ctx context.Context, address string) (uint64, error) { return 3, nil })
	schedule := amount.GasSchedule{amount.OpInitiate: {GasLimit: 1000}}

	call, err := AssembleTezosCall(context.Background(), nonces, params, "tz1from", "KT1to", 100000, amount.OpInitiate, true, schedule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Nonce != 3 {
		t.Errorf("got counter %d, want 3", call.Nonce)
	}
	if call.Fee.FeeMutez == 0 {
		t.Error("expected a nonzero computed fee")
	}
}
