package amount

import (
	"math/big"
	"testing"

	"github.com/atomex-go/swapengine/internal/chain"
)

func rat(s string) *big.Rat {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		panic("bad rational literal: " + s)
	}
	return r
}

func TestAmountToQtyFloors(t *testing.T) {
	cases := []struct {
		name  string
		side  Side
		amt   string
		price string
		mult  uint64
		want  string
	}{
		{"buy exact", Buy, "10", "2", 1000000, "5"},
		{"buy rounds down", Buy, "10", "3", 1000000, "3333333/1000000"},
		{"sell passthrough", Sell, "7.5", "100", 1000000, "15/2"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := AmountToQty(c.side, rat(c.amt), rat(c.price), c.mult)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := rat(c.want)
			if got.Cmp(want) != 0 {
				t.Errorf("got %s, want %s", got.RatString(), want.RatString())
			}
		})
	}
}

func TestAmountToQtyZeroPrice(t *testing.T) {
	if _, err := AmountToQty(Buy, rat("1"), rat("0"), 1000000); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestQtyToAmountIsMultiplicativeAnalogue(t *testing.T) {
	qty := rat("5")
	price := rat("2")
	got := QtyToAmount(Buy, qty, price, 1000000)
	want := rat("10")
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got.RatString(), want.RatString())
	}
}

func TestSideOpposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Error("Buy.Opposite() should be Sell")
	}
	if Sell.Opposite() != Buy {
		t.Error("Sell.Opposite() should be Buy")
	}
}

func TestTezosFee(t *testing.T) {
	params, ok := chain.Get("XTZ", chain.Mainnet)
	if !ok {
		t.Fatal("XTZ mainnet params not registered")
	}
	fee, err := TezosFee(params, GasCost{GasLimit: 1000, StorageLimit: 300, Size: 150})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := params.MinimalFee + (1000+params.GasReserve)*params.NanotezPerGasUnit + 150*params.NanotezPerByte + 1
	if fee.FeeMutez != want {
		t.Errorf("got %d, want %d", fee.FeeMutez, want)
	}
}

func TestTezosFeeRejectsNonTezos(t *testing.T) {
	params, _ := chain.Get("ETH", chain.Mainnet)
	if _, err := TezosFee(params, GasCost{}); err == nil {
		t.Fatal("expected error for non-Tezos currency")
	}
}

func TestRefundFeeUsesStorageLimitNotSize(t *testing.T) {
	params, _ := chain.Get("XTZ", chain.Mainnet)
	fee, err := RefundFee(params, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := params.MinimalFee + (500+params.GasReserve)*params.NanotezPerGasUnit + params.RefundStorageLimit*params.NanotezPerByte + 1
	if fee.FeeMutez != want {
		t.Errorf("got %d, want %d", fee.FeeMutez, want)
	}
}

func TestGasLimitByOperationFirstVsSubsequent(t *testing.T) {
	schedule := GasSchedule{
		OpInitiate: {GasLimit: 1000},
		OpAdd:      {GasLimit: 300},
		OpRedeem:   {GasLimit: 400},
	}
	first, err := GasLimitByOperation(OpInitiate, true, schedule)
	if err != nil || first != 1000 {
		t.Errorf("first payment: got %d err %v, want 1000", first, err)
	}
	subsequent, err := GasLimitByOperation(OpInitiate, false, schedule)
	if err != nil || subsequent != 300 {
		t.Errorf("subsequent payment: got %d err %v, want 300 (add_gas_limit)", subsequent, err)
	}
	redeem, err := GasLimitByOperation(OpRedeem, false, schedule)
	if err != nil || redeem != 400 {
		t.Errorf("redeem: got %d err %v, want 400", redeem, err)
	}
}

func TestActivationFeeOnlyFirstUseAndInactive(t *testing.T) {
	params, _ := chain.Get("XTZ", chain.Mainnet)
	if fee := ActivationFee(params, true, false); fee == 0 {
		t.Error("expected nonzero activation fee for first use of inactive address")
	}
	if fee := ActivationFee(params, true, true); fee != 0 {
		t.Error("expected zero activation fee for already-active address")
	}
	if fee := ActivationFee(params, false, false); fee != 0 {
		t.Error("expected zero activation fee for non-first use")
	}
}
