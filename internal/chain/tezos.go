package chain

// Tezos constants are expressed in mutez/nanotez the way the protocol
// itself does; they are overridable per network since testnets tend to
// run with lower minimums.
func init() {
	Register("XTZ", Mainnet, &Params{
		Symbol:              "XTZ",
		Name:                "Tezos",
		Kind:                Tezos,
		Decimals:            6,
		HTLCContractAddress: "KT1000000000000000000000000000000000",
		MinimalFee:          100,
		NanotezPerGasUnit:   100,
		NanotezPerByte:      1000,
		GasReserve:          100,
		RefundStorageLimit:  60,
		DefaultAddressType:  AddressTezos,
	})

	Register("XTZ", Testnet, &Params{
		Symbol:              "XTZ",
		Name:                "Tezos Ghostnet",
		Kind:                Tezos,
		Decimals:            6,
		HTLCContractAddress: "KT1000000000000000000000000000000000",
		MinimalFee:          100,
		NanotezPerGasUnit:   100,
		NanotezPerByte:      1000,
		GasReserve:          100,
		RefundStorageLimit:  60,
		DefaultAddressType:  AddressTezos,
	})

	// FA12 is an FA1.2 token living on Tezos: same fee shape, plus a
	// token contract distinct from the HTLC contract and a larger gas
	// reserve to cover the token-contract call the HTLC wraps.
	Register("TZBTC", Mainnet, &Params{
		Symbol:               "TZBTC",
		Name:                 "tzBTC",
		Kind:                 Fa12,
		Decimals:             8,
		HTLCContractAddress:  "KT1000000000000000000000000000000000",
		TokenContractAddress: "KT1PWx2mnDueood7fEmfbBDKx1D9BAnnXitn",
		MinimalFee:           100,
		NanotezPerGasUnit:    100,
		NanotezPerByte:       1000,
		GasReserve:           300,
		RefundStorageLimit:   60,
		DefaultAddressType:   AddressTezos,
	})

	Register("TZBTC", Testnet, &Params{
		Symbol:               "TZBTC",
		Name:                 "tzBTC Ghostnet",
		Kind:                 Fa12,
		Decimals:             8,
		HTLCContractAddress:  "KT1000000000000000000000000000000000",
		TokenContractAddress: "KT1000000000000000000000000000000001",
		MinimalFee:           100,
		NanotezPerGasUnit:    100,
		NanotezPerByte:       1000,
		GasReserve:           300,
		RefundStorageLimit:   60,
		DefaultAddressType:   AddressTezos,
	})
}
