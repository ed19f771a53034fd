package chain

func init() {
	Register("BTC", Mainnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin",
		Kind:     BitcoinLike,
		Decimals: 8,

		PubKeyHashAddrID:        0x00,
		ScriptHashAddrID:        0x05,
		WitnessScriptHashAddrID: 0x00,
		Bech32HRP:               "bc",

		DefaultAddressType: AddressP2WSH,
	})

	Register("BTC", Testnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin Testnet",
		Kind:     BitcoinLike,
		Decimals: 8,

		PubKeyHashAddrID:        0x6F,
		ScriptHashAddrID:        0xC4,
		WitnessScriptHashAddrID: 0x00,
		Bech32HRP:               "tb",

		DefaultAddressType: AddressP2WSH,
	})
}
