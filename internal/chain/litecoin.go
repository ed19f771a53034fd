package chain

func init() {
	Register("LTC", Mainnet, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin",
		Kind:     BitcoinLike,
		Decimals: 8,

		PubKeyHashAddrID:        0x30,
		ScriptHashAddrID:        0x32,
		WitnessScriptHashAddrID: 0x00,
		Bech32HRP:               "ltc",

		DefaultAddressType: AddressP2WSH,
	})

	Register("LTC", Testnet, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin Testnet",
		Kind:     BitcoinLike,
		Decimals: 8,

		PubKeyHashAddrID:        0x6F,
		ScriptHashAddrID:        0x3A,
		WitnessScriptHashAddrID: 0x00,
		Bech32HRP:               "tltc",

		DefaultAddressType: AddressP2WSH,
	})
}
