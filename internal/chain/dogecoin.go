package chain

// Dogecoin predates the SegWit soft fork adopted by BTC/LTC, so it has no
// Bech32HRP or WitnessScriptHashAddrID; the HTLC script builder falls
// back to bare P2SH for chains with an empty Bech32HRP.
func init() {
	Register("DOGE", Mainnet, &Params{
		Symbol:   "DOGE",
		Name:     "Dogecoin",
		Kind:     BitcoinLike,
		Decimals: 8,

		PubKeyHashAddrID: 0x1E,
		ScriptHashAddrID: 0x16,
		Bech32HRP:        "",

		DefaultAddressType: AddressP2SH,
	})

	Register("DOGE", Testnet, &Params{
		Symbol:   "DOGE",
		Name:     "Dogecoin Testnet",
		Kind:     BitcoinLike,
		Decimals: 8,

		PubKeyHashAddrID: 0x71,
		ScriptHashAddrID: 0xC4,
		Bech32HRP:        "",

		DefaultAddressType: AddressP2SH,
	})
}
