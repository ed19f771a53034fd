package chain

// The engine drives one account-model leg per swap, so only Ethereum
// mainnet and Sepolia are registered here.
func init() {
	Register("ETH", Mainnet, &Params{
		Symbol:              "ETH",
		Name:                "Ethereum",
		Kind:                Ethereum,
		Decimals:            18,
		ChainID:             1,
		HTLCContractAddress: "0x0000000000000000000000000000000000000000",
		DefaultAddressType:  AddressEVM,
	})

	Register("ETH", Testnet, &Params{
		Symbol:              "ETH",
		Name:                "Ethereum Sepolia",
		Kind:                Ethereum,
		Decimals:            18,
		ChainID:             11155111,
		HTLCContractAddress: "0x628c677e7b8889e64564d3f381565a9e6656aade",
		DefaultAddressType:  AddressEVM,
	})
}
