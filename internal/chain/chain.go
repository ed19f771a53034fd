// Package chain defines the currencies a swap leg can be denominated in
// and the static parameters needed to build scripts, contract calls, and
// addresses for each. All chain-specific values are registered here; no
// external configuration is consulted for them.
package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network represents mainnet or testnet.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// CurrencyKind is the tagged variant replacing a deep currency class
// hierarchy. Every currency a swap leg can use is one of these four
// kinds; behavior that used to live in per-class overrides now lives in
// switch statements keyed on Kind, scoped to the package that needs it
// (fee arithmetic, script building, selection).
type CurrencyKind string

const (
	// BitcoinLike is a UTXO chain using script-based HTLCs (Bitcoin,
	// Litecoin, Dogecoin).
	BitcoinLike CurrencyKind = "bitcoin_like"
	// Ethereum is an account-model chain using a deployed HTLC contract
	// and gas-limit*gas-price fees.
	Ethereum CurrencyKind = "ethereum"
	// Tezos is an account-model chain using a deployed HTLC contract
	// and the minimal_fee + gas + size fee formula.
	Tezos CurrencyKind = "tezos"
	// Fa12 is an FA1.2 token living on Tezos; it shares Tezos's fee
	// shape but adds a token contract address and an extra gas
	// reserve for the token-contract call.
	Fa12 CurrencyKind = "fa12"
)

// AddressType represents the address encoding format a wallet returns.
type AddressType string

const (
	AddressP2PKH       AddressType = "p2pkh"
	AddressP2SH        AddressType = "p2sh"
	AddressP2WPKH      AddressType = "p2wpkh"
	AddressP2WSH       AddressType = "p2wsh"
	AddressP2SH_P2WPKH AddressType = "p2sh-p2wpkh"
	AddressTezos       AddressType = "tz"
	AddressEVM         AddressType = "evm"
)

// Params carries every static parameter a swap leg needs for its
// currency: script/address construction for BitcoinLike, and gas/fee
// constants plus a contract address for the two account-model kinds.
type Params struct {
	Symbol   string
	Name     string
	Kind     CurrencyKind
	Decimals uint8

	// Bitcoin-family network params.
	PubKeyHashAddrID        byte
	ScriptHashAddrID        byte
	WitnessScriptHashAddrID byte
	Bech32HRP               string

	// Account-model params.
	ChainID              uint64 // EVM chain ID; unused for Tezos/Fa12
	HTLCContractAddress  string // deployed HTLC contract/originated address
	TokenContractAddress string // Fa12 token contract; empty for native currencies

	// Tezos-style fee constants (see internal/amount).
	MinimalFee         uint64 // mutez
	NanotezPerGasUnit  uint64
	NanotezPerByte     uint64
	GasReserve         uint64
	RefundStorageLimit uint64 // storage units refund burns, for RefundFee estimation

	DefaultAddressType AddressType
}

// registry holds all chain parameters indexed by symbol and network.
var registry = make(map[string]map[Network]*Params)

// Register adds chain params to the registry. Called from package init
// functions in the per-chain files (bitcoin.go, ethereum.go, ...).
func Register(symbol string, network Network, params *Params) {
	if registry[symbol] == nil {
		registry[symbol] = make(map[Network]*Params)
	}
	registry[symbol][network] = params
}

// Get returns chain params for a symbol and network.
func Get(symbol string, network Network) (*Params, bool) {
	nets, ok := registry[symbol]
	if !ok {
		return nil, false
	}
	params, ok := nets[network]
	return params, ok
}

// List returns all registered chain symbols.
func List() []string {
	symbols := make([]string, 0, len(registry))
	for symbol := range registry {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// ListByKind returns all chains of a specific currency kind.
func ListByKind(kind CurrencyKind) []string {
	var symbols []string
	for symbol, nets := range registry {
		for _, params := range nets {
			if params.Kind == kind {
				symbols = append(symbols, symbol)
				break
			}
		}
	}
	return symbols
}

// IsSupported returns true if the chain is registered.
func IsSupported(symbol string) bool {
	_, ok := registry[symbol]
	return ok
}

// IsAccountModel reports whether a currency kind uses nonce-ordered
// account transactions rather than UTXOs.
func (k CurrencyKind) IsAccountModel() bool {
	return k == Ethereum || k == Tezos || k == Fa12
}

// ChaincfgParams adapts a registered BitcoinLike currency's address
// constants into the *chaincfg.Params shape btcutil/txscript expect.
// It errors for account-model currencies, which have no such notion.
func ChaincfgParams(p *Params) (*chaincfg.Params, error) {
	if p.Kind != BitcoinLike {
		return nil, fmt.Errorf("chain: %s is not a BitcoinLike currency", p.Symbol)
	}
	return &chaincfg.Params{
		PubKeyHashAddrID: p.PubKeyHashAddrID,
		ScriptHashAddrID: p.ScriptHashAddrID,
		Bech32HRPSegwit:  p.Bech32HRP,
	}, nil
}
