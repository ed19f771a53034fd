// Package config holds the swap engine's tunable parameters: network
// selection, HTLC lock-time spreads, and watcher polling/retry bounds.
// Chain-level constants (script params, gas schedules, contract
// addresses) live in internal/chain; this package only carries the
// knobs an operator may change.
package config

import "time"

// NetworkType represents mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// DefaultSecretSize is the protocol-fixed preimage length in bytes.
// A secret candidate extracted from a spend witness must be exactly
// this long before its SHA-256 is even compared against the swap's
// secret hash.
const DefaultSecretSize = 32

// SwapConfig holds the HTLC timing parameters every swap's deadlines
// derive from.
type SwapConfig struct {
	// InitiatorLockTime is the offset from the swap timestamp to the
	// initiator's payment lock_time. It must exceed ResponderLockTime,
	// otherwise the acceptor could be left unable to refund before the
	// initiator's payment becomes refundable.
	InitiatorLockTime time.Duration `yaml:"initiator_lock_time"`

	// ResponderLockTime is the offset from the swap timestamp to the
	// acceptor's payment lock_time.
	ResponderLockTime time.Duration `yaml:"responder_lock_time"`

	// MinLockTimeDelta is the smallest acceptable gap between the two
	// lock-times. Validate rejects configs whose spread is tighter:
	// the gap is the acceptor's only window to refund safely.
	MinLockTimeDelta time.Duration `yaml:"min_lock_time_delta"`
}

// DefaultSwapConfig returns the default swap timing.
func DefaultSwapConfig() SwapConfig {
	return SwapConfig{
		InitiatorLockTime: 48 * time.Hour,
		ResponderLockTime: 24 * time.Hour,
		MinLockTimeDelta:  12 * time.Hour,
	}
}

// WatcherConfig holds the polling intervals and retry bounds the chain
// watchers (internal/watcher) are parameterized by. Every watcher is
// bounded: it either succeeds, hits its deadline, is canceled, or
// exhausts MaxAttempts and fails with MaxAttemptsCountReached.
type WatcherConfig struct {
	// GetTransactionInterval is the delay between confirmation-watcher
	// polls of get_transaction.
	GetTransactionInterval time.Duration `yaml:"get_transaction_interval"`

	// DefaultGetTransactionAttempts bounds the confirmation watcher's
	// retries on transient errors before it gives up.
	DefaultGetTransactionAttempts int `yaml:"get_transaction_attempts"`

	// OutputSpentCheckInterval is the delay between UTXO-spend-watcher
	// polls of get_input.
	OutputSpentCheckInterval time.Duration `yaml:"output_spent_check_interval"`

	// CounterpartyPollInterval is the delay between polls of
	// get_transactions for the counter-party refund/payment watchers.
	CounterpartyPollInterval time.Duration `yaml:"counterparty_poll_interval"`

	// MaxCounterpartyAttempts bounds counter-party watcher retries.
	MaxCounterpartyAttempts int `yaml:"max_counterparty_attempts"`

	// ForceRefundInterval is how often an unconfirmed, pre-signed
	// refund transaction is re-broadcast until it is accepted.
	ForceRefundInterval time.Duration `yaml:"force_refund_interval"`

	// RedeemReserve is subtracted from the acceptor's lock_time to
	// produce the initiator's redeem deadline: past that point the
	// initiator abandons redeem rather than race a confirmation it
	// cannot be sure will land in time.
	RedeemReserve time.Duration `yaml:"redeem_reserve"`
}

// DefaultWatcherConfig returns the engine's default watcher timing.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		GetTransactionInterval:        15 * time.Second,
		DefaultGetTransactionAttempts: 20,
		OutputSpentCheckInterval:      30 * time.Second,
		CounterpartyPollInterval:      20 * time.Second,
		MaxCounterpartyAttempts:       30,
		ForceRefundInterval:           5 * time.Minute,
		RedeemReserve:                 20 * time.Minute,
	}
}
