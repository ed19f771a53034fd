// Swap record CRUD: persisting swap state to SQLite for recovery after
// daemon restart and the timeout sweep for refunds.

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Swap persistence errors
var (
	ErrSwapNotFound     = errors.New("swap not found")
	ErrInvalidSwapState = errors.New("invalid swap state")
)

// SwapState is the coarse, queryable mirror of a swapfsm.Swap's
// StateFlags (see fsmStateToRecordState in swapfsm_adapter.go).
type SwapState string

const (
	SwapStateInit     SwapState = "init"
	SwapStateFunding  SwapState = "funding"
	SwapStateRedeemed SwapState = "redeemed"
	SwapStateRefunded SwapState = "refunded"
	SwapStateFailed   SwapState = "failed"
)

// SwapRecord represents a persisted swap in the database: enough to
// recover it after restart (MethodData, the full swapfsm.Swap JSON
// blob) and to query it without decoding that blob (everything else).
type SwapRecord struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	SoldCurrency      string `json:"sold_currency"`
	PurchasedCurrency string `json:"purchased_currency"`

	State SwapState `json:"state"`

	// MethodData is the JSON-encoded swapfsm.Swap: the critical data
	// for recovery.
	MethodData json.RawMessage `json:"method_data"`

	PaymentTxID      string `json:"payment_txid,omitempty"`
	PartyPaymentTxID string `json:"party_payment_txid,omitempty"`
	RedeemTxID       string `json:"redeem_txid,omitempty"`
	RefundTxID       string `json:"refund_txid,omitempty"`

	// DeadlineAt is this leg's own lock_time (swap.LocalDeadline).
	DeadlineAt time.Time `json:"deadline_at"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// SaveSwap saves or updates a swap record.
// Uses UPSERT pattern - creates if not exists, updates if exists.
func (s *Storage) SaveSwap(swap *SwapRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = now
	}
	swap.UpdatedAt = now

	query := `
		INSERT INTO active_swaps (
			id, role, sold_currency, purchased_currency, state, method_data,
			payment_txid, party_payment_txid, redeem_txid, refund_txid,
			deadline_at, created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			method_data = excluded.method_data,
			payment_txid = excluded.payment_txid,
			party_payment_txid = excluded.party_payment_txid,
			redeem_txid = excluded.redeem_txid,
			refund_txid = excluded.refund_txid,
			deadline_at = excluded.deadline_at,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.Exec(query,
		swap.ID,
		swap.Role,
		swap.SoldCurrency,
		swap.PurchasedCurrency,
		string(swap.State),
		string(swap.MethodData),
		swap.PaymentTxID,
		swap.PartyPaymentTxID,
		swap.RedeemTxID,
		swap.RefundTxID,
		timeToUnixOrZero(swap.DeadlineAt),
		swap.CreatedAt.Unix(),
		swap.UpdatedAt.Unix(),
		timeToUnixOrZero(swap.CompletedAt),
	)
	return err
}

// GetSwap retrieves a swap by ID.
func (s *Storage) GetSwap(id string) (*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(selectSwapQuery+" WHERE id = ?", id)
	return scanSwapRecord(row)
}

// GetPendingSwaps returns every swap not in a terminal state, oldest
// first. The daemon calls this once at startup to re-register
// in-flight swaps with a fresh swapfsm.Engine after a restart.
func (s *Storage) GetPendingSwaps() ([]*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		selectSwapQuery + ` WHERE state NOT IN ('redeemed', 'refunded', 'failed') ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSwapRecords(rows)
}

// GetSwapsPastDeadline returns non-terminal swaps whose own lock_time
// has already passed as of now. The daemon polls this to drive its
// refund-timeout sweep: refund is pre-signed at payment time and
// retried until accepted, so a past-deadline swap always has a next
// step.
func (s *Storage) GetSwapsPastDeadline(now time.Time) ([]*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		selectSwapQuery+` WHERE state NOT IN ('redeemed', 'refunded', 'failed')
			AND deadline_at > 0 AND deadline_at <= ?
			ORDER BY deadline_at ASC`,
		now.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSwapRecords(rows)
}

const selectSwapQuery = `
	SELECT id, role, sold_currency, purchased_currency, state, method_data,
		payment_txid, party_payment_txid, redeem_txid, refund_txid,
		deadline_at, created_at, updated_at, completed_at
	FROM active_swaps
`

func timeToUnixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSwapRecord(row *sql.Row) (*SwapRecord, error) {
	swap, err := scanSwapRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrSwapNotFound
	}
	return swap, err
}

func scanSwapRecords(rows *sql.Rows) ([]*SwapRecord, error) {
	var swaps []*SwapRecord
	for rows.Next() {
		swap, err := scanSwapRow(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

func scanSwapRow(row rowScanner) (*SwapRecord, error) {
	var swap SwapRecord
	var methodData, paymentTxID, partyPaymentTxID, redeemTxID, refundTxID sql.NullString
	var deadlineAt, createdAt, updatedAt, completedAt int64

	err := row.Scan(
		&swap.ID,
		&swap.Role,
		&swap.SoldCurrency,
		&swap.PurchasedCurrency,
		&swap.State,
		&methodData,
		&paymentTxID,
		&partyPaymentTxID,
		&redeemTxID,
		&refundTxID,
		&deadlineAt,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if methodData.Valid {
		swap.MethodData = json.RawMessage(methodData.String)
	}
	swap.PaymentTxID = paymentTxID.String
	swap.PartyPaymentTxID = partyPaymentTxID.String
	swap.RedeemTxID = redeemTxID.String
	swap.RefundTxID = refundTxID.String

	if deadlineAt > 0 {
		swap.DeadlineAt = time.Unix(deadlineAt, 0)
	}
	swap.CreatedAt = time.Unix(createdAt, 0)
	swap.UpdatedAt = time.Unix(updatedAt, 0)
	if completedAt > 0 {
		swap.CompletedAt = time.Unix(completedAt, 0)
	}

	return &swap, nil
}
