package swapfsm

import "errors"

// Tagged error kinds. Every package in the engine wraps one of these
// with fmt.Errorf("...: %w", ...) rather than returning a bare or
// stringly-typed error, so callers can branch with errors.Is.
var (
	ErrInsufficientFunds            = errors.New("swapfsm: insufficient funds")
	ErrInsufficientGas              = errors.New("swapfsm: insufficient gas")
	ErrTransactionCreationError     = errors.New("swapfsm: transaction creation error")
	ErrTransactionSigningError      = errors.New("swapfsm: transaction signing error")
	ErrTransactionVerificationError = errors.New("swapfsm: transaction verification error")
	ErrTransactionBroadcastError    = errors.New("swapfsm: transaction broadcast error")
	ErrRequestError                 = errors.New("swapfsm: transient request error")
	ErrMaxAttemptsCountReached      = errors.New("swapfsm: max attempts count reached")
	ErrInvalidSigns                 = errors.New("swapfsm: invalid signature")
	ErrInvalidPaymentTxId           = errors.New("swapfsm: invalid payment tx id")
	ErrInvalidSpentPoint            = errors.New("swapfsm: invalid spent point")
	ErrWrongSwapMessageOrder        = errors.New("swapfsm: wrong swap message order")
	ErrSwapError                    = errors.New("swapfsm: swap error")
	ErrInternalError                = errors.New("swapfsm: internal error")

	// ErrQuarantined marks a swap the engine has stopped acting on
	// after a protocol violation (InvalidSigns / InvalidSpentPoint /
	// WrongSwapMessageOrder). No further actions run for it.
	ErrQuarantined = errors.New("swapfsm: swap quarantined after protocol violation")
)

// isProtocolViolation reports whether err is one of the three error
// kinds that quarantine a swap rather than permit a retry at the next
// scheduling tick.
func isProtocolViolation(err error) bool {
	return errors.Is(err, ErrInvalidSigns) ||
		errors.Is(err, ErrInvalidSpentPoint) ||
		errors.Is(err, ErrWrongSwapMessageOrder)
}
