package fsm

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Status constants used by the invoice state machine. Values are persisted
// verbatim, so they must never be renamed.
const (
	StatusAwaitingPayment = "AwaitingPayment"
	StatusPending         = "Pending"
	StatusPaid            = "Paid"
	StatusCancelled       = "Cancelled"
	StatusExpired         = "Expired"
)

var transitions = map[string]map[string]struct{}{
	StatusAwaitingPayment: {
		StatusPending:   {},
		StatusPaid:      {},
		StatusCancelled: {},
		StatusExpired:   {},
	},
	StatusPending: {
		StatusAwaitingPayment: {},
		StatusPaid:            {},
		StatusCancelled:       {},
		StatusExpired:         {},
	},
	StatusPaid:      {},
	StatusCancelled: {},
	StatusExpired:   {},
}

// IsTerminal reports whether status admits no further transitions.
func IsTerminal(status string) bool {
	allowed, ok := transitions[status]
	return ok && len(allowed) == 0
}

// CanTransition returns whether the invoice can move from the current status
// to the target status. Re-applying the current status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// MapGatewayStatus translates the gateway's lower-case free-text status into
// the local closed enum. ok is false for unrecognized values; the caller must
// then leave the invoice untouched rather than guess a state.
func MapGatewayStatus(gatewayStatus string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "pending":
		return StatusPending, true
	case "settled", "paid":
		return StatusPaid, true
	case "unpaid", "failed":
		return StatusAwaitingPayment, true
	case "expired":
		return StatusExpired, true
	default:
		return "", false
	}
}

// Apply updates an invoice status with a conditional write: the row is only
// touched while it has not reached Paid, which makes duplicate webhook
// deliveries for an already-paid invoice lost on purpose. paidAt is written
// only when the target status is Paid. Returns sql.ErrNoRows when the guard
// rejected the update.
func Apply(ctx context.Context, db *sql.DB, invoiceID int, toStatus string, paidAt sql.NullTime) error {
	res, err := db.ExecContext(ctx,
		`UPDATE invoices
		 SET status = ?, payment_date = COALESCE(?, payment_date), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status <> ?`,
		toStatus, paidAt, invoiceID, StatusPaid)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ErrInvalidTransition is returned by callers that validate with CanTransition
// before touching storage.
var ErrInvalidTransition = errors.New("invalid status transition")
