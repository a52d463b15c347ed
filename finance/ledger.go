/*
ledger.go - Append-only payment ledger

PURPOSE:
  Recording a payment is the one write the reconciliation depends on. The
  Ledger validates what the engine deliberately does not (amount > 0, a
  studio, a unique idempotency key) and then appends.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. IDEMPOTENT: same idempotency key = same payment, second write rejected
  3. POSITIVE: amounts are strictly positive

EXAMPLE FLOW:
  1. Payment form shows pending 5000 for member M on project P1
  2. Studio pays 5000: Record({M, P1, 5000, key "pay-123"})
  3. Browser retries the POST: Record(... key "pay-123") -> ErrDuplicateIdempotencyKey
  4. Pending for M on P1 is now 0
*/
package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Ledger struct {
	Store PaymentStore
	Now   func() time.Time
}

func NewLedger(store PaymentStore) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Record validates and appends a payment, filling ID, Date and CreatedAt
// when absent. It returns the stored record.
func (l *Ledger) Record(ctx context.Context, p PaymentRecord) (PaymentRecord, error) {
	if p.StudioID == "" {
		return PaymentRecord{}, ErrStudioRequired
	}
	if !p.Amount.IsPositive() {
		return PaymentRecord{}, ErrInvalidAmount
	}

	if p.IdempotencyKey != "" {
		exists, err := l.Store.PaymentExists(ctx, p.StudioID, p.IdempotencyKey)
		if err != nil {
			return PaymentRecord{}, err
		}
		if exists {
			return PaymentRecord{}, ErrDuplicateIdempotencyKey
		}
	}

	now := l.Now().UTC()
	if p.ID == "" {
		p.ID = PaymentID(uuid.NewString())
	}
	if p.Date.IsZero() {
		p.Date = now
	}
	p.CreatedAt = now

	if err := l.Store.AppendPayment(ctx, p); err != nil {
		return PaymentRecord{}, err
	}
	return p, nil
}
