/*
store.go - Persistence interfaces consumed by the finance package

PURPOSE:
  The engine works on already-fetched data. These interfaces describe the
  data-fetch and payment-persistence collaborators so the loader and the
  ledger can run against SQLite in production and memory in tests.

KEY INTERFACES:
  Source:       read side, everything scoped to one studio
  PaymentStore: append-only payment persistence

APPEND-ONLY CONTRACT:
  PaymentStore has no Update or Delete. A wrong payment is corrected by the
  studio recording a new one, never by editing history.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production
  - finance/store/memory.go: in-memory for tests/dev
*/
package finance

import "context"

// Source supplies reconciliation inputs for one studio.
type Source interface {
	// GetMember returns ErrMemberNotFound if the member is not in the studio.
	GetMember(ctx context.Context, studioID StudioID, memberID MemberID) (*Member, error)

	// ListMemberAssignments returns every event in the studio the member is
	// assigned to, across all projects.
	ListMemberAssignments(ctx context.Context, studioID StudioID, memberID MemberID) ([]EventAssignment, error)

	// ListMemberPayments returns every payment recorded against the member,
	// with or without a project.
	ListMemberPayments(ctx context.Context, studioID StudioID, memberID MemberID) ([]PaymentRecord, error)
}

// PaymentStore persists payments. Append-only.
type PaymentStore interface {
	AppendPayment(ctx context.Context, p PaymentRecord) error
	PaymentExists(ctx context.Context, studioID StudioID, idempotencyKey string) (bool, error)
}

// PaymentFilter narrows ListPayments. Empty fields match everything.
type PaymentFilter struct {
	MemberID  MemberID
	ProjectID ProjectID
}

// Matches reports whether p passes the filter.
func (f PaymentFilter) Matches(p PaymentRecord) bool {
	if f.MemberID != "" && p.MemberID != f.MemberID {
		return false
	}
	if f.ProjectID != "" && p.ProjectID != f.ProjectID {
		return false
	}
	return true
}
