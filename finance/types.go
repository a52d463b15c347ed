/*
Package finance provides the team-member payout reconciliation engine.

PURPOSE:
  A studio owes its photographers, editors and assistants for the events they
  are assigned to. This package answers "how much do we owe this member, how
  much have we already paid, and what is still pending?" both in aggregate
  and broken down per project.

KEY CONCEPTS IN THIS FILE (types.go):
  - Member: a team member with a payment type and a per-unit salary
  - EventAssignment: one client event and the members assigned to it
  - PaymentRecord: a recorded expense, optionally tied to a member/project
  - ProjectPayableBreakdown / Summary: computed figures, never persisted

DESIGN PRINCIPLES:
  1. Pure: the engine reads its inputs and allocates local state only
  2. Precision: money is decimal.Decimal, never float64
  3. Degrade, don't fail: bad business data yields zero figures, not errors

USAGE:
  member := finance.Member{
      ID:          "mem-1",
      PaymentType: finance.PerEvent,
      Salary:      finance.NewSalary(5000),
  }
  summary := finance.ComputeAggregate(member, assignments, payments)

SEE ALSO:
  - reconcile.go: the engine itself
  - policy.go: per-event and per-month unit counting
  - snapshot.go: loading a consistent input snapshot from a Source
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudioID string
type MemberID string
type ProjectID string
type EventID string
type PaymentID string

// =============================================================================
// MONEY
// =============================================================================

// NewMoney converts a whole-currency amount to a decimal.
func NewMoney(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// MustParseMoney parses a decimal string, returning zero on malformed input.
func MustParseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NewSalary returns a present salary rate.
func NewSalary(v int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(v), Valid: true}
}

// =============================================================================
// PAYMENT TYPE
// =============================================================================

// PaymentType selects how a member's salary rate is multiplied.
type PaymentType string

const (
	PerMonth PaymentType = "per-month"
	PerEvent PaymentType = "per-event"
)

// Valid reports whether t is one of the known payment types.
func (t PaymentType) Valid() bool { return t == PerMonth || t == PerEvent }

// =============================================================================
// INPUT ENTITIES
// =============================================================================

// Member is a studio team member as seen by the engine.
// Salary is the per-unit rate: per event or per calendar month.
type Member struct {
	ID          MemberID
	StudioID    StudioID
	Name        string
	Email       string
	Role        string
	PaymentType PaymentType // empty = unset
	Salary      decimal.NullDecimal
	CreatedAt   time.Time
}

// HasPayPolicy reports whether payable can be computed at all.
func (m Member) HasPayPolicy() bool {
	return m.Salary.Valid && LookupPolicy(m.PaymentType) != nil
}

// EventAssignment is a client event with its assigned members.
//
// EventDate is kept as the raw stored string: collaborators hand the engine
// whatever the event document holds, and a missing or unparseable date is
// business data, not an error.
type EventAssignment struct {
	EventID           EventID
	ProjectID         ProjectID
	EventDate         string
	AssignedMemberIDs []MemberID
}

// IsAssigned reports whether the member is in the event's assignee set.
func (a EventAssignment) IsAssigned(id MemberID) bool {
	for _, m := range a.AssignedMemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// PaymentRecord is a recorded expense.
// Empty MemberID = general studio expense, empty ProjectID = not tied to a project.
type PaymentRecord struct {
	ID             PaymentID
	StudioID       StudioID
	MemberID       MemberID
	ProjectID      ProjectID
	Amount         decimal.Decimal
	Date           time.Time
	Method         string
	Note           string
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// COMPUTED RESULTS
// =============================================================================

// Summary is a member's aggregate payout position across all projects.
//
// Balance is the signed payable - paid. A negative balance means the member
// has been paid more than the assignments justify; Pending never goes below
// zero.
type Summary struct {
	MemberID MemberID
	Payable  decimal.Decimal
	Paid     decimal.Decimal
	Pending  decimal.Decimal
	Balance  decimal.Decimal
}

// Overpaid reports whether more was paid than is payable.
func (s Summary) Overpaid() bool { return s.Balance.IsNegative() }

// ProjectPayableBreakdown is a member's payout position within one project.
// UniqueMonthCount is only meaningful for per-month members.
type ProjectPayableBreakdown struct {
	ProjectID        ProjectID
	EventCount       int
	UniqueMonthCount int
	Payable          decimal.Decimal
	Paid             decimal.Decimal
	Pending          decimal.Decimal
	Balance          decimal.Decimal
}

// NothingPending reports whether the project is settled (or overpaid).
func (b ProjectPayableBreakdown) NothingPending() bool { return b.Pending.IsZero() }
