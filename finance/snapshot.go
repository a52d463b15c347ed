/*
snapshot.go - Fresh data fetch and the Reconciler entry points

PURPOSE:
  Loads the member, their assignments and their payments from a Source on
  every call, then hands them to the pure engine. Nothing is cached
  between calls, so a payment recorded a moment ago is always counted.

SEE ALSO:
  - reconcile.go: The pure computations
  - store.go: Source and PaymentStore interfaces
*/
package finance

import "context"

// =============================================================================
// SNAPSHOT - One consistent set of engine inputs
// =============================================================================

// Snapshot is everything the engine needs for one member, fetched within
// one logical request.
type Snapshot struct {
	Member      Member
	Assignments []EventAssignment
	Payments    []PaymentRecord
}

// LoadSnapshot fetches member, assignments and payments. Any failed step
// aborts the load so the engine is never run on partial data.
func LoadSnapshot(ctx context.Context, src Source, studioID StudioID, memberID MemberID) (Snapshot, error) {
	member, err := src.GetMember(ctx, studioID, memberID)
	if err != nil {
		return Snapshot{}, &FetchError{Step: "member", MemberID: memberID, Err: err}
	}
	if member == nil {
		return Snapshot{}, &FetchError{Step: "member", MemberID: memberID, Err: ErrMemberNotFound}
	}

	assignments, err := src.ListMemberAssignments(ctx, studioID, memberID)
	if err != nil {
		return Snapshot{}, &FetchError{Step: "assignments", MemberID: memberID, Err: err}
	}

	payments, err := src.ListMemberPayments(ctx, studioID, memberID)
	if err != nil {
		return Snapshot{}, &FetchError{Step: "payments", MemberID: memberID, Err: err}
	}

	return Snapshot{Member: *member, Assignments: assignments, Payments: payments}, nil
}

func (s Snapshot) Aggregate() Summary {
	return ComputeAggregate(s.Member, s.Assignments, s.Payments)
}

func (s Snapshot) Project(projectID ProjectID) ProjectPayableBreakdown {
	return ComputeProjectBreakdown(s.Member, projectID, s.Assignments, s.Payments)
}

func (s Snapshot) Breakdowns() []ProjectPayableBreakdown {
	return MemberBreakdowns(s.Member, s.Assignments, s.Payments)
}

// =============================================================================
// RECONCILER - Loader + engine for the three call sites
// =============================================================================

// Reconciler serves the pending card, the payment-entry hint and the
// finance-detail table from a Source.
type Reconciler struct {
	Source Source
}

func NewReconciler(src Source) *Reconciler {
	return &Reconciler{Source: src}
}

// Aggregate backs a member's "pending payable" card.
func (r *Reconciler) Aggregate(ctx context.Context, studioID StudioID, memberID MemberID) (Summary, error) {
	snap, err := LoadSnapshot(ctx, r.Source, studioID, memberID)
	if err != nil {
		return Summary{}, err
	}
	return snap.Aggregate(), nil
}

// ProjectHint backs the pending hint on the payment-entry form.
func (r *Reconciler) ProjectHint(ctx context.Context, studioID StudioID, memberID MemberID, projectID ProjectID) (ProjectPayableBreakdown, error) {
	snap, err := LoadSnapshot(ctx, r.Source, studioID, memberID)
	if err != nil {
		return ProjectPayableBreakdown{}, err
	}
	return snap.Project(projectID), nil
}

// Breakdowns backs the finance-detail table, highest pending first.
func (r *Reconciler) Breakdowns(ctx context.Context, studioID StudioID, memberID MemberID) (Member, []ProjectPayableBreakdown, error) {
	snap, err := LoadSnapshot(ctx, r.Source, studioID, memberID)
	if err != nil {
		return Member{}, nil, err
	}
	return snap.Member, snap.Breakdowns(), nil
}
