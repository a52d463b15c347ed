/*
reconcile.go - Payable / paid / pending reconciliation

PURPOSE:
  The one place that computes what a studio owes a team member. The same
  figures back the member's pending card, the hint on the payment-entry
  form and the per-project finance table, so they can never drift apart.

FORMULAS:
  payable(project) = salary x policy.Units(member's assignments in project)
  paid(project)    = sum of member payments tagged with that project
  paid(aggregate)  = sum of ALL member payments, tagged or not
  pending          = max(payable - paid, 0)
  balance          = payable - paid (signed, for overpayment display;
                     zero while payable is unknown)

  payable(aggregate) is the sum of payable(project) over the member's
  projects, so the breakdown always adds up to the card.

FAILURE SEMANTICS:
  None. Missing payment type or salary gives payable 0. Undated events are
  skipped for month counting. Nothing here returns an error or panics on
  business data; fetching valid, tenant-scoped inputs is the caller's job.

EXAMPLE:
  per-event member, salary 5000, three events in P1, 10000 paid on P1:
    payable 15000, paid 10000, pending 5000

SEE ALSO:
  - policy.go: unit counting per payment type
  - snapshot.go: loading inputs and calling these functions
*/
package finance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE
// =============================================================================

// ComputeAggregate returns the member's position across every project.
func ComputeAggregate(member Member, allAssignments []EventAssignment, allPayments []PaymentRecord) Summary {
	payable := decimal.Zero
	for _, group := range groupByProject(member.ID, allAssignments) {
		payable = payable.Add(projectPayable(member, group.assignments))
	}

	paid := decimal.Zero
	for _, p := range allPayments {
		if p.MemberID != "" && p.MemberID == member.ID {
			paid = paid.Add(p.Amount)
		}
	}

	return Summary{
		MemberID: member.ID,
		Payable:  payable,
		Paid:     paid,
		Pending:  pending(payable, paid),
		Balance:  balance(member, payable, paid),
	}
}

// =============================================================================
// PER PROJECT
// =============================================================================

// ComputeProjectBreakdown returns the member's position within one project.
// Payments without a project never count here.
func ComputeProjectBreakdown(member Member, projectID ProjectID, assignments []EventAssignment, payments []PaymentRecord) ProjectPayableBreakdown {
	var mine []EventAssignment
	for _, a := range assignments {
		if a.ProjectID == projectID && a.IsAssigned(member.ID) {
			mine = append(mine, a)
		}
	}

	paid := decimal.Zero
	if projectID != "" {
		for _, p := range payments {
			if p.MemberID != "" && p.MemberID == member.ID && p.ProjectID == projectID {
				paid = paid.Add(p.Amount)
			}
		}
	}

	payable := projectPayable(member, mine)
	return ProjectPayableBreakdown{
		ProjectID:        projectID,
		EventCount:       countDistinctEvents(mine),
		UniqueMonthCount: len(distinctMonths(mine)),
		Payable:          payable,
		Paid:             paid,
		Pending:          pending(payable, paid),
		Balance:          balance(member, payable, paid),
	}
}

// RankProjectBreakdowns orders breakdowns by pending, highest first.
// Ties keep their input order. The input slice is not modified.
func RankProjectBreakdowns(breakdowns []ProjectPayableBreakdown) []ProjectPayableBreakdown {
	ranked := make([]ProjectPayableBreakdown, len(breakdowns))
	copy(ranked, breakdowns)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Pending.GreaterThan(ranked[j].Pending)
	})
	return ranked
}

// MemberBreakdowns computes a breakdown for every project the member is
// assigned to, followed by projects where the member only has payments,
// and returns them ranked.
func MemberBreakdowns(member Member, assignments []EventAssignment, payments []PaymentRecord) []ProjectPayableBreakdown {
	var projects []ProjectID
	seen := make(map[ProjectID]bool)
	for _, g := range groupByProject(member.ID, assignments) {
		seen[g.projectID] = true
		projects = append(projects, g.projectID)
	}
	for _, p := range payments {
		if p.MemberID != member.ID || p.MemberID == "" || p.ProjectID == "" || seen[p.ProjectID] {
			continue
		}
		seen[p.ProjectID] = true
		projects = append(projects, p.ProjectID)
	}

	breakdowns := make([]ProjectPayableBreakdown, 0, len(projects))
	for _, id := range projects {
		breakdowns = append(breakdowns, ComputeProjectBreakdown(member, id, assignments, payments))
	}
	return RankProjectBreakdowns(breakdowns)
}

// =============================================================================
// HELPERS
// =============================================================================

type projectGroup struct {
	projectID   ProjectID
	assignments []EventAssignment
}

// groupByProject keeps the member's assignments, grouped in first-seen order.
func groupByProject(memberID MemberID, assignments []EventAssignment) []projectGroup {
	index := make(map[ProjectID]int)
	var groups []projectGroup
	for _, a := range assignments {
		if !a.IsAssigned(memberID) {
			continue
		}
		i, ok := index[a.ProjectID]
		if !ok {
			i = len(groups)
			index[a.ProjectID] = i
			groups = append(groups, projectGroup{projectID: a.ProjectID})
		}
		groups[i].assignments = append(groups[i].assignments, a)
	}
	return groups
}

func projectPayable(member Member, assignments []EventAssignment) decimal.Decimal {
	if !member.Salary.Valid {
		return decimal.Zero
	}
	policy := LookupPolicy(member.PaymentType)
	if policy == nil {
		return decimal.Zero
	}
	units := policy.Units(assignments)
	return member.Salary.Decimal.Mul(decimal.NewFromInt(int64(units)))
}

// balance is zero when payable is unknown: a member without a pay policy
// is never reported as overpaid.
func balance(member Member, payable, paid decimal.Decimal) decimal.Decimal {
	if !member.HasPayPolicy() {
		return decimal.Zero
	}
	return payable.Sub(paid)
}

func pending(payable, paid decimal.Decimal) decimal.Decimal {
	if d := payable.Sub(paid); d.IsPositive() {
		return d
	}
	return decimal.Zero
}
