/*
policy.go - Payment policies and their registry

PURPOSE:
  A payment policy turns a member's assignments within one project into a
  number of billable units. Payable is then salary x units.

POLICIES:
  per-event: one unit per distinct event
  per-month: one unit per distinct calendar month touched by a dated event

WHY A REGISTRY:
  Members are stored with a payment type string. The registry maps that
  string back to a policy. An unknown or empty type has no policy, which
  the engine treats as "payable unknown" (zero).

SEE ALSO:
  - reconcile.go: applies the policy per project
  - month.go: YearMonth and event date parsing
*/
package finance

import (
	"sort"
	"sync"
)

// PaymentPolicy counts billable units for a set of assignments that already
// belong to one member and one project.
type PaymentPolicy interface {
	Type() PaymentType
	Units(assignments []EventAssignment) int
}

// =============================================================================
// BUILT-IN POLICIES
// =============================================================================

type perEventPolicy struct{}

func (perEventPolicy) Type() PaymentType { return PerEvent }

func (perEventPolicy) Units(assignments []EventAssignment) int {
	return countDistinctEvents(assignments)
}

type perMonthPolicy struct{}

func (perMonthPolicy) Type() PaymentType { return PerMonth }

func (perMonthPolicy) Units(assignments []EventAssignment) int {
	return len(distinctMonths(assignments))
}

// countDistinctEvents counts events by ID. Assignments without an event ID
// cannot be deduplicated and count once each.
func countDistinctEvents(assignments []EventAssignment) int {
	seen := make(map[EventID]struct{}, len(assignments))
	n := 0
	for _, a := range assignments {
		if a.EventID == "" {
			n++
			continue
		}
		if _, ok := seen[a.EventID]; ok {
			continue
		}
		seen[a.EventID] = struct{}{}
		n++
	}
	return n
}

// distinctMonths skips assignments whose date is missing or unparseable.
func distinctMonths(assignments []EventAssignment) map[YearMonth]struct{} {
	months := make(map[YearMonth]struct{})
	for _, a := range assignments {
		if ym, ok := EventMonth(a.EventDate); ok {
			months[ym] = struct{}{}
		}
	}
	return months
}

// =============================================================================
// REGISTRY
// =============================================================================

var (
	policyRegistry = make(map[PaymentType]PaymentPolicy)
	registryMu     sync.RWMutex
)

func init() {
	registerPolicy(perEventPolicy{})
	registerPolicy(perMonthPolicy{})
}

func registerPolicy(p PaymentPolicy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	policyRegistry[p.Type()] = p
}

// LookupPolicy returns the policy for t, or nil if none is registered.
func LookupPolicy(t PaymentType) PaymentPolicy {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return policyRegistry[t]
}

// ListPolicyTypes returns the registered payment types, sorted.
func ListPolicyTypes() []PaymentType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]PaymentType, 0, len(policyRegistry))
	for t := range policyRegistry {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
