// Package store provides in-memory finance store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/studio-finance/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	members     map[memberKey]finance.Member
	events      map[finance.StudioID][]finance.EventAssignment
	payments    map[finance.StudioID][]finance.PaymentRecord
	idempotency map[idemKey]bool
}

type memberKey struct {
	StudioID finance.StudioID
	MemberID finance.MemberID
}

type idemKey struct {
	StudioID finance.StudioID
	Key      string
}

var (
	_ finance.Source       = (*Memory)(nil)
	_ finance.PaymentStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		members:     make(map[memberKey]finance.Member),
		events:      make(map[finance.StudioID][]finance.EventAssignment),
		payments:    make(map[finance.StudioID][]finance.PaymentRecord),
		idempotency: make(map[idemKey]bool),
	}
}

// SaveMember inserts or replaces a member.
func (m *Memory) SaveMember(member finance.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[memberKey{member.StudioID, member.ID}] = member
}

// SaveEvent inserts or replaces an event by ID within the studio.
func (m *Memory) SaveEvent(studioID finance.StudioID, event finance.EventAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.AssignedMemberIDs = append([]finance.MemberID(nil), event.AssignedMemberIDs...)
	events := m.events[studioID]
	for i, e := range events {
		if e.EventID != "" && e.EventID == event.EventID {
			events[i] = event
			return
		}
	}
	m.events[studioID] = append(events, event)
}

func (m *Memory) GetMember(_ context.Context, studioID finance.StudioID, memberID finance.MemberID) (*finance.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	member, ok := m.members[memberKey{studioID, memberID}]
	if !ok {
		return nil, finance.ErrMemberNotFound
	}
	return &member, nil
}

func (m *Memory) ListMemberAssignments(_ context.Context, studioID finance.StudioID, memberID finance.MemberID) ([]finance.EventAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.EventAssignment
	for _, e := range m.events[studioID] {
		if e.IsAssigned(memberID) {
			e.AssignedMemberIDs = append([]finance.MemberID(nil), e.AssignedMemberIDs...)
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) ListMemberPayments(ctx context.Context, studioID finance.StudioID, memberID finance.MemberID) ([]finance.PaymentRecord, error) {
	return m.ListPayments(ctx, studioID, finance.PaymentFilter{MemberID: memberID})
}

// ListPayments returns matching payments ordered by date.
func (m *Memory) ListPayments(_ context.Context, studioID finance.StudioID, filter finance.PaymentFilter) ([]finance.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.PaymentRecord
	for _, p := range m.payments[studioID] {
		if filter.Matches(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

// AppendPayment adds a payment. Append-only.
func (m *Memory) AppendPayment(_ context.Context, p finance.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IdempotencyKey != "" {
		k := idemKey{p.StudioID, p.IdempotencyKey}
		if m.idempotency[k] {
			return finance.ErrDuplicateIdempotencyKey
		}
		m.idempotency[k] = true
	}

	payments := m.payments[p.StudioID]
	// Keep payments sorted by date; equal dates keep insertion order.
	i := sort.Search(len(payments), func(i int) bool {
		return payments[i].Date.After(p.Date)
	})
	payments = append(payments, finance.PaymentRecord{})
	copy(payments[i+1:], payments[i:])
	payments[i] = p
	m.payments[p.StudioID] = payments
	return nil
}

func (m *Memory) PaymentExists(_ context.Context, studioID finance.StudioID, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idemKey{studioID, idempotencyKey}], nil
}
