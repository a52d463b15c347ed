package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-finance/finance"
	"github.com/warp/studio-finance/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func saveMembers(t *testing.T, s *sqlite.Store, studio finance.StudioID, members ...finance.Member) {
	t.Helper()
	for _, m := range members {
		m.StudioID = studio
		require.NoError(t, s.SaveMember(context.Background(), m))
	}
}

// =============================================================================
// MEMBERS
// =============================================================================

func TestMembers_RoundTripAndTenancy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saveMembers(t, s, "studio-a",
		finance.Member{ID: "m1", Name: "Asha", PaymentType: finance.PerEvent, Salary: finance.NewSalary(5000)},
		finance.Member{ID: "m2", Name: "Bilal"},
	)

	got, err := s.GetMember(ctx, "studio-a", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, finance.PerEvent, got.PaymentType)
	require.True(t, got.Salary.Valid)
	assert.True(t, got.Salary.Decimal.Equal(finance.NewMoney(5000)))
	assert.True(t, got.HasPayPolicy())

	noPolicy, err := s.GetMember(ctx, "studio-a", "m2")
	require.NoError(t, err)
	assert.False(t, noPolicy.Salary.Valid)
	assert.False(t, noPolicy.HasPayPolicy())

	// Another studio cannot see the member.
	_, err = s.GetMember(ctx, "studio-b", "m1")
	assert.ErrorIs(t, err, finance.ErrMemberNotFound)

	members, err := s.ListMembers(ctx, "studio-a")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Asha", members[0].Name)

	studios, err := s.ListStudios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []finance.StudioID{"studio-a"}, studios)
}

func TestSaveMember_Updates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saveMembers(t, s, "studio-a", finance.Member{ID: "m1", Name: "Asha", PaymentType: finance.PerEvent, Salary: finance.NewSalary(5000)})
	saveMembers(t, s, "studio-a", finance.Member{ID: "m1", Name: "Asha K", PaymentType: finance.PerMonth, Salary: finance.NewSalary(30000)})

	got, err := s.GetMember(ctx, "studio-a", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)
	assert.Equal(t, finance.PerMonth, got.PaymentType)
	assert.True(t, got.Salary.Decimal.Equal(finance.NewMoney(30000)))
}

func TestSaveMember_IDOwnedByAnotherStudio(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	saveMembers(t, s, "studio-a", finance.Member{ID: "m1", Name: "Asha"})

	err := s.SaveMember(ctx, finance.Member{ID: "m1", StudioID: "studio-b", Name: "Mallory"})
	assert.ErrorIs(t, err, finance.ErrIDInUse)

	got, err := s.GetMember(ctx, "studio-a", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
}

// =============================================================================
// PROJECTS, EVENTS, TODOS
// =============================================================================

func TestCreateProject_DuplicateIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateProject(ctx,
		sqlite.Project{ID: "p1", StudioID: "studio-a", Name: "Rao wedding"},
		sqlite.ProjectFinance{},
		[]sqlite.Event{{ID: "e1", Name: "Haldi"}},
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		project sqlite.Project
		events  []sqlite.Event
	}{
		{"project id in same studio", sqlite.Project{ID: "p1", StudioID: "studio-a", Name: "Again"}, nil},
		{"project id in other studio", sqlite.Project{ID: "p1", StudioID: "studio-b", Name: "Theirs"}, nil},
		{"event id", sqlite.Project{ID: "p2", StudioID: "studio-b", Name: "Theirs"}, []sqlite.Event{{ID: "e1", Name: "Day 1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateProject(ctx, tt.project, sqlite.ProjectFinance{}, tt.events)
			assert.ErrorIs(t, err, finance.ErrIDInUse)
		})
	}

	projects, err := s.ListProjects(ctx, "studio-b")
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestCreateProject_DerivesTodosForUnstaffedEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	saveMembers(t, s, "studio-a", finance.Member{ID: "m1", Name: "Asha"})

	todos, err := s.CreateProject(ctx,
		sqlite.Project{ID: "p1", StudioID: "studio-a", Name: "Rao wedding", ClientName: "Rao"},
		sqlite.ProjectFinance{PackageAmount: finance.NewMoney(250000), AdvanceAmount: finance.NewMoney(50000)},
		[]sqlite.Event{
			{ID: "e1", Name: "Haldi", EventDate: "2030-03-01", AssigneeIDs: []finance.MemberID{"m1"}},
			{ID: "e2", Name: "Wedding", EventDate: "2030-03-02"},
			{ID: "e3", Name: "Reception"},
		},
	)
	require.NoError(t, err)
	require.Len(t, todos, 2)

	assert.Equal(t, "Assign team for Wedding", todos[0].Title)
	assert.Equal(t, time.Date(2030, 2, 23, 0, 0, 0, 0, time.UTC), todos[0].DueAt)
	assert.Equal(t, finance.EventID("e3"), todos[1].EventID)
	assert.WithinDuration(t, time.Now(), todos[1].DueAt, time.Minute)

	stored, err := s.ListTodos(ctx, "studio-a", true)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	events, err := s.ListProjectEvents(ctx, "studio-a", "p1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, finance.EventID("e3"), events[0].ID, "undated events sort first")
	assert.Equal(t, []finance.MemberID{"m1"}, events[1].AssigneeIDs)
	assert.Empty(t, events[2].AssigneeIDs)

	fin, err := s.GetProjectFinance(ctx, "studio-a", "p1")
	require.NoError(t, err)
	assert.True(t, fin.PackageAmount.Equal(finance.NewMoney(250000)))

	_, err = s.GetProject(ctx, "studio-b", "p1")
	assert.ErrorIs(t, err, finance.ErrProjectNotFound)
}

func TestCreateProject_RollsBackOnFailure(t *testing.T) {
	// GIVEN: Two events sharing one ID
	// WHEN: The second insert fails
	// THEN: Nothing from the project is persisted

	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateProject(ctx,
		sqlite.Project{ID: "p1", StudioID: "studio-a", Name: "Shoot"},
		sqlite.ProjectFinance{},
		[]sqlite.Event{{ID: "dup", Name: "Day 1"}, {ID: "dup", Name: "Day 2"}},
	)
	require.Error(t, err)

	projects, err := s.ListProjects(ctx, "studio-a")
	require.NoError(t, err)
	assert.Empty(t, projects)

	todos, err := s.ListTodos(ctx, "studio-a", false)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestSetEventAssignees(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	saveMembers(t, s, "studio-a", finance.Member{ID: "m1", Name: "Asha"}, finance.Member{ID: "m2", Name: "Bilal"})
	saveMembers(t, s, "studio-b", finance.Member{ID: "x1", Name: "Other"})

	_, err := s.CreateProject(ctx,
		sqlite.Project{ID: "p1", StudioID: "studio-a", Name: "Shoot"},
		sqlite.ProjectFinance{},
		[]sqlite.Event{{ID: "e1", Name: "Day 1", EventDate: "2030-01-10"}},
	)
	require.NoError(t, err)

	require.NoError(t, s.SetEventAssignees(ctx, "studio-a", "e1", []finance.MemberID{"m2", "m1"}))

	events, err := s.ListProjectEvents(ctx, "studio-a", "p1")
	require.NoError(t, err)
	assert.Equal(t, []finance.MemberID{"m1", "m2"}, events[0].AssigneeIDs)

	open, err := s.ListTodos(ctx, "studio-a", true)
	require.NoError(t, err)
	assert.Empty(t, open, "staffing the event closes its todo")

	err = s.SetEventAssignees(ctx, "studio-a", "missing", nil)
	assert.ErrorIs(t, err, finance.ErrEventNotFound)

	err = s.SetEventAssignees(ctx, "studio-a", "e1", []finance.MemberID{"x1"})
	assert.ErrorIs(t, err, finance.ErrMemberNotFound)

	// The failed call left the previous set intact.
	events, err = s.ListProjectEvents(ctx, "studio-a", "p1")
	require.NoError(t, err)
	assert.Len(t, events[0].AssigneeIDs, 2)
}

// =============================================================================
// SOURCE + RECONCILER
// =============================================================================

func TestStore_FeedsReconciler(t *testing.T) {
	// GIVEN: A per-event member on 3 events of P1 with 10000 paid
	// WHEN: Reconciling through the SQLite source
	// THEN: payable 15000, paid 10000, pending 5000

	ctx := context.Background()
	s := newTestStore(t)
	saveMembers(t, s, "studio-a",
		finance.Member{ID: "M", Name: "Asha", PaymentType: finance.PerEvent, Salary: finance.NewSalary(5000)},
		finance.Member{ID: "N", Name: "Bilal"},
	)

	_, err := s.CreateProject(ctx,
		sqlite.Project{ID: "P1", StudioID: "studio-a", Name: "Wedding"},
		sqlite.ProjectFinance{},
		[]sqlite.Event{
			{ID: "e1", Name: "Haldi", EventDate: "2024-03-01", AssigneeIDs: []finance.MemberID{"M", "N"}},
			{ID: "e2", Name: "Wedding", EventDate: "2024-03-02", AssigneeIDs: []finance.MemberID{"M"}},
			{ID: "e3", Name: "Reception", EventDate: "2024-03-03", AssigneeIDs: []finance.MemberID{"M"}},
			{ID: "e4", Name: "Extra", EventDate: "2024-03-04", AssigneeIDs: []finance.MemberID{"N"}},
		},
	)
	require.NoError(t, err)

	assignments, err := s.ListMemberAssignments(ctx, "studio-a", "M")
	require.NoError(t, err)
	require.Len(t, assignments, 3)
	assert.Equal(t, []finance.MemberID{"M", "N"}, assignments[0].AssignedMemberIDs)

	ledger := finance.NewLedger(s)
	_, err = ledger.Record(ctx, finance.PaymentRecord{
		StudioID: "studio-a", MemberID: "M", ProjectID: "P1",
		Amount: finance.NewMoney(10000), IdempotencyKey: "k1",
	})
	require.NoError(t, err)

	summary, err := finance.NewReconciler(s).Aggregate(ctx, "studio-a", "M")
	require.NoError(t, err)
	assert.True(t, summary.Payable.Equal(finance.NewMoney(15000)), summary.Payable.String())
	assert.True(t, summary.Paid.Equal(finance.NewMoney(10000)), summary.Paid.String())
	assert.True(t, summary.Pending.Equal(finance.NewMoney(5000)), summary.Pending.String())
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestPayments_IdempotencyAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	payments := []finance.PaymentRecord{
		{ID: "pay1", StudioID: "studio-a", MemberID: "M", ProjectID: "P1", Amount: finance.NewMoney(100), Date: base, IdempotencyKey: "k1"},
		{ID: "pay2", StudioID: "studio-a", MemberID: "M", ProjectID: "P2", Amount: finance.MustParseMoney("250.50"), Date: base.Add(time.Hour)},
		{ID: "pay3", StudioID: "studio-a", MemberID: "N", ProjectID: "P1", Amount: finance.NewMoney(75), Date: base.Add(-time.Hour)},
		{ID: "pay4", StudioID: "studio-b", MemberID: "M", ProjectID: "P1", Amount: finance.NewMoney(999), Date: base, IdempotencyKey: "k1"},
	}
	for _, p := range payments {
		require.NoError(t, s.AppendPayment(ctx, p))
	}

	dup := payments[0]
	dup.ID = "pay5"
	assert.ErrorIs(t, s.AppendPayment(ctx, dup), finance.ErrDuplicateIdempotencyKey)

	exists, err := s.PaymentExists(ctx, "studio-a", "k1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.PaymentExists(ctx, "studio-a", "k2")
	require.NoError(t, err)
	assert.False(t, exists)

	all, err := s.ListPayments(ctx, "studio-a", finance.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, finance.PaymentID("pay3"), all[0].ID, "ordered by payment date")

	mine, err := s.ListMemberPayments(ctx, "studio-a", "M")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[1].Amount.Equal(finance.MustParseMoney("250.5")))
	assert.Equal(t, base.Add(time.Hour), mine[1].Date)

	p1, err := s.ListPayments(ctx, "studio-a", finance.PaymentFilter{ProjectID: "P1"})
	require.NoError(t, err)
	assert.Len(t, p1, 2)

	both, err := s.ListPayments(ctx, "studio-a", finance.PaymentFilter{MemberID: "M", ProjectID: "P1"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "k1", both[0].IdempotencyKey)
}

// =============================================================================
// SNAPSHOTS AND RESET
// =============================================================================

func TestPayableSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	require.NoError(t, s.SavePayableSnapshot(ctx, sqlite.PayableSnapshot{
		StudioID: "studio-a", MemberID: "M", Payable: finance.NewMoney(15000), Paid: finance.NewMoney(10000),
		Pending: finance.NewMoney(5000), Balance: finance.NewMoney(5000), TakenAt: t1,
	}))
	require.NoError(t, s.SavePayableSnapshot(ctx, sqlite.PayableSnapshot{
		StudioID: "studio-a", MemberID: "N", TakenAt: t2,
	}))

	all, err := s.ListPayableSnapshots(ctx, "studio-a", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, finance.MemberID("N"), all[0].MemberID, "newest first")
	assert.NotEmpty(t, all[0].ID)

	m, err := s.ListPayableSnapshots(ctx, "studio-a", "M")
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.True(t, m[0].Pending.Equal(finance.NewMoney(5000)))
	assert.Equal(t, t1, m[0].TakenAt)

	other, err := s.ListPayableSnapshots(ctx, "studio-b", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	saveMembers(t, s, "studio-a", finance.Member{ID: "m1", Name: "Asha"})
	require.NoError(t, s.AppendPayment(ctx, finance.PaymentRecord{ID: "p", StudioID: "studio-a", Amount: finance.NewMoney(1), Date: time.Now()}))

	saveMembers(t, s, "studio-b", finance.Member{ID: "m2", Name: "Bilal"})
	_, err := s.CreateProject(ctx,
		sqlite.Project{ID: "pb", StudioID: "studio-b", Name: "Khan shoot"},
		sqlite.ProjectFinance{},
		[]sqlite.Event{{ID: "eb", Name: "Day 1", AssigneeIDs: []finance.MemberID{"m2"}}},
	)
	require.NoError(t, err)
	require.NoError(t, s.AppendPayment(ctx, finance.PaymentRecord{ID: "pb1", StudioID: "studio-b", MemberID: "m2", Amount: finance.NewMoney(2), Date: time.Now()}))

	require.NoError(t, s.Reset(ctx, "studio-a"))

	members, err := s.ListMembers(ctx, "studio-a")
	require.NoError(t, err)
	assert.Empty(t, members)
	payments, err := s.ListPayments(ctx, "studio-a", finance.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, payments)

	// Other studios are untouched.
	_, err = s.GetMember(ctx, "studio-b", "m2")
	require.NoError(t, err)
	assignments, err := s.ListMemberAssignments(ctx, "studio-b", "m2")
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	payments, err = s.ListPayments(ctx, "studio-b", finance.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	assert.ErrorIs(t, s.Reset(ctx, ""), finance.ErrStudioRequired)
}
