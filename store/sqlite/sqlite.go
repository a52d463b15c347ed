/*
Package sqlite provides a SQLite-backed implementation of the finance stores.

PURPOSE:
  System of record for team members, projects, client events and their
  assignees, the payment ledger, derived to-dos and payable snapshots.
  Implements finance.Source and finance.PaymentStore.

TENANCY:
  Every table carries studio_id and every query filters on it. A member,
  project or payment from another studio is simply "not found".

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the payments table
  - Idempotency keys are unique per studio

KEY TABLES:
  members:           Team members with payment type and salary
  projects:          Client projects (weddings, shoots)
  project_finances:  Package and advance amounts per project
  client_events:     Events within a project (date kept as stored text)
  event_assignees:   Member-to-event assignment
  payments:          Immutable payment ledger
  todos:             Follow-ups derived when projects are created
  payable_snapshots: Periodic aggregate figures per member

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In-memory databases are pinned to a
  single connection so every query sees the same schema.

USAGE:
  store, err := sqlite.New("./data/studio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  rec := finance.NewReconciler(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/studio-finance/finance"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ finance.Source       = (*Store)(nil)
	_ finance.PaymentStore = (*Store)(nil)
)

// New opens (and migrates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already-open database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT,
		payment_type TEXT NOT NULL DEFAULT '',
		salary TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_studio
		ON members(studio_id, name);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		name TEXT NOT NULL,
		client_name TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_studio
		ON projects(studio_id, created_at);

	CREATE TABLE IF NOT EXISTS project_finances (
		project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		studio_id TEXT NOT NULL,
		package_amount TEXT NOT NULL DEFAULT '0',
		advance_amount TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS client_events (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		event_date TEXT NOT NULL DEFAULT '',
		venue TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_studio_project
		ON client_events(studio_id, project_id);

	CREATE TABLE IF NOT EXISTS event_assignees (
		event_id TEXT NOT NULL REFERENCES client_events(id) ON DELETE CASCADE,
		member_id TEXT NOT NULL REFERENCES members(id),
		PRIMARY KEY (event_id, member_id)
	);

	CREATE INDEX IF NOT EXISTS idx_event_assignees_member
		ON event_assignees(member_id);

	-- Payments (append-only ledger)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		member_id TEXT,
		project_id TEXT,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		method TEXT,
		note TEXT,
		idempotency_key TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency
		ON payments(studio_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_payments_member
		ON payments(studio_id, member_id, paid_at);
	CREATE INDEX IF NOT EXISTS idx_payments_project
		ON payments(studio_id, project_id);

	CREATE TABLE IF NOT EXISTS todos (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		event_id TEXT,
		title TEXT NOT NULL,
		due_at TEXT NOT NULL,
		done BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_todos_studio
		ON todos(studio_id, done, due_at);

	CREATE TABLE IF NOT EXISTS payable_snapshots (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		payable TEXT NOT NULL,
		paid TEXT NOT NULL,
		pending TEXT NOT NULL,
		balance TEXT NOT NULL,
		taken_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_studio_member
		ON payable_snapshots(studio_id, member_id, taken_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn in a database transaction. The caller must hold s.mu and
// fn must only use the given tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// MEMBERS
// =============================================================================

// SaveMember inserts or updates a team member.
func (s *Store) SaveMember(ctx context.Context, m finance.Member) error {
	if m.StudioID == "" {
		return finance.ErrStudioRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, studio_id, name, email, role, payment_type, salary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			payment_type = excluded.payment_type,
			salary = excluded.salary
		WHERE members.studio_id = excluded.studio_id
	`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, query,
		m.ID, m.StudioID, m.Name, m.Email, m.Role,
		string(m.PaymentType), nullDecimal(m.Salary),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	// The upsert touches no row when the ID belongs to another studio.
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s: %w", m.ID, finance.ErrIDInUse)
	}
	return nil
}

// GetMember retrieves a member of the studio.
func (s *Store) GetMember(ctx context.Context, studioID finance.StudioID, memberID finance.MemberID) (*finance.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, studio_id, name, email, role, payment_type, salary, created_at
		FROM members WHERE studio_id = ? AND id = ?`,
		studioID, memberID,
	)

	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, finance.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// ListMembers returns the studio's members ordered by name.
func (s *Store) ListMembers(ctx context.Context, studioID finance.StudioID) ([]finance.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, studio_id, name, email, role, payment_type, salary, created_at
		FROM members WHERE studio_id = ? ORDER BY name, id`,
		studioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []finance.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListStudios returns every studio that has at least one member.
func (s *Store) ListStudios(ctx context.Context) ([]finance.StudioID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT studio_id FROM members ORDER BY studio_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list studios: %w", err)
	}
	defer rows.Close()

	var studios []finance.StudioID
	for rows.Next() {
		var id finance.StudioID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		studios = append(studios, id)
	}
	return studios, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (finance.Member, error) {
	var (
		m           finance.Member
		email, role sql.NullString
		paymentType string
		salary      sql.NullString
		createdAt   string
	)
	if err := row.Scan(&m.ID, &m.StudioID, &m.Name, &email, &role, &paymentType, &salary, &createdAt); err != nil {
		return m, err
	}
	m.Email = email.String
	m.Role = role.String
	m.PaymentType = finance.PaymentType(paymentType)
	if salary.Valid && salary.String != "" {
		if d, err := decimal.NewFromString(salary.String); err == nil {
			m.Salary = decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return m, nil
}

// =============================================================================
// PROJECTS AND EVENTS
// =============================================================================

// Project is a client project (one wedding, one shoot).
type Project struct {
	ID         finance.ProjectID
	StudioID   finance.StudioID
	Name       string
	ClientName string
	Status     string
	CreatedAt  time.Time
}

// ProjectFinance holds the commercial figures agreed with the client.
type ProjectFinance struct {
	PackageAmount decimal.Decimal
	AdvanceAmount decimal.Decimal
}

// Event is a client event as stored, with its assignees.
type Event struct {
	ID          finance.EventID
	StudioID    finance.StudioID
	ProjectID   finance.ProjectID
	Name        string
	EventDate   string
	Venue       string
	AssigneeIDs []finance.MemberID
}

// Assignment converts the event to engine input.
func (e Event) Assignment() finance.EventAssignment {
	return finance.EventAssignment{
		EventID:           e.ID,
		ProjectID:         e.ProjectID,
		EventDate:         e.EventDate,
		AssignedMemberIDs: e.AssigneeIDs,
	}
}

// Todo is a follow-up derived from project data.
type Todo struct {
	ID        string
	StudioID  finance.StudioID
	ProjectID finance.ProjectID
	EventID   finance.EventID
	Title     string
	DueAt     time.Time
	Done      bool
	CreatedAt time.Time
}

// todoLeadTime is how long before an unstaffed event its to-do falls due.
const todoLeadTime = 7 * 24 * time.Hour

// CreateProject writes the project, its finance record, its events with
// assignees and the derived to-dos in one transaction. Every event without
// assignees gets an "Assign team" to-do due a week before the event, or
// immediately when the event date is unknown.
func (s *Store) CreateProject(ctx context.Context, p Project, fin ProjectFinance, events []Event) ([]Todo, error) {
	if p.StudioID == "" {
		return nil, finance.ErrStudioRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.Status == "" {
		p.Status = "active"
	}

	var todos []Todo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, studio_id, name, client_name, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.StudioID, p.Name, p.ClientName, p.Status, p.CreatedAt.Format(time.RFC3339),
		)
		if isUniqueConstraintError(err) {
			return fmt.Errorf("project %s: %w", p.ID, finance.ErrIDInUse)
		}
		if err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO project_finances (project_id, studio_id, package_amount, advance_amount)
			VALUES (?, ?, ?, ?)`,
			p.ID, p.StudioID, fin.PackageAmount.String(), fin.AdvanceAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert project finance: %w", err)
		}

		for _, e := range events {
			if e.ID == "" {
				e.ID = finance.EventID(uuid.NewString())
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO client_events (id, studio_id, project_id, name, event_date, venue, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, p.StudioID, p.ID, e.Name, e.EventDate, e.Venue, now.Format(time.RFC3339),
			)
			if isUniqueConstraintError(err) {
				return fmt.Errorf("event %s: %w", e.ID, finance.ErrIDInUse)
			}
			if err != nil {
				return fmt.Errorf("failed to insert event %q: %w", e.Name, err)
			}

			if err := insertAssignees(ctx, tx, e.ID, e.AssigneeIDs); err != nil {
				return err
			}

			if len(e.AssigneeIDs) == 0 {
				todo := Todo{
					ID:        uuid.NewString(),
					StudioID:  p.StudioID,
					ProjectID: p.ID,
					EventID:   e.ID,
					Title:     fmt.Sprintf("Assign team for %s", e.Name),
					DueAt:     now,
					CreatedAt: now,
				}
				if d, ok := finance.ParseEventDate(e.EventDate); ok {
					todo.DueAt = d.Add(-todoLeadTime).UTC()
				}
				if err := insertTodo(ctx, tx, todo); err != nil {
					return err
				}
				todos = append(todos, todo)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

func insertAssignees(ctx context.Context, db execer, eventID finance.EventID, members []finance.MemberID) error {
	for _, m := range members {
		_, err := db.ExecContext(ctx,
			"INSERT OR IGNORE INTO event_assignees (event_id, member_id) VALUES (?, ?)",
			eventID, m,
		)
		if err != nil {
			return fmt.Errorf("failed to assign member %s: %w", m, err)
		}
	}
	return nil
}

func insertTodo(ctx context.Context, db execer, t Todo) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO todos (id, studio_id, project_id, event_id, title, due_at, done, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.StudioID, t.ProjectID, nullString(string(t.EventID)), t.Title,
		t.DueAt.Format(time.RFC3339), t.Done, t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// GetProject retrieves a project of the studio.
func (s *Store) GetProject(ctx context.Context, studioID finance.StudioID, id finance.ProjectID) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p          Project
		clientName sql.NullString
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, studio_id, name, client_name, status, created_at
		FROM projects WHERE studio_id = ? AND id = ?`,
		studioID, id,
	).Scan(&p.ID, &p.StudioID, &p.Name, &clientName, &p.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, finance.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.ClientName = clientName.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// ListProjects returns the studio's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, studioID finance.StudioID) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, studio_id, name, client_name, status, created_at
		FROM projects WHERE studio_id = ? ORDER BY created_at DESC, id`,
		studioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var (
			p          Project
			clientName sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&p.ID, &p.StudioID, &p.Name, &clientName, &p.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.ClientName = clientName.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProjectFinance returns the finance record of a project.
func (s *Store) GetProjectFinance(ctx context.Context, studioID finance.StudioID, id finance.ProjectID) (*ProjectFinance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pkg, adv string
	err := s.db.QueryRowContext(ctx, `
		SELECT package_amount, advance_amount
		FROM project_finances WHERE studio_id = ? AND project_id = ?`,
		studioID, id,
	).Scan(&pkg, &adv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, finance.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project finance: %w", err)
	}
	return &ProjectFinance{
		PackageAmount: finance.MustParseMoney(pkg),
		AdvanceAmount: finance.MustParseMoney(adv),
	}, nil
}

// ListProjectEvents returns a project's events with assignees, by date.
func (s *Store) ListProjectEvents(ctx context.Context, studioID finance.StudioID, projectID finance.ProjectID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT e.id, e.studio_id, e.project_id, e.name, e.event_date, e.venue, a.member_id
		FROM client_events e
		LEFT JOIN event_assignees a ON a.event_id = e.id
		WHERE e.studio_id = ? AND e.project_id = ?
		ORDER BY e.event_date, e.id, a.member_id
	`
	return s.queryEvents(ctx, query, studioID, projectID)
}

// ListMemberAssignments returns every studio event the member is assigned
// to, each with its full assignee set. Rows are ordered by event ID only so
// that the folding in queryEvents sees each event's rows together.
func (s *Store) ListMemberAssignments(ctx context.Context, studioID finance.StudioID, memberID finance.MemberID) ([]finance.EventAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT e.id, e.studio_id, e.project_id, e.name, e.event_date, e.venue, a.member_id
		FROM client_events e
		JOIN event_assignees a ON a.event_id = e.id
		WHERE e.studio_id = ?
		  AND e.id IN (SELECT event_id FROM event_assignees WHERE member_id = ?)
		ORDER BY e.id, a.member_id
	`
	events, err := s.queryEvents(ctx, query, studioID, memberID)
	if err != nil {
		return nil, err
	}

	assignments := make([]finance.EventAssignment, len(events))
	for i, e := range events {
		assignments[i] = e.Assignment()
	}
	return assignments, nil
}

// queryEvents folds one row per (event, assignee) into events.
func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			venue    sql.NullString
			memberID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.StudioID, &e.ProjectID, &e.Name, &e.EventDate, &venue, &memberID); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Venue = venue.String

		if n := len(events); n == 0 || events[n-1].ID != e.ID {
			events = append(events, e)
		}
		if memberID.Valid {
			last := &events[len(events)-1]
			last.AssigneeIDs = append(last.AssigneeIDs, finance.MemberID(memberID.String))
		}
	}
	return events, rows.Err()
}

// SetEventAssignees replaces the assignee set of an event.
func (s *Store) SetEventAssignees(ctx context.Context, studioID finance.StudioID, eventID finance.EventID, members []finance.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM client_events WHERE studio_id = ? AND id = ?",
			studioID, eventID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to look up event: %w", err)
		}
		if n == 0 {
			return finance.ErrEventNotFound
		}

		for _, m := range members {
			var count int
			err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM members WHERE studio_id = ? AND id = ?",
				studioID, m,
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("failed to look up member: %w", err)
			}
			if count == 0 {
				return fmt.Errorf("member %s: %w", m, finance.ErrMemberNotFound)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM event_assignees WHERE event_id = ?", eventID); err != nil {
			return fmt.Errorf("failed to clear assignees: %w", err)
		}
		if err := insertAssignees(ctx, tx, eventID, members); err != nil {
			return err
		}

		if len(members) > 0 {
			_, err := tx.ExecContext(ctx,
				"UPDATE todos SET done = TRUE WHERE studio_id = ? AND event_id = ? AND done = FALSE",
				studioID, eventID,
			)
			if err != nil {
				return fmt.Errorf("failed to close todos: %w", err)
			}
		}
		return nil
	})
}

// ListTodos returns the studio's to-dos by due date.
func (s *Store) ListTodos(ctx context.Context, studioID finance.StudioID, openOnly bool) ([]Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, studio_id, project_id, event_id, title, due_at, done, created_at
		FROM todos WHERE studio_id = ?`
	if openOnly {
		query += " AND done = FALSE"
	}
	query += " ORDER BY due_at, id"

	rows, err := s.db.QueryContext(ctx, query, studioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		var (
			t              Todo
			eventID        sql.NullString
			due, createdAt string
		)
		if err := rows.Scan(&t.ID, &t.StudioID, &t.ProjectID, &eventID, &t.Title, &due, &t.Done, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		t.EventID = finance.EventID(eventID.String)
		t.DueAt, _ = time.Parse(time.RFC3339, due)
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// =============================================================================
// PAYMENTS (finance.PaymentStore)
// =============================================================================

// AppendPayment adds a payment to the ledger.
func (s *Store) AppendPayment(ctx context.Context, p finance.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments
		(id, studio_id, member_id, project_id, amount, paid_at, method, note, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.StudioID,
		nullString(string(p.MemberID)),
		nullString(string(p.ProjectID)),
		p.Amount.String(),
		p.Date.UTC().Format(time.RFC3339),
		p.Method,
		p.Note,
		nullString(p.IdempotencyKey),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return finance.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

// PaymentExists checks if an idempotency key was already used in the studio.
func (s *Store) PaymentExists(ctx context.Context, studioID finance.StudioID, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE studio_id = ? AND idempotency_key = ?",
		studioID, idempotencyKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return count > 0, nil
}

// ListMemberPayments returns all payments recorded against the member.
func (s *Store) ListMemberPayments(ctx context.Context, studioID finance.StudioID, memberID finance.MemberID) ([]finance.PaymentRecord, error) {
	return s.ListPayments(ctx, studioID, finance.PaymentFilter{MemberID: memberID})
}

// ListPayments returns the studio's payments matching filter, by date.
func (s *Store) ListPayments(ctx context.Context, studioID finance.StudioID, filter finance.PaymentFilter) ([]finance.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, studio_id, member_id, project_id, amount, paid_at, method, note, idempotency_key, created_at
		FROM payments
		WHERE studio_id = ?`
	args := []any{studioID}
	if filter.MemberID != "" {
		query += " AND member_id = ?"
		args = append(args, filter.MemberID)
	}
	if filter.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filter.ProjectID)
	}
	query += " ORDER BY paid_at ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []finance.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row scanner) (finance.PaymentRecord, error) {
	var (
		p                     finance.PaymentRecord
		memberID, projectID   sql.NullString
		method, note, idemKey sql.NullString
		amount                string
		paidAt, createdAt     string
	)
	err := row.Scan(&p.ID, &p.StudioID, &memberID, &projectID, &amount, &paidAt,
		&method, &note, &idemKey, &createdAt)
	if err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.MemberID = finance.MemberID(memberID.String)
	p.ProjectID = finance.ProjectID(projectID.String)
	p.Amount = finance.MustParseMoney(amount)
	p.Date, _ = time.Parse(time.RFC3339, paidAt)
	p.Method = method.String
	p.Note = note.String
	p.IdempotencyKey = idemKey.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

// =============================================================================
// PAYABLE SNAPSHOTS
// =============================================================================

// PayableSnapshot records a member's aggregate figures at a point in time.
type PayableSnapshot struct {
	ID       string
	StudioID finance.StudioID
	MemberID finance.MemberID
	Payable  decimal.Decimal
	Paid     decimal.Decimal
	Pending  decimal.Decimal
	Balance  decimal.Decimal
	TakenAt  time.Time
}

// SavePayableSnapshot stores a snapshot.
func (s *Store) SavePayableSnapshot(ctx context.Context, snap PayableSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payable_snapshots (id, studio_id, member_id, payable, paid, pending, balance, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.StudioID, snap.MemberID,
		snap.Payable.String(), snap.Paid.String(), snap.Pending.String(), snap.Balance.String(),
		snap.TakenAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save payable snapshot: %w", err)
	}
	return nil
}

// ListPayableSnapshots returns the studio's snapshots, newest first.
// An empty memberID returns every member's snapshots.
func (s *Store) ListPayableSnapshots(ctx context.Context, studioID finance.StudioID, memberID finance.MemberID) ([]PayableSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, studio_id, member_id, payable, paid, pending, balance, taken_at
		FROM payable_snapshots WHERE studio_id = ?`
	args := []any{studioID}
	if memberID != "" {
		query += " AND member_id = ?"
		args = append(args, memberID)
	}
	query += " ORDER BY taken_at DESC, member_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payable snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []PayableSnapshot
	for rows.Next() {
		var (
			snap                            PayableSnapshot
			payable, paid, pending, balance string
			takenAt                         string
		)
		if err := rows.Scan(&snap.ID, &snap.StudioID, &snap.MemberID,
			&payable, &paid, &pending, &balance, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan payable snapshot: %w", err)
		}
		snap.Payable = finance.MustParseMoney(payable)
		snap.Paid = finance.MustParseMoney(paid)
		snap.Pending = finance.MustParseMoney(pending)
		snap.Balance = finance.MustParseMoney(balance)
		snap.TakenAt, _ = time.Parse(time.RFC3339, takenAt)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// Reset clears one studio's data. Used by demo scenarios. Other studios
// are untouched.
func (s *Store) Reset(ctx context.Context, studioID finance.StudioID) error {
	if studioID == "" {
		return finance.ErrStudioRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Children before parents; assignees carry no studio column.
	deletes := []struct{ table, query string }{
		{"payable_snapshots", "DELETE FROM payable_snapshots WHERE studio_id = ?"},
		{"todos", "DELETE FROM todos WHERE studio_id = ?"},
		{"payments", "DELETE FROM payments WHERE studio_id = ?"},
		{"event_assignees", "DELETE FROM event_assignees WHERE event_id IN (SELECT id FROM client_events WHERE studio_id = ?)"},
		{"client_events", "DELETE FROM client_events WHERE studio_id = ?"},
		{"project_finances", "DELETE FROM project_finances WHERE studio_id = ?"},
		{"projects", "DELETE FROM projects WHERE studio_id = ?"},
		{"members", "DELETE FROM members WHERE studio_id = ?"},
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, d := range deletes {
			if _, err := tx.ExecContext(ctx, d.query, studioID); err != nil {
				return fmt.Errorf("failed to reset %s: %w", d.table, err)
			}
		}
		return nil
	})
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
