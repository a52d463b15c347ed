/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  finance and store types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

MONEY:
  Amounts are decimal.Decimal and serialize as JSON strings ("1500.50").
  Requests accept either strings or numbers.

VALIDATION:
  Request types carry go-playground/validator tags, checked in
  Handler.decodeAndValidate. Money signs are checked in handlers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/studio-finance/finance"
	"github.com/warp/studio-finance/store/sqlite"
)

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a team member in API responses.
type MemberDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Email        string           `json:"email,omitempty"`
	Role         string           `json:"role,omitempty"`
	PaymentType  string           `json:"payment_type,omitempty"`
	Salary       *decimal.Decimal `json:"salary"`
	HasPayPolicy bool             `json:"has_pay_policy"`
	CreatedAt    string           `json:"created_at"`
}

// CreateMemberRequest is the body for POST /members.
type CreateMemberRequest struct {
	ID          string           `json:"id" validate:"omitempty,max=64"`
	Name        string           `json:"name" validate:"required,max=200"`
	Email       string           `json:"email" validate:"omitempty,email"`
	Role        string           `json:"role" validate:"max=100"`
	PaymentType string           `json:"payment_type" validate:"omitempty,oneof=per-month per-event"`
	Salary      *decimal.Decimal `json:"salary"`
}

func toMemberDTO(m finance.Member) MemberDTO {
	dto := MemberDTO{
		ID:           string(m.ID),
		Name:         m.Name,
		Email:        m.Email,
		Role:         m.Role,
		PaymentType:  string(m.PaymentType),
		HasPayPolicy: m.HasPayPolicy(),
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
	if m.Salary.Valid {
		s := m.Salary.Decimal
		dto.Salary = &s
	}
	return dto
}

// =============================================================================
// PAYABLE
// =============================================================================

// SummaryDTO is the aggregate payout card of a member.
type SummaryDTO struct {
	MemberID string          `json:"member_id"`
	Payable  decimal.Decimal `json:"payable"`
	Paid     decimal.Decimal `json:"paid"`
	Pending  decimal.Decimal `json:"pending"`
	Balance  decimal.Decimal `json:"balance"`
	Overpaid bool            `json:"overpaid"`
}

func toSummaryDTO(s finance.Summary) SummaryDTO {
	return SummaryDTO{
		MemberID: string(s.MemberID),
		Payable:  s.Payable,
		Paid:     s.Paid,
		Pending:  s.Pending,
		Balance:  s.Balance,
		Overpaid: s.Overpaid(),
	}
}

// BreakdownDTO is a member's position in one project.
type BreakdownDTO struct {
	ProjectID        string          `json:"project_id"`
	ProjectName      string          `json:"project_name,omitempty"`
	EventCount       int             `json:"event_count"`
	UniqueMonthCount int             `json:"unique_month_count"`
	Payable          decimal.Decimal `json:"payable"`
	Paid             decimal.Decimal `json:"paid"`
	Pending          decimal.Decimal `json:"pending"`
	Balance          decimal.Decimal `json:"balance"`
	NothingPending   bool            `json:"nothing_pending"`
}

func toBreakdownDTO(b finance.ProjectPayableBreakdown, projectName string) BreakdownDTO {
	return BreakdownDTO{
		ProjectID:        string(b.ProjectID),
		ProjectName:      projectName,
		EventCount:       b.EventCount,
		UniqueMonthCount: b.UniqueMonthCount,
		Payable:          b.Payable,
		Paid:             b.Paid,
		Pending:          b.Pending,
		Balance:          b.Balance,
		NothingPending:   b.NothingPending(),
	}
}

// PaymentHintResponse is shown while entering a payment for a project.
type PaymentHintResponse struct {
	BreakdownDTO
	Warning string `json:"warning,omitempty"`
}

// BreakdownsResponse backs the member finance view.
type BreakdownsResponse struct {
	Member     MemberDTO      `json:"member"`
	Breakdowns []BreakdownDTO `json:"breakdowns"`
}

// =============================================================================
// PROJECTS AND EVENTS
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"client_name,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

func toProjectDTO(p sqlite.Project) ProjectDTO {
	return ProjectDTO{
		ID:         string(p.ID),
		Name:       p.Name,
		ClientName: p.ClientName,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

// CreateEventRequest is one event inside CreateProjectRequest.
type CreateEventRequest struct {
	ID          string   `json:"id" validate:"omitempty,max=64"`
	Name        string   `json:"name" validate:"required,max=200"`
	EventDate   string   `json:"event_date"`
	Venue       string   `json:"venue" validate:"max=200"`
	AssigneeIDs []string `json:"assignee_ids" validate:"dive,required"`
}

// CreateProjectRequest is the body for POST /projects.
type CreateProjectRequest struct {
	ID            string               `json:"id" validate:"omitempty,max=64"`
	Name          string               `json:"name" validate:"required,max=200"`
	ClientName    string               `json:"client_name" validate:"max=200"`
	PackageAmount decimal.Decimal      `json:"package_amount"`
	AdvanceAmount decimal.Decimal      `json:"advance_amount"`
	Events        []CreateEventRequest `json:"events" validate:"dive"`
}

// CreateProjectResponse returns the project and the to-dos it produced.
type CreateProjectResponse struct {
	Project ProjectDTO `json:"project"`
	Todos   []TodoDTO  `json:"todos"`
}

// EventDTO represents a client event with its assignees.
type EventDTO struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Name        string   `json:"name"`
	EventDate   string   `json:"event_date"`
	Venue       string   `json:"venue,omitempty"`
	AssigneeIDs []string `json:"assignee_ids"`
}

func toEventDTO(e sqlite.Event) EventDTO {
	ids := make([]string, len(e.AssigneeIDs))
	for i, m := range e.AssigneeIDs {
		ids[i] = string(m)
	}
	return EventDTO{
		ID:          string(e.ID),
		ProjectID:   string(e.ProjectID),
		Name:        e.Name,
		EventDate:   e.EventDate,
		Venue:       e.Venue,
		AssigneeIDs: ids,
	}
}

// SetAssigneesRequest is the body for PUT /events/{eventID}/assignees.
type SetAssigneesRequest struct {
	MemberIDs []string `json:"member_ids" validate:"dive,required"`
}

// TodoDTO represents a follow-up.
type TodoDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	EventID   string `json:"event_id,omitempty"`
	Title     string `json:"title"`
	DueAt     string `json:"due_at"`
	Done      bool   `json:"done"`
}

func toTodoDTOs(todos []sqlite.Todo) []TodoDTO {
	dtos := make([]TodoDTO, len(todos))
	for i, t := range todos {
		dtos[i] = TodoDTO{
			ID:        t.ID,
			ProjectID: string(t.ProjectID),
			EventID:   string(t.EventID),
			Title:     t.Title,
			DueAt:     t.DueAt.Format(time.RFC3339),
			Done:      t.Done,
		}
	}
	return dtos
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a ledger entry.
type PaymentDTO struct {
	ID             string          `json:"id"`
	MemberID       string          `json:"member_id,omitempty"`
	ProjectID      string          `json:"project_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	Method         string          `json:"method,omitempty"`
	Note           string          `json:"note,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

func toPaymentDTO(p finance.PaymentRecord) PaymentDTO {
	return PaymentDTO{
		ID:             string(p.ID),
		MemberID:       string(p.MemberID),
		ProjectID:      string(p.ProjectID),
		Amount:         p.Amount,
		Date:           p.Date.Format(time.RFC3339),
		Method:         p.Method,
		Note:           p.Note,
		IdempotencyKey: p.IdempotencyKey,
	}
}

// RecordPaymentRequest is the body for POST /payments.
// Date accepts YYYY-MM-DD or RFC3339 and defaults to now.
type RecordPaymentRequest struct {
	MemberID       string          `json:"member_id" validate:"max=64"`
	ProjectID      string          `json:"project_id" validate:"max=64"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	Method         string          `json:"method" validate:"omitempty,oneof=cash bank upi card cheque other"`
	Note           string          `json:"note" validate:"max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=128"`
}

// =============================================================================
// SNAPSHOTS, SCENARIOS, ERRORS
// =============================================================================

// SnapshotDTO is one stored payable snapshot.
type SnapshotDTO struct {
	MemberID string          `json:"member_id"`
	Payable  decimal.Decimal `json:"payable"`
	Paid     decimal.Decimal `json:"paid"`
	Pending  decimal.Decimal `json:"pending"`
	Balance  decimal.Decimal `json:"balance"`
	TakenAt  string          `json:"taken_at"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body for POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
