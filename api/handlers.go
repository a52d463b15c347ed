/*
handlers.go - HTTP API handlers for studio finance

PURPOSE:
  Exposes the payable/paid/pending engine, the payment ledger and the
  project flow via REST. Handles HTTP request/response, JSON
  serialization and validation, and delegates to finance and the store.

ENDPOINTS (all under /api/studios/{studioID}):
  Members:
    GET    /members                                   List members
    POST   /members                                   Create or update member
    GET    /members/{memberID}                        Member details
    GET    /members/{memberID}/payable                Aggregate payout card
    GET    /members/{memberID}/projects/{projectID}/payable
                                                      Payment-entry hint
    GET    /members/{memberID}/breakdowns             Ranked per-project view
    GET    /members/{memberID}/breakdowns.xlsx        Same, as a workbook

  Projects:
    GET    /projects                                  List projects
    POST   /projects                                  Create project + events
    GET    /projects/{projectID}/events               Events with assignees
    PUT    /events/{eventID}/assignees                Replace assignees

  Ledger:
    GET    /payments?member_id=&project_id=           List payments
    POST   /payments                                  Record payment

  Other:
    GET    /todos?all=true                            Derived to-dos
    GET    /snapshots?member_id=                      Payable snapshots

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Member, project or event not found in the studio
  - 409: Duplicate idempotency key
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication. The studio in the path is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: Workbook rendering
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/studio-finance/finance"
	"github.com/warp/studio-finance/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Reconciler *finance.Reconciler
	Ledger     *finance.Ledger

	validate *validator.Validate
	log      *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:      store,
		Reconciler: finance.NewReconciler(store),
		Ledger:     finance.NewLedger(store),
		validate:   validator.New(),
		log:        log,
	}
}

func studioParam(r *http.Request) finance.StudioID {
	return finance.StudioID(chi.URLParam(r, "studioID"))
}

func memberParam(r *http.Request) finance.MemberID {
	return finance.MemberID(chi.URLParam(r, "memberID"))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns the studio's team.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context(), studioParam(r))
	if err != nil {
		h.fail(w, r, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Store.GetMember(r.Context(), studioParam(r), memberParam(r))
	if err != nil {
		h.fail(w, r, "Failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// CreateMember creates or updates a member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	m := finance.Member{
		ID:          finance.MemberID(req.ID),
		StudioID:    studioParam(r),
		Name:        req.Name,
		Email:       req.Email,
		Role:        req.Role,
		PaymentType: finance.PaymentType(req.PaymentType),
	}
	if m.ID == "" {
		m.ID = finance.MemberID(uuid.NewString())
	}
	if req.Salary != nil {
		if req.Salary.IsNegative() {
			writeError(w, http.StatusBadRequest, "Salary cannot be negative", nil)
			return
		}
		m.Salary = decimal.NewNullDecimal(*req.Salary)
	}

	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		h.fail(w, r, "Failed to save member", err)
		return
	}

	saved, err := h.Store.GetMember(r.Context(), m.StudioID, m.ID)
	if err != nil {
		h.fail(w, r, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(*saved))
}

// =============================================================================
// PAYABLE HANDLERS
// =============================================================================

// GetMemberPayable returns the aggregate payout card.
func (h *Handler) GetMemberPayable(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reconciler.Aggregate(r.Context(), studioParam(r), memberParam(r))
	if err != nil {
		h.fail(w, r, "Failed to compute payable", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// GetProjectPayable returns the hint shown while entering a payment.
func (h *Handler) GetProjectPayable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studio := studioParam(r)
	projectID := finance.ProjectID(chi.URLParam(r, "projectID"))

	project, err := h.Store.GetProject(ctx, studio, projectID)
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}

	b, err := h.Reconciler.ProjectHint(ctx, studio, memberParam(r), projectID)
	if err != nil {
		h.fail(w, r, "Failed to compute project payable", err)
		return
	}

	resp := PaymentHintResponse{BreakdownDTO: toBreakdownDTO(b, project.Name)}
	if b.NothingPending() {
		resp.Warning = "Nothing is pending for this member on this project"
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMemberBreakdowns returns the ranked per-project view.
func (h *Handler) GetMemberBreakdowns(w http.ResponseWriter, r *http.Request) {
	member, dtos, ok := h.memberBreakdowns(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, BreakdownsResponse{
		Member:     toMemberDTO(member),
		Breakdowns: dtos,
	})
}

// ExportMemberBreakdowns returns the ranked view as an XLSX workbook.
func (h *Handler) ExportMemberBreakdowns(w http.ResponseWriter, r *http.Request) {
	member, dtos, ok := h.memberBreakdowns(w, r)
	if !ok {
		return
	}

	data, err := BuildBreakdownWorkbook(member, dtos)
	if err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payables-%s.xlsx"`, member.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) memberBreakdowns(w http.ResponseWriter, r *http.Request) (finance.Member, []BreakdownDTO, bool) {
	ctx := r.Context()
	studio := studioParam(r)

	member, breakdowns, err := h.Reconciler.Breakdowns(ctx, studio, memberParam(r))
	if err != nil {
		h.fail(w, r, "Failed to compute breakdowns", err)
		return member, nil, false
	}

	projects, err := h.Store.ListProjects(ctx, studio)
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return member, nil, false
	}
	names := make(map[finance.ProjectID]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	dtos := make([]BreakdownDTO, len(breakdowns))
	for i, b := range breakdowns {
		dtos[i] = toBreakdownDTO(b, names[b.ProjectID])
	}
	return member, dtos, true
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns the studio's projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context(), studioParam(r))
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject creates a project with its finance record and events.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.PackageAmount.IsNegative() || req.AdvanceAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amounts cannot be negative", nil)
		return
	}

	ctx := r.Context()
	studio := studioParam(r)

	project := sqlite.Project{
		ID:         finance.ProjectID(req.ID),
		StudioID:   studio,
		Name:       req.Name,
		ClientName: req.ClientName,
	}
	if project.ID == "" {
		project.ID = finance.ProjectID(uuid.NewString())
	}

	events := make([]sqlite.Event, len(req.Events))
	for i, e := range req.Events {
		ev := sqlite.Event{
			ID:        finance.EventID(e.ID),
			Name:      e.Name,
			EventDate: e.EventDate,
			Venue:     e.Venue,
		}
		for _, id := range e.AssigneeIDs {
			if _, err := h.Store.GetMember(ctx, studio, finance.MemberID(id)); err != nil {
				h.fail(w, r, fmt.Sprintf("Unknown assignee %s", id), err)
				return
			}
			ev.AssigneeIDs = append(ev.AssigneeIDs, finance.MemberID(id))
		}
		events[i] = ev
	}

	todos, err := h.Store.CreateProject(ctx, project, sqlite.ProjectFinance{
		PackageAmount: req.PackageAmount,
		AdvanceAmount: req.AdvanceAmount,
	}, events)
	if err != nil {
		h.fail(w, r, "Failed to create project", err)
		return
	}

	saved, err := h.Store.GetProject(ctx, studio, project.ID)
	if err != nil {
		h.fail(w, r, "Failed to load project", err)
		return
	}

	h.log.Info("project created",
		zap.String("studio_id", string(studio)),
		zap.String("project_id", string(project.ID)),
		zap.Int("events", len(events)),
		zap.Int("todos", len(todos)),
	)

	writeJSON(w, http.StatusCreated, CreateProjectResponse{
		Project: toProjectDTO(*saved),
		Todos:   toTodoDTOs(todos),
	})
}

// ListProjectEvents returns a project's events with assignees.
func (h *Handler) ListProjectEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studio := studioParam(r)
	projectID := finance.ProjectID(chi.URLParam(r, "projectID"))

	if _, err := h.Store.GetProject(ctx, studio, projectID); err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}

	events, err := h.Store.ListProjectEvents(ctx, studio, projectID)
	if err != nil {
		h.fail(w, r, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetEventAssignees replaces an event's assignee set.
func (h *Handler) SetEventAssignees(w http.ResponseWriter, r *http.Request) {
	var req SetAssigneesRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ids := make([]finance.MemberID, len(req.MemberIDs))
	for i, id := range req.MemberIDs {
		ids[i] = finance.MemberID(id)
	}

	eventID := finance.EventID(chi.URLParam(r, "eventID"))
	if err := h.Store.SetEventAssignees(r.Context(), studioParam(r), eventID, ids); err != nil {
		h.fail(w, r, "Failed to set assignees", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTodos returns open to-dos, or all with ?all=true.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	todos, err := h.Store.ListTodos(r.Context(), studioParam(r), !all)
	if err != nil {
		h.fail(w, r, "Failed to list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, toTodoDTOs(todos))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns ledger entries, optionally filtered.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := finance.PaymentFilter{
		MemberID:  finance.MemberID(q.Get("member_id")),
		ProjectID: finance.ProjectID(q.Get("project_id")),
	}

	payments, err := h.Store.ListPayments(r.Context(), studioParam(r), filter)
	if err != nil {
		h.fail(w, r, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPayment appends a payment to the ledger.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	studio := studioParam(r)

	p := finance.PaymentRecord{
		StudioID:       studio,
		MemberID:       finance.MemberID(req.MemberID),
		ProjectID:      finance.ProjectID(req.ProjectID),
		Amount:         req.Amount,
		Method:         req.Method,
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Date != "" {
		d, ok := finance.ParseEventDate(req.Date)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD or RFC3339)", nil)
			return
		}
		p.Date = d
	}

	if p.MemberID != "" {
		if _, err := h.Store.GetMember(ctx, studio, p.MemberID); err != nil {
			h.fail(w, r, "Failed to record payment", err)
			return
		}
	}
	if p.ProjectID != "" {
		if _, err := h.Store.GetProject(ctx, studio, p.ProjectID); err != nil {
			h.fail(w, r, "Failed to record payment", err)
			return
		}
	}

	saved, err := h.Ledger.Record(ctx, p)
	if err != nil {
		h.fail(w, r, "Failed to record payment", err)
		return
	}

	h.log.Info("payment recorded",
		zap.String("studio_id", string(studio)),
		zap.String("payment_id", string(saved.ID)),
		zap.String("member_id", string(saved.MemberID)),
		zap.String("project_id", string(saved.ProjectID)),
		zap.String("amount", saved.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, toPaymentDTO(saved))
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// ListSnapshots returns stored payable snapshots, newest first.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Store.ListPayableSnapshots(r.Context(), studioParam(r),
		finance.MemberID(r.URL.Query().Get("member_id")))
	if err != nil {
		h.fail(w, r, "Failed to list snapshots", err)
		return
	}

	dtos := make([]SnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = SnapshotDTO{
			MemberID: string(s.MemberID),
			Payable:  s.Payable,
			Paid:     s.Paid,
			Pending:  s.Pending,
			Balance:  s.Balance,
			TakenAt:  s.TakenAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeAndValidate reads the JSON body into dst and validates it.
// On failure it writes a 400 and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// fail maps a domain error to an HTTP status and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(message,
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("studio_id", string(studioParam(r))),
		)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, finance.ErrDuplicateIdempotencyKey), errors.Is(err, finance.ErrIDInUse):
		return http.StatusConflict
	case finance.IsNotFound(err):
		return http.StatusNotFound
	case finance.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
