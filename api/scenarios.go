/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:
  Populates the database with a realistic studio so the payable views can
  be explored without data entry. Every scenario writes to DemoStudio.

AVAILABLE SCENARIOS:
  per-event-wedding:  One photographer paid per event, partly settled
  per-month-retainer: One editor on a monthly retainer across three events
  busy-season:        Several members, an overpayment, a member without a
                      pay policy, a studio expense and an unstaffed event

HOW SCENARIOS WORK:
  1. Reset the demo studio (other studios are untouched)
  2. Create members
  3. Create projects with events (unstaffed events produce to-dos)
  4. Record payments through the ledger

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "busy-season"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/studio-finance/finance"
	"github.com/warp/studio-finance/store/sqlite"
)

// DemoStudio is the studio every scenario writes to.
const DemoStudio finance.StudioID = "demo-studio"

var scenarios = []ScenarioDTO{
	{
		ID:          "per-event-wedding",
		Name:        "Per-Event Wedding",
		Description: "Photographer at 5000/event on three wedding events, 10000 paid",
	},
	{
		ID:          "per-month-retainer",
		Name:        "Per-Month Retainer",
		Description: "Editor at 30000/month on events in January and February, 20000 paid",
	},
	{
		ID:          "busy-season",
		Name:        "Busy Season",
		Description: "Mixed team with an overpayment, an unpaid member, a studio expense and an unstaffed event",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%s", req.ScenarioID))
			return
		}
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "loaded",
		"scenario":  req.ScenarioID,
		"studio_id": string(DemoStudio),
	})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	loaders := map[string]func(context.Context) error{
		"per-event-wedding":  h.loadPerEventWeddingScenario,
		"per-month-retainer": h.loadPerMonthRetainerScenario,
		"busy-season":        h.loadBusySeasonScenario,
	}
	load, ok := loaders[id]
	if !ok {
		return errUnknownScenario
	}

	if err := h.Store.Reset(ctx, DemoStudio); err != nil {
		return err
	}
	if err := load(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.log.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadPerEventWeddingScenario(ctx context.Context) error {
	if err := h.saveMembers(ctx, finance.Member{
		ID: "asha", Name: "Asha Rao", Role: "photographer",
		PaymentType: finance.PerEvent, Salary: finance.NewSalary(5000),
	}); err != nil {
		return err
	}

	if err := h.createProject(ctx, "rao-wedding", "Rao Wedding", "Rao family", 250000, []sqlite.Event{
		{ID: "rao-haldi", Name: "Haldi", EventDate: "2024-03-01", AssigneeIDs: []finance.MemberID{"asha"}},
		{ID: "rao-wedding-day", Name: "Wedding", EventDate: "2024-03-02", AssigneeIDs: []finance.MemberID{"asha"}},
		{ID: "rao-reception", Name: "Reception", EventDate: "2024-03-03", AssigneeIDs: []finance.MemberID{"asha"}},
	}); err != nil {
		return err
	}

	return h.recordPayments(ctx,
		finance.PaymentRecord{MemberID: "asha", ProjectID: "rao-wedding", Amount: finance.NewMoney(10000), Method: "bank", IdempotencyKey: "demo-asha-1"},
	)
}

func (h *Handler) loadPerMonthRetainerScenario(ctx context.Context) error {
	if err := h.saveMembers(ctx, finance.Member{
		ID: "imran", Name: "Imran Sheikh", Role: "editor",
		PaymentType: finance.PerMonth, Salary: finance.NewSalary(30000),
	}); err != nil {
		return err
	}

	if err := h.createProject(ctx, "mehta-shoot", "Mehta Pre-Wedding", "Mehta family", 120000, []sqlite.Event{
		{ID: "mehta-1", Name: "Beach shoot", EventDate: "2024-01-05", AssigneeIDs: []finance.MemberID{"imran"}},
		{ID: "mehta-2", Name: "Studio shoot", EventDate: "2024-01-20", AssigneeIDs: []finance.MemberID{"imran"}},
		{ID: "mehta-3", Name: "Album review", EventDate: "2024-02-10", AssigneeIDs: []finance.MemberID{"imran"}},
	}); err != nil {
		return err
	}

	return h.recordPayments(ctx,
		finance.PaymentRecord{MemberID: "imran", ProjectID: "mehta-shoot", Amount: finance.NewMoney(20000), Method: "upi", IdempotencyKey: "demo-imran-1"},
	)
}

func (h *Handler) loadBusySeasonScenario(ctx context.Context) error {
	if err := h.saveMembers(ctx,
		finance.Member{ID: "asha", Name: "Asha Rao", Role: "photographer", PaymentType: finance.PerEvent, Salary: finance.NewSalary(5000)},
		finance.Member{ID: "imran", Name: "Imran Sheikh", Role: "editor", PaymentType: finance.PerMonth, Salary: finance.NewSalary(30000)},
		finance.Member{ID: "kiran", Name: "Kiran Das", Role: "drone operator", PaymentType: finance.PerEvent, Salary: finance.NewSalary(4000)},
		finance.Member{ID: "neha", Name: "Neha Iyer", Role: "intern"},
	); err != nil {
		return err
	}

	if err := h.createProject(ctx, "rao-wedding", "Rao Wedding", "Rao family", 250000, []sqlite.Event{
		{ID: "rao-haldi", Name: "Haldi", EventDate: "2024-03-01", AssigneeIDs: []finance.MemberID{"asha", "neha"}},
		{ID: "rao-wedding-day", Name: "Wedding", EventDate: "2024-03-02", AssigneeIDs: []finance.MemberID{"asha", "imran", "kiran"}},
		{ID: "rao-reception", Name: "Reception", EventDate: "2024-03-03", AssigneeIDs: []finance.MemberID{"asha", "imran"}},
	}); err != nil {
		return err
	}

	if err := h.createProject(ctx, "khan-engagement", "Khan Engagement", "Khan family", 90000, []sqlite.Event{
		{ID: "khan-ring", Name: "Ring ceremony", EventDate: "2024-04-14", AssigneeIDs: []finance.MemberID{"asha", "kiran"}},
		{ID: "khan-party", Name: "Party", EventDate: "2024-05-02", AssigneeIDs: []finance.MemberID{"imran"}},
		{ID: "khan-portraits", Name: "Family portraits"},
	}); err != nil {
		return err
	}

	return h.recordPayments(ctx,
		finance.PaymentRecord{MemberID: "asha", ProjectID: "rao-wedding", Amount: finance.NewMoney(15000), Method: "bank", IdempotencyKey: "demo-busy-1"},
		finance.PaymentRecord{MemberID: "kiran", ProjectID: "rao-wedding", Amount: finance.NewMoney(6000), Method: "cash", IdempotencyKey: "demo-busy-2"},
		finance.PaymentRecord{MemberID: "imran", ProjectID: "khan-engagement", Amount: finance.NewMoney(10000), Method: "upi", IdempotencyKey: "demo-busy-3"},
		finance.PaymentRecord{MemberID: "imran", Amount: finance.NewMoney(5000), Method: "upi", Note: "Travel advance", IdempotencyKey: "demo-busy-4"},
		finance.PaymentRecord{ProjectID: "rao-wedding", Amount: finance.NewMoney(3500), Method: "card", Note: "Drone battery rental", IdempotencyKey: "demo-busy-5"},
	)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) saveMembers(ctx context.Context, members ...finance.Member) error {
	for _, m := range members {
		m.StudioID = DemoStudio
		if err := h.Store.SaveMember(ctx, m); err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
	}
	return nil
}

func (h *Handler) createProject(ctx context.Context, id finance.ProjectID, name, client string, pkg int64, events []sqlite.Event) error {
	_, err := h.Store.CreateProject(ctx,
		sqlite.Project{ID: id, StudioID: DemoStudio, Name: name, ClientName: client},
		sqlite.ProjectFinance{PackageAmount: finance.NewMoney(pkg), AdvanceAmount: finance.NewMoney(pkg / 5)},
		events,
	)
	if err != nil {
		return fmt.Errorf("project %s: %w", id, err)
	}
	return nil
}

func (h *Handler) recordPayments(ctx context.Context, payments ...finance.PaymentRecord) error {
	for _, p := range payments {
		p.StudioID = DemoStudio
		if _, err := h.Ledger.Record(ctx, p); err != nil {
			return fmt.Errorf("payment %s: %w", p.IdempotencyKey, err)
		}
	}
	return nil
}
