/*
handlers.go - HTTP API handlers for the payroll run engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Pay groups:
    GET    /api/paygroups                      List pay groups
    GET    /api/paygroups/{id}                 Get pay group
    GET    /api/paygroups/{id}/employees       List members
    GET    /api/paygroups/{id}/runs            List runs
    POST   /api/paygroups/{id}/runs            Start a run

  Runs:
    GET    /api/runs/{id}                      Run summary
    GET    /api/runs/{id}/records              All records
    GET    /api/runs/{id}/records/{employeeID} One record
    GET    /api/runs/{id}/totals               Aggregate totals
    PUT    /api/runs/{id}/inputs/{employeeID}  Patch an input
    POST   /api/runs/{id}/recalculate          Recompute the run
    POST   /api/runs/{id}/finalize             Commit and lock
    POST   /api/runs/{id}/revert               Back to draft
    POST   /api/runs/{id}/approve              Approve + paystubs
    POST   /api/runs/{id}/pay                  Mark paid
    POST   /api/runs/{id}/cancel               Cancel

  Employees:
    GET    /api/employees/{id}                 Employee details
    GET    /api/employees/{id}/balances        Committed balances

ERROR HANDLING:
  Domain errors map to HTTP status via the error taxonomy:
  - 400: Validation errors, invalid input
  - 404: Run, employee, or pay group not found
  - 409: Invalid state/transition, concurrent modification, duplicates
  - 503: Rate provider unavailable (retryable)
  - 500: Everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - payroll/engine.go: The domain logic these handlers delegate to
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *payroll.Engine
	Directory payroll.Directory
}

// NewHandler creates a new handler backed by the engine and directory.
func NewHandler(engine *payroll.Engine, dir payroll.Directory) *Handler {
	return &Handler{Engine: engine, Directory: dir}
}

// =============================================================================
// PAY GROUP HANDLERS
// =============================================================================

// ListPayGroups returns all pay groups.
func (h *Handler) ListPayGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Directory.ListPayGroups(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list pay groups", err)
		return
	}
	dtos := make([]PayGroupDTO, len(groups))
	for i, g := range groups {
		dtos[i] = toPayGroupDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayGroup returns one pay group.
func (h *Handler) GetPayGroup(w http.ResponseWriter, r *http.Request) {
	id := payroll.PayGroupID(chi.URLParam(r, "id"))
	group, err := h.Directory.PayGroup(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get pay group", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayGroupDTO(group))
}

// ListGroupEmployees returns the members of a pay group.
func (h *Handler) ListGroupEmployees(w http.ResponseWriter, r *http.Request) {
	id := payroll.PayGroupID(chi.URLParam(r, "id"))
	employees, err := h.Directory.EmployeesInGroup(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RUN LIFECYCLE HANDLERS
// =============================================================================

// StartRun creates a draft run for the pay group's period.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	groupID := payroll.PayGroupID(chi.URLParam(r, "id"))

	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	periodEnd, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end format (use YYYY-MM-DD)", err)
		return
	}
	var payDate time.Time
	if req.PayDate != "" {
		if payDate, err = time.Parse(dateLayout, req.PayDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid pay_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	run, err := h.Engine.StartRun(r.Context(), groupID, periodEnd.UTC(), payDate)
	if err != nil {
		writeDomainError(w, "Failed to start run", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// ListRuns returns all runs for a pay group, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	groupID := payroll.PayGroupID(chi.URLParam(r, "id"))
	runs, err := h.Engine.Runs(r.Context(), groupID)
	if err != nil {
		writeDomainError(w, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run summary.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Engine.Run(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// GetRecords returns the run's per-employee records.
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.Engine.Records(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to get records", err)
		return
	}
	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecord returns a single employee's record on a run.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	empID := payroll.EmployeeID(chi.URLParam(r, "employeeID"))
	records, err := h.Engine.Records(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to get records", err)
		return
	}
	for _, rec := range records {
		if rec.EmployeeID == empID {
			writeJSON(w, http.StatusOK, toRecordDTO(rec))
			return
		}
	}
	writeError(w, http.StatusNotFound, "No record for employee on this run", nil)
}

// GetTotals returns the run's aggregate totals.
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Engine.Totals(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to get totals", err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(totals))
}

// UpsertInput patches one employee's input on a draft run.
func (h *Handler) UpsertInput(w http.ResponseWriter, r *http.Request) {
	empID := payroll.EmployeeID(chi.URLParam(r, "employeeID"))

	var patch payroll.InputPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Engine.UpsertInput(r.Context(), runID(r), empID, patch); err != nil {
		writeDomainError(w, "Failed to update input", err)
		return
	}
	run, err := h.Engine.Run(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to reload run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// Recalculate recomputes every record on the run.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Engine.Recalculate(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to recalculate run", err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(totals))
}

// Finalize commits balances and locks the run.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Finalize)
}

// Revert returns a pending run to draft and reverses its commits.
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.RevertToDraft)
}

// Approve approves the run and triggers paystub delivery.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ApprovedBy == "" {
		writeError(w, http.StatusBadRequest, "approved_by is required", nil)
		return
	}
	if err := h.Engine.Approve(r.Context(), runID(r), req.ApprovedBy); err != nil {
		writeDomainError(w, "Failed to approve run", err)
		return
	}
	h.respondWithRun(w, r)
}

// MarkPaid records disbursement.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.MarkPaid)
}

// Cancel abandons the run.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Cancel)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := payroll.EmployeeID(chi.URLParam(r, "id"))
	emp, err := h.Directory.Employee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// GetBalances returns the employee's committed ledger balances.
// Optional ?as_of=YYYY-MM-DD, defaulting to now.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := payroll.EmployeeID(chi.URLParam(r, "id"))

	asOf := time.Now().UTC()
	if s := r.URL.Query().Get("as_of"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed.UTC()
	}

	balances, err := h.Engine.Balances(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, "Failed to get balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalancesDTO(balances))
}

// =============================================================================
// HELPERS
// =============================================================================

func runID(r *http.Request) payroll.RunID {
	return payroll.RunID(chi.URLParam(r, "id"))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, payroll.RunID) error) {
	if err := fn(r.Context(), runID(r)); err != nil {
		writeDomainError(w, "Transition failed", err)
		return
	}
	h.respondWithRun(w, r)
}

func (h *Handler) respondWithRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Engine.Run(r.Context(), runID(r))
	if err != nil {
		writeDomainError(w, "Failed to reload run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, payroll.ErrConcurrentModification),
		errors.Is(err, payroll.ErrInvalidTransition),
		errors.Is(err, payroll.ErrInvalidState),
		errors.Is(err, payroll.ErrUnrecalculatedChanges),
		errors.Is(err, payroll.ErrRunExists),
		errors.Is(err, payroll.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, message, err)
	case payroll.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, message, err)
	case payroll.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
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
