/*
engine.go - Run orchestration

PURPOSE:
  The Engine wires the pipeline (inputs -> earnings -> deductions ->
  records -> totals) to the run lifecycle and the stores. It owns the
  single-writer-per-run discipline and the deferred ledger commit.

CONCURRENCY MODEL:
  At most one Recalculate/Finalize/transition may be in flight per run.
  Contenders take a per-run mutex with TryLock; the loser fails with
  ErrConcurrentModification and must retry. Input upserts block until
  no recalculation is in flight, then apply atomically.

ALL-OR-NOTHING RECOMPUTE:
  Recalculate always recomputes the WHOLE run (cross-record YTD and cap
  state make partial recompute unsound) into a fresh record set; the
  run is only updated after every record succeeded. A rate provider
  outage therefore leaves the run in its last-known-good state.

SEE ALSO:
  - run.go: The transition table this engine consults
  - ledger.go: Finalize/revert commit semantics
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// EngineConfig carries the engine's collaborators. Runs, Directory,
// LedgerStore, Rates, and Tax are required; the rest default to no-ops.
type EngineConfig struct {
	Runs        RunStore
	Directory   Directory
	LedgerStore LedgerStore
	Rates       RateProvider
	Tax         TaxEvaluator
	Holidays    HolidayProvider
	Paystubs    PaystubService
	Clock       func() time.Time
}

type Engine struct {
	runs      RunStore
	directory Directory
	ledger    *Ledger
	rates     RateProvider
	tax       TaxEvaluator
	holidays  HolidayProvider
	paystubs  PaystubService
	clock     func() time.Time

	mu    sync.Mutex
	locks map[RunID]*sync.Mutex
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		runs:      cfg.Runs,
		directory: cfg.Directory,
		ledger:    NewLedger(cfg.LedgerStore),
		rates:     cfg.Rates,
		tax:       cfg.Tax,
		holidays:  cfg.Holidays,
		paystubs:  cfg.Paystubs,
		clock:     cfg.Clock,
		locks:     make(map[RunID]*sync.Mutex),
	}
	if e.holidays == nil {
		e.holidays = NoHolidays{}
	}
	if e.paystubs == nil {
		e.paystubs = NoopPaystubs{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// Ledger exposes the engine's balance ledger for read-side queries.
func (e *Engine) Ledger() *Ledger { return e.ledger }

func (e *Engine) lockFor(id RunID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// =============================================================================
// START RUN
// =============================================================================

// StartRun creates a draft run for the pay group's period ending on
// periodEnd, seeds every employee's input with standard hours, and
// calculates all records once. A zero payDate defaults to periodEnd.
func (e *Engine) StartRun(ctx context.Context, group PayGroupID, periodEnd, payDate time.Time) (*PayrollRun, error) {
	pg, err := e.directory.PayGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	period := PeriodEnding(pg.Frequency, periodEnd)
	if payDate.IsZero() {
		payDate = period.End
	}

	if existing, err := e.runs.FindRunForPeriod(ctx, group, period); err == nil {
		return nil, fmt.Errorf("%w: run %s covers %s", ErrRunExists, existing.ID, period)
	} else if !errors.Is(err, ErrRunNotFound) {
		return nil, err
	}

	employees, err := e.directory.EmployeesInGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, &ValidationError{Field: "payGroup", Message: fmt.Sprintf("pay group %s has no employees", group)}
	}

	// A cancelled run keeps its row, so later attempts for the same
	// period take a numbered ID instead of colliding with it.
	baseID := fmt.Sprintf("run-%s-%s", group, period.End.Format("2006-01-02"))
	runID := RunID(baseID)
	for attempt := 2; ; attempt++ {
		if _, err := e.runs.GetRun(ctx, runID); errors.Is(err, ErrRunNotFound) {
			break
		} else if err != nil {
			return nil, err
		}
		runID = RunID(fmt.Sprintf("%s-%d", baseID, attempt))
	}

	now := e.clock()
	run := &PayrollRun{
		ID:         runID,
		PayGroupID: group,
		Period:     period,
		PayDate:    payDate,
		TaxYear:    period.End.Year(),
		Status:     StatusDraft,
		Records:    make(map[EmployeeID]*PayrollRecord),
		Inputs:     make(map[EmployeeID]*EmployeePayrollInput),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	standardHours := pg.Frequency.StandardHoursPerPeriod().RoundBank(2)
	for _, emp := range employees {
		if err := emp.Validate(); err != nil {
			return nil, err
		}
		input := NewInput(emp.ID)
		input.RegularHours = standardHours
		// Every hourly employee in scope must start with worked hours.
		if !emp.Compensation.Salaried() && !input.RegularHours.IsPositive() {
			return nil, &ValidationError{EmployeeID: emp.ID, Field: "regularHours",
				Message: "hourly employees need regular hours to start a run"}
		}
		run.Inputs[emp.ID] = input
	}

	records, err := e.computeRecords(ctx, run, pg)
	if err != nil {
		return nil, err
	}
	run.Records = records
	run.Totals = AggregateRun(run.SortedRecords())

	if err := e.runs.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// =============================================================================
// INPUT UPSERT
// =============================================================================

// UpsertInput applies a validated patch to one employee's input. Legal
// only while the run is in draft; marks the record modified. Blocks
// while a recalculation is in flight on the same run.
func (e *Engine) UpsertInput(ctx context.Context, runID RunID, emp EmployeeID, patch InputPatch) error {
	l := e.lockFor(runID)
	l.Lock()
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if !run.Status.Editable() {
		return &StateError{Op: "upsert input", RunID: runID, Status: run.Status}
	}
	input, ok := run.Inputs[emp]
	if !ok {
		return fmt.Errorf("%w: %s is not part of run %s", ErrEmployeeNotFound, emp, runID)
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}

	input.Apply(patch)
	if rec, ok := run.Records[emp]; ok {
		rec.IsModified = true
	}
	run.Totals = AggregateRun(run.SortedRecords())
	run.UpdatedAt = e.clock()
	return e.runs.SaveRun(ctx, run)
}

// =============================================================================
// RECALCULATE
// =============================================================================

// Recalculate recomputes every record in the run from current inputs.
// Whole-run, all-or-nothing: on any error the run is left untouched.
func (e *Engine) Recalculate(ctx context.Context, runID RunID) (RunTotals, error) {
	l := e.lockFor(runID)
	if !l.TryLock() {
		return RunTotals{}, fmt.Errorf("recalculate run %s: %w", runID, ErrConcurrentModification)
	}
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return RunTotals{}, err
	}
	if !run.Status.Allows(ActionRecalculate) {
		return RunTotals{}, &InvalidTransitionError{Action: ActionRecalculate, Status: run.Status}
	}
	pg, err := e.directory.PayGroup(ctx, run.PayGroupID)
	if err != nil {
		return RunTotals{}, err
	}

	records, err := e.computeRecords(ctx, run, pg)
	if err != nil {
		return RunTotals{}, err
	}
	run.Records = records
	run.Totals = AggregateRun(run.SortedRecords())
	run.UpdatedAt = e.clock()
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return RunTotals{}, err
	}
	return run.Totals, nil
}

// computeRecords runs the pipeline for every employee with an input.
// Nothing on the run is mutated; the caller installs the fresh set
// only after total success.
func (e *Engine) computeRecords(ctx context.Context, run *PayrollRun, pg *PayGroup) (map[EmployeeID]*PayrollRecord, error) {
	earningsComposer := &EarningsComposer{Holidays: e.holidays}
	deductionComposer := &DeductionComposer{Rates: e.rates, Tax: e.tax}

	fresh := make(map[EmployeeID]*PayrollRecord, len(run.Inputs))
	now := e.clock()
	for _, id := range sortedInputIDs(run.Inputs) {
		input := run.Inputs[id]
		emp, err := e.directory.Employee(ctx, id)
		if err != nil {
			return nil, err
		}

		vacationHours, err := e.ledger.BalanceAsOf(ctx, id, KindVacationHours, run.Period.End)
		if err != nil {
			return nil, fmt.Errorf("vacation balance for %s: %w", id, err)
		}
		earnings, err := earningsComposer.Compose(ctx, emp, pg, input, run.Period, vacationHours)
		if err != nil {
			return nil, err
		}

		ytd, err := e.ledger.YTDFor(ctx, emp, run.TaxYear)
		if err != nil {
			return nil, fmt.Errorf("ytd snapshot for %s: %w", id, err)
		}
		deductions, err := deductionComposer.Compose(ctx, emp, pg, earnings, ytd, run.TaxYear)
		if err != nil {
			return nil, err
		}

		fresh[id] = AssembleRecord(run.ID, emp, earnings, deductions, ytd, now)
	}
	return fresh, nil
}

func sortedInputIDs(inputs map[EmployeeID]*EmployeePayrollInput) []EmployeeID {
	ids := make([]EmployeeID, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// FINALIZE / REVERT
// =============================================================================

// Finalize freezes the run for approval. Precondition: no record is
// modified since the last calculation. Commits vacation, time-bank,
// and YTD movements to the ledger exactly once.
func (e *Engine) Finalize(ctx context.Context, runID RunID) error {
	l := e.lockFor(runID)
	if !l.TryLock() {
		return fmt.Errorf("finalize run %s: %w", runID, ErrConcurrentModification)
	}
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	next, err := run.Status.Next(ActionFinalize)
	if err != nil {
		return err
	}
	if run.HasModified() {
		return &UnrecalculatedChangesError{RunID: runID, Employees: run.ModifiedEmployees()}
	}

	run.FinalizeSeq++
	batch := e.commitBatch(run, false)
	if err := e.ledger.Append(ctx, batch); err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
		return fmt.Errorf("finalize run %s: %w", runID, err)
	}

	run.Status = next
	run.UpdatedAt = e.clock()
	return e.runs.SaveRun(ctx, run)
}

// RevertToDraft re-opens a pending run for editing, reversing the
// ledger movements the finalize committed.
func (e *Engine) RevertToDraft(ctx context.Context, runID RunID) error {
	l := e.lockFor(runID)
	if !l.TryLock() {
		return fmt.Errorf("revert run %s: %w", runID, ErrConcurrentModification)
	}
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	next, err := run.Status.Next(ActionRevertToDraft)
	if err != nil {
		return err
	}

	batch := e.commitBatch(run, true)
	if err := e.ledger.Append(ctx, batch); err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
		return fmt.Errorf("revert run %s: %w", runID, err)
	}

	run.Status = next
	run.UpdatedAt = e.clock()
	return e.runs.SaveRun(ctx, run)
}

// commitBatch derives the ledger movements for the run's records.
// Records are frozen once finalized, so the same batch (and the same
// idempotency keys) is reproducible for the reversal.
func (e *Engine) commitBatch(run *PayrollRun, reverse bool) []LedgerTx {
	var batch []LedgerTx
	now := e.clock()

	add := func(emp EmployeeID, kind LedgerKind, entryType LedgerEntryType, label string, delta decimal.Decimal, reason string) {
		if delta.IsZero() {
			return
		}
		key := fmt.Sprintf("run:%s:fin:%d:emp:%s:%s:%s", run.ID, run.FinalizeSeq, emp, kind, label)
		if reverse {
			key += ":rev"
			delta = delta.Neg()
			entryType = EntryReversal
		}
		batch = append(batch, LedgerTx{
			ID:             key,
			EmployeeID:     emp,
			Kind:           kind,
			Type:           entryType,
			EffectiveAt:    run.Period.End,
			Delta:          delta,
			ReferenceID:    string(run.ID),
			Reason:         reason,
			IdempotencyKey: key,
			CreatedAt:      now,
		})
	}

	for _, rec := range run.SortedRecords() {
		emp := rec.EmployeeID
		earnings := rec.Earnings

		add(emp, KindVacationHours, EntryConsumption, "taken", earnings.VacationTakenHours.Neg(), "vacation leave taken")
		add(emp, KindVacationDollars, EntryConsumption, "taken", earnings.VacationTakenAmount.Decimal().Neg(), "vacation leave taken")

		add(emp, KindVacationHours, EntryAccrual, "accrued", earnings.VacationAccruedHours, "vacation accrued")
		add(emp, KindVacationDollars, EntryAccrual, "accrued", earnings.VacationAccruedAmount.Decimal(), "vacation accrued")

		add(emp, KindVacationHours, EntryPayout, "payout", earnings.VacationPayoutHours.Neg(), "vacation payout")
		add(emp, KindVacationDollars, EntryPayout, "payout", earnings.vacationPayoutAmount().Decimal().Neg(), "vacation payout")

		add(emp, KindTimeBankHours, EntryAccrual, "banked", earnings.BankedHours, "overtime banked")

		ytd := rec.ThisPeriodYTD()
		add(emp, KindYTDCPP, EntryContribution, "ytd", ytd.CPP.Decimal(), "CPP withheld")
		add(emp, KindYTDCPP2, EntryContribution, "ytd", ytd.CPP2.Decimal(), "CPP2 withheld")
		add(emp, KindYTDEI, EntryContribution, "ytd", ytd.EI.Decimal(), "EI withheld")
		add(emp, KindYTDGross, EntryContribution, "ytd", ytd.Gross.Decimal(), "gross paid")
	}
	return batch
}

// =============================================================================
// APPROVE / PAY / CANCEL
// =============================================================================

// Approve moves a pending run to approved and triggers paystub
// generation. Individual delivery failures are reported on the run;
// only a total service failure aborts the approval.
func (e *Engine) Approve(ctx context.Context, runID RunID, approvedBy string) error {
	l := e.lockFor(runID)
	if !l.TryLock() {
		return fmt.Errorf("approve run %s: %w", runID, ErrConcurrentModification)
	}
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	next, err := run.Status.Next(ActionApprove)
	if err != nil {
		return err
	}

	results, err := e.paystubs.GenerateAndSend(ctx, run.SortedRecords())
	if err != nil {
		return fmt.Errorf("paystub delivery for run %s: %w", runID, err)
	}
	run.Delivery = results

	now := e.clock()
	run.Status = next
	run.ApprovedAt = &now
	run.ApprovedBy = approvedBy
	run.UpdatedAt = now
	return e.runs.SaveRun(ctx, run)
}

// MarkPaid records the terminal paid state.
func (e *Engine) MarkPaid(ctx context.Context, runID RunID) error {
	l := e.lockFor(runID)
	if !l.TryLock() {
		return fmt.Errorf("mark paid run %s: %w", runID, ErrConcurrentModification)
	}
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	next, err := run.Status.Next(ActionMarkPaid)
	if err != nil {
		return err
	}

	now := e.clock()
	run.Status = next
	run.PaidAt = &now
	run.UpdatedAt = now
	return e.runs.SaveRun(ctx, run)
}

// Cancel abandons a run before approval. A pending run's ledger
// commits are reversed first.
func (e *Engine) Cancel(ctx context.Context, runID RunID) error {
	l := e.lockFor(runID)
	if !l.TryLock() {
		return fmt.Errorf("cancel run %s: %w", runID, ErrConcurrentModification)
	}
	defer l.Unlock()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	next, err := run.Status.Next(ActionCancel)
	if err != nil {
		return err
	}

	if run.Status == StatusPendingApproval {
		batch := e.commitBatch(run, true)
		if err := e.ledger.Append(ctx, batch); err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
			return fmt.Errorf("cancel run %s: %w", runID, err)
		}
	}

	run.Status = next
	run.UpdatedAt = e.clock()
	return e.runs.SaveRun(ctx, run)
}

// =============================================================================
// READ SIDE
// =============================================================================

// Run returns the aggregate by ID.
func (e *Engine) Run(ctx context.Context, runID RunID) (*PayrollRun, error) {
	return e.runs.GetRun(ctx, runID)
}

// Runs lists a pay group's runs, newest period first.
func (e *Engine) Runs(ctx context.Context, group PayGroupID) ([]*PayrollRun, error) {
	return e.runs.ListRuns(ctx, group)
}

// Records returns the run's records in canonical order.
func (e *Engine) Records(ctx context.Context, runID RunID) ([]*PayrollRecord, error) {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.SortedRecords(), nil
}

// Totals returns the run's aggregate totals.
func (e *Engine) Totals(ctx context.Context, runID RunID) (RunTotals, error) {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return RunTotals{}, err
	}
	return run.Totals, nil
}

// EmployeeBalances is the committed balance view for one employee.
type EmployeeBalances struct {
	EmployeeID      EmployeeID
	AsOf            time.Time
	VacationHours   decimal.Decimal
	VacationDollars Money
	TimeBankHours   decimal.Decimal
}

// Balances reads the employee's committed ledger balances.
func (e *Engine) Balances(ctx context.Context, emp EmployeeID, asOf time.Time) (EmployeeBalances, error) {
	b := EmployeeBalances{EmployeeID: emp, AsOf: asOf}
	var err error
	if b.VacationHours, err = e.ledger.BalanceAsOf(ctx, emp, KindVacationHours, asOf); err != nil {
		return b, err
	}
	if b.VacationDollars, err = e.ledger.MoneyBalanceAsOf(ctx, emp, KindVacationDollars, asOf); err != nil {
		return b, err
	}
	if b.TimeBankHours, err = e.ledger.BalanceAsOf(ctx, emp, KindTimeBankHours, asOf); err != nil {
		return b, err
	}
	return b, nil
}
