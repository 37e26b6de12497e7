package payroll_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// flakyRates fails on demand so rate-provider outages can be simulated
// mid-test.
type flakyRates struct {
	fail bool
}

func (f *flakyRates) StatutoryRates(ctx context.Context, taxYear int, province payroll.Province) (payroll.StatutoryRates, error) {
	if f.fail {
		return payroll.StatutoryRates{}, payroll.ErrRateProviderUnavailable
	}
	return stubRates{}.StatutoryRates(ctx, taxYear, province)
}

// gatedRates parks the first lookup once gate is set, holding the
// caller inside the engine's run lock until released.
type gatedRates struct {
	gate    bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedRates) StatutoryRates(ctx context.Context, taxYear int, province payroll.Province) (payroll.StatutoryRates, error) {
	if g.gate {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return stubRates{}.StatutoryRates(ctx, taxYear, province)
}

type engineFixture struct {
	engine *payroll.Engine
	mem    *store.Memory
	rates  *flakyRates
}

func newTestEngine(t *testing.T, employees ...*payroll.Employee) *engineFixture {
	t.Helper()
	mem := store.NewMemory()
	mem.PutPayGroup(biweeklyGroup())
	for _, emp := range employees {
		mem.PutEmployee(emp)
	}
	rates := &flakyRates{}
	engine := payroll.NewEngine(payroll.EngineConfig{
		Runs:        mem,
		Directory:   mem,
		LedgerStore: mem,
		Rates:       rates,
		Tax:         flatTax{},
		Clock:       func() time.Time { return payroll.NewDate(2025, time.June, 14) },
	})
	return &engineFixture{engine: engine, mem: mem, rates: rates}
}

func accrualEmployee(id string) *payroll.Employee {
	emp := hourlyEmployee(id, "25.00")
	emp.Vacation = payroll.VacationConfig{PayoutMethod: payroll.VacationAccrual, Rate: dec("0.04")}
	return emp
}

func startRun(t *testing.T, f *engineFixture) *payroll.PayrollRun {
	t.Helper()
	run, err := f.engine.StartRun(context.Background(), "grp-biweekly",
		payroll.NewDate(2025, time.June, 13), time.Time{})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	return run
}

// =============================================================================
// START RUN
// =============================================================================

func TestEngine_StartRun_SeedsAndCalculates(t *testing.T) {
	// GIVEN: A bi-weekly group with one hourly employee
	// WHEN: A run is started for the period ending June 13
	// THEN: The draft carries a seeded 80-hour input and a calculated record
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)

	if run.Status != payroll.StatusDraft {
		t.Errorf("expected draft, got %s", run.Status)
	}
	if !run.Period.Start.Equal(payroll.NewDate(2025, time.May, 31)) {
		t.Errorf("expected period start May 31, got %s", run.Period.Start)
	}
	if !run.PayDate.Equal(run.Period.End) {
		t.Errorf("pay date should default to period end")
	}
	in := run.Inputs["emp-1"]
	if in == nil || !in.RegularHours.Equal(dec("80")) {
		t.Fatalf("expected 80 seeded hours, got %+v", in)
	}
	rec := run.Records["emp-1"]
	if rec == nil {
		t.Fatal("expected a calculated record")
	}
	if rec.GrossTotal.String() != "2000.00" {
		t.Errorf("expected gross 2000.00, got %s", rec.GrossTotal)
	}
	if run.Totals.RecordCount != 1 {
		t.Errorf("expected 1 record in totals, got %d", run.Totals.RecordCount)
	}
}

func TestEngine_StartRun_DuplicatePeriodRejected(t *testing.T) {
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	startRun(t, f)

	_, err := f.engine.StartRun(context.Background(), "grp-biweekly",
		payroll.NewDate(2025, time.June, 13), time.Time{})
	if !errors.Is(err, payroll.ErrRunExists) {
		t.Errorf("expected ErrRunExists, got %v", err)
	}
}

func TestEngine_StartRun_AfterCancelReusesPeriod(t *testing.T) {
	// GIVEN: A cancelled run for the period
	// WHEN: A fresh run is started for the same group and period
	// THEN: It succeeds under its own ID and runs through to finalize
	f := newTestEngine(t, accrualEmployee("emp-1"))
	first := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second, err := f.engine.StartRun(ctx, "grp-biweekly",
		payroll.NewDate(2025, time.June, 13), time.Time{})
	if err != nil {
		t.Fatalf("start run after cancel: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("restarted run must not reuse the cancelled run's ID %s", first.ID)
	}
	if second.Status != payroll.StatusDraft {
		t.Errorf("expected draft, got %s", second.Status)
	}

	if err := f.engine.Finalize(ctx, second.ID); err != nil {
		t.Fatalf("finalize restarted run: %v", err)
	}
	balances, err := f.engine.Balances(ctx, "emp-1", second.Period.End)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !balances.VacationHours.Equal(dec("3.2")) {
		t.Errorf("expected the restarted run's accrual only, got %s", balances.VacationHours)
	}
}

func TestEngine_StartRun_EmptyGroupRejected(t *testing.T) {
	f := newTestEngine(t)
	_, err := f.engine.StartRun(context.Background(), "grp-biweekly",
		payroll.NewDate(2025, time.June, 13), time.Time{})
	if !errors.Is(err, payroll.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// =============================================================================
// DETERMINISM AND CONSERVATION
// =============================================================================

func TestEngine_Recalculate_Deterministic(t *testing.T) {
	// GIVEN: A run with several employees and mixed inputs
	// WHEN: Recalculate runs twice with no input changes
	// THEN: The records are byte-identical
	f := newTestEngine(t,
		hourlyEmployee("emp-1", "25.00"),
		salariedEmployee("emp-2", "60000.00"),
		accrualEmployee("emp-3"),
	)
	run := startRun(t, f)
	ctx := context.Background()

	first, err := f.engine.Recalculate(ctx, run.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	firstRecords, _ := f.engine.Records(ctx, run.ID)
	firstJSON, _ := json.Marshal(firstRecords)

	second, err := f.engine.Recalculate(ctx, run.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	secondRecords, _ := f.engine.Records(ctx, run.ID)
	secondJSON, _ := json.Marshal(secondRecords)

	if first.Net.Cents() != second.Net.Cents() {
		t.Errorf("totals differ: %s vs %s", first.Net, second.Net)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Error("records must be identical across recalculations")
	}
}

func TestEngine_Records_Conservation(t *testing.T) {
	// Every record must satisfy gross - deductions = net exactly.
	f := newTestEngine(t,
		hourlyEmployee("emp-1", "25.00"),
		salariedEmployee("emp-2", "60000.00"),
	)
	run := startRun(t, f)

	records, err := f.engine.Records(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	for _, rec := range records {
		if rec.GrossTotal.Sub(rec.TotalDeductions).Cents() != rec.NetPay.Cents() {
			t.Errorf("%s: %s - %s != %s", rec.EmployeeID, rec.GrossTotal, rec.TotalDeductions, rec.NetPay)
		}
	}
	totals, _ := f.engine.Totals(context.Background(), run.ID)
	if totals.Gross.Sub(totals.TotalDeductions).Cents() != totals.Net.Cents() {
		t.Error("conservation must hold at the aggregate level too")
	}
}

// =============================================================================
// EDITING AND THE FINALIZE GUARD
// =============================================================================

func TestEngine_UpsertInput_MarksModifiedAndBlocksFinalize(t *testing.T) {
	// GIVEN: An edited input that has not been recalculated
	// WHEN: Finalize is attempted
	// THEN: It fails naming the stale employee; recalculating unblocks it
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)
	ctx := context.Background()

	hours := dec("72")
	if err := f.engine.UpsertInput(ctx, run.ID, "emp-1", payroll.InputPatch{RegularHours: &hours}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	err := f.engine.Finalize(ctx, run.ID)
	var stale *payroll.UnrecalculatedChangesError
	if !errors.As(err, &stale) {
		t.Fatalf("expected UnrecalculatedChangesError, got %v", err)
	}
	if len(stale.Employees) != 1 || stale.Employees[0] != "emp-1" {
		t.Errorf("expected emp-1 flagged, got %v", stale.Employees)
	}

	if _, err := f.engine.Recalculate(ctx, run.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize after recalculate: %v", err)
	}

	got, _ := f.engine.Run(ctx, run.ID)
	if got.Status != payroll.StatusPendingApproval {
		t.Errorf("expected pending_approval, got %s", got.Status)
	}
}

func TestEngine_UpsertInput_RejectedOutsideDraft(t *testing.T) {
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	hours := dec("72")
	err := f.engine.UpsertInput(ctx, run.ID, "emp-1", payroll.InputPatch{RegularHours: &hours})
	if !errors.Is(err, payroll.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestEngine_UpsertInput_UnknownEmployee(t *testing.T) {
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)

	hours := dec("72")
	err := f.engine.UpsertInput(context.Background(), run.ID, "emp-nope", payroll.InputPatch{RegularHours: &hours})
	if !errors.Is(err, payroll.ErrEmployeeNotFound) {
		t.Errorf("expected ErrEmployeeNotFound, got %v", err)
	}
}

// =============================================================================
// LEDGER COMMITS: FINALIZE, REVERT, CANCEL
// =============================================================================

func TestEngine_Finalize_CommitsBalances(t *testing.T) {
	// GIVEN: An accruing employee earning $2,000 with banked overtime
	// WHEN: The run is finalized
	// THEN: Vacation and time-bank balances move; drafts never moved them
	emp := accrualEmployee("emp-1")
	f := newTestEngine(t, emp)
	run := startRun(t, f)
	ctx := context.Background()

	ot := dec("10")
	choice := payroll.OvertimeBankTime
	if err := f.engine.UpsertInput(ctx, run.ID, "emp-1", payroll.InputPatch{
		OvertimeHours: &ot, OvertimeChoice: &choice,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := f.engine.Recalculate(ctx, run.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	// Draft state: nothing committed yet.
	before, err := f.engine.Balances(ctx, "emp-1", run.Period.End)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !before.VacationHours.IsZero() || !before.TimeBankHours.IsZero() {
		t.Error("draft runs must not move committed balances")
	}

	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	after, err := f.engine.Balances(ctx, "emp-1", run.Period.End)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	// 4% of $2,000 at a $25 equivalent = 3.2 hours / $80.
	if !after.VacationHours.Equal(dec("3.2")) {
		t.Errorf("expected 3.2 vacation hours, got %s", after.VacationHours)
	}
	if after.VacationDollars.String() != "80.00" {
		t.Errorf("expected 80.00 vacation dollars, got %s", after.VacationDollars)
	}
	if !after.TimeBankHours.Equal(dec("15")) {
		t.Errorf("expected 15 banked hours, got %s", after.TimeBankHours)
	}
}

func TestEngine_Revert_ReversesCommits(t *testing.T) {
	// GIVEN: A finalized run with committed balances
	// WHEN: The run reverts to draft
	// THEN: Every balance returns to its pre-finalize value
	f := newTestEngine(t, accrualEmployee("emp-1"))
	run := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := f.engine.RevertToDraft(ctx, run.ID); err != nil {
		t.Fatalf("revert: %v", err)
	}

	balances, err := f.engine.Balances(ctx, "emp-1", run.Period.End)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !balances.VacationHours.IsZero() || !balances.VacationDollars.IsZero() {
		t.Errorf("revert must restore balances, got %s h / %s", balances.VacationHours, balances.VacationDollars)
	}

	got, _ := f.engine.Run(ctx, run.ID)
	if got.Status != payroll.StatusDraft {
		t.Errorf("expected draft, got %s", got.Status)
	}
}

func TestEngine_FinalizeRevertFinalize_CommitsExactlyOnce(t *testing.T) {
	// Each finalize commits under a fresh sequence, so a full cycle
	// leaves exactly one net commit.
	f := newTestEngine(t, accrualEmployee("emp-1"))
	run := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize 1: %v", err)
	}
	if err := f.engine.RevertToDraft(ctx, run.ID); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize 2: %v", err)
	}

	balances, err := f.engine.Balances(ctx, "emp-1", run.Period.End)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !balances.VacationHours.Equal(dec("3.2")) {
		t.Errorf("expected a single net accrual of 3.2 hours, got %s", balances.VacationHours)
	}
}

func TestEngine_Cancel_FromPendingReversesLedger(t *testing.T) {
	f := newTestEngine(t, accrualEmployee("emp-1"))
	run := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := f.engine.Cancel(ctx, run.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	balances, _ := f.engine.Balances(ctx, "emp-1", run.Period.End)
	if !balances.VacationHours.IsZero() {
		t.Errorf("cancelling a pending run must reverse its commits, got %s", balances.VacationHours)
	}

	got, _ := f.engine.Run(ctx, run.ID)
	if got.Status != payroll.StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

// =============================================================================
// APPROVE AND PAY
// =============================================================================

func TestEngine_ApproveAndMarkPaid(t *testing.T) {
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Finalize(ctx, run.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := f.engine.Approve(ctx, run.ID, "manager@example.com"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, _ := f.engine.Run(ctx, run.ID)
	if got.Status != payroll.StatusApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}
	if got.ApprovedBy != "manager@example.com" || got.ApprovedAt == nil {
		t.Error("approval metadata missing")
	}
	if len(got.Delivery) != 1 || got.Delivery[0].Status != payroll.DeliverySent {
		t.Errorf("expected one sent paystub, got %+v", got.Delivery)
	}

	if err := f.engine.MarkPaid(ctx, run.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	got, _ = f.engine.Run(ctx, run.ID)
	if got.Status != payroll.StatusPaid || got.PaidAt == nil {
		t.Errorf("expected paid with timestamp, got %s", got.Status)
	}
}

// =============================================================================
// OUTAGES AND CONCURRENCY
// =============================================================================

func TestEngine_Recalculate_ProviderOutageLeavesLastGood(t *testing.T) {
	// GIVEN: A calculated run and a rate provider that starts failing
	// WHEN: Recalculate runs
	// THEN: The error surfaces and the previous records survive intact
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)
	ctx := context.Background()

	f.rates.fail = true
	_, err := f.engine.Recalculate(ctx, run.ID)
	if !errors.Is(err, payroll.ErrRateProviderUnavailable) {
		t.Fatalf("expected ErrRateProviderUnavailable, got %v", err)
	}

	records, err := f.engine.Records(ctx, run.ID)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || records[0].GrossTotal.String() != "2000.00" {
		t.Error("failed recalculation must leave the last good records")
	}
}

func TestEngine_LockLoserGetsConcurrentModification(t *testing.T) {
	// GIVEN: A recalculation parked inside the run lock
	// WHEN: Another state change races it on the same run
	// THEN: The loser fails fast instead of blocking or corrupting state
	mem := store.NewMemory()
	mem.PutPayGroup(biweeklyGroup())
	mem.PutEmployee(hourlyEmployee("emp-1", "25.00"))
	rates := &gatedRates{entered: make(chan struct{}), release: make(chan struct{})}
	engine := payroll.NewEngine(payroll.EngineConfig{
		Runs:        mem,
		Directory:   mem,
		LedgerStore: mem,
		Rates:       rates,
		Tax:         flatTax{},
	})
	ctx := context.Background()

	run, err := engine.StartRun(ctx, "grp-biweekly", payroll.NewDate(2025, time.June, 13), time.Time{})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	rates.gate = true
	done := make(chan error, 1)
	go func() {
		_, err := engine.Recalculate(ctx, run.ID)
		done <- err
	}()
	<-rates.entered

	if _, err := engine.Recalculate(ctx, run.ID); !errors.Is(err, payroll.ErrConcurrentModification) {
		t.Errorf("racing recalculate: expected ErrConcurrentModification, got %v", err)
	}
	if err := engine.Finalize(ctx, run.ID); !errors.Is(err, payroll.ErrConcurrentModification) {
		t.Errorf("racing finalize: expected ErrConcurrentModification, got %v", err)
	}

	close(rates.release)
	if err := <-done; err != nil {
		t.Fatalf("winning recalculate must still succeed: %v", err)
	}
}

func TestEngine_SaveRun_VersionConflict(t *testing.T) {
	// Optimistic versioning backs multi-process safety: a stale copy
	// cannot overwrite a newer one.
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	run := startRun(t, f)
	ctx := context.Background()

	stale := *run
	if _, err := f.engine.Recalculate(ctx, run.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	err := f.mem.SaveRun(ctx, &stale)
	if !errors.Is(err, payroll.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

// =============================================================================
// YTD ACROSS RUNS
// =============================================================================

func TestEngine_YTD_CarriesAcrossFinalizedRuns(t *testing.T) {
	// GIVEN: A finalized June 13 run
	// WHEN: The June 27 run is started
	// THEN: Its records see the prior period's committed YTD amounts
	f := newTestEngine(t, hourlyEmployee("emp-1", "25.00"))
	first := startRun(t, f)
	ctx := context.Background()

	if err := f.engine.Finalize(ctx, first.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	second, err := f.engine.StartRun(ctx, "grp-biweekly", payroll.NewDate(2025, time.June, 27), time.Time{})
	if err != nil {
		t.Fatalf("start second run: %v", err)
	}

	rec := second.Records["emp-1"]
	if rec == nil {
		t.Fatal("expected a record on the second run")
	}
	if rec.YTD.Gross.String() != "2000.00" {
		t.Errorf("expected committed YTD gross 2000.00, got %s", rec.YTD.Gross)
	}
	if rec.YTD.CPP.IsZero() {
		t.Error("expected committed YTD CPP from the first run")
	}
}
