/*
ledger.go - Append-only balance ledger

PURPOSE:
  The ledger is the committed source of truth for every balance the
  engine carries across runs: vacation (hours and dollars), banked
  overtime, and YTD statutory contributions. Balances are computed by
  replaying entries - there is no separate balance field to drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete. Corrections are reversals.
  2. IDEMPOTENT: every Finalize writes under keys derived from the run,
     employee, and finalize sequence, so a replayed commit is rejected
     rather than applied twice.
  3. DEFERRED COMMIT: Recalculate computes deltas but never appends.
     Only Finalize commits; RevertToDraft appends mirrored reversals.

WHY THIS SHAPE?
  Repeated recalculation of a draft run must not double-deduct vacation
  or double-count YTD. Separating "computed on the record" from
  "committed in the ledger" makes recomputation free and finalization
  exactly-once.

SEE ALSO:
  - store.go: LedgerStore persistence contract
  - engine.go: Builds the finalize/revert batches
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER KINDS AND ENTRIES
// =============================================================================

// LedgerKind identifies which balance an entry moves. Hours kinds
// carry hour deltas; the others carry dollar deltas.
type LedgerKind string

const (
	KindVacationHours   LedgerKind = "vacation_hours"
	KindVacationDollars LedgerKind = "vacation_dollars"
	KindTimeBankHours   LedgerKind = "time_bank_hours"
	KindYTDCPP          LedgerKind = "ytd_cpp"
	KindYTDCPP2         LedgerKind = "ytd_cpp2"
	KindYTDEI           LedgerKind = "ytd_ei"
	KindYTDGross        LedgerKind = "ytd_gross"
)

type LedgerEntryType string

const (
	EntryAccrual      LedgerEntryType = "accrual"
	EntryConsumption  LedgerEntryType = "consumption"
	EntryPayout       LedgerEntryType = "payout"
	EntryContribution LedgerEntryType = "contribution"
	EntryReversal     LedgerEntryType = "reversal"
	EntryAdjustment   LedgerEntryType = "adjustment"
)

// LedgerTx is one immutable ledger entry.
type LedgerTx struct {
	ID             string
	EmployeeID     EmployeeID
	Kind           LedgerKind
	Type           LedgerEntryType
	EffectiveAt    time.Time
	Delta          decimal.Decimal
	ReferenceID    string // owning run
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// LEDGER - Balance queries over a LedgerStore
// =============================================================================

type Ledger struct {
	Store LedgerStore
}

func NewLedger(store LedgerStore) *Ledger { return &Ledger{Store: store} }

// Append writes a batch atomically, rejecting duplicate idempotency
// keys. This is the only write path.
func (l *Ledger) Append(ctx context.Context, txs []LedgerTx) error {
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			return fmt.Errorf("%w: ledger tx %s missing idempotency key", ErrValidation, tx.ID)
		}
	}
	return l.Store.AppendLedger(ctx, txs)
}

// BalanceAsOf replays entries with EffectiveAt <= at.
func (l *Ledger) BalanceAsOf(ctx context.Context, emp EmployeeID, kind LedgerKind, at time.Time) (decimal.Decimal, error) {
	txs, err := l.Store.LoadLedger(ctx, emp, kind)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			continue
		}
		balance = balance.Add(tx.Delta)
	}
	return balance, nil
}

// MoneyBalanceAsOf is BalanceAsOf for dollar-denominated kinds.
func (l *Ledger) MoneyBalanceAsOf(ctx context.Context, emp EmployeeID, kind LedgerKind, at time.Time) (Money, error) {
	d, err := l.BalanceAsOf(ctx, emp, kind, at)
	if err != nil {
		return Money{}, err
	}
	return MoneyFromDecimal(d), nil
}

// YTDFor builds the statutory snapshot for a tax year from committed
// entries, seeded with prior-employer contributions for the hire year.
func (l *Ledger) YTDFor(ctx context.Context, emp *Employee, taxYear int) (YTDSnapshot, error) {
	span := YearSpan(taxYear)
	snapshot := YTDSnapshot{TaxYear: taxYear}

	sum := func(kind LedgerKind) (Money, error) {
		txs, err := l.Store.LoadLedger(ctx, emp.ID, kind)
		if err != nil {
			return Money{}, err
		}
		total := decimal.Zero
		for _, tx := range txs {
			if span.Contains(tx.EffectiveAt) {
				total = total.Add(tx.Delta)
			}
		}
		return MoneyFromDecimal(total), nil
	}

	var err error
	if snapshot.CPP, err = sum(KindYTDCPP); err != nil {
		return snapshot, err
	}
	if snapshot.CPP2, err = sum(KindYTDCPP2); err != nil {
		return snapshot, err
	}
	if snapshot.EI, err = sum(KindYTDEI); err != nil {
		return snapshot, err
	}
	if snapshot.Gross, err = sum(KindYTDGross); err != nil {
		return snapshot, err
	}

	if emp.PriorYTD != nil && emp.PriorYTD.TaxYear == taxYear {
		snapshot = snapshot.Add(*emp.PriorYTD)
	}
	return snapshot, nil
}
