/*
aggregate.go - Run-level totals

PURPOSE:
  A pure, order-independent fold over the run's records. Recomputed on
  demand rather than maintained incrementally, so totals always mirror
  the record set exactly. Integer-cent sums make two aggregations of
  the same records bit-identical.
*/
package payroll

// RunTotals are the aggregate figures for one run.
type RunTotals struct {
	Gross           Money
	TotalDeductions Money
	Net             Money

	EmployerCPP  Money
	EmployerEI   Money
	EmployerCost Money // gross + employer statutory contributions

	RecordCount   int
	ModifiedCount int
}

// AggregateRun folds records into totals. Stable under recomputation.
func AggregateRun(records []*PayrollRecord) RunTotals {
	var t RunTotals
	for _, r := range records {
		t.Gross = t.Gross.Add(r.GrossTotal)
		t.TotalDeductions = t.TotalDeductions.Add(r.TotalDeductions)
		t.Net = t.Net.Add(r.NetPay)
		t.EmployerCPP = t.EmployerCPP.Add(r.Deductions.EmployerCPP)
		t.EmployerEI = t.EmployerEI.Add(r.Deductions.EmployerEI)
		t.RecordCount++
		if r.IsModified {
			t.ModifiedCount++
		}
	}
	t.EmployerCost = t.Gross.Add(t.EmployerCPP).Add(t.EmployerEI)
	return t
}
