package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amt(s string) core.Amount { return core.NewAmount(d(s)) }

func summary(income, fixed, variable, invested string) core.PeriodSummary {
	var s core.PeriodSummary
	s.Income.Total = amt(income)
	s.Expenses.Fixed.Total = amt(fixed)
	s.Expenses.Variable.Total = amt(variable)
	s.Investments.Total = amt(invested)
	return s
}

func twoMonths() (Summaries, []core.Period) {
	periods := []core.Period{
		{ID: "jan", Year: 2024, Month: 1},
		{ID: "feb", Year: 2024, Month: 2},
		{ID: "dec", Year: 2023, Month: 12},
	}
	s := Summaries{
		"jan": summary("1000", "300", "200", "100"),
		"feb": summary("1200", "400", "100", "50"),
		"dec": summary("999", "0", "0", "0"),
	}
	return s, periods
}

func assertEqual(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: got %s, want %s", name, got, want)
	}
}

func TestYearTotals(t *testing.T) {
	s, periods := twoMonths()
	var in2024 []core.Period
	for _, p := range periods {
		if p.Year == 2024 {
			in2024 = append(in2024, p)
		}
	}
	totals := YearTotals(s.Scope(in2024))
	assertEqual(t, "income", totals.Income, d("2200"))
	assertEqual(t, "expenses", totals.Expenses, d("1000"))
	assertEqual(t, "invested", totals.Invested, d("150"))
	assertEqual(t, "balance", totals.Balance, d("1050"))

	empty := YearTotals(nil)
	if !empty.Income.IsZero() || !empty.Balance.IsZero() {
		t.Fatalf("empty scope must be zero, got %+v", empty)
	}
}

func TestMonthlySeries(t *testing.T) {
	s, periods := twoMonths()
	series := MonthlySeries(s, periods, 2024)
	assertEqual(t, "jan balance", series.Balance[0], d("400"))
	assertEqual(t, "feb balance", series.Balance[1], d("650"))
	for m := 2; m < 12; m++ {
		if !series.Balance[m].IsZero() || !series.Income[m].IsZero() {
			t.Fatalf("month %d should be zero", m)
		}
	}
	if !series.Income[11].IsZero() {
		t.Fatalf("December 2023 leaked into 2024")
	}
}

func TestMonthlySeriesSkipsMissingSummaries(t *testing.T) {
	periods := []core.Period{{ID: "x", Year: 2024, Month: 5}}
	series := MonthlySeries(Summaries{}, periods, 2024)
	if !series.Balance[4].IsZero() {
		t.Fatalf("missing summary should contribute zero")
	}
}

func TestMonthlySeriesWrapsMonth(t *testing.T) {
	periods := []core.Period{{ID: "w", Year: 2024, Month: 13}}
	s := Summaries{"w": summary("10", "0", "0", "0")}
	series := MonthlySeries(s, periods, 2024)
	assertEqual(t, "wrapped", series.Income[0], d("10"))
}

func TestByCategorySumsToExpenses(t *testing.T) {
	s1 := summary("0", "150", "50", "0")
	s1.Expenses.Fixed.ByCategory = core.Breakdown{"1": amt("100"), "2": amt("50")}
	s1.Expenses.Variable.ByCategory = core.Breakdown{"1": amt("20"), "": amt("30")}
	s2 := summary("0", "10", "0", "0")
	s2.Expenses.Fixed.ByCategory = core.Breakdown{"c1": amt("10")}

	cats := []core.Category{{ID: "1", Name: "Mercado"}, {ID: "2", Name: "Lazer"}}
	got := ByCategory([]core.PeriodSummary{s1, s2}, cats)

	assertEqual(t, "Mercado", got.Totals["Mercado"], d("120"))
	assertEqual(t, "Lazer", got.Totals["Lazer"], d("50"))
	assertEqual(t, "Outros", got.Totals[OtherLabel], d("30"))
	assertEqual(t, "unknown id", got.Totals["c1"], d("10"))

	expenses := YearTotals([]core.PeriodSummary{s1, s2}).Expenses
	assertEqual(t, "sum", got.Total(), expenses)
}

func TestByCategoryVale(t *testing.T) {
	s := summary("1000", "200", "0", "0")
	s.Expenses.Fixed.ByCategory = core.Breakdown{"v": amt("150"), "m": amt("50")}
	cats := []core.Category{{ID: "v", Name: "Vale Alimentação"}, {ID: "m", Name: "Mercado"}}
	got := ByCategory([]core.PeriodSummary{s}, cats)
	assertEqual(t, "vale", got.Vale, d("150"))
	net := NetIncomeExcludingVale(YearTotals([]core.PeriodSummary{s}), got)
	assertEqual(t, "net", net, d("850"))
}

func TestByPaymentMethodPrefersCombined(t *testing.T) {
	methods := []core.PaymentMethod{{ID: "1", Kind: "Pix"}, {ID: "2", Kind: "Crédito"}}

	split := summary("0", "100", "60", "0")
	split.Expenses.Fixed.ByPaymentMethod = core.Breakdown{"1": amt("100")}
	split.Expenses.Variable.ByPaymentMethod = core.Breakdown{"2": amt("60")}

	combined := split.Clone()
	combined.PaymentTotals = core.Breakdown{"1": amt("70"), "2": amt("90")}

	got := ByPaymentMethod([]core.PeriodSummary{split}, methods)
	assertEqual(t, "split pix", got.Totals["Pix"], d("100"))
	assertEqual(t, "split credit", got.Totals["Crédito"], d("60"))

	got = ByPaymentMethod([]core.PeriodSummary{combined}, methods)
	assertEqual(t, "combined pix", got.Totals["Pix"], d("70"))
	assertEqual(t, "combined credit", got.Totals["Crédito"], d("90"))
}

func TestSortedLargestFirst(t *testing.T) {
	l := LabelTotals{Totals: map[string]decimal.Decimal{"b": d("10"), "a": d("10"), "c": d("30")}}
	got := l.Sorted()
	if got[0].Label != "c" || got[1].Label != "a" || got[2].Label != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestSummarizeAndPatch(t *testing.T) {
	rs := core.RecordSet{
		Income: []core.IncomeEntry{{Amount: d("1000")}},
		Fixed: []core.FixedExpense{
			{CategoryID: "1", PaymentMethodID: "p", Amount: d("300")},
		},
		Variable: []core.VariableExpense{
			{CategoryID: "2", PaymentMethodID: "p", Amount: d("200")},
		},
		Invested: []core.Investment{{Amount: d("100")}},
	}
	s := Summarize(rs)
	assertEqual(t, "balance", s.Balance(), d("400"))
	assertEqual(t, "fixed by pm", s.Expenses.Fixed.ByPaymentMethod["p"].Decimal, d("300"))

	s.PaymentTotals = core.Breakdown{"p": amt("500")}
	old := core.VariableExpense{CategoryID: "2", PaymentMethodID: "p", Amount: d("200")}
	updated := core.VariableExpense{CategoryID: "3", PaymentMethodID: "p", Amount: d("250")}
	patched := Patch(s,
		core.RecordSet{Variable: []core.VariableExpense{old}},
		core.RecordSet{Variable: []core.VariableExpense{updated}},
	)
	assertEqual(t, "variable", patched.Expenses.Variable.Total.Decimal, d("250"))
	if _, ok := patched.Expenses.Variable.ByCategory["2"]; ok {
		t.Fatalf("emptied category should be dropped")
	}
	assertEqual(t, "cat 3", patched.Expenses.Variable.ByCategory["3"].Decimal, d("250"))
	assertEqual(t, "combined", patched.PaymentTotals["p"].Decimal, d("550"))

	// original untouched
	assertEqual(t, "original", s.Expenses.Variable.Total.Decimal, d("200"))
}

func TestAvailableForInvestment(t *testing.T) {
	s := summary("1000", "300", "200", "400")
	assertEqual(t, "new", AvailableForInvestment(s, decimal.Zero), d("100"))
	assertEqual(t, "edit", AvailableForInvestment(s, d("400")), d("500"))
}

func TestGoalSeries(t *testing.T) {
	s, periods := twoMonths()
	goals := map[core.ID]core.InvestmentGoal{
		"jan": {PeriodID: "jan", Target: d("120")},
		"feb": {PeriodID: "feb", Target: d("0")},
	}
	got := GoalSeries(goals, s, periods, 2024)
	assertEqual(t, "jan goal", got.Goal[0], d("120"))
	assertEqual(t, "feb goal", got.Goal[1], decimal.Zero)
	assertEqual(t, "jan invested", got.Invested[0], d("100"))
	assertEqual(t, "feb invested", got.Invested[1], d("50"))
}
