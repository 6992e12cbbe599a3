// Package aggregate derives totals, breakdowns and monthly series from
// per-period summaries.
//
// Every function here is pure and total: a missing summary is a period that
// contributes zero, and no input makes them fail.
package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/period"
)

// OtherLabel groups breakdown entries that carry no category or method id.
const OtherLabel = "Outros"

// valeToken marks meal/food voucher categories.
const valeToken = "vale"

// Summaries maps period id to its loaded summary.
type Summaries map[core.ID]core.PeriodSummary

// Totals are the headline figures of a set of periods.
type Totals struct {
	Income   decimal.Decimal
	Fixed    decimal.Decimal
	Variable decimal.Decimal
	Expenses decimal.Decimal
	Invested decimal.Decimal
	Balance  decimal.Decimal
}

// Series holds one value per month, index 0 = January.
type Series struct {
	Income   [12]decimal.Decimal
	Expenses [12]decimal.Decimal
	Invested [12]decimal.Decimal
	Balance  [12]decimal.Decimal
}

// LabelAmount is one entry of a labelled breakdown.
type LabelAmount struct {
	Label  string
	Amount decimal.Decimal
}

// LabelTotals is a breakdown keyed by display label. Vale is the part of
// the total whose label matched the voucher token; it is also included in
// Totals.
type LabelTotals struct {
	Totals map[string]decimal.Decimal
	Vale   decimal.Decimal
}

// Scope returns the loaded summaries of periods, skipping any not loaded.
func (s Summaries) Scope(periods []core.Period) []core.PeriodSummary {
	out := make([]core.PeriodSummary, 0, len(periods))
	for _, p := range periods {
		if sum, ok := s[p.ID]; ok {
			out = append(out, sum)
		}
	}
	return out
}

// PeriodTotals computes the headline figures of a single summary.
func PeriodTotals(s core.PeriodSummary) Totals {
	t := Totals{
		Income:   s.Income.Total.Decimal,
		Fixed:    s.Expenses.Fixed.Total.Decimal,
		Variable: s.Expenses.Variable.Total.Decimal,
		Invested: s.Investments.Total.Decimal,
	}
	t.Expenses = t.Fixed.Add(t.Variable)
	t.Balance = t.Income.Sub(t.Expenses).Sub(t.Invested)
	return t
}

// Add sums two totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Income:   t.Income.Add(o.Income),
		Fixed:    t.Fixed.Add(o.Fixed),
		Variable: t.Variable.Add(o.Variable),
		Expenses: t.Expenses.Add(o.Expenses),
		Invested: t.Invested.Add(o.Invested),
		Balance:  t.Balance.Add(o.Balance),
	}
}

// YearTotals sums every summary in scope. An empty scope is all zero.
func YearTotals(scope []core.PeriodSummary) Totals {
	var t Totals
	for _, s := range scope {
		t = t.Add(PeriodTotals(s))
	}
	return t
}

// MonthlySeries places each period of year on its month index. Months with
// no period, or whose summary is not loaded, stay zero.
func MonthlySeries(s Summaries, periods []core.Period, year int) Series {
	var out Series
	for _, p := range periods {
		if p.Year != year {
			continue
		}
		sum, ok := s[p.ID]
		if !ok {
			continue
		}
		m := period.MonthIndex(p)
		t := PeriodTotals(sum)
		out.Income[m] = out.Income[m].Add(t.Income)
		out.Expenses[m] = out.Expenses[m].Add(t.Expenses)
		out.Invested[m] = out.Invested[m].Add(t.Invested)
	}
	for m := 0; m < 12; m++ {
		out.Balance[m] = out.Income[m].Sub(out.Expenses[m]).Sub(out.Invested[m])
	}
	return out
}

// ByCategory merges the fixed and variable category breakdowns of every
// summary in scope under their display label.
func ByCategory(scope []core.PeriodSummary, categories []core.Category) LabelTotals {
	names := make(map[core.ID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	out := LabelTotals{Totals: map[string]decimal.Decimal{}, Vale: decimal.Zero}
	for _, s := range scope {
		for _, b := range []core.Breakdown{s.Expenses.Fixed.ByCategory, s.Expenses.Variable.ByCategory} {
			for id, amt := range b {
				label := resolveLabel(id, names)
				out.add(label, amt.Decimal)
				if strings.Contains(strings.ToLower(label), valeToken) {
					out.Vale = out.Vale.Add(amt.Decimal)
				}
			}
		}
	}
	return out
}

// ByPaymentMethod merges payment-method breakdowns. For a period whose
// summary carries a combined breakdown, that figure is used as-is instead of
// the separate fixed and variable parts.
func ByPaymentMethod(scope []core.PeriodSummary, methods []core.PaymentMethod) LabelTotals {
	kinds := make(map[core.ID]string, len(methods))
	for _, m := range methods {
		kinds[m.ID] = m.Kind
	}
	out := LabelTotals{Totals: map[string]decimal.Decimal{}, Vale: decimal.Zero}
	for _, s := range scope {
		parts := []core.Breakdown{s.Expenses.Fixed.ByPaymentMethod, s.Expenses.Variable.ByPaymentMethod}
		if len(s.PaymentTotals) > 0 {
			parts = []core.Breakdown{s.PaymentTotals}
		}
		for _, b := range parts {
			for id, amt := range b {
				out.add(resolveLabel(id, kinds), amt.Decimal)
			}
		}
	}
	return out
}

// NetIncomeExcludingVale is total income minus the voucher part of expenses.
func NetIncomeExcludingVale(t Totals, byCategory LabelTotals) decimal.Decimal {
	return t.Income.Sub(byCategory.Vale)
}

func resolveLabel(id core.ID, names map[core.ID]string) string {
	if id.IsZero() {
		return OtherLabel
	}
	if name, ok := names[id]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return string(id)
}

func (l *LabelTotals) add(label string, amount decimal.Decimal) {
	l.Totals[label] = l.Totals[label].Add(amount)
}

// Total sums every label.
func (l LabelTotals) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range l.Totals {
		total = total.Add(v)
	}
	return total
}

// Sorted lists labels by amount, largest first; ties by label.
func (l LabelTotals) Sorted() []LabelAmount {
	out := make([]LabelAmount, 0, len(l.Totals))
	for k, v := range l.Totals {
		out = append(out, LabelAmount{Label: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Label < out[j].Label
	})
	return out
}
