package aggregate

import (
	"github.com/shopspring/decimal"

	"financeiro/internal/core"
)

// Summarize builds a period summary from raw records, the way the backend
// does for its "resumo". The combined payment breakdown is left empty.
func Summarize(rs core.RecordSet) core.PeriodSummary {
	var s core.PeriodSummary
	s.Expenses.Fixed.ByCategory = core.Breakdown{}
	s.Expenses.Fixed.ByPaymentMethod = core.Breakdown{}
	s.Expenses.Variable.ByCategory = core.Breakdown{}
	s.Expenses.Variable.ByPaymentMethod = core.Breakdown{}

	for _, e := range rs.Income {
		s.Income.Total = core.NewAmount(s.Income.Total.Add(e.Amount))
	}
	for _, e := range rs.Fixed {
		s.Expenses.Fixed.Total = core.NewAmount(s.Expenses.Fixed.Total.Add(e.Amount))
		s.Expenses.Fixed.ByCategory.Add(e.CategoryID, e.Amount)
		s.Expenses.Fixed.ByPaymentMethod.Add(e.PaymentMethodID, e.Amount)
	}
	for _, e := range rs.Variable {
		s.Expenses.Variable.Total = core.NewAmount(s.Expenses.Variable.Total.Add(e.Amount))
		s.Expenses.Variable.ByCategory.Add(e.CategoryID, e.Amount)
		s.Expenses.Variable.ByPaymentMethod.Add(e.PaymentMethodID, e.Amount)
	}
	for _, i := range rs.Invested {
		s.Investments.Total = core.NewAmount(s.Investments.Total.Add(i.Amount))
	}
	return s
}

// Patch returns a copy of s with the records in removed taken out and the
// records in added put in. Mutation handlers use it to reflect a change in a
// cached summary before the backend confirms it.
func Patch(s core.PeriodSummary, removed, added core.RecordSet) core.PeriodSummary {
	out := s.Clone()
	plus := Summarize(added)
	minus := Summarize(removed)

	out.Income.Total = core.NewAmount(out.Income.Total.Add(plus.Income.Total.Decimal).Sub(minus.Income.Total.Decimal))
	out.Investments.Total = core.NewAmount(out.Investments.Total.Add(plus.Investments.Total.Decimal).Sub(minus.Investments.Total.Decimal))
	patchGroup(&out.Expenses.Fixed, plus.Expenses.Fixed, minus.Expenses.Fixed)
	patchGroup(&out.Expenses.Variable, plus.Expenses.Variable, minus.Expenses.Variable)

	if len(out.PaymentTotals) > 0 {
		for _, g := range []core.ExpenseGroup{plus.Expenses.Fixed, plus.Expenses.Variable} {
			mergeInto(out.PaymentTotals, g.ByPaymentMethod, decimal.NewFromInt(1))
		}
		for _, g := range []core.ExpenseGroup{minus.Expenses.Fixed, minus.Expenses.Variable} {
			mergeInto(out.PaymentTotals, g.ByPaymentMethod, decimal.NewFromInt(-1))
		}
	}
	return out
}

func patchGroup(dst *core.ExpenseGroup, plus, minus core.ExpenseGroup) {
	dst.Total = core.NewAmount(dst.Total.Add(plus.Total.Decimal).Sub(minus.Total.Decimal))
	if dst.ByCategory == nil {
		dst.ByCategory = core.Breakdown{}
	}
	if dst.ByPaymentMethod == nil {
		dst.ByPaymentMethod = core.Breakdown{}
	}
	mergeInto(dst.ByCategory, plus.ByCategory, decimal.NewFromInt(1))
	mergeInto(dst.ByCategory, minus.ByCategory, decimal.NewFromInt(-1))
	mergeInto(dst.ByPaymentMethod, plus.ByPaymentMethod, decimal.NewFromInt(1))
	mergeInto(dst.ByPaymentMethod, minus.ByPaymentMethod, decimal.NewFromInt(-1))
}

func mergeInto(dst, src core.Breakdown, sign decimal.Decimal) {
	for id, amt := range src {
		dst.Add(id, amt.Mul(sign))
		if dst[id].IsZero() {
			delete(dst, id)
		}
	}
}

// AvailableForInvestment is the balance of a period after the investment
// being replaced is credited back. For a new investment pass a zero
// replaced amount.
func AvailableForInvestment(s core.PeriodSummary, replaced decimal.Decimal) decimal.Decimal {
	return s.Balance().Add(replaced)
}
