// Package sheets defines the yearly report exported to spreadsheets.
package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
)

// MonthRow is one month of the yearly report.
type MonthRow struct {
	Label    string
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Invested decimal.Decimal
	Balance  decimal.Decimal
	Goal     decimal.Decimal
}

// CategoryRow is the year's total of one category.
type CategoryRow struct {
	Name   string
	Amount decimal.Decimal
}

// YearReport is what gets written for one user and year.
type YearReport struct {
	UserID     core.ID
	Year       int
	Months     [12]MonthRow
	Categories []CategoryRow
}

// Equal reports whether two reports carry the same figures.
func (r YearReport) Equal(o YearReport) bool {
	if r.Year != o.Year || len(r.Categories) != len(o.Categories) {
		return false
	}
	for i, m := range r.Months {
		n := o.Months[i]
		if m.Label != n.Label || !m.Income.Equal(n.Income) || !m.Expenses.Equal(n.Expenses) ||
			!m.Invested.Equal(n.Invested) || !m.Balance.Equal(n.Balance) || !m.Goal.Equal(n.Goal) {
			return false
		}
	}
	for i, c := range r.Categories {
		if c.Name != o.Categories[i].Name || !c.Amount.Equal(o.Categories[i].Amount) {
			return false
		}
	}
	return true
}

// Ports for outbound adapters.
type (
	ReportWriter interface {
		WriteYearReport(ctx context.Context, r YearReport) error
	}

	// ReportReader returns the report currently stored, if any.
	ReportReader interface {
		ReadYearReport(ctx context.Context, userID core.ID, year int) (YearReport, bool, error)
	}
)
