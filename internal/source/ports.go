// Package source defines the collaborators that own financial records.
package source

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
)

// Kind names a record collection. The value is the collection's path on the
// external API.
type Kind string

const (
	KindIncome     Kind = "entradas"
	KindFixed      Kind = "gastos-fixos"
	KindVariable   Kind = "gastos-variaveis"
	KindInvestment Kind = "investimentos"
	KindGoal       Kind = "metas-investimentos"
	KindCategory   Kind = "categorias"
	KindPayment    Kind = "formas-pagamento"
	KindPeriod     Kind = "competencias"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnsupported = errors.New("operation not supported by backend")
)

// Ports for outbound adapters.
type (
	// Directory lists the per-user lookup tables.
	Directory interface {
		ListPeriods(ctx context.Context, userID core.ID) ([]core.Period, error)
		ListCategories(ctx context.Context, userID core.ID) ([]core.Category, error)
		ListPaymentMethods(ctx context.Context, userID core.ID) ([]core.PaymentMethod, error)
	}

	// RecordReader returns the records of one period.
	RecordReader interface {
		Directory
		ListIncome(ctx context.Context, periodID core.ID) ([]core.IncomeEntry, error)
		ListFixed(ctx context.Context, periodID core.ID) ([]core.FixedExpense, error)
		ListVariable(ctx context.Context, periodID core.ID) ([]core.VariableExpense, error)
		ListInvestments(ctx context.Context, periodID core.ID) ([]core.Investment, error)
		ListGoals(ctx context.Context, periodID core.ID) ([]core.InvestmentGoal, error)
	}

	// SummaryReader returns the pre-aggregated "resumo" of a period.
	SummaryReader interface {
		Summary(ctx context.Context, userID, periodID core.ID) (core.PeriodSummary, error)
	}

	// Mutator creates, updates and deletes records. Update of income and
	// expenses is field by field; investments and goals are updated whole.
	Mutator interface {
		CreatePeriod(ctx context.Context, userID core.ID, p core.Period) (core.Period, error)
		ActivatePeriod(ctx context.Context, userID core.ID, year, month int) error
		CreateCategory(ctx context.Context, userID core.ID, name string) (core.Category, error)
		CreatePaymentMethod(ctx context.Context, userID core.ID, kind string) (core.PaymentMethod, error)

		CreateIncome(ctx context.Context, userID core.ID, e core.IncomeEntry) (core.IncomeEntry, error)
		CreateFixed(ctx context.Context, userID core.ID, e core.FixedExpense) (core.FixedExpense, error)
		CreateVariable(ctx context.Context, userID core.ID, e core.VariableExpense) (core.VariableExpense, error)
		CreateInvestment(ctx context.Context, userID core.ID, i core.Investment) (core.Investment, error)
		CreateGoal(ctx context.Context, userID core.ID, g core.InvestmentGoal) (core.InvestmentGoal, error)

		UpdateField(ctx context.Context, kind Kind, id core.ID, change core.FieldChange) error
		UpdateInvestment(ctx context.Context, i core.Investment) error
		UpdateGoal(ctx context.Context, id core.ID, target decimal.Decimal) error

		Delete(ctx context.Context, kind Kind, id core.ID) error
	}

	// Backend is everything the services layer needs from a data source.
	Backend interface {
		RecordReader
		SummaryReader
		Mutator
		Ping(ctx context.Context) error
	}
)

// Load fetches every record of a period.
func Load(ctx context.Context, r RecordReader, periodID core.ID) (core.RecordSet, error) {
	rs := core.RecordSet{PeriodID: periodID}
	var err error
	if rs.Income, err = r.ListIncome(ctx, periodID); err != nil {
		return rs, err
	}
	if rs.Fixed, err = r.ListFixed(ctx, periodID); err != nil {
		return rs, err
	}
	if rs.Variable, err = r.ListVariable(ctx, periodID); err != nil {
		return rs, err
	}
	if rs.Invested, err = r.ListInvestments(ctx, periodID); err != nil {
		return rs, err
	}
	goals, err := r.ListGoals(ctx, periodID)
	if err != nil {
		return rs, err
	}
	if len(goals) > 0 {
		g := goals[0]
		rs.Goal = &g
	}
	return rs, nil
}
