package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/source"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "financeiro.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	p, err := repo.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 1, Active: true})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	cat, err := repo.CreateCategory(ctx, "u1", " Mercado ")
	if err != nil || cat.Name != "Mercado" {
		t.Fatalf("create category: %+v %v", cat, err)
	}
	pm, err := repo.CreatePaymentMethod(ctx, "u1", "Pix")
	if err != nil {
		t.Fatalf("create payment method: %v", err)
	}

	date := core.NewDate(2024, 1, 5)
	if _, err := repo.CreateIncome(ctx, "u1", core.IncomeEntry{PeriodID: p.ID, Date: date, IncomeType: "Salário", Description: "Jan", Amount: decimal.RequireFromString("1000.10")}); err != nil {
		t.Fatalf("income: %v", err)
	}
	fixed, err := repo.CreateFixed(ctx, "u1", core.FixedExpense{PeriodID: p.ID, CategoryID: cat.ID, PaymentMethodID: pm.ID, Date: date, Description: "Aluguel", Amount: decimal.NewFromInt(300)})
	if err != nil {
		t.Fatalf("fixed: %v", err)
	}
	if _, err := repo.CreateInvestment(ctx, "u1", core.Investment{PeriodID: p.ID, Date: date, Description: "CDB", Amount: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("investment: %v", err)
	}

	sum, err := repo.Summary(ctx, "u1", p.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.Balance().Equal(decimal.RequireFromString("600.10")) {
		t.Fatalf("unexpected balance %s", sum.Balance())
	}
	if !sum.Expenses.Fixed.ByPaymentMethod[pm.ID].Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected breakdown %+v", sum.Expenses.Fixed)
	}

	if err := repo.UpdateField(ctx, source.KindFixed, fixed.ID, core.FieldChange{Field: core.FieldPaid, Value: true}); err != nil {
		t.Fatalf("update paid: %v", err)
	}
	list, _ := repo.ListFixed(ctx, p.ID)
	if len(list) != 1 || !list[0].Paid || !list[0].Date.Equal(date.Time) {
		t.Fatalf("unexpected fixed list %+v", list)
	}

	if _, err := repo.Summary(ctx, "someone-else", p.ID); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("summary of another user's period must be not found, got %v", err)
	}
}

func TestRepositoryActivate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	repo.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 1, Active: true})
	repo.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 2})

	if err := repo.ActivatePeriod(ctx, "u1", 2024, 2); err != nil {
		t.Fatalf("activate: %v", err)
	}
	ps, _ := repo.ListPeriods(ctx, "u1")
	for _, p := range ps {
		if p.Active != (p.Month == 2) {
			t.Fatalf("unexpected flags %+v", ps)
		}
	}
	if err := repo.ActivatePeriod(ctx, "u1", 2030, 1); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ps, _ = repo.ListPeriods(ctx, "u1")
	active := 0
	for _, p := range ps {
		if p.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("failed activation must not clear the active period")
	}
}

func TestRepositoryGoals(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	p, _ := repo.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 3})

	g, err := repo.CreateGoal(ctx, "u1", core.InvestmentGoal{PeriodID: p.ID, Target: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := repo.CreateGoal(ctx, "u1", core.InvestmentGoal{PeriodID: p.ID, Target: decimal.NewFromInt(60)}); err == nil {
		t.Fatalf("second goal for a period must fail")
	}
	if err := repo.UpdateGoal(ctx, g.ID, decimal.NewFromInt(75)); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	goals, _ := repo.ListGoals(ctx, p.ID)
	if len(goals) != 1 || !goals[0].Target.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("unexpected goals %+v", goals)
	}
	if err := repo.Delete(ctx, source.KindGoal, g.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	if err := repo.Delete(ctx, source.KindGoal, g.ID); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
