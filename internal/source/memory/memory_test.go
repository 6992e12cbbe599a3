package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/source"
)

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(ctx, "u1")
	pms, _ := s.ListPaymentMethods(ctx, "u1")
	if len(cats) == 0 || len(pms) == 0 {
		t.Fatalf("expected defaults when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_categories.txt", "# header\nMercado\nLazer\nMercado\n\n")
	mustWrite("seed_payment_methods.txt", "Pix\nPix\nCrédito\n")

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(ctx, "u1")
	if len(cats) != 2 || cats[0].Name != "Mercado" || cats[1].Name != "Lazer" {
		t.Fatalf("unexpected cats: %+v", cats)
	}
	pms, _ = s.ListPaymentMethods(ctx, "u1")
	if len(pms) != 2 || pms[1].Kind != "Crédito" {
		t.Fatalf("unexpected payment methods: %+v", pms)
	}
}

func TestSummaryFromRecords(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"Mercado"}, []string{"Pix"})
	p, err := s.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 1, Active: true})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	cats, _ := s.ListCategories(ctx, "u1")
	pms, _ := s.ListPaymentMethods(ctx, "u1")
	date := core.NewDate(2024, 1, 10)

	if _, err := s.CreateIncome(ctx, "u1", core.IncomeEntry{PeriodID: p.ID, Date: date, Description: "Salário", Amount: decimal.NewFromInt(1000)}); err != nil {
		t.Fatalf("income: %v", err)
	}
	v, err := s.CreateVariable(ctx, "u1", core.VariableExpense{PeriodID: p.ID, CategoryID: cats[0].ID, PaymentMethodID: pms[0].ID, Date: date, Description: "Feira", Amount: decimal.NewFromInt(200)})
	if err != nil {
		t.Fatalf("variable: %v", err)
	}

	sum, err := s.Summary(ctx, "u1", p.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.Balance().Equal(decimal.NewFromInt(800)) {
		t.Fatalf("unexpected balance %s", sum.Balance())
	}

	if err := s.UpdateField(ctx, source.KindVariable, v.ID, core.FieldChange{Field: core.FieldAmount, Value: "250"}); err != nil {
		t.Fatalf("update field: %v", err)
	}
	sum, _ = s.Summary(ctx, "u1", p.ID)
	if !sum.Expenses.Variable.ByCategory[cats[0].ID].Equal(decimal.NewFromInt(250)) {
		t.Fatalf("field update not reflected: %+v", sum.Expenses.Variable)
	}

	if err := s.UpdateField(ctx, source.KindVariable, v.ID, core.FieldChange{Field: core.FieldAmount, Value: "-1"}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	if err := s.Delete(ctx, source.KindVariable, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, source.KindVariable, v.ID); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSummaryUnknownPeriod(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.Summary(context.Background(), "u1", "nope"); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActivatePeriodKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	s.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 1, Active: true})
	s.CreatePeriod(ctx, "u1", core.Period{Year: 2024, Month: 2})

	if err := s.ActivatePeriod(ctx, "u1", 2024, 2); err != nil {
		t.Fatalf("activate: %v", err)
	}
	ps, _ := s.ListPeriods(ctx, "u1")
	for _, p := range ps {
		if p.Active != (p.Month == 2) {
			t.Fatalf("unexpected active flags: %+v", ps)
		}
	}
	if err := s.ActivatePeriod(ctx, "u1", 1999, 1); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGoalOnePerPeriod(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	g, err := s.CreateGoal(ctx, "u1", core.InvestmentGoal{PeriodID: "p1", Target: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := s.CreateGoal(ctx, "u1", core.InvestmentGoal{PeriodID: "p1", Target: decimal.NewFromInt(60)}); err == nil {
		t.Fatalf("expected duplicate goal to be rejected")
	}
	if err := s.UpdateGoal(ctx, g.ID, decimal.NewFromInt(70)); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	goals, _ := s.ListGoals(ctx, "p1")
	if len(goals) != 1 || !goals[0].Target.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected goals %+v", goals)
	}
}
