package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIncomeDiffOnlyChangedFields(t *testing.T) {
	orig := IncomeEntry{
		ID:          "1",
		PeriodID:    "p",
		Date:        NewDate(2024, 1, 5),
		IncomeType:  "salario",
		Description: "Salário",
		Amount:      decimal.RequireFromString("1000.00"),
	}
	draft := orig
	if got := orig.Diff(draft); len(got) != 0 {
		t.Fatalf("expected no changes, got %v", got)
	}

	// Same value, different scale, is not a change.
	draft.Amount = decimal.RequireFromString("1000")
	if got := orig.Diff(draft); len(got) != 0 {
		t.Fatalf("expected no changes for equal amounts, got %v", got)
	}

	draft.Description = "Salário janeiro"
	draft.Date = NewDate(2024, 1, 6)
	got := orig.Diff(draft)
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %v", got)
	}
	if got[0].Field != FieldDate || got[0].Value != "2024-01-06" {
		t.Fatalf("unexpected first change %+v", got[0])
	}
	if got[1].Field != FieldDescription || got[1].Value != "Salário janeiro" {
		t.Fatalf("unexpected second change %+v", got[1])
	}
}

func TestFixedExpenseDiffAndApplyRoundTrip(t *testing.T) {
	orig := FixedExpense{
		ID:              "9",
		PeriodID:        "p",
		CategoryID:      "c1",
		PaymentMethodID: "m1",
		Date:            NewDate(2024, 2, 1),
		Description:     "Aluguel",
		Amount:          decimal.NewFromInt(1500),
	}
	draft := orig
	draft.Paid = true
	draft.CategoryID = "c2"
	draft.Amount = decimal.NewFromInt(1600)

	changes := orig.Diff(draft)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %v", changes)
	}

	applied := orig
	for _, c := range changes {
		if err := applied.Apply(c); err != nil {
			t.Fatalf("apply %+v: %v", c, err)
		}
	}
	if !applied.Amount.Equal(draft.Amount) || applied.Paid != draft.Paid || applied.CategoryID != draft.CategoryID {
		t.Fatalf("applied %+v, want %+v", applied, draft)
	}
}

func TestApplyDecodedJSONValues(t *testing.T) {
	var e VariableExpense
	for _, c := range []FieldChange{
		{FieldAmount, "12.30"},
		{FieldDate, "2024-05-01"},
		{FieldCategory, float64(7)},
		{FieldDescription, "Mercado"},
	} {
		if err := e.Apply(c); err != nil {
			t.Fatalf("apply %+v: %v", c, err)
		}
	}
	if !e.Amount.Equal(decimal.RequireFromString("12.3")) || e.CategoryID != "7" || e.Date.String() != "2024-05-01" {
		t.Fatalf("unexpected record %+v", e)
	}
	if err := e.Apply(FieldChange{FieldPaid, true}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("variable expenses have no paid flag, got %v", err)
	}
	var in IncomeEntry
	if err := in.Apply(FieldChange{FieldDate, "not a date"}); err == nil {
		t.Fatalf("expected date parse error")
	}
}
