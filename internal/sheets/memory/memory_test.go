package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"financeiro/internal/sheets"
)

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := sheets.YearReport{UserID: "u1", Year: 2024}
	r.Months[0] = sheets.MonthRow{Label: "Jan", Income: decimal.NewFromInt(1000)}
	r.Categories = []sheets.CategoryRow{{Name: "Mercado", Amount: decimal.NewFromInt(200)}}
	if err := s.WriteYearReport(ctx, r); err != nil {
		t.Fatal(err)
	}

	// the stored copy must not alias the caller's slice
	r.Categories[0].Name = "changed"

	got, ok, err := s.ReadYearReport(ctx, "u1", 2024)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if got.Categories[0].Name != "Mercado" {
		t.Fatalf("stored report aliased input: %+v", got.Categories)
	}
	if _, ok, _ := s.ReadYearReport(ctx, "u1", 2023); ok {
		t.Fatal("unexpected report for 2023")
	}
	if _, ok, _ := s.ReadYearReport(ctx, "u2", 2024); ok {
		t.Fatal("reports must be kept per user")
	}
	if s.Writes() != 1 {
		t.Fatalf("writes = %d", s.Writes())
	}
}

func TestRejectsReportWithoutUser(t *testing.T) {
	s := New()
	if err := s.WriteYearReport(context.Background(), sheets.YearReport{Year: 2024}); err == nil {
		t.Fatal("expected error")
	}
	if s.Writes() != 0 {
		t.Fatal("failed write must not count")
	}
}

func TestReportEqual(t *testing.T) {
	a := sheets.YearReport{Year: 2024}
	a.Months[3].Goal = decimal.RequireFromString("10.0")
	b := a
	b.Months[3].Goal = decimal.RequireFromString("10")
	if !a.Equal(b) {
		t.Fatal("numerically equal figures should compare equal")
	}
	b.Months[3].Goal = decimal.NewFromInt(11)
	if a.Equal(b) {
		t.Fatal("different goal should not compare equal")
	}
}
