package google

import (
	"testing"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/sheets"
)

func sampleReport() sheets.YearReport {
	r := sheets.YearReport{UserID: "7", Year: 2024}
	labels := []string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}
	for i := range r.Months {
		r.Months[i].Label = labels[i]
	}
	r.Months[0].Income = decimal.RequireFromString("1000")
	r.Months[0].Expenses = decimal.RequireFromString("500")
	r.Months[0].Invested = decimal.RequireFromString("100")
	r.Months[0].Balance = decimal.RequireFromString("400")
	r.Months[0].Goal = decimal.RequireFromString("150.5")
	r.Categories = []sheets.CategoryRow{
		{Name: "Mercado", Amount: decimal.RequireFromString("300")},
		{Name: "Outros", Amount: decimal.RequireFromString("200")},
	}
	return r
}

func TestRenderThenParse(t *testing.T) {
	r := sampleReport()
	values := renderReport(r)
	if len(values) != 1+12+2+2 {
		t.Fatalf("unexpected row count %d", len(values))
	}
	got, err := parseReport(values, r.UserID, r.Year)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("parsed report differs: %+v", got)
	}
}

func TestParseFormattedCells(t *testing.T) {
	values := renderReport(sampleReport())
	values[1][1] = "R$ 1.000,00"
	values[1][5] = "150,50"
	got, err := parseReport(values, "7", 2024)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Months[0].Income.Equal(decimal.RequireFromString("1000")) || !got.Months[0].Goal.Equal(decimal.RequireFromString("150.5")) {
		t.Fatalf("formatted cells misread: %+v", got.Months[0])
	}
}

func TestParseRejectsUnknownLayout(t *testing.T) {
	values := [][]any{{"Primary", "Secondary", "Jan"}}
	if _, err := parseReport(values, "7", 2024); err == nil {
		t.Fatal("expected header error")
	}
	if _, err := parseReport(renderReport(sampleReport())[:5], "7", 2024); err == nil {
		t.Fatal("expected short report error")
	}
}

func TestSheetName(t *testing.T) {
	cases := []struct {
		base string
		user string
		want string
	}{
		{"Resumo", "", "2024 Resumo"},
		{"Resumo", "7", "2024 Resumo 7"},
		{"2023 Resumo", "", "2023 Resumo"},
	}
	for _, c := range cases {
		if got := sheetName(c.base, core.ID(c.user), 2024); got != c.want {
			t.Errorf("sheetName(%q, %q) = %q, want %q", c.base, c.user, got, c.want)
		}
	}
	if quote("it's") != "'it''s'" {
		t.Errorf("quote")
	}
}
