package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/sheets"
)

var (
	monthHeader    = []any{"Mês", "Entradas", "Despesas", "Investido", "Saldo", "Meta"}
	categoryHeader = []any{"Categoria", "Total"}
)

// renderReport lays a report out as a values matrix: the month table, a
// blank row, then the category table.
func renderReport(r sheets.YearReport) [][]any {
	out := make([][]any, 0, 15+len(r.Categories))
	out = append(out, monthHeader)
	for _, m := range r.Months {
		out = append(out, []any{m.Label, num(m.Income), num(m.Expenses), num(m.Invested), num(m.Balance), num(m.Goal)})
	}
	out = append(out, []any{}, categoryHeader)
	for _, c := range r.Categories {
		out = append(out, []any{c.Name, num(c.Amount)})
	}
	return out
}

func num(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// parseReport reads back a matrix written by renderReport. Cells may come
// as numbers or formatted strings.
func parseReport(values [][]any, userID core.ID, year int) (sheets.YearReport, error) {
	r := sheets.YearReport{UserID: userID, Year: year}
	if len(values) == 0 {
		return r, fmt.Errorf("empty sheet")
	}
	headers := toStrings(values[0])
	cols := make([]int, len(monthHeader))
	for i, h := range monthHeader {
		if cols[i] = indexOf(headers, h.(string)); cols[i] == -1 {
			return r, fmt.Errorf("unexpected report header: missing %s; got headers=%v", h, headers)
		}
	}
	if len(values) < 13 {
		return r, fmt.Errorf("report has %d month rows, want 12", len(values)-1)
	}
	for m := 0; m < 12; m++ {
		row := values[m+1]
		r.Months[m] = sheets.MonthRow{
			Label:    safeGet(toStrings(row), cols[0]),
			Income:   cell(row, cols[1]),
			Expenses: cell(row, cols[2]),
			Invested: cell(row, cols[3]),
			Balance:  cell(row, cols[4]),
			Goal:     cell(row, cols[5]),
		}
	}

	inCategories := false
	for _, row := range values[13:] {
		name := safeGet(toStrings(row), 0)
		if !inCategories {
			inCategories = strings.EqualFold(name, categoryHeader[0].(string))
			continue
		}
		if name == "" {
			continue
		}
		r.Categories = append(r.Categories, sheets.CategoryRow{Name: name, Amount: cell(row, 1)})
	}
	return r, nil
}

// cell reads a number; strings may use pt-BR notation.
func cell(row []any, idx int) decimal.Decimal {
	if idx < 0 || idx >= len(row) {
		return decimal.Zero
	}
	if s, ok := row[idx].(string); ok {
		d, err := core.ParseAmount(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
		if err != nil {
			return decimal.Zero
		}
		return d.Round(2)
	}
	return core.ToAmount(row[idx]).Round(2)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
