package period

import (
	"testing"
	"time"

	"financeiro/internal/core"
)

func samplePeriods() []core.Period {
	return []core.Period{
		{ID: "1", Year: 2023, Month: 12},
		{ID: "2", Year: 2024, Month: 3},
		{ID: "3", Year: 2024, Month: 1, Active: true},
		{ID: "4", Year: 2022, Month: 6},
		{ID: "5", Year: 2024, Month: 2},
	}
}

func TestFindActive(t *testing.T) {
	p, ok := FindActive(samplePeriods())
	if !ok || p.ID != "3" {
		t.Fatalf("expected period 3, got %+v ok=%v", p, ok)
	}
	if _, ok := FindActive([]core.Period{{ID: "x"}}); ok {
		t.Fatalf("expected no active period")
	}
	if _, ok := FindActive(nil); ok {
		t.Fatalf("expected no active period for nil")
	}
}

func TestDistinctYearsUniqueAndDescending(t *testing.T) {
	got := DistinctYears(samplePeriods())
	want := []int{2024, 2023, 2022}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if got := DistinctYears(nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestForYearAscending(t *testing.T) {
	got := ForYear(samplePeriods(), 2024)
	if len(got) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(got))
	}
	for i, m := range []int{1, 2, 3} {
		if got[i].Month != m {
			t.Fatalf("index %d: month %d, want %d", i, got[i].Month, m)
		}
	}
	if got := ForYear(samplePeriods(), 1999); len(got) != 0 {
		t.Fatalf("expected no periods, got %v", got)
	}
}

func TestMonthIndexWraps(t *testing.T) {
	cases := map[int]int{1: 0, 12: 11, 13: 0, 0: 11, -1: 10, 25: 0, -11: 0, -12: 11}
	for month, want := range cases {
		if got := MonthIndex(core.Period{Month: month}); got != want {
			t.Fatalf("MonthIndex(%d) = %d, want %d", month, got, want)
		}
	}
	if MonthIndex(core.Period{Month: 13}) != MonthIndex(core.Period{Month: 1}) {
		t.Fatalf("month 13 must wrap onto January")
	}
}

func TestMonthLabel(t *testing.T) {
	if MonthLabel(0) != "Jan" || MonthLabel(11) != "Dez" || MonthLabel(12) != "Jan" || MonthLabel(-1) != "Dez" {
		t.Fatalf("unexpected labels")
	}
}

func TestGroupByYear(t *testing.T) {
	groups := GroupByYear(samplePeriods())
	if len(groups) != 3 || groups[0].Year != 2024 {
		t.Fatalf("unexpected groups %+v", groups)
	}
	months := []int{}
	for _, p := range groups[0].Periods {
		months = append(months, p.Month)
	}
	if len(months) != 3 || months[0] != 3 || months[2] != 1 {
		t.Fatalf("expected months descending, got %v", months)
	}
}

func TestDefaultYear(t *testing.T) {
	now := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	if got := DefaultYear(samplePeriods(), now); got != 2024 {
		t.Fatalf("active year expected, got %d", got)
	}
	noActive := []core.Period{{Year: 2021, Month: 1}, {Year: 2022, Month: 1}}
	if got := DefaultYear(noActive, now); got != 2021 {
		t.Fatalf("first loaded year expected, got %d", got)
	}
	if got := DefaultYear(nil, now); got != 2030 {
		t.Fatalf("calendar year expected, got %d", got)
	}
}

func TestActivateKeepsAtMostOneActive(t *testing.T) {
	in := append(samplePeriods(), core.Period{ID: "6", Year: 2024, Month: 2, Active: true})
	out, ok := Activate(in, 2024, 2)
	if !ok {
		t.Fatalf("expected period to be found")
	}
	active := 0
	for _, p := range out {
		if p.Active {
			active++
			if p.ID != "5" {
				t.Fatalf("wrong period activated: %+v", p)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active period, got %d", active)
	}
	if !in[2].Active {
		t.Fatalf("input must not be modified")
	}
	if _, ok := Activate(in, 1990, 1); ok {
		t.Fatalf("expected missing period")
	}
}
