// Package period resolves which competência is active and how periods group
// into years.
package period

import (
	"sort"
	"time"

	"financeiro/internal/core"
)

var monthLabels = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// YearGroup is one year of periods, months descending.
type YearGroup struct {
	Year    int           `json:"ano"`
	Periods []core.Period `json:"competencias"`
}

// FindActive returns the first period flagged active.
func FindActive(periods []core.Period) (core.Period, bool) {
	for _, p := range periods {
		if p.Active {
			return p, true
		}
	}
	return core.Period{}, false
}

// DistinctYears returns every year present exactly once, newest first.
func DistinctYears(periods []core.Period) []int {
	seen := make(map[int]struct{}, len(periods))
	years := make([]int, 0, len(periods))
	for _, p := range periods {
		if _, ok := seen[p.Year]; ok {
			continue
		}
		seen[p.Year] = struct{}{}
		years = append(years, p.Year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// ForYear returns the periods of year in ascending month order.
func ForYear(periods []core.Period, year int) []core.Period {
	out := make([]core.Period, 0, 12)
	for _, p := range periods {
		if p.Year == year {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// MonthIndex maps a period to 0..11. Out-of-range months wrap instead of
// failing, so month 13 lands on January and month 0 on December.
func MonthIndex(p core.Period) int {
	return ((p.Month-1)%12 + 12) % 12
}

// MonthLabel returns the pt-BR abbreviation of a month index.
func MonthLabel(index int) string {
	return monthLabels[((index%12)+12)%12]
}

// GroupByYear lists years newest first with months newest first inside each.
func GroupByYear(periods []core.Period) []YearGroup {
	years := DistinctYears(periods)
	groups := make([]YearGroup, 0, len(years))
	for _, y := range years {
		ps := ForYear(periods, y)
		for i, j := 0, len(ps)-1; i < j; i, j = i+1, j-1 {
			ps[i], ps[j] = ps[j], ps[i]
		}
		groups = append(groups, YearGroup{Year: y, Periods: ps})
	}
	return groups
}

// DefaultYear picks the year a screen opens on: the active period's year,
// else the year of the first period as loaded, else the calendar year.
func DefaultYear(periods []core.Period, now time.Time) int {
	if p, ok := FindActive(periods); ok {
		return p.Year
	}
	if len(periods) > 0 {
		return periods[0].Year
	}
	return now.Year()
}

// ActiveOrFirst mirrors the home screen: the active period, or the first
// loaded one when none is flagged.
func ActiveOrFirst(periods []core.Period) (core.Period, bool) {
	if p, ok := FindActive(periods); ok {
		return p, true
	}
	if len(periods) > 0 {
		return periods[0], true
	}
	return core.Period{}, false
}

// Activate returns a copy of periods where only the period (year, month) is
// active. ok is false when no such period exists; the input is not modified.
func Activate(periods []core.Period, year, month int) ([]core.Period, bool) {
	out := make([]core.Period, len(periods))
	found := false
	for i, p := range periods {
		p.Active = !found && p.Year == year && p.Month == month
		if p.Active {
			found = true
		}
		out[i] = p
	}
	return out, found
}
