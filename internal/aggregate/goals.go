package aggregate

import (
	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/period"
)

// GoalComparison is the goal-versus-invested chart of one year.
// Goal[m] is 0 when the month has no goal.
type GoalComparison struct {
	Goal     [12]decimal.Decimal
	Invested [12]decimal.Decimal
}

// GoalSeries builds the two parallel monthly series for year. goals is keyed
// by period id; non-positive targets count as no goal.
func GoalSeries(goals map[core.ID]core.InvestmentGoal, s Summaries, periods []core.Period, year int) GoalComparison {
	var out GoalComparison
	for _, p := range periods {
		if p.Year != year {
			continue
		}
		m := period.MonthIndex(p)
		if g, ok := goals[p.ID]; ok && g.HasTarget() {
			out.Goal[m] = out.Goal[m].Add(g.Target)
		}
		if sum, ok := s[p.ID]; ok {
			out.Invested[m] = out.Invested[m].Add(sum.Investments.Total.Decimal)
		}
	}
	return out
}
