package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"financeiro/internal/aggregate"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/palette"
	"financeiro/internal/period"
)

// YearDashboard is everything the year view shows.
type YearDashboard struct {
	Year            int
	Years           []int
	Periods         []core.Period
	Totals          aggregate.Totals
	Series          aggregate.Series
	ByCategory      []aggregate.LabelAmount
	ByPaymentMethod []aggregate.LabelAmount
	Vale            decimal.Decimal
	NetIncome       decimal.Decimal
	CategoryColors  map[string]string
	PaymentColors   map[string]string
	// Warnings lists what failed to load. Missing summaries count as zero and
	// a missing lookup table leaves raw ids as labels.
	Warnings []string
}

// PeriodDashboard is the detail of one competência.
type PeriodDashboard struct {
	Period          core.Period
	Totals          aggregate.Totals
	ByCategory      []aggregate.LabelAmount
	ByPaymentMethod []aggregate.LabelAmount
	Available       decimal.Decimal
	Goal            *core.InvestmentGoal
	Warnings        []string
}

// GoalDashboard compares monthly goals with what was invested.
type GoalDashboard struct {
	Year   int
	Labels [12]string
	aggregate.GoalComparison
	// Warnings names the periods whose goal or summary failed to load.
	Warnings []string
}

// lookups loads both label tables. A table that fails to load stays empty
// and its error comes back as a warning.
func (s *Service) lookups(ctx context.Context, userID core.ID) ([]core.Category, []core.PaymentMethod, []string) {
	var (
		cats            []core.Category
		methods         []core.PaymentMethod
		catErr, methErr error
		g               errgroup.Group
	)
	g.Go(func() error {
		cats, catErr = s.Categories(ctx, userID)
		return nil
	})
	g.Go(func() error {
		methods, methErr = s.PaymentMethods(ctx, userID)
		return nil
	})
	_ = g.Wait()

	var warnings []string
	for _, err := range []error{catErr, methErr} {
		if err != nil {
			s.logger.WarnContext(ctx, "Lookup table unavailable, labels fall back to ids", log.FieldError, err.Error())
			warnings = append(warnings, err.Error())
		}
	}
	return cats, methods, warnings
}

// YearDashboard loads the summaries of year (0 means the default year) and
// aggregates them. A newer year request by the same user makes this one
// fail with session.ErrStaleSelection.
func (s *Service) YearDashboard(ctx context.Context, userID core.ID, year int) (YearDashboard, error) {
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return YearDashboard{}, err
	}
	if year == 0 {
		year = period.DefaultYear(ps, s.now())
	}
	cats, methods, warnings := s.lookups(ctx, userID)
	view, err := s.sessions.Get(userID).LoadYear(ctx, ps, year)
	if err != nil {
		return YearDashboard{}, err
	}

	scope := view.Summaries.Scope(view.Periods)
	totals := aggregate.YearTotals(scope)
	byCat := aggregate.ByCategory(scope, cats)
	byPM := aggregate.ByPaymentMethod(scope, methods)

	d := YearDashboard{
		Year:            year,
		Years:           period.DistinctYears(ps),
		Periods:         view.Periods,
		Totals:          totals,
		Series:          aggregate.MonthlySeries(view.Summaries, view.Periods, year),
		ByCategory:      byCat.Sorted(),
		ByPaymentMethod: byPM.Sorted(),
		Vale:            byCat.Vale,
		NetIncome:       aggregate.NetIncomeExcludingVale(totals, byCat),
		CategoryColors:  make(map[string]string, len(byCat.Totals)),
		PaymentColors:   make(map[string]string, len(byPM.Totals)),
		Warnings:        warnings,
	}
	for label := range byCat.Totals {
		d.CategoryColors[label] = palette.CategoryColor(label)
	}
	for label := range byPM.Totals {
		d.PaymentColors[label] = palette.ColorForID(label)
	}
	for _, e := range view.Errors {
		d.Warnings = append(d.Warnings, e.Error())
	}
	return d, nil
}

// PeriodDashboard summarizes one period. A summary that fails to load
// counts as zero and a goal that fails to load as no goal; both failures
// are listed in Warnings.
func (s *Service) PeriodDashboard(ctx context.Context, userID, periodID core.ID) (PeriodDashboard, error) {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return PeriodDashboard{}, err
	}
	cats, methods, warnings := s.lookups(ctx, userID)
	sum, err := s.sessions.Get(userID).Summary(ctx, periodID)
	if err != nil {
		sum = core.PeriodSummary{}
		warnings = append(warnings, err.Error())
	}
	goal, err := s.goalOf(ctx, periodID)
	if err != nil {
		goal = nil
		warnings = append(warnings, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return PeriodDashboard{}, err
	}
	if len(warnings) > 0 {
		s.logger.WarnContext(ctx, "Period dashboard is partial",
			log.FieldPeriodID, string(periodID), log.FieldCount, len(warnings))
	}
	scope := []core.PeriodSummary{sum}
	return PeriodDashboard{
		Period:          p,
		Totals:          aggregate.PeriodTotals(sum),
		ByCategory:      aggregate.ByCategory(scope, cats).Sorted(),
		ByPaymentMethod: aggregate.ByPaymentMethod(scope, methods).Sorted(),
		Available:       aggregate.AvailableForInvestment(sum, decimal.Zero),
		Goal:            goal,
		Warnings:        warnings,
	}, nil
}

// GoalComparison builds the goal-versus-invested chart of year.
func (s *Service) GoalComparison(ctx context.Context, userID core.ID, year int) (GoalDashboard, error) {
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return GoalDashboard{}, err
	}
	if year == 0 {
		year = period.DefaultYear(ps, s.now())
	}
	view, err := s.sessions.Get(userID).LoadYear(ctx, ps, year)
	if err != nil {
		return GoalDashboard{}, err
	}

	goals := make([]*core.InvestmentGoal, len(view.Periods))
	failed := make([]error, len(view.Periods))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, p := range view.Periods {
		i, p := i, p
		g.Go(func() error {
			goals[i], failed[i] = s.goalOf(ctx, p.ID)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return GoalDashboard{}, err
	}

	var warnings []string
	for _, e := range view.Errors {
		warnings = append(warnings, e.Error())
	}
	byPeriod := make(map[core.ID]core.InvestmentGoal, len(goals))
	for i, goal := range goals {
		if failed[i] != nil {
			warnings = append(warnings, fmt.Sprintf("goal of period %s: %v", view.Periods[i].ID, failed[i]))
			continue
		}
		if goal != nil {
			byPeriod[view.Periods[i].ID] = *goal
		}
	}

	out := GoalDashboard{
		Year:           year,
		GoalComparison: aggregate.GoalSeries(byPeriod, view.Summaries, view.Periods, year),
		Warnings:       warnings,
	}
	for m := range out.Labels {
		out.Labels[m] = period.MonthLabel(m)
	}
	return out, nil
}
