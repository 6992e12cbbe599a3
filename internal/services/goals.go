package services

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/period"
	"financeiro/internal/source"
)

// Goal returns the investment goal of a period, or nil when it has none.
func (s *Service) Goal(ctx context.Context, userID, periodID core.ID) (*core.InvestmentGoal, error) {
	if _, err := s.ownedPeriod(ctx, userID, periodID); err != nil {
		return nil, err
	}
	return s.goalOf(ctx, periodID)
}

func (s *Service) goalOf(ctx context.Context, periodID core.ID) (*core.InvestmentGoal, error) {
	goals, err := s.backend.ListGoals(ctx, periodID)
	if err != nil {
		return nil, &BackendError{Op: "list goals", Err: err}
	}
	if len(goals) == 0 {
		return nil, nil
	}
	g := goals[0]
	return &g, nil
}

// SetGoal makes target the goal of a period. A non-positive target removes
// the existing goal, if any. Setting the same target again does nothing.
// The returned goal is nil when the period ends up without one.
func (s *Service) SetGoal(ctx context.Context, userID, periodID core.ID, target decimal.Decimal) (*core.InvestmentGoal, error) {
	if _, err := s.ownedPeriod(ctx, userID, periodID); err != nil {
		return nil, err
	}
	existing, err := s.goalOf(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.setGoal(ctx, userID, periodID, existing, target)
}

// SetGoalInput parses a typed amount ("1.234,56", "R$ 50") and sets it.
// Empty or unparseable input clears the goal.
func (s *Service) SetGoalInput(ctx context.Context, userID, periodID core.ID, raw string) (*core.InvestmentGoal, error) {
	return s.SetGoal(ctx, userID, periodID, core.ParseGoalInput(raw))
}

func (s *Service) setGoal(ctx context.Context, userID, periodID core.ID, existing *core.InvestmentGoal, target decimal.Decimal) (*core.InvestmentGoal, error) {
	switch {
	case !target.IsPositive():
		if existing == nil {
			return nil, nil
		}
		if err := s.backend.Delete(ctx, source.KindGoal, existing.ID); err != nil && !errors.Is(err, source.ErrNotFound) {
			return nil, &BackendError{Op: "delete goal", Err: err}
		}
		s.audit.LogMutation(ctx, log.OpDelete, string(source.KindGoal), string(userID), string(periodID), string(existing.ID))
		return nil, nil

	case existing != nil && existing.Target.Equal(target):
		return existing, nil

	case existing != nil:
		if err := s.backend.UpdateGoal(ctx, existing.ID, target); err != nil {
			return nil, &BackendError{Op: "update goal", Err: err}
		}
		g := *existing
		g.Target = target
		s.audit.LogMutation(ctx, log.OpUpdate, string(source.KindGoal), string(userID), string(periodID), string(g.ID))
		return &g, nil

	default:
		g, err := s.backend.CreateGoal(ctx, userID, core.InvestmentGoal{PeriodID: periodID, Target: target})
		if err != nil {
			return nil, &BackendError{Op: "create goal", Err: err}
		}
		s.audit.LogMutation(ctx, log.OpCreate, string(source.KindGoal), string(userID), string(periodID), string(g.ID))
		return &g, nil
	}
}

// BulkApplyGoal sets value as the goal of every period of year. With
// onlyEmpty, periods that already have a positive goal are left alone. It
// returns how many periods were written.
func (s *Service) BulkApplyGoal(ctx context.Context, userID core.ID, year int, value decimal.Decimal, onlyEmpty bool) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if !value.IsPositive() {
		return 0, invalid("valor_meta", core.ErrInvalidAmount)
	}
	return s.eachPeriodGoal(ctx, userID, year, func(ctx context.Context, p core.Period, existing *core.InvestmentGoal) (bool, error) {
		if onlyEmpty && existing != nil && existing.HasTarget() {
			return false, nil
		}
		if existing != nil && existing.Target.Equal(value) {
			return false, nil
		}
		_, err := s.setGoal(ctx, userID, p.ID, existing, value)
		return err == nil, err
	})
}

// ClearGoals deletes every goal of year and returns how many were removed.
func (s *Service) ClearGoals(ctx context.Context, userID core.ID, year int) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	return s.eachPeriodGoal(ctx, userID, year, func(ctx context.Context, p core.Period, existing *core.InvestmentGoal) (bool, error) {
		if existing == nil {
			return false, nil
		}
		_, err := s.setGoal(ctx, userID, p.ID, existing, decimal.Zero)
		return err == nil, err
	})
}

func (s *Service) eachPeriodGoal(ctx context.Context, userID core.ID, year int,
	fn func(context.Context, core.Period, *core.InvestmentGoal) (bool, error)) (int, error) {
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return 0, err
	}
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, p := range period.ForYear(ps, year) {
		p := p
		g.Go(func() error {
			existing, err := s.goalOf(gctx, p.ID)
			if err != nil {
				return err
			}
			ok, err := fn(gctx, p, existing)
			if ok {
				written.Add(1)
			}
			return err
		})
	}
	err = g.Wait()
	n := int(written.Load())
	s.logger.InfoContext(ctx, "Bulk goal update finished",
		log.FieldUserID, string(userID), log.FieldYear, year, log.FieldCount, n)
	return n, err
}
