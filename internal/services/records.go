package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"financeiro/internal/aggregate"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/source"
)

// change describes one mutation of a period's records. The summary of the
// period is patched with removed/added before call runs and restored if it
// fails.
type change struct {
	userID  core.ID
	period  core.Period
	kind    source.Kind
	op      string
	removed core.RecordSet
	added   core.RecordSet
	call    func() (core.ID, error)
}

func (s *Service) apply(ctx context.Context, c change) error {
	sess := s.sessions.Get(c.userID)
	snap := sess.Summaries().Patch(c.period.ID, func(sum core.PeriodSummary) core.PeriodSummary {
		return aggregate.Patch(sum, c.removed, c.added)
	})

	recordID, err := c.call()
	if err != nil {
		sess.Summaries().Restore(snap)
		s.audit.LogError(ctx, "Mutation failed", err, log.ComponentServices, c.op,
			log.NewFields().WithRecord(string(c.userID), string(c.period.ID), string(recordID), string(c.kind)))
		return &BackendError{Op: fmt.Sprintf("%s %s", c.op, c.kind), Err: err}
	}

	sess.Summaries().Invalidate(c.period.ID)
	s.publish(ctx, c.userID, c.period)
	s.audit.LogMutation(ctx, c.op, string(c.kind), string(c.userID), string(c.period.ID), string(recordID))
	return nil
}

func (s *Service) publish(ctx context.Context, userID core.ID, p core.Period) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPeriodChanged(ctx, userID, p.ID, p.Year); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish period change",
			log.FieldPeriodID, string(p.ID), log.FieldError, err.Error())
	}
}

// ownedPeriod checks identity and that periodID belongs to the user.
func (s *Service) ownedPeriod(ctx context.Context, userID, periodID core.ID) (core.Period, error) {
	if err := requireUser(userID); err != nil {
		return core.Period{}, err
	}
	if periodID.IsZero() {
		return core.Period{}, invalid("competencia_id", core.ErrMissingPeriod)
	}
	return s.findPeriod(ctx, userID, periodID)
}

func find[T any](items []T, id core.ID, idOf func(T) core.ID) (T, error) {
	for _, it := range items {
		if idOf(it) == id {
			return it, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("record %s: %w", id, ErrNotFound)
}

// updateFields sends one field update per change. If any was applied before
// a failure the cached summary is dropped rather than restored.
func (s *Service) updateFields(ctx context.Context, userID core.ID, p core.Period, kind source.Kind, id core.ID, changes []core.FieldChange, removed, added core.RecordSet) error {
	applied := 0
	err := s.apply(ctx, change{
		userID: userID, period: p, kind: kind, op: log.OpUpdate,
		removed: removed, added: added,
		call: func() (core.ID, error) {
			for _, fc := range changes {
				if err := s.backend.UpdateField(ctx, kind, id, fc); err != nil {
					return id, fmt.Errorf("field %s: %w", fc.Field, err)
				}
				applied++
			}
			return id, nil
		},
	})
	if err != nil && applied > 0 {
		s.sessions.Invalidate(userID, p.ID)
	}
	return err
}

func (s *Service) deleteRecord(ctx context.Context, userID core.ID, p core.Period, kind source.Kind, id core.ID, removed core.RecordSet) error {
	return s.apply(ctx, change{
		userID: userID, period: p, kind: kind, op: log.OpDelete,
		removed: removed,
		call:    func() (core.ID, error) { return id, s.backend.Delete(ctx, kind, id) },
	})
}

// CreateIncome adds an income entry.
func (s *Service) CreateIncome(ctx context.Context, userID core.ID, e core.IncomeEntry) (core.IncomeEntry, error) {
	if err := e.Validate(); err != nil {
		return core.IncomeEntry{}, invalid("entrada", err)
	}
	p, err := s.ownedPeriod(ctx, userID, e.PeriodID)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	var created core.IncomeEntry
	err = s.apply(ctx, change{
		userID: userID, period: p, kind: source.KindIncome, op: log.OpCreate,
		added: core.RecordSet{Income: []core.IncomeEntry{e}},
		call: func() (core.ID, error) {
			var err error
			created, err = s.backend.CreateIncome(ctx, userID, e)
			return created.ID, err
		},
	})
	return created, err
}

// UpdateIncome sends only the fields of draft that differ from the stored
// entry. The entry stays in its period.
func (s *Service) UpdateIncome(ctx context.Context, userID, periodID, id core.ID, draft core.IncomeEntry) (core.IncomeEntry, error) {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	items, err := s.backend.ListIncome(ctx, periodID)
	if err != nil {
		return core.IncomeEntry{}, &BackendError{Op: "list income", Err: err}
	}
	original, err := find(items, id, func(e core.IncomeEntry) core.ID { return e.ID })
	if err != nil {
		return core.IncomeEntry{}, err
	}
	draft.ID, draft.PeriodID = original.ID, original.PeriodID
	if err := draft.Validate(); err != nil {
		return core.IncomeEntry{}, invalid("entrada", err)
	}
	changes := original.Diff(draft)
	if len(changes) == 0 {
		return original, nil
	}
	err = s.updateFields(ctx, userID, p, source.KindIncome, id, changes,
		core.RecordSet{Income: []core.IncomeEntry{original}},
		core.RecordSet{Income: []core.IncomeEntry{draft}})
	if err != nil {
		return core.IncomeEntry{}, err
	}
	return draft, nil
}

// DeleteIncome removes an income entry.
func (s *Service) DeleteIncome(ctx context.Context, userID, periodID, id core.ID) error {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return err
	}
	items, err := s.backend.ListIncome(ctx, periodID)
	if err != nil {
		return &BackendError{Op: "list income", Err: err}
	}
	original, err := find(items, id, func(e core.IncomeEntry) core.ID { return e.ID })
	if err != nil {
		return err
	}
	return s.deleteRecord(ctx, userID, p, source.KindIncome, id, core.RecordSet{Income: []core.IncomeEntry{original}})
}

// CreateFixed adds a fixed expense.
func (s *Service) CreateFixed(ctx context.Context, userID core.ID, e core.FixedExpense) (core.FixedExpense, error) {
	if err := e.Validate(); err != nil {
		return core.FixedExpense{}, invalid("gasto_fixo", err)
	}
	p, err := s.ownedPeriod(ctx, userID, e.PeriodID)
	if err != nil {
		return core.FixedExpense{}, err
	}
	var created core.FixedExpense
	err = s.apply(ctx, change{
		userID: userID, period: p, kind: source.KindFixed, op: log.OpCreate,
		added: core.RecordSet{Fixed: []core.FixedExpense{e}},
		call: func() (core.ID, error) {
			var err error
			created, err = s.backend.CreateFixed(ctx, userID, e)
			return created.ID, err
		},
	})
	return created, err
}

// UpdateFixed sends the changed fields of a fixed expense, paid flag included.
func (s *Service) UpdateFixed(ctx context.Context, userID, periodID, id core.ID, draft core.FixedExpense) (core.FixedExpense, error) {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return core.FixedExpense{}, err
	}
	items, err := s.backend.ListFixed(ctx, periodID)
	if err != nil {
		return core.FixedExpense{}, &BackendError{Op: "list fixed expenses", Err: err}
	}
	original, err := find(items, id, func(e core.FixedExpense) core.ID { return e.ID })
	if err != nil {
		return core.FixedExpense{}, err
	}
	draft.ID, draft.PeriodID = original.ID, original.PeriodID
	if err := draft.Validate(); err != nil {
		return core.FixedExpense{}, invalid("gasto_fixo", err)
	}
	changes := original.Diff(draft)
	if len(changes) == 0 {
		return original, nil
	}
	err = s.updateFields(ctx, userID, p, source.KindFixed, id, changes,
		core.RecordSet{Fixed: []core.FixedExpense{original}},
		core.RecordSet{Fixed: []core.FixedExpense{draft}})
	if err != nil {
		return core.FixedExpense{}, err
	}
	return draft, nil
}

// DeleteFixed removes a fixed expense.
func (s *Service) DeleteFixed(ctx context.Context, userID, periodID, id core.ID) error {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return err
	}
	items, err := s.backend.ListFixed(ctx, periodID)
	if err != nil {
		return &BackendError{Op: "list fixed expenses", Err: err}
	}
	original, err := find(items, id, func(e core.FixedExpense) core.ID { return e.ID })
	if err != nil {
		return err
	}
	return s.deleteRecord(ctx, userID, p, source.KindFixed, id, core.RecordSet{Fixed: []core.FixedExpense{original}})
}

// CreateVariable adds a variable expense.
func (s *Service) CreateVariable(ctx context.Context, userID core.ID, e core.VariableExpense) (core.VariableExpense, error) {
	if err := e.Validate(); err != nil {
		return core.VariableExpense{}, invalid("gasto_variavel", err)
	}
	p, err := s.ownedPeriod(ctx, userID, e.PeriodID)
	if err != nil {
		return core.VariableExpense{}, err
	}
	var created core.VariableExpense
	err = s.apply(ctx, change{
		userID: userID, period: p, kind: source.KindVariable, op: log.OpCreate,
		added: core.RecordSet{Variable: []core.VariableExpense{e}},
		call: func() (core.ID, error) {
			var err error
			created, err = s.backend.CreateVariable(ctx, userID, e)
			return created.ID, err
		},
	})
	return created, err
}

// UpdateVariable sends the changed fields of a variable expense.
func (s *Service) UpdateVariable(ctx context.Context, userID, periodID, id core.ID, draft core.VariableExpense) (core.VariableExpense, error) {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return core.VariableExpense{}, err
	}
	items, err := s.backend.ListVariable(ctx, periodID)
	if err != nil {
		return core.VariableExpense{}, &BackendError{Op: "list variable expenses", Err: err}
	}
	original, err := find(items, id, func(e core.VariableExpense) core.ID { return e.ID })
	if err != nil {
		return core.VariableExpense{}, err
	}
	draft.ID, draft.PeriodID = original.ID, original.PeriodID
	if err := draft.Validate(); err != nil {
		return core.VariableExpense{}, invalid("gasto_variavel", err)
	}
	changes := original.Diff(draft)
	if len(changes) == 0 {
		return original, nil
	}
	err = s.updateFields(ctx, userID, p, source.KindVariable, id, changes,
		core.RecordSet{Variable: []core.VariableExpense{original}},
		core.RecordSet{Variable: []core.VariableExpense{draft}})
	if err != nil {
		return core.VariableExpense{}, err
	}
	return draft, nil
}

// DeleteVariable removes a variable expense.
func (s *Service) DeleteVariable(ctx context.Context, userID, periodID, id core.ID) error {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return err
	}
	items, err := s.backend.ListVariable(ctx, periodID)
	if err != nil {
		return &BackendError{Op: "list variable expenses", Err: err}
	}
	original, err := find(items, id, func(e core.VariableExpense) core.ID { return e.ID })
	if err != nil {
		return err
	}
	return s.deleteRecord(ctx, userID, p, source.KindVariable, id, core.RecordSet{Variable: []core.VariableExpense{original}})
}

// checkBalance rejects an investment larger than what the period has left
// once replaced is credited back. It never mutates anything.
func (s *Service) checkBalance(ctx context.Context, userID, periodID core.ID, amount, replaced decimal.Decimal) error {
	sum, ok := s.sessions.Get(userID).Summaries().Get(periodID)
	if !ok {
		var err error
		sum, err = s.backend.Summary(ctx, userID, periodID)
		if err != nil {
			return &BackendError{Op: "load summary", Err: err}
		}
	}
	available := aggregate.AvailableForInvestment(sum, replaced)
	if amount.GreaterThan(available) {
		return invalid("valor", fmt.Errorf("%w: available %s", ErrInsufficientBalance, core.FormatBRL(available)))
	}
	return nil
}

// CreateInvestment adds an investment if the period's balance covers it.
func (s *Service) CreateInvestment(ctx context.Context, userID core.ID, i core.Investment) (core.Investment, error) {
	if err := i.Validate(); err != nil {
		return core.Investment{}, invalid("investimento", err)
	}
	p, err := s.ownedPeriod(ctx, userID, i.PeriodID)
	if err != nil {
		return core.Investment{}, err
	}
	if err := s.checkBalance(ctx, userID, p.ID, i.Amount, decimal.Zero); err != nil {
		return core.Investment{}, err
	}
	var created core.Investment
	err = s.apply(ctx, change{
		userID: userID, period: p, kind: source.KindInvestment, op: log.OpCreate,
		added: core.RecordSet{Invested: []core.Investment{i}},
		call: func() (core.ID, error) {
			var err error
			created, err = s.backend.CreateInvestment(ctx, userID, i)
			return created.ID, err
		},
	})
	return created, err
}

// UpdateInvestment replaces an investment. Its previous amount counts as
// available when checking the balance.
func (s *Service) UpdateInvestment(ctx context.Context, userID, periodID, id core.ID, draft core.Investment) (core.Investment, error) {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return core.Investment{}, err
	}
	items, err := s.backend.ListInvestments(ctx, periodID)
	if err != nil {
		return core.Investment{}, &BackendError{Op: "list investments", Err: err}
	}
	original, err := find(items, id, func(i core.Investment) core.ID { return i.ID })
	if err != nil {
		return core.Investment{}, err
	}
	draft.ID, draft.PeriodID = original.ID, original.PeriodID
	if err := draft.Validate(); err != nil {
		return core.Investment{}, invalid("investimento", err)
	}
	if draft.Description == original.Description && draft.Date.Equal(original.Date.Time) && draft.Amount.Equal(original.Amount) {
		return original, nil
	}
	if err := s.checkBalance(ctx, userID, p.ID, draft.Amount, original.Amount); err != nil {
		return core.Investment{}, err
	}
	err = s.apply(ctx, change{
		userID: userID, period: p, kind: source.KindInvestment, op: log.OpUpdate,
		removed: core.RecordSet{Invested: []core.Investment{original}},
		added:   core.RecordSet{Invested: []core.Investment{draft}},
		call:    func() (core.ID, error) { return id, s.backend.UpdateInvestment(ctx, draft) },
	})
	if err != nil {
		return core.Investment{}, err
	}
	return draft, nil
}

// DeleteInvestment removes an investment. Deleting never needs a balance
// check.
func (s *Service) DeleteInvestment(ctx context.Context, userID, periodID, id core.ID) error {
	p, err := s.ownedPeriod(ctx, userID, periodID)
	if err != nil {
		return err
	}
	items, err := s.backend.ListInvestments(ctx, periodID)
	if err != nil {
		return &BackendError{Op: "list investments", Err: err}
	}
	original, err := find(items, id, func(i core.Investment) core.ID { return i.ID })
	if err != nil {
		return err
	}
	return s.deleteRecord(ctx, userID, p, source.KindInvestment, id, core.RecordSet{Invested: []core.Investment{original}})
}
