// Package memory is an in-process backend for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"financeiro/internal/aggregate"
	"financeiro/internal/core"
	"financeiro/internal/source"
)

type Store struct {
	mu       sync.Mutex
	seedCats []string
	seedPMs  []string

	periods  map[core.ID][]core.Period
	cats     map[core.ID][]core.Category
	pms      map[core.ID][]core.PaymentMethod
	income   map[core.ID]core.IncomeEntry
	fixed    map[core.ID]core.FixedExpense
	variable map[core.ID]core.VariableExpense
	invested map[core.ID]core.Investment
	goals    map[core.ID]core.InvestmentGoal

	newID func() core.ID
}

var _ source.Backend = (*Store)(nil)

// New creates a store. Every user starts with the given categories and
// payment methods.
func New(categories, paymentMethods []string) *Store {
	return &Store{
		seedCats: dedupe(categories),
		seedPMs:  dedupe(paymentMethods),
		periods:  map[core.ID][]core.Period{},
		cats:     map[core.ID][]core.Category{},
		pms:      map[core.ID][]core.PaymentMethod{},
		income:   map[core.ID]core.IncomeEntry{},
		fixed:    map[core.ID]core.FixedExpense{},
		variable: map[core.ID]core.VariableExpense{},
		invested: map[core.ID]core.Investment{},
		goals:    map[core.ID]core.InvestmentGoal{},
		newID:    func() core.ID { return core.ID(uuid.NewString()) },
	}
}

// NewFromFiles seeds lookups from seed_categories.txt and
// seed_payment_methods.txt under base, one entry per line.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	pms := readLines(filepath.Join(base, "seed_payment_methods.txt"))
	if len(cats) == 0 {
		cats = []string{"Moradia", "Mercado", "Transporte", "Vale Alimentação"}
	}
	if len(pms) == 0 {
		pms = []string{"Pix", "Débito", "Crédito"}
	}
	return New(cats, pms)
}

func (s *Store) Ping(context.Context) error { return nil }

// ensureUser lazily seeds a user's lookup tables. Caller holds mu.
func (s *Store) ensureUser(userID core.ID) {
	if _, ok := s.cats[userID]; !ok {
		for _, n := range s.seedCats {
			s.cats[userID] = append(s.cats[userID], core.Category{ID: s.newID(), Name: n})
		}
	}
	if _, ok := s.pms[userID]; !ok {
		for _, k := range s.seedPMs {
			s.pms[userID] = append(s.pms[userID], core.PaymentMethod{ID: s.newID(), Kind: k})
		}
	}
}

func (s *Store) ListPeriods(_ context.Context, userID core.ID) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Period(nil), s.periods[userID]...), nil
}

func (s *Store) ListCategories(_ context.Context, userID core.ID) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(userID)
	return append([]core.Category(nil), s.cats[userID]...), nil
}

func (s *Store) ListPaymentMethods(_ context.Context, userID core.ID) ([]core.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(userID)
	return append([]core.PaymentMethod(nil), s.pms[userID]...), nil
}

func (s *Store) ListIncome(_ context.Context, periodID core.ID) ([]core.IncomeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.income, periodID, func(e core.IncomeEntry) core.ID { return e.PeriodID }), nil
}

func (s *Store) ListFixed(_ context.Context, periodID core.ID) ([]core.FixedExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.fixed, periodID, func(e core.FixedExpense) core.ID { return e.PeriodID }), nil
}

func (s *Store) ListVariable(_ context.Context, periodID core.ID) ([]core.VariableExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.variable, periodID, func(e core.VariableExpense) core.ID { return e.PeriodID }), nil
}

func (s *Store) ListInvestments(_ context.Context, periodID core.ID) ([]core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.invested, periodID, func(i core.Investment) core.ID { return i.PeriodID }), nil
}

func (s *Store) ListGoals(_ context.Context, periodID core.ID) ([]core.InvestmentGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.goals, periodID, func(g core.InvestmentGoal) core.ID { return g.PeriodID }), nil
}

// Summary computes the resumo from the stored records.
func (s *Store) Summary(ctx context.Context, userID, periodID core.ID) (core.PeriodSummary, error) {
	s.mu.Lock()
	known := false
	for _, p := range s.periods[userID] {
		if p.ID == periodID {
			known = true
			break
		}
	}
	s.mu.Unlock()
	if !known {
		return core.PeriodSummary{}, fmt.Errorf("period %s: %w", periodID, source.ErrNotFound)
	}
	rs, err := source.Load(ctx, s, periodID)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return aggregate.Summarize(rs), nil
}

func (s *Store) CreatePeriod(_ context.Context, userID core.ID, p core.Period) (core.Period, error) {
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.periods[userID] {
		if existing.Year == p.Year && existing.Month == p.Month {
			return core.Period{}, fmt.Errorf("period %04d-%02d already exists", p.Year, p.Month)
		}
	}
	p.ID = s.newID()
	p.UserID = userID
	if p.Active {
		for i := range s.periods[userID] {
			s.periods[userID][i].Active = false
		}
	}
	s.periods[userID] = append(s.periods[userID], p)
	return p, nil
}

func (s *Store) ActivatePeriod(_ context.Context, userID core.ID, year, month int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.periods[userID]
	found := false
	for i := range ps {
		ps[i].Active = !found && ps[i].Year == year && ps[i].Month == month
		if ps[i].Active {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("period %04d-%02d: %w", year, month, source.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateCategory(_ context.Context, userID core.ID, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(userID)
	c.ID = s.newID()
	s.cats[userID] = append(s.cats[userID], c)
	return c, nil
}

func (s *Store) CreatePaymentMethod(_ context.Context, userID core.ID, kind string) (core.PaymentMethod, error) {
	m := core.PaymentMethod{Kind: strings.TrimSpace(kind)}
	if err := m.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(userID)
	m.ID = s.newID()
	s.pms[userID] = append(s.pms[userID], m)
	return m, nil
}

func (s *Store) CreateIncome(_ context.Context, _ core.ID, e core.IncomeEntry) (core.IncomeEntry, error) {
	if err := e.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.newID()
	s.income[e.ID] = e
	return e, nil
}

func (s *Store) CreateFixed(_ context.Context, _ core.ID, e core.FixedExpense) (core.FixedExpense, error) {
	if err := e.Validate(); err != nil {
		return core.FixedExpense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.newID()
	s.fixed[e.ID] = e
	return e, nil
}

func (s *Store) CreateVariable(_ context.Context, _ core.ID, e core.VariableExpense) (core.VariableExpense, error) {
	if err := e.Validate(); err != nil {
		return core.VariableExpense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.newID()
	s.variable[e.ID] = e
	return e, nil
}

func (s *Store) CreateInvestment(_ context.Context, _ core.ID, i core.Investment) (core.Investment, error) {
	if err := i.Validate(); err != nil {
		return core.Investment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = s.newID()
	s.invested[i.ID] = i
	return i, nil
}

// CreateGoal stores a goal. A second goal for the same period is rejected.
func (s *Store) CreateGoal(_ context.Context, _ core.ID, g core.InvestmentGoal) (core.InvestmentGoal, error) {
	if g.PeriodID.IsZero() {
		return core.InvestmentGoal{}, core.ErrMissingPeriod
	}
	if err := core.ValidatePositive(g.Target); err != nil {
		return core.InvestmentGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.goals {
		if existing.PeriodID == g.PeriodID {
			return core.InvestmentGoal{}, fmt.Errorf("period %s already has a goal", g.PeriodID)
		}
	}
	g.ID = s.newID()
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) UpdateField(_ context.Context, kind source.Kind, id core.ID, change core.FieldChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case source.KindIncome:
		return applyField(s.income, id, change, (*core.IncomeEntry).Apply, core.IncomeEntry.Validate)
	case source.KindFixed:
		return applyField(s.fixed, id, change, (*core.FixedExpense).Apply, core.FixedExpense.Validate)
	case source.KindVariable:
		return applyField(s.variable, id, change, (*core.VariableExpense).Apply, core.VariableExpense.Validate)
	default:
		return fmt.Errorf("field update of %s: %w", kind, source.ErrUnsupported)
	}
}

func (s *Store) UpdateInvestment(_ context.Context, i core.Investment) error {
	if err := i.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invested[i.ID]; !ok {
		return fmt.Errorf("investment %s: %w", i.ID, source.ErrNotFound)
	}
	s.invested[i.ID] = i
	return nil
}

func (s *Store) UpdateGoal(_ context.Context, id core.ID, target decimal.Decimal) error {
	if err := core.ValidatePositive(target); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return fmt.Errorf("goal %s: %w", id, source.ErrNotFound)
	}
	g.Target = target
	s.goals[id] = g
	return nil
}

func (s *Store) Delete(_ context.Context, kind source.Kind, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	switch kind {
	case source.KindIncome:
		ok = remove(s.income, id)
	case source.KindFixed:
		ok = remove(s.fixed, id)
	case source.KindVariable:
		ok = remove(s.variable, id)
	case source.KindInvestment:
		ok = remove(s.invested, id)
	case source.KindGoal:
		ok = remove(s.goals, id)
	default:
		return fmt.Errorf("delete of %s: %w", kind, source.ErrUnsupported)
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
	}
	return nil
}

func collect[T any](items map[core.ID]T, periodID core.ID, period func(T) core.ID) []T {
	out := []T{}
	for _, it := range items {
		if period(it) == periodID {
			out = append(out, it)
		}
	}
	return out
}

func applyField[T any](items map[core.ID]T, id core.ID, change core.FieldChange, apply func(*T, core.FieldChange) error, validate func(T) error) error {
	rec, ok := items[id]
	if !ok {
		return fmt.Errorf("record %s: %w", id, source.ErrNotFound)
	}
	if err := apply(&rec, change); err != nil {
		return err
	}
	if err := validate(rec); err != nil {
		return err
	}
	items[id] = rec
	return nil
}

func remove[T any](items map[core.ID]T, id core.ID) bool {
	if _, ok := items[id]; !ok {
		return false
	}
	delete(items, id)
	return true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
