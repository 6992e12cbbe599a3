package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"financeiro/internal/cache"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/period"
	"financeiro/internal/session"
	"financeiro/internal/source"
)

// EventPublisher announces that a period's records changed.
type EventPublisher interface {
	PublishPeriodChanged(ctx context.Context, userID, periodID core.ID, year int) error
}

// Options tunes caches and fan-out.
type Options struct {
	LookupTTL   time.Duration
	LookupSize  int
	SessionTTL  time.Duration
	MaxSessions int
	Concurrency int
}

// DefaultOptions are used for zero fields.
func DefaultOptions() Options {
	return Options{
		LookupTTL:   5 * time.Minute,
		LookupSize:  500,
		SessionTTL:  30 * time.Minute,
		MaxSessions: 1000,
		Concurrency: 6,
	}
}

// Service orchestrates reads, dashboards and mutations over a backend.
type Service struct {
	backend    source.Backend
	events     EventPublisher
	sessions   *session.Registry
	periods    *cache.LRU[[]core.Period]
	categories *cache.LRU[[]core.Category]
	methods    *cache.LRU[[]core.PaymentMethod]
	logger     *log.Logger
	audit      *log.StructuredLogger
	opts       Options
	now        func() time.Time
}

// New creates a service. events may be nil.
func New(backend source.Backend, events EventPublisher, logger *log.Logger, opts Options) *Service {
	def := DefaultOptions()
	if opts.LookupTTL <= 0 {
		opts.LookupTTL = def.LookupTTL
	}
	if opts.LookupSize <= 0 {
		opts.LookupSize = def.LookupSize
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = def.SessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = def.MaxSessions
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		backend:    backend,
		events:     events,
		sessions:   session.NewRegistry(backend, opts.MaxSessions, opts.SessionTTL, opts.Concurrency, logger),
		periods:    cache.NewLRU[[]core.Period](opts.LookupSize, opts.LookupTTL),
		categories: cache.NewLRU[[]core.Category](opts.LookupSize, opts.LookupTTL),
		methods:    cache.NewLRU[[]core.PaymentMethod](opts.LookupSize, opts.LookupTTL),
		logger:     logger.WithComponent(log.ComponentServices),
		audit:      log.NewStructuredLogger(logger),
		opts:       opts,
		now:        time.Now,
	}
}

// Cleaners returns the expiring caches for a cache.Manager.
func (s *Service) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{s.periods, s.categories, s.methods, s.sessions.Cleaner()}
}

// Sessions exposes the per-user sessions.
func (s *Service) Sessions() *session.Registry { return s.sessions }

// Ping checks the backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// InvalidatePeriod drops cached data of a period changed elsewhere.
func (s *Service) InvalidatePeriod(userID, periodID core.ID) {
	s.sessions.Invalidate(userID, periodID)
	s.periods.Delete(string(userID))
}

func requireUser(userID core.ID) error {
	if strings.TrimSpace(string(userID)) == "" {
		return ErrNoIdentity
	}
	return nil
}

// Periods lists the user's competências as loaded.
func (s *Service) Periods(ctx context.Context, userID core.ID) ([]core.Period, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ps, err := s.periods.GetOrLoad(ctx, string(userID), func(ctx context.Context) ([]core.Period, error) {
		return s.backend.ListPeriods(ctx, userID)
	})
	if err != nil {
		return nil, &BackendError{Op: "list periods", Err: err}
	}
	return append([]core.Period(nil), ps...), nil
}

// Categories lists the user's categories.
func (s *Service) Categories(ctx context.Context, userID core.ID) ([]core.Category, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	cs, err := s.categories.GetOrLoad(ctx, string(userID), func(ctx context.Context) ([]core.Category, error) {
		return s.backend.ListCategories(ctx, userID)
	})
	if err != nil {
		return nil, &BackendError{Op: "list categories", Err: err}
	}
	return append([]core.Category(nil), cs...), nil
}

// PaymentMethods lists the user's payment methods.
func (s *Service) PaymentMethods(ctx context.Context, userID core.ID) ([]core.PaymentMethod, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ms, err := s.methods.GetOrLoad(ctx, string(userID), func(ctx context.Context) ([]core.PaymentMethod, error) {
		return s.backend.ListPaymentMethods(ctx, userID)
	})
	if err != nil {
		return nil, &BackendError{Op: "list payment methods", Err: err}
	}
	return append([]core.PaymentMethod(nil), ms...), nil
}

// Overview is the home screen: every period grouped by year.
type Overview struct {
	Active      *core.Period       `json:"ativa"`
	Years       []int              `json:"anos"`
	Groups      []period.YearGroup `json:"grupos"`
	DefaultYear int                `json:"ano_padrao"`
}

// PeriodOverview resolves the active period, the years and their months.
func (s *Service) PeriodOverview(ctx context.Context, userID core.ID) (Overview, error) {
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{
		Years:       period.DistinctYears(ps),
		Groups:      period.GroupByYear(ps),
		DefaultYear: period.DefaultYear(ps, s.now()),
	}
	if p, ok := period.ActiveOrFirst(ps); ok {
		ov.Active = &p
	}
	return ov, nil
}

// CreatePeriod opens a competência for (year, month).
func (s *Service) CreatePeriod(ctx context.Context, userID core.ID, year, month int, active bool) (core.Period, error) {
	if err := requireUser(userID); err != nil {
		return core.Period{}, err
	}
	p := core.Period{Year: year, Month: month, Active: active}
	if err := p.Validate(); err != nil {
		return core.Period{}, invalid("competencia", err)
	}
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return core.Period{}, err
	}
	for _, existing := range ps {
		if existing.Year == year && existing.Month == month {
			return core.Period{}, invalid("competencia", fmt.Errorf("%02d/%04d already exists", month, year))
		}
	}
	created, err := s.backend.CreatePeriod(ctx, userID, p)
	if err != nil {
		return core.Period{}, &BackendError{Op: "create period", Err: err}
	}
	s.periods.Delete(string(userID))
	s.audit.LogMutation(ctx, log.OpCreate, string(source.KindPeriod), string(userID), string(created.ID), "")
	return created, nil
}

// ActivatePeriod makes (year, month) the single active period.
func (s *Service) ActivatePeriod(ctx context.Context, userID core.ID, year, month int) (core.Period, error) {
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return core.Period{}, err
	}
	activated, ok := period.Activate(ps, year, month)
	if !ok {
		return core.Period{}, fmt.Errorf("period %02d/%04d: %w", month, year, ErrNotFound)
	}
	if err := s.backend.ActivatePeriod(ctx, userID, year, month); err != nil {
		return core.Period{}, &BackendError{Op: "activate period", Err: err}
	}
	s.periods.Set(string(userID), activated)
	p, _ := period.FindActive(activated)
	s.audit.LogMutation(ctx, log.OpActivate, string(source.KindPeriod), string(userID), string(p.ID), "")
	return p, nil
}

// CreateCategory adds a category to the user's table.
func (s *Service) CreateCategory(ctx context.Context, userID core.ID, name string) (core.Category, error) {
	if err := requireUser(userID); err != nil {
		return core.Category{}, err
	}
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid("nome", err)
	}
	created, err := s.backend.CreateCategory(ctx, userID, c.Name)
	if err != nil {
		return core.Category{}, &BackendError{Op: "create category", Err: err}
	}
	s.categories.Delete(string(userID))
	return created, nil
}

// CreatePaymentMethod adds a payment method to the user's table.
func (s *Service) CreatePaymentMethod(ctx context.Context, userID core.ID, kind string) (core.PaymentMethod, error) {
	if err := requireUser(userID); err != nil {
		return core.PaymentMethod{}, err
	}
	m := core.PaymentMethod{Kind: strings.TrimSpace(kind)}
	if err := m.Validate(); err != nil {
		return core.PaymentMethod{}, invalid("tipo", err)
	}
	created, err := s.backend.CreatePaymentMethod(ctx, userID, m.Kind)
	if err != nil {
		return core.PaymentMethod{}, &BackendError{Op: "create payment method", Err: err}
	}
	s.methods.Delete(string(userID))
	return created, nil
}

// findPeriod returns the user's period with id, or ErrNotFound.
func (s *Service) findPeriod(ctx context.Context, userID, periodID core.ID) (core.Period, error) {
	ps, err := s.Periods(ctx, userID)
	if err != nil {
		return core.Period{}, err
	}
	for _, p := range ps {
		if p.ID == periodID {
			return p, nil
		}
	}
	return core.Period{}, fmt.Errorf("period %s: %w", periodID, ErrNotFound)
}

// Records returns every record of one of the user's periods.
func (s *Service) Records(ctx context.Context, userID, periodID core.ID) (core.RecordSet, error) {
	if _, err := s.findPeriod(ctx, userID, periodID); err != nil {
		return core.RecordSet{}, err
	}
	rs, err := source.Load(ctx, s.backend, periodID)
	if err != nil {
		return core.RecordSet{}, &BackendError{Op: "load records", Err: err}
	}
	return rs, nil
}
