// Package session holds the per-user dashboard state: the selected year and
// the summaries loaded so far.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"financeiro/internal/aggregate"
	"financeiro/internal/cache"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/period"
	"financeiro/internal/source"
)

// ErrStaleSelection is returned by a year load whose year was deselected
// while it was in flight.
var ErrStaleSelection = errors.New("year selection changed while loading")

// ErrSummaryChanged marks a period that kept changing while its summary was
// being fetched.
var ErrSummaryChanged = errors.New("summary changed while loading")

const (
	defaultConcurrency = 6
	commitAttempts     = 2
)

// FetchError reports a summary that could not be loaded. The period is
// aggregated as zero.
type FetchError struct {
	PeriodID core.ID
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load summary of period %s: %v", e.PeriodID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// YearView is the outcome of a year load.
type YearView struct {
	Year      int
	Periods   []core.Period
	Summaries aggregate.Summaries
	// Errors lists the periods that failed to load; the view is still valid.
	Errors []error
}

// Session is the dashboard state of one user.
type Session struct {
	userID      core.ID
	reader      source.SummaryReader
	summaries   *cache.SummaryCache
	concurrency int
	logger      *log.Logger

	mu       sync.Mutex
	year     int
	selected bool
}

// New creates a session for userID.
func New(userID core.ID, reader source.SummaryReader, concurrency int, logger *log.Logger) *Session {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Session{
		userID:      userID,
		reader:      reader,
		summaries:   cache.NewSummaryCache(),
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentSession).With(log.FieldUserID, string(userID)),
	}
}

func (s *Session) UserID() core.ID { return s.userID }

// Summaries exposes the cache for mutation handlers.
func (s *Session) Summaries() *cache.SummaryCache { return s.summaries }

// SelectYear makes year the one whose loads may commit. Staleness is keyed
// by the year value: two loads of the same year both commit.
func (s *Session) SelectYear(year int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.year, s.selected = year, true
}

// SelectedYear returns the current selection.
func (s *Session) SelectedYear() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.year, s.selected
}

// LoadYear selects year and fetches every summary of it that is not cached,
// all at once, waiting for the whole batch. The batch is committed only if
// year is still selected when it completes; otherwise ErrStaleSelection is
// returned and nothing is stored. A summary whose period was invalidated or
// patched while it was in flight is fetched again; if that happens twice the
// period is reported with ErrSummaryChanged and counts as zero.
func (s *Session) LoadYear(ctx context.Context, periods []core.Period, year int) (YearView, error) {
	s.SelectYear(year)

	inYear := period.ForYear(periods, year)
	ids := make([]core.ID, 0, len(inYear))
	for _, p := range inYear {
		ids = append(ids, p.ID)
	}

	var errs []error
	pending := s.summaries.Missing(ids)
	for attempt := 0; attempt < commitAttempts && len(pending) > 0; attempt++ {
		seen := s.summaries.Versions(pending...)
		batch, failed := s.fetchAll(ctx, pending)
		if err := ctx.Err(); err != nil {
			return YearView{}, err
		}

		s.mu.Lock()
		stale := s.year != year
		var refused []core.ID
		if !stale {
			refused = s.summaries.PutIfUnchanged(batch, seen)
		}
		s.mu.Unlock()
		if stale {
			s.logger.DebugContext(ctx, "Discarding stale year batch", log.FieldYear, year, log.FieldCount, len(batch))
			return YearView{}, ErrStaleSelection
		}
		errs = append(errs, failed...)
		pending = refused
	}
	for _, id := range pending {
		errs = append(errs, &FetchError{PeriodID: id, Err: ErrSummaryChanged})
	}

	if len(errs) > 0 {
		s.logger.WarnContext(ctx, "Some summaries failed to load",
			log.FieldYear, year, log.FieldCount, len(errs), log.FieldError, errors.Join(errs...).Error())
	}
	return YearView{
		Year:      year,
		Periods:   inYear,
		Summaries: aggregate.Summaries(s.summaries.Select(ids)),
		Errors:    errs,
	}, nil
}

func (s *Session) fetchAll(ctx context.Context, ids []core.ID) (map[core.ID]core.PeriodSummary, []error) {
	var (
		mu    sync.Mutex
		batch = make(map[core.ID]core.PeriodSummary, len(ids))
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			sum, err := s.reader.Summary(gctx, s.userID, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &FetchError{PeriodID: id, Err: err})
				return nil
			}
			batch[id] = sum
			return nil
		})
	}
	_ = g.Wait()
	return batch, errs
}

// Summary returns the summary of one period, fetching and caching it when
// missing. It does not depend on the year selection.
func (s *Session) Summary(ctx context.Context, periodID core.ID) (core.PeriodSummary, error) {
	if sum, ok := s.summaries.Get(periodID); ok {
		return sum, nil
	}
	for attempt := 0; attempt < commitAttempts; attempt++ {
		seen := s.summaries.Versions(periodID)
		sum, err := s.reader.Summary(ctx, s.userID, periodID)
		if err != nil {
			return core.PeriodSummary{}, &FetchError{PeriodID: periodID, Err: err}
		}
		if refused := s.summaries.PutIfUnchanged(map[core.ID]core.PeriodSummary{periodID: sum}, seen); len(refused) == 0 {
			return sum, nil
		}
	}
	return core.PeriodSummary{}, &FetchError{PeriodID: periodID, Err: ErrSummaryChanged}
}

// Registry hands out one session per user. Idle sessions expire.
type Registry struct {
	reader      source.SummaryReader
	concurrency int
	logger      *log.Logger
	mu          sync.Mutex
	sessions    *cache.LRU[*Session]
}

// NewRegistry keeps up to maxSessions sessions, each for ttl after its last
// creation or refresh.
func NewRegistry(reader source.SummaryReader, maxSessions int, ttl time.Duration, concurrency int, logger *log.Logger) *Registry {
	return &Registry{
		reader:      reader,
		concurrency: concurrency,
		logger:      logger,
		sessions:    cache.NewLRU[*Session](maxSessions, ttl),
	}
}

// Get returns the session of userID, creating it when needed.
func (r *Registry) Get(userID core.ID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(userID)
	if s, ok := r.sessions.Get(key); ok {
		r.sessions.Set(key, s)
		return s
	}
	s := New(userID, r.reader, r.concurrency, r.logger)
	r.sessions.Set(key, s)
	return s
}

// Peek returns an existing session without creating one.
func (r *Registry) Peek(userID core.ID) (*Session, bool) {
	return r.sessions.Get(string(userID))
}

// Invalidate drops a cached summary of userID, if that user has a session.
func (r *Registry) Invalidate(userID, periodID core.ID) {
	if s, ok := r.Peek(userID); ok {
		s.Summaries().Invalidate(periodID)
	}
}

// Cleaner exposes the session table for periodic expiry.
func (r *Registry) Cleaner() cache.Cleaner { return r.sessions }
