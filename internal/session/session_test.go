package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
)

type fakeReader struct {
	mu      sync.Mutex
	calls   int32
	block   map[core.ID]chan struct{}
	fail    map[core.ID]error
	income  map[core.ID]int64
	started chan core.ID
}

func (f *fakeReader) setIncome(id core.ID, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.income == nil {
		f.income = map[core.ID]int64{}
	}
	f.income[id] = v
}

func (f *fakeReader) Summary(ctx context.Context, _, periodID core.ID) (core.PeriodSummary, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	ch := f.block[periodID]
	err := f.fail[periodID]
	income, ok := f.income[periodID]
	f.mu.Unlock()
	if !ok {
		income = 100
	}
	if f.started != nil {
		f.started <- periodID
	}
	if ch != nil {
		<-ch
	}
	if err != nil {
		return core.PeriodSummary{}, err
	}
	var s core.PeriodSummary
	s.Income.Total = core.NewAmount(decimal.NewFromInt(income))
	return s, nil
}

var periods = []core.Period{
	{ID: "a1", Year: 2023, Month: 1},
	{ID: "a2", Year: 2023, Month: 2},
	{ID: "b1", Year: 2024, Month: 1},
}

func TestLoadYearFetchesMissingOnce(t *testing.T) {
	r := &fakeReader{}
	s := New("u1", r, 2, nil)

	view, err := s.LoadYear(context.Background(), periods, 2023)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(view.Summaries) != 2 || len(view.Periods) != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
	if _, err := s.LoadYear(context.Background(), periods, 2023); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := atomic.LoadInt32(&r.calls); got != 2 {
		t.Fatalf("cached summaries must not be refetched, got %d calls", got)
	}
}

func TestLoadYearFetchErrorsAreNonFatal(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeReader{fail: map[core.ID]error{"a2": boom}}
	s := New("u1", r, 0, nil)

	view, err := s.LoadYear(context.Background(), periods, 2023)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(view.Errors) != 1 || !errors.Is(view.Errors[0], boom) {
		t.Fatalf("expected one fetch error, got %v", view.Errors)
	}
	if _, ok := view.Summaries["a2"]; ok {
		t.Fatalf("failed period must not be cached")
	}
	if _, ok := view.Summaries["a1"]; !ok {
		t.Fatalf("successful period must be present")
	}
}

func TestLoadYearDiscardsStaleBatch(t *testing.T) {
	release := make(chan struct{})
	r := &fakeReader{
		block:   map[core.ID]chan struct{}{"a1": release, "a2": release},
		started: make(chan core.ID, 10),
	}
	s := New("u1", r, 4, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.LoadYear(context.Background(), periods, 2023)
		done <- err
	}()
	<-r.started

	view, err := s.LoadYear(context.Background(), periods, 2024)
	if err != nil {
		t.Fatalf("load 2024: %v", err)
	}
	if len(view.Summaries) != 1 {
		t.Fatalf("unexpected 2024 view %+v", view)
	}

	close(release)
	select {
	case err := <-done:
		if !errors.Is(err, ErrStaleSelection) {
			t.Fatalf("expected stale selection, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stale load did not finish")
	}
	if _, ok := s.Summaries().Get("a1"); ok {
		t.Fatalf("stale batch must not be committed")
	}
	if y, _ := s.SelectedYear(); y != 2024 {
		t.Fatalf("selection must stay on 2024, got %d", y)
	}
}

func TestSummaryCachesSinglePeriod(t *testing.T) {
	r := &fakeReader{}
	s := New("u1", r, 1, nil)
	if _, err := s.Summary(context.Background(), "b1"); err != nil {
		t.Fatalf("summary: %v", err)
	}
	s.Summary(context.Background(), "b1")
	if atomic.LoadInt32(&r.calls) != 1 {
		t.Fatalf("expected one fetch")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(&fakeReader{}, 10, time.Minute, 2, nil)
	a := reg.Get("u1")
	if reg.Get("u1") != a {
		t.Fatalf("expected the same session")
	}
	if reg.Get("u2") == a {
		t.Fatalf("users must not share sessions")
	}
	a.Summaries().Put("p1", core.PeriodSummary{})
	reg.Invalidate("u1", "p1")
	if a.Summaries().Len() != 0 {
		t.Fatalf("invalidate must drop the entry")
	}
	reg.Invalidate("nobody", "p1")
}

func waitStarted(t *testing.T, r *fakeReader, id core.ID) {
	t.Helper()
	for {
		select {
		case got := <-r.started:
			if got == id {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("fetch of %s never started", id)
		}
	}
}

func TestLoadYearRefetchesSummaryInvalidatedInFlight(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeReader{
		block:   map[core.ID]chan struct{}{"a1": gate},
		started: make(chan core.ID, 10),
	}
	s := New("u1", r, 2, nil)

	done := make(chan error, 1)
	var view YearView
	go func() {
		var err error
		view, err = s.LoadYear(context.Background(), periods, 2023)
		done <- err
	}()
	waitStarted(t, r, "a1")

	// a mutation lands while the old summary of a1 is still in flight
	r.setIncome("a1", 250)
	s.Summaries().Invalidate("a1")
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := s.Summaries().Get("a1")
	if !ok {
		t.Fatal("a1 should be cached after the refetch")
	}
	if !got.Income.Total.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("cache holds pre-mutation income %s", got.Income.Total)
	}
	if !view.Summaries["a1"].Income.Total.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("view holds pre-mutation income %s", view.Summaries["a1"].Income.Total)
	}
	if len(view.Errors) != 0 {
		t.Fatalf("unexpected errors %v", view.Errors)
	}
}

func TestSummaryRefetchesWhenPatchedInFlight(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeReader{
		block:   map[core.ID]chan struct{}{"b1": gate},
		started: make(chan core.ID, 10),
	}
	s := New("u1", r, 1, nil)

	type result struct {
		sum core.PeriodSummary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := s.Summary(context.Background(), "b1")
		done <- result{sum, err}
	}()
	waitStarted(t, r, "b1")

	r.setIncome("b1", 40)
	s.Summaries().Patch("b1", func(p core.PeriodSummary) core.PeriodSummary { return p })
	close(gate)

	res := <-done
	if res.err != nil {
		t.Fatalf("summary: %v", res.err)
	}
	if !res.sum.Income.Total.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("returned stale income %s", res.sum.Income.Total)
	}
	if atomic.LoadInt32(&r.calls) != 2 {
		t.Fatalf("expected one refetch, got %d calls", atomic.LoadInt32(&r.calls))
	}
}

func TestConcurrentLoadsOfSameYearBothCommit(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeReader{
		block:   map[core.ID]chan struct{}{"a1": gate, "a2": gate},
		started: make(chan core.ID, 10),
	}
	s := New("u1", r, 4, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.LoadYear(context.Background(), periods, 2023)
			errs <- err
		}()
	}
	// both loads are in flight before either can finish
	for i := 0; i < 4; i++ {
		select {
		case <-r.started:
		case <-time.After(2 * time.Second):
			t.Fatal("loads did not start")
		}
	}
	close(gate)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("reselecting the same year must not make a load stale: %v", err)
		}
	}
	if s.Summaries().Len() != 2 {
		t.Fatalf("expected both summaries cached, got %d", s.Summaries().Len())
	}
}
