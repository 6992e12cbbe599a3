package cache

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

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a to survive, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[string](10, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.Set("k", "v")

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry")
	}
	c.Set("x", "y")
	now = now.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
}

func TestLRUGetOrLoad(t *testing.T) {
	c := NewLRU[[]string](10, time.Minute)
	var calls int32
	release := make(chan struct{})
	load := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"Mercado"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrLoad(context.Background(), "categories:u1", load); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
	if v, ok := c.Get("categories:u1"); !ok || v[0] != "Mercado" {
		t.Fatalf("value not cached: %v", v)
	}
}

func TestLRUGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	boom := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Size() != 0 {
		t.Fatalf("errors must not be cached")
	}
}

func TestManagerSweep(t *testing.T) {
	c := NewLRU[int](10, -time.Second)
	c.Set("a", 1)
	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	m.Stop()

	m = NewManager(nil)
	m.StartCleanup(time.Millisecond)
	m.Stop()
}

func income(v string) core.PeriodSummary {
	var s core.PeriodSummary
	s.Income.Total = core.NewAmount(decimal.RequireFromString(v))
	return s
}

func TestSummaryCacheMissing(t *testing.T) {
	c := NewSummaryCache()
	c.Put("1", income("10"))
	got := c.Missing([]core.ID{"1", "2", "3", "2"})
	if len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Fatalf("unexpected missing ids %v", got)
	}
}

func TestSummaryCachePatchAndRestore(t *testing.T) {
	c := NewSummaryCache()
	c.Put("1", income("10"))

	snap := c.Patch("1", func(s core.PeriodSummary) core.PeriodSummary {
		s.Income.Total = core.NewAmount(s.Income.Total.Add(decimal.NewFromInt(5)))
		return s
	})
	if s, _ := c.Get("1"); !s.Income.Total.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("patch not applied: %s", s.Income.Total)
	}
	c.Restore(snap)
	if s, _ := c.Get("1"); !s.Income.Total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("restore failed: %s", s.Income.Total)
	}

	snap = c.Patch("absent", func(s core.PeriodSummary) core.PeriodSummary { return income("1") })
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("patch must not create entries")
	}
	c.Put("absent", income("3"))
	c.Restore(snap)
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("restore of an absent snapshot must delete")
	}
}

func TestSummaryCacheReturnsCopies(t *testing.T) {
	c := NewSummaryCache()
	s := income("1")
	s.Expenses.Fixed.ByCategory = core.Breakdown{"a": core.NewAmount(decimal.NewFromInt(1))}
	c.Put("1", s)
	got, _ := c.Get("1")
	got.Expenses.Fixed.ByCategory["a"] = core.NewAmount(decimal.NewFromInt(99))
	again, _ := c.Get("1")
	if !again.Expenses.Fixed.ByCategory["a"].Equal(decimal.NewFromInt(1)) {
		t.Fatalf("cache leaked internal state")
	}
	c.Invalidate("1")
	if c.Len() != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestSummaryCacheRefusesWritesAfterInvalidate(t *testing.T) {
	c := NewSummaryCache()
	seen := c.Versions("1", "2")

	c.Invalidate("1")
	refused := c.PutIfUnchanged(map[core.ID]core.PeriodSummary{"1": income("10"), "2": income("20")}, seen)
	if len(refused) != 1 || refused[0] != "1" {
		t.Fatalf("expected only 1 refused, got %v", refused)
	}
	if _, ok := c.Get("1"); ok {
		t.Fatal("summary read before the invalidation must not be stored")
	}
	if s, ok := c.Get("2"); !ok || !s.Income.Total.Equal(decimal.NewFromInt(20)) {
		t.Fatal("untouched period should be stored")
	}

	seen = c.Versions("2")
	snap := c.Patch("2", func(s core.PeriodSummary) core.PeriodSummary { return s })
	if refused := c.PutIfUnchanged(map[core.ID]core.PeriodSummary{"2": income("1")}, seen); len(refused) != 1 {
		t.Fatal("patch must also move the version")
	}
	seen = c.Versions("2")
	c.Restore(snap)
	if refused := c.PutIfUnchanged(map[core.ID]core.PeriodSummary{"2": income("1")}, seen); len(refused) != 1 {
		t.Fatal("restore must also move the version")
	}

	if refused := c.PutIfUnchanged(map[core.ID]core.PeriodSummary{"3": income("1")}, Versions{}); len(refused) != 1 {
		t.Fatal("ids without a recorded version are refused")
	}
}
