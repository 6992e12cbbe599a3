package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter applies a token bucket per client.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	once    sync.Once
	denied  atomic.Int64

	limit   rate.Limit
	burst   int
	sweep   time.Duration
	maxIdle time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config sets the sustained rate, the burst and how often idle clients
// are forgotten. Zero fields take DefaultConfig values.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts the sweeper goroutine; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
		limit:   rate.Limit(config.RequestsPerSecond),
		burst:   config.Burst,
		sweep:   config.CleanupInterval,
		maxIdle: 2 * config.CleanupInterval,
	}
	go rl.sweeper()
	return rl
}

// Allow takes one token from client's bucket.
func (rl *Limiter) Allow(client string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()

	if b.limiter.Allow() {
		return true
	}
	rl.denied.Add(1)
	return false
}

// retryAfter is the wait until one token is available, in whole seconds.
func (rl *Limiter) retryAfter() int {
	secs := int(1 / float64(rl.limit))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *Limiter) sweeper() {
	t := time.NewTicker(rl.sweep)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			rl.forgetIdle(now)
		case <-rl.done:
			return
		}
	}
}

func (rl *Limiter) forgetIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.maxIdle {
			delete(rl.buckets, client)
		}
	}
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *Limiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// Metrics counts denied requests and tracked clients.
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.denied.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware answers with onLimit (or a plain 429) once a client's bucket
// is empty. Retry-After is always set.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
