package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle       = 10 * time.Minute
	limiterSweepAbove = 4096
	limiterMaxEntries = 65536

	defaultClientPerMinute = 120
	defaultClientBurst     = 20
)

type trackedLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per key (a chat session or a client
// address). It never holds more than max buckets.
type limiterSet struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	max   int
	byID  map[string]*trackedLimiter
	now   func() time.Time
}

func newLimiterSet(perMinute float64, burst int) *limiterSet {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{
		every: rate.Limit(perMinute / 60),
		burst: burst,
		max:   limiterMaxEntries,
		byID:  make(map[string]*trackedLimiter),
		now:   time.Now,
	}
}

func (l *limiterSet) allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	t, ok := l.byID[id]
	if !ok {
		if len(l.byID) >= limiterSweepAbove {
			l.sweep(now)
		}
		for l.max > 0 && len(l.byID) >= l.max {
			l.evictOldest()
		}
		t = &trackedLimiter{lim: rate.NewLimiter(l.every, l.burst)}
		l.byID[id] = t
	}
	t.lastSeen = now
	return t.lim.AllowN(now, 1)
}

// sweep drops limiters idle for longer than limiterIdle. Callers hold mu.
func (l *limiterSet) sweep(now time.Time) {
	for id, t := range l.byID {
		if now.Sub(t.lastSeen) > limiterIdle {
			delete(l.byID, id)
		}
	}
}

// evictOldest drops the least recently seen limiter. Callers hold mu.
func (l *limiterSet) evictOldest() {
	var oldest string
	var seen time.Time
	first := true
	for id, t := range l.byID {
		if first || t.lastSeen.Before(seen) {
			oldest, seen, first = id, t.lastSeen, false
		}
	}
	delete(l.byID, oldest)
}

// clientAddr identifies the caller for per-client limits. With header set
// (a trusted proxy's X-Forwarded-For or X-Real-IP) its first entry wins.
func clientAddr(r *http.Request, header string) string {
	if header != "" {
		if v := r.Header.Get(header); v != "" {
			first, _, _ := strings.Cut(v, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
