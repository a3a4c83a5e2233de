package rate

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxEntries = 10000

type bucketEntry struct {
	key     string
	limiter *rate.Limiter
	failed  int
	reset   time.Time
}

// Local is an in-process limiter for single-instance deployments.
//
// Login failures are counted in fixed windows like [Limiter]. Refresh uses a
// token bucket refilled at MaxRefreshAttempts per RefreshCooldownDuration.
// At most MaxEntries keys are tracked; the least recently used is evicted.
type Local struct {
	mu         sync.Mutex
	config     Config
	entries    map[string]*list.Element
	lru        *list.List
	maxEntries int
	now        func() time.Time
}

// NewLocal creates a [Local] limiter. maxEntries <= 0 selects a default.
func NewLocal(cfg Config, maxEntries int, now func() time.Time) *Local {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &Local{
		config:     cfg,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        now,
	}
}

func (l *Local) CheckLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failures(localKeys.login(identifier)) >= l.config.MaxLoginAttempts {
		return ErrRateLimited
	}
	if l.config.EnableIPThrottle && ip != "" && l.failures(localKeys.loginIP(ip)) >= l.config.MaxLoginAttempts {
		return ErrRateLimited
	}
	return nil
}

func (l *Local) IncrementLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	limited := l.bump(localKeys.login(identifier)) > l.config.MaxLoginAttempts
	if l.config.EnableIPThrottle && ip != "" {
		if l.bump(localKeys.loginIP(ip)) > l.config.MaxLoginAttempts {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (l *Local) ResetLogin(_ context.Context, identifier, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.remove(localKeys.login(identifier))
	if ip != "" {
		l.remove(localKeys.loginIP(ip))
	}
	return nil
}

func (l *Local) CheckRefresh(_ context.Context, subjectID string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.touch(localKeys.refresh(subjectID))
	if entry.limiter == nil {
		entry.limiter = rate.NewLimiter(l.refreshRate(), l.config.MaxRefreshAttempts)
	}
	if !entry.limiter.AllowN(l.now(), 1) {
		return ErrRateLimited
	}
	return nil
}

// Len reports the number of tracked keys.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Len()
}

// Cleanup drops login windows that have already reset.
func (l *Local) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, elem := range l.entries {
		entry := elem.Value.(*bucketEntry)
		if entry.limiter == nil && !now.Before(entry.reset) {
			l.lru.Remove(elem)
			delete(l.entries, key)
		}
	}
}

func (l *Local) refreshRate() rate.Limit {
	if l.config.RefreshCooldownDuration <= 0 || l.config.MaxRefreshAttempts <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(l.config.MaxRefreshAttempts) / l.config.RefreshCooldownDuration.Seconds())
}

func (l *Local) failures(key string) int {
	elem, ok := l.entries[key]
	if !ok {
		return 0
	}
	entry := elem.Value.(*bucketEntry)
	if !l.now().Before(entry.reset) {
		return 0
	}
	return entry.failed
}

func (l *Local) bump(key string) int {
	entry := l.touch(key)
	now := l.now()
	if !now.Before(entry.reset) {
		entry.failed = 0
		entry.reset = now.Add(l.config.LoginCooldownDuration)
	}
	entry.failed++
	return entry.failed
}

func (l *Local) touch(key string) *bucketEntry {
	if elem, ok := l.entries[key]; ok {
		l.lru.MoveToFront(elem)
		return elem.Value.(*bucketEntry)
	}
	if l.lru.Len() >= l.maxEntries {
		l.evictLRU()
	}
	entry := &bucketEntry{key: key}
	l.entries[key] = l.lru.PushFront(entry)
	return entry
}

func (l *Local) remove(key string) {
	if elem, ok := l.entries[key]; ok {
		l.lru.Remove(elem)
		delete(l.entries, key)
	}
}

func (l *Local) evictLRU() {
	elem := l.lru.Back()
	if elem == nil {
		return
	}
	l.lru.Remove(elem)
	delete(l.entries, elem.Value.(*bucketEntry).key)
}
