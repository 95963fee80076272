package budget

import (
	"sync"
	"time"

	"github.com/ineyio/llmgateway"
)

// resetPeriod is the rolling budget window, anchored at a principal's first
// sighting rather than at a calendar boundary.
const resetPeriod = 24 * time.Hour

// Manager is an in-memory daily token budget keyed by principal.
type Manager struct {
	dailyLimit int64
	now        func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account
}

type account struct {
	mu       sync.Mutex
	used     int64
	resetAt  time.Time
	lastSeen time.Time
	evicted  bool
}

var _ llmgateway.BudgetManager = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager with the given daily token limit per principal.
// A non-positive limit falls back to 100000.
func New(dailyLimit int64, opts ...Option) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = 100000
	}
	m := &Manager{
		dailyLimit: dailyLimit,
		now:        time.Now,
		accounts:   make(map[string]*account),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check reports whether estimated tokens fit in the principal's remaining
// budget. It does not consume anything; usage is recorded after the call.
func (m *Manager) Check(principal string, estimated int64) (bool, llmgateway.BudgetInfo) {
	var info llmgateway.BudgetInfo
	m.withAccount(principal, func(a *account, now time.Time) {
		m.maybeReset(a, now)
		info = m.info(principal, a.used, a.resetAt)
		info.Allowed = m.dailyLimit-a.used >= estimated
	})
	return info.Allowed, info
}

// RecordUsage adds actual tokens to the principal's usage. Negative amounts
// are ignored so usage never decreases within a window.
func (m *Manager) RecordUsage(principal string, actual int64) llmgateway.BudgetInfo {
	if actual < 0 {
		actual = 0
	}
	var info llmgateway.BudgetInfo
	m.withAccount(principal, func(a *account, now time.Time) {
		m.maybeReset(a, now)
		a.used += actual
		info = m.info(principal, a.used, a.resetAt)
		info.Allowed = a.used < m.dailyLimit
	})
	return info
}

// Stats returns a read-only snapshot. An unseen principal reports the
// defaults without creating state; an expired window reports the post-reset
// view.
func (m *Manager) Stats(principal string) llmgateway.BudgetInfo {
	now := m.now()

	m.mu.RLock()
	a, ok := m.accounts[principal]
	m.mu.RUnlock()

	if !ok {
		info := m.info(principal, 0, now.Add(resetPeriod))
		info.Allowed = true
		return info
	}

	a.mu.Lock()
	used, resetAt := a.used, a.resetAt
	a.mu.Unlock()

	if now.After(resetAt) {
		used, resetAt = 0, now.Add(resetPeriod)
	}
	info := m.info(principal, used, resetAt)
	info.Allowed = used < m.dailyLimit
	return info
}

// Prune removes principals not seen for at least idle and returns how many
// were removed.
func (m *Manager) Prune(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, a := range m.accounts {
		a.mu.Lock()
		if !a.lastSeen.After(cutoff) {
			a.evicted = true
			delete(m.accounts, key)
			removed++
		}
		a.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked principals.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

// withAccount runs fn with the principal's account locked, creating it on
// first sighting.
func (m *Manager) withAccount(principal string, fn func(a *account, now time.Time)) {
	for {
		a := m.account(principal)

		a.mu.Lock()
		if a.evicted {
			a.mu.Unlock()
			continue
		}
		now := m.now()
		a.lastSeen = now
		fn(a, now)
		a.mu.Unlock()
		return
	}
}

func (m *Manager) account(principal string) *account {
	m.mu.RLock()
	a, ok := m.accounts[principal]
	m.mu.RUnlock()
	if ok {
		return a
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[principal]; ok {
		return a
	}
	a = &account{resetAt: m.now().Add(resetPeriod)}
	m.accounts[principal] = a
	return a
}

func (m *Manager) maybeReset(a *account, now time.Time) {
	if now.After(a.resetAt) {
		a.used = 0
		a.resetAt = now.Add(resetPeriod)
	}
}

func (m *Manager) info(principal string, used int64, resetAt time.Time) llmgateway.BudgetInfo {
	remaining := m.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return llmgateway.BudgetInfo{
		Principal:  principal,
		UsedToday:  used,
		Remaining:  remaining,
		DailyLimit: m.dailyLimit,
		ResetAt:    resetAt,
	}
}
