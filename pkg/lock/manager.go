package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// Manager tracks the locks held on every resource.
//
// Thread Safety:
// A single mutex guards the whole table. Acquire performs its conflict check
// and insert in one critical section, so two concurrent exclusive requests
// for the same resource can never both succeed. Store writes happen inside
// the same critical section and a failed write rolls the insert back.
type Manager struct {
	mu sync.Mutex

	// table maps resource identity to its locks in acquisition order.
	table map[string][]Lock

	// tokens maps every live token to its resource.
	tokens map[string]string

	store   Store
	now     func() time.Time
	metrics metrics.LockMetrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists locks to store.
func WithStore(store Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics reports acquisitions and releases to lm.
func WithMetrics(lm metrics.LockMetrics) Option {
	return func(m *Manager) {
		if lm != nil {
			m.metrics = lm
		}
	}
}

// NewManager returns an empty Manager. Without WithStore, locks live only in
// memory.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		table:   make(map[string][]Lock),
		tokens:  make(map[string]string),
		store:   nopStore{},
		now:     time.Now,
		metrics: metrics.NewNoopLockMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire grants l or fails with *ConflictError.
//
// The manager always mints the token, so l.Token must be empty; a token is
// never issued twice, even after its lock is released. A zero CreatedAt is
// set to now. Both are written back into l so the caller can report them.
// Persisted locks come back through Load instead.
func (m *Manager) Acquire(ctx context.Context, l *Lock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(l); err != nil {
		if l != nil {
			m.metrics.RecordAcquire(l.Scope.String(), metrics.OutcomeError)
		}
		return err
	}
	if l.Token != "" {
		m.metrics.RecordAcquire(l.Scope.String(), metrics.OutcomeError)
		return fmt.Errorf("%w: token %s was not issued by this call", ErrInvalidLock, l.Token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	l.Token = NewToken()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}

	active := m.purgeLocked(ctx, l.Resource, now)
	var conflicting []Lock
	for _, existing := range active {
		if conflictsWith(existing.Scope, l.Scope) {
			conflicting = append(conflicting, existing)
		}
	}
	if len(conflicting) > 0 {
		m.metrics.RecordAcquire(l.Scope.String(), metrics.OutcomeConflict)
		return &ConflictError{Resource: l.Resource, Locks: conflicting}
	}

	m.table[l.Resource] = append(active, *l)
	m.tokens[l.Token] = l.Resource

	if err := m.store.Put(ctx, *l); err != nil {
		m.removeLocked(l.Resource, l.Token)
		m.metrics.RecordAcquire(l.Scope.String(), metrics.OutcomeError)
		return fmt.Errorf("failed to persist lock %s: %w", l.Token, err)
	}

	m.metrics.RecordAcquire(l.Scope.String(), metrics.OutcomeAcquired)
	m.metrics.SetActiveLocks(len(m.tokens))
	logger.Debug("Lock acquired: resource=%s scope=%s depth=%d token=%s timeout=%s",
		l.Resource, l.Scope, l.Depth, l.Token, l.Timeout)
	return nil
}

// Release removes the lock with token. Unknown and expired tokens are a
// no-op, so releasing twice is safe.
func (m *Manager) Release(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	resource, ok := m.tokens[token]
	if !ok {
		return nil
	}

	m.removeLocked(resource, token)
	m.metrics.RecordRelease()
	m.metrics.SetActiveLocks(len(m.tokens))

	if err := m.store.Delete(ctx, token); err != nil {
		logger.Warn("Failed to delete persisted lock %s: %v", token, err)
		return fmt.Errorf("failed to delete persisted lock %s: %w", token, err)
	}

	logger.Debug("Lock released: resource=%s token=%s", resource, token)
	return nil
}

// ReleaseResource releases every lock held on resource and returns how many
// were removed.
func (m *Manager) ReleaseResource(ctx context.Context, resource string) (int, error) {
	var firstErr error
	locks := m.ActiveLocks(resource)
	for _, l := range locks {
		if err := m.Release(ctx, l.Token); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(locks), firstErr
}

// Refresh restarts the lifetime of the lock with token and sets its timeout.
func (m *Manager) Refresh(ctx context.Context, token string, timeout time.Duration) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	resource, ok := m.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockNotFound, token)
	}

	locks := m.purgeLocked(ctx, resource, now)
	for i := range locks {
		if locks[i].Token != token {
			continue
		}

		previous := locks[i]
		locks[i].CreatedAt = now
		locks[i].Timeout = timeout

		if err := m.store.Put(ctx, locks[i]); err != nil {
			locks[i] = previous
			return nil, fmt.Errorf("failed to persist refreshed lock %s: %w", token, err)
		}

		m.metrics.RecordRefresh()
		refreshed := locks[i]
		return &refreshed, nil
	}

	// The token expired during purge.
	return nil, fmt.Errorf("%w: %s", ErrLockNotFound, token)
}

// ActiveLocks returns a snapshot of the non-expired locks on resource in
// acquisition order. The slice is a copy.
func (m *Manager) ActiveLocks(resource string) []Lock {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.purgeLocked(context.Background(), resource, m.now())
	if len(active) == 0 {
		return nil
	}
	return append([]Lock(nil), active...)
}

// HasActiveLock reports whether resource has at least one non-expired lock.
func (m *Manager) HasActiveLock(resource string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.purgeLocked(context.Background(), resource, m.now())) > 0
}

// Lookup finds the non-expired lock with token.
func (m *Manager) Lookup(token string) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resource, ok := m.tokens[token]
	if !ok {
		return nil, false
	}
	for _, l := range m.purgeLocked(context.Background(), resource, m.now()) {
		if l.Token == token {
			found := l
			return &found, true
		}
	}
	return nil, false
}

// Count returns the number of tracked locks. Expired locks on resources that
// have not been touched since they lapsed are still counted.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// Load restores persisted locks. Expired entries are deleted from the store
// instead of being loaded. Call it once at startup, before serving.
func (m *Manager) Load(ctx context.Context) error {
	persisted, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persisted locks: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	loaded := 0
	for _, l := range persisted {
		if l.IsExpired(now) {
			if err := m.store.Delete(ctx, l.Token); err != nil {
				logger.Warn("Failed to delete expired persisted lock %s: %v", l.Token, err)
			}
			continue
		}
		if _, dup := m.tokens[l.Token]; dup {
			continue
		}
		m.table[l.Resource] = append(m.table[l.Resource], l)
		m.tokens[l.Token] = l.Resource
		loaded++
	}

	m.metrics.SetActiveLocks(len(m.tokens))
	logger.Info("Restored %d persisted lock(s)", loaded)
	return nil
}

// purgeLocked drops expired locks on resource and returns the survivors.
// The caller must hold m.mu.
func (m *Manager) purgeLocked(ctx context.Context, resource string, now time.Time) []Lock {
	locks := m.table[resource]
	if len(locks) == 0 {
		return nil
	}

	active := locks[:0]
	for _, l := range locks {
		if !l.IsExpired(now) {
			active = append(active, l)
			continue
		}
		delete(m.tokens, l.Token)
		if err := m.store.Delete(ctx, l.Token); err != nil {
			logger.Warn("Failed to delete expired lock %s: %v", l.Token, err)
		}
		logger.Debug("Lock expired: resource=%s token=%s", resource, l.Token)
	}

	if len(active) == 0 {
		delete(m.table, resource)
		return nil
	}
	m.table[resource] = active
	return active
}

// removeLocked deletes one lock from the table. The caller must hold m.mu.
func (m *Manager) removeLocked(resource, token string) {
	delete(m.tokens, token)

	locks := m.table[resource]
	for i, l := range locks {
		if l.Token == token {
			locks = append(locks[:i], locks[i+1:]...)
			break
		}
	}
	if len(locks) == 0 {
		delete(m.table, resource)
		return
	}
	m.table[resource] = locks
}

func validate(l *Lock) error {
	if l == nil {
		return fmt.Errorf("%w: nil lock", ErrInvalidLock)
	}
	if l.Resource == "" {
		return fmt.Errorf("%w: empty resource", ErrInvalidLock)
	}
	if l.Scope != ScopeExclusive && l.Scope != ScopeShared {
		return fmt.Errorf("%w: unknown scope %d", ErrInvalidLock, l.Scope)
	}
	if l.Depth != 0 && l.Depth != DepthInfinity {
		return fmt.Errorf("%w: depth must be 0 or infinity, got %d", ErrInvalidLock, l.Depth)
	}
	if l.Token == NoLockToken {
		return fmt.Errorf("%w: %s is reserved", ErrInvalidLock, NoLockToken)
	}
	if l.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidLock)
	}
	return nil
}

// Close releases the lock store. Locks are not deleted from it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Close()
}
