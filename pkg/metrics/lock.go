package metrics

// Outcome labels shared by lock and condition metrics.
const (
	OutcomeAcquired  = "acquired"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
	OutcomeSatisfied = "satisfied"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)

// LockMetrics provides observability for the lock manager and the If-header
// evaluator.
type LockMetrics interface {
	// RecordAcquire records an acquisition attempt.
	//
	// Parameters:
	//   - scope: "exclusive" or "shared"
	//   - outcome: OutcomeAcquired, OutcomeConflict or OutcomeError
	RecordAcquire(scope, outcome string)

	// RecordRelease records a successful release of an active lock.
	RecordRelease()

	// RecordRefresh records a successful refresh.
	RecordRefresh()

	// SetActiveLocks updates the number of non-expired locks.
	SetActiveLocks(count int)

	// RecordConditionEvaluation records the result of evaluating an If header.
	//
	// Parameters:
	//   - outcome: OutcomeSatisfied, OutcomeFailed, OutcomeConflict or OutcomeMalformed
	RecordConditionEvaluation(outcome string)
}

type noopLockMetrics struct{}

// NewNoopLockMetrics returns a LockMetrics that discards everything.
func NewNoopLockMetrics() LockMetrics {
	return noopLockMetrics{}
}

func (noopLockMetrics) RecordAcquire(scope, outcome string)      {}
func (noopLockMetrics) RecordRelease()                           {}
func (noopLockMetrics) RecordRefresh()                           {}
func (noopLockMetrics) SetActiveLocks(count int)                 {}
func (noopLockMetrics) RecordConditionEvaluation(outcome string) {}
