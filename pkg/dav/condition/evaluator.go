package condition

import (
	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// LockSource reports the active locks on a resource. *lock.Manager
// implements it.
type LockSource interface {
	ActiveLocks(resource string) []lock.Lock
}

// Evaluator decides If header conditions against the current lock state.
// It keeps no state between calls.
type Evaluator struct {
	locks   LockSource
	metrics metrics.LockMetrics
}

// NewEvaluator returns an Evaluator reading locks from locks. A nil lm
// disables metrics.
func NewEvaluator(locks LockSource, lm metrics.LockMetrics) *Evaluator {
	if lm == nil {
		lm = metrics.NewNoopLockMetrics()
	}
	return &Evaluator{locks: locks, metrics: lm}
}

// Evaluate parses header and evaluates it for resource, whose current entity
// tag is etag.
//
// The result is one of:
//   - true, nil: some group holds and, on a locked resource, proves lock
//     ownership with a matching token;
//   - false, nil: ordinary precondition failure;
//   - false, *lock.ConflictError: the request named the resource's current
//     state correctly but did not present a token for the locks protecting it;
//   - false, ErrMalformedCondition: header did not parse.
func (e *Evaluator) Evaluate(resource, etag, header string) (bool, error) {
	cond, err := Parse(header)
	if err != nil {
		e.metrics.RecordConditionEvaluation(metrics.OutcomeMalformed)
		logger.Debug("Malformed If header for %s: %v", resource, err)
		return false, err
	}
	return e.EvaluateCondition(resource, etag, cond)
}

// EvaluateCondition evaluates an already parsed condition. See Evaluate.
func (e *Evaluator) EvaluateCondition(resource, etag string, cond *Condition) (bool, error) {
	// One snapshot of the lock set for the whole evaluation.
	active := e.locks.ActiveLocks(resource)
	tokens := make(map[string]struct{}, len(active))
	for _, l := range active {
		tokens[l.Token] = struct{}{}
	}
	locked := len(active) > 0

	nearMiss := false
	for _, group := range cond.Groups {
		holds, owns, etagsMatch := evaluateGroup(group, tokens, etag)
		if holds && (!locked || owns) {
			e.metrics.RecordConditionEvaluation(metrics.OutcomeSatisfied)
			return true, nil
		}
		if etagsMatch {
			nearMiss = true
		}
	}

	if locked && nearMiss {
		e.metrics.RecordConditionEvaluation(metrics.OutcomeConflict)
		return false, &lock.ConflictError{Resource: resource, Locks: active}
	}

	e.metrics.RecordConditionEvaluation(metrics.OutcomeFailed)
	return false, nil
}

// evaluateGroup reports whether every term holds, whether a non-negated
// token term matched an active lock, and whether every entity tag term
// matched the current tag before negation.
func evaluateGroup(group Group, tokens map[string]struct{}, etag string) (holds, owns, etagsMatch bool) {
	holds, etagsMatch = true, true

	for _, term := range group.Terms {
		var raw bool
		switch term.Kind {
		case TermToken:
			_, raw = tokens[term.Value]
			if raw && !term.Negated {
				owns = true
			}
		case TermETag:
			raw = term.Value == etag
			if !raw {
				etagsMatch = false
			}
		}

		if raw == term.Negated {
			holds = false
		}
	}
	return holds, owns, etagsMatch
}
