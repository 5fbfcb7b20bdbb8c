package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Verdict is a predicate's answer for one request
type Verdict int

const (
	// Skip leaves the request undecided
	Skip Verdict = iota
	// Accept submits a positive decision
	Accept
	// Reject submits a negative decision
	Reject
)

// VerdictOf maps a boolean decision onto Accept or Reject
func VerdictOf(decision bool) Verdict {
	if decision {
		return Accept
	}
	return Reject
}

// Decision returns the boolean to submit and whether there is one
func (v Verdict) Decision() (decision bool, ok bool) {
	switch v {
	case Accept:
		return true, true
	case Reject:
		return false, true
	}
	return false, false
}

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return "skip"
}

// ErrUnsupportedPredicate is returned by Adapt for values of an unrecognized shape
var ErrUnsupportedPredicate = errors.New("unsupported predicate")

// Predicate judges a materialized request
type Predicate interface {
	Evaluate(ctx context.Context, item *AttestationWithDemand) (Verdict, error)
}

// SyncFunc is a predicate evaluated inline
type SyncFunc func(item *AttestationWithDemand) Verdict

// ContextFunc is a blocking predicate that observes cancellation itself
type ContextFunc func(ctx context.Context, item *AttestationWithDemand) (Verdict, error)

// Outcome is the eventual result of an AsyncFunc
type Outcome struct {
	Verdict Verdict
	Err     error
}

// AsyncFunc starts an evaluation and returns a channel that yields its outcome.
// A closed channel without a value counts as Skip.
type AsyncFunc func(ctx context.Context, item *AttestationWithDemand) <-chan Outcome

// Sync wraps an inline predicate
func Sync(fn SyncFunc) Predicate {
	return syncPredicate{fn: fn}
}

// Async wraps a suspending predicate
func Async(fn AsyncFunc) Predicate {
	return asyncPredicate{fn: fn}
}

// Blocking wraps a context-aware predicate
func Blocking(fn ContextFunc) Predicate {
	return contextPredicate{fn: fn}
}

// Adapt selects the evaluation path for a user-supplied predicate value
func Adapt(p interface{}) (Predicate, error) {
	switch fn := p.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedPredicate)
	case Predicate:
		return fn, nil
	case SyncFunc:
		return Sync(fn), nil
	case func(*AttestationWithDemand) Verdict:
		return Sync(fn), nil
	case func(*AttestationWithDemand) bool:
		return Sync(func(item *AttestationWithDemand) Verdict { return VerdictOf(fn(item)) }), nil
	case AsyncFunc:
		return Async(fn), nil
	case func(context.Context, *AttestationWithDemand) <-chan Outcome:
		return Async(fn), nil
	case ContextFunc:
		return Blocking(fn), nil
	case func(context.Context, *AttestationWithDemand) (Verdict, error):
		return Blocking(fn), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedPredicate, p)
}

type syncPredicate struct {
	fn SyncFunc
}

func (p syncPredicate) Evaluate(_ context.Context, item *AttestationWithDemand) (Verdict, error) {
	return p.fn(item), nil
}

type contextPredicate struct {
	fn ContextFunc
}

func (p contextPredicate) Evaluate(ctx context.Context, item *AttestationWithDemand) (Verdict, error) {
	return p.fn(ctx, item)
}

type asyncPredicate struct {
	fn AsyncFunc
}

func (p asyncPredicate) Evaluate(ctx context.Context, item *AttestationWithDemand) (Verdict, error) {
	results := p.fn(ctx, item)
	if results == nil {
		return Skip, nil
	}
	select {
	case outcome, ok := <-results:
		if !ok {
			return Skip, nil
		}
		return outcome.Verdict, outcome.Err
	case <-ctx.Done():
		return Skip, ctx.Err()
	}
}

// evaluate runs p and converts panics into errors
func evaluate(ctx context.Context, p Predicate, item *AttestationWithDemand) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			verdict, err = Skip, fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	verdict, err = p.Evaluate(ctx, item)
	if err != nil {
		return Skip, err
	}
	return verdict, nil
}
