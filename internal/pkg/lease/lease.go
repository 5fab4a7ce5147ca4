// Package lease provides a named exclusive run lease with
// try-acquire-or-skip semantics. Acquisition never blocks: an overlapping
// holder means the caller skips its run.
package lease

import "context"

// Lease guards a job against concurrent execution.
type Lease interface {
	// TryAcquire attempts to take the lease without waiting. It returns
	// false when another holder owns it.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lease back. Releasing a lease the caller does not
	// hold is a no-op.
	Release(ctx context.Context) error
}

// Local is an in-process lease for single-instance deployments.
type Local struct {
	sem chan struct{}
}

// NewLocal creates an in-process lease.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

func (l *Local) TryAcquire(_ context.Context) (bool, error) {
	select {
	case l.sem <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

func (l *Local) Release(_ context.Context) error {
	select {
	case <-l.sem:
	default:
	}
	return nil
}
