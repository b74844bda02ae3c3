package oauth

import "context"

// RefreshLocker coordinates refreshes of the same key across processes
// sharing one integration store. The in-process single flight already
// collapses concurrent callers; the locker only matters with more than one
// replica.
type RefreshLocker interface {
	// Lock blocks until the lock for key is held or ctx is done. The
	// returned function releases it.
	Lock(ctx context.Context, key IntegrationKey) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, IntegrationKey) (func(), error) {
	return func() {}, nil
}
