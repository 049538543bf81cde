package payment

import "context"

// Locker serializes confirmation of one reference across processes. The
// status compare-and-swap stays authoritative; a lock only narrows the
// window in which two confirmations race.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NoopLocker is used when no Redis is configured.
func NoopLocker() Locker {
	return noopLocker{}
}
