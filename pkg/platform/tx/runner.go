package tx

import (
	"context"
	"sync"
	"time"

	dErrors "insurely/pkg/domain-errors"
)

// Runner provides a transactional boundary for store mutations. Implementations
// may wrap a database transaction or, in-memory, a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTimeout is the maximum duration for a transaction.
const defaultTimeout = 5 * time.Second

// LocalRunner serializes transactions behind one mutex. It backs the in-memory
// stores where allocating an ID and saving the record must not interleave.
type LocalRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewLocalRunner(timeout time.Duration) *LocalRunner {
	return &LocalRunner{timeout: timeout}
}

type localTxKey struct{}

func (t *LocalRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Check if context is already cancelled
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested call from inside fn: already holding the lock.
	if ctx.Value(localTxKey{}) == t {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(context.WithValue(ctx, localTxKey{}, t))
}
