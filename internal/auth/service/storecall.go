package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/store"
)

// DefaultStoreTimeout bounds a single store call.
const DefaultStoreTimeout = 3 * time.Second

// storeCall runs fn under a per-call timeout. A transient failure is retried
// once; a second one becomes ErrStoreUnavailable. Other errors pass through
// untouched so callers can still match store.ErrNotFound and friends.
func storeCall[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}

	var (
		out T
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		out, err = fn(cctx)
		cancel()

		if err == nil || !transient(err) {
			return out, err
		}
		if ctx.Err() != nil {
			break
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// storeExec is storeCall for calls without a result.
func storeExec(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := storeCall(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func transient(err error) bool {
	return errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// keyedMutex serialises work per principal inside one process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func nowOrDefault(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
