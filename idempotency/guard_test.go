package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, options ...Option) *Guard {
	t.Helper()

	guard, err := NewGuard(options...)
	require.NoError(t, err)

	return guard
}

func Test_Guard_EmptyKey_AlwaysExecutes(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)
	executions := 0

	action := func(_ context.Context) (any, error) {
		executions++
		return executions, nil
	}

	first, _ := guard.Do(ctx, "", action)
	second, _ := guard.Do(ctx, "", action)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 2, executions)
}

func Test_Guard_SameKey_ReplaysFirstResult(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)
	executions := 0

	action := func(_ context.Context) (any, error) {
		executions++
		return "first result", nil
	}

	first, firstErr := guard.Do(ctx, "key-1", action)
	second, secondErr := guard.Do(ctx, "key-1", func(_ context.Context) (any, error) {
		executions++
		return "second result", nil
	})

	assert.NoError(t, firstErr)
	assert.NoError(t, secondErr)
	assert.Equal(t, "first result", first)
	assert.Equal(t, "first result", second)
	assert.Equal(t, 1, executions)
}

func Test_Guard_DifferentKeys_AreIsolated(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)

	first, _ := guard.Do(ctx, "key-1", func(_ context.Context) (any, error) { return "one", nil })
	second, _ := guard.Do(ctx, "key-2", func(_ context.Context) (any, error) { return "two", nil })

	assert.Equal(t, "one", first)
	assert.Equal(t, "two", second)
}

func Test_Guard_FailureIsNeverCached(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)
	executions := 0
	transientErr := errors.New("transient failure")

	action := func(_ context.Context) (any, error) {
		executions++
		if executions == 1 {
			return nil, transientErr
		}
		return "recovered", nil
	}

	_, firstErr := guard.Do(ctx, "key-1", action)
	second, secondErr := guard.Do(ctx, "key-1", action)

	assert.ErrorIs(t, firstErr, transientErr)
	assert.NoError(t, secondErr)
	assert.Equal(t, "recovered", second)
	assert.Equal(t, 2, executions)
}

func Test_Guard_ConcurrentCallsExecuteOnce(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)

	var executions atomic.Int32
	release := make(chan struct{})

	action := func(_ context.Context) (any, error) {
		executions.Add(1)
		<-release
		return "shared result", nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]any, callers)
	resultErrs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], resultErrs[i] = guard.Do(ctx, "key-1", action)
		}(i)
	}

	// Give every caller time to either win the flight or queue behind it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load())
	for i := 0; i < callers; i++ {
		assert.NoError(t, resultErrs[i])
		assert.Equal(t, "shared result", results[i])
	}
}

func Test_Guard_WaiterRespectsContextCancellation(t *testing.T) {
	guard := newGuard(t)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = guard.Do(context.Background(), "key-1", func(_ context.Context) (any, error) {
			close(started)
			<-release
			return "slow result", nil
		})
	}()

	<-started

	waiterCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Do(waiterCtx, "key-1", func(_ context.Context) (any, error) {
		return "never runs", nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func Test_Guard_ResultExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	currentTime := now

	guard := newGuard(t,
		WithTTL(time.Minute),
		WithClock(func() time.Time { return currentTime }))

	executions := 0
	action := func(_ context.Context) (any, error) {
		executions++
		return executions, nil
	}

	first, _ := guard.Do(ctx, "key-1", action)
	assert.Equal(t, 1, first)

	currentTime = now.Add(30 * time.Second)
	cached, _ := guard.Do(ctx, "key-1", action)
	assert.Equal(t, 1, cached)

	currentTime = now.Add(2 * time.Minute)
	fresh, _ := guard.Do(ctx, "key-1", action)
	assert.Equal(t, 2, fresh)
}

func Test_Execute_TypedResults(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)

	type response struct{ OrderID string }

	first, firstErr := Execute(ctx, guard, "key-1", func(_ context.Context) (response, error) {
		return response{OrderID: "o1"}, nil
	})
	second, secondErr := Execute(ctx, guard, "key-1", func(_ context.Context) (response, error) {
		return response{OrderID: "o2"}, nil
	})

	assert.NoError(t, firstErr)
	assert.NoError(t, secondErr)
	assert.Equal(t, "o1", first.OrderID)
	assert.Equal(t, "o1", second.OrderID)
}

func Test_Execute_KeySharedAcrossTypesFails(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t)

	_, err := Execute(ctx, guard, "key-1", func(_ context.Context) (string, error) {
		return "a string", nil
	})
	require.NoError(t, err)

	_, typeErr := Execute(ctx, guard, "key-1", func(_ context.Context) (int, error) {
		return 42, nil
	})

	assert.ErrorIs(t, typeErr, ErrUnexpectedResultType)
}

func Test_NewGuard_OptionValidation(t *testing.T) {
	_, ttlErr := NewGuard(WithTTL(0))
	assert.ErrorIs(t, ttlErr, ErrInvalidTTL)

	_, clockErr := NewGuard(WithClock(nil))
	assert.ErrorIs(t, clockErr, ErrNilClock)
}
