// internal/browser/session/context_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("inherits values from the tab", func(t *testing.T) {
		tab := context.WithValue(context.Background(), key, "tab-1")
		ctx, cancel := CombineContext(tab, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", ctx.Value(key))
		assert.NoError(t, ctx.Err())
	})

	t.Run("ends with the tab", func(t *testing.T) {
		tab, cancelTab := context.WithCancel(context.Background())
		ctx, cancel := CombineContext(tab, context.Background())
		defer cancel()

		cancelTab()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("ends with the operation", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())
		ctx, cancel := CombineContext(context.Background(), op)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("adopts the operation deadline", func(t *testing.T) {
		deadline := time.Now().Add(30 * time.Millisecond)
		op, cancelOp := context.WithDeadline(context.Background(), deadline)
		defer cancelOp()
		tab, cancelTab := context.WithTimeout(context.Background(), time.Minute)
		defer cancelTab()

		ctx, cancel := CombineContext(tab, op)
		defer cancel()

		got, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, deadline, got, time.Millisecond)
		<-ctx.Done()
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	})

	t.Run("explicit cancel", func(t *testing.T) {
		ctx, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}
