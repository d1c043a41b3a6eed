package routine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoAndStop(t *testing.T) {
	m := NewManager(context.Background())
	started := make(chan struct{})

	require.NoError(t, m.Go("loop", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.ErrorIs(t, m.Go("loop", func(context.Context) error { return nil }), ErrAlreadyRunning)
	assert.Equal(t, []string{"loop"}, m.Running())

	require.NoError(t, m.Stop("loop"))
	assert.Empty(t, m.Running())
	assert.ErrorIs(t, m.Stop("loop"), ErrNotRunning)
}

func TestValidation(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.Go("", func(context.Context) error { return nil }), ErrEmptyName)
	assert.ErrorIs(t, m.Go("x", nil), ErrNilHandler)
}

func TestNameReusableAfterReturn(t *testing.T) {
	m := NewManager(context.Background())
	done := make(chan struct{})
	require.NoError(t, m.Go("once", func(context.Context) error {
		defer close(done)
		return errors.New("boom")
	}))
	<-done

	require.Eventually(t, func() bool { return len(m.Running()) == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, m.Go("once", func(context.Context) error { return nil }))
}

func TestShutdownWaitsAndRefusesNewWork(t *testing.T) {
	m := NewManager(context.Background())
	for _, n := range []string{"a", "b"} {
		require.NoError(t, m.Go(n, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Empty(t, m.Running())
	assert.ErrorIs(t, m.Go("c", func(context.Context) error { return nil }), ErrManagerStopping)
}

func TestPanicIsContained(t *testing.T) {
	m := NewManager(context.Background())
	require.NoError(t, m.Go("bad", func(context.Context) error { panic("x") }))
	require.Eventually(t, func() bool { return len(m.Running()) == 0 }, time.Second, 5*time.Millisecond)
}
