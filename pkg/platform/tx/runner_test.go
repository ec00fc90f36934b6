package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "insurely/pkg/domain-errors"
)

func TestLocalRunner_PropagatesError(t *testing.T) {
	r := NewLocalRunner(time.Second)
	boom := errors.New("boom")
	err := r.RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLocalRunner_CancelledContext(t *testing.T) {
	r := NewLocalRunner(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := r.RunInTx(ctx, func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestLocalRunner_Nested(t *testing.T) {
	r := NewLocalRunner(time.Second)
	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		return r.RunInTx(ctx, func(context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

func TestLocalRunner_Serializes(t *testing.T) {
	r := NewLocalRunner(time.Second)
	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				v := counter
				time.Sleep(10 * time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
