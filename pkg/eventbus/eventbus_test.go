package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct{ name string }

func (e testEvent) Name() string { return e.name }

func TestBus_PublishCallsSubscribers(t *testing.T) {
	bus := New(zap.NewNop())
	var calls int32

	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("ошибка обработчика не мешает остальным")
	})
	bus.Subscribe("b", func(ctx context.Context, event Event) error {
		t.Error("обработчик чужого события не должен вызываться")
		return nil
	})

	bus.Publish(context.Background(), testEvent{name: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBus_PublishSurvivesCanceledContext(t *testing.T) {
	bus := New(zap.NewNop())
	got := make(chan error, 1)
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		got <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{name: "a"})

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("обработчик не был вызван")
	}
}
