package cleanup

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIsLIFOAndOnce(t *testing.T) {
	r := New()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		r.Register(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	assert.Equal(t, 3, r.Len())

	r.Run()
	r.Run()
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Zero(t, r.Len())
}

func TestUnregister(t *testing.T) {
	r := New()
	ran := false
	h := r.Register("lock", func() error {
		ran = true
		return nil
	})

	assert.True(t, r.Unregister(h))
	assert.False(t, r.Unregister(h), "second unregister is a no-op")
	r.Run()
	assert.False(t, ran)
}

func TestRunContinuesAfterFailure(t *testing.T) {
	r := New()
	var ran []string
	r.Register("ok", func() error {
		ran = append(ran, "ok")
		return nil
	})
	r.Register("broken", func() error {
		ran = append(ran, "broken")
		return fmt.Errorf("boom")
	})

	r.Run()
	assert.Equal(t, []string{"broken", "ok"}, ran)
}

func TestConcurrentRegister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.Register("x", func() error { return nil })
			r.Unregister(h)
		}()
	}
	wg.Wait()
	assert.Zero(t, r.Len())
}

func TestHandleSignals(t *testing.T) {
	r := New()
	ran := make(chan struct{})
	r.Register("tunnel", func() error {
		close(ran)
		return nil
	})

	ctx, stop := r.HandleSignals(context.Background(), syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("hook did not run on signal")
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled after hooks ran")
	}
}

func TestHandleSignalsStop(t *testing.T) {
	r := New()
	ctx, stop := r.HandleSignals(context.Background(), syscall.SIGUSR2)
	stop()
	stop()
	assert.Error(t, ctx.Err())
}
