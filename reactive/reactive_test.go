package reactive_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactiveui/modelgen/reactive"
)

func TestLocalNotifierDeliversInSubscriptionOrder(t *testing.T) {
	n := reactive.NewLocalNotifier()
	var got []string
	n.Subscribe("Login.Username", func(reactive.ChangeKey) { got = append(got, "first") })
	n.Subscribe("Login.Username", func(reactive.ChangeKey) { got = append(got, "second") })
	n.Subscribe("Login.Password", func(reactive.ChangeKey) { got = append(got, "other") })

	n.Publish("Login.Username")
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestLocalNotifierUnsubscribe(t *testing.T) {
	n := reactive.NewLocalNotifier()
	calls := 0
	sub := n.Subscribe("Login.Username", func(reactive.ChangeKey) { calls++ })

	n.Publish("Login.Username")
	sub.Unsubscribe()
	n.Publish("Login.Username")
	assert.Equal(t, 1, calls)
}

func TestCommandPredicateGatesExecute(t *testing.T) {
	executed := false
	allowed := false
	cmd := reactive.NewCommand(
		func(context.Context) error { executed = true; return nil },
		func() bool { return allowed },
	)

	assert.False(t, cmd.CanExecute())
	require.NoError(t, cmd.Execute(context.Background()))
	assert.False(t, executed, "gated command must not run")

	allowed = true
	require.NoError(t, cmd.Execute(context.Background()))
	assert.True(t, executed)
}

func TestCommandNilPredicateAlwaysExecutable(t *testing.T) {
	wantErr := errors.New("boom")
	cmd := reactive.NewCommand(func(context.Context) error { return wantErr }, nil)
	assert.True(t, cmd.CanExecute())
	assert.Equal(t, wantErr, cmd.Execute(context.Background()))
}

func TestModelPublishBeforeAttachIsSilent(t *testing.T) {
	var m reactive.Model
	m.Publish("Login.Username") // must not panic
	assert.Nil(t, m.Watch("Login.Username", func(reactive.ChangeKey) {}))
}

func TestModelWatchAndDetach(t *testing.T) {
	var m reactive.Model
	n := reactive.NewLocalNotifier()
	m.Attach(n)

	calls := 0
	require.NotNil(t, m.Watch("Login.Username", func(reactive.ChangeKey) { calls++ }))

	m.Publish("Login.Username")
	assert.Equal(t, 1, calls)

	m.Detach()
	n.Publish("Login.Username")
	assert.Equal(t, 1, calls, "detach drops the subscription")
	m.Publish("Login.Username") // detached models stay callable
}

func TestModelCommandBuiltOnce(t *testing.T) {
	var m reactive.Model
	builds := 0
	build := func() *reactive.Command {
		builds++
		return reactive.NewCommand(func(context.Context) error { return nil }, nil)
	}
	first := m.Command("Login", build)
	second := m.Command("Login", build)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
}

func TestAsyncRunnerMergeDropsOverlapping(t *testing.T) {
	r := reactive.NewAsyncRunner(reactive.ModeMerge)

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	r.Run(context.Background(), func(context.Context) {
		runs.Add(1)
		close(started)
		<-release
	})
	<-started

	r.Run(context.Background(), func(context.Context) { runs.Add(1) })
	close(release)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "overlapping invocation is dropped, not queued")
}

func TestAsyncRunnerSwitchCancelsPrevious(t *testing.T) {
	r := reactive.NewAsyncRunner(reactive.ModeSwitch)

	canceled := make(chan struct{})
	started := make(chan struct{})
	r.Run(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(canceled)
	})
	<-started

	r.Run(context.Background(), func(context.Context) {})

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("previous invocation was not canceled")
	}
}

func TestAsyncRunnerConcurrentRunsAll(t *testing.T) {
	r := reactive.NewAsyncRunner(reactive.ModeConcurrent)

	var wg sync.WaitGroup
	var runs atomic.Int32
	wg.Add(2)
	for i := 0; i < 2; i++ {
		r.Run(context.Background(), func(context.Context) {
			runs.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

func TestAsyncModeString(t *testing.T) {
	assert.Equal(t, "switch", reactive.ModeSwitch.String())
	assert.Equal(t, "merge", reactive.ModeMerge.String())
	assert.Equal(t, "concurrent", reactive.ModeConcurrent.String())
}
