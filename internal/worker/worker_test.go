package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorker(t *testing.T) {
	job := func(ctx context.Context) error { return nil }

	w, err := NewWorker("test-worker", "5m", time.Minute, job, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "test-worker", w.name)
	assert.Equal(t, 5*time.Minute, w.interval)
	assert.NotNil(t, w.cron)

	w, err = NewWorker("test-worker", "", time.Minute, job, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, w.interval)

	_, err = NewWorker("test-worker", "invalid-duration", time.Minute, job, logger.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid test-worker interval")

	_, err = NewWorker("test-worker", "10ms", time.Minute, job, logger.NewNop())
	assert.Error(t, err)
}

func TestWorker_Start_Stop(t *testing.T) {
	w, err := NewWorker("test-worker", "5m", time.Minute, func(ctx context.Context) error { return nil }, logger.NewNop())
	require.NoError(t, err)

	assert.False(t, w.IsRunning())
	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

func TestWorker_RunOnceRecordsStatus(t *testing.T) {
	fail := errors.New("provider down")
	var calls atomic.Int32
	w, err := NewWorker("test-worker", "1m", time.Minute, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return fail
		}
		return nil
	}, logger.NewNop())
	require.NoError(t, err)

	assert.True(t, w.RunOnce())
	st := w.Status()
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, "provider down", st.LastError)
	assert.False(t, st.LastRun.IsZero())

	assert.True(t, w.RunOnce())
	st = w.Status()
	assert.Equal(t, 2, st.Runs)
	assert.Empty(t, st.LastError)
	assert.Equal(t, "1m0s", st.Interval)
}

func TestWorker_RunsDoNotOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	w, err := NewWorker("slow", "1m", time.Minute, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, logger.NewNop())
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- w.RunOnce() }()
	<-started

	assert.False(t, w.RunOnce())
	close(release)
	assert.True(t, <-done)
}

func TestWorker_StopCancelsRun(t *testing.T) {
	started := make(chan struct{})
	w, err := NewWorker("blocking", "1m", time.Minute, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, logger.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		w.RunOnce()
		close(done)
	}()
	<-started

	require.NoError(t, w.Stop())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run was not cancelled by Stop")
	}
	assert.Equal(t, context.Canceled.Error(), w.Status().LastError)
}

type mockWarmer struct {
	enabled bool
	err     error
	ids     []int64
	purges  int
}

func (m *mockWarmer) Enabled() bool { return m.enabled }

func (m *mockWarmer) Prewarm(ctx context.Context, ids []int64) (int, error) {
	m.ids = ids
	if m.err != nil {
		return 0, m.err
	}
	return len(ids), nil
}

func (m *mockWarmer) PurgeExpired() int {
	m.purges++
	return 0
}

func popularStore() *catalog.Store {
	s, _ := catalog.Build([]catalog.Item{
		{ID: 10, Title: "a", Popularity: 5, SourceRow: 0},
		{ID: 20, Title: "b", Popularity: 50, SourceRow: 1},
		{ID: 30, Title: "c", Popularity: 20, SourceRow: 2},
	})
	return s
}

func TestTopIDs(t *testing.T) {
	assert.Equal(t, []int64{20, 30}, TopIDs(popularStore(), 2))
	assert.Equal(t, []int64{20, 30, 10}, TopIDs(popularStore(), 50))
	assert.Empty(t, TopIDs(catalog.NewEmpty(), 5))
}

func TestPrewarmJob(t *testing.T) {
	warmer := &mockWarmer{enabled: true}
	job := PrewarmJob(popularStore(), warmer, 2, logger.NewNop())

	require.NoError(t, job(context.Background()))
	assert.Equal(t, []int64{20, 30}, warmer.ids)
	assert.Equal(t, 1, warmer.purges)
}

func TestPrewarmJob_Disabled(t *testing.T) {
	warmer := &mockWarmer{}
	job := PrewarmJob(popularStore(), warmer, 2, logger.NewNop())

	require.NoError(t, job(context.Background()))
	assert.Nil(t, warmer.ids)
	assert.Equal(t, 0, warmer.purges)
}

func TestPrewarmJob_Error(t *testing.T) {
	warmer := &mockWarmer{enabled: true, err: errors.New("upstream error")}
	job := PrewarmJob(popularStore(), warmer, 2, logger.NewNop())

	err := job(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prewarm 2 items")
}

func TestNewPrewarmWorker(t *testing.T) {
	w, err := NewPrewarmWorker(&config.WorkerConfig{PrewarmInterval: "10m", PrewarmCount: "5"}, popularStore(), &mockWarmer{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, w.interval)
	assert.Equal(t, "enrichment-prewarm", w.Status().Name)

	w, err = NewPrewarmWorker(nil, popularStore(), &mockWarmer{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultPrewarmInterval, w.interval)

	_, err = NewPrewarmWorker(&config.WorkerConfig{PrewarmCount: "lots"}, popularStore(), &mockWarmer{}, logger.NewNop())
	assert.Error(t, err)
}
