package cleanup

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls atomic.Int64
	n     int64
	err   error
	block chan struct{}
}

func (p *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return p.n, p.err
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(&fakePurger{}, Config{Schedules: []string{"not a cron spec"}}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(&fakePurger{}, Config{Timeout: -time.Second}, zerolog.Nop())
	require.Error(t, err)
}

func TestDefaultSchedules(t *testing.T) {
	s, err := New(&fakePurger{}, Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestRunOnceRecordsResultAndLogs(t *testing.T) {
	var buf bytes.Buffer
	p := &fakePurger{n: 7}
	s, err := New(p, Config{}, zerolog.New(&buf))
	require.NoError(t, err)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	last, runs := s.Last()
	assert.Equal(t, 1, runs)
	assert.Equal(t, int64(7), last.Purged)
	assert.NoError(t, last.Err)
	assert.Contains(t, buf.String(), `"purged":7`)
	assert.Contains(t, buf.String(), `"component":"cleanup"`)
}

func TestRunOnceReportsFailure(t *testing.T) {
	boom := errors.New("store down")
	s, err := New(&fakePurger{err: boom}, Config{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)

	last, _ := s.Last()
	require.ErrorIs(t, last.Err, boom)
}

func TestRunOnceTimeout(t *testing.T) {
	p := &fakePurger{block: make(chan struct{})}
	s, err := New(p, Config{Timeout: 20 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartRunsScheduledPurges(t *testing.T) {
	p := &fakePurger{n: 1}
	s, err := New(p, Config{Schedules: []string{"@every 1s"}}, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, s.Next().IsZero())
	s.Start()
	s.Start()
	assert.False(t, s.Next().IsZero())

	require.Eventually(t, func() bool { return p.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not finish")
	}
	<-s.Stop().Done()
}

func TestRunOnceSkipsWhilePurgeInFlight(t *testing.T) {
	p := &fakePurger{n: 3, block: make(chan struct{})}
	s, err := New(p, Config{}, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	// A second trigger, as from the other schedule, must not start a purge.
	_, err = s.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrPurgeRunning)
	s.tick()
	assert.Equal(t, int64(1), p.calls.Load())

	close(p.block)
	require.NoError(t, <-done)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, runs := s.Last()
	assert.Equal(t, 2, runs)
}
