package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, s.AddJob("nightly", "0 15 2 * * *", noop))
	assert.Error(t, s.AddJob("nightly", "@daily", noop), "duplicate names are rejected")
	assert.Error(t, s.AddJob("broken", "not a cron", noop))
	assert.ElementsMatch(t, []string{"nightly"}, s.GetJobNames())

	require.NoError(t, s.RemoveJob("nightly"))
	assert.Error(t, s.RemoveJob("nightly"))
	assert.Empty(t, s.GetJobNames())
}

func TestScheduler_RunsAndStops(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int32
	started := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx), "running jobs see the cancelled context")
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestScheduler_RunNowReturnsJobError(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	want := errors.New("warehouse unreachable")

	err := s.RunNow("sap_booking_sync", func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
	assert.NoError(t, s.RunNow("activity_archive", func(ctx context.Context) error { return nil }))
}

type fakeArchiver struct {
	day   time.Time
	calls int
	err   error
}

func (f *fakeArchiver) ArchiveDay(ctx context.Context, day time.Time) (string, int, error) {
	f.calls++
	f.day = day
	if f.err != nil {
		return "", 0, f.err
	}
	return "activity/2025/06/2025-06-01.json", 7, nil
}

func TestArchiveJob_ArchivesPreviousUTCDay(t *testing.T) {
	archiver := &fakeArchiver{}
	job := NewArchiveJob(archiver, zap.NewNop(), time.Minute)
	oslo := time.FixedZone("CEST", 2*60*60)
	job.now = func() time.Time { return time.Date(2025, 6, 2, 1, 30, 0, 0, oslo) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, archiver.calls)
	assert.Equal(t, "2025-05-31", archiver.day.Format("2006-01-02"), "01:30 CEST on June 2nd is June 1st in UTC")

	archiver.err = errors.New("container missing")
	assert.ErrorContains(t, job.Run(context.Background()), "container missing")
}

func TestRegisterArchiveJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	require.NoError(t, RegisterArchiveJob(s, &fakeArchiver{}, zap.NewNop(), "0 5 1 * * *", time.Minute))
	assert.Equal(t, []string{ArchiveJobName}, s.GetJobNames())
}
