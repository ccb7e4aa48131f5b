package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ArchiveJobName is the name of the daily activity archive job
const ArchiveJobName = "activity_archive"

// ActivityArchiver writes one UTC day of the activity log to storage
type ActivityArchiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (key string, count int, err error)
}

// ArchiveJob copies yesterday's activity log to blob storage. Rows are kept.
type ArchiveJob struct {
	archiver ActivityArchiver
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewArchiveJob(archiver ActivityArchiver, logger *zap.Logger, timeout time.Duration) *ArchiveJob {
	return &ArchiveJob{
		archiver: archiver,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Run archives the UTC day before the current one
func (j *ArchiveJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	day := j.now().UTC().AddDate(0, 0, -1)
	key, count, err := j.archiver.ArchiveDay(ctx, day)
	if err != nil {
		return err
	}

	j.logger.Info("activity archive written",
		zap.String("day", day.Format("2006-01-02")),
		zap.String("key", key),
		zap.Int("count", count))
	return nil
}

// RegisterArchiveJob registers the activity archive job with the scheduler.
func RegisterArchiveJob(scheduler *Scheduler, archiver ActivityArchiver, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewArchiveJob(archiver, logger, timeout)
	return scheduler.AddJob(ArchiveJobName, cronExpr, job.Run)
}
