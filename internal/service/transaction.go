package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/database"
	"github.com/straye-as/offer-pipeline-api/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 50 * time.Millisecond
	maxRetryDelay     = 2 * time.Second
)

// TxRunner runs a unit of work in one database transaction. The whole unit is
// retried on transient storage errors, so fn must not keep state between
// attempts.
type TxRunner struct {
	db         *gorm.DB
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewTxRunner creates a TxRunner from the pipeline retry settings
func NewTxRunner(db *gorm.DB, cfg *config.PipelineConfig, logger *zap.Logger) *TxRunner {
	r := &TxRunner{
		db:         db,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultRetryDelay,
		logger:     logger,
	}
	if cfg != nil {
		if cfg.MaxRetries >= 0 {
			r.maxRetries = cfg.MaxRetries
		}
		if cfg.RetryBaseDelayMs > 0 {
			r.baseDelay = cfg.RetryBaseDelay()
		}
	}
	return r
}

// DB returns the connection used outside transactions
func (r *TxRunner) DB() *gorm.DB {
	return r.db
}

// Run executes fn inside a transaction. Domain errors are returned as they
// are; any other failure is returned as a *StorageError once retries are
// exhausted.
func (r *TxRunner) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	backoff := retry.NewExponential(r.baseDelay)
	backoff = retry.WithCappedDuration(maxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(r.maxRetries), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.OfferRetries.WithLabelValues(op).Inc()
			r.logger.Warn("retrying transaction after transient storage error",
				zap.String("op", op),
				zap.Int("attempt", attempt))
		}

		err := r.db.WithContext(ctx).Transaction(fn)
		if err != nil && !isDomainError(err) && database.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	if err == nil || isDomainError(err) {
		return err
	}
	r.logger.Error("transaction failed",
		zap.String("op", op),
		zap.Int("attempts", attempt),
		zap.Error(err))
	return &StorageError{Op: op, Err: err}
}

// isDomainError reports errors that describe the request rather than the
// database, which are never retried or wrapped
func isDomainError(err error) bool {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		audit      *AuditFailureError
		storage    *StorageError
	)
	switch {
	case errors.As(err, &audit), errors.As(err, &validation), errors.As(err, &notFound),
		errors.As(err, &conflict), errors.As(err, &storage):
		return true
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrUnauthorized):
		return true
	}
	return false
}
