package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// BookingSyncJobName is the name of the SAP booking date sync job
const BookingSyncJobName = "sap_booking_sync"

// DefaultBookingBatch caps how many offers one run looks up
const DefaultBookingBatch = 200

// BookingOfferService is the part of the offer service the sync needs.
// Updates go through the normal pipeline so the stage rules and the
// activity log apply.
type BookingOfferService interface {
	ListAwaitingBooking(ctx context.Context, limit int) ([]domain.Offer, error)
	Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOfferRequest) (*domain.OfferDTO, error)
}

// BookingSource looks up SAP booking dates by purchase order number
type BookingSource interface {
	GetSAPBookingDates(ctx context.Context, poNumbers []string) (map[string]time.Time, error)
}

// BookingSyncJob moves PO_RECEIVED offers to ORDER_BOOKED once the data
// warehouse reports their SAP booking date.
type BookingSyncJob struct {
	offers  BookingOfferService
	source  BookingSource
	logger  *zap.Logger
	timeout time.Duration
	batch   int
}

func NewBookingSyncJob(offers BookingOfferService, source BookingSource, logger *zap.Logger, timeout time.Duration) *BookingSyncJob {
	return &BookingSyncJob{
		offers:  offers,
		source:  source,
		logger:  logger,
		timeout: timeout,
		batch:   DefaultBookingBatch,
	}
}

// Run executes one sync pass. A failed offer is logged and skipped; the run
// fails only when nothing could be looked up or every update failed.
func (j *BookingSyncJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	ctx = auth.WithUserContext(ctx, auth.SystemUser())

	synced, failed, err := j.sync(ctx)
	if err != nil {
		return err
	}

	j.logger.Info("SAP booking sync completed",
		zap.Int("offers_booked", synced),
		zap.Int("offers_failed", failed))

	if failed > 0 && synced == 0 {
		return fmt.Errorf("all %d booking updates failed", failed)
	}
	return nil
}

func (j *BookingSyncJob) sync(ctx context.Context) (synced int, failed int, err error) {
	offers, err := j.offers.ListAwaitingBooking(ctx, j.batch)
	if err != nil {
		return 0, 0, err
	}
	if len(offers) == 0 {
		return 0, 0, nil
	}

	poNumbers := make([]string, 0, len(offers))
	for _, o := range offers {
		poNumbers = append(poNumbers, o.PONumber)
	}

	dates, err := j.source.GetSAPBookingDates(ctx, poNumbers)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up SAP booking dates: %w", err)
	}

	for _, o := range offers {
		booked, ok := dates[o.PONumber]
		if !ok {
			continue
		}

		version := o.Version
		day := booked.UTC().Format("2006-01-02")
		stage := domain.StageOrderBooked
		_, err := j.offers.Update(ctx, o.ID, &domain.UpdateOfferRequest{
			Version:          &version,
			Stage:            &stage,
			BookingDateInSAP: &day,
		})
		if err != nil {
			failed++
			j.logger.Warn("failed to book offer from SAP",
				zap.String("offer_id", o.ID.String()),
				zap.String("reference_number", o.ReferenceNumber),
				zap.Error(err))
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// RegisterBookingSyncJob registers the SAP booking sync job with the scheduler.
// The cronExpr should be a valid cron expression (e.g., "0 15 * * * *" for 15 minutes past every hour).
func RegisterBookingSyncJob(scheduler *Scheduler, offers BookingOfferService, source BookingSource, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewBookingSyncJob(offers, source, logger, timeout)
	return scheduler.AddJob(BookingSyncJobName, cronExpr, job.Run)
}
