package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/changes"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/events"
	applog "github.com/straye-as/offer-pipeline-api/internal/logger"
	"github.com/straye-as/offer-pipeline-api/internal/mapper"
	"github.com/straye-as/offer-pipeline-api/internal/metrics"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
	"github.com/straye-as/offer-pipeline-api/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OfferService is the only writer of offers. Every mutation validates the
// stage rules, diffs the offer and records the activity log in the same
// transaction.
type OfferService struct {
	txRunner      *TxRunner
	offerRepo     *repository.OfferRepository
	customerRepo  *repository.CustomerRepository
	contactRepo   *repository.ContactRepository
	zoneRepo      *repository.ZoneRepository
	assetRepo     *repository.AssetRepository
	sparePartRepo *repository.SparePartRepository
	numberSeq     *NumberSequenceService
	recorder      Recorder
	policy        stage.Policy
	events        *events.Manager
	logger        *zap.Logger
	now           func() time.Time
}

func NewOfferService(
	txRunner *TxRunner,
	offerRepo *repository.OfferRepository,
	customerRepo *repository.CustomerRepository,
	contactRepo *repository.ContactRepository,
	zoneRepo *repository.ZoneRepository,
	assetRepo *repository.AssetRepository,
	sparePartRepo *repository.SparePartRepository,
	numberSeq *NumberSequenceService,
	recorder Recorder,
	policy stage.Policy,
	eventManager *events.Manager,
	logger *zap.Logger,
) *OfferService {
	return &OfferService{
		txRunner:      txRunner,
		offerRepo:     offerRepo,
		customerRepo:  customerRepo,
		contactRepo:   contactRepo,
		zoneRepo:      zoneRepo,
		assetRepo:     assetRepo,
		sparePartRepo: sparePartRepo,
		numberSeq:     numberSeq,
		recorder:      recorder,
		policy:        policy,
		events:        eventManager,
		logger:        logger,
		now:           time.Now,
	}
}

// committed describes a mutation that changed stored state
type committed struct {
	offerID   uuid.UUID
	reference string
	zoneID    uuid.UUID
	action    domain.ActivityAction
	fromStage domain.OfferStage
	toStage   domain.OfferStage
}

// Create validates a new offer against its starting stage, assigns a
// reference number and records OFFER_CREATED.
func (s *OfferService) Create(ctx context.Context, req *domain.CreateOfferRequest) (*domain.OfferDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "OfferService.Create")
	defer span.End()

	var done *committed
	err := s.txRunner.Run(ctx, "create", func(tx *gorm.DB) error {
		done = nil
		blank := &domain.Offer{Stage: domain.StageInitial}
		offer, err := applyPatch(blank, req.Patch())
		if err != nil {
			return err
		}
		offer.Version = 1

		if err := s.policy.ValidateTransition(domain.StageInitial, offer.Stage, stage.FieldsFromOffer(offer)); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, tx, blank, offer); err != nil {
			return err
		}

		zone, err := s.zoneRepo.WithTx(tx).GetByID(ctx, offer.ZoneID)
		if err != nil {
			return lookupError("zone", offer.ZoneID, err)
		}
		ref, err := s.numberSeq.GenerateOfferNumber(ctx, tx, zone.Code, s.now())
		if err != nil {
			return err
		}
		offer.ReferenceNumber = ref
		if user, ok := auth.FromContext(ctx); ok {
			offer.CreatedByID = user.ActorID()
			offer.CreatedByName = user.DisplayName
		}

		repo := s.offerRepo.WithTx(tx)
		if err := repo.Create(ctx, offer); err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		if err := repo.ReplaceAssets(ctx, offer.ID, offer.AssetIDs()); err != nil {
			return err
		}
		lines, err := s.sparePartLines(ctx, tx, offer.ID, req.SpareParts)
		if err != nil {
			return err
		}
		if err := repo.AddSpareParts(ctx, lines); err != nil {
			return fmt.Errorf("failed to add spare parts: %w", err)
		}

		entry := AuditEntry{
			Action:          domain.ActionOfferCreated,
			EntityType:      domain.EntityOffer,
			EntityID:        &offer.ID,
			ReferenceNumber: offer.ReferenceNumber,
			ZoneID:          &offer.ZoneID,
			Details:         domain.OfferCreatedDetails{Offer: changes.FromOffer(offer).Display()},
		}
		if stage.IsRemarkBearing(offer.Stage) && offer.Remarks != "" {
			entry.Remark = &domain.StageRemark{OfferID: offer.ID, Stage: offer.Stage, Content: offer.Remarks}
		}
		if err := s.record(ctx, tx, entry); err != nil {
			return err
		}

		done = &committed{
			offerID:   offer.ID,
			reference: offer.ReferenceNumber,
			zoneID:    offer.ZoneID,
			action:    domain.ActionOfferCreated,
			toStage:   offer.Stage,
		}
		return nil
	})
	s.observe(span, "create", err, done)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, done)
	s.logger.Info("offer created",
		zap.String("offerID", done.offerID.String()),
		zap.String("reference", done.reference))
	return s.GetByID(ctx, done.offerID)
}

// Update applies a partial update. A patch that changes nothing commits
// nothing and returns the stored offer.
func (s *OfferService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOfferRequest) (*domain.OfferDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "OfferService.Update", attribute.String("offer.id", id.String()))
	defer span.End()

	var done *committed
	err := s.txRunner.Run(ctx, "update", func(tx *gorm.DB) error {
		done = nil
		current, err := s.lockOffer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkVersion(current, req.Version); err != nil {
			return err
		}

		merged, err := applyPatch(current, req)
		if err != nil {
			return err
		}
		if err := s.policy.ValidateTransition(current.Stage, merged.Stage, stage.FieldsFromOffer(merged)); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, tx, current, merged); err != nil {
			return err
		}

		diff := changes.Diff(changes.FromOffer(current), changes.FromOffer(merged))
		if len(diff) == 0 {
			return nil
		}
		if err := s.writeOffer(ctx, tx, current, merged, diff); err != nil {
			return err
		}

		err = s.record(ctx, tx, AuditEntry{
			Action:          domain.ActionOfferUpdated,
			EntityType:      domain.EntityOffer,
			EntityID:        &current.ID,
			ReferenceNumber: current.ReferenceNumber,
			ZoneID:          &merged.ZoneID,
			Details:         domain.OfferUpdatedDetails{Changes: diff},
			Remark:          stageRemarkFor(merged, diff),
		})
		if err != nil {
			return err
		}

		done = &committed{
			offerID:   current.ID,
			reference: current.ReferenceNumber,
			zoneID:    merged.ZoneID,
			action:    domain.ActionOfferUpdated,
			fromStage: current.Stage,
			toStage:   merged.Stage,
		}
		return nil
	})
	s.observe(span, "update", err, done)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, done)
	return s.GetByID(ctx, id)
}

// UpdateStatus moves an offer to another stage and/or lead status. Notes are
// kept as a stage remark, and as the offer remarks when closing as LOST.
func (s *OfferService) UpdateStatus(ctx context.Context, id uuid.UUID, req *domain.UpdateOfferStatusRequest) (*domain.OfferDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "OfferService.UpdateStatus", attribute.String("offer.id", id.String()))
	defer span.End()

	var done *committed
	err := s.txRunner.Run(ctx, "update_status", func(tx *gorm.DB) error {
		done = nil
		current, err := s.lockOffer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkVersion(current, req.Version); err != nil {
			return err
		}

		merged := cloneOffer(current)
		if req.Stage != nil {
			merged.Stage = *req.Stage
		}
		if req.LeadStatus != nil {
			if !req.LeadStatus.IsValid() {
				return invalidField(stage.FieldLeadStatus, "must be HOT, WARM or COLD")
			}
			merged.LeadStatus = *req.LeadStatus
		}
		notes := strings.TrimSpace(req.Notes)
		if merged.Stage == domain.StageLost && notes != "" {
			merged.Remarks = notes
		}

		if err := s.policy.ValidateTransition(current.Stage, merged.Stage, stage.FieldsFromOffer(merged)); err != nil {
			return err
		}

		diff := changes.Diff(changes.FromOffer(current), changes.FromOffer(merged))
		if len(diff) == 0 && notes == "" {
			return nil
		}
		if len(diff) > 0 {
			if err := s.writeOffer(ctx, tx, current, merged, diff); err != nil {
				return err
			}
		}

		details := domain.OfferStatusUpdatedDetails{
			FromStage: current.Stage,
			ToStage:   merged.Stage,
			Notes:     notes,
		}
		if current.LeadStatus != merged.LeadStatus {
			details.FromStatus = current.LeadStatus
			details.ToStatus = merged.LeadStatus
		}
		entry := AuditEntry{
			Action:          domain.ActionOfferStatusUpdated,
			EntityType:      domain.EntityOffer,
			EntityID:        &current.ID,
			ReferenceNumber: current.ReferenceNumber,
			ZoneID:          &current.ZoneID,
			Details:         details,
		}
		if notes != "" {
			entry.Remark = &domain.StageRemark{OfferID: current.ID, Stage: merged.Stage, Content: notes}
		}
		if err := s.record(ctx, tx, entry); err != nil {
			return err
		}

		done = &committed{
			offerID:   current.ID,
			reference: current.ReferenceNumber,
			zoneID:    current.ZoneID,
			action:    domain.ActionOfferStatusUpdated,
			fromStage: current.Stage,
			toStage:   merged.Stage,
		}
		return nil
	})
	s.observe(span, "update_status", err, done)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, done)
	return s.GetByID(ctx, id)
}

// AddNote appends a stage remark at the offer's current stage
func (s *OfferService) AddNote(ctx context.Context, id uuid.UUID, req *domain.AddStageRemarkRequest) (*domain.OfferDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "OfferService.AddNote", attribute.String("offer.id", id.String()))
	defer span.End()

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalidField("content", "must not be empty")
	}

	var done *committed
	err := s.txRunner.Run(ctx, "add_note", func(tx *gorm.DB) error {
		done = nil
		current, err := s.lockOffer(ctx, tx, id)
		if err != nil {
			return err
		}

		err = s.record(ctx, tx, AuditEntry{
			Action:          domain.ActionOfferNoteAdded,
			EntityType:      domain.EntityOffer,
			EntityID:        &current.ID,
			ReferenceNumber: current.ReferenceNumber,
			ZoneID:          &current.ZoneID,
			Details:         domain.OfferNoteAddedDetails{Stage: current.Stage, Content: content},
			Remark:          &domain.StageRemark{OfferID: current.ID, Stage: current.Stage, Content: content},
		})
		if err != nil {
			return err
		}

		done = &committed{
			offerID:   current.ID,
			reference: current.ReferenceNumber,
			zoneID:    current.ZoneID,
			action:    domain.ActionOfferNoteAdded,
			fromStage: current.Stage,
			toStage:   current.Stage,
		}
		return nil
	})
	s.observe(span, "add_note", err, done)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, done)
	return s.GetByID(ctx, id)
}

// Delete soft-deletes an offer. Its activity history stays readable by
// reference number.
func (s *OfferService) Delete(ctx context.Context, id uuid.UUID, version *int) error {
	ctx, span := tracing.StartSpan(ctx, "OfferService.Delete", attribute.String("offer.id", id.String()))
	defer span.End()

	var done *committed
	err := s.txRunner.Run(ctx, "delete", func(tx *gorm.DB) error {
		done = nil
		current, err := s.lockOffer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkVersion(current, version); err != nil {
			return err
		}

		repo := s.offerRepo.WithTx(tx)
		n, err := repo.SoftDelete(ctx, id, current.Version)
		if err != nil {
			return fmt.Errorf("failed to delete offer: %w", err)
		}
		if n == 0 {
			return s.conflict(ctx, tx, id, current.Version)
		}

		err = s.record(ctx, tx, AuditEntry{
			Action:          domain.ActionOfferDeleted,
			EntityType:      domain.EntityOffer,
			EntityID:        &current.ID,
			ReferenceNumber: current.ReferenceNumber,
			ZoneID:          &current.ZoneID,
			Details:         domain.OfferDeletedDetails{Title: current.Title, Stage: current.Stage},
		})
		if err != nil {
			return err
		}

		done = &committed{
			offerID:   current.ID,
			reference: current.ReferenceNumber,
			zoneID:    current.ZoneID,
			action:    domain.ActionOfferDeleted,
			fromStage: current.Stage,
			toStage:   current.Stage,
		}
		return nil
	})
	s.observe(span, "delete", err, done)
	if err != nil {
		return err
	}

	s.afterCommit(ctx, done)
	return nil
}

// GetByID returns an offer with its relations and stage remarks
func (s *OfferService) GetByID(ctx context.Context, id uuid.UUID) (*domain.OfferDTO, error) {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("offer", id)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	dto := mapper.ToOfferDTO(offer)
	return &dto, nil
}

// List returns a page of offers visible to the caller
func (s *OfferService) List(ctx context.Context, filters repository.OfferFilters, sort repository.SortConfig, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)

	offers, total, err := s.offerRepo.List(ctx, filters, sort, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	dtos := make([]domain.OfferDTO, len(offers))
	for i := range offers {
		dtos[i] = mapper.ToOfferDTO(&offers[i])
	}

	p := domain.NewPagination(total, page, pageSize)
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: p.Pages,
	}, nil
}

// ListAwaitingBooking returns PO_RECEIVED offers that have a PO number but no
// SAP booking date yet
func (s *OfferService) ListAwaitingBooking(ctx context.Context, limit int) ([]domain.Offer, error) {
	return s.offerRepo.ListAwaitingBooking(ctx, limit)
}

// lockOffer loads the offer with its assets for the rest of tx
func (s *OfferService) lockOffer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Offer, error) {
	offer, err := s.offerRepo.WithTx(tx).GetForUpdate(ctx, id)
	if err != nil {
		return nil, lookupError("offer", id, err)
	}
	return offer, nil
}

// writeOffer stores merged over current with a version check
func (s *OfferService) writeOffer(ctx context.Context, tx *gorm.DB, current, merged *domain.Offer, diff map[string]changes.FieldChange) error {
	repo := s.offerRepo.WithTx(tx)
	n, err := repo.UpdateVersioned(ctx, current.ID, current.Version, offerColumns(merged, s.now()))
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}
	if n == 0 {
		return s.conflict(ctx, tx, current.ID, current.Version)
	}
	if _, ok := diff[changes.KeyAssetIDs]; ok {
		if err := repo.ReplaceAssets(ctx, current.ID, merged.AssetIDs()); err != nil {
			return fmt.Errorf("failed to update offer assets: %w", err)
		}
	}
	return nil
}

func (s *OfferService) conflict(ctx context.Context, tx *gorm.DB, id uuid.UUID, expected int) error {
	actual, err := s.offerRepo.WithTx(tx).CurrentVersion(ctx, id)
	if err != nil {
		actual = 0
	}
	return &ConflictError{OfferID: id, Expected: expected, Actual: actual}
}

// checkReferences verifies that every reference the patch changed exists and
// that the caller may place the offer in the target zone
func (s *OfferService) checkReferences(ctx context.Context, tx *gorm.DB, current, merged *domain.Offer) error {
	if merged.ZoneID != uuid.Nil && merged.ZoneID != current.ZoneID {
		if !repository.HasZoneAccess(ctx, merged.ZoneID) {
			return fmt.Errorf("%w: zone %s", ErrPermissionDenied, merged.ZoneID)
		}
		if _, err := s.zoneRepo.WithTx(tx).GetByID(ctx, merged.ZoneID); err != nil {
			return lookupError("zone", merged.ZoneID, err)
		}
	}

	if merged.CustomerID != uuid.Nil && merged.CustomerID != current.CustomerID {
		ok, err := s.customerRepo.WithTx(tx).Exists(ctx, merged.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to verify customer: %w", err)
		}
		if !ok {
			return notFound("customer", merged.CustomerID)
		}
	}

	customerChanged := merged.CustomerID != current.CustomerID
	if merged.ContactID != uuid.Nil && (merged.ContactID != current.ContactID || customerChanged) {
		contact, err := s.contactRepo.WithTx(tx).GetByID(ctx, merged.ContactID)
		if err != nil {
			return lookupError("contact", merged.ContactID, err)
		}
		if contact.CustomerID != merged.CustomerID {
			return invalidField(stage.FieldContact, "contact does not belong to the customer")
		}
	}

	if len(changes.Diff(
		changes.Snapshot{changes.KeyAssetIDs: current.AssetIDs()},
		changes.Snapshot{changes.KeyAssetIDs: merged.AssetIDs()},
	)) > 0 {
		missing, err := s.assetRepo.WithTx(tx).MissingIDs(ctx, merged.AssetIDs())
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return notFound("asset", missing[0])
		}
	}
	return nil
}

// sparePartLines prices the requested spare parts from the catalog
func (s *OfferService) sparePartLines(ctx context.Context, tx *gorm.DB, offerID uuid.UUID, reqs []domain.OfferSparePartRequest) ([]domain.OfferSparePart, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(reqs))
	for i, r := range reqs {
		ids[i] = r.SparePartID
	}
	catalog, err := s.sparePartRepo.WithTx(tx).GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load spare parts: %w", err)
	}

	lines := make([]domain.OfferSparePart, 0, len(reqs))
	for _, r := range reqs {
		part, ok := catalog[r.SparePartID]
		if !ok {
			return nil, notFound("spare part", r.SparePartID)
		}
		if r.Quantity < 1 {
			return nil, invalidField("spareParts", "quantity must be at least 1")
		}
		lines = append(lines, domain.OfferSparePart{
			OfferID:     offerID,
			SparePartID: part.ID,
			Quantity:    r.Quantity,
			UnitPrice:   part.UnitPrice,
		})
	}
	return lines, nil
}

// record writes the audit entry through the offer recorder
func (s *OfferService) record(ctx context.Context, tx *gorm.DB, entry AuditEntry) error {
	return recordAudit(ctx, s.recorder, tx, entry)
}

// afterCommit publishes the change and updates the counters
func (s *OfferService) afterCommit(ctx context.Context, c *committed) {
	if c == nil {
		return
	}
	metrics.ActivityLogs.WithLabelValues(string(c.action)).Inc()
	if c.fromStage != "" && c.fromStage != c.toStage {
		metrics.StageTransitions.WithLabelValues(string(c.fromStage), string(c.toStage)).Inc()
	}
	applog.WithTrace(ctx, applog.WithOffer(s.logger, c.offerID.String(), c.reference)).Debug("offer change committed",
		zap.String("action", string(c.action)),
		zap.String("stage", string(c.toStage)))
	if s.events != nil {
		s.events.PublishOfferChanged(ctx, events.OfferChangedData{
			OfferID:         c.offerID,
			ReferenceNumber: c.reference,
			ZoneID:          c.zoneID,
			Action:          c.action,
			Stage:           c.toStage,
		})
	}
}

// observe counts the outcome of a mutation and marks failed spans
func (s *OfferService) observe(span trace.Span, op string, err error, c *committed) {
	outcome := outcomeOf(err)
	if err == nil && c == nil {
		outcome = "noop"
	}
	metrics.OfferMutations.WithLabelValues(op, outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}

// outcomeOf maps an error onto a metrics label
func outcomeOf(err error) string {
	var (
		validation *ValidationError
		conflict   *ConflictError
		audit      *AuditFailureError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &audit):
		return "audit_failure"
	case errors.As(err, &validation), errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return "error"
}

// checkVersion compares a client-supplied version with the stored one
func checkVersion(current *domain.Offer, version *int) error {
	if version == nil || *version == current.Version {
		return nil
	}
	return &ConflictError{OfferID: current.ID, Expected: *version, Actual: current.Version}
}

// lookupError turns a failed lookup into a NotFoundError when the row is missing
func lookupError(entity string, id uuid.UUID, err error) error {
	if repository.IsNotFound(err) {
		return notFound(entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}
