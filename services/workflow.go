package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civic-fix/api-go/metrics"
	"github.com/civic-fix/api-go/models"
	"go.uber.org/zap"
)

// Notifier is satisfied by *Dispatcher.
type Notifier interface {
	Notify(event Event, phone string)
}

type Stores struct {
	Reports  ReportStore
	Repairs  RepairStore
	Assets   AssetStore
	Activity ActivityStore
}

type WorkflowOptions struct {
	ReportUploads     IngestOptions
	CompletionUploads IngestOptions
	Now               func() time.Time
	Logger            *zap.Logger
}

// Workflow is the entry point for every lifecycle operation. Each method
// persists its primary state change first; SMS, asset status and activity
// writes follow and their failures are logged, never returned.
type Workflow struct {
	Reports *ReportMachine
	Repairs *RepairMachine

	stores   Stores
	images   *ImagePipeline
	notifier Notifier
	opts     WorkflowOptions
	now      func() time.Time
	log      *zap.Logger
}

func NewWorkflow(stores Stores, tickets *TicketAllocator, images *ImagePipeline, notifier Notifier, opts WorkflowOptions) *Workflow {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ReportUploads.KeyPrefix == "" {
		opts.ReportUploads.KeyPrefix = "reports"
	}
	if opts.CompletionUploads.KeyPrefix == "" {
		opts.CompletionUploads.KeyPrefix = "repairs/completion"
	}
	return &Workflow{
		Reports:  NewReportMachine(stores.Reports, stores.Assets, tickets, now),
		Repairs:  NewRepairMachine(stores.Repairs, now),
		stores:   stores,
		images:   images,
		notifier: notifier,
		opts:     opts,
		now:      now,
		log:      log,
	}
}

type SubmitResult struct {
	Report       *models.Report
	UploadErrors []*UploadError
}

// SubmitReport validates, ingests images best-effort, allocates a ticket and
// persists a PENDING report, then sends the confirmation SMS.
func (w *Workflow) SubmitReport(ctx context.Context, in SubmitReportInput, files []RawUpload) (*SubmitResult, error) {
	if err := w.Reports.Validate(ctx, &in); err != nil {
		return nil, err
	}

	var urls []string
	var uploadErrs []*UploadError
	if len(files) > 0 {
		var err error
		urls, uploadErrs, err = w.images.Ingest(ctx, files, w.opts.ReportUploads)
		if err != nil {
			return nil, err
		}
	}

	report, err := w.Reports.Create(ctx, in, urls)
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(models.EntityReport, string(models.ReportPending)).Inc()

	w.record(ctx, models.EntityReport, report.ID, report.TicketID, models.ActivityReportSubmitted, in.ReportedBy,
		fmt.Sprintf("type=%s images=%d failed_uploads=%d", report.ReportType, len(urls), len(uploadErrs)))
	w.notify(Event{Kind: EventReportConfirmation, TicketID: report.TicketID}, report.ReporterPhone)

	return &SubmitResult{Report: report, UploadErrors: uploadErrs}, nil
}

type ReviewResult struct {
	Report *models.Report
	// Repair is set only when this review spawned it.
	Repair *models.Repair
}

// ReviewReport applies a staff review. Approving a report that has no repair
// yet spawns one; at most one repair is ever spawned per report, even under
// concurrent approvals.
func (w *Workflow) ReviewReport(ctx context.Context, id uint, in ReviewInput, actor string) (*ReviewResult, error) {
	current, err := w.Reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, from, err := w.Reports.planReview(current, in, actor)
	if err != nil {
		return nil, err
	}

	var spawned *models.Repair
	if *patch.Status == models.ReportApproved && !current.RepairSpawned {
		spawned, err = w.spawnRepair(ctx, current, in, patch, from, actor)
		if err != nil {
			return nil, err
		}
	}

	var updated *models.Report
	if spawned != nil {
		if updated, err = w.Reports.Get(ctx, id); err != nil {
			return nil, err
		}
	} else if updated, err = w.Reports.applyPatch(ctx, id, from, patch); err != nil {
		return nil, err
	}

	if current.Status != updated.Status {
		metrics.WorkflowTransitions.WithLabelValues(models.EntityReport, string(updated.Status)).Inc()
	}
	w.record(ctx, models.EntityReport, id, updated.TicketID, models.ActivityReportReviewed, actor,
		fmt.Sprintf("%s -> %s", current.Status, updated.Status))
	if spawned != nil {
		metrics.RepairsSpawned.Inc()
		w.record(ctx, models.EntityRepair, spawned.ID, spawned.TicketID, models.ActivityRepairSpawned, actor,
			fmt.Sprintf("from report %d", id))
	}
	if current.Status != updated.Status {
		w.notify(Event{Kind: EventStatusUpdate, TicketID: updated.TicketID, Status: string(updated.Status)}, updated.ReporterPhone)
	}

	return &ReviewResult{Report: updated, Repair: spawned}, nil
}

// spawnRepair returns nil, nil when another review won the spawn.
func (w *Workflow) spawnRepair(ctx context.Context, report *models.Report, in ReviewInput, patch ReportPatch, from []models.ReportStatus, actor string) (*models.Repair, error) {
	assignee := strings.TrimSpace(in.AssignedTo)
	if assignee == "" {
		assignee = actor
	}
	source := *report
	if patch.Priority != nil {
		source.Priority = *patch.Priority
	}
	repair, err := w.Repairs.Build(CreateRepairInput{
		AssignedTo:    assignee,
		EstimatedCost: in.EstimatedCost,
		DueDate:       in.DueDate,
	}, &source, actor)
	if err != nil {
		return nil, err
	}

	ok, err := w.stores.Reports.SpawnRepair(ctx, report.ID, from, patch, repair)
	if err != nil {
		return nil, dependency("database", err)
	}
	if !ok {
		w.log.Info("repair already spawned for report, skipping",
			zap.Uint("report_id", report.ID), zap.String("ticket_id", report.TicketID))
		return nil, nil
	}
	return repair, nil
}

// CreateRepair creates a repair directly. With a ReportID the report must be
// APPROVED and must not have a repair yet.
func (w *Workflow) CreateRepair(ctx context.Context, in CreateRepairInput, actor string) (*models.Repair, error) {
	if in.ReportID == nil {
		repair, err := w.Repairs.Create(ctx, in, actor)
		if err != nil {
			return nil, err
		}
		w.afterCreate(ctx, repair, actor)
		return repair, nil
	}

	report, err := w.Reports.Get(ctx, *in.ReportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportApproved {
		return nil, &TransitionError{Entity: "report", From: string(report.Status), To: "repair created"}
	}
	if report.RepairSpawned {
		return nil, fmt.Errorf("%w: report %s already has a repair", ErrConflict, report.TicketID)
	}
	repair, err := w.Repairs.Build(in, report, actor)
	if err != nil {
		return nil, err
	}

	now := w.now()
	ok, err := w.stores.Reports.SpawnRepair(ctx, report.ID, []models.ReportStatus{models.ReportApproved}, ReportPatch{UpdatedAt: now}, repair)
	if err != nil {
		return nil, dependency("database", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report %s already has a repair", ErrConflict, report.TicketID)
	}
	metrics.RepairsSpawned.Inc()
	w.afterCreate(ctx, repair, actor)
	return repair, nil
}

func (w *Workflow) afterCreate(ctx context.Context, repair *models.Repair, actor string) {
	metrics.WorkflowTransitions.WithLabelValues(models.EntityRepair, string(models.RepairPending)).Inc()
	w.record(ctx, models.EntityRepair, repair.ID, repair.TicketID, models.ActivityRepairCreated, actor, "assigned to "+repair.AssignedTo)
}

// StartRepair moves a PENDING repair to IN_PROGRESS and marks its asset as
// under repair.
func (w *Workflow) StartRepair(ctx context.Context, id uint, technicianID string) (*models.Repair, error) {
	repair, err := w.Repairs.Start(ctx, id, technicianID)
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(models.EntityRepair, string(repair.Status)).Inc()
	w.record(ctx, models.EntityRepair, repair.ID, repair.TicketID, models.ActivityRepairStarted, technicianID, "")
	w.setAssetStatus(ctx, repair, models.AssetUnderRepair)
	return repair, nil
}

type CompleteResult struct {
	Repair       *models.Repair
	UploadErrors []*UploadError
}

// CompleteRepair requires at least one after-photo to be stored; then it
// completes the repair, notifies the reporter and restores the asset.
func (w *Workflow) CompleteRepair(ctx context.Context, id uint, in CompleteRepairInput, files []RawUpload, actor string) (*CompleteResult, error) {
	if _, err := w.Repairs.CheckCompletable(ctx, id, in); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, invalid("afterImages", "at least one after-photo required")
	}

	urls, uploadErrs, err := w.images.Ingest(ctx, files, w.opts.CompletionUploads)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, invalid("afterImages", "at least one after-photo required")
	}

	repair, err := w.Repairs.Complete(ctx, id, in, urls)
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(models.EntityRepair, string(repair.Status)).Inc()
	w.record(ctx, models.EntityRepair, repair.ID, repair.TicketID, models.ActivityRepairCompleted, actor,
		"actual cost "+repair.ActualCost.Decimal.StringFixed(2))

	if repair.ReportID != nil {
		report, err := w.Reports.Get(ctx, *repair.ReportID)
		if err != nil {
			w.log.Warn("completion notification skipped, report lookup failed",
				zap.Uint("repair_id", repair.ID), zap.String("ticket_id", repair.TicketID), zap.Error(err))
		} else {
			w.notify(Event{Kind: EventCompletion, TicketID: report.TicketID}, report.ReporterPhone)
		}
	}
	w.setAssetStatus(ctx, repair, models.AssetOperational)

	return &CompleteResult{Repair: repair, UploadErrors: uploadErrs}, nil
}

func (w *Workflow) CancelRepair(ctx context.Context, id uint, reason, actor string) (*models.Repair, error) {
	repair, err := w.Repairs.Cancel(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(models.EntityRepair, string(repair.Status)).Inc()
	w.record(ctx, models.EntityRepair, repair.ID, repair.TicketID, models.ActivityRepairCancelled, actor, repair.CancelReason)
	return repair, nil
}

// DeleteReport fails with ErrConflict while a repair references the report.
func (w *Workflow) DeleteReport(ctx context.Context, id uint) error {
	return w.Reports.Delete(ctx, id)
}

// Tracking is the public view of a ticket.
type Tracking struct {
	TicketID         string              `json:"ticketId"`
	ReportType       models.ReportType   `json:"reportType"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	AssetCode        *string             `json:"assetCode,omitempty"`
	Location         string              `json:"location"`
	Images           []string            `json:"images"`
	Status           models.ReportStatus `json:"status"`
	RejectionReason  string              `json:"rejectionReason,omitempty"`
	ReportedAt       time.Time           `json:"reportedAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	RepairStatus     models.RepairStatus `json:"repairStatus,omitempty"`
	CompletedDate    *time.Time          `json:"completedDate,omitempty"`
	CompletionImages []string            `json:"completionImages,omitempty"`
	Rating           *int                `json:"rating,omitempty"`
	CanRate          bool                `json:"canRate"`
}

func (w *Workflow) Track(ctx context.Context, ticketID string) (*Tracking, error) {
	report, err := w.Reports.GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	t := &Tracking{
		TicketID:        report.TicketID,
		ReportType:      report.ReportType,
		Title:           report.Title,
		Description:     report.Description,
		AssetCode:       report.AssetCode,
		Location:        report.Location,
		Images:          report.Images,
		Status:          report.Status,
		RejectionReason: report.RejectionReason,
		ReportedAt:      report.ReportedAt,
		UpdatedAt:       report.UpdatedAt,
		Rating:          report.Rating,
	}
	if report.RepairID != nil {
		repair, err := w.Repairs.Get(ctx, *report.RepairID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if repair != nil {
			t.RepairStatus = repair.Status
			t.CompletedDate = repair.CompletedDate
			t.CompletionImages = repair.CompletionImages
			t.CanRate = repair.Status == models.RepairCompleted && report.Rating == nil
		}
	}
	return t, nil
}

// RateReport stores the citizen's satisfaction score. It is allowed once,
// after the linked repair is completed.
func (w *Workflow) RateReport(ctx context.Context, ticketID string, score int, comment string) (*models.Report, error) {
	if score < 1 || score > 5 {
		return nil, invalid("score", "must be between 1 and 5")
	}
	report, err := w.Reports.GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if report.Rating != nil {
		return nil, fmt.Errorf("%w: ticket %s already rated", ErrConflict, report.TicketID)
	}
	if report.RepairID == nil {
		return nil, &TransitionError{Entity: "report", From: "no repair", To: "rated"}
	}
	repair, err := w.Repairs.Get(ctx, *report.RepairID)
	if err != nil {
		return nil, err
	}
	if repair.Status != models.RepairCompleted {
		return nil, &TransitionError{Entity: "report", From: "repair " + string(repair.Status), To: "rated"}
	}

	ok, err := w.stores.Reports.RateReport(ctx, report.ID, score, strings.TrimSpace(comment), w.now())
	if err != nil {
		return nil, dependency("database", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: ticket %s already rated", ErrConflict, report.TicketID)
	}
	rated, err := w.Reports.Get(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	w.record(ctx, models.EntityReport, rated.ID, rated.TicketID, models.ActivityReportRated, "", fmt.Sprintf("score=%d", score))
	return rated, nil
}

// Activity returns the report's log followed by its repair's log.
func (w *Workflow) Activity(ctx context.Context, reportID uint) ([]models.ActivityLog, error) {
	report, err := w.Reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	entries, err := w.stores.Activity.ListActivity(ctx, models.EntityReport, report.ID)
	if err != nil {
		return nil, dependency("database", err)
	}
	if report.RepairID != nil {
		repairEntries, err := w.stores.Activity.ListActivity(ctx, models.EntityRepair, *report.RepairID)
		if err != nil {
			return nil, dependency("database", err)
		}
		entries = append(entries, repairEntries...)
	}
	return entries, nil
}

func (w *Workflow) notify(event Event, phone string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(event, phone)
}

func (w *Workflow) record(ctx context.Context, entity string, id uint, ticketID, activity, actor, detail string) {
	if w.stores.Activity == nil {
		return
	}
	entry := &models.ActivityLog{
		CreatedAt: w.now(),
		Entity:    entity,
		EntityID:  id,
		TicketID:  ticketID,
		Activity:  activity,
		Actor:     actor,
		Detail:    detail,
	}
	if err := w.stores.Activity.AppendActivity(ctx, entry); err != nil {
		w.log.Warn("activity log write failed",
			zap.String("activity", activity), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (w *Workflow) setAssetStatus(ctx context.Context, repair *models.Repair, status models.AssetStatus) {
	if repair.AssetCode == nil || *repair.AssetCode == "" {
		return
	}
	if err := w.stores.Assets.SetAssetStatus(ctx, *repair.AssetCode, status); err != nil {
		w.log.Warn("asset status update failed",
			zap.String("asset_code", *repair.AssetCode),
			zap.String("status", string(status)),
			zap.Uint("repair_id", repair.ID),
			zap.String("ticket_id", repair.TicketID),
			zap.Error(err))
	}
}
