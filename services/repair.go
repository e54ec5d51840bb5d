package services

import (
	"context"
	"strings"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/shopspring/decimal"
)

type CreateRepairInput struct {
	ReportID      *uint
	Title         string
	Description   string
	AssignedTo    string
	Priority      models.Priority
	AssetCode     string
	EstimatedCost decimal.NullDecimal
	StartDate     *time.Time
	DueDate       *time.Time
	Images        []string
}

type CompleteRepairInput struct {
	ActualCost decimal.NullDecimal
	Notes      string
}

// RepairMachine owns the repair lifecycle:
//
//	PENDING -> IN_PROGRESS -> COMPLETED
//	PENDING | IN_PROGRESS -> CANCELLED
type RepairMachine struct {
	repairs RepairStore
	now     func() time.Time
}

func NewRepairMachine(repairs RepairStore, now func() time.Time) *RepairMachine {
	if now == nil {
		now = time.Now
	}
	return &RepairMachine{repairs: repairs, now: now}
}

// Build validates in and returns an unsaved PENDING repair. When source is
// set, its description, priority, asset, ticket and images are the defaults.
func (m *RepairMachine) Build(in CreateRepairInput, source *models.Report, actor string) (*models.Repair, error) {
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	if in.AssignedTo == "" {
		return nil, invalid("assignedTo", "assigned technician required")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Priority != "" {
		in.Priority = models.Priority(strings.ToLower(string(in.Priority)))
		if !models.IsValidPriority(in.Priority) {
			return nil, invalid("priority", "must be one of low, medium, high, urgent")
		}
	}
	if in.EstimatedCost.Valid && in.EstimatedCost.Decimal.IsNegative() {
		return nil, invalid("estimatedCost", "must not be negative")
	}

	now := m.now()
	repair := &models.Repair{
		Title:         in.Title,
		Description:   in.Description,
		AssignedTo:    in.AssignedTo,
		Priority:      in.Priority,
		EstimatedCost: in.EstimatedCost,
		StartDate:     now,
		DueDate:       in.DueDate,
		Images:        append([]string{}, in.Images...),
		Status:        models.RepairPending,
		CreatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.StartDate != nil {
		repair.StartDate = *in.StartDate
	}
	if in.AssetCode != "" {
		code := strings.TrimSpace(in.AssetCode)
		repair.AssetCode = &code
	}

	if source != nil {
		id := source.ID
		repair.ReportID = &id
		repair.TicketID = source.TicketID
		if repair.Title == "" {
			repair.Title = repairTitle(source)
		}
		if repair.Description == "" {
			repair.Description = source.Description
		}
		if repair.Priority == "" {
			repair.Priority = source.Priority
		}
		if repair.AssetCode == nil && source.AssetCode != nil {
			code := *source.AssetCode
			repair.AssetCode = &code
		}
		if len(repair.Images) == 0 {
			repair.Images = append([]string{}, source.Images...)
		}
	}

	if repair.Title == "" {
		return nil, invalid("title", "title is required")
	}
	if repair.Priority == "" {
		repair.Priority = models.PriorityMedium
	}
	return repair, nil
}

func repairTitle(r *models.Report) string {
	if r.Title != "" {
		return r.Title
	}
	if r.ProblemType != "" {
		return r.ProblemType
	}
	return "Repair " + r.TicketID
}

// Create persists an ad hoc repair with no originating report.
func (m *RepairMachine) Create(ctx context.Context, in CreateRepairInput, actor string) (*models.Repair, error) {
	repair, err := m.Build(in, nil, actor)
	if err != nil {
		return nil, err
	}
	if err := m.repairs.CreateRepair(ctx, repair); err != nil {
		return nil, dependency("database", err)
	}
	return repair, nil
}

func (m *RepairMachine) Get(ctx context.Context, id uint) (*models.Repair, error) {
	repair, err := m.repairs.GetRepair(ctx, id)
	return repair, dependency("database", err)
}

func (m *RepairMachine) List(ctx context.Context, filter RepairFilter) ([]models.Repair, error) {
	if filter.Status != "" && !models.IsValidRepairStatus(filter.Status) {
		return nil, invalid("status", "unknown repair status")
	}
	repairs, err := m.repairs.ListRepairs(ctx, filter)
	return repairs, dependency("database", err)
}

// Start moves PENDING to IN_PROGRESS. A non-empty technicianID claims the job.
func (m *RepairMachine) Start(ctx context.Context, id uint, technicianID string) (*models.Repair, error) {
	now := m.now()
	patch := RepairPatch{
		Status:    models.RepairInProgress,
		StartedAt: &now,
		UpdatedAt: now,
	}
	if tech := strings.TrimSpace(technicianID); tech != "" {
		patch.AssignedTo = &tech
	}
	return m.transition(ctx, id, []models.RepairStatus{models.RepairPending}, patch)
}

// CheckCompletable fails unless the repair is IN_PROGRESS and in carries a
// usable cost. It runs before after-photos are uploaded.
func (m *RepairMachine) CheckCompletable(ctx context.Context, id uint, in CompleteRepairInput) (*models.Repair, error) {
	repair, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if repair.Status != models.RepairInProgress {
		return nil, &TransitionError{Entity: "repair", From: string(repair.Status), To: string(models.RepairCompleted)}
	}
	if !in.ActualCost.Valid {
		return nil, invalid("actualCost", "actual cost is required")
	}
	if in.ActualCost.Decimal.IsNegative() {
		return nil, invalid("actualCost", "must not be negative")
	}
	return repair, nil
}

// Complete moves IN_PROGRESS to COMPLETED with cost, notes and after-photos.
func (m *RepairMachine) Complete(ctx context.Context, id uint, in CompleteRepairInput, afterImages []string) (*models.Repair, error) {
	if _, err := m.CheckCompletable(ctx, id, in); err != nil {
		return nil, err
	}
	if len(afterImages) == 0 {
		return nil, invalid("afterImages", "at least one after-photo required")
	}

	now := m.now()
	notes := strings.TrimSpace(in.Notes)
	patch := RepairPatch{
		Status:           models.RepairCompleted,
		CompletedDate:    &now,
		ActualCost:       decimal.NewNullDecimal(in.ActualCost.Decimal.Round(2)),
		Notes:            &notes,
		CompletionImages: append([]string{}, afterImages...),
		UpdatedAt:        now,
	}
	return m.transition(ctx, id, []models.RepairStatus{models.RepairInProgress}, patch)
}

// Cancel is legal from PENDING or IN_PROGRESS.
func (m *RepairMachine) Cancel(ctx context.Context, id uint, reason string) (*models.Repair, error) {
	now := m.now()
	reason = strings.TrimSpace(reason)
	patch := RepairPatch{
		Status:       models.RepairCancelled,
		CancelReason: &reason,
		UpdatedAt:    now,
	}
	return m.transition(ctx, id, []models.RepairStatus{models.RepairPending, models.RepairInProgress}, patch)
}

func (m *RepairMachine) transition(ctx context.Context, id uint, from []models.RepairStatus, patch RepairPatch) (*models.Repair, error) {
	ok, err := m.repairs.TransitionRepair(ctx, id, from, patch)
	if err != nil {
		return nil, dependency("database", err)
	}
	repair, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &TransitionError{Entity: "repair", From: string(repair.Status), To: string(patch.Status)}
	}
	return repair, nil
}
