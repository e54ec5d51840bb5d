package services

import (
	"context"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/shopspring/decimal"
)

type ReportFilter struct {
	ID        *uint
	TicketID  string
	AssetCode string
	Status    models.ReportStatus
}

// ReportPatch is a partial update; nil fields keep their stored value.
type ReportPatch struct {
	Status          *models.ReportStatus
	Priority        *models.Priority
	Note            *string
	RejectionReason *string
	ReviewedBy      *string
	ReviewedAt      *time.Time
	UpdatedAt       time.Time
}

type ReportStore interface {
	// CreateReport returns ErrDuplicateTicket when the ticket id is taken.
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uint) (*models.Report, error)
	GetReportByTicket(ctx context.Context, ticketID string) (*models.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]models.Report, error)
	// UpdateReport applies patch only while the report's status is one of
	// from. It returns false when the report exists but the condition failed.
	UpdateReport(ctx context.Context, id uint, from []models.ReportStatus, patch ReportPatch) (bool, error)
	// SpawnRepair applies patch, marks the report as spawned and inserts
	// repair in one atomic unit. It returns false, and persists nothing,
	// when a repair was already spawned or the status is not one of from.
	SpawnRepair(ctx context.Context, reportID uint, from []models.ReportStatus, patch ReportPatch, repair *models.Repair) (bool, error)
	// RateReport stores a rating only if none exists yet.
	RateReport(ctx context.Context, id uint, score int, comment string, at time.Time) (bool, error)
	// DeleteReport returns ErrConflict when a repair references the report.
	DeleteReport(ctx context.Context, id uint) error
}

type RepairFilter struct {
	ReportID   *uint
	Status     models.RepairStatus
	AssignedTo string
}

// RepairPatch accompanies a status change.
type RepairPatch struct {
	Status           models.RepairStatus
	AssignedTo       *string
	StartedAt        *time.Time
	CompletedDate    *time.Time
	ActualCost       decimal.NullDecimal
	Notes            *string
	CompletionImages []string
	CancelReason     *string
	UpdatedAt        time.Time
}

type RepairStore interface {
	CreateRepair(ctx context.Context, repair *models.Repair) error
	GetRepair(ctx context.Context, id uint) (*models.Repair, error)
	ListRepairs(ctx context.Context, filter RepairFilter) ([]models.Repair, error)
	CountRepairsByReport(ctx context.Context, reportID uint) (int64, error)
	// TransitionRepair is a compare-and-set on status: it applies patch only
	// while the repair's status is one of from.
	TransitionRepair(ctx context.Context, id uint, from []models.RepairStatus, patch RepairPatch) (bool, error)
}

type AssetStore interface {
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, code string) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]models.Asset, error)
	SetAssetStatus(ctx context.Context, code string, status models.AssetStatus) error
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, entry *models.ActivityLog) error
	ListActivity(ctx context.Context, entity string, entityID uint) ([]models.ActivityLog, error)
}
