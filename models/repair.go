package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type RepairStatus string

const (
	RepairPending    RepairStatus = "PENDING"
	RepairInProgress RepairStatus = "IN_PROGRESS"
	RepairCompleted  RepairStatus = "COMPLETED"
	RepairCancelled  RepairStatus = "CANCELLED"
)

func IsValidRepairStatus(s RepairStatus) bool {
	switch s {
	case RepairPending, RepairInProgress, RepairCompleted, RepairCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RepairStatus) IsTerminal() bool {
	return s == RepairCompleted || s == RepairCancelled
}

// Repair is a maintenance job. ActualCost and CompletedDate are set only
// when Status is COMPLETED.
type Repair struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// At most one repair per report.
	ReportID  *uint   `gorm:"index:idx_repairs_report_id,unique,where:report_id IS NOT NULL" json:"reportId,omitempty"`
	TicketID  string  `gorm:"type:varchar(16)" json:"ticketId,omitempty"`
	AssetCode *string `gorm:"index;type:varchar(64)" json:"assetCode,omitempty"`

	Title       string   `json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	AssignedTo  string   `gorm:"not null" json:"assignedTo"`
	Priority    Priority `gorm:"not null;default:'medium';type:varchar(16)" json:"priority"`

	EstimatedCost decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"estimatedCost"`
	ActualCost    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"actualCost"`

	StartDate     time.Time  `json:"startDate"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`

	Images           pq.StringArray `gorm:"type:text[]" json:"images"`
	CompletionImages pq.StringArray `gorm:"type:text[]" json:"completionImages"`
	Notes            string         `gorm:"type:text" json:"notes,omitempty"`
	CancelReason     string         `gorm:"type:text" json:"cancelReason,omitempty"`

	Status    RepairStatus `gorm:"not null;default:'PENDING';index;type:varchar(16)" json:"status"`
	CreatedBy string       `json:"createdBy,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
