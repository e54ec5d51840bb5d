package models

import (
	"time"

	"github.com/lib/pq"
)

type ReportType string

const (
	ReportTypeRepair  ReportType = "repair"
	ReportTypeRequest ReportType = "request"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportApproved ReportStatus = "APPROVED"
	ReportRejected ReportStatus = "REJECTED"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func IsValidReportStatus(s ReportStatus) bool {
	return s == ReportPending || s == ReportApproved || s == ReportRejected
}

// Report is a citizen-filed issue. The approval status is tracked here; the
// execution status lives on the spawned Repair.
type Report struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID    string     `gorm:"uniqueIndex;not null;type:varchar(16)" json:"ticketId"`
	ReportType  ReportType `gorm:"not null;type:varchar(16)" json:"reportType"`
	ProblemType string     `json:"problemType"`
	Priority    Priority   `gorm:"not null;default:'medium';type:varchar(16)" json:"priority"`

	AssetCode   *string `gorm:"index;type:varchar(64)" json:"assetCode,omitempty"`
	Title       string  `json:"title"`
	Description string  `gorm:"not null;type:text" json:"description"`

	ReportedBy    string   `json:"reportedBy"`
	ReporterPhone string   `gorm:"type:varchar(32)" json:"reporterPhone,omitempty"`
	Location      string   `json:"location"`
	Latitude      *float64 `gorm:"type:decimal(10,8)" json:"latitude,omitempty"`
	Longitude     *float64 `gorm:"type:decimal(11,8)" json:"longitude,omitempty"`
	ReferrerURL   string   `json:"referrerUrl,omitempty"`

	Images pq.StringArray `gorm:"type:text[]" json:"images"`

	Status          ReportStatus `gorm:"not null;default:'PENDING';index;type:varchar(16)" json:"status"`
	Note            string       `gorm:"type:text" json:"note,omitempty"`
	RejectionReason string       `gorm:"type:text" json:"rejectionReason,omitempty"`
	ReviewedBy      string       `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewedAt,omitempty"`

	// RepairSpawned flips exactly once, in the same transaction that
	// inserts the spawned repair.
	RepairSpawned bool  `gorm:"not null;default:false" json:"repairSpawned"`
	RepairID      *uint `json:"repairId,omitempty"`

	Rating        *int       `json:"rating,omitempty"`
	RatingComment string     `gorm:"type:text" json:"ratingComment,omitempty"`
	RatedAt       *time.Time `json:"ratedAt,omitempty"`

	ReportedAt time.Time `gorm:"not null;index" json:"reportedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
