package models

import "time"

const (
	EntityReport = "report"
	EntityRepair = "repair"
)

// Activity values.
const (
	ActivityReportSubmitted = "report_submitted"
	ActivityReportReviewed  = "report_reviewed"
	ActivityReportRated     = "report_rated"
	ActivityRepairSpawned   = "repair_spawned"
	ActivityRepairCreated   = "repair_created"
	ActivityRepairStarted   = "repair_started"
	ActivityRepairCompleted = "repair_completed"
	ActivityRepairCancelled = "repair_cancelled"
)

type ActivityLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Entity    string    `gorm:"not null;type:varchar(16);index:idx_activity_entity" json:"entity"`
	EntityID  uint      `gorm:"not null;index:idx_activity_entity" json:"entityId"`
	TicketID  string    `gorm:"type:varchar(16);index" json:"ticketId,omitempty"`
	Activity  string    `gorm:"not null;type:varchar(50)" json:"activity"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
}
