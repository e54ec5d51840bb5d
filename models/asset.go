package models

import "time"

type AssetStatus string

const (
	AssetOperational    AssetStatus = "operational"
	AssetDamaged        AssetStatus = "damaged"
	AssetUnderRepair    AssetStatus = "under_repair"
	AssetDecommissioned AssetStatus = "decommissioned"
)

func IsValidAssetStatus(s AssetStatus) bool {
	switch s {
	case AssetOperational, AssetDamaged, AssetUnderRepair, AssetDecommissioned:
		return true
	}
	return false
}

// Asset is a physical item carrying a QR label, identified by Code.
type Asset struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string      `gorm:"uniqueIndex;not null;type:varchar(64)" json:"code"`
	Name      string      `gorm:"not null" json:"name"`
	AssetType string      `json:"assetType"`
	Status    AssetStatus `gorm:"not null;default:'operational';type:varchar(32)" json:"status"`
	Location  string      `json:"location"`
	Latitude  *float64    `gorm:"type:decimal(10,8)" json:"latitude,omitempty"`
	Longitude *float64    `gorm:"type:decimal(11,8)" json:"longitude,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
