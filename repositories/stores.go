package repositories

import (
	"github.com/civic-fix/api-go/services"
	"gorm.io/gorm"
)

// NewGormStores wires the postgres-backed repositories.
func NewGormStores(db *gorm.DB) services.Stores {
	return services.Stores{
		Reports:  NewReportRepository(db),
		Repairs:  NewRepairRepository(db),
		Assets:   NewAssetRepository(db),
		Activity: NewActivityRepository(db),
	}
}
