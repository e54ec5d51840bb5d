package config

import (
	"fmt"

	"github.com/civic-fix/api-go/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

// InitDB opens the Postgres connection and migrates the workflow tables.
// TranslateError is on so unique violations surface as gorm.ErrDuplicatedKey.
func InitDB(cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Asset{}, &models.Report{}, &models.Repair{}, &models.ActivityLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
