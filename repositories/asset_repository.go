package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"gorm.io/gorm"
)

type AssetRepository struct {
	DB *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{DB: db}
}

func (r *AssetRepository) CreateAsset(ctx context.Context, asset *models.Asset) error {
	err := r.DB.WithContext(ctx).Create(asset).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrConflict
	}
	return err
}

func (r *AssetRepository) GetAsset(ctx context.Context, code string) (*models.Asset, error) {
	var asset models.Asset
	if err := r.DB.WithContext(ctx).Where("code = ?", code).First(&asset).Error; err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (r *AssetRepository) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	if err := r.DB.WithContext(ctx).Order("code ASC").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *AssetRepository) SetAssetStatus(ctx context.Context, code string, status models.AssetStatus) error {
	result := r.DB.WithContext(ctx).Model(&models.Asset{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *ActivityRepository) ListActivity(ctx context.Context, entity string, entityID uint) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := r.DB.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
