package repositories

import (
	"context"
	"errors"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type RepairRepository struct {
	DB *gorm.DB
}

func NewRepairRepository(db *gorm.DB) *RepairRepository {
	return &RepairRepository{DB: db}
}

// CreateRepair returns ErrConflict when the report already has a repair.
func (r *RepairRepository) CreateRepair(ctx context.Context, repair *models.Repair) error {
	err := r.DB.WithContext(ctx).Create(repair).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrConflict
	}
	return err
}

func (r *RepairRepository) GetRepair(ctx context.Context, id uint) (*models.Repair, error) {
	var repair models.Repair
	if err := r.DB.WithContext(ctx).First(&repair, id).Error; err != nil {
		return nil, translate(err)
	}
	return &repair, nil
}

func (r *RepairRepository) ListRepairs(ctx context.Context, filter services.RepairFilter) ([]models.Repair, error) {
	db := r.DB.WithContext(ctx).Model(&models.Repair{})
	if filter.ReportID != nil {
		db = db.Where("report_id = ?", *filter.ReportID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.AssignedTo != "" {
		db = db.Where("assigned_to = ?", filter.AssignedTo)
	}

	var repairs []models.Repair
	if err := db.Order("created_at DESC").Find(&repairs).Error; err != nil {
		return nil, err
	}
	return repairs, nil
}

func (r *RepairRepository) CountRepairsByReport(ctx context.Context, reportID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Repair{}).Where("report_id = ?", reportID).Count(&count).Error
	return count, err
}

func (r *RepairRepository) TransitionRepair(ctx context.Context, id uint, from []models.RepairStatus, patch services.RepairPatch) (bool, error) {
	updates := map[string]interface{}{
		"status":     patch.Status,
		"updated_at": patch.UpdatedAt,
	}
	if patch.AssignedTo != nil {
		updates["assigned_to"] = *patch.AssignedTo
	}
	if patch.StartedAt != nil {
		updates["started_at"] = *patch.StartedAt
	}
	if patch.CompletedDate != nil {
		updates["completed_date"] = *patch.CompletedDate
	}
	if patch.ActualCost.Valid {
		updates["actual_cost"] = patch.ActualCost
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.CompletionImages != nil {
		updates["completion_images"] = pq.StringArray(patch.CompletionImages)
	}
	if patch.CancelReason != nil {
		updates["cancel_reason"] = *patch.CancelReason
	}

	result := r.DB.WithContext(ctx).Model(&models.Repair{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
