package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportRepository struct {
	DB *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

// translate maps gorm errors onto the services error set.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return services.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return services.ErrDuplicateTicket
	}
	return err
}

func (r *ReportRepository) CreateReport(ctx context.Context, report *models.Report) error {
	return translate(r.DB.WithContext(ctx).Create(report).Error)
}

func (r *ReportRepository) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.DB.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

func (r *ReportRepository) GetReportByTicket(ctx context.Context, ticketID string) (*models.Report, error) {
	var report models.Report
	if err := r.DB.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&report).Error; err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

func (r *ReportRepository) ListReports(ctx context.Context, filter services.ReportFilter) ([]models.Report, error) {
	db := r.DB.WithContext(ctx).Model(&models.Report{})
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.TicketID != "" {
		db = db.Where("ticket_id = ?", filter.TicketID)
	}
	if filter.AssetCode != "" {
		db = db.Where("asset_code = ?", filter.AssetCode)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	var reports []models.Report
	if err := db.Order("reported_at DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func reportUpdates(patch services.ReportPatch) map[string]interface{} {
	updates := map[string]interface{}{
		"updated_at": patch.UpdatedAt,
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.Note != nil {
		updates["note"] = *patch.Note
	}
	if patch.RejectionReason != nil {
		updates["rejection_reason"] = *patch.RejectionReason
	}
	if patch.ReviewedBy != nil {
		updates["reviewed_by"] = *patch.ReviewedBy
	}
	if patch.ReviewedAt != nil {
		updates["reviewed_at"] = *patch.ReviewedAt
	}
	return updates
}

func (r *ReportRepository) UpdateReport(ctx context.Context, id uint, from []models.ReportStatus, patch services.ReportPatch) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(reportUpdates(patch))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ReportRepository) SpawnRepair(ctx context.Context, reportID uint, from []models.ReportStatus, patch services.ReportPatch, repair *models.Repair) (bool, error) {
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return false, tx.Error
	}

	updates := reportUpdates(patch)
	updates["repair_spawned"] = true
	result := tx.Model(&models.Report{}).
		Where("id = ? AND repair_spawned = ? AND status IN ?", reportID, false, from).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	if err := tx.Create(repair).Error; err != nil {
		tx.Rollback()
		// The partial unique index on report_id backs up the flag.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			repair.ID = 0
			return false, nil
		}
		return false, err
	}

	if err := tx.Model(&models.Report{}).Where("id = ?", reportID).
		Update("repair_id", repair.ID).Error; err != nil {
		tx.Rollback()
		return false, err
	}

	if err := tx.Commit().Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *ReportRepository) RateReport(ctx context.Context, id uint, score int, comment string, at time.Time) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND rating IS NULL", id).
		Updates(map[string]interface{}{
			"rating":         score,
			"rating_comment": comment,
			"rated_at":       at,
			"updated_at":     at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ReportRepository) DeleteReport(ctx context.Context, id uint) error {
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	var report models.Report
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&report, id).Error; err != nil {
		tx.Rollback()
		return translate(err)
	}

	var refs int64
	if err := tx.Model(&models.Repair{}).Where("report_id = ?", id).Count(&refs).Error; err != nil {
		tx.Rollback()
		return err
	}
	if refs > 0 {
		tx.Rollback()
		return services.ErrConflict
	}

	if err := tx.Delete(&models.Report{}, id).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
