package services

import (
	"context"
	"strings"

	"github.com/civic-fix/api-go/models"
)

type CreateAssetInput struct {
	Code      string
	Name      string
	AssetType string
	Status    models.AssetStatus
	Location  string
	Latitude  *float64
	Longitude *float64
}

func (w *Workflow) GetAsset(ctx context.Context, code string) (*models.Asset, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "asset code is required")
	}
	asset, err := w.stores.Assets.GetAsset(ctx, code)
	return asset, dependency("database", err)
}

func (w *Workflow) ListAssets(ctx context.Context) ([]models.Asset, error) {
	assets, err := w.stores.Assets.ListAssets(ctx)
	return assets, dependency("database", err)
}

// CreateAsset registers a QR-labelled asset. Codes are unique.
func (w *Workflow) CreateAsset(ctx context.Context, in CreateAssetInput) (*models.Asset, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return nil, invalid("code", "asset code is required")
	}
	if in.Name == "" {
		return nil, invalid("name", "name is required")
	}
	if in.Status == "" {
		in.Status = models.AssetOperational
	}
	if !models.IsValidAssetStatus(in.Status) {
		return nil, invalid("status", "must be operational, damaged, under_repair or decommissioned")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, invalid("coordinates", "latitude and longitude must be given together")
	}

	now := w.now()
	asset := &models.Asset{
		Code:      in.Code,
		Name:      in.Name,
		AssetType: strings.TrimSpace(in.AssetType),
		Status:    in.Status,
		Location:  strings.TrimSpace(in.Location),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.stores.Assets.CreateAsset(ctx, asset); err != nil {
		return nil, dependency("database", err)
	}
	return asset, nil
}
