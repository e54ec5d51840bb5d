package controllers

import (
	"net/http"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"github.com/gin-gonic/gin"
)

type AssetController struct {
	Workflow *services.Workflow
}

func NewAssetController(workflow *services.Workflow) *AssetController {
	return &AssetController{Workflow: workflow}
}

type CreateAssetRequest struct {
	Code      string   `json:"code" binding:"required"`
	Name      string   `json:"name" binding:"required"`
	AssetType string   `json:"assetType"`
	Status    string   `json:"status"`
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// GetAsset is the QR-scan landing lookup.
func (ac *AssetController) GetAsset(c *gin.Context) {
	asset, err := ac.Workflow.GetAsset(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: asset})
}

func (ac *AssetController) ListAssets(c *gin.Context) {
	assets, err := ac.Workflow.ListAssets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	page, meta := paginate(c, assets)
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: page, Pagination: meta})
}

func (ac *AssetController) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	asset, err := ac.Workflow.CreateAsset(c.Request.Context(), services.CreateAssetInput{
		Code:      req.Code,
		Name:      req.Name,
		AssetType: req.AssetType,
		Status:    models.AssetStatus(req.Status),
		Location:  req.Location,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, StandardResponse{Success: true, Data: asset, Message: "Asset created"})
}
