package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"github.com/civic-fix/api-go/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type RepairController struct {
	Workflow *services.Workflow
}

func NewRepairController(workflow *services.Workflow) *RepairController {
	return &RepairController{Workflow: workflow}
}

type CreateRepairRequest struct {
	ReportID      *uint               `json:"reportId"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	AssignedTo    string              `json:"assignedTo"`
	Priority      string              `json:"priority"`
	AssetCode     string              `json:"assetCode"`
	EstimatedCost decimal.NullDecimal `json:"estimatedCost"`
	StartDate     *time.Time          `json:"startDate"`
	DueDate       *time.Time          `json:"dueDate"`
	Images        []string            `json:"images"`
}

type UpdateRepairStatusRequest struct {
	Status       string `json:"status" binding:"required"`
	TechnicianID string `json:"technicianId"`
	Reason       string `json:"reason"`
}

func (rc *RepairController) CreateRepair(c *gin.Context) {
	var req CreateRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	repair, err := rc.Workflow.CreateRepair(c.Request.Context(), services.CreateRepairInput{
		ReportID:      req.ReportID,
		Title:         req.Title,
		Description:   req.Description,
		AssignedTo:    req.AssignedTo,
		Priority:      models.Priority(req.Priority),
		AssetCode:     req.AssetCode,
		EstimatedCost: req.EstimatedCost,
		StartDate:     req.StartDate,
		DueDate:       req.DueDate,
		Images:        req.Images,
	}, utils.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StandardResponse{
		Success: true,
		Data:    repair,
		Message: "Repair created",
	})
}

func (rc *RepairController) ListRepairs(c *gin.Context) {
	filter := services.RepairFilter{
		Status:     models.RepairStatus(strings.ToUpper(c.Query("status"))),
		AssignedTo: strings.TrimSpace(c.Query("assignedTo")),
	}
	if raw := c.Query("reportId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid reportId")
			return
		}
		reportID := uint(id)
		filter.ReportID = &reportID
	}

	repairs, err := rc.Workflow.Repairs.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	page, meta := paginate(c, repairs)
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: page, Pagination: meta})
}

func (rc *RepairController) GetRepair(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	repair, err := rc.Workflow.Repairs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: repair})
}

// UpdateStatus starts or cancels a repair. Completion has its own route
// because it carries photos.
func (rc *RepairController) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateRepairStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var repair *models.Repair
	var err error
	switch models.RepairStatus(strings.ToUpper(req.Status)) {
	case models.RepairInProgress:
		tech := req.TechnicianID
		if user := utils.GetUser(c); tech == "" && user != nil && user.HasRole(utils.RoleTechnician) {
			tech = utils.Actor(c)
		}
		repair, err = rc.Workflow.StartRepair(ctx, id, tech)
	case models.RepairCancelled:
		repair, err = rc.Workflow.CancelRepair(ctx, id, req.Reason, utils.Actor(c))
	case models.RepairCompleted:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "use POST /api/repairs/:id/complete", "field": "status"})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "status must be IN_PROGRESS or CANCELLED", "field": "status"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: repair})
}

func (rc *RepairController) CompleteRepair(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var files []services.RawUpload
	form, err := c.MultipartForm()
	switch {
	case err == nil:
		defer form.RemoveAll()
		files = services.UploadsFromFileHeaders(form.File["afterImages"])
	case errors.Is(err, http.ErrNotMultipart):
	default:
		badRequest(c, "invalid multipart form")
		return
	}

	in := services.CompleteRepairInput{Notes: c.PostForm("notes")}
	if raw := strings.TrimSpace(c.PostForm("actualCost")); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid actual cost", "field": "actualCost"})
			return
		}
		in.ActualCost = decimal.NewNullDecimal(cost)
	}

	result, err := rc.Workflow.CompleteRepair(c.Request.Context(), id, in, files, utils.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := StandardResponse{
		Success: true,
		Data:    result.Repair,
		Message: "Repair completed",
	}
	if len(result.UploadErrors) > 0 {
		resp.Meta = gin.H{"uploadErrors": uploadErrors(result.UploadErrors)}
	}
	c.JSON(http.StatusOK, resp)
}
