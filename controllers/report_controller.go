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

type ReportController struct {
	Workflow *services.Workflow
}

func NewReportController(workflow *services.Workflow) *ReportController {
	return &ReportController{Workflow: workflow}
}

type ReviewReportRequest struct {
	Status          string  `json:"status" binding:"required"`
	Priority        *string `json:"priority"`
	Note            *string `json:"note"`
	RejectionReason *string `json:"rejectionReason"`

	// Applied to the repair spawned by an approval.
	AssignedTo    string              `json:"assignedTo"`
	EstimatedCost decimal.NullDecimal `json:"estimatedCost"`
	DueDate       *time.Time          `json:"dueDate"`
}

// SubmitReport accepts the citizen form as multipart (with images) or as a
// plain urlencoded form.
func (rc *ReportController) SubmitReport(c *gin.Context) {
	var files []services.RawUpload
	form, err := c.MultipartForm()
	switch {
	case err == nil:
		defer form.RemoveAll()
		files = services.UploadsFromFileHeaders(form.File["images"])
	case errors.Is(err, http.ErrNotMultipart):
	default:
		badRequest(c, "invalid multipart form")
		return
	}

	lat, lng, err := parseCoordinates(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "field": "coordinates"})
		return
	}

	reportedBy := c.PostForm("reporterName")
	if reportedBy == "" {
		reportedBy = c.PostForm("reportedBy")
	}

	in := services.SubmitReportInput{
		ReportType:    models.ReportType(c.PostForm("reportType")),
		ProblemType:   strings.TrimSpace(c.PostForm("problemType")),
		Priority:      models.Priority(c.PostForm("priority")),
		AssetCode:     c.PostForm("assetCode"),
		Title:         c.PostForm("title"),
		Description:   c.PostForm("description"),
		ReportedBy:    strings.TrimSpace(reportedBy),
		ReporterPhone: c.PostForm("reporterPhone"),
		Location:      strings.TrimSpace(c.PostForm("location")),
		Latitude:      lat,
		Longitude:     lng,
		ReferrerURL:   c.PostForm("referrerUrl"),
	}

	result, err := rc.Workflow.SubmitReport(c.Request.Context(), in, files)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := StandardResponse{
		Success: true,
		Data:    result.Report,
		Message: "Report submitted successfully",
	}
	if len(result.UploadErrors) > 0 {
		resp.Meta = gin.H{"uploadErrors": uploadErrors(result.UploadErrors)}
	}
	c.JSON(http.StatusCreated, resp)
}

// parseCoordinates reads "coordinates" as "lat,lng" or the separate
// latitude and longitude fields. Both absent is not an error.
func parseCoordinates(c *gin.Context) (*float64, *float64, error) {
	latRaw := strings.TrimSpace(c.PostForm("latitude"))
	lngRaw := strings.TrimSpace(c.PostForm("longitude"))
	if coords := strings.TrimSpace(c.PostForm("coordinates")); coords != "" {
		parts := strings.Split(coords, ",")
		if len(parts) != 2 {
			return nil, nil, errors.New("coordinates must be \"lat,lng\"")
		}
		latRaw, lngRaw = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	if latRaw == "" && lngRaw == "" {
		return nil, nil, nil
	}
	if latRaw == "" || lngRaw == "" {
		return nil, nil, errors.New("latitude and longitude must be given together")
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, nil, errors.New("invalid latitude")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, nil, errors.New("invalid longitude")
	}
	return &lat, &lng, nil
}

// ListReports returns one report when id is given, otherwise the filtered
// list.
func (rc *ReportController) ListReports(c *gin.Context) {
	if raw := c.Query("id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid id")
			return
		}
		report, err := rc.Workflow.Reports.Get(c.Request.Context(), uint(id))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report})
		return
	}

	filter := services.ReportFilter{
		TicketID:  strings.ToUpper(strings.TrimSpace(c.Query("ticketId"))),
		AssetCode: strings.TrimSpace(c.Query("assetCode")),
		Status:    models.ReportStatus(strings.ToUpper(c.Query("status"))),
	}
	reports, err := rc.Workflow.Reports.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	page, meta := paginate(c, reports)
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: page, Pagination: meta})
}

func (rc *ReportController) GetReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	report, err := rc.Workflow.Reports.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report})
}

func (rc *ReportController) ReviewReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ReviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := services.ReviewInput{
		Status:          models.ReportStatus(req.Status),
		Note:            req.Note,
		RejectionReason: req.RejectionReason,
		AssignedTo:      req.AssignedTo,
		EstimatedCost:   req.EstimatedCost,
		DueDate:         req.DueDate,
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		in.Priority = &p
	}

	result, err := rc.Workflow.ReviewReport(c.Request.Context(), id, in, utils.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := StandardResponse{
		Success: true,
		Data:    result.Report,
		Message: "Report reviewed",
	}
	if result.Repair != nil {
		resp.Meta = gin.H{"repairId": result.Repair.ID, "repairSpawned": true}
	}
	c.JSON(http.StatusOK, resp)
}

func (rc *ReportController) DeleteReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := rc.Workflow.DeleteReport(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Message: "Report deleted"})
}

func (rc *ReportController) GetActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entries, err := rc.Workflow.Activity(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: entries})
}
