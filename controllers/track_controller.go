package controllers

import (
	"net/http"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"github.com/gin-gonic/gin"
)

// TrackController serves the public, unauthenticated ticket views.
type TrackController struct {
	Workflow *services.Workflow
}

func NewTrackController(workflow *services.Workflow) *TrackController {
	return &TrackController{Workflow: workflow}
}

type RateRequest struct {
	Score   int    `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

func (tc *TrackController) Track(c *gin.Context) {
	tracking, err := tc.Workflow.Track(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: tracking})
}

func (tc *TrackController) Rate(c *gin.Context) {
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "score is required", "field": "score"})
		return
	}

	report, err := tc.Workflow.RateReport(c.Request.Context(), c.Param("ticketId"), req.Score, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    ratingView(report),
		Message: "Thank you for your feedback",
	})
}

func ratingView(r *models.Report) gin.H {
	return gin.H{
		"ticketId":      r.TicketID,
		"rating":        r.Rating,
		"ratingComment": r.RatingComment,
		"ratedAt":       r.RatedAt,
	}
}
