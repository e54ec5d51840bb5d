package routes

import (
	"github.com/civic-fix/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupReportRoutes(staff *gin.RouterGroup, reportController *controllers.ReportController) {
	reports := staff.Group("/reports")
	{
		reports.GET("", reportController.ListReports)
		reports.GET("/:id", reportController.GetReport)
		reports.GET("/:id/activity", reportController.GetActivity)
		reports.PUT("/:id", reportController.ReviewReport)
		reports.DELETE("/:id", reportController.DeleteReport)
	}
}

func SetupTrackRoutes(public *gin.RouterGroup, trackController *controllers.TrackController) {
	track := public.Group("/track")
	{
		track.GET("/:ticketId", trackController.Track)
		track.POST("/:ticketId/rating", trackController.Rate)
	}
}

func SetupAssetRoutes(staff *gin.RouterGroup, assetController *controllers.AssetController) {
	assets := staff.Group("/assets")
	{
		assets.GET("", assetController.ListAssets)
		assets.POST("", assetController.CreateAsset)
	}
}
