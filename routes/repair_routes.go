package routes

import (
	"github.com/civic-fix/api-go/controllers"
	"github.com/gin-gonic/gin"
)

// SetupRepairRoutes puts planning on staff routes and execution on field
// routes, which technicians may also call.
func SetupRepairRoutes(staff, field *gin.RouterGroup, repairController *controllers.RepairController) {
	planning := staff.Group("/repairs")
	{
		planning.POST("", repairController.CreateRepair)
	}

	repairs := field.Group("/repairs")
	{
		repairs.GET("", repairController.ListRepairs)
		repairs.GET("/:id", repairController.GetRepair)
		repairs.PUT("/:id/status", repairController.UpdateStatus)
		repairs.POST("/:id/complete", repairController.CompleteRepair)
	}
}
