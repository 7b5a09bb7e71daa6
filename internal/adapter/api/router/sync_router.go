package router

import (
	"github.com/labstack/echo/v4"

	"pasarlive/internal/adapter/api/handler"
)

func SetupSyncRouter(v1 *echo.Group, syncHandler *handler.SyncHandler) {
	syncGroup := v1.Group("/sync")

	syncGroup.POST("/operations", syncHandler.EnqueueOperation)           // POST /v1/sync/operations
	syncGroup.GET("/operations", syncHandler.ListOperations)              // GET /v1/sync/operations?status=
	syncGroup.DELETE("/operations/completed", syncHandler.ClearCompleted) // DELETE /v1/sync/operations/completed?olderThan=
	syncGroup.POST("/process", syncHandler.ProcessQueue)                  // POST /v1/sync/process
	syncGroup.POST("/retry", syncHandler.RetryFailed)                     // POST /v1/sync/retry
	syncGroup.GET("/status", syncHandler.GetStatus)                       // GET /v1/sync/status
}
