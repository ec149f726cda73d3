package routes

import (
	"github.com/labstack/echo/v4"

	"reservation-system/internal/controllers"
)

func runNotificationRouter(secureGroup *echo.Group, ctrl *controllers.NotificationController) {
	secureGroup.GET("/notifications", ctrl.ListOwn)
	secureGroup.POST("/notifications/:id/read", ctrl.MarkRead)
}

func runCatalogRouter(secureGroup *echo.Group, ctrl *controllers.CatalogController) {
	secureGroup.POST("/catalog/import", ctrl.ImportWorkbook)
}
