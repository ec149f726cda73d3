package routes

import (
	"github.com/labstack/echo/v4"

	"reservation-system/internal/controllers"
)

func runEquipmentRouter(secureGroup *echo.Group, ctrl *controllers.EquipmentController) {
	equipment := secureGroup.Group("/equipment")

	equipment.GET("", ctrl.ListEquipment)
	equipment.GET("/:id", ctrl.GetEquipment)
	equipment.PATCH("/:id", ctrl.UpdateFields)
	equipment.GET("/:id/reservations", ctrl.ListReservations)
	equipment.GET("/:id/changelog", ctrl.GetChangeLog)
	equipment.POST("/:id/deliver", ctrl.MarkDelivered)
	equipment.POST("/:id/revert", ctrl.RevertDelivered)
}
