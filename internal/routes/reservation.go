package routes

import (
	"github.com/labstack/echo/v4"

	"reservation-system/internal/controllers"
)

func runReservationRouter(secureGroup *echo.Group, ctrl *controllers.ReservationController) {
	secureGroup.POST("/equipment/:id/reservations", ctrl.RequestReservation)

	reservations := secureGroup.Group("/reservations")
	reservations.PUT("/:id/checklist", ctrl.UpdateChecklist)
	reservations.POST("/:id/approve", ctrl.Approve)
	reservations.POST("/:id/reject", ctrl.Reject)
}
