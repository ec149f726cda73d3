package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reservation-system/internal/dto"
	"reservation-system/internal/services"
	"reservation-system/pkg/utils"
)

type ReservationController struct {
	reservationService services.ReservationServiceInterface
	logger             *zap.Logger
}

func NewReservationController(service services.ReservationServiceInterface, logger *zap.Logger) *ReservationController {
	return &ReservationController{
		reservationService: service,
		logger:             logger,
	}
}

// RequestReservation - POST /equipment/:id/reservations
func (c *ReservationController) RequestReservation(ctx echo.Context) error {
	equipmentID, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.CreateReservationDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.reservationService.RequestReservation(ctx.Request().Context(), equipmentID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка на резерв создана", http.StatusCreated)
}

// UpdateChecklist - PUT /reservations/:id/checklist
func (c *ReservationController) UpdateChecklist(ctx echo.Context) error {
	reservationID, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.UpdateChecklistDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.reservationService.UpdateChecklist(ctx.Request().Context(), reservationID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Чек-лист обновлён", http.StatusOK)
}

func (c *ReservationController) Approve(ctx echo.Context) error {
	reservationID, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.reservationService.Approve(ctx.Request().Context(), reservationID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка одобрена", http.StatusOK)
}

func (c *ReservationController) Reject(ctx echo.Context) error {
	reservationID, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.RejectReservationDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.reservationService.Reject(ctx.Request().Context(), reservationID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка отклонена", http.StatusOK)
}
