package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reservation-system/internal/authz"
	"reservation-system/internal/services"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/utils"
	"reservation-system/pkg/validation"
)

const catalogUploadContext = "catalog_workbook"

type CatalogController struct {
	catalogService services.CatalogSyncServiceInterface
	policy         *authz.Policy
	logger         *zap.Logger
}

func NewCatalogController(service services.CatalogSyncServiceInterface, policy *authz.Policy, logger *zap.Logger) *CatalogController {
	return &CatalogController{catalogService: service, policy: policy, logger: logger}
}

// ImportWorkbook принимает выгрузку закупок (.xlsx) в поле "file" и сразу сверяет каталог.
func (c *CatalogController) ImportWorkbook(ctx echo.Context) error {
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if !c.policy.CanDo(authz.CatalogImport, authz.Context{ActorID: actor.ID, Role: actor.Role}) {
		return utils.ErrorResponse(ctx, apperrors.ErrForbidden, c.logger)
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Файл не был передан", apperrors.ErrBadRequest, nil),
			c.logger,
		)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusInternalServerError, "Ошибка обработки файла", err, nil),
			c.logger,
		)
	}
	defer src.Close()

	if err := validation.ValidateFile(fileHeader.Size, src, catalogUploadContext); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, err.Error(), apperrors.ErrBadRequest, nil),
			c.logger,
		)
	}

	res, err := c.catalogService.ImportWorkbook(ctx.Request().Context(), src)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	c.logger.Info("Каталог закупок импортирован",
		zap.String("file", fileHeader.Filename),
		zap.Int("rows", res.RowsRead),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
	)
	return utils.SuccessResponse(ctx, res, "Каталог импортирован", http.StatusOK)
}
