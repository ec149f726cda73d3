package controllers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"reservation-system/internal/authz"
	"reservation-system/internal/dto"
	"reservation-system/pkg/utils"
)

type fakeCatalog struct {
	imported int
}

func (f *fakeCatalog) Reconcile(context.Context) (int, int, error) { return 0, 0, nil }

func (f *fakeCatalog) ImportWorkbook(_ context.Context, r io.Reader) (*dto.CatalogImportResultDTO, error) {
	f.imported++
	_, _ = io.Copy(io.Discard, r)
	return &dto.CatalogImportResultDTO{RowsRead: 1, Upserted: 1, Created: 1}, nil
}

func workbookUpload(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "compras.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func xlsxBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Chasis", "Modelo"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func serveImport(t *testing.T, svc *fakeCatalog, role string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := workbookUpload(t, content)
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/import", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req = req.WithContext(utils.WithActor(req.Context(), utils.Actor{ID: 7, Role: role}))

	rec := httptest.NewRecorder()
	e := echo.New()
	ctrl := NewCatalogController(svc, authz.NewPolicy([]string{"SUPERVISOR"}), zap.NewNop())
	require.NoError(t, ctrl.ImportWorkbook(e.NewContext(req, rec)))
	return rec
}

func TestCatalogImport_OversightOnly(t *testing.T) {
	svc := &fakeCatalog{}
	rec := serveImport(t, svc, "MANAGER", xlsxBytes(t))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, svc.imported)
}

func TestCatalogImport_AcceptsWorkbook(t *testing.T) {
	svc := &fakeCatalog{}
	rec := serveImport(t, svc, "SUPERVISOR", xlsxBytes(t))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.imported)
	assert.Contains(t, rec.Body.String(), `"created":1`)
}

func TestCatalogImport_RejectsNonWorkbook(t *testing.T) {
	svc := &fakeCatalog{}
	rec := serveImport(t, svc, "SUPERVISOR", []byte("just,a,csv\n1,2,3\n"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.imported)
}
