//go:build integration

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"reservation-system/internal/services"
	"reservation-system/pkg/config"
	"reservation-system/pkg/database/postgresql"
	"reservation-system/pkg/eventbus"
	"reservation-system/pkg/middleware"
	"reservation-system/pkg/service"
	"reservation-system/pkg/validation"
	"reservation-system/pkg/websocket"
)

const testCronSecret = "integration-secret"

// ReservationAPISuite прогоняет полный цикл резервирования через HTTP поверх реальной БД.
type ReservationAPISuite struct {
	suite.Suite
	Echo            *echo.Echo
	DB              *pgxpool.Pool
	ManagerToken    string
	OtherToken      string
	SupervisorToken string
	EquipmentID     uint64
}

func (s *ReservationAPISuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		s.T().Skip("TEST_DATABASE_URL не задан")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(s.T(), err)
	require.NoError(s.T(), postgresql.Migrate(pool))
	s.DB = pool

	cfg := config.New()
	cfg.Maintenance.CronSecret = testCronSecret
	cfg.Maintenance.LockBackend = "memory"
	cfg.Maintenance.CatalogSync = false
	cfg.Cache.Backend = "memory"
	cfg.Business.OversightRoles = []string{"SUPERVISOR"}

	nopLogger := zap.NewNop()
	appLoggers := &Loggers{Main: nopLogger, Auth: nopLogger, Reservation: nopLogger, Maintenance: nopLogger}

	container, err := services.NewContainer(pool, nil, eventbus.New(nopLogger), cfg, nopLogger)
	require.NoError(s.T(), err)

	jwtSvc := service.NewJWTService("integration-jwt-secret", time.Hour, nopLogger)
	e := echo.New()
	e.Validator = validation.New()
	InitRouter(e, container, websocket.NewHub(nopLogger), jwtSvc, appLoggers, cfg)
	s.Echo = e

	suffix := time.Now().UnixNano()
	s.ManagerToken = s.createUser(jwtSvc, fmt.Sprintf("Менеджер %d", suffix), "MANAGER")
	s.OtherToken = s.createUser(jwtSvc, fmt.Sprintf("Второй менеджер %d", suffix), "MANAGER")
	s.SupervisorToken = s.createUser(jwtSvc, fmt.Sprintf("Супервайзер %d", suffix), "SUPERVISOR")

	err = pool.QueryRow(ctx,
		`INSERT INTO equipments (name, external_id, state) VALUES ($1, $2, 'FREE') RETURNING id`,
		"Экскаватор тестовый", fmt.Sprintf("IT-%d", suffix),
	).Scan(&s.EquipmentID)
	require.NoError(s.T(), err)
}

func (s *ReservationAPISuite) TearDownSuite() {
	if s.DB != nil {
		s.DB.Close()
	}
}

func (s *ReservationAPISuite) createUser(jwtSvc service.JWTService, fio, role string) string {
	var id uint64
	err := s.DB.QueryRow(context.Background(),
		`INSERT INTO users (fio, role) VALUES ($1, $2) RETURNING id`, fio, role).Scan(&id)
	require.NoError(s.T(), err)

	token, err := jwtSvc.GenerateAccessToken(id, role)
	require.NoError(s.T(), err)
	return token
}

func (s *ReservationAPISuite) do(method, path, token string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(s.T(), json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func equipmentState(resp map[string]interface{}) string {
	body := resp["body"].(map[string]interface{})
	return body["equipment"].(map[string]interface{})["state"].(string)
}

func (s *ReservationAPISuite) TestReservationLifecycle() {
	var reservationID uint64

	s.Run("1_RequestReservation", func() {
		rec, resp := s.do(http.MethodPost, fmt.Sprintf("/api/equipment/%d/reservations", s.EquipmentID), s.ManagerToken,
			map[string]interface{}{"client": "ACME S.A."})
		require.Equal(s.T(), http.StatusCreated, rec.Code, "Body: %s", rec.Body.String())

		body := resp["body"].(map[string]interface{})
		reservationID = uint64(body["reservation"].(map[string]interface{})["id"].(float64))
		assert.NotZero(s.T(), reservationID)
		assert.Equal(s.T(), "PRE_RESERVED", equipmentState(resp))
	})

	s.Run("2_OtherUserCannotTouchChecklist", func() {
		rec, _ := s.do(http.MethodPut, fmt.Sprintf("/api/reservations/%d/checklist", reservationID), s.OtherToken,
			map[string]interface{}{"deposit_confirmed": true})
		assert.Equal(s.T(), http.StatusForbidden, rec.Code)
	})

	s.Run("3_ChecklistStartsReserve", func() {
		rec, resp := s.do(http.MethodPut, fmt.Sprintf("/api/reservations/%d/checklist", reservationID), s.ManagerToken,
			map[string]interface{}{"deposit_confirmed": true, "ten_percent_paid": true, "documents_signed": true})
		require.Equal(s.T(), http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		assert.Equal(s.T(), "RESERVED", equipmentState(resp))
	})

	s.Run("4_ManagerCannotApprove", func() {
		rec, _ := s.do(http.MethodPost, fmt.Sprintf("/api/reservations/%d/approve", reservationID), s.ManagerToken, nil)
		assert.Equal(s.T(), http.StatusForbidden, rec.Code)
	})

	s.Run("5_SupervisorApproves", func() {
		rec, resp := s.do(http.MethodPost, fmt.Sprintf("/api/reservations/%d/approve", reservationID), s.SupervisorToken, nil)
		require.Equal(s.T(), http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		assert.Equal(s.T(), "SEPARATED", equipmentState(resp))
	})

	s.Run("6_SecondApproveIsGuarded", func() {
		rec, resp := s.do(http.MethodPost, fmt.Sprintf("/api/reservations/%d/approve", reservationID), s.SupervisorToken, nil)
		assert.Equal(s.T(), http.StatusUnprocessableEntity, rec.Code)
		assert.NotEmpty(s.T(), resp["body"].(map[string]interface{})["rule"])
	})

	s.Run("7_ChangeLogIsVisible", func() {
		rec, resp := s.do(http.MethodGet, fmt.Sprintf("/api/equipment/%d/changelog", s.EquipmentID), s.ManagerToken, nil)
		require.Equal(s.T(), http.StatusOK, rec.Code)
		assert.NotEmpty(s.T(), resp["body"])
	})

	s.Run("8_RequesterGotNotifications", func() {
		rec, _ := s.do(http.MethodGet, "/api/notifications?withPagination=false", s.ManagerToken, nil)
		require.Equal(s.T(), http.StatusOK, rec.Code)
		assert.Contains(s.T(), rec.Body.String(), fmt.Sprintf(`"reference_id":%d`, reservationID))
	})
}

func (s *ReservationAPISuite) TestMaintenanceTrigger() {
	req := httptest.NewRequest(http.MethodPost, "/api/cron/maintenance", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cron/maintenance", nil)
	req.Header.Set(middleware.CronSecretHeader, testCronSecret)
	rec = httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
	assert.Contains(s.T(), rec.Body.String(), `"executed":true`)
}

func (s *ReservationAPISuite) TestUnauthenticatedIsRejected() {
	rec, _ := s.do(http.MethodGet, "/api/equipment", "", nil)
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func TestReservationAPISuite(t *testing.T) {
	suite.Run(t, new(ReservationAPISuite))
}
