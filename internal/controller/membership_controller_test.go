package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/controller"
	"membership-ledger-be/internal/dto"
	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/pkg/serverutils"
	"membership-ledger-be/internal/repository/cache"
	"membership-ledger-be/internal/repository/memory"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/internal/service"
	"membership-ledger-be/pkg/database"
	"membership-ledger-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJwtSecret = "test-secret"

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ...events.Event) {}

type membershipFixture struct {
	app          *fiber.App
	lifecycle    service.ISubscriptionLifecycleService
	subscription *entity.MembershipSubscription
}

func setupMembershipApp(t *testing.T) *membershipFixture {
	t.Helper()
	db, err := database.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	log := logger.NewNopLogger()
	cfg := config.DefaultLedgerConfig()
	uowFactory := unitofwork.NewRepositoryFactory(db)
	plans := service.NewPlanCatalogService(uowFactory, memory.NewPlanCache(time.Minute), log)
	require.NoError(t, plans.SeedDefaultPlans(context.Background()))

	ledger := service.NewAllowanceLedgerService(uowFactory, plans, discardPublisher{}, cache.NopAllowanceStatusCache{}, cfg, log)
	lifecycle := service.NewSubscriptionLifecycleService(uowFactory, plans, discardPublisher{}, cfg, log)

	// Period around the wall clock so previews without a date are in range
	now := time.Now().UTC()
	sub, err := lifecycle.ActivateSubscription(context.Background(), service.SubscriptionActivation{
		ProviderSubscriptionId: "sub_controller",
		ProviderCustomerId:     "cus_controller",
		PlanId:                 "monthly_plan",
		PatientId:              77,
		PeriodStart:            now.Add(-24 * time.Hour),
		PeriodEnd:              now.Add(29 * 24 * time.Hour),
	})
	require.NoError(t, err)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	controller.NewMembershipController(plans, service.NewCoverageEvaluator(uowFactory), ledger, cfg).
		RegisterRoutes(api, serverutils.NewJwtMiddleware(testJwtSecret))

	return &membershipFixture{app: app, lifecycle: lifecycle, subscription: sub}
}

func (f *membershipFixture) do(t *testing.T, method, path string, body interface{}, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeData[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var res serverutils.BaseResponse[T]
	require.NoError(t, json.Unmarshal(raw, &res))
	require.True(t, res.Success, string(raw))
	return res.Data
}

func mustDecimal(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func patientToken(t *testing.T, patientId int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"patient_id": patientId,
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJwtSecret))
	require.NoError(t, err)
	return signed
}

func TestMembershipController_ListPlans(t *testing.T) {
	f := setupMembershipApp(t)

	resp, raw := f.do(t, http.MethodGet, "/api/membership/plans", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	plans := decodeData[[]dto.MembershipPlanResponse](t, raw)
	require.Len(t, plans, 2)
	assert.Equal(t, "monthly_plan", plans[0].Code)
	assert.Equal(t, "45.00", plans[0].Price)
	assert.Equal(t, 12, plans[1].AllowancePerCycle)
}

func TestMembershipController_ConsumeAndRestore(t *testing.T) {
	f := setupMembershipApp(t)

	consume := dto.ConsumeAllowanceRequest{
		SubscriptionId: f.subscription.Id,
		AppointmentId:  1001,
		Price:          mustDecimal("35.00"),
	}

	resp, raw := f.do(t, http.MethodPost, "/api/membership/allowance/consume", consume, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	result := decodeData[dto.CoverageResponse](t, raw)
	assert.True(t, result.IsCovered)
	assert.Equal(t, string(entity.CoverageTypeFull), result.CoverageType)
	assert.Equal(t, "35.00", result.CoveredAmount)
	assert.Equal(t, "0.00", result.PatientPaid)
	assert.Equal(t, 1, result.AllowanceDeducted)
	assert.Equal(t, 1, result.RemainingAllowance)
	require.NotNil(t, result.CycleId)

	t.Run("Repeating the call returns the stored decision", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodPost, "/api/membership/allowance/consume", consume, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		again := decodeData[dto.CoverageResponse](t, raw)
		assert.True(t, again.IsCovered)
		assert.Equal(t, 1, again.RemainingAllowance)
		assert.Equal(t, result.CoverageId, again.CoverageId)
	})

	t.Run("Restore credits the cycle back", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodPost, "/api/membership/allowance/restore",
			dto.RestoreAllowanceRequest{AppointmentId: 1001}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		resp, raw = f.do(t, http.MethodGet, "/api/membership/allowance/status", nil, patientToken(t, 77))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		status := decodeData[dto.AllowanceStatusResponse](t, raw)
		assert.Equal(t, 0, status.AllowanceUsed)
		assert.Equal(t, 2, status.AllowanceRemaining)
		assert.True(t, status.IsActive)
	})

	t.Run("History lists the current cycle newest first", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodGet, "/api/membership/allowance/history", nil, patientToken(t, 77))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		history := decodeData[[]dto.AllowanceEventResponse](t, raw)
		require.Len(t, history, 3)
		assert.Equal(t, string(entity.AllowanceEventRestored), history[0].EventType)
		assert.Equal(t, "Appointment cancelled", history[0].Reason)
		assert.Equal(t, string(entity.AllowanceEventGranted), history[2].EventType)
	})

	t.Run("Verify reports a consistent cycle", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodGet, "/api/membership/cycles/"+result.CycleId.String()+"/verify", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		verification := decodeData[dto.CycleVerificationResponse](t, raw)
		assert.True(t, verification.Consistent)
		assert.Equal(t, 3, verification.EventCount)
		assert.Equal(t, verification.Stored, verification.Replayed)
	})
}

func TestMembershipController_CheckCoverage(t *testing.T) {
	f := setupMembershipApp(t)

	t.Run("Covered patient", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodPost, "/api/membership/coverage/check",
			dto.CoverageCheckRequest{PatientId: 77, Price: mustDecimal("35")}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		result := decodeData[dto.CoverageResponse](t, raw)
		assert.True(t, result.IsCovered)
		assert.Equal(t, "35.00", result.OriginalPrice)
		assert.Equal(t, 1, result.RemainingAllowance)
	})

	t.Run("Patient without membership", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodPost, "/api/membership/coverage/check",
			dto.CoverageCheckRequest{PatientId: 78, Price: mustDecimal("35")}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		result := decodeData[dto.CoverageResponse](t, raw)
		assert.False(t, result.IsCovered)
		assert.Equal(t, entity.ReasonNoActiveSubscription, result.Reason)
		assert.Equal(t, "35.00", result.PatientPaid)
	})

	t.Run("Validation failure", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodPost, "/api/membership/coverage/check",
			dto.CoverageCheckRequest{Price: mustDecimal("35")}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var res serverutils.BaseResponse[map[string]string]
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.False(t, res.Success)
		assert.Contains(t, res.Data, "PatientId")
	})

	t.Run("Non-positive price", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/membership/coverage/check",
			dto.CoverageCheckRequest{PatientId: 77, Price: mustDecimal("0")}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMembershipController_Errors(t *testing.T) {
	f := setupMembershipApp(t)

	t.Run("Unknown subscription", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/membership/allowance/consume", dto.ConsumeAllowanceRequest{
			SubscriptionId: uuid.New(),
			AppointmentId:  5,
			Price:          mustDecimal("35"),
		}, "")
		// No active cycle for an unknown subscription is a decline, not an error
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Unknown cycle", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/membership/cycles/"+uuid.NewString()+"/verify", nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Malformed cycle id", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/membership/cycles/not-a-uuid/verify", nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Status requires a token", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/membership/allowance/status", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = f.do(t, http.MethodGet, "/api/membership/allowance/status", nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Status of a patient without membership", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/membership/allowance/status", nil, patientToken(t, 404))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/membership/allowance/restore", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := f.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMembershipController_RestoreMultiUnitBooking(t *testing.T) {
	f := setupMembershipApp(t)

	resp, raw := f.do(t, http.MethodPost, "/api/membership/allowance/consume", dto.ConsumeAllowanceRequest{
		SubscriptionId: f.subscription.Id,
		AppointmentId:  2002,
		Price:          mustDecimal("70.00"),
		Units:          2,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, 0, decodeData[dto.CoverageResponse](t, raw).RemainingAllowance)

	resp, _ = f.do(t, http.MethodPost, "/api/membership/allowance/restore",
		dto.RestoreAllowanceRequest{AppointmentId: 2002, Units: 1}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = f.do(t, http.MethodPost, "/api/membership/allowance/restore",
		dto.RestoreAllowanceRequest{AppointmentId: 2002}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = f.do(t, http.MethodGet, "/api/membership/allowance/status", nil, patientToken(t, 77))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	status := decodeData[dto.AllowanceStatusResponse](t, raw)
	assert.Equal(t, 0, status.AllowanceUsed)
	assert.Equal(t, 2, status.AllowanceRemaining)
}
