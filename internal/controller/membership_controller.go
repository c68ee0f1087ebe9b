// FILE: internal/controller/membership_controller.go
package controller

import (
	"strconv"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/dto"
	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/mapper"
	"membership-ledger-be/internal/pkg/serverutils"
	"membership-ledger-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type IMembershipController interface {
	RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler)
}

type membershipController struct {
	plans     service.IPlanCatalogService
	evaluator service.ICoverageEvaluator
	ledger    service.IAllowanceLedgerService
	cfg       config.LedgerConfig
}

func NewMembershipController(
	plans service.IPlanCatalogService,
	evaluator service.ICoverageEvaluator,
	ledger service.IAllowanceLedgerService,
	cfg config.LedgerConfig,
) IMembershipController {
	return &membershipController{
		plans:     plans,
		evaluator: evaluator,
		ledger:    ledger,
		cfg:       cfg,
	}
}

func (c *membershipController) RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler) {
	h := api.Group("/membership")

	// Public endpoints
	h.Get("/plans", c.ListPlans)

	// Internal endpoints, called by the booking flow
	h.Post("/coverage/check", c.CheckCoverage)
	h.Post("/allowance/consume", c.ConsumeAllowance)
	h.Post("/allowance/restore", c.RestoreAllowance)
	h.Get("/cycles/:id/verify", c.VerifyCycle)

	// Patient endpoints
	patient := h.Group("/allowance", jwtMiddleware)
	patient.Get("/status", c.GetAllowanceStatus)
	patient.Get("/history", c.GetAllowanceHistory)
}

// ListPlans returns the active membership plans
// @Summary List membership plans
// @Tags Membership
// @Produce json
// @Success 200 {object} []dto.MembershipPlanResponse
// @Router /api/membership/plans [get]
func (c *membershipController) ListPlans(ctx *fiber.Ctx) error {
	plans, err := c.plans.ListPlans(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Plans retrieved", mapper.PlansToResponse(plans)))
}

// CheckCoverage previews whether an appointment would be covered
// @Summary Preview appointment coverage
// @Tags Membership
// @Accept json
// @Produce json
// @Param request body dto.CoverageCheckRequest true "Coverage check"
// @Success 200 {object} dto.CoverageResponse
// @Router /api/membership/coverage/check [post]
func (c *membershipController) CheckCoverage(ctx *fiber.Ctx) error {
	var req dto.CoverageCheckRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	result, err := c.evaluator.CheckCoverage(ctx.UserContext(), req.PatientId, req.Price, req.AppointmentDate)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Coverage evaluated", mapper.CoverageToResponse(result)))
}

// ConsumeAllowance debits the subscription's active cycle for one appointment.
// Repeating the call for the same appointment returns the first decision.
// @Summary Consume allowance for an appointment
// @Tags Membership
// @Accept json
// @Produce json
// @Param request body dto.ConsumeAllowanceRequest true "Consumption"
// @Success 200 {object} dto.CoverageResponse
// @Router /api/membership/allowance/consume [post]
func (c *membershipController) ConsumeAllowance(ctx *fiber.Ctx) error {
	var req dto.ConsumeAllowanceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Units == 0 {
		req.Units = 1
	}

	reqCtx := ctx.UserContext()
	result, err := service.RetryOnConflict(reqCtx, c.cfg.MaxRetries, func() (*entity.CoverageResult, error) {
		return c.ledger.ConsumeAllowance(reqCtx, req.SubscriptionId, req.AppointmentId, req.Price, req.Units)
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Allowance consumption processed", mapper.CoverageToResponse(result)))
}

// RestoreAllowance credits back the allowance used by a cancelled appointment.
// Omitting units restores everything the appointment consumed.
// @Summary Restore allowance for a cancelled appointment
// @Tags Membership
// @Accept json
// @Produce json
// @Param request body dto.RestoreAllowanceRequest true "Restoration"
// @Router /api/membership/allowance/restore [post]
func (c *membershipController) RestoreAllowance(ctx *fiber.Ctx) error {
	var req dto.RestoreAllowanceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Reason == "" {
		req.Reason = "Appointment cancelled"
	}

	reqCtx := ctx.UserContext()
	_, err := service.RetryOnConflict(reqCtx, c.cfg.MaxRetries, func() (struct{}, error) {
		return struct{}{}, c.ledger.RestoreAllowance(reqCtx, req.AppointmentId, req.Reason, req.Units)
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Allowance restoration processed", nil))
}

// GetAllowanceStatus returns the authenticated patient's current cycle
// @Summary Get allowance status
// @Tags Membership
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.AllowanceStatusResponse
// @Router /api/membership/allowance/status [get]
func (c *membershipController) GetAllowanceStatus(ctx *fiber.Ctx) error {
	patientId, err := patientIdFromLocals(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	status, err := c.ledger.GetAllowanceStatus(ctx.UserContext(), patientId)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Allowance status retrieved", mapper.AllowanceStatusToResponse(status)))
}

// GetAllowanceHistory lists the events of the patient's current cycle, newest first
// @Summary Get allowance history
// @Tags Membership
// @Security BearerAuth
// @Produce json
// @Success 200 {object} []dto.AllowanceEventResponse
// @Router /api/membership/allowance/history [get]
func (c *membershipController) GetAllowanceHistory(ctx *fiber.Ctx) error {
	patientId, err := patientIdFromLocals(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	status, err := c.ledger.GetAllowanceStatus(ctx.UserContext(), patientId)
	if err != nil {
		return respondError(ctx, err)
	}

	history, err := c.ledger.GetAllowanceEventHistory(ctx.UserContext(), status.CycleId)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Allowance history retrieved", mapper.AllowanceEventsToResponse(history)))
}

// VerifyCycle replays a cycle's event log against its stored balance
// @Summary Verify a cycle against its event log
// @Tags Membership
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} dto.CycleVerificationResponse
// @Router /api/membership/cycles/{id}/verify [get]
func (c *membershipController) VerifyCycle(ctx *fiber.Ctx) error {
	cycleId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid cycle ID"))
	}

	verification, err := c.ledger.VerifyCycle(ctx.UserContext(), cycleId)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Cycle verified", mapper.CycleVerificationToResponse(verification)))
}

func patientIdFromLocals(ctx *fiber.Ctx) (int64, error) {
	switch v := ctx.Locals("patient_id").(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, errors.New("patient id claim missing")
}

// respondError maps ledger errors onto HTTP statuses.
func respondError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, entity.ErrInvalidPrice),
		errors.Is(err, entity.ErrInvalidUnits),
		errors.Is(err, entity.ErrInvalidPeriod),
		errors.Is(err, entity.ErrInvalidPatient),
		errors.Is(err, entity.ErrMissingProviderRef),
		errors.Is(err, entity.ErrInvalidWebhookSignature):
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	case errors.Is(err, entity.ErrPlanNotFound),
		errors.Is(err, entity.ErrSubscriptionNotFound),
		errors.Is(err, entity.ErrCycleNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
	case errors.Is(err, entity.ErrConcurrencyConflict),
		errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrDuplicateRecord):
		return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, err.Error()))
	}
	return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
}
