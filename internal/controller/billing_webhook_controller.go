package controller

import (
	"membership-ledger-be/internal/pkg/serverutils"
	"membership-ledger-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IBillingWebhookController interface {
	RegisterRoutes(api fiber.Router)
}

type billingWebhookController struct {
	webhookService service.IBillingWebhookService
}

func NewBillingWebhookController(webhookService service.IBillingWebhookService) IBillingWebhookController {
	return &billingWebhookController{
		webhookService: webhookService,
	}
}

func (c *billingWebhookController) RegisterRoutes(api fiber.Router) {
	api.Post("/billing/webhook", c.HandleStripeWebhook)
}

// HandleStripeWebhook receives subscription events from Stripe.
// Non-2xx responses make Stripe redeliver the event.
func (c *billingWebhookController) HandleStripeWebhook(ctx *fiber.Ctx) error {
	signature := ctx.Get("Stripe-Signature")
	if signature == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Missing Stripe-Signature header"))
	}

	// fasthttp reuses the body buffer once the handler returns
	payload := append([]byte(nil), ctx.Body()...)

	if err := c.webhookService.HandleStripeEvent(ctx.UserContext(), payload, signature); err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Webhook processed", nil))
}
