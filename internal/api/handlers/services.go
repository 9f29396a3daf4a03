package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/sms"
	"github.com/twilio-labs/bulk-sms-tool/internal/validate"
)

type messagingServicesRequest struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
}

// listMessagingServices is a pass-through listing of the provider's sender
// pools for the supplied credentials.
func (h *HandlerSet) listMessagingServices(ctx *fiber.Ctx) error {
	var req messagingServicesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	creds := domain.Credentials{AccountSID: req.AccountSID, AuthToken: req.AuthToken}
	if err := validate.Credentials(creds); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Missing required provider credentials")
	}

	services, err := h.lister.ListMessagingServices(ctx.Context(), creds)
	if err != nil {
		// A bad account SID or token breaks every call, so surface it as an
		// auth problem instead of a generic failure.
		if sms.IsAuthFailure(err) {
			return fiber.NewError(http.StatusUnauthorized, "Authentication failed - check your Account SID and Auth Token")
		}
		return translateError(err)
	}

	return ctx.JSON(services)
}
