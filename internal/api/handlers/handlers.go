package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/twilio-labs/bulk-sms-tool/internal/config"
	"github.com/twilio-labs/bulk-sms-tool/internal/scheduler"
	bulksvc "github.com/twilio-labs/bulk-sms-tool/internal/service/bulk"
	"github.com/twilio-labs/bulk-sms-tool/internal/sms"
	"github.com/twilio-labs/bulk-sms-tool/pkg/logger"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	logger *logger.Logger
	cfg    *config.Config
	bulk   *bulksvc.Service
	jobs   *scheduler.Store
	lister sms.ServiceLister
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(
	log *logger.Logger,
	cfg *config.Config,
	bulk *bulksvc.Service,
	jobs *scheduler.Store,
	lister sms.ServiceLister,
) *HandlerSet {
	return &HandlerSet{
		logger: log,
		cfg:    cfg,
		bulk:   bulk,
		jobs:   jobs,
		lister: lister,
	}
}

// Register wires all routes onto the fiber app. The rate-limit middleware
// is attached by the server on the /api group before this runs.
func (h *HandlerSet) Register(app fiber.Router) {
	api := app.Group("/api")

	api.Get("/health", h.health)
	api.Post("/send-bulk-sms", h.sendBulkSMS)
	api.Post("/schedule-sms", h.scheduleSMS)
	api.Get("/scheduled-jobs", h.listScheduledJobs)
	api.Delete("/scheduled-jobs/:jobId", h.cancelScheduledJob)
	api.Get("/job-results/:jobId", h.getJobResults)
	api.Post("/messaging-services", h.listMessagingServices)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{"error": message})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
