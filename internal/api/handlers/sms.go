package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/twilio-labs/bulk-sms-tool/internal/dispatch"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/scheduler"
)

type bulkSMSRequest struct {
	Contacts       []domain.Contact    `json:"contacts"`
	Message        string              `json:"message"`
	Credentials    domain.Credentials  `json:"credentials"`
	SenderConfig   domain.SenderConfig `json:"senderConfig"`
	MessageDelayMs *int64              `json:"messageDelayMs"`
}

type scheduleSMSRequest struct {
	bulkSMSRequest
	ScheduledDateTime string `json:"scheduledDateTime"`
}

type summaryResponse struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type resultsResponse struct {
	Successful []domain.SendSuccess `json:"successful"`
	Failed     []domain.SendFailure `json:"failed"`
}

type bulkSMSResponse struct {
	Success bool            `json:"success"`
	Summary summaryResponse `json:"summary"`
	Results resultsResponse `json:"results"`
}

// messageDelay resolves the requested inter-message delay, falling back to
// the configured default when the field is absent. An explicit zero means
// no delay.
func (h *HandlerSet) messageDelay(requested *int64) time.Duration {
	if requested == nil {
		return h.cfg.SMS.DefaultMessageDelay
	}
	if *requested < 0 {
		return 0
	}
	return time.Duration(*requested) * time.Millisecond
}

func (h *HandlerSet) sendBulkSMS(ctx *fiber.Ctx) error {
	var req bulkSMSRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	report, err := h.bulk.Send(ctx.Context(), dispatch.Input{
		Contacts:     req.Contacts,
		Template:     req.Message,
		Credentials:  req.Credentials,
		Sender:       req.SenderConfig,
		MessageDelay: h.messageDelay(req.MessageDelayMs),
	})
	if err != nil {
		return translateError(err)
	}

	// Partial failure is not a request-level error; the summary tells the
	// client what happened per contact.
	return ctx.JSON(bulkSMSResponse{
		Success: true,
		Summary: summaryResponse{
			Total:      report.Summary.Total,
			Successful: report.Summary.Successful,
			Failed:     report.Summary.Failed,
		},
		Results: resultsResponse{
			Successful: report.Successful,
			Failed:     report.Failed,
		},
	})
}

func (h *HandlerSet) scheduleSMS(ctx *fiber.Ctx) error {
	var req scheduleSMSRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	if req.ScheduledDateTime == "" {
		return fiber.NewError(http.StatusBadRequest, "Scheduled date and time is required")
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledDateTime)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid scheduled date and time")
	}

	job, err := h.jobs.Schedule(scheduler.ScheduleInput{
		Contacts:     req.Contacts,
		Message:      req.Message,
		Credentials:  req.Credentials,
		Sender:       req.SenderConfig,
		ScheduledAt:  scheduledAt,
		MessageDelay: h.messageDelay(req.MessageDelayMs),
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.JSON(fiber.Map{
		"success":           true,
		"jobId":             job.ID.String(),
		"scheduledDateTime": job.ScheduledAt.UTC().Format(time.RFC3339),
		"contactCount":      len(job.Contacts),
		"message":           "SMS successfully scheduled",
	})
}
