package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type jobOverviewResponse struct {
	JobID             string `json:"jobId"`
	ScheduledDateTime string `json:"scheduledDateTime"`
	ContactCount      int    `json:"contactCount"`
	Status            string `json:"status"`
	Message           string `json:"message"`
}

func (h *HandlerSet) listScheduledJobs(ctx *fiber.Ctx) error {
	overviews := h.jobs.List()

	jobs := make([]jobOverviewResponse, 0, len(overviews))
	for _, job := range overviews {
		jobs = append(jobs, jobOverviewResponse{
			JobID:             job.ID.String(),
			ScheduledDateTime: job.ScheduledAt.UTC().Format(time.RFC3339),
			ContactCount:      job.ContactCount,
			Status:            string(job.Status),
			Message:           job.MessagePreview,
		})
	}

	return ctx.JSON(fiber.Map{
		"jobs":      jobs,
		"totalJobs": len(jobs),
	})
}

func (h *HandlerSet) cancelScheduledJob(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("jobId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "Scheduled job not found")
	}

	if err := h.jobs.Cancel(id); err != nil {
		return translateError(err)
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Scheduled job cancelled successfully",
		"jobId":   id.String(),
	})
}

func (h *HandlerSet) getJobResults(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("jobId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "Job not found or still pending")
	}

	result, err := h.jobs.Result(id)
	if err != nil {
		return translateError(err)
	}

	return ctx.JSON(result)
}
