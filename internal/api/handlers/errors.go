package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/twilio-labs/bulk-sms-tool/pkg/errors"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, stripSentinel(err, apperrors.ErrValidation))
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, stripSentinel(err, apperrors.ErrNotFound))
	case errors.Is(err, apperrors.ErrInvalidState):
		return fiber.NewError(http.StatusBadRequest, stripSentinel(err, apperrors.ErrInvalidState))
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, apperrors.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

// stripSentinel removes the sentinel prefix so clients see only the
// human-readable part of the message.
func stripSentinel(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
