// Package bulk orchestrates immediate (non-scheduled) bulk sends.
package bulk

import (
	"context"
	"fmt"

	"github.com/twilio-labs/bulk-sms-tool/internal/dispatch"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/validate"
	apperrors "github.com/twilio-labs/bulk-sms-tool/pkg/errors"
)

// Dispatcher executes one bulk-send payload. Satisfied by *dispatch.Engine.
type Dispatcher interface {
	Run(ctx context.Context, in dispatch.Input) (*domain.DispatchReport, error)
}

// Service validates immediate-send requests and hands them to the engine.
type Service struct {
	engine   Dispatcher
	maxBatch int
}

// NewService constructs the immediate-send service.
func NewService(engine Dispatcher, maxBatch int) *Service {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &Service{engine: engine, maxBatch: maxBatch}
}

// Send validates and dispatches the batch synchronously. Per-contact
// failures live inside the report; only request-level problems are errors.
func (s *Service) Send(ctx context.Context, in dispatch.Input) (*domain.DispatchReport, error) {
	if len(in.Contacts) == 0 {
		return nil, fmt.Errorf("%w: contacts array is required and must not be empty", apperrors.ErrValidation)
	}
	if len(in.Contacts) > s.maxBatch {
		return nil, fmt.Errorf("%w: maximum %d contacts allowed per request", apperrors.ErrValidation, s.maxBatch)
	}
	if err := validate.Credentials(in.Credentials); err != nil {
		return nil, err
	}
	if err := validate.SenderConfig(in.Sender); err != nil {
		return nil, err
	}

	report, err := s.engine.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("bulk service: dispatch: %w", err)
	}
	return report, nil
}
