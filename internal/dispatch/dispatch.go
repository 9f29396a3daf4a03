// Package dispatch implements the sequential bulk-send loop shared by the
// immediate-send path and fired scheduled jobs.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/personalize"
	"github.com/twilio-labs/bulk-sms-tool/internal/sms"
	"github.com/twilio-labs/bulk-sms-tool/internal/validate"
	"github.com/twilio-labs/bulk-sms-tool/pkg/logger"
)

const invalidPhoneMessage = "Invalid phone number format"

// Input carries everything one dispatch run needs. The engine has no
// awareness of scheduling; callers hand it the same payload whether the run
// is immediate or fired from a timer.
type Input struct {
	Contacts     []domain.Contact
	Template     string
	Credentials  domain.Credentials
	Sender       domain.SenderConfig
	MessageDelay time.Duration
}

// Engine sends personalized messages to a contact list, one at a time.
// Sends are deliberately sequential so the configured inter-message delay
// stays meaningful and the provider rate limit is respected.
type Engine struct {
	providers sms.Factory
	logger    *logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewEngine constructs a dispatch engine.
func NewEngine(providers sms.Factory, log *logger.Logger) *Engine {
	return &Engine{
		providers: providers,
		logger:    log,
		sleep:     sleepContext,
	}
}

// WithSleep overrides the delay function, for deterministic tests.
func (e *Engine) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Engine {
	e.sleep = fn
	return e
}

// Run iterates the contact list sequentially. A single contact's failure
// never aborts the batch; per-contact outcomes accumulate in the report.
// The returned error is non-nil only when ctx is cancelled mid-run, in
// which case the report covers the contacts attempted so far.
func (e *Engine) Run(ctx context.Context, in Input) (*domain.DispatchReport, error) {
	tracer := otel.Tracer("smstool.dispatch")
	sctx, span := tracer.Start(ctx, "dispatch.run")
	span.SetAttributes(
		attribute.Int("contacts.count", len(in.Contacts)),
		attribute.Int64("delay.ms", in.MessageDelay.Milliseconds()),
		attribute.String("sender.type", string(in.Sender.Type)),
	)
	defer span.End()

	provider := e.providers.Provider(in.Credentials)

	report := &domain.DispatchReport{
		Summary:    domain.ResultSummary{Total: len(in.Contacts)},
		Successful: []domain.SendSuccess{},
		Failed:     []domain.SendFailure{},
		Errors:     []string{},
	}

	for i, contact := range in.Contacts {
		phone := contact.Phone()

		if !validate.PhoneNumber(phone) {
			e.recordFailure(report, phone, invalidPhoneMessage, 0)
			continue
		}

		body := personalize.Message(in.Template, contact)

		result, err := provider.Send(sctx, sms.SendRequest{
			To:     phone,
			Body:   body,
			Sender: in.Sender,
		})
		if err != nil {
			span.RecordError(err)
			e.recordFailure(report, phone, err.Error(), sms.ErrorCode(err))
		} else {
			report.Summary.Successful++
			report.Successful = append(report.Successful, domain.SendSuccess{
				Phone:      phone,
				MessageSID: result.MessageSID,
				Status:     result.Status,
			})
			e.logger.Debug("dispatch: message sent",
				zap.String("phone", phone),
				zap.String("message_sid", result.MessageSID))
		}

		// No delay after the final contact.
		if i < len(in.Contacts)-1 && in.MessageDelay > 0 {
			if err := e.sleep(sctx, in.MessageDelay); err != nil {
				span.RecordError(err)
				return report, err
			}
		}
	}

	e.logger.Info("dispatch: batch completed",
		zap.Int("total", report.Summary.Total),
		zap.Int("successful", report.Summary.Successful),
		zap.Int("failed", report.Summary.Failed))
	return report, nil
}

func (e *Engine) recordFailure(report *domain.DispatchReport, phone, message string, code int) {
	report.Summary.Failed++
	report.Failed = append(report.Failed, domain.SendFailure{
		Phone: phone,
		Error: message,
		Code:  code,
	})
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", phone, message))
	e.logger.Warn("dispatch: send failed",
		zap.String("phone", phone),
		zap.String("reason", message),
		zap.Int("code", code))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
