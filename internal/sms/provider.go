package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
)

// Provider error codes with special handling at the API boundary.
const (
	// CodeAuthFailure is returned by the provider when the account SID or
	// auth token is wrong. It affects the entire batch, not one contact.
	CodeAuthFailure = 20003
	// CodeInvalidDestination is returned when the destination number is
	// rejected by the provider.
	CodeInvalidDestination = 21211
)

// SendRequest describes one outbound message submission.
type SendRequest struct {
	To     string
	Body   string
	Sender domain.SenderConfig
}

// SendResult captures the provider's acknowledgement of a submission.
type SendResult struct {
	MessageSID string
	Status     string
}

// ProviderError is a typed failure from the messaging provider.
type ProviderError struct {
	Code    int
	Message string
	Status  int
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
	}
	return e.Message
}

// IsAuthFailure reports whether err is a provider authentication failure.
func IsAuthFailure(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Code == CodeAuthFailure
}

// ErrorCode extracts the provider error code from err, or zero.
func ErrorCode(err error) int {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return 0
}

// Provider abstracts the messaging integration for one set of credentials.
type Provider interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// Factory builds providers bound to per-request credentials. Credentials
// arrive with each API call and are never stored, so provider clients are
// constructed on demand.
type Factory interface {
	Provider(creds domain.Credentials) Provider
}

// ServiceLister fetches the sender pools available to a set of credentials.
type ServiceLister interface {
	ListMessagingServices(ctx context.Context, creds domain.Credentials) ([]domain.MessagingService, error)
}
