// Package twilio implements the sms interfaces on top of the Twilio REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	messagingv1 "github.com/twilio/twilio-go/rest/messaging/v1"

	"github.com/twilio-labs/bulk-sms-tool/internal/config"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/sms"
)

// Factory builds Twilio REST clients bound to per-request credentials.
type Factory struct {
	timeout time.Duration
}

// NewFactory constructs a provider factory.
func NewFactory(cfg config.SMSConfig) *Factory {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Factory{timeout: timeout}
}

// Provider returns a send client for the given credentials.
func (f *Factory) Provider(creds domain.Credentials) sms.Provider {
	return &Provider{rest: f.restClient(creds)}
}

// The generated Twilio operations do not accept a context, so the request
// timeout is enforced through the underlying HTTP client.
func (f *Factory) restClient(creds domain.Credentials) *twilio.RestClient {
	custom := &twclient.Client{
		Credentials: twclient.NewCredentials(creds.AccountSID, creds.AuthToken),
		HTTPClient:  &http.Client{Timeout: f.timeout},
	}
	custom.SetAccountSid(creds.AccountSID)
	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: custom})
}

// ListMessagingServices fetches the sender pools visible to the credentials.
func (f *Factory) ListMessagingServices(ctx context.Context, creds domain.Credentials) ([]domain.MessagingService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rest := f.restClient(creds)
	records, err := rest.MessagingV1.ListService(&messagingv1.ListServiceParams{})
	if err != nil {
		return nil, translateError(err)
	}

	services := make([]domain.MessagingService, 0, len(records))
	for _, rec := range records {
		svc := domain.MessagingService{
			DateCreated: rec.DateCreated,
			DateUpdated: rec.DateUpdated,
		}
		if rec.Sid != nil {
			svc.SID = *rec.Sid
		}
		if rec.FriendlyName != nil {
			svc.FriendlyName = *rec.FriendlyName
		}
		services = append(services, svc)
	}
	return services, nil
}

// Provider sends messages through one Twilio account.
type Provider struct {
	rest *twilio.RestClient
}

// Send submits a single message to Twilio.
func (p *Provider) Send(ctx context.Context, req sms.SendRequest) (sms.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return sms.SendResult{}, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(req.To)
	params.SetBody(req.Body)

	switch req.Sender.Type {
	case domain.SenderTypePhone:
		params.SetFrom(req.Sender.PhoneNumber)
	case domain.SenderTypeMessagingService:
		params.SetMessagingServiceSid(req.Sender.MessagingServiceSID)
	default:
		return sms.SendResult{}, fmt.Errorf("twilio: unsupported sender type %q", req.Sender.Type)
	}

	resp, err := p.rest.Api.CreateMessage(params)
	if err != nil {
		return sms.SendResult{}, translateError(err)
	}

	result := sms.SendResult{}
	if resp.Sid != nil {
		result.MessageSID = *resp.Sid
	}
	if resp.Status != nil {
		result.Status = *resp.Status
	}
	return result, nil
}

func translateError(err error) error {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return &sms.ProviderError{
			Code:    restErr.Code,
			Message: restErr.Message,
			Status:  restErr.Status,
		}
	}
	return err
}
