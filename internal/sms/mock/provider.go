// Package mock simulates the messaging provider for local development.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/twilio-labs/bulk-sms-tool/internal/config"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/sms"
)

// Factory hands out simulated providers regardless of credentials.
type Factory struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFactory constructs a mock provider factory.
func NewFactory(cfg config.SMSConfig) *Factory {
	return &Factory{
		successRate: 0.9,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Provider returns a simulated send client.
func (f *Factory) Provider(creds domain.Credentials) sms.Provider {
	return &Provider{factory: f}
}

// ListMessagingServices returns a fixed sender pool.
func (f *Factory) ListMessagingServices(ctx context.Context, creds domain.Credentials) ([]domain.MessagingService, error) {
	now := time.Now().UTC()
	return []domain.MessagingService{
		{SID: "MG00000000000000000000000000000000", FriendlyName: "Mock Pool", DateCreated: &now, DateUpdated: &now},
	}, nil
}

// Provider simulates message submission.
type Provider struct {
	factory *Factory
}

// Send pretends to submit a message, failing a configurable fraction of
// calls with a provider-shaped error.
func (p *Provider) Send(ctx context.Context, req sms.SendRequest) (sms.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return sms.SendResult{}, err
	}

	p.factory.mu.Lock()
	roll := p.factory.rng.Float64()
	sid := p.factory.rng.Uint64()
	p.factory.mu.Unlock()

	if roll > p.factory.successRate {
		return sms.SendResult{}, &sms.ProviderError{
			Code:    sms.CodeInvalidDestination,
			Message: fmt.Sprintf("the 'To' number %s is not a valid phone number", req.To),
			Status:  400,
		}
	}

	return sms.SendResult{
		MessageSID: fmt.Sprintf("SM%030x", sid),
		Status:     "queued",
	}, nil
}
