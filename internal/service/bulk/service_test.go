package bulk

import (
	"context"
	"errors"
	"testing"

	"github.com/twilio-labs/bulk-sms-tool/internal/dispatch"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	apperrors "github.com/twilio-labs/bulk-sms-tool/pkg/errors"
)

type stubEngine struct {
	report *domain.DispatchReport
	err    error
	calls  int
}

func (s *stubEngine) Run(ctx context.Context, in dispatch.Input) (*domain.DispatchReport, error) {
	s.calls++
	return s.report, s.err
}

func validSendInput(n int) dispatch.Input {
	contacts := make([]domain.Contact, 0, n)
	for i := 0; i < n; i++ {
		contacts = append(contacts, domain.Contact{"phone": "+15550000001"})
	}
	return dispatch.Input{
		Contacts:    contacts,
		Template:    "hello",
		Credentials: domain.Credentials{AccountSID: "AC123", AuthToken: "token"},
		Sender:      domain.SenderConfig{Type: domain.SenderTypePhone, PhoneNumber: "+15550000000"},
	}
}

func TestSendValidationFailures(t *testing.T) {
	engine := &stubEngine{}
	svc := NewService(engine, 2)

	cases := []dispatch.Input{
		{}, // no contacts
		validSendInput(3),
		func() dispatch.Input {
			in := validSendInput(1)
			in.Credentials.AuthToken = ""
			return in
		}(),
		func() dispatch.Input {
			in := validSendInput(1)
			in.Sender.Type = "carrier-pigeon"
			return in
		}(),
	}

	for i, tc := range cases {
		if _, err := svc.Send(context.Background(), tc); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
	if engine.calls != 0 {
		t.Fatalf("engine must not run on validation failure, ran %d times", engine.calls)
	}
}

func TestSendPassesThroughReport(t *testing.T) {
	report := &domain.DispatchReport{Summary: domain.ResultSummary{Total: 1, Successful: 1}}
	svc := NewService(&stubEngine{report: report}, 100)

	got, err := svc.Send(context.Background(), validSendInput(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != report {
		t.Fatal("expected engine report returned unchanged")
	}
}
