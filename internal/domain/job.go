package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates lifecycle states of a scheduled bulk-send job.
type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusSent      JobStatus = "sent"
	JobStatusFailed    JobStatus = "failed"
)

// SenderType selects which origin identity variant is active.
type SenderType string

const (
	SenderTypePhone            SenderType = "phone"
	SenderTypeMessagingService SenderType = "messaging-service"
)

// Contact is a field map describing one message recipient. The "phone" key
// is mandatory; any other keys feed template personalization.
type Contact map[string]string

// Phone returns the contact's destination number.
func (c Contact) Phone() string {
	return c["phone"]
}

// UnmarshalJSON accepts either a contact object or a bare phone-number
// string. A string decodes to a contact with only the phone field set.
func (c *Contact) UnmarshalJSON(data []byte) error {
	var phone string
	if err := json.Unmarshal(data, &phone); err == nil {
		*c = Contact{"phone": phone}
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("contact: expected object or phone string: %w", err)
	}

	out := make(Contact, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = formatNumber(val)
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		case nil:
			out[k] = ""
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("contact: field %q: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	*c = out
	return nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// SenderConfig is the origin identity used when sending. Exactly one variant
// is active, selected by Type.
type SenderConfig struct {
	Type                SenderType `json:"type"`
	PhoneNumber         string     `json:"phoneNumber,omitempty"`
	MessagingServiceSID string     `json:"messagingServiceSid,omitempty"`
}

// Credentials is the opaque provider account pair. It is passed through to
// the provider client and never persisted beyond the request or job lifetime.
type Credentials struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
}

// Job is one scheduled bulk-send request. Contacts are pre-filtered to valid
// phone numbers at schedule time. Status and Results are mutated only by the
// fire handler; cancellation deletes the record outright.
type Job struct {
	ID           uuid.UUID
	Contacts     []Contact
	Message      string
	Credentials  Credentials
	Sender       SenderConfig
	ScheduledAt  time.Time
	MessageDelay time.Duration
	Status       JobStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Results      *ResultSummary
}

// ResultSummary aggregates per-job send counts.
type ResultSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// SendSuccess records one accepted provider submission.
type SendSuccess struct {
	Phone      string `json:"phone"`
	MessageSID string `json:"messageSid"`
	Status     string `json:"status"`
}

// SendFailure records one contact that could not be sent to.
type SendFailure struct {
	Phone string `json:"phone"`
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// DispatchReport is the full outcome of one bulk dispatch run.
type DispatchReport struct {
	Summary    ResultSummary `json:"summary"`
	Successful []SendSuccess `json:"successful"`
	Failed     []SendFailure `json:"failed"`
	Errors     []string      `json:"errors"`
}

// CompletedJobResult is the immutable retention record stored after a
// scheduled job reaches a terminal state, decoupled from the job itself.
type CompletedJobResult struct {
	JobID       uuid.UUID      `json:"jobId"`
	CompletedAt time.Time      `json:"completedAt"`
	Summary     ResultSummary  `json:"summary"`
	Results     ResultDetails  `json:"results"`
	Errors      []string       `json:"errors"`
}

// ResultDetails carries the per-contact outcome lists.
type ResultDetails struct {
	Successful []SendSuccess `json:"successful"`
	Failed     []SendFailure `json:"failed"`
}

// MessagingService describes one provider sender pool.
type MessagingService struct {
	SID          string     `json:"sid"`
	FriendlyName string     `json:"friendlyName"`
	DateCreated  *time.Time `json:"dateCreated,omitempty"`
	DateUpdated  *time.Time `json:"dateUpdated,omitempty"`
}
