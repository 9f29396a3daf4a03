// Package validate holds the synchronous input checks shared by the
// immediate-send and schedule paths.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	apperrors "github.com/twilio-labs/bulk-sms-tool/pkg/errors"
)

// E.164: leading +, first digit 1-9, 2 to 15 digits total.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// accountSIDPattern is advisory only; a mismatch does not fail validation.
var accountSIDPattern = regexp.MustCompile(`^AC[0-9a-fA-F]{32}$`)

// PhoneNumber reports whether s is a well-formed E.164 number.
func PhoneNumber(s string) bool {
	return phonePattern.MatchString(s)
}

// SenderConfig checks that exactly the fields required by the active variant
// are present and well formed.
func SenderConfig(cfg domain.SenderConfig) error {
	switch cfg.Type {
	case domain.SenderTypePhone:
		if cfg.PhoneNumber == "" {
			return fmt.Errorf("%w: phone number is required when using phone sender type", apperrors.ErrValidation)
		}
		if !PhoneNumber(cfg.PhoneNumber) {
			return fmt.Errorf("%w: invalid sender phone number format", apperrors.ErrValidation)
		}
	case domain.SenderTypeMessagingService:
		if cfg.MessagingServiceSID == "" {
			return fmt.Errorf("%w: messaging service SID is required when using messaging service sender type", apperrors.ErrValidation)
		}
	default:
		return fmt.Errorf(`%w: invalid sender type %q, must be "phone" or "messaging-service"`, apperrors.ErrValidation, cfg.Type)
	}
	return nil
}

// Credentials checks that both halves of the provider account pair are
// present. SID format problems are logged upstream but not rejected here.
func Credentials(creds domain.Credentials) error {
	if strings.TrimSpace(creds.AccountSID) == "" {
		return fmt.Errorf("%w: provider account SID is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(creds.AuthToken) == "" {
		return fmt.Errorf("%w: provider auth token is required", apperrors.ErrValidation)
	}
	return nil
}

// AccountSIDLooksValid is an advisory format check for provider account SIDs.
func AccountSIDLooksValid(sid string) bool {
	return accountSIDPattern.MatchString(sid)
}
