// Package personalize substitutes {field} placeholders in message templates
// with per-contact values.
package personalize

import (
	"regexp"
	"strings"

	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
)

// Message replaces every case-insensitive occurrence of {key} in template
// with the contact's value for key. Placeholders without a matching contact
// field are left untouched; a template with no placeholders is returned
// unchanged.
func Message(template string, contact domain.Contact) string {
	if len(contact) == 0 || !strings.Contains(template, "{") {
		return template
	}

	out := template
	for key, value := range contact {
		pattern, err := regexp.Compile(`(?i)\{` + regexp.QuoteMeta(key) + `\}`)
		if err != nil {
			continue
		}
		out = pattern.ReplaceAllLiteralString(out, value)
	}
	return out
}
