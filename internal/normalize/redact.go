package normalize

import "strings"

// Mask replaces sensitive header values before storage and transport.
const Mask = "[redacted]"

var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
	"x-api-key":     {},
}

// RedactHeaders returns a copy of headers with sensitive values masked.
// Key casing is preserved, non-sensitive values pass through unchanged,
// and values that already carry the mask are kept as-is, so re-redacting
// an already-redacted mapping is a no-op.
func RedactHeaders(headers map[string]string) map[string]string {
	redacted := make(map[string]string, len(headers))
	for key, value := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(key)]; sensitive {
			if strings.Contains(value, Mask) {
				redacted[key] = value
			} else {
				redacted[key] = Mask
			}
		} else {
			redacted[key] = value
		}
	}
	return redacted
}
