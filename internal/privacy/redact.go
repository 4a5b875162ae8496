// Package privacy keeps credentials out of log output.
package privacy

import (
	"regexp"
	"strings"
)

// Mask replaces every redacted secret.
const Mask = "[REDACTED]"

var (
	// apiKeyRegex matches OpenAI-style keys, including project and service keys.
	apiKeyRegex = regexp.MustCompile(`\bsk-[A-Za-z0-9_*-]{8,}`)

	// bearerRegex matches an Authorization bearer credential.
	bearerRegex = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
)

// Redact masks API keys and bearer tokens in text.
func Redact(text string) string {
	text = apiKeyRegex.ReplaceAllString(text, Mask)
	text = bearerRegex.ReplaceAllString(text, "${1}"+Mask)
	return text
}

// RedactSecret masks every occurrence of secret, then applies Redact.
// Secrets shorter than 4 bytes are left alone.
func RedactSecret(text, secret string) string {
	if len(secret) >= 4 {
		text = strings.ReplaceAll(text, secret, Mask)
	}
	return Redact(text)
}
