// Package privacy scrubs secret-looking fragments from captured activity
// context before anything is persisted or broadcast.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces every scrubbed fragment.
const Redacted = "[redacted]"

var secretPatterns = []*regexp.Regexp{
	// Authorization fragments pasted into window titles.
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{8,}=*`),
	// Common API key shapes.
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bghp_[A-Za-z0-9]{20,}\b`),
	regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
	// Long hex blobs (session ids, tokens in digest form).
	regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
}

var sensitiveParams = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"api_key":       {},
	"apikey":        {},
	"auth":          {},
	"authorization": {},
	"session":       {},
	"sessionid":     {},
	"sid":           {},
	"secret":        {},
	"password":      {},
	"passwd":        {},
	"signature":     {},
	"sig":           {},
}

// CleanTitle replaces secret-looking fragments in a window or page title.
func CleanTitle(title string) string {
	for _, re := range secretPatterns {
		title = re.ReplaceAllString(title, Redacted)
	}
	return strings.TrimSpace(title)
}

// IsSensitiveParam reports whether a query parameter name is known to carry
// credentials.
func IsSensitiveParam(name string) bool {
	_, ok := sensitiveParams[strings.ToLower(name)]
	return ok
}

// RedactURL replaces the values of credential-bearing query parameters. The
// URL structure is otherwise preserved so content identifiers (video ids,
// track ids) survive. Unparseable input is returned unchanged.
func RedactURL(raw string) string {
	if raw == "" || !strings.Contains(raw, "?") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	touched := false
	for name := range query {
		if IsSensitiveParam(name) {
			query.Set(name, Redacted)
			touched = true
		}
	}
	if !touched {
		return raw
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
