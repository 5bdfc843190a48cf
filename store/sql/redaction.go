package sqlstore

import "regexp"

const redactedValue = "[REDACTED]"

var (
	sensitiveElementPattern = regexp.MustCompile(
		`(?is)(<(?:[\w.-]+:)?(?:password|secret|session|token|access_token|api_key|apikey)(?:\s[^>]*)?>)([^<]*)(</)`,
	)
	sensitiveFieldPattern = regexp.MustCompile(
		`(?i)("(?:password|secret|session|token|access_token|api_key|apikey)"\s*:\s*")((?:[^"\\]|\\.)*)(")`,
	)
)

// RedactPayload masks credential and session values in an XML or JSON wire
// payload before it is journaled.
func RedactPayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	out := sensitiveElementPattern.ReplaceAll(payload, []byte("${1}"+redactedValue+"${3}"))
	out = sensitiveFieldPattern.ReplaceAll(out, []byte("${1}"+redactedValue+"${3}"))
	return string(out)
}
