package logger

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitivePatterns match credentials that may leak into error strings:
// bearer tokens, key=value secrets and AWS access key ids.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,&\s"]{5,})`),
	regexp.MustCompile(`(AKIA|ASIA)[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/\s]+:)([^@\s]+)(@)`),
}

// sensitiveKeywords mark field keys whose values are never logged.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "api_key", "apikey",
	"access_key", "authorization", "dsn",
}

// RedactSensitiveData replaces credentials embedded in free text with [REDACTED].
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for i, pattern := range sensitivePatterns {
		switch i {
		case 2:
			input = pattern.ReplaceAllString(input, redacted)
		case 3:
			input = pattern.ReplaceAllString(input, "${1}"+redacted+"${3}")
		default:
			input = pattern.ReplaceAllString(input, "${1}"+redacted)
		}
	}
	return input
}

// RedactURL strips credential query parameters and userinfo from a URL.
// Unparseable input falls back to RedactSensitiveData.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return RedactSensitiveData(raw)
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
	}
	q := u.Query()
	changed := false
	for name := range q {
		if isSensitiveKey(name) || strings.EqualFold(name, "key") {
			q.Set(name, redacted)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// RedactFields returns a copy of fields with sensitive string values replaced.
func RedactFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		if s, ok := out[i].Value.(string); ok && s != "" && isSensitiveKey(out[i].Key) {
			out[i].Value = redacted
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
