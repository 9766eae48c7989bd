package policy

import "regexp"

// Check-in answers routinely contain personal detail. High-risk patterns
// are masked before an answer leaves for the backend or is written to a
// log line.
var redactions = []struct {
	pattern *regexp.Regexp
	mask    string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	// Cards before phones so long digit runs are not misread as phone numbers.
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// Redact masks common high-risk PII patterns in a log-bound string.
func Redact(input string) (redacted string, changed bool) {
	out := input
	for _, r := range redactions {
		next := r.pattern.ReplaceAllString(out, r.mask)
		if next != out {
			changed = true
			out = next
		}
	}
	return out, changed
}
