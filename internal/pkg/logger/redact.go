package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks an email address for safe logging, keeping the domain.
// "john.doe@example.com" → "jo***@example.com"
// Local parts of two characters or fewer are fully masked.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactEmails masks every address embedded in s.
func RedactEmails(s string) string {
	return emailPattern.ReplaceAllStringFunc(s, RedactEmail)
}

// redactPIIValue masks a field value. Fields named after an email or alias
// are masked whole; anything else has embedded addresses masked.
func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if (strings.Contains(key, "email") || strings.Contains(key, "alias")) && !strings.ContainsAny(val, " \t") {
		if strings.Contains(val, "@") {
			return RedactEmail(val)
		}
		return val
	}
	return RedactEmails(val)
}
