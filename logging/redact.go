package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive values in log output.
const RedactedPlaceholder = "[REDACTED]"

// credentialPatterns match credentials that may leak into error strings,
// for example provider error bodies echoing an Authorization header.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),
	// fal keys are sent as "Key <id>:<secret>"
	regexp.MustCompile(`(?i)key\s+[a-f0-9-]{20,}:[a-f0-9]+`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)api[-_]?key\s*[:=]\s*[^\s,;&]{8,}`),
	regexp.MustCompile(`(?i)token\s*[:=]\s*[^\s,;&]{8,}`),
}

// sensitiveKeys are substrings of field names whose values are never
// logged.
var sensitiveKeys = []string{
	"API_KEY",
	"APIKEY",
	"OPENAI_KEY",
	"AZURE_OPENAI_KEY",
	"FAL_KEY",
	"AUTHORIZATION",
	"PASSWORD",
	"SECRET",
	"TOKEN",
}

// RedactSensitiveData replaces every credential-looking substring.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	for _, p := range credentialPatterns {
		value = p.ReplaceAllString(value, RedactedPlaceholder)
	}
	return value
}

// IsSensitiveField reports whether a field name denotes a credential.
func IsSensitiveField(name string) bool {
	upper := strings.ToUpper(name)
	for _, k := range sensitiveKeys {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData reports whether value holds a credential pattern.
func ContainsSensitiveData(value string) bool {
	for _, p := range credentialPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}
