// Package sanitize redacts credentials from text before it is logged or
// shown in error messages.
package sanitize

import "regexp"

// Pattern represents a compiled regex pattern for secret detection
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// secretPatterns are applied in order. URL credentials come first so the
// generic key=value rules do not split them.
var secretPatterns = []Pattern{
	{
		Name:        "URL Credentials",
		Regex:       regexp.MustCompile(`(?i)(https?://)[^/\s:@]+:[^/\s@]+@`),
		Replacement: "${1}[CREDENTIALS_REDACTED]@",
	},
	{
		Name:        "Basic Auth",
		Regex:       regexp.MustCompile(`(?i)basic\s+[A-Za-z0-9+/=]{12,}`),
		Replacement: "Basic [CREDENTIALS_REDACTED]",
	},
	{
		Name:        "Bearer Token",
		Regex:       regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{20,}=*`),
		Replacement: "Bearer [TOKEN_REDACTED]",
	},
	{
		Name:        "JWT Token",
		Regex:       regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		Replacement: "[JWT_REDACTED]",
	},
	{
		// WordPress application passwords: six groups of four.
		Name:        "Application Password",
		Regex:       regexp.MustCompile(`\b[A-Za-z0-9]{4}( [A-Za-z0-9]{4}){5}\b`),
		Replacement: "[APP_PASSWORD_REDACTED]",
	},
	{
		Name:        "Generic Secret",
		Regex:       regexp.MustCompile(`(?i)(password|app_password|token|secret|api_key)(["']?\s*[=:]\s*["']?)[^\s"',}]+`),
		Replacement: "$1$2[REDACTED]",
	},
	{
		Name:        "PEM Block",
		Regex:       regexp.MustCompile(`-----BEGIN [A-Z ]+-----[\s\S]+?-----END [A-Z ]+-----`),
		Replacement: "[PEM_BLOCK_REDACTED]",
	},
}

// GetSecretPatterns returns a copy of the secret detection patterns list.
func GetSecretPatterns() []Pattern {
	result := make([]Pattern, len(secretPatterns))
	copy(result, secretPatterns)
	return result
}
