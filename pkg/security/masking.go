package security

import (
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

var (
	jwtPattern    = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|authorization)(["\s:=]+)(?:bearer\s+)?["']?[a-zA-Z0-9_\-.]{16,}["']?`)
	evmPattern    = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

	sensitiveFields = []string{
		"password", "secret", "token", "api_key", "apikey", "private_key",
		"seed", "mnemonic", "authorization", "credential",
	}
)

// MaskString masks credentials and wallet addresses embedded in free text
func MaskString(s string) string {
	s = jwtPattern.ReplaceAllString(s, "eyJ"+redacted)
	s = apiKeyPattern.ReplaceAllString(s, "$1$2"+redacted)
	return evmPattern.ReplaceAllStringFunc(s, MaskWalletAddress)
}

// MaskMap masks sensitive fields in a map, recursing into nested maps
func MaskMap(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for k, v := range data {
		if isSensitiveField(k) {
			masked[k] = redacted
			continue
		}
		switch val := v.(type) {
		case string:
			masked[k] = MaskString(val)
		case map[string]interface{}:
			masked[k] = MaskMap(val)
		default:
			masked[k] = v
		}
	}
	return masked
}

// MaskWalletAddress keeps the first 6 and last 4 characters
func MaskWalletAddress(addr string) string {
	if len(addr) < 10 {
		return "****"
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// MaskAPIKey masks an API key showing only first 4 chars
func MaskAPIKey(key string) string {
	if len(key) < 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}

func isSensitiveField(field string) bool {
	lower := strings.ToLower(field)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
