package masking

import (
	"net/url"
	"strings"
)

const maskToken = "****"

var secretKeys = []string{"token", "secret", "signature", "password"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskURL drops credentials, query and fragment from an http(s) URL. Proof
// links are often pre-signed and the query carries the signature. Other
// values are returned unchanged.
func MaskURL(value string) string {
	trimmed := strings.TrimSpace(value)
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return value
	}
	parsed.User = nil
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

// MaskJSON returns a copy of the metadata with URLs stripped and values
// under secret-looking keys redacted.
func MaskJSON(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if isSecretKey(trimmedKey) {
			if s, ok := value.(string); ok {
				masked[trimmedKey] = MaskSecret(s)
				continue
			}
		}
		masked[trimmedKey] = maskValue(value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskURL(cast)
	case []string:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, MaskURL(item))
		}
		return out
	case map[string]any:
		return MaskJSON(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range secretKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
