// Package security provides helpers for logging untrusted input and
// masking credentials in locations and headers.
package security

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"
)

// Redacted replaces masked values.
const Redacted = "[REDACTED]"

// MaxLogLength is the default length SanitizeForLog truncates to.
const MaxLogLength = 200

// SanitizeForLog sanitizes a string for safe logging.
// It prevents log injection by:
// - Replacing newlines with escaped versions
// - Replacing carriage returns
// - Removing other control characters
// - Truncating to a maximum length
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, MaxLogLength)
}

// SanitizeForLogWithLength sanitizes a string for logging with a custom max length.
func SanitizeForLogWithLength(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLen+10))

	count := 0
	for _, r := range s {
		if count >= maxLen {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString("\\n")
			count += 2
		case '\r':
			b.WriteString("\\r")
			count += 2
		case '\t':
			b.WriteString("\\t")
			count += 2
		default:
			// Remove other control characters, keep printable
			if !unicode.IsControl(r) || r == ' ' {
				b.WriteRune(r)
				count++
			}
		}
	}

	return b.String()
}

// sensitiveHeaders are HTTP header names that contain sensitive data.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"x-api-key":           true,
	"api-key":             true,
	"x-auth-token":        true,
	"cookie":              true,
	"set-cookie":          true,
	"x-csrf-token":        true,
	"x-xsrf-token":        true,
	"proxy-authorization": true,
}

// sensitiveFieldPatterns are patterns in key names that indicate sensitive data.
var sensitiveFieldPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"signature",
}

// MaskSensitiveHeaders creates a copy of headers with sensitive values masked.
func MaskSensitiveHeaders(headers http.Header) http.Header {
	if headers == nil {
		return nil
	}

	masked := make(http.Header, len(headers))
	for key, values := range headers {
		if isSensitiveHeader(key) {
			masked[key] = []string{Redacted}
		} else {
			masked[key] = append([]string(nil), values...)
		}
	}
	return masked
}

// MaskLocation masks credentials in a reference data location. File paths
// are returned unchanged. For URLs the userinfo password and sensitive
// query parameters (signed object-store links, API keys) are redacted.
func MaskLocation(location string) string {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return location
	}
	u, err := url.Parse(location)
	if err != nil {
		return SanitizeForLog(location)
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if isSensitiveKey(key) {
				q.Set(key, Redacted)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// isSensitiveHeader checks if a header name contains sensitive data.
func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	if sensitiveHeaders[lower] {
		return true
	}
	return isSensitiveKey(lower)
}

// isSensitiveKey checks if a key name likely contains sensitive data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveFieldPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
