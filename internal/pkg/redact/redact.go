// Package redact masks sensitive parameter values before they are written to
// an audit record or log line.
package redact

import "strings"

const redactedValue = "***REDACTED***"

// sensitiveNameFragments is matched case-insensitively against a parameter
// name; any match masks the value.
var sensitiveNameFragments = []string{"password", "secret", "token", "credential", "private_key", "apikey", "api_key"}

// Parameters returns a copy of params with every value whose key looks
// sensitive replaced by a fixed placeholder. Keys are preserved so audit
// readers still see which parameters were supplied.
func Parameters(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if IsSensitiveName(k) {
			out[k] = redactedValue
			continue
		}
		out[k] = v
	}
	return out
}

// IsSensitiveName reports whether a parameter name matches one of the
// sensitive-name fragments.
func IsSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range sensitiveNameFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
