package models

import "unicode"

// ValidName rejects the empty string and any name containing whitespace or
// control characters. policy_name, group_name and username are all held
// to this restriction.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
