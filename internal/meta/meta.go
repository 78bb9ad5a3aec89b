// Package meta enforces per-user parameter restrictions declared on a
// user's Meta: allowed value lists for specific option names, and
// auxiliary data injected into outgoing backend requests.
package meta

import (
	"fmt"

	"github.com/modular-api/core/internal/models"
)

// RestrictedValue is returned when a call supplies (or would default to,
// via injected auxiliary data) a value outside the user's allow-list for
// that option.
type RestrictedValue struct {
	Option string
	Value  interface{}
}

func (e *RestrictedValue) Error() string {
	return fmt.Sprintf("value %v not permitted for option %q", e.Value, e.Option)
}

// Apply validates params against the user's meta.allowed_values, then
// injects meta.aux_data for any option the caller did not already supply.
// It returns a new map; the caller's params is left untouched.
//
// For every option name present in meta.AllowedValues: if params supplies
// a value for it, that value must appear in the allow-list. Options
// absent from params and without an injected auxiliary value are left
// unrestricted, since no value is actually flowing for them.
func Apply(m models.Meta, params map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params)+len(m.AuxData))
	for k, v := range params {
		out[k] = v
	}
	for option, allowed := range m.AllowedValues {
		v, present := out[option]
		if !present {
			continue
		}
		if !valueAllowed(v, allowed) {
			return nil, &RestrictedValue{Option: option, Value: v}
		}
	}
	for option, v := range m.AuxData {
		if _, present := out[option]; present {
			continue
		}
		if allowed, ok := m.AllowedValues[option]; ok && !valueAllowed(v, allowed) {
			return nil, &RestrictedValue{Option: option, Value: v}
		}
		out[option] = v
	}
	return out, nil
}

func valueAllowed(v interface{}, allowed []string) bool {
	s, ok := asString(v)
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}
