package agent

import (
	"reflect"
	"sort"

	"github.com/itsneelabh/actionagent/catalog"
)

// RemapParameters moves values from alias keys onto canonical names.
// An alias is moved only when the canonical key is absent, so existing
// values are never overwritten. The input is not modified and applying the
// result again changes nothing.
func RemapParameters(synonyms catalog.SynonymMap, params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}

	for _, syn := range synonyms {
		v, hasAlias := out[syn.Alias]
		if !hasAlias {
			continue
		}
		if _, hasCanonical := out[syn.Canonical]; hasCanonical {
			continue
		}
		out[syn.Canonical] = v
		delete(out, syn.Alias)
	}
	return out
}

// MissingRequired returns the required fields that are absent or empty in
// params, sorted.
func MissingRequired(required []string, params map[string]interface{}) []string {
	var missing []string
	seen := make(map[string]bool, len(required))
	for _, field := range required {
		if seen[field] {
			continue
		}
		seen[field] = true
		if isEmptyValue(params[field]) {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// isEmptyValue reports nil, the empty string and empty collections.
// Numbers and booleans are never empty.
func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ValidateRequired returns a *MissingParametersError when fields are missing
func ValidateRequired(required []string, params map[string]interface{}) error {
	if missing := MissingRequired(required, params); len(missing) > 0 {
		return &MissingParametersError{Fields: missing}
	}
	return nil
}
