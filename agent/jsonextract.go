package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/itsneelabh/actionagent/core"
)

var fenceMarker = regexp.MustCompile("```[A-Za-z0-9_-]*")

// ExtractJSON recovers the first JSON value from noisy model output.
//
// It strips code fences, parses from the first '{' or '[', retries on the
// prefix up to the reported syntax error offset (trailing commentary), and
// finally scans for the first balanced {...} span that parses, ignoring
// braces inside string literals.
//
// Every failure satisfies errors.Is(err, core.ErrMalformedOutput); a string
// with no JSON at all also matches core.ErrNoJSONFound.
func ExtractJSON(s string) (interface{}, error) {
	s = strings.TrimSpace(fenceMarker.ReplaceAllString(s, ""))

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedOutput, core.ErrNoJSONFound)
	}
	candidate := s[start:]

	var v interface{}
	err := json.Unmarshal([]byte(candidate), &v)
	if err == nil {
		return v, nil
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) && syntaxErr.Offset > 1 {
		// Offset counts the byte that broke the parse.
		prefix := candidate[:syntaxErr.Offset-1]
		if perr := json.Unmarshal([]byte(prefix), &v); perr == nil {
			return v, nil
		}
	}

	if obj, ok := scanBalancedObject(s[start:]); ok {
		return obj, nil
	}

	return nil, fmt.Errorf("%w: %w: %v", core.ErrMalformedOutput, core.ErrExtractionFailed, err)
}

// ExtractJSONObject is ExtractJSON restricted to a top-level object
func ExtractJSONObject(s string) (map[string]interface{}, error) {
	v, err := ExtractJSON(s)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		// An array or scalar first; an object may still follow.
		if scanned, found := scanBalancedObject(s[strings.IndexAny(s, "{["):]); found {
			return scanned, nil
		}
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", core.ErrMalformedOutput, v)
	}
	return obj, nil
}

// scanBalancedObject walks s tracking {} depth outside string literals and
// returns the first balanced top-level object that parses.
func scanBalancedObject(s string) (map[string]interface{}, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				var obj map[string]interface{}
				if err := json.Unmarshal([]byte(s[start:i+1]), &obj); err == nil {
					return obj, true
				}
				start = -1
			}
		}
	}
	return nil, false
}
