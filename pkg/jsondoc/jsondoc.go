// Package jsondoc provides best-effort accessors over dynamically shaped
// JSON documents. Upstream loan artifacts arrive with no enforced schema, so
// callers probe for fields instead of unmarshalling into rigid structs.
package jsondoc

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Doc is a generic JSON object as produced by encoding/json.
type Doc map[string]any

// FromAny converts a decoded JSON value into a Doc when it is an object.
func FromAny(value any) (Doc, bool) {
	switch v := value.(type) {
	case Doc:
		return v, true
	case map[string]any:
		return Doc(v), true
	default:
		return nil, false
	}
}

// Get descends the document along the given keys and returns the value at
// the end of the path. Missing keys or non-object intermediates return
// (nil, false).
func (d Doc) Get(path ...string) (any, bool) {
	if d == nil || len(path) == 0 {
		return nil, false
	}

	var current any = map[string]any(d)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			if doc, isDoc := current.(Doc); isDoc {
				obj = map[string]any(doc)
			} else {
				return nil, false
			}
		}
		next, exists := obj[key]
		if !exists {
			return nil, false
		}
		current = next
	}
	return current, true
}

// String returns the value at path rendered as a trimmed string, or "" when
// the path is absent. Numeric values are formatted without an exponent so
// loan numbers survive the JSON float round-trip.
func (d Doc) String(path ...string) string {
	value, ok := d.Get(path...)
	if !ok || value == nil {
		return ""
	}
	return Stringify(value)
}

// Float returns the value at path coerced to float64. Strings and
// json.Number values are parsed; anything else reports false.
func (d Doc) Float(path ...string) (float64, bool) {
	value, ok := d.Get(path...)
	if !ok {
		return 0, false
	}
	return ToFloat(value)
}

// Bool interprets the value at path as a boolean. ULDD indicator fields use
// "true"/"false" as well as "Y"/"N" spellings.
func (d Doc) Bool(path ...string) bool {
	value, ok := d.Get(path...)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "y", "yes", "1":
			return true
		}
	case float64:
		return v != 0
	}
	return false
}

// List returns the value at path normalized to a slice of Docs. A singleton
// object is wrapped in a one-element slice; MISMO-derived JSON flips between
// the two shapes depending on how many elements the source XML carried.
func (d Doc) List(path ...string) []Doc {
	value, ok := d.Get(path...)
	if !ok || value == nil {
		return nil
	}

	switch v := value.(type) {
	case []any:
		docs := make([]Doc, 0, len(v))
		for _, item := range v {
			if doc, isDoc := FromAny(item); isDoc {
				docs = append(docs, doc)
			}
		}
		return docs
	default:
		if doc, isDoc := FromAny(v); isDoc {
			return []Doc{doc}
		}
	}
	return nil
}

// FirstString scans the candidate keys at the document's top level in order
// and returns the first non-empty value.
func (d Doc) FirstString(keys ...string) string {
	for _, key := range keys {
		if value := d.String(key); value != "" {
			return value
		}
	}
	return ""
}

// Stringify renders a scalar JSON value as a string.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// ToFloat coerces a scalar JSON value to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
