package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// FlexString decodes strings, numbers and booleans as text. Objects, arrays and
// null decode to the empty string without failing the surrounding record.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		*s = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			*s = ""
			return nil
		}
		*s = FlexString(strings.TrimSpace(v))
	case '{', '[':
		*s = ""
	default:
		*s = FlexString(string(trimmed))
	}
	return nil
}

// String returns the decoded text.
func (s FlexString) String() string {
	return string(s)
}

// FlexFloat decodes a JSON number or a numeric string. Anything else is left invalid.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil
	}
	raw := string(trimmed)
	if trimmed[0] == '"' {
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil
		}
		raw = strings.TrimSpace(v)
	}
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.Value = v
	f.Valid = true
	return nil
}

// Ptr returns the value as a pointer, nil when invalid.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// FlexStrings decodes an array of strings or a single comma separated string.
// Non-string array members are dropped.
type FlexStrings []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexStrings) UnmarshalJSON(data []byte) error {
	*s = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var v string
			if err := json.Unmarshal(item, &v); err != nil {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		*s = out
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil
		}
		out := make([]string, 0)
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*s = out
	}
	return nil
}

// UnmarshalJSON accepts a location object, or a bare string taken as the address.
func (l *RawLocation) UnmarshalJSON(data []byte) error {
	*l = RawLocation{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '{':
		type plain RawLocation
		var v plain
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil
		}
		*l = RawLocation(v)
	case '"':
		var addr FlexString
		_ = addr.UnmarshalJSON(trimmed)
		l.Address = addr
	}
	return nil
}
