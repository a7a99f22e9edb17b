package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the scalar answer types.
// Only Null, String, Int and Bool implement it.
type Value interface {
	formValue()
}

// Null marks an answer that was explicitly cleared.
type Null struct{}

func (Null) formValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a free-text or choice answer.
type String string

func (String) formValue() {}

// Int is an integer answer. Always int64, never float64.
type Int int64

func (Int) formValue() {}

// Bool is a yes/no answer.
type Bool bool

func (Bool) formValue() {}

// Values maps field names to answers. It is both the payload of one
// field group and the flattened snapshot of the whole questionnaire.
type Values map[string]Value

// Clone returns a shallow copy. Values are immutable scalars, so a
// shallow copy is a full copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge copies every entry of other into v, overwriting existing keys.
func (v Values) Merge(other Values) {
	for k, val := range other {
		v[k] = val
	}
}

// SortedKeys returns keys in canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for
// characters outside the BMP.
func (v Values) SortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// StringOf returns the string content of key, or "" when the key is
// missing or not a String.
func (v Values) StringOf(key string) string {
	if s, ok := v[key].(String); ok {
		return string(s)
	}
	return ""
}

func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// IsEmpty reports whether v carries no answer: nil, Null or a blank String.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case String:
		return strings.TrimSpace(string(val)) == ""
	}
	return false
}

// MarshalJSON implements json.Marshaler for Values using canonical output.
func (v Values) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(v)
}

// UnmarshalJSON implements json.Unmarshaler for Values.
// Numbers must be integers; nested arrays and objects are rejected.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*v = make(Values, len(raw))
	for k, r := range raw {
		val, err := UnmarshalValue(r)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		(*v)[k] = val
	}
	return nil
}

// UnmarshalValue decodes a single JSON scalar into a Value.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case 'n':
		return Null{}, nil
	case '[', '{':
		return nil, fmt.Errorf("nested values are not allowed: %s", string(data))
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("floats are not allowed: %s", string(data))
	}
	return Int(i), nil
}

// FromAny converts a decoded Go value (JSON, YAML or CLI input) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return Int(int64(val)), nil
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed: %s", val)
		}
		return Int(i), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not allowed: %v", val)
	default:
		return nil, fmt.Errorf("unsupported answer type: %T", v)
	}
}

// FromMap converts a generic map into Values.
func FromMap(m map[string]any) (Values, error) {
	out := make(Values, len(m))
	for k, raw := range m {
		val, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// ToAny converts a Value back into a plain Go value for display.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	}
	return nil
}
