package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/formsync/internal/form"
)

// marshalValues converts group answers to canonical JSON TEXT for storage.
func marshalValues(v form.Values) (string, error) {
	if v == nil {
		v = form.Values{}
	}
	data, err := form.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses stored canonical JSON TEXT back into answers.
func unmarshalValues(data string) (form.Values, error) {
	if data == "" || data == "{}" {
		return form.Values{}, nil
	}
	var v form.Values
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return v, nil
}

// marshalValue converts a point value to canonical JSON TEXT.
func marshalValue(v form.Value) (string, error) {
	data, err := form.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a stored point value.
func unmarshalValue(data string) (form.Value, error) {
	v, err := form.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
