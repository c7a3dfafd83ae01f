package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinInterval is the shortest scheduling interval a host entry may use.
const MinInterval = time.Second

// ErrValidation marks input that was rejected before any state changed.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a rejected field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// HostEntry is a monitored target and its last observed measurement.
type HostEntry struct {
	ID         string       `json:"id"`
	Host       string       `json:"host"`
	Interval   Duration     `json:"interval"`
	Enabled    bool         `json:"enabled"`
	LastResult *Measurement `json:"last_result,omitempty"`
}

// Clone returns a deep copy so callers never share the LastResult pointer.
func (e HostEntry) Clone() HostEntry {
	if e.LastResult != nil {
		m := e.LastResult.Clone()
		e.LastResult = &m
	}
	return e
}

// ValidateHostInput checks the user-editable fields of an entry and returns
// the normalised host string.
func ValidateHostInput(host string, interval time.Duration) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", &ValidationError{Field: "host", Message: "must not be empty"}
	}
	if interval < MinInterval {
		return "", &ValidationError{
			Field:   "interval",
			Message: fmt.Sprintf("%s is below the minimum of %s", interval, MinInterval),
		}
	}
	return host, nil
}

// Duration is a time.Duration that encodes as a Go duration string.
// Decoding also accepts a bare number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func parseDuration(raw any) (Duration, error) {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", v, err)
		}
		return Duration(parsed), nil
	case float64:
		return Duration(v * float64(time.Second)), nil
	case int:
		return Duration(time.Duration(v) * time.Second), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v", raw)
	}
}
