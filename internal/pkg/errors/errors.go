package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataNotFound means every store was consulted and none holds the key.
	// It is an expected outcome for unknown identifiers, not a failure.
	ErrDataNotFound = errors.New("data not found")
	// ErrTransientIO marks a store or upstream that could not be reached or answered badly.
	ErrTransientIO = errors.New("transient io error")
	// ErrMalformedRecord marks a single source record that cannot be used.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrConfiguration marks missing or invalid settings for a dependency.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// TransientIOError records which tier failed and during which operation.
type TransientIOError struct {
	Tier string
	Op   string
	Err  error
}

func (e *TransientIOError) Error() string {
	if e == nil {
		return ""
	}
	msg := "transient io"
	if e.Tier != "" {
		msg += " [" + e.Tier + "]"
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientIOError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransientIO}
	}
	return []error{ErrTransientIO, e.Err}
}

// Transient wraps err as a TransientIOError. A nil err yields nil.
func Transient(tier, op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientIOError
	if errors.As(err, &te) && te.Tier == tier {
		return err
	}
	return &TransientIOError{Tier: tier, Op: op, Err: err}
}

// MalformedRecordError describes a record skipped during a rebuild or ingest scan.
type MalformedRecordError struct {
	Source string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("malformed record %q: %s", e.Source, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

func Malformed(source, reason string) error {
	return &MalformedRecordError{Source: strings.TrimSpace(source), Reason: reason}
}

// ConfigurationError names the settings that are missing.
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	return "missing configuration: " + strings.Join(e.Fields, ", ")
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func MissingConfig(fields ...string) error {
	return &ConfigurationError{Fields: fields}
}

func IsTransient(err error) bool       { return errors.Is(err, ErrTransientIO) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrDataNotFound) }
func IsMalformed(err error) bool       { return errors.Is(err, ErrMalformedRecord) }
func IsConfiguration(err error) bool   { return errors.Is(err, ErrConfiguration) }
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }
