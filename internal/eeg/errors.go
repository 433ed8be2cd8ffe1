package eeg

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrMalformedStream  = errors.New("malformed stream")
	ErrChannelCount     = errors.New("channel count mismatch")
	ErrConditioning     = errors.New("conditioning failed")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrDeviceRead       = errors.New("device read failed")
	ErrSessionConflict  = errors.New("session already active")
)

// MalformedStreamError reports a raw stream that cannot be segmented into
// labeled windows. Position is the zero-based row index.
type MalformedStreamError struct {
	Source   string
	Position int
	Reason   string
}

func (e *MalformedStreamError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("malformed stream %s at row %d: %s", e.Source, e.Position, e.Reason)
	}
	return fmt.Sprintf("malformed stream at row %d: %s", e.Position, e.Reason)
}

func (e *MalformedStreamError) Is(target error) bool { return target == ErrMalformedStream }

// ChannelCountError reports a sample row whose width is not Channels.
type ChannelCountError struct {
	Source   string
	Position int
	Got      int
}

func (e *ChannelCountError) Error() string {
	loc := fmt.Sprintf("row %d", e.Position)
	if e.Source != "" {
		loc = e.Source + " " + loc
	}
	return fmt.Sprintf("%s: expected %d channels, got %d", loc, Channels, e.Got)
}

func (e *ChannelCountError) Is(target error) bool { return target == ErrChannelCount }

// ConditioningError reports degenerate batch statistics for a channel.
type ConditioningError struct {
	Channel int
	Reason  string
}

func (e *ConditioningError) Error() string {
	return fmt.Sprintf("conditioning channel %d: %s", e.Channel+1, e.Reason)
}

func (e *ConditioningError) Is(target error) bool { return target == ErrConditioning }

// ModelUnavailableError reports a classifier artifact that could not be loaded.
type ModelUnavailableError struct {
	Path string
	Err  error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model artifact %q unavailable: %v", e.Path, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// DeviceReadError reports a signal source that failed or timed out.
type DeviceReadError struct {
	Source string
	Err    error
}

func (e *DeviceReadError) Error() string {
	return fmt.Sprintf("device read from %s: %v", e.Source, e.Err)
}

func (e *DeviceReadError) Unwrap() error { return e.Err }

func (e *DeviceReadError) Is(target error) bool { return target == ErrDeviceRead }

// SessionConflictError is returned when a session start is requested while
// another session is active.
type SessionConflictError struct {
	State string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("calibration session already active (state %s)", e.State)
}

func (e *SessionConflictError) Is(target error) bool { return target == ErrSessionConflict }
