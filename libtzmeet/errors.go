package libtzmeet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks input that cannot be resolved: an unparseable
	// meeting time, a missing field, or a user time zone without GMT±N.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConversionService marks a failed call to the conversion service:
	// non-2xx status, malformed payload, transport failure or timeout.
	ErrConversionService = errors.New("conversion service error")
)

// Step identifies the stage of a resolution.
type Step int

const (
	StepValidate Step = iota
	StepFormatMeetingTime
	StepParticipantConversion
	StepUserZone
	StepUserConversion
	StepCalendarTime
	StepReadable
)

var stepNames = map[Step]string{
	StepValidate:              "validate",
	StepFormatMeetingTime:     "format_meeting_time",
	StepParticipantConversion: "participant_conversion",
	StepUserZone:              "user_zone",
	StepUserConversion:        "user_conversion",
	StepCalendarTime:          "calendar_time",
	StepReadable:              "readable",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ResolveError records which step of a resolution failed and why. It is used
// for logs and metrics only; callers of Resolve see a degraded resolution.
type ResolveError struct {
	Step Step
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", int(e.Step), e.Step, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Kind returns "invalid_input", "conversion_service" or "internal".
func (e *ResolveError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(e.Err, ErrConversionService):
		return "conversion_service"
	default:
		return "internal"
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func conversionFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConversionService, fmt.Sprintf(format, args...))
}
