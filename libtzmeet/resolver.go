package libtzmeet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/njt/tzmeet/internal/dateparse"
	"github.com/njt/tzmeet/internal/logutil"
	"github.com/njt/tzmeet/internal/metrics"
)

// MaxDurationMinutes is the longest meeting accepted, one leap year.
const MaxDurationMinutes = 366 * 24 * 60

// Error markers placed in the readable fields of a degraded resolution
const (
	OriginErrorMarker      = "Error converting origin time"
	ParticipantErrorMarker = "Error converting target time"
)

// MeetingRequest is a single meeting to resolve for one participant
type MeetingRequest struct {
	MeetingTime     string `json:"meeting_time"`  // "2023-08-12T14:30:00Z" or "Aug 12, 2023, 2:30:00 PM"
	UserTimezone    string `json:"user_timezone"` // "August 12th, 2023 at 10:30:00 AM GMT-4"
	FromTimezone    string `json:"from_timezone,omitempty"`
	TargetTimezone  string `json:"target_timezone,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

// MeetingResolution is the outcome of Resolve. On failure both readable fields
// carry error markers and both timestamps are nil.
type MeetingResolution struct {
	ReadableTimeOrigin      string `json:"readable_time_origin"`
	ReadableTimeParticipant string `json:"readable_time_participant"`
	CalendarMeetingTime     *int64 `json:"calendar_meeting_time,omitempty"` // epoch seconds
	CalendarEndTime         *int64 `json:"calendar_end_time,omitempty"`     // epoch seconds
}

// Degraded returns the resolution reported for any failure
func Degraded() *MeetingResolution {
	return &MeetingResolution{
		ReadableTimeOrigin:      OriginErrorMarker,
		ReadableTimeParticipant: ParticipantErrorMarker,
	}
}

// OK reports whether the resolution carries a calendar meeting time
func (m *MeetingResolution) OK() bool {
	return m != nil && m.CalendarMeetingTime != nil
}

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	// OriginLocation is where the origin readable time is rendered. Nil means UTC.
	OriginLocation *time.Location
	Logger         *slog.Logger
	// Now is the reference for relative meeting times. Nil means time.Now.
	Now func() time.Time
}

// Resolver converts a proposed meeting time for the user and a participant
type Resolver struct {
	converter Converter
	originLoc *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewResolver creates a resolver backed by conv
func NewResolver(conv Converter, opts ResolverOptions) *Resolver {
	r := &Resolver{
		converter: conv,
		originLoc: opts.OriginLocation,
		logger:    logutil.NoopIfNil(opts.Logger),
		now:       opts.Now,
	}
	if r.originLoc == nil {
		r.originLoc = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve never fails. Any error along the way is logged with its step and
// the caller receives Degraded().
func (r *Resolver) Resolve(ctx context.Context, req *MeetingRequest) *MeetingResolution {
	logger := r.logger.With("resolution_id", uuid.NewString())

	res, err := r.resolve(ctx, req)
	if err != nil {
		kind, step := "internal", ""
		var rerr *ResolveError
		if errors.As(err, &rerr) {
			kind, step = rerr.Kind(), rerr.Step.String()
		}
		logger.Error("meeting resolution failed", "kind", kind, "step", step, "error", err)
		metrics.RecordDegradedResolution(kind, step)
		return Degraded()
	}

	metrics.RecordResolution()
	logger.Info("meeting resolved",
		"calendar_meeting_time", *res.CalendarMeetingTime,
		"calendar_end_time", *res.CalendarEndTime)
	return res
}

func (r *Resolver) resolve(ctx context.Context, req *MeetingRequest) (*MeetingResolution, error) {
	if err := validate(req); err != nil {
		return nil, &ResolveError{Step: StepValidate, Err: err}
	}

	origin, err := dateparse.ParseMeetingTime(req.MeetingTime, r.now())
	if err != nil {
		return nil, &ResolveError{Step: StepFormatMeetingTime, Err: fmt.Errorf("%w: %w", ErrInvalidInput, err)}
	}
	formatted := dateparse.FormatNaive(origin)
	r.logger.Debug("formatted meeting time for API", "meeting_time", req.MeetingTime, "formatted", formatted)

	userZone, err := UserZone(req.UserTimezone)
	if err != nil {
		return nil, &ResolveError{Step: StepUserZone, Err: err}
	}

	// The two conversions share only their inputs, so they run side by side.
	// The first failure cancels the other.
	var participant, user *ConvertedDateTime
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.convert(gctx, req.FromTimezone, formatted, req.TargetTimezone)
		if err != nil {
			return &ResolveError{Step: StepParticipantConversion, Err: err}
		}
		participant = res
		return nil
	})
	g.Go(func() error {
		res, err := r.convert(gctx, req.FromTimezone, formatted, userZone)
		if err != nil {
			return &ResolveError{Step: StepUserConversion, Err: err}
		}
		user = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userInstant, err := dateparse.ParseConverted(user.DateTime)
	if err != nil {
		return nil, &ResolveError{Step: StepCalendarTime, Err: fmt.Errorf("%w: %w", ErrConversionService, err)}
	}
	meetingAt := userInstant.Unix()

	participantInstant, err := dateparse.ParseConverted(participant.DateTime)
	if err != nil {
		return nil, &ResolveError{Step: StepReadable, Err: fmt.Errorf("%w: %w", ErrConversionService, err)}
	}

	endAt := meetingAt + int64(*req.DurationMinutes)*60

	return &MeetingResolution{
		ReadableTimeOrigin:      dateparse.FormatReadable(origin, r.originLoc),
		ReadableTimeParticipant: dateparse.FormatReadable(participantInstant, participantInstant.Location()),
		CalendarMeetingTime:     &meetingAt,
		CalendarEndTime:         &endAt,
	}, nil
}

// convert performs one conversion and checks that it carries a date-time
func (r *Resolver) convert(ctx context.Context, from, dateTime, to string) (*ConvertedDateTime, error) {
	res, err := r.converter.Convert(ctx, &ConversionRequest{
		FromTimeZone: from,
		DateTime:     dateTime,
		ToTimeZone:   to,
	})
	if err != nil {
		if errors.Is(err, ErrConversionService) || errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrConversionService, err)
	}
	if res == nil || res.ConversionResult == nil || res.ConversionResult.DateTime == "" {
		return nil, conversionFailed("invalid DateTime format from API")
	}
	return res.ConversionResult, nil
}

func validate(req *MeetingRequest) error {
	switch {
	case req == nil:
		return invalidInput("meeting request is required")
	case req.MeetingTime == "":
		return invalidInput("meeting_time is required")
	case req.UserTimezone == "":
		return invalidInput("user_timezone is required")
	case req.FromTimezone == "":
		return invalidInput("from_timezone is required")
	case req.TargetTimezone == "":
		return invalidInput("target_timezone is required")
	case req.DurationMinutes == nil:
		return invalidInput("duration_minutes is required")
	case *req.DurationMinutes < 0:
		return invalidInput("duration_minutes must not be negative, got %d", *req.DurationMinutes)
	case *req.DurationMinutes > MaxDurationMinutes:
		return invalidInput("duration_minutes must be at most %d, got %d", MaxDurationMinutes, *req.DurationMinutes)
	}
	return nil
}
