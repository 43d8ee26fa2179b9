package geo

import (
	"context"
	"errors"
	"time"
)

// Position error codes as reported by platform location services.
const (
	PermissionDenied    = 1
	PositionUnavailable = 2
	Timeout             = 3
)

const (
	msgPermissionDenied    = "Location access denied. Please enable location services."
	msgPositionUnavailable = "Location information is unavailable."
	msgTimeout             = "Location request timed out."
	msgUnknown             = "An unknown error occurred while getting location."
	msgUnsupported         = "Geolocation is not supported by this browser."
)

var ErrUnsupported = errors.New(msgUnsupported)

type PositionError struct {
	Code int
}

func (e *PositionError) Error() string {
	switch e.Code {
	case PermissionDenied:
		return msgPermissionDenied
	case PositionUnavailable:
		return msgPositionUnavailable
	case Timeout:
		return msgTimeout
	default:
		return msgUnknown
	}
}

type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// State is the last known location or the message explaining why there is none.
type State struct {
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64
	Error     string
}

// ErrorMessage maps any lookup failure to the message shown to users.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnsupported) {
		return msgUnsupported
	}
	var posErr *PositionError
	if errors.As(err, &posErr) {
		return posErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	return msgUnknown
}

// Current asks the locator once. A nil locator reports that location is unsupported.
func Current(ctx context.Context, locator Locator) State {
	if locator == nil {
		return State{Error: msgUnsupported}
	}
	pos, err := locator.CurrentPosition(ctx)
	if err != nil {
		return State{Error: ErrorMessage(err)}
	}
	return stateFrom(pos)
}

// Watch reports the current state immediately and then every interval until
// ctx is done. Errors keep the last good coordinates.
func Watch(ctx context.Context, locator Locator, interval time.Duration, report func(State)) error {
	if locator == nil {
		report(State{Error: msgUnsupported})
		return ErrUnsupported
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var last State
	poll := func() {
		pos, err := locator.CurrentPosition(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			last.Error = ErrorMessage(err)
		} else {
			last = stateFrom(pos)
		}
		report(last)
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			poll()
		}
	}
}

func stateFrom(pos Position) State {
	lat, lng, acc := pos.Latitude, pos.Longitude, pos.Accuracy
	return State{Latitude: &lat, Longitude: &lng, Accuracy: &acc}
}

// StaticLocator always reports the same fixed position.
type StaticLocator Position

func (s StaticLocator) CurrentPosition(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, &PositionError{Code: Timeout}
	}
	return Position(s), nil
}
