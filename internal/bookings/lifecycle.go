// Package bookings holds the charging booking lifecycle: status transitions,
// scheduling windows and cost estimation.
package bookings

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/codr1/ChargeEase/internal/models"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480

	// StartWindow is how early a confirmed booking may start charging.
	StartWindow = 15 * time.Minute
	// PendingTimeout is how long a booking may wait for a payment method.
	PendingTimeout = 15 * time.Minute
	// PastTolerance absorbs clock skew on requested start times.
	PastTolerance = time.Minute

	chargeEfficiency = 0.8
)

var (
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrOutsideStartWindow = errors.New("booking cannot be started outside its time window")
	ErrInvalidDuration    = fmt.Errorf("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
	ErrStartInPast        = errors.New("start time must not be in the past")
)

var transitions = map[string][]string{
	models.BookingPending:   {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingActive, models.BookingCancelled},
	models.BookingActive:    {models.BookingCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func Transition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsLive reports whether a booking still holds a connector.
func IsLive(status string) bool {
	switch status {
	case models.BookingPending, models.BookingConfirmed, models.BookingActive:
		return true
	}
	return false
}

func ValidateDuration(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	return nil
}

func ValidateStart(start, now time.Time) error {
	if start.Before(now.Add(-PastTolerance)) {
		return ErrStartInPast
	}
	return nil
}

// CheckStartWindow allows starting from StartWindow before the slot until it ends.
func CheckStartWindow(start, end, now time.Time) error {
	if now.Before(start.Add(-StartWindow)) || !now.Before(end) {
		return ErrOutsideStartWindow
	}
	return nil
}

// EstimateEnergy is the kWh a connector delivers over minutes at the
// assumed charging efficiency.
func EstimateEnergy(maxPowerKW float64, minutes int) float64 {
	return roundTo(maxPowerKW*float64(minutes)/60*chargeEfficiency, 2)
}

// EstimateCost prices a session of the given length, rounded to cents.
func EstimateCost(pricing models.Pricing, maxPowerKW float64, minutes int) float64 {
	var total float64
	if pricing.SessionFee != nil {
		total += *pricing.SessionFee
	}
	if pricing.PerKwh != nil {
		total += *pricing.PerKwh * EstimateEnergy(maxPowerKW, minutes)
	}
	if pricing.PerMinute != nil {
		total += *pricing.PerMinute * float64(minutes)
	}
	return roundTo(total, 2)
}

// ElapsedMinutes rounds a charging session up to whole minutes, minimum one.
func ElapsedMinutes(start, end time.Time) int {
	minutes := int(math.Ceil(end.Sub(start).Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
