package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/bookings"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
)

const (
	bookingLifecycleJob = "booking_lifecycle"
	bookingRemindersJob = "booking_reminders"
	housekeepingJob     = "housekeeping"

	jobTimeout = 2 * time.Minute
)

// Pruner is anything holding per-client state that should be trimmed
// periodically, such as the per-IP rate limiters.
type Pruner interface {
	Prune()
}

// RegisterBookingJobs registers the booking lifecycle sweep and the
// upcoming-session reminders on the singleton scheduler.
func RegisterBookingJobs(svc *bookings.Service, cfg config.SchedulerConfig) error {
	if svc == nil {
		return fmt.Errorf("booking jobs require the booking service")
	}

	lifecycleLogger := jobLogger(bookingLifecycleJob, cfg.BookingLifecycle)
	if _, err := AddJob(bookingLifecycleJob, cfg.BookingLifecycle, func() {
		ctx, cancel := jobContext(lifecycleLogger)
		defer cancel()
		RunBookingLifecycle(ctx, svc)
	}); err != nil {
		return fmt.Errorf("add booking lifecycle job: %w", err)
	}

	remindersLogger := jobLogger(bookingRemindersJob, cfg.BookingReminders)
	if _, err := AddJob(bookingRemindersJob, cfg.BookingReminders, func() {
		ctx, cancel := jobContext(remindersLogger)
		defer cancel()
		RunBookingReminders(ctx, svc)
	}); err != nil {
		return fmt.Errorf("add booking reminder job: %w", err)
	}
	return nil
}

// RegisterHousekeepingJob registers the hourly cleanup of expired email
// tokens and idle rate limiter entries.
func RegisterHousekeepingJob(database *db.DB, cronExpr string, pruners ...Pruner) error {
	if database == nil {
		return fmt.Errorf("housekeeping job requires database")
	}

	logger := jobLogger(housekeepingJob, cronExpr)
	if _, err := AddJob(housekeepingJob, cronExpr, func() {
		ctx, cancel := jobContext(logger)
		defer cancel()
		RunHousekeeping(ctx, database.Queries, db.Now(), pruners...)
	}); err != nil {
		return fmt.Errorf("add housekeeping job: %w", err)
	}
	return nil
}

// RunBookingLifecycle expires unpaid bookings, cancels no-shows and
// completes sessions whose slot has ended.
func RunBookingLifecycle(ctx context.Context, svc *bookings.Service) {
	logger := log.Ctx(ctx)
	result, err := svc.Sweep(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Booking lifecycle sweep failed")
		return
	}
	if result.Expired+result.NoShows+result.Completed == 0 {
		return
	}
	logger.Info().
		Int("expired", result.Expired).
		Int("no_shows", result.NoShows).
		Int("completed", result.Completed).
		Msg("Booking lifecycle sweep applied transitions")
}

func RunBookingReminders(ctx context.Context, svc *bookings.Service) {
	logger := log.Ctx(ctx)
	sent, err := svc.SendReminders(ctx)
	if err != nil {
		logger.Error().Err(err).Int("sent", sent).Msg("Booking reminders failed")
		return
	}
	if sent > 0 {
		logger.Info().Int("sent", sent).Msg("Booking reminders sent")
	}
}

func RunHousekeeping(ctx context.Context, q *dbgen.Queries, now time.Time, pruners ...Pruner) {
	logger := log.Ctx(ctx)
	removed, err := q.DeleteExpiredUserTokens(ctx, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to delete expired user tokens")
	} else if removed > 0 {
		logger.Info().Int64("removed", removed).Msg("Deleted expired user tokens")
	}

	for _, p := range pruners {
		p.Prune()
	}
}

func jobLogger(name, cronExpr string) zerolog.Logger {
	return log.With().
		Str("component", name+"_job").
		Str("job_name", name).
		Str("cron", cronExpr).
		Logger()
}

func jobContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	return logger.WithContext(ctx), cancel
}
