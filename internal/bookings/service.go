package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/email"
	"github.com/codr1/ChargeEase/internal/models"
)

var (
	ErrNotFound             = errors.New("booking not found")
	ErrStationNotFound      = errors.New("station not found")
	ErrStationUnavailable   = errors.New("station is not accepting bookings")
	ErrConnectorUnavailable = errors.New("station does not offer this connector type")
	ErrNoCapacity           = errors.New("no connector is free for the requested time")
)

const (
	reminderLead   = 60 * time.Minute
	reminderWindow = 15 * time.Minute
)

// Service runs booking operations against the database and fans out
// notifications for every status change.
type Service struct {
	db     *db.DB
	sender email.EmailSender

	// Now is overridable in tests.
	Now func() time.Time
	// OnStationChange is called after a committed write touching a station.
	OnStationChange func(stationID string)
}

func NewService(database *db.DB, sender email.EmailSender) *Service {
	return &Service{
		db:     database,
		sender: sender,
		Now:    db.Now,
	}
}

type CreateParams struct {
	UserID          string
	StationID       string
	ConnectorType   string
	StartTime       time.Time
	DurationMinutes int
}

func (s *Service) Create(ctx context.Context, p CreateParams) (models.Booking, error) {
	now := s.Now()
	if err := ValidateDuration(p.DurationMinutes); err != nil {
		return models.Booking{}, err
	}
	start := p.StartTime.UTC().Truncate(time.Second)
	if err := ValidateStart(start, now); err != nil {
		return models.Booking{}, err
	}
	end := start.Add(time.Duration(p.DurationMinutes) * time.Minute)

	var (
		booking dbgen.Booking
		station models.ChargingStation
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		station, err = LoadStation(ctx, tx.Queries, p.StationID)
		if err != nil {
			return err
		}
		if !station.Operational() {
			return ErrStationUnavailable
		}
		connector, ok := station.Connector(p.ConnectorType)
		if !ok {
			return ErrConnectorUnavailable
		}

		if err := checkCapacity(ctx, tx.Queries, p.StationID, connector, start, end, ""); err != nil {
			return err
		}

		methods, err := tx.Queries.CountPaymentMethods(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("count payment methods: %w", err)
		}
		status := models.BookingPending
		if methods > 0 {
			status = models.BookingConfirmed
		}

		booking, err = tx.Queries.CreateBooking(ctx, dbgen.CreateBookingParams{
			ID:              uuid.NewString(),
			UserID:          p.UserID,
			StationID:       p.StationID,
			ConnectorType:   p.ConnectorType,
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: int64(p.DurationMinutes),
			Status:          status,
			TotalCost:       EstimateCost(station.Pricing, connector.MaxPower, p.DurationMinutes),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		if status == models.BookingConfirmed {
			return addNotification(ctx, tx.Queries, booking, models.NotificationSuccess, "Booking confirmed",
				fmt.Sprintf("Your session at %s is confirmed.", station.Name), now)
		}
		return addNotification(ctx, tx.Queries, booking, models.NotificationWarning, "Booking pending",
			fmt.Sprintf("Add a payment method to confirm your session at %s.", station.Name), now)
	})
	if err != nil {
		return models.Booking{}, err
	}

	details := bookingDetails(booking, station)
	if booking.Status == models.BookingConfirmed {
		s.email(ctx, booking.UserID, email.BuildBookingConfirmedEmail(details))
	} else {
		s.email(ctx, booking.UserID, email.BuildBookingPendingEmail(details))
	}
	s.stationChanged(booking.StationID)

	return withStation(booking, station), nil
}

// Get returns one of the user's bookings with its station embedded.
func (s *Service) Get(ctx context.Context, userID, id string) (models.Booking, error) {
	row, err := s.db.Queries.GetUserBooking(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, ErrNotFound
		}
		return models.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	station, err := LoadStation(ctx, s.db.Queries, row.StationID)
	if err != nil {
		return models.Booking{}, err
	}
	return withStation(row, station), nil
}

// List pages the user's bookings, optionally restricted to statuses.
func (s *Service) List(ctx context.Context, userID string, statuses []string, limit, offset int) ([]models.Booking, int64, error) {
	rows, err := s.db.Queries.ListUserBookings(ctx, dbgen.ListUserBookingsParams{
		UserID:   userID,
		Statuses: statuses,
		Limit:    int64(limit),
		Offset:   int64(offset),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	total, err := s.db.Queries.CountUserBookings(ctx, userID, statuses)
	if err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	stations := make(map[string]models.ChargingStation)
	out := make([]models.Booking, 0, len(rows))
	for _, row := range rows {
		station, ok := stations[row.StationID]
		if !ok {
			station, err = LoadStation(ctx, s.db.Queries, row.StationID)
			if err != nil {
				return nil, 0, err
			}
			stations[row.StationID] = station
		}
		out = append(out, withStation(row, station))
	}
	return out, total, nil
}

func (s *Service) Cancel(ctx context.Context, userID, id string) (models.Booking, error) {
	return s.cancel(ctx, userID, id, "Cancelled by you")
}

func (s *Service) cancel(ctx context.Context, userID, id, reason string) (models.Booking, error) {
	now := s.Now()
	var (
		booking dbgen.Booking
		station models.ChargingStation
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		booking, err = getOwned(ctx, tx.Queries, userID, id)
		if err != nil {
			return err
		}
		if err := Transition(booking.Status, models.BookingCancelled); err != nil {
			return err
		}
		if err := tx.Queries.UpdateBookingStatus(ctx, booking.ID, booking.Status, models.BookingCancelled, now); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		booking.Status = models.BookingCancelled
		booking.UpdatedAt = now

		station, err = LoadStation(ctx, tx.Queries, booking.StationID)
		if err != nil {
			return err
		}
		return addNotification(ctx, tx.Queries, booking, models.NotificationInfo, "Booking cancelled",
			fmt.Sprintf("Your session at %s was cancelled. %s.", station.Name, reason), now)
	})
	if err != nil {
		return models.Booking{}, err
	}

	s.email(ctx, booking.UserID, email.BuildBookingCancelledEmail(bookingDetails(booking, station), reason))
	s.stationChanged(booking.StationID)
	return withStation(booking, station), nil
}

// Extend lengthens a Pending or Confirmed booking, re-checking capacity and price.
func (s *Service) Extend(ctx context.Context, userID, id string, additionalMinutes int) (models.Booking, error) {
	if additionalMinutes <= 0 {
		return models.Booking{}, fmt.Errorf("additionalMinutes must be greater than 0")
	}
	now := s.Now()
	var (
		booking dbgen.Booking
		station models.ChargingStation
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		booking, err = getOwned(ctx, tx.Queries, userID, id)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingPending && booking.Status != models.BookingConfirmed {
			return fmt.Errorf("%w: cannot extend a %s booking", ErrInvalidTransition, booking.Status)
		}
		duration := int(booking.DurationMinutes) + additionalMinutes
		if err := ValidateDuration(duration); err != nil {
			return err
		}

		station, err = LoadStation(ctx, tx.Queries, booking.StationID)
		if err != nil {
			return err
		}
		connector, ok := station.Connector(booking.ConnectorType)
		if !ok {
			return ErrConnectorUnavailable
		}
		end := booking.StartTime.Add(time.Duration(duration) * time.Minute)
		if err := checkCapacity(ctx, tx.Queries, booking.StationID, connector, booking.StartTime, end, booking.ID); err != nil {
			return err
		}

		cost := EstimateCost(station.Pricing, connector.MaxPower, duration)
		if err := tx.Queries.UpdateBookingSchedule(ctx, dbgen.UpdateBookingScheduleParams{
			EndTime:         end,
			DurationMinutes: int64(duration),
			TotalCost:       cost,
			UpdatedAt:       now,
			ID:              booking.ID,
		}); err != nil {
			return fmt.Errorf("extend booking: %w", err)
		}
		booking.EndTime = end
		booking.DurationMinutes = int64(duration)
		booking.TotalCost = cost
		booking.UpdatedAt = now

		return addNotification(ctx, tx.Queries, booking, models.NotificationInfo, "Booking extended",
			fmt.Sprintf("Your session at %s now runs %d minutes.", station.Name, duration), now)
	})
	if err != nil {
		return models.Booking{}, err
	}
	s.stationChanged(booking.StationID)
	return withStation(booking, station), nil
}

// Start begins charging for a Confirmed booking inside its start window.
func (s *Service) Start(ctx context.Context, userID, id string) (models.Booking, error) {
	now := s.Now()
	var (
		booking dbgen.Booking
		station models.ChargingStation
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		booking, err = getOwned(ctx, tx.Queries, userID, id)
		if err != nil {
			return err
		}
		if err := Transition(booking.Status, models.BookingActive); err != nil {
			return err
		}
		if err := CheckStartWindow(booking.StartTime, booking.EndTime, now); err != nil {
			return err
		}
		if err := tx.Queries.StartBooking(ctx, booking.ID, booking.Status, now); err != nil {
			return fmt.Errorf("start booking: %w", err)
		}
		booking.Status = models.BookingActive
		booking.StartedAt = sql.NullTime{Time: now, Valid: true}
		booking.UpdatedAt = now

		station, err = LoadStation(ctx, tx.Queries, booking.StationID)
		if err != nil {
			return err
		}
		return addNotification(ctx, tx.Queries, booking, models.NotificationSuccess, "Charging started",
			fmt.Sprintf("Charging started at %s.", station.Name), now)
	})
	if err != nil {
		return models.Booking{}, err
	}
	s.stationChanged(booking.StationID)
	return withStation(booking, station), nil
}

// Stop ends an Active session now and bills the minutes actually used.
func (s *Service) Stop(ctx context.Context, userID, id string) (models.Booking, error) {
	booking, err := getOwned(ctx, s.db.Queries, userID, id)
	if err != nil {
		return models.Booking{}, err
	}
	return s.complete(ctx, booking, s.Now())
}

func (s *Service) complete(ctx context.Context, booking dbgen.Booking, endedAt time.Time) (models.Booking, error) {
	now := s.Now()
	var (
		station models.ChargingStation
		invoice dbgen.Invoice
		energy  float64
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		if err := Transition(booking.Status, models.BookingCompleted); err != nil {
			return err
		}
		var err error
		station, err = LoadStation(ctx, tx.Queries, booking.StationID)
		if err != nil {
			return err
		}
		var maxPower float64
		if connector, ok := station.Connector(booking.ConnectorType); ok {
			maxPower = connector.MaxPower
		}

		minutes := ElapsedMinutes(chargingStart(booking), endedAt)
		energy = EstimateEnergy(maxPower, minutes)
		cost := EstimateCost(station.Pricing, maxPower, minutes)

		if err := tx.Queries.CompleteBooking(ctx, dbgen.CompleteBookingParams{
			EndTime:         endedAt,
			DurationMinutes: int64(minutes),
			TotalCost:       cost,
			EnergyDelivered: sql.NullFloat64{Float64: energy, Valid: true},
			UpdatedAt:       now,
			ID:              booking.ID,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: booking is no longer active", ErrInvalidTransition)
			}
			return fmt.Errorf("complete booking: %w", err)
		}
		booking.Status = models.BookingCompleted
		booking.EndTime = endedAt
		booking.DurationMinutes = int64(minutes)
		booking.TotalCost = cost
		booking.EnergyDelivered = sql.NullFloat64{Float64: energy, Valid: true}
		booking.UpdatedAt = now

		invoice = dbgen.Invoice{
			ID:        uuid.NewString(),
			UserID:    booking.UserID,
			BookingID: booking.ID,
			Amount:    cost,
			Currency:  station.Pricing.Currency,
			Status:    "paid",
			IssuedAt:  now,
		}
		if err := tx.Queries.CreateInvoice(ctx, invoice); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		return addNotification(ctx, tx.Queries, booking, models.NotificationSuccess, "Charging complete",
			fmt.Sprintf("You charged %.2f kWh at %s for %s.", energy, station.Name, email.FormatPrice(cost, station.Pricing.Currency)), now)
	})
	if err != nil {
		return models.Booking{}, err
	}

	s.email(ctx, booking.UserID, email.BuildChargingCompleteEmail(bookingDetails(booking, station), energy, invoice.ID))
	s.stationChanged(booking.StationID)
	return withStation(booking, station), nil
}

// ConfirmPending confirms the user's Pending bookings once they can pay.
func (s *Service) ConfirmPending(ctx context.Context, userID string) (int, error) {
	pending, err := s.db.Queries.ListPendingBookingsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list pending bookings: %w", err)
	}

	confirmed := 0
	for _, booking := range pending {
		now := s.Now()
		var station models.ChargingStation
		err := s.db.RunInTx(ctx, func(tx *db.DB) error {
			if err := tx.Queries.UpdateBookingStatus(ctx, booking.ID, models.BookingPending, models.BookingConfirmed, now); err != nil {
				return err
			}
			var err error
			station, err = LoadStation(ctx, tx.Queries, booking.StationID)
			if err != nil {
				return err
			}
			booking.Status = models.BookingConfirmed
			return addNotification(ctx, tx.Queries, booking, models.NotificationSuccess, "Booking confirmed",
				fmt.Sprintf("Your session at %s is confirmed.", station.Name), now)
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return confirmed, fmt.Errorf("confirm booking %s: %w", booking.ID, err)
		}
		confirmed++
		s.email(ctx, booking.UserID, email.BuildBookingConfirmedEmail(bookingDetails(booking, station)))
	}
	return confirmed, nil
}

type SweepResult struct {
	Expired   int
	NoShows   int
	Completed int
}

// Sweep applies the time-driven transitions: unpaid Pending bookings expire,
// Confirmed bookings whose slot passed are no-shows and Active sessions
// whose slot ended are completed at their scheduled end.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.Now()
	logger := log.Ctx(ctx)

	pending, err := s.db.Queries.ListPendingBookingsCreatedBefore(ctx, now.Add(-PendingTimeout))
	if err != nil {
		return result, fmt.Errorf("list stale pending bookings: %w", err)
	}
	for _, booking := range pending {
		if _, err := s.cancel(ctx, booking.UserID, booking.ID, "No payment method was added in time"); err != nil {
			logSweepError(logger, booking, err)
			continue
		}
		result.Expired++
	}

	noShows, err := s.db.Queries.ListBookingsEndedBefore(ctx, models.BookingConfirmed, now)
	if err != nil {
		return result, fmt.Errorf("list no-show bookings: %w", err)
	}
	for _, booking := range noShows {
		if _, err := s.cancel(ctx, booking.UserID, booking.ID, "The session was never started"); err != nil {
			logSweepError(logger, booking, err)
			continue
		}
		result.NoShows++
	}

	overrun, err := s.db.Queries.ListBookingsEndedBefore(ctx, models.BookingActive, now)
	if err != nil {
		return result, fmt.Errorf("list finished sessions: %w", err)
	}
	for _, booking := range overrun {
		if _, err := s.complete(ctx, booking, booking.EndTime); err != nil {
			logSweepError(logger, booking, err)
			continue
		}
		result.Completed++
	}

	return result, nil
}

// SendReminders notifies Confirmed bookings starting in the next reminder window.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.Now()
	from := now.Add(reminderLead)
	upcoming, err := s.db.Queries.ListBookingsStartingBetween(ctx, from, from.Add(reminderWindow))
	if err != nil {
		return 0, fmt.Errorf("list upcoming bookings: %w", err)
	}

	sent := 0
	for _, booking := range upcoming {
		station, err := LoadStation(ctx, s.db.Queries, booking.StationID)
		if err != nil {
			return sent, err
		}
		if err := addNotification(ctx, s.db.Queries, booking, models.NotificationInfo, "Upcoming session",
			fmt.Sprintf("Your session at %s starts at %s.", station.Name, booking.StartTime.Format("3:04 PM MST")), now); err != nil {
			return sent, err
		}
		if err := s.db.Queries.MarkBookingReminderSent(ctx, booking.ID); err != nil {
			return sent, fmt.Errorf("mark reminder sent: %w", err)
		}
		s.email(ctx, booking.UserID, email.BuildBookingReminderEmail(bookingDetails(booking, station)))
		sent++
	}
	return sent, nil
}

// LoadStation reads one station snapshot with its connectors.
func LoadStation(ctx context.Context, q *dbgen.Queries, id string) (models.ChargingStation, error) {
	row, err := q.GetStation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ChargingStation{}, ErrStationNotFound
		}
		return models.ChargingStation{}, fmt.Errorf("load station: %w", err)
	}
	connectors, err := q.ListConnectorsForStation(ctx, id)
	if err != nil {
		return models.ChargingStation{}, fmt.Errorf("load connectors: %w", err)
	}
	return models.NewStation(row, connectors)
}

func checkCapacity(ctx context.Context, q *dbgen.Queries, stationID string, connector models.Connector, start, end time.Time, excludeID string) error {
	overlapping, err := q.CountOverlappingBookings(ctx, dbgen.CountOverlappingBookingsParams{
		StationID:     stationID,
		ConnectorType: connector.Type,
		StartTime:     start,
		EndTime:       end,
		ExcludeID:     excludeID,
	})
	if err != nil {
		return fmt.Errorf("count overlapping bookings: %w", err)
	}
	if overlapping >= int64(connector.Count) {
		return ErrNoCapacity
	}
	return nil
}

func getOwned(ctx context.Context, q *dbgen.Queries, userID, id string) (dbgen.Booking, error) {
	booking, err := q.GetUserBooking(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.Booking{}, ErrNotFound
		}
		return dbgen.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	return booking, nil
}

func addNotification(ctx context.Context, q *dbgen.Queries, booking dbgen.Booking, kind, title, message string, now time.Time) error {
	err := q.CreateNotification(ctx, dbgen.Notification{
		ID:        uuid.NewString(),
		UserID:    booking.UserID,
		Type:      kind,
		Title:     title,
		Message:   message,
		ActionUrl: sql.NullString{String: "/bookings/" + booking.ID, Valid: true},
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *Service) email(ctx context.Context, userID string, msg email.Message) {
	email.SendToUser(ctx, s.db.Queries, s.sender, userID, msg, log.Ctx(ctx))
}

func (s *Service) stationChanged(stationID string) {
	if s.OnStationChange != nil {
		s.OnStationChange(stationID)
	}
}

// chargingStart is when the session actually began, falling back to the
// slot start for rows activated before started_at existed.
func chargingStart(booking dbgen.Booking) time.Time {
	if booking.StartedAt.Valid {
		return booking.StartedAt.Time
	}
	return booking.StartTime
}

func withStation(row dbgen.Booking, station models.ChargingStation) models.Booking {
	booking := models.NewBooking(row)
	booking.Station = &station
	return booking
}

func bookingDetails(booking dbgen.Booking, station models.ChargingStation) email.BookingDetails {
	return email.BookingDetails{
		StationName:   station.Name,
		Address:       station.Address,
		ConnectorType: booking.ConnectorType,
		Start:         booking.StartTime,
		End:           booking.EndTime,
		TotalCost:     booking.TotalCost,
		Currency:      station.Pricing.Currency,
	}
}

func logSweepError(logger *zerolog.Logger, booking dbgen.Booking, err error) {
	logger.Error().Err(err).Str("booking_id", booking.ID).Str("status", booking.Status).Msg("Failed to apply booking transition")
}
