package dbgen

import (
	"database/sql"
	"time"
)

type User struct {
	ID              string
	Email           string
	Name            string
	Phone           sql.NullString
	Avatar          sql.NullString
	PasswordHash    string
	EmailVerified   bool
	MembershipLevel string
	Preferences     string
	Vehicles        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Station struct {
	ID                   string
	Name                 string
	Address              string
	Latitude             float64
	Longitude            float64
	Rating               float64
	ReviewCount          int64
	Amenities            string
	Images               string
	ChargingSpeed        string
	PricePerKwh          sql.NullFloat64
	PricePerMinute       sql.NullFloat64
	SessionFee           sql.NullFloat64
	Currency             string
	OperatorStatus       string
	EstimatedWaitMinutes sql.NullInt64
	Open24Hours          bool
	Schedule             string
	HostType             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type StationConnector struct {
	StationID      string
	ConnectorType  string
	MaxPower       float64
	TotalCount     int64
	AvailableCount int64
}

type Booking struct {
	ID              string
	UserID          string
	StationID       string
	ConnectorType   string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int64
	Status          string
	TotalCost       float64
	EnergyDelivered sql.NullFloat64
	ReminderSent    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
}

type Review struct {
	ID        string
	UserID    string
	StationID string
	Rating    int64
	Title     string
	Comment   string
	Images    string
	Helpful   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StationReport struct {
	ID          string
	StationID   string
	UserID      string
	Reason      string
	Description sql.NullString
	CreatedAt   time.Time
}

type PaymentMethod struct {
	ID        string
	UserID    string
	Type      string
	Last4     sql.NullString
	Brand     sql.NullString
	IsDefault bool
	CreatedAt time.Time
}

type PaymentIntent struct {
	ID           string
	UserID       string
	Amount       float64
	Currency     string
	ClientSecret string
	Status       string
	CreatedAt    time.Time
}

type Invoice struct {
	ID        string
	UserID    string
	BookingID string
	Amount    float64
	Currency  string
	Status    string
	IssuedAt  time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	ActionUrl sql.NullString
	Read      bool
	CreatedAt time.Time
}

type UserToken struct {
	TokenHash string
	UserID    string
	Purpose   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}
