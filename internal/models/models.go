// internal/models/models.go
package models

import "time"

const (
	StatusAvailable    = "Available"
	StatusBusy         = "Busy"
	StatusOutOfService = "Out of Service"
	StatusComingSoon   = "Coming Soon"
)

var (
	ConnectorTypes = []string{"J1772", "CCS", "CHAdeMO", "Tesla", "Type 2"}
	ChargingSpeeds = []string{"Level 1", "Level 2", "DC Fast", "Supercharger"}
	HostTypes      = []string{"Tesla", "ChargePoint", "EVgo", "Electrify America", "Shell Recharge", "BP Pulse", "Other"}
)

const (
	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingActive    = "Active"
	BookingCompleted = "Completed"
	BookingCancelled = "Cancelled"
)

const (
	MembershipFree    = "Free"
	MembershipPremium = "Premium"
	MembershipElite   = "Elite"
)

const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

type User struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone,omitempty"`
	Avatar          string          `json:"avatar,omitempty"`
	EmailVerified   bool            `json:"emailVerified"`
	Vehicles        []Vehicle       `json:"vehicles"`
	Preferences     UserPreferences `json:"preferences"`
	MembershipLevel string          `json:"membershipLevel"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Vehicle struct {
	ID              string   `json:"id"`
	Make            string   `json:"make" validate:"required,max=50"`
	Model           string   `json:"model" validate:"required,max=50"`
	Year            int      `json:"year" validate:"gte=1990,lte=2100"`
	BatteryCapacity float64  `json:"batteryCapacity" validate:"gte=0"`
	ConnectorTypes  []string `json:"connectorTypes" validate:"dive,oneof=J1772 CCS CHAdeMO Tesla 'Type 2'"`
	EstimatedRange  float64  `json:"estimatedRange" validate:"gte=0"`
	IsDefault       bool     `json:"isDefault"`
}

type UserPreferences struct {
	Units         string                  `json:"units" validate:"omitempty,oneof=metric imperial"`
	Language      string                  `json:"language" validate:"omitempty,max=10"`
	Notifications NotificationPreferences `json:"notifications"`
}

type NotificationPreferences struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

// DefaultPreferences is what a new account starts with.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Units:    "imperial",
		Language: "en",
		Notifications: NotificationPreferences{
			Email: true,
			Push:  true,
		},
	}
}

type Connector struct {
	Type      string  `json:"type"`
	MaxPower  float64 `json:"maxPower"`
	Available int     `json:"available"`
	Count     int     `json:"count"`
}

type Pricing struct {
	PerKwh     *float64 `json:"perKwh,omitempty"`
	PerMinute  *float64 `json:"perMinute,omitempty"`
	SessionFee *float64 `json:"sessionFee,omitempty"`
	Currency   string   `json:"currency"`
}

type Availability struct {
	Status              string `json:"status"`
	AvailableConnectors int    `json:"availableConnectors"`
	TotalConnectors     int    `json:"totalConnectors"`
	EstimatedWaitTime   *int   `json:"estimatedWaitTime,omitempty"`
}

type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

type OperatingHours struct {
	IsOpen24Hours bool                `json:"isOpen24Hours"`
	Schedule      map[string]DayHours `json:"schedule,omitempty"`
}

type ChargingStation struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Rating         float64        `json:"rating"`
	ReviewCount    int            `json:"reviewCount"`
	Distance       *float64       `json:"distance,omitempty"`
	Amenities      []string       `json:"amenities"`
	ConnectorTypes []Connector    `json:"connectorTypes"`
	ChargingSpeed  string         `json:"chargingSpeed"`
	Pricing        Pricing        `json:"pricing"`
	Availability   Availability   `json:"availability"`
	Images         []string       `json:"images"`
	OperatingHours OperatingHours `json:"operatingHours"`
	HostType       string         `json:"hostType"`
}

// Connector returns the station's connector of the given type.
func (s ChargingStation) Connector(connectorType string) (Connector, bool) {
	for _, c := range s.ConnectorTypes {
		if c.Type == connectorType {
			return c, true
		}
	}
	return Connector{}, false
}

// Operational reports whether the station accepts bookings at all.
func (s ChargingStation) Operational() bool {
	return s.Availability.Status != StatusOutOfService && s.Availability.Status != StatusComingSoon
}

type Booking struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	StationID       string           `json:"stationId"`
	Station         *ChargingStation `json:"station,omitempty"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         time.Time        `json:"endTime"`
	Duration        int              `json:"duration"`
	ConnectorType   string           `json:"connectorType"`
	Status          string           `json:"status"`
	TotalCost       float64          `json:"totalCost"`
	EnergyDelivered *float64         `json:"energyDelivered,omitempty"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type Review struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar,omitempty"`
	StationID  string    `json:"stationId"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title"`
	Comment    string    `json:"comment"`
	Images     []string  `json:"images"`
	Helpful    int       `json:"helpful"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type PaymentMethod struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Last4     string `json:"last4,omitempty"`
	Brand     string `json:"brand,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

type PaymentIntent struct {
	ID           string  `json:"id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ClientSecret string  `json:"clientSecret"`
	Status       string  `json:"status"`
}

type Invoice struct {
	ID        string    `json:"id"`
	BookingID string    `json:"bookingId"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	IssuedAt  time.Time `json:"issuedAt"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	ActionURL string    `json:"actionUrl,omitempty"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type SubscriptionPlan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Features []string `json:"features"`
}

var SubscriptionPlans = []SubscriptionPlan{
	{
		ID:    "free",
		Name:  MembershipFree,
		Price: 0,
		Features: []string{
			"Basic station search",
			"Up to 5 bookings per month",
			"Community reviews",
			"Mobile app access",
		},
	},
	{
		ID:    "premium",
		Name:  MembershipPremium,
		Price: 9.99,
		Features: []string{
			"Unlimited bookings",
			"Advanced filtering",
			"Priority customer support",
			"Exclusive partner discounts",
			"Real-time availability",
			"Route planning",
		},
	},
	{
		ID:    "elite",
		Name:  MembershipElite,
		Price: 19.99,
		Features: []string{
			"All Premium features",
			"Concierge booking service",
			"VIP charging locations",
			"Carbon footprint tracking",
			"Personal charging advisor",
			"Early access to new features",
		},
	},
}

type MonthlyUsage struct {
	Month          string  `json:"month"`
	Sessions       int     `json:"sessions"`
	EnergyConsumed float64 `json:"energyConsumed"`
	Cost           float64 `json:"cost"`
}

type UserAnalytics struct {
	TotalSessions        int               `json:"totalSessions"`
	TotalEnergyConsumed  float64           `json:"totalEnergyConsumed"`
	TotalCost            float64           `json:"totalCost"`
	CarbonFootprintSaved float64           `json:"carbonFootprintSaved"`
	FavoriteStations     []ChargingStation `json:"favoriteStations"`
	MonthlyUsage         []MonthlyUsage    `json:"monthlyUsage"`
}
