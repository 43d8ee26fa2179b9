package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

type BookingDetails struct {
	StationName   string
	Address       string
	ConnectorType string
	Start         time.Time
	End           time.Time
	TotalCost     float64
	Currency      string
}

func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s %s", start.Format("3:04 PM"), end.Format("3:04 PM"), start.Format("MST"))
	return date, timeRange
}

func FormatPrice(amount float64, currency string) string {
	if currency == "" || currency == "USD" {
		return fmt.Sprintf("$%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func BuildBookingConfirmedEmail(details BookingDetails) Message {
	return buildBookingEmail("Booking Confirmed", "Your charging session is confirmed.", details, nil)
}

func BuildBookingPendingEmail(details BookingDetails) Message {
	return buildBookingEmail("Booking Received", "Your charging session is reserved. Add a payment method within 15 minutes to confirm it.", details, nil)
}

func BuildBookingCancelledEmail(details BookingDetails, reason string) Message {
	var extra []string
	if reason = strings.TrimSpace(reason); reason != "" {
		extra = append(extra, fmt.Sprintf("Reason: %s", reason))
	}
	return buildBookingEmail("Booking Cancelled", "Your charging session has been cancelled.", details, extra)
}

func BuildBookingReminderEmail(details BookingDetails) Message {
	return buildBookingEmail("Upcoming Charging Session", "Reminder: your charging session starts in about an hour.", details, nil)
}

func BuildChargingCompleteEmail(details BookingDetails, energyKWh float64, invoiceID string) Message {
	extra := []string{fmt.Sprintf("Energy delivered: %.2f kWh", energyKWh)}
	if invoiceID != "" {
		extra = append(extra, fmt.Sprintf("Invoice: %s", invoiceID))
	}
	return buildBookingEmail("Charging Complete", "Your charging session has finished.", details, extra)
}

func BuildPasswordResetEmail(name, link string) Message {
	lines := []string{
		fmt.Sprintf("Hi %s,", fallback(name, "there")),
		"",
		"We received a request to reset your ChargeEase password.",
		fmt.Sprintf("Reset it here within the next hour: %s", link),
		"",
		"If you did not ask for this, you can ignore this email.",
	}
	return Message{Subject: "Reset your ChargeEase password", Body: strings.Join(lines, "\n")}
}

func BuildVerifyEmail(name, link string) Message {
	lines := []string{
		fmt.Sprintf("Welcome to ChargeEase, %s!", fallback(name, "driver")),
		"",
		fmt.Sprintf("Confirm your email address: %s", link),
	}
	return Message{Subject: "Verify your ChargeEase email", Body: strings.Join(lines, "\n")}
}

func BuildContactEmail(name, from, subject, message string) Message {
	lines := []string{
		fmt.Sprintf("From: %s <%s>", name, from),
		"",
		message,
	}
	return Message{Subject: fmt.Sprintf("[Contact] %s", subject), Body: strings.Join(lines, "\n")}
}

func buildBookingEmail(subjectPrefix, intro string, details BookingDetails, extra []string) Message {
	stationName := fallback(details.StationName, "your station")
	date, timeRange := "TBD", "TBD"
	if !details.Start.IsZero() && !details.End.IsZero() {
		date, timeRange = FormatDateTimeRange(details.Start, details.End)
	}

	lines := []string{
		intro,
		"",
		fmt.Sprintf("Station: %s", stationName),
		fmt.Sprintf("Address: %s", fallback(details.Address, "TBD")),
		fmt.Sprintf("Connector: %s", fallback(details.ConnectorType, "TBD")),
		fmt.Sprintf("Date: %s", date),
		fmt.Sprintf("Time: %s", timeRange),
		fmt.Sprintf("Total: %s", FormatPrice(details.TotalCost, details.Currency)),
	}
	lines = append(lines, extra...)

	return Message{
		Subject: fmt.Sprintf("%s - %s", subjectPrefix, stationName),
		Body:    strings.Join(lines, "\n"),
	}
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
