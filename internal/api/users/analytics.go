package users

import (
	"math"
	"time"

	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
)

const (
	// Grid-average emissions avoided per kWh charged.
	carbonKgPerKWh = 0.4
	usageMonths    = 12
)

// Summarize totals completed bookings. Monthly usage covers the twelve
// calendar months ending with now's month, oldest first.
func Summarize(completed []dbgen.Booking, now time.Time) models.UserAnalytics {
	now = now.UTC()
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(usageMonths - 1), 0)

	monthly := make([]models.MonthlyUsage, usageMonths)
	index := make(map[string]int, usageMonths)
	for i := range monthly {
		key := firstMonth.AddDate(0, i, 0).Format("2006-01")
		monthly[i].Month = key
		index[key] = i
	}

	var analytics models.UserAnalytics
	for _, booking := range completed {
		energy := booking.EnergyDelivered.Float64
		analytics.TotalSessions++
		analytics.TotalEnergyConsumed += energy
		analytics.TotalCost += booking.TotalCost

		if i, ok := index[booking.StartTime.UTC().Format("2006-01")]; ok {
			monthly[i].Sessions++
			monthly[i].EnergyConsumed += energy
			monthly[i].Cost += booking.TotalCost
		}
	}

	for i := range monthly {
		monthly[i].EnergyConsumed = round2(monthly[i].EnergyConsumed)
		monthly[i].Cost = round2(monthly[i].Cost)
	}
	analytics.CarbonFootprintSaved = round2(analytics.TotalEnergyConsumed * carbonKgPerKWh)
	analytics.TotalEnergyConsumed = round2(analytics.TotalEnergyConsumed)
	analytics.TotalCost = round2(analytics.TotalCost)
	analytics.MonthlyUsage = monthly
	analytics.FavoriteStations = []models.ChargingStation{}
	return analytics
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
