// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api"
	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/auth"
	bookingapi "github.com/codr1/ChargeEase/internal/api/bookings"
	"github.com/codr1/ChargeEase/internal/api/contact"
	"github.com/codr1/ChargeEase/internal/api/health"
	"github.com/codr1/ChargeEase/internal/api/notifications"
	"github.com/codr1/ChargeEase/internal/api/payments"
	"github.com/codr1/ChargeEase/internal/api/reviews"
	"github.com/codr1/ChargeEase/internal/api/stations"
	"github.com/codr1/ChargeEase/internal/api/users"
	"github.com/codr1/ChargeEase/internal/bookings"
	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	"github.com/codr1/ChargeEase/internal/email"
	"github.com/codr1/ChargeEase/internal/realtime"
	"github.com/codr1/ChargeEase/internal/telemetry"
)

const stationChangeTimeout = 5 * time.Second

type app struct {
	server   *http.Server
	bookings *bookings.Service
	hub      *realtime.Hub
	listener *telemetry.Listener
}

func newApp(cfg *config.Config, database *db.DB) (*app, error) {
	var sender email.EmailSender
	if cfg.Email.Enabled() {
		client, err := email.NewFromConfig(cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("email client: %w", err)
		}
		sender = client
	} else {
		log.Warn().Msg("SES credentials not configured; emails will not be sent")
	}

	stationCache := cache.NewStations(database.Queries)
	hub := realtime.NewHub(originChecker(cfg.CORSOrigins()))

	bookingService := bookings.NewService(database, sender)
	bookingService.OnStationChange = func(stationID string) {
		ctx, cancel := context.WithTimeout(context.Background(), stationChangeTimeout)
		defer cancel()
		hub.Refresh(ctx, stationCache, stationID)
	}

	auth.InitHandlers(database.Queries, cfg, sender)
	users.InitHandlers(database, stationCache, cfg)
	stations.InitHandlers(database.Queries, stationCache, hub)
	bookingapi.InitHandlers(bookingService)
	reviews.InitHandlers(database, stationCache, cfg)
	payments.InitHandlers(database, bookingService)
	notifications.InitHandlers(database.Queries)
	contact.InitHandlers(database.Queries, cfg, sender)

	a := &app{
		bookings: bookingService,
		hub:      hub,
	}

	if cfg.MQTT.Enabled() {
		a.listener = telemetry.NewListener(cfg.MQTT, telemetry.NewApplier(database, stationCache, hub))
		if err := a.listener.Start(); err != nil {
			hub.Close()
			return nil, fmt.Errorf("telemetry listener: %w", err)
		}
	}

	a.server = newServer(cfg)
	return a, nil
}

// Close releases everything newApp started, except the database.
func (a *app) Close() {
	if a.listener != nil {
		a.listener.Stop()
	}
	a.hub.Close()
	auth.Close()
}

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithBodyLimit,
		api.WithCORS(cfg.CORSOrigins()),
		api.WithRecovery,
		api.WithLogging,
		api.WithRequestID,
	)

	registerRoutes(router, cfg.App.APIPrefix, cfg.App.UploadsDir)

	// WriteTimeout stays zero so live websocket streams are not cut off.
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, prefix, uploadsDir string) {
	handle := func(pattern string, fn apiutil.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+prefix+path, apiutil.Handle(fn))
	}

	// Health
	mux.HandleFunc("GET /{$}", health.HandleRoot)
	mux.HandleFunc("GET "+prefix, apiutil.Handle(health.HandleAPI))
	handle("GET /{$}", health.HandleAPI)

	// Auth
	handle("POST /auth/signup", auth.HandleSignup)
	handle("POST /auth/login", auth.HandleLogin)
	handle("POST /auth/logout", auth.HandleLogout)
	handle("POST /auth/refresh", auth.HandleRefresh)
	handle("POST /auth/forgot-password", auth.HandleForgotPassword)
	handle("POST /auth/reset-password", auth.HandleResetPassword)
	handle("POST /auth/verify-email", auth.HandleVerifyEmail)

	// Users
	handle("GET /users/profile", users.HandleGetProfile)
	handle("PUT /users/profile", users.HandleUpdateProfile)
	handle("DELETE /users/profile", users.HandleDeleteProfile)
	handle("POST /users/avatar", users.HandleUploadAvatar)
	handle("GET /users/analytics", users.HandleAnalytics)
	handle("GET /users/favorites", users.HandleFavorites)
	handle("GET /users/reviews", users.HandleReviews)
	handle("PUT /users/membership", users.HandleUpdateMembership)
	handle("GET /membership/plans", users.HandlePlans)

	// Stations
	handle("GET /stations", stations.HandleSearch)
	handle("GET /stations/nearby", stations.HandleNearby)
	handle("GET /stations/popular", stations.HandlePopular)
	handle("GET /stations/top-rated", stations.HandleTopRated)
	handle("GET /stations/{id}", stations.HandleGet)
	handle("GET /stations/{id}/reviews", stations.HandleReviews)
	handle("POST /stations/{id}/favorite", stations.HandleAddFavorite)
	handle("DELETE /stations/{id}/favorite", stations.HandleRemoveFavorite)
	handle("POST /stations/{id}/report", stations.HandleReport)
	handle("GET /stations/{id}/live", stations.HandleLive)

	// Bookings
	handle("POST /bookings", bookingapi.HandleCreate)
	handle("GET /bookings", bookingapi.HandleList)
	handle("GET /bookings/history", bookingapi.HandleHistory)
	handle("GET /bookings/{id}", bookingapi.HandleGet)
	handle("PUT /bookings/{id}/cancel", bookingapi.HandleCancel)
	handle("PUT /bookings/{id}/extend", bookingapi.HandleExtend)
	handle("PUT /bookings/{id}/start", bookingapi.HandleStart)
	handle("PUT /bookings/{id}/stop", bookingapi.HandleStop)

	// Reviews
	handle("POST /reviews", reviews.HandleCreate)
	handle("PUT /reviews/{id}", reviews.HandleUpdate)
	handle("DELETE /reviews/{id}", reviews.HandleDelete)
	handle("POST /reviews/{id}/helpful", reviews.HandleHelpful)

	// Payments
	handle("GET /payments/methods", payments.HandleListMethods)
	handle("POST /payments/methods", payments.HandleAddMethod)
	handle("DELETE /payments/methods/{id}", payments.HandleDeleteMethod)
	handle("PUT /payments/methods/{id}/default", payments.HandleSetDefault)
	handle("POST /payments/intent", payments.HandleCreateIntent)
	handle("GET /payments/invoices", payments.HandleInvoices)

	// Notifications
	handle("GET /notifications", notifications.HandleList)
	handle("PUT /notifications/read-all", notifications.HandleMarkAllRead)
	handle("PUT /notifications/settings", notifications.HandleSettings)
	handle("PUT /notifications/{id}/read", notifications.HandleMarkRead)
	handle("DELETE /notifications/{id}", notifications.HandleDelete)

	// Contact
	handle("POST /contact", contact.HandleSubmit)

	// Uploaded avatars and review images
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		log.Warn().Err(err).Str("uploads_dir", uploadsDir).Msg("Could not create uploads directory")
	}
	mux.Handle("GET "+apiutil.UploadsURLPrefix+"/", http.StripPrefix(apiutil.UploadsURLPrefix+"/", http.FileServer(http.Dir(uploadsDir))))
}

// originChecker mirrors the CORS origin list for websocket upgrades.
func originChecker(origins []string) func(r *http.Request) bool {
	if slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
