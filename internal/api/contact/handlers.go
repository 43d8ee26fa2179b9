// internal/api/contact/handlers.go
package contact

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/email"
	"github.com/codr1/ChargeEase/internal/ratelimit"
)

const (
	contactPerMinute = 5
	contactBurst     = 3
)

var (
	queries        *dbgen.Queries
	emailSender    email.EmailSender
	supportAddress string
	trustProxy     bool
	limiter        *ratelimit.IPLimiter
)

func InitHandlers(q *dbgen.Queries, cfg *config.Config, sender email.EmailSender) {
	queries = q
	emailSender = sender
	supportAddress = cfg.Email.SupportAddress
	if supportAddress == "" {
		supportAddress = cfg.Email.Sender
	}
	trustProxy = cfg.App.TrustProxy
	limiter = ratelimit.NewIPLimiter(contactPerMinute, contactBurst, nil)
}

// Limiter exposes the contact form's per-IP limiter for periodic pruning.
func Limiter() *ratelimit.IPLimiter {
	return limiter
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=50"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

// POST /contact
func HandleSubmit(w http.ResponseWriter, r *http.Request) error {
	if limiter != nil {
		ip := ratelimit.GetClientIP(r, trustProxy)
		if ok, wait := limiter.Allow(ip); !ok {
			ratelimit.LogRateLimitExceeded("contact", "", ip, "ip_rate")
			seconds := int(wait.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			return apiutil.HandlerError{Status: http.StatusTooManyRequests, Message: "too many messages, please try again later"}
		}
	}

	var req contactRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	msg := dbgen.ContactMessage{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Subject:   strings.TrimSpace(req.Subject),
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: db.Now(),
	}
	if err := queries.CreateContactMessage(r.Context(), msg); err != nil {
		return fmt.Errorf("store contact message: %w", err)
	}

	logger := log.Ctx(r.Context())
	logger.Info().Str("contact_id", msg.ID).Msg("Contact message received")
	email.SendAsync(r.Context(), emailSender, supportAddress,
		email.BuildContactEmail(msg.Name, msg.Email, msg.Subject, msg.Message), logger)

	return apiutil.SuccessMessage(w, http.StatusCreated, map[string]string{"id": msg.ID},
		"Thanks for reaching out. We will get back to you soon")
}
