package email

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
)

const sendTimeout = 5 * time.Second

// SendAsync delivers msg in the background. The send outlives the caller's
// context but is bounded by its own timeout.
func SendAsync(ctx context.Context, client EmailSender, recipient string, msg Message, logger *zerolog.Logger) {
	if isNilSender(client) {
		return
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || msg.Subject == "" || msg.Body == "" {
		return
	}

	go func() {
		sendCtx, cancel := newEmailContext(ctx, sendTimeout)
		defer cancel()
		if err := client.Send(sendCtx, recipient, msg.Subject, msg.Body); err != nil {
			if logger != nil {
				logger.Error().Err(err).Str("recipient", recipient).Str("subject", msg.Subject).Msg("Failed to send email")
			}
			return
		}
		if logger != nil {
			logger.Debug().Str("recipient", recipient).Str("subject", msg.Subject).Msg("Email sent")
		}
	}()
}

// SendToUser looks up the user's address and sends msg asynchronously.
// Users who turned email notifications off are skipped.
func SendToUser(ctx context.Context, q *dbgen.Queries, client EmailSender, userID string, msg Message, logger *zerolog.Logger) {
	if isNilSender(client) || q == nil {
		return
	}

	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		if logger != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for email")
		}
		return
	}
	if !wantsEmail(user.Preferences) {
		return
	}

	SendAsync(ctx, client, user.Email, msg, logger)
}

func wantsEmail(preferences string) bool {
	var prefs struct {
		Notifications struct {
			Email *bool `json:"email"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal([]byte(preferences), &prefs); err != nil {
		return true
	}
	return prefs.Notifications.Email == nil || *prefs.Notifications.Email
}

func isNilSender(client EmailSender) bool {
	if client == nil {
		return true
	}
	if ses, ok := client.(*SESClient); ok && ses == nil {
		return true
	}
	return false
}
