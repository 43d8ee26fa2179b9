// internal/api/notifications/handlers.go
package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/request"
)

var queries *dbgen.Queries

const (
	notificationsQueryTimeout = 5 * time.Second
	notificationsPageSize     = 20
	notificationsMaxPageSize  = 100
	notificationNotFound      = "Notification not found"
)

func InitHandlers(q *dbgen.Queries) {
	queries = q
}

type settingsRequest struct {
	Email *bool `json:"email"`
	Push  *bool `json:"push"`
	SMS   *bool `json:"sms"`
}

type notificationList struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
}

// GET /notifications
func HandleList(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	page, err := request.ParsePagination(r.URL.Query(), notificationsPageSize, notificationsMaxPageSize)
	if err != nil {
		return apiutil.BadRequest(err.Error())
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	rows, err := queries.ListNotifications(ctx, user.ID, int64(page.Limit), int64(page.Offset()))
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	total, err := queries.CountNotifications(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("count notifications: %w", err)
	}

	list := notificationList{Notifications: make([]models.Notification, 0, len(rows)), Total: total}
	for _, row := range rows {
		list.Notifications = append(list.Notifications, models.NewNotification(row))
	}
	return apiutil.Paginated(w, list, page, total)
}

// PUT /notifications/{id}/read
func HandleMarkRead(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	id := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	if err := queries.MarkNotificationRead(ctx, id, user.ID); err != nil {
		return lookupError(err, "mark notification read")
	}
	row, err := queries.GetNotification(ctx, id, user.ID)
	if err != nil {
		return lookupError(err, "load notification")
	}
	return apiutil.Success(w, http.StatusOK, models.NewNotification(row))
}

// PUT /notifications/read-all
func HandleMarkAllRead(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	updated, err := queries.MarkAllNotificationsRead(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return apiutil.SuccessMessage(w, http.StatusOK, map[string]int64{"updated": updated}, "All notifications marked as read")
}

// DELETE /notifications/{id}
func HandleDelete(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	if err := queries.DeleteNotification(ctx, r.PathValue("id"), user.ID); err != nil {
		return lookupError(err, "delete notification")
	}
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Notification deleted")
}

// PUT /notifications/settings
func HandleSettings(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req settingsRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	row, err := queries.GetUserByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiutil.NotFound("User not found")
		}
		return fmt.Errorf("load user: %w", err)
	}
	current, err := models.NewUser(row)
	if err != nil {
		return err
	}

	prefs := current.Preferences
	if req.Email != nil {
		prefs.Notifications.Email = *req.Email
	}
	if req.Push != nil {
		prefs.Notifications.Push = *req.Push
	}
	if req.SMS != nil {
		prefs.Notifications.SMS = *req.SMS
	}

	encoded, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := queries.UpdateUserPreferences(ctx, string(encoded), db.Now(), user.ID); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}

	log.Ctx(r.Context()).Info().
		Bool("email", prefs.Notifications.Email).
		Bool("push", prefs.Notifications.Push).
		Bool("sms", prefs.Notifications.SMS).
		Msg("Notification settings updated")
	return apiutil.SuccessMessage(w, http.StatusOK, prefs.Notifications, "Notification settings updated")
}

func lookupError(err error, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.NotFound(notificationNotFound)
	}
	return fmt.Errorf("%s: %w", action, err)
}
