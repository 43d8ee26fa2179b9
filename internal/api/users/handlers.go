// internal/api/users/handlers.go
package users

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/auth"
	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/request"
)

const (
	maxAvatarBytes = 5 << 20
	avatarField    = "avatar"
	avatarSubdir   = "avatars"

	defaultPageSize = 10
	maxPageSize     = 50
)

var (
	database     *db.DB
	queries      *dbgen.Queries
	stationCache *cache.Stations
	uploadsDir   string
)

func InitHandlers(d *db.DB, stations *cache.Stations, cfg *config.Config) {
	database = d
	queries = d.Queries
	stationCache = stations
	uploadsDir = cfg.App.UploadsDir
}

type updateProfileRequest struct {
	Name        *string                 `json:"name" validate:"omitempty,min=2,max=50"`
	Phone       *string                 `json:"phone"`
	Avatar      *string                 `json:"avatar" validate:"omitempty,max=500"`
	Preferences *models.UserPreferences `json:"preferences"`
	Vehicles    *[]models.Vehicle       `json:"vehicles" validate:"omitempty,max=10,dive"`
}

type membershipRequest struct {
	Level string `json:"level" validate:"required,oneof=Free Premium Elite"`
}

// GET /users/profile
func HandleGetProfile(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	profile, err := loadProfile(r, user.ID)
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, profile)
}

// PUT /users/profile updates only the fields present in the body.
func HandleUpdateProfile(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	row, err := queries.GetUserByID(r.Context(), user.ID)
	if err != nil {
		return userLookupError(err)
	}
	current, err := models.NewUser(row)
	if err != nil {
		return err
	}

	params := dbgen.UpdateUserProfileParams{
		ID:        row.ID,
		Name:      row.Name,
		Phone:     row.Phone,
		Avatar:    row.Avatar,
		UpdatedAt: db.Now(),
	}
	if req.Name != nil {
		params.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		phone, err := auth.NormalizePhone(*req.Phone)
		if err != nil {
			return apiutil.BadRequest(err.Error())
		}
		params.Phone = sql.NullString{String: phone, Valid: phone != ""}
	}
	if req.Avatar != nil {
		avatar := strings.TrimSpace(*req.Avatar)
		params.Avatar = sql.NullString{String: avatar, Valid: avatar != ""}
	}

	prefs := current.Preferences
	if req.Preferences != nil {
		prefs = *req.Preferences
	}
	vehicles := current.Vehicles
	if req.Vehicles != nil {
		vehicles = normalizeVehicles(*req.Vehicles)
	}
	if params.Preferences, err = marshalJSON(prefs); err != nil {
		return err
	}
	if params.Vehicles, err = marshalJSON(vehicles); err != nil {
		return err
	}

	updated, err := queries.UpdateUserProfile(r.Context(), params)
	if err != nil {
		return userLookupError(err)
	}
	profile, err := models.NewUser(updated)
	if err != nil {
		return err
	}
	return apiutil.SuccessMessage(w, http.StatusOK, profile, "Profile updated")
}

// DELETE /users/profile removes the account and everything it owns.
func HandleDeleteProfile(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var touched []string
	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		reviews, err := tx.Queries.ListUserReviews(r.Context(), user.ID, -1, 0)
		if err != nil {
			return fmt.Errorf("list reviews: %w", err)
		}
		deleted, err := tx.Queries.DeleteUser(r.Context(), user.ID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if deleted == 0 {
			return apiutil.NotFound("User not found")
		}
		now := db.Now()
		for _, review := range reviews {
			if err := tx.Queries.RecomputeStationRating(r.Context(), now, review.StationID); err != nil {
				return fmt.Errorf("recompute rating: %w", err)
			}
			touched = append(touched, review.StationID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	auth.EndUserSessions(user.ID)
	for _, stationID := range touched {
		stationCache.Invalidate(stationID)
	}
	log.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("Account deleted")
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Account deleted")
}

// POST /users/avatar
func HandleUploadAvatar(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	if err := r.ParseMultipartForm(apiutil.MaxMultipartBody); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return apiutil.BadRequest("avatar must be sent as multipart/form-data")
	}
	files := r.MultipartForm.File[avatarField]
	if len(files) == 0 {
		return apiutil.BadRequest("avatar is required")
	}

	url, err := apiutil.SaveImage(files[0], uploadsDir, avatarSubdir, maxAvatarBytes)
	if err != nil {
		return err
	}
	if err := queries.UpdateUserAvatar(r.Context(), url, db.Now(), user.ID); err != nil {
		return userLookupError(err)
	}
	return apiutil.Success(w, http.StatusOK, map[string]string{"url": url})
}

// GET /users/analytics
func HandleAnalytics(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	completed, err := queries.ListUserBookings(r.Context(), dbgen.ListUserBookingsParams{
		UserID:   user.ID,
		Statuses: []string{models.BookingCompleted},
		Limit:    -1,
	})
	if err != nil {
		return fmt.Errorf("list completed bookings: %w", err)
	}

	favorites, err := favoriteStations(r, user.ID)
	if err != nil {
		return err
	}

	analytics := Summarize(completed, db.Now())
	analytics.FavoriteStations = favorites
	return apiutil.Success(w, http.StatusOK, analytics)
}

// GET /users/favorites
func HandleFavorites(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	favorites, err := favoriteStations(r, user.ID)
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, favorites)
}

// GET /users/reviews
func HandleReviews(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	page, err := request.ParsePagination(r.URL.Query(), defaultPageSize, maxPageSize)
	if err != nil {
		return apiutil.BadRequest(err.Error())
	}

	rows, err := queries.ListUserReviews(r.Context(), user.ID, int64(page.Limit), int64(page.Offset()))
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	total, err := queries.CountUserReviews(r.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("count reviews: %w", err)
	}

	reviews := make([]models.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, models.NewReview(row))
	}
	return apiutil.Paginated(w, map[string]any{"reviews": reviews, "total": total}, page, total)
}

// PUT /users/membership
func HandleUpdateMembership(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req membershipRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	row, err := queries.UpdateUserMembership(r.Context(), req.Level, db.Now(), user.ID)
	if err != nil {
		return userLookupError(err)
	}
	profile, err := models.NewUser(row)
	if err != nil {
		return err
	}

	log.Ctx(r.Context()).Info().Str("user_id", user.ID).Str("level", req.Level).Msg("Membership changed")
	return apiutil.SuccessMessage(w, http.StatusOK, profile, "Membership updated")
}

// GET /membership/plans
func HandlePlans(w http.ResponseWriter, r *http.Request) error {
	return apiutil.Success(w, http.StatusOK, models.SubscriptionPlans)
}

func loadProfile(r *http.Request, userID string) (models.User, error) {
	row, err := queries.GetUserByID(r.Context(), userID)
	if err != nil {
		return models.User{}, userLookupError(err)
	}
	return models.NewUser(row)
}

func favoriteStations(r *http.Request, userID string) ([]models.ChargingStation, error) {
	ids, err := queries.ListFavoriteStationIDs(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	stations := make([]models.ChargingStation, 0, len(ids))
	for _, id := range ids {
		station, err := stationCache.Get(r.Context(), id)
		if errors.Is(err, cache.ErrStationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	return stations, nil
}

// normalizeVehicles assigns ids to new vehicles and keeps exactly one default.
func normalizeVehicles(vehicles []models.Vehicle) []models.Vehicle {
	out := make([]models.Vehicle, len(vehicles))
	defaultSeen := false
	for i, vehicle := range vehicles {
		if vehicle.ID == "" {
			vehicle.ID = uuid.NewString()
		}
		if vehicle.ConnectorTypes == nil {
			vehicle.ConnectorTypes = []string{}
		}
		if vehicle.IsDefault {
			if defaultSeen {
				vehicle.IsDefault = false
			}
			defaultSeen = true
		}
		out[i] = vehicle
	}
	if !defaultSeen && len(out) > 0 {
		out[0].IsDefault = true
	}
	return out
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func userLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.NotFound("User not found")
	}
	return fmt.Errorf("user query: %w", err)
}
