// internal/api/reviews/handlers.go
package reviews

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/authz"
	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
)

const (
	imagesField    = "images"
	imagesSubdir   = "reviews"
	maxImages      = 5
	maxImageBytes  = 5 << 20
	reviewNotFound = "Review not found"
)

var (
	database     *db.DB
	stationCache *cache.Stations
	uploadsDir   string
)

func InitHandlers(d *db.DB, stations *cache.Stations, cfg *config.Config) {
	database = d
	stationCache = stations
	uploadsDir = cfg.App.UploadsDir
}

type createRequest struct {
	StationID string `json:"stationId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Title     string `json:"title" validate:"required,max=100"`
	Comment   string `json:"comment" validate:"required,max=2000"`
}

type updateRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Title   *string `json:"title" validate:"omitempty,min=1,max=100"`
	Comment *string `json:"comment" validate:"omitempty,min=1,max=2000"`
}

// POST /reviews
func HandleCreate(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req createRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}
	title, comment := strings.TrimSpace(req.Title), strings.TrimSpace(req.Comment)
	if title == "" || comment == "" {
		return apiutil.BadRequest("title and comment must not be blank")
	}

	station, err := stationCache.Get(r.Context(), strings.TrimSpace(req.StationID))
	if errors.Is(err, cache.ErrStationNotFound) {
		return apiutil.NotFound("Station not found")
	}
	if err != nil {
		return err
	}

	images, err := saveImages(r)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		_, err := tx.Queries.GetUserStationReview(r.Context(), user.ID, station.ID)
		switch {
		case err == nil:
			return apiutil.Conflict("You have already reviewed this station", nil)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check existing review: %w", err)
		}

		now := db.Now()
		if err := tx.Queries.CreateReview(r.Context(), dbgen.CreateReviewParams{
			ID:        id,
			UserID:    user.ID,
			StationID: station.ID,
			Rating:    int64(req.Rating),
			Title:     title,
			Comment:   comment,
			Images:    models.EncodeList(images),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("create review: %w", err)
		}
		return recompute(r, tx, station.ID)
	})
	if err != nil {
		apiutil.RemoveUploads(r.Context(), uploadsDir, images)
		return err
	}
	stationCache.Invalidate(station.ID)

	review, err := loadReview(r, id)
	if err != nil {
		return err
	}
	log.Ctx(r.Context()).Info().
		Str("review_id", id).
		Str("station_id", station.ID).
		Int("rating", req.Rating).
		Msg("Review created")
	return apiutil.SuccessMessage(w, http.StatusCreated, review, "Review submitted")
}

// PUT /reviews/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) error {
	if _, err := apiutil.RequireUser(r); err != nil {
		return err
	}

	var req updateRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	existing, err := ownedReview(r)
	if err != nil {
		return err
	}

	params := dbgen.UpdateReviewParams{
		ID:      existing.ID,
		Rating:  existing.Rating,
		Title:   existing.Title,
		Comment: existing.Comment,
		Images:  existing.Images,
	}
	if req.Rating != nil {
		params.Rating = int64(*req.Rating)
	}
	if req.Title != nil {
		if params.Title = strings.TrimSpace(*req.Title); params.Title == "" {
			return apiutil.BadRequest("title must not be blank")
		}
	}
	if req.Comment != nil {
		if params.Comment = strings.TrimSpace(*req.Comment); params.Comment == "" {
			return apiutil.BadRequest("comment must not be blank")
		}
	}

	images, err := saveImages(r)
	if err != nil {
		return err
	}
	if len(images) > 0 {
		params.Images = models.EncodeList(images)
	}

	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		params.UpdatedAt = db.Now()
		if err := tx.Queries.UpdateReview(r.Context(), params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apiutil.NotFound(reviewNotFound)
			}
			return fmt.Errorf("update review: %w", err)
		}
		return recompute(r, tx, existing.StationID)
	})
	if err != nil {
		apiutil.RemoveUploads(r.Context(), uploadsDir, images)
		return err
	}
	stationCache.Invalidate(existing.StationID)

	review, err := loadReview(r, existing.ID)
	if err != nil {
		return err
	}
	return apiutil.SuccessMessage(w, http.StatusOK, review, "Review updated")
}

// DELETE /reviews/{id}
func HandleDelete(w http.ResponseWriter, r *http.Request) error {
	if _, err := apiutil.RequireUser(r); err != nil {
		return err
	}
	existing, err := ownedReview(r)
	if err != nil {
		return err
	}

	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		if err := tx.Queries.DeleteReview(r.Context(), existing.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apiutil.NotFound(reviewNotFound)
			}
			return fmt.Errorf("delete review: %w", err)
		}
		return recompute(r, tx, existing.StationID)
	})
	if err != nil {
		return err
	}
	stationCache.Invalidate(existing.StationID)

	log.Ctx(r.Context()).Info().Str("review_id", existing.ID).Msg("Review deleted")
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Review deleted")
}

// POST /reviews/{id}/helpful
func HandleHelpful(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	id := r.PathValue("id")

	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		if _, err := tx.Queries.GetReview(r.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apiutil.NotFound(reviewNotFound)
			}
			return fmt.Errorf("load review: %w", err)
		}
		added, err := tx.Queries.AddHelpfulVote(r.Context(), id, user.ID)
		if err != nil {
			return fmt.Errorf("record vote: %w", err)
		}
		if added == 0 {
			return nil
		}
		return tx.Queries.IncrementReviewHelpful(r.Context(), id)
	})
	if err != nil {
		return err
	}

	review, err := loadReview(r, id)
	if err != nil {
		return err
	}
	return apiutil.SuccessMessage(w, http.StatusOK, review, "Marked as helpful")
}

// ownedReview loads the path review and enforces that the caller wrote it.
func ownedReview(r *http.Request) (dbgen.ReviewWithAuthor, error) {
	row, err := database.Queries.GetReview(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return dbgen.ReviewWithAuthor{}, apiutil.NotFound(reviewNotFound)
	}
	if err != nil {
		return dbgen.ReviewWithAuthor{}, fmt.Errorf("load review: %w", err)
	}
	if err := authz.RequireOwner(r.Context(), row.UserID); err != nil {
		return dbgen.ReviewWithAuthor{}, apiutil.HandlerError{
			Status:  http.StatusForbidden,
			Message: "You can only change your own reviews",
			Err:     err,
		}
	}
	return row, nil
}

func loadReview(r *http.Request, id string) (models.Review, error) {
	row, err := database.Queries.GetReview(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, apiutil.NotFound(reviewNotFound)
	}
	if err != nil {
		return models.Review{}, fmt.Errorf("load review: %w", err)
	}
	return models.NewReview(row), nil
}

func recompute(r *http.Request, tx *db.DB, stationID string) error {
	if err := tx.Queries.RecomputeStationRating(r.Context(), db.Now(), stationID); err != nil {
		return fmt.Errorf("recompute rating: %w", err)
	}
	return nil
}

// saveImages stores any multipart review images. JSON requests carry none.
func saveImages(r *http.Request) ([]string, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[imagesField]
	if len(files) == 0 {
		files = r.MultipartForm.File[imagesField+"[]"]
	}
	if len(files) > maxImages {
		return nil, apiutil.BadRequest(fmt.Sprintf("at most %d images are allowed", maxImages))
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := apiutil.SaveImage(fh, uploadsDir, imagesSubdir, maxImageBytes)
		if err != nil {
			apiutil.RemoveUploads(r.Context(), uploadsDir, urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
