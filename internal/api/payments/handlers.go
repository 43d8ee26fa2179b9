// internal/api/payments/handlers.go
package payments

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/bookings"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/request"
)

const (
	defaultCurrency       = "USD"
	intentStatus          = "requires_confirmation"
	defaultInvoicePage    = 10
	maxInvoicePage        = 50
	paymentMethodNotFound = "Payment method not found"
)

var (
	database       *db.DB
	bookingService *bookings.Service
)

func InitHandlers(d *db.DB, svc *bookings.Service) {
	database = d
	bookingService = svc
}

type methodRequest struct {
	Type  string `json:"type" validate:"required,oneof=card paypal apple_pay google_pay"`
	Last4 string `json:"last4" validate:"required_if=Type card,omitempty,len=4,numeric"`
	Brand string `json:"brand" validate:"max=30"`
}

type intentRequest struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency"`
}

// GET /payments/methods
func HandleListMethods(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	rows, err := database.Queries.ListPaymentMethods(r.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("list payment methods: %w", err)
	}
	methods := make([]models.PaymentMethod, 0, len(rows))
	for _, row := range rows {
		methods = append(methods, models.NewPaymentMethod(row))
	}
	return apiutil.Success(w, http.StatusOK, methods)
}

// POST /payments/methods
func HandleAddMethod(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req methodRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	method := dbgen.PaymentMethod{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Type:      req.Type,
		Last4:     nullString(req.Last4),
		Brand:     nullString(strings.TrimSpace(req.Brand)),
		CreatedAt: db.Now(),
	}
	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		count, err := tx.Queries.CountPaymentMethods(r.Context(), user.ID)
		if err != nil {
			return fmt.Errorf("count payment methods: %w", err)
		}
		method.IsDefault = count == 0
		if err := tx.Queries.CreatePaymentMethod(r.Context(), method); err != nil {
			return fmt.Errorf("create payment method: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger := log.Ctx(r.Context())
	confirmed, err := bookingService.ConfirmPending(r.Context(), user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to confirm pending bookings")
	} else if confirmed > 0 {
		logger.Info().Int("confirmed", confirmed).Msg("Confirmed pending bookings")
	}

	return apiutil.SuccessMessage(w, http.StatusCreated, models.NewPaymentMethod(method), "Payment method added")
}

// DELETE /payments/methods/{id}
func HandleDeleteMethod(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	id := r.PathValue("id")

	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		method, err := tx.Queries.GetPaymentMethod(r.Context(), id, user.ID)
		if err != nil {
			return lookupError(err)
		}
		if err := tx.Queries.DeletePaymentMethod(r.Context(), id, user.ID); err != nil {
			return lookupError(err)
		}
		if !method.IsDefault {
			return nil
		}

		oldest, err := tx.Queries.GetOldestPaymentMethod(r.Context(), user.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load oldest payment method: %w", err)
		}
		return tx.Queries.SetDefaultPaymentMethod(r.Context(), oldest.ID, user.ID)
	})
	if err != nil {
		return err
	}
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Payment method removed")
}

// PUT /payments/methods/{id}/default
func HandleSetDefault(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	id := r.PathValue("id")

	var method dbgen.PaymentMethod
	err = database.RunInTx(r.Context(), func(tx *db.DB) error {
		if _, err := tx.Queries.GetPaymentMethod(r.Context(), id, user.ID); err != nil {
			return lookupError(err)
		}
		if err := tx.Queries.SetDefaultPaymentMethod(r.Context(), id, user.ID); err != nil {
			return fmt.Errorf("set default payment method: %w", err)
		}
		method, err = tx.Queries.GetPaymentMethod(r.Context(), id, user.ID)
		return err
	})
	if err != nil {
		return err
	}
	return apiutil.SuccessMessage(w, http.StatusOK, models.NewPaymentMethod(method), "Default payment method updated")
}

// POST /payments/intent
func HandleCreateIntent(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req intentRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if err := apiutil.ValidateVar("currency", currency, "iso4217"); err != nil {
		return err
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := dbgen.PaymentIntent{
		ID:           id,
		UserID:       user.ID,
		Amount:       math.Round(req.Amount*100) / 100,
		Currency:     currency,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:       intentStatus,
		CreatedAt:    db.Now(),
	}
	if err := database.Queries.CreatePaymentIntent(r.Context(), intent); err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}

	return apiutil.Success(w, http.StatusCreated, models.PaymentIntent{
		ID:           intent.ID,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		ClientSecret: intent.ClientSecret,
		Status:       intent.Status,
	})
}

// GET /payments/invoices
func HandleInvoices(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	page, err := request.ParsePagination(r.URL.Query(), defaultInvoicePage, maxInvoicePage)
	if err != nil {
		return apiutil.BadRequest(err.Error())
	}

	rows, err := database.Queries.ListInvoices(r.Context(), user.ID, int64(page.Limit), int64(page.Offset()))
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	total, err := database.Queries.CountInvoices(r.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("count invoices: %w", err)
	}

	invoices := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, models.NewInvoice(row))
	}
	return apiutil.Paginated(w, map[string]any{"invoices": invoices, "total": total}, page, total)
}

func lookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.NotFound(paymentMethodNotFound)
	}
	return fmt.Errorf("load payment method: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
