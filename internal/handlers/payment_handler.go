package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ResultPath is where every payment flow ends up
const ResultPath = "/payment/result"

// PaymentInitiator starts a hosted payment attempt
type PaymentInitiator interface {
	Initiate(ctx context.Context, in services.InitiatePaymentInput) (*services.InitiationResult, error)
}

// CallbackReconciler applies bank callbacks
type CallbackReconciler interface {
	HandleSuccess(ctx context.Context, form models.CallbackForm, meta services.RequestMeta) (*services.ReconciliationResult, error)
	HandleFailure(ctx context.Context, form models.CallbackForm, meta services.RequestMeta) (*services.ReconciliationResult, error)
}

// BookingReader loads a booking with its package names
type BookingReader interface {
	Get(ctx context.Context, id int64) (*models.BookingWithPackage, error)
}

// PaymentResultResponse is the payment result page payload
type PaymentResultResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Outcome string                 `json:"outcome,omitempty"`
	Booking *models.BookingSummary `json:"booking,omitempty"`
}

var autoSubmitTemplate = template.Must(template.New("autosubmit").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.ActionURL}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

// PaymentHandler serves payment initiation, bank callbacks and the result page
type PaymentHandler struct {
	payments   PaymentInitiator
	reconciler CallbackReconciler
	bookings   BookingReader
	logger     *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentInitiator, reconciler CallbackReconciler, bookings BookingReader, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		reconciler: reconciler,
		bookings:   bookings,
		logger:     logger,
	}
}

// Initiate handles GET/POST /payment/initiate with bookingId and an optional amount
func (h *PaymentHandler) Initiate(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Request.FormValue("bookingId"), 10, 64)
	if err != nil || bookingID <= 0 {
		badRequest(c, "INVALID_BOOKING_ID", "bookingId is required")
		return
	}

	var amount *models.Amount
	if raw := c.Request.FormValue("amount"); raw != "" {
		parsed, err := models.ParseAmount(raw)
		if err != nil {
			badRequest(c, "INVALID_AMOUNT", "amount must be a decimal with at most two places")
			return
		}
		amount = &parsed
	}

	h.startPayment(c, bookingID, amount)
}

// startPayment runs the initiation and writes the redirect for the configured mode
func (h *PaymentHandler) startPayment(c *gin.Context, bookingID int64, amount *models.Amount) {
	result, err := h.payments.Initiate(c.Request.Context(), services.InitiatePaymentInput{
		BookingID: bookingID,
		Amount:    amount,
		Origin:    requestOrigin(c),
		Meta:      requestMeta(c),
	})
	if err != nil {
		h.writeInitiationError(c, bookingID, err)
		return
	}

	switch {
	case result.AlreadyCompleted:
		c.Redirect(http.StatusSeeOther, resultURL(bookingID, services.OutcomeAlreadyCompleted))
	case result.Form != nil:
		var buf bytes.Buffer
		if err := autoSubmitTemplate.Execute(&buf, result.Form); err != nil {
			h.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to render payment form")
			internalError(c)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	case result.RedirectURL != "":
		c.Redirect(http.StatusSeeOther, result.RedirectURL)
	default:
		h.logger.WithField("booking_id", bookingID).Error("Payment initiation returned neither a form nor a redirect")
		internalError(c)
	}
}

func (h *PaymentHandler) writeInitiationError(c *gin.Context, bookingID int64, err error) {
	var cfgErr *services.ConfigurationError
	var gwErr *services.GatewayError

	switch {
	case errors.Is(err, services.ErrBookingNotFound):
		notFound(c, "BOOKING_NOT_FOUND", "Booking not found")
	case errors.Is(err, services.ErrBookingNotPayable):
		conflict(c, "BOOKING_NOT_PAYABLE", "This booking is not awaiting payment")
	case errors.Is(err, services.ErrAmountMismatch):
		badRequest(c, "AMOUNT_MISMATCH", "amount does not match the booking total")
	case errors.As(err, &cfgErr):
		serviceUnavailable(c, "PAYMENT_UNAVAILABLE", "Online payment is temporarily unavailable")
	case errors.As(err, &gwErr):
		// Booking stays Pending; the result page offers a retry
		c.Redirect(http.StatusSeeOther, resultURL(bookingID, services.OutcomeInitiationFailed))
	case errors.Is(err, services.ErrTransient):
		serviceUnavailable(c, "TEMPORARY_FAILURE", "Please try again shortly")
	default:
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Payment initiation failed")
		internalError(c)
	}
}

// Success handles POST /payment/success from the bank
func (h *PaymentHandler) Success(c *gin.Context) {
	h.callback(c, h.reconciler.HandleSuccess)
}

// Failure handles POST /payment/failure from the bank
func (h *PaymentHandler) Failure(c *gin.Context) {
	h.callback(c, h.reconciler.HandleFailure)
}

type callbackFunc func(ctx context.Context, form models.CallbackForm, meta services.RequestMeta) (*services.ReconciliationResult, error)

func (h *PaymentHandler) callback(c *gin.Context, handle callbackFunc) {
	if err := c.Request.ParseForm(); err != nil {
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Unparseable payment callback body")
	}
	values := c.Request.PostForm
	if len(values) == 0 {
		values = c.Request.URL.Query()
	}

	result, err := handle(c.Request.Context(), models.ParseCallbackForm(values), requestMeta(c))
	if err != nil {
		// The bank retries on 5xx and reprocessing is idempotent
		serviceUnavailable(c, "TEMPORARY_FAILURE", "Payment could not be recorded, please retry")
		return
	}

	c.Redirect(http.StatusSeeOther, resultURL(result.BookingID, result.Outcome))
}

// Result handles GET /payment/result. Success reflects the stored booking status,
// never the outcome in the query string.
func (h *PaymentHandler) Result(c *gin.Context) {
	outcome := services.Outcome(c.Query("outcome"))
	message, known := services.OutcomeMessage(outcome)
	if !known {
		outcome = ""
	}

	resp := PaymentResultResponse{Message: message, Outcome: string(outcome)}

	rawID := c.Query("bookingId")
	if rawID == "" {
		if resp.Message == "" {
			resp.Message = "Payment status is unknown."
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	bookingID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || bookingID <= 0 {
		badRequest(c, "INVALID_BOOKING_ID", "Invalid bookingId")
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), bookingID)
	if errors.Is(err, services.ErrBookingNotFound) {
		notFound(c, "BOOKING_NOT_FOUND", "Booking not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to load booking for result page")
		internalError(c)
		return
	}

	resp.Booking = booking.Summary()
	resp.Success = booking.PaymentStatus == models.PaymentStatusCompleted
	if resp.Message == "" || (resp.Success != (outcome == services.OutcomeCompleted || outcome == services.OutcomeAlreadyCompleted)) {
		resp.Message = statusMessage(booking.PaymentStatus)
	}

	c.JSON(http.StatusOK, resp)
}

func statusMessage(status models.PaymentStatus) string {
	switch status {
	case models.PaymentStatusCompleted:
		return "Payment completed successfully."
	case models.PaymentStatusPending:
		return "Payment has not been confirmed yet."
	case models.PaymentStatusVerificationFailed:
		return "Payment verification failed."
	default:
		return "Payment failed or was cancelled."
	}
}

func resultURL(bookingID int64, outcome services.Outcome) string {
	q := url.Values{}
	if bookingID > 0 {
		q.Set("bookingId", strconv.FormatInt(bookingID, 10))
	}
	if outcome != "" {
		q.Set("outcome", string(outcome))
	}
	if len(q) == 0 {
		return ResultPath
	}
	return ResultPath + "?" + q.Encode()
}
