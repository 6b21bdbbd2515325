package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BookingCreator creates and loads customer bookings
type BookingCreator interface {
	Create(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, id int64) (*models.BookingWithPackage, error)
}

// BookingHandler handles the public booking form
type BookingHandler struct {
	bookings BookingCreator
	payments *PaymentHandler
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler. Successful bookings go straight to payment.
func NewBookingHandler(bookings BookingCreator, payments *PaymentHandler, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		payments: payments,
		logger:   logger,
	}
}

// Create handles POST /api/v1/bookings (JSON or form encoded)
func (h *BookingHandler) Create(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error())
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), &req)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			badRequest(c, "VALIDATION_ERROR", validationErr.Error())
		case errors.Is(err, services.ErrPackageUnavailable):
			notFound(c, "PACKAGE_UNAVAILABLE", "This package is not available for booking")
		default:
			h.logger.WithError(err).WithField("package_id", req.TripPackageID).Error("Failed to create booking")
			internalError(c)
		}
		return
	}

	h.payments.startPayment(c, booking.ID, nil)
}

// Get handles GET /api/v1/bookings/:id and returns the summary shown on the result page
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrBookingNotFound) {
		notFound(c, "BOOKING_NOT_FOUND", "Booking not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", id).Error("Failed to load booking")
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, booking.Summary())
}
