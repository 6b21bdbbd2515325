package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validBookingJSON = `{"trip_package_id":11,"client_name":"Sara Alharbi","phone_number":"0501234567","email":"sara@example.com","adults":2,"children":1}`

func newBookingRouter(bookings *mockBookings, payments *mockPaymentInitiator) *gin.Engine {
	paymentHandler := NewPaymentHandler(payments, &mockReconciler{}, bookings, testLogger())
	h := NewBookingHandler(bookings, paymentHandler, testLogger())

	router := setupTestRouter()
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/:id", h.Get)
	return router
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestBookingHandler_CreateStartsPayment(t *testing.T) {
	bookings := &mockBookings{}
	payments := &mockPaymentInitiator{}
	bookings.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreateBookingRequest) bool {
		return req.TripPackageID == 11 && req.Adults == 2 && req.Children == 1
	})).Return(&models.Booking{ID: 42, TotalAmountDue: models.NewAmount(450, 0)}, nil)
	payments.On("Initiate", mock.Anything, mock.MatchedBy(func(in services.InitiatePaymentInput) bool {
		return in.BookingID == 42 && in.Amount == nil
	})).Return(&services.InitiationResult{BookingID: 42, RedirectURL: "https://bank.example/pay?PaymentID=1"}, nil)

	w := httptest.NewRecorder()
	newBookingRouter(bookings, payments).ServeHTTP(w, postJSON("/api/v1/bookings", validBookingJSON))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://bank.example/pay?PaymentID=1", w.Header().Get("Location"))
	bookings.AssertExpectations(t)
	payments.AssertExpectations(t)
}

func TestBookingHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"binding failure", `{"trip_package_id":11}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"service validation", validBookingJSON, &services.ValidationError{Field: "phone_number", Message: "invalid"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"package unavailable", validBookingJSON, services.ErrPackageUnavailable, http.StatusNotFound, "PACKAGE_UNAVAILABLE"},
		{"store failure", validBookingJSON, errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings := &mockBookings{}
			payments := &mockPaymentInitiator{}
			if tt.err != nil {
				bookings.On("Create", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			w := httptest.NewRecorder()
			newBookingRouter(bookings, payments).ServeHTTP(w, postJSON("/api/v1/bookings", tt.body))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			payments.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingHandler_Get(t *testing.T) {
	bookings := &mockBookings{}
	bookings.On("Get", mock.Anything, int64(42)).Return(sampleBookingWithPackage(models.PaymentStatusCompleted), nil)
	bookings.On("Get", mock.Anything, int64(7)).Return(nil, services.ErrBookingNotFound)
	router := newBookingRouter(bookings, &mockPaymentInitiator{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.BookingSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, models.PaymentStatusCompleted, summary.PaymentStatus)
	assert.Equal(t, models.NewAmount(450, 0), summary.TotalAmountDue)
	assert.NotContains(t, w.Body.String(), "sara@example.com")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/7", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
