package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) Create(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockBookingStore) GetWithPackage(ctx context.Context, id int64) (*models.BookingWithPackage, error) {
	args := m.Called(ctx, id)
	booking, _ := args.Get(0).(*models.BookingWithPackage)
	return booking, args.Error(1)
}

func (m *mockBookingStore) ListWithPackages(ctx context.Context) ([]models.BookingWithPackage, error) {
	args := m.Called(ctx)
	bookings, _ := args.Get(0).([]models.BookingWithPackage)
	return bookings, args.Error(1)
}

func validBookingRequest() *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		TripPackageID: 1,
		ClientName:    "  Sara Alharbi ",
		PhoneNumber:   "+966 50 123 4567",
		Email:         "sara@example.com",
		Adults:        2,
		Children:      1,
	}
}

func TestBookingService_CreateChargesEffectivePricePerAdult(t *testing.T) {
	packages := &mockPackageStore{}
	pkg := samplePackage(1, true)
	packages.On("GetByID", mock.Anything, int64(1)).Return(&pkg, nil).Once()

	bookings := &mockBookingStore{}
	bookings.On("Create", mock.Anything, mock.AnythingOfType("*models.Booking")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Booking).ID = 42
	}).Return(nil).Once()

	svc := NewBookingService(bookings, packages, testLogger())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("AST", 3*3600)) }

	booking, err := svc.Create(context.Background(), validBookingRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(42), booking.ID)
	assert.Equal(t, "Sara Alharbi", booking.ClientName)
	assert.Equal(t, "0501234567", booking.PhoneNumber)
	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	assert.Equal(t, "450.00", booking.TotalAmountDue.String())
	assert.Nil(t, booking.AmountPaid)
	assert.Nil(t, booking.TrackID)
	assert.Equal(t, time.UTC, booking.BookingDate.Location())
	assert.Equal(t, 9, booking.BookingDate.Hour())

	packages.AssertExpectations(t)
	bookings.AssertExpectations(t)
}

func TestBookingService_CreateWithoutDiscount(t *testing.T) {
	packages := &mockPackageStore{}
	pkg := samplePackage(1, true)
	pkg.PriceAfterDiscount = nil
	packages.On("GetByID", mock.Anything, int64(1)).Return(&pkg, nil).Once()

	bookings := &mockBookingStore{}
	bookings.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	booking, err := NewBookingService(bookings, packages, testLogger()).Create(context.Background(), validBookingRequest())
	require.NoError(t, err)
	assert.Equal(t, "600.00", booking.TotalAmountDue.String())
}

func TestBookingService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.CreateBookingRequest)
		field  string
	}{
		{"blank name", func(r *models.CreateBookingRequest) { r.ClientName = "   " }, "client_name"},
		{"bad phone", func(r *models.CreateBookingRequest) { r.PhoneNumber = "12345" }, "phone_number"},
		{"no adults", func(r *models.CreateBookingRequest) { r.Adults = 0 }, "adults"},
		{"too many adults", func(r *models.CreateBookingRequest) { r.Adults = 101 }, "adults"},
		{"negative children", func(r *models.CreateBookingRequest) { r.Children = -1 }, "children"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packages := &mockPackageStore{}
			bookings := &mockBookingStore{}
			req := validBookingRequest()
			tt.mutate(req)

			_, err := NewBookingService(bookings, packages, testLogger()).Create(context.Background(), req)

			var valErr *ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.field, valErr.Field)
			packages.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
			bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingService_CreateUnavailablePackage(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		packages := &mockPackageStore{}
		packages.On("GetByID", mock.Anything, int64(1)).Return(nil, database.ErrNotFound).Once()

		_, err := NewBookingService(&mockBookingStore{}, packages, testLogger()).Create(context.Background(), validBookingRequest())
		assert.ErrorIs(t, err, ErrPackageUnavailable)
	})

	t.Run("inactive", func(t *testing.T) {
		packages := &mockPackageStore{}
		pkg := samplePackage(1, false)
		packages.On("GetByID", mock.Anything, int64(1)).Return(&pkg, nil).Once()

		_, err := NewBookingService(&mockBookingStore{}, packages, testLogger()).Create(context.Background(), validBookingRequest())
		assert.ErrorIs(t, err, ErrPackageUnavailable)
	})

	t.Run("deleted before insert", func(t *testing.T) {
		packages := &mockPackageStore{}
		pkg := samplePackage(1, true)
		packages.On("GetByID", mock.Anything, int64(1)).Return(&pkg, nil).Once()
		bookings := &mockBookingStore{}
		bookings.On("Create", mock.Anything, mock.Anything).Return(database.ErrNotFound).Once()

		_, err := NewBookingService(bookings, packages, testLogger()).Create(context.Background(), validBookingRequest())
		assert.ErrorIs(t, err, ErrPackageUnavailable)
	})
}

func TestBookingService_Get(t *testing.T) {
	bookings := &mockBookingStore{}
	found := &models.BookingWithPackage{Booking: *pendingBooking(""), PackageName: "Istanbul Escape"}
	bookings.On("GetWithPackage", mock.Anything, int64(42)).Return(found, nil).Once()
	bookings.On("GetWithPackage", mock.Anything, int64(43)).Return(nil, database.ErrNotFound).Once()
	svc := NewBookingService(bookings, &mockPackageStore{}, testLogger())

	booking, err := svc.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Istanbul Escape", booking.PackageName)

	_, err = svc.Get(context.Background(), 43)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
