package handlers

import (
	"context"
	"io"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

type mockPaymentInitiator struct {
	mock.Mock
}

func (m *mockPaymentInitiator) Initiate(ctx context.Context, in services.InitiatePaymentInput) (*services.InitiationResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InitiationResult), args.Error(1)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) HandleSuccess(ctx context.Context, form models.CallbackForm, meta services.RequestMeta) (*services.ReconciliationResult, error) {
	args := m.Called(ctx, form, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconciliationResult), args.Error(1)
}

func (m *mockReconciler) HandleFailure(ctx context.Context, form models.CallbackForm, meta services.RequestMeta) (*services.ReconciliationResult, error) {
	args := m.Called(ctx, form, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconciliationResult), args.Error(1)
}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) Create(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) Get(ctx context.Context, id int64) (*models.BookingWithPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingWithPackage), args.Error(1)
}

func (m *mockBookings) List(ctx context.Context) ([]models.BookingWithPackage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingWithPackage), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListActivePackages(ctx context.Context) ([]models.TripPackage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TripPackage), args.Error(1)
}

func (m *mockCatalog) GetActivePackage(ctx context.Context, id int64) (*models.TripPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TripPackage), args.Error(1)
}

func (m *mockCatalog) ListAllPackages(ctx context.Context) ([]models.TripPackage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TripPackage), args.Error(1)
}

func (m *mockCatalog) GetPackage(ctx context.Context, id int64) (*models.TripPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TripPackage), args.Error(1)
}

func (m *mockCatalog) CreatePackage(ctx context.Context, req *models.TripPackageRequest) (*models.TripPackage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TripPackage), args.Error(1)
}

func (m *mockCatalog) UpdatePackage(ctx context.Context, id int64, req *models.TripPackageRequest) (*models.TripPackage, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TripPackage), args.Error(1)
}

func (m *mockCatalog) DeletePackage(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Login(ctx context.Context, email, password string) (*models.AdminLoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminLoginResponse), args.Error(1)
}

func sampleBookingWithPackage(status models.PaymentStatus) *models.BookingWithPackage {
	return &models.BookingWithPackage{
		Booking: models.Booking{
			ID:             42,
			ClientName:     "Sara Alharbi",
			PhoneNumber:    "0501234567",
			Email:          "sara@example.com",
			Adults:         2,
			TripPackageID:  11,
			PaymentStatus:  status,
			TotalAmountDue: models.NewAmount(450, 0),
		},
		PackageName:   "Istanbul Getaway",
		PackageNameAr: "رحلة إسطنبول",
	}
}
