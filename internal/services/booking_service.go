package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ValidationError is a rejected booking field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BookingStore is the booking persistence used outside reconciliation
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetWithPackage(ctx context.Context, id int64) (*models.BookingWithPackage, error)
	ListWithPackages(ctx context.Context) ([]models.BookingWithPackage, error)
}

// BookingService creates Pending bookings and serves them back
type BookingService struct {
	bookings BookingStore
	packages PackageStore
	phones   *validator.PhoneValidator
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(bookings BookingStore, packages PackageStore, logger *logrus.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		packages: packages,
		phones:   validator.NewPhoneValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates the request and stores a Pending booking. The total due is
// the package's effective price per adult.
func (s *BookingService) Create(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, &ValidationError{Field: "client_name", Message: "is required"}
	}
	phone, err := s.phones.Validate(req.PhoneNumber)
	if err != nil {
		return nil, &ValidationError{Field: "phone_number", Message: err.Error()}
	}
	if req.Adults < 1 || req.Adults > 100 {
		return nil, &ValidationError{Field: "adults", Message: "must be between 1 and 100"}
	}
	if req.Children < 0 || req.Children > 100 {
		return nil, &ValidationError{Field: "children", Message: "must be between 0 and 100"}
	}

	pkg, err := s.packages.GetByID(ctx, req.TripPackageID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPackageUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	if !pkg.IsActive {
		return nil, ErrPackageUnavailable
	}

	booking := &models.Booking{
		ClientName:     name,
		PhoneNumber:    phone,
		Email:          strings.TrimSpace(req.Email),
		Adults:         req.Adults,
		Children:       req.Children,
		TripPackageID:  pkg.ID,
		BookingDate:    s.now().UTC(),
		PaymentStatus:  models.PaymentStatusPending,
		TotalAmountDue: pkg.EffectivePrice().Mul(req.Adults),
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		// Package deleted between the read and the insert
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrPackageUnavailable
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":       booking.ID,
		"package_id":       pkg.ID,
		"total_amount_due": booking.TotalAmountDue.String(),
	}).Info("Booking created")

	return booking, nil
}

// Get returns a booking with its package names
func (s *BookingService) Get(ctx context.Context, id int64) (*models.BookingWithPackage, error) {
	booking, err := s.bookings.GetWithPackage(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	return booking, err
}

// List returns all bookings, most recent first
func (s *BookingService) List(ctx context.Context) ([]models.BookingWithPackage, error) {
	return s.bookings.ListWithPackages(ctx)
}
