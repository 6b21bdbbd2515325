package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// BookingRepository persists bookings. Every status write is conditional on the
// row version read by the caller.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	b.id, b.client_name, b.phone_number, b.email, b.adults, b.children,
	b.trip_package_id, b.booking_date, b.payment_status, b.track_id, b.payment_initiated_at,
	b.gateway_payment_id, b.gateway_transaction_id, b.amount_paid, b.total_amount_due, b.row_version`

// ============================================================================
// CREATE / READ
// ============================================================================

// Create inserts a Pending booking and fills in its id and row version
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.BookingDate.IsZero() {
		booking.BookingDate = time.Now().UTC()
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentStatusPending
	}

	query := `
		INSERT INTO bookings (
			client_name, phone_number, email, adults, children,
			trip_package_id, booking_date, payment_status, total_amount_due
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, row_version`

	err := r.db.QueryRowxContext(ctx, query,
		booking.ClientName, booking.PhoneNumber, booking.Email, booking.Adults, booking.Children,
		booking.TripPackageID, booking.BookingDate, booking.PaymentStatus, booking.TotalAmountDue,
	).Scan(&booking.ID, &booking.RowVersion)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID returns a booking by id
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	return r.getOne(ctx, `WHERE b.id = $1`, id)
}

// GetByTrackID returns the booking whose current attempt carries this track id
func (r *BookingRepository) GetByTrackID(ctx context.Context, trackID string) (*models.Booking, error) {
	return r.getOne(ctx, `WHERE b.track_id = $1`, trackID)
}

// GetByGatewayTransactionID returns the booking completed under this bank transaction id
func (r *BookingRepository) GetByGatewayTransactionID(ctx context.Context, tranID string) (*models.Booking, error) {
	return r.getOne(ctx, `WHERE b.gateway_transaction_id = $1`, tranID)
}

func (r *BookingRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT` + bookingColumns + ` FROM bookings b ` + where

	err := r.db.GetContext(ctx, &booking, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetWithPackage returns a booking joined with its package names
func (r *BookingRepository) GetWithPackage(ctx context.Context, id int64) (*models.BookingWithPackage, error) {
	var booking models.BookingWithPackage
	query := `SELECT` + bookingColumns + `, p.name AS package_name, p.name_ar AS package_name_ar
		FROM bookings b
		JOIN trip_packages p ON p.id = b.trip_package_id
		WHERE b.id = $1`

	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking details: %w", err)
	}
	return &booking, nil
}

// ListWithPackages returns all bookings, most recent first
func (r *BookingRepository) ListWithPackages(ctx context.Context) ([]models.BookingWithPackage, error) {
	bookings := []models.BookingWithPackage{}
	query := `SELECT` + bookingColumns + `, p.name AS package_name, p.name_ar AS package_name_ar
		FROM bookings b
		JOIN trip_packages p ON p.id = b.trip_package_id
		ORDER BY b.booking_date DESC, b.id DESC`

	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListStalePending returns Pending bookings whose last payment attempt started before
// the cutoff and has no stale_pending audit yet. A retry with a new track id is reported again.
func (r *BookingRepository) ListStalePending(ctx context.Context, initiatedBefore time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT` + bookingColumns + `
		FROM bookings b
		WHERE b.payment_status = $1
		AND b.track_id IS NOT NULL
		AND b.payment_initiated_at < $2
		AND NOT EXISTS (
			SELECT 1 FROM payment_audits a
			WHERE a.booking_id = b.id
			AND a.track_id = b.track_id
			AND a.event_type = $3
		)
		ORDER BY b.payment_initiated_at ASC`

	if err := r.db.SelectContext(ctx, &bookings, query, models.PaymentStatusPending, initiatedBefore, models.PaymentEventStalePending); err != nil {
		return nil, fmt.Errorf("failed to list stale pending bookings: %w", err)
	}
	return bookings, nil
}

// ============================================================================
// CONDITIONAL UPDATES (optimistic concurrency)
// ============================================================================

// AssignTrackID records a new payment attempt on a Pending booking and returns the new row version
func (r *BookingRepository) AssignTrackID(ctx context.Context, id, rowVersion int64, trackID string) (int64, error) {
	query := `
		UPDATE bookings SET
			track_id = $1,
			payment_initiated_at = $2,
			gateway_payment_id = NULL,
			row_version = row_version + 1
		WHERE id = $3 AND row_version = $4 AND payment_status = $5
		RETURNING row_version`

	var newVersion int64
	err := r.db.QueryRowxContext(ctx, query,
		trackID, time.Now().UTC(), id, rowVersion, models.PaymentStatusPending,
	).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConcurrencyConflict
	}
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return 0, fmt.Errorf("track id %s already issued: %w", trackID, ErrConcurrencyConflict)
		}
		return 0, fmt.Errorf("failed to assign track id: %w", err)
	}
	return newVersion, nil
}

// SetGatewayPaymentID stores the bank's payment id for the current attempt
func (r *BookingRepository) SetGatewayPaymentID(ctx context.Context, id, rowVersion int64, paymentID string) (int64, error) {
	query := `
		UPDATE bookings SET
			gateway_payment_id = $1,
			row_version = row_version + 1
		WHERE id = $2 AND row_version = $3 AND payment_status = $4
		RETURNING row_version`

	var newVersion int64
	err := r.db.QueryRowxContext(ctx, query, paymentID, id, rowVersion, models.PaymentStatusPending).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConcurrencyConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to set gateway payment id: %w", err)
	}
	return newVersion, nil
}

// Transition moves a booking between payment states. It matches on id, row version and
// the expected current status, so a concurrent writer makes it fail with ErrConcurrencyConflict.
func (r *BookingRepository) Transition(ctx context.Context, t models.BookingTransition) (int64, error) {
	if !t.From.CanTransitionTo(t.To) {
		return 0, fmt.Errorf("invalid payment status transition %s -> %s", t.From, t.To)
	}

	query := `
		UPDATE bookings SET
			payment_status = $1,
			amount_paid = COALESCE($2, amount_paid),
			gateway_payment_id = COALESCE($3, gateway_payment_id),
			gateway_transaction_id = COALESCE($4, gateway_transaction_id),
			row_version = row_version + 1
		WHERE id = $5 AND row_version = $6 AND payment_status = $7
		RETURNING row_version`

	var newVersion int64
	err := r.db.QueryRowxContext(ctx, query,
		t.To, t.AmountPaid, t.GatewayPaymentID, t.GatewayTransactionID,
		t.BookingID, t.RowVersion, t.From,
	).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConcurrencyConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update payment status: %w", err)
	}
	return newVersion, nil
}
