package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{
	"id", "client_name", "phone_number", "email", "adults", "children",
	"trip_package_id", "booking_date", "payment_status", "track_id", "payment_initiated_at",
	"gateway_payment_id", "gateway_transaction_id", "amount_paid", "total_amount_due", "row_version",
}

func pendingBookingRow(rows *sqlmock.Rows, id int64, trackID interface{}) *sqlmock.Rows {
	return rows.AddRow(id, "Sara Ahmed", "0501234567", "sara@example.com", 2, 1,
		7, time.Date(2025, 10, 22, 20, 5, 34, 0, time.UTC), "Pending", trackID, nil,
		nil, nil, nil, "900.00", 3)
}

func TestBookingRepository_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		booking := &models.Booking{
			ClientName:     "Sara Ahmed",
			PhoneNumber:    "0501234567",
			Email:          "sara@example.com",
			Adults:         2,
			TripPackageID:  7,
			TotalAmountDue: models.NewAmount(900, 0),
		}

		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs("Sara Ahmed", "0501234567", "sara@example.com", 2, 0, int64(7), sqlmock.AnyArg(), "Pending", "900.00").
			WillReturnRows(sqlmock.NewRows([]string{"id", "row_version"}).AddRow(42, 1))

		require.NoError(t, repo.Create(context.Background(), booking))
		assert.Equal(t, int64(42), booking.ID)
		assert.Equal(t, int64(1), booking.RowVersion)
		assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
		assert.False(t, booking.BookingDate.IsZero())
		assert.Equal(t, time.UTC, booking.BookingDate.Location())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown package", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23503"})

		err := repo.Create(context.Background(), &models.Booking{TripPackageID: 99})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByTrackID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b WHERE b.track_id = \$1`).
			WithArgs("ALM-42-1").
			WillReturnRows(pendingBookingRow(sqlmock.NewRows(bookingRowColumns), 42, "ALM-42-1"))

		booking, err := repo.GetByTrackID(context.Background(), "ALM-42-1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), booking.ID)
		assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
		require.NotNil(t, booking.TrackID)
		assert.Equal(t, "ALM-42-1", *booking.TrackID)
		assert.Nil(t, booking.AmountPaid)
		assert.Equal(t, models.NewAmount(900, 0), booking.TotalAmountDue)
		assert.Equal(t, int64(3), booking.RowVersion)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b WHERE b.track_id = \$1`).
			WithArgs("ALM-0-0").
			WillReturnError(sql.ErrNoRows)

		booking, err := repo.GetByTrackID(context.Background(), "ALM-0-0")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, booking)
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings b WHERE b.track_id = \$1`).
			WillReturnError(fmt.Errorf("connection refused"))

		_, err := repo.GetByTrackID(context.Background(), "ALM-42-1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_GetByGatewayTransactionID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM bookings b WHERE b.gateway_transaction_id = \$1`).
		WithArgs("TRN-9").
		WillReturnRows(pendingBookingRow(sqlmock.NewRows(bookingRowColumns), 42, "ALM-42-1"))

	booking, err := repo.GetByGatewayTransactionID(context.Background(), "TRN-9")
	require.NoError(t, err)
	assert.Equal(t, int64(42), booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ListWithPackages(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	columns := append(append([]string{}, bookingRowColumns...), "package_name", "package_name_ar")
	mock.ExpectQuery(`SELECT (.+) FROM bookings b JOIN trip_packages p ON p.id = b.trip_package_id ORDER BY b.booking_date DESC`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(42, "Sara Ahmed", "0501234567", "sara@example.com", 2, 1,
				7, time.Now(), "Completed", "ALM-42-1", time.Now(),
				"PID-1", "TRN-1", "900.00", "900.00", 5, "AlUla Escape", "رحلة العلا"))

	bookings, err := repo.ListWithPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "AlUla Escape", bookings[0].PackageName)
	assert.Equal(t, models.PaymentStatusCompleted, bookings[0].PaymentStatus)
	require.NotNil(t, bookings[0].AmountPaid)
	assert.Equal(t, models.NewAmount(900, 0), *bookings[0].AmountPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_AssignTrackID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`UPDATE bookings SET track_id = \$1, payment_initiated_at = \$2, gateway_payment_id = NULL, row_version = row_version \+ 1 WHERE id = \$3 AND row_version = \$4 AND payment_status = \$5`).
			WithArgs("ALM-42-1", sqlmock.AnyArg(), int64(42), int64(3), "Pending").
			WillReturnRows(sqlmock.NewRows([]string{"row_version"}).AddRow(4))

		version, err := repo.AssignTrackID(context.Background(), 42, 3, "ALM-42-1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`UPDATE bookings SET track_id`).WillReturnError(sql.ErrNoRows)

		_, err := repo.AssignTrackID(context.Background(), 42, 3, "ALM-42-1")
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate track id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`UPDATE bookings SET track_id`).WillReturnError(&pq.Error{Code: "23505"})

		_, err := repo.AssignTrackID(context.Background(), 42, 3, "ALM-42-1")
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_Transition(t *testing.T) {
	paid := models.NewAmount(450, 0)
	tranID := "TRN-1"

	t.Run("Completed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`UPDATE bookings SET payment_status = \$1, amount_paid = COALESCE\(\$2, amount_paid\)(.+)WHERE id = \$5 AND row_version = \$6 AND payment_status = \$7`).
			WithArgs("Completed", "450.00", sqlmock.AnyArg(), "TRN-1", int64(42), int64(4), "Pending").
			WillReturnRows(sqlmock.NewRows([]string{"row_version"}).AddRow(5))

		version, err := repo.Transition(context.Background(), models.BookingTransition{
			BookingID:            42,
			RowVersion:           4,
			From:                 models.PaymentStatusPending,
			To:                   models.PaymentStatusCompleted,
			AmountPaid:           &paid,
			GatewayTransactionID: &tranID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failed keeps amount", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`UPDATE bookings SET payment_status`).
			WithArgs("Failed", nil, nil, nil, int64(42), int64(4), "Pending").
			WillReturnRows(sqlmock.NewRows([]string{"row_version"}).AddRow(5))

		_, err := repo.Transition(context.Background(), models.BookingTransition{
			BookingID:  42,
			RowVersion: 4,
			From:       models.PaymentStatusPending,
			To:         models.PaymentStatusFailed,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrent write", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		mock.ExpectQuery(`UPDATE bookings SET payment_status`).WillReturnError(sql.ErrNoRows)

		_, err := repo.Transition(context.Background(), models.BookingTransition{
			BookingID:  42,
			RowVersion: 4,
			From:       models.PaymentStatusPending,
			To:         models.PaymentStatusCompleted,
		})
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects leaving Completed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)

		_, err := repo.Transition(context.Background(), models.BookingTransition{
			BookingID:  42,
			RowVersion: 4,
			From:       models.PaymentStatusCompleted,
			To:         models.PaymentStatusFailed,
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ListStalePending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	cutoff := time.Now().Add(-time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM bookings b WHERE b.payment_status = \$1 AND b.track_id IS NOT NULL AND b.payment_initiated_at < \$2 AND NOT EXISTS \( SELECT 1 FROM payment_audits a WHERE a.booking_id = b.id AND a.track_id = b.track_id AND a.event_type = \$3 \)`).
		WithArgs("Pending", cutoff, "stale_pending").
		WillReturnRows(pendingBookingRow(sqlmock.NewRows(bookingRowColumns), 42, "ALM-42-1"))

	bookings, err := repo.ListStalePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
