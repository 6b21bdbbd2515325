package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// TripPackageRepository handles trip package database operations
type TripPackageRepository struct {
	db *sqlx.DB
}

// NewTripPackageRepository creates a new TripPackageRepository
func NewTripPackageRepository(db *sqlx.DB) *TripPackageRepository {
	return &TripPackageRepository{db: db}
}

const tripPackageColumns = `
	id, name, name_ar, description, description_ar,
	destination_country, destination_country_ar, duration_days,
	price_before_discount, price_after_discount, image_url, is_active, row_version`

// ============================================================================
// READ OPERATIONS
// ============================================================================

// ListActive returns bookable packages ordered by destination
func (r *TripPackageRepository) ListActive(ctx context.Context) ([]models.TripPackage, error) {
	packages := []models.TripPackage{}
	query := `SELECT` + tripPackageColumns + `
		FROM trip_packages
		WHERE is_active = TRUE
		ORDER BY destination_country, id`

	if err := r.db.SelectContext(ctx, &packages, query); err != nil {
		return nil, fmt.Errorf("failed to list active packages: %w", err)
	}
	return packages, nil
}

// ListAll returns every package, newest first, for the back office
func (r *TripPackageRepository) ListAll(ctx context.Context) ([]models.TripPackage, error) {
	packages := []models.TripPackage{}
	query := `SELECT` + tripPackageColumns + `
		FROM trip_packages
		ORDER BY id DESC`

	if err := r.db.SelectContext(ctx, &packages, query); err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return packages, nil
}

// GetByID returns a package regardless of its active flag
func (r *TripPackageRepository) GetByID(ctx context.Context, id int64) (*models.TripPackage, error) {
	var pkg models.TripPackage
	query := `SELECT` + tripPackageColumns + `
		FROM trip_packages
		WHERE id = $1`

	err := r.db.GetContext(ctx, &pkg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &pkg, nil
}

// ============================================================================
// WRITE OPERATIONS
// ============================================================================

// Create inserts a package and fills in its id and row version
func (r *TripPackageRepository) Create(ctx context.Context, pkg *models.TripPackage) error {
	query := `
		INSERT INTO trip_packages (
			name, name_ar, description, description_ar,
			destination_country, destination_country_ar, duration_days,
			price_before_discount, price_after_discount, image_url, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, row_version`

	err := r.db.QueryRowxContext(ctx, query,
		pkg.Name, pkg.NameAr, pkg.Description, pkg.DescriptionAr,
		pkg.DestinationCountry, pkg.DestinationCountryAr, pkg.DurationDays,
		pkg.PriceBeforeDiscount, pkg.PriceAfterDiscount, pkg.ImageURL, pkg.IsActive,
	).Scan(&pkg.ID, &pkg.RowVersion)
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

// Update writes every editable field if the row version still matches.
// On success pkg.RowVersion holds the new version.
func (r *TripPackageRepository) Update(ctx context.Context, pkg *models.TripPackage) error {
	query := `
		UPDATE trip_packages SET
			name = $1, name_ar = $2, description = $3, description_ar = $4,
			destination_country = $5, destination_country_ar = $6, duration_days = $7,
			price_before_discount = $8, price_after_discount = $9, image_url = $10, is_active = $11,
			row_version = row_version + 1
		WHERE id = $12 AND row_version = $13
		RETURNING row_version`

	var newVersion int64
	err := r.db.QueryRowxContext(ctx, query,
		pkg.Name, pkg.NameAr, pkg.Description, pkg.DescriptionAr,
		pkg.DestinationCountry, pkg.DestinationCountryAr, pkg.DurationDays,
		pkg.PriceBeforeDiscount, pkg.PriceAfterDiscount, pkg.ImageURL, pkg.IsActive,
		pkg.ID, pkg.RowVersion,
	).Scan(&newVersion)

	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := r.exists(ctx, pkg.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrencyConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}

	pkg.RowVersion = newVersion
	return nil
}

// Delete removes a package that has no bookings
func (r *TripPackageRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var bookings int
	if err := tx.GetContext(ctx, &bookings, `SELECT COUNT(*) FROM bookings WHERE trip_package_id = $1`, id); err != nil {
		return fmt.Errorf("failed to count package bookings: %w", err)
	}
	if bookings > 0 {
		return ErrPackageHasBookings
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM trip_packages WHERE id = $1`, id)
	if err != nil {
		// A booking inserted after the count still trips the ON DELETE RESTRICT key
		if isPgError(err, pgForeignKeyViolation) {
			return ErrPackageHasBookings
		}
		return fmt.Errorf("failed to delete package: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrPackageHasBookings
		}
		return fmt.Errorf("failed to commit package delete: %w", err)
	}
	return nil
}

func (r *TripPackageRepository) exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM trip_packages WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("failed to check package: %w", err)
	}
	return exists, nil
}
