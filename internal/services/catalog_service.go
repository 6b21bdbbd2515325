package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/almazaya/travel-backend/internal/cache"
	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PackageStore is the trip package persistence used by the catalog
type PackageStore interface {
	ListActive(ctx context.Context) ([]models.TripPackage, error)
	ListAll(ctx context.Context) ([]models.TripPackage, error)
	GetByID(ctx context.Context, id int64) (*models.TripPackage, error)
	Create(ctx context.Context, pkg *models.TripPackage) error
	Update(ctx context.Context, pkg *models.TripPackage) error
	Delete(ctx context.Context, id int64) error
}

// CatalogService serves the public catalog and the admin package CRUD
type CatalogService struct {
	packages PackageStore
	cache    cache.CatalogCache
	logger   *logrus.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(packages PackageStore, catalogCache cache.CatalogCache, logger *logrus.Logger) *CatalogService {
	if catalogCache == nil {
		catalogCache = cache.NoopCatalogCache{}
	}
	return &CatalogService{
		packages: packages,
		cache:    catalogCache,
		logger:   logger,
	}
}

// ============================================================================
// PUBLIC CATALOG
// ============================================================================

// ListActivePackages returns bookable packages ordered by destination
func (s *CatalogService) ListActivePackages(ctx context.Context) ([]models.TripPackage, error) {
	if packages, ok := s.cache.GetActivePackages(ctx); ok {
		return packages, nil
	}

	packages, err := s.packages.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetActivePackages(ctx, packages)
	return packages, nil
}

// GetActivePackage returns a package only if it is bookable
func (s *CatalogService) GetActivePackage(ctx context.Context, id int64) (*models.TripPackage, error) {
	pkg, ok := s.cache.GetPackage(ctx, id)
	if !ok {
		var err error
		pkg, err = s.packages.GetByID(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrPackageNotFound
		}
		if err != nil {
			return nil, err
		}
		s.cache.SetPackage(ctx, pkg)
	}

	if !pkg.IsActive {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// ============================================================================
// ADMIN
// ============================================================================

// ListAllPackages returns every package, newest first
func (s *CatalogService) ListAllPackages(ctx context.Context) ([]models.TripPackage, error) {
	return s.packages.ListAll(ctx)
}

// GetPackage returns a package regardless of its active flag
func (s *CatalogService) GetPackage(ctx context.Context, id int64) (*models.TripPackage, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPackageNotFound
	}
	return pkg, err
}

// CreatePackage validates and stores a new package
func (s *CatalogService) CreatePackage(ctx context.Context, req *models.TripPackageRequest) (*models.TripPackage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pkg := req.ToTripPackage(0)
	if err := s.packages.Create(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to create package: %w", err)
	}

	s.cache.Invalidate(ctx, pkg.ID)
	s.logger.WithFields(logrus.Fields{
		"package_id": pkg.ID,
		"name":       pkg.Name,
	}).Info("Trip package created")

	return pkg, nil
}

// UpdatePackage writes an edit if req.RowVersion is still current
func (s *CatalogService) UpdatePackage(ctx context.Context, id int64, req *models.TripPackageRequest) (*models.TripPackage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pkg := req.ToTripPackage(id)
	err := s.packages.Update(ctx, pkg)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrPackageNotFound
	case errors.Is(err, database.ErrConcurrencyConflict):
		return nil, ErrStaleVersion
	case err != nil:
		return nil, fmt.Errorf("failed to update package: %w", err)
	}

	s.cache.Invalidate(ctx, id)
	s.logger.WithFields(logrus.Fields{
		"package_id":  id,
		"row_version": pkg.RowVersion,
	}).Info("Trip package updated")

	return pkg, nil
}

// DeletePackage removes a package that has never been booked
func (s *CatalogService) DeletePackage(ctx context.Context, id int64) error {
	err := s.packages.Delete(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrPackageNotFound
	case errors.Is(err, database.ErrPackageHasBookings):
		return ErrPackageHasBookings
	case err != nil:
		return fmt.Errorf("failed to delete package: %w", err)
	}

	s.cache.Invalidate(ctx, id)
	s.logger.WithField("package_id", id).Info("Trip package deleted")
	return nil
}
