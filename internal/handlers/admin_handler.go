package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/almazaya/travel-backend/internal/middleware"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PackageAdmin manages the package catalog
type PackageAdmin interface {
	ListAllPackages(ctx context.Context) ([]models.TripPackage, error)
	GetPackage(ctx context.Context, id int64) (*models.TripPackage, error)
	CreatePackage(ctx context.Context, req *models.TripPackageRequest) (*models.TripPackage, error)
	UpdatePackage(ctx context.Context, id int64, req *models.TripPackageRequest) (*models.TripPackage, error)
	DeletePackage(ctx context.Context, id int64) error
}

// BookingAdmin lists bookings for the back office
type BookingAdmin interface {
	List(ctx context.Context) ([]models.BookingWithPackage, error)
	Get(ctx context.Context, id int64) (*models.BookingWithPackage, error)
}

// AdminHandler handles back office package and booking management
type AdminHandler struct {
	packages PackageAdmin
	bookings BookingAdmin
	logger   *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(packages PackageAdmin, bookings BookingAdmin, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		packages: packages,
		bookings: bookings,
		logger:   logger,
	}
}

// ============================================================================
// PACKAGES
// ============================================================================

// ListPackages handles GET /api/v1/admin/packages
func (h *AdminHandler) ListPackages(c *gin.Context) {
	packages, err := h.packages.ListAllPackages(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list packages")
		internalError(c)
		return
	}
	if packages == nil {
		packages = []models.TripPackage{}
	}
	c.JSON(http.StatusOK, gin.H{"packages": packages, "count": len(packages)})
}

// GetPackage handles GET /api/v1/admin/packages/:id
func (h *AdminHandler) GetPackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	pkg, err := h.packages.GetPackage(c.Request.Context(), id)
	if err != nil {
		h.writePackageError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// CreatePackage handles POST /api/v1/admin/packages
func (h *AdminHandler) CreatePackage(c *gin.Context) {
	var req models.TripPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error())
		return
	}

	pkg, err := h.packages.CreatePackage(c.Request.Context(), &req)
	if err != nil {
		h.writePackageError(c, 0, err)
		return
	}

	h.audit(c, "package_created", pkg.ID)
	c.JSON(http.StatusCreated, pkg)
}

// UpdatePackage handles PUT /api/v1/admin/packages/:id. The body must carry the row_version it was read at.
func (h *AdminHandler) UpdatePackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.TripPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error())
		return
	}

	pkg, err := h.packages.UpdatePackage(c.Request.Context(), id, &req)
	if err != nil {
		h.writePackageError(c, id, err)
		return
	}

	h.audit(c, "package_updated", id)
	c.JSON(http.StatusOK, pkg)
}

// DeletePackage handles DELETE /api/v1/admin/packages/:id
func (h *AdminHandler) DeletePackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.packages.DeletePackage(c.Request.Context(), id); err != nil {
		h.writePackageError(c, id, err)
		return
	}

	h.audit(c, "package_deleted", id)
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) writePackageError(c *gin.Context, id int64, err error) {
	switch {
	case errors.Is(err, models.ErrDiscountAboveBase):
		badRequest(c, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, services.ErrPackageNotFound):
		notFound(c, "PACKAGE_NOT_FOUND", "Package not found")
	case errors.Is(err, services.ErrStaleVersion):
		conflict(c, "STALE_VERSION", "The package was changed by someone else. Reload and try again.")
	case errors.Is(err, services.ErrPackageHasBookings):
		conflict(c, "PACKAGE_HAS_BOOKINGS", "The package has bookings and cannot be deleted")
	default:
		h.logger.WithError(err).WithField("package_id", id).Error("Package operation failed")
		internalError(c)
	}
}

// ============================================================================
// BOOKINGS
// ============================================================================

// ListBookings handles GET /api/v1/admin/bookings
func (h *AdminHandler) ListBookings(c *gin.Context) {
	bookings, err := h.bookings.List(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		internalError(c)
		return
	}
	if bookings == nil {
		bookings = []models.BookingWithPackage{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// GetBooking handles GET /api/v1/admin/bookings/:id
func (h *AdminHandler) GetBooking(c *gin.Context) {
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
	c.JSON(http.StatusOK, booking)
}

func (h *AdminHandler) audit(c *gin.Context, action string, packageID int64) {
	fields := logrus.Fields{
		"action":     action,
		"package_id": packageID,
		"request_id": middleware.GetRequestID(c),
	}
	if adminCtx, ok := middleware.GetAdminContext(c); ok {
		fields["admin"] = adminCtx.Email
	}
	h.logger.WithFields(fields).Info("Admin catalog change")
}
