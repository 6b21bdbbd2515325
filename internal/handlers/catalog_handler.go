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

// CatalogReader serves the public package catalog
type CatalogReader interface {
	ListActivePackages(ctx context.Context) ([]models.TripPackage, error)
	GetActivePackage(ctx context.Context, id int64) (*models.TripPackage, error)
}

// CatalogHandler handles public package listings
type CatalogHandler struct {
	catalog CatalogReader
	logger  *logrus.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogReader, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ListPackages handles GET /api/v1/packages
func (h *CatalogHandler) ListPackages(c *gin.Context) {
	packages, err := h.catalog.ListActivePackages(c.Request.Context())
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

// GetPackage handles GET /api/v1/packages/:id
func (h *CatalogHandler) GetPackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	pkg, err := h.catalog.GetActivePackage(c.Request.Context(), id)
	if errors.Is(err, services.ErrPackageNotFound) {
		notFound(c, "PACKAGE_NOT_FOUND", "Package not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("package_id", id).Error("Failed to load package")
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, pkg)
}
