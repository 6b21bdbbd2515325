package services

import (
	"context"
	"time"

	"github.com/almazaya/travel-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AuditLogger appends payment audit entries
type AuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// RequestMeta describes the HTTP request that triggered a payment event
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	RequestID  string
	Method     string
	Path       string
}

// auditRecorder writes audit entries without ever failing the payment flow
type auditRecorder struct {
	repo   AuditLogger
	logger *logrus.Logger
}

func newAuditRecorder(repo AuditLogger, logger *logrus.Logger) *auditRecorder {
	return &auditRecorder{repo: repo, logger: logger}
}

func (r *auditRecorder) record(ctx context.Context, audit *models.PaymentAudit, meta RequestMeta, start time.Time) {
	if r == nil || r.repo == nil {
		return
	}

	audit.SetMetadata(meta.IPAddress, meta.UserAgent, meta.DeviceType, meta.RequestID)
	if meta.Method != "" {
		audit.SetHTTPDetails(meta.Method, meta.Path, 0)
	}
	if !start.IsZero() {
		audit.SetProcessingTime(start)
	}

	// The audit row must survive a cancelled request
	if err := r.repo.Log(context.WithoutCancel(ctx), audit); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"request_id": meta.RequestID,
		}).Error("AUDIT ERROR: failed to record payment event")
	}
}
