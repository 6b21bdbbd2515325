package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentBookingStore is the booking persistence the payment flow needs.
// Writes are conditional on the row version and return the new one.
type PaymentBookingStore interface {
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByTrackID(ctx context.Context, trackID string) (*models.Booking, error)
	GetByGatewayTransactionID(ctx context.Context, tranID string) (*models.Booking, error)
	AssignTrackID(ctx context.Context, id, rowVersion int64, trackID string) (int64, error)
	SetGatewayPaymentID(ctx context.Context, id, rowVersion int64, paymentID string) (int64, error)
	Transition(ctx context.Context, t models.BookingTransition) (int64, error)
}

// InitiatePaymentInput is a request to start a payment attempt
type InitiatePaymentInput struct {
	BookingID int64
	Amount    *models.Amount // optional; must equal the booking total when sent
	Origin    RequestOrigin
	Meta      RequestMeta
}

// InitiationResult tells the handler how to send the customer to the bank
type InitiationResult struct {
	BookingID        int64
	AlreadyCompleted bool
	TrackID          string
	Form             *FormPost // form_post mode
	RedirectURL      string    // encrypted_json mode
}

// PaymentService starts hosted payment attempts
type PaymentService struct {
	cfg     *config.GatewayConfig
	store   PaymentBookingStore
	builder *RequestBuilder
	client  GatewayClient
	audit   *auditRecorder
	logger  *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	cfg *config.GatewayConfig,
	store PaymentBookingStore,
	builder *RequestBuilder,
	client GatewayClient,
	audits AuditLogger,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		cfg:     cfg,
		store:   store,
		builder: builder,
		client:  client,
		audit:   newAuditRecorder(audits, logger),
		logger:  logger,
	}
}

// Initiate issues a track id, persists it, and produces the redirect for the configured mode.
// A gateway failure leaves the booking Pending so the customer can try again.
func (s *PaymentService) Initiate(ctx context.Context, in InitiatePaymentInput) (*InitiationResult, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"booking_id": in.BookingID,
		"request_id": in.Meta.RequestID,
		"mode":       s.cfg.Mode,
	})

	booking, err := s.store.GetByID(ctx, in.BookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		log.WithError(err).Error("Failed to load booking for payment")
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if booking.IsCompleted() {
		log.Info("Payment requested for an already completed booking")
		return &InitiationResult{BookingID: booking.ID, AlreadyCompleted: true}, nil
	}
	if !booking.CanInitiatePayment() {
		return nil, ErrBookingNotPayable
	}

	if in.Amount != nil && *in.Amount != booking.TotalAmountDue {
		log.WithFields(logrus.Fields{
			"requested_amount": in.Amount.String(),
			"total_amount_due": booking.TotalAmountDue.String(),
		}).Warn("Payment amount does not match booking total")
		return nil, ErrAmountMismatch
	}

	req, err := s.builder.Build(booking, booking.TotalAmountDue, in.Origin)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			log.WithField("setting", cfgErr.Setting).Error("CRITICAL: payment gateway is not configured, refusing to initiate payment")
		} else {
			log.WithError(err).Error("Failed to build payment request")
		}
		s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceBackend).
			SetBooking(booking.ID, nil).
			SetError(err.Error()), in.Meta, start)
		return nil, err
	}
	log = log.WithField("track_id", req.TrackID)

	// The track id is stored before any network call so a callback can always be matched
	booking, version, err := s.assignTrackID(ctx, booking, req.TrackID)
	if err != nil {
		if errors.Is(err, errAlreadyCompleted) {
			return &InitiationResult{BookingID: in.BookingID, AlreadyCompleted: true}, nil
		}
		if !errors.Is(err, ErrBookingNotPayable) {
			log.WithError(err).Error("Failed to record payment attempt")
		}
		return nil, err
	}

	s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetBooking(booking.ID, &req.TrackID).
		SetRequestPayload(req.AuditPayload()), in.Meta, start)

	result := &InitiationResult{BookingID: booking.ID, TrackID: req.TrackID}

	if req.Form != nil {
		log.WithField("amount", req.Amount.String()).Info("Payment form prepared")
		result.Form = req.Form
		return result, nil
	}

	redirect, err := s.client.Initiate(ctx, req.Envelope)
	if err != nil {
		log.WithError(err).Error("Payment gateway initiation failed, booking stays Pending")
		audit := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayAPI).
			SetBooking(booking.ID, &req.TrackID).
			SetError(err.Error())
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			audit.SetHTTPDetails("POST", req.Envelope.Endpoint, gwErr.StatusCode)
		}
		s.audit.record(ctx, audit, in.Meta, start)
		return nil, err
	}

	// The callback is matched by track id, so a lost payment id only costs an audit detail
	if _, err := s.store.SetGatewayPaymentID(ctx, booking.ID, version, redirect.PaymentID); err != nil {
		log.WithError(err).Warn("Failed to store gateway payment id")
	}

	s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventResponse, models.PaymentSourceGatewayAPI).
		SetBooking(booking.ID, &req.TrackID).
		SetGatewayIDs(redirect.PaymentID, "").
		SetHTTPDetails("POST", req.Envelope.Endpoint, redirect.StatusCode), in.Meta, start)

	log.WithField("payment_id", redirect.PaymentID).Info("Hosted payment page issued")

	result.RedirectURL = redirect.RedirectURL
	return result, nil
}

var errAlreadyCompleted = errors.New("booking already completed")

// assignTrackID writes the track id, re-reading once on a version conflict
func (s *PaymentService) assignTrackID(ctx context.Context, booking *models.Booking, trackID string) (*models.Booking, int64, error) {
	for attempt := 0; ; attempt++ {
		version, err := s.store.AssignTrackID(ctx, booking.ID, booking.RowVersion, trackID)
		if err == nil {
			return booking, version, nil
		}
		if !errors.Is(err, database.ErrConcurrencyConflict) {
			return nil, 0, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if attempt > 0 {
			return nil, 0, fmt.Errorf("%w: booking kept changing", ErrTransient)
		}

		booking, err = s.store.GetByID(ctx, booking.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if booking.IsCompleted() {
			return nil, 0, errAlreadyCompleted
		}
		if !booking.CanInitiatePayment() {
			return nil, 0, ErrBookingNotPayable
		}
	}
}
