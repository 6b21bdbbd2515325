package services

import (
	"context"
	"fmt"
	"time"

	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StalePendingLister finds payment attempts that never received a callback
type StalePendingLister interface {
	ListStalePending(ctx context.Context, initiatedBefore time.Time) ([]models.Booking, error)
}

// PendingPaymentSweeper periodically reports bookings stuck in Pending after a
// payment attempt. It only logs and audits; status changes come from callbacks
// or an operator.
type PendingPaymentSweeper struct {
	cron       *cron.Cron
	schedule   string
	staleAfter time.Duration
	bookings   StalePendingLister
	audits     *auditRecorder
	logger     *logrus.Logger
	now        func() time.Time
}

// NewPendingPaymentSweeper creates a new sweeper
func NewPendingPaymentSweeper(cfg config.SweeperConfig, bookings StalePendingLister, audits AuditLogger, logger *logrus.Logger) *PendingPaymentSweeper {
	return &PendingPaymentSweeper{
		// Schedules carry a seconds field
		cron:       cron.New(cron.WithSeconds()),
		schedule:   cfg.Schedule,
		staleAfter: cfg.StaleAfter,
		bookings:   bookings,
		audits:     newAuditRecorder(audits, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// Start schedules the sweep and starts the scheduler
func (s *PendingPaymentSweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepJob)
	if err != nil {
		return fmt.Errorf("failed to schedule pending payment sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule":    s.schedule,
		"stale_after": s.staleAfter.String(),
	}).Info("Pending payment sweeper started")

	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *PendingPaymentSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Pending payment sweeper stopped")
}

func (s *PendingPaymentSweeper) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	startTime := time.Now()
	count, err := s.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Pending payment sweep failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"stale_count": count,
		"duration":    time.Since(startTime).String(),
	}).Info("Pending payment sweep finished")
}

// Sweep audits each stale payment attempt the store has not reported yet and returns how many were found
func (s *PendingPaymentSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.staleAfter)

	stale, err := s.bookings.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for i := range stale {
		booking := &stale[i]

		var initiatedAt string
		if booking.PaymentInitiatedAt != nil {
			initiatedAt = booking.PaymentInitiatedAt.UTC().Format(time.RFC3339)
		}

		s.logger.WithFields(logrus.Fields{
			"booking_id":           booking.ID,
			"track_id":             derefString(booking.TrackID),
			"payment_initiated_at": initiatedAt,
			"total_amount_due":     booking.TotalAmountDue.String(),
		}).Warn("Payment still pending without a callback, needs manual reconciliation")

		audit := models.NewPaymentAudit(models.PaymentEventStalePending, models.PaymentSourceSystem).
			SetBooking(booking.ID, booking.TrackID).
			SetPaymentStatus(string(booking.PaymentStatus)).
			SetResponsePayload(map[string]interface{}{
				"payment_initiated_at": initiatedAt,
				"stale_after_minutes":  int(s.staleAfter.Minutes()),
			})
		if booking.GatewayPaymentID != nil {
			audit.SetGatewayIDs(*booking.GatewayPaymentID, "")
		}
		s.audits.record(ctx, audit, RequestMeta{}, time.Time{})
	}

	return len(stale), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
