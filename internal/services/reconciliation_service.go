package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/pkg/integrity"
	"github.com/sirupsen/logrus"
)

// Outcome is what a callback did to the booking
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeFailed             Outcome = "failed"
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeAlreadyCompleted   Outcome = "already_completed"
	OutcomeAlreadyFinal       Outcome = "already_final"
	OutcomeNotFound           Outcome = "not_found"
	OutcomeIncomplete         Outcome = "incomplete"
	OutcomeConfigurationError Outcome = "configuration_error"

	// OutcomeInitiationFailed is reported by the initiation flow, never by a callback
	OutcomeInitiationFailed Outcome = "initiation_failed"
)

// ReconciliationResult is returned for every callback that did not hit a transient error
type ReconciliationResult struct {
	Outcome        Outcome
	BookingID      int64 // zero when the booking could not be identified
	TrackID        string
	Message        string
	GatewayMessage string // bank-supplied error text on failures
}

// Success reports whether the booking is paid
func (r *ReconciliationResult) Success() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeAlreadyCompleted
}

var outcomeMessages = map[Outcome]string{
	OutcomeCompleted:          "Payment completed successfully.",
	OutcomeFailed:             "Payment failed or was cancelled.",
	OutcomeVerificationFailed: "Payment verification failed.",
	OutcomeAlreadyCompleted:   "Payment was already confirmed.",
	OutcomeAlreadyFinal:       "This payment attempt has already been processed.",
	OutcomeNotFound:           "Booking not found.",
	OutcomeIncomplete:         "Incomplete response from the payment gateway.",
	OutcomeConfigurationError: "Payment verification is temporarily unavailable.",
	OutcomeInitiationFailed:   "The payment could not be started. Please try again.",
}

// OutcomeMessage returns the customer-facing message for an outcome
func OutcomeMessage(outcome Outcome) (string, bool) {
	msg, ok := outcomeMessages[outcome]
	return msg, ok
}

// successResults is the bank's vocabulary for an approved payment
var successResults = map[string]bool{
	"CAPTURED": true,
	"APPROVED": true,
}

// ReconciliationService applies bank callbacks to bookings.
// It holds no per-callback state; concurrent callbacks are serialised by the row version.
type ReconciliationService struct {
	cfg    *config.GatewayConfig
	store  PaymentBookingStore
	signer *integrity.Signer
	cipher *integrity.Cipher
	audit  *auditRecorder
	logger *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService. cipher may be nil
// outside encrypted_json mode.
func NewReconciliationService(
	cfg *config.GatewayConfig,
	store PaymentBookingStore,
	signer *integrity.Signer,
	cipher *integrity.Cipher,
	audits AuditLogger,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		cfg:    cfg,
		store:  store,
		signer: signer,
		cipher: cipher,
		audit:  newAuditRecorder(audits, logger),
		logger: logger,
	}
}

// ============================================================================
// SUCCESS CALLBACK
// ============================================================================

// HandleSuccess verifies and applies the bank's response callback.
// The only error returned is ErrTransient; every other outcome is in the result.
func (s *ReconciliationService) HandleSuccess(ctx context.Context, form models.CallbackForm, meta RequestMeta) (*ReconciliationResult, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"callback":   "success",
		"request_id": meta.RequestID,
		"mode":       s.cfg.Mode,
	})

	s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceGatewayCallback).
		SetTrackID(form.TrackID.Value).
		SetRequestPayload(form.AuditPayload()), meta, time.Time{})

	verified, form, err := s.authenticate(form)
	if err != nil {
		log.WithError(err).Error("CRITICAL: callback cannot be verified, gateway secrets are not configured")
		s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayCallback).
			SetTrackID(form.TrackID.Value).
			SetError("integrity codec not configured"), meta, start)
		return s.result(OutcomeConfigurationError, nil, form.TrackID.Value), nil
	}

	trackID := form.TrackID.Value
	log = log.WithField("track_id", trackID)

	if !form.TrackID.IsSet() {
		log.Warn("Callback without track id, cannot identify booking")
		return s.result(OutcomeIncomplete, nil, ""), nil
	}

	if !verified {
		return s.rejectUnverified(ctx, log, form, meta, start)
	}

	booking, err := s.locate(ctx, form)
	if err != nil {
		return nil, s.transient(log, err)
	}
	if booking == nil {
		log.Warn("Callback for unknown booking")
		s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayCallback).
			SetTrackID(trackID).
			SetError("booking not found").
			SetResponsePayload(form.AuditPayload()), meta, start)
		return s.result(OutcomeNotFound, nil, trackID), nil
	}
	log = log.WithField("booking_id", booking.ID)

	if mismatch := s.bookingIDMismatch(form, booking); mismatch != "" {
		log.WithField("mismatch", mismatch).Error("Callback booking id does not match the located booking")
		s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, models.PaymentSourceGatewayCallback).
			SetBooking(booking.ID, booking.TrackID).
			SetError(mismatch).
			SetResponsePayload(form.AuditPayload()), meta, start)
		return s.result(OutcomeNotFound, nil, trackID), nil
	}

	succeeded := isSuccessResult(form.Result.Value)
	if !succeeded && !form.HasOutcomeSignal() {
		log.Warn("Callback carries no result or error, treating as failed")
	}

	tranID := s.coveredTranID(form)
	outcome, booking, err := s.apply(ctx, booking, func(b *models.Booking) models.BookingTransition {
		if succeeded {
			return s.completion(b, form, tranID, log)
		}
		return models.BookingTransition{
			BookingID:            b.ID,
			RowVersion:           b.RowVersion,
			From:                 models.PaymentStatusPending,
			To:                   models.PaymentStatusFailed,
			GatewayPaymentID:     optional(form.PaymentID),
			GatewayTransactionID: tranID,
		}
	})
	if err != nil {
		return nil, s.transient(log, err)
	}

	s.auditOutcome(ctx, outcome, booking, form, meta, start)
	log.WithField("outcome", outcome).Info("Payment callback reconciled")

	res := s.result(outcome, booking, trackID)
	if outcome == OutcomeFailed {
		res.GatewayMessage = gatewayMessage(form)
	}
	return res, nil
}

// authenticate checks the callback's integrity for the configured mode. For
// encrypted_json a verified callback is the decrypted payload alone; outer fields are dropped.
func (s *ReconciliationService) authenticate(form models.CallbackForm) (bool, models.CallbackForm, error) {
	if s.cfg.Mode == config.GatewayModeEncryptedJSON {
		if s.cipher == nil {
			return false, form, integrity.ErrKeyNotConfigured
		}
		if !form.TranData.IsSet() {
			return false, form, nil
		}
		decrypted, err := s.decrypt(form)
		if err != nil {
			s.logger.WithError(err).WithField("track_id", form.TrackID.Value).Warn("Callback payload could not be decrypted")
			return false, form, nil
		}
		return true, decrypted, nil
	}

	// A missing digest is a mismatch, never a pass
	ok, err := s.signer.Verify(form.Hash.Value,
		s.cfg.TerminalResourceKey,
		form.PaymentID.Value,
		form.Result.Value,
		form.TrackID.Value,
		form.Amount.Value,
		form.UDF1.Value,
	)
	if err != nil {
		return false, form, err
	}
	return ok, form, nil
}

func (s *ReconciliationService) decrypt(form models.CallbackForm) (models.CallbackForm, error) {
	plain, err := s.cipher.DecryptHex(form.TranData.Value)
	if err != nil {
		return models.CallbackForm{}, err
	}
	values, err := models.ParseCallbackPayload(plain)
	if err != nil {
		return models.CallbackForm{}, err
	}
	return models.ParseCallbackForm(values), nil
}

// rejectUnverified marks a locatable Pending booking VerificationFailed. Digests are never logged.
func (s *ReconciliationService) rejectUnverified(ctx context.Context, log *logrus.Entry, form models.CallbackForm, meta RequestMeta, start time.Time) (*ReconciliationResult, error) {
	trackID := form.TrackID.Value
	log.Error("Payment callback failed integrity verification")

	booking, err := s.store.GetByTrackID(ctx, trackID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, s.transient(log, err)
	}

	audit := models.NewPaymentAudit(models.PaymentEventVerificationFailed, models.PaymentSourceGatewayCallback).
		SetTrackID(trackID).
		SetError("callback integrity check failed").
		SetResponsePayload(form.AuditPayload())

	if booking == nil {
		s.audit.record(ctx, audit, meta, start)
		return s.result(OutcomeVerificationFailed, nil, trackID), nil
	}
	audit.SetBooking(booking.ID, booking.TrackID)

	if booking.PaymentStatus == models.PaymentStatusPending {
		_, booking, err = s.apply(ctx, booking, func(b *models.Booking) models.BookingTransition {
			return models.BookingTransition{
				BookingID:  b.ID,
				RowVersion: b.RowVersion,
				From:       models.PaymentStatusPending,
				To:         models.PaymentStatusVerificationFailed,
			}
		})
		if err != nil {
			return nil, s.transient(log, err)
		}
	}

	audit.SetPaymentStatus(string(booking.PaymentStatus))
	s.audit.record(ctx, audit, meta, start)
	return s.result(OutcomeVerificationFailed, booking, trackID), nil
}

// completion builds the Completed transition with AmountPaid per the configured policy
func (s *ReconciliationService) completion(b *models.Booking, form models.CallbackForm, tranID *string, log *logrus.Entry) models.BookingTransition {
	paid := b.TotalAmountDue
	if s.cfg.AmountPolicy != config.AmountPolicyBookingTotal && form.Amount.IsSet() {
		if confirmed, err := models.ParseAmount(form.Amount.Value); err == nil {
			paid = confirmed
		} else {
			log.WithField("amt", form.Amount.Value).Warn("Unparseable gateway amount, using booking total")
		}
	}

	return models.BookingTransition{
		BookingID:            b.ID,
		RowVersion:           b.RowVersion,
		From:                 models.PaymentStatusPending,
		To:                   models.PaymentStatusCompleted,
		AmountPaid:           &paid,
		GatewayPaymentID:     optional(form.PaymentID),
		GatewayTransactionID: tranID,
	}
}

func (s *ReconciliationService) auditOutcome(ctx context.Context, outcome Outcome, booking *models.Booking, form models.CallbackForm, meta RequestMeta, start time.Time) {
	var event models.PaymentEventType
	switch outcome {
	case OutcomeCompleted:
		event = models.PaymentEventSuccess
	case OutcomeFailed:
		event = models.PaymentEventFailed
	default:
		event = models.PaymentEventDuplicateCallback
	}

	audit := models.NewPaymentAudit(event, models.PaymentSourceGatewayCallback).
		SetBooking(booking.ID, booking.TrackID).
		SetPaymentStatus(string(booking.PaymentStatus)).
		SetGatewayIDs(form.PaymentID.Value, form.TranID.Value).
		SetResponsePayload(form.AuditPayload())
	if event == models.PaymentEventDuplicateCallback {
		audit.MarkAsDuplicate()
	}

	if outcome == OutcomeCompleted && form.Amount.IsSet() {
		if received, err := models.ParseAmount(form.Amount.Value); err == nil {
			if !audit.SetAmounts(booking.TotalAmountDue, received, s.cfg.CurrencyCode) {
				s.logger.WithFields(logrus.Fields{
					"booking_id":       booking.ID,
					"expected_amount":  booking.TotalAmountDue.String(),
					"confirmed_amount": received.String(),
				}).Warn("Gateway confirmed a different amount than the booking total")
				s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, models.PaymentSourceGatewayCallback).
					SetBooking(booking.ID, booking.TrackID).
					SetError("confirmed amount differs from booking total"), meta, start)
			}
		}
	}

	s.audit.record(ctx, audit, meta, start)
}

// ============================================================================
// FAILURE CALLBACK
// ============================================================================

// HandleFailure marks the booking Failed unless it already reached a final state.
// A missing booking is logged and reported, never an error.
func (s *ReconciliationService) HandleFailure(ctx context.Context, form models.CallbackForm, meta RequestMeta) (*ReconciliationResult, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"callback":   "failure",
		"request_id": meta.RequestID,
		"mode":       s.cfg.Mode,
	})

	// The bank's transaction id is only kept when it came out of a decrypted payload
	var tranID *string
	if form.TranData.IsSet() && s.cipher != nil {
		if decrypted, err := s.decrypt(form); err == nil {
			form = decrypted
			tranID = optional(form.TranID)
		} else {
			log.WithError(err).Warn("Failure callback payload could not be decrypted, using outer fields")
		}
	}

	trackID := form.TrackID.Value
	log = log.WithField("track_id", trackID)
	log.WithFields(logrus.Fields{
		"result": form.Result.Value,
		"error":  form.Error.Value,
	}).Warn("Payment failure callback received")

	s.audit.record(ctx, models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceGatewayCallback).
		SetTrackID(trackID).
		SetRequestPayload(form.AuditPayload()), meta, time.Time{})

	var booking *models.Booking
	var err error
	switch {
	case form.TrackID.IsSet():
		booking, err = s.store.GetByTrackID(ctx, trackID)
	case form.UDF1.IsSet():
		id, ok := echoedBookingID(form)
		if !ok {
			log.WithField("udf1", form.UDF1.Value).Warn("Failure callback carries an invalid booking id")
			return s.result(OutcomeNotFound, nil, ""), nil
		}
		booking, err = s.store.GetByID(ctx, id)
	default:
		log.Warn("Failure callback without track id or booking id")
		return s.result(OutcomeIncomplete, nil, ""), nil
	}
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("Booking not found for failure callback")
		return s.result(OutcomeNotFound, nil, trackID), nil
	}
	if err != nil {
		return nil, s.transient(log, err)
	}
	log = log.WithField("booking_id", booking.ID)

	outcome, booking, err := s.apply(ctx, booking, func(b *models.Booking) models.BookingTransition {
		return models.BookingTransition{
			BookingID:            b.ID,
			RowVersion:           b.RowVersion,
			From:                 models.PaymentStatusPending,
			To:                   models.PaymentStatusFailed,
			GatewayPaymentID:     optional(form.PaymentID),
			GatewayTransactionID: tranID,
		}
	})
	if err != nil {
		return nil, s.transient(log, err)
	}

	s.auditOutcome(ctx, outcome, booking, form, meta, start)
	log.WithField("outcome", outcome).Info("Payment failure callback reconciled")

	res := s.result(outcome, booking, trackID)
	if outcome == OutcomeFailed {
		res.GatewayMessage = gatewayMessage(form)
	}
	return res, nil
}

// ============================================================================
// SHARED
// ============================================================================

// locate finds the booking by track id, then bank transaction id, then the echoed
// booking id, then the booking id embedded in the track id. A nil booking with a nil
// error means not found.
func (s *ReconciliationService) locate(ctx context.Context, form models.CallbackForm) (*models.Booking, error) {
	booking, err := s.store.GetByTrackID(ctx, form.TrackID.Value)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if tranID := s.coveredTranID(form); tranID != nil {
		booking, err = s.store.GetByGatewayTransactionID(ctx, *tranID)
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	// An earlier attempt's track id was replaced by a newer one. The echoed
	// booking id and the track id are both covered by the verified digest.
	id, ok := echoedBookingID(form)
	if !ok {
		id, ok = ParseTrackID(s.cfg.TrackPrefix, form.TrackID.Value)
	}
	if ok {
		booking, err = s.store.GetByID(ctx, id)
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

// coveredTranID returns the bank transaction id when the callback's integrity check
// covers it. The form_post response digest does not, so there it is audit-only.
func (s *ReconciliationService) coveredTranID(form models.CallbackForm) *string {
	if s.cfg.Mode != config.GatewayModeEncryptedJSON {
		return nil
	}
	return optional(form.TranID)
}

// bookingIDMismatch describes a disagreement between the located booking and the
// booking ids the callback carries in udf1 and inside its track id
func (s *ReconciliationService) bookingIDMismatch(form models.CallbackForm, booking *models.Booking) string {
	if echoed, ok := echoedBookingID(form); ok && echoed != booking.ID {
		return fmt.Sprintf("echoed booking id %s does not match", form.UDF1.Value)
	}
	if embedded, ok := ParseTrackID(s.cfg.TrackPrefix, form.TrackID.Value); ok && embedded != booking.ID {
		return fmt.Sprintf("track id %s belongs to booking %d", form.TrackID.Value, embedded)
	}
	return ""
}

// apply writes the transition built from the current booking. On a version
// conflict it re-reads and re-applies once, honouring any final state reached meanwhile.
func (s *ReconciliationService) apply(ctx context.Context, booking *models.Booking, build func(*models.Booking) models.BookingTransition) (Outcome, *models.Booking, error) {
	for attempt := 0; ; attempt++ {
		if booking.IsCompleted() {
			return OutcomeAlreadyCompleted, booking, nil
		}
		if booking.PaymentStatus.IsTerminal() {
			return OutcomeAlreadyFinal, booking, nil
		}

		t := build(booking)
		version, err := s.store.Transition(ctx, t)
		if err == nil {
			booking.PaymentStatus = t.To
			booking.RowVersion = version
			if t.AmountPaid != nil {
				booking.AmountPaid = t.AmountPaid
			}
			if t.GatewayPaymentID != nil {
				booking.GatewayPaymentID = t.GatewayPaymentID
			}
			if t.GatewayTransactionID != nil {
				booking.GatewayTransactionID = t.GatewayTransactionID
			}
			return outcomeFor(t.To), booking, nil
		}
		if !errors.Is(err, database.ErrConcurrencyConflict) {
			return "", nil, err
		}
		if attempt > 0 {
			return "", nil, fmt.Errorf("booking %d changed twice during reconciliation: %w", booking.ID, err)
		}

		booking, err = s.store.GetByID(ctx, booking.ID)
		if err != nil {
			return "", nil, err
		}
	}
}

func (s *ReconciliationService) transient(log *logrus.Entry, err error) error {
	log.WithError(err).Error("Payment callback could not be persisted, the gateway may retry")
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func (s *ReconciliationService) result(outcome Outcome, booking *models.Booking, trackID string) *ReconciliationResult {
	res := &ReconciliationResult{
		Outcome: outcome,
		TrackID: trackID,
		Message: outcomeMessages[outcome],
	}
	if booking != nil {
		res.BookingID = booking.ID
	}
	return res
}

func outcomeFor(status models.PaymentStatus) Outcome {
	switch status {
	case models.PaymentStatusCompleted:
		return OutcomeCompleted
	case models.PaymentStatusVerificationFailed:
		return OutcomeVerificationFailed
	default:
		return OutcomeFailed
	}
}

func isSuccessResult(result string) bool {
	return successResults[strings.ToUpper(strings.TrimSpace(result))]
}

func echoedBookingID(form models.CallbackForm) (int64, bool) {
	if !form.UDF1.IsSet() {
		return 0, false
	}
	id, err := strconv.ParseInt(form.UDF1.Value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func gatewayMessage(form models.CallbackForm) string {
	for _, f := range []models.Field{form.ErrorText, form.Error, form.Result} {
		if f.IsSet() {
			return f.Value
		}
	}
	return ""
}

func optional(f models.Field) *string {
	if !f.IsSet() {
		return nil
	}
	v := f.Value
	return &v
}
