package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/pkg/integrity"
	"github.com/sirupsen/logrus"
)

const (
	testHashKey = "test-secure-hash-key"
	testAESKey  = "0123456789abcdef0123456789abcdef"
	testAESIV   = "abcdef9876543210"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testGatewayConfig(mode string) *config.GatewayConfig {
	return &config.GatewayConfig{
		Mode:                mode,
		MerchantID:          "600000001",
		TerminalID:          "PG100200",
		TranportalID:        "TP100200",
		TranportalPassword:  "tranportal-pass",
		TerminalResourceKey: "RK-0001",
		SecureHashKey:       testHashKey,
		AESKey:              testAESKey,
		AESIV:               testAESIV,
		GatewayURL:          "https://bank.example/pg/payment/hosted.htm",
		AppBaseURL:          "https://almazaya.example",
		CurrencyCode:        "SAR",
		ActionCode:          "1",
		TrackPrefix:         "ALM",
		MerchantLabel:       "Almazaya Booking",
		AmountPolicy:        config.AmountPolicyGatewayConfirmed,
		SuccessStatus:       "1",
		Timeout:             5 * time.Second,
	}
}

func testCipher() *integrity.Cipher {
	c, err := integrity.NewCipher(testAESKey, testAESIV)
	if err != nil {
		panic(err)
	}
	return c
}

func amountPtr(a models.Amount) *models.Amount {
	return &a
}

func strPtr(s string) *string {
	return &s
}

// pendingBooking is booking 42 for two adults at 225.00, i.e. 450.00 due
func pendingBooking(trackID string) *models.Booking {
	b := &models.Booking{
		ID:             42,
		ClientName:     "Sara Alharbi",
		PhoneNumber:    "0501234567",
		Email:          "sara@example.com",
		Adults:         2,
		TripPackageID:  7,
		BookingDate:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		PaymentStatus:  models.PaymentStatusPending,
		TotalAmountDue: models.NewAmount(450, 0),
		RowVersion:     3,
	}
	if trackID != "" {
		b.TrackID = strPtr(trackID)
		initiated := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)
		b.PaymentInitiatedAt = &initiated
	}
	return b
}

// fakeBookingStore is an in-memory PaymentBookingStore with row versions.
// conflicts makes the next N writes lose a race: a concurrent writer bumps the
// version (and runs onConflict) just before the conditional update.
type fakeBookingStore struct {
	mu          sync.Mutex
	bookings    map[int64]*models.Booking
	conflicts   int
	onConflict  func(b *models.Booking)
	readErr     error
	writeErr    error
	transitions []models.BookingTransition
	writes      int
}

func newFakeBookingStore(bookings ...*models.Booking) *fakeBookingStore {
	s := &fakeBookingStore{bookings: make(map[int64]*models.Booking)}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *fakeBookingStore) get(id int64) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		cp := *b
		return &cp
	}
	return nil
}

func (s *fakeBookingStore) find(match func(b *models.Booking) bool) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	for _, b := range s.bookings {
		if match(b) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeBookingStore) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	return s.find(func(b *models.Booking) bool { return b.ID == id })
}

func (s *fakeBookingStore) GetByTrackID(ctx context.Context, trackID string) (*models.Booking, error) {
	return s.find(func(b *models.Booking) bool { return b.TrackID != nil && *b.TrackID == trackID })
}

func (s *fakeBookingStore) GetByGatewayTransactionID(ctx context.Context, tranID string) (*models.Booking, error) {
	return s.find(func(b *models.Booking) bool {
		return b.GatewayTransactionID != nil && *b.GatewayTransactionID == tranID
	})
}

// conditional runs fn on the stored row if the version still matches. Caller holds mu.
func (s *fakeBookingStore) conditional(id, rowVersion int64, fn func(b *models.Booking) bool) (int64, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return 0, database.ErrConcurrencyConflict
	}
	if s.conflicts > 0 {
		s.conflicts--
		b.RowVersion++
		if s.onConflict != nil {
			s.onConflict(b)
		}
	}
	if b.RowVersion != rowVersion || !fn(b) {
		return 0, database.ErrConcurrencyConflict
	}
	b.RowVersion++
	s.writes++
	return b.RowVersion, nil
}

func (s *fakeBookingStore) AssignTrackID(ctx context.Context, id, rowVersion int64, trackID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditional(id, rowVersion, func(b *models.Booking) bool {
		if b.PaymentStatus != models.PaymentStatusPending {
			return false
		}
		now := time.Now().UTC()
		b.TrackID = &trackID
		b.PaymentInitiatedAt = &now
		b.GatewayPaymentID = nil
		return true
	})
}

func (s *fakeBookingStore) SetGatewayPaymentID(ctx context.Context, id, rowVersion int64, paymentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditional(id, rowVersion, func(b *models.Booking) bool {
		b.GatewayPaymentID = &paymentID
		return true
	})
}

func (s *fakeBookingStore) Transition(ctx context.Context, t models.BookingTransition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, err := s.conditional(t.BookingID, t.RowVersion, func(b *models.Booking) bool {
		if b.PaymentStatus != t.From || !t.From.CanTransitionTo(t.To) {
			return false
		}
		b.PaymentStatus = t.To
		if t.AmountPaid != nil {
			b.AmountPaid = t.AmountPaid
		}
		if t.GatewayPaymentID != nil {
			b.GatewayPaymentID = t.GatewayPaymentID
		}
		if t.GatewayTransactionID != nil {
			b.GatewayTransactionID = t.GatewayTransactionID
		}
		return true
	})
	if err == nil {
		s.transitions = append(s.transitions, t)
	}
	return version, err
}

func (s *fakeBookingStore) transitionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transitions)
}

// fakeAuditLog records audit entries in memory
type fakeAuditLog struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
	err     error
}

func (l *fakeAuditLog) Log(ctx context.Context, audit *models.PaymentAudit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, audit)
	return l.err
}

func (l *fakeAuditLog) events() []models.PaymentEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.PaymentEventType, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.EventType)
	}
	return out
}

func (l *fakeAuditLog) find(event models.PaymentEventType) *models.PaymentAudit {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.EventType == event {
			return e
		}
	}
	return nil
}
