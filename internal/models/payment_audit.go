package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated              PaymentEventType = "payment_initiated"
	PaymentEventResponse               PaymentEventType = "payment_response"
	PaymentEventCallbackReceived       PaymentEventType = "callback_received"
	PaymentEventSuccess                PaymentEventType = "payment_success"
	PaymentEventFailed                 PaymentEventType = "payment_failed"
	PaymentEventVerificationFailed     PaymentEventType = "verification_failed"
	PaymentEventDuplicateCallback      PaymentEventType = "duplicate_callback"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventStalePending           PaymentEventType = "stale_pending"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend         PaymentEventSource = "backend"
	PaymentSourceGatewayCallback PaymentEventSource = "gateway_callback"
	PaymentSourceGatewayAPI      PaymentEventSource = "gateway_api"
	PaymentSourceSystem          PaymentEventSource = "system"
)

// PaymentAudit is an append-only record of a payment event
type PaymentAudit struct {
	ID                   uuid.UUID          `json:"id" db:"id"`
	BookingID            *int64             `json:"booking_id,omitempty" db:"booking_id"`
	TrackID              *string            `json:"track_id,omitempty" db:"track_id"`
	EventType            PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource          PaymentEventSource `json:"event_source" db:"event_source"`
	ExpectedAmount       *Amount            `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount       *Amount            `json:"received_amount,omitempty" db:"received_amount"`
	Currency             *string            `json:"currency,omitempty" db:"currency"`
	AmountsMatch         *bool              `json:"amounts_match,omitempty" db:"amounts_match"`
	PaymentStatus        *string            `json:"payment_status,omitempty" db:"payment_status"`
	GatewayPaymentID     *string            `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	GatewayTransactionID *string            `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`
	RequestPayload       JSONB              `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload      JSONB              `json:"response_payload,omitempty" db:"response_payload"`
	HTTPStatusCode       *int               `json:"http_status_code,omitempty" db:"http_status_code"`
	HTTPMethod           *string            `json:"http_method,omitempty" db:"http_method"`
	EndpointURL          *string            `json:"endpoint_url,omitempty" db:"endpoint_url"`
	ErrorMessage         *string            `json:"error_message,omitempty" db:"error_message"`
	ProcessingTimeMs     *int               `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate          bool               `json:"is_duplicate" db:"is_duplicate"`
	IPAddress            *string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent            *string            `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType           *string            `json:"device_type,omitempty" db:"device_type"`
	RequestID            *string            `json:"request_id,omitempty" db:"request_id"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now().UTC(),
	}
}

// SetBooking links the audit to a booking and, if known, its track id
func (pa *PaymentAudit) SetBooking(bookingID int64, trackID *string) *PaymentAudit {
	pa.BookingID = &bookingID
	if trackID != nil && *trackID != "" {
		t := *trackID
		pa.TrackID = &t
	}
	return pa
}

// SetTrackID sets the track id for events where the booking is unknown
func (pa *PaymentAudit) SetTrackID(trackID string) *PaymentAudit {
	if trackID != "" {
		pa.TrackID = &trackID
	}
	return pa
}

// SetAmounts records expected and received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received Amount, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the resulting booking status or the bank's result code
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetGatewayIDs stores the bank's payment and transaction identifiers when present
func (pa *PaymentAudit) SetGatewayIDs(paymentID, transactionID string) *PaymentAudit {
	if paymentID != "" {
		pa.GatewayPaymentID = &paymentID
	}
	if transactionID != "" {
		pa.GatewayTransactionID = &transactionID
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetHTTPDetails sets HTTP request/response details
func (pa *PaymentAudit) SetHTTPDetails(method string, url string, statusCode int) *PaymentAudit {
	pa.HTTPMethod = &method
	pa.EndpointURL = &url
	if statusCode > 0 {
		pa.HTTPStatusCode = &statusCode
	}
	return pa
}

// SetRequestPayload sets the request payload. Callers strip secrets first.
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent, deviceType, requestID string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if deviceType != "" {
		pa.DeviceType = &deviceType
	}
	if requestID != "" {
		pa.RequestID = &requestID
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
