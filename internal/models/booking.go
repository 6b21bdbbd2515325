package models

import (
	"time"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending            PaymentStatus = "Pending"
	PaymentStatusCompleted          PaymentStatus = "Completed"
	PaymentStatusFailed             PaymentStatus = "Failed"
	PaymentStatusVerificationFailed PaymentStatus = "VerificationFailed"
)

// IsTerminal reports whether no further transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// CanTransitionTo enforces Pending -> {Completed, Failed, VerificationFailed}
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s != PaymentStatusPending {
		return false
	}
	switch next {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusVerificationFailed:
		return true
	}
	return false
}

// Booking is a reservation against one trip package
type Booking struct {
	ID                   int64         `json:"id" db:"id"`
	ClientName           string        `json:"client_name" db:"client_name"`
	PhoneNumber          string        `json:"phone_number" db:"phone_number"`
	Email                string        `json:"email" db:"email"`
	Adults               int           `json:"adults" db:"adults"`
	Children             int           `json:"children" db:"children"`
	TripPackageID        int64         `json:"trip_package_id" db:"trip_package_id"`
	BookingDate          time.Time     `json:"booking_date" db:"booking_date"`
	PaymentStatus        PaymentStatus `json:"payment_status" db:"payment_status"`
	TrackID              *string       `json:"track_id,omitempty" db:"track_id"`
	PaymentInitiatedAt   *time.Time    `json:"payment_initiated_at,omitempty" db:"payment_initiated_at"`
	GatewayPaymentID     *string       `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	GatewayTransactionID *string       `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`
	AmountPaid           *Amount       `json:"amount_paid,omitempty" db:"amount_paid"`
	TotalAmountDue       Amount        `json:"total_amount_due" db:"total_amount_due"`
	RowVersion           int64         `json:"-" db:"row_version"`
}

// IsCompleted reports whether payment was confirmed
func (b *Booking) IsCompleted() bool {
	return b.PaymentStatus == PaymentStatusCompleted
}

// CanInitiatePayment reports whether a new gateway attempt may be issued
func (b *Booking) CanInitiatePayment() bool {
	return b.PaymentStatus == PaymentStatusPending
}

// BookingWithPackage is a booking joined with its package names for listings
type BookingWithPackage struct {
	Booking
	PackageName   string `json:"package_name" db:"package_name"`
	PackageNameAr string `json:"package_name_ar" db:"package_name_ar"`
}

// CreateBookingRequest is the public booking form
type CreateBookingRequest struct {
	TripPackageID int64  `json:"trip_package_id" form:"trip_package_id" binding:"required,min=1"`
	ClientName    string `json:"client_name" form:"client_name" binding:"required,max=100"`
	PhoneNumber   string `json:"phone_number" form:"phone_number" binding:"required,max=20"`
	Email         string `json:"email" form:"email" binding:"required,email,max=100"`
	Adults        int    `json:"adults" form:"adults" binding:"required,min=1,max=100"`
	Children      int    `json:"children" form:"children" binding:"min=0,max=100"`
}

// BookingTransition is a conditional status change written by reconciliation
type BookingTransition struct {
	BookingID            int64
	RowVersion           int64
	From                 PaymentStatus
	To                   PaymentStatus
	AmountPaid           *Amount
	GatewayPaymentID     *string
	GatewayTransactionID *string
}

// BookingSummary is what the payment result page shows
type BookingSummary struct {
	ID             int64         `json:"id"`
	ClientName     string        `json:"client_name"`
	PackageName    string        `json:"package_name"`
	PackageNameAr  string        `json:"package_name_ar"`
	Adults         int           `json:"adults"`
	Children       int           `json:"children"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	TotalAmountDue Amount        `json:"total_amount_due"`
	AmountPaid     *Amount       `json:"amount_paid,omitempty"`
	BookingDate    time.Time     `json:"booking_date"`
}

// Summary strips contact details and gateway identifiers
func (b *BookingWithPackage) Summary() *BookingSummary {
	return &BookingSummary{
		ID:             b.ID,
		ClientName:     b.ClientName,
		PackageName:    b.PackageName,
		PackageNameAr:  b.PackageNameAr,
		Adults:         b.Adults,
		Children:       b.Children,
		PaymentStatus:  b.PaymentStatus,
		TotalAmountDue: b.TotalAmountDue,
		AmountPaid:     b.AmountPaid,
		BookingDate:    b.BookingDate,
	}
}
