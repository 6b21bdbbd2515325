package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_Transitions(t *testing.T) {
	all := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusVerificationFailed,
	}

	for _, from := range all {
		for _, to := range all {
			allowed := from == PaymentStatusPending && to != PaymentStatusPending
			assert.Equal(t, allowed, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.True(t, PaymentStatusCompleted.IsTerminal())
	assert.True(t, PaymentStatusFailed.IsTerminal())
	assert.True(t, PaymentStatusVerificationFailed.IsTerminal())
}

func TestTripPackage_EffectivePrice(t *testing.T) {
	pkg := &TripPackage{PriceBeforeDiscount: NewAmount(500, 0)}
	assert.Equal(t, NewAmount(500, 0), pkg.EffectivePrice())
	assert.False(t, pkg.HasDiscount())

	discounted := NewAmount(450, 0)
	pkg.PriceAfterDiscount = &discounted
	assert.Equal(t, discounted, pkg.EffectivePrice())
	assert.True(t, pkg.HasDiscount())

	free := Amount(0)
	pkg.PriceAfterDiscount = &free
	assert.Equal(t, Amount(0), pkg.EffectivePrice())
}

func TestTripPackageRequest_Validate(t *testing.T) {
	before := NewAmount(500, 0)
	after := NewAmount(450, 0)
	req := &TripPackageRequest{PriceBeforeDiscount: before, PriceAfterDiscount: &after}
	assert.NoError(t, req.Validate())

	equal := before
	req.PriceAfterDiscount = &equal
	assert.NoError(t, req.Validate())

	above := NewAmount(500, 1)
	req.PriceAfterDiscount = &above
	assert.ErrorIs(t, req.Validate(), ErrDiscountAboveBase)
}

func TestTripPackageRequest_ToTripPackage(t *testing.T) {
	blank := "   "
	inactive := false
	req := &TripPackageRequest{
		Name:                " AlUla Escape ",
		NameAr:              "رحلة العلا",
		DestinationCountry:  "Saudi Arabia",
		DurationDays:        3,
		PriceBeforeDiscount: NewAmount(500, 0),
		ImageURL:            &blank,
		RowVersion:          4,
	}

	pkg := req.ToTripPackage(7)
	assert.Equal(t, int64(7), pkg.ID)
	assert.Equal(t, "AlUla Escape", pkg.Name)
	assert.True(t, pkg.IsActive)
	assert.Nil(t, pkg.ImageURL)
	assert.Equal(t, int64(4), pkg.RowVersion)

	req.IsActive = &inactive
	assert.False(t, req.ToTripPackage(7).IsActive)
}

func TestPaymentAudit_Builder(t *testing.T) {
	track := "ALM-42-1"
	audit := NewPaymentAudit(PaymentEventSuccess, PaymentSourceGatewayCallback).
		SetBooking(42, &track).
		SetGatewayIDs("PID", "").
		SetMetadata("10.0.0.1", "", "mobile", "req-1")

	require.NotNil(t, audit.BookingID)
	assert.Equal(t, int64(42), *audit.BookingID)
	assert.Equal(t, "ALM-42-1", *audit.TrackID)
	assert.Equal(t, "PID", *audit.GatewayPaymentID)
	assert.Nil(t, audit.GatewayTransactionID)
	assert.Nil(t, audit.UserAgent)
	assert.Equal(t, "mobile", *audit.DeviceType)

	assert.True(t, audit.SetAmounts(45000, 45000, "SAR"))
	assert.False(t, audit.SetAmounts(45000, 44999, "SAR"))
	assert.False(t, *audit.AmountsMatch)
}

func TestJSONB_ValueScan(t *testing.T) {
	value, err := JSONB{"trackid": "ALM-1-1"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"trackid":"ALM-1-1"}`, value.(string))

	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"a":"b"}`)))
	assert.Equal(t, "b", j["a"])

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	nilValue, err := JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, nilValue)
}
