package models

import (
	"errors"
	"strings"
)

// ErrDiscountAboveBase indicates a discounted price higher than the base price
var ErrDiscountAboveBase = errors.New("price after discount cannot exceed price before discount")

// TripPackage is a catalog entry customers can book
type TripPackage struct {
	ID                   int64   `json:"id" db:"id"`
	Name                 string  `json:"name" db:"name"`
	NameAr               string  `json:"name_ar" db:"name_ar"`
	Description          string  `json:"description" db:"description"`
	DescriptionAr        string  `json:"description_ar" db:"description_ar"`
	DestinationCountry   string  `json:"destination_country" db:"destination_country"`
	DestinationCountryAr string  `json:"destination_country_ar" db:"destination_country_ar"`
	DurationDays         int     `json:"duration_days" db:"duration_days"`
	PriceBeforeDiscount  Amount  `json:"price_before_discount" db:"price_before_discount"`
	PriceAfterDiscount   *Amount `json:"price_after_discount,omitempty" db:"price_after_discount"`
	ImageURL             *string `json:"image_url,omitempty" db:"image_url"`
	IsActive             bool    `json:"is_active" db:"is_active"`
	RowVersion           int64   `json:"row_version" db:"row_version"`
}

// EffectivePrice is the per-adult price a booking is charged
func (p *TripPackage) EffectivePrice() Amount {
	if p.PriceAfterDiscount != nil {
		return *p.PriceAfterDiscount
	}
	return p.PriceBeforeDiscount
}

// HasDiscount reports whether a discounted price below the base price is set
func (p *TripPackage) HasDiscount() bool {
	return p.PriceAfterDiscount != nil && *p.PriceAfterDiscount < p.PriceBeforeDiscount
}

// TripPackageRequest is the admin create/edit payload
type TripPackageRequest struct {
	Name                 string  `json:"name" binding:"required,max=100"`
	NameAr               string  `json:"name_ar" binding:"required,max=150"`
	Description          string  `json:"description" binding:"required"`
	DescriptionAr        string  `json:"description_ar" binding:"required"`
	DestinationCountry   string  `json:"destination_country" binding:"required,max=50"`
	DestinationCountryAr string  `json:"destination_country_ar" binding:"required,max=70"`
	DurationDays         int     `json:"duration_days" binding:"required,min=1,max=90"`
	PriceBeforeDiscount  Amount  `json:"price_before_discount" binding:"required,min=1"`
	PriceAfterDiscount   *Amount `json:"price_after_discount" binding:"omitempty,min=0"`
	ImageURL             *string `json:"image_url" binding:"omitempty,max=255"`
	IsActive             *bool   `json:"is_active"`
	RowVersion           int64   `json:"row_version"`
}

// Validate applies the cross-field rules binding tags cannot express
func (r *TripPackageRequest) Validate() error {
	if r.PriceAfterDiscount != nil && *r.PriceAfterDiscount > r.PriceBeforeDiscount {
		return ErrDiscountAboveBase
	}
	return nil
}

// ToTripPackage copies the request onto a package, defaulting IsActive to true
func (r *TripPackageRequest) ToTripPackage(id int64) *TripPackage {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	var image *string
	if r.ImageURL != nil {
		if trimmed := strings.TrimSpace(*r.ImageURL); trimmed != "" {
			image = &trimmed
		}
	}

	return &TripPackage{
		ID:                   id,
		Name:                 strings.TrimSpace(r.Name),
		NameAr:               strings.TrimSpace(r.NameAr),
		Description:          r.Description,
		DescriptionAr:        r.DescriptionAr,
		DestinationCountry:   strings.TrimSpace(r.DestinationCountry),
		DestinationCountryAr: strings.TrimSpace(r.DestinationCountryAr),
		DurationDays:         r.DurationDays,
		PriceBeforeDiscount:  r.PriceBeforeDiscount,
		PriceAfterDiscount:   r.PriceAfterDiscount,
		ImageURL:             image,
		IsActive:             active,
		RowVersion:           r.RowVersion,
	}
}
