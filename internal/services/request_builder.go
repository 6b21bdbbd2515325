package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/pkg/integrity"
)

// Callback routes the bank posts back to
const (
	SuccessCallbackPath = "/payment/success"
	FailureCallbackPath = "/payment/failure"
)

// RequestOrigin is the scheme and host of the incoming request, used when no
// base URL is configured
type RequestOrigin struct {
	Scheme string
	Host   string
}

// CallbackURLs are the absolute URLs the bank redirects the customer to
type CallbackURLs struct {
	Success string
	Failure string
}

// FormField is one hidden input of the auto-submit page
type FormField struct {
	Name  string
	Value string
}

// FormPost is a form_post initiation: the browser posts Fields to ActionURL
type FormPost struct {
	ActionURL string
	Fields    []FormField
}

// EncryptedEnvelope is an encrypted_json initiation posted server to server
type EncryptedEnvelope struct {
	Endpoint string
	Body     []byte
}

// InitiationRequest is one signed or encrypted payment attempt
type InitiationRequest struct {
	Mode      string
	TrackID   string
	Amount    models.Amount
	Callbacks CallbackURLs
	Form      *FormPost
	Envelope  *EncryptedEnvelope

	auditFields map[string]interface{}
}

// AuditPayload returns the request fields without credentials, digest or ciphertext
func (r *InitiationRequest) AuditPayload() map[string]interface{} {
	out := make(map[string]interface{}, len(r.auditFields)+1)
	for k, v := range r.auditFields {
		out[k] = v
	}
	out["mode"] = r.Mode
	return out
}

// encryptedPaymentData is the plaintext encrypted into trandata. Field order follows the bank's samples.
type encryptedPaymentData struct {
	ID           string `json:"id"`
	Password     string `json:"password"`
	Action       string `json:"action"`
	CurrencyCode string `json:"currencyCode"`
	ErrorURL     string `json:"errorURL"`
	ResponseURL  string `json:"responseURL"`
	TrackID      string `json:"trackId"`
	Amount       string `json:"amt"`
	UDF1         string `json:"udf1"`
	UDF2         string `json:"udf2"`
	UDF5         string `json:"udf5"`
}

type encryptedEnvelopeBody struct {
	ID          string `json:"id"`
	TranData    string `json:"trandata"`
	ResponseURL string `json:"responseURL"`
	ErrorURL    string `json:"errorURL"`
}

// RequestBuilder assembles gateway initiation requests
type RequestBuilder struct {
	cfg      *config.GatewayConfig
	signer   *integrity.Signer
	cipher   *integrity.Cipher
	trackIDs *TrackIDGenerator
}

// NewRequestBuilder creates a builder. cipher may be nil when AES settings are
// unusable; encrypted_json requests then fail with a ConfigurationError.
func NewRequestBuilder(cfg *config.GatewayConfig, signer *integrity.Signer, cipher *integrity.Cipher, trackIDs *TrackIDGenerator) *RequestBuilder {
	return &RequestBuilder{
		cfg:      cfg,
		signer:   signer,
		cipher:   cipher,
		trackIDs: trackIDs,
	}
}

// Build issues a new track id and produces the request for the configured mode.
// Nothing is persisted here.
func (b *RequestBuilder) Build(booking *models.Booking, amount models.Amount, origin RequestOrigin) (*InitiationRequest, error) {
	callbacks, err := b.CallbackURLs(origin)
	if err != nil {
		return nil, err
	}
	if config.IsPlaceholder(b.cfg.GatewayURL) {
		return nil, &ConfigurationError{Setting: "PAYMENT_GATEWAY_URL", Err: errors.New("gateway URL not configured")}
	}

	req := &InitiationRequest{
		Mode:      b.cfg.Mode,
		TrackID:   b.trackIDs.Next(booking.ID),
		Amount:    amount,
		Callbacks: callbacks,
	}
	req.auditFields = map[string]interface{}{
		"track_id":      req.TrackID,
		"amount":        amount.String(),
		"currency_code": b.cfg.CurrencyCode,
		"action":        b.cfg.ActionCode,
		"response_url":  callbacks.Success,
		"error_url":     callbacks.Failure,
		"udf1":          strconv.FormatInt(booking.ID, 10),
	}

	switch b.cfg.Mode {
	case config.GatewayModeEncryptedJSON:
		req.Envelope, err = b.buildEnvelope(booking, req)
	default:
		req.Form, err = b.buildForm(booking, req)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CallbackURLs prefers the configured base URL and falls back to the request origin
func (b *RequestBuilder) CallbackURLs(origin RequestOrigin) (CallbackURLs, error) {
	base := strings.TrimRight(b.cfg.AppBaseURL, "/")
	if config.IsPlaceholder(base) {
		scheme := strings.ToLower(strings.TrimSpace(origin.Scheme))
		host := strings.TrimSpace(origin.Host)
		if host == "" {
			return CallbackURLs{}, &ConfigurationError{Setting: "APP_BASE_URL", Err: errors.New("no base URL and no request host")}
		}
		if scheme != "http" && scheme != "https" {
			scheme = "https"
		}
		base = scheme + "://" + host
	}

	return CallbackURLs{
		Success: base + SuccessCallbackPath,
		Failure: base + FailureCallbackPath,
	}, nil
}

func (b *RequestBuilder) buildForm(booking *models.Booking, req *InitiationRequest) (*FormPost, error) {
	amt := req.Amount.String()

	hash, err := b.signer.Sign(
		b.cfg.TranportalID,
		b.cfg.TranportalPassword,
		b.cfg.TerminalResourceKey,
		req.TrackID,
		amt,
		b.cfg.CurrencyCode,
		b.cfg.ActionCode,
		req.Callbacks.Success,
		req.Callbacks.Failure,
	)
	if err != nil {
		return nil, &ConfigurationError{Setting: "PAYMENT_SECURE_HASH_KEY", Err: err}
	}

	return &FormPost{
		ActionURL: b.cfg.GatewayURL,
		Fields: []FormField{
			{Name: "id", Value: b.cfg.TerminalID},
			{Name: "password", Value: b.cfg.TranportalPassword},
			{Name: "action", Value: b.cfg.ActionCode},
			{Name: "amt", Value: amt},
			{Name: "currencycode", Value: b.cfg.CurrencyCode},
			{Name: "trackid", Value: req.TrackID},
			{Name: "responseURL", Value: req.Callbacks.Success},
			{Name: "errorURL", Value: req.Callbacks.Failure},
			{Name: "udf1", Value: strconv.FormatInt(booking.ID, 10)},
			{Name: "udf2", Value: booking.ClientName},
			{Name: "udf5", Value: b.cfg.MerchantLabel},
			{Name: "hash", Value: hash},
		},
	}, nil
}

func (b *RequestBuilder) buildEnvelope(booking *models.Booking, req *InitiationRequest) (*EncryptedEnvelope, error) {
	if b.cipher == nil {
		return nil, &ConfigurationError{Setting: "PAYMENT_AES_KEY/PAYMENT_AES_IV", Err: integrity.ErrKeyNotConfigured}
	}

	plain, err := json.Marshal([]encryptedPaymentData{{
		ID:           b.cfg.TranportalID,
		Password:     b.cfg.TranportalPassword,
		Action:       b.cfg.ActionCode,
		CurrencyCode: b.cfg.CurrencyCode,
		ErrorURL:     req.Callbacks.Failure,
		ResponseURL:  req.Callbacks.Success,
		TrackID:      req.TrackID,
		Amount:       req.Amount.String(),
		UDF1:         strconv.FormatInt(booking.ID, 10),
		UDF2:         booking.ClientName,
		UDF5:         b.cfg.MerchantLabel,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment data: %w", err)
	}

	tranData, err := b.cipher.EncryptHex(string(plain))
	if err != nil {
		return nil, &ConfigurationError{Setting: "PAYMENT_AES_KEY/PAYMENT_AES_IV", Err: err}
	}

	body, err := json.Marshal([]encryptedEnvelopeBody{{
		ID:          b.cfg.TranportalID,
		TranData:    tranData,
		ResponseURL: req.Callbacks.Success,
		ErrorURL:    req.Callbacks.Failure,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment envelope: %w", err)
	}

	return &EncryptedEnvelope{Endpoint: b.cfg.GatewayURL, Body: body}, nil
}
