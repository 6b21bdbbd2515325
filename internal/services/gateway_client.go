package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// maxGatewayResponseBytes bounds how much of the bank's reply is read
const maxGatewayResponseBytes = 64 << 10

// GatewayClient sends an encrypted initiation to the bank
type GatewayClient interface {
	Initiate(ctx context.Context, envelope *EncryptedEnvelope) (*HostedPaymentRedirect, error)
}

// HostedPaymentRedirect is where the customer goes to pay
type HostedPaymentRedirect struct {
	PaymentID   string
	RedirectURL string
	StatusCode  int
}

// hostedPaymentResponse is one element of the bank's JSON array reply.
// status arrives as a string or a number depending on the environment.
type hostedPaymentResponse struct {
	Status    json.RawMessage `json:"status"`
	Result    string          `json:"result"`
	Error     string          `json:"error"`
	ErrorText string          `json:"errorText"`
}

// HostedGatewayClient posts encrypted_json envelopes to the hosted gateway
type HostedGatewayClient struct {
	client        *http.Client
	successStatus string
	logger        *logrus.Logger
}

// NewHostedGatewayClient creates a client with a bounded timeout
func NewHostedGatewayClient(timeout time.Duration, successStatus string, logger *logrus.Logger) *HostedGatewayClient {
	return &HostedGatewayClient{
		client:        &http.Client{Timeout: timeout},
		successStatus: successStatus,
		logger:        logger,
	}
}

// Initiate posts the envelope and parses "{paymentId}:{url}" from the reply
func (c *HostedGatewayClient) Initiate(ctx context.Context, envelope *EncryptedEnvelope) (*HostedPaymentRedirect, error) {
	if envelope == nil {
		return nil, &GatewayError{Kind: GatewayErrorMalformed, Message: "no envelope to send"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, envelope.Endpoint, bytes.NewReader(envelope.Body))
	if err != nil {
		return nil, &GatewayError{Kind: GatewayErrorTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		kind := GatewayErrorTransport
		if isTimeout(err) {
			kind = GatewayErrorTimeout
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"endpoint": envelope.Endpoint,
			"kind":     kind,
			"elapsed":  time.Since(start).String(),
		}).Error("Payment gateway call failed")
		return nil, &GatewayError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponseBytes))
	if err != nil {
		kind := GatewayErrorTransport
		if isTimeout(err) {
			kind = GatewayErrorTimeout
		}
		return nil, &GatewayError{Kind: kind, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"elapsed":     time.Since(start).String(),
	}).Info("Payment gateway response received")

	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{Kind: GatewayErrorStatus, StatusCode: resp.StatusCode}
	}

	var items []hostedPaymentResponse
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &GatewayError{Kind: GatewayErrorMalformed, StatusCode: resp.StatusCode, Message: "response is not a JSON array", Err: err}
	}
	if len(items) == 0 {
		return nil, &GatewayError{Kind: GatewayErrorMalformed, StatusCode: resp.StatusCode, Message: "empty response array"}
	}

	item := items[0]
	status := rawStatus(item.Status)
	if status != c.successStatus {
		msg := strings.TrimSpace(item.ErrorText)
		if msg == "" {
			msg = strings.TrimSpace(item.Error)
		}
		if msg == "" {
			msg = fmt.Sprintf("status %q", status)
		}
		return nil, &GatewayError{Kind: GatewayErrorRejected, StatusCode: resp.StatusCode, Message: msg}
	}

	paymentID, redirectURL, err := ParseHostedResult(item.Result)
	if err != nil {
		return nil, &GatewayError{Kind: GatewayErrorMalformed, StatusCode: resp.StatusCode, Err: err}
	}

	return &HostedPaymentRedirect{
		PaymentID:   paymentID,
		RedirectURL: redirectURL,
		StatusCode:  resp.StatusCode,
	}, nil
}

// ParseHostedResult splits "{paymentId}:{url}" on the first colon and returns
// the payment id and "{url}?PaymentID={paymentId}"
func ParseHostedResult(result string) (string, string, error) {
	paymentID, base, ok := strings.Cut(strings.TrimSpace(result), ":")
	paymentID = strings.TrimSpace(paymentID)
	base = strings.TrimSpace(base)
	if !ok || paymentID == "" || base == "" {
		return "", "", fmt.Errorf("result %q is not in paymentId:url form", result)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("redirect URL %q is not absolute", base)
	}

	query := u.Query()
	query.Set("PaymentID", paymentID)
	u.RawQuery = query.Encode()

	return paymentID, u.String(), nil
}

func rawStatus(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
