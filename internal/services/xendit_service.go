package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

type XenditConfig struct {
	// Secret API key, sent as the Basic auth username with an empty password.
	SecretKey string

	// Acquiring base, e.g. https://api.xendit.co
	BaseURL string

	// Shared token the gateway echoes back in the x-callback-token header.
	CallbackToken string

	// Where to return the customer after checkout (front).
	SuccessBackURL string
	FailureBackURL string

	// Fallback payer email when the caller has none.
	DefaultEmail string

	Client *http.Client
	Logger *slog.Logger
}

type XenditService struct {
	secretKey     string
	baseURL       *url.URL
	callbackToken string

	successBackURL string
	failureBackURL string
	defEmail       string

	httpClient *http.Client
	logger     *slog.Logger
}

func NewXenditService(cfg XenditConfig) (*XenditService, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("xendit: secret_key/base_url are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	s := &XenditService{
		secretKey:      cfg.SecretKey,
		baseURL:        u,
		callbackToken:  cfg.CallbackToken,
		successBackURL: cfg.SuccessBackURL,
		failureBackURL: cfg.FailureBackURL,
		defEmail:       cfg.DefaultEmail,
		httpClient:     client,
		logger:         logger,
	}
	logger.Info("Xendit initialized",
		"baseURL", safeURL(s.baseURL),
		"successBackURL_set", s.successBackURL != "",
		"failureBackURL_set", s.failureBackURL != "",
		"callbackToken_set", s.callbackToken != "",
	)
	return s, nil
}

// ------- HOSTED INVOICES -------

type invoiceRequest struct {
	ExternalID         string  `json:"external_id"`
	Amount             float64 `json:"amount"`
	PayerEmail         string  `json:"payer_email,omitempty"`
	Description        string  `json:"description,omitempty"`
	Currency           string  `json:"currency"`
	SuccessRedirectURL string  `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string  `json:"failure_redirect_url,omitempty"`
}

type invoiceResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoice_url"`
}

// CheckoutSession is what the rest of the system sees of the gateway invoice.
type CheckoutSession struct {
	GatewayInvoiceID string          `json:"gateway_invoice_id"`
	ExternalID       string          `json:"external_id"`
	CheckoutURL      string          `json:"checkout_url"`
	Status           string          `json:"status"`
	Raw              json.RawMessage `json:"-"`
}

// CreateCheckoutInvoice creates a hosted invoice and returns its checkout URL.
// externalID is generated by the caller and must be fresh for every attempt.
func (s *XenditService) CreateCheckoutInvoice(ctx context.Context, externalID string, amount float64, payerEmail, description string) (*CheckoutSession, error) {
	logger := s.logger.With("op", "CreateCheckoutInvoice")

	endpoint := *s.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/v2/invoices")

	if strings.TrimSpace(payerEmail) == "" {
		payerEmail = s.defEmail
	}
	reqBody := invoiceRequest{
		ExternalID:         externalID,
		Amount:             amount,
		PayerEmail:         payerEmail,
		Description:        description,
		Currency:           "IDR",
		SuccessRedirectURL: s.successBackURL,
		FailureRedirectURL: s.failureBackURL,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoices request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	logger.Debug("invoices raw", "status", resp.Status, "body", trim(string(b), 2000))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &XenditError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}

	var out invoiceResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode invoices: %w", err)
	}
	if strings.TrimSpace(out.InvoiceURL) == "" || strings.TrimSpace(out.ID) == "" {
		return nil, fmt.Errorf("invoices: empty invoice_url or id")
	}

	return &CheckoutSession{
		GatewayInvoiceID: out.ID,
		ExternalID:       externalID,
		CheckoutURL:      out.InvoiceURL,
		Status:           strings.ToLower(out.Status),
		Raw:              json.RawMessage(b),
	}, nil
}

// GetInvoiceStatus polls the gateway for the live status of the invoice
// correlated by externalID. Used by the webhook path (the callback body is
// treated as a hint only) and by manual refresh.
func (s *XenditService) GetInvoiceStatus(ctx context.Context, externalID string) (string, error) {
	endpoint := *s.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/v2/invoices")
	q := endpoint.Query()
	q.Set("external_id", externalID)
	endpoint.RawQuery = q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	req.SetBasicAuth(s.secretKey, "")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoice status request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &XenditError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}

	var out []invoiceResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode invoice status: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("invoice status: no invoice for external_id %s", externalID)
	}
	return strings.ToLower(out[0].Status), nil
}

// ------- CALLBACK (webhook) -------

type WebhookPayload struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Amount     float64         `json:"amount"`
	Status     string          `json:"status"`
	Raw        json.RawMessage `json:"-"`
}

func (p *WebhookPayload) UnmarshalJSON(data []byte) error {
	type rawPayload struct {
		ID              string  `json:"id"`
		ExternalID      string  `json:"external_id"`
		ExternalIDCamel string  `json:"externalId"`
		Amount          float64 `json:"amount"`
		Status          string  `json:"status"`
	}

	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	externalID := strings.TrimSpace(raw.ExternalID)
	if externalID == "" {
		externalID = strings.TrimSpace(raw.ExternalIDCamel)
	}

	p.ID = strings.TrimSpace(raw.ID)
	p.ExternalID = externalID
	p.Amount = raw.Amount
	p.Status = strings.TrimSpace(raw.Status)
	return nil
}

// ValidateCallbackToken checks the x-callback-token header the gateway sends
// with every webhook delivery.
func (s *XenditService) ValidateCallbackToken(r *http.Request) bool {
	if s.callbackToken == "" {
		return false
	}
	got := r.Header.Get("x-callback-token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.callbackToken)) == 1
}

func (s *XenditService) ParseCallback(r io.Reader) (*WebhookPayload, error) {
	if s == nil {
		return nil, fmt.Errorf("xendit service is not initialised")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read callback body: %w", err)
	}
	var p WebhookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode callback: %w", err)
	}
	p.Raw = json.RawMessage(data)
	return &p, nil
}

// ---------- helpers ----------

func trim(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

func safeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.User = nil
	return c.String()
}

type XenditError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *XenditError) Error() string {
	if e == nil {
		return "<nil>"
	}
	bt := strings.TrimSpace(e.Body)
	if bt == "" {
		return fmt.Sprintf("xendit error: %s", e.Status)
	}
	return fmt.Sprintf("xendit error: %s: %s", e.Status, bt)
}
