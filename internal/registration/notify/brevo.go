// Package notify delivers the access code email through Brevo's
// transactional API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nftform/internal/platform/config"
	"nftform/internal/registration/models"
	"nftform/pkg/email"
	"nftform/pkg/requestcontext"
)

// ErrMissingAPIKey is returned without contacting Brevo when no key is configured.
var ErrMissingAPIKey = errors.New("brevo api key is not configured")

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// BrevoClient sends templated transactional emails. It never retries.
type BrevoClient struct {
	apiKey     string
	templateID int64
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a BrevoClient.
type Option func(*BrevoClient)

// WithHTTPClient replaces the default client, e.g. to point tests at httptest.
func WithHTTPClient(c *http.Client) Option {
	return func(b *BrevoClient) {
		b.httpClient = c
	}
}

// WithEndpoint overrides the configured API URL.
func WithEndpoint(url string) Option {
	return func(b *BrevoClient) {
		b.endpoint = url
	}
}

// NewBrevoClient builds a client from cfg. The HTTP client timeout mirrors
// cfg.Timeout; callers normally also bound the context.
func NewBrevoClient(cfg config.BrevoConfig, logger *slog.Logger, opts ...Option) *BrevoClient {
	b := &BrevoClient{
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

type recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sendRequest struct {
	To         []recipient       `json:"to"`
	TemplateID int64             `json:"templateId"`
	Params     map[string]string `json:"params"`
}

// SendAccessCode emails the access code and the submitted prompt to the
// registrant. Any non-2xx answer is an error carrying Brevo's response body.
func (b *BrevoClient) SendAccessCode(ctx context.Context, n models.AccessCodeNotification) error {
	if b.apiKey == "" {
		return ErrMissingAPIKey
	}

	name := n.Name
	if name == "" {
		name = email.DisplayName(n.Email)
	}
	payload, err := json.Marshal(sendRequest{
		To:         []recipient{{Email: n.Email, Name: name}},
		TemplateID: b.templateID,
		Params: map[string]string{
			"ORDERCODE": n.AccessCode,
			"CONTENT":   n.Prompt,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")

	reqID := uuid.NewString()
	start := time.Now()
	b.logger.InfoContext(ctx, "brevo request sent",
		"brevo_req_id", reqID,
		"request_id", requestcontext.RequestID(ctx),
		"template_id", b.templateID,
	)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.ErrorContext(ctx, "brevo request failed",
			"brevo_req_id", reqID,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return fmt.Errorf("call brevo: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	b.logger.InfoContext(ctx, "brevo response received",
		"brevo_req_id", reqID,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
