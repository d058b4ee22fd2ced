package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTurnstileURL is Cloudflare's siteverify endpoint.
const DefaultTurnstileURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks a bot-challenge token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Turnstile verifies Cloudflare Turnstile tokens.
type Turnstile struct {
	secret   string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

func NewTurnstile(secret, endpoint string, timeout time.Duration, logger zerolog.Logger) *Turnstile {
	if endpoint == "" {
		endpoint = DefaultTurnstileURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Turnstile{
		secret:   secret,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "turnstile").Logger(),
	}
}

// Verify reports whether token passed the challenge. An empty token is a plain failure.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("create turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("turnstile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("turnstile returned status %d", resp.StatusCode)
	}

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode turnstile response: %w", err)
	}
	if !result.Success {
		t.logger.Debug().Strs("error_codes", result.ErrorCodes).Msg("turnstile rejected token")
	}
	return result.Success, nil
}

var _ Verifier = (*Turnstile)(nil)
