package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sogif-site/internal/kpi"
)

const maxDocumentBytes = 8 << 20

// HTTPOptions parameterise the content API loader.
type HTTPOptions struct {
	BaseURL   string
	Path      string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// HTTP loads the constants document from the content management API.
type HTTP struct {
	opts     HTTPOptions
	logger   zerolog.Logger
	client   *http.Client
	endpoint string
}

// NewHTTP constructs a content API loader.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	path := opts.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &HTTP{
		opts:     opts,
		logger:   logger.With().Str("component", "http_loader").Logger(),
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(opts.BaseURL, "/") + path,
	}
}

// Load fetches and validates the document.
func (h *HTTP) Load(ctx context.Context) (*kpi.Bundle, error) {
	if strings.TrimSpace(h.opts.BaseURL) == "" {
		return nil, Unavailable("http", fmt.Errorf("content api base url not configured"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return nil, Unavailable("http", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "sogif-site/1.0")
	}
	if h.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.Token)
	}

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, Unavailable("http", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, Unavailable("http", fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, Unavailable("http", parseHTTPError(resp.StatusCode, payload))
	}

	bundle, err := kpi.Decode(unwrapData(payload))
	if err != nil {
		return nil, Unavailable("http", err)
	}

	h.logger.Debug().
		Str("endpoint", h.endpoint).
		Int("rows", bundle.Len()).
		Dur("elapsed", time.Since(started)).
		Msg("constants document fetched")
	return bundle, nil
}

// unwrapData accepts both a bare document and the CMS envelope {"data": {...}}.
func unwrapData(payload []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return payload
	}
	if len(envelope.Data) > 0 && strings.HasPrefix(strings.TrimSpace(string(envelope.Data)), "{") {
		return envelope.Data
	}
	return payload
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("content api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("content api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("content api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("content api error (%d)", status)
}

var _ Loader = (*HTTP)(nil)
