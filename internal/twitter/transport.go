package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
)

const (
	defaultTimeout = 30 * time.Second

	// Upstream signals rate limiting with 429 (too many requests) and the
	// legacy 420 (enhance your calm) on streaming endpoints.
	statusEnhanceYourCalm = 420
)

// Config holds transport settings.
type Config struct {
	BaseURL     string
	StreamURL   string
	Timeout     time.Duration
	Credentials Credentials
}

// Transport calls the upstream search and streaming endpoints and decodes
// responses into raw items. Rate-limit responses surface as
// crawl.RateLimitError so the client can back off.
type Transport struct {
	httpClient *http.Client
	baseURL    string
	streamURL  string
	creds      Credentials
	logger     *zap.Logger
}

// NewTransport creates a Transport. Credentials must be complete.
func NewTransport(cfg Config, logger *zap.Logger) (*Transport, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		streamURL:  cfg.StreamURL,
		creds:      cfg.Credentials,
		logger:     logger,
	}, nil
}

// Search fetches up to limit recent items matching the query in the given
// language. Items are returned in full-text mode so truncated bodies keep
// their extended payloads.
func (t *Transport) Search(ctx context.Context, query, language string, limit int) ([]crawl.RawItem, error) {
	endpoint, err := url.Parse(t.baseURL + "/search/tweets.json")
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("lang", language)
	// A non-positive limit means "as many as the API naturally returns";
	// sending count=0 would cap every result set at zero.
	if limit > 0 {
		params.Set("count", strconv.Itoa(limit))
	}
	params.Set("tweet_mode", "extended")
	params.Set("include_entities", "true")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	t.authorize(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, statusEnhanceYourCalm:
		io.Copy(io.Discard, resp.Body)
		return nil, &crawl.RateLimitError{StatusCode: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Statuses []crawl.RawItem `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.Statuses, nil
}

// authorize attaches credentials. Request signing is handled by the API
// gateway in front of the upstream; only the tokens travel here.
func (t *Transport) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+t.creds.AccessToken)
	req.Header.Set("X-Api-Key", t.creds.APIKey)
}
