// Package gateway is the HTTP client for the remote odds and scores API.
// Calls never return Go errors; every outcome is a tagged Result.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	endpointOdds   = "odds"
	endpointScores = "scores"

	headerRequestsRemaining = "x-requests-remaining"
)

// Config holds the remote API settings
type Config struct {
	BaseURL string
	APIKey  string
	Regions string
	Timeout time.Duration
}

// Client talks to the odds provider
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	regions    string
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewClient creates a gateway client. A zero Timeout means 30 seconds.
func NewClient(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		regions:    cfg.Regions,
		metrics:    metrics,
		logger:     logger.With().Str("component", "odds_gateway").Logger(),
	}
}

// FetchOdds returns current head-to-head decimal odds for every upcoming event of a sport
func (c *Client) FetchOdds(ctx context.Context, sportKey string) Result[[]Event] {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", MarketH2H)
	q.Set("oddsFormat", "decimal")

	return get[[]Event](ctx, c, endpointOdds, fmt.Sprintf("/sports/%s/odds", url.PathEscape(sportKey)), q)
}

// FetchScores returns scores for the given events, looking back daysFrom days
func (c *Client) FetchScores(ctx context.Context, sportKey string, eventIDs []string, daysFrom int) Result[[]ScoreEvent] {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	if len(eventIDs) > 0 {
		q.Set("eventIds", strings.Join(eventIDs, ","))
	}
	if daysFrom > 0 {
		q.Set("daysFrom", strconv.Itoa(daysFrom))
	}

	return get[[]ScoreEvent](ctx, c, endpointScores, fmt.Sprintf("/sports/%s/scores", url.PathEscape(sportKey)), q)
}

func get[T any](ctx context.Context, c *Client, endpoint, path string, query url.Values) (res Result[T]) {
	ctx, span := observability.StartSpan(ctx, "gateway."+endpoint,
		attribute.String("gateway.path", path),
	)
	start := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.String("gateway.result", res.Kind.String()),
			attribute.Int("http.status_code", res.StatusCode),
		)
		observability.EndSpan(span, res.Err)

		c.metrics.GatewayRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		c.metrics.GatewayRequestsTotal.WithLabelValues(endpoint, res.Kind.String()).Inc()

		if !res.OK() {
			c.logger.Warn().Err(res.Err).
				Str("endpoint", endpoint).
				Str("kind", res.Kind.String()).
				Int("status", res.StatusCode).
				Msg("odds API call failed")
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return permanent[T](0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transient[T](0, fmt.Errorf("request %s: %w", endpoint, redact(err)))
	}
	defer resp.Body.Close()

	c.recordCredits(resp.Header)

	switch classifyStatus(resp.StatusCode) {
	case KindTransient:
		return transient[T](resp.StatusCode, statusError(resp))
	case KindPermanent:
		return permanent[T](resp.StatusCode, statusError(resp))
	}

	var value T
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		return permanent[T](resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err))
	}

	return success(value, resp.StatusCode)
}

func (c *Client) recordCredits(h http.Header) {
	raw := h.Get(headerRequestsRemaining)
	if raw == "" {
		return
	}
	remaining, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return
	}
	c.metrics.GatewayCreditsRemaining.Set(remaining)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("odds API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// redact strips the query string (which carries the API key) from url errors
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil {
			u.RawQuery = ""
			urlErr.URL = u.String()
		}
		return urlErr
	}
	return err
}
