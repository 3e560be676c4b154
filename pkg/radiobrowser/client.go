// Package radiobrowser is a small client for the radio-browser.info station
// directory.
package radiobrowser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL   = "https://de1.api.radio-browser.info"
	DefaultUserAgent = "radiogo"

	// maxResponseSize bounds the JSON body of one search.
	maxResponseSize = 8 * 1024 * 1024
)

var tracer = otel.Tracer("radiobrowser")

type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// New returns a client for the directory at baseURL. Timeouts are left to the
// caller's context.
func New(baseURL, userAgent string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{},
		logger:    logger,
	}
}

// Search returns the stations matching q in directory order.
func (c *Client) Search(ctx context.Context, q Query) ([]Station, error) {
	ctx, span := tracer.Start(ctx, "radiobrowser.Search")
	span.SetAttributes(
		attribute.String("query.name", q.Name),
		attribute.Int("query.limit", q.Limit),
	)

	defer span.End()

	c.logger.Debug("searching directory", "name", q.Name, "limit", q.Limit)

	stations, err := c.search(ctx, q)
	if err != nil {
		// Failures are logged by the caller.
		span.RecordError(err)
		span.SetStatus(codes.Error, "station search failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("results", len(stations)))
	span.SetStatus(codes.Ok, "ok")

	return stations, nil
}

func (c *Client) search(ctx context.Context, q Query) ([]Station, error) {
	params := url.Values{}
	params.Set("name", q.Name)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/stations/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var stations []Station
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&stations); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return stations, nil
}
