// Package geocoder calls a Nominatim-compatible search endpoint.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"unitedhelp/internal/location"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/sentinel"
)

const defaultTimeout = 5 * time.Second

// HTTPGeocoder issues GET {baseURL}?q=...&format=json&limit=1.
type HTTPGeocoder struct {
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

type Option func(*HTTPGeocoder)

func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGeocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGeocoder) {
		g.client = c
	}
}

func New(baseURL string, opts ...Option) *HTTPGeocoder {
	g := &HTTPGeocoder{
		baseURL:   baseURL,
		client:    http.DefaultClient,
		timeout:   defaultTimeout,
		userAgent: "unitedhelp-geocoder/1.0",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// place mirrors the search response, where coordinates arrive as strings.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (g *HTTPGeocoder) Resolve(ctx context.Context, query string) (*location.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalid geocoder url")
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build geocoder request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "geocoder timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternalFailure, "geocoder request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, dErrors.New(dErrors.CodeExternalFailure, fmt.Sprintf("geocoder returned status %d", resp.StatusCode))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalFailure, "decode geocoder response")
	}
	if len(places) == 0 {
		return nil, sentinel.ErrNotFound
	}

	lat, latErr := strconv.ParseFloat(places[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(places[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, dErrors.New(dErrors.CodeExternalFailure, "geocoder returned malformed coordinates")
	}
	return &location.Result{Lat: lat, Lon: lon, Display: places[0].DisplayName}, nil
}
