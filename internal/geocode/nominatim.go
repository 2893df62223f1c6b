package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"task-wizard/internal/taskform"
)

// DefaultNominatimURL is the public OpenStreetMap instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimConfig configures a NominatimClient.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Language  string
	Timeout   time.Duration
	// RequestsPerSecond paces outgoing requests; <= 0 disables pacing.
	RequestsPerSecond float64
	Metrics           *Metrics
	HTTPClient        *http.Client
}

// NominatimClient talks to a Nominatim compatible geocoding API.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	language   string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *Metrics
}

// NewNominatimClient creates a client. Zero values fall back to defaults.
func NewNominatimClient(cfg NominatimConfig) *NominatimClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultNominatimURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "task-wizard/1.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &NominatimClient{
		baseURL:    base,
		userAgent:  ua,
		language:   cfg.Language,
		timeout:    timeout,
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    cfg.Metrics,
	}
}

type reversePayload struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

type searchHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Reverse resolves a coordinate through /reverse.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lng float64) (addr Address, err error) {
	start := time.Now()
	defer func() { c.metrics.observe("reverse", start, err) }()

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var payload reversePayload
	if err = c.get(ctx, "/reverse", q, &payload); err != nil {
		return Address{}, err
	}
	if payload.Error != "" {
		return Address{}, fmt.Errorf("%w: %s", ErrNoAddress, payload.Error)
	}
	if payload.DisplayName == "" {
		return Address{}, ErrNoAddress
	}
	return Address{
		Name:    shortName(payload.Name, payload.DisplayName),
		Details: payload.DisplayName,
	}, nil
}

// Forward resolves a query through /search and returns the first hit.
func (c *NominatimClient) Forward(ctx context.Context, query string) (coord taskform.Coordinate, found bool, err error) {
	start := time.Now()
	defer func() { c.metrics.observe("search", start, err) }()

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)

	var hits []searchHit
	if err = c.get(ctx, "/search", q, &hits); err != nil {
		return taskform.Coordinate{}, false, err
	}
	if len(hits) == 0 {
		return taskform.Coordinate{}, false, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return taskform.Coordinate{}, false, fmt.Errorf("parsing lat %q: %w", hits[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return taskform.Coordinate{}, false, fmt.Errorf("parsing lon %q: %w", hits[0].Lon, err)
	}
	return taskform.Coordinate{Lat: lat, Lng: lng}, true, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, query url.Values, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("geocoder error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}
