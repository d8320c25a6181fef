// Package scoring is the HTTP client for the external scoring and geocoding
// backend.  Responses are treated as partially trustworthy: missing fields
// are defaulted, error payloads become typed errors, and nothing from the
// wire reaches the user unfiltered.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// minGeocodeQuery guards the suggestion endpoint against noise queries.
const minGeocodeQuery = 3

// Config tunes the client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration // per attempt
	MaxAttempts    int
	RetryBackoff   time.Duration // multiplied by the attempt number
}

// Client calls the scoring backend.
type Client struct {
	cfg     Config
	http    *http.Client
	log     logging.Logger
	metrics *prometheus.Metrics // optional
}

// NewClient constructs a Client.  metrics may be nil.
func NewClient(cfg Config, log logging.Logger, metrics *prometheus.Metrics) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		log:     log.Named("scoring"),
		metrics: metrics,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire shapes
// ─────────────────────────────────────────────────────────────────────────────

type scoreRequest struct {
	BusinessType string         `json:"business_type"`
	Locations    []locationWire `json:"locations"`
}

type locationWire struct {
	ID      string  `json:"id"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type scoreResponse struct {
	Error   string       `json:"error,omitempty"`
	Results []resultWire `json:"results"`
}

type resultWire struct {
	LocationID string             `json:"location_id"`
	TotalScore *float64           `json:"total_score"`
	SubScores  location.SubScores `json:"sub_scores"`
	Details    location.Details   `json:"details"`
}

type scanRequest struct {
	BusinessType string     `json:"business_type"`
	Province     string     `json:"province"`
	District     string     `json:"district"`
	Neighborhood string     `json:"neighborhood"`
	Bounds       geo.Bounds `json:"bounds"`
}

type scanResponse struct {
	Error        string            `json:"error,omitempty"`
	Samples      []sampleWire      `json:"samples"`
	TopLocations []topLocationWire `json:"top_locations"`
}

type sampleWire struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Score float64 `json:"score"`
}

type topLocationWire struct {
	Name      string             `json:"name"`
	Lat       float64            `json:"lat"`
	Lng       float64            `json:"lng"`
	Score     *float64           `json:"score"`
	SubScores location.SubScores `json:"sub_scores"`
}

type geocodeResponse struct {
	Error   string `json:"error,omitempty"`
	Results []struct {
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
	} `json:"results"`
}

// RegionSample is one scored grid point from a region scan.
type RegionSample struct {
	Position geo.LatLng `json:"position"`
	Score    float64    `json:"score"`
}

// NamedLocation is a named high-potential spot returned by a region scan.
type NamedLocation struct {
	Name      string             `json:"name"`
	Position  geo.LatLng         `json:"position"`
	Score     float64            `json:"score"`
	SubScores location.SubScores `json:"sub_scores"`
}

// RegionScan is the decoded result of ScanRegion.
type RegionScan struct {
	Samples      []RegionSample  `json:"samples"`
	TopLocations []NamedLocation `json:"top_locations"`
}

// GeocodeResult is one address suggestion.
type GeocodeResult struct {
	Address  string     `json:"address"`
	Position geo.LatLng `json:"position"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

// ScorePoints scores a set of candidate locations for a business type.
// Result fields missing from the payload are defaulted, never trusted.
func (c *Client) ScorePoints(ctx context.Context, businessType string, locs []location.Location) ([]location.AnalysisResult, error) {
	req := scoreRequest{BusinessType: businessType}
	for _, l := range locs {
		req.Locations = append(req.Locations, locationWire{
			ID: l.ID, Address: l.Address, Lat: l.Position.Lat, Lng: l.Position.Lng,
		})
	}

	var resp scoreResponse
	if err := c.post(ctx, "score", "/api/v1/score", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, apperrors.API("scoring backend reported an error").WithDetail(resp.Error)
	}

	byID := make(map[string]location.Location, len(locs))
	for _, l := range locs {
		byID[l.ID] = l
	}

	out := make([]location.AnalysisResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		src, known := byID[r.LocationID]
		if !known {
			// Unsolicited result; drop rather than surface unknown rows.
			c.log.Warn("dropping result for unknown location",
				logging.String("location_id", r.LocationID))
			continue
		}
		score := 0.0
		if r.TotalScore != nil {
			score = clampScore(*r.TotalScore)
		}
		out = append(out, location.AnalysisResult{
			LocationID: r.LocationID,
			Address:    src.Address,
			Position:   src.Position,
			TotalScore: score,
			SubScores:  r.SubScores,
			Details:    r.Details,
		})
	}
	return out, nil
}

// ScanRegion scores a neighborhood-sized area for a business type.
func (c *Client) ScanRegion(ctx context.Context, businessType string, path region.Path, bounds geo.Bounds) (*RegionScan, error) {
	req := scanRequest{
		BusinessType: businessType,
		Province:     path.Province,
		District:     path.District,
		Neighborhood: path.Neighborhood,
		Bounds:       bounds,
	}

	var resp scanResponse
	if err := c.post(ctx, "scan", "/api/v1/scan_region", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, apperrors.API("scoring backend reported an error").WithDetail(resp.Error)
	}

	scan := &RegionScan{}
	for _, s := range resp.Samples {
		p := geo.LatLng{Lat: s.Lat, Lng: s.Lng}
		if !p.Valid() || p.IsZero() {
			continue
		}
		scan.Samples = append(scan.Samples, RegionSample{Position: p, Score: clampScore(s.Score)})
	}
	for _, tl := range resp.TopLocations {
		name := tl.Name
		if name == "" {
			name = "Unnamed area"
		}
		score := 0.0
		if tl.Score != nil {
			score = clampScore(*tl.Score)
		}
		scan.TopLocations = append(scan.TopLocations, NamedLocation{
			Name:      name,
			Position:  geo.LatLng{Lat: tl.Lat, Lng: tl.Lng},
			Score:     score,
			SubScores: tl.SubScores,
		})
	}
	return scan, nil
}

// Geocode resolves an address query to candidate coordinates.  Queries
// shorter than three characters return no results without a backend call.
func (c *Client) Geocode(ctx context.Context, query string) ([]GeocodeResult, error) {
	if len([]rune(query)) < minGeocodeQuery {
		return nil, nil
	}

	var resp geocodeResponse
	payload := map[string]string{"query": query}
	if err := c.post(ctx, "geocode", "/api/v1/geocode", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, apperrors.API("geocoding backend reported an error").WithDetail(resp.Error)
	}

	out := make([]GeocodeResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := geo.LatLng{Lat: r.Lat, Lng: r.Lng}
		if r.Address == "" || !p.Valid() || p.IsZero() {
			continue
		}
		out = append(out, GeocodeResult{Address: r.Address, Position: p})
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────────────────

// post sends a JSON request with retry.  Retries cover transport failures
// and 5xx responses with linear backoff; 4xx responses fail immediately.
func (c *Client) post(ctx context.Context, operation, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeSerialization, "request encode failed")
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return c.classifyCtx(ctx.Err())
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt-1)):
			}
		}

		start := time.Now()
		err := c.doOnce(ctx, path, encoded, out)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			c.observe(operation, "ok", elapsed)
			return nil
		case apperrors.IsCode(err, apperrors.CodeTimeout):
			c.observe(operation, "timeout", elapsed)
		default:
			c.observe(operation, "error", elapsed)
		}

		if !retryable(err) {
			return err
		}
		lastErr = err
		c.log.Warn("scoring call failed, will retry",
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Err(err))
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "request build failed")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperrors.Wrap(err, apperrors.CodeTimeout, "scoring backend timed out")
		}
		return apperrors.Wrap(err, apperrors.CodeNetwork, "scoring backend unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeNetwork, "response read failed")
	}

	switch {
	case resp.StatusCode >= 500:
		return apperrors.Wrap(&statusError{code: resp.StatusCode},
			apperrors.CodeAPI, "scoring backend error")
	case resp.StatusCode >= 400:
		return apperrors.Wrap(&statusError{code: resp.StatusCode},
			apperrors.CodeAPI, "scoring backend rejected the request")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Wrap(err, apperrors.CodeAPI, "malformed scoring response")
	}
	return nil
}

func (c *Client) classifyCtx(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.CodeTimeout, "scoring backend timed out")
	}
	return apperrors.Wrap(err, apperrors.CodeNetwork, "request cancelled")
}

// statusError carries a non-2xx HTTP status through the error chain.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("status %d", e.code) }

// retryable reports whether another attempt can help: transport failures,
// timeouts, and 5xx yes; 4xx and decode failures no.
func retryable(err error) bool {
	if apperrors.IsCode(err, apperrors.CodeNetwork) || apperrors.IsCode(err, apperrors.CodeTimeout) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code >= 500
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func (c *Client) observe(operation, status string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveBoundary(operation, status, elapsed)
	}
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
