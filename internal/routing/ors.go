package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the OpenRouteService v2 directions endpoint. The
	// profile and response format are appended per request.
	DefaultBaseURL = "https://api.openrouteservice.org/v2/directions"

	// DefaultTimeout bounds a single directions call. It stays below the
	// default request timeout so a fallback route can still be stored.
	DefaultTimeout = 8 * time.Second

	// maxErrorBody caps how much of a failed response body is kept for
	// diagnostics.
	maxErrorBody = 2048

	// httpMaxIdleConns is the maximum number of idle (keep-alive) connections
	// kept in the transport pool.
	httpMaxIdleConns = 10

	// httpIdleConnTimeout is how long an idle connection is kept in the pool.
	httpIdleConnTimeout = 30 * time.Second
)

// Config configures the OpenRouteService client.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // defaults to DefaultTimeout
}

// ORSClient implements DirectionsClient against the OpenRouteService
// directions API, requesting GeoJSON output.
type ORSClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewORSClient creates a DirectionsClient for OpenRouteService.
func NewORSClient(cfg Config) *ORSClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdleConns,
		IdleConnTimeout:     httpIdleConnTimeout,
	}
	return &ORSClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Directions requests a route between start and end ([lng, lat]) and returns
// the first feature of the response. Every failure is a *RoutingError.
func (c *ORSClient) Directions(ctx context.Context, profile Profile, start, end []float64) (*RouteResult, error) {
	fail := func(err error) error { return &RoutingError{Profile: profile, Err: err} }

	bodyBytes, err := json.Marshal(orsRequest{Coordinates: [][]float64{start, end}})
	if err != nil {
		return nil, fail(fmt.Errorf("marshal request: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/geojson", c.baseURL, profile)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fail(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fail(fmt.Errorf("http: %w", err))
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fail(fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		body := string(respBytes)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &RoutingError{Profile: profile, StatusCode: httpResp.StatusCode, Body: body}
	}

	var fc orsFeatureCollection
	if err := json.Unmarshal(respBytes, &fc); err != nil {
		return nil, fail(fmt.Errorf("unmarshal response: %w", err))
	}
	if len(fc.Features) == 0 {
		return nil, fail(errNoRoute)
	}

	feature := fc.Features[0]
	if len(feature.Geometry.Coordinates) < 2 {
		return nil, fail(errNoRoute)
	}
	if feature.Geometry.Type == "" {
		feature.Geometry.Type = "LineString"
	}

	duration := feature.Properties.Summary.Duration
	return &RouteResult{
		Geometry:  feature.Geometry,
		DistanceM: int(math.Round(feature.Properties.Summary.Distance)),
		DurationS: &duration,
		Source:    SourceProvider,
	}, nil
}

var errNoRoute = errors.New("no route found")

// --- JSON types for the OpenRouteService directions API ---

type orsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type orsFeatureCollection struct {
	Features []orsFeature `json:"features"`
}

type orsFeature struct {
	Geometry   LineString    `json:"geometry"`
	Properties orsProperties `json:"properties"`
}

type orsProperties struct {
	Summary orsSummary `json:"summary"`
}

type orsSummary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
