// Package maps resolves listing locations to driving distances via the
// Google Distance Matrix API.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

const metersPerMile = 1609.34

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the distance-matrix endpoint.
type Client struct {
	client  HTTPClient
	apiKey  string
	baseURL string
	log     *slog.Logger
}

// New creates a Client using the given HTTP client and API key.
func New(client HTTPClient, apiKey string, log *slog.Logger) *Client {
	return &Client{
		client:  client,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		log:     log,
	}
}

// SetBaseURL overrides the API endpoint (useful for testing).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type response struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Distance returns the driving distance in miles and a human-readable
// duration between origin and destination.
//
// Unmapped destinations ("ZERO_RESULTS") and malformed response bodies soft
// fail to (0, "Unknown") so informal marketplace location strings never abort
// a run; callers therefore treat unmapped locations as in-range.
func (c *Client) Distance(ctx context.Context, origin, destination string) (float64, string, error) {
	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("units", "imperial")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, "", fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || body.Status != "OK" {
		return 0, "", fmt.Errorf("distance matrix error: http %d, status %q", resp.StatusCode, body.Status)
	}

	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		c.log.Error("distance matrix response missing rows", "destination", destination)
		return 0, "Unknown", nil
	}

	element := body.Rows[0].Elements[0]
	if element.Status == "ZERO_RESULTS" {
		return 0, "Unknown", nil
	}
	if element.Duration.Text == "" {
		c.log.Error("distance matrix element missing fields", "destination", destination, "status", element.Status)
		return 0, "Unknown", nil
	}

	return element.Distance.Value / metersPerMile, element.Duration.Text, nil
}
