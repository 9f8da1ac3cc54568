package nav

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sightpath/go-sightpath/internal/httpc"
)

// ErrNoDestination indicates the route service could not resolve the
// spoken destination to a place.
var ErrNoDestination = errors.New("nav: no destination found")

// Destination is a resolved place returned by the route service.
type Destination struct {
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}

// Step is one leg of a walking route. Waypoints are decoded from the
// wire polyline and immutable once received.
type Step struct {
	Instruction string
	Waypoints   []Coordinate
}

// Route is the planned walk from the user's position to the destination.
type Route struct {
	Destination Destination
	Steps       []Step
}

// RouteService resolves a spoken destination into a walking route.
type RouteService interface {
	PlanRoute(ctx context.Context, origin Coordinate, keyword string) (*Route, error)
}

// RouteClient calls the gateway's route endpoint.
type RouteClient struct {
	baseURL string
	client  *http.Client
}

// NewRouteClient returns a RouteClient for the gateway at baseURL.
func NewRouteClient(baseURL string, opts ...RouteOption) *RouteClient {
	c := &RouteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RouteOption customizes a RouteClient.
type RouteOption func(*RouteClient)

// WithRouteHTTPClient overrides the HTTP client.
func WithRouteHTTPClient(hc *http.Client) RouteOption {
	return func(c *RouteClient) { c.client = hc }
}

type routeRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Keyword string  `json:"keyword"`
}

type routeResponse struct {
	Destination Destination `json:"destination"`
	Steps       []struct {
		Instruction string `json:"instruction"`
		Polyline    string `json:"polyline"`
	} `json:"steps"`
	Error string `json:"error"`
}

// PlanRoute requests a walking route. A 404 status or a
// "no destination found" error body maps to ErrNoDestination.
func (c *RouteClient) PlanRoute(ctx context.Context, origin Coordinate, keyword string) (*Route, error) {
	payload, err := json.Marshal(routeRequest{Lat: origin.Lat, Lng: origin.Lng, Keyword: keyword})
	if err != nil {
		return nil, fmt.Errorf("nav: marshal route request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/nav/route", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("nav: create route request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nav: route request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("nav: read route response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoDestination
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nav: route service returned %d", resp.StatusCode)
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("nav: decode route response: %w", err)
	}
	if rr.Error != "" {
		if strings.Contains(strings.ToLower(rr.Error), "no destination found") {
			return nil, ErrNoDestination
		}
		return nil, fmt.Errorf("nav: route service: %s", rr.Error)
	}
	if len(rr.Steps) == 0 {
		return nil, ErrNoDestination
	}

	route := &Route{Destination: rr.Destination}
	for _, s := range rr.Steps {
		route.Steps = append(route.Steps, Step{
			Instruction: s.Instruction,
			Waypoints:   ParsePolyline(s.Polyline),
		})
	}
	return route, nil
}
