package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sightpath/go-sightpath/internal/httpc"
	"github.com/sightpath/go-sightpath/pkg/nav"
)

const amapBaseURL = "https://restapi.amap.com/v3"

// AMapRoutes plans walking routes through the AMap REST API: a POI
// search resolves the keyword to a place near the origin, then the
// walking directions API yields instruction steps with polylines.
type AMapRoutes struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// AMapOption configures AMapRoutes.
type AMapOption func(*AMapRoutes)

// WithAMapBaseURL overrides the API base URL, for tests.
func WithAMapBaseURL(u string) AMapOption {
	return func(a *AMapRoutes) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithAMapClient overrides the HTTP client.
func WithAMapClient(c *http.Client) AMapOption {
	return func(a *AMapRoutes) { a.client = c }
}

// NewAMapRoutes creates a provider using the given API key.
func NewAMapRoutes(apiKey string, opts ...AMapOption) *AMapRoutes {
	a := &AMapRoutes{
		apiKey:  apiKey,
		baseURL: amapBaseURL,
		client:  httpc.Client,
		logger:  slog.Default().With("component", "gateway.amap"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PlanRoute resolves the keyword and plans a walk to it. A keyword that
// matches no place returns ErrNoDestination.
func (a *AMapRoutes) PlanRoute(ctx context.Context, origin nav.Coordinate, keyword string) (*RoutePlan, error) {
	dest, err := a.searchPlace(ctx, origin, keyword)
	if err != nil {
		return nil, err
	}

	steps, err := a.walkingSteps(ctx, origin, dest.Location)
	if err != nil {
		return nil, err
	}

	a.logger.Info("route planned", "keyword", keyword, "destination", dest.Name, "steps", len(steps))
	return &RoutePlan{Destination: dest, Steps: steps}, nil
}

type placeResponse struct {
	Status string `json:"status"`
	Info   string `json:"info"`
	POIs   []struct {
		Name     string `json:"name"`
		Location string `json:"location"`
	} `json:"pois"`
}

func (a *AMapRoutes) searchPlace(ctx context.Context, origin nav.Coordinate, keyword string) (nav.Destination, error) {
	q := url.Values{}
	q.Set("key", a.apiKey)
	q.Set("keywords", keyword)
	q.Set("location", formatLngLat(origin))
	q.Set("sortrule", "distance")
	q.Set("offset", "1")

	var resp placeResponse
	if err := a.get(ctx, "/place/text", q, &resp); err != nil {
		return nav.Destination{}, err
	}
	if resp.Status != "1" {
		return nav.Destination{}, fmt.Errorf("gateway: amap place search: %s", resp.Info)
	}
	if len(resp.POIs) == 0 {
		return nav.Destination{}, ErrNoDestination
	}

	loc, err := parseLngLat(resp.POIs[0].Location)
	if err != nil {
		return nav.Destination{}, fmt.Errorf("gateway: amap poi location: %w", err)
	}
	return nav.Destination{Name: resp.POIs[0].Name, Location: loc}, nil
}

type walkingResponse struct {
	Status string `json:"status"`
	Info   string `json:"info"`
	Route  struct {
		Paths []struct {
			Steps []struct {
				Instruction string `json:"instruction"`
				Polyline    string `json:"polyline"`
			} `json:"steps"`
		} `json:"paths"`
	} `json:"route"`
}

func (a *AMapRoutes) walkingSteps(ctx context.Context, origin, dest nav.Coordinate) ([]RouteStep, error) {
	q := url.Values{}
	q.Set("key", a.apiKey)
	q.Set("origin", formatLngLat(origin))
	q.Set("destination", formatLngLat(dest))

	var resp walkingResponse
	if err := a.get(ctx, "/direction/walking", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "1" {
		return nil, fmt.Errorf("gateway: amap walking: %s", resp.Info)
	}
	if len(resp.Route.Paths) == 0 {
		return nil, ErrNoDestination
	}

	var steps []RouteStep
	for _, s := range resp.Route.Paths[0].Steps {
		steps = append(steps, RouteStep{Instruction: s.Instruction, Polyline: s.Polyline})
	}
	return steps, nil
}

func (a *AMapRoutes) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("gateway: create amap request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: amap request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: amap %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// formatLngLat renders a coordinate as the "lng,lat" AMap expects,
// trimmed to six decimals per its API limits.
func formatLngLat(c nav.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lng, c.Lat)
}

func parseLngLat(s string) (nav.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nav.Coordinate{}, fmt.Errorf("malformed location %q", s)
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nav.Coordinate{}, err
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nav.Coordinate{}, err
	}
	return nav.Coordinate{Lat: lat, Lng: lng}, nil
}
