package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dromero86/macrovista/internal/models"
	"github.com/dromero86/macrovista/internal/services"
)

// HTTPFeed is a generic JSON observation/calendar feed client. Provider
// quirks live behind whatever service the base URL points at; this client
// only understands the neutral wire shapes below.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFeed creates a feed client with the given request timeout.
func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFeed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type observationDTO struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type upcomingEventDTO struct {
	Title  string `json:"title"`
	Impact string `json:"impact"`
	At     string `json:"at"`
}

type macroEventDTO struct {
	Title       string   `json:"title"`
	Theme       string   `json:"theme,omitempty"`
	Actual      *float64 `json:"actual_value,omitempty"`
	Expected    *float64 `json:"expected_value,omitempty"`
	PublishedAt string   `json:"published_at"`
}

// FetchSeries implements services.ObservationFeed.
func (f *HTTPFeed) FetchSeries(ctx context.Context, symbol string) ([]models.ObservationPoint, error) {
	var dtos []observationDTO
	if err := f.getJSON(ctx, fmt.Sprintf("%s/series/%s", f.baseURL, symbol), &dtos); err != nil {
		return nil, err
	}

	points := make([]models.ObservationPoint, 0, len(dtos))
	for _, dto := range dtos {
		date, err := time.Parse("2006-01-02", dto.Date)
		if err != nil {
			return nil, fmt.Errorf("malformed observation date %q for %s: %w", dto.Date, symbol, err)
		}
		points = append(points, models.ObservationPoint{Date: date, Value: dto.Value})
	}
	return points, nil
}

// FetchUpcoming implements services.UpcomingEventFeed.
func (f *HTTPFeed) FetchUpcoming(ctx context.Context, horizon time.Duration) ([]models.UpcomingEvent, error) {
	url := fmt.Sprintf("%s/calendar?hours=%d", f.baseURL, int(horizon.Hours()))
	var dtos []upcomingEventDTO
	if err := f.getJSON(ctx, url, &dtos); err != nil {
		return nil, err
	}

	events := make([]models.UpcomingEvent, 0, len(dtos))
	for _, dto := range dtos {
		at, err := time.Parse(time.RFC3339, dto.At)
		if err != nil {
			return nil, fmt.Errorf("malformed event time %q: %w", dto.At, err)
		}
		events = append(events, models.UpcomingEvent{
			Title:  dto.Title,
			Impact: models.EventImpact(dto.Impact),
			At:     at,
		})
	}
	return events, nil
}

// FetchRecentEvents returns published macro events for narrative and alert
// evaluation.
func (f *HTTPFeed) FetchRecentEvents(ctx context.Context) ([]models.MacroEvent, error) {
	var dtos []macroEventDTO
	if err := f.getJSON(ctx, f.baseURL+"/events", &dtos); err != nil {
		return nil, err
	}

	events := make([]models.MacroEvent, 0, len(dtos))
	for _, dto := range dtos {
		published, err := time.Parse(time.RFC3339, dto.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("malformed event time %q: %w", dto.PublishedAt, err)
		}
		ev := models.MacroEvent{
			Title:       dto.Title,
			Theme:       dto.Theme,
			PublishedAt: published,
		}
		if dto.Actual != nil {
			d := decimal.NewFromFloat(*dto.Actual)
			ev.Actual = &d
		}
		if dto.Expected != nil {
			d := decimal.NewFromFloat(*dto.Expected)
			ev.Expected = &d
		}
		events = append(events, ev)
	}
	return events, nil
}

// getJSON performs one GET and classifies transport failures so the
// source guard can make retry decisions.
func (f *HTTPFeed) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return services.NewFetchError(f.baseURL, services.ClassOther, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return services.NewFetchError(f.baseURL, services.ClassRateLimit, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusForbidden:
		return services.NewFetchError(f.baseURL, services.ClassBlocked, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return services.NewFetchError(f.baseURL, services.ClassServerError, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return services.NewFetchError(f.baseURL, services.ClassOther, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// NullObservationFeed serves empty series. Used when no feed base URL is
// configured, so the engine degrades to NO_DATA results instead of
// hammering a nonexistent endpoint.
type NullObservationFeed struct{}

// FetchSeries implements services.ObservationFeed.
func (NullObservationFeed) FetchSeries(context.Context, string) ([]models.ObservationPoint, error) {
	return nil, nil
}
