// Package weather resolves a best-effort weather snapshot for a place and
// time from the Open-Meteo hourly APIs. Every failure degrades to no data.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/metrics"
)

const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
	DefaultTimeout     = 8 * time.Second

	dateLayout   = "2006-01-02"
	hourlyLayout = "2006-01-02T15:04"
	hourlyFields = "temperature_2m,windspeed_10m,winddirection_10m,cloudcover,visibility,weathercode"
)

var errUnexpectedStatus = errors.New("unexpected status code")

type Config struct {
	ForecastURL string
	ArchiveURL  string
	Timeout     time.Duration
	// CacheTTL of zero disables response caching.
	CacheTTL time.Duration
}

type Resolver struct {
	client      *http.Client
	forecastURL string
	archiveURL  string
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
	cache       *cache.Cache
	now         func() time.Time
	logger      *slog.Logger
}

func NewResolver(cfg Config, client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultArchiveURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	r := &Resolver{
		client:      client,
		forecastURL: cfg.ForecastURL,
		archiveURL:  cfg.ArchiveURL,
		timeout:     cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "open-meteo",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		now:    time.Now,
		logger: logger,
	}
	if cfg.CacheTTL > 0 {
		r.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return r
}

type hourlyResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		WindSpeed     []*float64 `json:"windspeed_10m"`
		WindDirection []*float64 `json:"winddirection_10m"`
		CloudCover    []*float64 `json:"cloudcover"`
		Visibility    []*float64 `json:"visibility"`
		WeatherCode   []*float64 `json:"weathercode"`
	} `json:"hourly"`
}

// Resolve returns the hourly sample nearest to at, or nil when no data could
// be obtained. Days before today (in at's zone) use the archive API.
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64, at time.Time) *domain.WeatherSnapshot {
	if at.IsZero() {
		return nil
	}

	day := at.Format(dateLayout)
	source, endpoint := "forecast", r.forecastURL
	if day < r.now().In(at.Location()).Format(dateLayout) {
		source, endpoint = "archive", r.archiveURL
	}

	resp, err := r.hourly(ctx, source, endpoint, lat, lng, day)
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "breaker_open"
		}
		metrics.WeatherLookups.WithLabelValues(source, result).Inc()
		r.logger.Warn("weather lookup failed", "source", source, "day", day, "error", err)
		return nil
	}

	if len(resp.Hourly.Time) == 0 {
		metrics.WeatherLookups.WithLabelValues(source, "empty").Inc()
		return nil
	}
	metrics.WeatherLookups.WithLabelValues(source, "ok").Inc()

	zone := time.FixedZone("", resp.UTCOffsetSeconds)
	i := nearestIndex(at, resp.Hourly.Time, zone)
	h := resp.Hourly

	snapshot := &domain.WeatherSnapshot{
		Temperature:   sample(h.Temperature, i),
		WindSpeed:     sample(h.WindSpeed, i),
		WindDirection: sample(h.WindDirection, i),
		CloudCoverage: sample(h.CloudCover, i),
		Visibility:    sample(h.Visibility, i),
	}
	if code := sample(h.WeatherCode, i); code != nil {
		description := Describe(int(*code))
		condition := strings.ToLower(description)
		snapshot.Description = &description
		snapshot.Condition = &condition
	}
	return snapshot
}

func (r *Resolver) hourly(ctx context.Context, source, endpoint string, lat, lng float64, day string) (*hourlyResponse, error) {
	key := fmt.Sprintf("%s|%.4f|%.4f|%s", source, lat, lng, day)
	if r.cache != nil {
		if cached, found := r.cache.Get(key); found {
			metrics.WeatherCacheHits.Inc()
			return cached.(*hourlyResponse), nil
		}
	}

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	values.Set("start_date", day)
	values.Set("end_date", day)
	values.Set("hourly", hourlyFields)
	values.Set("temperature_unit", "fahrenheit")
	values.Set("windspeed_unit", "mph")
	values.Set("timezone", "auto")
	u := endpoint + "?" + values.Encode()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}

		var payload hourlyResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode weather response: %w", err)
		}
		return &payload, nil
	})
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*hourlyResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	if r.cache != nil && len(resp.Hourly.Time) > 0 {
		r.cache.Set(key, resp, cache.DefaultExpiration)
	}
	return resp, nil
}

// nearestIndex picks the sample closest to at. Ties keep the earlier index;
// unparseable samples never win.
func nearestIndex(at time.Time, times []string, zone *time.Location) int {
	nearest := 0
	best := time.Duration(math.MaxInt64)
	for i, s := range times {
		t, err := time.ParseInLocation(hourlyLayout, s, zone)
		if err != nil {
			continue
		}
		diff := t.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if diff < best {
			best = diff
			nearest = i
		}
	}
	return nearest
}

func sample(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) || values[i] == nil {
		return nil
	}
	v := *values[i]
	return &v
}
