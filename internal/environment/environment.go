// Package environment gathers the weather and air-quality snapshot for a
// planning run and derives clothing advice from it. Fetching is fallback-total:
// any provider failure yields fixed neutral values, never an error.
package environment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-day-planner/internal/config"
)

// Snapshot is the environment context for one planning run. Immutable once
// fetched; refreshed only on a location change.
type Snapshot struct {
	Temperature     float64 `json:"temperature"`
	PrecipitationMm float64 `json:"precipitation_mm"`
	WindSpeedKmh    float64 `json:"wind_speed_kmh"`
	Sunrise         string  `json:"sunrise"`
	Sunset          string  `json:"sunset"`
	AQI             *int    `json:"aqi,omitempty"`
}

// OutdoorSafe reports whether outdoor activity suggestions are permitted:
// the air must be breathable (AQI unknown or below 100) and rain light.
func (s Snapshot) OutdoorSafe() bool {
	if s.AQI != nil && *s.AQI >= 100 {
		return false
	}
	return s.PrecipitationMm < 3
}

// DefaultSnapshot returns the neutral values substituted when the weather
// provider is unreachable.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Temperature:     15,
		PrecipitationMm: 0,
		WindSpeedKmh:    5,
	}
}

const (
	defaultWeatherBaseURL = "https://api.open-meteo.com"
	defaultAQIBaseURL     = "https://api.waqi.info"
)

// Fetcher retrieves weather and air-quality data.
type Fetcher struct {
	httpClient *http.Client
	tun        config.Tunables
	aqiToken   string

	weatherBaseURL string
	aqiBaseURL     string
}

// NewFetcher creates a Fetcher.
func NewFetcher(tun config.Tunables, aqiToken string) *Fetcher {
	return &Fetcher{
		httpClient:     &http.Client{},
		tun:            tun,
		aqiToken:       aqiToken,
		weatherBaseURL: defaultWeatherBaseURL,
		aqiBaseURL:     defaultAQIBaseURL,
	}
}

// Fetch retrieves weather and AQI concurrently. Each falls back independently;
// the call as a whole never fails.
func (f *Fetcher) Fetch(ctx context.Context, lat, lon float64, city string) Snapshot {
	snapshot := DefaultSnapshot()
	var aqi *int

	var g errgroup.Group
	g.Go(func() error {
		s, err := f.fetchWeather(ctx, lat, lon)
		if err != nil {
			log.Printf("Weather fetch failed, using defaults: %v", err)
			return nil
		}
		snapshot = s
		return nil
	})
	g.Go(func() error {
		value, err := f.fetchAQI(ctx, city)
		if err != nil {
			log.Printf("AQI fetch failed, leaving unknown: %v", err)
			return nil
		}
		aqi = value
		return nil
	})
	_ = g.Wait()

	snapshot.AQI = aqi
	return snapshot
}

type weatherResponse struct {
	CurrentWeather struct {
		Temperature   float64 `json:"temperature"`
		Precipitation float64 `json:"precipitation"`
		Windspeed     float64 `json:"windspeed"`
	} `json:"current_weather"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

func (f *Fetcher) fetchWeather(ctx context.Context, lat, lon float64) (Snapshot, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/forecast?latitude=%.4f&longitude=%.4f&current_weather=true&daily=sunrise,sunset&timezone=auto",
		f.weatherBaseURL, lat, lon,
	)

	var resp weatherResponse
	if err := f.getJSON(ctx, endpoint, &resp); err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		Temperature:     resp.CurrentWeather.Temperature,
		PrecipitationMm: resp.CurrentWeather.Precipitation,
		WindSpeedKmh:    resp.CurrentWeather.Windspeed,
	}
	if len(resp.Daily.Sunrise) > 0 {
		s.Sunrise = resp.Daily.Sunrise[0]
	}
	if len(resp.Daily.Sunset) > 0 {
		s.Sunset = resp.Daily.Sunset[0]
	}
	return s, nil
}

type aqiResponse struct {
	Status string `json:"status"`
	Data   struct {
		AQI json.RawMessage `json:"aqi"`
	} `json:"data"`
}

func (f *Fetcher) fetchAQI(ctx context.Context, city string) (*int, error) {
	feed := strings.ToLower(strings.TrimSpace(city))
	if feed == "" {
		return nil, fmt.Errorf("no city for aqi lookup")
	}

	endpoint := fmt.Sprintf("%s/feed/%s/?token=%s", f.aqiBaseURL, url.PathEscape(feed), url.QueryEscape(f.aqiToken))

	var resp aqiResponse
	if err := f.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "ok" {
		return nil, fmt.Errorf("aqi feed returned status %q", resp.Status)
	}

	// The feed reports the string "-" for stations without data.
	var value float64
	if err := json.Unmarshal(resp.Data.AQI, &value); err != nil {
		return nil, nil
	}

	aqi := int(value)
	return &aqi, nil
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint string, out any) error {
	timeout := config.Ms(f.tun.EnvFetchTimeoutMs)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("environment api error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
