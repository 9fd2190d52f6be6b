// Package location resolves a usable place for the planning run. Resolution
// is fallback-total: device coordinates, reverse geocoding, IP lookup, and a
// static default are tried in order, and Resolve always produces a Location.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-day-planner/internal/config"
	"ai-day-planner/internal/queue"
)

// Source identifies which resolution stage produced a Location.
type Source string

const (
	SourceDevice  Source = "device"
	SourceIP      Source = "ip"
	SourceDefault Source = "default"
)

// Location is the normalized place record for one planning run. It is
// immutable once resolved; a location-change user action replaces it wholesale.
type Location struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	HasCoords bool    `json:"has_coords"`
	Country   string  `json:"country"`
	IsDefault bool    `json:"is_default"`
	Source    Source  `json:"source"`
}

// CoordinateSource supplies device coordinates, typically forwarded from the
// browser's geolocation prompt. Implementations return an error when the
// capability is unavailable or the user denied it.
type CoordinateSource interface {
	Coordinates(ctx context.Context) (lat, lon float64, err error)
}

type fixedCoordinates struct {
	lat, lon float64
}

func (f fixedCoordinates) Coordinates(context.Context) (float64, float64, error) {
	return f.lat, f.lon, nil
}

// FixedCoordinates wraps an already-known coordinate pair, typically one the
// browser reported, as a CoordinateSource.
func FixedCoordinates(lat, lon float64) CoordinateSource {
	return fixedCoordinates{lat: lat, lon: lon}
}

const (
	defaultGeocodeBaseURL = "https://nominatim.openstreetmap.org"
	defaultIPLookupURL    = "http://ip-api.com/json/"
)

// Resolver runs the multi-stage location pipeline. Geocoding calls go through
// the shared rate-limited queue.
type Resolver struct {
	q          *queue.Queue
	httpClient *http.Client
	tun        config.Tunables

	geocodeBaseURL string
	ipLookupURL    string
}

// NewResolver creates a Resolver using the shared queue and tunables.
func NewResolver(q *queue.Queue, tun config.Tunables) *Resolver {
	return &Resolver{
		q:              q,
		httpClient:     &http.Client{},
		tun:            tun,
		geocodeBaseURL: defaultGeocodeBaseURL,
		ipLookupURL:    defaultIPLookupURL,
	}
}

// Resolve produces a Location for the run. It never fails: stage errors are
// logged and fall through to the next stage, ending at the static default.
func (r *Resolver) Resolve(ctx context.Context, src CoordinateSource) Location {
	if src != nil {
		lat, lon, err := src.Coordinates(ctx)
		if err == nil {
			return r.fromCoordinates(ctx, lat, lon)
		}
		log.Printf("Device geolocation unavailable: %v", err)
	}

	if loc, err := r.fromIP(ctx); err == nil {
		return loc
	} else {
		log.Printf("IP geolocation failed: %v", err)
	}

	return r.defaultLocation()
}

// ResolveCity forward-geocodes a user-entered city name, for the
// location-change flow. Unlike Resolve it reports failure so the caller can
// keep the previous location.
func (r *Resolver) ResolveCity(ctx context.Context, name string) (Location, error) {
	value, err := r.q.Enqueue(ctx, "forward-geocode", true, func(ctx context.Context) (any, error) {
		return r.searchOnce(ctx, name)
	})
	if err != nil {
		return Location{}, fmt.Errorf("forward geocoding %q failed: %w", name, err)
	}

	loc := value.(Location)
	return loc, nil
}

// fromCoordinates reverse-geocodes device coordinates. Geocoder failures
// degrade to a coordinate-derived label rather than falling through to IP
// lookup, because the coordinates themselves are known good.
func (r *Resolver) fromCoordinates(ctx context.Context, lat, lon float64) Location {
	attempts := r.tun.GeocodeAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return r.defaultLocation()
			case <-time.After(config.Ms(r.tun.GeocodeRetryBaseMs) * time.Duration(attempt-1)):
			}
		}

		value, err := r.q.Enqueue(ctx, "reverse-geocode", true, func(ctx context.Context) (any, error) {
			return r.reverseOnce(ctx, lat, lon)
		})
		if err != nil {
			log.Printf("Reverse geocoding failed (attempt %d/%d): %v", attempt, attempts, err)
			continue
		}

		loc := value.(Location)
		return loc
	}

	return Location{
		City:      fmt.Sprintf("Location (%.2f, %.2f)", lat, lon),
		Latitude:  lat,
		Longitude: lon,
		HasCoords: true,
		Source:    SourceDevice,
	}
}

// geocodeAddress is the structured address block of a geocoder response.
type geocodeAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	Hamlet  string `json:"hamlet"`
	County  string `json:"county"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type geocodeResponse struct {
	DisplayName string         `json:"display_name"`
	Address     geocodeAddress `json:"address"`
	Lat         string         `json:"lat"`
	Lon         string         `json:"lon"`
}

func (r *Resolver) reverseOnce(ctx context.Context, lat, lon float64) (Location, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%f&lon=%f", r.geocodeBaseURL, lat, lon)

	var resp geocodeResponse
	if err := r.getJSON(ctx, endpoint, config.Ms(r.tun.GeocodeTimeoutMs), &resp); err != nil {
		return Location{}, err
	}

	city := placeName(resp.Address, resp.DisplayName)
	if city == "" {
		city = fmt.Sprintf("Location (%.2f, %.2f)", lat, lon)
	}

	return Location{
		City:      city,
		Latitude:  lat,
		Longitude: lon,
		HasCoords: true,
		Country:   resp.Address.Country,
		Source:    SourceDevice,
	}, nil
}

func (r *Resolver) searchOnce(ctx context.Context, name string) (Location, error) {
	endpoint := fmt.Sprintf("%s/search?format=jsonv2&limit=1&q=%s", r.geocodeBaseURL, url.QueryEscape(name))

	var results []geocodeResponse
	if err := r.getJSON(ctx, endpoint, config.Ms(r.tun.GeocodeTimeoutMs), &results); err != nil {
		return Location{}, err
	}
	if len(results) == 0 {
		return Location{}, fmt.Errorf("no geocoding results for %q", name)
	}

	var lat, lon float64
	hasCoords := false
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &lat); err == nil {
		if _, err := fmt.Sscanf(results[0].Lon, "%f", &lon); err == nil {
			hasCoords = true
		}
	}

	city := placeName(results[0].Address, results[0].DisplayName)
	if city == "" {
		city = name
	}

	return Location{
		City:      city,
		Latitude:  lat,
		Longitude: lon,
		HasCoords: hasCoords,
		Country:   results[0].Address.Country,
		Source:    SourceDevice,
	}, nil
}

type ipResponse struct {
	Status  string  `json:"status"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (r *Resolver) fromIP(ctx context.Context) (Location, error) {
	var resp ipResponse
	if err := r.getJSON(ctx, r.ipLookupURL, config.Ms(r.tun.IPLookupTimeoutMs), &resp); err != nil {
		return Location{}, err
	}

	if resp.Status != "" && resp.Status != "success" {
		return Location{}, fmt.Errorf("ip lookup returned status %q", resp.Status)
	}

	hasCoords := resp.Lat != 0 || resp.Lon != 0
	if resp.City == "" && !hasCoords {
		return Location{}, fmt.Errorf("ip lookup returned neither city nor coordinates")
	}

	city := resp.City
	if city == "" {
		city = fmt.Sprintf("Location (%.2f, %.2f)", resp.Lat, resp.Lon)
	}

	return Location{
		City:      city,
		Latitude:  resp.Lat,
		Longitude: resp.Lon,
		HasCoords: hasCoords,
		Country:   resp.Country,
		Source:    SourceIP,
	}, nil
}

func (r *Resolver) defaultLocation() Location {
	return Location{
		City:      r.tun.DefaultCity,
		Latitude:  r.tun.DefaultLatitude,
		Longitude: r.tun.DefaultLongitude,
		HasCoords: true,
		Country:   r.tun.DefaultCountry,
		IsDefault: true,
		Source:    SourceDefault,
	}
}

func (r *Resolver) getJSON(ctx context.Context, endpoint string, timeout time.Duration, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ai-day-planner/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding api error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// placeName extracts a displayable city name, preferring structured address
// fields and falling back to parsing the free-text display name.
func placeName(addr geocodeAddress, displayName string) string {
	for _, candidate := range []string{addr.City, addr.Town, addr.Village, addr.Hamlet, addr.County, addr.State} {
		if candidate != "" {
			return candidate
		}
	}
	return parseDisplayName(displayName)
}

// parseDisplayName picks the first display-name token that does not look like
// a postal code or bare number. Any token carrying a digit is treated as one.
func parseDisplayName(displayName string) string {
	for _, token := range strings.Split(displayName, ",") {
		token = strings.TrimSpace(token)
		if token == "" || strings.ContainsAny(token, "0123456789") {
			continue
		}
		return token
	}
	return ""
}
