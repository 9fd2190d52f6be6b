package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-day-planner/internal/config"
	"ai-day-planner/internal/queue"
)

func fastTunables() config.Tunables {
	t := config.DefaultTunables()
	t.GeocodeRetryBaseMs = 1
	t.GeocodeTimeoutMs = 1000
	t.IPLookupTimeoutMs = 1000
	return t
}

func fastQueue() *queue.Queue {
	return queue.New(queue.Config{
		MinDelay:    time.Millisecond,
		SettleDelay: 0,
		ItemTimeout: 5 * time.Second,
	})
}

type fixedCoords struct {
	lat, lon float64
}

func (f fixedCoords) Coordinates(context.Context) (float64, float64, error) {
	return f.lat, f.lon, nil
}

type deniedCoords struct{}

func (deniedCoords) Coordinates(context.Context) (float64, float64, error) {
	return 0, 0, errors.New("permission denied")
}

func newResolver(t *testing.T, handler http.Handler) (*Resolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewResolver(fastQueue(), fastTunables())
	r.geocodeBaseURL = srv.URL
	r.ipLookupURL = srv.URL + "/ip"
	return r, srv
}

func TestResolveDeviceCoordinates(t *testing.T) {
	r, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/reverse" {
			http.NotFound(w, req)
			return
		}
		w.Write([]byte(`{"display_name":"Camden, London, England","address":{"city":"London","country":"United Kingdom"}}`))
	}))

	loc := r.Resolve(context.Background(), fixedCoords{51.53, -0.13})
	if loc.City != "London" {
		t.Errorf("Expected city 'London', got '%s'", loc.City)
	}
	if loc.Source != SourceDevice {
		t.Errorf("Expected source 'device', got '%s'", loc.Source)
	}
	if !loc.HasCoords || loc.IsDefault {
		t.Errorf("Unexpected flags: %+v", loc)
	}
}

func TestResolveGeocoderDownKeepsCoordinates(t *testing.T) {
	attempts := 0
	r, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		attempts++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	loc := r.Resolve(context.Background(), fixedCoords{48.85, 2.35})
	if attempts != 2 {
		t.Errorf("Expected 2 reverse geocoding attempts, got %d", attempts)
	}
	if loc.City != "Location (48.85, 2.35)" {
		t.Errorf("Expected coordinate label, got '%s'", loc.City)
	}
	if loc.Source != SourceDevice {
		t.Errorf("Expected source 'device', got '%s'", loc.Source)
	}
}

func TestResolveFallsBackToIP(t *testing.T) {
	r, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/ip" {
			http.NotFound(w, req)
			return
		}
		w.Write([]byte(`{"status":"success","city":"Lisbon","country":"Portugal","lat":38.72,"lon":-9.14}`))
	}))

	loc := r.Resolve(context.Background(), deniedCoords{})
	if loc.City != "Lisbon" {
		t.Errorf("Expected city 'Lisbon', got '%s'", loc.City)
	}
	if loc.Source != SourceIP {
		t.Errorf("Expected source 'ip', got '%s'", loc.Source)
	}
}

func TestResolveAlwaysProducesLocation(t *testing.T) {
	r, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	loc := r.Resolve(context.Background(), nil)
	if loc.City == "" {
		t.Fatal("Resolve must always produce a non-empty city")
	}
	if !loc.IsDefault || loc.Source != SourceDefault {
		t.Errorf("Expected default location, got %+v", loc)
	}
	if loc.City != "London" {
		t.Errorf("Expected default city 'London', got '%s'", loc.City)
	}
}

func TestResolveCity(t *testing.T) {
	r, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/search" {
			http.NotFound(w, req)
			return
		}
		w.Write([]byte(`[{"display_name":"Porto, Portugal","address":{"city":"Porto","country":"Portugal"},"lat":"41.15","lon":"-8.61"}]`))
	}))

	loc, err := r.ResolveCity(context.Background(), "porto")
	if err != nil {
		t.Fatalf("ResolveCity failed: %v", err)
	}
	if loc.City != "Porto" || !loc.HasCoords {
		t.Errorf("Unexpected location: %+v", loc)
	}
}

func TestResolveCityFailure(t *testing.T) {
	r, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`[]`))
	}))

	if _, err := r.ResolveCity(context.Background(), "nowhere"); err == nil {
		t.Fatal("Expected an error for empty geocoding results")
	}
}

func TestParseDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Camden, London, NW1 8QS, United Kingdom", "Camden"},
		{"12, Baker Street, London", "Baker Street"},
		{"75001, Paris, France", "Paris"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseDisplayName(tt.in); got != tt.want {
			t.Errorf("parseDisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
