// Package places finds nearby venues for social-activity suggestions. The
// search provider shares the geocoder's rate limit, so calls go through the
// same queue.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-day-planner/internal/config"
	"ai-day-planner/internal/queue"
)

// Venue is one candidate meeting spot.
type Venue struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
}

const defaultSearchBaseURL = "https://nominatim.openstreetmap.org"

// Searcher queries the venue-search provider through the rate-limited queue.
type Searcher struct {
	q          *queue.Queue
	httpClient *http.Client
	tun        config.Tunables

	searchBaseURL string
}

// NewSearcher creates a Searcher using the shared queue and tunables.
func NewSearcher(q *queue.Queue, tun config.Tunables) *Searcher {
	return &Searcher{
		q:             q,
		httpClient:    &http.Client{},
		tun:           tun,
		searchBaseURL: defaultSearchBaseURL,
	}
}

type searchResult struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Search returns up to limit venues matching the query near the given city.
func (s *Searcher) Search(ctx context.Context, query, city string, limit int) ([]Venue, error) {
	if limit <= 0 {
		limit = 5
	}

	value, err := s.q.Enqueue(ctx, "venue-search", false, func(ctx context.Context) (any, error) {
		return s.searchOnce(ctx, query, city, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("venue search for %q failed: %w", query, err)
	}
	return value.([]Venue), nil
}

func (s *Searcher) searchOnce(ctx context.Context, query, city string, limit int) ([]Venue, error) {
	q := query
	if city != "" {
		q = query + " " + city
	}
	endpoint := fmt.Sprintf("%s/search?format=jsonv2&limit=%d&q=%s", s.searchBaseURL, limit, url.QueryEscape(q))

	timeout := config.Ms(s.tun.GeocodeTimeoutMs)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ai-day-planner/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("venue search api error: status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	venues := make([]Venue, 0, len(results))
	for _, r := range results {
		name, address := splitDisplayName(r.DisplayName)
		if name == "" {
			continue
		}
		venues = append(venues, Venue{Name: name, Category: r.Type, Address: address})
	}
	return venues, nil
}

// splitDisplayName takes the leading token as the venue name and the rest as
// its address.
func splitDisplayName(displayName string) (name, address string) {
	parts := strings.SplitN(displayName, ",", 2)
	name = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		address = strings.TrimSpace(parts[1])
	}
	return name, address
}
