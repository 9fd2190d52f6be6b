// Package events scrapes a public what's-on listing for the planning city so
// prompts can mention happenings the user could attend. Best-effort only:
// failures degrade to an empty list.
package events

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Event is one local happening.
type Event struct {
	Title string `json:"title"`
	When  string `json:"when,omitempty"`
}

const defaultListingBaseURL = "https://allevents.in"

// Scraper fetches and parses the listing page.
type Scraper struct {
	httpClient *http.Client

	listingBaseURL string
}

// NewScraper creates a Scraper.
func NewScraper() *Scraper {
	return &Scraper{
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		listingBaseURL: defaultListingBaseURL,
	}
}

// LocalEvents returns up to limit events for the city.
func (s *Scraper) LocalEvents(ctx context.Context, city string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 5
	}

	url := fmt.Sprintf("%s/%s/all", s.listingBaseURL, citySlug(city))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch listing: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	// Remove noise before walking the cards.
	doc.Find("script, style, nav, footer, iframe").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	var events []Event
	seen := make(map[string]struct{})
	doc.Find(".event-card .title, .event-item .title, li.event h3, h3").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return true
		}
		if _, dup := seen[title]; dup {
			return true
		}
		seen[title] = struct{}{}

		when := strings.TrimSpace(sel.Parent().Find(".date, time").First().Text())
		events = append(events, Event{Title: title, When: when})
		return len(events) < limit
	})

	return events, nil
}

// citySlug lowercases a city name into a URL path segment.
func citySlug(city string) string {
	slug := strings.ToLower(strings.TrimSpace(city))
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug
}
