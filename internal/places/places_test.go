package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-day-planner/internal/config"
	"ai-day-planner/internal/queue"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/search" {
			http.NotFound(w, req)
			return
		}
		if q := req.URL.Query().Get("q"); q != "coffee London" {
			t.Errorf("Unexpected query: %q", q)
		}
		w.Write([]byte(`[
			{"display_name":"Monmouth Coffee, 27 Monmouth Street, London","type":"cafe"},
			{"display_name":"Prufrock Coffee, Leather Lane, London","type":"cafe"}
		]`))
	}))
	defer srv.Close()

	q := queue.New(queue.Config{MinDelay: time.Millisecond, ItemTimeout: time.Second})
	s := NewSearcher(q, config.DefaultTunables())
	s.searchBaseURL = srv.URL

	venues, err := s.Search(context.Background(), "coffee", "London", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(venues) != 2 {
		t.Fatalf("Expected 2 venues, got %d", len(venues))
	}
	if venues[0].Name != "Monmouth Coffee" || venues[0].Category != "cafe" {
		t.Errorf("Unexpected venue: %+v", venues[0])
	}
	if venues[0].Address != "27 Monmouth Street, London" {
		t.Errorf("Unexpected address: %q", venues[0].Address)
	}
}

func TestSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	q := queue.New(queue.Config{MinDelay: time.Millisecond, ItemTimeout: time.Second})
	s := NewSearcher(q, config.DefaultTunables())
	s.searchBaseURL = srv.URL

	if _, err := s.Search(context.Background(), "coffee", "London", 5); err == nil {
		t.Fatal("Expected an error for a failing provider")
	}
}
