package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchAdapter_Discover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "AI grants Africa" {
			t.Errorf("expected query param, got %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "secret" {
			t.Errorf("expected api_key param, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"organic_results": [
				{"title": "AI Grant A", "link": "https://example.org/a", "snippet": "Grant A snippet", "date": "Feb 2, 2026"},
				{"title": "No Link Result", "snippet": "broken"},
				{"title": "AI Grant B", "link": "https://example.org/b", "snippet": "Grant B snippet"}
			]
		}`))
	}))
	defer server.Close()

	adapter := NewSearchAdapter(SourceConfig{
		ID:     "serp",
		Name:   "Search",
		URL:    server.URL,
		Query:  "AI grants Africa",
		APIKey: "secret",
	}, server.Client())

	results, err := adapter.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var items []RawContentItem
	errCount := 0
	for result := range results {
		if result.Err != nil {
			errCount++
			continue
		}
		items = append(items, result.Item)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if errCount != 1 {
		t.Fatalf("expected 1 item error, got %d", errCount)
	}
	if items[0].SourceType != SourceSearch {
		t.Fatalf("unexpected source type: %s", items[0].SourceType)
	}
	if items[0].RawMetadata["search_query"] != "AI grants Africa" {
		t.Fatalf("expected search_query metadata, got %v", items[0].RawMetadata)
	}
}

func TestSearchAdapter_NonOKStatusFailsDiscovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewSearchAdapter(SourceConfig{ID: "serp", URL: server.URL}, server.Client())
	if _, err := adapter.Discover(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
