package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SearchAdapter queries a JSON search API (SerpAPI-compatible shape) and
// yields one item per organic result.
type SearchAdapter struct {
	cfg    SourceConfig
	client *http.Client
}

func NewSearchAdapter(cfg SourceConfig, httpClient *http.Client) *SearchAdapter {
	if httpClient == nil {
		timeout := 30 * time.Second
		if cfg.Fetch.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &SearchAdapter{cfg: cfg, client: httpClient}
}

func (a *SearchAdapter) ID() string { return a.cfg.ID }

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic_results"`
}

func (a *SearchAdapter) Discover(ctx context.Context) (<-chan ItemResult, error) {
	query := url.Values{}
	query.Set("q", a.cfg.Query)
	if a.cfg.APIKey != "" {
		query.Set("api_key", a.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", a.cfg.URL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status: %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := make(chan ItemResult)
	go func() {
		defer close(out)
		limit := a.cfg.MaxItems
		if limit <= 0 || limit > len(parsed.OrganicResults) {
			limit = len(parsed.OrganicResults)
		}
		for _, result := range parsed.OrganicResults[:limit] {
			var itemRes ItemResult
			if result.Link == "" {
				itemRes.Err = fmt.Errorf("search result %q has no link", result.Title)
			} else {
				itemRes.Item = RawContentItem{
					ID:           itemID(a.cfg.ID, result.Link),
					SourceType:   SourceSearch,
					SourceName:   a.cfg.Name,
					URL:          result.Link,
					Title:        result.Title,
					BodyText:     result.Snippet,
					DiscoveredAt: time.Now().UTC(),
					RawMetadata: map[string]string{
						"search_query": a.cfg.Query,
						"result_date":  result.Date,
					},
				}
			}
			select {
			case out <- itemRes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
