package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSAdapter pulls items from an RSS/Atom feed.
type RSSAdapter struct {
	cfg    SourceConfig
	parser *gofeed.Parser
}

func NewRSSAdapter(cfg SourceConfig, httpClient *http.Client) *RSSAdapter {
	parser := gofeed.NewParser()
	if httpClient != nil {
		parser.Client = httpClient
	}
	return &RSSAdapter{cfg: cfg, parser: parser}
}

func (a *RSSAdapter) ID() string { return a.cfg.ID }

func (a *RSSAdapter) Discover(ctx context.Context) (<-chan ItemResult, error) {
	feed, err := a.parser.ParseURLWithContext(a.cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", a.cfg.URL, err)
	}

	out := make(chan ItemResult)
	go func() {
		defer close(out)
		limit := a.cfg.MaxItems
		if limit <= 0 || limit > len(feed.Items) {
			limit = len(feed.Items)
		}
		for _, entry := range feed.Items[:limit] {
			item, err := a.toItem(entry)
			select {
			case out <- ItemResult{Item: item, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (a *RSSAdapter) toItem(entry *gofeed.Item) (RawContentItem, error) {
	link := entry.Link
	if link == "" {
		return RawContentItem{}, fmt.Errorf("feed entry %q has no link", entry.Title)
	}

	body := entry.Content
	if body == "" {
		body = entry.Description
	}

	meta := map[string]string{
		"guid": entry.GUID,
	}
	if entry.PublishedParsed != nil {
		meta["published_at"] = entry.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		meta["author"] = entry.Authors[0].Name
	}

	return RawContentItem{
		ID:           itemID(a.cfg.ID, link),
		SourceType:   SourceRSS,
		SourceName:   a.cfg.Name,
		URL:          link,
		Title:        entry.Title,
		BodyText:     body,
		DiscoveredAt: time.Now().UTC(),
		RawMetadata:  meta,
	}, nil
}
