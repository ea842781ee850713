package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ManualAdapter accepts user-submitted opportunities (e.g. from the intake
// API) and replays them as a discovery sequence. Submissions queue until the
// next Discover call drains them.
type ManualAdapter struct {
	name string

	mu      sync.Mutex
	pending []RawContentItem
}

func NewManualAdapter(name string) *ManualAdapter {
	if name == "" {
		name = "Manual Submissions"
	}
	return &ManualAdapter{name: name}
}

func (a *ManualAdapter) ID() string { return "manual" }

// Submit queues a user submission. Title and URL are required; everything
// else is optional.
func (a *ManualAdapter) Submit(title, url, body string, meta map[string]string) (RawContentItem, error) {
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)
	if title == "" || url == "" {
		return RawContentItem{}, fmt.Errorf("manual submission requires title and url")
	}

	if meta == nil {
		meta = map[string]string{}
	}
	item := RawContentItem{
		ID:           itemID("manual", url),
		SourceType:   SourceManual,
		SourceName:   a.name,
		URL:          url,
		Title:        title,
		BodyText:     body,
		DiscoveredAt: time.Now().UTC(),
		RawMetadata:  meta,
	}

	a.mu.Lock()
	a.pending = append(a.pending, item)
	a.mu.Unlock()

	return item, nil
}

func (a *ManualAdapter) Discover(ctx context.Context) (<-chan ItemResult, error) {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	out := make(chan ItemResult)
	go func() {
		defer close(out)
		for _, item := range batch {
			select {
			case out <- ItemResult{Item: item}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
