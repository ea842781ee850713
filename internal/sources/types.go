package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SourceType identifies the kind of adapter an item came from.
type SourceType string

const (
	SourceRSS    SourceType = "rss"
	SourceSearch SourceType = "search"
	SourceCrawl  SourceType = "crawl"
	SourceManual SourceType = "manual"
)

// RawContentItem is one item discovered by a source adapter. Immutable once
// created; the pipeline wraps it in its own record and never mutates it.
type RawContentItem struct {
	ID           string
	SourceType   SourceType
	SourceName   string
	URL          string
	Title        string
	BodyText     string
	DiscoveredAt time.Time
	RawMetadata  map[string]string
}

// ItemResult carries either a discovered item or a per-item fetch error.
// Adapter-side errors are reported per item so one bad entry never aborts the
// whole sequence.
type ItemResult struct {
	Item RawContentItem
	Err  error
}

// Adapter produces a finite, restartable sequence of raw content items for
// one configured source. Discover returns as soon as the fetch is underway;
// the channel is closed when the run is exhausted or ctx is cancelled.
type Adapter interface {
	ID() string
	Discover(ctx context.Context) (<-chan ItemResult, error)
}

// itemID derives a stable opaque ID for a discovered item from its source and
// URL, so re-discovery of the same URL yields the same ID within a source.
func itemID(sourceID, url string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + url))
	return hex.EncodeToString(sum[:16])
}
