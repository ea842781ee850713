package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/amara/fund-radar/internal/sources"
)

// NearDuplicateThreshold is the token-set similarity at or above which an
// item is routed to human review rather than auto-approved. Exact duplicates
// are auto-rejected; near duplicates always go to review.
const NearDuplicateThreshold = 0.85

// DefaultCandidateWindow bounds how many recent index entries a near-dup
// comparison scans. The index itself is retained in full for exact matches.
const DefaultCandidateWindow = 512

// IndexEntry is one accepted item remembered by the duplicate index.
type IndexEntry struct {
	Fingerprint string
	StoredID    string
	SourceName  string
	Tokens      map[string]struct{}
	AddedAt     time.Time
}

// DuplicateIndex is the append-only set of fingerprints for previously
// accepted items. Reads are concurrent; appends are serialized so two
// near-identical items processed in parallel cannot both slide through as
// novel.
type DuplicateIndex struct {
	mu     sync.RWMutex
	exact  map[string]IndexEntry
	recent []IndexEntry // ring over the candidate window
	next   int
	window int
}

func NewDuplicateIndex(window int) *DuplicateIndex {
	if window <= 0 {
		window = DefaultCandidateWindow
	}
	return &DuplicateIndex{
		exact:  make(map[string]IndexEntry),
		recent: make([]IndexEntry, 0, window),
		window: window,
	}
}

// SeedIndexEntry builds an index entry from stored row fields, used when
// rehydrating the index from the database at startup.
func SeedIndexEntry(fingerprint, storedID, sourceName, title, body string, addedAt time.Time) IndexEntry {
	return IndexEntry{
		Fingerprint: fingerprint,
		StoredID:    storedID,
		SourceName:  sourceName,
		Tokens:      tokenSet(shingleText(title, body)),
		AddedAt:     addedAt,
	}
}

// Append registers an accepted item. Idempotent per fingerprint.
func (idx *DuplicateIndex) Append(entry IndexEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.exact[entry.Fingerprint]; ok {
		return
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	idx.exact[entry.Fingerprint] = entry

	if len(idx.recent) < idx.window {
		idx.recent = append(idx.recent, entry)
		return
	}
	idx.recent[idx.next] = entry
	idx.next = (idx.next + 1) % idx.window
}

// LookupExact returns the stored id for a fingerprint, if present.
func (idx *DuplicateIndex) LookupExact(fingerprint string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.exact[fingerprint]
	return entry.StoredID, ok
}

// MaxSimilarity scans the candidate window and returns the highest token-set
// similarity plus the matching entry's stored id.
func (idx *DuplicateIndex) MaxSimilarity(tokens map[string]struct{}) (float64, string) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := 0.0
	bestID := ""
	for _, entry := range idx.recent {
		score := jaccard(tokens, entry.Tokens)
		if score > best {
			best = score
			bestID = entry.StoredID
		}
	}
	return best, bestID
}

// Len returns the number of indexed fingerprints.
func (idx *DuplicateIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.exact)
}

// DuplicateResult is the outcome of a duplicate check.
type DuplicateResult struct {
	IsExact         bool
	IsNear          bool
	SimilarityScore float64
	DuplicateOf     string
	LookupFailed    bool
}

// FingerprintChecker is the storage-side existence check the detector
// consults in addition to its in-memory index (covers entries persisted by
// earlier runs that are outside the seeded snapshot).
type FingerprintChecker interface {
	FingerprintExists(ctx context.Context, fingerprint string) (string, bool, error)
}

// Detector flags exact and near duplicates against the index.
type Detector struct {
	Index     *DuplicateIndex
	Store     FingerprintChecker // optional
	Threshold float64
}

func NewDetector(index *DuplicateIndex, store FingerprintChecker) *Detector {
	return &Detector{
		Index:     index,
		Store:     store,
		Threshold: NearDuplicateThreshold,
	}
}

// Check computes the duplicate result for an item. A failed storage lookup is
// reported via LookupFailed (treated as "unknown, needs review"), never as a
// dropped item.
func (d *Detector) Check(ctx context.Context, item sources.RawContentItem, fingerprint string) DuplicateResult {
	if storedID, ok := d.Index.LookupExact(fingerprint); ok {
		return DuplicateResult{IsExact: true, SimilarityScore: 1.0, DuplicateOf: storedID}
	}

	result := DuplicateResult{}
	if d.Store != nil {
		storedID, exists, err := d.Store.FingerprintExists(ctx, fingerprint)
		if err != nil {
			log.Printf("duplicate index lookup failed for %s: %v", item.URL, err)
			result.LookupFailed = true
		} else if exists {
			return DuplicateResult{IsExact: true, SimilarityScore: 1.0, DuplicateOf: storedID}
		}
	}

	tokens := tokenSet(shingleText(item.Title, item.BodyText))
	score, matchID := d.Index.MaxSimilarity(tokens)
	result.SimilarityScore = score
	if score >= d.Threshold {
		result.IsNear = true
		result.DuplicateOf = matchID
	}
	return result
}
