package pipeline

import (
	"fmt"
	"time"

	"github.com/amara/fund-radar/internal/sources"
	"github.com/google/uuid"
)

// Stage is the position of a record in the ingestion state machine.
// Transitions are strictly forward; no stage is ever revisited.
type Stage string

const (
	StageDiscovered   Stage = "discovered"
	StageClassified   Stage = "classified"
	StageDedupChecked Stage = "dedup_checked"
	StageValidated    Stage = "validated"
	StageEnriched     Stage = "enriched"
	StageScored       Stage = "scored"
)

var stageOrder = map[Stage]int{
	StageDiscovered:   0,
	StageClassified:   1,
	StageDedupChecked: 2,
	StageValidated:    3,
	StageEnriched:     4,
	StageScored:       5,
}

// Classification is the label assigned by the content classifier.
type Classification string

const (
	ClassUnclassified Classification = "unclassified"
	ClassOpportunity  Classification = "opportunity"
	ClassAnnouncement Classification = "announcement"
	ClassIrrelevant   Classification = "irrelevant"
)

// Decision is the terminal routing outcome of a record.
type Decision string

const (
	DecisionPending           Decision = "pending"
	DecisionAutoApproved      Decision = "auto_approved"
	DecisionNeedsReview       Decision = "needs_review"
	DecisionRejected          Decision = "rejected"
	DecisionFailedPermanently Decision = "failed_permanently"
)

// Rejection reasons surfaced with DecisionRejected.
const (
	ReasonNotRelevant      = "not_relevant"
	ReasonExactDuplicate   = "exact_duplicate"
	ReasonFailedValidation = "failed_validation"
	ReasonLowConfidence    = "low_confidence"
)

// StageError is one stage-tagged failure note. The error log is append-only
// and survives into the terminal record.
type StageError struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EnrichedFields holds the structured data the enhancer managed to extract.
// Absent fields stay at zero values; enrichment is "attempted", never
// "complete".
type EnrichedFields struct {
	FundingAmountMin float64
	FundingAmountMax float64
	Currency         string
	Deadline         *time.Time
	Eligibility      []string
	ContactInfo      string
	Summary          string
}

// enrichableFieldCount is the denominator of the completeness bonus.
const enrichableFieldCount = 5

// Completeness returns the fraction of enrichable fields that were populated.
func (f EnrichedFields) Completeness() float64 {
	populated := 0
	if f.FundingAmountMin > 0 || f.FundingAmountMax > 0 {
		populated++
	}
	if f.Currency != "" {
		populated++
	}
	if f.Deadline != nil {
		populated++
	}
	if len(f.Eligibility) > 0 {
		populated++
	}
	if f.ContactInfo != "" {
		populated++
	}
	return float64(populated) / float64(enrichableFieldCount)
}

// Record is the single mutable unit carried through the pipeline, wrapping
// one immutable RawContentItem. Each stage mutates it exactly once.
type Record struct {
	ID   uuid.UUID
	Item sources.RawContentItem

	Stage        Stage
	StageHistory []Stage

	Classification  Classification
	ClassConfidence float64

	Fingerprint     string
	DuplicateOf     string
	SimilarityScore float64
	NearDuplicate   bool
	DedupUnknown    bool // index/storage lookup failed; never auto-approve

	ValidityScore float64
	ValidityFlags []string

	Enriched            EnrichedFields
	EnrichmentAttempted bool

	ConfidenceScore float64
	Decision        Decision
	DecisionReason  string

	Embedding []float32

	Errors []StageError
}

// NewRecord wraps a discovered item in a fresh pipeline record.
func NewRecord(item sources.RawContentItem) *Record {
	// Crawled pages can carry invalid byte sequences that Postgres rejects
	// on insert, so scrub text fields before anything downstream sees them.
	item.Title = sanitizeUTF8(item.Title)
	item.BodyText = sanitizeUTF8(item.BodyText)
	return &Record{
		ID:             uuid.New(),
		Item:           item,
		Stage:          StageDiscovered,
		StageHistory:   []Stage{StageDiscovered},
		Classification: ClassUnclassified,
		Decision:       DecisionPending,
	}
}

// Advance moves the record to the next stage. Moving backwards or skipping
// a stage is a programming error, not a runtime condition.
func (r *Record) Advance(next Stage) error {
	cur, ok := stageOrder[r.Stage]
	if !ok {
		return fmt.Errorf("record %s in unknown stage %q", r.ID, r.Stage)
	}
	nxt, ok := stageOrder[next]
	if !ok {
		return fmt.Errorf("unknown stage %q", next)
	}
	if nxt != cur+1 {
		return fmt.Errorf("illegal transition %s -> %s for record %s", r.Stage, next, r.ID)
	}
	r.Stage = next
	r.StageHistory = append(r.StageHistory, next)
	return nil
}

// AppendError records a stage-tagged failure note.
func (r *Record) AppendError(stage Stage, err error) {
	r.Errors = append(r.Errors, StageError{
		Stage:   stage,
		Message: err.Error(),
		At:      time.Now().UTC(),
	})
}

// Terminal reports whether the record has reached a terminal decision.
func (r *Record) Terminal() bool {
	return r.Decision != DecisionPending
}

// reject marks a business rejection. Not an error: expected, terminal and
// logged for metrics only.
func (r *Record) reject(reason string) {
	r.Decision = DecisionRejected
	r.DecisionReason = reason
}

// Indexable reports whether the record's fingerprint should be appended to
// the duplicate index: only approved or pending-review terminals, so the
// index never matches against items that were rejected.
func (r *Record) Indexable() bool {
	return r.Decision == DecisionAutoApproved || r.Decision == DecisionNeedsReview
}
