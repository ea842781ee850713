package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/amara/fund-radar/internal/ai"
	"github.com/amara/fund-radar/internal/sources"
)

// RecordStore persists pipeline records. Implementations report transient
// infrastructure failures as errors whose Transient() is true so the
// orchestrator retries them.
type RecordStore interface {
	SaveRecord(ctx context.Context, record *Record) error
}

// maxStageAttempts is how many times a transient stage failure is retried
// before the record is routed to failed_permanently.
const maxStageAttempts = 3

// retryBaseDelay seeds the exponential backoff between stage attempts.
const retryBaseDelay = 500 * time.Millisecond

// defaultWorkerCount is the pool size when none is configured.
const defaultWorkerCount = 4

// defaultQueueDepth bounds the pending item queue so a slow stage applies
// backpressure to discovery instead of buffering without limit.
const defaultQueueDepth = 256

// Stats summarizes one ingestion run.
type Stats struct {
	Discovered        int `json:"discovered"`
	AutoApproved      int `json:"auto_approved"`
	NeedsReview       int `json:"needs_review"`
	Rejected          int `json:"rejected"`
	FailedPermanently int `json:"failed_permanently"`

	mu sync.Mutex
}

func (s *Stats) count(decision Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch decision {
	case DecisionAutoApproved:
		s.AutoApproved++
	case DecisionNeedsReview:
		s.NeedsReview++
	case DecisionRejected:
		s.Rejected++
	case DecisionFailedPermanently:
		s.FailedPermanently++
	}
}

func (s *Stats) countDiscovered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Discovered++
}

// Processed returns the number of records that reached a terminal decision.
func (s *Stats) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AutoApproved + s.NeedsReview + s.Rejected + s.FailedPermanently
}

// Orchestrator drives records through the ingestion stages. All
// collaborators are injected; a nil Store or AI degrades the relevant stage
// instead of panicking, which keeps tests small.
type Orchestrator struct {
	Store      RecordStore
	AI         AICapability
	Classifier *Classifier
	Detector   *Detector
	Validator  *Validator
	Enhancer   *Enhancer
	Scorer     *Scorer
	Index      *DuplicateIndex

	Workers    int
	QueueDepth int

	// Sleep is swappable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewOrchestrator wires the default pipeline around the given store, AI
// capability and fetcher.
func NewOrchestrator(store RecordStore, aiCap AICapability, fetcher Fetcher, checker FingerprintChecker) *Orchestrator {
	index := NewDuplicateIndex(DefaultCandidateWindow)
	return &Orchestrator{
		Store:      store,
		AI:         aiCap,
		Classifier: NewClassifier(aiCap),
		Detector:   NewDetector(index, checker),
		Validator:  NewValidator(aiCap),
		Enhancer:   NewEnhancer(aiCap, fetcher),
		Scorer:     NewScorer(DefaultScoreConfig()),
		Index:      index,
		Workers:    defaultWorkerCount,
		QueueDepth: defaultQueueDepth,
		Sleep:      time.Sleep,
	}
}

// Process carries a single discovered item to a terminal decision. It
// always returns a record; infrastructure failures after retries surface as
// decision failed_permanently, never as a dropped item.
func (o *Orchestrator) Process(ctx context.Context, item sources.RawContentItem) *Record {
	record := NewRecord(item)

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("Pipeline: panic processing %s: %v", item.URL, recovered)
			record.AppendError(record.Stage, fmt.Errorf("panic: %v", recovered))
			record.Decision = DecisionFailedPermanently
			record.DecisionReason = "panic"
			o.persist(ctx, record)
		}
	}()

	completed := o.runStages(ctx, record)

	// A cancelled item is discarded, not persisted or indexed; only records
	// that ran to a genuine terminal state are written.
	if ctx.Err() != nil {
		log.Printf("Pipeline: discarding in-flight record for %s: %v", record.Item.URL, ctx.Err())
		return record
	}

	if completed {
		o.finalize(ctx, record)
	}
	o.persist(ctx, record)
	return record
}

// runStages executes classify through score. Returns false when a stage
// exhausted its retries and the record is already terminal.
func (o *Orchestrator) runStages(ctx context.Context, record *Record) bool {
	if !o.classifyStage(ctx, record) {
		return false
	}
	if record.Terminal() {
		return true
	}

	o.dedupStage(ctx, record)
	if record.Terminal() {
		return true
	}

	if !o.validateStage(ctx, record) {
		return false
	}
	if record.Terminal() {
		return true
	}

	if !o.enrichStage(ctx, record) {
		return false
	}

	o.scoreStage(record)
	return true
}

func (o *Orchestrator) classifyStage(ctx context.Context, record *Record) bool {
	var outcome ClassifyOutcome
	err := o.withRetry(ctx, record, StageClassified, func() error {
		var classifyErr error
		outcome, classifyErr = o.Classifier.Classify(ctx, record.Item)
		return classifyErr
	})
	if err != nil {
		return false
	}

	record.Classification = outcome.Label
	record.ClassConfidence = outcome.Confidence
	o.advance(record, StageClassified)

	if outcome.Label == ClassIrrelevant {
		record.reject(ReasonNotRelevant)
	}
	return true
}

func (o *Orchestrator) dedupStage(ctx context.Context, record *Record) {
	record.Fingerprint = Fingerprint(record.Item.Title, record.Item.URL)
	result := o.Detector.Check(ctx, record.Item, record.Fingerprint)
	o.advance(record, StageDedupChecked)

	record.SimilarityScore = result.SimilarityScore
	record.NearDuplicate = result.IsNear
	record.DedupUnknown = result.LookupFailed
	record.DuplicateOf = result.DuplicateOf

	if result.IsExact {
		record.reject(ReasonExactDuplicate)
	}
}

func (o *Orchestrator) validateStage(ctx context.Context, record *Record) bool {
	var outcome ValidationOutcome
	err := o.withRetry(ctx, record, StageValidated, func() error {
		var validateErr error
		outcome, validateErr = o.Validator.Validate(ctx, record.Item, record.Classification)
		return validateErr
	})
	if err != nil {
		return false
	}

	record.ValidityScore = outcome.Score
	record.ValidityFlags = outcome.Flags
	o.advance(record, StageValidated)

	if outcome.Score < ValidityFloor {
		record.reject(ReasonFailedValidation)
	}
	return true
}

func (o *Orchestrator) enrichStage(ctx context.Context, record *Record) bool {
	err := o.withRetry(ctx, record, StageEnriched, func() error {
		return o.Enhancer.Enhance(ctx, record)
	})
	if err != nil {
		return false
	}
	o.advance(record, StageEnriched)
	return true
}

func (o *Orchestrator) scoreStage(record *Record) {
	o.advance(record, StageScored)
	o.Scorer.Route(record)
}

// finalize runs post-decision side effects: embedding generation and
// duplicate index registration for accepted records.
func (o *Orchestrator) finalize(ctx context.Context, record *Record) {
	if !record.Indexable() {
		return
	}

	if o.AI != nil {
		embedding, err := o.AI.GenerateEmbedding(ctx, shingleText(record.Item.Title, record.Item.BodyText))
		if err != nil {
			// Embedding is an enrichment of the stored row, not a gate.
			log.Printf("Pipeline: embedding failed for %s: %v", record.Item.URL, err)
			record.AppendError(StageScored, err)
		} else {
			record.Embedding = embedding
		}
	}

	o.Index.Append(IndexEntry{
		Fingerprint: record.Fingerprint,
		StoredID:    record.ID.String(),
		SourceName:  record.Item.SourceName,
		Tokens:      tokenSet(shingleText(record.Item.Title, record.Item.BodyText)),
	})
}

func (o *Orchestrator) persist(ctx context.Context, record *Record) {
	if o.Store == nil {
		return
	}
	err := o.withRetry(ctx, record, record.Stage, func() error {
		return o.Store.SaveRecord(ctx, record)
	})
	if err != nil {
		log.Printf("Pipeline: dropping unsaveable record %s (%s): %v", record.ID, record.Item.URL, err)
	}
}

// withRetry runs fn up to maxStageAttempts times, backing off between
// attempts. Non-transient errors and exhausted retries both mark the record
// failed_permanently; every attempt's error lands in the record's log.
func (o *Orchestrator) withRetry(ctx context.Context, record *Record, stage Stage, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		record.AppendError(stage, lastErr)
		if !isTransient(lastErr) {
			break
		}
		if attempt == maxStageAttempts {
			break
		}
		if ctx.Err() != nil {
			break
		}

		delay := retryBaseDelay * time.Duration(1<<(attempt-1))
		delay += time.Duration(rand.Int63n(int64(retryBaseDelay)))
		log.Printf("Pipeline: %s attempt %d/%d failed for %s, retrying in %v: %v",
			stage, attempt, maxStageAttempts, record.Item.URL, delay, lastErr)
		o.sleep(delay)
	}

	record.Decision = DecisionFailedPermanently
	record.DecisionReason = string(stage) + "_failed"
	return lastErr
}

func (o *Orchestrator) sleep(d time.Duration) {
	if o.Sleep != nil {
		o.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (o *Orchestrator) advance(record *Record, stage Stage) {
	if err := record.Advance(stage); err != nil {
		log.Printf("Pipeline: %v", err)
	}
}

type transientError interface {
	Transient() bool
}

// isTransient reports whether an error is worth retrying: AI service
// failures, storage failures that declare themselves transient, and network
// timeouts. Business rejections never take this path; they are Decision
// values, not errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if ai.IsServiceError(err) {
		return true
	}
	var t transientError
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Run discovers items from every adapter and processes them through a
// bounded worker pool. A failing adapter or item never aborts the run.
func (o *Orchestrator) Run(ctx context.Context, adapters []sources.Adapter) *Stats {
	stats := &Stats{}

	workerCount := o.Workers
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	queueDepth := o.QueueDepth
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}

	jobs := make(chan sources.RawContentItem, queueDepth)

	var workers sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for item := range jobs {
				record := o.Process(ctx, item)
				stats.count(record.Decision)
			}
		}()
	}

	var producers sync.WaitGroup
	for _, adapter := range adapters {
		producers.Add(1)
		go func(adapter sources.Adapter) {
			defer producers.Done()
			o.drainAdapter(ctx, adapter, jobs, stats)
		}(adapter)
	}

	producers.Wait()
	close(jobs)
	workers.Wait()

	log.Printf("Pipeline: run complete: discovered=%d approved=%d review=%d rejected=%d failed=%d",
		stats.Discovered, stats.AutoApproved, stats.NeedsReview, stats.Rejected, stats.FailedPermanently)
	return stats
}

// RunSource processes a single adapter, for the per-source trigger endpoint.
func (o *Orchestrator) RunSource(ctx context.Context, adapter sources.Adapter) *Stats {
	return o.Run(ctx, []sources.Adapter{adapter})
}

func (o *Orchestrator) drainAdapter(ctx context.Context, adapter sources.Adapter, jobs chan<- sources.RawContentItem, stats *Stats) {
	results, err := adapter.Discover(ctx)
	if err != nil {
		log.Printf("Pipeline: source %s discovery failed: %v", adapter.ID(), err)
		return
	}

	for result := range results {
		if result.Err != nil {
			log.Printf("Pipeline: source %s item error: %v", adapter.ID(), result.Err)
			continue
		}
		stats.countDiscovered()
		select {
		case jobs <- result.Item:
		case <-ctx.Done():
			return
		}
	}
}
