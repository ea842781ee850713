package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amara/fund-radar/internal/ai"
	"github.com/amara/fund-radar/internal/sources"
)

type memStore struct {
	saved []Record
	err   error
}

func (m *memStore) SaveRecord(ctx context.Context, record *Record) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *record)
	return nil
}

func newTestOrchestrator(store RecordStore, mock AICapability) *Orchestrator {
	o := NewOrchestrator(store, mock, nil, nil)
	o.Sleep = func(time.Duration) {}
	return o
}

func opportunityItem() sources.RawContentItem {
	return testItem(
		"$50,000 AI Innovation Grant for Kenyan Startups",
		"https://example.org/grants/kenya-ai",
		strings.Repeat("A call for applications from Kenyan AI startups. ", 5)+
			"Grant funding of up to $50,000. Apply now before the submission deadline of 15 March 2026.",
	)
}

func ambiguousItem() sources.RawContentItem {
	return testItem(
		"Foundation Announces New Fellowship",
		"https://example.org/mixed",
		strings.Repeat("The foundation launches program details soon; a fellowship is expected. ", 3),
	)
}

func TestProcess_HighConfidenceAutoApproved(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{
		validityFn: func(title, body string) (*ai.ValidityResult, error) {
			return &ai.ValidityResult{Score: 0.95}, nil
		},
		extractFn: func(title, url, text string) (*ai.ExtractedFields, error) {
			return &ai.ExtractedFields{
				AmountMax:   50000,
				Currency:    "USD",
				DeadlineISO: "2026-03-15",
				Eligibility: []string{"Kenyan startups"},
				ContactInfo: "grants@example.org",
				Summary:     "AI grant for Kenyan startups.",
			}, nil
		},
	}
	o := newTestOrchestrator(store, mock)

	record := o.Process(context.Background(), opportunityItem())

	if record.Decision != DecisionAutoApproved {
		t.Fatalf("expected auto_approved, got %s (%s, score %f)",
			record.Decision, record.DecisionReason, record.ConfidenceScore)
	}
	if record.Classification != ClassOpportunity {
		t.Fatalf("expected opportunity, got %s", record.Classification)
	}
	if len(record.Embedding) == 0 {
		t.Fatal("accepted record must carry an embedding")
	}
	if o.Index.Len() != 1 {
		t.Fatalf("accepted record must be indexed, index has %d", o.Index.Len())
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(store.saved))
	}
}

func TestProcess_IrrelevantShortCircuits(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{}
	o := newTestOrchestrator(store, mock)

	item := testItem(
		"Ten Tips for Better Sleep",
		"https://example.org/lifestyle",
		"Doctors recommend a consistent bedtime and less screen time before bed.",
	)
	record := o.Process(context.Background(), item)

	if record.Decision != DecisionRejected {
		t.Fatalf("expected rejected, got %s", record.Decision)
	}
	if record.DecisionReason != ReasonNotRelevant {
		t.Fatalf("expected not_relevant, got %s", record.DecisionReason)
	}
	if mock.validityCalls != 0 || mock.extractCalls != 0 || mock.embedCalls != 0 {
		t.Fatalf("irrelevant item must not reach later AI stages: validity=%d extract=%d embed=%d",
			mock.validityCalls, mock.extractCalls, mock.embedCalls)
	}
	if record.Stage != StageClassified {
		t.Fatalf("expected pipeline to stop at classified, got %s", record.Stage)
	}
	if o.Index.Len() != 0 {
		t.Fatal("rejected item must not be indexed")
	}
}

func TestProcess_SecondIdenticalItemIsExactDuplicate(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{validityFn: func(title, body string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.95}, nil
	}}
	o := newTestOrchestrator(store, mock)

	first := o.Process(context.Background(), opportunityItem())
	if !first.Indexable() {
		t.Fatalf("first pass must be accepted, got %s", first.Decision)
	}
	extractCallsAfterFirst := mock.extractCalls

	second := o.Process(context.Background(), opportunityItem())

	if second.Decision != DecisionRejected {
		t.Fatalf("expected rejected, got %s", second.Decision)
	}
	if second.DecisionReason != ReasonExactDuplicate {
		t.Fatalf("expected exact_duplicate, got %s", second.DecisionReason)
	}
	if second.DuplicateOf != first.ID.String() {
		t.Fatalf("expected attribution to %s, got %s", first.ID, second.DuplicateOf)
	}
	if mock.extractCalls != extractCallsAfterFirst {
		t.Fatal("duplicate must not be enriched")
	}
}

func TestProcess_TrackingParamsStillDuplicate(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{validityFn: func(title, body string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.95}, nil
	}}
	o := newTestOrchestrator(store, mock)

	first := opportunityItem()
	o.Process(context.Background(), first)

	tracked := first
	tracked.URL = first.URL + "?utm_source=newsletter&utm_campaign=feb"
	second := o.Process(context.Background(), tracked)

	if second.DecisionReason != ReasonExactDuplicate {
		t.Fatalf("tracking params must not defeat dedup, got %s (%s)",
			second.Decision, second.DecisionReason)
	}
}

func TestProcess_TransientAIFailureExhaustsRetries(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{classifyFn: func(title, body string) (*ai.ClassifyResult, error) {
		return nil, &ai.ServiceError{Op: "classify", Err: errors.New("model timeout")}
	}}
	o := newTestOrchestrator(store, mock)

	record := o.Process(context.Background(), ambiguousItem())

	if record.Decision != DecisionFailedPermanently {
		t.Fatalf("expected failed_permanently, got %s", record.Decision)
	}
	if mock.classifyCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", mock.classifyCalls)
	}
	if len(record.Errors) != 3 {
		t.Fatalf("expected 3 error log entries, got %d", len(record.Errors))
	}
	if len(store.saved) != 1 {
		t.Fatal("failed record must still be persisted")
	}
	if o.Index.Len() != 0 {
		t.Fatal("failed record must not be indexed")
	}
}

func TestProcess_ValidationTimeoutExhaustsRetries(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{validityFn: func(title, body string) (*ai.ValidityResult, error) {
		return nil, &ai.ServiceError{Op: "validate", Err: errors.New("model timeout")}
	}}
	o := newTestOrchestrator(store, mock)

	record := o.Process(context.Background(), opportunityItem())

	if record.Decision != DecisionFailedPermanently {
		t.Fatalf("expected failed_permanently, got %s", record.Decision)
	}
	if mock.validityCalls != 3 {
		t.Fatalf("expected 3 validation attempts, got %d", mock.validityCalls)
	}
	if mock.extractCalls != 0 {
		t.Fatal("failed validation must not reach enrichment")
	}
	if len(store.saved) != 1 {
		t.Fatal("failed record must still be persisted")
	}
}

func TestProcess_CancelledContextDiscardsRecord(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{}
	o := newTestOrchestrator(store, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	record := o.Process(ctx, opportunityItem())

	if len(store.saved) != 0 {
		t.Fatalf("cancelled item must not be persisted, got %d saves", len(store.saved))
	}
	if record == nil {
		t.Fatal("expected a record even when cancelled")
	}
	if o.Index.Len() != 0 {
		t.Fatal("cancelled item must not be indexed")
	}
}

func TestProcess_LowValidityRejects(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{validityFn: func(title, body string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.0, Flags: []string{"fabricated"}}, nil
	}}
	o := newTestOrchestrator(store, mock)

	item := testItem(
		"Guaranteed Approval Grant",
		"https://example.org/scam",
		strings.Repeat("Apply now for this grant. ", 10)+
			"Guaranteed approval, wire transfer only, processing fee required up front.",
	)
	record := o.Process(context.Background(), item)

	if record.Decision != DecisionRejected {
		t.Fatalf("expected rejected, got %s", record.Decision)
	}
	if record.DecisionReason != ReasonFailedValidation {
		t.Fatalf("expected failed_validation, got %s", record.DecisionReason)
	}
	if mock.extractCalls != 0 {
		t.Fatal("invalid item must not be enriched")
	}
}

func TestProcess_StageHistoryIsMonotonic(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{validityFn: func(title, body string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.95}, nil
	}}
	o := newTestOrchestrator(store, mock)

	record := o.Process(context.Background(), opportunityItem())

	last := -1
	for _, stage := range record.StageHistory {
		order, ok := stageOrder[stage]
		if !ok {
			t.Fatalf("unknown stage in history: %s", stage)
		}
		if order <= last {
			t.Fatalf("stage history not strictly increasing: %v", record.StageHistory)
		}
		last = order
	}
	if record.Stage != StageScored {
		t.Fatalf("accepted record must end at scored, got %s", record.Stage)
	}
}

func TestProcess_EmbeddingFailureDoesNotBlockApproval(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{
		validityFn: func(title, body string) (*ai.ValidityResult, error) {
			return &ai.ValidityResult{Score: 0.95}, nil
		},
		embedFn: func(text string) ([]float32, error) {
			return nil, &ai.ServiceError{Op: "embedding", Err: errors.New("model offline")}
		},
	}
	o := newTestOrchestrator(store, mock)

	record := o.Process(context.Background(), opportunityItem())

	if record.Decision != DecisionAutoApproved {
		t.Fatalf("embedding failure must not change the decision, got %s", record.Decision)
	}
	if len(record.Embedding) != 0 {
		t.Fatal("expected no embedding")
	}
	if o.Index.Len() != 1 {
		t.Fatal("record must still be indexed")
	}
}

func TestRun_WorkerPoolProcessesAllSources(t *testing.T) {
	store := &memStore{}
	mock := &stubAI{validityFn: func(title, body string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.95}, nil
	}}
	o := newTestOrchestrator(store, mock)
	o.Workers = 2

	itemsA := []sources.RawContentItem{
		testItem("$20,000 AI Grant Alpha, apply now", "https://example.org/a", strings.Repeat("Grant funding for AI, apply now. ", 10)),
	}
	itemsB := []sources.RawContentItem{
		testItem("$30,000 AI Grant Beta, apply now", "https://example.org/b", strings.Repeat("Fellowship funding for robotics, applications open. ", 10)),
	}

	adapters := []sources.Adapter{
		&staticAdapter{id: "src-a", items: itemsA},
		&staticAdapter{id: "src-b", items: itemsB},
	}
	stats := o.Run(context.Background(), adapters)

	if stats.Discovered != 2 {
		t.Fatalf("expected 2 discovered, got %d", stats.Discovered)
	}
	if stats.Processed() != 2 {
		t.Fatalf("expected 2 processed, got %d", stats.Processed())
	}
	if len(store.saved) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(store.saved))
	}
}

type staticAdapter struct {
	id    string
	items []sources.RawContentItem
}

func (a *staticAdapter) ID() string { return a.id }

func (a *staticAdapter) Discover(ctx context.Context) (<-chan sources.ItemResult, error) {
	out := make(chan sources.ItemResult, len(a.items))
	for _, item := range a.items {
		out <- sources.ItemResult{Item: item}
	}
	close(out)
	return out, nil
}
