package pipeline

import (
	"math"
	"testing"
	"time"
)

func scoredRecord() *Record {
	record := NewRecord(testItem("AI Grant", "https://example.org/grant", "body"))
	record.ClassConfidence = 1.0
	record.SimilarityScore = 0.0
	record.ValidityScore = 1.0
	deadline := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	record.Enriched = EnrichedFields{
		FundingAmountMax: 50000,
		Currency:         "USD",
		Deadline:         &deadline,
		Eligibility:      []string{"African startups"},
		ContactInfo:      "grants@example.org",
	}
	return record
}

func TestScore_WeightedComponents(t *testing.T) {
	scorer := NewScorer(DefaultScoreConfig())

	record := scoredRecord()
	record.ClassConfidence = 0.8
	record.SimilarityScore = 0.4
	record.ValidityScore = 0.6
	record.Enriched = EnrichedFields{Currency: "USD"} // completeness 1/5

	got := scorer.Score(record)
	want := 0.25*0.8 + 0.25*0.6 + 0.35*0.6 + 0.15*0.2
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestRoute_HighConfidenceAutoApproves(t *testing.T) {
	scorer := NewScorer(DefaultScoreConfig())
	record := scoredRecord()

	scorer.Route(record)

	if record.Decision != DecisionAutoApproved {
		t.Fatalf("expected auto_approved, got %s (%s)", record.Decision, record.DecisionReason)
	}
}

func TestRoute_NearDuplicateNeverAutoApproved(t *testing.T) {
	scorer := NewScorer(DefaultScoreConfig())
	record := scoredRecord()
	record.NearDuplicate = true
	record.SimilarityScore = 0.0 // even with a perfect score

	scorer.Route(record)

	if record.Decision != DecisionNeedsReview {
		t.Fatalf("near duplicate must go to review, got %s", record.Decision)
	}
	if record.DecisionReason != "near_duplicate" {
		t.Fatalf("expected near_duplicate reason, got %s", record.DecisionReason)
	}
}

func TestRoute_DedupUnknownNeverAutoApproved(t *testing.T) {
	scorer := NewScorer(DefaultScoreConfig())
	record := scoredRecord()
	record.DedupUnknown = true

	scorer.Route(record)

	if record.Decision != DecisionNeedsReview {
		t.Fatalf("unverified dedup must go to review, got %s", record.Decision)
	}
}

func TestRoute_MidScoreNeedsReview(t *testing.T) {
	scorer := NewScorer(DefaultScoreConfig())
	record := scoredRecord()
	record.ClassConfidence = 0.7
	record.ValidityScore = 0.6
	record.SimilarityScore = 0.2
	record.Enriched = EnrichedFields{}

	scorer.Route(record)

	if record.Decision != DecisionNeedsReview {
		t.Fatalf("expected needs_review, got %s (score %f)", record.Decision, record.ConfidenceScore)
	}
}

func TestRoute_LowScoreRejects(t *testing.T) {
	scorer := NewScorer(DefaultScoreConfig())
	record := scoredRecord()
	record.ClassConfidence = 0.2
	record.ValidityScore = 0.3
	record.SimilarityScore = 0.9
	record.Enriched = EnrichedFields{}

	scorer.Route(record)

	if record.Decision != DecisionRejected {
		t.Fatalf("expected rejected, got %s (score %f)", record.Decision, record.ConfidenceScore)
	}
	if record.DecisionReason != ReasonLowConfidence {
		t.Fatalf("expected low_confidence reason, got %s", record.DecisionReason)
	}
}
