package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/amara/fund-radar/internal/ai"
)

func TestValidate_EmptyBodySkipsAI(t *testing.T) {
	mock := &stubAI{}
	validator := NewValidator(mock)

	item := testItem("AI Grant", "https://example.org/grant", "")
	outcome, err := validator.Validate(context.Background(), item, ClassOpportunity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Score != 0 {
		t.Fatalf("empty body must score 0, got %f", outcome.Score)
	}
	if mock.validityCalls != 0 {
		t.Fatalf("hopeless item must not cost an AI call, got %d", mock.validityCalls)
	}
}

func TestValidate_MalformedURLScoresZero(t *testing.T) {
	validator := NewValidator(nil)

	item := testItem("AI Grant", "not-a-url", strings.Repeat("Funding details. ", 20))
	outcome, err := validator.Validate(context.Background(), item, ClassOpportunity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Score != 0 {
		t.Fatalf("malformed URL must score 0, got %f", outcome.Score)
	}
}

func TestValidate_KnownFunderBoost(t *testing.T) {
	body := strings.Repeat("A funding call for AI research projects across the continent. ", 5)

	validator := NewValidator(&stubAI{validityFn: func(title, b string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.7}, nil
	}})

	plain := testItem("AI Research Call", "https://example.org/call", body)
	funder := testItem("AI Research Call", "https://example.org/call", body+" Funded by the Gates Foundation.")

	plainOutcome, err := validator.Validate(context.Background(), plain, ClassOpportunity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	funderOutcome, err := validator.Validate(context.Background(), funder, ClassOpportunity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if funderOutcome.Score <= plainOutcome.Score {
		t.Fatalf("known funder must boost the score: %f vs %f", funderOutcome.Score, plainOutcome.Score)
	}
	if !containsFlag(funderOutcome.Flags, "known_funder") {
		t.Fatalf("expected known_funder flag, got %v", funderOutcome.Flags)
	}
}

func TestValidate_RedFlagsPenalize(t *testing.T) {
	body := strings.Repeat("Apply for this grant today. ", 10) +
		"Guaranteed approval! A small processing fee required before disbursement via wire transfer."

	validator := NewValidator(&stubAI{validityFn: func(title, b string) (*ai.ValidityResult, error) {
		return &ai.ValidityResult{Score: 0.9}, nil
	}})

	item := testItem("Free Money Grant", "https://example.org/scam", body)
	outcome, err := validator.Validate(context.Background(), item, ClassOpportunity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Score >= ValidityFloor {
		t.Fatalf("three red flags must sink the score below the floor, got %f", outcome.Score)
	}
}

func TestValidate_AIErrorPropagates(t *testing.T) {
	validator := NewValidator(&stubAI{validityFn: func(title, b string) (*ai.ValidityResult, error) {
		return nil, &ai.ServiceError{Op: "assess_validity", Err: context.DeadlineExceeded}
	}})

	item := testItem("AI Grant", "https://example.org/grant", strings.Repeat("Funding details here. ", 10))
	_, err := validator.Validate(context.Background(), item, ClassOpportunity)
	if !ai.IsServiceError(err) {
		t.Fatalf("expected transient service error to propagate, got %v", err)
	}
}

func containsFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
