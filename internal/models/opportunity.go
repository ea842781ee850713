package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is the published view of an accepted funding opportunity, the
// shape served by the API and consumed by downstream feeds.
type Opportunity struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary,omitempty"`
	URL        string    `json:"url"`
	SourceName string    `json:"source_name"`
	SourceType string    `json:"source_type"`

	Classification string `json:"classification"`

	AmountMin   float64    `json:"amount_min,omitempty"`
	AmountMax   float64    `json:"amount_max,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Eligibility []string   `json:"eligibility,omitempty"`
	ContactInfo string     `json:"contact_info,omitempty"`

	ConfidenceScore float64 `json:"confidence_score"`
	Decision        string  `json:"decision"`
	DecisionReason  string  `json:"decision_reason,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunStats summarizes processing outcomes over a time window.
type RunStats struct {
	Total             int            `json:"total"`
	AutoApproved      int            `json:"auto_approved"`
	NeedsReview       int            `json:"needs_review"`
	Rejected          int            `json:"rejected"`
	FailedPermanently int            `json:"failed_permanently"`
	BySource          map[string]int `json:"by_source,omitempty"`
}
