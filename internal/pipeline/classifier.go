package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/amara/fund-radar/internal/sources"
)

// opportunityKeywords strongly indicate an applicable funding call.
var opportunityKeywords = []string{
	"grant", "rfp", "request for proposals", "call for proposals",
	"call for applications", "funding opportunity", "funding call",
	"fellowship", "apply now", "applications open", "accelerator",
	"seed funding", "prize", "award competition", "expression of interest",
	"submission deadline",
}

// announcementKeywords indicate funding news rather than an applicable call.
var announcementKeywords = []string{
	"announces", "announced", "awarded to", "winners", "recipients",
	"has received", "secures funding", "raises", "partnership launch",
	"launches program",
}

// amountPattern matches currency-amount shapes like "$50,000", "€1.2 million",
// "KES 500,000", "up to 100,000 USD".
var amountPattern = regexp.MustCompile(`(?i)([$€£]|usd|eur|gbp|kes|ngn|zar|ghs)\s?\d[\d,.]*(\s?(million|m|k|bn))?|\d[\d,.]*\s?(usd|eur|gbp|kes|ngn|zar|ghs)`)

// Classifier labels raw items as opportunity / announcement / irrelevant.
// The keyword pre-filter decides the clear-cut cases for free; only ambiguous
// items cost an AI call. Deterministic for identical input, so retries and
// re-runs yield the same label.
type Classifier struct {
	AI AICapability
}

func NewClassifier(aiCap AICapability) *Classifier {
	return &Classifier{AI: aiCap}
}

// ClassifyOutcome carries the label plus the confidence used by the scorer.
type ClassifyOutcome struct {
	Label      Classification
	Confidence float64
}

// Classify labels one item. Returns an error only on transient AI failure.
func (c *Classifier) Classify(ctx context.Context, item sources.RawContentItem) (ClassifyOutcome, error) {
	text := strings.ToLower(cleanText(item.Title + " " + HTMLToText(item.BodyText)))

	oppHits := countHits(text, opportunityKeywords)
	annHits := countHits(text, announcementKeywords)
	hasAmount := amountPattern.MatchString(text)

	// Clear signals skip the AI call entirely.
	switch {
	case oppHits >= 2, oppHits >= 1 && hasAmount:
		return ClassifyOutcome{Label: ClassOpportunity, Confidence: 0.9}, nil
	case annHits >= 2 && oppHits == 0:
		return ClassifyOutcome{Label: ClassAnnouncement, Confidence: 0.8}, nil
	case oppHits == 0 && annHits == 0 && !hasAmount:
		return ClassifyOutcome{Label: ClassIrrelevant, Confidence: 0.7}, nil
	}

	if c.AI == nil {
		// Mixed signals but no AI available: lean opportunity so the
		// validator and scorer can still weigh in downstream.
		return ClassifyOutcome{Label: ClassOpportunity, Confidence: 0.5}, nil
	}

	result, err := c.AI.ClassifyContent(ctx, item.Title, HTMLToText(item.BodyText))
	if err != nil {
		return ClassifyOutcome{}, err
	}

	label := Classification(result.Label)
	switch label {
	case ClassOpportunity, ClassAnnouncement, ClassIrrelevant:
	default:
		label = ClassIrrelevant
	}
	return ClassifyOutcome{Label: label, Confidence: result.Confidence}, nil
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}
