package ai

import (
	"context"
	"fmt"
	"strings"
)

// ClassifyResult is the typed output of a classify_text call.
type ClassifyResult struct {
	Label      string  `json:"label"` // opportunity, announcement, irrelevant
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

var allowedLabels = []string{"opportunity", "announcement", "irrelevant"}

// ClassifyContent asks the LLM whether a discovered item is a funding
// opportunity, a plain announcement, or irrelevant noise. Used only for items
// the keyword pre-filter could not decide.
func ClassifyContent(ctx context.Context, client *OllamaClient, title, body string) (*ClassifyResult, error) {
	prompt := fmt.Sprintf(`You are an analyst tracking funding and RFP opportunities for AI development in Africa. Classify the following content item.

TITLE: %s
BODY:
%s

Labels:
- "opportunity": an open or upcoming grant, RFP, prize, fellowship, accelerator call, or other funding a reader could apply to.
- "announcement": funding-related news (awards made, program launches, partnership announcements) a reader cannot apply to.
- "irrelevant": anything else (product news, opinion pieces, spam).

Return ONLY a JSON object:
{
  "label": "opportunity" | "announcement" | "irrelevant",
  "confidence": 0.0-1.0,
  "reason": "brief explanation"
}`, title, clampText(body, 6000))

	resp, err := client.GenerateCompletion(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var result ClassifyResult
	if err := parseJSONResponse(resp, &result); err != nil {
		return nil, &ServiceError{Op: "classify", Err: fmt.Errorf("failed to parse classification json: %w (response: %s)", err, resp)}
	}

	result.Label = strings.ToLower(strings.TrimSpace(result.Label))
	if !isAllowedLabel(result.Label) {
		return nil, &ServiceError{Op: "classify", Err: fmt.Errorf("unexpected label %q", result.Label)}
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	return &result, nil
}

func isAllowedLabel(label string) bool {
	for _, a := range allowedLabels {
		if a == label {
			return true
		}
	}
	return false
}

func clampText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
