package ai

import (
	"context"
	"fmt"
)

// ValidityResult is the typed output of an assess_validity call.
type ValidityResult struct {
	Score float64  `json:"score"` // 0.0-1.0
	Flags []string `json:"flags"`
}

// AssessValidity asks the LLM whether a classified item reads like a
// legitimate, coherent funding text rather than spam, a placeholder, or a
// scraped fragment. The score feeds the final confidence; it is not a second
// gate beyond the hard validation floor.
func AssessValidity(ctx context.Context, client *OllamaClient, title, body string) (*ValidityResult, error) {
	prompt := fmt.Sprintf(`You are vetting funding opportunities for a curated database. Assess whether the following item is a legitimate, coherent funding text.

TITLE: %s
BODY:
%s

Consider:
1. Is there a plausible funder and a coherent description of what is funded?
2. Are any stated amounts and deadlines internally consistent?
3. Does it read like spam, a placeholder, a login wall, or boilerplate?

Return ONLY a JSON object:
{
  "score": 0.0-1.0,
  "flags": ["short_text", "no_funder", "suspicious_amount", "spam_markers", ...]
}

Score 0.9+ for clearly legitimate calls, around 0.5 when signals are mixed, below 0.3 for spam or incoherent fragments.`, title, clampText(body, 6000))

	resp, err := client.GenerateCompletion(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var result ValidityResult
	if err := parseJSONResponse(resp, &result); err != nil {
		return nil, &ServiceError{Op: "validate", Err: fmt.Errorf("failed to parse validity json: %w (response: %s)", err, resp)}
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}

	return &result, nil
}
