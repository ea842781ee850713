package ai

import (
	"context"
	"fmt"
	"log"
)

// ExtractedFields represents the structured output from the LLM enrichment
// pass. Any field the model could not find stays at its zero value.
type ExtractedFields struct {
	AmountMin   float64  `json:"amount_min"`
	AmountMax   float64  `json:"amount_max"`
	Currency    string   `json:"currency"`
	DeadlineISO string   `json:"deadline_iso"`
	Eligibility []string `json:"eligibility"`
	ContactInfo string   `json:"contact_info"`
	Summary     string   `json:"summary"`
}

// ExtractFundingFields uses the LLM to pull structured funding data out of
// combined title+body+deep-crawl text.
func ExtractFundingFields(ctx context.Context, client *OllamaClient, title, url, text string) (*ExtractedFields, error) {
	prompt := fmt.Sprintf(`You are an expert grant analyst. Extract key information from the following funding opportunity text into JSON format.

Input:
Title: %s
URL: %s
Text:
%s

Instructions:
1. Extract AMOUNT: amount_min and amount_max as numbers, currency as a 3-letter ISO code (e.g. USD, EUR, KES, NGN, ZAR).
2. Extract the application deadline as deadline_iso (ISO 8601 YYYY-MM-DD). Leave null if no explicit deadline.
3. Eligibility: list eligibility criteria as short strings (e.g. "African-led startups", "registered NGOs").
4. contact_info: email address or contact page if present.
5. Summary: write a 1-2 sentence neutral summary.
6. Leave any field you cannot find at null / 0 / empty. Do not guess.

JSON Schema:
{
	"amount_min": number,
	"amount_max": number,
	"currency": "3-letter ISO code or null",
	"deadline_iso": "YYYY-MM-DD or null",
	"eligibility": ["string"],
	"contact_info": "string or null",
	"summary": "string"
}

Respond ONLY with the JSON object.`, title, url, clampText(text, 8000))

	// JSON mode first; fall back to text mode with robust extraction when the
	// model ignores the format hint.
	resp, err := client.GenerateCompletion(ctx, prompt, true)
	if err == nil {
		var data ExtractedFields
		if parseErr := parseJSONResponse(resp, &data); parseErr == nil {
			return &data, nil
		} else {
			log.Printf("JSON mode failed parsing: %v. Retrying with text mode...", parseErr)
		}
	} else {
		log.Printf("JSON mode generation failed: %v. Retrying with text mode...", err)
	}

	resp, err = client.GenerateCompletion(ctx, prompt, false)
	if err != nil {
		return nil, err
	}

	var data ExtractedFields
	if err := parseJSONResponse(resp, &data); err != nil {
		return nil, &ServiceError{Op: "extract", Err: fmt.Errorf("failed to parse LLM JSON after retry: %w (response: %s)", err, resp)}
	}

	return &data, nil
}
