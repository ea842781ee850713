package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/amara/fund-radar/internal/sources"
)

// ValidityFloor is the hard floor: a validity score below it terminates the
// pipeline with a "failed_validation" rejection. At or above the floor the
// score only feeds the final confidence, it is not a second gate.
const ValidityFloor = 0.3

// knownFunders boosts legitimacy for organizations that regularly fund AI
// work in Africa.
var knownFunders = []string{
	"science for africa", "idrc", "gates foundation", "mozilla foundation",
	"google.org", "afd", "giz", "world bank", "african development bank",
	"mastercard foundation", "luminate", "ford foundation", "wellcome",
	"unesco", "undp", "fcdo", "usaid", "horizon europe", "nepad", "auda",
	"rockefeller foundation",
}

// redFlagTerms are patterns common in scams and junk submissions.
var redFlagTerms = []string{
	"guaranteed approval", "processing fee required", "wire transfer",
	"western union", "claim your funds", "100% free money", "no application needed",
	"winner notification", "lottery",
}

// Validator combines structural checks, legitimacy heuristics and the AI
// quality assessment into a single validity score.
type Validator struct {
	AI AICapability
}

func NewValidator(aiCap AICapability) *Validator {
	return &Validator{AI: aiCap}
}

// ValidationOutcome carries the score and any heuristic flags raised.
type ValidationOutcome struct {
	Score float64
	Flags []string
}

// Validate scores one item. Returns an error only on transient AI failure;
// a low score is a business outcome, not an error.
func (v *Validator) Validate(ctx context.Context, item sources.RawContentItem, classification Classification) (ValidationOutcome, error) {
	outcome := ValidationOutcome{}

	structural, structFlags := structuralScore(item)
	outcome.Flags = append(outcome.Flags, structFlags...)
	if structural == 0 {
		// Empty title/body or a hopeless URL cannot be salvaged by the AI
		// assessment; skip the call.
		return outcome, nil
	}

	text := strings.ToLower(item.Title + " " + HTMLToText(item.BodyText))

	boost := 0.0
	for _, funder := range knownFunders {
		if strings.Contains(text, funder) {
			boost = 0.1
			outcome.Flags = append(outcome.Flags, "known_funder")
			break
		}
	}

	penalty := 0.0
	for _, term := range redFlagTerms {
		if strings.Contains(text, term) {
			penalty += 0.3
			outcome.Flags = append(outcome.Flags, "red_flag:"+term)
		}
	}

	aiScore := 0.6 // neutral default when no AI capability is wired
	if v.AI != nil {
		result, err := v.AI.AssessValidity(ctx, item.Title, HTMLToText(item.BodyText))
		if err != nil {
			return ValidationOutcome{}, err
		}
		aiScore = result.Score
		outcome.Flags = append(outcome.Flags, result.Flags...)
	}

	score := 0.4*structural + 0.6*aiScore + boost - penalty
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	outcome.Score = score
	return outcome, nil
}

// structuralScore checks the cheap plausibility signals: non-empty title and
// body, and a URL that parses to a real-looking host.
func structuralScore(item sources.RawContentItem) (float64, []string) {
	var flags []string
	score := 1.0

	title := cleanText(item.Title)
	body := cleanText(HTMLToText(item.BodyText))

	if title == "" {
		return 0, []string{"empty_title"}
	}
	if body == "" {
		return 0, []string{"empty_body"}
	}
	if len(body) < 80 {
		score -= 0.3
		flags = append(flags, "short_text")
	}

	u, err := url.Parse(item.URL)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return 0, append(flags, "bad_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return 0, append(flags, "bad_url_scheme")
	}

	return score, flags
}
