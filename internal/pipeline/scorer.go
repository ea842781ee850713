package pipeline

// ScoreConfig holds the routing thresholds and component weights. The four
// weights should sum to 1.0.
type ScoreConfig struct {
	AutoApproveThreshold float64
	ReviewFloor          float64

	ClassificationWeight float64
	NoveltyWeight        float64
	ValidityWeight       float64
	CompletenessWeight   float64
}

// DefaultScoreConfig returns the production routing policy.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		AutoApproveThreshold: 0.85,
		ReviewFloor:          0.50,
		ClassificationWeight: 0.25,
		NoveltyWeight:        0.25,
		ValidityWeight:       0.35,
		CompletenessWeight:   0.15,
	}
}

// Scorer computes the final confidence score and routes the record to a
// terminal decision.
type Scorer struct {
	Config ScoreConfig
}

func NewScorer(config ScoreConfig) *Scorer {
	return &Scorer{Config: config}
}

// Score computes the weighted confidence score for a record that survived
// every filtering stage.
func (s *Scorer) Score(record *Record) float64 {
	novelty := 1.0 - record.SimilarityScore
	if novelty < 0 {
		novelty = 0
	}

	score := s.Config.ClassificationWeight*record.ClassConfidence +
		s.Config.NoveltyWeight*novelty +
		s.Config.ValidityWeight*record.ValidityScore +
		s.Config.CompletenessWeight*record.Enriched.Completeness()

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Route assigns the terminal decision from the confidence score. Near
// duplicates and items whose duplicate lookup failed are capped at
// needs_review regardless of score; a human settles borderline matches.
func (s *Scorer) Route(record *Record) {
	record.ConfidenceScore = s.Score(record)

	switch {
	case record.ConfidenceScore >= s.Config.AutoApproveThreshold:
		if record.NearDuplicate {
			record.Decision = DecisionNeedsReview
			record.DecisionReason = "near_duplicate"
			return
		}
		if record.DedupUnknown {
			record.Decision = DecisionNeedsReview
			record.DecisionReason = "dedup_unverified"
			return
		}
		record.Decision = DecisionAutoApproved
		record.DecisionReason = "high_confidence"
	case record.ConfidenceScore >= s.Config.ReviewFloor:
		record.Decision = DecisionNeedsReview
		record.DecisionReason = "moderate_confidence"
	default:
		record.Decision = DecisionRejected
		record.DecisionReason = ReasonLowConfidence
	}
}
