package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/amara/fund-radar/internal/models"
	"github.com/amara/fund-radar/internal/pipeline"
)

// StorageError wraps database failures. The pipeline treats them as
// transient and retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Transient() bool { return true }

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const saveRecordSQL = `
	INSERT INTO ingest_records (
		id, fingerprint, source_name, source_type, url, title, body_text,
		classification, class_confidence, similarity_score, near_duplicate, duplicate_of,
		validity_score, validity_flags,
		amount_min, amount_max, currency, deadline_at, eligibility, contact_info, summary,
		confidence_score, decision, decision_reason, stage, stage_history, error_log,
		embedding, discovered_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12,
		$13, $14,
		$15, $16, $17, $18, $19, $20, $21,
		$22, $23, $24, $25, $26, $27,
		$28, $29, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		classification = EXCLUDED.classification,
		class_confidence = EXCLUDED.class_confidence,
		similarity_score = EXCLUDED.similarity_score,
		near_duplicate = EXCLUDED.near_duplicate,
		duplicate_of = EXCLUDED.duplicate_of,
		validity_score = EXCLUDED.validity_score,
		validity_flags = EXCLUDED.validity_flags,
		amount_min = EXCLUDED.amount_min,
		amount_max = EXCLUDED.amount_max,
		currency = EXCLUDED.currency,
		deadline_at = EXCLUDED.deadline_at,
		eligibility = EXCLUDED.eligibility,
		contact_info = EXCLUDED.contact_info,
		summary = EXCLUDED.summary,
		confidence_score = EXCLUDED.confidence_score,
		decision = EXCLUDED.decision,
		decision_reason = EXCLUDED.decision_reason,
		stage = EXCLUDED.stage,
		stage_history = EXCLUDED.stage_history,
		error_log = EXCLUDED.error_log,
		embedding = EXCLUDED.embedding,
		updated_at = NOW()`

// SaveRecord upserts a pipeline record keyed by its ID, so a record saved
// twice (a reprocessed item) overwrites its previous state.
func (s *Store) SaveRecord(ctx context.Context, record *pipeline.Record) error {
	errorLog, err := json.Marshal(record.Errors)
	if err != nil {
		return &StorageError{Op: "save_record", Err: err}
	}

	stageHistory := make([]string, len(record.StageHistory))
	for i, stage := range record.StageHistory {
		stageHistory[i] = string(stage)
	}

	var embedding interface{}
	if len(record.Embedding) > 0 {
		embedding = pgvector.NewVector(record.Embedding)
	}

	var deadline interface{}
	if record.Enriched.Deadline != nil {
		deadline = *record.Enriched.Deadline
	}

	var duplicateOf interface{}
	if record.DuplicateOf != "" {
		duplicateOf = record.DuplicateOf
	}

	_, err = s.pool.Exec(ctx, saveRecordSQL,
		record.ID, record.Fingerprint, record.Item.SourceName, string(record.Item.SourceType),
		record.Item.URL, record.Item.Title, record.Item.BodyText,
		string(record.Classification), record.ClassConfidence,
		record.SimilarityScore, record.NearDuplicate, duplicateOf,
		record.ValidityScore, record.ValidityFlags,
		record.Enriched.FundingAmountMin, record.Enriched.FundingAmountMax,
		record.Enriched.Currency, deadline, record.Enriched.Eligibility,
		record.Enriched.ContactInfo, record.Enriched.Summary,
		record.ConfidenceScore, string(record.Decision), record.DecisionReason,
		string(record.Stage), stageHistory, errorLog,
		embedding, record.Item.DiscoveredAt,
	)
	if err != nil {
		return &StorageError{Op: "save_record", Err: err}
	}
	return nil
}

// FingerprintExists reports whether an accepted record already carries the
// fingerprint, returning its ID for duplicate_of attribution.
func (s *Store) FingerprintExists(ctx context.Context, fingerprint string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text FROM ingest_records
		WHERE fingerprint = $1 AND decision IN ('auto_approved', 'needs_review')
		LIMIT 1`, fingerprint).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "fingerprint_exists", Err: err}
	}
	return id, true, nil
}

// LoadIndexEntries rehydrates the in-memory duplicate index from the most
// recently accepted records.
func (s *Store) LoadIndexEntries(ctx context.Context, limit int) ([]pipeline.IndexEntry, error) {
	if limit <= 0 {
		limit = 5000
	}

	rows, err := s.pool.Query(ctx, `
		SELECT fingerprint, id::text, source_name, title, body_text, created_at
		FROM ingest_records
		WHERE decision IN ('auto_approved', 'needs_review')
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, &StorageError{Op: "load_index", Err: err}
	}
	defer rows.Close()

	var entries []pipeline.IndexEntry
	for rows.Next() {
		var fingerprint, id, sourceName, title, body string
		var createdAt time.Time
		if err := rows.Scan(&fingerprint, &id, &sourceName, &title, &body, &createdAt); err != nil {
			return nil, &StorageError{Op: "load_index", Err: err}
		}
		entries = append(entries, pipeline.SeedIndexEntry(fingerprint, id, sourceName, title, body, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "load_index", Err: err}
	}
	return entries, nil
}

const opportunityCols = `id, title, summary, url, source_name, source_type,
	classification, amount_min, amount_max, currency, deadline_at,
	eligibility, contact_info, confidence_score, decision, decision_reason,
	discovered_at, created_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.Title, &o.Summary, &o.URL, &o.SourceName, &o.SourceType,
		&o.Classification, &o.AmountMin, &o.AmountMax, &o.Currency, &o.Deadline,
		&o.Eligibility, &o.ContactInfo, &o.ConfidenceScore, &o.Decision, &o.DecisionReason,
		&o.DiscoveredAt, &o.CreatedAt,
	)
	return o, err
}

// ListOpportunities returns accepted records for the given decision,
// newest first.
func (s *Store) ListOpportunities(ctx context.Context, decision string, limit, offset int) ([]models.Opportunity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM ingest_records
		WHERE decision = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, opportunityCols), decision, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list_opportunities", Err: err}
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, &StorageError{Op: "list_opportunities", Err: err}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list_opportunities", Err: err}
	}
	return out, nil
}

// ReviewQueue returns items awaiting a human decision, oldest first so the
// queue drains in discovery order.
func (s *Store) ReviewQueue(ctx context.Context, limit, offset int) ([]models.Opportunity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM ingest_records
		WHERE decision = 'needs_review'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2`, opportunityCols), limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "review_queue", Err: err}
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, &StorageError{Op: "review_queue", Err: err}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "review_queue", Err: err}
	}
	return out, nil
}

// GetStats aggregates decision counts since the given time.
func (s *Store) GetStats(ctx context.Context, since time.Time) (*models.RunStats, error) {
	stats := &models.RunStats{BySource: map[string]int{}}

	rows, err := s.pool.Query(ctx, `
		SELECT decision, source_name, COUNT(*)
		FROM ingest_records
		WHERE created_at >= $1
		GROUP BY decision, source_name`, since)
	if err != nil {
		return nil, &StorageError{Op: "get_stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var decision, sourceName string
		var count int
		if err := rows.Scan(&decision, &sourceName, &count); err != nil {
			return nil, &StorageError{Op: "get_stats", Err: err}
		}
		stats.Total += count
		stats.BySource[sourceName] += count
		switch decision {
		case "auto_approved":
			stats.AutoApproved += count
		case "needs_review":
			stats.NeedsReview += count
		case "rejected":
			stats.Rejected += count
		case "failed_permanently":
			stats.FailedPermanently += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get_stats", Err: err}
	}
	return stats, nil
}
