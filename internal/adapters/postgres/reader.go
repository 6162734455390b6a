package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"threatscope/internal/domain"
)

const analysisColumns = `
	id::text, run_id::text, url, registrable_domain, transport, pii_detected, keywords_detected,
	suspicious_domains, severity_score, risk_level, scoring_policy, analyzed_at`

// Recent returns the newest analyses first.
func (db *DB) Recent(ctx context.Context, limit int) ([]domain.StoredAnalysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, `SELECT `+analysisColumns+`
		FROM analysis_results
		ORDER BY analyzed_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StoredAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) LatestByAddress(ctx context.Context, address string) (domain.StoredAnalysis, bool, error) {
	return db.latest(ctx, `url = $1`, address)
}

func (db *DB) LatestByDomain(ctx context.Context, registrable string) (domain.StoredAnalysis, bool, error) {
	return db.latest(ctx, `registrable_domain = lower($1)`, registrable)
}

func (db *DB) latest(ctx context.Context, where string, arg string) (domain.StoredAnalysis, bool, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+analysisColumns+`
		FROM analysis_results
		WHERE `+where+`
		ORDER BY analyzed_at DESC, id DESC
		LIMIT 1
	`, arg)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, false, nil
	}
	if err != nil {
		return a, false, err
	}
	return a, true, nil
}

// TierCounts returns the number of stored analyses per risk tier. Every tier is present.
func (db *DB) TierCounts(ctx context.Context) (map[domain.Tier]int, error) {
	out := map[domain.Tier]int{}
	for _, t := range domain.Tiers {
		out[t] = 0
	}
	rows, err := db.Pool.Query(ctx, `SELECT risk_level, count(*) FROM analysis_results GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		out[domain.Tier(tier)] = n
	}
	return out, rows.Err()
}

func scanAnalysis(row pgx.Row) (domain.StoredAnalysis, error) {
	var (
		a                      domain.StoredAnalysis
		url, transport, tier   string
		pii, keywords, domains []byte
		analyzedAt             time.Time
	)
	err := row.Scan(&a.ID, &a.Record.RunID, &url, &a.RegistrableDomain, &transport, &pii, &keywords,
		&domains, &a.Record.Severity.Score, &tier, &a.Record.Severity.Policy, &analyzedAt)
	if err != nil {
		return a, err
	}
	a.Record.Address = domain.TargetAddress(url)
	a.Record.Transport = domain.Transport(transport)
	a.Record.Severity.Tier = domain.Tier(tier)
	a.Record.AnalyzedAt = analyzedAt
	if err := json.Unmarshal(pii, &a.Record.Detection.PII); err != nil {
		return a, err
	}
	if err := json.Unmarshal(keywords, &a.Record.Detection.Keywords); err != nil {
		return a, err
	}
	if err := json.Unmarshal(domains, &a.Record.Detection.Domains); err != nil {
		return a, err
	}
	return a, nil
}
