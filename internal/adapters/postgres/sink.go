package postgres

import (
	"context"
	"encoding/json"

	"threatscope/internal/domain"
)

// RecordScrape stores the raw text of one run.
func (db *DB) RecordScrape(ctx context.Context, rec domain.ScrapeRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO scraped_data (run_id, url, content, scraped_at)
		VALUES ($1, $2, $3, $4)
	`, rec.RunID, string(rec.Address), rec.RawText, rec.CapturedAt)
	if err != nil {
		return &domain.SinkError{Op: "record_scrape", Err: err}
	}
	return nil
}

// RecordAnalysis stores the detection result and severity of one run. The
// scrape row with the same run id must already exist.
func (db *DB) RecordAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	pii, keywords, domains, err := encodeDetection(rec.Detection)
	if err != nil {
		return &domain.SinkError{Op: "record_analysis", Err: err}
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO analysis_results (
			run_id, url, registrable_domain, transport, pii_detected, keywords_detected,
			suspicious_domains, severity_score, risk_level, scoring_policy, analyzed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.RunID, string(rec.Address), rec.Address.RegistrableDomain(), string(rec.Transport),
		pii, keywords, domains, rec.Severity.Score, string(rec.Severity.Tier), rec.Severity.Policy, rec.AnalyzedAt)
	if err != nil {
		return &domain.SinkError{Op: "record_analysis", Err: err}
	}
	return nil
}

func (db *DB) RecordIndicator(ctx context.Context, ind domain.ThreatIndicator) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO threat_intelligence (run_id, url, pii_type, pii_value, category, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ind.RunID, string(ind.Address), ind.Type, ind.Value, ind.Category, ind.DetectedAt)
	if err != nil {
		return &domain.SinkError{Op: "record_indicator", Err: err}
	}
	return nil
}

func (db *DB) RecordMetrics(ctx context.Context, m domain.DashboardMetrics) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO dashboard_metrics (
			run_id, url, email_count, phone_count, credit_card_count, keyword_count, domain_count, severity_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.RunID, string(m.Address), m.EmailCount, m.PhoneCount, m.CreditCardCount, m.KeywordCount, m.DomainCount, m.SeverityScore)
	if err != nil {
		return &domain.SinkError{Op: "record_metrics", Err: err}
	}
	return nil
}

func encodeDetection(d domain.DetectionResult) (pii, keywords, domains []byte, err error) {
	if pii, err = json.Marshal(nonNilPII(d.PII)); err != nil {
		return
	}
	if keywords, err = json.Marshal(nonNil(d.Keywords)); err != nil {
		return
	}
	domains, err = json.Marshal(nonNil(d.Domains))
	return
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilPII(m map[domain.Category][]string) map[domain.Category][]string {
	if m == nil {
		return map[domain.Category][]string{}
	}
	return m
}
