package ports

import (
	"context"

	"threatscope/internal/domain"
)

// ResultSink persists the records of one run. Writes are append-only.
type ResultSink interface {
	RecordScrape(ctx context.Context, rec domain.ScrapeRecord) error
	RecordAnalysis(ctx context.Context, rec domain.AnalysisRecord) error
}

// IndicatorSink is implemented by sinks that store flattened indicators.
type IndicatorSink interface {
	RecordIndicator(ctx context.Context, ind domain.ThreatIndicator) error
}

// MetricsSink is implemented by sinks that keep per-run dashboard counts.
type MetricsSink interface {
	RecordMetrics(ctx context.Context, m domain.DashboardMetrics) error
}

// AnalysisReader is the read side used by dashboards and the history service.
type AnalysisReader interface {
	Recent(ctx context.Context, limit int) ([]domain.StoredAnalysis, error)
	LatestByAddress(ctx context.Context, address string) (rec domain.StoredAnalysis, exists bool, err error)
	LatestByDomain(ctx context.Context, registrable string) (rec domain.StoredAnalysis, exists bool, err error)
	TierCounts(ctx context.Context) (map[domain.Tier]int, error)
}
