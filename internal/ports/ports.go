package ports

import (
	"context"

	"threatscope/internal/domain"
)

// Analyzer runs one fetch-detect-score pipeline per call.
type Analyzer interface {
	Analyze(ctx context.Context, address string) (domain.AnalysisRecord, error)
	Report(ctx context.Context, address string) (domain.Report, error)
}

// History serves previously stored analyses.
type History interface {
	Recent(ctx context.Context, limit int) ([]domain.StoredAnalysis, error)
	LatestForAddress(ctx context.Context, address string) (domain.StoredAnalysis, error)
	LatestForDomain(ctx context.Context, registrable string) (domain.StoredAnalysis, error)
	TierDistribution(ctx context.Context) (map[domain.Tier]int, error)
}

// Fetcher retrieves the plain text behind an address.
type Fetcher interface {
	Classify(addr domain.TargetAddress) domain.Transport
	Fetch(ctx context.Context, addr domain.TargetAddress) (string, error)
}

// InsightGenerator produces a free-form narrative about scraped text.
type InsightGenerator interface {
	GenerateInsight(ctx context.Context, text string) (string, error)
}
