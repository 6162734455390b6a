package history

import (
	"context"
	"strings"

	"threatscope/internal/domain"
	"threatscope/internal/ports"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

type Service struct {
	reader ports.AnalysisReader
}

func New(reader ports.AnalysisReader) *Service { return &Service{reader: reader} }

// Recent returns the newest analyses first. Out-of-range limits are clamped.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.StoredAnalysis, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	out, err := s.reader.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.StoredAnalysis{}
	}
	return out, nil
}

func (s *Service) LatestForAddress(ctx context.Context, address string) (domain.StoredAnalysis, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.StoredAnalysis{}, ErrInvalidQuery
	}
	rec, exists, err := s.reader.LatestByAddress(ctx, address)
	if err != nil {
		return domain.StoredAnalysis{}, err
	}
	if !exists {
		return domain.StoredAnalysis{}, ErrNotFound
	}
	return rec, nil
}

// LatestForDomain accepts either a registrable domain or a full address.
func (s *Service) LatestForDomain(ctx context.Context, registrable string) (domain.StoredAnalysis, error) {
	registrable = strings.ToLower(strings.TrimSpace(registrable))
	if strings.Contains(registrable, "://") {
		registrable = domain.TargetAddress(registrable).RegistrableDomain()
	}
	if registrable == "" {
		return domain.StoredAnalysis{}, ErrInvalidQuery
	}
	rec, exists, err := s.reader.LatestByDomain(ctx, registrable)
	if err != nil {
		return domain.StoredAnalysis{}, err
	}
	if !exists {
		return domain.StoredAnalysis{}, ErrNotFound
	}
	return rec, nil
}

// TierDistribution always reports every tier, zero or not.
func (s *Service) TierDistribution(ctx context.Context) (map[domain.Tier]int, error) {
	counts, err := s.reader.TierCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Tier]int, len(domain.Tiers))
	for _, t := range domain.Tiers {
		out[t] = counts[t]
	}
	return out, nil
}

var (
	ErrNotFound     = errString("not found")
	ErrInvalidQuery = errString("address or domain required")
)

type errString string

func (e errString) Error() string { return string(e) }
