package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatscope/internal/domain"
)

type fakeReader struct {
	rows      []domain.StoredAnalysis
	lastLimit int
	lastKey   string
	counts    map[domain.Tier]int
	err       error
}

func (f *fakeReader) Recent(_ context.Context, limit int) ([]domain.StoredAnalysis, error) {
	f.lastLimit = limit
	return f.rows, f.err
}

func (f *fakeReader) LatestByAddress(_ context.Context, address string) (domain.StoredAnalysis, bool, error) {
	f.lastKey = address
	for _, r := range f.rows {
		if string(r.Record.Address) == address {
			return r, true, nil
		}
	}
	return domain.StoredAnalysis{}, false, f.err
}

func (f *fakeReader) LatestByDomain(_ context.Context, registrable string) (domain.StoredAnalysis, bool, error) {
	f.lastKey = registrable
	for _, r := range f.rows {
		if r.RegistrableDomain == registrable {
			return r, true, nil
		}
	}
	return domain.StoredAnalysis{}, false, f.err
}

func (f *fakeReader) TierCounts(context.Context) (map[domain.Tier]int, error) {
	return f.counts, f.err
}

func stored(addr string) domain.StoredAnalysis {
	a := domain.TargetAddress(addr)
	return domain.StoredAnalysis{ID: "1", RegistrableDomain: a.RegistrableDomain(), Record: domain.AnalysisRecord{Address: a}}
}

func TestRecentClampsLimit(t *testing.T) {
	r := &fakeReader{}
	s := New(r)

	out, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, DefaultLimit, r.lastLimit)

	_, _ = s.Recent(context.Background(), 10_000)
	assert.Equal(t, MaxLimit, r.lastLimit)

	_, _ = s.Recent(context.Background(), 7)
	assert.Equal(t, 7, r.lastLimit)
}

func TestLatestForAddress(t *testing.T) {
	s := New(&fakeReader{rows: []domain.StoredAnalysis{stored("https://www.example.co.uk/a")}})

	got, err := s.LatestForAddress(context.Background(), " https://www.example.co.uk/a ")
	require.NoError(t, err)
	assert.Equal(t, "example.co.uk", got.RegistrableDomain)

	_, err = s.LatestForAddress(context.Background(), "https://other.example")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LatestForAddress(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestLatestForDomainAcceptsAddress(t *testing.T) {
	r := &fakeReader{rows: []domain.StoredAnalysis{stored("https://shop.example.com/x")}}
	s := New(r)

	_, err := s.LatestForDomain(context.Background(), "https://cdn.Example.com/other")
	require.NoError(t, err)
	assert.Equal(t, "example.com", r.lastKey)

	_, err = s.LatestForDomain(context.Background(), "EXAMPLE.com")
	require.NoError(t, err)
}

func TestReaderErrorsPropagate(t *testing.T) {
	boom := &domain.SinkError{Op: "recent", Err: errors.New("down")}
	s := New(&fakeReader{err: boom})

	_, err := s.Recent(context.Background(), 5)
	assert.ErrorIs(t, err, boom)
	_, err = s.LatestForDomain(context.Background(), "example.com")
	assert.ErrorIs(t, err, boom)
	_, err = s.TierDistribution(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTierDistributionFillsMissingTiers(t *testing.T) {
	s := New(&fakeReader{counts: map[domain.Tier]int{domain.TierHigh: 3}})
	got, err := s.TierDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.Tier]int{domain.TierLow: 0, domain.TierMedium: 0, domain.TierHigh: 3}, got)
}
