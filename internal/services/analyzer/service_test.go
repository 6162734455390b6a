package analyzer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatscope/internal/detector"
	"threatscope/internal/domain"
	"threatscope/internal/metrics"
	"threatscope/internal/scoring"
)

type fakeFetcher struct {
	text string
	err  error
}

func (f fakeFetcher) Classify(addr domain.TargetAddress) domain.Transport { return addr.Transport() }

func (f fakeFetcher) Fetch(_ context.Context, addr domain.TargetAddress) (string, error) {
	if f.err != nil {
		return "", &domain.FetchError{Address: addr, Transport: addr.Transport(), Cause: f.err}
	}
	return f.text, nil
}

// recordingSink counts calls and can fail a single operation.
type recordingSink struct {
	ops        []string
	scrapes    []domain.ScrapeRecord
	analyses   []domain.AnalysisRecord
	indicators []domain.ThreatIndicator
	metrics    []domain.DashboardMetrics
	failOn     string
}

func (s *recordingSink) call(op string) error {
	s.ops = append(s.ops, op)
	if op == s.failOn {
		return errors.New("connection reset")
	}
	return nil
}

func (s *recordingSink) RecordScrape(_ context.Context, rec domain.ScrapeRecord) error {
	s.scrapes = append(s.scrapes, rec)
	return s.call("scrape")
}

func (s *recordingSink) RecordAnalysis(_ context.Context, rec domain.AnalysisRecord) error {
	s.analyses = append(s.analyses, rec)
	return s.call("analysis")
}

func (s *recordingSink) RecordIndicator(_ context.Context, ind domain.ThreatIndicator) error {
	s.indicators = append(s.indicators, ind)
	return s.call("indicator")
}

func (s *recordingSink) RecordMetrics(_ context.Context, m domain.DashboardMetrics) error {
	s.metrics = append(s.metrics, m)
	return s.call("metrics")
}

type fakeInsights struct {
	out  string
	err  error
	seen string
}

func (f *fakeInsights) GenerateInsight(_ context.Context, text string) (string, error) {
	f.seen = text
	return f.out, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newService(f fakeFetcher, sink *recordingSink, opts ...Option) *Service {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithLogger(quietLogger()), WithClock(func() time.Time { return fixed })}, opts...)
	s := New(f, detector.New(nil), scoring.Weighted{}, sink, opts...)
	return s
}

func TestAnalyzeSingleEmail(t *testing.T) {
	sink := &recordingSink{}
	s := newService(fakeFetcher{text: "contact a@b.com"}, sink)

	rec, err := s.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Severity.Score)
	assert.Equal(t, domain.TierMedium, rec.Severity.Tier)
	assert.Equal(t, domain.TransportDirect, rec.Transport)
	assert.Equal(t, []string{"a@b.com"}, rec.Detection.PII[domain.CategoryEmails])
	assert.NotEmpty(t, rec.RunID)

	assert.Equal(t, []string{"scrape", "analysis", "indicator", "metrics"}, sink.ops)
	assert.Equal(t, rec.RunID, sink.scrapes[0].RunID)
	assert.Equal(t, "contact a@b.com", sink.scrapes[0].RawText)
	assert.Equal(t, rec, sink.analyses[0])
	assert.Equal(t, 1, sink.metrics[0].EmailCount)
}

func TestAnalyzeNothingDetected(t *testing.T) {
	sink := &recordingSink{}
	s := newService(fakeFetcher{text: "just a quiet page"}, sink)

	rec, err := s.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Severity.Score)
	assert.Equal(t, domain.TierLow, rec.Severity.Tier)
	assert.True(t, rec.Detection.Empty())
	assert.Equal(t, []string{"scrape", "analysis", "metrics"}, sink.ops)
}

func TestAnalyzePlaintextPhone(t *testing.T) {
	s := newService(fakeFetcher{text: "call 1234567890"}, &recordingSink{})

	rec, err := s.Analyze(context.Background(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.Severity.Score)
	assert.Equal(t, domain.TierMedium, rec.Severity.Tier)
}

func TestAnalyzeOverlayAddress(t *testing.T) {
	s := newService(fakeFetcher{text: "fresh dump"}, &recordingSink{})

	rec, err := s.Analyze(context.Background(), "http://abcdefghijklmnop.onion/market")
	require.NoError(t, err)
	assert.Equal(t, domain.TransportOverlay, rec.Transport)
}

func TestFetchFailureWritesNothing(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New()
	s := newService(fakeFetcher{err: errors.New("connection refused")}, sink, WithMetrics(m))

	_, err := s.Analyze(context.Background(), "https://down.example")
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Empty(t, sink.ops)

	_, err = s.Report(context.Background(), "https://down.example")
	require.True(t, errors.As(err, &fe))
	assert.Empty(t, sink.ops)
}

func TestSinkFailureStopsWritesAndKeepsRecord(t *testing.T) {
	sink := &recordingSink{failOn: "scrape"}
	s := newService(fakeFetcher{text: "a@b.com leaked"}, sink)

	rec, err := s.Analyze(context.Background(), "https://example.com")
	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe))
	var se *domain.SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "record_scrape", se.Op)
	assert.Equal(t, rec.RunID, pe.RunID)
	assert.Equal(t, []string{"scrape"}, sink.ops)
	assert.Equal(t, 5, rec.Severity.Score)
}

func TestAnalysisFailureAfterScrape(t *testing.T) {
	sink := &recordingSink{failOn: "analysis"}
	s := newService(fakeFetcher{text: "a@b.com"}, sink)

	_, err := s.Analyze(context.Background(), "https://example.com")
	var se *domain.SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "record_analysis", se.Op)
	assert.Equal(t, []string{"scrape", "analysis"}, sink.ops)
}

func TestNilSinkAnalyzesWithoutPersisting(t *testing.T) {
	s := New(fakeFetcher{text: "a@b.com"}, detector.New(nil), nil, nil, WithLogger(quietLogger()))
	rec, err := s.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "weighted", rec.Severity.Policy)
}

func TestReportWithInsight(t *testing.T) {
	gen := &fakeInsights{out: "Likely a credential dump."}
	s := newService(fakeFetcher{text: "leaked a@b.com"}, &recordingSink{}, WithInsights(gen))

	rep, err := s.Report(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Likely a credential dump.", rep.Insight)
	assert.Equal(t, "leaked a@b.com", gen.seen)
	assert.Equal(t, domain.TierMedium, rep.Record.Severity.Tier)
}

func TestReportInsightFailureUsesPlaceholder(t *testing.T) {
	gen := &fakeInsights{err: &domain.InsightError{Err: errors.New("503")}}
	s := newService(fakeFetcher{text: "a@b.com"}, &recordingSink{}, WithInsights(gen))

	rep, err := s.Report(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, InsightPlaceholder, rep.Insight)
	assert.NotEmpty(t, rep.Record.RunID)
}

func TestReportTruncatesInsightInput(t *testing.T) {
	gen := &fakeInsights{out: "ok"}
	text := strings.Repeat("é", InsightPrefixRunes+50)
	s := newService(fakeFetcher{text: text}, &recordingSink{}, WithInsights(gen))

	_, err := s.Report(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, InsightPrefixRunes, len([]rune(gen.seen)))
}

func TestReportWithoutGeneratorHasNoInsight(t *testing.T) {
	s := newService(fakeFetcher{text: "a@b.com"}, &recordingSink{})
	rep, err := s.Report(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, rep.Insight)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "", truncateRunes("abc", 0))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
}
