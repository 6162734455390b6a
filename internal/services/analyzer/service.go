package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"threatscope/internal/detector"
	"threatscope/internal/domain"
	"threatscope/internal/metrics"
	"threatscope/internal/ports"
	"threatscope/internal/scoring"
)

const (
	// InsightPrefixRunes bounds the text handed to the insight generator.
	InsightPrefixRunes = 4000
	InsightPlaceholder = "LLM analysis failed."
)

type Service struct {
	fetcher  ports.Fetcher
	detector *detector.Detector
	policy   scoring.Policy
	sink     ports.ResultSink
	insights ports.InsightGenerator
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

// WithInsights enables the narrative in Report.
func WithInsights(g ports.InsightGenerator) Option { return func(s *Service) { s.insights = g } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(fetcher ports.Fetcher, det *detector.Detector, policy scoring.Policy, sink ports.ResultSink, opts ...Option) *Service {
	if policy == nil {
		policy = scoring.Weighted{}
	}
	s := &Service{
		fetcher:  fetcher,
		detector: det,
		policy:   policy,
		sink:     sink,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze runs one pipeline. A *domain.FetchError means nothing was written.
// A *domain.PersistenceError comes with a complete, usable record.
func (s *Service) Analyze(ctx context.Context, address string) (domain.AnalysisRecord, error) {
	_, rec, err := s.run(ctx, address)
	return rec, err
}

// Report is Analyze plus an insight narrative when a generator is configured.
// Insight failures never fail the report.
func (s *Service) Report(ctx context.Context, address string) (domain.Report, error) {
	scrape, rec, err := s.run(ctx, address)
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return domain.Report{}, err
	}
	rep := domain.Report{Record: rec}
	if s.insights != nil {
		rep.Insight = s.insight(ctx, rec, scrape.RawText)
	}
	return rep, err
}

func (s *Service) run(ctx context.Context, address string) (domain.ScrapeRecord, domain.AnalysisRecord, error) {
	addr := domain.TargetAddress(address)
	transport := s.fetcher.Classify(addr)
	log := s.log.WithFields(logrus.Fields{"address": address, "transport": transport})

	start := time.Now()
	text, err := s.fetcher.Fetch(ctx, addr)
	s.metrics.ObserveFetch(transport, time.Since(start), err)
	if err != nil {
		log.WithError(err).Warn("fetch failed")
		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			err = &domain.FetchError{Address: addr, Transport: transport, Cause: err}
		}
		return domain.ScrapeRecord{}, domain.AnalysisRecord{}, err
	}

	runID := s.newID()
	scrape := domain.ScrapeRecord{RunID: runID, Address: addr, RawText: text, CapturedAt: s.now().UTC()}

	detection := s.detector.Detect(text)
	rec := domain.AnalysisRecord{
		RunID:      runID,
		Address:    addr,
		Transport:  transport,
		Detection:  detection,
		Severity:   s.policy.Assess(detection, addr),
		AnalyzedAt: s.now().UTC(),
	}
	s.metrics.ObserveAnalysis(rec)
	log = log.WithFields(logrus.Fields{"run_id": runID, "score": rec.Severity.Score, "tier": rec.Severity.Tier})
	log.Info("analysis complete")

	if err := s.persist(ctx, scrape, rec); err != nil {
		log.WithError(err).Error("persist failed")
		return scrape, rec, &domain.PersistenceError{Address: addr, RunID: runID, Err: err}
	}
	return scrape, rec, nil
}

// persist writes the scrape before the analysis and stops at the first
// failure, so an analysis row never exists without its scrape row.
func (s *Service) persist(ctx context.Context, scrape domain.ScrapeRecord, rec domain.AnalysisRecord) error {
	if s.sink == nil {
		return nil
	}
	if err := s.sink.RecordScrape(ctx, scrape); err != nil {
		return s.sinkFailure("record_scrape", err)
	}
	if err := s.sink.RecordAnalysis(ctx, rec); err != nil {
		return s.sinkFailure("record_analysis", err)
	}
	if is, ok := s.sink.(ports.IndicatorSink); ok {
		for _, ind := range rec.Indicators(s.detector.Catalog().Categories()) {
			if err := is.RecordIndicator(ctx, ind); err != nil {
				return s.sinkFailure("record_indicator", err)
			}
		}
	}
	if ms, ok := s.sink.(ports.MetricsSink); ok {
		if err := ms.RecordMetrics(ctx, rec.Metrics()); err != nil {
			return s.sinkFailure("record_metrics", err)
		}
	}
	return nil
}

func (s *Service) sinkFailure(op string, err error) error {
	s.metrics.ObserveSinkFailure(op)
	var se *domain.SinkError
	if errors.As(err, &se) {
		return err
	}
	return &domain.SinkError{Op: op, Err: err}
}

func (s *Service) insight(ctx context.Context, rec domain.AnalysisRecord, text string) string {
	out, err := s.insights.GenerateInsight(ctx, truncateRunes(text, InsightPrefixRunes))
	if err != nil {
		s.log.WithError(err).WithField("run_id", rec.RunID).Warn("insight generation failed")
		return InsightPlaceholder
	}
	return out
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
