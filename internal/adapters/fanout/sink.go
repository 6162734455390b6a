// Package fanout combines several result sinks into one.
package fanout

import (
	"context"

	"threatscope/internal/domain"
	"threatscope/internal/ports"
)

// Sink forwards each write to every child in order and stops at the first
// failure. Optional writes only reach children that implement them. A Sink
// with no children accepts and drops everything.
type Sink struct {
	children []ports.ResultSink
}

func New(children ...ports.ResultSink) *Sink {
	var kept []ports.ResultSink
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &Sink{children: kept}
}

func (s *Sink) Len() int { return len(s.children) }

func (s *Sink) RecordScrape(ctx context.Context, rec domain.ScrapeRecord) error {
	for _, c := range s.children {
		if err := c.RecordScrape(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) RecordAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	for _, c := range s.children {
		if err := c.RecordAnalysis(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) RecordIndicator(ctx context.Context, ind domain.ThreatIndicator) error {
	for _, c := range s.children {
		is, ok := c.(ports.IndicatorSink)
		if !ok {
			continue
		}
		if err := is.RecordIndicator(ctx, ind); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) RecordMetrics(ctx context.Context, m domain.DashboardMetrics) error {
	for _, c := range s.children {
		ms, ok := c.(ports.MetricsSink)
		if !ok {
			continue
		}
		if err := ms.RecordMetrics(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
