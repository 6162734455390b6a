// Package kafka publishes pipeline records to a topic for downstream dashboards.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"threatscope/internal/domain"
)

const (
	KindScrape    = "scrape"
	KindAnalysis  = "analysis"
	KindIndicator = "indicator"
)

// Envelope is the JSON value of every published message.
type Envelope struct {
	Kind      string                  `json:"kind"`
	RunID     string                  `json:"run_id"`
	Scrape    *domain.ScrapeRecord    `json:"scrape,omitempty"`
	Analysis  *domain.AnalysisRecord  `json:"analysis,omitempty"`
	Indicator *domain.ThreatIndicator `json:"indicator,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink writes one message per record, keyed by run id so that all records of
// a run land on the same partition in order.
type Sink struct {
	writer messageWriter
	now    func() time.Time
}

func New(brokers []string, topic string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		now: time.Now,
	}
}

func (s *Sink) RecordScrape(ctx context.Context, rec domain.ScrapeRecord) error {
	return s.publish(ctx, "record_scrape", Envelope{Kind: KindScrape, RunID: rec.RunID, Scrape: &rec})
}

func (s *Sink) RecordAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	return s.publish(ctx, "record_analysis", Envelope{Kind: KindAnalysis, RunID: rec.RunID, Analysis: &rec})
}

func (s *Sink) RecordIndicator(ctx context.Context, ind domain.ThreatIndicator) error {
	return s.publish(ctx, "record_indicator", Envelope{Kind: KindIndicator, RunID: ind.RunID, Indicator: &ind})
}

func (s *Sink) Close() error { return s.writer.Close() }

func (s *Sink) publish(ctx context.Context, op string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return &domain.SinkError{Op: op, Err: err}
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.RunID),
		Value: data,
		Time:  s.now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(env.Kind)},
		},
	})
	if err != nil {
		return &domain.SinkError{Op: op, Err: err}
	}
	return nil
}
