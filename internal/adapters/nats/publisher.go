package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// Subjects on the SURVEY_EVENTS and SURVEY_IMPORTS streams.
const (
	SubjectPlotSaved       = "survey.plots.saved"
	SubjectPlotDeleted     = "survey.plots.deleted"
	SubjectImportRequested = "survey.imports.requested"
	SubjectImportCompleted = "survey.imports.completed"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "SURVEY_EVENTS",
			Subjects:  []string{"survey.plots.>", SubjectImportCompleted},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "SURVEY_IMPORTS",
			Subjects:  []string{SubjectImportRequested},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) publishJSON(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishPlotSaved(ctx context.Context, event *domain.PlotEvent) error {
	return p.publishJSON(ctx, SubjectPlotSaved, event)
}

func (p *Publisher) PublishPlotDeleted(ctx context.Context, event *domain.PlotEvent) error {
	return p.publishJSON(ctx, SubjectPlotDeleted, event)
}

func (p *Publisher) PublishImportRequested(ctx context.Context, req *domain.ImportRequest) error {
	return p.publishJSON(ctx, SubjectImportRequested, req)
}

func (p *Publisher) PublishImportCompleted(ctx context.Context, event *domain.ImportEvent) error {
	return p.publishJSON(ctx, SubjectImportCompleted, event)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
