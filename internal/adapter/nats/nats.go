// Package nats publishes delivery records to a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Strob0t/specnotify/internal/domain/notify"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "specnotify.deliveries"

const flushTimeout = 5 * time.Second

// Envelope is the published payload.
type Envelope struct {
	RunID  string                `json:"runId"`
	Record notify.DeliveryRecord `json:"record"`
}

// Publisher sends each delivery record as one NATS message.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// Connect establishes a connection to NATS.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("specnotify"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	slog.Info("nats connected", "url", url, "subject", subject)
	return &Publisher{nc: nc, subject: subject}, nil
}

// Encode builds the message body for a record.
func Encode(runID string, rec notify.DeliveryRecord) ([]byte, error) {
	data, err := json.Marshal(Envelope{RunID: runID, Record: rec})
	if err != nil {
		return nil, fmt.Errorf("nats marshal: %w", err)
	}
	return data, nil
}

// Publish sends a record and flushes so it leaves before the run ends.
func (p *Publisher) Publish(ctx context.Context, runID string, rec notify.DeliveryRecord) error {
	data, err := Encode(runID, rec)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	fctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close drains and shuts down the NATS connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
