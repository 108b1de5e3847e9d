package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// LoadedSubject is the NATS subject announcing a committed graph load.
const LoadedSubject = "activity.graph.loaded"

// FlushTimeout bounds the wait for the server to acknowledge a publish when
// the caller's context has no deadline.
const FlushTimeout = 5 * time.Second

// LoadedMessage is published once a run has committed its graph.
type LoadedMessage struct {
	RunID              string    `json:"run_id"`
	Repository         string    `json:"repository"`
	Statements         int       `json:"statements"`
	OntologyStatements int       `json:"ontology_statements"`
	Activities         int       `json:"activities"`
	Observations       int       `json:"observations"`
	OutputPath         string    `json:"output_path,omitempty"`
	LoadedAt           time.Time `json:"loaded_at"`
}

// Publisher announces committed loads.
type Publisher interface {
	PublishLoaded(ctx context.Context, msg LoadedMessage) error
}

// NATSPublisher publishes LoadedMessage JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// ConnectNATS dials url and returns a publisher for subject. An empty
// subject uses LoadedSubject.
func ConnectNATS(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("activitygraph"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSPublisher(nc, subject), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = LoadedSubject
	}
	return &NATSPublisher{nc: nc, subject: subject}
}

// Subject returns the subject messages are published on.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// PublishLoaded publishes msg and waits for the server to acknowledge the flush.
func (p *NATSPublisher) PublishLoaded(ctx context.Context, msg LoadedMessage) error {
	if p == nil || p.nc == nil {
		return nil // Skip publishing if no NATS connection
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal loaded message: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
