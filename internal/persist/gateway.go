package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/status"
)

// Status texts shown after a save.
const (
	TextSaved    = "Flow saved successfully!"
	TextRejected = "Cannot save Flow"
)

// Default dismissal delays.
const (
	DefaultSuccessAfter = 3 * time.Second
	DefaultFailureAfter = 5 * time.Second
)

// ReasonMultipleEntryPoints is the rejection reason for an invalid flow.
const ReasonMultipleEntryPoints = "multiple entry points"

// Outcome is the result category of a save.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Result reports what a save did.
type Result struct {
	Outcome  Outcome   `json:"outcome"`
	Reason   string    `json:"reason,omitempty"`
	Revision *Revision `json:"revision,omitempty"`

	// Err is the validation or backend error behind a non-success outcome.
	Err error `json:"-"`
}

// OK reports whether the save succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Publisher is the part of the status notifier the gateway needs.
type Publisher interface {
	Publish(kind status.Kind, text string, d time.Duration) uint64
}

// Gateway validates a flow and forwards it to a Backend, then publishes a
// timed status message describing the outcome.
type Gateway struct {
	backend      Backend
	status       Publisher
	successAfter time.Duration
	failureAfter time.Duration
	logger       *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithDismissal sets how long success and failure messages stay visible.
func WithDismissal(success, failure time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.successAfter = success
		g.failureAfter = failure
	}
}

// WithGatewayLogger sets the logger. Default: slog.Default().
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

// NewGateway creates a Gateway. pub may be nil when no status is shown.
func NewGateway(backend Backend, pub Publisher, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend:      backend,
		status:       pub,
		successAfter: DefaultSuccessAfter,
		failureAfter: DefaultFailureAfter,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Save validates doc.Snapshot. An invalid flow is rejected without
// contacting the backend. A valid one is forwarded and the backend's
// outcome relayed. The caller's snapshot is never modified.
func (g *Gateway) Save(ctx context.Context, doc flow.Document) Result {
	if err := graph.Validate(doc.Snapshot); err != nil {
		g.logger.Info("save rejected", "flow", doc.ID, "error", err)
		g.publish(status.KindError, TextRejected, g.failureAfter)
		return Result{Outcome: OutcomeRejected, Reason: reasonFor(err), Err: err}
	}

	rev, err := g.backend.Save(ctx, doc)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrBackend, err)
		g.logger.Error("save failed", "flow", doc.ID, "error", err)
		g.publish(status.KindError, TextRejected, g.failureAfter)
		return Result{Outcome: OutcomeFailed, Reason: err.Error(), Err: err}
	}

	g.logger.Info("flow saved", "flow", doc.ID, "revision", rev.ID, "seq", rev.Seq, "hash", rev.ContentHash)
	g.publish(status.KindSuccess, TextSaved, g.successAfter)
	return Result{Outcome: OutcomeSuccess, Revision: &rev}
}

// Load returns the newest stored version of a flow.
func (g *Gateway) Load(ctx context.Context, flowID string) (flow.Document, error) {
	return g.backend.Load(ctx, flowID)
}

// History lists a flow's revisions oldest first.
func (g *Gateway) History(ctx context.Context, flowID string) ([]Revision, error) {
	return g.backend.History(ctx, flowID)
}

func (g *Gateway) publish(kind status.Kind, text string, d time.Duration) {
	if g.status != nil {
		g.status.Publish(kind, text, d)
	}
}

func reasonFor(err error) string {
	var ve *graph.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
