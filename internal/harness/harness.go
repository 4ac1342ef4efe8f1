package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/roach88/flowbuilder/internal/editor"
	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/palette"
	"github.com/roach88/flowbuilder/internal/persist"
	"github.com/roach88/flowbuilder/internal/testutil"
)

// Epoch is the fixed wall-clock time every run starts at.
var Epoch = time.UnixMilli(1700000000000).UTC()

// Default flow identity when a scenario names none.
const (
	DefaultFlowID   = "flow-1"
	DefaultFlowName = "Untitled"
)

// TraceEntry records what one step did.
type TraceEntry struct {
	Step     int             `json:"step"`
	Type     string          `json:"type"`
	NodeID   flow.NodeID     `json:"node_id,omitempty"`
	Accepted bool            `json:"accepted,omitempty"`
	Outcome  persist.Outcome `json:"outcome,omitempty"`
	Error    string          `json:"error,omitempty"`
	Advance  string          `json:"advance,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEntry `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final is the editor view after the last step.
	Final editor.View `json:"final"`
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Option configures a run.
type Option func(*runner)

// WithPalette sets the palette. Default: palette.Default().
func WithPalette(p *palette.Registry) Option {
	return func(r *runner) {
		r.palette = p
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		r.logger = l
	}
}

type runner struct {
	palette *palette.Registry
	logger  *slog.Logger

	ed      *editor.Editor
	clock   *testutil.FixedClock
	sched   *testutil.ManualScheduler
	backend *persist.MemoryBackend
	aliases map[string]flow.NodeID
}

// Run executes s against a fresh editor and evaluates its assertions.
// A non-nil error means the scenario could not be run at all; failed
// expectations and assertions are reported in Result.Errors.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		aliases: make(map[string]flow.NodeID),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.palette == nil {
		r.palette = palette.Default()
	}
	r.setup(s)

	result := &Result{Pass: true, Trace: []TraceEntry{}}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.step(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range r.evaluate(ctx, s.Assertions) {
		result.AddError(msg)
	}
	result.Final = r.ed.View()

	r.logger.Info("scenario finished", "name", s.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

func (r *runner) setup(s *Scenario) {
	r.clock = testutil.NewFixedClock(Epoch)
	r.sched = testutil.NewManualScheduler()
	r.backend = persist.NewMemoryBackend(&sequence{prefix: "rev-"}, r.clock.Now)

	policy := graph.DefaultPolicy()
	if s.Settings.AllowSelfLoops != nil {
		policy.AllowSelfLoops = *s.Settings.AllowSelfLoops
	}

	id, name := s.Flow.ID, s.Flow.Name
	if id == "" {
		id = DefaultFlowID
	}
	if name == "" {
		name = DefaultFlowName
	}

	r.ed = editor.New(r.sched,
		editor.WithFlow(id, name),
		editor.WithBackend(r.backend),
		editor.WithPalette(r.palette),
		editor.WithStrictUpdates(s.Settings.StrictUpdates),
		editor.WithGraphOptions(graph.WithClock(r.clock.Now), graph.WithPolicy(policy)),
		editor.WithLogger(r.logger),
	)
}

func (r *runner) step(ctx context.Context, i int, step Step, result *Result) error {
	if step.Type != "" {
		ev, err := r.resolveEvent(step.Event)
		if err != nil {
			return err
		}

		reply, applyErr := r.ed.Apply(ctx, ev)
		entry := TraceEntry{Step: i, Type: string(ev.Type), NodeID: reply.NodeID, Accepted: reply.Accepted}
		if reply.Save != nil {
			entry.Outcome = reply.Save.Outcome
		}
		if applyErr != nil {
			entry.Error = applyErr.Error()
		}
		result.Trace = append(result.Trace, entry)

		if step.As != "" {
			if reply.NodeID == "" {
				return fmt.Errorf("drop bound to %q created no node", step.As)
			}
			r.aliases[step.As] = reply.NodeID
		}

		for _, msg := range checkExpect(i, step.Expect, reply, applyErr) {
			result.AddError(msg)
		}
		r.logger.Debug("step applied", "step", i, "type", ev.Type, "error", applyErr)
	}

	if step.Advance > 0 {
		r.clock.Advance(step.Advance)
		r.sched.Advance(step.Advance)
		result.Trace = append(result.Trace, TraceEntry{Step: i, Type: "advance", Advance: step.Advance.String()})
	}
	return nil
}

func checkExpect(i int, want *Expect, reply editor.Reply, err error) []string {
	var msgs []string
	if want == nil {
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("steps[%d]: unexpected error: %v", i, err))
		}
		return msgs
	}

	if want.Error != (err != nil) {
		msgs = append(msgs, fmt.Sprintf("steps[%d]: expected error=%t, got %v", i, want.Error, err))
	}
	if want.Accepted != nil && *want.Accepted != reply.Accepted {
		msgs = append(msgs, fmt.Sprintf("steps[%d]: expected accepted=%t, got %t", i, *want.Accepted, reply.Accepted))
	}
	if want.Outcome != "" {
		got := persist.Outcome("")
		if reply.Save != nil {
			got = reply.Save.Outcome
		}
		if got != want.Outcome {
			msgs = append(msgs, fmt.Sprintf("steps[%d]: expected outcome %s, got %q", i, want.Outcome, got))
		}
	}
	return msgs
}

// aliasRef matches $name references inside node and edge ids.
var aliasRef = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// errUnknownAlias is returned when a step references an unbound $name.
var errUnknownAlias = errors.New("unknown alias")

// resolve replaces every $name in s with the id bound to name.
func (r *runner) resolve(s string) (string, error) {
	var missing string
	out := aliasRef.ReplaceAllStringFunc(s, func(ref string) string {
		id, ok := r.aliases[ref[1:]]
		if !ok {
			if missing == "" {
				missing = ref
			}
			return ref
		}
		return string(id)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", errUnknownAlias, missing)
	}
	return out, nil
}

func (r *runner) resolveID(id flow.NodeID) (flow.NodeID, error) {
	s, err := r.resolve(string(id))
	return flow.NodeID(s), err
}

// resolveEvent returns a copy of ev with aliases replaced. ev's slices
// belong to the scenario and are not modified.
func (r *runner) resolveEvent(ev editor.Event) (editor.Event, error) {
	var err error
	if ev.NodeID, err = r.resolveID(ev.NodeID); err != nil {
		return ev, err
	}

	if ev.Connection != nil {
		c := *ev.Connection
		if c.Source, err = r.resolveID(c.Source); err != nil {
			return ev, err
		}
		if c.Target, err = r.resolveID(c.Target); err != nil {
			return ev, err
		}
		ev.Connection = &c
	}

	if len(ev.NodeChanges) > 0 {
		changes := make([]graph.NodeChange, len(ev.NodeChanges))
		for i, c := range ev.NodeChanges {
			if c.ID, err = r.resolveID(c.ID); err != nil {
				return ev, err
			}
			changes[i] = c
		}
		ev.NodeChanges = changes
	}

	if len(ev.EdgeChanges) > 0 {
		changes := make([]graph.EdgeChange, len(ev.EdgeChanges))
		for i, c := range ev.EdgeChanges {
			if c.ID, err = r.resolve(c.ID); err != nil {
				return ev, err
			}
			changes[i] = c
		}
		ev.EdgeChanges = changes
	}
	return ev, nil
}

// sequence mints prefix-1, prefix-2, ...
type sequence struct {
	prefix string
	n      int
}

func (s *sequence) Generate() string {
	s.n++
	return s.prefix + strconv.Itoa(s.n)
}
