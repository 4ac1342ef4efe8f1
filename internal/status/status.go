package status

import (
	"log/slog"
	"time"
)

// Kind classifies a status message.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is the status currently shown.
type Message struct {
	Kind       Kind   `json:"kind" yaml:"kind"`
	Text       string `json:"text" yaml:"text"`
	Generation uint64 `json:"generation" yaml:"generation"`
}

// Scheduler runs f once d has elapsed. cancel reports whether it stopped f.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func() bool)
}

// TimeScheduler schedules on real timers.
type TimeScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (TimeScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Notifier tracks the current message and its pending dismissal.
type Notifier struct {
	sched  Scheduler
	expire func(gen uint64)
	logger *slog.Logger

	gen     uint64
	current *Message
	cancel  func() bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithExpiry sets what happens when a dismissal timer fires. The callback
// runs on the scheduler's goroutine and is expected to hand gen back to the
// Notifier's owner, which then calls Dismiss(gen).
// Default: call Dismiss directly.
func WithExpiry(fn func(gen uint64)) Option {
	return func(n *Notifier) {
		n.expire = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = l
	}
}

// NewNotifier creates a Notifier with no message.
func NewNotifier(sched Scheduler, opts ...Option) *Notifier {
	n := &Notifier{
		sched:  sched,
		logger: slog.Default(),
	}
	n.expire = n.dismissQuiet
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Publish replaces the current message and schedules its dismissal after
// d. Any earlier pending dismissal is cancelled first. Returns the new
// message's generation.
func (n *Notifier) Publish(kind Kind, text string, d time.Duration) uint64 {
	n.stop()
	n.gen++
	gen := n.gen
	n.current = &Message{Kind: kind, Text: text, Generation: gen}
	n.cancel = n.sched.AfterFunc(d, func() { n.expire(gen) })

	n.logger.Debug("status published", "kind", kind, "generation", gen, "dismiss_after", d)
	return gen
}

// Dismiss clears the current message if it still has generation gen.
// Reports whether anything was cleared.
func (n *Notifier) Dismiss(gen uint64) bool {
	if n.current == nil || n.current.Generation != gen {
		n.logger.Debug("stale dismissal ignored", "generation", gen, "current", n.gen)
		return false
	}
	n.current = nil
	n.cancel = nil
	return true
}

// Clear removes any message and cancels its dismissal.
func (n *Notifier) Clear() {
	n.stop()
	n.current = nil
}

// Current returns the message being shown, if any.
func (n *Notifier) Current() (Message, bool) {
	if n.current == nil {
		return Message{}, false
	}
	return *n.current, true
}

func (n *Notifier) stop() {
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

func (n *Notifier) dismissQuiet(gen uint64) {
	n.Dismiss(gen)
}
