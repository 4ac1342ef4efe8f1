package editor

import (
	"context"
	"errors"
	"log/slog"
)

// ErrLoopClosed is returned by Dispatch once the loop has stopped.
var ErrLoopClosed = errors.New("editor loop closed")

// Loop is the single-writer event loop around an Editor.
//
// Thread-safety model:
//   - Dispatch(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Status timers fire on their own goroutines; Loop routes each expiry
// back through the queue as a dismiss_status event so the Editor is only
// ever touched by Run.
type Loop struct {
	editor *Editor
	queue  *eventQueue
	logger *slog.Logger
}

// NewLoop wraps ed. ed must not be used directly once Run has started.
func NewLoop(ed *Editor) *Loop {
	l := &Loop{
		editor: ed,
		queue:  newEventQueue(),
		logger: ed.logger,
	}
	ed.SetExpiryHandler(func(gen uint64) {
		l.queue.Enqueue(request{event: Event{Type: EventDismissStatus, Generation: gen}})
	})
	return l
}

// Run processes events until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("editor loop starting", "flow", l.editor.doc.ID)

	for {
		if r, ok := l.queue.TryDequeue(); ok {
			l.process(ctx, r)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Info("editor loop stopping: context cancelled")
			l.drain(l.queue.Close())
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel is closed by Stop; an empty queue then
			// means there is nothing left to do.
			if l.queue.Len() == 0 && l.closed() {
				l.logger.Info("editor loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Dispatch submits ev and waits for its reply.
func (l *Loop) Dispatch(ctx context.Context, ev Event) (Reply, error) {
	ch := make(chan response, 1)
	if !l.queue.Enqueue(request{event: ev, reply: ch}) {
		return Reply{}, ErrLoopClosed
	}

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case resp := <-ch:
		return resp.reply, resp.err
	}
}

// Stop closes the queue. Run returns once it notices; events still queued
// are answered with ErrLoopClosed.
func (l *Loop) Stop() {
	l.drain(l.queue.Close())
}

func (l *Loop) process(ctx context.Context, r request) {
	reply, err := l.editor.Apply(ctx, r.event)
	if r.reply != nil {
		r.reply <- response{reply: reply, err: err}
	}
}

func (l *Loop) closed() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}

func (l *Loop) drain(pending []request) {
	for _, r := range pending {
		if r.reply != nil {
			r.reply <- response{err: ErrLoopClosed}
		}
	}
}
