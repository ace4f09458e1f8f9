// Package mutation makes interactive field edits durable despite rapid
// keystrokes and transient store failures. A Writer coalesces successive
// edits to the same field, keeps at most one write per field in flight, and
// surfaces failures through a Notifier with an explicit retry. It never
// auto-retries silently and never reorders one session's writes to a field.
package mutation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trackroom/backend/pkg/logger"
)

// EntityRef identifies one field of one row in the store.
type EntityRef struct {
	Table string
	ID    uuid.UUID
	Field string
}

func (r EntityRef) key() string {
	return r.Table + "/" + r.ID.String() + "/" + r.Field
}

func (r EntityRef) String() string {
	return r.key()
}

// Store applies a single-field patch. Implementations report recoverable
// failures so the writer can offer a retry.
type Store interface {
	Apply(ctx context.Context, ref EntityRef, value interface{}) error
}

// Notifier receives user-facing write outcomes. The retry closure resubmits
// the exact same arguments that just failed.
type Notifier interface {
	Success(message string)
	Error(message string, retry func())
}

type command struct {
	kind  commandKind
	ref   EntityRef
	value interface{}
	err   error
}

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdRetry
	cmdFlush
	cmdDone
)

// fieldState is the per-field queue: idle -> debouncing -> in-flight, with
// at most one pending patch replacing older ones while a write is out.
type fieldState struct {
	timer      *time.Timer
	debouncing bool
	waiting    interface{}
	inFlight   bool
	pending    interface{}
	hasPending bool
}

// Writer runs a single-goroutine event loop; all queue state is owned by
// that goroutine, so no lock guards it. Suspension happens only at the
// store-write boundary, which runs on its own goroutine per write.
type Writer struct {
	store    Store
	notifier Notifier
	debounce time.Duration

	commands chan command
	quit     chan struct{}
	stopped  chan struct{}
}

func NewWriter(store Store, notifier Notifier, debounce time.Duration) *Writer {
	w := &Writer{
		store:    store,
		notifier: notifier,
		debounce: debounce,
		commands: make(chan command, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// Submit records an edit. Fire-and-forget: the value lands after the
// debounce window unless a newer edit to the same field replaces it first.
func (w *Writer) Submit(ref EntityRef, value interface{}) {
	w.send(command{kind: cmdSubmit, ref: ref, value: value})
}

// resubmit bypasses the debounce window; used by the retry action and by
// pending patches queued behind an in-flight write.
func (w *Writer) resubmit(ref EntityRef, value interface{}) {
	w.send(command{kind: cmdRetry, ref: ref, value: value})
}

// Close drops all debouncing edits without sending them and stops the loop.
// Writes already in flight run to completion but report nowhere.
func (w *Writer) Close() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.stopped
}

func (w *Writer) send(cmd command) {
	select {
	case w.commands <- cmd:
	case <-w.quit:
	}
}

func (w *Writer) loop() {
	defer close(w.stopped)

	fields := make(map[string]*fieldState)

	for {
		select {
		case <-w.quit:
			for _, fs := range fields {
				if fs.timer != nil {
					fs.timer.Stop()
				}
			}
			return
		case cmd := <-w.commands:
			key := cmd.ref.key()
			fs := fields[key]
			if fs == nil {
				fs = &fieldState{}
				fields[key] = fs
			}

			switch cmd.kind {
			case cmdSubmit:
				w.handleSubmit(fs, cmd)
			case cmdRetry:
				w.handleImmediate(fs, cmd)
			case cmdFlush:
				w.handleFlush(fs, cmd)
			case cmdDone:
				w.handleDone(fs, cmd)
			}
		}
	}
}

func (w *Writer) handleSubmit(fs *fieldState, cmd command) {
	if fs.inFlight {
		// Queue behind the in-flight write; only the latest edit survives.
		fs.pending = cmd.value
		fs.hasPending = true
		return
	}

	fs.waiting = cmd.value
	if fs.debouncing {
		fs.timer.Reset(w.debounce)
		return
	}

	fs.debouncing = true
	ref := cmd.ref
	fs.timer = time.AfterFunc(w.debounce, func() {
		w.send(command{kind: cmdFlush, ref: ref})
	})
}

func (w *Writer) handleImmediate(fs *fieldState, cmd command) {
	if fs.inFlight {
		fs.pending = cmd.value
		fs.hasPending = true
		return
	}
	if fs.debouncing {
		fs.timer.Stop()
		fs.debouncing = false
	}
	w.startWrite(fs, cmd.ref, cmd.value)
}

func (w *Writer) handleFlush(fs *fieldState, cmd command) {
	if !fs.debouncing {
		return
	}
	fs.debouncing = false
	value := fs.waiting
	fs.waiting = nil

	if fs.inFlight {
		fs.pending = value
		fs.hasPending = true
		return
	}
	w.startWrite(fs, cmd.ref, value)
}

func (w *Writer) handleDone(fs *fieldState, cmd command) {
	fs.inFlight = false

	if cmd.err != nil {
		ref, value := cmd.ref, cmd.value
		logger.Warn("mutation_write_failed", map[string]interface{}{
			"ref":   ref.String(),
			"error": cmd.err.Error(),
		})
		w.notifier.Error(
			fmt.Sprintf("Could not save %s", ref.Field),
			func() { w.resubmit(ref, value) },
		)
	} else {
		w.notifier.Success(fmt.Sprintf("Saved %s", cmd.ref.Field))
	}

	if fs.hasPending {
		value := fs.pending
		fs.pending = nil
		fs.hasPending = false
		w.startWrite(fs, cmd.ref, value)
	}
}

func (w *Writer) startWrite(fs *fieldState, ref EntityRef, value interface{}) {
	fs.inFlight = true
	go func() {
		err := w.store.Apply(context.Background(), ref, value)
		w.send(command{kind: cmdDone, ref: ref, value: value, err: err})
	}()
}
