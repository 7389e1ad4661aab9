package planllama

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BaudehloBiz/planllama-go/channel"
	"github.com/BaudehloBiz/planllama-go/wire"
)

// stashTTL bounds how long an unclaimed early notification is kept.
const stashTTL = time.Minute

// outcome is the settled result of a dispatch-and-wait call.
type outcome struct {
	result json.RawMessage
	err    error
}

type stashed struct {
	out outcome
	at  time.Time
}

// correlator routes per-job completion and failure notifications to the
// dispatch-and-wait calls blocked on them. Each pending call owns a
// buffered channel keyed by job id; the first notification for that id
// settles it and removes the entry.
//
// A notification can outrun the dispatch ack: the server may finish the
// job and emit job.completed before the caller has registered its id.
// Such orphans are stashed, and a later registration claims the stash
// instead of waiting.
type correlator struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan outcome
	stash   map[string]stashed
}

func newCorrelator(logger *slog.Logger) *correlator {
	return &correlator{
		logger:  logger,
		pending: make(map[string]chan outcome),
		stash:   make(map[string]stashed),
	}
}

// bind subscribes to the outcome notification streams. Called once at
// client start.
func (co *correlator) bind(ch channel.Channel) {
	ch.OnEvent(wire.EventJobCompleted, co.onCompleted)
	ch.OnEvent(wire.EventJobFailed, co.onFailed)
}

// register adds a pending entry for jobID and returns the channel its
// outcome will arrive on. A stashed early notification settles the
// returned channel immediately.
func (co *correlator) register(jobID string) <-chan outcome {
	ch := make(chan outcome, 1)

	co.mu.Lock()
	defer co.mu.Unlock()

	if s, ok := co.stash[jobID]; ok {
		delete(co.stash, jobID)
		ch <- s.out
		return ch
	}
	co.pending[jobID] = ch

	return ch
}

// drop removes the pending entry for jobID, if any. Called when an
// await is abandoned; settlement already removes the entry itself.
func (co *correlator) drop(jobID string) {
	co.mu.Lock()
	delete(co.pending, jobID)
	co.mu.Unlock()
}

func (co *correlator) onCompleted(_ context.Context, msg *wire.Message) {
	var n wire.JobCompleted
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		co.logger.Warn("malformed job.completed notification", slog.String("error", err.Error()))
		return
	}

	co.settle(n.JobID, outcome{result: n.Result})
}

func (co *correlator) onFailed(_ context.Context, msg *wire.Message) {
	var n wire.JobFailed
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		co.logger.Warn("malformed job.failed notification", slog.String("error", err.Error()))
		return
	}

	err := error(ErrJobFailed)
	if n.Error != "" {
		err = errors.New(n.Error)
	}
	co.settle(n.JobID, outcome{err: err})
}

// settle delivers the outcome to the pending entry for jobID, or
// stashes it when the id is not yet registered. First settlement wins;
// the entry is gone before anything can fire twice.
func (co *correlator) settle(jobID string, out outcome) {
	co.mu.Lock()
	defer co.mu.Unlock()

	if ch, ok := co.pending[jobID]; ok {
		delete(co.pending, jobID)
		ch <- out // buffered, never blocks
		return
	}

	co.sweepLocked(time.Now())
	co.stash[jobID] = stashed{out: out, at: time.Now()}
}

// sweepLocked drops stashed outcomes older than stashTTL. Callers must
// hold co.mu.
func (co *correlator) sweepLocked(now time.Time) {
	for id, s := range co.stash {
		if now.Sub(s.at) > stashTTL {
			delete(co.stash, id)
		}
	}
}
