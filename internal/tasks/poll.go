package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/shared"
)

const DefaultPollInterval = 4 * time.Second

// StatusSource answers the pull channel's two questions: how far along is the job, and what did it produce.
type StatusSource interface {
	ProcessingStatus(ctx context.Context, jobID string) (*models.ProcessingStatus, error)
	Results(ctx context.Context, jobID string) (*models.JobResults, error)
}

// PollOptions configures a [PollTracker].
type PollOptions struct {
	TrackerCallbacks

	Interval time.Duration
	Clock    shared.Clock
	Logger   *log.Logger
}

type pollPhase int

const (
	pollIdle pollPhase = iota
	pollRunning
	pollFinishing
	pollDone
	pollStopped
)

// PollTracker follows a job by polling its processing status.
//
// Polls never overlap: the next one is scheduled only after the previous one returns.
type PollTracker struct {
	src   StatusSource
	jobID string
	opts  PollOptions
	clock shared.Clock
	log   *log.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	state   JobProgressState
	phase   pollPhase
	timer   shared.Timer
	firstOK bool
	polls   int

	done     chan struct{}
	doneOnce sync.Once
}

// NewPollTracker creates an idle tracker for jobID.
func NewPollTracker(src StatusSource, jobID string, opts PollOptions) *PollTracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = shared.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	state := NewProgressState()
	state.Mode = ModePolling

	return &PollTracker{
		src:   src,
		jobID: jobID,
		opts:  opts,
		clock: opts.Clock,
		log:   opts.Logger.With("job_id", jobID, "channel", ModePolling),
		state: state,
		done:  make(chan struct{}),
	}
}

// Start polls once immediately, on the calling goroutine, then keeps polling every interval until the job
// reaches a terminal status or Stop is called.
func (t *PollTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.phase != pollIdle {
		t.mu.Unlock()
		return shared.ErrAlreadyTracking
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.phase = pollRunning
	t.mu.Unlock()

	t.poll()
	return nil
}

// State returns a snapshot of the current state.
func (t *PollTracker) State() JobProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Polls returns how many status requests have been issued.
func (t *PollTracker) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls
}

// Done is closed once the tracker completes, fails or is stopped.
func (t *PollTracker) Done() <-chan struct{} { return t.done }

// Stop disarms the interval and marks the tracker disconnected. It is safe to call more than once, and
// a poll in flight when Stop is called has no effect.
func (t *PollTracker) Stop() {
	t.mu.Lock()
	if t.phase == pollStopped {
		t.mu.Unlock()
		return
	}
	t.phase = pollStopped
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	changed := t.state.applyDisconnected()
	snap := t.state.Clone()
	t.mu.Unlock()

	if changed {
		t.opts.update(snap)
	}
	t.log.Debug("poll tracker stopped")
	t.finish()
}

func (t *PollTracker) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}

// arm schedules the next poll. Callers hold t.mu.
func (t *PollTracker) arm() {
	t.timer = t.clock.AfterFunc(t.opts.Interval, t.poll)
}

func (t *PollTracker) poll() {
	t.mu.Lock()
	if t.phase != pollRunning {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.polls++
	ctx := t.ctx
	t.mu.Unlock()

	status, err := t.src.ProcessingStatus(ctx, t.jobID)

	t.mu.Lock()
	if t.phase != pollRunning {
		t.mu.Unlock()
		return
	}

	if err != nil {
		if ctx.Err() != nil {
			t.phase = pollStopped
			t.state.applyDisconnected()
			t.mu.Unlock()
			t.finish()
			return
		}
		if !t.firstOK {
			t.arm()
			t.mu.Unlock()
			t.log.Debug("status poll failed before first response", "error", err)
			return
		}
		msg := pollErrorMessage(err)
		changed := t.state.applyRecoverable(msg)
		t.arm()
		snap := t.state.Clone()
		t.mu.Unlock()

		t.log.Warn("status poll failed", "error", err)
		if changed {
			t.opts.update(snap)
		}
		return
	}
	t.firstOK = true

	switch status.Status {
	case models.StatusFailed:
		msg := status.Error
		if msg == "" {
			msg = "Job processing failed"
		}
		t.state.applyPoll(status)
		t.state.applyFailure(msg)
		t.phase = pollDone
		snap := t.state.Clone()
		t.mu.Unlock()

		t.log.Error("job failed", "error", msg)
		t.opts.update(snap)
		t.opts.fail(msg)
		t.finish()

	case models.StatusCompleted:
		t.state.applyPoll(status)
		t.phase = pollFinishing
		snap := t.state.Clone()
		t.mu.Unlock()

		t.opts.update(snap)
		t.fetchResults(ctx)

	default:
		t.state.applyPoll(status)
		t.arm()
		snap := t.state.Clone()
		t.mu.Unlock()

		t.log.Debug("status polled", "step", status.CurrentStep, "progress", snap.Progress)
		t.opts.update(snap)
	}
}

// fetchResults retrieves the final results once the server reports completion. A failed fetch is
// recoverable and resumes polling.
func (t *PollTracker) fetchResults(ctx context.Context) {
	results, err := t.src.Results(ctx, t.jobID)

	t.mu.Lock()
	if t.phase != pollFinishing {
		t.mu.Unlock()
		return
	}

	if err != nil {
		msg := pollErrorMessage(err)
		t.state.applyRecoverable(msg)
		t.phase = pollRunning
		t.arm()
		snap := t.state.Clone()
		t.mu.Unlock()

		t.log.Warn("results fetch failed", "error", err)
		t.opts.update(snap)
		return
	}

	t.state.applyComplete(*results)
	t.state.IsConnected = false
	t.phase = pollDone
	snap := t.state.Clone()
	t.mu.Unlock()

	t.log.Info("job complete", "designs", len(results.Designs))
	t.opts.update(snap)
	t.opts.complete(*results)
	t.finish()
}

func pollErrorMessage(err error) string {
	if apiErr, ok := services.AsAPIError(err); ok && apiErr.Response != nil && apiErr.Response.Error != "" {
		return apiErr.Response.Error
	}
	return "Failed to fetch job status"
}
