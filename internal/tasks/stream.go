package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/shared"
)

const (
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = 2 * time.Second
)

// StreamSource opens the push channel for a job.
type StreamSource interface {
	OpenEventStream(ctx context.Context, jobID string) (*services.EventStream, error)
}

// TrackerCallbacks are invoked outside the tracker's lock. OnComplete and OnError fire at most once.
type TrackerCallbacks struct {
	OnUpdate   func(JobProgressState)
	OnComplete func(models.JobResults)
	OnError    func(msg string)
}

func (c TrackerCallbacks) update(s JobProgressState) {
	if c.OnUpdate != nil {
		c.OnUpdate(s)
	}
}

func (c TrackerCallbacks) complete(r models.JobResults) {
	if c.OnComplete != nil {
		c.OnComplete(r)
	}
}

func (c TrackerCallbacks) fail(msg string) {
	if c.OnError != nil {
		c.OnError(msg)
	}
}

// StreamOptions configures a [StreamTracker].
type StreamOptions struct {
	TrackerCallbacks

	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	Clock  shared.Clock
	Logger *log.Logger
}

// DefaultStreamOptions reconnects up to three times, two seconds apart.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		AutoReconnect:        true,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
	}
}

type streamPhase int

const (
	streamIdle streamPhase = iota
	streamConnecting
	streamOpen
	streamWaiting
	streamCompleted
	streamFailed
	streamStopped
)

// StreamTracker follows a job over its event stream and reconciles each event into a [JobProgressState].
//
// Every connection attempt carries a generation number. Anything that belongs to an older generation,
// or arrives after Stop, is discarded.
type StreamTracker struct {
	src   StreamSource
	jobID string
	opts  StreamOptions
	clock shared.Clock
	log   *log.Logger

	mu       sync.Mutex
	ctx      context.Context
	state    JobProgressState
	phase    streamPhase
	gen      int
	attempts int
	cancel   context.CancelFunc
	stream   *services.EventStream
	retry    shared.Timer
	err      error

	done     chan struct{}
	doneOnce sync.Once
}

// NewStreamTracker creates an idle tracker for jobID.
func NewStreamTracker(src StreamSource, jobID string, opts StreamOptions) *StreamTracker {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	if opts.Clock == nil {
		opts.Clock = shared.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	state := NewProgressState()
	state.Mode = ModeStream

	return &StreamTracker{
		src:   src,
		jobID: jobID,
		opts:  opts,
		clock: opts.Clock,
		log:   opts.Logger.With("job_id", jobID, "channel", ModeStream),
		state: state,
		done:  make(chan struct{}),
	}
}

// Start opens the stream in the background.
func (t *StreamTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != streamIdle {
		return shared.ErrAlreadyTracking
	}
	t.ctx = ctx
	t.phase = streamConnecting
	t.gen++
	go t.run(t.gen)
	return nil
}

// State returns a snapshot of the current state.
func (t *StreamTracker) State() JobProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Err reports why the tracker failed: [shared.ErrRetryExhausted] for transport failures or
// [shared.ErrPipelineFailed] when the server reported an error. It is nil otherwise.
func (t *StreamTracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Attempts returns how many reconnects have been scheduled since the last successful connect.
func (t *StreamTracker) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Done is closed once the tracker completes, fails or is stopped.
func (t *StreamTracker) Done() <-chan struct{} { return t.done }

// Stop closes the connection and cancels any pending reconnect. It is safe to call more than once.
func (t *StreamTracker) Stop() {
	t.mu.Lock()
	if t.phase == streamStopped {
		t.mu.Unlock()
		return
	}

	wasTerminal := t.phase == streamCompleted || t.phase == streamFailed
	t.phase = streamStopped
	t.gen++
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	stream := t.stream
	t.stream = nil
	changed := t.state.applyDisconnected()
	snap := t.state.Clone()
	t.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if changed && !wasTerminal {
		t.opts.update(snap)
	}
	t.log.Debug("stream tracker stopped")
	t.finish()
}

func (t *StreamTracker) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}

// current reports whether gen is still the live connection attempt.
func (t *StreamTracker) current(gen int) bool {
	return gen == t.gen && (t.phase == streamConnecting || t.phase == streamOpen)
}

func (t *StreamTracker) run(gen int) {
	t.mu.Lock()
	if !t.current(gen) {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.log.Debug("opening event stream", "attempt", gen)
	stream, err := t.src.OpenEventStream(ctx, t.jobID)
	if err != nil {
		cancel()
		t.drop(gen, err)
		return
	}

	t.mu.Lock()
	if !t.current(gen) {
		t.mu.Unlock()
		stream.Close()
		cancel()
		return
	}
	t.stream = stream
	t.phase = streamOpen
	t.state.IsConnected = true
	snap := t.state.Clone()
	t.mu.Unlock()
	t.opts.update(snap)

	for {
		frame, err := stream.Next()
		if err != nil {
			stream.Close()
			cancel()
			t.drop(gen, err)
			return
		}

		ev, err := models.DecodeStreamEvent(frame.Data)
		if err != nil {
			t.log.Warn("dropping stream event", "error", err)
			continue
		}

		if stop := t.handle(gen, ev); stop {
			stream.Close()
			cancel()
			return
		}
	}
}

// handle reconciles one event and reports whether the reader should stop.
func (t *StreamTracker) handle(gen int, ev models.StreamEvent) bool {
	t.mu.Lock()
	if !t.current(gen) {
		t.mu.Unlock()
		return true
	}

	var (
		changed  bool
		terminal bool
		results  *models.JobResults
		failMsg  string
	)

	switch ev.Type {
	case models.EventConnected:
		changed = t.state.applyConnected()
		t.attempts = 0
	case models.EventStepStart:
		changed = t.state.applyStepStart(ev.Step)
	case models.EventStepComplete:
		changed = t.state.applyStepComplete(ev)
	case models.EventDesignGenerated:
		if d, ok := ev.DesignResult(); ok {
			changed = t.state.applyDesign(d)
		}
	case models.EventImageGenerated:
		if url, dims, ok := ev.RenderResult(); ok {
			changed = t.state.applyImage(ev.VariantNumber, url, dims)
		}
	case models.EventPipelineComplete:
		changed = t.state.applyComplete(*ev.Results)
		terminal = true
		t.phase = streamCompleted
		r := *ev.Results
		results = &r
	case models.EventPipelineError:
		failMsg = ev.Error
		if failMsg == "" {
			failMsg = ev.Message
		}
		if failMsg == "" {
			failMsg = "Job processing failed"
		}
		changed = t.state.applyFailure(failMsg)
		terminal = true
		t.phase = streamFailed
		t.err = fmt.Errorf("%w: %s", shared.ErrPipelineFailed, failMsg)
	}

	if terminal {
		t.state.IsConnected = false
		t.stream = nil
		t.cancel = nil
	}
	snap := t.state.Clone()
	t.mu.Unlock()

	if changed {
		t.opts.update(snap)
	}

	switch {
	case results != nil:
		t.log.Info("pipeline complete", "designs", len(results.Designs))
		t.opts.complete(*results)
		t.finish()
	case failMsg != "":
		t.log.Error("pipeline failed", "error", failMsg)
		t.opts.fail(failMsg)
		t.finish()
	}
	return terminal
}

// drop handles a lost or refused connection: reconnect while the budget allows, otherwise fail.
func (t *StreamTracker) drop(gen int, cause error) {
	t.mu.Lock()
	if !t.current(gen) {
		t.mu.Unlock()
		return
	}

	t.stream = nil
	t.cancel = nil
	t.state.applyDisconnected()

	if t.ctx.Err() != nil {
		t.phase = streamStopped
		snap := t.state.Clone()
		t.mu.Unlock()
		t.opts.update(snap)
		t.finish()
		return
	}

	if t.opts.AutoReconnect && t.attempts < t.opts.MaxReconnectAttempts {
		t.attempts++
		t.phase = streamWaiting
		t.gen++
		next := t.gen
		attempt := t.attempts
		t.retry = t.clock.AfterFunc(t.opts.ReconnectDelay, func() { t.reconnect(next) })
		snap := t.state.Clone()
		t.mu.Unlock()

		t.log.Warn("event stream dropped, reconnecting", "attempt", attempt, "delay", t.opts.ReconnectDelay, "error", cause)
		t.opts.update(snap)
		return
	}

	msg := fmt.Sprintf("Failed to connect after %d attempts", t.opts.MaxReconnectAttempts)
	t.state.applyFailure(msg)
	t.phase = streamFailed
	t.err = fmt.Errorf("%w: %w", shared.ErrRetryExhausted, cause)
	snap := t.state.Clone()
	t.mu.Unlock()

	t.log.Error("event stream failed", "error", cause)
	t.opts.update(snap)
	t.opts.fail(msg)
	t.finish()
}

func (t *StreamTracker) reconnect(gen int) {
	t.mu.Lock()
	if gen != t.gen || t.phase != streamWaiting {
		t.mu.Unlock()
		return
	}
	t.retry = nil
	t.phase = streamConnecting
	t.mu.Unlock()

	go t.run(gen)
}

// IsRetryExhausted reports whether err is a transport failure rather than a server-reported one.
func IsRetryExhausted(err error) bool { return errors.Is(err, shared.ErrRetryExhausted) }
