package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

const DefaultFallbackTimeout = 5 * time.Second

// JobSource is everything the hybrid tracker needs from the API.
type JobSource interface {
	StreamSource
	StatusSource
}

// HybridOptions configures a [HybridTracker].
type HybridOptions struct {
	TrackerCallbacks

	PreferStream    bool
	FallbackTimeout time.Duration
	PollInterval    time.Duration

	Clock  shared.Clock
	Logger *log.Logger
}

// DefaultHybridOptions prefers the stream and falls back to polling after five seconds.
func DefaultHybridOptions() HybridOptions {
	return HybridOptions{
		PreferStream:    true,
		FallbackTimeout: DefaultFallbackTimeout,
		PollInterval:    DefaultPollInterval,
	}
}

// HybridTracker runs exactly one channel at a time. It starts on the stream when preferred and switches
// to polling, once and for good, if the stream fails to connect in time or drops.
//
// Only the active channel's updates reach the caller, tagged with its [TrackingMode].
type HybridTracker struct {
	src   JobSource
	jobID string
	opts  HybridOptions
	clock shared.Clock
	log   *log.Logger

	mu       sync.Mutex
	emitMu   sync.Mutex
	ctx      context.Context
	mode     TrackingMode
	started  bool
	fellBack bool
	finished bool
	stopped  bool
	push     *StreamTracker
	pull     *PollTracker
	fallback shared.Timer

	done     chan struct{}
	doneOnce sync.Once
}

// NewHybridTracker creates an idle tracker for jobID.
func NewHybridTracker(src JobSource, jobID string, opts HybridOptions) *HybridTracker {
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = DefaultFallbackTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = shared.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	return &HybridTracker{
		src:   src,
		jobID: jobID,
		opts:  opts,
		clock: opts.Clock,
		log:   opts.Logger.With("job_id", jobID),
		done:  make(chan struct{}),
	}
}

// Start begins tracking on the preferred channel.
func (h *HybridTracker) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return shared.ErrAlreadyTracking
	}
	h.started = true
	h.ctx = ctx

	if !h.opts.PreferStream {
		h.mode = ModePolling
		pull := h.newPoller()
		h.pull = pull
		h.mu.Unlock()

		h.log.Info("tracking job", "mode", ModePolling)
		return pull.Start(ctx)
	}

	h.mode = ModeStream
	push := NewStreamTracker(h.src, h.jobID, StreamOptions{
		TrackerCallbacks: TrackerCallbacks{
			OnUpdate:   func(s JobProgressState) { h.forward(ModeStream, s) },
			OnComplete: func(r models.JobResults) { h.complete(ModeStream, r) },
			OnError:    h.streamFailed,
		},
		AutoReconnect:        false,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		Clock:                h.clock,
		Logger:               h.opts.Logger,
	})
	h.push = push
	h.fallback = h.clock.AfterFunc(h.opts.FallbackTimeout, h.fallbackTimeout)
	h.mu.Unlock()

	h.log.Info("tracking job", "mode", ModeStream, "fallback_after", h.opts.FallbackTimeout)
	return push.Start(ctx)
}

// Mode returns the active channel.
func (h *HybridTracker) Mode() TrackingMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

// FellBack reports whether the tracker switched from the stream to polling.
func (h *HybridTracker) FellBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fellBack
}

// State returns the active channel's state tagged with the mode.
func (h *HybridTracker) State() JobProgressState {
	h.mu.Lock()
	mode, push, pull := h.mode, h.push, h.pull
	h.mu.Unlock()

	var s JobProgressState
	switch {
	case mode == ModePolling && pull != nil:
		s = pull.State()
	case push != nil:
		s = push.State()
	default:
		s = NewProgressState()
	}
	s.Mode = mode
	return s
}

// Done is closed once the job completes, fails or the tracker is stopped.
func (h *HybridTracker) Done() <-chan struct{} { return h.done }

// Stop halts whichever channel is active. It is safe to call more than once.
func (h *HybridTracker) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	if h.fallback != nil {
		h.fallback.Stop()
		h.fallback = nil
	}
	push, pull := h.push, h.pull
	h.mu.Unlock()

	if push != nil {
		push.Stop()
	}
	if pull != nil {
		pull.Stop()
	}
	h.finish()
}

func (h *HybridTracker) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}

func (h *HybridTracker) newPoller() *PollTracker {
	return NewPollTracker(h.src, h.jobID, PollOptions{
		TrackerCallbacks: TrackerCallbacks{
			OnUpdate:   func(s JobProgressState) { h.forward(ModePolling, s) },
			OnComplete: func(r models.JobResults) { h.complete(ModePolling, r) },
			OnError:    func(msg string) { h.failed(ModePolling, msg) },
		},
		Interval: h.opts.PollInterval,
		Clock:    h.clock,
		Logger:   h.opts.Logger,
	})
}

func (h *HybridTracker) active(mode TrackingMode) bool {
	return h.mode == mode && !h.stopped && !h.finished
}

// forward publishes an update from mode if mode is still the active channel.
func (h *HybridTracker) forward(mode TrackingMode, s JobProgressState) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	ok := h.mode == mode && !h.stopped
	push := h.push
	h.mu.Unlock()
	if !ok {
		return
	}
	// A stream that gave up on the transport is about to hand over to polling, so its failed
	// status is not the job's.
	if mode == ModeStream && s.Status == models.StatusFailed && IsRetryExhausted(push.Err()) {
		return
	}
	s.Mode = mode
	h.opts.update(s)
}

func (h *HybridTracker) complete(mode TrackingMode, r models.JobResults) {
	h.mu.Lock()
	if !h.active(mode) {
		h.mu.Unlock()
		return
	}
	h.finished = true
	if h.fallback != nil {
		h.fallback.Stop()
		h.fallback = nil
	}
	h.mu.Unlock()

	h.opts.complete(r)
	h.finish()
}

func (h *HybridTracker) failed(mode TrackingMode, msg string) {
	h.mu.Lock()
	if !h.active(mode) {
		h.mu.Unlock()
		return
	}
	h.finished = true
	if h.fallback != nil {
		h.fallback.Stop()
		h.fallback = nil
	}
	h.mu.Unlock()

	h.opts.fail(msg)
	h.finish()
}

// streamFailed separates a pipeline failure, which is final, from a transport failure, which hands the
// job over to polling.
func (h *HybridTracker) streamFailed(msg string) {
	h.mu.Lock()
	push := h.push
	h.mu.Unlock()

	if push != nil && IsRetryExhausted(push.Err()) {
		h.switchToPolling("stream error: " + msg)
		return
	}
	h.failed(ModeStream, msg)
}

func (h *HybridTracker) fallbackTimeout() {
	h.mu.Lock()
	h.fallback = nil
	push := h.push
	h.mu.Unlock()

	if push == nil {
		return
	}
	if s := push.State(); s.IsConnected || s.IsComplete || s.Terminal() {
		return
	}
	h.switchToPolling("stream did not connect in time")
}

// switchToPolling stops the stream and starts the poller. It happens at most once.
func (h *HybridTracker) switchToPolling(reason string) {
	h.mu.Lock()
	if h.fellBack || !h.active(ModeStream) {
		h.mu.Unlock()
		return
	}
	h.fellBack = true
	if h.fallback != nil {
		h.fallback.Stop()
		h.fallback = nil
	}
	push := h.push
	pull := h.newPoller()
	h.pull = pull
	h.mode = ModePolling
	ctx := h.ctx
	h.mu.Unlock()

	h.log.Warn("falling back to polling", "reason", reason)
	push.Stop()

	s := pull.State()
	h.forward(ModePolling, s)
	if err := pull.Start(ctx); err != nil {
		h.log.Error("failed to start poller", "error", err)
	}
}
