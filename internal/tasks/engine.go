package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/session"
	"github.com/desertthunder/posterctl/internal/shared"
)

// Strategy selects how a job is followed after upload.
type Strategy string

const (
	// StrategyAuto prefers the event stream and falls back to polling.
	StrategyAuto Strategy = "auto"
	// StrategyStream uses the event stream only, reconnecting on drops.
	StrategyStream Strategy = "stream"
	// StrategyPoll polls the status endpoint only.
	StrategyPoll Strategy = "poll"
)

// ParseStrategy validates a strategy name. An empty name means [StrategyAuto].
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyStream:
		return StrategyStream, nil
	case StrategyPoll:
		return StrategyPoll, nil
	}
	return "", fmt.Errorf("%w: unknown tracking mode %q (want auto, stream or poll)", shared.ErrInvalidArgument, s)
}

// mode is the channel a strategy starts on.
func (s Strategy) mode() TrackingMode {
	if s == StrategyPoll {
		return ModePolling
	}
	return ModeStream
}

// PosterAPI is the part of the remote job API the engine drives.
type PosterAPI interface {
	JobSource
	CreateJob(ctx context.Context) (string, error)
	UploadFiles(ctx context.Context, jobID string, req services.UploadRequest) (*models.UploadJobResponse, error)
	StartProcessing(ctx context.Context, jobID string) error
}

// JobRecorder persists the outcome of a run.
//
// Optional; recording errors are logged and never fail the run.
type JobRecorder interface {
	RecordJob(rec *models.JobRecord, designs []models.Design) error
}

// PosterRequest holds the inputs of a poster run.
type PosterRequest struct {
	ImagePath string
	AudioPath string
	Settings  models.PosterSettings
}

// Validate checks that both inputs are named and the settings are valid.
func (r PosterRequest) Validate() error {
	if r.ImagePath == "" {
		return fmt.Errorf("%w: product image is required", shared.ErrMissingArgument)
	}
	if r.AudioPath == "" {
		return fmt.Errorf("%w: voice recording is required", shared.ErrMissingArgument)
	}
	return r.Settings.Validate()
}

// RunResult is the outcome of following a job to a terminal state.
type RunResult struct {
	JobID    string
	Mode     TrackingMode
	FellBack bool
	State    JobProgressState
	Results  *models.JobResults
}

// EngineOptions configures a [PosterEngine].
type EngineOptions struct {
	Strategy             Strategy
	FallbackTimeout      time.Duration
	PollInterval         time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	Recorder JobRecorder
	Clock    shared.Clock
	Logger   *log.Logger
}

// EngineOptionsFromConfig maps the [tracking] config section onto engine options.
func EngineOptionsFromConfig(cfg shared.TrackingConfig) EngineOptions {
	strategy := StrategyAuto
	if !cfg.PreferStream {
		strategy = StrategyPoll
	}
	return EngineOptions{
		Strategy:             strategy,
		FallbackTimeout:      cfg.FallbackTimeout(),
		PollInterval:         cfg.PollInterval(),
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay(),
	}
}

// PosterEngine runs the create → upload → track flow and mirrors progress into a [session.Store].
type PosterEngine struct {
	api      PosterAPI
	store    *session.Store
	recorder JobRecorder
	opts     EngineOptions
	clock    shared.Clock
	log      *log.Logger
}

// NewPosterEngine creates a PosterEngine.
func NewPosterEngine(api PosterAPI, store *session.Store, opts EngineOptions) *PosterEngine {
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	if opts.Clock == nil {
		opts.Clock = shared.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &PosterEngine{
		api:      api,
		store:    store,
		recorder: opts.Recorder,
		opts:     opts,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
}

// Store returns the session the engine writes to.
func (e *PosterEngine) Store() *session.Store { return e.store }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PosterEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

// Run creates a job for req, uploads its files and follows it to completion or failure.
//
// The files and settings are kept in the session for [PosterEngine.Retry]. A failed pipeline returns the
// partial result together with an error wrapping [shared.ErrPipelineFailed].
func (e *PosterEngine) Run(ctx context.Context, req PosterRequest, progress chan<- ProgressUpdate) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e.store.SetUploadedFiles(req.ImagePath, req.AudioPath)
	e.store.SetPosterSettings(req.Settings)
	return e.run(ctx, req, progress)
}

// Retry starts over with the files and settings of the previous run, under a new job id.
func (e *PosterEngine) Retry(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	files, settings, err := e.store.RetryInputs()
	if err != nil {
		return nil, err
	}
	e.log.Info("retrying poster job", "previous_job", e.store.CurrentJobID())
	return e.run(ctx, PosterRequest{ImagePath: files.ImagePath, AudioPath: files.AudioPath, Settings: settings}, progress)
}

// Track attaches to a job that is already processing. It always polls, whatever the strategy, because
// opening the event stream would trigger the pipeline again.
func (e *PosterEngine) Track(ctx context.Context, jobID string, progress chan<- ProgressUpdate) (*RunResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}
	e.store.SetCurrentJob(models.NewJob(jobID, e.clock.Now()))
	return e.follow(ctx, jobID, PosterRequest{}, false, progress)
}

func (e *PosterEngine) run(ctx context.Context, req PosterRequest, progress chan<- ProgressUpdate) (*RunResult, error) {
	e.store.ClearCurrentJob()

	e.sendProgress(progress, createJobUpdate())
	jobID, err := e.api.CreateJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	job := models.NewJob(jobID, e.clock.Now())
	job.PosterSettings = req.Settings.Clone()
	e.store.SetCurrentJob(job)
	e.sendProgress(progress, jobCreatedUpdate(jobID))
	e.log.Info("job created", "job_id", jobID)

	e.sendProgress(progress, uploadUpdate(jobID, req))
	settings := req.Settings
	if _, err := e.api.UploadFiles(ctx, jobID, services.UploadRequest{
		ImagePath: req.ImagePath,
		AudioPath: req.AudioPath,
		Settings:  &settings,
	}); err != nil {
		msg := errorMessage(err)
		e.store.SetError(msg)
		e.record(e.opts.Strategy.mode(), req)
		e.sendProgress(progress, failedUpdate(jobID, NewProgressState(), msg))
		return &RunResult{JobID: jobID, Mode: e.opts.Strategy.mode()}, fmt.Errorf("failed to upload files: %w", err)
	}
	e.store.UpdateJobStatus(models.StatusUploaded)

	return e.follow(ctx, jobID, req, true, progress)
}

// tracker is what [PosterEngine.follow] needs from any of the trackers.
type tracker interface {
	Start(ctx context.Context) error
	Stop()
	State() JobProgressState
	Done() <-chan struct{}
}

func (e *PosterEngine) follow(ctx context.Context, jobID string, req PosterRequest, fresh bool, progress chan<- ProgressUpdate) (*RunResult, error) {
	var (
		mu      sync.Mutex
		results *models.JobResults
		failMsg string
		last    TrackingMode
	)

	callbacks := TrackerCallbacks{
		OnUpdate: func(s JobProgressState) {
			e.store.UpdateJobProgress(s.JobUpdate())

			mu.Lock()
			switched := last != "" && s.Mode != last
			last = s.Mode
			mu.Unlock()

			if switched {
				e.sendProgress(progress, fallbackUpdate(jobID, s))
			}
			e.sendProgress(progress, trackUpdate(jobID, s))
		},
		OnComplete: func(r models.JobResults) {
			mu.Lock()
			defer mu.Unlock()
			results = &r
		},
		OnError: func(msg string) {
			mu.Lock()
			defer mu.Unlock()
			failMsg = msg
		},
	}

	strategy := e.opts.Strategy
	if !fresh {
		strategy = StrategyPoll
	}

	if strategy == StrategyPoll && fresh {
		e.sendProgress(progress, startProcessingUpdate(jobID))
		if err := e.api.StartProcessing(ctx, jobID); err != nil {
			msg := errorMessage(err)
			e.store.SetError(msg)
			e.record(ModePolling, req)
			e.sendProgress(progress, failedUpdate(jobID, NewProgressState(), msg))
			return &RunResult{JobID: jobID, Mode: ModePolling}, fmt.Errorf("failed to start processing: %w", err)
		}
	}
	e.store.UpdateJobStatus(models.StatusProcessing)

	var (
		tr     tracker
		hybrid *HybridTracker
	)
	switch strategy {
	case StrategyStream:
		tr = NewStreamTracker(e.api, jobID, StreamOptions{
			TrackerCallbacks:     callbacks,
			AutoReconnect:        true,
			MaxReconnectAttempts: e.opts.MaxReconnectAttempts,
			ReconnectDelay:       e.opts.ReconnectDelay,
			Clock:                e.clock,
			Logger:               e.log,
		})
	default:
		hybrid = NewHybridTracker(e.api, jobID, HybridOptions{
			TrackerCallbacks: callbacks,
			PreferStream:     strategy != StrategyPoll,
			FallbackTimeout:  e.opts.FallbackTimeout,
			PollInterval:     e.opts.PollInterval,
			Clock:            e.clock,
			Logger:           e.log,
		})
		tr = hybrid
	}

	if err := tr.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start tracking: %w", err)
	}

	select {
	case <-tr.Done():
	case <-ctx.Done():
		tr.Stop()
		<-tr.Done()
	}

	mu.Lock()
	defer mu.Unlock()

	state := tr.State()
	result := &RunResult{JobID: jobID, Mode: state.Mode, State: state, Results: results}
	if hybrid != nil {
		result.Mode = hybrid.Mode()
		result.FellBack = hybrid.FellBack()
	}

	switch {
	case failMsg != "":
		e.store.SetError(failMsg)
		e.record(result.Mode, req)
		e.sendProgress(progress, failedUpdate(jobID, state, failMsg))
		return result, fmt.Errorf("%w: %s", shared.ErrPipelineFailed, failMsg)
	case results != nil:
		e.store.UpdateJobProgress(state.JobUpdate())
		e.record(result.Mode, req)
		e.sendProgress(progress, completeUpdate(jobID, state))
		return result, nil
	default:
		e.record(result.Mode, req)
		return result, ctx.Err()
	}
}

// record hands the session's current job to the recorder, if one is configured.
func (e *PosterEngine) record(mode TrackingMode, req PosterRequest) {
	if e.recorder == nil {
		return
	}
	job := e.store.CurrentJob()
	if job == nil {
		return
	}

	rec := models.NewJobRecord(job.ID, job.Status)
	rec.ApplyJob(job)
	rec.Mode = string(mode)
	rec.ImagePath = req.ImagePath
	rec.AudioPath = req.AudioPath
	if rec.Settings == nil && req.ImagePath != "" {
		rec.Settings = req.Settings.Clone()
	}

	if err := e.recorder.RecordJob(rec, job.Designs); err != nil {
		e.log.Warn("failed to record job", "job_id", job.ID, "error", err)
	}
}

func errorMessage(err error) string {
	if apiErr, ok := services.AsAPIError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
