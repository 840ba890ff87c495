package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/shared"
	tu "github.com/desertthunder/posterctl/internal/testing"
)

func newTestPollTracker(t *testing.T, api *mockAPI) (*PollTracker, *recorder, *tu.FakeClock) {
	t.Helper()
	rec := &recorder{}
	clock := newClock()
	tr := NewPollTracker(api, "job-1", PollOptions{TrackerCallbacks: rec.callbacks(), Clock: clock})
	t.Cleanup(tr.Stop)
	return tr, rec, clock
}

func TestPollTracker(t *testing.T) {
	t.Run("polls immediately then every interval", func(t *testing.T) {
		api := newMockAPI()
		api.statusFn = processing(models.StepTranscription, models.StepCopyGeneration, models.StepPhotoshootTransform)
		tr, _, clock := newTestPollTracker(t, api)

		if err := tr.Start(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, polls, _ := api.counts(); polls != 1 {
			t.Fatalf("expected an immediate poll, got %d", polls)
		}

		s := tr.State()
		if s.Progress != 38 || len(s.CompletedSteps) != 3 || !s.IsConnected || s.Mode != ModePolling {
			t.Errorf("unexpected state %+v", s)
		}

		clock.Advance(DefaultPollInterval - time.Millisecond)
		if _, polls, _ := api.counts(); polls != 1 {
			t.Errorf("polled before the interval elapsed: %d", polls)
		}
		clock.Advance(time.Millisecond)
		clock.Advance(DefaultPollInterval)
		if _, polls, _ := api.counts(); polls != 3 {
			t.Errorf("expected 3 polls, got %d", polls)
		}
		if clock.Pending() != 1 {
			t.Errorf("expected exactly one armed poll, got %d", clock.Pending())
		}
	})

	t.Run("progress from server counts", func(t *testing.T) {
		api := newMockAPI()
		api.statusFn = func(int) (*models.ProcessingStatus, error) {
			return &models.ProcessingStatus{Status: models.StatusProcessing, Progress: models.StepCount{Completed: 3, Total: 10}}, nil
		}
		tr, _, _ := newTestPollTracker(t, api)
		tr.Start(context.Background())

		if got := tr.State().Progress; got != 30 {
			t.Errorf("expected 30, got %d", got)
		}
	})

	t.Run("completed fetches results exactly once", func(t *testing.T) {
		api := newMockAPI()
		api.statusFn = func(n int) (*models.ProcessingStatus, error) {
			if n == 1 {
				return processing(models.StepTranscription)(n)
			}
			return &models.ProcessingStatus{
				Status:         models.StatusCompleted,
				CompletedSteps: models.AllSteps,
				Progress:       models.StepCount{Completed: 8, Total: 8},
			}, nil
		}

		var tr *PollTracker
		var completeDuringFetch bool
		api.resultsFn = func(int) (*models.JobResults, error) {
			completeDuringFetch = tr.State().IsComplete
			return &models.JobResults{
				CopyContent: &models.CopyContent{Headline: models.LocalizedText{EN: "Fresh"}},
				Designs:     []models.Design{{VariantNumber: 1, HTML: "final"}},
			}, nil
		}

		tr, rec, clock := newTestPollTracker(t, api)
		tr.Start(context.Background())
		clock.Advance(DefaultPollInterval)

		if completeDuringFetch {
			t.Error("isComplete must not be set before results resolve")
		}
		s := tr.State()
		if !s.IsComplete || s.Status != models.StatusCompleted || s.Progress != 100 {
			t.Errorf("unexpected state %+v", s)
		}
		if len(s.Designs) != 1 || s.Designs[0].HTML != "final" {
			t.Errorf("expected final designs, got %+v", s.Designs)
		}
		if _, completes, _ := rec.counts(); completes != 1 {
			t.Errorf("expected one completion, got %d", completes)
		}

		clock.Advance(10 * DefaultPollInterval)
		if _, polls, results := api.counts(); polls != 2 || results != 1 {
			t.Errorf("expected polling to stop after results, got %d polls %d results", polls, results)
		}
		if clock.Pending() != 0 {
			t.Errorf("expected no armed timers, got %d", clock.Pending())
		}
		waitDone(t, tr.Done())
	})

	t.Run("failed status", func(t *testing.T) {
		tests := []struct {
			name    string
			errText string
			want    string
		}{
			{"server error", "Upscaling timed out", "Upscaling timed out"},
			{"no error", "", "Job processing failed"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				api := newMockAPI()
				api.statusFn = func(int) (*models.ProcessingStatus, error) {
					return &models.ProcessingStatus{Status: models.StatusFailed, Error: tt.errText}, nil
				}
				tr, rec, clock := newTestPollTracker(t, api)
				tr.Start(context.Background())

				s := tr.State()
				if s.Status != models.StatusFailed || s.Error != tt.want {
					t.Errorf("unexpected state %+v", s)
				}
				if errs := rec.errorList(); len(errs) != 1 || errs[0] != tt.want {
					t.Errorf("expected one error %q, got %v", tt.want, errs)
				}
				if clock.Pending() != 0 {
					t.Error("polling should stop")
				}
				waitDone(t, tr.Done())
			})
		}
	})

	t.Run("transport errors", func(t *testing.T) {
		api := newMockAPI()
		api.statusFn = func(n int) (*models.ProcessingStatus, error) {
			switch n {
			case 1, 3:
				return nil, errors.New("dial tcp: connection refused")
			case 4:
				return nil, &services.APIError{
					Kind:       services.KindApplication,
					StatusCode: 500,
					Message:    "Database unavailable",
					Response:   &models.ErrorResponse{Error: "Database unavailable"},
				}
			default:
				return processing(models.StepTranscription)(n)
			}
		}
		tr, rec, clock := newTestPollTracker(t, api)
		tr.Start(context.Background())

		if s := tr.State(); s.Error != "" {
			t.Errorf("first failure should be swallowed, got %q", s.Error)
		}

		clock.Advance(DefaultPollInterval)
		if s := tr.State(); !s.IsConnected || s.Error != "" {
			t.Errorf("unexpected state after success %+v", s)
		}

		clock.Advance(DefaultPollInterval)
		s := tr.State()
		if s.Error != "Failed to fetch job status" || s.IsConnected || s.Terminal() {
			t.Errorf("unexpected state after transport error %+v", s)
		}

		clock.Advance(DefaultPollInterval)
		if got := tr.State().Error; got != "Database unavailable" {
			t.Errorf("expected server error text, got %q", got)
		}

		clock.Advance(DefaultPollInterval)
		if s := tr.State(); s.Error != "" || !s.IsConnected {
			t.Errorf("expected recovery, got %+v", s)
		}
		if _, _, errs := rec.counts(); errs != 0 {
			t.Errorf("transport errors must not fire onError, got %v", rec.errorList())
		}
		assertOpen(t, tr.Done())
	})

	t.Run("results failure resumes polling", func(t *testing.T) {
		api := newMockAPI()
		api.statusFn = func(int) (*models.ProcessingStatus, error) {
			return &models.ProcessingStatus{Status: models.StatusCompleted}, nil
		}
		api.resultsFn = func(n int) (*models.JobResults, error) {
			if n == 1 {
				return nil, errors.New("timeout")
			}
			return &models.JobResults{}, nil
		}
		tr, rec, clock := newTestPollTracker(t, api)
		tr.Start(context.Background())

		if s := tr.State(); s.IsComplete || s.Error == "" {
			t.Errorf("expected recoverable error, got %+v", s)
		}
		if clock.Pending() != 1 {
			t.Fatalf("expected polling re-armed, got %d", clock.Pending())
		}

		clock.Advance(DefaultPollInterval)
		if !tr.State().IsComplete {
			t.Error("expected completion on second attempt")
		}
		if _, completes, _ := rec.counts(); completes != 1 {
			t.Errorf("expected one completion, got %d", completes)
		}
	})

	t.Run("stop during in-flight poll wins", func(t *testing.T) {
		api := newMockAPI()
		var tr *PollTracker
		api.statusFn = func(n int) (*models.ProcessingStatus, error) {
			if n == 2 {
				tr.Stop()
				return &models.ProcessingStatus{Status: models.StatusFailed, Error: "late"}, nil
			}
			return processing()(n)
		}
		tr, rec, clock := newTestPollTracker(t, api)
		tr.Start(context.Background())
		clock.Advance(DefaultPollInterval)

		if s := tr.State(); s.Status == models.StatusFailed || s.IsConnected {
			t.Errorf("stale poll applied after stop: %+v", s)
		}
		if _, _, errs := rec.counts(); errs != 0 {
			t.Errorf("expected no error callback, got %v", rec.errorList())
		}
		if clock.Pending() != 0 {
			t.Errorf("expected nothing armed, got %d", clock.Pending())
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		api := newMockAPI()
		tr, rec, clock := newTestPollTracker(t, api)
		tr.Start(context.Background())

		tr.Stop()
		updates, _, _ := rec.counts()
		first := tr.State()
		tr.Stop()
		again, completes, errs := rec.counts()

		if first.IsConnected || tr.State().IsConnected {
			t.Error("expected disconnected")
		}
		if updates != again || completes != 0 || errs != 0 {
			t.Error("second stop produced callbacks")
		}

		clock.Advance(time.Minute)
		if _, polls, _ := api.counts(); polls != 1 {
			t.Errorf("expected no polls after stop, got %d", polls)
		}
		waitDone(t, tr.Done())

		if err := tr.Start(context.Background()); !errors.Is(err, shared.ErrAlreadyTracking) {
			t.Errorf("expected ErrAlreadyTracking, got %v", err)
		}
	})
}
