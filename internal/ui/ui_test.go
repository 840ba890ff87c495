package ui

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
	"github.com/desertthunder/posterctl/internal/tasks"
	tu "github.com/desertthunder/posterctl/internal/testing"
)

type fakeEngine struct {
	runs    atomic.Int32
	retries atomic.Int32
	updates []tasks.ProgressUpdate
	result  *tasks.RunResult
	err     error
}

func (f *fakeEngine) Run(ctx context.Context, req tasks.PosterRequest, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	f.runs.Add(1)
	for _, u := range f.updates {
		progress <- u
	}
	return f.result, f.err
}

func (f *fakeEngine) Retry(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	f.retries.Add(1)
	return f.result, f.err
}

func trackingState(mode tasks.TrackingMode, steps ...models.ProcessingStep) tasks.JobProgressState {
	s := tasks.NewProgressState()
	s.Mode = mode
	s.CompletedSteps = steps
	s.Progress = models.Percent(len(steps), models.TotalSteps)
	s.IsConnected = true
	return s
}

// drain runs the model's pending command chain until the run completes.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; i < 20 && cmd != nil; i++ {
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = m.Update(msg)
		if m.view != TrackView {
			return
		}
	}
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel(t *testing.T) {
	t.Run("renders progress updates", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{}, tasks.PosterRequest{})
		state := trackingState(tasks.ModeStream, models.StepTranscription, models.StepCopyGeneration)
		state.CurrentStep = models.StepPhotoshootTransform
		state.Transcription = "Fresh coffee every morning"

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.TrackJob, JobID: "job-1", Message: "Photoshoot Transform", Data: state}))

		view := m.View()
		for _, want := range []string{"job-1", "SSE", "✓ 1. Transcription", "✓ 2. Copy Generation", "3. Photoshoot Transform", "Transcription: Fresh coffee every morning"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
		if m.state.Progress != 25 {
			t.Errorf("expected progress 25, got %d", m.state.Progress)
		}
	})

	t.Run("shows fallback", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{}, tasks.PosterRequest{})
		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.Fallback, Data: trackingState(tasks.ModePolling)}))

		view := m.View()
		if !strings.Contains(view, "POLLING") || !strings.Contains(view, "stream unavailable") {
			t.Errorf("expected polling tag with fallback note:\n%s", view)
		}
	})

	t.Run("completes into result view", func(t *testing.T) {
		state := trackingState(tasks.ModeStream, models.AllSteps...)
		state.Status = models.StatusCompleted
		engine := &fakeEngine{
			updates: []tasks.ProgressUpdate{{Phase: tasks.TrackJob, JobID: "job-1", Data: trackingState(tasks.ModeStream)}},
			result: &tasks.RunResult{
				JobID: "job-1",
				Mode:  tasks.ModeStream,
				State: state,
				Results: &models.JobResults{Designs: []models.Design{
					{VariantNumber: 1, ImageURL: "https://cdn.example.com/1.png"},
					{VariantNumber: 2},
				}},
			},
		}
		m := NewModel(context.Background(), engine, tasks.PosterRequest{})
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

		drain(t, m, m.start(func(ctx context.Context, ch chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
			return engine.Run(ctx, tasks.PosterRequest{}, ch)
		}))

		if m.view != ResultView {
			t.Fatalf("expected result view, got %d", m.view)
		}
		if len(m.designs.Items()) != 2 {
			t.Errorf("expected 2 designs listed, got %d", len(m.designs.Items()))
		}
		if !strings.Contains(m.View(), "Poster Complete") {
			t.Errorf("result view missing title:\n%s", m.View())
		}
	})

	t.Run("opens selected design", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{}, tasks.PosterRequest{})
		var opened string
		m.open = func(url string) error { opened = url; return nil }
		m.Update(runCompleteMsg(&tasks.RunResult{
			State:   trackingState(tasks.ModeStream),
			Results: &models.JobResults{Designs: []models.Design{{VariantNumber: 1, ImageURL: "https://cdn.example.com/1.png"}}},
		}, nil))

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatal("expected open command")
		}
		m.Update(cmd())

		if opened != "https://cdn.example.com/1.png" {
			t.Errorf("expected design opened, got %q", opened)
		}
	})

	t.Run("reports unrendered design", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{}, tasks.PosterRequest{})
		m.open = func(string) error { t.Error("should not open without a url"); return nil }
		m.Update(runCompleteMsg(&tasks.RunResult{
			Results: &models.JobResults{Designs: []models.Design{{VariantNumber: 3}}},
		}, nil))

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(cmd())

		if !strings.Contains(m.View(), "variant 3 has no rendered image") {
			t.Errorf("expected notice:\n%s", m.View())
		}
	})

	t.Run("failure offers retry", func(t *testing.T) {
		engine := &fakeEngine{err: shared.ErrPipelineFailed}
		m := NewModel(context.Background(), engine, tasks.PosterRequest{})

		failed := trackingState(tasks.ModeStream, models.StepTranscription)
		failed.Status = models.StatusFailed
		failed.Error = "Upscaling service unavailable"
		m.Update(runCompleteMsg(&tasks.RunResult{JobID: "job-1", State: failed}, errors.New("pipeline failed")))

		if m.view != FailedView {
			t.Fatalf("expected failed view, got %d", m.view)
		}
		view := m.View()
		if !strings.Contains(view, "Upscaling service unavailable") || !strings.Contains(view, "retry") {
			t.Errorf("failed view missing error or retry hint:\n%s", view)
		}
		if !strings.Contains(view, "Completed 1 of 8 steps") {
			t.Errorf("failed view missing partial progress:\n%s", view)
		}

		m.Update(keyPress("r"))
		if m.view != TrackView {
			t.Errorf("expected track view after retry, got %d", m.view)
		}
		tu.Eventually(t, time.Second, func() bool { return engine.retries.Load() == 1 }, "retry was not called")
	})

	t.Run("quit cancels the run", func(t *testing.T) {
		started := make(chan struct{})
		m := NewModel(context.Background(), &fakeEngine{}, tasks.PosterRequest{})
		var canceled atomic.Bool
		m.start(func(ctx context.Context, ch chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
			close(started)
			<-ctx.Done()
			canceled.Store(true)
			return nil, ctx.Err()
		})
		<-started

		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		tu.Eventually(t, time.Second, canceled.Load, "run was not canceled")
	})
}

func TestDesignItem(t *testing.T) {
	item := designItem{design: models.Design{
		VariantNumber:   2,
		ImageURL:        "https://cdn.example.com/2.png",
		Dimensions:      &models.Dimensions{Width: 1080, Height: 1350},
		ValidationScore: &models.ValidationScore{ReadabilityIssues: []string{"small text"}},
	}}

	if item.Title() != "Variant 2" {
		t.Errorf("unexpected title %q", item.Title())
	}
	desc := item.Description()
	for _, want := range []string{"1080x1350", "https://cdn.example.com/2.png", "1 readability issues"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q: %s", want, desc)
		}
	}
	if got := (designItem{design: models.Design{VariantNumber: 1}}).Description(); got != "not rendered" {
		t.Errorf("expected not rendered, got %q", got)
	}
}
