package tasks

import (
	"fmt"

	"github.com/desertthunder/posterctl/internal/models"
)

// ProgressUpdate represents a progress event during a poster run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	JobID   string // Remote job id, once known
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data; a [JobProgressState] while tracking
}

// Operation phase enumeration
type Phase int

const (
	CreateJob Phase = iota
	UploadFiles
	StartProcessing
	TrackJob
	Fallback
	Complete
	Failed
)

func (p Phase) String() string {
	switch p {
	case CreateJob:
		return "create_job"
	case UploadFiles:
		return "upload_files"
	case StartProcessing:
		return "start_processing"
	case TrackJob:
		return "track_job"
	case Fallback:
		return "fallback"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// State returns the tracking state carried by u, if any.
func (u ProgressUpdate) State() (JobProgressState, bool) {
	s, ok := u.Data.(JobProgressState)
	return s, ok
}

func createJobUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: CreateJob, Step: 0, Total: 1, Message: "Creating job..."}
}

func jobCreatedUpdate(jobID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateJob,
		JobID:   jobID,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Job created (ID: %s)", jobID),
	}
}

func uploadUpdate(jobID string, req PosterRequest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFiles,
		JobID:   jobID,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Uploading %s and %s...", baseName(req.ImagePath), baseName(req.AudioPath)),
	}
}

func startProcessingUpdate(jobID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StartProcessing,
		JobID:   jobID,
		Step:    1,
		Total:   1,
		Message: "Starting processing...",
	}
}

func trackUpdate(jobID string, s JobProgressState) ProgressUpdate {
	msg := "Waiting for the pipeline..."
	switch {
	case s.CurrentStep != "" && !s.HasStep(s.CurrentStep):
		msg = fmt.Sprintf("[%d/%d] %s...", len(s.CompletedSteps)+1, models.TotalSteps, s.CurrentStep.Title())
	case len(s.CompletedSteps) > 0:
		msg = fmt.Sprintf("[%d/%d] %d%% complete", len(s.CompletedSteps), models.TotalSteps, s.Progress)
	}
	if s.Error != "" && !s.Terminal() {
		msg = fmt.Sprintf("%s (%s)", msg, s.Error)
	}
	return ProgressUpdate{
		Phase:   TrackJob,
		JobID:   jobID,
		Step:    len(s.CompletedSteps),
		Total:   models.TotalSteps,
		Message: msg,
		Data:    s,
	}
}

func fallbackUpdate(jobID string, s JobProgressState) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fallback,
		JobID:   jobID,
		Step:    len(s.CompletedSteps),
		Total:   models.TotalSteps,
		Message: "Live updates unavailable, switching to polling",
		Data:    s,
	}
}

func completeUpdate(jobID string, s JobProgressState) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		JobID:   jobID,
		Step:    models.TotalSteps,
		Total:   models.TotalSteps,
		Message: fmt.Sprintf("✓ Poster ready (%d designs)", len(s.Designs)),
		Data:    s,
	}
}

func failedUpdate(jobID string, s JobProgressState, msg string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		JobID:   jobID,
		Step:    len(s.CompletedSteps),
		Total:   models.TotalSteps,
		Message: fmt.Sprintf("✗ %s", msg),
		Data:    s,
	}
}
