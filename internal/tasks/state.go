package tasks

import (
	"slices"

	"github.com/desertthunder/posterctl/internal/models"
)

// TrackingMode names the channel a [JobProgressState] came from.
type TrackingMode string

const (
	ModeStream  TrackingMode = "sse"
	ModePolling TrackingMode = "polling"
)

// JobProgressState is the reconciled view of a job's remote pipeline.
//
// Empty Transcription and nil CopyContent mean "not known yet"; once set they never go back.
type JobProgressState struct {
	Status          models.JobStatus
	CurrentStep     models.ProcessingStep
	CompletedSteps  []models.ProcessingStep
	Progress        int
	Transcription   string
	CopyContent     *models.CopyContent
	Designs         []models.Design
	ProcessedImages []models.ProcessedImage
	Error           string
	IsConnected     bool
	IsComplete      bool
	Mode            TrackingMode
}

// NewProgressState returns the state a tracker starts from.
func NewProgressState() JobProgressState {
	return JobProgressState{
		Status:          models.StatusProcessing,
		CompletedSteps:  []models.ProcessingStep{},
		Designs:         []models.Design{},
		ProcessedImages: []models.ProcessedImage{},
	}
}

// Clone returns a deep copy safe to hand to observers.
func (s JobProgressState) Clone() JobProgressState {
	c := s
	c.CompletedSteps = slices.Clone(s.CompletedSteps)
	c.Designs = models.CloneDesigns(s.Designs)
	c.ProcessedImages = slices.Clone(s.ProcessedImages)
	if s.CopyContent != nil {
		cc := *s.CopyContent
		c.CopyContent = &cc
	}
	return c
}

// Terminal reports whether the status can no longer change.
func (s JobProgressState) Terminal() bool { return s.Status.IsTerminal() }

// HasStep reports whether step is known complete.
func (s JobProgressState) HasStep(step models.ProcessingStep) bool {
	return slices.Contains(s.CompletedSteps, step)
}

// JobUpdate converts the state into a partial job update for the session.
func (s JobProgressState) JobUpdate() models.JobUpdate {
	u := models.JobUpdate{
		Status:          models.Ptr(s.Status),
		CurrentStep:     models.Ptr(s.CurrentStep),
		CompletedSteps:  slices.Clone(s.CompletedSteps),
		Progress:        models.Ptr(s.Progress),
		Designs:         models.CloneDesigns(s.Designs),
		ProcessedImages: slices.Clone(s.ProcessedImages),
	}
	if s.Transcription != "" {
		u.Transcription = models.Ptr(s.Transcription)
	}
	if s.CopyContent != nil {
		cc := *s.CopyContent
		u.CopyContent = &cc
	}
	if s.Error != "" {
		u.Error = models.Ptr(s.Error)
	}
	return u
}

// The apply* methods below are the merge rules shared by every channel. Each one is a no-op
// once the status is terminal and reports whether anything changed.

// addStep records step once. Steps outside the pipeline are never counted.
func (s *JobProgressState) addStep(step models.ProcessingStep) bool {
	if !step.Valid() || s.HasStep(step) {
		return false
	}
	s.CompletedSteps = append(s.CompletedSteps, step)
	return true
}

func (s *JobProgressState) raiseProgress(p int) {
	if p > s.Progress {
		s.Progress = min(p, 100)
	}
}

func (s *JobProgressState) applyConnected() bool {
	if s.Terminal() {
		return false
	}
	s.IsConnected = true
	s.Status = models.StatusProcessing
	return true
}

func (s *JobProgressState) applyStepStart(step models.ProcessingStep) bool {
	if s.Terminal() {
		return false
	}
	s.CurrentStep = step
	return true
}

// applyStepComplete merges a step_complete event. Progress is counted against [models.TotalSteps].
//
// An intermediate image is appended only the first time its step completes, so redelivered events
// cannot duplicate it.
func (s *JobProgressState) applyStepComplete(ev models.StreamEvent) bool {
	if s.Terminal() {
		return false
	}

	added := s.addStep(ev.Step)
	s.raiseProgress(models.Percent(len(s.CompletedSteps), models.TotalSteps))

	switch ev.Step {
	case models.StepTranscription:
		if text, ok := ev.TranscriptionText(); ok {
			s.Transcription = text
		}
	case models.StepCopyGeneration:
		if cc, ok := ev.CopyResult(); ok {
			s.CopyContent = cc
		}
	}

	if imgType, ok := ev.Step.ImageType(); ok && added {
		if url, key, ok := ev.ImageResult(); ok {
			s.ProcessedImages = append(s.ProcessedImages, models.ProcessedImage{Type: imgType, URL: url, Key: key})
		}
	}
	return true
}

func (s *JobProgressState) applyDesign(d models.Design) bool {
	if s.Terminal() {
		return false
	}
	s.Designs = models.UpsertDesign(s.Designs, d)
	return true
}

// applyImage merges a rendered image into an existing design. Unknown variants are ignored so a design
// never exists without its HTML.
func (s *JobProgressState) applyImage(variant int, imageURL string, dims *models.Dimensions) bool {
	if s.Terminal() {
		return false
	}
	i := models.FindDesign(s.Designs, variant)
	if i < 0 {
		return false
	}
	s.Designs[i].ImageURL = imageURL
	if dims != nil {
		d := *dims
		s.Designs[i].Dimensions = &d
	}
	return true
}

// applyComplete adopts the authoritative final results. Copy, designs, and processed images are replaced
// wholesale, including with empty values; the transcription is kept.
func (s *JobProgressState) applyComplete(r models.JobResults) bool {
	if s.Terminal() {
		return false
	}
	s.Status = models.StatusCompleted
	s.IsComplete = true
	s.Progress = 100
	s.Error = ""
	s.CopyContent = nil
	if r.CopyContent != nil {
		cc := *r.CopyContent
		s.CopyContent = &cc
	}
	s.Designs = models.CloneDesigns(r.Designs)
	if s.Designs == nil {
		s.Designs = []models.Design{}
	}
	models.SortDesigns(s.Designs)
	s.ProcessedImages = slices.Clone(r.ProcessedImages)
	if s.ProcessedImages == nil {
		s.ProcessedImages = []models.ProcessedImage{}
	}
	return true
}

func (s *JobProgressState) applyFailure(msg string) bool {
	if s.Terminal() {
		return false
	}
	s.Status = models.StatusFailed
	s.Error = msg
	s.IsConnected = false
	return true
}

// applyPoll merges a processing-status snapshot. Progress trusts the server's own tally; fields absent
// from the snapshot keep their previous value.
func (s *JobProgressState) applyPoll(ps *models.ProcessingStatus) bool {
	if s.Terminal() {
		return false
	}
	s.IsConnected = true
	s.Error = ""
	s.CurrentStep = ps.CurrentStep
	for _, step := range ps.CompletedSteps {
		s.addStep(step)
	}
	s.raiseProgress(ps.Progress.Percent())

	pr := ps.PartialResults
	if pr.Transcription != "" {
		s.Transcription = pr.Transcription
	}
	if pr.CopyContent != nil {
		cc := *pr.CopyContent
		s.CopyContent = &cc
	}
	if len(pr.Designs) > 0 {
		s.Designs = models.CloneDesigns(pr.Designs)
		models.SortDesigns(s.Designs)
	}
	if len(pr.ProcessedImages) > 0 {
		s.ProcessedImages = slices.Clone(pr.ProcessedImages)
	}
	return true
}

// applyRecoverable records a non-terminal error and marks the channel disconnected.
func (s *JobProgressState) applyRecoverable(msg string) bool {
	if s.Terminal() {
		return false
	}
	s.Error = msg
	s.IsConnected = false
	return true
}

func (s *JobProgressState) applyDisconnected() bool {
	if !s.IsConnected {
		return false
	}
	s.IsConnected = false
	return true
}
