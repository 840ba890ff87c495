package session

import (
	"slices"
	"sync"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// Files are the local inputs of the last job.
type Files struct {
	ImagePath string
	AudioPath string
}

// Snapshot is a point-in-time copy of a [Store].
type Snapshot struct {
	CurrentJob     *models.Job
	CurrentJobID   string
	Files          *Files
	PosterSettings *models.PosterSettings
}

// Store is the mutable record of the active job. All methods are safe for concurrent use.
//
// Mutators only touch the fields they name. Those that act on the current job are no-ops when there is none.
type Store struct {
	mu       sync.RWMutex
	clock    shared.Clock
	job      *models.Job
	jobID    string
	files    *Files
	settings *models.PosterSettings
}

// NewStore returns an empty store. A nil clock uses the real one.
func NewStore(clock shared.Clock) *Store {
	if clock == nil {
		clock = shared.RealClock()
	}
	return &Store{clock: clock}
}

// Snapshot returns a deep copy of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{CurrentJob: s.job.Clone(), CurrentJobID: s.jobID}
	if s.files != nil {
		f := *s.files
		snap.Files = &f
	}
	if s.settings != nil {
		snap.PosterSettings = s.settings.Clone()
	}
	return snap
}

// CurrentJob returns a copy of the current job, or nil.
func (s *Store) CurrentJob() *models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job.Clone()
}

// CurrentJobID returns the id of the current job, or "".
func (s *Store) CurrentJobID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobID
}

// SetCurrentJob replaces the current job. A nil job clears it.
func (s *Store) SetCurrentJob(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = job.Clone()
	if job != nil {
		s.jobID = job.ID
	} else {
		s.jobID = ""
	}
}

func (s *Store) SetCurrentJobID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = id
}

func (s *Store) UpdateJobStatus(status models.JobStatus) {
	s.update(models.JobUpdate{Status: &status})
}

// UpdateJobProgress merges a partial update into the current job.
func (s *Store) UpdateJobProgress(u models.JobUpdate) {
	s.update(u)
}

func (s *Store) update(u models.JobUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return
	}
	s.job.Apply(u, s.clock.Now())
}

// AddDesign stores d, replacing any design with the same variant number.
func (s *Store) AddDesign(d models.Design) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return
	}
	s.job.Designs = models.UpsertDesign(s.job.Designs, d)
	s.job.DesignCount = len(s.job.Designs)
	s.job.UpdatedAt = s.clock.Now()
}

// UpdateDesign applies fn to the design for variant. It returns [shared.ErrRecordNotFound] when the
// variant is unknown.
func (s *Store) UpdateDesign(variant int, fn func(*models.Design)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return shared.ErrJobNotFound
	}
	i := models.FindDesign(s.job.Designs, variant)
	if i < 0 {
		return shared.ErrRecordNotFound
	}
	fn(&s.job.Designs[i])
	s.job.UpdatedAt = s.clock.Now()
	return nil
}

// AddProcessedImage appends img. Processed images are never replaced.
func (s *Store) AddProcessedImage(img models.ProcessedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return
	}
	s.job.ProcessedImages = append(slices.Clone(s.job.ProcessedImages), img)
	s.job.UpdatedAt = s.clock.Now()
}

func (s *Store) SetTranscription(text string) {
	s.update(models.JobUpdate{Transcription: &text})
}

func (s *Store) SetCopyContent(cc models.CopyContent) {
	s.update(models.JobUpdate{CopyContent: &cc})
}

// SetError records msg on the current job and marks it failed. An empty msg clears the error and leaves
// the status alone.
func (s *Store) SetError(msg string) {
	if msg == "" {
		s.update(models.JobUpdate{Error: &msg})
		return
	}
	failed := models.StatusFailed
	s.update(models.JobUpdate{Error: &msg, Status: &failed})
}

// SetUploadedFiles remembers the inputs for a later retry.
func (s *Store) SetUploadedFiles(imagePath, audioPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = &Files{ImagePath: imagePath, AudioPath: audioPath}
}

// UploadedFiles returns the retained inputs, if any.
func (s *Store) UploadedFiles() (Files, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.files == nil {
		return Files{}, false
	}
	return *s.files, true
}

func (s *Store) SetPosterSettings(settings models.PosterSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings.Clone()
	if s.job != nil {
		s.job.PosterSettings = settings.Clone()
	}
}

// PosterSettings returns the retained settings, if any.
func (s *Store) PosterSettings() (models.PosterSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return models.PosterSettings{}, false
	}
	return *s.settings.Clone(), true
}

// ClearCurrentJob forgets the current job. Uploaded files and settings are kept.
func (s *Store) ClearCurrentJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = nil
	s.jobID = ""
}

// Reset empties the store, inputs included.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = nil
	s.jobID = ""
	s.files = nil
	s.settings = nil
}

// RetryInputs returns the files and settings a retry would reuse. It fails with
// [shared.ErrNoRetryableJob] when nothing was uploaded.
func (s *Store) RetryInputs() (Files, models.PosterSettings, error) {
	files, ok := s.UploadedFiles()
	if !ok {
		return Files{}, models.PosterSettings{}, shared.ErrNoRetryableJob
	}
	settings, ok := s.PosterSettings()
	if !ok {
		settings = models.DefaultPosterSettings()
	}
	return files, settings, nil
}

// IsFailed reports whether the current job is failed.
func (s *Store) IsFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job != nil && s.job.Status == models.StatusFailed
}
