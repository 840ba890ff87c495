package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// JobRecorderAdapter implements tasks.JobRecorder using JobRepository.
//
// A run for a job that is already in the history updates that record in place.
// Paths recorded earlier survive later runs that have none (e.g. watching a job created here).
type JobRecorderAdapter struct {
	repo *JobRepository
}

// NewJobRecorderAdapter creates a new JobRecorderAdapter with the given repository
func NewJobRecorderAdapter(repo *JobRepository) *JobRecorderAdapter {
	return &JobRecorderAdapter{repo: repo}
}

// RecordJob creates or updates the record for rec.JobID and stores its designs
func (a *JobRecorderAdapter) RecordJob(rec *models.JobRecord, designs []models.Design) error {
	existing, err := a.repo.GetByJobID(rec.JobID)
	switch {
	case err == nil:
		rec.SetID(existing.ID())
		rec.SetSequence(existing.Sequence())
		if rec.ImagePath == "" {
			rec.ImagePath = existing.ImagePath
		}
		if rec.AudioPath == "" {
			rec.AudioPath = existing.AudioPath
		}
		if rec.Settings == nil {
			rec.Settings = existing.Settings
		}
		if err := a.repo.Update(rec); err != nil {
			return fmt.Errorf("failed to record job: %w", err)
		}
	case errors.Is(err, shared.ErrRecordNotFound):
		if err := a.repo.Create(rec); err != nil {
			return fmt.Errorf("failed to record job: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up job: %w", err)
	}

	if len(designs) == 0 {
		return nil
	}
	return a.repo.SaveDesigns(rec.ID(), designs)
}
