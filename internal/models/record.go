package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/posterctl/internal/shared"
)

// JobRecord is a job created or tracked from this machine, cached in the local history.
type JobRecord struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time

	JobID          string
	Status         JobStatus
	Mode           string
	CurrentStep    ProcessingStep
	CompletedSteps []ProcessingStep
	Progress       int
	Error          string
	Transcription  string
	CopyContent    *CopyContent
	Settings       *PosterSettings
	ImagePath      string
	AudioPath      string
}

// NewJobRecord creates an unsaved record for the given remote job.
func NewJobRecord(jobID string, status JobStatus) *JobRecord {
	now := time.Now()
	return &JobRecord{JobID: jobID, Status: status, createdAt: now, updatedAt: now}
}

// RestoreJobRecord rebuilds a record read from storage.
func RestoreJobRecord(id string, sequence int, createdAt, updatedAt time.Time, deletedAt *time.Time) *JobRecord {
	return &JobRecord{id: id, sequence: sequence, createdAt: createdAt, updatedAt: updatedAt, deletedAt: deletedAt}
}

func (r *JobRecord) ID() string            { return r.id }
func (r *JobRecord) Sequence() int         { return r.sequence }
func (r *JobRecord) CreatedAt() time.Time  { return r.createdAt }
func (r *JobRecord) UpdatedAt() time.Time  { return r.updatedAt }
func (r *JobRecord) DeletedAt() *time.Time { return r.deletedAt }

func (r *JobRecord) SetID(id string)          { r.id = id }
func (r *JobRecord) SetSequence(seq int)      { r.sequence = seq }
func (r *JobRecord) SetUpdatedAt(t time.Time) { r.updatedAt = t }

// Validate checks required fields.
func (r *JobRecord) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrInvalidInput)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, r.Status)
	}
	if r.Progress < 0 || r.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", shared.ErrInvalidInput, r.Progress)
	}
	return nil
}

// ApplyJob copies the progress fields of a session job into the record.
func (r *JobRecord) ApplyJob(j *Job) {
	if j == nil {
		return
	}
	r.JobID = j.ID
	r.Status = j.Status
	r.CurrentStep = j.CurrentStep
	r.CompletedSteps = slices.Clone(j.CompletedSteps)
	r.Progress = j.Progress
	r.Error = j.Error
	r.Transcription = j.Transcription
	if j.CopyContent != nil {
		cc := *j.CopyContent
		r.CopyContent = &cc
	}
	if j.PosterSettings != nil {
		r.Settings = j.PosterSettings.Clone()
	}
}

// EncodeJSONColumn serializes v for a TEXT column. nil encodes as "".
func EncodeJSONColumn(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	if string(b) == "null" {
		return "", nil
	}
	return string(b), nil
}

// DecodeJSONColumn parses a TEXT column written by [EncodeJSONColumn]. Empty strings leave v untouched.
func DecodeJSONColumn(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

// DesignRecord is a cached design variant of a [JobRecord].
type DesignRecord struct {
	id          string
	jobRecordID string
	createdAt   time.Time

	Design Design
}

// NewDesignRecord wraps d for storage under the given job record.
func NewDesignRecord(jobRecordID string, d Design) *DesignRecord {
	return &DesignRecord{jobRecordID: jobRecordID, createdAt: time.Now(), Design: d.Clone()}
}

// RestoreDesignRecord rebuilds a design row read from storage.
func RestoreDesignRecord(id, jobRecordID string, createdAt time.Time, d Design) *DesignRecord {
	return &DesignRecord{id: id, jobRecordID: jobRecordID, createdAt: createdAt, Design: d}
}

func (d *DesignRecord) ID() string           { return d.id }
func (d *DesignRecord) JobRecordID() string  { return d.jobRecordID }
func (d *DesignRecord) CreatedAt() time.Time { return d.createdAt }
func (d *DesignRecord) UpdatedAt() time.Time { return d.createdAt }
func (d *DesignRecord) SetID(id string)      { d.id = id }

func (d *DesignRecord) Validate() error {
	if d.jobRecordID == "" {
		return fmt.Errorf("%w: design must belong to a job", shared.ErrInvalidInput)
	}
	if d.Design.VariantNumber < 1 {
		return fmt.Errorf("%w: variant number must be positive", shared.ErrInvalidInput)
	}
	return nil
}
