package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// JobRepository implements models.Repository[*models.JobRecord] for the local job history.
//
// Records are keyed by a local ID; the remote job ID is unique among live records.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, sequence, job_id, status, mode, current_step, completed_steps, progress, error,
	transcription, copy_content, settings, image_path, audio_path, created_at, updated_at, deleted_at`

// Create inserts a new [models.JobRecord] into the database with generated ID and sequence
func (r *JobRepository) Create(rec *models.JobRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	cols, err := encodeJobColumns(rec)
	if err != nil {
		return err
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO jobs (id, sequence, job_id, status, mode, current_step, completed_steps, progress, error,
			transcription, copy_content, settings, image_path, audio_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		rec.JobID,
		rec.Status,
		rec.Mode,
		rec.CurrentStep,
		cols.steps,
		rec.Progress,
		rec.Error,
		rec.Transcription,
		cols.copy,
		cols.settings,
		rec.ImagePath,
		rec.AudioPath,
		rec.CreatedAt(),
		rec.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	rec.SetID(id)
	rec.SetSequence(sequence)
	return nil
}

// Get retrieves a job record by ID, excluding soft-deleted records
func (r *JobRepository) Get(id string) (*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ? AND deleted_at IS NULL`
	return scanJob(r.db.QueryRow(query, id))
}

// GetByJobID retrieves the live record for a remote job ID
func (r *JobRepository) GetByJobID(jobID string) (*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = ? AND deleted_at IS NULL`
	return scanJob(r.db.QueryRow(query, jobID))
}

// Update writes the progress fields of an existing record
func (r *JobRepository) Update(rec *models.JobRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cols, err := encodeJobColumns(rec)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE jobs
		SET status = ?, mode = ?, current_step = ?, completed_steps = ?, progress = ?, error = ?,
			transcription = ?, copy_content = ?, settings = ?, image_path = ?, audio_path = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.Status,
		rec.Mode,
		rec.CurrentStep,
		cols.steps,
		rec.Progress,
		rec.Error,
		rec.Transcription,
		cols.copy,
		cols.settings,
		rec.ImagePath,
		rec.AudioPath,
		now,
		rec.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return requireRow(result, "job", rec.ID())
}

// Delete soft-deletes a job record by ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE jobs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRow(result, "job", id)
}

// DeleteAll soft-deletes every live record and returns how many were removed
func (r *JobRepository) DeleteAll() (int, error) {
	result, err := r.db.Exec(`UPDATE jobs SET deleted_at = ? WHERE deleted_at IS NULL`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to clear jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// List retrieves live job records, newest first.
//
// Supported criteria: "status" ([models.JobStatus] or string), "mode" (string), "limit" (int).
func (r *JobRepository) List(criteria map[string]any) ([]*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.JobStatus:
		if status != "" {
			query += " AND status = ?"
			args = append(args, string(status))
		}
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if mode, ok := criteria["mode"].(string); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []*models.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// SaveDesigns replaces the stored designs of a job record
func (r *JobRepository) SaveDesigns(jobRecordID string, designs []models.Design) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM job_designs WHERE job_record_id = ?`, jobRecordID); err != nil {
		return fmt.Errorf("failed to clear designs: %w", err)
	}

	query := `
		INSERT INTO job_designs (id, job_record_id, variant_number, html, preview_url, image_url, image_key,
			width, height, format, validation_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, d := range designs {
		rec := models.NewDesignRecord(jobRecordID, d)
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		var width, height int
		if d.Dimensions != nil {
			width, height = d.Dimensions.Width, d.Dimensions.Height
		}
		score, err := models.EncodeJSONColumn(d.ValidationScore)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(query,
			shared.GenerateID(),
			jobRecordID,
			d.VariantNumber,
			d.HTML,
			d.PreviewURL,
			d.ImageURL,
			d.ImageKey,
			width,
			height,
			d.Format,
			score,
			rec.CreatedAt(),
		); err != nil {
			return fmt.Errorf("failed to insert design %d: %w", d.VariantNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit designs: %w", err)
	}
	return nil
}

// Designs returns the stored designs of a job record ordered by variant
func (r *JobRepository) Designs(jobRecordID string) ([]*models.DesignRecord, error) {
	query := `
		SELECT id, job_record_id, variant_number, html, preview_url, image_url, image_key, width, height, format,
			validation_score, created_at
		FROM job_designs
		WHERE job_record_id = ?
		ORDER BY variant_number ASC
	`

	rows, err := r.db.Query(query, jobRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query designs: %w", err)
	}
	defer rows.Close()

	var designs []*models.DesignRecord
	for rows.Next() {
		var (
			id, recordID  string
			d             models.Design
			width, height int
			score         string
			createdAt     time.Time
		)
		if err := rows.Scan(&id, &recordID, &d.VariantNumber, &d.HTML, &d.PreviewURL, &d.ImageURL, &d.ImageKey,
			&width, &height, &d.Format, &score, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan design: %w", err)
		}
		if width > 0 || height > 0 {
			d.Dimensions = &models.Dimensions{Width: width, Height: height}
		}
		if score != "" {
			d.ValidationScore = &models.ValidationScore{}
			if err := models.DecodeJSONColumn(score, d.ValidationScore); err != nil {
				return nil, err
			}
		}
		designs = append(designs, models.RestoreDesignRecord(id, recordID, createdAt, d))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return designs, nil
}

type jobColumnValues struct {
	steps    string
	copy     string
	settings string
}

func encodeJobColumns(rec *models.JobRecord) (jobColumnValues, error) {
	var (
		cols jobColumnValues
		err  error
	)
	steps := rec.CompletedSteps
	if steps == nil {
		steps = []models.ProcessingStep{}
	}
	if cols.steps, err = models.EncodeJSONColumn(steps); err != nil {
		return cols, err
	}
	if rec.CopyContent != nil {
		if cols.copy, err = models.EncodeJSONColumn(rec.CopyContent); err != nil {
			return cols, err
		}
	}
	if rec.Settings != nil {
		if cols.settings, err = models.EncodeJSONColumn(rec.Settings); err != nil {
			return cols, err
		}
	}
	return cols, nil
}

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob scans a single row into a [models.JobRecord]
func scanJob(row rowScanner) (*models.JobRecord, error) {
	var (
		id          string
		sequence    int
		jobID       string
		status      string
		mode        string
		currentStep string
		steps       string
		progress    int
		errText     string
		transcript  string
		copyContent string
		settings    string
		imagePath   string
		audioPath   string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &jobID, &status, &mode, &currentStep, &steps, &progress, &errText,
		&transcript, &copyContent, &settings, &imagePath, &audioPath, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	rec := models.RestoreJobRecord(id, sequence, createdAt, updatedAt, deleted)
	rec.JobID = jobID
	rec.Status = models.JobStatus(status)
	rec.Mode = mode
	rec.CurrentStep = models.ProcessingStep(currentStep)
	rec.Progress = progress
	rec.Error = errText
	rec.Transcription = transcript
	rec.ImagePath = imagePath
	rec.AudioPath = audioPath

	if err := models.DecodeJSONColumn(steps, &rec.CompletedSteps); err != nil {
		return nil, err
	}
	if copyContent != "" {
		rec.CopyContent = &models.CopyContent{}
		if err := models.DecodeJSONColumn(copyContent, rec.CopyContent); err != nil {
			return nil, err
		}
	}
	if settings != "" {
		rec.Settings = &models.PosterSettings{}
		if err := models.DecodeJSONColumn(settings, rec.Settings); err != nil {
			return nil, err
		}
	}

	return rec, nil
}

func requireRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted: %s", shared.ErrRecordNotFound, kind, id)
	}
	return nil
}

var _ models.Repository[*models.JobRecord] = (*JobRepository)(nil)
