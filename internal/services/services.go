package services

import (
	"context"

	"github.com/desertthunder/posterctl/internal/models"
)

// JobAPI is the set of poster API operations used by the CLI. [JobService] implements it.
type JobAPI interface {
	CreateJob(ctx context.Context) (string, error)
	UploadFiles(ctx context.Context, jobID string, req UploadRequest) (*models.UploadJobResponse, error)
	StartProcessing(ctx context.Context, jobID string) error
	ProcessingStatus(ctx context.Context, jobID string) (*models.ProcessingStatus, error)
	JobStatus(ctx context.Context, jobID string) (*models.Job, error)
	Results(ctx context.Context, jobID string) (*models.JobResults, error)
	ListJobs(ctx context.Context, params models.ListJobsParams) (*models.JobList, error)
	Download(ctx context.Context, jobID string, variant int) (*models.DownloadResponse, error)
	OpenEventStream(ctx context.Context, jobID string) (*EventStream, error)
}

// PromptAPI manages the prompt templates the pipeline draws on. [JobService] implements it.
type PromptAPI interface {
	ListPrompts(ctx context.Context, params models.ListPromptsParams) ([]models.Prompt, error)
	PromptStats(ctx context.Context) (*models.PromptStats, error)
	GetPrompt(ctx context.Context, id string) (*models.Prompt, error)
	CreatePrompt(ctx context.Context, req models.CreatePromptRequest) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, id string, req models.UpdatePromptRequest) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, id string) (string, error)
}

var (
	_ JobAPI    = (*JobService)(nil)
	_ PromptAPI = (*JobService)(nil)
)
