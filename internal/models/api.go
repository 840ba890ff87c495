package models

import (
	"net/url"
	"strconv"
)

// ErrorResponse is the body the API returns alongside non-2xx statuses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type CreateJobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// UploadedJob is the job summary echoed back by the upload endpoint.
type UploadedJob struct {
	ID             string          `json:"id"`
	Status         JobStatus       `json:"status"`
	PosterSettings *PosterSettings `json:"posterSettings,omitempty"`
}

type UploadJobResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Job     UploadedJob `json:"job"`
}

type JobStatusResponse struct {
	Success bool `json:"success"`
	Job     Job  `json:"job"`
}

// StepCount is the server's own completed/total step tally.
type StepCount struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent converts the tally into a rounded percentage. Non-positive totals fall back to [TotalSteps].
func (c StepCount) Percent() int {
	total := c.Total
	if total <= 0 {
		total = TotalSteps
	}
	return Percent(c.Completed, total)
}

// Percent returns round(completed/total*100) clamped to [0, 100].
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return (completed*200 + total) / (total * 2)
}

// PartialResults holds whatever output the server has produced so far.
type PartialResults struct {
	Transcription   string           `json:"transcription,omitempty"`
	CopyContent     *CopyContent     `json:"copyContent,omitempty"`
	ProcessedImages []ProcessedImage `json:"processedImages"`
	Designs         []Design         `json:"designs"`
}

// ProcessingStatus is the poll response for an in-flight job.
type ProcessingStatus struct {
	Success        bool             `json:"success"`
	Status         JobStatus        `json:"status"`
	CurrentStep    ProcessingStep   `json:"currentStep"`
	CompletedSteps []ProcessingStep `json:"completedSteps"`
	Progress       StepCount        `json:"progress"`
	PartialResults PartialResults   `json:"partialResults"`
	Error          string           `json:"error,omitempty"`
}

// JobResults is the authoritative final output of a completed job.
type JobResults struct {
	CopyContent     *CopyContent     `json:"copyContent"`
	Designs         []Design         `json:"designs"`
	ProcessedImages []ProcessedImage `json:"processedImages"`
}

type ResultsResponse struct {
	Success bool       `json:"success"`
	Results JobResults `json:"results"`
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalJobs   int  `json:"totalJobs"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type JobList struct {
	Success    bool       `json:"success"`
	Data       []Job      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type DownloadResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename"`
	ExpiresIn   int    `json:"expiresIn"`
}

// ListJobsParams filters the paginated job listing. Zero values are omitted from the query.
type ListJobsParams struct {
	Page           int
	Limit          int
	Status         JobStatus
	IncludeDesigns bool
}

// Query encodes the parameters as URL query values.
func (p ListJobsParams) Query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	if p.IncludeDesigns {
		q.Set("includeDesigns", "true")
	}
	return q
}
