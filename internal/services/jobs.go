package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// DefaultBaseURL is the staging poster API.
const DefaultBaseURL = "https://ai-poster-api-staging.hi-lab.ai/api"

// Options configures a [JobService].
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	Token             string
	RequestsPerSecond float64
	// Transport is the base round tripper; nil uses [http.DefaultTransport].
	Transport http.RoundTripper
	Logger    *log.Logger
}

// OptionsFromConfig maps the [api] config section onto [Options].
func OptionsFromConfig(cfg shared.APIConfig, logger *log.Logger) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout(),
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay(),
		Token:             cfg.Token,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	}
}

// JobService is the HTTP client for the poster job API. It holds no job state.
//
// REST calls go through a client with a timeout; the event stream uses a client without one.
type JobService struct {
	baseURL       string
	rest          *http.Client
	stream        *http.Client
	limiter       *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	logger        *log.Logger
}

// NewJobService creates a client from opts, filling in defaults for zero values.
func NewJobService(opts Options) *JobService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &JobService{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		rest:          &http.Client{Timeout: opts.Timeout, Transport: transport},
		stream:        &http.Client{Transport: transport},
		limiter:       limiter,
		retryAttempts: max(opts.RetryAttempts, 0),
		retryDelay:    opts.RetryDelay,
		logger:        shared.WithLogger(opts.Logger, "service", "jobs"),
	}
}

// BaseURL returns the API root requests are sent to.
func (s *JobService) BaseURL() string { return s.baseURL }

func jobPath(jobID string, parts ...string) string {
	p := "/jobs/" + url.PathEscape(jobID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// CreateJob creates an empty job and returns its id.
func (s *JobService) CreateJob(ctx context.Context) (string, error) {
	var resp models.CreateJobResponse
	if err := s.send(ctx, http.MethodPost, "/jobs/create", nil, "", &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: create job returned no job id", shared.ErrAPIRequest)
	}
	s.logger.Debug("job created", "job_id", resp.JobID)
	return resp.JobID, nil
}

// UploadRequest holds the input files and settings for a job.
type UploadRequest struct {
	ImagePath string
	AudioPath string
	Settings  *models.PosterSettings
}

// UploadFiles sends the image, audio, and settings as a multipart form.
// Only settings that are set are included.
func (s *JobService) UploadFiles(ctx context.Context, jobID string, req UploadRequest) (*models.UploadJobResponse, error) {
	body, contentType, err := buildUploadForm(req)
	if err != nil {
		return nil, newRequestError(err)
	}

	var resp models.UploadJobResponse
	if err := s.send(ctx, http.MethodPost, jobPath(jobID, "upload"), body, contentType, &resp); err != nil {
		return nil, err
	}
	s.logger.Debug("files uploaded", "job_id", jobID, "status", resp.Job.Status)
	return &resp, nil
}

// StartProcessing triggers the pipeline. The response body is not read.
func (s *JobService) StartProcessing(ctx context.Context, jobID string) error {
	req, err := s.newRequest(ctx, http.MethodGet, jobPath(jobID, "process"), nil, "")
	if err != nil {
		return err
	}

	resp, err := s.do(s.rest, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return newApplicationError(resp.StatusCode, body)
	}
	return nil
}

// ProcessingStatus fetches the poll snapshot of an in-flight job. It is not retried; the poller is its own retry loop.
func (s *JobService) ProcessingStatus(ctx context.Context, jobID string) (*models.ProcessingStatus, error) {
	var resp models.ProcessingStatus
	if err := s.send(ctx, http.MethodGet, jobPath(jobID, "processing-status"), nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus fetches the full job record.
func (s *JobService) JobStatus(ctx context.Context, jobID string) (*models.Job, error) {
	var resp models.JobStatusResponse
	if err := s.get(ctx, "job status", jobPath(jobID, "status"), &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Results fetches the final output of a completed job.
func (s *JobService) Results(ctx context.Context, jobID string) (*models.JobResults, error) {
	var resp models.ResultsResponse
	if err := s.get(ctx, "results", jobPath(jobID, "results"), &resp); err != nil {
		return nil, err
	}
	return &resp.Results, nil
}

// ListJobs fetches one page of jobs.
func (s *JobService) ListJobs(ctx context.Context, params models.ListJobsParams) (*models.JobList, error) {
	path := "/jobs"
	if q := params.Query().Encode(); q != "" {
		path += "?" + q
	}

	var resp models.JobList
	if err := s.get(ctx, "list jobs", path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download returns a signed download link for one variant.
func (s *JobService) Download(ctx context.Context, jobID string, variant int) (*models.DownloadResponse, error) {
	var resp models.DownloadResponse
	if err := s.get(ctx, "download", jobPath(jobID, "download", strconv.Itoa(variant)), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenEventStream connects to the processing event stream of a job.
// The caller must Close the returned stream.
func (s *JobService) OpenEventStream(ctx context.Context, jobID string) (*EventStream, error) {
	req, err := s.newRequest(ctx, http.MethodGet, jobPath(jobID, "process"), nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.do(s.stream, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, newApplicationError(resp.StatusCode, body)
	}

	return NewEventStream(resp.Body), nil
}

// get is an idempotent read retried on transport errors and 5xx responses.
func (s *JobService) get(ctx context.Context, op, path string, out any) error {
	return s.withRetry(ctx, op, s.retryAttempts, func() error {
		return s.send(ctx, http.MethodGet, path, nil, "", out)
	})
}

// send performs one request and decodes a 2xx JSON body into out.
func (s *JobService) send(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	req, err := s.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	resp, err := s.do(s.rest, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return newTransportError(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newApplicationError(resp.StatusCode, data)
		s.logger.Error("api error", "method", method, "path", path, "status", resp.StatusCode, "error", apiErr.Message)
		if hint := apiErr.Hint(); hint != "" {
			s.logger.Warn("tip", "hint", hint)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func (s *JobService) newRequest(ctx context.Context, method, path string, body []byte, contentType string) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, r)
	if err != nil {
		return nil, newRequestError(fmt.Errorf("failed to create request: %w", err))
	}

	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", shared.GenerateID())
	return req, nil
}

// do waits for the rate limiter and sends req. Failures without a response become transport errors.
func (s *JobService) do(client *http.Client, req *http.Request) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(req.Context()); err != nil {
			return nil, newTransportError(err)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Debug("request failed", "method", req.Method, "url", req.URL.Redacted(), "error", err)
		return nil, newTransportError(err)
	}
	return resp, nil
}

// buildUploadForm encodes the upload request in memory so the body can be sized and resent.
func buildUploadForm(req UploadRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := addFilePart(w, "image", req.ImagePath); err != nil {
		return nil, "", err
	}
	if err := addFilePart(w, "audio", req.AudioPath); err != nil {
		return nil, "", err
	}

	fields, err := settingsFields(req.Settings)
	if err != nil {
		return nil, "", err
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func addFilePart(w *multipart.Writer, field, path string) error {
	if path == "" {
		return fmt.Errorf("%w: %s file is required", shared.ErrMissingArgument, field)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", field, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("failed to detect %s file type: %w", field, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s file: %w", field, err)
	}
	ctype := mtype.String()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filepath.Base(path))))
	h.Set("Content-Type", ctype)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s file: %w", field, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// settingsFields lists the form fields for s in a stable order, skipping unset values.
func settingsFields(s *models.PosterSettings) ([][2]string, error) {
	if s == nil {
		return nil, nil
	}

	var fields [][2]string
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, [2]string{k, v})
		}
	}

	add("language", string(s.Language))
	add("orientation", string(s.Orientation))
	add("size", string(s.Size))
	add("productPosition", string(s.ProductPosition))
	add("backgroundColor", s.BackgroundColor)
	if s.CustomWidth > 0 {
		add("customWidth", strconv.Itoa(s.CustomWidth))
	}
	if s.CustomHeight > 0 {
		add("customHeight", strconv.Itoa(s.CustomHeight))
	}
	add("minimalPadding", strconv.FormatBool(s.MinimalPadding))
	if s.PaddingRatio != nil {
		add("paddingRatio", strconv.FormatFloat(*s.PaddingRatio, 'f', -1, 64))
	}
	add("useCase", s.UseCase)
	if s.Assets != nil {
		cfg, err := s.Assets.JSON()
		if err != nil {
			return nil, err
		}
		add("assetConfig", cfg)
	}
	return fields, nil
}
