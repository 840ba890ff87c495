package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/posterctl/internal/formatter"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
	"github.com/desertthunder/posterctl/internal/tasks"
)

func jobIDArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}
	return id, nil
}

// JobsList lists jobs on the API, one page at a time.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	params := models.ListJobsParams{
		Page:           int(cmd.Int("page")),
		Limit:          int(cmd.Int("limit")),
		Status:         models.JobStatus(cmd.String("status")),
		IncludeDesigns: cmd.Bool("designs"),
	}
	if params.Status != "" && !params.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, params.Status)
	}

	r.logger.Debug("listing jobs", "page", params.Page, "limit", params.Limit, "status", params.Status)

	list, err := r.client().ListJobs(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(list, cmd.Bool("pretty"))
	case cmd.Bool("csv"):
		data, err := formatter.JobsToCSV(list.Data)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}

	if len(list.Data) == 0 {
		return r.writePlain("No jobs found.\n")
	}
	data, err := formatter.JobsToText(list.Data, list.Pagination)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// JobsStatus prints the server's full record of a job.
func (r *Runner) JobsStatus(ctx context.Context, cmd *cli.Command) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	job, err := r.client().JobStatus(ctx, jobID)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to get job status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}

	r.writePlainHeader(fmt.Sprintf("Job %s", job.ID))
	r.writePlain("Status: %s\n", job.Status)
	r.writePlain("Created: %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if job.OriginalImage != nil {
		r.writePlain("Image: %s (%d bytes)\n", job.OriginalImage.OriginalFilename, job.OriginalImage.Size)
	}
	for _, step := range job.ProcessingSteps {
		line := fmt.Sprintf("  %-22s %s", step.Step.Title(), step.Status)
		if step.Duration != nil {
			line += fmt.Sprintf(" (%.1fs)", *step.Duration)
		}
		r.writePlain("%s\n", line)
	}
	if job.Transcription != "" {
		r.writePlain("Transcription: %s\n", job.Transcription)
	}
	if n := len(job.Designs); n > 0 || job.DesignCount > 0 {
		r.writePlain("Designs: %d\n", max(n, job.DesignCount))
	}
	if job.Error != "" {
		r.writePlain("Error: %s\n", job.Error)
	}
	return nil
}

// JobsResults fetches the final output of a completed job.
func (r *Runner) JobsResults(ctx context.Context, cmd *cli.Command) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	res, err := r.client().Results(ctx, jobID)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to get results: %w", err)
	}

	data, err := formatter.RenderResults(format, jobID, res)
	if err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}

	if out := cmd.String("out"); out != "" {
		return r.writeOutput(jobID, res, format, out, cmd.Bool("images"))
	}
	return nil
}

// JobsWatch polls a job that is already processing until it finishes. The event stream is never opened
// here since opening it starts the pipeline.
func (r *Runner) JobsWatch(ctx context.Context, cmd *cli.Command) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	engine, err := r.newEngine(string(tasks.StrategyPoll), !cmd.Bool("no-history"))
	if err != nil {
		return err
	}

	r.logger.Info("watching job", "job_id", jobID)
	result, err := r.follow(func(progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
		return engine.Track(ctx, jobID, progress)
	})
	if err != nil {
		return r.reportFailure(result, err)
	}

	return r.emitResults(result, formatter.FormatText, "", false)
}

// JobsDownload prints a time-limited download link for a variant, or saves the file with --output.
func (r *Runner) JobsDownload(ctx context.Context, cmd *cli.Command) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	variant := int(cmd.Int("variant"))
	if variant < 1 {
		return fmt.Errorf("%w: variant must be 1 or more", shared.ErrInvalidFlag)
	}

	link, err := r.client().Download(ctx, jobID, variant)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to get download link: %w", err)
	}

	output := cmd.String("output")
	if output == "" {
		r.writePlain("%s\n", link.DownloadURL)
		if link.ExpiresIn > 0 {
			r.writePlain("Expires in %d seconds\n", link.ExpiresIn)
		}
		return nil
	}

	if err := r.saveURL(ctx, link.DownloadURL, output); err != nil {
		return err
	}
	r.writePlain("✓ Saved %s to %s\n", link.Filename, output)
	return nil
}

func (r *Runner) saveURL(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
