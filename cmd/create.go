package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/posterctl/internal/formatter"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
	"github.com/desertthunder/posterctl/internal/tasks"
)

// Create runs the full flow: create a job, upload the inputs, and follow processing to the results.
func (r *Runner) Create(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.posterSettings(cmd)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	req := tasks.PosterRequest{
		ImagePath: cmd.String("image"),
		AudioPath: cmd.String("audio"),
		Settings:  settings,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if cmd.Bool("ui") {
		return r.runUI(ctx, cmd, req)
	}

	engine, err := r.newEngine(cmd.String("mode"), !cmd.Bool("no-history"))
	if err != nil {
		return err
	}

	r.logger.Info("starting poster job", "image", req.ImagePath, "audio", req.AudioPath, "mode", cmd.String("mode"))

	result, err := r.follow(func(progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
		return engine.Run(ctx, req, progress)
	})
	if err != nil {
		return r.reportFailure(result, err)
	}

	return r.emitResults(result, format, cmd.String("out"), cmd.Bool("images"))
}

// posterSettings layers config defaults, the settings file, and flags, in that order.
func (r *Runner) posterSettings(cmd *cli.Command) (models.PosterSettings, error) {
	settings := models.PosterSettingsFromDefaults(r.config.Poster)

	if path := cmd.String("settings"); path != "" {
		loaded, err := models.LoadPosterSettings(path, settings)
		if err != nil {
			return settings, err
		}
		settings = loaded
	}

	if cmd.IsSet("language") {
		settings.Language = models.Language(cmd.String("language"))
	}
	if cmd.IsSet("orientation") {
		settings.Orientation = models.Orientation(cmd.String("orientation"))
	}
	if cmd.IsSet("size") {
		settings.Size = models.PosterSize(cmd.String("size"))
	}
	if cmd.IsSet("width") {
		settings.CustomWidth = int(cmd.Int("width"))
	}
	if cmd.IsSet("height") {
		settings.CustomHeight = int(cmd.Int("height"))
	}
	if cmd.IsSet("position") {
		settings.ProductPosition = models.ProductPosition(cmd.String("position"))
	}
	if cmd.IsSet("background") {
		settings.BackgroundColor = cmd.String("background")
	}
	if cmd.IsSet("minimal-padding") {
		settings.MinimalPadding = cmd.Bool("minimal-padding")
	}
	if cmd.IsSet("padding-ratio") {
		settings.PaddingRatio = models.Ptr(float64(cmd.Float("padding-ratio")))
	}
	if cmd.IsSet("use-case") {
		settings.UseCase = cmd.String("use-case")
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// follow runs fn while printing its progress updates.
func (r *Runner) follow(fn func(chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)) (*tasks.RunResult, error) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var last string
		for update := range progressCh {
			if update.Message == last {
				continue
			}
			last = update.Message

			switch update.Phase {
			case tasks.CreateJob, tasks.UploadFiles, tasks.StartProcessing:
				r.writePlain("📤 %s\n", update.Message)
			case tasks.TrackJob:
				r.writePlain("   %s\n", update.Message)
			case tasks.Fallback:
				r.writePlain("\n⚠ %s\n", update.Message)
			case tasks.Complete, tasks.Failed:
				r.writePlain("\n%s\n", update.Message)
			}
		}
	}()

	result, err := fn(progressCh)
	close(progressCh)
	<-done

	return result, err
}

// reportFailure prints what is known about a failed run and returns err.
func (r *Runner) reportFailure(result *tasks.RunResult, err error) error {
	if result == nil || result.JobID == "" {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Poster Failed")
	r.writePlain("Job: %s\n", result.JobID)
	if result.Mode != "" {
		r.writePlain("Mode: %s\n", result.Mode)
	}
	r.writePlain("Completed steps: %d/%d\n", len(result.State.CompletedSteps), models.TotalSteps)
	r.describeError(err)

	if errors.Is(err, shared.ErrPipelineFailed) {
		r.writePlain("Run 'posterctl create' again with the same inputs to retry.\n")
	}
	return err
}

// emitResults prints the results of a completed run and optionally writes them to outDir.
func (r *Runner) emitResults(result *tasks.RunResult, format formatter.Format, outDir string, withImages bool) error {
	if result == nil || result.Results == nil {
		return fmt.Errorf("%w: job finished without results", shared.ErrJobNotCompleted)
	}

	if format == formatter.FormatText {
		r.writePlain("\n")
		r.writePlainHeader("Poster Complete!")
		if result.FellBack {
			r.writePlain("Tracked via %s (event stream unavailable)\n", result.Mode)
		}
	}

	data, err := formatter.RenderResults(format, result.JobID, result.Results)
	if err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}

	if outDir == "" {
		return nil
	}
	return r.writeOutput(result.JobID, result.Results, format, outDir, withImages)
}

func (r *Runner) writeOutput(jobID string, res *models.JobResults, format formatter.Format, outDir string, withImages bool) error {
	export, err := formatter.WriteDesigns(res.Designs, outDir, withImages)
	if err != nil {
		return err
	}
	for _, skipped := range export.Skipped {
		r.logger.Warn("skipped image download", "file", skipped)
	}

	path, err := formatter.WriteResults(format, jobID, res, filepath.Join(outDir, "results."+format.Ext()))
	if err != nil {
		return err
	}

	r.writePlainln("✓ Wrote %d files to %s", len(export.Files)+1, export.Directory)
	r.logger.Debug("results written", "path", path)
	return nil
}
