package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/posterctl/internal/formatter"
	"github.com/desertthunder/posterctl/internal/shared"
	"github.com/desertthunder/posterctl/internal/tasks"
	"github.com/desertthunder/posterctl/internal/ui"
)

// runUI follows a poster run in the interactive view.
func (r *Runner) runUI(ctx context.Context, cmd *cli.Command, req tasks.PosterRequest) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/posterctl-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	engine, err := r.newEngine(cmd.String("mode"), !cmd.Bool("no-history"))
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, engine, req)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}

	result := model.Result()
	if out := cmd.String("out"); out != "" && result != nil && result.Results != nil {
		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}
		return r.writeOutput(result.JobID, result.Results, format, out, cmd.Bool("images"))
	}
	return nil
}
