package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/posterctl/internal/formatter"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// HistoryList prints jobs recorded on this machine.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.repository()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		if !models.JobStatus(status).Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, status)
		}
		criteria["status"] = status
	}
	if limit := int(cmd.Int("limit")); limit > 0 {
		criteria["limit"] = limit
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	data, err := formatter.HistoryToText(records)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// HistoryShow prints one recorded job with its designs.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	jobID, err := jobIDArg(cmd)
	if err != nil {
		return err
	}

	repo, err := r.repository()
	if err != nil {
		return err
	}

	rec, err := repo.GetByJobID(jobID)
	if err != nil {
		return err
	}

	designs, err := repo.Designs(rec.ID())
	if err != nil {
		return err
	}

	data, err := formatter.RecordToText(rec, designs)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// HistoryClear removes every recorded job.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.repository()
	if err != nil {
		return err
	}

	n, err := repo.DeleteAll()
	if err != nil {
		return err
	}

	r.logger.Info("history cleared", "count", n)
	return r.writePlain("✓ Removed %d jobs from history\n", n)
}
