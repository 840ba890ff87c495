package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/posterctl/internal/formatter"
	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

func promptIDArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", fmt.Errorf("%w: prompt id is required", shared.ErrMissingArgument)
	}
	return id, nil
}

func promptTypeFlag(cmd *cli.Command) (models.PromptType, error) {
	t := models.PromptType(cmd.String("type"))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown prompt type %q", shared.ErrInvalidFlag, t)
	}
	return t, nil
}

// templateFlag returns the template from --template or --template-file, and whether either was given.
func templateFlag(cmd *cli.Command) (string, bool, error) {
	if cmd.IsSet("template") && cmd.IsSet("template-file") {
		return "", false, fmt.Errorf("%w: use either --template or --template-file", shared.ErrInvalidFlag)
	}
	if path := cmd.String("template-file"); path != "" {
		tmpl, err := models.ReadTemplate(path)
		return tmpl, true, err
	}
	if cmd.IsSet("template") {
		return cmd.String("template"), true, nil
	}
	return "", false, nil
}

// PromptsList lists prompt templates, optionally filtered.
func (r *Runner) PromptsList(ctx context.Context, cmd *cli.Command) error {
	params := models.ListPromptsParams{Category: cmd.String("category")}
	if cmd.IsSet("type") {
		t, err := promptTypeFlag(cmd)
		if err != nil {
			return err
		}
		params.Type = t
	}
	if cmd.IsSet("active") {
		params.IsActive = models.Ptr(cmd.Bool("active"))
	}

	r.logger.Debug("listing prompts", "type", params.Type, "category", params.Category)

	prompts, err := r.promptClient().ListPrompts(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list prompts: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(prompts, true)
	}
	data, err := formatter.PromptsToText(prompts)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// PromptsShow prints one prompt with its variables and template.
func (r *Runner) PromptsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := promptIDArg(cmd)
	if err != nil {
		return err
	}

	prompt, err := r.promptClient().GetPrompt(ctx, id)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to get prompt: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(prompt, true)
	}
	data, err := formatter.PromptToText(prompt)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// PromptsStats prints usage totals across all prompts.
func (r *Runner) PromptsStats(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.promptClient().PromptStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get prompt stats: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}
	data, err := formatter.PromptStatsToText(stats)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// PromptsCreate builds a prompt from --file, applies flag overrides, and creates it.
func (r *Runner) PromptsCreate(ctx context.Context, cmd *cli.Command) error {
	req := models.DefaultCreatePromptRequest()
	if path := cmd.String("file"); path != "" {
		loaded, err := models.LoadCreatePromptRequest(path, req)
		if err != nil {
			return err
		}
		req = loaded
	}

	if cmd.IsSet("name") {
		req.Name = cmd.String("name")
	}
	if cmd.IsSet("type") {
		t, err := promptTypeFlag(cmd)
		if err != nil {
			return err
		}
		req.Type = t
	}
	if cmd.IsSet("category") {
		req.Category = cmd.String("category")
	}
	if cmd.IsSet("version") {
		req.Version = cmd.String("version")
	}
	tmpl, ok, err := templateFlag(cmd)
	if err != nil {
		return err
	}
	if ok {
		req.Template = tmpl
	}
	if cmd.IsSet("active") {
		req.IsActive = cmd.Bool("active")
	}
	if cmd.IsSet("default") {
		req.IsDefault = cmd.Bool("default")
	}
	if cmd.IsSet("notes") {
		req.Metadata.Notes = cmd.String("notes")
	}
	if tags := cmd.StringSlice("tag"); len(tags) > 0 {
		req.Metadata.Tags = tags
	}
	if req.Metadata.CreatedBy == "" {
		req.Metadata.CreatedBy = cmd.String("created-by")
	}

	prompt, err := r.promptClient().CreatePrompt(ctx, req)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to create prompt: %w", err)
	}

	r.logger.Info("prompt created", "prompt_id", prompt.ID, "name", prompt.Name)
	if cmd.Bool("json") {
		return r.writeJSON(prompt, true)
	}
	return r.writePlain("✓ Created prompt %s (%s)\n", prompt.Name, prompt.ID)
}

// PromptsUpdate sends only the fields given on the command line.
func (r *Runner) PromptsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := promptIDArg(cmd)
	if err != nil {
		return err
	}

	var req models.UpdatePromptRequest
	if cmd.IsSet("name") {
		req.Name = models.Ptr(cmd.String("name"))
	}
	if cmd.IsSet("type") {
		t, err := promptTypeFlag(cmd)
		if err != nil {
			return err
		}
		req.Type = &t
	}
	if cmd.IsSet("category") {
		req.Category = models.Ptr(cmd.String("category"))
	}
	if cmd.IsSet("version") {
		req.Version = models.Ptr(cmd.String("version"))
	}
	tmpl, ok, err := templateFlag(cmd)
	if err != nil {
		return err
	}
	if ok {
		req.Template = &tmpl
	}
	if cmd.IsSet("active") {
		req.IsActive = models.Ptr(cmd.Bool("active"))
	}
	if cmd.IsSet("default") {
		req.IsDefault = models.Ptr(cmd.Bool("default"))
	}
	if cmd.IsSet("notes") || len(cmd.StringSlice("tag")) > 0 {
		req.Metadata = &models.UpdatePromptMetadata{Notes: cmd.String("notes"), Tags: cmd.StringSlice("tag")}
	}

	if req.Empty() {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}
	if editor := cmd.String("updated-by"); editor != "" {
		if req.Metadata == nil {
			req.Metadata = &models.UpdatePromptMetadata{}
		}
		req.Metadata.UpdatedBy = editor
	}

	prompt, err := r.promptClient().UpdatePrompt(ctx, id, req)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to update prompt: %w", err)
	}

	r.logger.Info("prompt updated", "prompt_id", id)
	if cmd.Bool("json") {
		return r.writeJSON(prompt, true)
	}
	return r.writePlain("✓ Updated prompt %s (%s)\n", prompt.Name, prompt.ID)
}

// PromptsDelete removes a prompt.
func (r *Runner) PromptsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := promptIDArg(cmd)
	if err != nil {
		return err
	}

	msg, err := r.promptClient().DeletePrompt(ctx, id)
	if err != nil {
		r.describeError(err)
		return fmt.Errorf("failed to delete prompt: %w", err)
	}

	r.logger.Info("prompt deleted", "prompt_id", id)
	if msg == "" {
		msg = "Prompt deleted"
	}
	return r.writePlain("✓ %s: %s\n", msg, id)
}
