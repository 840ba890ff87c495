package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

func promptPath(id string) string { return "/prompts/" + url.PathEscape(id) }

// ListPrompts fetches the prompt templates matching params.
func (s *JobService) ListPrompts(ctx context.Context, params models.ListPromptsParams) ([]models.Prompt, error) {
	path := "/prompts"
	if q := params.Query().Encode(); q != "" {
		path += "?" + q
	}

	var resp models.PromptListResponse
	if err := s.get(ctx, "list prompts", path, &resp); err != nil {
		return nil, err
	}
	if resp.Prompts == nil {
		return []models.Prompt{}, nil
	}
	return resp.Prompts, nil
}

// PromptStats fetches usage totals across all prompts.
func (s *JobService) PromptStats(ctx context.Context) (*models.PromptStats, error) {
	var resp models.PromptStatsResponse
	if err := s.get(ctx, "prompt stats", "/prompts/stats", &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

func (s *JobService) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: prompt id", shared.ErrMissingArgument)
	}

	var resp models.PromptResponse
	if err := s.get(ctx, "get prompt", promptPath(id), &resp); err != nil {
		return nil, err
	}
	return &resp.Prompt, nil
}

// CreatePrompt validates req and stores it as a new prompt. It is not retried.
func (s *JobService) CreatePrompt(ctx context.Context, req models.CreatePromptRequest) (*models.Prompt, error) {
	if req.Variables == nil {
		req.Variables = []models.PromptVariable{}
	}
	if req.Metadata.Tags == nil {
		req.Metadata.Tags = []string{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt: %w", err)
	}

	var resp models.PromptResponse
	if err := s.send(ctx, http.MethodPost, "/prompts", body, "", &resp); err != nil {
		return nil, err
	}
	s.logger.Debug("prompt created", "prompt_id", resp.Prompt.ID, "name", resp.Prompt.Name)
	return &resp.Prompt, nil
}

// UpdatePrompt sends only the fields set in req.
func (s *JobService) UpdatePrompt(ctx context.Context, id string, req models.UpdatePromptRequest) (*models.Prompt, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: prompt id", shared.ErrMissingArgument)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt update: %w", err)
	}

	var resp models.PromptResponse
	if err := s.send(ctx, http.MethodPut, promptPath(id), body, "", &resp); err != nil {
		return nil, err
	}
	s.logger.Debug("prompt updated", "prompt_id", id)
	return &resp.Prompt, nil
}

// DeletePrompt removes a prompt and returns the server's confirmation message.
func (s *JobService) DeletePrompt(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: prompt id", shared.ErrMissingArgument)
	}

	var resp models.MessageResponse
	if err := s.send(ctx, http.MethodDelete, promptPath(id), nil, "", &resp); err != nil {
		return "", err
	}
	s.logger.Debug("prompt deleted", "prompt_id", id)
	return resp.Message, nil
}
