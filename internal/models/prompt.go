package models

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/desertthunder/posterctl/internal/shared"
)

// PromptType is the pipeline stage a prompt template feeds.
type PromptType string

const (
	PromptPhotoshoot PromptType = "photoshoot"
	PromptBlending   PromptType = "blending"
	PromptCopy       PromptType = "copy"
	PromptHTML       PromptType = "html"
	PromptValidation PromptType = "validation"
)

// PromptTypes lists every recognized prompt type.
var PromptTypes = []PromptType{PromptPhotoshoot, PromptBlending, PromptCopy, PromptHTML, PromptValidation}

func (t PromptType) Valid() bool { return slices.Contains(PromptTypes, t) }

// PromptVariable is a placeholder the template expects to be filled in.
type PromptVariable struct {
	Name        string `json:"name" toml:"name" validate:"required"`
	Description string `json:"description" toml:"description"`
	Required    bool   `json:"required" toml:"required"`
}

type PromptPerformanceMetrics struct {
	UsageCount   int        `json:"usageCount"`
	SuccessCount int        `json:"successCount"`
	FailureCount int        `json:"failureCount"`
	AverageScore float64    `json:"averageScore"`
	LastUsed     *time.Time `json:"lastUsed,omitempty"`
}

// SuccessRate is the share of successful uses as a rounded percentage.
func (m PromptPerformanceMetrics) SuccessRate() int {
	return Percent(m.SuccessCount, m.SuccessCount+m.FailureCount)
}

type PromptMetadata struct {
	CreatedBy string   `json:"createdBy"`
	UpdatedBy string   `json:"updatedBy,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Tags      []string `json:"tags"`
}

// Prompt is a versioned template stored by the API.
type Prompt struct {
	ID                 string                   `json:"_id"`
	Name               string                   `json:"name"`
	Type               PromptType               `json:"type"`
	Category           string                   `json:"category"`
	Version            string                   `json:"version"`
	Template           string                   `json:"template"`
	Variables          []PromptVariable         `json:"variables"`
	IsActive           bool                     `json:"isActive"`
	IsDefault          bool                     `json:"isDefault"`
	PerformanceMetrics PromptPerformanceMetrics `json:"performanceMetrics"`
	Metadata           PromptMetadata           `json:"metadata"`
	CreatedAt          time.Time                `json:"createdAt"`
	UpdatedAt          time.Time                `json:"updatedAt"`
}

// PromptScore ranks a prompt in [PromptStats].
type PromptScore struct {
	Name         string  `json:"name"`
	AverageScore float64 `json:"averageScore"`
	UsageCount   int     `json:"usageCount"`
}

type PromptStats struct {
	TotalPrompts  int                `json:"totalPrompts"`
	ActivePrompts int                `json:"activePrompts"`
	ByType        map[PromptType]int `json:"byType"`
	TopPerforming []PromptScore      `json:"topPerforming"`
}

type PromptListResponse struct {
	Success bool     `json:"success"`
	Prompts []Prompt `json:"prompts"`
}

type PromptResponse struct {
	Success bool   `json:"success"`
	Prompt  Prompt `json:"prompt"`
	Message string `json:"message,omitempty"`
}

type PromptStatsResponse struct {
	Success bool        `json:"success"`
	Stats   PromptStats `json:"stats"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListPromptsParams filters the prompt listing. Zero values are omitted from the query.
type ListPromptsParams struct {
	Type     PromptType
	Category string
	IsActive *bool
}

func (p ListPromptsParams) Query() url.Values {
	q := url.Values{}
	if p.Type != "" {
		q.Set("type", string(p.Type))
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.IsActive != nil {
		q.Set("isActive", strconv.FormatBool(*p.IsActive))
	}
	return q
}

type CreatePromptMetadata struct {
	CreatedBy string   `json:"createdBy" toml:"created_by" validate:"required"`
	Notes     string   `json:"notes,omitempty" toml:"notes"`
	Tags      []string `json:"tags" toml:"tags" validate:"dive,required"`
}

// CreatePromptRequest is the body of POST /prompts.
type CreatePromptRequest struct {
	Name      string               `json:"name" toml:"name" validate:"required,max=200"`
	Type      PromptType           `json:"type" toml:"type" validate:"required,oneof=photoshoot blending copy html validation"`
	Category  string               `json:"category" toml:"category" validate:"required"`
	Version   string               `json:"version" toml:"version" validate:"required"`
	Template  string               `json:"template" toml:"template" validate:"required"`
	Variables []PromptVariable     `json:"variables" toml:"variables" validate:"unique=Name,dive"`
	IsActive  bool                 `json:"isActive" toml:"is_active"`
	IsDefault bool                 `json:"isDefault" toml:"is_default"`
	Metadata  CreatePromptMetadata `json:"metadata" toml:"metadata"`
}

// DefaultCreatePromptRequest returns an active 1.0.0 draft with empty lists.
func DefaultCreatePromptRequest() CreatePromptRequest {
	return CreatePromptRequest{
		Version:   "1.0.0",
		IsActive:  true,
		Variables: []PromptVariable{},
		Metadata:  CreatePromptMetadata{Tags: []string{}},
	}
}

func (r CreatePromptRequest) Validate() error {
	return validationError(validate.Struct(r))
}

// LoadCreatePromptRequest reads a prompt definition from a TOML file on top of base.
// A template_file key is resolved relative to the definition file.
func LoadCreatePromptRequest(path string, base CreatePromptRequest) (CreatePromptRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CreatePromptRequest{}, fmt.Errorf("failed to read prompt file: %w", err)
	}

	file := struct {
		CreatePromptRequest
		TemplateFile string `toml:"template_file"`
	}{CreatePromptRequest: base}

	meta, err := toml.Decode(string(data), &file)
	if err != nil {
		return CreatePromptRequest{}, fmt.Errorf("failed to parse prompt file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return CreatePromptRequest{}, fmt.Errorf("%w: %s", shared.ErrUnknownSetting, strings.Join(keys, ", "))
	}

	req := file.CreatePromptRequest
	if file.TemplateFile != "" {
		tmplPath := file.TemplateFile
		if !filepath.IsAbs(tmplPath) {
			tmplPath = filepath.Join(filepath.Dir(path), tmplPath)
		}
		tmpl, err := ReadTemplate(tmplPath)
		if err != nil {
			return CreatePromptRequest{}, err
		}
		req.Template = tmpl
	}
	return req, nil
}

// ReadTemplate loads a prompt template body from disk.
func ReadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), nil
}

type UpdatePromptMetadata struct {
	UpdatedBy string   `json:"updatedBy,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Tags      []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
}

// UpdatePromptRequest is the body of PUT /prompts/{id}. Nil fields are left unchanged.
type UpdatePromptRequest struct {
	Name      *string               `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Type      *PromptType           `json:"type,omitempty" validate:"omitempty,oneof=photoshoot blending copy html validation"`
	Category  *string               `json:"category,omitempty" validate:"omitempty,min=1"`
	Version   *string               `json:"version,omitempty" validate:"omitempty,min=1"`
	Template  *string               `json:"template,omitempty" validate:"omitempty,min=1"`
	Variables []PromptVariable      `json:"variables,omitempty" validate:"omitempty,unique=Name,dive"`
	IsActive  *bool                 `json:"isActive,omitempty"`
	IsDefault *bool                 `json:"isDefault,omitempty"`
	Metadata  *UpdatePromptMetadata `json:"metadata,omitempty"`
}

// Empty reports whether the update would change nothing.
func (r UpdatePromptRequest) Empty() bool {
	return r.Name == nil && r.Type == nil && r.Category == nil && r.Version == nil &&
		r.Template == nil && r.Variables == nil && r.IsActive == nil && r.IsDefault == nil && r.Metadata == nil
}

func (r UpdatePromptRequest) Validate() error {
	if r.Empty() {
		return fmt.Errorf("%w: nothing to update", shared.ErrInvalidInput)
	}
	return validationError(validate.Struct(r))
}
