// package formatter renders job results and listings (JSON, CSV, Markdown, plain text) and writes design files
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// Format selects how results are rendered.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts json, markdown (or md), and text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// RenderResults renders the final output of a job in the given format
func RenderResults(f Format, jobID string, res *models.JobResults) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ResultsToJSON(res)
	case FormatMarkdown:
		return ResultsToMarkdown(jobID, res)
	default:
		return ResultsToText(jobID, res)
	}
}

// ResultsToJSON renders results as indented JSON
func ResultsToJSON(res *models.JobResults) ([]byte, error) {
	return shared.MarshalJSON(res, true)
}

// ResultsToMarkdown renders results with copy, design previews, and intermediate images
func ResultsToMarkdown(jobID string, res *models.JobResults) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Poster %s\n\n", jobID))

	if c := res.CopyContent; c != nil {
		buf.WriteString("## Copy\n\n")
		buf.WriteString("| | English | Arabic |\n|---|---|---|\n")
		buf.WriteString(fmt.Sprintf("| Headline | %s | %s |\n", c.Headline.EN, c.Headline.AR))
		buf.WriteString(fmt.Sprintf("| Subheadline | %s | %s |\n", c.Subheadline.EN, c.Subheadline.AR))
		buf.WriteString(fmt.Sprintf("| CTA | %s | %s |\n\n", c.CTA.EN, c.CTA.AR))
	}

	buf.WriteString(fmt.Sprintf("## Designs (%d)\n\n", len(res.Designs)))
	for _, d := range res.Designs {
		buf.WriteString(fmt.Sprintf("### Variant %d\n\n", d.VariantNumber))
		if d.ImageURL != "" {
			buf.WriteString(fmt.Sprintf("![Variant %d](%s)\n\n", d.VariantNumber, d.ImageURL))
		}
		if d.Dimensions != nil {
			buf.WriteString(fmt.Sprintf("**Size**: %dx%d\n\n", d.Dimensions.Width, d.Dimensions.Height))
		}
		if vs := d.ValidationScore; vs != nil {
			for _, s := range vs.ReadabilityIssues {
				buf.WriteString(fmt.Sprintf("- Issue: %s\n", s))
			}
			for _, s := range vs.Suggestions {
				buf.WriteString(fmt.Sprintf("- Suggestion: %s\n", s))
			}
			if len(vs.ReadabilityIssues)+len(vs.Suggestions) > 0 {
				buf.WriteString("\n")
			}
		}
	}

	if len(res.ProcessedImages) > 0 {
		buf.WriteString("## Processed Images\n\n")
		for _, img := range res.ProcessedImages {
			buf.WriteString(fmt.Sprintf("- %s: %s\n", img.Type, img.URL))
		}
	}

	return buf.Bytes(), nil
}

// ResultsToText renders results as plain text
func ResultsToText(jobID string, res *models.JobResults) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Job: %s\n", jobID))
	if c := res.CopyContent; c != nil {
		buf.WriteString(fmt.Sprintf("Headline: %s / %s\n", c.Headline.EN, c.Headline.AR))
		buf.WriteString(fmt.Sprintf("Subheadline: %s / %s\n", c.Subheadline.EN, c.Subheadline.AR))
		buf.WriteString(fmt.Sprintf("CTA: %s / %s\n", c.CTA.EN, c.CTA.AR))
	}
	buf.WriteString(fmt.Sprintf("Designs: %d\n\n", len(res.Designs)))

	for _, d := range res.Designs {
		url := d.ImageURL
		if url == "" {
			url = "(not rendered)"
		}
		buf.WriteString(fmt.Sprintf("Variant %d: %s\n", d.VariantNumber, url))
	}

	return buf.Bytes(), nil
}

// JobsToCSV converts a job listing to CSV with columns: ID, Status, Created, Designs, Error
func JobsToCSV(jobs []models.Job) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Status", "Created", "Designs", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, job := range jobs {
		record := []string{
			job.ID,
			string(job.Status),
			job.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(designCount(job)),
			job.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// JobsToText converts a job listing to one line per job
func JobsToText(jobs []models.Job, page models.Pagination) ([]byte, error) {
	var buf bytes.Buffer

	for i, job := range jobs {
		line := fmt.Sprintf("%d. %s [%s] %s", i+1, job.ID, job.Status, job.CreatedAt.Local().Format(time.DateTime))
		if n := designCount(job); n > 0 {
			line += fmt.Sprintf(" (%d designs)", n)
		}
		if job.Error != "" {
			line += " error: " + job.Error
		}
		buf.WriteString(line + "\n")
	}

	if page.TotalPages > 0 {
		buf.WriteString(fmt.Sprintf("\nPage %d of %d (%d jobs)\n", page.CurrentPage, page.TotalPages, page.TotalJobs))
	}

	return buf.Bytes(), nil
}

// HistoryToText lists locally recorded jobs, newest first
func HistoryToText(records []*models.JobRecord) ([]byte, error) {
	var buf bytes.Buffer

	if len(records) == 0 {
		buf.WriteString("No jobs recorded.\n")
		return buf.Bytes(), nil
	}

	for _, rec := range records {
		line := fmt.Sprintf("#%d %s [%s] %d%%", rec.Sequence(), rec.JobID, rec.Status, rec.Progress)
		if rec.Mode != "" {
			line += " via " + rec.Mode
		}
		line += " " + rec.UpdatedAt().Local().Format(time.DateTime)
		if rec.Error != "" {
			line += " error: " + rec.Error
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// RecordToText describes one history record with its stored designs
func RecordToText(rec *models.JobRecord, designs []*models.DesignRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Job: %s (#%d)\n", rec.JobID, rec.Sequence()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", rec.Status))
	buf.WriteString(fmt.Sprintf("Progress: %d%%\n", rec.Progress))
	if rec.Mode != "" {
		buf.WriteString(fmt.Sprintf("Mode: %s\n", rec.Mode))
	}
	if len(rec.CompletedSteps) > 0 {
		steps := make([]string, len(rec.CompletedSteps))
		for i, s := range rec.CompletedSteps {
			steps[i] = s.Title()
		}
		buf.WriteString(fmt.Sprintf("Completed: %s\n", strings.Join(steps, ", ")))
	}
	if rec.ImagePath != "" {
		buf.WriteString(fmt.Sprintf("Image: %s\n", rec.ImagePath))
	}
	if rec.AudioPath != "" {
		buf.WriteString(fmt.Sprintf("Audio: %s\n", rec.AudioPath))
	}
	if rec.Transcription != "" {
		buf.WriteString(fmt.Sprintf("Transcription: %s\n", rec.Transcription))
	}
	if rec.Error != "" {
		buf.WriteString(fmt.Sprintf("Error: %s\n", rec.Error))
	}

	if len(designs) > 0 {
		buf.WriteString("\nDesigns:\n")
		for _, d := range designs {
			url := d.Design.ImageURL
			if url == "" {
				url = "(not rendered)"
			}
			buf.WriteString(fmt.Sprintf("  %d. %s\n", d.Design.VariantNumber, url))
		}
	}

	return buf.Bytes(), nil
}

// PromptsToText lists prompt templates one per line
func PromptsToText(prompts []models.Prompt) ([]byte, error) {
	var buf bytes.Buffer

	if len(prompts) == 0 {
		buf.WriteString("No prompts found.\n")
		return buf.Bytes(), nil
	}

	for _, p := range prompts {
		line := fmt.Sprintf("%s %s v%s [%s/%s]", p.ID, p.Name, p.Version, p.Type, p.Category)
		if p.IsDefault {
			line += " default"
		}
		if !p.IsActive {
			line += " inactive"
		}
		if m := p.PerformanceMetrics; m.UsageCount > 0 {
			line += fmt.Sprintf(" used %d, %d%% ok, score %.1f", m.UsageCount, m.SuccessRate(), m.AverageScore)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// PromptToText describes one prompt including its template
func PromptToText(p *models.Prompt) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Prompt: %s (%s)\n", p.Name, p.ID))
	buf.WriteString(fmt.Sprintf("Type: %s\n", p.Type))
	buf.WriteString(fmt.Sprintf("Category: %s\n", p.Category))
	buf.WriteString(fmt.Sprintf("Version: %s\n", p.Version))
	buf.WriteString(fmt.Sprintf("Active: %t, Default: %t\n", p.IsActive, p.IsDefault))
	if p.Metadata.CreatedBy != "" {
		buf.WriteString(fmt.Sprintf("Created by: %s\n", p.Metadata.CreatedBy))
	}
	if p.Metadata.UpdatedBy != "" {
		buf.WriteString(fmt.Sprintf("Updated by: %s\n", p.Metadata.UpdatedBy))
	}
	if len(p.Metadata.Tags) > 0 {
		buf.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(p.Metadata.Tags, ", ")))
	}
	if p.Metadata.Notes != "" {
		buf.WriteString(fmt.Sprintf("Notes: %s\n", p.Metadata.Notes))
	}

	m := p.PerformanceMetrics
	buf.WriteString(fmt.Sprintf("Usage: %d (%d ok, %d failed, %d%% success), score %.1f\n",
		m.UsageCount, m.SuccessCount, m.FailureCount, m.SuccessRate(), m.AverageScore))
	if m.LastUsed != nil {
		buf.WriteString(fmt.Sprintf("Last used: %s\n", m.LastUsed.Local().Format(time.DateTime)))
	}

	if len(p.Variables) > 0 {
		buf.WriteString("\nVariables:\n")
		for _, v := range p.Variables {
			line := "  " + v.Name
			if v.Required {
				line += " (required)"
			}
			if v.Description != "" {
				line += ": " + v.Description
			}
			buf.WriteString(line + "\n")
		}
	}

	buf.WriteString("\nTemplate:\n")
	buf.WriteString(p.Template)
	if !strings.HasSuffix(p.Template, "\n") {
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// PromptStatsToText summarizes prompt usage by type
func PromptStatsToText(stats *models.PromptStats) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Prompts: %d (%d active)\n", stats.TotalPrompts, stats.ActivePrompts))
	for _, t := range models.PromptTypes {
		if n, ok := stats.ByType[t]; ok {
			buf.WriteString(fmt.Sprintf("  %-11s %d\n", t, n))
		}
	}

	if len(stats.TopPerforming) > 0 {
		buf.WriteString("\nTop performing:\n")
		for i, p := range stats.TopPerforming {
			buf.WriteString(fmt.Sprintf("  %d. %s score %.1f over %d uses\n", i+1, p.Name, p.AverageScore, p.UsageCount))
		}
	}

	return buf.Bytes(), nil
}

func designCount(job models.Job) int {
	if job.DesignCount > 0 {
		return job.DesignCount
	}
	return len(job.Designs)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// DesignExportResult contains information about files created by WriteDesigns
type DesignExportResult struct {
	Directory string
	Files     []string
	Skipped   []string
}

// WriteDesigns writes each design's HTML to {dir}/variant_{n}.html.
//
// When withImages is set, rendered images are downloaded to {dir}/variant_{n}.png;
// a failed download is reported in Skipped rather than aborting the export.
func WriteDesigns(designs []models.Design, outputDir string, withImages bool) (*DesignExportResult, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("%w: output directory", shared.ErrMissingArgument)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &DesignExportResult{Directory: outputDir, Files: []string{}}

	for _, d := range designs {
		base := filepath.Join(outputDir, fmt.Sprintf("variant_%d", d.VariantNumber))

		if d.HTML != "" {
			htmlFile := base + ".html"
			if err := os.WriteFile(htmlFile, []byte(d.HTML), 0644); err != nil {
				return nil, fmt.Errorf("failed to write design %d: %w", d.VariantNumber, err)
			}
			result.Files = append(result.Files, htmlFile)
		}

		if !withImages || d.ImageURL == "" {
			continue
		}

		imageFile := base + ".png"
		data, err := DownloadImage(d.ImageURL)
		if err == nil {
			err = os.WriteFile(imageFile, data, 0644)
		}
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", imageFile, err))
			continue
		}
		result.Files = append(result.Files, imageFile)
	}

	return result, nil
}

// WriteResults renders results in the given format to path.
//
// Defaults to {jobID}_results.{ext} as the filename.
func WriteResults(f Format, jobID string, res *models.JobResults, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_results.%s", jobID, f.Ext())
	}

	data, err := RenderResults(f, jobID, res)
	if err != nil {
		return "", fmt.Errorf("failed to render results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}

	return path, nil
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}
