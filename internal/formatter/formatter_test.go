package formatter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
	th "github.com/desertthunder/posterctl/internal/testing"
)

func testResults() *models.JobResults {
	return &models.JobResults{
		CopyContent: &models.CopyContent{
			Headline:    models.LocalizedText{EN: "Fresh Coffee", AR: "قهوة طازجة"},
			Subheadline: models.LocalizedText{EN: "Roasted daily", AR: "محمصة يوميا"},
			CTA:         models.LocalizedText{EN: "Order now", AR: "اطلب الآن"},
		},
		Designs: []models.Design{
			{
				VariantNumber: 1,
				HTML:          "<div>one</div>",
				ImageURL:      "https://cdn.example.com/1.png",
				Dimensions:    &models.Dimensions{Width: 1080, Height: 1920},
				ValidationScore: &models.ValidationScore{
					ReadabilityIssues: []string{"Low contrast headline"},
					Suggestions:       []string{"Darken background"},
				},
			},
			{VariantNumber: 2, HTML: "<div>two</div>"},
		},
		ProcessedImages: []models.ProcessedImage{
			{Type: models.ImageUpscaled, URL: "https://cdn.example.com/up.png", Key: "up"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"JSON", FormatJSON},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRenderers(t *testing.T) {
	t.Run("ResultsToJSON", func(t *testing.T) {
		data, err := ResultsToJSON(testResults())
		if err != nil {
			t.Fatalf("ResultsToJSON failed: %v", err)
		}

		var decoded models.JobResults
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded.Designs) != 2 || decoded.CopyContent.Headline.EN != "Fresh Coffee" {
			t.Errorf("unexpected decoded results: %+v", decoded)
		}
	})

	t.Run("ResultsToMarkdown", func(t *testing.T) {
		data, err := ResultsToMarkdown("job-1", testResults())
		if err != nil {
			t.Fatalf("ResultsToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Poster job-1",
			"| Headline | Fresh Coffee | قهوة طازجة |",
			"## Designs (2)",
			"![Variant 1](https://cdn.example.com/1.png)",
			"**Size**: 1080x1920",
			"- Issue: Low contrast headline",
			"- Suggestion: Darken background",
			"- upscaled: https://cdn.example.com/up.png",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ResultsToText", func(t *testing.T) {
		data, err := ResultsToText("job-1", testResults())
		if err != nil {
			t.Fatalf("ResultsToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Job: job-1") {
			t.Errorf("Text missing job id")
		}
		if !strings.Contains(output, "Variant 1: https://cdn.example.com/1.png") {
			t.Errorf("Text missing rendered variant")
		}
		if !strings.Contains(output, "Variant 2: (not rendered)") {
			t.Errorf("Text should mark unrendered variants")
		}
	})

	t.Run("ResultsWithoutCopy", func(t *testing.T) {
		res := &models.JobResults{}
		for _, f := range []Format{FormatJSON, FormatMarkdown, FormatText} {
			if _, err := RenderResults(f, "job-1", res); err != nil {
				t.Errorf("RenderResults(%s) failed: %v", f, err)
			}
		}
	})

	jobs := []models.Job{
		{ID: "job-1", Status: models.StatusCompleted, CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), DesignCount: 3},
		{ID: "job-2", Status: models.StatusFailed, CreatedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), Error: "Upscaling failed, retry"},
	}

	t.Run("JobsToCSV", func(t *testing.T) {
		data, err := JobsToCSV(jobs)
		if err != nil {
			t.Fatalf("JobsToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Status,Created,Designs,Error") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "job-1,completed,2025-03-01T10:00:00Z,3,") {
			t.Errorf("CSV missing job-1 row, got: %s", output)
		}
		if !strings.Contains(output, `"Upscaling failed, retry"`) {
			t.Errorf("CSV should quote fields with commas, got: %s", output)
		}
	})

	t.Run("JobsToText", func(t *testing.T) {
		data, err := JobsToText(jobs, models.Pagination{CurrentPage: 1, TotalPages: 2, TotalJobs: 12})
		if err != nil {
			t.Fatalf("JobsToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "1. job-1 [completed]") || !strings.Contains(output, "(3 designs)") {
			t.Errorf("Text missing job-1, got: %s", output)
		}
		if !strings.Contains(output, "error: Upscaling failed, retry") {
			t.Errorf("Text missing error")
		}
		if !strings.Contains(output, "Page 1 of 2 (12 jobs)") {
			t.Errorf("Text missing pagination")
		}
	})

	t.Run("HistoryToText", func(t *testing.T) {
		data, err := HistoryToText(nil)
		if err != nil {
			t.Fatalf("HistoryToText failed: %v", err)
		}
		if !strings.Contains(string(data), "No jobs recorded.") {
			t.Errorf("expected empty message, got %s", data)
		}

		rec := models.RestoreJobRecord("rec-1", 4, time.Now(), time.Now(), nil)
		rec.JobID = "job-9"
		rec.Status = models.StatusCompleted
		rec.Progress = 100
		rec.Mode = "polling"

		data, err = HistoryToText([]*models.JobRecord{rec})
		if err != nil {
			t.Fatalf("HistoryToText failed: %v", err)
		}
		if !strings.Contains(string(data), "#4 job-9 [completed] 100% via polling") {
			t.Errorf("unexpected history line: %s", data)
		}
	})

	t.Run("RecordToText", func(t *testing.T) {
		rec := models.RestoreJobRecord("rec-1", 2, time.Now(), time.Now(), nil)
		rec.JobID = "job-2"
		rec.Status = models.StatusFailed
		rec.CompletedSteps = []models.ProcessingStep{models.StepTranscription, models.StepCopyGeneration}
		rec.ImagePath = "product.png"
		rec.Error = "Upscaling failed"
		designs := []*models.DesignRecord{
			models.RestoreDesignRecord("d-1", "rec-1", time.Now(), models.Design{VariantNumber: 1}),
		}

		data, err := RecordToText(rec, designs)
		if err != nil {
			t.Fatalf("RecordToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Job: job-2 (#2)",
			"Completed: Transcription, Copy Generation",
			"Image: product.png",
			"Error: Upscaling failed",
			"1. (not rendered)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}
	})
}

func TestPromptRenderers(t *testing.T) {
	prompt := models.Prompt{
		ID:        "p1",
		Name:      "Studio photoshoot",
		Type:      models.PromptPhotoshoot,
		Category:  "retail",
		Version:   "1.2.0",
		Template:  "Place {{product}} on marble",
		Variables: []models.PromptVariable{{Name: "product", Description: "product name", Required: true}},
		IsActive:  true,
		IsDefault: true,
		PerformanceMetrics: models.PromptPerformanceMetrics{
			UsageCount: 10, SuccessCount: 9, FailureCount: 1, AverageScore: 4.5,
		},
		Metadata: models.PromptMetadata{CreatedBy: "ops", Tags: []string{"studio", "marble"}},
	}

	t.Run("PromptsToText", func(t *testing.T) {
		data, err := PromptsToText(nil)
		if err != nil {
			t.Fatalf("PromptsToText failed: %v", err)
		}
		if !strings.Contains(string(data), "No prompts found.") {
			t.Errorf("expected empty message, got %s", data)
		}

		inactive := prompt
		inactive.ID, inactive.IsActive, inactive.IsDefault = "p2", false, false
		inactive.PerformanceMetrics = models.PromptPerformanceMetrics{}

		data, err = PromptsToText([]models.Prompt{prompt, inactive})
		if err != nil {
			t.Fatalf("PromptsToText failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "p1 Studio photoshoot v1.2.0 [photoshoot/retail] default used 10, 90% ok, score 4.5") {
			t.Errorf("unexpected first line:\n%s", output)
		}
		if !strings.Contains(output, "p2 Studio photoshoot v1.2.0 [photoshoot/retail] inactive\n") {
			t.Errorf("unexpected second line:\n%s", output)
		}
	})

	t.Run("PromptToText", func(t *testing.T) {
		data, err := PromptToText(&prompt)
		if err != nil {
			t.Fatalf("PromptToText failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{
			"Prompt: Studio photoshoot (p1)",
			"Active: true, Default: true",
			"Tags: studio, marble",
			"Usage: 10 (9 ok, 1 failed, 90% success), score 4.5",
			"  product (required): product name",
			"Template:\nPlace {{product}} on marble\n",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("PromptStatsToText", func(t *testing.T) {
		stats := &models.PromptStats{
			TotalPrompts:  7,
			ActivePrompts: 5,
			ByType:        map[models.PromptType]int{models.PromptCopy: 4, models.PromptPhotoshoot: 3},
			TopPerforming: []models.PromptScore{{Name: "Studio photoshoot", AverageScore: 4.5, UsageCount: 10}},
		}
		data, err := PromptStatsToText(stats)
		if err != nil {
			t.Fatalf("PromptStatsToText failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "Prompts: 7 (5 active)") {
			t.Errorf("missing totals:\n%s", output)
		}
		if strings.Index(output, "photoshoot") > strings.Index(output, "copy") {
			t.Errorf("types should follow pipeline order:\n%s", output)
		}
		if !strings.Contains(output, "1. Studio photoshoot score 4.5 over 10 uses") {
			t.Errorf("missing top performer:\n%s", output)
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		_, err := DownloadImage("")
		if err == nil {
			t.Error("DownloadImage with empty URL should return error")
		}
	})

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("png-bytes"))
		}))
		defer server.Close()

		data, err := DownloadImage(server.URL)
		if err != nil {
			t.Fatalf("DownloadImage failed: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("BadStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		if _, err := DownloadImage(server.URL); err == nil || !strings.Contains(err.Error(), "status 403") {
			t.Errorf("expected status error, got %v", err)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteDesigns", func(t *testing.T) {
		t.Run("HTMLOnly", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "designs")

			result, err := WriteDesigns(testResults().Designs, dir, false)
			if err != nil {
				t.Fatalf("WriteDesigns failed: %v", err)
			}

			if len(result.Files) != 2 {
				t.Fatalf("expected 2 files, got %v", result.Files)
			}
			th.AssertFileExists(t, filepath.Join(dir, "variant_1.html"))
			if got := th.MustReadFile(t, filepath.Join(dir, "variant_2.html")); got != "<div>two</div>" {
				t.Errorf("unexpected HTML %q", got)
			}
		})

		t.Run("WithImages", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/missing.png" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.Write([]byte("png"))
			}))
			defer server.Close()

			designs := []models.Design{
				{VariantNumber: 1, HTML: "<p>1</p>", ImageURL: server.URL + "/1.png"},
				{VariantNumber: 2, HTML: "<p>2</p>", ImageURL: server.URL + "/missing.png"},
			}
			dir := t.TempDir()

			result, err := WriteDesigns(designs, dir, true)
			if err != nil {
				t.Fatalf("WriteDesigns failed: %v", err)
			}

			th.AssertFileExists(t, filepath.Join(dir, "variant_1.png"))
			if len(result.Skipped) != 1 || !strings.Contains(result.Skipped[0], "variant_2.png") {
				t.Errorf("expected variant 2 image skipped, got %v", result.Skipped)
			}
			if len(result.Files) != 3 {
				t.Errorf("expected 3 files, got %v", result.Files)
			}
		})

		t.Run("MissingDirectory", func(t *testing.T) {
			if _, err := WriteDesigns(nil, "", false); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("WriteResults", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			path, err := WriteResults(FormatMarkdown, "job-1", testResults(), "")
			if err != nil {
				t.Fatalf("WriteResults failed: %v", err)
			}
			if path != "job-1_results.md" {
				t.Errorf("Expected 'job-1_results.md', got '%s'", path)
			}
			th.AssertFileExists(t, path)
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.json")

			got, err := WriteResults(FormatJSON, "job-1", testResults(), path)
			if err != nil {
				t.Fatalf("WriteResults failed: %v", err)
			}
			if got != path {
				t.Errorf("Expected %s, got %s", path, got)
			}
			if content := th.MustReadFile(t, path); !strings.Contains(content, `"variantNumber": 1`) {
				t.Errorf("JSON file missing designs: %s", content)
			}
		})
	})
}
