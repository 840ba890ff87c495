package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/shared"
	tu "github.com/desertthunder/posterctl/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := &fakeAPI{}
			clock := tu.NewFakeClock(testEpoch)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
				Clock:      clock,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.clock != clock {
				t.Error("expected clock to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("client is built lazily from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.API.BaseURL = "https://posters.example.com/api/"
			runner := NewRunner(RunnerOpts{Config: config})

			if runner.api != nil {
				t.Fatal("expected no client before first use")
			}
			if runner.client() == nil || runner.client() != runner.api {
				t.Error("expected client to be built once and kept")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("promptClient", func(t *testing.T) {
		t.Run("reuses a job client that serves prompts", func(t *testing.T) {
			svc := services.NewJobService(services.Options{BaseURL: "http://localhost:1"})
			runner := NewRunner(RunnerOpts{API: svc})
			if runner.promptClient() != services.PromptAPI(svc) {
				t.Error("expected the job client to be reused")
			}
		})

		t.Run("builds its own client otherwise", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{API: &fakeAPI{}})
			if _, ok := runner.promptClient().(*services.JobService); !ok {
				t.Errorf("expected a JobService, got %T", runner.promptClient())
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) != 5 {
			t.Errorf("expected 5 commands, got %d", len(commands))
		}

		names := []string{"create", "jobs", "prompts", "history", "setup"}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			if cmd.Name != names[i] {
				t.Errorf("expected command %q at index %d, got %q", names[i], i, cmd.Name)
			}
		}
	})

	t.Run("configure", func(t *testing.T) {
		t.Run("loads config file and env overrides", func(t *testing.T) {
			dir := t.TempDir()
			path := tu.MustWriteFile(t, dir, "config.toml", `
log_level = "warn"

[api]
base_url = "https://file.example.com/api"
timeout_ms = 1000

[tracking]
prefer_stream = false
fallback_timeout_ms = 5000
poll_interval_ms = 4000
`)
			t.Setenv(shared.EnvTimeout, "2500")

			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
			if err := newApp(runner).Run(context.Background(), []string{"posterctl", "--config", path, "setup"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if runner.config.API.BaseURL != "https://file.example.com/api" {
				t.Errorf("expected base url from file, got %s", runner.config.API.BaseURL)
			}
			if runner.config.API.TimeoutMS != 2500 {
				t.Errorf("expected env timeout override, got %d", runner.config.API.TimeoutMS)
			}
			if runner.logger.GetLevel() != log.WarnLevel {
				t.Errorf("expected warn level, got %v", runner.logger.GetLevel())
			}
		})

		t.Run("missing config file uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
			path := filepath.Join(t.TempDir(), "missing.toml")

			if err := newApp(runner).Run(context.Background(), []string{"posterctl", "-c", path, "--verbose", "setup"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if runner.config.API.BaseURL != shared.DefaultConfig().API.BaseURL {
				t.Errorf("expected default base url, got %s", runner.config.API.BaseURL)
			}
			if runner.logger.GetLevel() != log.DebugLevel {
				t.Errorf("expected debug level with --verbose, got %v", runner.logger.GetLevel())
			}
		})

		t.Run("invalid env override fails", func(t *testing.T) {
			t.Setenv(shared.EnvRetryAttempts, "lots")
			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})

			err := newApp(runner).Run(context.Background(), []string{"posterctl", "-c", filepath.Join(t.TempDir(), "none.toml"), "setup"})
			if err == nil || !strings.Contains(err.Error(), shared.EnvRetryAttempts) {
				t.Errorf("expected env error, got %v", err)
			}
		})
	})
}
