package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/shared"
	tu "github.com/desertthunder/posterctl/internal/testing"
)

// promptServer records the requests it receives and answers from canned prompts.
type promptServer struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
	prompts  map[string]models.Prompt
}

func (s *promptServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		var body map[string]any
		json.Unmarshal(data, &body)
		s.bodies = append(s.bodies, body)
	}

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/prompts")
	id := strings.TrimPrefix(path, "/")
	switch {
	case path == "" && r.Method == http.MethodGet:
		list := []models.Prompt{}
		for _, p := range s.prompts {
			list = append(list, p)
		}
		reply(http.StatusOK, models.PromptListResponse{Success: true, Prompts: list})
	case path == "" && r.Method == http.MethodPost:
		p := models.Prompt{ID: "p-new", Name: s.bodies[len(s.bodies)-1]["name"].(string)}
		reply(http.StatusCreated, models.PromptResponse{Success: true, Prompt: p})
	case path == "/stats":
		reply(http.StatusOK, models.PromptStatsResponse{Success: true, Stats: models.PromptStats{
			TotalPrompts: len(s.prompts), ActivePrompts: 1, ByType: map[models.PromptType]int{models.PromptCopy: 1},
		}})
	default:
		p, ok := s.prompts[id]
		if !ok {
			reply(http.StatusNotFound, models.ErrorResponse{Error: "Prompt not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			reply(http.StatusOK, models.PromptResponse{Success: true, Prompt: p})
		case http.MethodPut:
			p.IsActive = false
			reply(http.StatusOK, models.PromptResponse{Success: true, Prompt: p})
		case http.MethodDelete:
			delete(s.prompts, id)
			reply(http.StatusOK, models.MessageResponse{Success: true, Message: "Prompt deleted successfully"})
		}
	}
}

func (s *promptServer) last() (string, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var body map[string]any
	if len(s.bodies) > 0 {
		body = s.bodies[len(s.bodies)-1]
	}
	return s.requests[len(s.requests)-1], body
}

func newPromptHarness(t *testing.T) (*harness, *promptServer) {
	t.Helper()
	t.Setenv("POSTER_AUTHOR", "tester")

	ps := &promptServer{prompts: map[string]models.Prompt{
		"p1": {
			ID: "p1", Name: "Copy EN", Type: models.PromptCopy, Category: "retail", Version: "1.0.0",
			Template: "Write a headline", IsActive: true,
			Metadata: models.PromptMetadata{CreatedBy: "ops", Tags: []string{}},
		},
	}}
	server := httptest.NewServer(ps)
	t.Cleanup(server.Close)

	h := newHarness(t)
	h.runner.prompts = services.NewJobService(services.Options{
		BaseURL: server.URL + "/api", Timeout: 5 * time.Second, RetryDelay: time.Millisecond,
	})
	return h, ps
}

func TestPrompts(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		if err := h.run(t, "prompts", "list", "--type", "copy", "--active"); err != nil {
			t.Fatalf("prompts list failed: %v", err)
		}
		if req, _ := ps.last(); req != "GET /api/prompts?isActive=true&type=copy" {
			t.Errorf("unexpected request %q", req)
		}
		if !strings.Contains(h.out.String(), "p1 Copy EN v1.0.0 [copy/retail]") {
			t.Errorf("unexpected output: %s", h.out.String())
		}
	})

	t.Run("list json", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		if err := h.run(t, "prompts", "list", "--json"); err != nil {
			t.Fatalf("prompts list failed: %v", err)
		}
		var prompts []models.Prompt
		if err := json.Unmarshal(h.out.Bytes(), &prompts); err != nil || len(prompts) != 1 {
			t.Errorf("expected one prompt as JSON, got %v: %s", err, h.out.String())
		}
	})

	t.Run("list rejects unknown type", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		if err := h.run(t, "prompts", "list", "--type", "poetry"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("show", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		if err := h.run(t, "prompts", "show", "p1"); err != nil {
			t.Fatalf("prompts show failed: %v", err)
		}
		output := h.out.String()
		if !strings.Contains(output, "Prompt: Copy EN (p1)") || !strings.Contains(output, "Write a headline") {
			t.Errorf("unexpected output: %s", output)
		}
	})

	t.Run("show unknown", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		err := h.run(t, "prompts", "show", "missing")
		if apiErr, ok := services.AsAPIError(err); !ok || apiErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected a 404, got %v", err)
		}
	})

	t.Run("show requires id", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		if err := h.run(t, "prompts", "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		if err := h.run(t, "prompts", "stats"); err != nil {
			t.Fatalf("prompts stats failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "Prompts: 1 (1 active)") {
			t.Errorf("unexpected output: %s", h.out.String())
		}
	})

	t.Run("create from flags", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		tmpl := tu.MustWriteFile(t, t.TempDir(), "html.txt", "<div>{{headline}}</div>")

		err := h.run(t, "prompts", "create",
			"--name", "Poster HTML", "--type", "html", "--category", "retail",
			"--template-file", tmpl, "--tag", "html", "--tag", "v2")
		if err != nil {
			t.Fatalf("prompts create failed: %v", err)
		}

		req, body := ps.last()
		if req != "POST /api/prompts" {
			t.Errorf("unexpected request %q", req)
		}
		if body["template"] != "<div>{{headline}}</div>" || body["version"] != "1.0.0" || body["isActive"] != true {
			t.Errorf("unexpected body %v", body)
		}
		meta := body["metadata"].(map[string]any)
		if meta["createdBy"] != "tester" || len(meta["tags"].([]any)) != 2 {
			t.Errorf("unexpected metadata %v", meta)
		}
		if !strings.Contains(h.out.String(), "✓ Created prompt Poster HTML (p-new)") {
			t.Errorf("unexpected output: %s", h.out.String())
		}
	})

	t.Run("create from file with override", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		dir := t.TempDir()
		tu.MustWriteFile(t, dir, "copy.txt", "Write copy for {{product}}")
		def := tu.MustWriteFile(t, dir, "prompt.toml", `
name = "Copy AR"
type = "copy"
category = "retail"
template_file = "copy.txt"

[[variables]]
name = "product"
required = true

[metadata]
created_by = "ops"
`)

		if err := h.run(t, "prompts", "create", "--file", def, "--active=false"); err != nil {
			t.Fatalf("prompts create failed: %v", err)
		}

		_, body := ps.last()
		if body["name"] != "Copy AR" || body["template"] != "Write copy for {{product}}" || body["isActive"] != false {
			t.Errorf("unexpected body %v", body)
		}
		if vars := body["variables"].([]any); len(vars) != 1 {
			t.Errorf("expected one variable, got %v", vars)
		}
		if meta := body["metadata"].(map[string]any); meta["createdBy"] != "ops" {
			t.Errorf("file author should win, got %v", meta)
		}
	})

	t.Run("create rejects incomplete prompt", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		if err := h.run(t, "prompts", "create", "--name", "x", "--type", "copy"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if len(ps.requests) != 0 {
			t.Errorf("expected no requests, got %v", ps.requests)
		}
	})

	t.Run("create rejects both template sources", func(t *testing.T) {
		h, _ := newPromptHarness(t)
		err := h.run(t, "prompts", "create", "--template", "a", "--template-file", "b.txt")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		if err := h.run(t, "prompts", "update", "p1", "--active=false", "--notes", "retired"); err != nil {
			t.Fatalf("prompts update failed: %v", err)
		}

		req, body := ps.last()
		if req != "PUT /api/prompts/p1" {
			t.Errorf("unexpected request %q", req)
		}
		if len(body) != 2 || body["isActive"] != false {
			t.Errorf("expected isActive and metadata only, got %v", body)
		}
		meta := body["metadata"].(map[string]any)
		if meta["notes"] != "retired" || meta["updatedBy"] != "tester" {
			t.Errorf("unexpected metadata %v", meta)
		}
		if !strings.Contains(h.out.String(), "✓ Updated prompt Copy EN (p1)") {
			t.Errorf("unexpected output: %s", h.out.String())
		}
	})

	t.Run("update needs a field", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		if err := h.run(t, "prompts", "update", "p1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if len(ps.requests) != 0 {
			t.Errorf("expected no requests, got %v", ps.requests)
		}
	})

	t.Run("delete", func(t *testing.T) {
		h, ps := newPromptHarness(t)
		if err := h.run(t, "prompts", "delete", "p1"); err != nil {
			t.Fatalf("prompts delete failed: %v", err)
		}
		if req, _ := ps.last(); req != "DELETE /api/prompts/p1" {
			t.Errorf("unexpected request %q", req)
		}
		if !strings.Contains(h.out.String(), "✓ Prompt deleted successfully: p1") {
			t.Errorf("unexpected output: %s", h.out.String())
		}
		if _, ok := ps.prompts["p1"]; ok {
			t.Error("expected the prompt to be removed")
		}
	})
}
