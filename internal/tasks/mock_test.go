package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/services"
	tu "github.com/desertthunder/posterctl/internal/testing"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// conn is the server side of one fake event stream.
type conn struct {
	w *io.PipeWriter
}

func (c *conn) send(t *testing.T, ev map[string]any) {
	t.Helper()
	if err := sse.Encode(c.w, sse.Event{Data: ev}); err != nil {
		t.Fatalf("failed to write event: %v", err)
	}
}

func (c *conn) sendRaw(t *testing.T, raw string) {
	t.Helper()
	if _, err := io.WriteString(c.w, raw); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
}

func (c *conn) drop() {
	c.w.CloseWithError(errors.New("connection reset by peer"))
}

type trackedBody struct {
	*io.PipeReader
	closes *atomic.Int32
}

func (b *trackedBody) Close() error {
	b.closes.Add(1)
	return b.PipeReader.Close()
}

// mockAPI is a scripted [PosterAPI].
type mockAPI struct {
	mu sync.Mutex

	jobIDs    []string
	creates   int
	createErr error
	uploads   []services.UploadRequest
	uploadErr error
	starts    int
	startErr  error

	conns    chan *conn
	opens    int
	openErrs []error
	hang     bool
	closes   atomic.Int32

	statusFn     func(n int) (*models.ProcessingStatus, error)
	statusCalls  int
	resultsFn    func(n int) (*models.JobResults, error)
	resultsCalls int
}

func newMockAPI() *mockAPI {
	return &mockAPI{conns: make(chan *conn, 8)}
}

func (m *mockAPI) CreateJob(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return "", m.createErr
	}
	if len(m.jobIDs) >= m.creates {
		return m.jobIDs[m.creates-1], nil
	}
	return "job-1", nil
}

func (m *mockAPI) UploadFiles(_ context.Context, _ string, req services.UploadRequest) (*models.UploadJobResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, req)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return &models.UploadJobResponse{Success: true}, nil
}

func (m *mockAPI) StartProcessing(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

func (m *mockAPI) OpenEventStream(ctx context.Context, _ string) (*services.EventStream, error) {
	m.mu.Lock()
	n := m.opens
	m.opens++
	hang := m.hang
	var err error
	if n < len(m.openErrs) {
		err = m.openErrs[n]
	}
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	m.conns <- &conn{w: pw}
	return services.NewEventStream(&trackedBody{PipeReader: pr, closes: &m.closes}), nil
}

func (m *mockAPI) ProcessingStatus(context.Context, string) (*models.ProcessingStatus, error) {
	m.mu.Lock()
	m.statusCalls++
	n := m.statusCalls
	fn := m.statusFn
	m.mu.Unlock()

	if fn == nil {
		return &models.ProcessingStatus{Success: true, Status: models.StatusProcessing}, nil
	}
	return fn(n)
}

func (m *mockAPI) Results(context.Context, string) (*models.JobResults, error) {
	m.mu.Lock()
	m.resultsCalls++
	n := m.resultsCalls
	fn := m.resultsFn
	m.mu.Unlock()

	if fn == nil {
		return &models.JobResults{Designs: []models.Design{}, ProcessedImages: []models.ProcessedImage{}}, nil
	}
	return fn(n)
}

func (m *mockAPI) counts() (opens, statuses, results int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.statusCalls, m.resultsCalls
}

func (m *mockAPI) nextConn(t *testing.T) *conn {
	t.Helper()
	select {
	case c := <-m.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to open")
		return nil
	}
}

// recorder collects tracker callbacks.
type recorder struct {
	mu        sync.Mutex
	updates   []JobProgressState
	completes []models.JobResults
	errors    []string
}

func (r *recorder) callbacks() TrackerCallbacks {
	return TrackerCallbacks{
		OnUpdate: func(s JobProgressState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.updates = append(r.updates, s)
		},
		OnComplete: func(res models.JobResults) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, res)
		},
		OnError: func(msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, msg)
		},
	}
}

func (r *recorder) counts() (updates, completes, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates), len(r.completes), len(r.errors)
}

func (r *recorder) errorList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recorder) updateList() []JobProgressState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JobProgressState(nil), r.updates...)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tracker to finish")
	}
}

func assertOpen(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
		t.Fatal("tracker finished unexpectedly")
	default:
	}
}

func processing(completed ...models.ProcessingStep) func(int) (*models.ProcessingStatus, error) {
	return func(int) (*models.ProcessingStatus, error) {
		return &models.ProcessingStatus{
			Success:        true,
			Status:         models.StatusProcessing,
			CompletedSteps: completed,
			Progress:       models.StepCount{Completed: len(completed), Total: models.TotalSteps},
		}, nil
	}
}

func newClock() *tu.FakeClock { return tu.NewFakeClock(testEpoch) }
