package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/repositories"
	"github.com/desertthunder/segx/internal/services"
	"github.com/desertthunder/segx/internal/shared"
	tu "github.com/desertthunder/segx/internal/testing"
	"golang.org/x/oauth2"
)

// backend fakes the segmentation API: one upload endpoint, one status URL, a report listing and artifacts.
type backend struct {
	mu       sync.Mutex
	status   string
	uploads  int
	probes   []string
	missing  map[string]bool
	reports  []services.ReportItem
	uploadOK bool
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{status: "complete", uploadOK: true, missing: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.uploads++
		b.mu.Unlock()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !b.uploadOK {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad volumes"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"accepted","status_url":"/api/status/7/"}`))
	})
	mux.HandleFunc("GET /api/status/7/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.status
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch status {
		case "complete":
			w.Write([]byte(`{"status":"complete","result":{"static_image":"/media/results/7/seg.png","gif":"media/results/7/sweep.gif"}}`))
		case "failed":
			w.Write([]byte(`{"status":"failed","error":"inference crashed"}`))
		default:
			fmt.Fprintf(w, `{"status":%q}`, status)
		}
	})
	mux.HandleFunc("GET /api/reports/{user}/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(b.reports)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.probes = append(b.probes, r.Method+" "+r.URL.Path)
		missing := b.missing[r.URL.Path]
		b.mu.Unlock()
		if missing {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("image-bytes"))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func reportItems() []services.ReportItem {
	res := func(id int) *models.JobResult {
		return &models.JobResult{
			StaticImage: fmt.Sprintf("/media/results/%d/seg.png", id),
			GIF:         fmt.Sprintf("/media/results/%d/sweep.gif", id),
		}
	}
	return []services.ReportItem{
		{ID: 10, BatchID: "batch-a", UserID: tu.TestIdentity.ID, Status: models.StatusComplete, Results: res(10), CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		{ID: 11, BatchID: "batch-b", UserID: tu.TestIdentity.ID, Status: models.StatusFailed, CreatedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
		{ID: 12, BatchID: "batch-c", UserID: tu.TestIdentity.ID, Status: models.StatusComplete, Results: res(12), CreatedAt: time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)},
	}
}

func setupTestDB(t *testing.T) *repositories.ReportRepository {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewReportRepository(db)
}

func signedIn(t *testing.T) *services.SessionManager {
	t.Helper()
	sessions, err := services.NewSessionManager(nil, nil, shared.NewLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	if err := sessions.SignIn(tu.TestIdentity, nil, false); err != nil {
		t.Fatalf("failed to sign in: %v", err)
	}
	return sessions
}

// syncBuffer is written from the poll loop and the progress printer at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// testRunner wires a Runner to the fake backend. Browsing is recorded instead of launching a browser.
func testRunner(t *testing.T, srvURL string, sessions *services.SessionManager, reports ReportStore) (*Runner, *syncBuffer, *[]string) {
	t.Helper()
	output := &syncBuffer{}
	var browsed []string
	var mu sync.Mutex
	r := NewRunner(RunnerOpts{
		API:      services.NewAPIService(srvURL, nil),
		Sessions: sessions,
		Reports:  reports,
		Logger:   shared.NewLogger(&bytes.Buffer{}),
		Output:   output,
		Browse: func(url string) error {
			mu.Lock()
			defer mu.Unlock()
			browsed = append(browsed, url)
			return nil
		},
	})
	return r, output, &browsed
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app := newApp(r)
	return app.Run(ctx, append([]string{"segx"}, args...))
}

func slotArgs(t *testing.T) []string {
	t.Helper()
	files := tu.NIfTIFiles(t)
	var args []string
	for _, m := range models.Modalities {
		args = append(args, "--"+strings.ToLower(string(m)), files[m])
	}
	return args
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			api := services.NewAPIService("http://localhost:8000", nil)
			sessions := signedIn(t)

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				API:      api,
				Sessions: sessions,
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
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.history == nil {
				t.Error("expected history to be built from the api")
			}
			if runner.sessions != sessions {
				t.Error("expected sessions to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("without api has no history", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.history != nil {
				t.Error("expected no history without an api")
			}
			if err := runner.requireAPI(); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
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

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "upload", "status", "reports", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})
}

func TestUpload(t *testing.T) {
	t.Run("requires sign in", func(t *testing.T) {
		b, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, nil, nil)

		err := run(t, r, append([]string{"upload"}, slotArgs(t)...)...)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if b.uploads != 0 {
			t.Errorf("expected no upload, got %d", b.uploads)
		}
	})

	t.Run("missing volume fails validation without a request", func(t *testing.T) {
		b, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		args := slotArgs(t)[:6]
		err := run(t, r, append([]string{"upload"}, args...)...)
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
		if err == nil || !strings.Contains(err.Error(), "FLAIR") {
			t.Errorf("expected missing FLAIR in %v", err)
		}
		if b.uploads != 0 {
			t.Errorf("expected no upload, got %d", b.uploads)
		}
	})

	t.Run("nonexistent file is an invalid flag", func(t *testing.T) {
		_, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		err := run(t, r, "upload", "--t1", filepath.Join(t.TempDir(), "nope.nii"))
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("completes and presents normalized artifacts", func(t *testing.T) {
		b, srv := newBackend(t)
		r, output, browsed := testRunner(t, srv.URL, signedIn(t), nil)

		args := append([]string{"upload", "--open"}, slotArgs(t)...)
		if err := run(t, r, args...); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := output.String()
		for _, want := range []string{
			srv.URL + "/media/results/7/seg.png",
			srv.URL + "/media/results/7/sweep.gif",
			"Brain scan analysis complete!",
			"Necrotic core",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
		if strings.Count(out, "Brain scan analysis complete!") != 1 {
			t.Errorf("expected exactly one completion notice, got:\n%s", out)
		}
		if b.uploads != 1 {
			t.Errorf("expected 1 upload, got %d", b.uploads)
		}
		if len(*browsed) != 1 || (*browsed)[0] != srv.URL+"/media/results/7/seg.png" {
			t.Errorf("expected static image opened, got %v", *browsed)
		}
	})

	t.Run("json output of a failed job", func(t *testing.T) {
		b, srv := newBackend(t)
		b.status = "failed"
		r, output, _ := testRunner(t, srv.URL, signedIn(t), nil)

		err := run(t, r, append([]string{"upload", "--json"}, slotArgs(t)...)...)
		if !errors.Is(err, shared.ErrJobFailed) {
			t.Fatalf("expected ErrJobFailed, got %v", err)
		}

		var summary uploadSummary
		if err := json.Unmarshal(output.Bytes(), &summary); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if summary.State != "failed" {
			t.Errorf("expected failed state, got %q", summary.State)
		}
		if !strings.Contains(summary.Error, "inference crashed") {
			t.Errorf("expected server error in summary, got %q", summary.Error)
		}
	})

	t.Run("rejected upload reports the server message", func(t *testing.T) {
		b, srv := newBackend(t)
		b.uploadOK = false
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		err := run(t, r, append([]string{"upload"}, slotArgs(t)...)...)
		if !errors.Is(err, shared.ErrSubmission) {
			t.Fatalf("expected ErrSubmission, got %v", err)
		}
	})

	t.Run("unreachable artifact is a warning", func(t *testing.T) {
		b, srv := newBackend(t)
		b.missing["/media/results/7/sweep.gif"] = true
		r, output, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, append([]string{"upload"}, slotArgs(t)...)...); err != nil {
			t.Fatalf("presentation errors must not fail the job, got %v", err)
		}
		if !strings.Contains(output.String(), "⚠") || !strings.Contains(output.String(), "sweep.gif unreachable") {
			t.Errorf("expected presentation warning, got:\n%s", output.String())
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("prints running status", func(t *testing.T) {
		b, srv := newBackend(t)
		b.status = "processing"
		r, output, _ := testRunner(t, srv.URL, nil, nil)

		if err := run(t, r, "status", srv.URL+"/api/status/7/"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Status: processing") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("json normalizes result", func(t *testing.T) {
		_, srv := newBackend(t)
		r, output, _ := testRunner(t, srv.URL, nil, nil)

		if err := run(t, r, "status", "--json", "/api/status/7/"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var resp models.StatusResponse
		if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if resp.Result == nil || resp.Result.GIF != srv.URL+"/media/results/7/sweep.gif" {
			t.Errorf("expected normalized gif, got %+v", resp.Result)
		}
	})

	t.Run("failed job", func(t *testing.T) {
		b, srv := newBackend(t)
		b.status = "failed"
		r, output, _ := testRunner(t, srv.URL, nil, nil)

		err := run(t, r, "status", "/api/status/7/")
		if !errors.Is(err, shared.ErrJobFailed) {
			t.Errorf("expected ErrJobFailed, got %v", err)
		}
		if !strings.Contains(output.String(), "inference crashed") {
			t.Errorf("expected server error in output, got %q", output.String())
		}
	})

	t.Run("missing url", func(t *testing.T) {
		_, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, nil, nil)

		if err := run(t, r, "status"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		_, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, nil, nil)

		if err := run(t, r, "status", "/api/status/404/"); !errors.Is(err, shared.ErrPoll) {
			t.Errorf("expected ErrPoll, got %v", err)
		}
	})
}

func TestReports(t *testing.T) {
	t.Run("list fetches, numbers, and caches", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		cache := setupTestDB(t)
		r, output, _ := testRunner(t, srv.URL, signedIn(t), cache)

		if err := run(t, r, "reports", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "Reports (2)") {
			t.Errorf("expected two completed reports, got:\n%s", out)
		}
		if strings.Index(out, "batch-c") > strings.Index(out, "batch-a") {
			t.Errorf("expected newest first, got:\n%s", out)
		}
		if strings.Contains(out, "batch-b") {
			t.Errorf("failed uploads must be filtered, got:\n%s", out)
		}

		cached, err := cache.ListByUser(tu.TestIdentity.ID)
		if err != nil {
			t.Fatalf("failed to read cache: %v", err)
		}
		if len(cached) != 2 {
			t.Errorf("expected 2 cached reports, got %d", len(cached))
		}
	})

	t.Run("list cached as json", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		cache := setupTestDB(t)
		r, output, _ := testRunner(t, srv.URL, signedIn(t), cache)

		if err := run(t, r, "reports", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		b.reports = nil
		output.Reset()

		if err := run(t, r, "reports", "list", "--cached", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var reports []models.Report
		if err := json.Unmarshal(output.Bytes(), &reports); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(reports) != 2 || reports[0].Number != 2 || reports[0].RemoteID != 12 {
			t.Errorf("unexpected cached reports %+v", reports)
		}
		if reports[0].Result.StaticImage != srv.URL+"/media/results/12/seg.png" {
			t.Errorf("expected normalized path, got %q", reports[0].Result.StaticImage)
		}
	})

	t.Run("view shows a report without a completion notice", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		r, output, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "reports", "view", "#1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "Report #1") || !strings.Contains(out, "/media/results/10/seg.png") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if strings.Contains(out, "Brain scan analysis complete!") {
			t.Errorf("history view must not show the completion notice:\n%s", out)
		}

		b.mu.Lock()
		probes := len(b.probes)
		b.mu.Unlock()
		if probes != 2 {
			t.Errorf("expected both artifacts probed, got %d", probes)
		}
	})

	t.Run("view unknown report", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "reports", "view", "#9"); !errors.Is(err, shared.ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
	})

	t.Run("view by remote id", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		r, output, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "reports", "view", "12"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out := output.String(); !strings.Contains(out, "Report #2") || !strings.Contains(out, "/media/results/12/seg.png") {
			t.Errorf("expected report with remote id 12, got:\n%s", out)
		}

		if err := run(t, r, "reports", "view", "2"); !errors.Is(err, shared.ErrReportNotFound) {
			t.Errorf("bare 2 is a remote id, expected ErrReportNotFound, got %v", err)
		}
	})

	t.Run("export selected reports as json", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		r, output, _ := testRunner(t, srv.URL, signedIn(t), nil)
		dir := t.TempDir()

		if err := run(t, r, "reports", "export", "--format", "json", "--ids", "#2", "--output", dir); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "report-2.json"))
		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		if !strings.Contains(output.String(), "Successful: 1") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("export markdown with downloads", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)
		dir := t.TempDir()

		if err := run(t, r, "reports", "export", "--download", "--ids", "10", "--output", dir); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertDirExists(t, filepath.Join(dir, "report-1"))
		readme := tu.MustReadFile(t, filepath.Join(dir, "report-1", "README.md"))
		if !strings.Contains(readme, "Peritumoral edema") {
			t.Errorf("expected legend in README, got:\n%s", readme)
		}
	})

	t.Run("export rejects pdf", func(t *testing.T) {
		_, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "reports", "export", "--format", "pdf"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("clear removes cached reports", func(t *testing.T) {
		b, srv := newBackend(t)
		b.reports = reportItems()
		cache := setupTestDB(t)
		r, output, _ := testRunner(t, srv.URL, signedIn(t), cache)

		if err := run(t, r, "reports", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := run(t, r, "reports", "clear"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Removed 2 cached reports") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("clear without cache", func(t *testing.T) {
		_, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "reports", "clear"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

// fakeIdentity accepts one code and returns [tu.TestIdentity].
type fakeIdentity struct {
	code string
}

func (f *fakeIdentity) AuthURL(state string) string { return state }

func (f *fakeIdentity) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code != f.code {
		return nil, fmt.Errorf("%w: bad code", shared.ErrAuthFailed)
	}
	return &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeIdentity) UserInfo(ctx context.Context, token *oauth2.Token) (models.Identity, error) {
	return tu.TestIdentity, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAuth(t *testing.T) {
	t.Run("login completes the callback flow", func(t *testing.T) {
		_, srv := newBackend(t)
		sessions, err := services.NewSessionManager(nil, nil, shared.NewLogger(&bytes.Buffer{}))
		if err != nil {
			t.Fatal(err)
		}

		port := freePort(t)
		config := shared.DefaultConfig()
		config.Server.Host = "127.0.0.1"
		config.Server.Port = port
		config.Auth.RedirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", port)

		output := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{
			Config:   config,
			API:      services.NewAPIService(srv.URL, nil),
			Identity: &fakeIdentity{code: "good"},
			Sessions: sessions,
			Logger:   shared.NewLogger(&bytes.Buffer{}),
			Output:   output,
			Browse: func(state string) error {
				go func() {
					resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?state=%s&code=good", port, state))
					if err == nil {
						resp.Body.Close()
					}
				}()
				return nil
			},
		})

		if err := run(t, r, "auth", "login"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		id, ok := sessions.Current()
		if !ok || id != tu.TestIdentity {
			t.Errorf("expected signed in identity, got %+v, %v", id, ok)
		}
		if !strings.Contains(output.String(), "Signed in as "+tu.TestIdentity.Email) {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("login without identity provider", func(t *testing.T) {
		_, srv := newBackend(t)
		r, _, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "auth", "login"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("status shows identity and backend", func(t *testing.T) {
		_, srv := newBackend(t)
		r, output, _ := testRunner(t, srv.URL, signedIn(t), nil)

		if err := run(t, r, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := output.String()
		if !strings.Contains(out, tu.TestIdentity.Email) || !strings.Contains(out, "Backend: ✓") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("status with unreachable backend", func(t *testing.T) {
		_, srv := newBackend(t)
		url := srv.URL
		srv.Close()
		r, output, _ := testRunner(t, url, nil, nil)

		if err := run(t, r, "auth", "status"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if !strings.Contains(output.String(), "unreachable") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("logout clears the session", func(t *testing.T) {
		_, srv := newBackend(t)
		sessions := signedIn(t)
		r, output, _ := testRunner(t, srv.URL, sessions, nil)

		if err := run(t, r, "auth", "logout"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := sessions.Current(); ok {
			t.Error("expected no current identity after logout")
		}
		if !strings.Contains(output.String(), "Signed out") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("emails lists remembered addresses", func(t *testing.T) {
		_, srv := newBackend(t)
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatal(err)
		}
		db.SetMaxOpenConns(1)
		defer db.Close()
		if err := shared.RunMigrations(db); err != nil {
			t.Fatal(err)
		}

		sessions, err := services.NewSessionManager(
			repositories.NewSessionRepository(db),
			repositories.NewRememberedEmailRepository(db),
			shared.NewLogger(&bytes.Buffer{}),
		)
		if err != nil {
			t.Fatal(err)
		}
		if err := sessions.SignIn(tu.TestIdentity, nil, true); err != nil {
			t.Fatal(err)
		}

		r, output, _ := testRunner(t, srv.URL, sessions, nil)
		if err := run(t, r, "auth", "emails"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), tu.TestIdentity.Email) {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "segx.db")

	if err := shared.CreateConfigFile(configPath); err != nil {
		t.Fatal(err)
	}
	content := tu.MustReadFile(t, configPath)
	content = strings.Replace(content, `path = "./segx.db"`, fmt.Sprintf("path = %q", dbPath), 1)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: &bytes.Buffer{}})

	if err := run(t, r, "setup", "database", "--config", configPath); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	tu.AssertFileExists(t, dbPath)

	if err := run(t, r, "setup", "rollback", "--config", configPath); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := run(t, r, "setup", "config", "--config", configPath); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestPresenter(t *testing.T) {
	t.Run("probes and opens", func(t *testing.T) {
		b, srv := newBackend(t)
		r, _, browsed := testRunner(t, srv.URL, nil, nil)
		out := &bytes.Buffer{}

		p := r.presenter(out, true)
		result := models.JobResult{StaticImage: srv.URL + "/media/a.png", GIF: srv.URL + "/media/a.gif"}
		if err := p.Present(context.Background(), result, true); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(out.String(), "New segmentation") {
			t.Errorf("unexpected output %q", out.String())
		}
		if len(b.probes) != 2 || !strings.HasPrefix(b.probes[0], "HEAD ") {
			t.Errorf("expected two HEAD probes, got %v", b.probes)
		}
		if len(*browsed) != 1 {
			t.Errorf("expected one browser open, got %v", *browsed)
		}
	})

	t.Run("reports unreachable artifacts", func(t *testing.T) {
		b, srv := newBackend(t)
		b.missing["/media/a.png"] = true
		r, _, _ := testRunner(t, srv.URL, nil, nil)

		p := r.presenter(nil, false)
		err := p.Present(context.Background(), models.JobResult{StaticImage: srv.URL + "/media/a.png", GIF: srv.URL + "/media/a.gif"}, false)
		if err == nil || !strings.Contains(err.Error(), "a.png unreachable") {
			t.Errorf("expected unreachable error, got %v", err)
		}
	})

	t.Run("legend lists every class", func(t *testing.T) {
		text := legendText()
		for _, want := range []string{"Background", "Necrotic core", "Peritumoral edema", "GD-enhancing tumor"} {
			if !strings.Contains(text, want) {
				t.Errorf("legend missing %q", want)
			}
		}
	})
}
