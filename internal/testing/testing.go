// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/segx/internal/models"
)

// NIfTIFiles writes one small .nii.gz file per modality under a temp dir and returns their paths.
func NIfTIFiles(t *testing.T) map[models.Modality]string {
	t.Helper()
	dir := t.TempDir()

	paths := make(map[models.Modality]string, len(models.Modalities))
	for _, m := range models.Modalities {
		path := filepath.Join(dir, fmt.Sprintf("case_%s.nii.gz", m))
		if err := os.WriteFile(path, []byte("nifti-"+string(m)), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
		paths[m] = path
	}
	return paths
}

// NIfTISlots fills every slot from [NIfTIFiles].
func NIfTISlots(t *testing.T) models.FileSlots {
	t.Helper()

	var slots models.FileSlots
	for m, path := range NIfTIFiles(t) {
		ref, err := models.NewFileRef(path)
		if err != nil {
			t.Fatalf("Failed to open %s: %v", path, err)
		}
		if err := slots.Set(m, ref); err != nil {
			t.Fatalf("Failed to fill %s slot: %v", m, err)
		}
	}
	return slots
}

// TestIdentity is a signed-in user for tests that need an owner.
var TestIdentity = models.Identity{ID: "user-1", Email: "dr.who@example.com", DisplayName: "Dr Who"}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}
