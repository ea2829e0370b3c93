package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNormalizeEmail(t *testing.T) {
	tc := []struct {
		name  string
		email string
		want  string
	}{
		{name: "already normalized", email: "dr.who@example.com", want: "dr.who@example.com"},
		{name: "surrounding whitespace", email: "  dr.who@example.com\n", want: "dr.who@example.com"},
		{name: "mixed case", email: "Dr.Who@Example.COM", want: "dr.who@example.com"},
		{name: "empty", email: "   ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmail(tt.email); got != tt.want {
				t.Errorf("NormalizeEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Errorf("expected distinct ids, got %s twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a valid uuid, got %q: %v", a, err)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"cycles": 3}

	t.Run("compact", func(t *testing.T) {
		data, err := MarshalJSON(v, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"cycles":3}` {
			t.Errorf("got %s", data)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		data, err := MarshalJSON(v, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(data), "\n  \"cycles\": 3") {
			t.Errorf("expected indented output, got %s", data)
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		if _, err := MarshalJSON(make(chan int), false); err == nil {
			t.Error("expected error for a channel")
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "segx.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("job complete", "job_id", "abc")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), "job complete") || !strings.Contains(string(data), "job_id=abc") {
		t.Errorf("unexpected log contents %q", data)
	}
}
