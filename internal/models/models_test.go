package models

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHasNIfTIExtension(t *testing.T) {
	tt := []struct {
		name string
		want bool
	}{
		{name: "Img1_Native_T1.nii", want: true},
		{name: "scan.nii.gz", want: true},
		{name: "scan.NII", want: false},
		{name: "scan.nii.GZ", want: false},
		{name: "scan.gz", want: false},
		{name: "scan.nii.zip", want: false},
		{name: "scan.dcm", want: false},
		{name: "nii", want: false},
		{name: "", want: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasNIfTIExtension(tc.name); got != tc.want {
				t.Errorf("HasNIfTIExtension(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestFileSlots(t *testing.T) {
	t.Run("Empty Slots Report All Missing", func(t *testing.T) {
		var slots FileSlots
		if slots.Complete() {
			t.Error("empty slots should not be complete")
		}
		if got := len(slots.Missing()); got != 4 {
			t.Errorf("expected 4 missing slots, got %d", got)
		}
	})

	t.Run("Set Replaces Previous File", func(t *testing.T) {
		var slots FileSlots
		if err := slots.Set(T1, NewMemoryFileRef("first.nii", []byte("a"))); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := slots.Set(T1, NewMemoryFileRef("second.nii", []byte("b"))); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, ok := slots.Get(T1)
		if !ok {
			t.Fatal("expected T1 slot to be filled")
		}
		if got.Name != "second.nii" {
			t.Errorf("expected second.nii, got %s", got.Name)
		}
		if n := len(slots.Files()); n != 1 {
			t.Errorf("expected 1 file, got %d", n)
		}
	})

	t.Run("Complete In Upload Order", func(t *testing.T) {
		var slots FileSlots
		for _, m := range []Modality{FLAIR, T2, T1c, T1} {
			if err := slots.Set(m, NewMemoryFileRef(string(m)+".nii", nil)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
		}

		if !slots.Complete() {
			t.Fatal("expected slots to be complete")
		}
		files := slots.Files()
		for i, m := range Modalities {
			if files[i].Name != string(m)+".nii" {
				t.Errorf("file %d: expected %s.nii, got %s", i, m, files[i].Name)
			}
		}
	})

	t.Run("Clear", func(t *testing.T) {
		var slots FileSlots
		_ = slots.Set(T2, NewMemoryFileRef("t2.nii", nil))
		slots.Clear(T2)
		if _, ok := slots.Get(T2); ok {
			t.Error("expected T2 slot to be empty after Clear")
		}
	})

	t.Run("Unknown Modality", func(t *testing.T) {
		var slots FileSlots
		if err := slots.Set(Modality("PD"), NewMemoryFileRef("pd.nii", nil)); err == nil {
			t.Error("expected error for unknown modality")
		}
	})
}

func TestParseModality(t *testing.T) {
	if m, err := ParseModality("flair"); err != nil || m != FLAIR {
		t.Errorf("ParseModality(flair) = %v, %v", m, err)
	}
	if m, err := ParseModality("t1C"); err != nil || m != T1c {
		t.Errorf("ParseModality(t1C) = %v, %v", m, err)
	}
	if _, err := ParseModality("pd"); err == nil {
		t.Error("expected error for unknown modality")
	}
}

func TestFileRef(t *testing.T) {
	t.Run("NewFileRef Reads From Disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "t1.nii.gz")
		if err := os.WriteFile(path, []byte("volume"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		ref, err := NewFileRef(path)
		if err != nil {
			t.Fatalf("NewFileRef() error = %v", err)
		}
		if ref.Name != "t1.nii.gz" || ref.Size != 6 {
			t.Errorf("unexpected ref %+v", ref)
		}

		rc, err := ref.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "volume" {
			t.Errorf("expected contents 'volume', got %q", data)
		}
	})

	t.Run("NewFileRef Rejects Directory", func(t *testing.T) {
		if _, err := NewFileRef(t.TempDir()); err == nil {
			t.Error("expected error for directory")
		}
	})

	t.Run("Zero Ref Cannot Open", func(t *testing.T) {
		var ref FileRef
		if !ref.IsZero() {
			t.Error("expected zero ref")
		}
		if _, err := ref.Open(); err == nil {
			t.Error("expected error opening zero ref")
		}
	})
}

func TestProcessingEstimate(t *testing.T) {
	e := ProcessingEstimate{Phases: [5]int{100, 50, 0, 0, 0}}
	if got := e.Aggregate(); got != 30 {
		t.Errorf("expected aggregate 30, got %d", got)
	}
	if got := e.Current(); got != PhaseModelLoad {
		t.Errorf("expected current phase model_load, got %s", got)
	}

	done := ProcessingEstimate{Phases: [5]int{100, 100, 100, 100, 100}}
	if done.Aggregate() != 100 || done.Current() != PhaseVisualization {
		t.Errorf("unexpected finished estimate %d %s", done.Aggregate(), done.Current())
	}
}

func TestReportValidate(t *testing.T) {
	valid := Report{
		UserID: "uid-1",
		Status: StatusComplete,
		Result: JobResult{StaticImage: "/media/a.png", GIF: "/media/a.gif"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid report, got %v", err)
	}

	missingUser := valid
	missingUser.UserID = ""
	if err := missingUser.Validate(); err == nil {
		t.Error("expected error for missing user")
	}

	pending := valid
	pending.Status = StatusProcessing
	if err := pending.Validate(); err == nil {
		t.Error("expected error for non-complete status")
	}

	noArtifacts := valid
	noArtifacts.Result = JobResult{}
	if err := noArtifacts.Validate(); err == nil {
		t.Error("expected error for missing artifacts")
	}
}
