package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Modality is one of the four fixed MRI sequence roles a submission must fill.
type Modality string

const (
	T1    Modality = "T1"
	T1c   Modality = "T1c"
	T2    Modality = "T2"
	FLAIR Modality = "FLAIR"
)

// Modalities lists the slots in upload order. The backend pairs files with roles by position.
var Modalities = [4]Modality{T1, T1c, T2, FLAIR}

// Label returns the human-readable sequence name.
func (m Modality) Label() string {
	switch m {
	case T1:
		return "Native T1"
	case T1c:
		return "T1 Gd Weighted"
	case T2:
		return "T2 Weighted"
	case FLAIR:
		return "T2 FLAIR"
	default:
		return string(m)
	}
}

func (m Modality) index() int {
	for i, mod := range Modalities {
		if mod == m {
			return i
		}
	}
	return -1
}

// ParseModality matches s case-insensitively against the known roles.
func ParseModality(s string) (Modality, error) {
	for _, m := range Modalities {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown modality %q", s)
}

// NIfTI extensions accepted by the backend. Matching is case-sensitive.
var niftiExtensions = []string{".nii", ".nii.gz"}

// HasNIfTIExtension reports whether name ends in .nii or .nii.gz.
func HasNIfTIExtension(name string) bool {
	for _, ext := range niftiExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// FileRef is a reference to one selected volume. Contents are only read when the upload streams them.
type FileRef struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// NewFileRef references the file at path after checking that it exists and is a regular file.
func NewFileRef(path string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileRef{}, fmt.Errorf("%s is a directory", path)
	}

	return FileRef{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewMemoryFileRef wraps in-memory content, mostly for tests and piped input.
func NewMemoryFileRef(name string, data []byte) FileRef {
	return FileRef{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Open returns a fresh reader over the file contents.
func (f FileRef) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %q has no content source", f.Name)
	}
	return f.open()
}

// IsZero reports whether the reference is empty.
func (f FileRef) IsZero() bool {
	return f.Name == "" && f.open == nil
}

// FileSlots holds at most one file per [Modality].
type FileSlots struct {
	files [4]FileRef
}

// Set places ref in the slot for m, replacing any previous file.
func (s *FileSlots) Set(m Modality, ref FileRef) error {
	i := m.index()
	if i < 0 {
		return fmt.Errorf("unknown modality %q", m)
	}
	s.files[i] = ref
	return nil
}

// Get returns the file in the slot for m and whether the slot is filled.
func (s *FileSlots) Get(m Modality) (FileRef, bool) {
	i := m.index()
	if i < 0 || s.files[i].IsZero() {
		return FileRef{}, false
	}
	return s.files[i], true
}

// Clear empties the slot for m.
func (s *FileSlots) Clear(m Modality) {
	if i := m.index(); i >= 0 {
		s.files[i] = FileRef{}
	}
}

// Missing lists the empty slots in upload order.
func (s *FileSlots) Missing() []Modality {
	var missing []Modality
	for i, m := range Modalities {
		if s.files[i].IsZero() {
			missing = append(missing, m)
		}
	}
	return missing
}

// Complete reports whether all four slots are filled.
func (s *FileSlots) Complete() bool {
	return len(s.Missing()) == 0
}

// Files returns the filled slots in upload order.
func (s *FileSlots) Files() []FileRef {
	files := make([]FileRef, 0, len(s.files))
	for _, f := range s.files {
		if !f.IsZero() {
			files = append(files, f)
		}
	}
	return files
}
