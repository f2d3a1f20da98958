package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Clip", "My Clip.mp4"},
		{"a/b/c", "a_b_c.mp4"},
		{"already.mp4", "already.mp4"},
		{"other.webm", "other.webm"},
		{"  padded  ", "padded.mp4"},
		{"", "video.mp4"},
		{"/", "_.mp4"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDiskStorageMoveOverwrites(t *testing.T) {
	s, err := NewDiskStorage(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	write := func(content string) string {
		t.Helper()
		tmp := filepath.Join(t.TempDir(), "part")
		if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return tmp
	}

	first, err := s.MoveIntoStable(write("old"), "Clip")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.MoveIntoStable(write("new"), "Clip")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, want last write to win", data)
	}
}

func TestDiskStorageRename(t *testing.T) {
	s, err := NewDiskStorage(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	tmp := filepath.Join(t.TempDir(), "part")
	if err := os.WriteFile(tmp, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := s.MoveIntoStable(tmp, "Before")
	if err != nil {
		t.Fatal(err)
	}

	renamed, err := s.RenameFile(path, "After")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(renamed) != "After.mp4" {
		t.Errorf("renamed to %q", renamed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("old file still present after rename")
	}
}
