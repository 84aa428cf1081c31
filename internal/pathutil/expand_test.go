package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpand_HomeShortcut(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("user home dir: %v", err)
	}

	got, err := Expand("~/.renga/transcripts")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}

	want := filepath.Join(home, ".renga", "transcripts")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestExpand_EnvVar(t *testing.T) {
	t.Setenv("RENGA_PATH_TEST", "/tmp/renga-path")

	got, err := Expand("$RENGA_PATH_TEST/transcripts")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}

	want := filepath.Clean("/tmp/renga-path/transcripts")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestExpand_Empty(t *testing.T) {
	got, err := Expand("   ")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
