package utils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
)

func TestSafeWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := utils.SafeWriteFile(path, []byte("a\n1\n")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := utils.SafeWriteFile(path, []byte("a\n2\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "a\n2\n" {
		t.Fatalf("got %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := utils.EnsureDir(nested); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "recipe.yaml"), []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	got, err := utils.FindUp(nested, "recipe.yaml")
	if err != nil {
		t.Fatalf("FindUp: %v", err)
	}
	if got != root {
		t.Fatalf("FindUp = %q, want %q", got, root)
	}
	if _, err := utils.FindUp(nested, "no-such-marker.yaml"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if string(b) != "{\n  \"n\": 1\n}" {
		t.Fatalf("got %q", b)
	}
}
