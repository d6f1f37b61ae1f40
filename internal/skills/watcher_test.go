package skills

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "research", "", "Version one.")

	catalog, err := NewCatalog([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	w, err := Watch(catalog)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// Stage the new skill elsewhere and move it in, so the watcher sees
	// it only once its SKILL.md exists.
	staging := t.TempDir()
	writeSkill(t, staging, "writing", "", "Write clearly.")
	if err := os.Rename(filepath.Join(staging, "writing"), filepath.Join(root, "writing")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if catalog.Validate("writing") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watcher did not pick up the new skill")
}

func TestWatcher_CloseStopsWatching(t *testing.T) {
	catalog, err := NewCatalog([]string{t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	w, err := Watch(catalog)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("close error: %v", err)
	}
}
