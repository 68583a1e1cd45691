package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestLoadSingleMapping(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "a.conf", "watch:\n  path: /w\n  exec: echo hi\n")

	cfg, err := Load("processNewFiles", []string{path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Watches) != 1 || cfg.Watches[0].Path != "/w" || cfg.Watches[0].Exec != "echo hi" {
		t.Fatalf("unexpected config: %+v", cfg.Watches)
	}
}

func TestLoadSequence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "a.conf", "watch:\n  - path: /w1\n  - path: /w2\n    exec: echo two\n")

	cfg, err := Load("processNewFiles", []string{path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Watches) != 2 {
		t.Fatalf("expected 2 watches, got %d", len(cfg.Watches))
	}
	if cfg.Watches[0].Path != "/w1" || cfg.Watches[1].Path != "/w2" {
		t.Fatalf("unexpected watch order/content: %+v", cfg.Watches)
	}
}

func TestLoadLaterFileOverridesEarlier(t *testing.T) {
	dir := t.TempDir()
	first := writeConfig(t, dir, "first.conf", "watch:\n  path: /w\n  exec: echo one\n")
	second := writeConfig(t, dir, "second.conf", "watch:\n  path: /w\n  exec: echo two\n")

	cfg, err := Load("processNewFiles", []string{first, second})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Watches) != 1 || cfg.Watches[0].Exec != "echo two" {
		t.Fatalf("expected the later file's exec to win, got %+v", cfg.Watches)
	}
}

func TestLoadLaterFileWithoutExecKeepsEarlierExec(t *testing.T) {
	dir := t.TempDir()
	first := writeConfig(t, dir, "first.conf", "watch:\n  path: /w\n  exec: echo one\n")
	second := writeConfig(t, dir, "second.conf", "watch:\n  path: /w\n")

	cfg, err := Load("processNewFiles", []string{first, second})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Watches) != 1 || cfg.Watches[0].Exec != "echo one" {
		t.Fatalf("expected the earlier file's exec to survive an override with no exec, got %+v", cfg.Watches)
	}
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	cfg, err := Load("processNewFiles", []string{"/nonexistent/path.conf"})
	if err != nil {
		t.Fatalf("Load should skip a missing file, got error: %v", err)
	}
	if len(cfg.Watches) != 0 {
		t.Fatalf("expected no watches from a missing file")
	}
}

func TestLoadMissingPathIsError(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "bad.conf", "watch:\n  exec: echo hi\n")

	if _, err := Load("processNewFiles", []string{path}); err == nil {
		t.Fatalf("expected an error for a watch entry missing \"path\"")
	}
}
