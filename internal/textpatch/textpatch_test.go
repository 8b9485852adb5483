package textpatch

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var pmakeRe = regexp.MustCompile(`^PMAKE\s*=.*$`)

func TestTransform(t *testing.T) {
	text := "SHELL = /bin/sh\nPMAKE = $(SMAKE)\nall: dirs\n"
	out, n := Transform(text, pmakeRe, "PMAKE\t= $(SMAKE) -j 4")
	if n != 1 {
		t.Fatalf("Transform changed %d lines, want 1", n)
	}
	if !strings.Contains(out, "PMAKE\t= $(SMAKE) -j 4") {
		t.Errorf("Transform output missing replacement:\n%s", out)
	}
	if !strings.Contains(out, "SHELL = /bin/sh") || !strings.Contains(out, "all: dirs") {
		t.Errorf("Transform disturbed unrelated lines:\n%s", out)
	}
}

func TestTransformIdempotent(t *testing.T) {
	text := "PMAKE = $(SMAKE)\n"
	once, n1 := Transform(text, pmakeRe, "PMAKE\t= $(SMAKE) -j 4")
	if n1 != 1 {
		t.Fatalf("first Transform changed %d lines, want 1", n1)
	}
	twice, n2 := Transform(once, pmakeRe, "PMAKE\t= $(SMAKE) -j 4")
	if twice != once {
		t.Errorf("Transform not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
	if n2 != 0 {
		t.Errorf("second Transform reported %d changed lines, want 0", n2)
	}
}

func TestTransformCaptureGroup(t *testing.T) {
	re := regexp.MustCompile(`^(dir_last\s*=\$\{dir_base\})/.*$`)
	text := "dir_last=${dir_base}/LAST-old\necho hi\n"
	out, n := Transform(text, re, "${1}/LAST-new")
	if n != 1 {
		t.Fatalf("Transform changed %d lines, want 1", n)
	}
	if !strings.Contains(out, "dir_last=${dir_base}/LAST-new") {
		t.Errorf("capture-group replacement wrong:\n%s", out)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	orig := "PMAKE = $(SMAKE)\nall:\n"
	if err := os.WriteFile(path, []byte(orig), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := File(path, pmakeRe, "PMAKE\t= $(SMAKE) -j 2", ".orig")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if n != 1 {
		t.Errorf("File changed %d lines, want 1", n)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "-j 2") {
		t.Errorf("patched file missing replacement:\n%s", got)
	}

	backup, err := os.ReadFile(path + ".orig")
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if string(backup) != orig {
		t.Errorf("backup = %q, want original %q", backup, orig)
	}
}

func TestFileNoMatchLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	if err := os.WriteFile(path, []byte("all:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := File(path, pmakeRe, "PMAKE\t= x", ".orig")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if n != 0 {
		t.Errorf("File changed %d lines, want 0", n)
	}
	if _, err := os.Stat(path + ".orig"); !os.IsNotExist(err) {
		t.Error("backup written although nothing changed")
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope"), pmakeRe, "x", ".orig"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
