package crashdump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteProducesReadableReport(t *testing.T) {
	dir := t.TempDir()
	path, err := write(dir, "boom", []byte("goroutine 1 [running]:\nmain.main()\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("report written to %q, want under %q", path, dir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "panic: boom") {
		t.Errorf("report missing panic value, got:\n%s", data)
	}
	if !strings.Contains(string(data), "goroutine 1 [running]:") {
		t.Errorf("report missing stack trace, got:\n%s", data)
	}
}

func TestWriteCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "crashes")
	if _, err := write(dir, "boom", []byte("stack")); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestRecoverReportsThenRepanics(t *testing.T) {
	dir := t.TempDir()

	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected Recover to re-panic with the original value")
			}
			if r != "kaboom" {
				t.Errorf("re-panicked with %v, want %q", r, "kaboom")
			}
		}()
		defer Recover(dir)
		panic("kaboom")
	}()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 crash report", len(entries))
	}
}

func TestRecoverIsNoOpWithoutPanic(t *testing.T) {
	dir := t.TempDir()
	func() {
		defer Recover(dir)
	}()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no crash report when nothing panicked, found %d", len(entries))
	}
}
