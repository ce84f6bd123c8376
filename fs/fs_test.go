package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAtIsPositionalAndOffsetFree(t *testing.T) {
	path := writeTemp(t, "hello, world")
	f, err := Open(path, true, false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf := make([]byte, 5)
	if _, err := f.ReadAt(buf, 7); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "world" {
		t.Fatalf("ReadAt(7) = %q, want %q", buf, "world")
	}

	// A second read at offset 0 must see the same bytes: no side-effectful
	// seek cursor was advanced by the read at offset 7.
	buf2 := make([]byte, 5)
	if _, err := f.ReadAt(buf2, 0); err != nil {
		t.Fatal(err)
	}
	if string(buf2) != "hello" {
		t.Fatalf("ReadAt(0) after ReadAt(7) = %q, want %q", buf2, "hello")
	}
}

func TestDupKeepsFileAliveUntilLastClose(t *testing.T) {
	path := writeTemp(t, "data")
	f, err := Open(path, true, false)
	if err != nil {
		t.Fatal(err)
	}
	dup := f.Dup()

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	// dup still holds a reference; reads through it must still work.
	buf := make([]byte, 4)
	if _, err := dup.ReadAt(buf, 0); err != nil {
		t.Fatalf("read through dup after original close failed: %v", err)
	}
	if err := dup.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWriteAtAndJournalBracket(t *testing.T) {
	path := writeTemp(t, "xxxxx")
	f, err := Open(path, true, true)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	j := NewJournal()
	txn := j.BeginOp()
	if _, err := f.WriteAt([]byte("Bobby"), 0); err != nil {
		t.Fatal(err)
	}
	txn.EndOp()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Bobby" {
		t.Fatalf("file contents = %q, want %q", got, "Bobby")
	}
}
