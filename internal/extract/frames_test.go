package extract

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDirSourceOrderAndFiltering(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.jpg":      "frame-b",
		"a.png":      "frame-a",
		"c.jpeg":     "frame-c",
		"notes.txt":  "ignored",
		"vector.emb": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", src.Len())
	}

	var got []string
	for {
		frame, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, string(frame))
	}
	want := []string{"frame-a", "frame-b", "frame-c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDirSourceEmptyDir(t *testing.T) {
	if _, err := NewDirSource(t.TempDir()); err == nil {
		t.Error("empty directory must be an error")
	}
}

func TestSliceSourceCancellation(t *testing.T) {
	src := NewSliceSource([]byte("one"), []byte("two"))

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSliceSourceEOF(t *testing.T) {
	src := NewSliceSource([]byte("only"))
	if _, err := src.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
