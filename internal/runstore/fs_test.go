package runstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteJSONAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "job.json")
	in := map[string]any{"item_id": "abc", "status": "pending"}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("write json: %v", err)
	}

	var out map[string]any
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if out["item_id"] != "abc" || out["status"] != "pending" {
		t.Fatalf("unexpected round trip: %#v", out)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if IsTempName(e.Name()) {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadJSON_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := ReadJSON(path, &out); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCopyFile_KeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "video-399.mkv")
	if err := os.WriteFile(src, []byte("media-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "final.mkv")

	n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatalf("copy file: %v", err)
	}
	if n != int64(len("media-bytes")) {
		t.Fatalf("unexpected byte count: %d", n)
	}
	if !Exists(src) {
		t.Fatalf("source must remain after copy")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "media-bytes" {
		t.Fatalf("unexpected copy contents: %q", got)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatalf("expected error for missing source")
	}
	if Exists(filepath.Join(dir, "dst")) {
		t.Fatalf("destination must not exist after failed copy")
	}
}
