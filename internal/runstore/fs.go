// Package runstore holds the filesystem primitives every persisted document
// goes through: atomic replace, JSON read/write and the run lock.
package runstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const tempPrefix = ".ytr-tmp-"

// IsTempName reports whether name is an in-flight atomic write.
func IsTempName(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tempPrefix)
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// replaceAtomic fills a temp file next to path and renames it over path.
// Readers see either the old content or the complete new content.
func replaceAtomic(path string, fill func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(path)
	if err := Mkdir(dir); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	abort := func(step string, err error) (int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("%s for %s: %w", step, path, err)
	}

	n, err := fill(tmp)
	if err != nil {
		return abort("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return abort("sync temp file", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return abort("chmod temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return n, nil
}

func WriteBytes(path string, data []byte) error {
	_, err := replaceAtomic(path, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return err
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	return WriteBytes(path, append(data, '\n'))
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CopyFile copies src to dst atomically and returns the bytes copied. src
// is left untouched.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	return replaceAtomic(dst, func(w io.Writer) (int64, error) {
		return io.Copy(w, in)
	})
}
