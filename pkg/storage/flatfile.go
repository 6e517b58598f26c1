// Package storage holds the line-oriented flat files shared with legacy
// consumers (sign-off list, approved list, coordinate-shift log).
package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupSuffix names the sibling copy taken before every rewrite.
const BackupSuffix = "~"

// FlatFile is one line-oriented text file on disk. It does no locking of its
// own; callers hold the advisory lock around read-modify-write cycles.
type FlatFile struct {
	path string
}

// NewFlatFile returns a handle for path. The file need not exist yet.
func NewFlatFile(path string) *FlatFile {
	return &FlatFile{path: path}
}

// Path exposes the underlying path (useful for locks and debugging).
func (f *FlatFile) Path() string {
	return f.path
}

// ReadLines returns the non-blank, non-comment lines. A missing file reads as empty.
func (f *FlatFile) ReadLines() ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", filepath.Base(f.path), err)
	}
	lines := make([]string, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", filepath.Base(f.path), err)
	}
	return lines, nil
}

// ModTime is the resource version of the file. A missing file has the zero time.
func (f *FlatFile) ModTime() (time.Time, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("stat %s: %w", filepath.Base(f.path), err)
	}
	return info.ModTime(), nil
}

// Rewrite replaces the file contents. The prior version is copied to the
// backup sibling first, and the new contents are renamed into place so a
// reader never sees a truncated file. A non-zero modTime is stamped on the
// result.
func (f *FlatFile) Rewrite(lines []string, modTime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("prepare directory: %w", err)
	}
	if err := f.backup(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return fmt.Errorf("write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(f.path), err)
	}
	return f.Touch(modTime)
}

// Append adds one line at the end of the file, creating it when missing.
func (f *FlatFile) Append(line string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("prepare directory: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(f.path), err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		_ = file.Close()
		return fmt.Errorf("append %s: %w", filepath.Base(f.path), err)
	}
	return file.Close()
}

// Touch stamps modTime on the file. A zero modTime is a no-op.
func (f *FlatFile) Touch(modTime time.Time) error {
	if modTime.IsZero() {
		return nil
	}
	if err := os.Chtimes(f.path, modTime, modTime); err != nil {
		return fmt.Errorf("stamp %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

func (f *FlatFile) backup() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read for backup: %w", err)
	}
	if err := os.WriteFile(f.path+BackupSuffix, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// NextVersion returns a modification time strictly after prev, at microsecond
// precision so it survives JSON and database round trips.
func NextVersion(now, prev time.Time) time.Time {
	next := now.UTC().Truncate(time.Microsecond)
	if !next.After(prev) {
		next = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return next
}
