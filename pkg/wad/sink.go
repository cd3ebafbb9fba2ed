package wad

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// fileSink writes extracted entries into one destination directory.
//
// Each file is written to a temporary name in the same directory and renamed
// into place once complete, so a partially written entry is never visible
// under its final name.
type fileSink struct {
	root         *os.Root
	skipExisting bool
}

func newFileSink(dir string, skipExisting bool) (*fileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", dir, err)
	}
	return &fileSink{root: root, skipExisting: skipExisting}, nil
}

func (s *fileSink) Close() error { return s.root.Close() }

// shouldWrite returns false if name already exists and skipping is enabled.
func (s *fileSink) shouldWrite(name string) bool {
	if !s.skipExisting {
		return true
	}
	_, err := s.root.Stat(name)
	return errors.Is(err, fs.ErrNotExist)
}

// write stores data under name atomically.
func (s *fileSink) write(name string, data []byte) error {
	tmp, tmpName, err := createTempFile(s.root, ".wad-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.root.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.root.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.root.Rename(tmpName, name); err != nil {
		_ = s.root.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", name, err)
	}
	return nil
}

func createTempFile(root *os.Root, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, "", err
		}
		name := prefix + hex.EncodeToString(b[:])
		f, err := root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}
