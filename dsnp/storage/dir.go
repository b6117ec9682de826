package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FilePrefix is the locator scheme of DirStore objects.
const FilePrefix = "file://"

// DirStore keeps objects as files under a root directory. Partial writes
// land in hidden temp files and only become visible on End.
type DirStore struct {
	root string
	// root with a trailing separator
	base string
}

func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w", abs, err)
	}
	base := abs
	if !strings.HasSuffix(base, string(os.PathSeparator)) {
		base += string(os.PathSeparator)
	}
	return &DirStore{root: abs, base: base}, nil
}

// Root returns the absolute store directory.
func (s *DirStore) Root() string { return s.root }

// NewSink opens a temp file for a new object named name, or a random name
// when name is empty.
func (s *DirStore) NewSink(name string) (*FileSink, error) {
	if name == "" {
		name = uuid.NewString() + ".parquet"
	}
	name = filepath.Base(name)
	tmp, err := os.CreateTemp(s.root, "."+name+".partial-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create sink for %s: %w", name, err)
	}
	return &FileSink{file: tmp, final: filepath.Join(s.root, name)}, nil
}

// Prefix is the locator prefix shared by every object in the store.
func (s *DirStore) Prefix() string {
	return FilePrefix + s.base
}

// Open opens a committed object for reading. The returned *os.File
// supports random access. Locators resolving outside the root are rejected.
func (s *DirStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}
		return nil, err
	}
	return f, nil
}

func (s *DirStore) resolve(locator string) (string, error) {
	raw, ok := strings.CutPrefix(locator, FilePrefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBadLocator, locator)
	}
	path := filepath.Clean(raw)
	if !strings.HasPrefix(path, s.base) {
		return "", fmt.Errorf("%w: %s", ErrBadLocator, locator)
	}
	return path, nil
}

// FileSink writes one object of a DirStore.
type FileSink struct {
	file  *os.File
	final string
	done  bool
}

func (s *FileSink) Write(p []byte) (int, error) {
	if s.done {
		return 0, ErrSinkClosed
	}
	return s.file.Write(p)
}

// End syncs the temp file and renames it into place.
func (s *FileSink) End(_ context.Context) (string, error) {
	if s.done {
		return "", ErrSinkClosed
	}
	s.done = true
	if err := s.file.Sync(); err != nil {
		s.cleanup()
		return "", fmt.Errorf("failed to sync %s: %w", s.file.Name(), err)
	}
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.file.Name())
		return "", fmt.Errorf("failed to close %s: %w", s.file.Name(), err)
	}
	if err := os.Rename(s.file.Name(), s.final); err != nil {
		_ = os.Remove(s.file.Name())
		return "", fmt.Errorf("failed to commit %s: %w", s.final, err)
	}
	return FilePrefix + s.final, nil
}

// Abort removes the temp file. It is safe to call after End.
func (s *FileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.cleanup()
}

func (s *FileSink) cleanup() error {
	_ = s.file.Close()
	if err := os.Remove(s.file.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
