package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryPrefix is the locator scheme of MemoryStore objects.
const MemoryPrefix = "mem://"

// MemoryStore keeps committed objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// NewSink starts a new object. An empty name is replaced by a random one.
func (s *MemoryStore) NewSink(name string) *MemorySink {
	if name == "" {
		name = uuid.NewString() + ".parquet"
	}
	return &MemorySink{store: s, key: name}
}

// Open returns a reader over a committed object. The reader also
// implements io.ReaderAt and Size.
func (s *MemoryStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(locator, MemoryPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadLocator, locator)
	}
	s.mu.RLock()
	data, found := s.objects[key]
	s.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return &memoryReader{Reader: bytes.NewReader(data)}, nil
}

// Keys lists committed object names in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MemorySink buffers writes until End commits them to the store.
type MemorySink struct {
	store *MemoryStore
	key   string
	buf   bytes.Buffer
	done  bool
}

func (s *MemorySink) Write(p []byte) (int, error) {
	if s.done {
		return 0, ErrSinkClosed
	}
	return s.buf.Write(p)
}

// End commits the buffered bytes and returns the object's locator.
func (s *MemorySink) End(_ context.Context) (string, error) {
	if s.done {
		return "", ErrSinkClosed
	}
	s.done = true
	data := bytes.Clone(s.buf.Bytes())
	s.store.mu.Lock()
	s.store.objects[s.key] = data
	s.store.mu.Unlock()
	return MemoryPrefix + s.key, nil
}

// Abort discards the buffered bytes without committing.
func (s *MemorySink) Abort() error {
	s.done = true
	s.buf.Reset()
	return nil
}

// Len reports how many bytes have been buffered.
func (s *MemorySink) Len() int { return s.buf.Len() }

type memoryReader struct {
	*bytes.Reader
}

func (memoryReader) Close() error { return nil }
