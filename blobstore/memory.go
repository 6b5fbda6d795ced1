package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
)

var errNegativeOffset = errors.New("blobstore: negative offset")

// MemoryStore keeps blobs in process memory. It is safe for concurrent use
// and is what tests and the CLI's memory backend run against.
//
// Stored slices are immutable: every write replaces the slice, so open
// blobs keep reading the content they were opened on.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) load(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[name]

	return data, ok
}

func (m *MemoryStore) publish(name string, data []byte) {
	if data == nil {
		data = []byte{}
	}

	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
}

// Open returns a view of the blob's current content.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	data, ok := m.load(name)
	if !ok {
		return nil, ErrNotFound
	}

	return memoryBlob(data), nil
}

// Create returns a writer whose content becomes visible on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

// Put replaces the blob with a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.publish(name, bytes.Clone(data))
	return nil
}

// Delete removes the blob. A missing blob is not an error.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()

	return nil
}

// List returns the sorted names that start with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	m.mu.RUnlock()

	slices.Sort(names)

	return names, nil
}

type memoryBlob []byte

func (b memoryBlob) Size() int64 { return int64(len(b)) }

func (b memoryBlob) Close() error { return nil }

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}

	return bytes.NewReader(b).ReadAt(p, off)
}

func (b memoryBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	switch {
	case off < 0:
		return nil, errNegativeOffset
	case off >= b.Size():
		return nil, io.EOF
	}

	end := min(off+max(length, 0), b.Size())

	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}

	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error { return nil }

func (w *memoryWriter) Close() error {
	if w.done {
		return io.ErrClosedPipe
	}

	w.done = true
	w.store.publish(w.name, bytes.Clone(w.buf.Bytes()))

	return nil
}

// Abort drops the written bytes; nothing is published.
func (w *memoryWriter) Abort() error {
	w.done = true
	w.buf.Reset()

	return nil
}
