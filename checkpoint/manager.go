package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/blobstore"
)

const (
	namePrefix = "checkpoint-"
	nameSuffix = ".ctrie"

	// DefaultPointerName is the blob used by the default PointerStore.
	DefaultPointerName = "LATEST"

	// DefaultLevel is the compression level used unless WithCompressionLevel
	// is given.
	DefaultLevel = 3
)

type options struct {
	compression Compression
	level       int
	bytesPerSec int
	burst       int
	prefix      string
	logger      *celltrie.Logger
	pointer     PointerStore
}

// Option configures a Manager.
type Option func(*options)

// WithCompression sets the compression used for new checkpoints.
// The default is CompressionZstd.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCompressionLevel sets the compression level. zstd levels follow the
// reference encoder (1-22); lz4 levels run from 0 (fast) to 9.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithRateLimit throttles checkpoint IO to bytesPerSec with the given burst.
// A burst of 0 uses bytesPerSec; a rate of 0 disables throttling.
func WithRateLimit(bytesPerSec, burst int) Option {
	return func(o *options) {
		o.bytesPerSec = bytesPerSec
		o.burst = burst
	}
}

// WithPrefix places checkpoints and the default pointer blob under prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithLogger configures logging of saves and loads.
func WithLogger(logger *celltrie.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPointerStore replaces the default LATEST blob pointer.
func WithPointerStore(ps PointerStore) Option {
	return func(o *options) {
		o.pointer = ps
	}
}

// Manager writes and reads checkpoints in a blob store.
// It is safe for concurrent use.
type Manager struct {
	store   blobstore.BlobStore
	opts    options
	limiter *rate.Limiter
}

// NewManager returns a Manager storing checkpoints in store.
func NewManager(store blobstore.BlobStore, optFns ...Option) *Manager {
	o := options{
		compression: CompressionZstd,
		level:       DefaultLevel,
	}

	for _, fn := range optFns {
		fn(&o)
	}

	if o.logger == nil {
		o.logger = celltrie.NoopLogger()
	}

	if o.pointer == nil {
		o.pointer = NewBlobPointerStore(store, o.prefix+DefaultPointerName)
	}

	return &Manager{
		store:   store,
		opts:    o,
		limiter: newLimiter(o.bytesPerSec, o.burst),
	}
}

// Info describes a stored checkpoint.
type Info struct {
	Name   string
	Size   int64
	Header Header
	Stream celltrie.StreamInfo
}

// Save writes m as a new checkpoint and advances the pointer to it.
// It returns the name of the checkpoint.
func Save[O comparable, V any](ctx context.Context, mgr *Manager, m *celltrie.Map[O, V]) (string, error) {
	var raw bytes.Buffer
	if _, err := m.WriteTo(&raw); err != nil {
		mgr.opts.logger.LogCheckpoint(ctx, "save", "", 0, err)
		return "", err
	}

	name, info, err := mgr.commit(ctx, raw.Bytes(), mgr.opts.compression, mgr.opts.level)
	mgr.opts.logger.LogCheckpoint(ctx, "save", name, int(info.Count), err)

	if err != nil {
		return "", err
	}

	return name, nil
}

// Load restores the current checkpoint. It returns ErrNoCheckpoint if none
// has been saved.
func Load[O comparable, V any](ctx context.Context, mgr *Manager, optFns ...celltrie.Option) (*celltrie.Map[O, V], error) {
	name, err := mgr.Latest(ctx)
	if err != nil {
		return nil, err
	}

	return LoadNamed[O, V](ctx, mgr, name, optFns...)
}

// LoadNamed restores the checkpoint called name.
func LoadNamed[O comparable, V any](ctx context.Context, mgr *Manager, name string, optFns ...celltrie.Option) (*celltrie.Map[O, V], error) {
	raw, _, err := mgr.read(ctx, name)
	if err != nil {
		mgr.opts.logger.LogCheckpoint(ctx, "load", name, 0, err)
		return nil, err
	}

	m, err := celltrie.Decode[O, V](bytes.NewReader(raw), optFns...)
	if err != nil {
		mgr.opts.logger.LogCheckpoint(ctx, "load", name, 0, err)
		return nil, fmt.Errorf("decode checkpoint %s: %w", name, err)
	}

	mgr.opts.logger.LogCheckpoint(ctx, "load", name, m.Size(), nil)

	return m, nil
}

// Latest returns the name of the current checkpoint.
func (mgr *Manager) Latest(ctx context.Context) (string, error) {
	name, err := mgr.opts.pointer.Latest(ctx)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoCheckpoint
	}

	return name, err
}

// List returns the names of all stored checkpoints, oldest first.
func (mgr *Manager) List(ctx context.Context) ([]string, error) {
	names, err := mgr.store.List(ctx, mgr.opts.prefix+namePrefix)
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(n, nameSuffix) {
			out = append(out, n)
		}
	}

	return out, nil
}

// Stat reads and verifies the checkpoint called name without decoding its
// entries.
func (mgr *Manager) Stat(ctx context.Context, name string) (Info, error) {
	raw, info, err := mgr.read(ctx, name)
	if err != nil {
		return Info{}, err
	}

	info.Stream, err = celltrie.ReadStreamInfo(bytes.NewReader(raw))
	if err != nil {
		return Info{}, fmt.Errorf("checkpoint %s: %w", name, err)
	}

	return info, nil
}

// Recompress rewrites the checkpoint called name with compression c under a
// new name. If name was current, the pointer is advanced to the new one.
func (mgr *Manager) Recompress(ctx context.Context, name string, c Compression, level int) (string, error) {
	raw, _, err := mgr.read(ctx, name)
	if err != nil {
		return "", err
	}

	latest, err := mgr.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return "", err
	}

	newName, stream, err := mgr.write(ctx, raw, c, level)
	if err == nil && latest == name {
		err = mgr.opts.pointer.Advance(ctx, newName)
	}

	mgr.opts.logger.LogCheckpoint(ctx, "recompress", newName, int(stream.Count), err)

	if err != nil {
		return "", err
	}

	return newName, nil
}

// Prune deletes all but the newest keep checkpoints. The current checkpoint
// is never deleted. It returns the deleted names.
func (mgr *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	names, err := mgr.List(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := mgr.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return nil, err
	}

	var deleted []string

	for i := 0; i < len(names)-max(keep, 0); i++ {
		if names[i] == latest {
			continue
		}

		if err := mgr.store.Delete(ctx, names[i]); err != nil {
			return deleted, err
		}

		deleted = append(deleted, names[i])
	}

	return deleted, nil
}

func (mgr *Manager) newName() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return mgr.opts.prefix + namePrefix + id.String() + nameSuffix, nil
}

func (mgr *Manager) commit(ctx context.Context, raw []byte, c Compression, level int) (string, celltrie.StreamInfo, error) {
	name, stream, err := mgr.write(ctx, raw, c, level)
	if err != nil {
		return name, stream, err
	}

	if err := mgr.opts.pointer.Advance(ctx, name); err != nil {
		return name, stream, fmt.Errorf("advance pointer to %s: %w", name, err)
	}

	return name, stream, nil
}

type aborter interface {
	Abort() error
}

// write frames raw with compression c and stores it under a fresh name.
func (mgr *Manager) write(ctx context.Context, raw []byte, c Compression, level int) (string, celltrie.StreamInfo, error) {
	stream, err := celltrie.ReadStreamInfo(bytes.NewReader(raw))
	if err != nil {
		return "", stream, err
	}

	if !c.valid() {
		return "", stream, fmt.Errorf("unsupported %s", c)
	}

	var payload bytes.Buffer

	zw, err := c.compressor(&payload, level)
	if err != nil {
		return "", stream, err
	}

	if _, err := zw.Write(raw); err != nil {
		return "", stream, err
	}

	if err := zw.Close(); err != nil {
		return "", stream, err
	}

	h := Header{
		Version:     frameVersion,
		Compression: c,
		Level:       uint8(max(0, min(level, 255))),
		CRC:         checksum(payload.Bytes()),
		Length:      uint64(payload.Len()),
	}

	name, err := mgr.newName()
	if err != nil {
		return "", stream, err
	}

	wb, err := mgr.store.Create(ctx, name)
	if err != nil {
		return "", stream, err
	}

	w := limitWriter(ctx, wb, mgr.limiter)

	err = writeAll(w, h.marshal(), payload.Bytes())
	if err == nil {
		err = wb.Sync()
	}

	if err != nil {
		if a, ok := wb.(aborter); ok {
			_ = a.Abort()
		} else {
			_ = wb.Close()
			_ = mgr.store.Delete(ctx, name)
		}

		return "", stream, fmt.Errorf("write checkpoint %s: %w", name, err)
	}

	if err := wb.Close(); err != nil {
		return "", stream, fmt.Errorf("close checkpoint %s: %w", name, err)
	}

	return name, stream, nil
}

func writeAll(w io.Writer, parts ...[]byte) error {
	for _, p := range parts {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}

	return nil
}

// read returns the verified, decompressed stream of the checkpoint name.
func (mgr *Manager) read(ctx context.Context, name string) ([]byte, Info, error) {
	b, err := mgr.store.Open(ctx, name)
	if err != nil {
		return nil, Info{}, err
	}
	defer b.Close()

	info := Info{Name: name, Size: b.Size()}
	if info.Size < frameHeaderSize {
		return nil, info, invalidFrame("%s is %d bytes", name, info.Size)
	}

	rc, err := b.ReadRange(ctx, 0, info.Size)
	if err != nil {
		return nil, info, err
	}
	defer rc.Close()

	r := limitReader(ctx, rc, mgr.limiter)

	info.Header, err = readFrameHeader(r)
	if err != nil {
		return nil, info, err
	}

	if want := uint64(info.Size - frameHeaderSize); info.Header.Length != want {
		return nil, info, invalidFrame("header declares %d payload bytes, blob holds %d", info.Header.Length, want)
	}

	payload := make([]byte, info.Header.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, info, invalidFrame("read payload: %v", err)
	}

	if err := info.Header.verify(payload); err != nil {
		return nil, info, err
	}

	zr, err := info.Header.Compression.decompressor(bytes.NewReader(payload))
	if err != nil {
		return nil, info, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, info, fmt.Errorf("decompress checkpoint %s: %w", name, err)
	}

	return raw, info, nil
}
