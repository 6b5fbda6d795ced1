package checkpoint

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/celltrie/blobstore"
)

// PointerStore records the name of the current checkpoint.
type PointerStore interface {
	// Latest returns the current checkpoint name, or an error satisfying
	// errors.Is(err, blobstore.ErrNotFound) if none was recorded.
	Latest(ctx context.Context) (string, error)
	// Advance makes name the current checkpoint.
	Advance(ctx context.Context, name string) error
}

// BlobPointerStore keeps the current checkpoint name in a single blob.
// Put is atomic in every bundled store, so readers never see a torn name.
type BlobPointerStore struct {
	store blobstore.BlobStore
	name  string
}

// NewBlobPointerStore returns a PointerStore backed by the blob name in store.
func NewBlobPointerStore(store blobstore.BlobStore, name string) *BlobPointerStore {
	return &BlobPointerStore{store: store, name: name}
}

// Latest implements PointerStore.
func (p *BlobPointerStore) Latest(ctx context.Context) (string, error) {
	data, err := blobstore.ReadAll(ctx, p.store, p.name)
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", blobstore.ErrNotFound
	}

	return name, nil
}

// Advance implements PointerStore.
func (p *BlobPointerStore) Advance(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("empty checkpoint name")
	}

	return p.store.Put(ctx, p.name, []byte(name+"\n"))
}
