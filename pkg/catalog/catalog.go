package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/cockroachdb/pebble"
)

var (
	PrefixC2P = []byte("c2p:") // block CID -> pack ID
	PrefixF2M = []byte("f2m:") // file ContentID -> manifest CID
)

// Catalog defines the interface for the embedded KV index of the content store.
type Catalog interface {
	GetPackForCID(ctx context.Context, cid core.CID) (uint64, bool, error)
	PutPackForCID(batch *pebble.Batch, cid core.CID, packID uint64) error

	GetManifestForFile(ctx context.Context, id core.ContentID) (core.CID, bool, error)
	PutManifestForFile(batch *pebble.Batch, id core.ContentID, manifest core.CID) error
	IterateFiles(ctx context.Context, fn func(id core.ContentID, manifest core.CID) error) error

	NewBatch() *pebble.Batch
	Close() error
}

type pebbleCatalog struct {
	db *pebble.DB
}

// Open opens a Pebble-based catalog in the specified directory.
func Open(dir string) (Catalog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &pebbleCatalog{db: db}, nil
}

func (c *pebbleCatalog) Close() error {
	return c.db.Close()
}

func (c *pebbleCatalog) NewBatch() *pebble.Batch {
	return c.db.NewBatch()
}

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

func (c *pebbleCatalog) set(batch *pebble.Batch, key, val []byte) error {
	if batch != nil {
		return batch.Set(key, val, nil)
	}
	return c.db.Set(key, val, pebble.Sync)
}

func (c *pebbleCatalog) GetPackForCID(ctx context.Context, cid core.CID) (uint64, bool, error) {
	val, closer, err := c.db.Get(prefixed(PrefixC2P, cid.Bytes))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, false, fmt.Errorf("%w: invalid pack ID length", core.ErrCorrupt)
	}
	return binary.BigEndian.Uint64(val), true, nil
}

func (c *pebbleCatalog) PutPackForCID(batch *pebble.Batch, cid core.CID, packID uint64) error {
	return c.set(batch, prefixed(PrefixC2P, cid.Bytes), binary.BigEndian.AppendUint64(nil, packID))
}

func (c *pebbleCatalog) GetManifestForFile(ctx context.Context, id core.ContentID) (core.CID, bool, error) {
	val, closer, err := c.db.Get(prefixed(PrefixF2M, []byte(id)))
	if errors.Is(err, pebble.ErrNotFound) {
		return core.CID{}, false, nil
	}
	if err != nil {
		return core.CID{}, false, err
	}
	defer closer.Close()

	return core.CID{Bytes: append([]byte(nil), val...)}, true, nil
}

func (c *pebbleCatalog) PutManifestForFile(batch *pebble.Batch, id core.ContentID, manifest core.CID) error {
	if id == "" || len(manifest.Bytes) == 0 {
		return fmt.Errorf("%w: empty file or manifest identifier", core.ErrInvalidInput)
	}
	return c.set(batch, prefixed(PrefixF2M, []byte(id)), manifest.Bytes)
}

func (c *pebbleCatalog) IterateFiles(ctx context.Context, fn func(id core.ContentID, manifest core.CID) error) error {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: PrefixF2M,
		UpperBound: incrementByte(PrefixF2M),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := core.ContentID(iter.Key()[len(PrefixF2M):])
		manifest := core.CID{Bytes: append([]byte(nil), iter.Value()...)}
		if err := fn(id, manifest); err != nil {
			return err
		}
	}
	return iter.Error()
}

func incrementByte(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	for i := len(res) - 1; i >= 0; i-- {
		res[i]++
		if res[i] != 0 {
			return res
		}
	}
	return nil
}
