package contentstore

import (
	"context"
	"io"

	"github.com/L3pereira/ipfs-eth-console/pkg/audit"
	"github.com/L3pereira/ipfs-eth-console/pkg/core"
)

type Config = core.StoreConfig

// Stat provides summary information about a stored file.
type Stat struct {
	Length     uint64
	ChunkCount uint32
}

// Store is a local content-addressed file store. Add hands out the base-58
// identifier the ledger records.
type Store interface {
	Add(ctx context.Context, r io.Reader) (core.ContentID, error)
	Cat(ctx context.Context, id core.ContentID) (io.ReadCloser, Stat, error)
	Stat(ctx context.Context, id core.ContentID) (Stat, error)
	Has(ctx context.Context, id core.ContentID) (bool, error)
	List(ctx context.Context, fn func(id core.ContentID) error) error
	// Audit re-reads and verifies every stored file.
	Audit(ctx context.Context) (audit.Report, error)
	Close() error
}
