package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/L3pereira/ipfs-eth-console/pkg/audit"
	"github.com/L3pereira/ipfs-eth-console/pkg/catalog"
	"github.com/L3pereira/ipfs-eth-console/pkg/chunker"
	"github.com/L3pereira/ipfs-eth-console/pkg/cidutil"
	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/L3pereira/ipfs-eth-console/pkg/manifest"
	"github.com/L3pereira/ipfs-eth-console/pkg/pack"
	"github.com/L3pereira/ipfs-eth-console/pkg/transform"
	"github.com/cockroachdb/pebble"
)

type store struct {
	cfg    Config
	logger *slog.Logger

	chunker   chunker.Chunker
	cidHub    cidutil.Builder
	manifests manifest.Codec
	packs     pack.Manager
	catalog   catalog.Catalog
	transform transform.Transform

	mu     sync.RWMutex // single writer; guards closed
	closed bool
}

// readLock takes the shared lock, or reports ErrClosed without holding it.
func (s *store) readLock() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return core.ErrClosed
	}
	return nil
}

// Open initializes and opens a content store rooted at cfg.Dir.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: store directory not specified", core.ErrInvalidInput)
	}
	if cfg.Pack.Dir == "" {
		cfg.Pack.Dir = filepath.Join(cfg.Dir, "packs")
	}
	if cfg.Catalog.Dir == "" {
		cfg.Catalog.Dir = filepath.Join(cfg.Dir, "catalog")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tr, err := transform.New(cfg.Transform)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(cfg.Catalog.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pm, err := pack.NewManager(cfg.Pack, logger)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to open pack manager: %w", err)
	}

	return &store{
		cfg:       cfg,
		logger:    logger,
		chunker:   chunker.NewChunker(chunker.Config{Min: cfg.Chunking.Min, Avg: cfg.Chunking.Avg, Max: cfg.Chunking.Max}),
		cidHub:    cidutil.NewBuilder(),
		manifests: manifest.NewCodec(cfg.Limits),
		packs:     pm,
		catalog:   cat,
		transform: tr,
	}, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err1 := s.packs.Close()
	err2 := s.catalog.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *store) Add(ctx context.Context, r io.Reader) (core.ContentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", core.ErrClosed
	}

	batch := s.catalog.NewBatch()
	defer batch.Close()

	whole := sha256.New()
	var refs []manifest.ChunkRef
	var total uint64

	err := s.chunker.Walk(ctx, r, func(c chunker.Chunk) error {
		total += uint64(len(c.Data))
		if s.cfg.Limits.MaxFileBytes > 0 && total > s.cfg.Limits.MaxFileBytes {
			return fmt.Errorf("%w: file exceeds %d bytes", core.ErrTooLarge, s.cfg.Limits.MaxFileBytes)
		}
		whole.Write(c.Data)

		cid, err := s.putBlock(ctx, batch, c.Data, s.cidHub.ChunkCID)
		if err != nil {
			return err
		}
		refs = append(refs, manifest.ChunkRef{CID: cid, Len: uint32(len(c.Data))})
		return nil
	})
	if err != nil {
		return "", err
	}

	m := &manifest.FileV1{
		Version:     1,
		Length:      total,
		Chunks:      refs,
		WholeSha256: whole.Sum(nil),
	}
	mBytes, err := s.manifests.Encode(m)
	if err != nil {
		return "", err
	}

	mCID, err := s.putBlock(ctx, batch, mBytes, s.cidHub.ManifestCID)
	if err != nil {
		return "", err
	}

	id, err := s.cidHub.FileID(mBytes)
	if err != nil {
		return "", err
	}
	if err := s.catalog.PutManifestForFile(batch, id, mCID); err != nil {
		return "", err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return "", err
	}

	if err := s.packs.SealAndRotateIfNeeded(ctx); err != nil {
		s.logger.Warn("pack rotation failed", slog.Any("err", err))
	}

	s.logger.Debug("added file",
		slog.String("cid", string(id)),
		slog.Uint64("length", total),
		slog.Int("chunks", len(refs)))
	return id, nil
}

// putBlock stores plain under the CID derived by mkCID unless the catalog
// already holds it.
func (s *store) putBlock(ctx context.Context, batch *pebble.Batch, plain []byte, mkCID func([]byte) (core.CID, error)) (core.CID, error) {
	cid, err := mkCID(plain)
	if err != nil {
		return core.CID{}, err
	}

	_, exists, err := s.catalog.GetPackForCID(ctx, cid)
	if err != nil {
		return core.CID{}, err
	}
	if exists {
		return cid, nil
	}

	stored, err := s.transform.Encode(plain)
	if err != nil {
		return core.CID{}, err
	}
	packID, err := s.packs.PutBlock(ctx, cid, stored)
	if err != nil {
		return core.CID{}, err
	}
	if err := s.catalog.PutPackForCID(batch, cid, packID); err != nil {
		return core.CID{}, err
	}
	return cid, nil
}

// getBlock loads, decodes and verifies one block.
func (s *store) getBlock(ctx context.Context, cid core.CID) ([]byte, error) {
	packID, ok, err := s.catalog.GetPackForCID(ctx, cid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: block %s", core.ErrNotFound, cid)
	}

	stored, err := s.packs.GetBlock(ctx, packID, cid)
	if err != nil {
		return nil, err
	}
	plain, err := s.transform.Decode(stored)
	if err != nil {
		return nil, err
	}
	if err := s.cidHub.Verify(cid, plain); err != nil {
		return nil, err
	}
	return plain, nil
}

func (s *store) loadManifest(ctx context.Context, id core.ContentID) (*manifest.FileV1, error) {
	mCID, ok, err := s.catalog.GetManifestForFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	mBytes, err := s.getBlock(ctx, mCID)
	if err != nil {
		return nil, err
	}
	return s.manifests.Decode(mBytes)
}

func (s *store) Cat(ctx context.Context, id core.ContentID) (io.ReadCloser, Stat, error) {
	if err := s.readLock(); err != nil {
		return nil, Stat{}, err
	}
	m, err := s.loadManifest(ctx, id)
	s.mu.RUnlock()
	if err != nil {
		return nil, Stat{}, err
	}

	return &fileReader{
			ctx:    ctx,
			s:      s,
			chunks: m.Chunks,
			want:   m.WholeSha256,
			whole:  sha256.New(),
		}, Stat{
			Length:     m.Length,
			ChunkCount: uint32(len(m.Chunks)),
		}, nil
}

func (s *store) Stat(ctx context.Context, id core.ContentID) (Stat, error) {
	if err := s.readLock(); err != nil {
		return Stat{}, err
	}
	defer s.mu.RUnlock()

	m, err := s.loadManifest(ctx, id)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Length: m.Length, ChunkCount: uint32(len(m.Chunks))}, nil
}

func (s *store) Has(ctx context.Context, id core.ContentID) (bool, error) {
	if err := s.readLock(); err != nil {
		return false, err
	}
	defer s.mu.RUnlock()

	_, ok, err := s.catalog.GetManifestForFile(ctx, id)
	return ok, err
}

func (s *store) Audit(ctx context.Context) (audit.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audit.Report{}, core.ErrClosed
	}

	rep, err := audit.NewAuditor(s.catalog, s.packs, s.manifests, s.cidHub, s.transform).Run(ctx)
	if err != nil {
		return rep, err
	}
	s.logger.Debug("audited store",
		slog.Int("files", rep.Files),
		slog.Int("problems", len(rep.Problems)),
		slog.Int("orphans", rep.Orphans))
	return rep, nil
}

// List snapshots the catalog before calling fn, so fn may call back into
// the store.
func (s *store) List(ctx context.Context, fn func(id core.ContentID) error) error {
	if err := s.readLock(); err != nil {
		return err
	}
	var ids []core.ContentID
	err := s.catalog.IterateFiles(ctx, func(id core.ContentID, _ core.CID) error {
		ids = append(ids, id)
		return nil
	})
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// fileReader streams a file chunk by chunk and checks the whole-file digest
// once the last chunk is consumed.
type fileReader struct {
	ctx    context.Context
	s      *store
	chunks []manifest.ChunkRef

	current *bytes.Reader
	idx     int
	whole   hash.Hash
	want    []byte
}

func (r *fileReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			if r.idx >= len(r.chunks) {
				if !bytes.Equal(r.whole.Sum(nil), r.want) {
					return 0, fmt.Errorf("%w: whole-file digest mismatch", core.ErrCorrupt)
				}
				return 0, io.EOF
			}

			ref := r.chunks[r.idx]
			if err := r.s.readLock(); err != nil {
				return 0, err
			}
			plain, err := r.s.getBlock(r.ctx, ref.CID)
			r.s.mu.RUnlock()
			if err != nil {
				return 0, err
			}
			if uint32(len(plain)) != ref.Len {
				return 0, fmt.Errorf("%w: chunk %d is %d bytes, manifest says %d", core.ErrCorrupt, r.idx, len(plain), ref.Len)
			}
			r.whole.Write(plain)
			r.current = bytes.NewReader(plain)
		}

		n, err := r.current.Read(p)
		if err == io.EOF {
			r.current = nil
			r.idx++
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *fileReader) Close() error {
	r.current = nil
	r.idx = len(r.chunks)
	return nil
}
