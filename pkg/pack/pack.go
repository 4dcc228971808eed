package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-car/v2/blockstore"
)

// Manager stores content-store blocks in CARv2 pack files. One pack is
// active (writable) at a time; sealed packs are read-only.
type Manager interface {
	PutBlock(ctx context.Context, c core.CID, stored []byte) (uint64, error)
	GetBlock(ctx context.Context, packID uint64, c core.CID) ([]byte, error)
	// SealAndRotateIfNeeded seals the active pack once it reaches the
	// configured target size.
	SealAndRotateIfNeeded(ctx context.Context) error
	CurrentPackID() uint64
	ListSealedPacks() []uint64
	IteratePackBlocks(ctx context.Context, packID uint64, fn func(c core.CID) error) error
	Close() error
}

type packManager struct {
	cfg    core.PackConfig
	logger *slog.Logger

	mu sync.RWMutex

	currentID   uint64
	active      *blockstore.ReadWrite
	activeCount int

	sealed map[uint64]*blockstore.ReadOnly
}

// NewManager opens the packs under cfg.Dir and starts a fresh active pack.
func NewManager(cfg core.PackConfig, logger *slog.Logger) (Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: pack directory not specified", core.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pack directory: %w", err)
	}

	m := &packManager{
		cfg:    cfg,
		logger: logger,
		sealed: make(map[uint64]*blockstore.ReadOnly),
	}

	if err := m.discoverPacks(); err != nil {
		m.closeSealed()
		return nil, err
	}

	return m, nil
}

func parsePackName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, "pack-") || !strings.HasSuffix(name, ".car") {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, "pack-"), ".car"), 16, 64)
	return id, err == nil
}

func (m *packManager) discoverPacks() error {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return err
	}

	var ids []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := parsePackName(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Packs are only ever finalized or discarded on Close, so every pack
	// found on disk is sealed.
	for _, id := range ids {
		bs, err := blockstore.OpenReadOnly(m.packPath(id))
		if err != nil {
			return fmt.Errorf("%w: failed to open sealed pack %d: %v", core.ErrCorrupt, id, err)
		}
		m.sealed[id] = bs
		m.currentID = id
	}

	m.currentID++
	return m.openActive(m.currentID)
}

func (m *packManager) openActive(id uint64) error {
	bs, err := blockstore.OpenReadWrite(m.packPath(id), []cid.Cid{})
	if err != nil {
		return fmt.Errorf("failed to create active pack %d: %w", id, err)
	}
	m.active = bs
	m.activeCount = 0
	return nil
}

func (m *packManager) packPath(id uint64) string {
	return filepath.Join(m.cfg.Dir, fmt.Sprintf("pack-%016x.car", id))
}

func (m *packManager) CurrentPackID() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

func (m *packManager) PutBlock(ctx context.Context, c core.CID, stored []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return 0, core.ErrClosed
	}

	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid CID: %v", core.ErrInvalidInput, err)
	}

	has, err := m.active.Has(ctx, id)
	if err != nil {
		return 0, err
	}
	if has {
		return m.currentID, nil
	}

	blk, err := blocks.NewBlockWithCid(stored, id)
	if err != nil {
		return 0, err
	}
	if err := m.active.Put(ctx, blk); err != nil {
		return 0, err
	}
	m.activeCount++

	return m.currentID, nil
}

func (m *packManager) GetBlock(ctx context.Context, packID uint64, c core.CID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CID: %v", core.ErrInvalidInput, err)
	}

	var bs interface {
		Get(context.Context, cid.Cid) (blocks.Block, error)
	}
	if packID == m.currentID && m.active != nil {
		bs = m.active
	} else if ro, ok := m.sealed[packID]; ok {
		bs = ro
	} else {
		return nil, fmt.Errorf("%w: pack %d not found", core.ErrNotFound, packID)
	}

	blk, err := bs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return blk.RawData(), nil
}

func (m *packManager) SealAndRotateIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return core.ErrClosed
	}

	fi, err := os.Stat(m.packPath(m.currentID))
	if err != nil {
		return err
	}
	if uint64(fi.Size()) < m.cfg.TargetPackBytes {
		return nil
	}

	if err := m.seal(); err != nil {
		return err
	}
	m.currentID++
	return m.openActive(m.currentID)
}

// seal finalizes the active pack and reopens it read-only. Callers hold mu.
func (m *packManager) seal() error {
	if err := m.active.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize pack %d: %w", m.currentID, err)
	}
	m.active = nil

	bs, err := blockstore.OpenReadOnly(m.packPath(m.currentID))
	if err != nil {
		return fmt.Errorf("failed to open sealed pack %d: %w", m.currentID, err)
	}
	m.sealed[m.currentID] = bs

	m.logger.Debug("sealed pack", slog.Uint64("pack", m.currentID), slog.Int("blocks", m.activeCount))
	return nil
}

func (m *packManager) ListSealedPacks() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make([]uint64, 0, len(m.sealed))
	for id := range m.sealed {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// IteratePackBlocks reads the blocks of a sealed pack in file order.
func (m *packManager) IteratePackBlocks(ctx context.Context, packID uint64, fn func(c core.CID) error) error {
	m.mu.RLock()
	_, ok := m.sealed[packID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: pack %d is not sealed or doesn't exist", core.ErrNotFound, packID)
	}

	f, err := os.Open(m.packPath(packID))
	if err != nil {
		return fmt.Errorf("failed to open pack %d: %w", packID, err)
	}
	defer f.Close()

	br, err := carv2.NewBlockReader(f, carv2.WithTrustedCAR(true))
	if err != nil {
		return fmt.Errorf("%w: pack %d: %v", core.ErrCorrupt, packID, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		blk, err := br.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: pack %d: %v", core.ErrCorrupt, packID, err)
		}
		if err := fn(core.CID{Bytes: blk.Cid().Bytes()}); err != nil {
			return err
		}
	}
}

// Close seals the active pack, or removes it when nothing was written to it.
func (m *packManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.active != nil {
		if m.activeCount == 0 {
			m.active.Discard()
			m.active = nil
			if err := os.Remove(m.packPath(m.currentID)); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		} else if err := m.active.Finalize(); err != nil {
			errs = append(errs, fmt.Errorf("pack %d: %w", m.currentID, err))
		}
		m.active = nil
	}

	errs = append(errs, m.closeSealed())
	return errors.Join(errs...)
}

func (m *packManager) closeSealed() error {
	var errs []error
	for id, bs := range m.sealed {
		if err := bs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pack %d: %w", id, err))
		}
		delete(m.sealed, id)
	}
	return errors.Join(errs...)
}
