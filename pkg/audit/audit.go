// Package audit checks that every file in a content store can be rebuilt
// from its packs.
package audit

import (
	"context"
	"fmt"

	"github.com/L3pereira/ipfs-eth-console/pkg/catalog"
	"github.com/L3pereira/ipfs-eth-console/pkg/cidutil"
	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/L3pereira/ipfs-eth-console/pkg/manifest"
	"github.com/L3pereira/ipfs-eth-console/pkg/pack"
	"github.com/L3pereira/ipfs-eth-console/pkg/transform"
)

// Problem is one block that could not be read back intact.
type Problem struct {
	File  core.ContentID
	Block core.CID
	Err   error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: block %s: %v", p.File, p.Block, p.Err)
}

// Report summarizes an audit run.
type Report struct {
	Files       int
	LiveBlocks  int // manifests plus distinct chunks they reference
	SealedPacks int
	// Orphans counts blocks in sealed packs that no manifest references,
	// left behind by adds that failed before their catalog commit.
	Orphans  int
	Problems []Problem
}

// OK reports whether every file was readable.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// Auditor walks the catalog and verifies what it points to.
type Auditor interface {
	Run(ctx context.Context) (Report, error)
}

type auditor struct {
	cat       catalog.Catalog
	packs     pack.Manager
	manifests manifest.Codec
	cidHub    cidutil.Builder
	tr        transform.Transform
}

// NewAuditor creates an auditor over the parts of an open store.
func NewAuditor(
	cat catalog.Catalog,
	packs pack.Manager,
	manifests manifest.Codec,
	cidHub cidutil.Builder,
	tr transform.Transform,
) Auditor {
	return &auditor{
		cat:       cat,
		packs:     packs,
		manifests: manifests,
		cidHub:    cidHub,
		tr:        tr,
	}
}

func (a *auditor) Run(ctx context.Context) (Report, error) {
	var rep Report

	// 1. Mark: verify every manifest and chunk reachable from a file.
	live, err := a.mark(ctx, &rep)
	if err != nil {
		return rep, fmt.Errorf("mark phase failed: %w", err)
	}
	rep.LiveBlocks = len(live)

	// 2. Count sealed blocks nothing references.
	sealed := a.packs.ListSealedPacks()
	rep.SealedPacks = len(sealed)
	seen := make(map[string]struct{})
	for _, pid := range sealed {
		err := a.packs.IteratePackBlocks(ctx, pid, func(c core.CID) error {
			if _, dup := seen[string(c.Bytes)]; dup {
				return nil
			}
			seen[string(c.Bytes)] = struct{}{}
			if _, ok := live[string(c.Bytes)]; !ok {
				rep.Orphans++
			}
			return nil
		})
		if err != nil {
			return rep, fmt.Errorf("failed to scan pack %d: %w", pid, err)
		}
	}

	return rep, nil
}

func (a *auditor) mark(ctx context.Context, rep *Report) (map[string]struct{}, error) {
	live := make(map[string]struct{})

	err := a.cat.IterateFiles(ctx, func(id core.ContentID, mCID core.CID) error {
		rep.Files++
		live[string(mCID.Bytes)] = struct{}{}

		mBytes, err := a.read(ctx, mCID)
		if err != nil {
			rep.Problems = append(rep.Problems, Problem{File: id, Block: mCID, Err: err})
			return nil
		}
		m, err := a.manifests.Decode(mBytes)
		if err != nil {
			rep.Problems = append(rep.Problems, Problem{File: id, Block: mCID, Err: err})
			return nil
		}
		if got, err := a.cidHub.FileID(mBytes); err != nil || got != id {
			rep.Problems = append(rep.Problems, Problem{File: id, Block: mCID, Err: fmt.Errorf("%w: manifest hashes to %s", core.ErrCorrupt, got)})
		}

		for _, chunk := range m.Chunks {
			if _, done := live[string(chunk.CID.Bytes)]; done {
				continue
			}
			live[string(chunk.CID.Bytes)] = struct{}{}

			plain, err := a.read(ctx, chunk.CID)
			if err == nil && uint32(len(plain)) != chunk.Len {
				err = fmt.Errorf("%w: chunk is %d bytes, manifest says %d", core.ErrCorrupt, len(plain), chunk.Len)
			}
			if err != nil {
				rep.Problems = append(rep.Problems, Problem{File: id, Block: chunk.CID, Err: err})
			}
		}
		return ctx.Err()
	})

	return live, err
}

func (a *auditor) read(ctx context.Context, c core.CID) ([]byte, error) {
	pid, ok, err := a.cat.GetPackForCID(ctx, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrNotFound
	}

	stored, err := a.packs.GetBlock(ctx, pid, c)
	if err != nil {
		return nil, err
	}
	plain, err := a.tr.Decode(stored)
	if err != nil {
		return nil, err
	}
	if err := a.cidHub.Verify(c, plain); err != nil {
		return nil, err
	}
	return plain, nil
}
