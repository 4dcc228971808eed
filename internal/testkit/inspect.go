package testkit

import (
	"context"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/L3pereira/ipfs-eth-console/pkg/pack"
)

// CountUniqueBlocks returns the number of unique CIDs stored across all sealed packs.
func CountUniqueBlocks(ctx context.Context, pm pack.Manager) (int, error) {
	unique := make(map[string]struct{})
	for _, pid := range pm.ListSealedPacks() {
		err := pm.IteratePackBlocks(ctx, pid, func(c core.CID) error {
			unique[string(c.Bytes)] = struct{}{}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return len(unique), nil
}
