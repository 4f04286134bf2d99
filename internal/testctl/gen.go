package testctl

import (
	"fmt"
	"os"
	"path/filepath"

	"nnevald/internal/weights"
)

// genNetwork writes a deterministic random weight file for local testing.
// Shape strings look like "64x6"; the seed keeps regeneration reproducible.
func genNetwork(path, shape string, seed int64, se, wdl, movesLeft bool) error {
	var filters, blocks int
	if _, err := fmt.Sscanf(shape, "%dx%d", &filters, &blocks); err != nil {
		return fmt.Errorf("shape must look like 64x6, got %q", shape)
	}
	topo := weights.Topology{
		Filters:   filters,
		Blocks:    blocks,
		Policy:    weights.PolicyConvolution,
		MovesLeft: movesLeft,
	}
	if se {
		topo.SEChannels = filters / 2
	}
	if wdl {
		topo.Value = weights.ValueWDL
	}
	set := weights.Random(topo, seed)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := set.WriteFile(path); err != nil {
		return err
	}
	info("[gen] wrote %s (%dx%d se=%v wdl=%v mlh=%v seed=%d)", path, filters, blocks, se, wdl, movesLeft, seed)
	return nil
}
