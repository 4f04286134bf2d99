// Package registry discovers weight files on disk and builds the network
// catalog the daemon serves sessions from.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nnevald/internal/common/fsutil"
	"nnevald/pkg/types"
)

// Ext is the weight-file extension the scanner recognizes.
const Ext = ".nnwb"

// LoadDir scans a directory for weight files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. The catalog is sorted by ID.
func LoadDir(dir string) ([]types.Network, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var networks []types.Network
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), Ext) {
			continue
		}
		networks = append(networks, types.Network{
			ID:   name,
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.Join(abs, name),
		})
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].ID < networks[j].ID })
	return networks, nil
}
