package e2e

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"nnevald/internal/httpapi"
	"nnevald/internal/registry"
	"nnevald/internal/session"
	"nnevald/internal/weights"
	"nnevald/pkg/types"
)

// createNetworksDir populates a temp directory with small generated weight
// files and returns the directory path.
func createNetworksDir(t *testing.T, topos map[string]weights.Topology) string {
	t.Helper()
	dir := t.TempDir()
	for name, topo := range topos {
		if topo.Filters == 0 {
			topo.Filters = 8
		}
		if topo.Blocks == 0 {
			topo.Blocks = 1
		}
		if err := weights.Random(topo, 5).WriteFile(filepath.Join(dir, name)); err != nil {
			t.Fatalf("write network %s: %v", name, err)
		}
	}
	return dir
}

func newServerForDir(t *testing.T, networksDir string) (*httptest.Server, *session.Table) {
	t.Helper()
	reg, err := registry.LoadDir(networksDir)
	if err != nil {
		t.Fatalf("scan networks: %v", err)
	}
	tbl := session.NewTable(session.Config{Registry: reg})
	t.Cleanup(tbl.Close)
	srv := httptest.NewServer(httpapi.NewMux(tbl))
	t.Cleanup(srv.Close)
	return srv, tbl
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpJSON(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	_ = resp.Body.Close()
	return resp
}

// randomPositions builds an evaluate payload with n pseudo-random positions.
func randomPositions(n int, seed int64) []types.Position {
	rng := rand.New(rand.NewSource(seed))
	out := make([]types.Position, n)
	for i := range out {
		for p := range out[i].Planes {
			out[i].Planes[p] = types.Plane{Mask: rng.Uint64(), Value: rng.Float32()}
		}
		out[i].Hash = rng.Uint64()
		out[i].Moves = []uint16{uint16(rng.Intn(types.PolicyVocabulary)), uint16(rng.Intn(types.PolicyVocabulary))}
	}
	return out
}
