package e2e

import (
	"encoding/json"
	"net/http"
	"testing"

	"nnevald/internal/weights"
	"nnevald/pkg/types"
)

func TestHealthAndNetworks(t *testing.T) {
	dir := createNetworksDir(t, map[string]weights.Topology{
		"a-8x1.nnwb": {},
		"b-8x1.nnwb": {Value: weights.ValueWDL},
	})
	srv, _ := newServerForDir(t, dir)

	resp, body := httpGet(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}

	resp, body = httpGet(t, srv.URL+"/networks")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("networks: %d", resp.StatusCode)
	}
	var nets types.NetworksResponse
	if err := json.Unmarshal(body, &nets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nets.Networks) != 2 || nets.Networks[0].ID != "a-8x1.nnwb" {
		t.Fatalf("catalog: %+v", nets.Networks)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	dir := createNetworksDir(t, map[string]weights.Topology{
		"wdl.nnwb": {Value: weights.ValueWDL, MovesLeft: true},
	})
	srv, _ := newServerForDir(t, dir)

	load, _ := json.Marshal(types.LoadRequest{Network: "wdl.nnwb", MaxBatch: 8})
	resp, body := httpJSON(t, http.MethodPut, srv.URL+"/v1/sessions/0", load)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("load: %d %s", resp.StatusCode, body)
	}

	eval, _ := json.Marshal(types.EvaluateRequest{Positions: randomPositions(3, 1)})
	resp, body = httpJSON(t, http.MethodPost, srv.URL+"/v1/sessions/0/evaluate", eval)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("evaluate: %d %s", resp.StatusCode, body)
	}
	var results types.EvaluateResponse
	if err := json.Unmarshal(body, &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results.Results) != 3 {
		t.Fatalf("got %d results", len(results.Results))
	}
	for i, r := range results.Results {
		if r.Q < -1 || r.Q > 1 || r.D < 0 || r.D > 1 {
			t.Fatalf("result %d outside range: %+v", i, r)
		}
		if len(r.P) != 2 {
			t.Fatalf("result %d policy length %d", i, len(r.P))
		}
	}

	resp, body = httpGet(t, srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(st.Sessions) != 1 || st.Sessions[0].Network != "wdl.nnwb" || !st.Sessions[0].WDL {
		t.Fatalf("status sessions: %+v", st.Sessions)
	}
	if st.EvaluationsTotal != 1 {
		t.Fatalf("evaluations total %d", st.EvaluationsTotal)
	}

	if resp := httpDelete(t, srv.URL+"/v1/sessions/0"); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unload: %d", resp.StatusCode)
	}
	resp, _ = httpJSON(t, http.MethodPost, srv.URL+"/v1/sessions/0/evaluate", eval)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("evaluate after unload: %d", resp.StatusCode)
	}
}

func TestLoadConflictsOverHTTP(t *testing.T) {
	dir := createNetworksDir(t, map[string]weights.Topology{"n.nnwb": {}})
	srv, _ := newServerForDir(t, dir)

	load, _ := json.Marshal(types.LoadRequest{Network: "n.nnwb"})
	if resp, body := httpJSON(t, http.MethodPut, srv.URL+"/v1/sessions/1", load); resp.StatusCode != http.StatusCreated {
		t.Fatalf("load: %d %s", resp.StatusCode, body)
	}
	if resp, _ := httpJSON(t, http.MethodPut, srv.URL+"/v1/sessions/1", load); resp.StatusCode != http.StatusConflict {
		t.Fatalf("double load: %d", resp.StatusCode)
	}

	missing, _ := json.Marshal(types.LoadRequest{Network: "ghost.nnwb"})
	if resp, _ := httpJSON(t, http.MethodPut, srv.URL+"/v1/sessions/2", missing); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown network: %d", resp.StatusCode)
	}
}

func TestBatchCapacityOverHTTP(t *testing.T) {
	dir := createNetworksDir(t, map[string]weights.Topology{"n.nnwb": {}})
	srv, _ := newServerForDir(t, dir)

	load, _ := json.Marshal(types.LoadRequest{Network: "n.nnwb", MaxBatch: 2})
	if resp, body := httpJSON(t, http.MethodPut, srv.URL+"/v1/sessions/0", load); resp.StatusCode != http.StatusCreated {
		t.Fatalf("load: %d %s", resp.StatusCode, body)
	}
	eval, _ := json.Marshal(types.EvaluateRequest{Positions: randomPositions(3, 2)})
	resp, body := httpJSON(t, http.MethodPost, srv.URL+"/v1/sessions/0/evaluate", eval)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized batch: %d %s", resp.StatusCode, body)
	}
	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("error payload: %+v", errResp)
	}
}
