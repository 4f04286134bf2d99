package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nnevald/internal/session"
	"nnevald/pkg/types"
)

// mockService implements Service with canned data and injectable errors.
type mockService struct {
	networks []types.Network
	status   types.StatusResponse
	ready    bool

	loadErr     error
	unloadErr   error
	evalErr     error
	evalResults []types.Evaluation

	loadedSlot int
	loadedSpec session.LoadSpec
}

func (m *mockService) Networks() []types.Network    { return m.networks }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) Load(slot int, spec session.LoadSpec) error {
	m.loadedSlot, m.loadedSpec = slot, spec
	return m.loadErr
}

func (m *mockService) Unload(slot int) error { return m.unloadErr }

func (m *mockService) Evaluate(slot int, positions []types.Position) ([]types.Evaluation, error) {
	if m.evalErr != nil {
		return nil, m.evalErr
	}
	return m.evalResults, nil
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetNetworks(t *testing.T) {
	svc := &mockService{networks: []types.Network{{ID: "a.nnwb", Name: "a", Path: "/n/a.nnwb"}}}
	w := doJSON(t, NewMux(svc), http.MethodGet, "/networks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.NetworksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Networks) != 1 || resp.Networks[0].ID != "a.nnwb" {
		t.Fatalf("body: %+v", resp)
	}
}

func TestGetStatus(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Slots: 32, Devices: 1, LoadsTotal: 3}}
	w := doJSON(t, NewMux(svc), http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Slots != 32 || resp.LoadsTotal != 3 {
		t.Fatalf("body: %+v", resp)
	}
}

func TestLoadSession(t *testing.T) {
	svc := &mockService{}
	body := `{"network":"a.nnwb","device":0,"max_batch":64,"precision":"reduced","fusion":"on"}`
	w := doJSON(t, NewMux(svc), http.MethodPut, "/v1/sessions/7", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.loadedSlot != 7 || svc.loadedSpec.Network != "a.nnwb" || svc.loadedSpec.MaxBatch != 64 {
		t.Fatalf("spec not forwarded: slot=%d spec=%+v", svc.loadedSlot, svc.loadedSpec)
	}
}

func TestLoadValidation(t *testing.T) {
	mux := NewMux(&mockService{})
	cases := []struct {
		name        string
		path        string
		body        string
		contentType string
		want        int
	}{
		{"missing content type", "/v1/sessions/0", `{"network":"a"}`, "text/plain", http.StatusUnsupportedMediaType},
		{"bad json", "/v1/sessions/0", `{`, "application/json", http.StatusBadRequest},
		{"empty network", "/v1/sessions/0", `{"network":" "}`, "application/json", http.StatusBadRequest},
		{"bad precision", "/v1/sessions/0", `{"network":"a","precision":"double"}`, "application/json", http.StatusBadRequest},
		{"bad fusion", "/v1/sessions/0", `{"network":"a","fusion":"sometimes"}`, "application/json", http.StatusBadRequest},
		{"non numeric slot", "/v1/sessions/first", `{"network":"a"}`, "application/json", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", w.Code, tc.want, w.Body.String())
			}
			var resp types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("error payload not JSON: %v", err)
			}
			if resp.Code != tc.want || resp.Error == "" {
				t.Fatalf("error payload: %+v", resp)
			}
		})
	}
}

func TestUnloadSession(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{}), http.MethodDelete, "/v1/sessions/3", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestEvaluateSession(t *testing.T) {
	svc := &mockService{evalResults: []types.Evaluation{{Q: 0.25, D: 0.5, P: []float32{0.1, 0.9}}}}
	body := `{"positions":[{"planes":[],"moves":[0,1]}]}`
	w := doJSON(t, NewMux(svc), http.MethodPost, "/v1/sessions/0/evaluate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.EvaluateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Q != 0.25 {
		t.Fatalf("body: %+v", resp)
	}
}

func TestHealthAndReady(t *testing.T) {
	svc := &mockService{ready: true}
	mux := NewMux(svc)
	if w := doJSON(t, mux, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
	svc.ready = false
	if w := doJSON(t, mux, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{}), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("nnevald_http_requests_total")) &&
		!bytes.Contains(w.Body.Bytes(), []byte("go_goroutines")) {
		t.Fatal("metrics exposition missing expected families")
	}
}

func TestSecurityHeader(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{}), http.MethodGet, "/healthz", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
}
