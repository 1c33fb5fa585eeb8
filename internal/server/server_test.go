package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/app"
	"fleet-manifests/internal/types"
)

const (
	adminToken  = "admin-secret"
	clientToken = "client-secret"
	clientID    = "laptop-0042"
)

const serverSeed = `
kind: catalog
name: stable
entries:
  - {name: Firefox, version: "121.0"}
  - {name: Python, version: "3.12.1"}
  - {name: Ansible, version: "9.0", requires: [Python]}
---
kind: manifest
name: site_default
manifest:
  catalogs: [stable]
  includes:
    - name: eng
      condition: '"eng" IN tags'
  installs:
    - name: Firefox
---
kind: manifest
name: eng
manifest:
  installs:
    - name: Ansible
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(serverSeed), 0644))
	svc := app.NewService()
	_, err := svc.Seed(t.Context(), app.SeedRequest{Dir: dir})
	require.NoError(t, err)

	auth := adapters.NewTokenAuthAdapter(adminToken, map[string]string{clientToken: clientID})
	srv := New(svc, auth, Options{Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, body any, headers ...string) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, &payload)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAuthZones(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is public", http.MethodGet, "/healthz", "", http.StatusOK},
		{"client without token", http.MethodPost, "/manifests", "", http.StatusUnauthorized},
		{"client with admin token", http.MethodPost, "/manifests", adminToken, http.StatusUnauthorized},
		{"admin with client token", http.MethodGet, "/admin/clients", clientToken, http.StatusUnauthorized},
		{"cron without token", http.MethodPost, "/cron/drift", "", http.StatusUnauthorized},
		{"admin with admin token", http.MethodGet, "/admin/clients", adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, ts, tt.method, tt.path, tt.token, map[string]any{})
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCheckinReportLifecycle(t *testing.T) {
	ts := newTestServer(t)
	attrs := map[string]any{"attributes": map[string]any{"tags": []string{"eng"}}}

	resp := doRequest(t, ts, http.MethodPost, "/manifests", clientToken, attrs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	result := decodeBody[types.ResolutionResult](t, resp)
	assert.Equal(t, clientID, result.ClientID)
	assert.Equal(t, `"`+result.Fingerprint+`"`, etag)

	var names []string
	for _, item := range result.Plan.Items {
		names = append(names, item.Name)
	}
	if diff := cmp.Diff([]string{"Python", "Ansible", "Firefox"}, names); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}

	resp = doRequest(t, ts, http.MethodPost, "/manifests", clientToken, attrs, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Equal(t, etag, resp.Header.Get("ETag"))

	resp = doRequest(t, ts, http.MethodPost, "/reports", clientToken, reportRequest{
		ResolutionID: result.ID,
		Outcomes:     []types.OutcomeReport{{Name: "Firefox", Status: types.OutcomeInstalled, Version: "121.0"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeBody[reportResponse](t, resp)
	assert.Equal(t, result.ID, report.ResolutionID)
	assert.Equal(t, []string{"Ansible", "Python"}, report.Drift)

	resp = doRequest(t, ts, http.MethodGet, "/admin/drift/"+clientID, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	drift := decodeBody[driftResponse](t, resp)
	assert.Equal(t, []string{"Ansible", "Python"}, drift.Drift)

	resp = doRequest(t, ts, http.MethodPost, "/cron/drift", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sweep := decodeBody[sweepResponse](t, resp)
	require.Len(t, sweep.Drift, 1)
	assert.Equal(t, clientID, sweep.Drift[0].ClientID)

	resp = doRequest(t, ts, http.MethodGet, "/admin/clients", adminToken, nil)
	clients := decodeBody[[]types.ClientSummary](t, resp)
	require.Len(t, clients, 1)
	assert.Equal(t, result.ID, clients[0].ResolutionID)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	checkin := map[string]any{"attributes": map[string]any{}}
	resp := doRequest(t, ts, http.MethodPost, "/manifests", clientToken, checkin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody[types.ResolutionResult](t, resp)

	// a changed plan supersedes the first resolution
	resp = doRequest(t, ts, http.MethodPost, "/manifests", clientToken, map[string]any{"attributes": map[string]any{"tags": "eng"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
		kind   string
	}{
		{"stale report", http.MethodPost, "/reports", reportRequest{ResolutionID: first.ID}, http.StatusConflict, string(types.KindStaleResolution)},
		{"report without id", http.MethodPost, "/reports", reportRequest{}, http.StatusBadRequest, ""},
		{"unknown catalog", http.MethodGet, "/catalogs/nightly", nil, http.StatusNotFound, string(types.KindNotFound)},
		{"bad as_of", http.MethodGet, "/catalogs/stable?as_of=yesterday", nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, ts, tt.method, tt.path, clientToken, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			body := decodeBody[errorBody](t, resp)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.URL+"/manifests", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+clientToken)
	bad, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestAdminPublishing(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPut, "/admin/catalogs/stable", adminToken, publishRequest{
		Entries: []types.PackageEntry{{Name: "Firefox", Version: "122.0"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, versionResponse{Name: "stable", Version: 2}, decodeBody[versionResponse](t, resp))

	resp = doRequest(t, ts, http.MethodGet, "/catalogs/stable", clientToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	catalog := decodeBody[types.Catalog](t, resp)
	assert.Equal(t, 2, catalog.Version)

	resp = doRequest(t, ts, http.MethodPut, "/admin/manifests/kiosk", adminToken, types.Manifest{
		Catalogs: []string{"stable"},
		Installs: []types.PackageRef{{Name: "Firefox"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeBody[versionResponse](t, resp).Version)

	resp = doRequest(t, ts, http.MethodGet, "/admin/manifests/kiosk", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "kiosk", decodeBody[types.Manifest](t, resp).Name)

	resp = doRequest(t, ts, http.MethodPut, "/admin/aliases", adminToken, aliasesRequest{
		Aliases: []types.Alias{{Name: "browser", Target: "Firefox", Enabled: true}},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodPut, "/admin/modifications", adminToken, modificationsRequest{
		Modifications: []types.Modification{{Type: types.ModificationTag, Target: "eng", Value: "-Firefox", Enabled: true}},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodPost, "/manifests", clientToken, map[string]any{"attributes": map[string]any{"tags": "eng"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[types.ResolutionResult](t, resp)
	for _, item := range result.Installs() {
		assert.NotEqual(t, "Firefox", item.Name)
	}
}
