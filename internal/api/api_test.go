package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshlog/oplogsync/internal/logging"
	"github.com/meshlog/oplogsync/internal/oplog/manifest"
	"github.com/meshlog/oplogsync/internal/storage/accesscontroller"
)

type fakePeerLister struct{ ids []peer.ID }

func (f *fakePeerLister) Peers() []peer.ID { return f.ids }

type fakeManifestLoader struct {
	m   manifest.Manifest
	err error
}

func (f *fakeManifestLoader) Load(ctx context.Context, hash string) (manifest.Manifest, error) {
	return f.m, f.err
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.Default())
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := New(&fakePeerLister{}, &fakeManifestLoader{}, nil, testLogger(), logging.Environment{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePeers_ListsEngagedPeers(t *testing.T) {
	s := New(&fakePeerLister{ids: []peer.ID{"peer-a", "peer-b"}}, &fakeManifestLoader{}, nil, testLogger(), logging.Environment{})

	req := httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct{ Peers []string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.ElementsMatch(t, []string{"peer-a", "peer-b"}, body.Peers)
}

func TestHandleManifest_NotFound(t *testing.T) {
	s := New(&fakePeerLister{}, &fakeManifestLoader{err: assert.AnError}, nil, testLogger(), logging.Environment{})

	req := httptest.NewRequest(http.MethodGet, "/manifest/bafkqaaa", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePeers_RequiresBearerTokenWhenAccessControllerConfigured(t *testing.T) {
	access := accesscontroller.New([]byte("secret"))
	s := New(&fakePeerLister{ids: []peer.ID{"peer-a"}}, &fakeManifestLoader{}, access, testLogger(), logging.Environment{})

	req := httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := access.Grant("/peers", accesscontroller.OpAdmin, time.Minute)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/peers", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
