package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/4001"}, c.ListenAddrs)
	assert.Equal(t, "memory", c.StorageBackend)
	assert.Equal(t, 30*time.Second, c.HandshakeTimeout)
	assert.Equal(t, ":8080", c.AdminHTTPAddr)
	assert.Equal(t, "", c.AccessControllerSecretKey)
}

func TestLoad_UsesDefaultsWhenNoFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"oplogpeerd"}

	c := Load()
	require.NotNil(t, c)
	assert.Equal(t, "memory", c.StorageBackend)
	assert.Equal(t, ":8080", c.AdminHTTPAddr)
}

func TestLoad_YAMLOverlayWinsOverDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte(""+
		"log_id: /orbitdb/bafkqaaa/db\n"+
		"storage_backend: postgres\n"+
		"handshake_timeout: 15s\n"+
		"admin_http_addr: :9090\n",
	), 0o600))

	os.Args = []string{"oplogpeerd", "-c", path}

	c := Load()
	assert.Equal(t, "/orbitdb/bafkqaaa/db", c.LogID)
	assert.Equal(t, "postgres", c.StorageBackend)
	assert.Equal(t, 15*time.Second, c.HandshakeTimeout)
	assert.Equal(t, ":9090", c.AdminHTTPAddr)
}

func TestLoad_FlagsWinOverYAML(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("admin_http_addr: :9090\n"), 0o600))

	os.Args = []string{"oplogpeerd", "-c", path, "-a", ":7070"}

	c := Load()
	assert.Equal(t, ":7070", c.AdminHTTPAddr)
}

func TestSplitNonEmpty(t *testing.T) {
	assert.Nil(t, splitNonEmpty(""))
	assert.Equal(t, []string{"a", "b"}, splitNonEmpty("a,b"))
	assert.Equal(t, []string{"a"}, splitNonEmpty("a,,"))
}
