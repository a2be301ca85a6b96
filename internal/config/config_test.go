package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "vidtags.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsFlags(t *testing.T) {
	cfg, err := Load("vidtags-server", []string{"-jwt-key", "k", "-store", "memory", "-admins", "a@example.com, b@example.com"})
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Admins)
	require.Equal(t, 4, cfg.Events.Workers)
	require.Equal(t, "https://www.youtube.com/oembed", cfg.Metadata.OEmbed().Endpoint)
	require.Equal(t, 10, cfg.Auth.Policy().MaxFails)
}

func TestLoad_FileThenFlags(t *testing.T) {
	p := writeFile(t, `
addr: ":7000"
store: memory
jwt_key: from-file
admins: [ops@example.com]
reconcile_interval: 30s
events:
  workers: 8
metadata:
  rate: 2.5
`)
	cfg, err := Load("vidtags-server", []string{"-config", p, "-addr", ":7001"})
	require.NoError(t, err)
	require.Equal(t, ":7001", cfg.Addr, "flag wins over file")
	require.Equal(t, "from-file", cfg.JWTKey)
	require.Equal(t, []string{"ops@example.com"}, cfg.Admins)
	require.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	require.Equal(t, 8, cfg.Events.Workers)
	require.Equal(t, 256, cfg.Events.Buffer, "unset keys keep defaults")
	require.InDelta(t, 2.5, cfg.Metadata.Rate, 1e-9)
}

func TestLoad_EnvKey(t *testing.T) {
	t.Setenv(EnvJWTKey, "from-env")
	cfg, err := Load("vidtags-server", []string{"-store", "memory"})
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.JWTKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvJWTKey, "")

	_, err := Load("vidtags-server", []string{"-nope"})
	require.Error(t, err)

	_, err = Load("vidtags-server", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorContains(t, err, "read config")

	_, err = Load("vidtags-server", []string{"-config", writeFile(t, "addr: [")})
	require.ErrorContains(t, err, "parse config")

	_, err = Load("vidtags-server", nil)
	require.ErrorContains(t, err, "missing jwt signing key")
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ok := Default()
	ok.JWTKey = "k"
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Store = "sqlite"
	bad.Events.Workers = 0
	bad.MaxBatch = -1
	err := bad.Validate()
	require.ErrorContains(t, err, `unknown store "sqlite"`)
	require.ErrorContains(t, err, "event workers")
	require.ErrorContains(t, err, "max batch")

	lock := ok
	lock.Auth.Window = 0
	require.ErrorContains(t, lock.Validate(), "auth lockout")
	lock.Auth.MaxFails = 0
	require.NoError(t, lock.Validate())

	noTLS := ok
	noTLS.TLSCert = ""
	require.Error(t, noTLS.Validate())
	noTLS.Dev = true
	require.NoError(t, noTLS.Validate())
}
