// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from the caller's CHATSTORE_* variables and home.
func clearEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{"CHATSTORE_DATA_DIR", "CHATSTORE_HOST", "CHATSTORE_PORT", "CHATSTORE_WATCH"} {
		t.Setenv(key, "")
	}
	return home
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, strings.HasSuffix(cfg.DataDir, AppID))
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 200, cfg.Watch.DebounceMillis)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoad_ReadsHomeConfig(t *testing.T) {
	home := clearEnv(t)
	path := filepath.Join(home, ".chatstore", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 4100\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "/srv/chat"

[server]
host = "0.0.0.0"
allowed_origins = ["http://localhost:1420"]

[watch]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/chat", cfg.DataDir)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:1420"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, DefaultDebounceMillis, cfg.Watch.DebounceMillis)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nprot = 1\n"), 0644))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.prot")
}

func TestLoadFromPath_Malformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\n"), 0644))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 70000\n"), 0644))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHATSTORE_DATA_DIR", "/tmp/chat-data")
	t.Setenv("CHATSTORE_HOST", "0.0.0.0")
	t.Setenv("CHATSTORE_PORT", "8123")
	t.Setenv("CHATSTORE_WATCH", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/chat-data", cfg.DataDir)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.False(t, cfg.Watch.Enabled)
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHATSTORE_PORT", "http")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{Server: ServerConfig{RateLimitRPS: 0.5}}
	cfg.SetDefaults()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Server.RateLimitBurst)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
	assert.Equal(t, DefaultDebounceMillis, cfg.Watch.DebounceMillis)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.DataDir = " "
	cfg.Server.Port = 0
	cfg.Server.RateLimitRPS = -1
	cfg.Watch.DebounceMillis = -5

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 4)

	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{"data_dir", "server.port", "server.rate_limit_rps", "watch.debounce_millis"}, fields)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.DataDir = "/data/chat"
	cfg.Server.Port = 3999
	cfg.Server.AllowedOrigins = []string{"tauri://localhost"}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestString(t *testing.T) {
	out := Default().String()
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, "port = 3000")
	assert.Contains(t, out, "[watch]")
}
