// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromPathOverridesDefaults(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
recvTimeout: 5s
statusBarEnabled: false
handshakeMocked: true
`)
	settings, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, settings.RecvTimeout)
	assert.False(t, settings.StatusBarEnabled)
	assert.True(t, settings.HandshakeMocked)
	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Second, settings.ConnectWindow)
	assert.Equal(t, 180*time.Second, settings.BootWindow)
}

func TestLoadFromPathEmptyPathUsesDefaults(t *testing.T) {
	settings, err := LoadFromPath("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().CommandWait, settings.CommandWait)
}

func TestLoadFromPathInvalidYAML(t *testing.T) {
	path := writeFile(t, "settings.yaml", "recvTimeout: [")
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	os.Setenv("DAFUNK_RECV_TIMEOUT", "2s")
	os.Setenv("DAFUNK_STATUS_BAR", "not-a-bool")
	defer os.Unsetenv("DAFUNK_RECV_TIMEOUT")
	defer os.Unsetenv("DAFUNK_STATUS_BAR")

	settings := DefaultSettings()
	ApplyEnvOverrides(&settings)
	assert.Equal(t, 2*time.Second, settings.RecvTimeout)
	assert.True(t, settings.StatusBarEnabled)
}

func TestLoadParams(t *testing.T) {
	path := writeFile(t, "params.yaml", "access_token: abc123\nmerchant: \"\"\n")
	params, err := LoadParams(path)
	require.NoError(t, err)

	token, ok := params.Get(AccessTokenParam)
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)

	_, ok = params.Get("merchant")
	assert.False(t, ok)
}

func TestLoadParamsMissingFile(t *testing.T) {
	params, err := LoadParams(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	_, ok := params.Get(AccessTokenParam)
	assert.False(t, ok)
}
