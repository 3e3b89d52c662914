// Copyright (C) 2025 The Redrock Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "redrock.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	t.Cleanup(viper.Reset)

	cfg, err := Load(writeConfig(t, "server:\n  port: 5001\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.False(t, cfg.Auth.AllowAuthNone)
	assert.True(t, cfg.Auth.AllowBasicAuthOverHTTP)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
}

func TestLoadFileOverrides(t *testing.T) {
	viper.Reset()

	t.Cleanup(viper.Reset)

	content := `
server:
  address: 0.0.0.0
  port: 8443
  log_level: debug
  log_json: true
auth:
  allow_basic_auth_over_http: false
storage:
  data_dir: /var/lib/redrock
`

	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.True(t, cfg.Server.LogJSON)
	assert.False(t, cfg.Auth.AllowBasicAuthOverHTTP)
	assert.Equal(t, "/var/lib/redrock", cfg.Storage.DataDir)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "server:\n  log_level: chatty\n"},
		{"port out of range", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()

			t.Cleanup(viper.Reset)

			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	viper.Reset()

	t.Cleanup(viper.Reset)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
