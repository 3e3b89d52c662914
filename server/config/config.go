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
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServerSection configures the HTTP listener and process-wide behavior.
type ServerSection struct {
	Address  string `mapstructure:"address" validate:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Instance string `mapstructure:"instance" validate:"omitempty,alphanumunicode"`

	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=none error warn info debug"`
	LogJSON  bool   `mapstructure:"log_json"`

	// HeaderServer and HeaderCacheControl are emitted on every response when
	// non-empty, mirroring what a fronting web server would otherwise set.
	HeaderServer       string `mapstructure:"header_server"`
	HeaderCacheControl string `mapstructure:"header_cache_control"`
}

// AuthSection holds the transport-safety policy. All flags concern requests
// arriving over plaintext HTTP; requests over TLS (or marked HTTPS by the
// reverse proxy) are never restricted by them.
type AuthSection struct {
	// AllowAuthNone disables authentication and authorization entirely.
	// Every request then executes as the built-in administrator. Meant for
	// bring-up and simulators, never production.
	AllowAuthNone bool `mapstructure:"allow_auth_none"`

	AllowAuthenticatedAPIsOverHTTP bool `mapstructure:"allow_authenticated_apis_over_http"`
	AllowBasicAuthOverHTTP         bool `mapstructure:"allow_basic_auth_over_http"`
	AllowSessionLoginOverHTTP      bool `mapstructure:"allow_session_login_over_http"`
	AllowCredentialUpdateOverHTTP  bool `mapstructure:"allow_credential_update_over_http"`
}

// StorageSection locates the writable database directory.
type StorageSection struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

// Config is the process configuration loaded at startup. Runtime-tunable
// values (lockout thresholds, session timeout) live in the persisted service
// databases instead, because the Redfish API PATCHes them.
type Config struct {
	Server  ServerSection  `mapstructure:"server"`
	Auth    AuthSection    `mapstructure:"auth"`
	Storage StorageSection `mapstructure:"storage"`
}

func setDefaults() {
	viper.SetDefault("server.address", "127.0.0.1")
	viper.SetDefault("server.port", 5001)
	viper.SetDefault("server.instance", "redrock")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.log_json", false)
	viper.SetDefault("server.header_cache_control", "no-store")

	viper.SetDefault("auth.allow_auth_none", false)
	viper.SetDefault("auth.allow_authenticated_apis_over_http", true)
	viper.SetDefault("auth.allow_basic_auth_over_http", true)
	viper.SetDefault("auth.allow_session_login_over_http", true)
	viper.SetDefault("auth.allow_credential_update_over_http", true)

	viper.SetDefault("storage.data_dir", "./data")
}

// Load reads the configuration from an optional YAML file plus REDROCK_*
// environment overrides and validates the result. An empty path falls back
// to a "redrock.yml" search in the working directory and /etc/redrock.
func Load(path string) (*Config, error) {
	viper.SetEnvPrefix("redrock")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("redrock")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/redrock")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
