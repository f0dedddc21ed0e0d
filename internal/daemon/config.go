// Copyright (c) 2026 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package daemon holds the configuration of the OOB agent.
package daemon

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mmuarc/hostap/internal/atomicfile"
)

const (
	configTemplateName = "config.yaml.tmpl"

	// DefaultConfigFile is read when no --config flag is given.
	DefaultConfigFile = "/etc/noob-agent/config.yaml"
	// DefaultStateDir holds the databases when init is run without
	// --state-dir.
	DefaultStateDir = "/tmp"
)

//go:embed config.yaml.tmpl
var configFS embed.FS

var configTmpl = template.Must(
	template.New(configTemplateName).
		Funcs(template.FuncMap{
			"join": filepath.Join,
		}).
		ParseFS(configFS, configTemplateName),
)

var ErrInvalidConfig = errors.New("invalid config")

// ConfigOptions are the values substituted into the generated config.
type ConfigOptions struct {
	StateDir  string
	CLI       string
	Interface string
}

// GenerateConfig renders the config template, stores it in file and
// returns the parsed Config.
func GenerateConfig(fs afero.Fs, file string, opts ConfigOptions) (*Config, error) {
	if opts.StateDir == "" {
		opts.StateDir = DefaultStateDir
	}

	if opts.CLI == "" {
		opts.CLI = "wpa_cli"
	}

	var buf bytes.Buffer

	if err := configTmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	if err := atomicfile.WriteFileWithFs(fs, file, buf.Bytes(), 0o640); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	return parseConfig(buf.Bytes())
}

// LoadConfig loads config from disk and returns the parsed Config.
func LoadConfig(fs afero.Fs, file string) (*Config, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Config represents the set of configuration options of the OOB agent.
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	OOB           OOBConfig           `yaml:"oob"`
	Supplicant    SupplicantConfig    `yaml:"supplicant"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Validate reports settings the agent cannot run with.
func (c *Config) Validate() error {
	if c.Store.PeerDB == "" {
		return fmt.Errorf("%w: store.peer_db is required", ErrInvalidConfig)
	}

	if c.OOB.PollInterval < 0 || c.OOB.ReissueInterval < 0 || c.Store.BusyTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}

	switch c.Observability.Logging.Level {
	case "", DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Observability.Logging.Level)
	}

	return nil
}

// StoreConfig locates the database written by wpa_supplicant.
type StoreConfig struct {
	PeerDB      string        `yaml:"peer_db"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// OOBConfig controls how often OOB messages are issued.
type OOBConfig struct {
	MessageFile     string        `yaml:"message_file"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ReissueInterval time.Duration `yaml:"reissue_interval"`
	ServerInfoTTL   time.Duration `yaml:"server_info_ttl"`
}

type SupplicantConfig struct {
	CLI       string `yaml:"cli"`
	Interface string `yaml:"interface"`
}

// ServerConfig configures the OOB receiver.
type ServerConfig struct {
	Bind string `yaml:"bind"`
	DB   string `yaml:"db"`
}

// ObservabilityConfig holds configuration for logging, tracing and metrics.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LoggingConfig holds the configuration for agent logging.
type LoggingConfig struct {
	// Level defines the minimum logging severity level (debug, info, warn, error).
	Level LogLevel `yaml:"level"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Bind    string `yaml:"bind"`
	Enabled bool   `yaml:"enabled"`
}

// TracingConfig enables span export over OTLP/HTTP.
type TracingConfig struct {
	// Unmarshalled via rawTracingConfig
	Endpoint *url.URL `yaml:"-"`
	Enabled  bool     `yaml:"-"`
}

// rawTracingConfig has the endpoint as a plain string for un/marshaling.
type rawTracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Enabled  bool   `yaml:"enabled"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for TracingConfig.
func (c *TracingConfig) UnmarshalYAML(value *yaml.Node) error {
	var t rawTracingConfig

	if err := value.Decode(&t); err != nil {
		return err
	}

	c.Enabled = t.Enabled

	if t.Endpoint == "" {
		return nil
	}

	endpoint, err := url.Parse(t.Endpoint)
	if err != nil {
		return err
	}

	c.Endpoint = endpoint

	return nil
}
