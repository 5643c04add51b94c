package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/ideshell/internal/logger"
	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/process"
	"github.com/loykin/ideshell/internal/workspace"
)

// EnvPrefix prefixes environment overrides: IDESHELL_SERVER_LISTEN, ...
const EnvPrefix = "IDESHELL"

// Config represents the daemon's TOML file.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Metastore MetastoreConfig `mapstructure:"metastore"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Files     FilesConfig     `mapstructure:"files"`
	Log       logger.Config   `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	History   HistoryConfig   `mapstructure:"history"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

type MetastoreConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkspaceConfig locates service trees: <root>/<id>/<apps_dir>/<dir>.
// Services maps service ids to directory names. Keys are lower-cased by viper.
type WorkspaceConfig struct {
	Root     string            `mapstructure:"root"`
	ID       string            `mapstructure:"id"`
	AppsDir  string            `mapstructure:"apps_dir"`
	Services map[string]string `mapstructure:"services"`
}

type PreviewConfig struct {
	Command     string        `mapstructure:"command"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	Host        string        `mapstructure:"host"`
	Env         []string      `mapstructure:"env"`
	EnvFiles    []string      `mapstructure:"env_files"`
}

type FilesConfig struct {
	Rollback bool `mapstructure:"rollback"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":3000")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("metastore.url", metastore.DefaultConfig().BaseURL)
	v.SetDefault("metastore.timeout", metastore.DefaultConfig().Timeout)
	v.SetDefault("workspace.root", "./moc-workspace")
	v.SetDefault("workspace.id", "ws-1")
	v.SetDefault("workspace.apps_dir", "apps")
	v.SetDefault("workspace.services", map[string]string{"svc-1": "service-1", "svc-2": "service-2"})
	v.SetDefault("preview.command", process.DefaultCommand)
	v.SetDefault("preview.grace_period", 3*time.Second)
	v.SetDefault("preview.host", "localhost")
	v.SetDefault("preview.env", []string{})
	v.SetDefault("preview.env_files", []string{})
	v.SetDefault("files.rollback", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatColor)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "sqlite://./ideshell-history.db")
}

// LoadConfig reads path (optional) on top of the defaults and applies
// IDESHELL_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if strings.TrimSpace(c.Metastore.URL) == "" {
		errs = append(errs, errors.New("metastore.url is required"))
	}
	if c.Workspace.Root == "" || c.Workspace.ID == "" {
		errs = append(errs, errors.New("workspace.root and workspace.id are required"))
	}
	if c.Preview.GracePeriod < 0 {
		errs = append(errs, errors.New("preview.grace_period must not be negative"))
	}
	if c.Preview.Command != "" && !strings.Contains(c.Preview.Command, process.PortPlaceholder) {
		errs = append(errs, fmt.Errorf("preview.command must contain %s", process.PortPlaceholder))
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DSN) == "" {
		errs = append(errs, errors.New("history.dsn is required when history is enabled"))
	}
	return errors.Join(errs...)
}

// Layout returns the disk layout described by the workspace section.
func (c *Config) Layout() workspace.Layout {
	services := make(map[string]string, len(c.Workspace.Services))
	for k, v := range c.Workspace.Services {
		services[k] = v
	}
	return workspace.Layout{
		Root:        c.Workspace.Root,
		WorkspaceID: c.Workspace.ID,
		AppsDir:     c.Workspace.AppsDir,
		Services:    services,
	}
}

func (c *Config) MetastoreClientConfig() metastore.Config {
	return metastore.Config{BaseURL: c.Metastore.URL, Timeout: c.Metastore.Timeout}
}

// PreviewEnv merges the dev-server environment: env_files in order, then the
// env list, later entries winning.
func (c *Config) PreviewEnv() ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	for _, p := range c.Preview.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			set(kv[0], kv[1])
		}
	}
	for _, kv := range c.Preview.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			set(kv[:i], kv[i+1:])
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) ([][2]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, [2]string{strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])})
		}
	}
	return out, nil
}
