// Package config holds worker configuration. It is read from a YAML file
// and adjusted by command line overrides addressed with
// case.insensitive.dot.separated yaml paths.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/horockey/fit/internal/model"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Worker      Worker      `yaml:"worker"`
	Application Application `yaml:"application"`
	Registry    Registry    `yaml:"registry"`
	Security    Security    `yaml:"security"`
	Logging     Logging     `yaml:"logging"`
}

type Worker struct {
	ID          string        `yaml:"id"`
	Environment string        `yaml:"environment"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Protocol    string        `yaml:"protocol"`
	Formats     []string      `yaml:"formats"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type Application struct {
	Name       string            `yaml:"name"`
	Version    string            `yaml:"version"`
	Extensions map[string]string `yaml:"extensions"`
}

type Registry struct {
	// Server makes this worker host the registry.
	Server bool `yaml:"server"`
	// Hosts lists host:port of registry servers.
	Hosts                 []string      `yaml:"hosts"`
	Protocol              string        `yaml:"protocol"`
	SyncInterval          time.Duration `yaml:"sync_interval"`
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
	UnavailableExpiration int           `yaml:"unavailable_expiration"`
	CheckInterval         time.Duration `yaml:"check_interval"`
	GCInterval            time.Duration `yaml:"gc_interval"`
	ListenerTTL           time.Duration `yaml:"listener_ttl"`
	NotifyWorkers         int           `yaml:"notify_workers"`
}

type Security struct {
	Enabled bool `yaml:"enabled"`
	// Authority makes this worker issue and check tokens.
	Authority bool `yaml:"authority"`
	// AuthorityHosts lists host:port of authorities. Registry hosts are used
	// when empty.
	AuthorityHosts      []string      `yaml:"authority_hosts"`
	AK                  string        `yaml:"ak"`
	SK                  string        `yaml:"sk"`
	Passphrase          string        `yaml:"passphrase"`
	DataDir             string        `yaml:"data_dir"`
	AccessTokenTTL      time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL     time.Duration `yaml:"refresh_token_ttl"`
	RotateRefreshBefore time.Duration `yaml:"rotate_refresh_before"`
	MaxClockSkew        time.Duration `yaml:"max_clock_skew"`
	EvictInterval       time.Duration `yaml:"evict_interval"`
	Keys                []Key         `yaml:"keys"`
	Roles               []Role        `yaml:"roles"`
}

type Key struct {
	AK   string `yaml:"ak"`
	SK   string `yaml:"sk"`
	Role string `yaml:"role"`
}

type Role struct {
	Name        string       `yaml:"name"`
	Permissions []Permission `yaml:"permissions"`
}

type Permission struct {
	GenericID      string `yaml:"generic_id"`
	GenericVersion string `yaml:"generic_version"`
	FitableID      string `yaml:"fitable_id"`
	FitableVersion string `yaml:"fitable_version"`
}

func (p Permission) Model() model.Permission {
	return model.Permission{Fitable: model.Fitable{
		GenericID:      p.GenericID,
		GenericVersion: p.GenericVersion,
		FitableID:      p.FitableID,
		FitableVersion: p.FitableVersion,
	}}
}

type Logging struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Worker: Worker{
			ID:          uuid.NewString(),
			Host:        "127.0.0.1",
			Port:        8080,
			Protocol:    "http",
			Formats:     []string{"protobuf", "json"},
			CallTimeout: 10 * time.Second,
		},
		Registry: Registry{
			Protocol:              "http",
			SyncInterval:          10 * time.Second,
			HeartbeatInterval:     30 * time.Second,
			UnavailableExpiration: 3,
			CheckInterval:         30 * time.Second,
			GCInterval:            time.Minute,
			ListenerTTL:           2 * time.Minute,
			NotifyWorkers:         4,
		},
		Security: Security{
			AccessTokenTTL:      30 * time.Minute,
			RefreshTokenTTL:     24 * time.Hour,
			RotateRefreshBefore: time.Hour,
			MaxClockSkew:        5 * time.Minute,
			EvictInterval:       time.Minute,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return cfg, nil
}

// FromArgs loads --config_file and applies the remaining arguments as
// overrides.
func FromArgs(argv []string) (Config, error) {
	args, err := ParseArgs(argv)
	if err != nil {
		return Config{}, err
	}

	path := args[ConfigFileKey]
	delete(args, ConfigFileKey)

	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Apply(args); err != nil {
		return Config{}, fmt.Errorf("applying overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	switch {
	case cfg.Application.Name == "":
		return model.NewError(model.CodeParameter, "application.name is required")
	case cfg.Worker.ID == "":
		return model.NewError(model.CodeParameter, "worker.id is required")
	case cfg.Worker.Port <= 0 || cfg.Worker.Port > 65535:
		return model.NewError(model.CodeParameter, "worker.port %d is out of range", cfg.Worker.Port)
	case !cfg.Registry.Server && len(cfg.Registry.Hosts) == 0:
		return model.NewError(model.CodeParameter, "registry.hosts is required unless registry.server is set")
	case cfg.Security.Enabled && !cfg.Security.Authority && cfg.Security.AK == "":
		return model.NewError(model.CodeParameter, "security.ak is required for non authority workers")
	}

	for _, p := range []string{cfg.Worker.Protocol, cfg.Registry.Protocol} {
		if _, err := ParseProtocol(p); err != nil {
			return err
		}
	}
	for _, f := range cfg.Worker.Formats {
		if _, err := ParseFormat(f); err != nil {
			return err
		}
	}
	return nil
}

func ParseProtocol(s string) (model.Protocol, error) {
	switch s {
	case "http":
		return model.ProtocolHTTP, nil
	case "https":
		return model.ProtocolHTTPS, nil
	default:
		return 0, model.NewError(model.CodeParameter, "unsupported protocol %q", s)
	}
}

func ParseFormat(s string) (model.Format, error) {
	switch s {
	case "protobuf":
		return model.FormatProtobuf, nil
	case "json":
		return model.FormatJSON, nil
	default:
		return 0, model.NewError(model.CodeParameter, "unsupported format %q", s)
	}
}
