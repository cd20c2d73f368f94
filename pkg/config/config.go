// Package config loads and saves ksdk profile files. A profile is TOML unless
// its extension is .yaml or .yml.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rexliu/ksdk/pkg/client"
	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/session"
)

// EnvPath overrides the default profile location.
const EnvPath = "KSDK_CONFIG"

// ProxyConfig routes requests through an HTTP or SOCKS5 proxy.
type ProxyConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Type     string `toml:"type" yaml:"type"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
}

// ServiceConfig defines the API endpoint and transport.
type ServiceConfig struct {
	URL            string            `toml:"url" yaml:"url"`
	Format         string            `toml:"format" yaml:"format"`
	TimeoutSeconds int               `toml:"timeoutSeconds" yaml:"timeoutSeconds"`
	UserAgent      string            `toml:"userAgent" yaml:"userAgent"`
	ClientTag      string            `toml:"clientTag" yaml:"clientTag"`
	VerifySSL      bool              `toml:"verifySSL" yaml:"verifySSL"`
	Proxy          ProxyConfig       `toml:"proxy" yaml:"proxy"`
	Headers        map[string]string `toml:"headers" yaml:"headers"`
}

// SessionConfig holds what is needed to mint session tokens.
type SessionConfig struct {
	PartnerID  int    `toml:"partnerId" yaml:"partnerId"`
	Secret     string `toml:"secret" yaml:"secret"`
	SecretEnv  string `toml:"secretEnv" yaml:"secretEnv"`
	UserID     string `toml:"userId" yaml:"userId"`
	Type       int    `toml:"type" yaml:"type"`
	Expiry     int64  `toml:"expiry" yaml:"expiry"`
	Privileges string `toml:"privileges" yaml:"privileges"`
	Version    int    `toml:"version" yaml:"version"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level       string `toml:"level" yaml:"level"`
	FilePath    string `toml:"filePath" yaml:"filePath"`
	FileMaxSize int    `toml:"fileMaxSizeMB" yaml:"fileMaxSizeMB"`
}

// JournalConfig defines the SQLite call journal.
type JournalConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	DBPath      string `toml:"dbPath" yaml:"dbPath"`
	JournalMode string `toml:"journalMode" yaml:"journalMode"`
	Synchronous string `toml:"synchronous" yaml:"synchronous"`
}

// Profile aggregates the configuration of one API account.
type Profile struct {
	ProfileName string        `toml:"profileName" yaml:"profileName"`
	Service     ServiceConfig `toml:"service" yaml:"service"`
	Session     SessionConfig `toml:"session" yaml:"session"`
	Logging     LoggingConfig `toml:"logging" yaml:"logging"`
	Journal     JournalConfig `toml:"journal" yaml:"journal"`
}

// Default returns a profile with every optional field filled in.
func Default() *Profile {
	return &Profile{
		ProfileName: "default",
		Service: ServiceConfig{
			URL:            client.DefaultServiceURL,
			Format:         "xml",
			TimeoutSeconds: int(client.DefaultTimeout / time.Second),
			VerifySSL:      true,
			Proxy:          ProxyConfig{Type: client.ProxyHTTP},
		},
		Session: SessionConfig{
			Type:    int(session.TypeUser),
			Expiry:  session.DefaultExpiry,
			Version: 2,
		},
		Logging: LoggingConfig{Level: "info"},
		Journal: JournalConfig{JournalMode: "WAL", Synchronous: "NORMAL"},
	}
}

// ResolvePath returns path, or $KSDK_CONFIG, or config.toml in the user
// config directory.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ksdk", "config.toml"), nil
}

// Load reads a profile from path. Keys missing from the file keep their
// defaults.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Journal.Enabled && cfg.Journal.DBPath == "" {
		cfg.Journal.DBPath = filepath.Join(filepath.Dir(path), "journal.db")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path. The file holds the partner secret and is created
// readable by the owner only.
func Save(path string, cfg *Profile) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// ClientConfig maps the service section onto client settings.
func (cfg *Profile) ClientConfig() client.Config {
	out := client.DefaultConfig()
	out.ServiceURL = cfg.Service.URL
	out.Format, _ = core.ParseFormat(strings.ToLower(cfg.Service.Format))
	out.Timeout = time.Duration(cfg.Service.TimeoutSeconds) * time.Second
	out.UserAgent = cfg.Service.UserAgent
	out.VerifySSL = cfg.Service.VerifySSL
	out.ProxyHost = cfg.Service.Proxy.Host
	out.ProxyPort = cfg.Service.Proxy.Port
	out.ProxyType = cfg.Service.Proxy.Type
	out.ProxyUser = cfg.Service.Proxy.User
	out.ProxyPassword = cfg.Service.Proxy.Password
	if len(cfg.Service.Headers) > 0 {
		out.RequestHeaders = make(map[string]string, len(cfg.Service.Headers))
		for name, value := range cfg.Service.Headers {
			out.RequestHeaders[name] = value
		}
	}
	return out
}

// ClientParams returns the client-level parameters sent with every request.
func (cfg *Profile) ClientParams() map[string]any {
	out := make(map[string]any)
	if cfg.Service.ClientTag != "" {
		out["clientTag"] = cfg.Service.ClientTag
	}
	return out
}

// ResolveSecret returns the partner secret, preferring SecretEnv when set.
func (s SessionConfig) ResolveSecret() (string, error) {
	if s.SecretEnv != "" {
		if v := os.Getenv(s.SecretEnv); v != "" {
			return v, nil
		}
	}
	if s.Secret == "" {
		return "", fmt.Errorf("session.secret required")
	}
	return s.Secret, nil
}

func (cfg *Profile) validate() error {
	if cfg.ProfileName == "" {
		return fmt.Errorf("profileName required")
	}
	if cfg.Service.URL == "" {
		return fmt.Errorf("service.url required")
	}
	if _, ok := core.ParseFormat(strings.ToLower(cfg.Service.Format)); !ok {
		return fmt.Errorf("service.format %q must be json or xml", cfg.Service.Format)
	}
	if cfg.Service.TimeoutSeconds <= 0 {
		return fmt.Errorf("service.timeoutSeconds must be positive")
	}
	switch strings.ToUpper(cfg.Service.Proxy.Type) {
	case "", client.ProxyHTTP, client.ProxySOCKS5:
	default:
		return fmt.Errorf("service.proxy.type %q must be HTTP or SOCKS5", cfg.Service.Proxy.Type)
	}
	switch session.Type(cfg.Session.Type) {
	case session.TypeUser, session.TypeAdmin:
	default:
		return fmt.Errorf("session.type %d must be 0 or 2", cfg.Session.Type)
	}
	if cfg.Session.Version != 1 && cfg.Session.Version != 2 {
		return fmt.Errorf("session.version %d must be 1 or 2", cfg.Session.Version)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q unknown", cfg.Logging.Level)
	}
	if cfg.Journal.Enabled && cfg.Journal.DBPath == "" {
		return fmt.Errorf("journal.dbPath required")
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
