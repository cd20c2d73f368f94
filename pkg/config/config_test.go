package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rexliu/ksdk/pkg/core"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
profileName = "prod"

[service]
url = "https://api.example.com"
format = "json"
clientTag = "ksdk:test"

[service.proxy]
host = "proxy.local"
port = 1080
type = "SOCKS5"

[service.headers]
X-Trace = "1"

[session]
partnerId = 123
secret = "s3cr3t"
type = 2

[journal]
enabled = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProfileName != "prod" || cfg.Session.PartnerID != 123 || cfg.Session.Type != 2 {
		t.Fatalf("unexpected profile %+v", cfg)
	}
	if cfg.Service.TimeoutSeconds != 120 || !cfg.Service.VerifySSL || cfg.Session.Version != 2 {
		t.Fatalf("expected defaults to survive, got %+v", cfg.Service)
	}
	if cfg.Journal.DBPath != filepath.Join(filepath.Dir(path), "journal.db") {
		t.Fatalf("expected journal next to config, got %s", cfg.Journal.DBPath)
	}

	cc := cfg.ClientConfig()
	if cc.Format != core.FormatJSON || cc.Timeout != 120*time.Second || cc.ProxyPort != 1080 || cc.ProxyType != "SOCKS5" {
		t.Fatalf("unexpected client config %+v", cc)
	}
	if cc.RequestHeaders["X-Trace"] != "1" {
		t.Fatalf("expected request header, got %v", cc.RequestHeaders)
	}
	if cfg.ClientParams()["clientTag"] != "ksdk:test" {
		t.Fatalf("expected clientTag, got %v", cfg.ClientParams())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yml", `
profileName: staging
service:
  url: https://staging.example.com
  verifySSL: false
session:
  partnerId: 7
  secretEnv: KSDK_TEST_SECRET
  version: 1
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.URL != "https://staging.example.com" || cfg.Service.VerifySSL || cfg.Service.Format != "xml" {
		t.Fatalf("unexpected service %+v", cfg.Service)
	}
	if cfg.Session.Version != 1 || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected profile %+v", cfg)
	}

	t.Setenv("KSDK_TEST_SECRET", "from-env")
	secret, err := cfg.Session.ResolveSecret()
	if err != nil || secret != "from-env" {
		t.Fatalf("expected secret from env, got %q %v", secret, err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"format":  "[service]\nformat = \"php\"\n",
		"type":    "[session]\ntype = 1\n",
		"version": "[session]\nversion = 3\n",
		"proxy":   "[service.proxy]\ntype = \"FTP\"\n",
		"level":   "[logging]\nlevel = \"loud\"\n",
		"timeout": "[service]\ntimeoutSeconds = 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "config.toml", body)); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}

	if _, err := (SessionConfig{}).ResolveSecret(); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestSave(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Session.PartnerID = 42
			cfg.Service.Headers = map[string]string{"X-A": "b"}
			if err := Save(path, cfg); err != nil {
				t.Fatalf("save: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Fatalf("expected 0600, got %v", info.Mode().Perm())
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Session.PartnerID != 42 || loaded.Service.Headers["X-A"] != "b" {
				t.Fatalf("unexpected reload %+v", loaded)
			}
		})
	}

	bad := Default()
	bad.ProfileName = ""
	if err := Save(filepath.Join(t.TempDir(), "x.toml"), bad); err == nil || !strings.Contains(err.Error(), "profileName") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	if got, _ := ResolvePath("/tmp/a.toml"); got != "/tmp/a.toml" {
		t.Fatalf("expected explicit path, got %s", got)
	}
	t.Setenv(EnvPath, "/tmp/env.yaml")
	if got, _ := ResolvePath(""); got != "/tmp/env.yaml" {
		t.Fatalf("expected env path, got %s", got)
	}
}
