package config

import (
	"os"
	"testing"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `tradekit:
  name: "TestApp"
  version: "1.0"
exchanges:
  binance:
    enabled: true
  okx:
    enabled: true
    sandbox: true
proxies:
- host: "10.0.0.1"
  port: 8080
journal:
  enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tradekit.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Tradekit.Name)
	}
	if !cfg.Exchanges.Okx.Sandbox {
		t.Errorf("okx sandbox flag not parsed")
	}
	if len(cfg.Proxies) != 1 || cfg.Proxies[0].Host != "10.0.0.1" {
		t.Errorf("unexpected proxies: %+v", cfg.Proxies)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging defaults not applied: %+v", cfg.Logging)
	}
}

func TestLoadConfigRejectsBadProxyPort(t *testing.T) {
	content := `tradekit:
  name: "TestApp"
  version: "1.0"
proxies:
- host: "10.0.0.1"
  port: 99999
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}

	if _, err := LoadConfig(f.Name()); err == nil {
		t.Fatalf("expected error for out-of-range proxy port")
	}
}

func TestLoadProxyPools(t *testing.T) {
	content := `pools:
- exchange: "binance"
  endpoints:
  - host: "10.0.0.2"
    port: 3128
    protocol: "http"
- exchange: "okx"
  endpoints:
  - host: "10.0.0.3"
    port: 3128
`
	f, err := os.CreateTemp("", "pools-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}

	pools, err := LoadProxyPools(f.Name())
	if err != nil {
		t.Fatalf("LoadProxyPools failed: %v", err)
	}
	eps := pools.ForExchange("binance")
	if len(eps) != 1 || eps[0].Host != "10.0.0.2" {
		t.Errorf("unexpected binance pool: %+v", eps)
	}
	if pools.ForExchange("bybit") != nil {
		t.Errorf("expected nil pool for unassigned venue")
	}
}

func TestAppEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if env := AppEnvironment(); env != EnvDevelopment {
		t.Errorf("unset APP_ENV should default to development, got %q", env)
	}

	t.Setenv("APP_ENV", "prod")
	if env := AppEnvironment(); env != EnvProduction {
		t.Errorf("alias prod not canonicalized, got %q", env)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("APP_ENV", "staging")

	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)

	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("no env file present, expected %q, got %q", defaultConfigPath, got)
	}

	if err := os.WriteFile("config.staging.yml", []byte("tradekit: {}"), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}
	if got := resolveConfigPath(""); got != "config.staging.yml" {
		t.Errorf("expected env-specific file, got %q", got)
	}
	if got := resolveConfigPath("custom.yml"); got != "custom.yml" {
		t.Errorf("explicit path must win, got %q", got)
	}
}

func TestAuthFromEnv(t *testing.T) {
	t.Setenv("TRADEKIT_OKX_KEY", "k")
	t.Setenv("TRADEKIT_OKX_SECRET", "s")
	t.Setenv("TRADEKIT_OKX_PASSPHRASE", "p")

	auth := AuthFromEnv("okx")
	if auth.Key != "k" || auth.Secret != "s" || auth.Passphrase != "p" {
		t.Fatalf("unexpected auth: %+v", auth)
	}

	empty := AuthFromEnv("bybit")
	if empty.Key != "" || empty.Secret != "" {
		t.Fatalf("expected empty auth, got %+v", empty)
	}
}
