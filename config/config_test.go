package config

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ListenAddr", cfg.ListenAddr, ":8080"},
		{"Network", cfg.Network, "mainnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"TermsFile", cfg.TermsFile, "terms.json"},
		{"KYCZone", cfg.KYCZone, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	original := Config{
		DataDir:        "/tmp/test-eto",
		ListenAddr:     ":9000",
		Network:        "testnet",
		LogLevel:       "debug",
		LogFile:        "/tmp/eto.log",
		TermsFile:      "/etc/eto/terms.json",
		Company:        "0x00000000000000000000000000000000000000c1",
		Nominee:        "0x00000000000000000000000000000000000000c2",
		PlatformWallet: "0x00000000000000000000000000000000000000c3",
		Operator:       "0x00000000000000000000000000000000000000ad",
		KYCZone:        "kyc.example.com",
		DNSServer:      "9.9.9.9:53",
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded != original {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

func TestSaveConfig_OutputContainsHeaderAndKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# ETO Configuration") {
		t.Error("saved config should contain header '# ETO Configuration'")
	}
	for _, key := range []string{"datadir", "listen", "network", "loglevel", "logfile", "terms", "kyczone"} {
		if !strings.Contains(content, key+" = ") {
			t.Errorf("saved config should contain key %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// LoadConfig parser tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigInvalidLine(t *testing.T) {
	for _, content := range []string{"this-is-not-key-value\n", "= value\n"} {
		_, err := LoadConfig(writeConfig(t, content))
		if !errors.Is(err, ErrInvalidConfigLine) {
			t.Errorf("LoadConfig %q: got %v, want ErrInvalidConfigLine", content, err)
		}
	}
}

func TestLoadConfigCommentsAndBlanks(t *testing.T) {
	content := `# This is a comment
network = testnet

# Another comment
loglevel = debug
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	// Unset fields keep their defaults.
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want default %q", cfg.ListenAddr, ":8080")
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "futurekey = futurevalue\nnetwork = testnet\n"))
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

func TestLoadConfig_MultipleEquals(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "logfile=/tmp/a=b.log\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogFile != "/tmp/a=b.log" {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, "/tmp/a=b.log")
	}
}

func TestLoadConfig_WhitespaceAndCase(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "  Network = testnet  \n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	path := writeConfig(t, "network=testnet\n")
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig on unreadable file: expected error, got nil")
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("LoadConfig on unreadable file should not return ErrConfigNotFound")
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"empty_datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"bad_network", func(c *Config) { c.Network = "devnet" }, ErrInvalidNetwork},
		{"empty_network", func(c *Config) { c.Network = "" }, ErrInvalidNetwork},
		{"bad_listen_addr", func(c *Config) { c.ListenAddr = "not-a-valid-addr" }, ErrInvalidListenAddr},
		{"empty_listen_addr", func(c *Config) { c.ListenAddr = "" }, ErrInvalidListenAddr},
		{"bad_loglevel", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"empty_terms", func(c *Config) { c.TermsFile = "" }, ErrEmptyTermsFile},
		{"bad_company", func(c *Config) { c.Company = "0xnothex" }, ErrInvalidAddress},
		{"short_nominee", func(c *Config) { c.Nominee = "0x1234" }, ErrInvalidAddress},
		{"bad_operator", func(c *Config) { c.Operator = "operator" }, ErrInvalidAddress},
		{"bad_company_key", func(c *Config) { c.CompanyKey = "zz" }, ErrInvalidPublicKey},
		{"short_nominee_key", func(c *Config) { c.NomineeKey = "02abcd" }, ErrInvalidPublicKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParsePublicKey(t *testing.T) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	want := priv.PubKey().Compressed()
	for _, in := range []string{hex.EncodeToString(want), "0x" + hex.EncodeToString(want)} {
		pub, err := ParsePublicKey(in)
		if err != nil {
			t.Fatalf("ParsePublicKey(%q): %v", in, err)
		}
		if got := hex.EncodeToString(pub.Compressed()); got != hex.EncodeToString(want) {
			t.Errorf("ParsePublicKey(%q) = %s", in, got)
		}
	}

	cfg := DefaultConfig()
	cfg.CompanyKey = hex.EncodeToString(want)
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig with valid key: %v", err)
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error", "dEbUg"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with LogLevel %q: %v", level, err)
			}
		})
	}
}

func TestValidateConfig_ValidListenAddrVariants(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:80", "0.0.0.0:443", ":8080", "localhost:3000", "[::1]:8080"} {
		t.Run(addr, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ListenAddr = addr
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with ListenAddr %q: %v", addr, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	if got, want := ConfigPath("/home/user/.eto"), filepath.Join("/home/user/.eto", "config"); got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
	if got, want := ConfigPath("/foo/"), filepath.Join("/foo", "config"); got != want {
		t.Errorf("ConfigPath(%q) = %q, want %q", "/foo/", got, want)
	}
}

func TestDefaultDataDir_EndsWith_DotEto(t *testing.T) {
	if dir := DefaultDataDir(); !strings.HasSuffix(dir, ".eto") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".eto")
	}
}

func TestTermsPath(t *testing.T) {
	cfg := Config{DataDir: "/data", TermsFile: "terms.json"}
	if got := cfg.TermsPath(); got != filepath.Join("/data", "terms.json") {
		t.Errorf("TermsPath relative = %q", got)
	}
	cfg.TermsFile = "/etc/terms.json"
	if got := cfg.TermsPath(); got != "/etc/terms.json" {
		t.Errorf("TermsPath absolute = %q", got)
	}
	if got := cfg.DatabasePath(); got != filepath.Join("/data", "eto.db") {
		t.Errorf("DatabasePath = %q", got)
	}
	if got := cfg.DocumentsPath(); got != filepath.Join("/data", "docs") {
		t.Errorf("DocumentsPath = %q", got)
	}
	if got := cfg.LedgerPath(); got != filepath.Join("/data", "ledger.db") {
		t.Errorf("LedgerPath = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Environment overlay
// ---------------------------------------------------------------------------

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	applied := ApplyEnv(&cfg, map[string]string{
		"ETO_LISTEN":   ":7000",
		"ETO_LOGLEVEL": "warn",
		"ETO_KYCZONE":  "kyc.example.com",
		"OTHER":        "ignored",
	})

	if len(applied) != 3 {
		t.Errorf("applied = %v, want 3 names", applied)
	}
	if cfg.ListenAddr != ":7000" || cfg.LogLevel != "warn" || cfg.KYCZone != "kyc.example.com" {
		t.Errorf("ApplyEnv result = %+v", cfg)
	}
	if cfg.Network != "mainnet" {
		t.Errorf("Network = %q, want untouched default", cfg.Network)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# overrides\nETO_NETWORK=testnet\nETO_TERMS=\"/srv/terms.json\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	env, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	cfg := DefaultConfig()
	ApplyEnv(&cfg, env)
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want testnet", cfg.Network)
	}
	if cfg.TermsFile != "/srv/terms.json" {
		t.Errorf("TermsFile = %q, want /srv/terms.json", cfg.TermsFile)
	}

	if _, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadEnvFile on missing file: expected error")
	}
}

func TestEnviron(t *testing.T) {
	t.Setenv("ETO_DATADIR", "/env/data")
	env := Environ()
	if env["ETO_DATADIR"] != "/env/data" {
		t.Errorf("Environ()[ETO_DATADIR] = %q", env["ETO_DATADIR"])
	}
	for k := range env {
		if !strings.HasPrefix(k, "ETO_") {
			t.Errorf("Environ returned non-ETO variable %q", k)
		}
	}
}

// ---------------------------------------------------------------------------
// Logger
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "WARN"
	cfg.LogFile = filepath.Join(t.TempDir(), "eto.log")

	log, closer, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", log.GetLevel())
	}
	log.Warn("written")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "written") {
		t.Errorf("log file = %q, want the message", data)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	if _, _, err := NewLogger(cfg); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("NewLogger: got %v, want ErrInvalidLogLevel", err)
	}
}
