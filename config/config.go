// Package config loads the etod daemon configuration: a key = value file in
// the data directory, optionally overlaid with ETO_* environment variables.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the daemon settings.
type Config struct {
	DataDir    string // directory holding the config, database and terms
	ListenAddr string // HTTP listen address
	Network    string // "mainnet", "testnet" or "regtest"
	LogLevel   string
	LogFile    string // empty logs to stderr
	TermsFile  string // offering terms JSON; relative paths resolve against DataDir

	Company        string // hex account addresses
	Nominee        string
	PlatformWallet string

	CompanyKey string // hex compressed secp256k1 keys signing the agreement
	NomineeKey string

	// Operator holds the admin role: it may fund accounts, maintain the
	// identity registry and end the claim window early. Empty disables the
	// operator routes.
	Operator string

	// KYCZone enables DNS-published identity attestations under the zone.
	// Empty keeps the in-process identity registry.
	KYCZone   string
	DNSServer string // resolver host:port for KYCZone lookups

	// RateFeed is the JSON-RPC oracle URL for ETH/EUR. Empty keeps a fixed
	// provider that an operator must seed.
	RateFeed string
}

// configKeys maps file keys to their fields, in the order SaveConfig writes them.
var configKeys = []struct {
	key   string
	field func(*Config) *string
}{
	{"datadir", func(c *Config) *string { return &c.DataDir }},
	{"listen", func(c *Config) *string { return &c.ListenAddr }},
	{"network", func(c *Config) *string { return &c.Network }},
	{"loglevel", func(c *Config) *string { return &c.LogLevel }},
	{"logfile", func(c *Config) *string { return &c.LogFile }},
	{"terms", func(c *Config) *string { return &c.TermsFile }},
	{"company", func(c *Config) *string { return &c.Company }},
	{"nominee", func(c *Config) *string { return &c.Nominee }},
	{"platform", func(c *Config) *string { return &c.PlatformWallet }},
	{"companykey", func(c *Config) *string { return &c.CompanyKey }},
	{"nomineekey", func(c *Config) *string { return &c.NomineeKey }},
	{"operator", func(c *Config) *string { return &c.Operator }},
	{"kyczone", func(c *Config) *string { return &c.KYCZone }},
	{"dnsserver", func(c *Config) *string { return &c.DNSServer }},
	{"ratefeed", func(c *Config) *string { return &c.RateFeed }},
}

// DefaultDataDir returns ~/.eto, or .eto when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eto"
	}
	return filepath.Join(home, ".eto")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		ListenAddr: ":8080",
		Network:    "mainnet",
		LogLevel:   "info",
		TermsFile:  "terms.json",
		DNSServer:  "1.1.1.1:53",
	}
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// TermsPath resolves TermsFile against DataDir.
func (c Config) TermsPath() string {
	if c.TermsFile == "" || filepath.IsAbs(c.TermsFile) {
		return c.TermsFile
	}
	return filepath.Join(c.DataDir, c.TermsFile)
}

// DatabasePath is the bolt database file inside DataDir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "eto.db")
}

// LedgerPath is the bolt database holding token balances, identity status
// and locked legacy balances.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// DocumentsPath is the offering document archive inside DataDir.
func (c Config) DocumentsPath() string {
	return filepath.Join(c.DataDir, "docs")
}

// LoadConfig reads a key = value config file on top of DefaultConfig. Blank
// lines and # comments are skipped; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		set(&cfg, key, value)
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on its first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func set(cfg *Config, key, value string) {
	for _, k := range configKeys {
		if k.key == key {
			*k.field(cfg) = value
			return
		}
	}
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# ETO Configuration\n\n")
	for _, k := range configKeys {
		fmt.Fprintf(&b, "%s = %s\n", k.key, *k.field(&cfg))
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}

// envPrefix marks the environment variables ApplyEnv reads.
const envPrefix = "ETO_"

// LoadEnvFile reads a dotenv file into a map without touching the process
// environment.
func LoadEnvFile(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return env, nil
}

// Environ returns the ETO_* variables of the process environment.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, envPrefix) {
			env[k] = v
		}
	}
	return env
}

// ApplyEnv overlays ETO_<KEY> variables (ETO_DATADIR, ETO_LISTEN, ...) onto
// cfg and returns the names it applied.
func ApplyEnv(cfg *Config, env map[string]string) []string {
	var applied []string
	for _, k := range configKeys {
		name := envPrefix + strings.ToUpper(k.key)
		if v, ok := env[name]; ok {
			*k.field(cfg) = v
			applied = append(applied, name)
		}
	}
	return applied
}

// NewLogger builds the daemon logger. The returned closer releases the log
// file, if any.
func NewLogger(cfg Config) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.LogFile == "" {
		log.SetOutput(os.Stderr)
		return log, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open log file: %w", err)
	}
	log.SetOutput(f)
	return log, f, nil
}
