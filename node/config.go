package node

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"zkledger.dev/node/crypto"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/resolver"
	"zkledger.dev/node/zkp"
	"zkledger.dev/node/zkp/groth16"
)

// DefaultMagic is the envelope magic of the development network.
const DefaultMagic uint32 = 0x7a6b6c31

type Config struct {
	DataDir        string          `yaml:"data_dir"`
	BindAddr       string          `yaml:"bind_addr"`
	MetricsAddr    string          `yaml:"metrics_addr"`
	Peers          []string        `yaml:"peers"`
	Magic          uint32          `yaml:"magic"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	LogLevel       string          `yaml:"log_level"`
	LogFile        string          `yaml:"log_file"`
	Digest         string          `yaml:"digest"`
	Backend        string          `yaml:"backend"`
	KeyCacheSize   int             `yaml:"key_cache_size"`
	Limits         ledger.Limits   `yaml:"limits"`
	Resolver       resolver.Config `yaml:"resolver"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".zkledger"
	}
	return filepath.Join(home, ".zkledger")
}

func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		BindAddr:       "0.0.0.0:19311",
		Magic:          DefaultMagic,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		Digest:         crypto.SHA256,
		Backend:        zkp.MockName,
		KeyCacheSize:   groth16.DefaultCacheSize,
		Limits:         ledger.DefaultLimits(),
		Resolver:       resolver.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := readFileByPath(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Peers = NormalizePeers(cfg.Peers...)
	return cfg, ValidateConfig(cfg)
}

func (c Config) YAML() ([]byte, error) { return yaml.Marshal(c) }

func readFileByPath(path string) ([]byte, error) {
	dir, name := filepath.Dir(path), filepath.Base(path)
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file name: %q", path)
	}
	return fs.ReadFile(os.DirFS(dir), name)
}

func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr: %w", err)
		}
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if _, err := crypto.New(cfg.Digest); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	switch cfg.Backend {
	case zkp.MockName:
	case groth16.Name:
		if cfg.Digest != crypto.MiMCBN254 {
			return fmt.Errorf("backend %s requires digest %s", groth16.Name, crypto.MiMCBN254)
		}
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if cfg.KeyCacheSize <= 0 {
		return errors.New("key_cache_size must be > 0")
	}
	l := cfg.Limits
	if l.StateWidth <= 0 || l.CommandWidth <= 0 || l.MaxSigners <= 0 {
		return errors.New("limits must be > 0")
	}
	if cfg.Resolver.BatchSize <= 0 || cfg.Resolver.MaxTransactions <= 0 {
		return errors.New("resolver batch_size and max_transactions must be > 0")
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
