package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/warpdl/warpq/common"
)

const (
	// FileName is the configuration file inside the config directory.
	FileName = "warpq.toml"
	// PolicyFileName holds the user network policy.
	PolicyFileName = "policy.toml"
	// LockFileName guards the config directory against a second daemon.
	LockFileName = "warpq.lock"
)

// Duration is a time.Duration written as a string such as "5s" in TOML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes the duration in Go notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Queue configures the wish queue and its persistence.
type Queue struct {
	// File is the queue file; relative paths are resolved against the
	// config directory.
	File             string   `toml:"file"`
	Debounce         Duration `toml:"debounce"`
	MinCheckInterval Duration `toml:"min_check_interval"`
}

// Network configures connectivity detection and the default policy.
type Network struct {
	AllowMetered       bool     `toml:"allow_metered"`
	VPNPolicy          string   `toml:"vpn_policy"`
	VPNRequiresCarrier bool     `toml:"vpn_requires_carrier"`
	MeteredInterfaces  []string `toml:"metered_interfaces"`
	VPNInterfaces      []string `toml:"vpn_interfaces"`
	PollInterval       Duration `toml:"poll_interval"`
	LosingGrace        Duration `toml:"losing_grace"`
}

// Jobs configures the deferred dispatch job.
type Jobs struct {
	MaxDelay        Duration `toml:"max_delay"`
	Backoff         Duration `toml:"backoff"`
	PollInterval    Duration `toml:"poll_interval"`
	StorageLowBytes uint64   `toml:"storage_low_bytes"`
	// Window is an optional five-field cron expression.
	Window string `toml:"window"`
}

// Launcher configures the command runner wishes are dispatched to.
type Launcher struct {
	MaxActive        int    `toml:"max_active"`
	RequeueOnFailure bool   `toml:"requeue_on_failure"`
	DownloadDir      string `toml:"download_dir"`
	// Commands maps a handler kind to an argv template. Kinds left out
	// keep the built-in template.
	Commands map[string][]string `toml:"commands"`
}

// RPC configures the JSON-RPC endpoint.
type RPC struct {
	Listen string `toml:"listen"`
	// Secret overrides the generated bearer token.
	Secret string `toml:"secret"`
}

// Resolver configures handler resolution.
type Resolver struct {
	Script        string   `toml:"script"`
	Timeout       Duration `toml:"timeout"`
	TorrentClient string   `toml:"torrent_client"`
}

// History configures the dispatch journal.
type History struct {
	Enabled bool   `toml:"enabled"`
	File    string `toml:"file"`
	// Keep bounds the number of journal entries; zero keeps everything.
	Keep int `toml:"keep"`
}

// Config is the complete daemon configuration.
type Config struct {
	LogLevel string   `toml:"log_level"`
	Queue    Queue    `toml:"queue"`
	Network  Network  `toml:"network"`
	Jobs     Jobs     `toml:"jobs"`
	Launcher Launcher `toml:"launcher"`
	RPC      RPC      `toml:"rpc"`
	Resolver Resolver `toml:"resolver"`
	History  History  `toml:"history"`

	// Dir is the config directory the file was loaded from.
	Dir string `toml:"-"`
}

// Dir returns the config directory: WARPQ_CONFIG_DIR when set, otherwise
// warpq under the user config directory.
func Dir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(common.ConfigDirEnv)); dir != "" {
		return filepath.Abs(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "warpq"), nil
}

// Path returns the configuration file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads warpq.toml from dir. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	cfg.Dir = abs

	file, err := os.Open(Path(abs))
	switch {
	case err == nil:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes c to warpq.toml in c.Dir.
func (c *Config) Save() error {
	if strings.TrimSpace(c.Dir) == "" {
		return errors.New("config dir is empty")
	}
	b, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(Path(c.Dir), b)
}

// EnsureDirectories creates the config directory and the parents of the
// queue and history files.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Dir, filepath.Dir(c.Queue.File)}
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(c.History.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// writeAtomic replaces path with data through a temp file in the same
// directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
