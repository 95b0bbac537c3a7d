package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warpdl/warpq/internal/netprobe"
	"github.com/warpdl/warpq/internal/resolver"
	"github.com/warpdl/warpq/internal/scheduler"
	"github.com/warpdl/warpq/pkg/wishlib"
)

// Normalize fills zero values with defaults, trims strings and resolves
// relative paths against the config directory.
func (c *Config) Normalize() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDurations()
	c.normalizeNetwork()
	c.normalizeLauncher()
	c.RPC.Listen = strings.TrimSpace(c.RPC.Listen)
	if c.RPC.Listen == "" {
		c.RPC.Listen = defaultListen
	}
	c.RPC.Secret = strings.TrimSpace(c.RPC.Secret)
	c.Jobs.Window = strings.TrimSpace(c.Jobs.Window)
	c.Resolver.TorrentClient = strings.TrimSpace(c.Resolver.TorrentClient)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Queue.File) == "" {
		c.Queue.File = defaultQueueFile
	}
	if c.Queue.File, err = c.resolvePath(c.Queue.File); err != nil {
		return fmt.Errorf("queue.file: %w", err)
	}
	if strings.TrimSpace(c.History.File) == "" {
		c.History.File = defaultHistoryFile
	}
	if c.History.File, err = c.resolvePath(c.History.File); err != nil {
		return fmt.Errorf("history.file: %w", err)
	}
	if strings.TrimSpace(c.Resolver.Script) != "" {
		if c.Resolver.Script, err = c.resolvePath(c.Resolver.Script); err != nil {
			return fmt.Errorf("resolver.script: %w", err)
		}
	}
	if strings.TrimSpace(c.Launcher.DownloadDir) == "" {
		home, herr := os.UserHomeDir()
		if herr == nil {
			c.Launcher.DownloadDir = filepath.Join(home, "Downloads")
		}
	} else if c.Launcher.DownloadDir, err = c.resolvePath(c.Launcher.DownloadDir); err != nil {
		return fmt.Errorf("launcher.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDurations() {
	if c.Queue.Debounce <= 0 {
		c.Queue.Debounce = Duration(wishlib.DefaultDebounceDelay)
	}
	if c.Queue.MinCheckInterval <= 0 {
		c.Queue.MinCheckInterval = Duration(wishlib.MinCheckInterval)
	}
	if c.Network.PollInterval <= 0 {
		c.Network.PollInterval = Duration(netprobe.DefaultPollInterval)
	}
	if c.Network.LosingGrace <= 0 {
		c.Network.LosingGrace = Duration(netprobe.DefaultLosingGrace)
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = Duration(scheduler.DefaultPollInterval)
	}
	if c.Resolver.Timeout <= 0 {
		c.Resolver.Timeout = Duration(resolver.DefaultTimeout)
	}
}

func (c *Config) normalizeNetwork() {
	c.Network.VPNPolicy = strings.ToLower(strings.TrimSpace(c.Network.VPNPolicy))
	if c.Network.VPNPolicy == "" {
		c.Network.VPNPolicy = "allow"
	}
	c.Network.MeteredInterfaces = trimList(c.Network.MeteredInterfaces)
	c.Network.VPNInterfaces = trimList(c.Network.VPNInterfaces)
}

func (c *Config) normalizeLauncher() {
	if c.Launcher.MaxActive <= 0 {
		c.Launcher.MaxActive = 1
	}
	if len(c.Launcher.Commands) == 0 {
		return
	}
	commands := make(map[string][]string, len(c.Launcher.Commands))
	for kind, argv := range c.Launcher.Commands {
		commands[strings.ToLower(strings.TrimSpace(kind))] = argv
	}
	c.Launcher.Commands = commands
}

// resolvePath expands a leading ~ and anchors relative paths at c.Dir.
func (c *Config) resolvePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Dir, p)
	}
	return filepath.Clean(p), nil
}

func trimList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
