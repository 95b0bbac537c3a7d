package config

import (
	"errors"
	"fmt"
	"net"
	"path"

	"github.com/adhocore/gronx"

	"github.com/warpdl/warpq/internal/launcher"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLauncher(); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(c.RPC.Listen); err != nil {
		return fmt.Errorf("rpc.listen: %w", err)
	}
	if c.History.Keep < 0 {
		return errors.New("history.keep must not be negative")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if _, err := netstate.ParseVPNPolicy(c.Network.VPNPolicy); err != nil {
		return fmt.Errorf("network.vpn_policy: %w", err)
	}
	for _, list := range [][]string{c.Network.MeteredInterfaces, c.Network.VPNInterfaces} {
		for _, pattern := range list {
			if _, err := path.Match(pattern, ""); err != nil {
				return fmt.Errorf("network: bad interface pattern %q: %w", pattern, err)
			}
		}
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.MaxDelay < 0 {
		return errors.New("jobs.max_delay must not be negative")
	}
	if c.Jobs.Backoff < 0 {
		return errors.New("jobs.backoff must not be negative")
	}
	if c.Jobs.Window != "" && !gronx.IsValid(c.Jobs.Window) {
		return fmt.Errorf("jobs.window: invalid cron expression %q", c.Jobs.Window)
	}
	return nil
}

func (c *Config) validateLauncher() error {
	for kind, argv := range c.Launcher.Commands {
		switch wishlib.HandlerKind(kind) {
		case wishlib.HandlerDownload, wishlib.HandlerStream, wishlib.HandlerOpen, wishlib.HandlerExternal:
		default:
			return fmt.Errorf("launcher.commands: unknown handler kind %q", kind)
		}
		if len(argv) == 0 {
			return fmt.Errorf("launcher.commands.%s: empty command", kind)
		}
	}
	return nil
}

// Policy returns the network policy configured in the [network] section.
func (c *Config) Policy() netstate.Policy {
	vpn, err := netstate.ParseVPNPolicy(c.Network.VPNPolicy)
	if err != nil {
		vpn = netstate.VPNAllow
	}
	return netstate.Policy{
		AllowMetered:       c.Network.AllowMetered,
		VPN:                vpn,
		VPNRequiresCarrier: c.Network.VPNRequiresCarrier,
	}
}

// LauncherCommands returns the built-in templates overlaid with the
// configured ones.
func (c *Config) LauncherCommands() map[wishlib.HandlerKind][]string {
	out := launcher.DefaultCommands()
	for kind, argv := range c.Launcher.Commands {
		out[wishlib.HandlerKind(kind)] = append([]string(nil), argv...)
	}
	return out
}
