package config

import (
	"time"

	"github.com/warpdl/warpq/internal/netprobe"
	"github.com/warpdl/warpq/internal/resolver"
	"github.com/warpdl/warpq/internal/scheduler"
	"github.com/warpdl/warpq/pkg/wishlib"
)

const (
	defaultQueueFile   = "queue.txt"
	defaultHistoryFile = "history.db"
	defaultListen      = "127.0.0.1:7493"
	defaultMaxDelay    = 6 * time.Hour
	defaultBackoff     = 30 * time.Second
	defaultStorageLow  = 512 << 20
	defaultHistoryKeep = 1000
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Queue: Queue{
			File:             defaultQueueFile,
			Debounce:         Duration(wishlib.DefaultDebounceDelay),
			MinCheckInterval: Duration(wishlib.MinCheckInterval),
		},
		Network: Network{
			AllowMetered:       true,
			VPNPolicy:          "allow",
			VPNRequiresCarrier: true,
			MeteredInterfaces:  append([]string(nil), netprobe.DefaultMeteredInterfaces...),
			VPNInterfaces:      append([]string(nil), netprobe.DefaultVPNInterfaces...),
			PollInterval:       Duration(netprobe.DefaultPollInterval),
			LosingGrace:        Duration(netprobe.DefaultLosingGrace),
		},
		Jobs: Jobs{
			MaxDelay:        Duration(defaultMaxDelay),
			Backoff:         Duration(defaultBackoff),
			PollInterval:    Duration(scheduler.DefaultPollInterval),
			StorageLowBytes: defaultStorageLow,
		},
		Launcher: Launcher{
			MaxActive: 1,
		},
		RPC: RPC{
			Listen: defaultListen,
		},
		Resolver: Resolver{
			Timeout: Duration(resolver.DefaultTimeout),
		},
		History: History{
			Enabled: true,
			File:    defaultHistoryFile,
			Keep:    defaultHistoryKeep,
		},
	}
}
