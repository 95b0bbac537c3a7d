package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/warpdl/warpq/internal/config"
	"github.com/warpdl/warpq/internal/history"
	"github.com/warpdl/warpq/internal/launcher"
	"github.com/warpdl/warpq/internal/netprobe"
	"github.com/warpdl/warpq/internal/resolver"
	"github.com/warpdl/warpq/internal/scheduler"
	"github.com/warpdl/warpq/internal/server"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

// DaemonComponents holds all initialized daemon components so they can be
// torn down in one place.
type DaemonComponents struct {
	Config    *config.Config
	Tracker   *netstate.Tracker
	Scheduler *scheduler.Scheduler
	Launcher  *launcher.Launcher
	Queue     *wishlib.Queue
	History   *history.Journal
	Server    *server.Server

	cancel context.CancelFunc
	logger logger.Logger
}

// Close releases all daemon component resources in reverse order of
// initialization. Running commands are killed, the queue is flushed to
// disk and the journal is closed.
func (c *DaemonComponents) Close() {
	if c.logger != nil {
		c.logger.Info("Shutting down daemon...")
	}
	if c.Server != nil {
		c.Server.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.Launcher != nil {
		c.Launcher.Close()
	}
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil && c.logger != nil {
			c.logger.Error("Failed to flush queue: %v", err)
		}
	}
	if c.Tracker != nil {
		c.Tracker.Close()
	}
	if c.History != nil {
		_ = c.History.Close()
	}
	if c.logger != nil {
		c.logger.Info("Daemon stopped")
	}
}

// initDaemonComponents wires the daemon: connectivity tracker, resolver,
// launcher, deferred job scheduler, queue, journal and RPC server. The
// components live until ctx is done or Close is called.
//
// On error, any partially initialized components are cleaned up before returning.
var initDaemonComponents = func(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *DaemonComponents, err error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &DaemonComponents{Config: cfg, cancel: cancel, logger: log}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	policy, err := config.LoadPolicy(cfg.Dir, cfg.Policy())
	if err != nil {
		log.Warning("Ignoring stored policy: %v", err)
		policy = cfg.Policy()
	}

	probe, err := netprobe.New(netprobe.Options{
		VPNInterfaces:     cfg.Network.VPNInterfaces,
		MeteredInterfaces: cfg.Network.MeteredInterfaces,
		PollInterval:      cfg.Network.PollInterval.Std(),
		LosingGrace:       cfg.Network.LosingGrace.Std(),
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("network probe: %w", err)
	}
	c.Tracker = netstate.NewTracker(probe, log)

	res, err := resolver.New(resolver.Options{
		ScriptPath:    cfg.Resolver.Script,
		Timeout:       cfg.Resolver.Timeout.Std(),
		TorrentClient: cfg.Resolver.TorrentClient,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	// the launcher and the scheduler call back into the queue, which is
	// built last because it needs both
	var q *wishlib.Queue
	c.Launcher = launcher.New(ctx, launcher.Options{
		Commands:         cfg.LauncherCommands(),
		DownloadDir:      cfg.Launcher.DownloadDir,
		MaxActive:        cfg.Launcher.MaxActive,
		RequeueOnFailure: cfg.Launcher.RequeueOnFailure,
		FileName:         func(uri, name string) { q.SetFileName(uri, name) },
		OnFinish:         func(wishlib.Wish, error) { go q.NextPlease(false) },
		Requeue:          func(w *wishlib.Wish) { q.Add(w) },
		Logger:           log,
	})

	var consumer wishlib.Consumer = c.Launcher
	if cfg.History.Enabled {
		c.History, err = history.Open(cfg.History.File)
		if err != nil {
			return nil, err
		}
		if cfg.History.Keep > 0 {
			if n, err := c.History.Prune(ctx, cfg.History.Keep); err != nil {
				log.Warning("Failed to prune history: %v", err)
			} else if n > 0 {
				log.Info("Pruned %d history entries", n)
			}
		}
		consumer = history.Wrap(c.Launcher, c.History, log)
	}

	c.Scheduler = scheduler.New(ctx, func(jctx context.Context) bool {
		return q.Trampoline(jctx)
	}, scheduler.Options{
		Conditions:      c.Tracker,
		StorageDir:      cfg.Launcher.DownloadDir,
		StorageLowBytes: cfg.Jobs.StorageLowBytes,
		PollInterval:    cfg.Jobs.PollInterval.Std(),
		Logger:          log,
	})

	q, err = wishlib.NewQueue(&wishlib.QueueOpts{
		Store:    wishlib.NewStore(afero.NewOsFs(), cfg.Queue.File, log),
		Consumer: consumer,
		Network:  c.Tracker,
		Busy:     c.Launcher,
		Jobs:     c.Scheduler,
		Resolver: res,
		JobConstraints: wishlib.JobConstraints{
			StorageNotLow: cfg.Jobs.StorageLowBytes > 0,
			MaxDelay:      cfg.Jobs.MaxDelay.Std(),
			Backoff:       cfg.Jobs.Backoff.Std(),
			Window:        cfg.Jobs.Window,
		},
		Logger:           log,
		DebounceDelay:    cfg.Queue.Debounce.Std(),
		MinCheckInterval: cfg.Queue.MinCheckInterval.Std(),
	})
	if err != nil {
		return nil, err
	}
	if err := q.Load(); err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	c.Queue = q

	c.Tracker.Subscribe(q.NetworkChanged)
	c.Tracker.Subscribe(c.Scheduler.NetworkChanged)
	// Init reports the first Unknown -> state transition to the
	// subscribers above, which kicks off the first dispatch
	if err := c.Tracker.Init(ctx, policy); err != nil {
		return nil, err
	}

	secret, err := rpcSecret(cfg, log, true)
	if err != nil {
		return nil, err
	}
	opts := server.Options{
		Queue:      q,
		Network:    c.Tracker,
		Secret:     secret,
		Version:    currentBuildArgs.Version,
		Commit:     currentBuildArgs.Commit,
		BuildType:  currentBuildArgs.BuildType,
		SavePolicy: func(p netstate.Policy) error { return config.SavePolicy(cfg.Dir, p) },
		Logger:     log,
	}
	if c.History != nil {
		opts.History = c.History
	}
	c.Server, err = server.New(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}
