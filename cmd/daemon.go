package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/urfave/cli"
	cmdCommon "github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/config"
	daemonpkg "github.com/warpdl/warpq/internal/daemon"
	"github.com/warpdl/warpq/pkg/logger"
)

// newDaemonLogger logs to stderr at the configured level, plus the
// platform system log where one is available.
func newDaemonLogger(cfg *config.Config) logger.Logger {
	var l logger.Logger = logger.NewStandardLogger(log.New(os.Stderr, "", log.LstdFlags))
	if sys := platformLogger(); sys != nil {
		l = logger.NewMultiLogger(l, sys)
	}
	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logger.LevelInfo
	}
	return logger.NewLevelLogger(l, level)
}

func daemon(ctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return nil
	}
	l := newDaemonLogger(cfg)
	defer l.Close()

	sctx, cancel := setupShutdownHandler()
	defer cancel()

	var comps *DaemonComponents
	runner := daemonpkg.New(&daemonpkg.Config{
		Address:   cfg.RPC.Listen,
		ConfigDir: cfg.Dir,
	}, &daemonpkg.Dependencies{
		// components are only built once this process owns the config dir
		Setup: func(rctx context.Context) (http.Handler, error) {
			c, err := initDaemonComponents(rctx, cfg, l)
			if err != nil {
				return nil, err
			}
			comps = c
			if err := WritePidFile(cfg.Dir); err != nil {
				l.Warning("Failed to write PID file: %v", err)
			}
			return c.Server.Handler(), nil
		},
		Logger: l,
	})

	err = runner.Start(sctx)
	if comps != nil {
		comps.Close()
		_ = RemovePidFile(cfg.Dir)
	}
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, daemonpkg.ErrLocked):
		fmt.Printf("warpq: a daemon is already running for %s\n", cfg.Dir)
		return nil
	default:
		cmdCommon.PrintRuntimeErr(ctx, "daemon", "start", err)
		return nil
	}
}
