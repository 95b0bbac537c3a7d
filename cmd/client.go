package cmd

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/internal/config"
	"github.com/warpdl/warpq/pkg/credman/keyring"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/wishcli"
)

// loadConfig reads the configuration from the resolved config directory.
var loadConfig = func() (*config.Config, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return config.Load(dir)
}

// cliLogger logs to stderr when WARPQ_DEBUG is set and discards otherwise.
func cliLogger() logger.Logger {
	if os.Getenv(common.DebugEnv) == "" {
		return logger.NewNopLogger()
	}
	return logger.NewStandardLogger(log.New(os.Stderr, "warpq: ", log.LstdFlags))
}

// newKeyring is swapped in tests to avoid touching the system keyring.
var newKeyring = func(configDir string, l keyring.Logger) keyring.Provider {
	return keyring.NewFallbackKeyring(configDir, l)
}

// rpcSecret resolves the bearer token in order: environment, config file,
// keyring. When create is set a missing keyring secret is generated, which
// only the daemon does.
func rpcSecret(cfg *config.Config, l logger.Logger, create bool) (string, error) {
	if s := strings.TrimSpace(os.Getenv(common.RPCSecretEnv)); s != "" {
		return s, nil
	}
	if cfg.RPC.Secret != "" {
		return cfg.RPC.Secret, nil
	}
	kr := newKeyring(cfg.Dir, l)
	if create {
		return keyring.Secret(kr)
	}
	key, err := kr.GetKey()
	if err != nil {
		return "", fmt.Errorf("no rpc secret found, has the daemon run yet? (%w)", err)
	}
	return hex.EncodeToString(key), nil
}

// daemonAddress is WARPQ_RPC_URL when set, otherwise the configured listen
// address.
func daemonAddress(cfg *config.Config) string {
	if u := strings.TrimSpace(os.Getenv(common.RPCURLEnv)); u != "" {
		return u
	}
	return cfg.RPC.Listen
}

var newClient = func() (*wishcli.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	l := cliLogger()
	secret, err := rpcSecret(cfg, l, false)
	if err != nil {
		return nil, err
	}
	client, err := wishcli.NewClient(daemonAddress(cfg), secret)
	if err != nil {
		return nil, err
	}
	client.CheckVersionMismatch(os.Stderr, currentBuildArgs.Version)
	return client, nil
}
