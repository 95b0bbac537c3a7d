package cmd

import (
	"bytes"
	"context"
	"flag"
	"io"
	"math"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/credman/keyring"
	"github.com/warpdl/warpq/pkg/logger"
)

// captureOutput captures stdout and stderr during function execution.
func captureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	outCh := make(chan string)
	errCh := make(chan string)
	go func() {
		var b bytes.Buffer
		_, _ = io.Copy(&b, rOut)
		outCh <- b.String()
	}()
	go func() {
		var b bytes.Buffer
		_, _ = io.Copy(&b, rErr)
		errCh <- b.String()
	}()

	f()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	stdout, stderr = <-outCh, <-errCh
	rOut.Close()
	rErr.Close()
	return stdout, stderr
}

// assertContains checks if output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertNotContains checks if output does NOT contain the specified substring.
func assertNotContains(t *testing.T, output, notExpected string) {
	t.Helper()
	if strings.Contains(output, notExpected) {
		t.Errorf("expected output to NOT contain %q, got:\n%s", notExpected, output)
	}
}

// assertErrorFormat checks that error output follows the standard format:
// warpq: cmd[action]: msg
func assertErrorFormat(t *testing.T, output, cmd, action string) {
	t.Helper()
	pattern := "warpq: " + cmd + "[" + action + "]:"
	if !strings.Contains(output, pattern) {
		t.Errorf("expected error format %q, got:\n%s", pattern, output)
	}
}

// newContext creates a CLI context for testing commands.
func newContext(app *cli.App, args []string, name string) *cli.Context {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	_ = set.Parse(args)
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: name}
	return ctx
}

// memKeyring keeps the secret in memory instead of the system keyring.
type memKeyring struct {
	key []byte
}

func (m *memKeyring) SetKey() ([]byte, error) {
	m.key = bytes.Repeat([]byte{0xab}, keyring.KeySize)
	return m.key, nil
}

func (m *memKeyring) GetKey() ([]byte, error) {
	if m.key == nil {
		return nil, os.ErrNotExist
	}
	return m.key, nil
}

func (m *memKeyring) DeleteKey() error {
	m.key = nil
	return nil
}

// useTestConfigDir points the config lookup at a fresh directory and
// swaps the keyring for an in-memory one.
func useTestConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(common.ConfigDirEnv, dir)
	t.Setenv(common.RPCSecretEnv, "")
	t.Setenv(common.RPCURLEnv, "")
	kr := &memKeyring{}
	orig := newKeyring
	newKeyring = func(string, keyring.Logger) keyring.Provider { return kr }
	t.Cleanup(func() { newKeyring = orig })
	return dir
}

// startTestDaemon builds the daemon components over a fresh config dir and
// serves them with httptest. The CLI is pointed at the server through the
// environment.
func startTestDaemon(t *testing.T) *DaemonComponents {
	t.Helper()
	useTestConfigDir(t)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	// nothing may really be launched from tests
	cfg.Launcher.Commands = map[string][]string{}
	for kind := range cfg.LauncherCommands() {
		cfg.Launcher.Commands[string(kind)] = []string{"true"}
	}
	cfg.Launcher.DownloadDir = t.TempDir()
	// park the deferred job so released wishes stay queued
	cfg.Jobs.StorageLowBytes = math.MaxUint64

	ctx, cancel := context.WithCancel(context.Background())
	comps, err := initDaemonComponents(ctx, cfg, logger.NewNopLogger())
	if err != nil {
		cancel()
		t.Fatalf("initDaemonComponents: %v", err)
	}
	srv := httptest.NewServer(comps.Server.Handler())
	t.Cleanup(func() {
		srv.Close()
		comps.Close()
		cancel()
	})

	secret, err := rpcSecret(cfg, logger.NewNopLogger(), false)
	if err != nil {
		t.Fatalf("rpcSecret: %v", err)
	}
	t.Setenv(common.RPCURLEnv, srv.URL)
	t.Setenv(common.RPCSecretEnv, secret)
	return comps
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, args ...string) string {
	t.Helper()
	var runErr error
	out, _ := captureOutput(func() {
		runErr = Execute(append([]string{"warpq"}, args...), BuildArgs{BuildType: "test"})
	})
	if runErr != nil {
		t.Fatalf("Execute(%v): %v", args, runErr)
	}
	return out
}
