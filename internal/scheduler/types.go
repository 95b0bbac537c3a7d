package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

var ErrInvalidWindow = errors.New("scheduler: invalid cron window")

// Job is the deferred work. It reports whether more work remains.
type Job func(ctx context.Context) (more bool)

// Conditions exposes the connectivity facts the network constraints are
// checked against. *netstate.Tracker satisfies it.
type Conditions interface {
	State() netstate.ConnectionState
	ActiveMetered() bool
}

// Options configures a Scheduler.
type Options struct {
	// Conditions may be nil, in which case network constraints always hold.
	Conditions Conditions
	// StorageDir is the directory whose free space the StorageNotLow
	// constraint checks.
	StorageDir string
	// StorageLowBytes is the free-space threshold; zero disables the check.
	StorageLowBytes uint64
	// PollInterval bounds how long a registration waiting on constraints
	// goes without a re-check. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	Logger       logger.Logger
}

const DefaultPollInterval = 15 * time.Second

// registration is a pending request to run the job.
type registration struct {
	gen         uint64
	constraints wishlib.JobConstraints
	attempt     int
	notBefore   time.Time
	deadline    time.Time
}

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdCancel
	cmdPoke
)

type command struct {
	kind commandKind
	reg  registration
}

type jobResult struct {
	more bool
	reg  registration
}
