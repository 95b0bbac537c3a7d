package netprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/warpdl/warpq/pkg/netstate"
)

var _ netstate.Watcher = (*Probe)(nil)

// Watch subscribes to kernel uevents of the net subsystem and feeds them to
// sig until ctx is done. It fails when the netlink socket cannot be opened,
// in which case the tracker falls back to assuming connectivity.
func (p *Probe) Watch(ctx context.Context, sig netstate.Signals) error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.KernelEvent); err != nil {
		return fmt.Errorf("netprobe: connect netlink: %w", err)
	}
	go p.watchLoop(ctx, conn, sig)
	p.log.Info("netprobe: watching link events, polling every %s", p.pollInterval)
	return nil
}

func (p *Probe) watchLoop(ctx context.Context, conn *netlink.UEventConn, sig netstate.Signals) {
	defer conn.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, netMatcher())
	defer close(quit)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-queue:
			p.handleEvent(ev, sig)
		case err := <-errs:
			p.log.Warning("netprobe: netlink monitor error: %v", err)
		case <-ticker.C:
			p.resync(sig)
		}
	}
}

func netMatcher() netlink.Matcher {
	action := "add|remove|change|move|online|offline"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env:    map[string]string{"SUBSYSTEM": "net"},
	})
	return rules
}

func (p *Probe) handleEvent(ev netlink.UEvent, sig netstate.Signals) {
	name := ev.Env["INTERFACE"]
	if name == "" {
		return
	}
	switch string(ev.Action) {
	case "add":
		t, pending, err := p.lookup(name)
		switch {
		case err != nil:
			p.log.Warning("netprobe: lookup %s: %v", name, err)
			p.resync(sig)
		case t.Name != "":
			sig.OnAvailable(t)
		case pending:
			sig.OnConnecting(name)
		}
	case "remove":
		sig.OnLost(name)
	case "offline":
		sig.OnLosing(name, p.losingGrace)
	default:
		p.resync(sig)
	}
}

func (p *Probe) resync(sig netstate.Signals) {
	snap, err := p.Snapshot()
	if err != nil {
		p.log.Warning("netprobe: %v", err)
		return
	}
	sig.OnSnapshot(snap)
}
