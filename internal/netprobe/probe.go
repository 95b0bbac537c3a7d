package netprobe

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/netstate"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultLosingGrace  = 5 * time.Second
)

var (
	// DefaultVPNInterfaces match common tunnel drivers.
	DefaultVPNInterfaces = []string{"tun*", "tap*", "wg*", "utun*", "ipsec*", "tailscale*", "zt*", "nordlynx*"}
	// DefaultMeteredInterfaces match cellular modems and tethering.
	DefaultMeteredInterfaces = []string{"wwan*", "rmnet*", "ppp*", "usb*"}
)

// Interface is the subset of a network interface the probe classifies.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	// Addressed is set when the interface has a routable unicast address.
	Addressed bool
}

// Options configures a Probe.
type Options struct {
	VPNInterfaces     []string
	MeteredInterfaces []string
	// PollInterval is the period of the safety-net snapshot while watching.
	PollInterval time.Duration
	// LosingGrace is how long an interface reported offline is surfaced as
	// disconnecting before it is expected to be gone.
	LosingGrace time.Duration
	Logger      logger.Logger
}

// Probe implements netstate.Source, and netstate.Watcher where the platform
// supports it.
type Probe struct {
	vpn          []string
	metered      []string
	pollInterval time.Duration
	losingGrace  time.Duration
	log          logger.Logger

	interfaces func() ([]Interface, error)
	routes     func() (map[string]bool, error)
}

// New creates a probe over the host's interfaces.
func New(opts Options) (*Probe, error) {
	for _, pattern := range append(append([]string(nil), opts.VPNInterfaces...), opts.MeteredInterfaces...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("netprobe: bad interface pattern %q: %w", pattern, err)
		}
	}
	p := &Probe{
		vpn:          opts.VPNInterfaces,
		metered:      opts.MeteredInterfaces,
		pollInterval: opts.PollInterval,
		losingGrace:  opts.LosingGrace,
		log:          opts.Logger,
		interfaces:   hostInterfaces,
		routes:       defaultRoutes,
	}
	if p.vpn == nil {
		p.vpn = DefaultVPNInterfaces
	}
	if p.metered == nil {
		p.metered = DefaultMeteredInterfaces
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.losingGrace <= 0 {
		p.losingGrace = DefaultLosingGrace
	}
	if p.log == nil {
		p.log = logger.NewNopLogger()
	}
	return p, nil
}

// Snapshot lists the usable transports. Interfaces that are down, loopback
// or without an address are left out.
func (p *Probe) Snapshot() (netstate.Snapshot, error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return netstate.Snapshot{}, fmt.Errorf("netprobe: list interfaces: %w", err)
	}
	defaults, err := p.routes()
	if err != nil && !errors.Is(err, errNoRouteTable) {
		p.log.Warning("netprobe: reading routes: %v", err)
	}

	var snap netstate.Snapshot
	for _, ifc := range ifaces {
		t, ok := p.classify(ifc, defaults)
		if ok {
			snap.Transports = append(snap.Transports, t)
		}
	}
	return snap, nil
}

// lookup returns the state of a single interface: usable, pending (up but
// not addressed yet), or gone.
func (p *Probe) lookup(name string) (t netstate.Transport, pending bool, err error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return t, false, err
	}
	defaults, _ := p.routes()
	for _, ifc := range ifaces {
		if ifc.Name != name {
			continue
		}
		if t, ok := p.classify(ifc, defaults); ok {
			return t, false, nil
		}
		return t, ifc.Up && !ifc.Loopback, nil
	}
	return t, false, nil
}

func (p *Probe) classify(ifc Interface, defaults map[string]bool) (netstate.Transport, bool) {
	if ifc.Loopback || !ifc.Up || !ifc.Addressed {
		return netstate.Transport{}, false
	}
	return netstate.Transport{
		Name:    ifc.Name,
		VPN:     matchAny(p.vpn, ifc.Name),
		Metered: matchAny(p.metered, ifc.Name),
		Default: defaults[ifc.Name],
	}, true
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func hostInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		i := Interface{
			Name:     ifc.Name,
			Up:       ifc.Flags&net.FlagUp != 0,
			Loopback: ifc.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := ifc.Addrs(); err == nil {
			i.Addressed = hasRoutableAddr(addrs)
		}
		out = append(out, i)
	}
	return out, nil
}

func hasRoutableAddr(addrs []net.Addr) bool {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return true
	}
	return false
}
