package netprobe

import (
	"errors"
	"strings"
	"testing"

	"github.com/warpdl/warpq/pkg/netstate"
)

const routeFixture = `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
wlan0	00000000	0101A8C0	0003	0	0	600	00000000	0	0	0
wlan0	0001A8C0	00000000	0001	0	0	600	00FFFFFF	0	0	0
tun0	00000000	0100080A	0003	0	0	0	00000080	0	0	0
tun0	00000080	0100080A	0003	0	0	0	00000080	0	0	0
eth1	00000000	01010A0A	0002	0	0	0	00000000	0	0	0
`

func TestParseRouteTable(t *testing.T) {
	got, err := parseRouteTable(strings.NewReader(routeFixture))
	if err != nil {
		t.Fatal(err)
	}
	if !got["wlan0"] || !got["tun0"] {
		t.Errorf("defaults = %v, want wlan0 and tun0", got)
	}
	if got["eth1"] {
		t.Error("route without RTF_UP counted as default")
	}
}

func newTestProbe(t *testing.T, ifaces []Interface, defaults map[string]bool) *Probe {
	t.Helper()
	p, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	p.interfaces = func() ([]Interface, error) { return ifaces, nil }
	p.routes = func() (map[string]bool, error) { return defaults, nil }
	return p
}

func TestProbe_Snapshot(t *testing.T) {
	p := newTestProbe(t, []Interface{
		{Name: "lo", Up: true, Loopback: true, Addressed: true},
		{Name: "eth0", Up: false, Addressed: true},
		{Name: "wlan0", Up: true, Addressed: true},
		{Name: "wwan0", Up: true, Addressed: true},
		{Name: "wg0", Up: true, Addressed: true},
		{Name: "eth1", Up: true},
	}, map[string]bool{"wg0": true, "wlan0": true})

	snap, err := p.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	want := []netstate.Transport{
		{Name: "wlan0", Default: true},
		{Name: "wwan0", Metered: true},
		{Name: "wg0", VPN: true, Default: true},
	}
	if len(snap.Transports) != len(want) {
		t.Fatalf("transports = %+v", snap.Transports)
	}
	for i := range want {
		if snap.Transports[i] != want[i] {
			t.Errorf("transport %d = %+v, want %+v", i, snap.Transports[i], want[i])
		}
	}
	if got := netstate.Reduce(snap, netstate.DefaultPolicy()); got != netstate.Connected {
		t.Errorf("Reduce = %s", got)
	}
}

func TestProbe_SnapshotWithoutRoutes(t *testing.T) {
	p := newTestProbe(t, []Interface{{Name: "en0", Up: true, Addressed: true}}, nil)
	p.routes = func() (map[string]bool, error) { return nil, errNoRouteTable }
	snap, err := p.Snapshot()
	if err != nil || len(snap.Transports) != 1 {
		t.Fatalf("Snapshot() = %+v, %v", snap, err)
	}
}

func TestProbe_SnapshotInterfaceError(t *testing.T) {
	p := newTestProbe(t, nil, nil)
	p.interfaces = func() ([]Interface, error) { return nil, errors.New("EPERM") }
	if _, err := p.Snapshot(); err == nil {
		t.Error("expected error")
	}
}

func TestProbe_Lookup(t *testing.T) {
	p := newTestProbe(t, []Interface{
		{Name: "wlan0", Up: true, Addressed: true},
		{Name: "eth0", Up: true},
	}, nil)

	if tr, pending, _ := p.lookup("wlan0"); tr.Name != "wlan0" || pending {
		t.Errorf("lookup(wlan0) = %+v, %v", tr, pending)
	}
	if tr, pending, _ := p.lookup("eth0"); tr.Name != "" || !pending {
		t.Errorf("lookup(eth0) = %+v, %v", tr, pending)
	}
	if tr, pending, _ := p.lookup("gone0"); tr.Name != "" || pending {
		t.Errorf("lookup(gone0) = %+v, %v", tr, pending)
	}
}

func TestNew_RejectsBadPattern(t *testing.T) {
	if _, err := New(Options{VPNInterfaces: []string{"tun["}}); err == nil {
		t.Error("expected error for malformed glob")
	}
}
