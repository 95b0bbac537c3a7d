package netstate

import (
	"fmt"
	"strings"
)

// ConnectionState is the reduced, policy-aware connectivity classification.
type ConnectionState int

const (
	Unknown ConnectionState = iota
	Connected
	Connecting
	Disconnecting
	Disconnected
)

var stateNames = [...]string{
	Unknown:       "unknown",
	Connected:     "connected",
	Connecting:    "connecting",
	Disconnecting: "disconnecting",
	Disconnected:  "disconnected",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
	return stateNames[s]
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(stateNames[s]), nil
}

func (s *ConnectionState) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range stateNames {
		if n == name {
			*s = ConnectionState(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidState, b)
}

// VPNPolicy controls whether dispatch may happen over a VPN.
type VPNPolicy int

const (
	// VPNAllow permits both VPN and plain networks.
	VPNAllow VPNPolicy = iota
	// VPNNever refuses to dispatch while a VPN carries the traffic.
	VPNNever
	// VPNAlways only dispatches while a VPN carries the traffic.
	VPNAlways
)

// ParseVPNPolicy parses never, allow (or its alias ask) and always.
func ParseVPNPolicy(s string) (VPNPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow", "ask", "":
		return VPNAllow, nil
	case "never":
		return VPNNever, nil
	case "always":
		return VPNAlways, nil
	}
	return VPNAllow, fmt.Errorf("%w: %q", ErrInvalidVPNPolicy, s)
}

func (p VPNPolicy) String() string {
	switch p {
	case VPNNever:
		return "never"
	case VPNAlways:
		return "always"
	}
	return "allow"
}

func (p VPNPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *VPNPolicy) UnmarshalText(b []byte) error {
	v, err := ParseVPNPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Policy holds the user preferences the reduction is evaluated against.
type Policy struct {
	AllowMetered bool      `json:"allow_metered" toml:"allow_metered"`
	VPN          VPNPolicy `json:"vpn" toml:"vpn"`
	// VPNRequiresCarrier treats a VPN with no underlying non-VPN transport
	// as unusable.
	VPNRequiresCarrier bool `json:"vpn_requires_carrier" toml:"vpn_requires_carrier"`
}

// DefaultPolicy allows metered networks and VPNs, and requires a carrier
// under a VPN.
func DefaultPolicy() Policy {
	return Policy{AllowMetered: true, VPN: VPNAllow, VPNRequiresCarrier: true}
}

// Transport is one network the host can send traffic over.
type Transport struct {
	Name    string `json:"name"`
	VPN     bool   `json:"vpn"`
	Metered bool   `json:"metered"`
	// Default is set when the transport carries the default route.
	Default bool `json:"default"`
	// Blocked is set when the platform reports the transport as unusable
	// for this process.
	Blocked bool `json:"blocked"`
}

// Snapshot is the set of transports present at one point in time.
type Snapshot struct {
	Transports []Transport `json:"transports"`
}

// Active returns the transport traffic would use: a default VPN wins over a
// default carrier; without a default route the first usable transport is
// taken.
func (s Snapshot) Active() (Transport, bool) {
	var fallback *Transport
	var carrier *Transport
	for i := range s.Transports {
		t := &s.Transports[i]
		if t.Blocked {
			continue
		}
		if t.Default && t.VPN {
			return *t, true
		}
		if t.Default && carrier == nil {
			carrier = t
		}
		if fallback == nil {
			fallback = t
		}
	}
	if carrier != nil {
		return *carrier, true
	}
	if fallback != nil {
		return *fallback, true
	}
	return Transport{}, false
}

// Carrier returns the usable non-VPN transport underneath the active one,
// preferring the one holding the default route.
func (s Snapshot) Carrier() (Transport, bool) {
	var found *Transport
	for i := range s.Transports {
		t := &s.Transports[i]
		if t.Blocked || t.VPN {
			continue
		}
		if t.Default {
			return *t, true
		}
		if found == nil {
			found = t
		}
	}
	if found != nil {
		return *found, true
	}
	return Transport{}, false
}

// Lookup finds a transport by name.
func (s Snapshot) Lookup(name string) (Transport, bool) {
	for _, t := range s.Transports {
		if t.Name == name {
			return t, true
		}
	}
	return Transport{}, false
}

// Metered reports whether traffic over the active transport is metered. A
// VPN inherits the metered flag of its carrier.
func (s Snapshot) Metered() bool {
	active, ok := s.Active()
	if !ok {
		return false
	}
	if active.Metered {
		return true
	}
	if active.VPN {
		if c, ok := s.Carrier(); ok {
			return c.Metered
		}
	}
	return false
}

// Reduce classifies snapshot under policy. It never returns the transient
// Connecting or Disconnecting states.
func Reduce(snapshot Snapshot, policy Policy) ConnectionState {
	active, ok := snapshot.Active()
	if !ok {
		return Disconnected
	}
	if snapshot.Metered() && !policy.AllowMetered {
		return Disconnected
	}
	if active.VPN {
		if _, ok := snapshot.Carrier(); !ok && policy.VPNRequiresCarrier {
			return Disconnected
		}
		if policy.VPN == VPNNever {
			return Disconnected
		}
		return Connected
	}
	if policy.VPN == VPNAlways {
		return Disconnected
	}
	return Connected
}
