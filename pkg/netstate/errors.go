package netstate

import "errors"

var (
	ErrAlreadyInitialized = errors.New("netstate: tracker already initialized")
	ErrInvalidVPNPolicy   = errors.New("netstate: invalid vpn policy")
	ErrInvalidState       = errors.New("netstate: invalid connection state")
)
