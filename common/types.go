package common

import (
	"github.com/warpdl/warpq/internal/history"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"build_type,omitempty"`
}

// WishParams describes a wish to enqueue. Handler is optional and uses the
// "kind" or "kind:target" notation.
type WishParams struct {
	URI      string `json:"uri"`
	Mime     string `json:"mime,omitempty"`
	Title    string `json:"title,omitempty"`
	Referer  string `json:"referer,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Handler  string `json:"handler,omitempty"`
	Held     bool   `json:"held,omitempty"`
}

type AddParams struct {
	Wishes []WishParams `json:"wishes"`
}

type AddResult struct {
	Added int `json:"added"`
}

type RemoveParams struct {
	URIs []string `json:"uris"`
}

type RemoveResult struct {
	Removed int `json:"removed"`
}

type ListResult struct {
	Wishes []wishlib.Wish `json:"wishes"`
}

type MoveUpParams struct {
	Position int `json:"position"`
	Steps    int `json:"steps,omitempty"`
}

type PositionParams struct {
	Position int `json:"position"`
}

type OKResult struct {
	OK bool `json:"ok"`
}

type SetFileNameParams struct {
	URI      string `json:"uri"`
	FileName string `json:"file_name"`
}

type NextResult struct {
	Dispatched bool `json:"dispatched"`
}

type NetStateResult struct {
	State         string               `json:"state"`
	CanNotify     bool                 `json:"can_notify"`
	ActiveMetered bool                 `json:"active_metered"`
	Policy        netstate.Policy      `json:"policy"`
	Transports    []netstate.Transport `json:"transports,omitempty"`
}

// SetPolicyParams updates the fields that are set and keeps the others.
type SetPolicyParams struct {
	AllowMetered       *bool   `json:"allow_metered,omitempty"`
	VPN                *string `json:"vpn,omitempty"`
	VPNRequiresCarrier *bool   `json:"vpn_requires_carrier,omitempty"`
}

type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

type HistoryResult struct {
	Entries []history.Entry `json:"entries"`
}

// QueueChanged is the payload of the queue.changed notification.
type QueueChanged struct {
	Length int `json:"length"`
}

// NetChanged is the payload of the net.changed notification.
type NetChanged struct {
	Old string `json:"old"`
	New string `json:"new"`
}
