package server

import (
	"context"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/netstate"
	"github.com/warpdl/warpq/pkg/wishlib"
)

// Custom JSON-RPC error codes.
const (
	codeInvalidRequest  = jrpc2.Code(-32600)
	codeInvalidParams   = jrpc2.Code(-32602)
	codeWishNotFound    = jrpc2.Code(-32001)
	codeUnavailable     = jrpc2.Code(-32003)
	codePolicyNotStored = jrpc2.Code(-32004)
)

func invalidParams(msg string) error {
	return &jrpc2.Error{Code: codeInvalidParams, Message: msg}
}

func (s *Server) methods() handler.Map {
	return handler.Map{
		common.MethodVersion:        handler.New(s.systemGetVersion),
		common.MethodWishAdd:        handler.New(s.wishAdd),
		common.MethodWishRemove:     handler.New(s.wishRemove),
		common.MethodWishList:       handler.New(s.wishList),
		common.MethodWishMoveUp:     handler.New(s.wishMoveUp),
		common.MethodWishToggleHeld: handler.New(s.wishToggleHeld),
		common.MethodWishSetName:    handler.New(s.wishSetFileName),
		common.MethodQueueNext:      handler.New(s.queueNext),
		common.MethodQueueClear:     handler.New(s.queueClear),
		common.MethodNetState:       handler.New(s.netState),
		common.MethodNetSetPolicy:   handler.New(s.netSetPolicy),
		common.MethodHistoryList:    handler.New(s.historyList),
	}
}

func (s *Server) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   s.opts.Version,
		Commit:    s.opts.Commit,
		BuildType: s.opts.BuildType,
	}, nil
}

// wishAdd enqueues the given wishes. Duplicates and unacceptable URIs are
// dropped by the queue and simply not counted.
func (s *Server) wishAdd(_ context.Context, p *common.AddParams) (*common.AddResult, error) {
	if len(p.Wishes) == 0 {
		return nil, invalidParams("missing required param: wishes")
	}
	wishes := make([]*wishlib.Wish, 0, len(p.Wishes))
	for _, wp := range p.Wishes {
		uri := strings.TrimSpace(wp.URI)
		if uri == "" {
			return nil, invalidParams("wish without uri")
		}
		w := &wishlib.Wish{
			URI:      uri,
			Mime:     wp.Mime,
			Title:    wp.Title,
			Referer:  wp.Referer,
			FileName: wp.FileName,
			Held:     wp.Held,
		}
		if wp.Handler != "" {
			h, err := wishlib.ParseHandler(wp.Handler)
			if err != nil {
				return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
			}
			w.Handler = h
		}
		wishes = append(wishes, w)
	}
	return &common.AddResult{Added: s.queue.Add(wishes...)}, nil
}

func (s *Server) wishRemove(_ context.Context, p *common.RemoveParams) (*common.RemoveResult, error) {
	if len(p.URIs) == 0 {
		return nil, invalidParams("missing required param: uris")
	}
	n := s.queue.RemoveMany(p.URIs...)
	if n == 0 {
		return nil, &jrpc2.Error{Code: codeWishNotFound, Message: "wish not found"}
	}
	return &common.RemoveResult{Removed: n}, nil
}

func (s *Server) wishList(_ context.Context) (*common.ListResult, error) {
	return &common.ListResult{Wishes: s.queue.Snapshot()}, nil
}

func (s *Server) wishMoveUp(_ context.Context, p *common.MoveUpParams) (*common.OKResult, error) {
	steps := p.Steps
	if steps == 0 {
		steps = 1
	}
	return &common.OKResult{OK: s.queue.MoveUpSteps(p.Position, steps)}, nil
}

func (s *Server) wishToggleHeld(_ context.Context, p *common.PositionParams) (*common.OKResult, error) {
	if !s.queue.ToggleHeld(p.Position) {
		return nil, &jrpc2.Error{Code: codeWishNotFound, Message: "no wish at that position"}
	}
	return &common.OKResult{OK: true}, nil
}

func (s *Server) wishSetFileName(_ context.Context, p *common.SetFileNameParams) (*common.OKResult, error) {
	if strings.TrimSpace(p.URI) == "" {
		return nil, invalidParams("missing required param: uri")
	}
	s.queue.SetFileName(p.URI, p.FileName)
	return &common.OKResult{OK: true}, nil
}

// queueNext is the user's "pop next": it bypasses the check interval but
// still honours network state, busy and held flags.
func (s *Server) queueNext(_ context.Context) (*common.NextResult, error) {
	return &common.NextResult{Dispatched: s.queue.NextPlease(true)}, nil
}

func (s *Server) queueClear(_ context.Context) (*common.OKResult, error) {
	s.queue.Clear()
	return &common.OKResult{OK: true}, nil
}

func (s *Server) netState(_ context.Context) (*common.NetStateResult, error) {
	if s.network == nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: "network tracker not running"}
	}
	return &common.NetStateResult{
		State:         s.network.State().String(),
		CanNotify:     s.network.CanNotify(),
		ActiveMetered: s.network.ActiveMetered(),
		Policy:        s.network.Policy(),
		Transports:    s.network.Snapshot().Transports,
	}, nil
}

// netSetPolicy applies the set fields on top of the current policy,
// persists it and re-evaluates the network state.
func (s *Server) netSetPolicy(_ context.Context, p *common.SetPolicyParams) (*common.NetStateResult, error) {
	if s.network == nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: "network tracker not running"}
	}
	policy := s.network.Policy()
	if p.AllowMetered != nil {
		policy.AllowMetered = *p.AllowMetered
	}
	if p.VPN != nil {
		vpn, err := netstate.ParseVPNPolicy(*p.VPN)
		if err != nil {
			return nil, invalidParams(err.Error())
		}
		policy.VPN = vpn
	}
	if p.VPNRequiresCarrier != nil {
		policy.VPNRequiresCarrier = *p.VPNRequiresCarrier
	}
	if s.opts.SavePolicy != nil {
		if err := s.opts.SavePolicy(policy); err != nil {
			s.log.Error("server: saving policy: %v", err)
			return nil, &jrpc2.Error{Code: codePolicyNotStored, Message: err.Error()}
		}
	}
	s.network.SetPolicy(policy)
	return s.netState(context.Background())
}

func (s *Server) historyList(ctx context.Context, p *common.HistoryParams) (*common.HistoryResult, error) {
	if s.history == nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: "history is disabled"}
	}
	if p.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	entries, err := s.history.List(ctx, p.Limit)
	if err != nil {
		return nil, err
	}
	return &common.HistoryResult{Entries: entries}, nil
}
