// Package wishlib implements the persistent wish queue of warpq: the
// ordered, duplicate-suppressing list of deferred download requests, its
// line-oriented persistence, and the dispatcher that hands the next eligible
// request to a consumer once the network allows it.
package wishlib

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Wish is a queued download request descriptor.
// Two wishes are the same queue entry iff their URI values are equal.
type Wish struct {
	URI     string `json:"uri"`
	Mime    string `json:"mime,omitempty"`
	Title   string `json:"title,omitempty"`
	Referer string `json:"referer,omitempty"`
	// Timestamp is set by the queue when the wish is accepted.
	Timestamp time.Time `json:"timestamp"`
	// Held wishes are skipped by the dispatcher until un-held.
	Held bool `json:"held"`
	// FileName is the target local file name, usually learned from a
	// Content-Disposition header after a first delivery attempt.
	FileName string  `json:"fileName,omitempty"`
	Handler  Handler `json:"handler"`
}

// HandlerKind identifies how a dispatched wish should be processed.
type HandlerKind string

const (
	// HandlerDownload fetches the resource into a local file.
	HandlerDownload HandlerKind = "download"
	// HandlerStream hands the resource to a streaming player.
	HandlerStream HandlerKind = "stream"
	// HandlerOpen opens the resource with the system default application.
	HandlerOpen HandlerKind = "open"
	// HandlerExternal hands the resource to a named external program.
	HandlerExternal HandlerKind = "external"
)

// Handler is the resolved handling directive of a wish. The queue treats it
// as opaque; the launcher uses it to pick a command.
// The zero Handler means "not resolved yet".
type Handler struct {
	Kind   HandlerKind
	Target string
}

// IsZero reports whether the handler is unresolved.
func (h Handler) IsZero() bool {
	return h.Kind == "" && h.Target == ""
}

func (h Handler) String() string {
	if h.Target == "" {
		return string(h.Kind)
	}
	return string(h.Kind) + ":" + h.Target
}

// MarshalText implements encoding.TextMarshaler.
func (h Handler) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handler) UnmarshalText(b []byte) error {
	parsed, err := ParseHandler(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHandler parses the textual form produced by Handler.String.
// An empty string yields the zero Handler.
func ParseHandler(s string) (Handler, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Handler{}, nil
	}
	kind, target, _ := strings.Cut(s, ":")
	h := Handler{Kind: HandlerKind(strings.ToLower(kind)), Target: target}
	switch h.Kind {
	case HandlerDownload, HandlerStream, HandlerOpen:
	case HandlerExternal:
		if strings.TrimSpace(target) == "" {
			return Handler{}, fmt.Errorf("%w: external handler without program", ErrInvalidHandler)
		}
	default:
		return Handler{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidHandler, kind)
	}
	return h, nil
}

// IsContentURI reports whether uri uses the content scheme. Such resources
// need immediate handling by the caller and are never queued.
func IsContentURI(uri string) bool {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		scheme, _, found := strings.Cut(strings.TrimSpace(uri), ":")
		return found && strings.EqualFold(scheme, "content")
	}
	return strings.EqualFold(u.Scheme, "content")
}

// acceptable reports whether w may enter the queue at all.
func acceptable(w *Wish) bool {
	if w == nil {
		return false
	}
	uri := strings.TrimSpace(w.URI)
	if uri == "" {
		return false
	}
	// would be read as an option by the launched program
	if strings.HasPrefix(uri, "-") {
		return false
	}
	return !IsContentURI(w.URI)
}
