package resolver

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/warpdl/warpq/pkg/wishlib"
)

var streamMimes = map[string]bool{
	"application/vnd.apple.mpegurl": true,
	"application/x-mpegurl":         true,
	"audio/mpegurl":                 true,
	"audio/x-mpegurl":               true,
	"application/dash+xml":          true,
	"audio/x-scpls":                 true,
}

var streamExts = map[string]bool{
	".m3u8": true,
	".m3u":  true,
	".pls":  true,
	".mpd":  true,
}

// Builtin picks a handler from the wish alone: playlists are streamed,
// magnet links go to torrentClient when one is configured, everything else
// is downloaded.
func Builtin(w *wishlib.Wish, torrentClient string) wishlib.Handler {
	u, err := url.Parse(strings.TrimSpace(w.URI))
	if err == nil && strings.EqualFold(u.Scheme, "magnet") {
		if torrentClient != "" {
			return wishlib.Handler{Kind: wishlib.HandlerExternal, Target: torrentClient}
		}
		return wishlib.Handler{Kind: wishlib.HandlerDownload}
	}
	if w.Mime != "" {
		if mt, _, err := mime.ParseMediaType(w.Mime); err == nil && streamMimes[strings.ToLower(mt)] {
			return wishlib.Handler{Kind: wishlib.HandlerStream}
		}
	}
	if err == nil && streamExts[strings.ToLower(path.Ext(u.Path))] {
		return wishlib.Handler{Kind: wishlib.HandlerStream}
	}
	return wishlib.Handler{Kind: wishlib.HandlerDownload}
}
