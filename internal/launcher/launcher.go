// Package launcher is the consumer the queue dispatches to: it runs a
// configured external command per handler kind and reports itself busy
// while the configured number of commands are running.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/wishlib"
)

var (
	ErrNoCommand = errors.New("launcher: no command configured for handler")
	ErrClosed    = errors.New("launcher: closed")
	ErrOptionURI = errors.New("launcher: uri looks like a command-line option")
)

// Executor runs a command to completion.
type Executor interface {
	Run(ctx context.Context, argv []string, dir string) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, argv []string, dir string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// DefaultCommands returns the stock command templates for this platform.
func DefaultCommands() map[wishlib.HandlerKind][]string {
	open := []string{"xdg-open", "{uri}"}
	switch runtime.GOOS {
	case "darwin":
		open = []string{"open", "{uri}"}
	case "windows":
		open = []string{"rundll32", "url.dll,FileProtocolHandler", "{uri}"}
	}
	return map[wishlib.HandlerKind][]string{
		wishlib.HandlerDownload: {"curl", "-fL", "--create-dirs", "-o", "{dir}/{file}", "--url", "{uri}"},
		wishlib.HandlerStream:   {"mpv", "--force-window=yes", "--", "{uri}"},
		wishlib.HandlerOpen:     open,
		wishlib.HandlerExternal: {"{uri}"},
	}
}

// Options configures a Launcher.
type Options struct {
	// Commands maps a handler kind to an argv template. For external
	// handlers the template holds the arguments only; the program is the
	// handler target.
	Commands    map[wishlib.HandlerKind][]string
	DownloadDir string
	// MaxActive is the number of concurrent commands; defaults to 1.
	MaxActive int
	// RequeueOnFailure puts a wish whose command failed back in the queue.
	RequeueOnFailure bool

	// FileName reports the file name chosen for a wish without one.
	FileName func(uri, name string)
	// OnFinish is called after every command exits.
	OnFinish func(w wishlib.Wish, err error)
	// Requeue receives wishes to put back after a failure.
	Requeue func(w *wishlib.Wish)

	Executor Executor
	Logger   logger.Logger
}

// Launcher implements wishlib.Consumer and wishlib.BusySignal.
type Launcher struct {
	opts Options
	exec Executor
	log  logger.Logger
	ctx  context.Context

	mu     sync.Mutex
	active int
	closed bool
	wg     sync.WaitGroup
}

var (
	_ wishlib.Consumer   = (*Launcher)(nil)
	_ wishlib.BusySignal = (*Launcher)(nil)
)

// New creates a launcher. Running commands are killed when ctx is done.
func New(ctx context.Context, opts Options) *Launcher {
	if opts.Commands == nil {
		opts.Commands = DefaultCommands()
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = 1
	}
	l := &Launcher{opts: opts, exec: opts.Executor, log: opts.Logger, ctx: ctx}
	if l.exec == nil {
		l.exec = commandExecutor{}
	}
	if l.log == nil {
		l.log = logger.NewNopLogger()
	}
	return l
}

// Busy reports whether MaxActive commands are running.
func (l *Launcher) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active >= l.opts.MaxActive
}

// Active returns the number of running commands.
func (l *Launcher) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Start launches the command for w and returns without waiting for it.
func (l *Launcher) Start(w *wishlib.Wish) error {
	wish := *w
	if wish.FileName == "" {
		wish.FileName = FileNameFor(wish.URI)
		if l.opts.FileName != nil {
			l.opts.FileName(wish.URI, wish.FileName)
		}
	}
	argv, err := l.command(&wish)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.active++
	l.wg.Add(1)
	l.mu.Unlock()

	l.log.Info("launcher: %s -> %s", wish.URI, strings.Join(argv, " "))
	go l.run(wish, argv)
	return nil
}

func (l *Launcher) run(w wishlib.Wish, argv []string) {
	defer l.wg.Done()
	err := l.exec.Run(l.ctx, argv, l.opts.DownloadDir)

	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	if err != nil {
		l.log.Error("launcher: %s failed: %v", w.URI, err)
	} else {
		l.log.Info("launcher: %s finished", w.URI)
	}
	if err != nil && l.opts.RequeueOnFailure && l.opts.Requeue != nil && l.ctx.Err() == nil {
		again := w
		again.Held = false
		l.opts.Requeue(&again)
	}
	if l.opts.OnFinish != nil {
		l.opts.OnFinish(w, err)
	}
}

// Close stops accepting wishes and waits for running commands.
func (l *Launcher) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Launcher) command(w *wishlib.Wish) ([]string, error) {
	if strings.HasPrefix(strings.TrimSpace(w.URI), "-") {
		return nil, fmt.Errorf("%w: %q", ErrOptionURI, w.URI)
	}
	h := w.Handler
	if h.IsZero() {
		h = wishlib.Handler{Kind: wishlib.HandlerDownload}
	}
	tmpl, ok := l.opts.Commands[h.Kind]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoCommand, h)
	}
	var argv []string
	if h.Kind == wishlib.HandlerExternal {
		argv = append(argv, strings.Fields(h.Target)...)
	}
	r := l.replacer(w)
	for _, arg := range tmpl {
		argv = append(argv, r.Replace(arg))
	}
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%w %s", ErrNoCommand, h)
	}
	return argv, nil
}

func (l *Launcher) replacer(w *wishlib.Wish) *strings.Replacer {
	dir := l.opts.DownloadDir
	if dir == "" {
		dir = "."
	}
	return strings.NewReplacer(
		"{uri}", w.URI,
		"{file}", w.FileName,
		"{title}", w.Title,
		"{mime}", w.Mime,
		"{referer}", w.Referer,
		"{dir}", filepath.ToSlash(dir),
	)
}

// FileNameFor derives a local file name from the last path segment of uri.
func FileNameFor(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "download"
	}
	name := path.Base(u.EscapedPath())
	if name == "." || name == ".." || name == "/" || name == "" {
		return "download"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	return name
}
