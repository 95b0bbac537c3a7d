// Package resolver decides how a wish is handled once dispatched. Built-in
// rules cover the common cases; an optional user script can override them.
//
// The script is plain JavaScript run in an embedded goja VM. It must define
// a function
//
//	function resolve(wish, suggested) { return "external:mpv"; }
//
// receiving the wish fields (uri, mime, title, referer, fileName) and the
// built-in suggestion, and returning a handler string. Returning null or
// undefined keeps the suggestion. require() loads modules relative to the
// script's directory; console output goes to the daemon log.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/wishlib"
)

const (
	resolveCallback = "resolve"
	DefaultTimeout  = 2 * time.Second
)

// Options configures a Resolver.
type Options struct {
	// ScriptPath is an optional user rule script.
	ScriptPath string
	// Timeout bounds a single resolve() call.
	Timeout time.Duration
	// TorrentClient is the program magnet links are handed to.
	TorrentClient string
	Logger        logger.Logger
}

// Resolver implements wishlib.Resolver.
type Resolver struct {
	torrent string
	timeout time.Duration
	log     logger.Logger

	// goja runtimes are not goroutine safe
	mu      sync.Mutex
	vm      *goja.Runtime
	resolve goja.Callable
	req     *require.RequireModule
	dir     string
}

var _ wishlib.Resolver = (*Resolver)(nil)

// New creates a resolver, loading the user script if one is configured.
func New(opts Options) (*Resolver, error) {
	r := &Resolver{
		torrent: opts.TorrentClient,
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.log == nil {
		r.log = logger.NewNopLogger()
	}
	if opts.ScriptPath != "" {
		if err := r.load(opts.ScriptPath); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Scripted reports whether a user script is loaded.
func (r *Resolver) Scripted() bool {
	return r.resolve != nil
}

func (r *Resolver) load(scriptPath string) error {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrScriptNotFound, abs)
		}
		return err
	}

	r.dir = filepath.Dir(abs)
	vm := goja.New()
	r.vm = vm
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	registry := require.NewRegistry(require.WithGlobalFolders(r.dir))
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(logPrinter{r.log}))
	r.req = registry.Enable(vm)
	console.Enable(vm)
	if err := vm.Set("require", r.require); err != nil {
		return err
	}

	if _, err := vm.RunScript(abs, string(src)); err != nil {
		return fmt.Errorf("resolver: loading %s: %w", abs, err)
	}
	fn, ok := goja.AssertFunction(vm.Get(resolveCallback))
	if !ok {
		return ErrResolveUndefined
	}
	r.resolve = fn
	r.log.Info("resolver: loaded rules from %s", abs)
	return nil
}

// require resolves relative module paths against the script directory.
func (r *Resolver) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		name = filepath.Join(r.dir, name)
	}
	v, err := r.req.Require(name)
	if err != nil {
		panic(r.vm.NewGoError(fmt.Errorf("require %s: %w", name, err)))
	}
	return v
}

// Resolve returns the handler for w. Script failures fall back to the
// built-in rules.
func (r *Resolver) Resolve(w *wishlib.Wish) wishlib.Handler {
	suggested := Builtin(w, r.torrent)
	if r.resolve == nil {
		return suggested
	}
	h, err := r.call(w, suggested)
	if err != nil {
		r.log.Warning("resolver: %s: %v; using %s", w.URI, err, suggested)
		return suggested
	}
	return h
}

type scriptWish struct {
	URI      string `json:"uri"`
	Mime     string `json:"mime"`
	Title    string `json:"title"`
	Referer  string `json:"referer"`
	FileName string `json:"fileName"`
}

func (r *Resolver) call(w *wishlib.Wish, suggested wishlib.Handler) (h wishlib.Handler, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm.ClearInterrupt()
	fired := make(chan struct{})
	timer := time.AfterFunc(r.timeout, func() {
		r.vm.Interrupt("timeout")
		close(fired)
	})
	defer func() {
		// a callback already in flight must land before the interrupt is
		// cleared, or it would hit the next call
		if !timer.Stop() {
			<-fired
		}
		r.vm.ClearInterrupt()
	}()

	arg := scriptWish{URI: w.URI, Mime: w.Mime, Title: w.Title, Referer: w.Referer, FileName: w.FileName}
	v, err := r.resolve(goja.Undefined(), r.vm.ToValue(arg), r.vm.ToValue(suggested.String()))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return suggested, fmt.Errorf("resolve() exceeded %s", r.timeout)
		}
		return suggested, err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return suggested, nil
	}
	s, ok := v.Export().(string)
	if !ok {
		return suggested, fmt.Errorf("%w: %v", ErrInvalidResult, v)
	}
	h, err = wishlib.ParseHandler(s)
	if err != nil {
		return suggested, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}
	if h.IsZero() {
		return suggested, nil
	}
	return h, nil
}

// logPrinter sends script console output to the daemon log.
type logPrinter struct {
	l logger.Logger
}

func (p logPrinter) Log(s string)   { p.l.Info("resolver script: %s", s) }
func (p logPrinter) Warn(s string)  { p.l.Warning("resolver script: %s", s) }
func (p logPrinter) Error(s string) { p.l.Error("resolver script: %s", s) }
func (p logPrinter) Info(s string)  { p.Log(s) }
func (p logPrinter) Debug(s string) { p.Log(s) }
