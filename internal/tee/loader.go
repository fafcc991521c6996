package tee

import (
	"errors"
	"fmt"
	"plugin"
	"sync"
	"time"

	"southwinds.dev/hwcrypt/internal/debug"
	"southwinds.dev/hwcrypt/internal/sysprop"
)

// Defaults for the library load sequence. The readiness bound matches the
// keymaster bring-up budget: 100 polls at 100ms is a 10 second worst case.
const (
	DefaultLibrary           = "libqseecom.so"
	DefaultReadinessProperty = "sys.keymaster.loaded"
	DefaultReadinessAttempts = 100
	DefaultReadinessInterval = 100 * time.Millisecond
)

// Entry points resolved from the library, in the order they are looked up.
// Resolution aborts on the first missing symbol.
const (
	symCreateKey = "CreateKey"
	symUpdateKey = "UpdateKeyUserInfo"
	symWipeKey   = "WipeKey"
)

// ErrNotReady is returned when the keymaster readiness property never became
// "true" within the configured polling bound. The condition is transient:
// the next Load starts the full wait again.
var ErrNotReady = errors.New("tee: timed out waiting for keymaster listeners")

// Resolver locates the TEE library and resolves its three entry points.
// The default resolver opens a shared library through the plugin runtime;
// tests and embedders may supply their own.
type Resolver func(library string) (Funcs, error)

// Config configures a Loader. Zero fields take the package defaults; Props
// is required.
type Config struct {
	// Library is the name or path of the TEE client library.
	Library string

	// Props is the property store carrying the readiness flag.
	Props sysprop.Store

	// ReadinessProperty must read "true" before the library is opened.
	ReadinessProperty string
	ReadinessAttempts int
	ReadinessInterval time.Duration

	// Resolver overrides the default plugin-based symbol resolution.
	Resolver Resolver
}

// Loader performs the one-time resolution of the TEE client library.
//
// State machine: unloaded -> waiting -> loaded, or unloaded -> waiting ->
// failed. Failure is never memoized: a failed attempt leaves the loader
// unloaded and the next Load retries the readiness wait and resolution from
// scratch. Success is memoized for the life of the process and subsequent
// calls return the cached client without any wait. The mutex makes first use
// safe under concurrent callers; exactly one goroutine performs the wait and
// resolution, the rest block and observe its outcome.
type Loader struct {
	cfg Config

	mu     sync.Mutex
	client Client
}

// NewLoader creates a loader for the given configuration.
func NewLoader(cfg Config) *Loader {
	if cfg.Library == "" {
		cfg.Library = DefaultLibrary
	}
	if cfg.ReadinessProperty == "" {
		cfg.ReadinessProperty = DefaultReadinessProperty
	}
	if cfg.ReadinessAttempts <= 0 {
		cfg.ReadinessAttempts = DefaultReadinessAttempts
	}
	if cfg.ReadinessInterval <= 0 {
		cfg.ReadinessInterval = DefaultReadinessInterval
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolvePlugin
	}
	return &Loader{cfg: cfg}
}

// Load returns the TEE client, resolving the library on first use. Callers
// must treat any error as "gateway unavailable" and fail closed.
func (l *Loader) Load() (Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	if !l.waitReady() {
		return nil, ErrNotReady
	}

	funcs, err := l.cfg.Resolver(l.cfg.Library)
	if err != nil {
		return nil, err
	}
	if funcs.CreateKey == nil || funcs.UpdateKey == nil || funcs.WipeKey == nil {
		return nil, fmt.Errorf("tee: resolver returned incomplete entry points for %s", l.cfg.Library)
	}

	debug.Print("tee: loaded %s\n", l.cfg.Library)
	l.client = NewClient(funcs)
	return l.client, nil
}

// Loaded reports whether the library has been resolved.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client != nil
}

// waitReady polls the readiness property until it reads "true" or the
// attempt bound is exhausted. No backoff: the cadence is fixed.
func (l *Loader) waitReady() bool {
	for i := 0; i < l.cfg.ReadinessAttempts; i++ {
		if l.cfg.Props.Get(l.cfg.ReadinessProperty) == "true" {
			return true
		}
		time.Sleep(l.cfg.ReadinessInterval)
	}
	return false
}

// resolvePlugin opens the library and resolves the three entry points in
// strict order, aborting on the first failure. There is no unload on the
// plugin runtime; an aborted resolution simply discards the handle and the
// loader stays retryable.
func resolvePlugin(library string) (Funcs, error) {
	p, err := plugin.Open(library)
	if err != nil {
		return Funcs{}, fmt.Errorf("tee: could not load %s: %w", library, err)
	}

	var funcs Funcs

	create, err := p.Lookup(symCreateKey)
	if err != nil {
		return Funcs{}, fmt.Errorf("tee: resolving %s in %s: %w", symCreateKey, library, err)
	}
	funcs.CreateKey, err = asCreateKey(create)
	if err != nil {
		return Funcs{}, err
	}
	debug.Print("tee: resolved %s\n", symCreateKey)

	update, err := p.Lookup(symUpdateKey)
	if err != nil {
		return Funcs{}, fmt.Errorf("tee: resolving %s in %s: %w", symUpdateKey, library, err)
	}
	funcs.UpdateKey, err = asUpdateKey(update)
	if err != nil {
		return Funcs{}, err
	}
	debug.Print("tee: resolved %s\n", symUpdateKey)

	wipe, err := p.Lookup(symWipeKey)
	if err != nil {
		return Funcs{}, fmt.Errorf("tee: resolving %s in %s: %w", symWipeKey, library, err)
	}
	funcs.WipeKey, err = asWipeKey(wipe)
	if err != nil {
		return Funcs{}, err
	}
	debug.Print("tee: resolved %s\n", symWipeKey)

	return funcs, nil
}

func asCreateKey(sym plugin.Symbol) (func(int, []byte) int, error) {
	fn, ok := sym.(func(int, []byte) int)
	if !ok {
		return nil, fmt.Errorf("tee: symbol %s has unexpected type %T", symCreateKey, sym)
	}
	return fn, nil
}

func asUpdateKey(sym plugin.Symbol) (func(int, []byte, []byte) int, error) {
	fn, ok := sym.(func(int, []byte, []byte) int)
	if !ok {
		return nil, fmt.Errorf("tee: symbol %s has unexpected type %T", symUpdateKey, sym)
	}
	return fn, nil
}

func asWipeKey(sym plugin.Symbol) (func(int) int, error) {
	fn, ok := sym.(func(int) int)
	if !ok {
		return nil, fmt.Errorf("tee: symbol %s has unexpected type %T", symWipeKey, sym)
	}
	return fn, nil
}
