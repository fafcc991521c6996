package hwcrypt

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"southwinds.dev/hwcrypt/audit"
	"southwinds.dev/hwcrypt/internal/hwmod"
	"southwinds.dev/hwcrypt/internal/mem"
	"southwinds.dev/hwcrypt/internal/sysprop"
	"southwinds.dev/hwcrypt/internal/tee"
)

// Initialize memguard in init function to ensure it's set up before any
// key operation handles password material
func init() {
	memguard.CatchInterrupt()
}

// Gateway forwards full-disk-encryption key operations to the vendor TEE
// key-management service and answers backend-selection queries for the
// calling disk-encryption manager.
//
// The gateway is a thin, synchronous adapter. It keeps exactly one piece of
// state of its own: whether the TEE client library has been resolved (owned
// by the tee.Loader, memoized on success, retryable on failure). Everything
// else it reports - encryption backend, keymaster binding - is recomputed
// from external signals on every call, never cached, because those signals
// belong to the platform, not to the gateway.
//
// SECURITY MODEL:
//   - Password material only ever exists inside fixed 32-byte locked buffers
//     that are wiped before release on every exit path, including errors.
//   - Passwords are never logged; audit events carry usage tags, backend
//     selection and status codes only.
//   - When the library cannot be loaded, every key operation fails closed
//     with its distinct sentinel so callers can tell "gateway unavailable"
//     apart from "TEE primitive failed".
//
// CONCURRENCY:
// Key operations are safe under concurrent first use: the loader serializes
// the readiness wait and symbol resolution, and each operation owns its
// password buffers exclusively. The gateway performs no internal threading;
// the only blocking behavior is the bounded readiness wait on first load
// (worst case ~10s with default options).
type Gateway struct {
	opts    Options
	props   sysprop.Store
	loader  *tee.Loader
	modules hwmod.Registry
	audit   audit.Logger

	// Memory protection
	memoryProtectionLevel mem.ProtectionLevel

	mu     sync.Mutex
	closed bool
}

// New creates a gateway over the production external surfaces: a
// property-file backed system property store, a YAML descriptor module
// registry, and the plugin-resolved TEE client library.
func New(options Options) (*Gateway, error) {
	options.applyDefaults()
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway options: %w", err)
	}

	props, err := sysprop.NewFileStore(options.PropertyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open property store: %w", err)
	}

	modules, err := hwmod.NewDirRegistry(options.ModuleDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open module registry: %w", err)
	}

	auditLogger, err := audit.NewLogger(options.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}

	loader := tee.NewLoader(tee.Config{
		Library:           options.Library,
		Props:             props,
		ReadinessProperty: options.ReadinessProperty,
		ReadinessAttempts: options.ReadinessAttempts,
		ReadinessInterval: options.ReadinessInterval,
	})

	return NewWithDeps(options, props, loader, modules, auditLogger)
}

// NewWithDeps creates a gateway with explicit external dependencies. It is
// the primary constructor for tests and for embedders that already hold a
// property store or module registry.
//
// A nil auditLogger falls back to the no-op logger.
func NewWithDeps(options Options, props sysprop.Store, loader *tee.Loader, modules hwmod.Registry, auditLogger audit.Logger) (*Gateway, error) {
	options.applyDefaults()
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway options: %w", err)
	}
	if props == nil {
		return nil, fmt.Errorf("property store is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("TEE loader is required")
	}
	if modules == nil {
		return nil, fmt.Errorf("module registry is required")
	}
	if auditLogger == nil {
		auditLogger = audit.NewNoOpLogger()
	}

	g := &Gateway{
		opts:                  options,
		props:                 props,
		loader:                loader,
		modules:               modules,
		audit:                 auditLogger,
		memoryProtectionLevel: mem.ProtectionNone,
	}

	if options.EnableMemoryLock {
		level, err := mem.Lock()
		if err != nil {
			// Best effort: key buffers are still wiped, they just may be
			// swappable.
			log.Printf("hwcrypt: memory lock unavailable: %v", err)
		}
		g.memoryProtectionLevel = level
	}

	return g, nil
}

// MemoryProtection reports the memory protection level achieved at startup.
func (g *Gateway) MemoryProtection() mem.ProtectionLevel {
	return g.memoryProtectionLevel
}

// LibraryLoaded reports whether the TEE client library has been resolved.
func (g *Gateway) LibraryLoaded() bool {
	return g.loader.Loaded()
}

// Close releases the audit logger and any memory locks. The TEE library
// itself has no teardown: once resolved it lives for the process lifetime.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if g.opts.EnableMemoryLock && g.memoryProtectionLevel == mem.ProtectionFull {
		if err := mem.Unlock(); err != nil {
			log.Printf("hwcrypt: memory unlock failed: %v", err)
		}
	}

	return g.audit.Close()
}

// fileExists mirrors an access(2) existence probe.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
