// Package tee binds the gateway to the vendor trusted-execution-environment
// key-management library. The library is proprietary and loaded at runtime;
// this package hides the resolution machinery behind a narrow Client
// interface so the rest of the module only ever sees one of two capability
// states: a client whose three primitives are all callable, or no client at
// all. A partially resolved library is never exposed.
package tee

// Usage identifies the logical key a TEE primitive targets. The values are
// part of the vendor ABI and must not be renumbered.
type Usage int

const (
	UsageDiskEncryption Usage = 0x01
	UsageFileEncryption Usage = 0x02
	UsageUFSICEDisk     Usage = 0x03
	UsageSDCCICEDisk    Usage = 0x04
)

// Client exposes the three key-management primitives of the TEE library.
// Each call returns the library's raw status code: non-negative on success
// (the ICE key-LUT index on ICE targets), negative on failure. Status codes
// are opaque to this package; the gateway owns their interpretation.
type Client interface {
	// CreateKey provisions a key for the given usage from the 32-byte hash.
	CreateKey(usage Usage, hash []byte) int

	// UpdateKey re-wraps the key for the given usage, authenticating with
	// the current 32-byte hash and re-binding to the new one.
	UpdateKey(usage Usage, current, next []byte) int

	// WipeKey destroys the key material for the given usage.
	WipeKey(usage Usage) int
}

// Funcs holds the three resolved entry points of the TEE library. The loader
// fills it from plugin symbols; tests fill it with fakes.
type Funcs struct {
	CreateKey func(usage int, hash []byte) int
	UpdateKey func(usage int, current, next []byte) int
	WipeKey   func(usage int) int
}

// NewClient wraps a fully populated Funcs as a Client. It is the caller's
// responsibility that all three functions are non-nil; the loader enforces
// this before construction.
func NewClient(f Funcs) Client {
	return &funcClient{f: f}
}

type funcClient struct {
	f Funcs
}

func (c *funcClient) CreateKey(usage Usage, hash []byte) int {
	return c.f.CreateKey(int(usage), hash)
}

func (c *funcClient) UpdateKey(usage Usage, current, next []byte) int {
	return c.f.UpdateKey(int(usage), current, next)
}

func (c *funcClient) WipeKey(usage Usage) int {
	return c.f.WipeKey(int(usage))
}
