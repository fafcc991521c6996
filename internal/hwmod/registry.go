// Package hwmod looks up hardware module descriptors by class, standing in
// for the platform HAL registry. Descriptors carry the module API version
// the gateway needs for the keymaster binding decision.
package hwmod

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// KeystoreClass is the class identifier of the keystore hardware module.
const KeystoreClass = "keystore"

// APIVersion is a hardware module API version packed as major<<8|minor,
// matching the platform's hardware module version encoding.
type APIVersion uint16

// MakeAPIVersion packs a major.minor pair into an APIVersion.
func MakeAPIVersion(major, minor uint8) APIVersion {
	return APIVersion(uint16(major)<<8 | uint16(minor))
}

// LegacyKeystoreVersion is keystore module API 0.3, the one version whose
// keys must not be bound to keymaster (older chipset carve-out).
var LegacyKeystoreVersion = MakeAPIVersion(0, 3)

func (v APIVersion) Major() uint8 { return uint8(v >> 8) }
func (v APIVersion) Minor() uint8 { return uint8(v) }

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// ParseAPIVersion parses a "major.minor" version string.
func ParseAPIVersion(s string) (APIVersion, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("hwmod: invalid api version %q", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("hwmod: invalid api version %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("hwmod: invalid api version %q: %w", s, err)
	}

	return MakeAPIVersion(uint8(major), uint8(minor)), nil
}

// Module describes one hardware module.
type Module struct {
	ID         string
	Class      string
	Name       string
	Author     string
	APIVersion APIVersion
}

// Registry resolves hardware modules by class identifier.
type Registry interface {
	// FindByClass returns the module registered for the given class.
	// Returns ErrModuleNotFound if no module of that class exists.
	FindByClass(class string) (*Module, error)
}

// ErrModuleNotFound indicates no module is registered for the class.
var ErrModuleNotFound = errors.New("hwmod: module not found")

// Static is a fixed in-memory registry used by tests and embedders.
type Static []Module

func (s Static) FindByClass(class string) (*Module, error) {
	for i := range s {
		if s[i].Class == class {
			m := s[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: class %q", ErrModuleNotFound, class)
}
