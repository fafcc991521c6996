//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package mem

func lockMemoryPlatform() (ProtectionLevel, error) {
	// No mlockall on this platform; buffer wiping still applies but swapping
	// cannot be prevented.
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	return nil
}
