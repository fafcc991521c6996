package hwcrypt

import (
	"log"
	"time"

	"southwinds.dev/hwcrypt/internal/debug"
	"southwinds.dev/hwcrypt/internal/tee"
)

// Status codes returned by the key operations. Success is non-negative: zero
// on standard targets, the ICE key-LUT index on ICE targets. The negative
// values are fixed by the caller ABI and must not be renumbered.
const (
	// ErrKeyOpFailed is the generic failure: operation skipped because the
	// encryption mode is not hardware-backed, or a buffer could not be
	// obtained.
	ErrKeyOpFailed = -1

	// ErrCreateKeyFailed, ErrWipeKeyFailed and ErrUpdateKeyFailed are the
	// gateway-unavailable sentinels: the TEE library could not be loaded for
	// the respective operation. Distinct per operation so callers can tell
	// "gateway unavailable" apart from a primitive failure.
	ErrCreateKeyFailed = -7
	ErrWipeKeyFailed   = -8
	ErrUpdateKeyFailed = -9

	// ErrMaxPasswordAttempts is raised by the TEE when the wrong-password
	// budget is exhausted. The TEE has already destroyed its crypto state;
	// the caller is expected to wipe userdata in response. A security
	// signal, not a transient error.
	ErrMaxPasswordAttempts = -10
)

// Key operation discriminators for the shared dispatch path.
const (
	opSetKey = iota + 1
	opUpdateKey
)

// SetHWDeviceEncryptionKey provisions the disk-encryption key in the TEE
// from the given password. The operation is a no-op returning a failure
// sentinel unless encMode activates hardware-backed encryption. On non-ICE
// targets a successful return is 0; on ICE targets it is the key index in
// the ICE key LUT.
func (g *Gateway) SetHWDeviceEncryptionKey(passwd, encMode string) int {
	return g.setKey("", passwd, encMode, opSetKey)
}

// UpdateHWDeviceEncryptionKey re-binds the disk-encryption key from the old
// password to the new one. Gated by encMode the same way as
// SetHWDeviceEncryptionKey.
func (g *Gateway) UpdateHWDeviceEncryptionKey(oldPasswd, newPasswd, encMode string) int {
	return g.setKey(oldPasswd, newPasswd, encMode, opUpdateKey)
}

// setKey is the shared dispatch path for create and update. Password buffers
// are wiped and released on every exit, success or failure.
func (g *Gateway) setKey(currentPasswd, newPasswd, encMode string, op int) int {
	start := time.Now()
	status := ErrKeyOpFailed

	action := "set_key"
	if op == opUpdateKey {
		action = "update_key"
	}

	if !IsHWDiskEncryption(encMode) {
		debug.Print("keyops: mode %q is not hardware-backed, skipping %s\n", encMode, action)
		return status
	}

	backend := g.ICEBackend()
	usage := mapUsage(tee.UsageDiskEncryption, backend)

	newBuf, err := newPasswdBuf(newPasswd)
	if err != nil {
		g.logKeyOp(action, usage, backend, status, err, start)
		return status
	}
	defer newBuf.Destroy()

	switch op {
	case opUpdateKey:
		currentBuf, err := newPasswdBuf(currentPasswd)
		if err != nil {
			// Update cannot proceed without the old password; skip the TEE
			// call entirely. The new-password buffer is still wiped by the
			// deferred destroy.
			g.logKeyOp(action, usage, backend, status, err, start)
			return status
		}
		defer currentBuf.Destroy()
		status = g.updateKey(usage, currentBuf.Bytes(), newBuf.Bytes())
	case opSetKey:
		status = g.createKey(usage, newBuf.Bytes())
	}

	if status == ErrMaxPasswordAttempts {
		// The caller will erase userdata when it sees this code.
		if auditErr := g.audit.Log("max_password_attempts", false, map[string]interface{}{
			"usage":   int(usage),
			"backend": backend.String(),
		}); auditErr != nil {
			log.Printf("hwcrypt: audit write failed for max_password_attempts: %v", auditErr)
		}
	}

	g.logKeyOp(action, usage, backend, status, nil, start)
	return status
}

// ClearHWDeviceEncryptionKey wipes the disk-encryption key in the TEE. Not
// gated by encryption mode: a wipe request is honored unconditionally.
func (g *Gateway) ClearHWDeviceEncryptionKey() int {
	start := time.Now()

	backend := g.ICEBackend()
	usage := mapUsage(tee.UsageDiskEncryption, backend)

	status := g.wipeKey(usage)
	g.logKeyOp("wipe_key", usage, backend, status, nil, start)
	return status
}

// createKey forwards to the TEE create primitive, failing closed with the
// create sentinel when the library is unavailable.
func (g *Gateway) createKey(usage tee.Usage, hash []byte) int {
	client, err := g.loader.Load()
	if err != nil {
		debug.Print("keyops: library unavailable for create: %v\n", err)
		return ErrCreateKeyFailed
	}
	return client.CreateKey(usage, hash)
}

func (g *Gateway) updateKey(usage tee.Usage, current, next []byte) int {
	client, err := g.loader.Load()
	if err != nil {
		debug.Print("keyops: library unavailable for update: %v\n", err)
		return ErrUpdateKeyFailed
	}
	return client.UpdateKey(usage, current, next)
}

func (g *Gateway) wipeKey(usage tee.Usage) int {
	client, err := g.loader.Load()
	if err != nil {
		debug.Print("keyops: library unavailable for wipe: %v\n", err)
		return ErrWipeKeyFailed
	}
	return client.WipeKey(usage)
}

// mapUsage rewrites the generic disk-encryption usage tag to the
// backend-specific ICE variant. All other tags pass through unchanged.
func mapUsage(usage tee.Usage, backend StorageBackend) tee.Usage {
	if usage != tee.UsageDiskEncryption {
		return usage
	}
	switch backend {
	case BackendUFSICE:
		return tee.UsageUFSICEDisk
	case BackendSDCCICE:
		return tee.UsageSDCCICEDisk
	}
	return usage
}

// logKeyOp records one key operation in the audit trail. Password material
// is never part of the event.
func (g *Gateway) logKeyOp(action string, usage tee.Usage, backend StorageBackend, status int, err error, start time.Time) {
	metadata := map[string]interface{}{
		"usage":       int(usage),
		"backend":     backend.String(),
		"status":      status,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		metadata["error"] = err.Error()
	}
	if auditErr := g.audit.Log(action, status >= 0, metadata); auditErr != nil {
		// The key operation already happened; a lost trail entry must not
		// fail it, but it has to leave a trace.
		log.Printf("hwcrypt: audit write failed for %s: %v", action, auditErr)
	}
}
