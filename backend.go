package hwcrypt

import (
	"strings"

	"southwinds.dev/hwcrypt/internal/debug"
)

// EncModeAESXTS is the only encryption-mode identifier that activates
// hardware-backed key operations. Any other mode string, including the empty
// string, causes set/update to no-op with a failure sentinel.
const EncModeAESXTS = "aes-xts"

// StorageBackend identifies the hardware-encryption backend in effect.
// The non-zero values are part of the vendor ABI.
type StorageBackend int

const (
	// BackendStandard selects standard disk encryption (no inline crypto).
	BackendStandard StorageBackend = 0

	// BackendUFSICE selects the inline crypto engine on UFS storage.
	BackendUFSICE StorageBackend = 1

	// BackendSDCCICE selects the inline crypto engine on the SD/eMMC
	// controller.
	BackendSDCCICE StorageBackend = 2
)

func (b StorageBackend) String() string {
	switch b {
	case BackendUFSICE:
		return "ufs-ice"
	case BackendSDCCICE:
		return "sdcc-ice"
	default:
		return "standard"
	}
}

// IsHWDiskEncryption reports whether the encryption mode activates
// hardware-backed key operations. True iff the mode is exactly "aes-xts".
func IsHWDiskEncryption(encMode string) bool {
	return encMode == EncModeAESXTS
}

// IsHWDiskEncryption reports whether the encryption mode activates
// hardware-backed key operations on this gateway.
func (g *Gateway) IsHWDiskEncryption(encMode string) bool {
	return IsHWDiskEncryption(encMode)
}

// ICEBackend determines which hardware-encryption backend applies to the
// running device. The selection is recomputed on every call; the backend can
// only be queried, never mutated, through this module.
//
// Selection order:
//  1. If the metadata partition exists, the standard backend is forced.
//     Hardware FDE encrypts the whole disk and conflicts with metadata
//     encryption even when ICE is present, so the ICE path is disabled
//     outright on such devices.
//  2. Otherwise a boot device containing "ufs" selects the UFS ICE backend
//     unconditionally: every UFS-based target ships an ICE, so no device
//     node probe is needed.
//  3. A boot device containing "sdhc" selects the SDCC ICE backend only if
//     the ICE device node is also present; anything else is standard.
func (g *Gateway) ICEBackend() StorageBackend {
	if fileExists(g.opts.MetadataPartition) {
		debug.Print("backend: metadata partition present, forcing standard\n")
		return BackendStandard
	}

	bootDevice := g.props.Get(g.opts.BootDeviceProperty)
	if bootDevice == "" {
		return BackendStandard
	}

	if strings.Contains(bootDevice, "ufs") {
		return BackendUFSICE
	}
	if strings.Contains(bootDevice, "sdhc") && fileExists(g.opts.SDCCDevice) {
		return BackendSDCCICE
	}

	return BackendStandard
}
