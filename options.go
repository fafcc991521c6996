package hwcrypt

import (
	"fmt"
	"time"

	"southwinds.dev/hwcrypt/audit"
	"southwinds.dev/hwcrypt/internal/tee"
)

// Default locations and property names. The device paths and property keys
// are fixed by the platform; they are configurable only so tests and bring-up
// images can point the gateway somewhere else.
const (
	DefaultPropertyFile  = "/etc/hwcrypt/system.properties"
	DefaultModuleDir     = "/etc/hwcrypt/modules"
	DefaultBootDeviceKey = "ro.boot.bootdevice"

	// DefaultMetadataPartition is the metadata-encryption partition. Its
	// presence forces the standard backend (see Gateway.ICEBackend).
	DefaultMetadataPartition = "/dev/block/bootdevice/by-name/metadata"

	// DefaultSDCCDevice is the ICE device node checked on sdhc boot devices.
	DefaultSDCCDevice = "/dev/icesdcc"
)

// Options represents configuration parameters for gateway initialization.
//
// The defaults reproduce the production device layout; every field exists so
// that tests and vendor bring-up images can relocate the external surfaces
// (property file, module descriptors, device nodes, TEE library) without
// patching the gateway. None of the fields carry secret material.
type Options struct {
	// PropertyFile is the .properties file backing the system property store.
	PropertyFile string `json:"property_file"`

	// Library is the name or path of the TEE client library to resolve on
	// first key operation.
	Library string `json:"library"`

	// ReadinessProperty must read "true" before the library is loaded.
	// ReadinessAttempts polls of ReadinessInterval bound the wait
	// (defaults: 100 x 100ms, a 10s worst case).
	ReadinessProperty string        `json:"readiness_property"`
	ReadinessAttempts int           `json:"readiness_attempts"`
	ReadinessInterval time.Duration `json:"readiness_interval"`

	// BootDeviceProperty names the boot-device descriptor property used for
	// backend selection.
	BootDeviceProperty string `json:"boot_device_property"`

	// MetadataPartition and SDCCDevice are the filesystem paths probed
	// during backend selection.
	MetadataPartition string `json:"metadata_partition"`
	SDCCDevice        string `json:"sdcc_device"`

	// ModuleDir holds the hardware module descriptors for the keymaster
	// version probe.
	ModuleDir string `json:"module_dir"`

	// EnableMemoryLock requests that process memory be locked so password
	// buffers cannot be swapped to disk. Best effort; the gateway records
	// the protection level achieved.
	EnableMemoryLock bool `json:"enable_memory_lock"`

	// DeviceID tags audit events; informational only.
	DeviceID string `json:"device_id,omitempty"`

	// Audit configures audit logging; nil disables it.
	Audit *audit.Config `json:"audit,omitempty"`
}

// DefaultOptions returns the production device configuration.
func DefaultOptions() Options {
	return Options{
		PropertyFile:       DefaultPropertyFile,
		Library:            tee.DefaultLibrary,
		ReadinessProperty:  tee.DefaultReadinessProperty,
		ReadinessAttempts:  tee.DefaultReadinessAttempts,
		ReadinessInterval:  tee.DefaultReadinessInterval,
		BootDeviceProperty: DefaultBootDeviceKey,
		MetadataPartition:  DefaultMetadataPartition,
		SDCCDevice:         DefaultSDCCDevice,
		ModuleDir:          DefaultModuleDir,
	}
}

// applyDefaults fills zero-valued fields with the production defaults.
func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.PropertyFile == "" {
		o.PropertyFile = def.PropertyFile
	}
	if o.Library == "" {
		o.Library = def.Library
	}
	if o.ReadinessProperty == "" {
		o.ReadinessProperty = def.ReadinessProperty
	}
	if o.ReadinessAttempts <= 0 {
		o.ReadinessAttempts = def.ReadinessAttempts
	}
	if o.ReadinessInterval <= 0 {
		o.ReadinessInterval = def.ReadinessInterval
	}
	if o.BootDeviceProperty == "" {
		o.BootDeviceProperty = def.BootDeviceProperty
	}
	if o.MetadataPartition == "" {
		o.MetadataPartition = def.MetadataPartition
	}
	if o.SDCCDevice == "" {
		o.SDCCDevice = def.SDCCDevice
	}
	if o.ModuleDir == "" {
		o.ModuleDir = def.ModuleDir
	}
}

// Validate validates the Options configuration
func (o Options) Validate() error {
	if o.Library == "" {
		return fmt.Errorf("TEE client library must be provided")
	}
	if o.ReadinessAttempts < 0 {
		return fmt.Errorf("readiness attempts must not be negative")
	}
	if o.ReadinessInterval < 0 {
		return fmt.Errorf("readiness interval must not be negative")
	}
	return nil
}
