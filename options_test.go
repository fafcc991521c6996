package hwcrypt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"southwinds.dev/hwcrypt/internal/tee"
)

func TestDefaultOptions(t *testing.T) {
	options := DefaultOptions()

	assert.Equal(t, DefaultPropertyFile, options.PropertyFile)
	assert.Equal(t, tee.DefaultLibrary, options.Library)
	assert.Equal(t, tee.DefaultReadinessProperty, options.ReadinessProperty)
	assert.Equal(t, 100, options.ReadinessAttempts)
	assert.Equal(t, 100*time.Millisecond, options.ReadinessInterval)
	assert.Equal(t, DefaultBootDeviceKey, options.BootDeviceProperty)
	assert.Equal(t, DefaultMetadataPartition, options.MetadataPartition)
	assert.Equal(t, DefaultSDCCDevice, options.SDCCDevice)
	assert.Equal(t, DefaultModuleDir, options.ModuleDir)
	assert.False(t, options.EnableMemoryLock)
	assert.Nil(t, options.Audit)

	require.NoError(t, options.Validate())
}

func TestApplyDefaultsFillsZeroFields(t *testing.T) {
	options := Options{
		Library:           "libcustom.so",
		ReadinessAttempts: 5,
	}
	options.applyDefaults()

	// Explicit values survive
	assert.Equal(t, "libcustom.so", options.Library)
	assert.Equal(t, 5, options.ReadinessAttempts)

	// Zero fields take the production defaults
	assert.Equal(t, DefaultPropertyFile, options.PropertyFile)
	assert.Equal(t, tee.DefaultReadinessProperty, options.ReadinessProperty)
	assert.Equal(t, tee.DefaultReadinessInterval, options.ReadinessInterval)
	assert.Equal(t, DefaultMetadataPartition, options.MetadataPartition)
}
