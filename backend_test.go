package hwcrypt

import (
	"testing"
)

func TestIsHWDiskEncryption(t *testing.T) {
	tests := []struct {
		name    string
		encMode string
		want    bool
	}{
		{"hardware mode", "aes-xts", true},
		{"empty", "", false},
		{"software essiv", "aes-cbc-essiv:sha256", false},
		{"upper case", "AES-XTS", false},
		{"prefix only", "aes-xts-plain64", false},
		{"surrounding space", " aes-xts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHWDiskEncryption(tt.encMode); got != tt.want {
				t.Errorf("IsHWDiskEncryption(%q) = %v, want %v", tt.encMode, got, tt.want)
			}
		})
	}
}

func TestICEBackendSelection(t *testing.T) {
	tests := []struct {
		name       string
		bootDevice string
		sdccNode   bool
		want       StorageBackend
	}{
		{"no boot device property", "", false, BackendStandard},
		{"ufs controller", "1d84000.ufshc", false, BackendUFSICE},
		{"ufs needs no device node", "ufs", false, BackendUFSICE},
		{"sdhc with ice node", "7824900.sdhci", true, BackendSDCCICE},
		{"sdhc without ice node", "7824900.sdhci", false, BackendStandard},
		{"unknown controller", "nvme0", true, BackendStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := readyProps(nil)
			if tt.bootDevice != "" {
				props[DefaultBootDeviceKey] = tt.bootDevice
			}

			g := newTestGateway(t, props, &fakeTEE{}, nil)
			defer g.Close()

			if tt.sdccNode {
				touch(t, g.opts.SDCCDevice)
			}

			if got := g.ICEBackend(); got != tt.want {
				t.Errorf("ICEBackend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestICEBackendMetadataPartitionForcesStandard(t *testing.T) {
	// A UFS boot device would select ICE, but the metadata partition wins
	props := readyProps(map[string]string{DefaultBootDeviceKey: "1d84000.ufshc"})
	g := newTestGateway(t, props, &fakeTEE{}, nil)
	defer g.Close()

	touch(t, g.opts.MetadataPartition)

	if got := g.ICEBackend(); got != BackendStandard {
		t.Errorf("ICEBackend() = %v, want %v with metadata partition", got, BackendStandard)
	}
}

func TestICEBackendRecomputedPerCall(t *testing.T) {
	props := readyProps(map[string]string{DefaultBootDeviceKey: "1d84000.ufshc"})
	g := newTestGateway(t, props, &fakeTEE{}, nil)
	defer g.Close()

	if got := g.ICEBackend(); got != BackendUFSICE {
		t.Fatalf("ICEBackend() = %v, want %v", got, BackendUFSICE)
	}

	// The partition appearing later must flip the selection, no caching
	touch(t, g.opts.MetadataPartition)
	if got := g.ICEBackend(); got != BackendStandard {
		t.Errorf("ICEBackend() = %v after metadata appeared, want %v", got, BackendStandard)
	}
}

func TestStorageBackendString(t *testing.T) {
	tests := []struct {
		backend StorageBackend
		want    string
	}{
		{BackendStandard, "standard"},
		{BackendUFSICE, "ufs-ice"},
		{BackendSDCCICE, "sdcc-ice"},
		{StorageBackend(99), "standard"},
	}

	for _, tt := range tests {
		if got := tt.backend.String(); got != tt.want {
			t.Errorf("StorageBackend(%d).String() = %q, want %q", tt.backend, got, tt.want)
		}
	}
}
