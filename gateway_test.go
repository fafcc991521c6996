package hwcrypt

import (
	"path/filepath"
	"testing"

	"southwinds.dev/hwcrypt/internal/hwmod"
	"southwinds.dev/hwcrypt/internal/sysprop"
	"southwinds.dev/hwcrypt/internal/tee"
)

func TestNewWithDepsValidation(t *testing.T) {
	props := sysprop.Static{}
	loader := tee.NewLoader(tee.Config{Props: props})
	modules := hwmod.Static{}

	tests := []struct {
		name    string
		props   sysprop.Store
		loader  *tee.Loader
		modules hwmod.Registry
	}{
		{"nil property store", nil, loader, modules},
		{"nil loader", props, nil, modules},
		{"nil module registry", props, loader, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithDeps(Options{}, tt.props, tt.loader, tt.modules, nil)
			if err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestNewWithDepsAppliesDefaults(t *testing.T) {
	props := sysprop.Static{}
	g, err := NewWithDeps(Options{}, props, tee.NewLoader(tee.Config{Props: props}), hwmod.Static{}, nil)
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}
	defer g.Close()

	if g.opts.Library != tee.DefaultLibrary {
		t.Errorf("Library = %q, want %q", g.opts.Library, tee.DefaultLibrary)
	}
	if g.opts.BootDeviceProperty != DefaultBootDeviceKey {
		t.Errorf("BootDeviceProperty = %q, want %q", g.opts.BootDeviceProperty, DefaultBootDeviceKey)
	}
	if g.opts.MetadataPartition != DefaultMetadataPartition {
		t.Errorf("MetadataPartition = %q, want %q", g.opts.MetadataPartition, DefaultMetadataPartition)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		wantErr bool
	}{
		{"defaults are valid", DefaultOptions(), false},
		{"negative attempts", Options{Library: "lib.so", ReadinessAttempts: -1}, true},
		{"negative interval", Options{Library: "lib.so", ReadinessInterval: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.options.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGatewayCloseIdempotent(t *testing.T) {
	g := newTestGateway(t, readyProps(nil), &fakeTEE{}, nil)

	if err := g.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}
}

func TestNewBuildsProductionSurfaces(t *testing.T) {
	dir := t.TempDir()
	options := Options{
		PropertyFile:      filepath.Join(dir, "system.properties"),
		ModuleDir:         dir,
		MetadataPartition: filepath.Join(dir, "metadata"),
		SDCCDevice:        filepath.Join(dir, "icesdcc"),
	}

	g, err := New(options)
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}
	defer g.Close()

	if g.LibraryLoaded() {
		t.Error("Library reported loaded before first key operation")
	}
	if got := g.ICEBackend(); got != BackendStandard {
		t.Errorf("ICEBackend() = %v, want %v with empty properties", got, BackendStandard)
	}
}
