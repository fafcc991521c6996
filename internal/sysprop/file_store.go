package sysprop

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FileStore reads properties from a Java-style .properties file, with
// environment variables taking precedence (dots mapped to underscores and
// upper-cased, so "ro.boot.bootdevice" can be overridden with
// RO_BOOT_BOOTDEVICE). The file is re-read on every access: properties are
// published and rewritten by other processes late in the boot sequence, and
// readers poll for them, so there is no point at which the file can be
// considered settled. A file that does not exist yet reads as empty until it
// appears.
//
// All reloads and reads happen under the store's own lock. The underlying
// viper instance is never touched from more than one goroutine at a time, so
// a rewrite landing mid-poll cannot race a read.
type FileStore struct {
	path string
	mu   sync.Mutex
	v    *viper.Viper
}

// NewFileStore creates a property store backed by the given .properties file.
// The file is allowed to be absent; reads fall back to environment overrides
// and defaults until it appears.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("property file path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileStore{path: path, v: v}, nil
}

// reload re-reads the backing file if it exists. A vanished or unreadable
// file keeps the last successfully loaded snapshot. Callers must hold fs.mu.
func (fs *FileStore) reload() {
	if _, err := os.Stat(fs.path); err != nil {
		return
	}
	// The file is tiny and polled at a fixed cadence; an unconditional
	// re-read keeps every access serialized under one lock instead of
	// handing the reload to a watcher goroutine.
	_ = fs.v.ReadInConfig()
}

func (fs *FileStore) Get(key string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.reload()
	return fs.v.GetString(key)
}

func (fs *FileStore) GetDefault(key, def string) string {
	if v := fs.Get(key); v != "" {
		return v
	}
	return def
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}
