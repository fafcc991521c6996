package hwmod

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// descriptor is the on-disk YAML form of a module descriptor:
//
//	id: keystore.qcom
//	class: keystore
//	name: QSEECom keystore HAL
//	author: ...
//	api_version: "0.3"
type descriptor struct {
	ID         string `yaml:"id"`
	Class      string `yaml:"class"`
	Name       string `yaml:"name"`
	Author     string `yaml:"author"`
	APIVersion string `yaml:"api_version"`
}

// DirRegistry resolves modules from a directory of YAML descriptor files.
// The directory is scanned on every lookup: module descriptors are installed
// by the vendor image and may appear after the gateway starts.
type DirRegistry struct {
	dir string
}

// NewDirRegistry creates a registry over the given descriptor directory.
func NewDirRegistry(dir string) (*DirRegistry, error) {
	if dir == "" {
		return nil, fmt.Errorf("hwmod: descriptor directory is required")
	}
	return &DirRegistry{dir: dir}, nil
}

// FindByClass scans the descriptor directory in filename order and returns
// the first module of the given class.
func (r *DirRegistry) FindByClass(class string) (*Module, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("hwmod: reading descriptor directory %s: %w", r.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(r.dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("hwmod: reading descriptor %s: %w", path, err)
		}

		var d descriptor
		if err = yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("hwmod: parsing descriptor %s: %w", path, err)
		}

		if d.Class != class {
			continue
		}

		version, err := ParseAPIVersion(d.APIVersion)
		if err != nil {
			return nil, fmt.Errorf("hwmod: descriptor %s: %w", path, err)
		}

		return &Module{
			ID:         d.ID,
			Class:      d.Class,
			Name:       d.Name,
			Author:     d.Author,
			APIVersion: version,
		}, nil
	}

	return nil, fmt.Errorf("%w: class %q in %s", ErrModuleNotFound, class, r.dir)
}
