package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lmhost/internal/common/fsutil"
	"lmhost/pkg/types"
)

// ModelExt is the artifact extension picked up by directory scans.
const ModelExt = ".gguf"

// LoadDir scans a directory for *.gguf files and builds registry entries from
// filenames. ID is the filename without extension; Path is the absolute file path.
// A missing directory yields an empty registry so that catalog-only setups can
// download into it later.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if fsutil.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ModelExt) {
			continue
		}
		id := name[:len(name)-len(ModelExt)]
		models = append(models, types.Model{ID: id, Name: id, Path: filepath.Join(abs, name)})
	}
	return models, nil
}

// Build merges configured catalog entries with a scan of dir. Catalog entries
// win over scanned files with the same ID; entries without a Path are placed
// at <dir>/<id>.gguf. The result is sorted by ID.
func Build(dir string, catalog []types.Model) ([]types.Model, error) {
	scanned, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	abs, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]types.Model, len(scanned)+len(catalog))
	for _, m := range scanned {
		byID[m.ID] = m
	}
	seen := make(map[string]bool, len(catalog))
	for _, m := range catalog {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog entry without id")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate catalog id %q", id)
		}
		seen[id] = true
		m.ID = id
		if m.Name == "" {
			m.Name = id
		}
		if m.Path == "" {
			m.Path = filepath.Join(abs, id+ModelExt)
		} else if m.Path, err = fsutil.ExpandHome(m.Path); err != nil {
			return nil, err
		}
		for _, in := range m.Inputs {
			if !in.Valid() {
				return nil, fmt.Errorf("model %q: unknown input type %q", id, in)
			}
		}
		byID[id] = m
	}
	out := make([]types.Model, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func absDir(dir string) (string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}
