package bundler

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
)

// Manifest holds the package.json fields used to locate entry points.
type Manifest struct {
	Name        string `json:"name"`
	Main        string `json:"main"`
	Browser     any    `json:"browser"`      // string or replacement map
	ReactNative any    `json:"react-native"` // string or replacement map
	Types       string `json:"types"`
	Typings     string `json:"typings"`
}

// ReadManifest parses dir/package.json. A missing manifest yields an empty one.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// entryFields returns the entry paths declared by the manifest in lookup
// order for platform web (browser included) or native.
func (m *Manifest) entryFields(web bool) []string {
	var out []string
	if s, ok := m.ReactNative.(string); ok && s != "" {
		out = append(out, s)
	}
	if s, ok := m.Browser.(string); ok && s != "" && web {
		out = append(out, s)
	}
	if m.Main != "" {
		out = append(out, m.Main)
	}
	return out
}

// typesEntry returns the declared type declaration entry, if any.
func (m *Manifest) typesEntry() string {
	if m.Types != "" {
		return m.Types
	}
	return m.Typings
}

// ignoredManifestFields are dropped before installing: install never runs
// scripts and must not pull development or optional native dependencies.
var ignoredManifestFields = []string{
	"devDependencies",
	"optionalDependencies",
	"peerDependencies",
	"peerDependenciesMeta",
	"scripts",
	"workspaces",
}

// WriteDependencies rewrites dir/package.json so that installing it fetches
// exactly deps. Other fields are preserved.
func WriteDependencies(dir string, deps map[string]string) error {
	path := filepath.Join(dir, "package.json")
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	for _, f := range ignoredManifestFields {
		delete(doc, f)
	}
	doc["dependencies"] = maps.Clone(deps)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
