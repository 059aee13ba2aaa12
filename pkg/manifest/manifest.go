// Package manifest reads and rewrites package.json. The document is kept as
// raw JSON text so that everything we don't touch (formatting, unknown
// fields, key order) survives a rewrite byte for byte.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const FileName = "package.json"

// Sections lists the manifest sections we operate on, in processing order.
var Sections = []string{"dependencies", "devDependencies"}

// Dependency is a single entry of a manifest section.
type Dependency struct {
	Name    string
	Version string
}

// Manifest is an in-memory package.json document. It is read once, mutated
// in memory, and written back at most once per run.
type Manifest struct {
	path     string
	raw      string
	modified bool
}

// Load reads the package.json inside dir. A missing manifest is a hard
// error: there is nothing sensible to scan or migrate without one.
func Load(dir string) (*Manifest, error) {
	path := dir
	if filepath.Base(path) != FileName {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no %s found: %w", FileName, err)
	}
	if !gjson.Valid(string(data)) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return &Manifest{path: path, raw: string(data)}, nil
}

// Parse builds a manifest from raw JSON. Used by tests and callers that
// already hold the document.
func Parse(raw string) (*Manifest, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("manifest is not valid JSON")
	}
	return &Manifest{raw: raw}, nil
}

// Section returns the entries of the named section in document order.
func (m *Manifest) Section(name string) []Dependency {
	var deps []Dependency
	gjson.Get(m.raw, jsonPath(name)).ForEach(func(key, value gjson.Result) bool {
		deps = append(deps, Dependency{Name: key.Str, Version: value.Str})
		return true
	})
	return deps
}

// AllNames returns the union of all section entries with duplicates
// collapsed, preserving first-seen order.
func (m *Manifest) AllNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, section := range Sections {
		for _, dep := range m.Section(section) {
			if !seen[dep.Name] {
				seen[dep.Name] = true
				names = append(names, dep.Name)
			}
		}
	}
	return names
}

// Has reports whether name is declared in the given section.
func (m *Manifest) Has(section, name string) bool {
	return gjson.Get(m.raw, jsonPath(section, name)).Exists()
}

// Version returns the version specifier of name in section, if declared.
func (m *Manifest) Version(section, name string) (string, bool) {
	res := gjson.Get(m.raw, jsonPath(section, name))
	return res.Str, res.Exists()
}

// Replace removes old from section and inserts alt at the "latest"
// specifier in the same section, marking the manifest as modified.
func (m *Manifest) Replace(section, old, alt string) error {
	raw, err := sjson.Delete(m.raw, jsonPath(section, old))
	if err != nil {
		return fmt.Errorf("removing %s from %s: %w", old, section, err)
	}
	raw, err = sjson.Set(raw, jsonPath(section, alt), "latest")
	if err != nil {
		return fmt.Errorf("adding %s to %s: %w", alt, section, err)
	}
	m.raw = raw
	m.modified = true
	return nil
}

// Modified reports whether any Replace has been applied.
func (m *Manifest) Modified() bool { return m.modified }

// Raw returns the current document text.
func (m *Manifest) Raw() string { return m.raw }

// Path returns the on-disk location, or "" for parsed-only manifests.
func (m *Manifest) Path() string { return m.path }

// Save overwrites the manifest on disk with the current document. A single
// whole-document write: either the old or the new manifest is on disk, never
// a partial patch.
func (m *Manifest) Save() error {
	if m.path == "" {
		return fmt.Errorf("manifest has no backing file")
	}
	return os.WriteFile(m.path, []byte(m.raw), 0o644)
}

// jsonPath joins path elements, escaping characters that gjson/sjson treat
// as path syntax. npm package names routinely contain dots.
func jsonPath(elems ...string) string {
	escaped := make([]string, 0, len(elems))
	r := strings.NewReplacer("\\", `\\`, ".", `\.`, "*", `\*`, "?", `\?`)
	for _, e := range elems {
		escaped = append(escaped, r.Replace(e))
	}
	return strings.Join(escaped, ".")
}
