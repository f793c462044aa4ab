// Package keyinfo holds the compose schema key tables: for each compose file
// format version, the ordered set of keys the editor offers and the
// documentation shown next to each of them.
//
// Tables are parsed once from YAML mappings and never mutated afterwards, so
// a *Tables value can be shared by every request of every connection.
package keyinfo

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/teranos/composels/errors"
	"gopkg.in/yaml.v3"
)

//go:embed v1.yaml v2.yaml
var builtin embed.FS

// Version is a compose file format version tag.
type Version string

const (
	V1 Version = "1"
	V2 Version = "2"
)

// Normalize maps a declared version value onto a known tag. Only the exact
// value "2" selects the v2 schema; everything else, including "2.1" and the
// empty string, falls back to v1.
func Normalize(declared string) Version {
	if Version(declared) == V2 {
		return V2
	}
	return V1
}

// Entry is one key of a table.
type Entry struct {
	Key           string `json:"key"`
	Documentation string `json:"documentation"`
}

// Table is an ordered, read-only key → documentation mapping.
type Table struct {
	version Version
	entries []Entry
	index   map[string]int
}

// Version returns the schema version this table describes.
func (t *Table) Version() Version { return t.version }

// Len returns the number of keys.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the keys in table order. The slice is a copy.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Keys returns the key names in table order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.Key
	}
	return keys
}

// Lookup returns the documentation of key.
func (t *Table) Lookup(key string) (string, bool) {
	i, ok := t.index[key]
	if !ok {
		return "", false
	}
	return t.entries[i].Documentation, true
}

// Tables selects a Table by schema version.
type Tables struct {
	byVersion map[Version]*Table
}

// ForVersion returns the table for v. Unknown versions get the v1 table.
func (ts *Tables) ForVersion(v Version) *Table {
	if t, ok := ts.byVersion[v]; ok {
		return t
	}
	return ts.byVersion[V1]
}

var defaultTables = mustLoadBuiltin()

// Default returns the tables compiled into the binary.
func Default() *Tables {
	return defaultTables
}

func mustLoadBuiltin() *Tables {
	v1, err := builtin.ReadFile("v1.yaml")
	if err != nil {
		panic(err)
	}
	v2, err := builtin.ReadFile("v2.yaml")
	if err != nil {
		panic(err)
	}
	tables, err := Load(v1, v2)
	if err != nil {
		panic(errors.Wrap(err, "builtin key tables"))
	}
	return tables
}

// Load parses the v1 and v2 tables from YAML mappings.
func Load(v1, v2 []byte) (*Tables, error) {
	t1, err := parseTable(V1, v1)
	if err != nil {
		return nil, err
	}
	t2, err := parseTable(V2, v2)
	if err != nil {
		return nil, err
	}
	return &Tables{byVersion: map[Version]*Table{V1: t1, V2: t2}}, nil
}

// LoadDir reads v1.yaml and v2.yaml from dir.
func LoadDir(dir string) (*Tables, error) {
	v1, err := os.ReadFile(filepath.Join(dir, "v1.yaml"))
	if err != nil {
		return nil, errors.Wrapf(err, "read key table from %s", dir)
	}
	v2, err := os.ReadFile(filepath.Join(dir, "v2.yaml"))
	if err != nil {
		return nil, errors.Wrapf(err, "read key table from %s", dir)
	}
	return Load(v1, v2)
}

// parseTable walks the YAML node tree instead of unmarshalling into a map so
// that the document order of the keys survives.
func parseTable(version Version, data []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse v%s key table", version)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.Newf("v%s key table is empty", version)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Newf("v%s key table: expected a mapping at line %d", version, root.Line)
	}

	table := &Table{
		version: version,
		entries: make([]Entry, 0, len(root.Content)/2),
		index:   make(map[string]int, len(root.Content)/2),
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, errors.Newf("v%s key table: line %d: key and documentation must be scalars", version, k.Line)
		}
		if _, dup := table.index[k.Value]; dup {
			return nil, errors.Newf("v%s key table: line %d: duplicate key %q", version, k.Line, k.Value)
		}
		table.index[k.Value] = len(table.entries)
		table.entries = append(table.entries, Entry{Key: k.Value, Documentation: v.Value})
	}
	return table, nil
}
