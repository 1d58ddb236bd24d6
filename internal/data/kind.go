package data

import (
	"fmt"
	"os"

	"github.com/cerea1/lifetime/internal/core/lifetime"
	"gopkg.in/yaml.v3"
)

// KindEntry declares one arena kind and its place in the lifetime graph.
type KindEntry struct {
	Name       string   `yaml:"name"`
	Extends    string   `yaml:"extends"`
	Implements []string `yaml:"implements"`
	Perceives  []string `yaml:"perceives"`
	Observes   []string `yaml:"observes"`
	Capability bool     `yaml:"capability"` // cannot be spawned, only implemented
	Pool       bool     `yaml:"pool"`       // recycle actors of this kind
	TTL        int      `yaml:"ttl"`        // ticks before an actor expires, 0 = never
}

type kindListFile struct {
	Kinds []KindEntry `yaml:"kinds"`
}

// KindTable holds every kind in file order, indexed by name.
type KindTable struct {
	kinds []*KindEntry
	index map[string]*KindEntry
}

// LoadKindTable loads kinds.yaml.
func LoadKindTable(path string) (*KindTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kind list: %w", err)
	}
	return ParseKindTable(raw)
}

// ParseKindTable parses a kinds document already in memory.
func ParseKindTable(raw []byte) (*KindTable, error) {
	var f kindListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse kind list: %w", err)
	}
	t := &KindTable{
		kinds: make([]*KindEntry, 0, len(f.Kinds)),
		index: make(map[string]*KindEntry, len(f.Kinds)),
	}
	for i := range f.Kinds {
		k := &f.Kinds[i]
		switch {
		case k.Name == "":
			return nil, fmt.Errorf("kind #%d has no name", i)
		case k.TTL < 0:
			return nil, fmt.Errorf("kind %s: negative ttl", k.Name)
		case k.Capability && (k.Pool || k.TTL > 0):
			return nil, fmt.Errorf("kind %s: capabilities are never spawned", k.Name)
		}
		if _, dup := t.index[k.Name]; dup {
			return nil, fmt.Errorf("kind %s listed twice", k.Name)
		}
		t.kinds = append(t.kinds, k)
		t.index[k.Name] = k
	}
	return t, nil
}

// Declare adds every kind to b in file order. Graph errors surface from Build.
func (t *KindTable) Declare(b *lifetime.Builder) {
	for _, k := range t.kinds {
		b.Declare(lifetime.Key(k.Name), lifetime.Decl{
			Parent:     lifetime.Key(k.Extends),
			Implements: keys(k.Implements),
			Perceives:  keys(k.Perceives),
			Observes:   keys(k.Observes),
			Capability: k.Capability,
		})
	}
}

// Get returns the kind by name, or nil if none.
func (t *KindTable) Get(name string) *KindEntry {
	return t.index[name]
}

// Names returns every kind name in file order.
func (t *KindTable) Names() []string {
	out := make([]string, len(t.kinds))
	for i, k := range t.kinds {
		out[i] = k.Name
	}
	return out
}

// Count returns the total number of kinds loaded.
func (t *KindTable) Count() int {
	return len(t.kinds)
}

func keys(names []string) []lifetime.Key {
	if len(names) == 0 {
		return nil
	}
	out := make([]lifetime.Key, len(names))
	for i, n := range names {
		out[i] = lifetime.Key(n)
	}
	return out
}
