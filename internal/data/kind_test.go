package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cerea1/lifetime/internal/core/lifetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
kinds:
  - name: hostile
    capability: true
  - name: monster
    implements: [hostile]
    pool: true
  - name: goblin
    extends: monster
    ttl: 10
  - name: hunter
    perceives: [monster]
`

func TestParseKindTable(t *testing.T) {
	tbl, err := ParseKindTable([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.Count())
	assert.Equal(t, []string{"hostile", "monster", "goblin", "hunter"}, tbl.Names())

	g := tbl.Get("goblin")
	require.NotNil(t, g)
	assert.Equal(t, "monster", g.Extends)
	assert.Equal(t, 10, g.TTL)
	assert.Nil(t, tbl.Get("dragon"))
}

func TestKindTable_Declare(t *testing.T) {
	tbl, err := ParseKindTable([]byte(sample))
	require.NoError(t, err)

	b := lifetime.NewBuilder(nil)
	tbl.Declare(b)
	r, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []lifetime.Key{lifetime.Root, "hostile", "monster", "goblin", "hunter"}, r.Kinds())
}

func TestKindTable_DeclareSurfacesGraphErrors(t *testing.T) {
	tbl, err := ParseKindTable([]byte("kinds:\n  - name: orc\n    extends: missing\n"))
	require.NoError(t, err)

	b := lifetime.NewBuilder(nil)
	tbl.Declare(b)
	_, err = b.Build()
	assert.ErrorIs(t, err, lifetime.ErrConfig)
}

func TestParseKindTable_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"duplicate":         "kinds:\n  - name: a\n  - name: a\n",
		"nameless":          "kinds:\n  - extends: a\n",
		"negative ttl":      "kinds:\n  - name: a\n    ttl: -1\n",
		"pooled capability": "kinds:\n  - name: a\n    capability: true\n    pool: true\n",
		"bad yaml":          "kinds: [",
	} {
		_, err := ParseKindTable([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadKindTable_ShippedFile(t *testing.T) {
	path := filepath.Join("..", "..", "data", "kinds.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("kinds.yaml not found")
	}
	tbl, err := LoadKindTable(path)
	require.NoError(t, err)

	b := lifetime.NewBuilder(nil).Strict(true)
	tbl.Declare(b)
	_, err = b.Build()
	require.NoError(t, err)
}
