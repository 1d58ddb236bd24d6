package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPool_ReuseBumpsGeneration(t *testing.T) {
	p := NewEntityPool()

	a := p.Create()
	require.False(t, a.IsZero())
	require.True(t, p.Alive(a))
	assert.Equal(t, 1, p.Len())

	require.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "stale id must not release twice")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index())
	assert.Equal(t, a.Generation()+1, b.Generation())
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
}

func TestEntityPool_ZeroNeverAlive(t *testing.T) {
	p := NewEntityPool()
	p.Create()
	assert.False(t, p.Alive(0))
	assert.False(t, p.Destroy(0))
}

func TestWorld_FlushDestroyQueue(t *testing.T) {
	w := NewWorld()
	names := NewPtrComponentStore[string]()
	w.Registry().Register(names)

	a := w.CreateEntity()
	b := w.CreateEntity()
	na, nb := "a", "b"
	names.Set(a, &na)
	names.Set(b, &nb)

	require.True(t, w.MarkForDestruction(a))
	require.False(t, w.MarkForDestruction(a))
	assert.Equal(t, 1, w.Pending())

	var seen []string
	n := w.FlushDestroyQueue(func(id EntityID) {
		v, ok := names.Get(id)
		require.True(t, ok, "components must still be readable before removal")
		seen = append(seen, *v)
		if id == a {
			w.MarkForDestruction(b)
		}
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 0, names.Len())
	assert.False(t, w.Alive(a))
	assert.False(t, w.Alive(b))
	assert.Equal(t, 0, w.Pending())
}

func TestEach2_AscendingIntersection(t *testing.T) {
	p := NewEntityPool()
	ints := NewPtrComponentStore[int]()
	strs := NewPtrComponentStore[string]()

	ids := []EntityID{p.Create(), p.Create(), p.Create()}
	for i, id := range ids {
		v := i
		ints.Set(id, &v)
	}
	s := "x"
	strs.Set(ids[2], &s)
	strs.Set(ids[0], &s)

	var got []EntityID
	Each2(ints, strs, func(id EntityID, _ *int, _ *string) {
		got = append(got, id)
	})
	assert.Equal(t, []EntityID{ids[0], ids[2]}, got)
}
