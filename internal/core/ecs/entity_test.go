package ecs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityID(t *testing.T) {
	id := NewEntityID(7, 3)
	assert.Equal(t, uint32(7), id.Index())
	assert.Equal(t, uint32(3), id.Generation())
	assert.Equal(t, EntityID(3<<32|7), id)
	assert.Equal(t, "e7.3", id.String())
	assert.True(t, EntityID(0).IsZero())
}

func TestEntityPool(t *testing.T) {
	t.Run("allocates ascending indices", func(t *testing.T) {
		p := NewEntityPool(8)
		for i := 0; i < 3; i++ {
			id, err := p.Create()
			require.NoError(t, err)
			assert.Equal(t, uint32(i), id.Index())
			assert.Equal(t, uint32(0), id.Generation())
			assert.True(t, p.Alive(id))
		}
		assert.Equal(t, 3, p.ActiveCount())
	})

	t.Run("capacity exhaustion returns invalid handle", func(t *testing.T) {
		p := NewEntityPool(2)
		_, err := p.Create()
		require.NoError(t, err)
		_, err = p.Create()
		require.NoError(t, err)

		id, err := p.Create()
		assert.ErrorIs(t, err, ErrBounds)
		assert.Equal(t, InvalidEntity(2), id)
		assert.Equal(t, uint32(2), id.Index())
		assert.False(t, p.Alive(id))
	})

	t.Run("reuses lowest free index with bumped generation", func(t *testing.T) {
		p := NewEntityPool(4)
		ids := make([]EntityID, 4)
		for i := range ids {
			ids[i], _ = p.Create()
		}
		require.NoError(t, p.Destroy(ids[2]))
		require.NoError(t, p.Destroy(ids[0]))
		assert.False(t, p.Alive(ids[0]))
		assert.False(t, p.Alive(ids[2]))

		a, err := p.Create()
		require.NoError(t, err)
		assert.Equal(t, NewEntityID(0, 1), a)

		b, err := p.Create()
		require.NoError(t, err)
		assert.Equal(t, NewEntityID(2, 1), b)

		assert.NotEqual(t, ids[0], a)
		assert.False(t, p.Alive(ids[0]), "stale handle must stay dead after reuse")
	})

	t.Run("destroy errors", func(t *testing.T) {
		p := NewEntityPool(4)
		id, _ := p.Create()
		require.NoError(t, p.Destroy(id))
		assert.ErrorIs(t, p.Destroy(id), ErrNotFound)
		assert.ErrorIs(t, p.Destroy(NewEntityID(3, 0)), ErrNotFound)
		assert.ErrorIs(t, p.Destroy(InvalidEntity(4)), ErrBounds)
	})

	t.Run("forged handle for a free slot is not alive", func(t *testing.T) {
		p := NewEntityPool(4)
		id, _ := p.Create()
		require.NoError(t, p.Destroy(id))
		assert.False(t, p.Alive(NewEntityID(0, 1)))
	})

	t.Run("active list stays sorted", func(t *testing.T) {
		p := NewEntityPool(6)
		ids := make([]EntityID, 6)
		for i := range ids {
			ids[i], _ = p.Create()
		}
		require.NoError(t, p.Destroy(ids[0]))
		require.NoError(t, p.Destroy(ids[4]))
		re, _ := p.Create()
		assert.Equal(t, uint32(0), re.Index())

		want := []uint32{0, 1, 2, 3, 5}
		require.Equal(t, len(want), p.ActiveCount())
		for i, idx := range want {
			id, err := p.ActiveAt(i)
			require.NoError(t, err)
			assert.Equal(t, idx, id.Index())
		}
		_, err := p.ActiveAt(5)
		assert.ErrorIs(t, err, ErrBounds)
	})
}

func TestEntityPoolRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := NewEntityPool(64)
	live := map[uint32]EntityID{}
	lastGen := map[uint32]uint32{}

	for step := 0; step < 5000; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			id, err := p.Create()
			if len(live) == 64 {
				assert.ErrorIs(t, err, ErrBounds)
				continue
			}
			require.NoError(t, err)
			_, dup := live[id.Index()]
			require.False(t, dup, "index %d issued twice", id.Index())
			if g, seen := lastGen[id.Index()]; seen {
				require.Greater(t, id.Generation(), g)
			}
			live[id.Index()] = id
		} else {
			var victim EntityID
			n := rng.Intn(len(live))
			for _, id := range live {
				if n == 0 {
					victim = id
					break
				}
				n--
			}
			require.NoError(t, p.Destroy(victim))
			lastGen[victim.Index()] = victim.Generation()
			delete(live, victim.Index())
		}

		require.Equal(t, len(live), p.ActiveCount())
		for i := 1; i < p.ActiveCount(); i++ {
			prev, _ := p.ActiveAt(i - 1)
			cur, _ := p.ActiveAt(i)
			require.Less(t, prev.Index(), cur.Index())
		}
	}
}
