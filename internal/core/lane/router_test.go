package lane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

func TestNewRouter(t *testing.T) {
	tests := []struct {
		name       string
		count, max int
		wantErr    bool
	}{
		{"single lane", 1, 1, false},
		{"typical", 4, 64, false},
		{"at max", 64, 64, false},
		{"zero lanes", 0, 64, true},
		{"above max", 65, 64, true},
		{"zero max", 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRouter(tt.count, tt.max)
			if tt.wantErr {
				assert.ErrorIs(t, err, ecs.ErrInvalidArg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.count, r.Count())
		})
	}
}

func TestLaneFor(t *testing.T) {
	r, err := NewRouter(4, 64)
	require.NoError(t, err)

	for idx := uint32(0); idx < 16; idx++ {
		e := ecs.NewEntityID(idx, 0)
		assert.Equal(t, int(idx%4), r.LaneFor(e))
		// generation does not affect placement
		assert.Equal(t, r.LaneFor(e), r.LaneFor(ecs.NewEntityID(idx, 9)))
	}

	assert.True(t, r.Valid(0))
	assert.True(t, r.Valid(3))
	assert.False(t, r.Valid(4))
	assert.False(t, r.Valid(-1))

	var zero Router
	assert.Equal(t, 0, zero.LaneFor(ecs.NewEntityID(5, 0)))
}
