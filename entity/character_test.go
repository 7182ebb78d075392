package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncarena/wire"
)

func serverState(pos, move, rot wire.Vec3) *wire.Reader {
	w := wire.NewWriter()
	w.WriteVec3(pos)
	w.WriteVec3(move)
	w.WriteVec3(rot)
	return wire.NewReader(w.Bytes())
}

func TestCharacter_LocalSnapThreshold(t *testing.T) {
	const eps = 0.01
	snap := DefaultMovementSpeed * 0.5

	tests := []struct {
		name     string
		drift    float32
		wantSnap bool
	}{
		{"below", snap - eps, false},
		{"above", snap + eps, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCharacter(wire.Vec3{})
			c.SetLocal(true)
			c.Move(wire.Vec3{X: 1})

			serverPos := wire.Vec3{X: tt.drift}
			require.NoError(t, c.Deserialize(serverState(serverPos, wire.Vec3{Z: 1}, wire.Vec3{})))
			if tt.wantSnap {
				assert.Equal(t, serverPos, c.Position())
				assert.Equal(t, wire.Vec3{Z: 1}, c.MoveDirection())
			} else {
				assert.Equal(t, wire.Vec3{}, c.Position())
				assert.Equal(t, wire.Vec3{X: 1}, c.MoveDirection())
			}
			assert.False(t, c.Smoothing())
		})
	}
}

func TestCharacter_RemoteSmoothingThreshold(t *testing.T) {
	const eps = 0.01
	tests := []struct {
		name          string
		drift         float32
		wantSmoothing bool
	}{
		{"below", 0.1 - eps, false},
		{"above", 0.1 + eps, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCharacter(wire.Vec3{})
			require.NoError(t, c.Deserialize(serverState(wire.Vec3{Y: tt.drift}, wire.Vec3{}, wire.Vec3{})))
			assert.Equal(t, tt.wantSmoothing, c.Smoothing())
			assert.Equal(t, wire.Vec3{}, c.Position(), "remote characters never snap")
		})
	}
}

func TestCharacter_UpdateConverges(t *testing.T) {
	c := NewCharacter(wire.Vec3{})
	target := wire.Vec3{X: 3}
	require.NoError(t, c.Deserialize(serverState(target, wire.Vec3{}, wire.Vec3{})))
	require.True(t, c.Smoothing())

	c.Update(0.05)
	assert.InDelta(t, 1.5, c.Position().X, 1e-5)

	for i := 0; i < 100 && c.Smoothing(); i++ {
		c.Update(0.05)
	}
	assert.False(t, c.Smoothing())
	assert.InDelta(t, 3, c.Position().X, 0.1)
}

func TestCharacter_SmallDriftClearsSmoothing(t *testing.T) {
	c := NewCharacter(wire.Vec3{})
	require.NoError(t, c.Deserialize(serverState(wire.Vec3{X: 1}, wire.Vec3{}, wire.Vec3{})))
	require.True(t, c.Smoothing())

	c.SetPosition(wire.Vec3{X: 0.98})
	require.NoError(t, c.Deserialize(serverState(wire.Vec3{X: 1}, wire.Vec3{}, wire.Vec3{})))
	assert.False(t, c.Smoothing())
}

func TestCharacter_MoveNormalizesAndSteps(t *testing.T) {
	c := NewCharacter(wire.Vec3{})
	c.Move(wire.Vec3{X: 3, Z: 4})
	assert.InDelta(t, 1, c.MoveDirection().Length(), 1e-6)

	c.Step(0.1)
	assert.InDelta(t, 0.3, c.Position().X, 1e-5)
	assert.InDelta(t, 0.4, c.Position().Z, 1e-5)

	c.Stop()
	assert.False(t, c.Moving())
	c.Step(0.1)
	assert.InDelta(t, 0.3, c.Position().X, 1e-5)
}

func TestCharacter_SerializeRoundTrip(t *testing.T) {
	src := NewCharacter(wire.Vec3{X: 1, Y: 2, Z: 3})
	src.Move(wire.Vec3{X: 1})
	src.SetRotation(wire.Vec3{Y: 90})

	w := wire.NewWriter()
	src.Serialize(w)
	assert.Equal(t, 36, w.Len())

	dst := NewCharacter(wire.Vec3{X: 1, Y: 2, Z: 3})
	require.NoError(t, dst.Deserialize(wire.NewReader(w.Bytes())))
	assert.Equal(t, src.Rotation(), dst.Rotation())
	assert.Equal(t, src.MoveDirection(), dst.MoveDirection())
}

func TestCharacter_DeserializeShort(t *testing.T) {
	c := NewCharacter(wire.Vec3{})
	assert.ErrorIs(t, c.Deserialize(wire.NewReader([]byte{1, 2, 3})), wire.ErrShortRead)
}

func TestCharacter_InReach(t *testing.T) {
	c := NewCharacter(wire.Vec3{})
	assert.True(t, c.InReach(wire.Vec3{X: 4.5}))
	assert.False(t, c.InReach(wire.Vec3{X: 4.6}))
}
