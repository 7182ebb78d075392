package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitInts_Planes(t *testing.T) {
	planes := SplitInts([]int32{1, 258, -1, 0x01020304})

	assert.Equal(t, []byte{0x01, 0x02, 0xFF, 0x04}, planes[0])
	assert.Equal(t, []byte{0x00, 0x01, 0xFF, 0x03}, planes[1])
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02}, planes[2])
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x01}, planes[3])
}

func TestJoinInts_Recombines(t *testing.T) {
	in := []int32{0, 1, -1, 255, 256, math.MaxInt32, math.MinInt32, -70000}
	out, err := JoinInts(SplitInts(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJoinInts_Empty(t *testing.T) {
	out, err := JoinInts([4][]byte{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestJoinInts_PlaneMismatch(t *testing.T) {
	_, err := JoinInts([4][]byte{{1, 2}, {0, 0}, {0}, {0, 0}})
	assert.ErrorIs(t, err, ErrPlaneMismatch)
}

func TestReadInts_PlaneMismatchSetsReaderError(t *testing.T) {
	w := NewWriter()
	w.WriteBytesAndSize([]byte{1, 2})
	w.WriteBytesAndSize([]byte{0, 0})
	w.WriteBytesAndSize([]byte{0, 0})
	w.WriteBytesAndSize([]byte{0})
	r := NewReader(w.Bytes())
	assert.Nil(t, r.ReadInts())
	assert.ErrorIs(t, r.Err(), ErrPlaneMismatch)
}

func TestSplitInts_SmallIDsLeaveHighPlanesZero(t *testing.T) {
	ids := make([]int32, 100)
	for i := range ids {
		ids[i] = int32(i)
	}
	planes := SplitInts(ids)
	for k := 1; k < 4; k++ {
		for _, b := range planes[k] {
			assert.Zero(t, b)
		}
	}
}
