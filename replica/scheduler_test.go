package replica

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type tickRecorder struct {
	ticks []int32
}

func (r *tickRecorder) PerformTick(tick int32) { r.ticks = append(r.ticks, tick) }

func TestScheduler_FirstPollFiresImmediately(t *testing.T) {
	rec := &tickRecorder{}
	s := NewScheduler(100*time.Millisecond, 1, rec)

	assert.Equal(t, 1, s.Advance(0))
	assert.Equal(t, []int32{0}, rec.ticks)
}

func TestScheduler_AccumulatesPartialIntervals(t *testing.T) {
	rec := &tickRecorder{}
	s := NewScheduler(100*time.Millisecond, 1, rec)
	s.Advance(0)

	assert.Equal(t, 0, s.Advance(40*time.Millisecond))
	assert.Equal(t, 0, s.Advance(40*time.Millisecond))
	assert.Equal(t, 1, s.Advance(20*time.Millisecond))
	assert.Equal(t, []int32{0, 1}, rec.ticks)
}

func TestScheduler_CatchUpLimit(t *testing.T) {
	tests := []struct {
		name    string
		catchUp int
		want    int
	}{
		{"one per poll", 1, 1},
		{"drain three", 3, 3},
		{"drain all", 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &tickRecorder{}
			s := NewScheduler(100*time.Millisecond, tt.catchUp, rec)
			// 初始累加一个间隔 + 500ms = 6 个到期的 Tick
			assert.Equal(t, tt.want, s.Advance(500*time.Millisecond))
		})
	}
}

func TestScheduler_BacklogDrainsOnLaterPolls(t *testing.T) {
	rec := &tickRecorder{}
	s := NewScheduler(100*time.Millisecond, 1, rec)
	s.Advance(250 * time.Millisecond)

	assert.Equal(t, 1, s.Advance(0))
	assert.Equal(t, 1, s.Advance(0))
	assert.Equal(t, 0, s.Advance(0))
	assert.Equal(t, []int32{0, 1, 2}, rec.ticks)
}

func TestScheduler_TickNumberWraps(t *testing.T) {
	rec := &tickRecorder{}
	s := NewScheduler(time.Millisecond, 5, rec)
	s.tick = math.MaxInt32

	s.Advance(time.Millisecond)
	assert.Equal(t, []int32{math.MaxInt32, 0}, rec.ticks)
	assert.Equal(t, int32(1), s.Tick())
}

func TestSequence_Monotonic(t *testing.T) {
	var seq Sequence
	assert.Equal(t, int32(0), seq.Next())
	assert.Equal(t, int32(1), seq.Next())
	assert.Equal(t, int32(2), seq.Next())
}
