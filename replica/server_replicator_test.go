package replica

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncarena/wire"
)

var (
	gatedPolicy  = Policy{RequireChecksum: true, TickInterval: 10}
	streamPolicy = Policy{RequireChecksum: false, TickInterval: 5}
)

func newReplicatorFixture(t *testing.T, maxPayload int) (*Registry, *ServerReplicator, *recordingBroadcaster) {
	t.Helper()
	reg := NewRegistry(RoleServer, nil)
	out := &recordingBroadcaster{}
	rep := NewServerReplicator(reg, out, nil, maxPayload)
	rep.now = func() time.Time { return time.Unix(100, 0) }
	return reg, rep, out
}

func register(t *testing.T, reg *Registry, e *fakeEntity) ID {
	t.Helper()
	id, err := reg.Register(e)
	require.NoError(t, err)
	return id
}

func includedOnTick(out *recordingBroadcaster, before int, id ID) bool {
	if len(out.packets) == before {
		return false
	}
	for _, got := range out.last().UpdatedIDs {
		if got == id {
			return true
		}
	}
	return false
}

func TestServerReplicator_GatedEntityOnlyWhenDirty(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	id := register(t, reg, newFake(KindComputer, gatedPolicy))

	for tick := int32(0); tick <= 30; tick++ {
		rep.PerformTick(tick)
	}
	assert.Empty(t, out.packets, "clean gated entity is never sent")

	rep.MarkDirty(id)
	rep.MarkDirty(id)
	var includedAt []int32
	for tick := int32(31); tick <= 60; tick++ {
		before := len(out.packets)
		rep.PerformTick(tick)
		if includedOnTick(out, before, id) {
			includedAt = append(includedAt, tick)
		}
	}
	assert.Equal(t, []int32{40}, includedAt)
	assert.False(t, rep.IsDirty(id))
}

func TestServerReplicator_StreamEntitySentEveryInterval(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	a := register(t, reg, newFake(KindCharacter, streamPolicy))
	b := register(t, reg, newFake(KindCharacter, streamPolicy))
	rep.MarkDirty(b)

	var sentAt []int32
	for tick := int32(0); tick <= 20; tick++ {
		before := len(out.packets)
		rep.PerformTick(tick)
		if len(out.packets) > before {
			sentAt = append(sentAt, tick)
			assert.ElementsMatch(t, []ID{a, b}, out.last().UpdatedIDs)
		}
	}
	assert.Equal(t, []int32{0, 5, 10, 15, 20}, sentAt)
}

func TestServerReplicator_ChecksumsAttachedWithoutPayload(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	mover := register(t, reg, newFake(KindCharacter, Policy{TickInterval: 10}))
	gated := newFake(KindComputer, gatedPolicy)
	gated.checksum = 77
	gatedID := register(t, reg, gated)

	for tick := int32(0); tick <= 10; tick++ {
		rep.PerformTick(tick)
	}
	require.Len(t, out.packets, 2)
	for _, p := range out.packets {
		assert.Equal(t, []int32{mover}, p.UpdatedIDs)
		assert.Equal(t, []int32{gatedID}, p.ChecksummedIDs)
		assert.Equal(t, []int32{77}, p.Checksums)
	}
}

func TestServerReplicator_PayloadIsPositional(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	first := newFake(KindCharacter, Policy{TickInterval: 1})
	first.value = 11
	second := newFake(KindCharacter, Policy{TickInterval: 1})
	second.value = 22
	register(t, reg, first)
	register(t, reg, second)

	rep.PerformTick(0)
	pkt := out.last()
	require.NotNil(t, pkt)
	assert.Equal(t, 100.0, pkt.Timestamp)

	r := wire.NewReader(pkt.Payload)
	for _, id := range pkt.UpdatedIDs {
		seg := wire.NewReader(r.ReadBytesAndSize())
		e, _ := reg.Get(id)
		assert.Equal(t, e.(*fakeEntity).value, seg.ReadInt32())
	}
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())
}

func TestServerReplicator_QueueDirectForcesNextFlush(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	id := register(t, reg, newFake(KindComputer, gatedPolicy))

	rep.QueueDirect(id)
	rep.QueueDirect(id)
	rep.PerformTick(3)
	require.Len(t, out.packets, 1)
	assert.Equal(t, []int32{id}, out.last().UpdatedIDs)

	rep.PerformTick(4)
	assert.Len(t, out.packets, 1)
}

func TestServerReplicator_SequenceIncreases(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	register(t, reg, newFake(KindCharacter, Policy{TickInterval: 1}))

	for tick := int32(0); tick < 3; tick++ {
		rep.PerformTick(tick)
	}
	require.Len(t, out.packets, 3)
	for i, p := range out.packets {
		assert.Equal(t, int32(i), p.Seq)
	}
}

func TestServerReplicator_PayloadBudgetDefersAndKeepsDirty(t *testing.T) {
	// 每段 2 字节长度 + 4 字节值，上限 12 字节即每包两段
	reg, rep, out := newReplicatorFixture(t, 12)
	a := register(t, reg, newFake(KindCharacter, Policy{TickInterval: 1}))
	b := register(t, reg, newFake(KindCharacter, Policy{TickInterval: 1}))
	c := register(t, reg, newFake(KindComputer, Policy{RequireChecksum: true, TickInterval: 1}))
	rep.MarkDirty(c)

	rep.PerformTick(0)
	assert.Equal(t, []int32{a, b}, out.last().UpdatedIDs)
	assert.True(t, rep.IsDirty(c), "deferred entity keeps its dirty flag")
	assert.Equal(t, int64(1), rep.Stats().Deferred)

	rep.PerformTick(1)
	assert.Equal(t, []int32{c, a}, out.last().UpdatedIDs)
	assert.False(t, rep.IsDirty(c))
}

func TestServerReplicator_SkipsRemovedEntities(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	id := register(t, reg, newFake(KindComputer, gatedPolicy))
	rep.QueueDirect(id)
	reg.Remove(id)

	rep.PerformTick(1)
	assert.Empty(t, out.packets)
	assert.Equal(t, int64(1), rep.Stats().UnresolvedIDs)
}

func TestServerReplicator_ForgetDropsPendingState(t *testing.T) {
	reg, rep, out := newReplicatorFixture(t, 0)
	id := register(t, reg, newFake(KindComputer, gatedPolicy))
	rep.MarkDirty(id)
	rep.QueueDirect(id)

	rep.Forget(id)
	rep.PerformTick(1)
	assert.Empty(t, out.packets)
	assert.False(t, rep.IsDirty(id))
}
