package replica

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var doorPolicy = Policy{RequireChecksum: false, TickInterval: 10}

func TestRegistry_RegisterAssignsSequentialIDs(t *testing.T) {
	reg := NewRegistry(RoleServer, nil)

	for want := ID(0); want < 3; want++ {
		e := newFake(KindDoor, doorPolicy)
		id, err := reg.Register(e)
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.Equal(t, want, e.ID())

		got, ok := reg.Get(id)
		require.True(t, ok)
		assert.Same(t, e, got)
	}
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_RegisterKeepsPresetID(t *testing.T) {
	reg := NewRegistry(RoleClient, nil)
	e := newFake(KindCharacter, Policy{TickInterval: 1})
	e.SetID(42)

	id, err := reg.Register(e)
	require.NoError(t, err)
	assert.Equal(t, ID(42), id)
}

func TestRegistry_RegisterRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry(RoleServer, nil)
	a := newFake(KindDoor, doorPolicy)
	a.SetID(5)
	_, err := reg.Register(a)
	require.NoError(t, err)

	b := newFake(KindDoor, doorPolicy)
	b.SetID(5)
	_, err = reg.Register(b)
	assert.ErrorIs(t, err, ErrIDInUse)

	// 同一实体重复注册是幂等的
	_, err = reg.Register(a)
	assert.NoError(t, err)
	assert.Len(t, reg.IDsOf(KindDoor), 1)
}

func TestRegistry_RemoveFreesID(t *testing.T) {
	reg := NewRegistry(RoleServer, nil, WithMaxID(1))
	a, b := newFake(KindDoor, doorPolicy), newFake(KindDoor, doorPolicy)
	_, err := reg.Register(a)
	require.NoError(t, err)
	_, err = reg.Register(b)
	require.NoError(t, err)

	reg.Remove(a.ID())
	_, ok := reg.Get(0)
	assert.False(t, ok)
	assert.Equal(t, []ID{1}, reg.IDsOf(KindDoor))

	c := newFake(KindDoor, doorPolicy)
	id, err := reg.Register(c)
	require.NoError(t, err)
	assert.Equal(t, ID(0), id)
}

func TestRegistry_CreateIDWrapsAndSkipsUsed(t *testing.T) {
	reg := NewRegistry(RoleServer, nil, WithMaxID(7))
	var all []*fakeEntity
	for i := 0; i < 8; i++ {
		e := newFake(KindDoor, doorPolicy)
		_, err := reg.Register(e)
		require.NoError(t, err)
		all = append(all, e)
	}

	_, err := reg.CreateID()
	require.ErrorIs(t, err, ErrRegistryFull)

	reg.Remove(all[2].ID())
	reg.Remove(all[5].ID())

	id, err := reg.Register(newFake(KindDoor, doorPolicy))
	require.NoError(t, err)
	assert.Equal(t, ID(2), id)

	id, err = reg.Register(newFake(KindDoor, doorPolicy))
	require.NoError(t, err)
	assert.Equal(t, ID(5), id)

	_, err = reg.Register(newFake(KindDoor, doorPolicy))
	assert.ErrorIs(t, err, ErrRegistryFull)
}

func TestRegistry_IDsStayUniqueUnderChurn(t *testing.T) {
	const maxID = 15
	reg := NewRegistry(RoleServer, nil, WithMaxID(maxID))
	rng := rand.New(rand.NewSource(1))
	live := map[ID]*fakeEntity{}

	for step := 0; step < 5000; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for id := range live {
				reg.Remove(id)
				delete(live, id)
				break
			}
			continue
		}
		e := newFake(KindDoor, doorPolicy)
		id, err := reg.Register(e)
		if len(live) == maxID+1 {
			require.ErrorIs(t, err, ErrRegistryFull)
			continue
		}
		require.NoError(t, err)
		_, dup := live[id]
		require.False(t, dup, "id %d handed out twice", id)
		require.GreaterOrEqual(t, id, ID(0))
		require.LessOrEqual(t, id, ID(maxID))
		live[id] = e
	}
	assert.Equal(t, len(live), reg.Len())
	assert.Len(t, reg.IDsOf(KindDoor), len(live))
}

func TestRegistry_PolicySetOnceFromFirstInstance(t *testing.T) {
	reg := NewRegistry(RoleServer, nil)
	_, err := reg.Register(newFake(KindComputer, Policy{RequireChecksum: true, TickInterval: 10}))
	require.NoError(t, err)
	_, err = reg.Register(newFake(KindComputer, Policy{RequireChecksum: false, TickInterval: 3}))
	require.NoError(t, err)

	p, ok := reg.PolicyOf(KindComputer)
	require.True(t, ok)
	assert.Equal(t, Policy{RequireChecksum: true, TickInterval: 10}, p)
}

func TestRegistry_PolicyIntervalNormalized(t *testing.T) {
	reg := NewRegistry(RoleServer, nil)
	_, err := reg.Register(newFake(KindHologram, Policy{TickInterval: 0}))
	require.NoError(t, err)
	p, _ := reg.PolicyOf(KindHologram)
	assert.Equal(t, 1, p.TickInterval)
}

func TestRegistry_ClientKeepsNoKindIndex(t *testing.T) {
	reg := NewRegistry(RoleClient, nil)
	_, err := reg.Register(newFake(KindDoor, doorPolicy))
	require.NoError(t, err)

	assert.Empty(t, reg.Kinds())
	_, ok := reg.PolicyOf(KindDoor)
	assert.False(t, ok)
}

func TestRegistry_KindsSorted(t *testing.T) {
	reg := NewRegistry(RoleServer, nil)
	for _, k := range []Kind{KindHologram, KindCharacter, KindDoor} {
		_, err := reg.Register(newFake(k, Policy{TickInterval: 1}))
		require.NoError(t, err)
	}
	assert.Equal(t, []Kind{KindCharacter, KindDoor, KindHologram}, reg.Kinds())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("computer")
	require.NoError(t, err)
	assert.Equal(t, KindComputer, k)

	_, err = ParseKind("toaster")
	assert.Error(t, err)
}

func TestRegistry_RegisterRejectsChangedID(t *testing.T) {
	reg := NewRegistry(RoleServer, nil)
	e := newFake(KindDoor, doorPolicy)
	id, err := reg.Register(e)
	require.NoError(t, err)

	e.SetID(id + 7)
	_, err = reg.Register(e)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, id, e.ID())

	got, ok := reg.Get(id)
	require.True(t, ok)
	assert.Same(t, e, got)
	_, ok = reg.Get(id + 7)
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}
