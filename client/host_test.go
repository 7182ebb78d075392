package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncarena/entity"
	"syncarena/server"
	"syncarena/transport"
	"syncarena/wire"
)

var layout = []entity.ObjectSpec{
	{Name: "door", Kind: "door", Position: [3]float32{0, 0, 1}},
	{Name: "button", Kind: "button", Position: [3]float32{1, 0, 0}, Triggers: []string{"door"}},
	{Name: "screen", Kind: "hologram", Position: [3]float32{0, 1, 1}},
}

const tick = 100 * time.Millisecond

type peer struct {
	conn *transport.MemoryConn
	host *Host
}

type arena struct {
	t     *testing.T
	net   *transport.MemoryServer
	srv   *server.Host
	peers []*peer
}

func newArena(t *testing.T) *arena {
	t.Helper()
	net := transport.NewMemoryServer(nil)
	srv, err := server.New(net, server.Options{
		TickInterval:  tick,
		StartingItems: []int32{0, 1, 2},
		World:         layout,
		Seed:          1,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = net.Close() })
	return &arena{t: t, net: net, srv: srv}
}

func (a *arena) join() *peer {
	a.t.Helper()
	conn, err := a.net.Dial()
	require.NoError(a.t, err)
	h, err := New(conn, Options{TickInterval: tick, World: shuffled(layout)}, nil)
	require.NoError(a.t, err)
	p := &peer{conn: conn, host: h}
	a.peers = append(a.peers, p)
	a.settle()
	return p
}

// shuffled 客户端布局顺序与服务端不同，静态 ID 仍应一致
func shuffled(specs []entity.ObjectSpec) []entity.ObjectSpec {
	out := make([]entity.ObjectSpec, len(specs))
	for i, s := range specs {
		out[len(specs)-1-i] = s
	}
	return out
}

// settle 交替处理两端事件直到没有新的消息
func (a *arena) settle() {
	for {
		moved := false
		select {
		case ev := <-a.net.Events():
			a.srv.HandleEvent(ev)
			moved = true
		default:
		}
		for _, p := range a.peers {
			select {
			case ev := <-p.conn.Events():
				p.host.HandleEvent(ev)
				moved = true
			default:
			}
		}
		if !moved {
			return
		}
	}
}

// ticks 推进服务端 n 个 Tick，每个 Tick 后投递。首个 Tick 编号为 0
func (a *arena) ticks(n int) {
	for i := 0; i < n; i++ {
		a.srv.Advance(tick)
		a.settle()
	}
}

func TestClient_JoinSpawnsLocalPlayer(t *testing.T) {
	a := newArena(t)
	p := a.join()

	assert.Equal(t, p.conn.ID(), p.host.Self())
	local := p.host.Local()
	require.NotNil(t, local)
	assert.True(t, local.Character.Local())

	sp, ok := a.srv.Player(p.conn.ID())
	require.True(t, ok)
	assert.Equal(t, sp.Character.ID(), local.Character.ID())
	assert.Equal(t, sp.Inventory.ID(), local.Inventory.ID())

	for _, name := range []string{"door", "button", "screen"} {
		want, _ := a.srv.World().Lookup(name)
		got, _ := p.host.World().Lookup(name)
		assert.Equal(t, want.ID(), got.ID(), name)
	}
	button, _ := p.host.World().Lookup("button")
	door, _ := p.host.World().Lookup("door")
	assert.Equal(t, []int32{door.ID()}, button.(*entity.Button).Triggers)
}

func TestClient_SeesOtherPlayers(t *testing.T) {
	a := newArena(t)
	first := a.join()
	second := a.join()

	for _, pair := range [][2]*peer{{first, second}, {second, first}} {
		viewer, other := pair[0], pair[1]
		remote, ok := viewer.host.Player(other.conn.ID())
		require.True(t, ok)
		assert.False(t, remote.Character.Local())
		assert.Equal(t, other.host.Local().Character.ID(), remote.Character.ID())
		assert.Contains(t, viewer.host.Known(), other.conn.ID())
		assert.Equal(t, 2, viewer.host.PlayerCount())
	}
}

func TestClient_SyncReconcilesCharacters(t *testing.T) {
	a := newArena(t)
	owner := a.join()
	watcher := a.join()

	sp, _ := a.srv.Player(owner.conn.ID())
	sp.Character.SetPosition(wire.Vec3{Z: 3})
	a.ticks(1)

	assert.Equal(t, wire.Vec3{Z: 3}, owner.host.Local().Character.Position(), "local drift above threshold snaps")

	remote, _ := watcher.host.Player(owner.conn.ID())
	assert.True(t, remote.Character.Smoothing())
	assert.Equal(t, wire.Vec3{}, remote.Character.Position())

	for i := 0; i < 60; i++ {
		watcher.host.Frame(16 * time.Millisecond)
	}
	assert.False(t, remote.Character.Smoothing())
	assert.InDelta(t, 3, remote.Character.Position().Z, 0.1)
}

func TestClient_InventoryRepairedByChecksum(t *testing.T) {
	a := newArena(t)
	p := a.join()
	sp, _ := a.srv.Player(p.conn.ID())
	local := p.host.Local().Inventory
	require.NotEqual(t, sp.Inventory.Checksum(), local.Checksum(), "client starts with an empty mirror")

	a.ticks(1)
	assert.True(t, a.srv.Replicator().IsDirty(sp.Inventory.ID()))
	mismatches, _ := p.host.Ingest().Counts()
	assert.EqualValues(t, 1, mismatches)

	a.ticks(10)
	assert.Equal(t, sp.Inventory.Slots(), local.Slots())
	assert.Equal(t, sp.Inventory.Checksum(), local.Checksum())
	assert.False(t, a.srv.Replicator().IsDirty(sp.Inventory.ID()))
}

func TestClient_EquipRelayed(t *testing.T) {
	a := newArena(t)
	owner := a.join()
	watcher := a.join()
	a.ticks(11)

	require.NoError(t, owner.host.Equip(0))
	a.settle()

	sp, _ := a.srv.Player(owner.conn.ID())
	_, ok := sp.Inventory.Equipped(entity.SlotHat)
	assert.True(t, ok, "server applied")
	mirror, _ := watcher.host.Player(owner.conn.ID())
	_, ok = mirror.Inventory.Equipped(entity.SlotHat)
	assert.True(t, ok, "relayed to watcher")
	assert.True(t, a.srv.Replicator().IsDirty(sp.Inventory.ID()))
}

func TestClient_InteractAppliesOnceEverywhere(t *testing.T) {
	a := newArena(t)
	actor := a.join()
	watcher := a.join()

	require.NoError(t, actor.host.InteractByName("button", wire.InteractActivate))
	a.settle()

	open := func(w *entity.World) bool {
		d, _ := w.Lookup("door")
		return d.(*entity.Door).Open
	}
	assert.True(t, open(actor.host.World()), "echo is ignored, door stays open")
	assert.True(t, open(a.srv.World()))
	assert.True(t, open(watcher.host.World()))
}

func TestClient_PrivateInteractionStaysLocal(t *testing.T) {
	a := newArena(t)
	actor := a.join()

	require.NoError(t, actor.host.InteractByName("screen", wire.InteractActivate))
	a.settle()

	visible := func(w *entity.World) bool {
		s, _ := w.Lookup("screen")
		return s.(*entity.Hologram).Visible
	}
	assert.True(t, visible(actor.host.World()))
	assert.False(t, visible(a.srv.World()))
}

func TestClient_MoveRelayedToOthers(t *testing.T) {
	a := newArena(t)
	mover := a.join()
	watcher := a.join()

	require.NoError(t, mover.host.Move(wire.Vec3{X: 3}))
	a.settle()

	sp, _ := a.srv.Player(mover.conn.ID())
	assert.Equal(t, wire.Vec3{X: 1}, sp.Character.MoveDirection())
	remote, _ := watcher.host.Player(mover.conn.ID())
	assert.Equal(t, wire.Vec3{X: 1}, remote.Character.MoveDirection())
}

func TestClient_FrameSendsIntentOnlyWhenSpawned(t *testing.T) {
	net := transport.NewMemoryServer(nil)
	t.Cleanup(func() { _ = net.Close() })
	conn, err := net.Dial()
	require.NoError(t, err)
	h, err := New(conn, Options{TickInterval: tick, World: layout}, nil)
	require.NoError(t, err)

	h.Frame(0)
	assert.Zero(t, h.Replicator().Sent())

	a := newArena(t)
	p := a.join()
	p.host.Frame(0)
	p.host.Frame(tick)
	assert.EqualValues(t, 2, p.host.Replicator().Sent())

	before := a.srv.Metrics().Snapshot()["packets_in"].(int64)
	a.settle()
	snap := a.srv.Metrics().Snapshot()
	assert.Equal(t, before+2, snap["packets_in"].(int64))
	assert.EqualValues(t, 0, snap["stale_syncs"])
}

func TestClient_PlayerLeaves(t *testing.T) {
	a := newArena(t)
	stayer := a.join()
	leaver := a.join()

	require.NoError(t, leaver.conn.Close())
	a.settle()

	_, ok := stayer.host.Player(leaver.conn.ID())
	assert.False(t, ok)
	assert.NotContains(t, stayer.host.Known(), leaver.conn.ID())
	assert.Equal(t, 1, stayer.host.PlayerCount())
}

func TestClient_ConnectionLossDespawnsEveryone(t *testing.T) {
	a := newArena(t)
	p := a.join()
	a.join()

	ids := []int32{p.host.Local().Character.ID(), p.host.Local().Inventory.ID()}
	require.NoError(t, a.net.Close())

	ev := <-p.conn.Events()
	assert.False(t, p.host.HandleEvent(ev))
	assert.Zero(t, p.host.PlayerCount())
	assert.Nil(t, p.host.Local())
	for _, id := range ids {
		_, ok := p.host.Registry().Get(id)
		assert.False(t, ok)
	}
}

func TestClient_RunReturnsOnConnectionLoss(t *testing.T) {
	a := newArena(t)
	p := a.join()

	done := make(chan error, 1)
	go func() { done <- p.host.Run(context.Background()) }()
	require.NoError(t, a.net.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
