package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncarena/config"
	"syncarena/entity"
	"syncarena/replica"
	"syncarena/store"
	"syncarena/transport"
	"syncarena/wire"
)

// StaticIDStore 静态对象 ID 的持久化，*store.Storage 即满足
type StaticIDStore interface {
	LoadStaticIDs(ctx context.Context, layout uuid.UUID) ([]replica.ID, error)
	SaveStaticIDs(ctx context.Context, layout uuid.UUID, ids []replica.ID) error
}

// Options 服务端运行参数
type Options struct {
	TickInterval     time.Duration
	CatchUpTicks     int
	MaxPayloadBytes  int
	SimulateDropProb float64
	MaxEntityID      int32

	MovementSpeed       float32
	InteractionDistance float32
	StartingItems       []int32

	World   []entity.ObjectSpec
	Catalog *entity.Catalog

	// 随机丢包的种子，0 取当前时间
	Seed int64
}

// OptionsFromConfig 从配置文件的 server、player、world 段取值
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TickInterval:        cfg.Server.TickInterval,
		CatchUpTicks:        cfg.Server.CatchUpTicks,
		MaxPayloadBytes:     cfg.Server.MaxPayloadBytes,
		SimulateDropProb:    cfg.Server.SimulateDropProb,
		MaxEntityID:         cfg.Server.MaxEntityID,
		MovementSpeed:       cfg.Player.MovementSpeed,
		InteractionDistance: cfg.Player.InteractionDistance,
		StartingItems:       cfg.Player.StartingItems,
		World:               cfg.World.Objects,
	}
}

// Host 权威世界：注册表、静态对象、在线玩家。
// 除 Do 之外的所有方法只能在 Run 所在的协程中调用。
type Host struct {
	log     *zap.SugaredLogger
	net     transport.Server
	opts    Options
	metrics *Metrics

	reg        *replica.Registry
	world      *entity.World
	catalog    *entity.Catalog
	replicator *replica.ServerReplicator
	ingest     *replica.ServerIngest
	scheduler  *replica.Scheduler

	players  map[wire.ConnID]*Player
	handlers map[wire.PktType]handlerFunc
	control  chan func(*Host)

	rng      *rand.Rand
	dropProb float64
	now      func() time.Time
}

// New 构造世界并分配静态 ID。ids 非 nil 时优先复用已保存的分配。
func New(net transport.Server, opts Options, ids StaticIDStore, log *zap.SugaredLogger) (*Host, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.MovementSpeed <= 0 {
		opts.MovementSpeed = entity.DefaultMovementSpeed
	}
	if opts.InteractionDistance <= 0 {
		opts.InteractionDistance = entity.DefaultInteractionDistance
	}
	if opts.Catalog == nil {
		opts.Catalog = entity.DefaultCatalog()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var regOpts []replica.Option
	if opts.MaxEntityID > 0 {
		regOpts = append(regOpts, replica.WithMaxID(opts.MaxEntityID))
	}

	h := &Host{
		log:      log.Named("server"),
		net:      net,
		opts:     opts,
		metrics:  &Metrics{},
		reg:      replica.NewRegistry(replica.RoleServer, log, regOpts...),
		catalog:  opts.Catalog,
		ingest:   replica.NewServerIngest(),
		players:  make(map[wire.ConnID]*Player),
		control:  make(chan func(*Host), 16),
		rng:      rand.New(rand.NewSource(seed)),
		dropProb: opts.SimulateDropProb,
		now:      time.Now,
	}
	h.replicator = replica.NewServerReplicator(h.reg, h, log, opts.MaxPayloadBytes)
	h.scheduler = replica.NewScheduler(opts.TickInterval, opts.CatchUpTicks, h)
	h.handlers = h.handlerTable()

	world, err := entity.BuildWorld(opts.World)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	h.world = world
	if err := h.assignStatics(context.Background(), ids); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) assignStatics(ctx context.Context, ids StaticIDStore) error {
	statics := h.world.Statics()
	layout := store.Fingerprint(statics)

	var provided []replica.ID
	if ids != nil {
		saved, err := ids.LoadStaticIDs(ctx, layout)
		switch {
		case err == nil:
			provided = saved
		case errors.Is(err, store.ErrNotFound):
		default:
			return fmt.Errorf("load static ids: %w", err)
		}
	}

	assigned, err := h.reg.AssignStaticIDs(statics, provided)
	if err != nil {
		return fmt.Errorf("assign static ids: %w", err)
	}
	h.world.Link()

	if ids != nil && provided == nil {
		if err := ids.SaveStaticIDs(ctx, layout, assigned); err != nil {
			return fmt.Errorf("save static ids: %w", err)
		}
	}
	h.log.Infow("static objects registered", "count", len(assigned), "layout", layout, "reused", provided != nil)
	return nil
}

// Metrics 运行指标，可在任意协程读取
func (h *Host) Metrics() *Metrics { return h.metrics }

func (h *Host) Registry() *replica.Registry { return h.reg }

func (h *Host) Replicator() *replica.ServerReplicator { return h.replicator }

func (h *Host) World() *entity.World { return h.world }

// Player 按连接号查找
func (h *Host) Player(conn wire.ConnID) (*Player, bool) {
	p, ok := h.players[conn]
	return p, ok
}

// PlayerCount 已加入的玩家数
func (h *Host) PlayerCount() int { return len(h.players) }

// join 连接建立：通知其他玩家、下发身份与静态 ID、生成并广播角色
// 角色生成失败时直接断开，其他玩家不会收到该连接的任何消息。
func (h *Host) join(conn wire.ConnID) {
	p, err := h.spawn(conn)
	if err != nil {
		h.log.Errorw("spawn player failed", "conn", conn, "err", err)
		_ = h.net.Disconnect(conn)
		return
	}

	existing := make([]int32, 0, len(h.players))
	for id := range h.players {
		existing = append(existing, int32(id))
		h.send(id, wire.ReliableSequenced, &wire.IdentityPacket{ConnID: conn, Owned: false})
	}
	h.send(conn, wire.ReliableSequenced, wire.NewMassIdentity(existing))
	h.send(conn, wire.ReliableSequenced, &wire.IdentityPacket{ConnID: conn, Owned: true})
	h.players[conn] = p
	h.metrics.AddConnections(1)

	spawn := &wire.SpawnEntityPacket{
		EntityType: wire.EntityNPC,
		Position:   p.Character.Position(),
		OwnerID:    conn,
		IDs:        p.EntityIDs(),
	}
	h.broadcast(wire.ReliableSequenced, spawn, wire.NoConn)
	h.send(conn, wire.ReliableSequenced, wire.NewStaticObjectIDs(h.reg.StaticIDs()))

	for id, other := range h.players {
		if id == conn {
			continue
		}
		h.send(conn, wire.ReliableSequenced, &wire.SpawnEntityPacket{
			EntityType: wire.EntityNPC,
			Position:   other.Character.Position(),
			OwnerID:    id,
			IDs:        other.EntityIDs(),
		})
	}
	h.log.Infow("player joined", "conn", conn, "character", p.Character.ID(), "inventory", p.Inventory.ID())
}

func (h *Host) spawn(conn wire.ConnID) (*Player, error) {
	ch := entity.NewCharacter(wire.Vec3{})
	ch.MovementSpeed = h.opts.MovementSpeed
	ch.InteractionDistance = h.opts.InteractionDistance
	if _, err := h.reg.Register(ch); err != nil {
		return nil, err
	}

	inv := entity.NewInventory(ch.ID(), h.catalog)
	for _, item := range h.opts.StartingItems {
		if err := inv.AddItem(item); err != nil {
			h.log.Warnw("starting item skipped", "conn", conn, "item", item, "err", err)
		}
	}
	if _, err := h.reg.Register(inv); err != nil {
		h.reg.Remove(ch.ID())
		return nil, err
	}
	return &Player{Conn: conn, Character: ch, Inventory: inv}, nil
}

// leave 连接断开：移除实体与序列号槽，通知其他玩家
func (h *Host) leave(conn wire.ConnID) {
	p, ok := h.players[conn]
	if !ok {
		return
	}
	for _, id := range p.EntityIDs() {
		h.reg.Remove(id)
		h.replicator.Forget(id)
	}
	delete(h.players, conn)
	h.ingest.Forget(conn)
	h.metrics.AddConnections(-1)

	h.broadcast(wire.ReliableSequenced, &wire.DisconnectPacket{ConnID: conn}, wire.NoConn)
	h.log.Infow("player left", "conn", conn)
}
