package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"syncarena/config"
	"syncarena/entity"
	"syncarena/replica"
	"syncarena/transport"
	"syncarena/wire"
)

// ErrConnectionLost 传输层断开，所有玩家已被移除
var ErrConnectionLost = errors.New("client: connection lost")

type Options struct {
	TickInterval  time.Duration
	FrameInterval time.Duration
	StatsInterval time.Duration

	MovementSpeed       float32
	InteractionDistance float32

	World   []entity.ObjectSpec
	Catalog *entity.Catalog
}

// OptionsFromConfig 从配置文件的 client、player、world 段取值
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TickInterval:        cfg.Client.TickInterval,
		FrameInterval:       cfg.Client.FrameInterval,
		StatsInterval:       cfg.Client.StatsInterval,
		MovementSpeed:       cfg.Player.MovementSpeed,
		InteractionDistance: cfg.Player.InteractionDistance,
		World:               cfg.World.Objects,
	}
}

// Player 客户端视角的已连接玩家
type Player struct {
	Conn      wire.ConnID
	Character *entity.Character
	Inventory *entity.Inventory
}

// Host 客户端世界镜像。除 Run 外的方法都应在同一协程中调用
type Host struct {
	log  *zap.SugaredLogger
	conn transport.Conn
	opts Options

	reg        *replica.Registry
	world      *entity.World
	statics    bool
	ingest     *replica.ClientIngest
	replicator *replica.ClientReplicator
	scheduler  *replica.Scheduler

	self    wire.ConnID
	known   map[wire.ConnID]struct{}
	players map[wire.ConnID]*Player
	local   *Player

	handlers map[wire.PktType]handlerFunc
	sendErrs int64
}

// New 构造客户端并按本地布局创建静态对象；ID 在收到 StaticObjectIDs 后分配
func New(conn transport.Conn, opts Options, log *zap.SugaredLogger) (*Host, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
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
	world, err := entity.BuildWorld(opts.World)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}

	h := &Host{
		log:     log.Named("client"),
		conn:    conn,
		opts:    opts,
		reg:     replica.NewRegistry(replica.RoleClient, log),
		world:   world,
		self:    wire.NoConn,
		known:   make(map[wire.ConnID]struct{}),
		players: make(map[wire.ConnID]*Player),
	}
	h.ingest = replica.NewClientIngest(h.reg, h, log)
	h.replicator = replica.NewClientReplicator(h, h)
	h.scheduler = replica.NewScheduler(opts.TickInterval, 1, h.replicator)
	h.handlers = h.handlerTable()
	return h, nil
}

// Self 服务端分配的连接号，尚未收到身份时为 wire.NoConn
func (h *Host) Self() wire.ConnID { return h.self }

// Local 本地玩家，尚未生成时为 nil
func (h *Host) Local() *Player { return h.local }

func (h *Host) Player(conn wire.ConnID) (*Player, bool) {
	p, ok := h.players[conn]
	return p, ok
}

func (h *Host) PlayerCount() int { return len(h.players) }

// Known 已知的其他连接（含尚未生成角色的）
func (h *Host) Known() []wire.ConnID {
	out := make([]wire.ConnID, 0, len(h.known))
	for id := range h.known {
		out = append(out, id)
	}
	return out
}

func (h *Host) Registry() *replica.Registry { return h.reg }

func (h *Host) World() *entity.World { return h.world }

func (h *Host) Ingest() *replica.ClientIngest { return h.ingest }

func (h *Host) Replicator() *replica.ClientReplicator { return h.replicator }

// Intent 实现 replica.IntentSource，本地角色未生成时 ok=false
func (h *Host) Intent() (move, rotation wire.Vec3, ok bool) {
	if h.local == nil {
		return wire.Vec3{}, wire.Vec3{}, false
	}
	return h.local.Character.Intent()
}

// Send 实现 replica.Sender
func (h *Host) Send(ch wire.Channel, p wire.Packet) {
	frame, err := wire.Marshal(p)
	if err != nil {
		h.log.Errorw("marshal packet failed", "type", p.Type(), "err", err)
		return
	}
	if err := h.conn.Send(ch, frame); err != nil {
		h.sendErrs++
		h.log.Debugw("send failed", "type", p.Type(), "channel", ch, "err", err)
	}
}

// Run 主循环：处理服务端消息、逐帧插值、按固定频率上报意图。
// 连接断开时返回 ErrConnectionLost。
func (h *Host) Run(ctx context.Context) error {
	frame := time.NewTicker(h.opts.FrameInterval)
	defer frame.Stop()
	var stats <-chan time.Time
	if h.opts.StatsInterval > 0 {
		t := time.NewTicker(h.opts.StatsInterval)
		defer t.Stop()
		stats = t.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			h.Leave()
			return h.conn.Close()
		case ev := <-h.conn.Events():
			if !h.HandleEvent(ev) {
				return ErrConnectionLost
			}
		case now := <-frame.C:
			h.Frame(now.Sub(last))
			last = now
		case <-stats:
			h.LogStats()
		}
	}
}

// HandleEvent 处理一个传输事件，连接断开时返回 false
func (h *Host) HandleEvent(ev transport.Event) bool {
	switch ev.Kind {
	case transport.EventDisconnect:
		h.despawnAll()
		h.log.Warnw("connection to server lost")
		return false
	case transport.EventMessage:
		h.dispatch(ev.Data)
	}
	return true
}

// Frame 推进一帧：意图上报调度，角色预测与插值
func (h *Host) Frame(elapsed time.Duration) {
	h.scheduler.Advance(elapsed)
	dt := float32(elapsed.Seconds())
	for _, p := range h.players {
		p.Character.Step(dt)
		p.Character.Update(dt)
	}
}

// LogStats 输出同步流统计
func (h *Host) LogStats() {
	s := h.ingest.Stats()
	mismatches, unresolved := h.ingest.Counts()
	h.log.Infow("sync stats",
		"received", s.Received(),
		"loss", fmt.Sprintf("%.1f%%", s.PacketLoss()*100),
		"ping", s.Ping(),
		"checksumFails", mismatches,
		"unresolved", unresolved,
		"intentsSent", h.replicator.Sent(),
		"players", len(h.players),
	)
}

func (h *Host) spawn(pkt *wire.SpawnEntityPacket) (*Player, error) {
	if len(pkt.IDs) < 2 {
		return nil, fmt.Errorf("spawn for %d carries %d ids", pkt.OwnerID, len(pkt.IDs))
	}
	ch := entity.NewCharacter(pkt.Position)
	ch.MovementSpeed = h.opts.MovementSpeed
	ch.InteractionDistance = h.opts.InteractionDistance
	ch.SetID(pkt.IDs[0])
	if _, err := h.reg.Register(ch); err != nil {
		return nil, fmt.Errorf("register character: %w", err)
	}
	inv := entity.NewInventory(ch.ID(), h.opts.Catalog)
	inv.SetID(pkt.IDs[1])
	if _, err := h.reg.Register(inv); err != nil {
		h.reg.Remove(ch.ID())
		return nil, fmt.Errorf("register inventory: %w", err)
	}
	return &Player{Conn: pkt.OwnerID, Character: ch, Inventory: inv}, nil
}

func (h *Host) despawn(conn wire.ConnID) {
	p, ok := h.players[conn]
	if !ok {
		return
	}
	h.reg.Remove(p.Character.ID())
	h.reg.Remove(p.Inventory.ID())
	delete(h.players, conn)
	if h.local == p {
		h.local = nil
	}
}

func (h *Host) despawnAll() {
	for conn := range h.players {
		h.despawn(conn)
	}
	h.known = make(map[wire.ConnID]struct{})
}
