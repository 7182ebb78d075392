package server

import (
	"errors"
	"fmt"

	"syncarena/entity"
	"syncarena/replica"
	"syncarena/wire"
)

// errRejected 包合法但发送方无权执行（控制他人实体、超出交互距离等）
var errRejected = errors.New("server: request rejected")

type handlerFunc func(p *Player, body []byte) error

func (h *Host) handlerTable() map[wire.PktType]handlerFunc {
	return map[wire.PktType]handlerFunc{
		wire.PktTextMessage:     h.onTextMessage,
		wire.PktMoveCreature:    h.onMoveCreature,
		wire.PktClientSync:      h.onClientSync,
		wire.PktInteract:        h.onInteract,
		wire.PktDisconnect:      h.onDisconnect,
		wire.PktFailedChecksums: h.onFailedChecksums,
		wire.PktInventoryAction: h.onInventoryAction,
	}
}

// dispatch 解析帧并交给对应处理函数。任何错误只记录，不影响后续包
func (h *Host) dispatch(conn wire.ConnID, frame []byte) {
	h.metrics.IncPacketsIn()
	typ, body, err := wire.Split(frame)
	if err != nil {
		if errors.Is(err, wire.ErrUnknownPacket) {
			h.metrics.IncUnknown()
			h.log.Debugw("unknown packet type", "conn", conn, "type", uint16(typ))
			return
		}
		h.metrics.IncDecodeErrors()
		h.log.Debugw("malformed frame", "conn", conn, "err", err)
		return
	}
	p, ok := h.players[conn]
	if !ok {
		h.log.Debugw("packet from connection without player", "conn", conn, "type", typ)
		return
	}
	fn, ok := h.handlers[typ]
	if !ok {
		h.metrics.IncUnknown()
		h.log.Debugw("packet type not handled by server", "conn", conn, "type", typ)
		return
	}
	if err := fn(p, body); err != nil {
		if errors.Is(err, errRejected) {
			h.metrics.IncRejected()
		} else {
			h.metrics.IncDecodeErrors()
		}
		h.log.Debugw("packet dropped", "conn", conn, "type", typ, "err", err)
	}
}

func (h *Host) onTextMessage(p *Player, body []byte) error {
	var pkt wire.TextMessagePacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	h.log.Infow("text message", "conn", p.Conn, "message", pkt.Message)
	h.broadcast(wire.ReliableSequenced, &pkt, p.Conn)
	return nil
}

// onMoveCreature 只允许移动自己的角色；转发时换成服务端时间戳
func (h *Host) onMoveCreature(p *Player, body []byte) error {
	var pkt wire.MoveCreaturePacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if pkt.EntityID != p.Character.ID() {
		return fmt.Errorf("move entity %d: %w", pkt.EntityID, errRejected)
	}
	p.Character.Move(pkt.Direction)
	pkt.Timestamp = h.timestamp()
	h.broadcast(wire.ReliableSequenced, &pkt, p.Conn)
	return nil
}

func (h *Host) onClientSync(p *Player, body []byte) error {
	var pkt wire.ClientSyncPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if !h.ingest.HandleClientSync(p.Conn, &pkt, p.Character) {
		h.metrics.IncStaleSyncs()
	}
	return nil
}

// onInteract 交互者固定为发送方的角色，需在交互距离内
func (h *Host) onInteract(p *Player, body []byte) error {
	var pkt wire.InteractionPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	e, ok := h.reg.Get(pkt.TargetID)
	if !ok {
		return fmt.Errorf("interact %d: %w", pkt.TargetID, errRejected)
	}
	target, ok := e.(entity.Interactable)
	if !ok {
		return fmt.Errorf("interact %d (%s): not interactable: %w", pkt.TargetID, e.Kind(), errRejected)
	}
	if !p.Character.InReach(target.Position()) {
		return fmt.Errorf("interact %d: out of reach: %w", pkt.TargetID, errRejected)
	}

	pkt.OwnerID = p.Character.ID()
	changed := target.Interact(h.reg, pkt.OwnerID, pkt.InteractionType)
	h.broadcast(wire.ReliableSequenced, &pkt, wire.NoConn)
	for _, obj := range changed {
		if obj.Traits().RequiresSyncing && obj.ID() != replica.NoID {
			h.replicator.MarkDirty(obj.ID())
		}
	}
	return nil
}

func (h *Host) onDisconnect(p *Player, body []byte) error {
	var pkt wire.DisconnectPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	return h.net.Disconnect(p.Conn)
}

// onFailedChecksums 客户端校验失败的实体下个到期 Tick 强制重发
func (h *Host) onFailedChecksums(p *Player, body []byte) error {
	var pkt wire.IntListPacket
	pkt.Kind = wire.PktFailedChecksums
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	marked := 0
	for _, id := range pkt.IDs {
		e, ok := h.reg.Get(id)
		if !ok {
			continue
		}
		if policy, ok := h.reg.PolicyOf(e.Kind()); ok && policy.RequireChecksum {
			h.replicator.MarkDirty(id)
			marked++
		}
	}
	h.metrics.AddChecksumFails(marked)
	h.log.Debugw("client reported checksum failures", "conn", p.Conn, "reported", len(pkt.IDs), "marked", marked)
	return nil
}

// onInventoryAction 只允许操作自己的背包；状态变化时标脏并转发
func (h *Host) onInventoryAction(p *Player, body []byte) error {
	var pkt wire.InventoryActionPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if pkt.EntityID != p.Inventory.ID() {
		return fmt.Errorf("inventory %d: %w", pkt.EntityID, errRejected)
	}
	changed, err := p.Inventory.Apply(pkt.Action, pkt.RelatedInt())
	if err != nil {
		return fmt.Errorf("inventory %d: %v: %w", pkt.EntityID, err, errRejected)
	}
	if changed {
		h.replicator.MarkDirty(p.Inventory.ID())
	}
	h.broadcast(wire.ReliableSequenced, &pkt, p.Conn)
	return nil
}
