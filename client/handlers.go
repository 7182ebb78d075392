package client

import (
	"errors"
	"fmt"

	"syncarena/entity"
	"syncarena/wire"
)

type handlerFunc func(body []byte) error

func (h *Host) handlerTable() map[wire.PktType]handlerFunc {
	return map[wire.PktType]handlerFunc{
		wire.PktTextMessage:     h.onTextMessage,
		wire.PktIdentity:        h.onIdentity,
		wire.PktMassIdentity:    h.onMassIdentity,
		wire.PktSpawnEntity:     h.onSpawnEntity,
		wire.PktMoveCreature:    h.onMoveCreature,
		wire.PktSync:            h.onSync,
		wire.PktInteract:        h.onInteract,
		wire.PktStaticObjectIDs: h.onStaticObjectIDs,
		wire.PktDisconnect:      h.onDisconnect,
		wire.PktInventoryAction: h.onInventoryAction,
	}
}

func (h *Host) dispatch(frame []byte) {
	typ, body, err := wire.Split(frame)
	if err != nil {
		if errors.Is(err, wire.ErrUnknownPacket) {
			h.log.Debugw("unknown packet type", "type", uint16(typ))
		} else {
			h.log.Debugw("malformed frame", "err", err)
		}
		return
	}
	fn, ok := h.handlers[typ]
	if !ok {
		h.log.Debugw("packet type not handled by client", "type", typ)
		return
	}
	if err := fn(body); err != nil {
		h.log.Debugw("packet dropped", "type", typ, "err", err)
	}
}

func (h *Host) onTextMessage(body []byte) error {
	var pkt wire.TextMessagePacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	h.log.Infow("text message", "message", pkt.Message)
	return nil
}

func (h *Host) onIdentity(body []byte) error {
	var pkt wire.IdentityPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if pkt.Owned {
		h.self = pkt.ConnID
		h.log.Infow("identity assigned", "conn", pkt.ConnID)
		return nil
	}
	h.known[pkt.ConnID] = struct{}{}
	return nil
}

func (h *Host) onMassIdentity(body []byte) error {
	pkt := wire.NewMassIdentity(nil)
	if err := wire.Decode(body, pkt); err != nil {
		return err
	}
	for _, id := range pkt.IDs {
		h.known[wire.ConnID(id)] = struct{}{}
	}
	return nil
}

// onSpawnEntity 为自己生成的 NPC 转为本地控制的 PC
func (h *Host) onSpawnEntity(body []byte) error {
	var pkt wire.SpawnEntityPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if _, exists := h.players[pkt.OwnerID]; exists {
		return fmt.Errorf("player %d already spawned", pkt.OwnerID)
	}
	own := pkt.OwnerID == h.self && h.self != wire.NoConn
	if own && pkt.EntityType == wire.EntityNPC {
		pkt.EntityType = wire.EntityPC
	}

	p, err := h.spawn(&pkt)
	if err != nil {
		return err
	}
	h.players[pkt.OwnerID] = p
	if pkt.EntityType == wire.EntityPC {
		p.Character.SetLocal(true)
		h.local = p
	} else {
		h.known[pkt.OwnerID] = struct{}{}
	}
	h.log.Infow("player spawned", "conn", pkt.OwnerID, "local", own, "character", p.Character.ID(), "inventory", p.Inventory.ID())
	return nil
}

func (h *Host) onMoveCreature(body []byte) error {
	var pkt wire.MoveCreaturePacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	e, ok := h.reg.Get(pkt.EntityID)
	if !ok {
		return fmt.Errorf("move unknown entity %d", pkt.EntityID)
	}
	ch, ok := e.(*entity.Character)
	if !ok {
		return fmt.Errorf("move entity %d of kind %s", pkt.EntityID, e.Kind())
	}
	ch.Move(pkt.Direction)
	return nil
}

func (h *Host) onSync(body []byte) error {
	var pkt wire.SyncPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if !h.ingest.HandleSync(&pkt) {
		h.log.Debugw("stale sync dropped", "seq", pkt.Seq, "last", h.ingest.LastSeen())
	}
	return nil
}

// onInteract 自己发起的交互已在本地执行，忽略回显
func (h *Host) onInteract(body []byte) error {
	var pkt wire.InteractionPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	if h.local != nil && pkt.OwnerID == h.local.Character.ID() {
		return nil
	}
	target, err := h.interactable(pkt.TargetID)
	if err != nil {
		return err
	}
	target.Interact(h.reg, pkt.OwnerID, pkt.InteractionType)
	return nil
}

func (h *Host) onStaticObjectIDs(body []byte) error {
	pkt := wire.NewStaticObjectIDs(nil)
	if err := wire.Decode(body, pkt); err != nil {
		return err
	}
	if h.statics {
		return errors.New("static object ids already assigned")
	}
	if _, err := h.reg.AssignStaticIDs(h.world.Statics(), pkt.IDs); err != nil {
		return fmt.Errorf("assign static ids: %w", err)
	}
	h.world.Link()
	h.statics = true
	h.log.Infow("static objects registered", "count", len(pkt.IDs), "local", len(h.world.Objects()))
	return nil
}

func (h *Host) onDisconnect(body []byte) error {
	var pkt wire.DisconnectPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	h.despawn(pkt.ConnID)
	delete(h.known, pkt.ConnID)
	h.log.Infow("player left", "conn", pkt.ConnID)
	return nil
}

func (h *Host) onInventoryAction(body []byte) error {
	var pkt wire.InventoryActionPacket
	if err := wire.Decode(body, &pkt); err != nil {
		return err
	}
	e, ok := h.reg.Get(pkt.EntityID)
	if !ok {
		return fmt.Errorf("inventory action on unknown entity %d", pkt.EntityID)
	}
	inv, ok := e.(*entity.Inventory)
	if !ok {
		return fmt.Errorf("inventory action on entity %d of kind %s", pkt.EntityID, e.Kind())
	}
	_, err := inv.Apply(pkt.Action, pkt.RelatedInt())
	return err
}

func (h *Host) interactable(id int32) (entity.Interactable, error) {
	e, ok := h.reg.Get(id)
	if !ok {
		return nil, fmt.Errorf("interact with unknown entity %d", id)
	}
	target, ok := e.(entity.Interactable)
	if !ok {
		return nil, fmt.Errorf("entity %d of kind %s is not interactable", id, e.Kind())
	}
	return target, nil
}
