package client

import (
	"errors"
	"fmt"

	"syncarena/entity"
	"syncarena/wire"
)

// ErrNotSpawned 本地角色尚未生成
var ErrNotSpawned = errors.New("client: local player not spawned")

// Move 本地立即生效，并通知服务端
func (h *Host) Move(direction wire.Vec3) error {
	if h.local == nil {
		return ErrNotSpawned
	}
	h.local.Character.Move(direction)
	h.Send(wire.ReliableSequenced, &wire.MoveCreaturePacket{
		Direction: h.local.Character.MoveDirection(),
		EntityID:  h.local.Character.ID(),
	})
	return nil
}

// Interact 本地先执行；只有公开的交互才发给服务端
func (h *Host) Interact(targetID int32, t wire.InteractionType) error {
	if h.local == nil {
		return ErrNotSpawned
	}
	target, err := h.interactable(targetID)
	if err != nil {
		return err
	}
	owner := h.local.Character.ID()
	target.Interact(h.reg, owner, t)
	if target.Traits().Public {
		h.Send(wire.ReliableSequenced, &wire.InteractionPacket{TargetID: targetID, OwnerID: owner, InteractionType: t})
	}
	return nil
}

// InteractByName 按布局中的名字交互
func (h *Host) InteractByName(name string, t wire.InteractionType) error {
	obj, ok := h.world.Lookup(name)
	if !ok {
		return fmt.Errorf("no object named %q", name)
	}
	return h.Interact(obj.ID(), t)
}

// Inventory 对本地背包执行操作并通知服务端
func (h *Host) Inventory(action wire.InventoryAction, related int32) error {
	if h.local == nil {
		return ErrNotSpawned
	}
	inv := h.local.Inventory
	if _, err := inv.Apply(action, related); err != nil {
		return err
	}
	h.Send(wire.ReliableSequenced, &wire.InventoryActionPacket{Action: action, Ints: []int32{related}, EntityID: inv.ID()})
	return nil
}

// Equip 装备背包中的物品
func (h *Host) Equip(itemID int32) error { return h.Inventory(wire.InventoryEquip, itemID) }

func (h *Host) Unequip(slot entity.EquipSlot) error {
	return h.Inventory(wire.InventoryUnequip, int32(slot))
}

func (h *Host) Say(message string) {
	h.Send(wire.ReliableSequenced, &wire.TextMessagePacket{Message: message})
}

// Leave 请求服务端断开
func (h *Host) Leave() {
	if h.self == wire.NoConn {
		return
	}
	h.Send(wire.ReliableSequenced, &wire.DisconnectPacket{ConnID: h.self})
}
