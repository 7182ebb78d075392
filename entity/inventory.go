package entity

import (
	"errors"
	"fmt"

	"syncarena/replica"
	"syncarena/wire"
)

const (
	InventorySlots = 10
	// 容量按物品重量计
	InventoryCapacity float32 = 10

	emptySlot int32 = -1
)

var (
	ErrInventoryFull = errors.New("entity: inventory full")
	ErrUnknownItem   = errors.New("entity: unknown item")
	ErrItemNotHeld   = errors.New("entity: item not in inventory")
)

// Slot 背包格：Item 为物品 ID，空格为 -1
type Slot struct {
	Item     int32
	Equipped bool
}

// Inventory 角色背包，通过 Owner 引用角色的注册表 ID
type Inventory struct {
	replica.Base

	Owner replica.ID

	catalog *Catalog
	slots   [InventorySlots]Slot
}

// NewInventory catalog 为 nil 时使用 DefaultCatalog
func NewInventory(owner replica.ID, catalog *Catalog) *Inventory {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	inv := &Inventory{Owner: owner, catalog: catalog}
	inv.Clear()
	return inv
}

func (inv *Inventory) Kind() replica.Kind { return replica.KindInventory }

func (inv *Inventory) Policy() replica.Policy {
	return replica.Policy{RequireChecksum: true, TickInterval: 10}
}

func (inv *Inventory) Clear() {
	for i := range inv.slots {
		inv.slots[i] = Slot{Item: emptySlot}
	}
}

// Slots 返回副本
func (inv *Inventory) Slots() []Slot {
	return append([]Slot(nil), inv.slots[:]...)
}

func (inv *Inventory) weight() float32 {
	var sum float32
	for _, s := range inv.slots {
		if it, ok := inv.catalog.Get(s.Item); ok {
			sum += it.Weight
		}
	}
	return sum
}

// AddItem 放入第一个空格
func (inv *Inventory) AddItem(itemID int32) error {
	it, ok := inv.catalog.Get(itemID)
	if !ok {
		return fmt.Errorf("add item %d: %w", itemID, ErrUnknownItem)
	}
	if inv.weight()+it.Weight > InventoryCapacity {
		return fmt.Errorf("add item %d: %w", itemID, ErrInventoryFull)
	}
	for i := range inv.slots {
		if inv.slots[i].Item == emptySlot {
			inv.slots[i] = Slot{Item: itemID}
			return nil
		}
	}
	return fmt.Errorf("add item %d: %w", itemID, ErrInventoryFull)
}

// Equip 装备背包中的物品，同一装备位上的其他物品被卸下
func (inv *Inventory) Equip(itemID int32) error {
	it, ok := inv.catalog.Get(itemID)
	if !ok {
		return fmt.Errorf("equip %d: %w", itemID, ErrUnknownItem)
	}
	idx := -1
	for i, s := range inv.slots {
		if s.Item == itemID && idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("equip %d: %w", itemID, ErrItemNotHeld)
	}
	inv.Unequip(it.Slot)
	inv.slots[idx].Equipped = true
	return nil
}

// Unequip 卸下指定装备位；返回是否有变化
func (inv *Inventory) Unequip(slot EquipSlot) bool {
	changed := false
	for i, s := range inv.slots {
		if !s.Equipped {
			continue
		}
		if it, ok := inv.catalog.Get(s.Item); ok && it.Slot == slot {
			inv.slots[i].Equipped = false
			changed = true
		}
	}
	return changed
}

// Equipped 指定装备位上的物品
func (inv *Inventory) Equipped(slot EquipSlot) (Item, bool) {
	for _, s := range inv.slots {
		if !s.Equipped {
			continue
		}
		if it, ok := inv.catalog.Get(s.Item); ok && it.Slot == slot {
			return it, true
		}
	}
	return Item{}, false
}

// Use 使用装备位上的物品；不改变同步状态
func (inv *Inventory) Use(slot EquipSlot) (Item, bool) {
	return inv.Equipped(slot)
}

// Apply 执行一次背包操作，返回状态是否改变
func (inv *Inventory) Apply(action wire.InventoryAction, related int32) (bool, error) {
	switch action {
	case wire.InventoryEquip:
		if err := inv.Equip(related); err != nil {
			return false, err
		}
		return true, nil
	case wire.InventoryUnequip:
		return inv.Unequip(EquipSlot(related)), nil
	case wire.InventoryUse:
		if _, ok := inv.Use(EquipSlot(related)); !ok {
			return false, fmt.Errorf("use slot %s: %w", EquipSlot(related), ErrItemNotHeld)
		}
		return false, nil
	default:
		return false, fmt.Errorf("inventory action %d: unsupported", action)
	}
}

// Checksum 各格物品 ID 与装备标记的加权和，int32 溢出回绕
func (inv *Inventory) Checksum() int32 {
	var sum int32
	for i, s := range inv.slots {
		id := s.Item
		if id == emptySlot {
			id = int32(i)
		}
		term := (id + 1) * 509 * int32(i+1) * 53
		if s.Equipped {
			term += 1789
		} else {
			term += 431
		}
		sum += term
	}
	return sum
}

func (inv *Inventory) Serialize(w *wire.Writer) {
	ids := make([]int32, len(inv.slots))
	equipped := make([]byte, len(inv.slots))
	for i, s := range inv.slots {
		ids[i] = s.Item
		if s.Equipped {
			equipped[i] = 1
		}
	}
	w.WriteInts(ids)
	w.WriteBytesAndSize(equipped)
}

func (inv *Inventory) Deserialize(r *wire.Reader) error {
	ids := r.ReadInts()
	equipped := r.ReadBytesAndSize()
	if err := r.Err(); err != nil {
		return err
	}
	if len(equipped) < len(ids) {
		return fmt.Errorf("inventory: %d items but %d equip flags", len(ids), len(equipped))
	}
	inv.Clear()
	for i, id := range ids {
		if i >= len(inv.slots) {
			break
		}
		if id < 0 {
			continue
		}
		inv.slots[i] = Slot{Item: id, Equipped: equipped[i] == 1}
	}
	return nil
}
