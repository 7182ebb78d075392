package entity

// EquipSlot 装备位
type EquipSlot uint8

const (
	SlotHat EquipSlot = iota
	SlotRightHand
	SlotLeftHand
)

func (s EquipSlot) String() string {
	switch s {
	case SlotHat:
		return "hat"
	case SlotRightHand:
		return "right_hand"
	case SlotLeftHand:
		return "left_hand"
	default:
		return "unknown"
	}
}

// Item 物品目录中的一项
type Item struct {
	ID     int32
	Name   string
	Weight float32
	Slot   EquipSlot
}

// Catalog 只读物品目录，服务端与客户端必须一致
type Catalog struct {
	items map[int32]Item
}

func NewCatalog(items ...Item) *Catalog {
	c := &Catalog{items: make(map[int32]Item, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// DefaultCatalog 内置物品
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Item{ID: 0, Name: "Very Long Item Name", Weight: 1.5, Slot: SlotHat},
		Item{ID: 1, Name: "Outworldly spherical tube", Weight: 0.5, Slot: SlotRightHand},
		Item{ID: 2, Name: "Pocket terminal", Weight: 1, Slot: SlotLeftHand},
	)
}

func (c *Catalog) Get(id int32) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}
