package replica

import "syncarena/wire"

// ID 注册表内唯一的实体编号，与线上的 int32 直接对应
type ID = int32

// NoID 未分配
const NoID ID = -1

// Syncable 每个参与复制的实体必须实现的契约。
// 核心只通过该契约与实体交互，不关心其语义。
type Syncable interface {
	ID() ID
	SetID(id ID)
	ClearID()
	Kind() Kind
	Policy() Policy
	Serialize(w *wire.Writer)
	Deserialize(r *wire.Reader) error
	// Checksum 返回 0 表示不计算校验和
	Checksum() int32
}

// Base 提供 ID 存储与契约的缺省实现，零值即“未分配”
type Base struct {
	id    ID
	hasID bool
}

// ID 未分配时返回 NoID
func (b *Base) ID() ID {
	if !b.hasID {
		return NoID
	}
	return b.id
}

// SetID 传入 NoID 等同于 ClearID
func (b *Base) SetID(id ID) {
	b.id = id
	b.hasID = id != NoID
}

// ClearID 回到未分配状态
func (b *Base) ClearID() {
	b.id = 0
	b.hasID = false
}

func (b *Base) Serialize(*wire.Writer) {}

func (b *Base) Deserialize(*wire.Reader) error { return nil }

func (b *Base) Checksum() int32 { return 0 }

// Placed 有世界坐标的实体（静态对象排序、交互距离判定使用）
type Placed interface {
	Position() wire.Vec3
}
