package wire

import (
	"errors"
	"fmt"
)

// PktType 包类型码，接收端据此分派到处理表
type PktType uint16

const (
	PktTextMessage     PktType = 200
	PktIdentity        PktType = 201
	PktMassIdentity    PktType = 202
	PktSpawnEntity     PktType = 203
	PktMoveCreature    PktType = 204
	PktSync            PktType = 205
	PktClientSync      PktType = 206
	PktInteract        PktType = 207
	PktStaticObjectIDs PktType = 208
	PktDisconnect      PktType = 209
	PktFailedChecksums PktType = 210
	PktInventoryAction PktType = 211
)

var pktNames = map[PktType]string{
	PktTextMessage:     "text-message",
	PktIdentity:        "identity",
	PktMassIdentity:    "mass-identity",
	PktSpawnEntity:     "spawn-entity",
	PktMoveCreature:    "move-creature",
	PktSync:            "sync",
	PktClientSync:      "client-sync",
	PktInteract:        "interact",
	PktStaticObjectIDs: "static-object-ids",
	PktDisconnect:      "disconnect",
	PktFailedChecksums: "failed-checksums",
	PktInventoryAction: "inventory-action",
}

func (t PktType) String() string {
	if n, ok := pktNames[t]; ok {
		return n
	}
	return fmt.Sprintf("pkt(%d)", uint16(t))
}

// Known 是否为已定义的包类型
func (t PktType) Known() bool {
	_, ok := pktNames[t]
	return ok
}

// ErrUnknownPacket 收到未定义的包类型码
var ErrUnknownPacket = errors.New("wire: unknown packet type")

// Packet 所有线上包的编解码契约；布局固定、按字段顺序，不自描述
type Packet interface {
	Type() PktType
	Encode(w *Writer)
	Decode(r *Reader)
}

// Marshal 写出帧：uint16 类型码 + 包体
func Marshal(p Packet) ([]byte, error) {
	w := NewWriter()
	w.WriteUint16(uint16(p.Type()))
	p.Encode(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.Type(), err)
	}
	return w.Bytes(), nil
}

// Split 取出帧的类型码与包体；类型码未知时仍返回包体以便调用方记录
func Split(frame []byte) (PktType, []byte, error) {
	r := NewReader(frame)
	t := PktType(r.ReadUint16())
	if err := r.Err(); err != nil {
		return 0, nil, err
	}
	body := frame[2:]
	if !t.Known() {
		return t, body, fmt.Errorf("%w: %d", ErrUnknownPacket, uint16(t))
	}
	return t, body, nil
}

// Decode 把包体解码进 p
func Decode(body []byte, p Packet) error {
	r := NewReader(body)
	p.Decode(r)
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode %s: %w", p.Type(), err)
	}
	return nil
}

// TextMessagePacket 文本消息（聊天）
type TextMessagePacket struct {
	Message string
}

func (*TextMessagePacket) Type() PktType      { return PktTextMessage }
func (p *TextMessagePacket) Encode(w *Writer) { w.WriteString(p.Message) }
func (p *TextMessagePacket) Decode(r *Reader) { p.Message = r.ReadString() }

// IdentityPacket 告知某个连接编号，Owned 表示是否为接收方自己
type IdentityPacket struct {
	ConnID ConnID
	Owned  bool
}

func (*IdentityPacket) Type() PktType { return PktIdentity }
func (p *IdentityPacket) Encode(w *Writer) {
	w.WriteInt32(int32(p.ConnID))
	w.WriteBool(p.Owned)
}
func (p *IdentityPacket) Decode(r *Reader) {
	p.ConnID = ConnID(r.ReadInt32())
	p.Owned = r.ReadBool()
}

// IntListPacket 列式整数列表，复用于批量身份、静态对象 ID 与校验失败报告
type IntListPacket struct {
	Kind PktType
	IDs  []int32
}

func (p *IntListPacket) Type() PktType   { return p.Kind }
func (p *IntListPacket) Encode(w *Writer) { w.WriteInts(p.IDs) }
func (p *IntListPacket) Decode(r *Reader) { p.IDs = r.ReadInts() }

func NewMassIdentity(ids []int32) *IntListPacket {
	return &IntListPacket{Kind: PktMassIdentity, IDs: ids}
}

func NewStaticObjectIDs(ids []int32) *IntListPacket {
	return &IntListPacket{Kind: PktStaticObjectIDs, IDs: ids}
}

func NewFailedChecksums(ids []int32) *IntListPacket {
	return &IntListPacket{Kind: PktFailedChecksums, IDs: ids}
}

// EntityType 可生成的实体预设
type EntityType int16

const (
	// EntityPC 本地玩家控制的角色
	EntityPC EntityType = iota
	// EntityNPC 非本地控制的角色
	EntityNPC
)

// SpawnEntityPacket 生成实体，IDs 按实体的可同步组件顺序排列
type SpawnEntityPacket struct {
	EntityType EntityType
	Position   Vec3
	OwnerID    ConnID
	IDs        []int32
}

func (*SpawnEntityPacket) Type() PktType { return PktSpawnEntity }
func (p *SpawnEntityPacket) Encode(w *Writer) {
	w.WriteInt16(int16(p.EntityType))
	w.WriteVec3(p.Position)
	w.WriteInt32(int32(p.OwnerID))
	w.WriteInts(p.IDs)
}
func (p *SpawnEntityPacket) Decode(r *Reader) {
	p.EntityType = EntityType(r.ReadInt16())
	p.Position = r.ReadVec3()
	p.OwnerID = ConnID(r.ReadInt32())
	p.IDs = r.ReadInts()
}

// MoveCreaturePacket 客户端请求移动，或服务端确认后转发给其他玩家
type MoveCreaturePacket struct {
	Direction Vec3
	EntityID  int32
	Timestamp float64
}

func (*MoveCreaturePacket) Type() PktType { return PktMoveCreature }
func (p *MoveCreaturePacket) Encode(w *Writer) {
	w.WriteVec3(p.Direction)
	w.WriteInt32(p.EntityID)
	w.WriteFloat64(p.Timestamp)
}
func (p *MoveCreaturePacket) Decode(r *Reader) {
	p.Direction = r.ReadVec3()
	p.EntityID = r.ReadInt32()
	p.Timestamp = r.ReadFloat64()
}

// SyncPacket 服务端→客户端的状态同步。
// UpdatedIDs 与 Payload 中的分段按位置一一对应；每段带 uint16 长度前缀，
// 使接收端能跳过无法解析的实体而继续处理后续分段。
type SyncPacket struct {
	Seq            int32
	Timestamp      float64
	UpdatedIDs     []int32
	Payload        []byte
	ChecksummedIDs []int32
	Checksums      []int32
}

func (*SyncPacket) Type() PktType { return PktSync }
func (p *SyncPacket) Encode(w *Writer) {
	w.WriteInt32(p.Seq)
	w.WriteFloat64(p.Timestamp)
	w.WriteInts(p.UpdatedIDs)
	w.WriteBlob(p.Payload)
	w.WriteInts(p.ChecksummedIDs)
	w.WriteInts(p.Checksums)
}
func (p *SyncPacket) Decode(r *Reader) {
	p.Seq = r.ReadInt32()
	p.Timestamp = r.ReadFloat64()
	p.UpdatedIDs = r.ReadInts()
	p.Payload = r.ReadBlob()
	p.ChecksummedIDs = r.ReadInts()
	p.Checksums = r.ReadInts()
	if r.Err() == nil && len(p.ChecksummedIDs) != len(p.Checksums) {
		r.err = ErrPlaneMismatch
	}
}

// ClientSyncPacket 客户端→服务端的移动意图；序列号独立于服务端包
type ClientSyncPacket struct {
	Seq           int32
	MoveDirection Vec3
	Rotation      Vec3
}

func (*ClientSyncPacket) Type() PktType { return PktClientSync }
func (p *ClientSyncPacket) Encode(w *Writer) {
	w.WriteInt32(p.Seq)
	w.WriteVec3(p.MoveDirection)
	w.WriteVec3(p.Rotation)
}
func (p *ClientSyncPacket) Decode(r *Reader) {
	p.Seq = r.ReadInt32()
	p.MoveDirection = r.ReadVec3()
	p.Rotation = r.ReadVec3()
}

// InteractionType 交互方式
type InteractionType uint8

const (
	InteractActivate InteractionType = iota
	InteractDeactivate
	InteractEnter
	InteractExit
)

// InteractionPacket 某实体对可交互对象发起的交互
type InteractionPacket struct {
	TargetID        int32
	OwnerID         int32
	InteractionType InteractionType
}

func (*InteractionPacket) Type() PktType { return PktInteract }
func (p *InteractionPacket) Encode(w *Writer) {
	w.WriteInt32(p.TargetID)
	w.WriteInt32(p.OwnerID)
	w.WriteUint8(uint8(p.InteractionType))
}
func (p *InteractionPacket) Decode(r *Reader) {
	p.TargetID = r.ReadInt32()
	p.OwnerID = r.ReadInt32()
	p.InteractionType = InteractionType(r.ReadUint8())
}

// DisconnectPacket 客户端请求断开，或服务端通知某连接已离开
type DisconnectPacket struct {
	ConnID ConnID
}

func (*DisconnectPacket) Type() PktType      { return PktDisconnect }
func (p *DisconnectPacket) Encode(w *Writer) { w.WriteInt32(int32(p.ConnID)) }
func (p *DisconnectPacket) Decode(r *Reader) { p.ConnID = ConnID(r.ReadInt32()) }

// InventoryAction 背包操作
type InventoryAction uint8

const (
	InventoryEquip InventoryAction = iota
	InventoryUnequip
	InventoryUse
)

// InventoryActionPacket 背包操作，Ints 的含义随 Action 而定（物品 ID 或槽位）
type InventoryActionPacket struct {
	Action   InventoryAction
	Ints     []int32
	EntityID int32
}

func (*InventoryActionPacket) Type() PktType { return PktInventoryAction }
func (p *InventoryActionPacket) Encode(w *Writer) {
	w.WriteUint8(uint8(p.Action))
	w.WriteInts(p.Ints)
	w.WriteInt32(p.EntityID)
}
func (p *InventoryActionPacket) Decode(r *Reader) {
	p.Action = InventoryAction(r.ReadUint8())
	p.Ints = r.ReadInts()
	p.EntityID = r.ReadInt32()
}

// RelatedInt 单参数操作的参数，缺省为 -1
func (p *InventoryActionPacket) RelatedInt() int32 {
	if len(p.Ints) == 0 {
		return -1
	}
	return p.Ints[0]
}
