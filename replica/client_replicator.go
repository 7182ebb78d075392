package replica

import "syncarena/wire"

// IntentSource 本地玩家当前的移动意图；ok=false 表示尚无本地角色
type IntentSource interface {
	Intent() (move, rotation wire.Vec3, ok bool)
}

// ClientReplicator 以固定频率把本地玩家的移动方向与朝向发给服务端。
// 不做脏跟踪：频率低、开销小、可容忍丢包。
type ClientReplicator struct {
	Sequence

	source IntentSource
	out    Sender
	sent   int64
}

// NewClientReplicator 从 source 读取意图，经 out 发送
func NewClientReplicator(source IntentSource, out Sender) *ClientReplicator {
	return &ClientReplicator{source: source, out: out}
}

// NextSequenceID 下一个 ClientSync 序列号
func (c *ClientReplicator) NextSequenceID() int32 { return c.Next() }

// Sent 已发送的意图包数
func (c *ClientReplicator) Sent() int64 { return c.sent }

// PerformTick 实现 Tickable，没有本地角色时跳过
func (c *ClientReplicator) PerformTick(int32) {
	move, rot, ok := c.source.Intent()
	if !ok {
		return
	}
	c.out.Send(wire.Unreliable, &wire.ClientSyncPacket{
		Seq:           c.NextSequenceID(),
		MoveDirection: move,
		Rotation:      rot,
	})
	c.sent++
}
