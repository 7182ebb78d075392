package replica

import "syncarena/wire"

// Controllable 连接被授权控制的角色
type Controllable interface {
	Move(direction wire.Vec3)
	SetRotation(rotation wire.Vec3)
}

// ServerIngest 按连接跟踪最后接受的客户端序列号，丢弃过期或重复的意图包。
// 客户端声明的移动向量不做校验，直接作用于角色。
type ServerIngest struct {
	last     map[wire.ConnID]int32
	accepted int64
	stale    int64
}

// NewServerIngest 所有连接初始未见任何序列号
func NewServerIngest() *ServerIngest {
	return &ServerIngest{last: make(map[wire.ConnID]int32)}
}

// LastSeen 连接最后接受的序列号，未见过时为 -1
func (s *ServerIngest) LastSeen(conn wire.ConnID) int32 {
	if seq, ok := s.last[conn]; ok {
		return seq
	}
	return -1
}

// HandleClientSync 接受时返回 true 并把意图作用于 target（可为 nil）
func (s *ServerIngest) HandleClientSync(conn wire.ConnID, pkt *wire.ClientSyncPacket, target Controllable) bool {
	if pkt.Seq <= s.LastSeen(conn) {
		s.stale++
		return false
	}
	s.last[conn] = pkt.Seq
	s.accepted++
	if target != nil {
		target.Move(pkt.MoveDirection)
		target.SetRotation(pkt.Rotation)
	}
	return true
}

// Forget 连接断开时清除其跟踪槽
func (s *ServerIngest) Forget(conn wire.ConnID) { delete(s.last, conn) }

// Counts 接受与丢弃（过期/重复）的累计数
func (s *ServerIngest) Counts() (accepted, stale int64) { return s.accepted, s.stale }
