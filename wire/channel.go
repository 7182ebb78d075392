package wire

import "fmt"

// ConnID 传输层分配的连接编号（服务端唯一）
type ConnID int32

// NoConn 表示“无所属连接”，例如无人控制的实体
const NoConn ConnID = -1

// Channel 发送通道的服务质量
type Channel byte

const (
	// ReliableSequenced 有序且保证送达：连接生命周期、生成、一次性交互事件
	ReliableSequenced Channel = iota
	// UnreliableSequenced 尽力而为但保持发送顺序（同步热路径不使用）
	UnreliableSequenced
	// Unreliable 尽力而为、无序：SyncPacket 与 ClientSyncPacket
	Unreliable
)

func (c Channel) String() string {
	switch c {
	case ReliableSequenced:
		return "reliable-sequenced"
	case UnreliableSequenced:
		return "unreliable-sequenced"
	case Unreliable:
		return "unreliable"
	default:
		return fmt.Sprintf("channel(%d)", byte(c))
	}
}

// Reliable 是否需要传输层保证送达
func (c Channel) Reliable() bool { return c == ReliableSequenced }
