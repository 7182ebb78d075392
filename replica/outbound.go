package replica

import "syncarena/wire"

// Broadcaster 服务端向所有连接发送
type Broadcaster interface {
	Broadcast(ch wire.Channel, p wire.Packet)
}

// Sender 客户端向服务端发送
type Sender interface {
	Send(ch wire.Channel, p wire.Packet)
}
