package replica

import "time"

// LinkStats 客户端对服务端同步流的统计：丢包率、延迟与已接收包数
type LinkStats struct {
	smallest int32
	largest  int32
	accepted int64
	ping     time.Duration
}

func (s *LinkStats) observe(seq int32, ping time.Duration) {
	if s.accepted == 0 || seq < s.smallest {
		s.smallest = seq
	}
	if s.accepted == 0 || seq > s.largest {
		s.largest = seq
	}
	s.accepted++
	s.ping = ping
}

// Received 已接受的同步包数
func (s *LinkStats) Received() int64 { return s.accepted }

// Range 观察到的最小与最大序列号
func (s *LinkStats) Range() (smallest, largest int32) { return s.smallest, s.largest }

// PacketLoss 1 - 已接受数 / (最大序列号 - 最小序列号 + 1)
func (s *LinkStats) PacketLoss() float64 {
	if s.accepted == 0 {
		return 0
	}
	span := int64(s.largest) - int64(s.smallest) + 1
	return 1 - float64(s.accepted)/float64(span)
}

// Ping 本地时钟与最近一个包携带的服务端时间戳之差
func (s *LinkStats) Ping() time.Duration { return s.ping }
