package server

import (
	"syncarena/wire"
)

// send 向单个连接发送。不可靠通道按 dropProb 模拟丢包
func (h *Host) send(conn wire.ConnID, ch wire.Channel, p wire.Packet) {
	frame, err := wire.Marshal(p)
	if err != nil {
		h.log.Errorw("marshal packet failed", "type", p.Type(), "err", err)
		return
	}
	h.sendFrame(conn, ch, p.Type(), frame)
}

func (h *Host) sendFrame(conn wire.ConnID, ch wire.Channel, typ wire.PktType, frame []byte) {
	if !ch.Reliable() && h.dropProb > 0 && h.rng.Float64() < h.dropProb {
		h.metrics.IncDropsSimulated()
		return
	}
	if err := h.net.Send(conn, ch, frame); err != nil {
		h.log.Debugw("send failed", "conn", conn, "type", typ, "channel", ch, "err", err)
		return
	}
	h.metrics.AddSent(len(frame))
}

// broadcast 发给所有已加入的玩家，except 为 wire.NoConn 时不排除任何人
func (h *Host) broadcast(ch wire.Channel, p wire.Packet, except wire.ConnID) {
	frame, err := wire.Marshal(p)
	if err != nil {
		h.log.Errorw("marshal packet failed", "type", p.Type(), "err", err)
		return
	}
	for conn := range h.players {
		if conn == except {
			continue
		}
		h.sendFrame(conn, ch, p.Type(), frame)
	}
}

// Broadcast 实现 replica.Broadcaster
func (h *Host) Broadcast(ch wire.Channel, p wire.Packet) {
	h.broadcast(ch, p, wire.NoConn)
}

// timestamp 服务端时间，unix 秒
func (h *Host) timestamp() float64 {
	return float64(h.now().UnixNano()) / 1e9
}
