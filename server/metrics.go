package server

import (
	"sync/atomic"

	"syncarena/replica"
)

// Metrics 服务端运行期指标；主循环写入，管理端点并发读取
type Metrics struct {
	TickCount      int64
	TotalTickNs    int64
	PacketsIn      int64
	PacketsOut     int64
	BytesOut       int64
	DropsSimulated int64
	UnknownPackets int64
	DecodeErrors   int64
	Rejected       int64 // 未授权或超出交互距离
	StaleSyncs     int64
	ChecksumFails  int64 // 客户端上报的校验失败实体数
	Connections    int64

	replica atomic.Pointer[replica.ServerStats]
}

func (m *Metrics) IncPacketsIn()      { atomic.AddInt64(&m.PacketsIn, 1) }
func (m *Metrics) IncDropsSimulated() { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *Metrics) IncUnknown()        { atomic.AddInt64(&m.UnknownPackets, 1) }
func (m *Metrics) IncDecodeErrors()   { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncRejected()       { atomic.AddInt64(&m.Rejected, 1) }
func (m *Metrics) IncStaleSyncs()     { atomic.AddInt64(&m.StaleSyncs, 1) }
func (m *Metrics) AddChecksumFails(n int) {
	atomic.AddInt64(&m.ChecksumFails, int64(n))
}
func (m *Metrics) AddConnections(delta int64) { atomic.AddInt64(&m.Connections, delta) }

func (m *Metrics) AddSent(bytes int) {
	atomic.AddInt64(&m.PacketsOut, 1)
	atomic.AddInt64(&m.BytesOut, int64(bytes))
}

func (m *Metrics) AddTick(ns int64, stats replica.ServerStats) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	m.replica.Store(&stats)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	out := map[string]any{
		"tick_count":      tick,
		"avg_tick_ms":     avgMs,
		"packets_in":      atomic.LoadInt64(&m.PacketsIn),
		"packets_out":     atomic.LoadInt64(&m.PacketsOut),
		"bytes_out":       atomic.LoadInt64(&m.BytesOut),
		"drops_simulated": atomic.LoadInt64(&m.DropsSimulated),
		"unknown_packets": atomic.LoadInt64(&m.UnknownPackets),
		"decode_errors":   atomic.LoadInt64(&m.DecodeErrors),
		"rejected":        atomic.LoadInt64(&m.Rejected),
		"stale_syncs":     atomic.LoadInt64(&m.StaleSyncs),
		"checksum_fails":  atomic.LoadInt64(&m.ChecksumFails),
		"connections":     atomic.LoadInt64(&m.Connections),
	}
	if s := m.replica.Load(); s != nil {
		out["sync_packets"] = s.PacketsSent
		out["sync_entities"] = s.EntitiesSent
		out["sync_checksums"] = s.ChecksumsSent
		out["sync_bytes"] = s.BytesSent
		out["sync_deferred"] = s.Deferred
		out["sync_last_size"] = s.LastPacketSize
	}
	return out
}
