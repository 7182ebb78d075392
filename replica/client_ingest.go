package replica

import (
	"time"

	"go.uber.org/zap"

	"syncarena/wire"
)

// ClientIngest 客户端同步包入口：丢弃过期包，按位置反序列化实体，
// 并审计服务端附带的校验和。校验失败只上报，不在此处修复。
type ClientIngest struct {
	reg *Registry
	out Sender
	log *zap.SugaredLogger
	now func() time.Time

	last  int32
	stats LinkStats

	mismatches int64
	unresolved int64
}

// NewClientIngest 校验失败报告经 out 发回服务端
func NewClientIngest(reg *Registry, out Sender, log *zap.SugaredLogger) *ClientIngest {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ClientIngest{
		reg:  reg,
		out:  out,
		log:  log.Named("ingest"),
		now:  time.Now,
		last: -1,
	}
}

// LastSeen 最后接受的同步包序列号，尚未收到时为 -1
func (c *ClientIngest) LastSeen() int32 { return c.last }

// Stats 同步流统计
func (c *ClientIngest) Stats() *LinkStats { return &c.stats }

// Counts 校验失败与无法解析的实体 ID 累计数
func (c *ClientIngest) Counts() (mismatches, unresolved int64) { return c.mismatches, c.unresolved }

// HandleSync 应用服务端同步包；过期或重复时返回 false
func (c *ClientIngest) HandleSync(pkt *wire.SyncPacket) bool {
	if pkt.Seq <= c.last {
		return false
	}
	c.last = pkt.Seq
	c.apply(pkt)

	failed := c.audit(pkt)
	if len(failed) > 0 {
		c.out.Send(wire.ReliableSequenced, wire.NewFailedChecksums(failed))
	}

	sent := time.Unix(0, int64(pkt.Timestamp*1e9))
	c.stats.observe(pkt.Seq, c.now().Sub(sent))
	return true
}

func (c *ClientIngest) apply(pkt *wire.SyncPacket) {
	r := wire.NewReader(pkt.Payload)
	for _, id := range pkt.UpdatedIDs {
		seg := r.ReadBytesAndSize()
		if err := r.Err(); err != nil {
			c.log.Warnw("sync payload truncated", "seq", pkt.Seq, "id", id, "err", err)
			return
		}
		e, ok := c.reg.Get(id)
		if !ok {
			c.unresolved++
			c.log.Debugw("sync references unknown entity", "seq", pkt.Seq, "id", id)
			continue
		}
		if err := e.Deserialize(wire.NewReader(seg)); err != nil {
			c.log.Warnw("deserialize entity failed", "seq", pkt.Seq, "id", id, "kind", e.Kind(), "err", err)
		}
	}
}

func (c *ClientIngest) audit(pkt *wire.SyncPacket) []int32 {
	var failed []int32
	for i, id := range pkt.ChecksummedIDs {
		if i >= len(pkt.Checksums) {
			break
		}
		e, ok := c.reg.Get(id)
		if !ok {
			c.unresolved++
			c.log.Debugw("checksum references unknown entity", "seq", pkt.Seq, "id", id)
			continue
		}
		if e.Checksum() != pkt.Checksums[i] {
			failed = append(failed, id)
		}
	}
	c.mismatches += int64(len(failed))
	return failed
}
