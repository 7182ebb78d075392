package replica

import (
	"math"
	"time"

	"go.uber.org/zap"

	"syncarena/wire"
)

// ServerStats 服务端复制器的累计计数
type ServerStats struct {
	PacketsSent    int64
	EntitiesSent   int64
	ChecksumsSent  int64
	BytesSent      int64
	Deferred       int64
	UnresolvedIDs  int64
	LastPacketSize int
}

// ServerReplicator 每个 Tick 根据各种类的策略决定哪些实体需要重发，
// 组装 SyncPacket 并通过不可靠通道广播。
type ServerReplicator struct {
	Sequence

	reg *Registry
	out Broadcaster
	log *zap.SugaredLogger
	now func() time.Time

	dirty     map[ID]struct{}
	queued    []ID
	queuedSet map[ID]struct{}

	maxPayload int
	stats      ServerStats
}

// NewServerReplicator maxPayload 为单个包的实体载荷上限（字节），0 表示不限
func NewServerReplicator(reg *Registry, out Broadcaster, log *zap.SugaredLogger, maxPayload int) *ServerReplicator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ServerReplicator{
		reg:        reg,
		out:        out,
		log:        log.Named("replicator"),
		now:        time.Now,
		dirty:      make(map[ID]struct{}),
		queuedSet:  make(map[ID]struct{}),
		maxPayload: maxPayload,
	}
}

// NextSequenceID 下一个 SyncPacket 序列号
func (r *ServerReplicator) NextSequenceID() int32 { return r.Next() }

// SetMaxPayload 调整单包载荷上限（管理接口在循环协程内调用）
func (r *ServerReplicator) SetMaxPayload(n int) {
	if n < 0 {
		n = 0
	}
	r.maxPayload = n
}

// MaxPayload 当前单包载荷上限，0 表示不限
func (r *ServerReplicator) MaxPayload() int { return r.maxPayload }

// Stats 累计计数的副本
func (r *ServerReplicator) Stats() ServerStats { return r.stats }

// MarkDirty 标记实体状态已变化，幂等
func (r *ServerReplicator) MarkDirty(id ID) { r.dirty[id] = struct{}{} }

// IsDirty 是否仍在脏集合中
func (r *ServerReplicator) IsDirty(id ID) bool {
	_, ok := r.dirty[id]
	return ok
}

// QueueDirect 绕过脏集合，强制在下一次发送中包含该实体
func (r *ServerReplicator) QueueDirect(id ID) {
	if _, ok := r.queuedSet[id]; ok {
		return
	}
	r.queuedSet[id] = struct{}{}
	r.queued = append(r.queued, id)
}

// Forget 实体被移除时清理其待发状态
func (r *ServerReplicator) Forget(id ID) {
	delete(r.dirty, id)
	if _, ok := r.queuedSet[id]; !ok {
		return
	}
	delete(r.queuedSet, id)
	for i, q := range r.queued {
		if q == id {
			r.queued = append(r.queued[:i], r.queued[i+1:]...)
			break
		}
	}
}

// PerformTick 实现 Tickable
func (r *ServerReplicator) PerformTick(tick int32) {
	var checksummed, checksums []int32

	for _, kind := range r.reg.Kinds() {
		policy, _ := r.reg.PolicyOf(kind)
		if !policy.Due(tick) {
			continue
		}
		for _, id := range r.reg.IDsOf(kind) {
			_, isDirty := r.dirty[id]
			if isDirty || !policy.RequireChecksum {
				r.QueueDirect(id)
			}
			if policy.RequireChecksum {
				e, ok := r.reg.Get(id)
				if !ok {
					continue
				}
				checksummed = append(checksummed, id)
				checksums = append(checksums, e.Checksum())
			}
		}
	}

	if len(r.queued) == 0 {
		return
	}

	pkt := r.build(checksummed, checksums)
	if pkt == nil {
		return
	}
	r.out.Broadcast(wire.Unreliable, pkt)
	r.stats.PacketsSent++
	r.stats.EntitiesSent += int64(len(pkt.UpdatedIDs))
	r.stats.ChecksumsSent += int64(len(pkt.ChecksummedIDs))
	r.stats.BytesSent += int64(len(pkt.Payload))
	r.stats.LastPacketSize = len(pkt.Payload)
}

// build 按队列顺序序列化实体，没有可发送的实体时返回 nil。超出载荷上限的 ID 留在队列中，
// 且仍保持脏标记，下一个 Tick 继续发送。
func (r *ServerReplicator) build(checksummed, checksums []int32) *wire.SyncPacket {
	payload := wire.NewWriter()
	updated := make([]int32, 0, len(r.queued))
	consumed := 0

	for _, id := range r.queued {
		e, ok := r.reg.Get(id)
		if !ok {
			r.log.Debugw("queued entity no longer registered", "id", id)
			r.stats.UnresolvedIDs++
			consumed++
			continue
		}
		seg := wire.NewWriter()
		e.Serialize(seg)
		if err := seg.Err(); err != nil {
			r.log.Warnw("serialize entity failed", "id", id, "kind", e.Kind(), "err", err)
			consumed++
			continue
		}
		if seg.Len() > math.MaxUint16 {
			r.log.Warnw("entity state too large for one segment", "id", id, "kind", e.Kind(), "bytes", seg.Len())
			consumed++
			continue
		}
		if r.maxPayload > 0 && len(updated) > 0 && payload.Len()+2+seg.Len() > r.maxPayload {
			break
		}
		payload.WriteBytesAndSize(seg.Bytes())
		updated = append(updated, id)
		delete(r.dirty, id)
		consumed++
	}

	for _, id := range r.queued[:consumed] {
		delete(r.queuedSet, id)
	}
	rest := r.queued[consumed:]
	if len(rest) > 0 {
		r.stats.Deferred += int64(len(rest))
	}
	r.queued = append(r.queued[:0], rest...)

	if len(updated) == 0 {
		return nil
	}
	return &wire.SyncPacket{
		Seq:            r.NextSequenceID(),
		Timestamp:      float64(r.now().UnixNano()) / 1e9,
		UpdatedIDs:     updated,
		Payload:        payload.Bytes(),
		ChecksummedIDs: checksummed,
		Checksums:      checksums,
	}
}
