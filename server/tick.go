package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"syncarena/transport"
)

// frameInterval 主循环轮询间隔，需小于 Tick 间隔以免累加器漏拍
const frameInterval = 10 * time.Millisecond

// Run 单协程主循环：消费传输事件、执行管理请求、推进调度器。
// ctx 取消后关闭传输并返回。
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	last := h.now()
	h.Advance(0)
	for {
		select {
		case <-ctx.Done():
			return h.Shutdown()
		case ev, ok := <-h.net.Events():
			if !ok {
				return h.Shutdown()
			}
			h.HandleEvent(ev)
		case fn := <-h.control:
			fn(h)
		case <-ticker.C:
			now := h.now()
			h.Advance(now.Sub(last))
			last = now
		}
	}
}

// Advance 推进固定步长调度器，返回执行的 Tick 数
func (h *Host) Advance(elapsed time.Duration) int {
	return h.scheduler.Advance(elapsed)
}

// PerformTick 实现 replica.Tickable：推进角色运动后交给复制器
func (h *Host) PerformTick(tick int32) {
	start := time.Now()
	dt := float32(h.scheduler.Interval().Seconds())
	for _, p := range h.players {
		p.Character.Step(dt)
	}
	h.replicator.PerformTick(tick)
	h.metrics.AddTick(time.Since(start).Nanoseconds(), h.replicator.Stats())
}

// HandleEvent 分发一个传输事件
func (h *Host) HandleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		h.join(ev.Conn)
	case transport.EventDisconnect:
		h.leave(ev.Conn)
	case transport.EventMessage:
		h.dispatch(ev.Conn, ev.Data)
	}
}

// Do 在主循环协程中执行 fn 并等待完成
func (h *Host) Do(ctx context.Context, fn func(*Host)) error {
	done := make(chan struct{})
	wrapped := func(h *Host) {
		defer close(done)
		fn(h)
	}
	select {
	case h.control <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown 断开所有玩家并关闭传输
func (h *Host) Shutdown() error {
	var err error
	for conn := range h.players {
		if e := h.net.Disconnect(conn); e != nil && !errors.Is(e, transport.ErrUnknownConn) {
			err = multierr.Append(err, e)
		}
	}
	err = multierr.Append(err, h.net.Close())
	h.log.Infow("server stopped", "players", len(h.players), "ticks", h.scheduler.Tick())
	return err
}
