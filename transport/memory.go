package transport

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"syncarena/wire"
)

// MemoryServer 进程内传输，用于测试与单机演示。
// 帧直接投递到对端事件流，不经过序列化之外的任何网络层。
type MemoryServer struct {
	*hub
}

// NewMemoryServer 构造进程内传输
func NewMemoryServer(log *zap.SugaredLogger) *MemoryServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MemoryServer{hub: newHub(log.Named("mem"))}
}

func (s *MemoryServer) Close() error { return s.shutdown() }

// Dial 建立一条新连接
func (s *MemoryServer) Dial() (*MemoryConn, error) {
	c := &MemoryConn{srv: s, ev: newEvents()}
	id, err := s.add(&memPeer{c: c}, "memory")
	if err != nil {
		return nil, err
	}
	c.id = id
	return c, nil
}

type memPeer struct {
	c *MemoryConn
}

func (p *memPeer) enqueue(ch wire.Channel, frame []byte) error {
	if p.c.ev.stopped() {
		return ErrClosed
	}
	data := append([]byte(nil), frame...)
	if !p.c.ev.emit(Event{Kind: EventMessage, Conn: wire.NoConn, Channel: ch, Data: data}) && ch.Reliable() {
		return ErrQueueFull
	}
	return nil
}

func (p *memPeer) close() error {
	if p.c.closed.CompareAndSwap(false, true) {
		p.c.ev.post(Event{Kind: EventDisconnect, Conn: wire.NoConn})
	}
	return nil
}

// MemoryConn MemoryServer 的客户端一侧
type MemoryConn struct {
	srv    *MemoryServer
	id     wire.ConnID
	ev     *events
	closed atomic.Bool
}

// ID 服务端分配的连接号
func (c *MemoryConn) ID() wire.ConnID { return c.id }

func (c *MemoryConn) Events() <-chan Event { return c.ev.ch }

func (c *MemoryConn) Send(ch wire.Channel, frame []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.srv.ev.stopped() {
		return fmt.Errorf("send: server %w", ErrClosed)
	}
	c.srv.deliver(c.id, ch, append([]byte(nil), frame...))
	return nil
}

func (c *MemoryConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.ev.stop()
		c.srv.remove(c.id)
	}
	return nil
}
