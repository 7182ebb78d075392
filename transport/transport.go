package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"syncarena/wire"
)

var (
	ErrClosed      = errors.New("transport: closed")
	ErrUnknownConn = errors.New("transport: unknown connection")
	ErrQueueFull   = errors.New("transport: send queue full")
)

// EventKind 传输层事件
type EventKind uint8

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventMessage:
		return "message"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event 由网络协程产生、宿主循环在单一协程中消费
type Event struct {
	Kind    EventKind
	Conn    wire.ConnID
	Channel wire.Channel
	Data    []byte
}

// Server 服务端传输：多个连接复用一个事件流
type Server interface {
	Events() <-chan Event
	Send(conn wire.ConnID, ch wire.Channel, frame []byte) error
	Disconnect(conn wire.ConnID) error
	Close() error
}

// Conn 客户端到服务端的单个连接。事件流上 Conn 恒为 wire.NoConn。
type Conn interface {
	Events() <-chan Event
	Send(ch wire.Channel, frame []byte) error
	Close() error
}

const (
	eventBuffer = 1024
	sendBuffer  = 256
)

// peer 一条底层连接的发送端
type peer interface {
	enqueue(ch wire.Channel, frame []byte) error
	close() error
}

// events 事件流：关闭后不再投递；不可靠消息在缓冲满时丢弃
type events struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func newEvents() *events {
	return &events{ch: make(chan Event, eventBuffer), done: make(chan struct{})}
}

func (e *events) emit(ev Event) bool {
	if ev.Kind == EventMessage && !ev.Channel.Reliable() {
		select {
		case e.ch <- ev:
			return true
		case <-e.done:
			return false
		default:
			return false
		}
	}
	select {
	case e.ch <- ev:
		return true
	case <-e.done:
		return false
	}
}

// post 不阻塞调用方：缓冲满时转入后台投递
func (e *events) post(ev Event) {
	select {
	case e.ch <- ev:
	default:
		go e.emit(ev)
	}
}

func (e *events) stop() { e.once.Do(func() { close(e.done) }) }

func (e *events) stopped() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

type peerEntry struct {
	p     peer
	trace uuid.UUID
}

// hub 服务端连接表，由各具体传输共用
type hub struct {
	log *zap.SugaredLogger
	ev  *events

	mu    deadlock.RWMutex
	peers map[wire.ConnID]peerEntry
	next  wire.ConnID
}

func newHub(log *zap.SugaredLogger) *hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &hub{log: log, ev: newEvents(), peers: make(map[wire.ConnID]peerEntry)}
}

func (h *hub) Events() <-chan Event { return h.ev.ch }

// add 注册新连接并投递 Connect；hub 已关闭时返回 ErrClosed
func (h *hub) add(p peer, remote string) (wire.ConnID, error) {
	if h.ev.stopped() {
		return wire.NoConn, ErrClosed
	}
	h.mu.Lock()
	id := h.next
	h.next++
	trace := uuid.New()
	h.peers[id] = peerEntry{p: p, trace: trace}
	h.mu.Unlock()

	h.log.Infow("connection opened", "conn", id, "remote", remote, "trace", trace)
	h.ev.emit(Event{Kind: EventConnect, Conn: id})
	return id, nil
}

// remove 注销连接并投递 Disconnect，重复调用无效
func (h *hub) remove(id wire.ConnID) {
	h.mu.Lock()
	entry, ok := h.peers[id]
	delete(h.peers, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := entry.p.close(); err != nil {
		h.log.Debugw("close connection", "conn", id, "err", err)
	}
	h.log.Infow("connection closed", "conn", id, "trace", entry.trace)
	h.ev.post(Event{Kind: EventDisconnect, Conn: id})
}

func (h *hub) deliver(id wire.ConnID, ch wire.Channel, data []byte) {
	if !h.ev.emit(Event{Kind: EventMessage, Conn: id, Channel: ch, Data: data}) && !h.ev.stopped() {
		h.log.Debugw("inbound message dropped", "conn", id, "channel", ch)
	}
}

func (h *hub) Send(id wire.ConnID, ch wire.Channel, frame []byte) error {
	if h.ev.stopped() {
		return ErrClosed
	}
	h.mu.RLock()
	entry, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send to %d: %w", id, ErrUnknownConn)
	}
	err := entry.p.enqueue(ch, frame)
	if errors.Is(err, ErrQueueFull) && ch.Reliable() {
		// 可靠通道不能丢包，积压的连接直接断开
		h.log.Warnw("reliable queue full, dropping connection", "conn", id)
		go h.remove(id)
	}
	return err
}

func (h *hub) Disconnect(id wire.ConnID) error {
	h.mu.RLock()
	_, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("disconnect %d: %w", id, ErrUnknownConn)
	}
	h.remove(id)
	return nil
}

// Conns 当前连接（无序）
func (h *hub) Conns() []wire.ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]wire.ConnID, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	return ids
}

// shutdown 关闭所有连接并停止事件流
func (h *hub) shutdown() error {
	h.ev.stop()
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[wire.ConnID]peerEntry)
	h.mu.Unlock()

	var err error
	for id, entry := range peers {
		if cerr := entry.p.close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %d: %w", id, cerr))
		}
	}
	return err
}

// queue 带缓冲的发送队列：不可靠帧满则丢弃，可靠帧满则报 ErrQueueFull
type queue struct {
	ch     chan outbound
	mu     deadlock.Mutex
	closed bool
}

type outbound struct {
	ch    wire.Channel
	frame []byte
}

func newQueue() *queue { return &queue{ch: make(chan outbound, sendBuffer)} }

func (q *queue) push(ch wire.Channel, frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- outbound{ch: ch, frame: frame}:
		return nil
	default:
		if ch.Reliable() {
			return ErrQueueFull
		}
		return nil
	}
}

// shut 关闭队列以结束写协程，可重复调用
func (q *queue) shut() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
