package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"syncarena/wire"
)

const (
	writeWait    = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 1 << 20
)

// WebSocket 帧：首字节为通道号，其后为数据包。
// 所有通道共用一条 TCP 连接，不可靠通道仅体现为发送队列满时可丢弃。
func encodeFrame(ch wire.Channel, frame []byte) []byte {
	out := make([]byte, 1+len(frame))
	out[0] = byte(ch)
	copy(out[1:], frame)
	return out
}

func decodeFrame(msg []byte) (wire.Channel, []byte, error) {
	if len(msg) < 1 {
		return 0, nil, fmt.Errorf("empty frame: %w", wire.ErrShortRead)
	}
	ch := wire.Channel(msg[0])
	if ch > wire.Unreliable {
		return 0, nil, fmt.Errorf("unknown channel %d", msg[0])
	}
	return ch, msg[1:], nil
}

type wsPeer struct {
	ws *websocket.Conn
	q  *queue
}

func newWSPeer(ws *websocket.Conn) *wsPeer {
	return &wsPeer{ws: ws, q: newQueue()}
}

func (p *wsPeer) enqueue(ch wire.Channel, frame []byte) error {
	return p.q.push(ch, encodeFrame(ch, frame))
}

func (p *wsPeer) close() error {
	p.q.shut()
	return p.ws.Close()
}

// writePump 独立协程，负责从发送队列写出到 WS，并定期 ping
func (p *wsPeer) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-p.q.ch:
			if !ok {
				_ = p.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.BinaryMessage, msg.frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump 读取帧并交给 deliver；返回时连接已不可用
func (p *wsPeer) readPump(log *zap.SugaredLogger, deliver func(wire.Channel, []byte)) {
	p.ws.SetReadLimit(wsReadLimit)
	_ = p.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		kind, msg, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugw("websocket read", "err", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		ch, frame, err := decodeFrame(msg)
		if err != nil {
			log.Debugw("bad frame", "err", err)
			continue
		}
		deliver(ch, frame)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketServer 以 http.Handler 形式接入
type WebSocketServer struct {
	*hub
}

// NewWebSocketServer 构造服务端；挂到 HTTP 路由上即可接受连接
func NewWebSocketServer(log *zap.SugaredLogger) *WebSocketServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WebSocketServer{hub: newHub(log.Named("ws"))}
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	p := newWSPeer(ws)
	id, err := s.add(p, r.RemoteAddr)
	if err != nil {
		_ = ws.Close()
		return
	}
	go p.writePump()
	go func() {
		defer s.remove(id)
		p.readPump(s.log, func(ch wire.Channel, frame []byte) { s.deliver(id, ch, frame) })
	}()
}

func (s *WebSocketServer) Close() error { return s.shutdown() }

// WebSocketConn 客户端连接
type WebSocketConn struct {
	p   *wsPeer
	ev  *events
	log *zap.SugaredLogger
}

// DialWebSocket 连接 ws://addr/path
func DialWebSocket(ctx context.Context, url string, log *zap.SugaredLogger) (*WebSocketConn, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &WebSocketConn{p: newWSPeer(ws), ev: newEvents(), log: log.Named("ws")}
	go c.p.writePump()
	go func() {
		c.p.readPump(c.log, func(ch wire.Channel, frame []byte) {
			c.ev.emit(Event{Kind: EventMessage, Conn: wire.NoConn, Channel: ch, Data: frame})
		})
		c.ev.post(Event{Kind: EventDisconnect, Conn: wire.NoConn})
	}()
	return c, nil
}

func (c *WebSocketConn) Events() <-chan Event { return c.ev.ch }

func (c *WebSocketConn) Send(ch wire.Channel, frame []byte) error {
	if c.ev.stopped() {
		return ErrClosed
	}
	return c.p.enqueue(ch, frame)
}

func (c *WebSocketConn) Close() error {
	c.ev.stop()
	return c.p.close()
}
