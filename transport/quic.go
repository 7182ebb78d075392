package transport

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"syncarena/wire"
)

// ALPN 协议名
const quicProto = "syncarena"

const maxStreamFrame = 1 << 20

// QUIC：可靠通道走一条双向流（uint32 长度前缀 + 通道号 + 数据包），
// 不可靠通道走数据报（通道号 + 数据包）。超出数据报上限的帧改走流。
func quicConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,
		KeepAlivePeriod: 20 * time.Second,
		MaxIdleTimeout:  60 * time.Second,
	}
}

// SelfSignedTLS 生成仅用于开发的自签名证书
func SelfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{quicProto},
	}, nil
}

type quicPeer struct {
	conn   quic.Connection
	stream quic.Stream
	q      *queue
	log    *zap.SugaredLogger
}

func newQUICPeer(conn quic.Connection, stream quic.Stream, log *zap.SugaredLogger) *quicPeer {
	return &quicPeer{conn: conn, stream: stream, q: newQueue(), log: log}
}

func (p *quicPeer) enqueue(ch wire.Channel, frame []byte) error {
	return p.q.push(ch, frame)
}

func (p *quicPeer) close() error {
	p.q.shut()
	return p.conn.CloseWithError(0, "closed")
}

func writeStreamFrame(w io.Writer, ch wire.Channel, frame []byte) error {
	buf := make([]byte, 5+len(frame))
	binary.LittleEndian.PutUint32(buf, uint32(1+len(frame)))
	buf[4] = byte(ch)
	copy(buf[5:], frame)
	_, err := w.Write(buf)
	return err
}

// readStreamFrame 长度为 0 的帧是握手帧，返回 nil 数据
func readStreamFrame(r io.Reader) (wire.Channel, []byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n == 0 {
		return 0, nil, nil
	}
	if n > maxStreamFrame {
		return 0, nil, fmt.Errorf("stream frame of %d bytes: %w", n, wire.ErrTooLong)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return decodeFrame(body)
}

func (p *quicPeer) writePump() {
	defer p.stream.Close()
	for msg := range p.q.ch {
		if !msg.ch.Reliable() {
			err := p.conn.SendDatagram(encodeFrame(msg.ch, msg.frame))
			var tooLarge *quic.DatagramTooLargeError
			if err == nil {
				continue
			}
			if !errors.As(err, &tooLarge) {
				p.log.Debugw("send datagram", "err", err)
				continue
			}
		}
		_ = p.stream.SetWriteDeadline(time.Now().Add(writeWait))
		if err := writeStreamFrame(p.stream, msg.ch, msg.frame); err != nil {
			p.log.Debugw("write stream", "err", err)
			return
		}
	}
}

// pumps 读流与数据报，任一结束即返回
func (p *quicPeer) pumps(ctx context.Context, deliver func(wire.Channel, []byte)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			msg, err := p.conn.ReceiveDatagram(ctx)
			if err != nil {
				return
			}
			ch, frame, err := decodeFrame(msg)
			if err != nil {
				continue
			}
			deliver(ch, frame)
		}
	}()

	go func() {
		defer cancel()
		r := bufio.NewReader(p.stream)
		for {
			ch, frame, err := readStreamFrame(r)
			if err != nil {
				return
			}
			if frame == nil {
				continue
			}
			deliver(ch, frame)
		}
	}()

	<-ctx.Done()
}

// QUICServer 监听 UDP
type QUICServer struct {
	*hub
	listener *quic.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

// ListenQUIC 监听 addr；tlsConf 为 nil 时使用自签名证书
func ListenQUIC(addr string, tlsConf *tls.Config, log *zap.SugaredLogger) (*QUICServer, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if tlsConf == nil {
		var err error
		if tlsConf, err = SelfSignedTLS(); err != nil {
			return nil, err
		}
	}
	listener, err := quic.ListenAddr(addr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("listen quic %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &QUICServer{hub: newHub(log.Named("quic")), listener: listener, ctx: ctx, cancel: cancel}
	go s.acceptConnections()
	return s, nil
}

func (s *QUICServer) Addr() string { return s.listener.Addr().String() }

func (s *QUICServer) acceptConnections() {
	for {
		conn, err := s.listener.Accept(s.ctx)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warnw("failed accepting connection", "err", err)
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

func (s *QUICServer) handleConnection(conn quic.Connection) {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	stream, err := conn.AcceptStream(ctx)
	cancel()
	if err != nil {
		_ = conn.CloseWithError(0x0a, "no control stream")
		return
	}
	p := newQUICPeer(conn, stream, s.log)
	id, err := s.add(p, conn.RemoteAddr().String())
	if err != nil {
		_ = conn.CloseWithError(0, "shutting down")
		return
	}
	go p.writePump()
	defer s.remove(id)
	p.pumps(s.ctx, func(ch wire.Channel, frame []byte) { s.deliver(id, ch, frame) })
}

func (s *QUICServer) Close() error {
	s.cancel()
	err := s.shutdown()
	if lerr := s.listener.Close(); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("close listener: %w", lerr))
	}
	return err
}

// QUICConn 客户端连接
type QUICConn struct {
	p      *quicPeer
	ev     *events
	cancel context.CancelFunc
}

// DialQUIC 连接服务端；自签名证书不做校验
func DialQUIC(ctx context.Context, addr string, log *zap.SugaredLogger) (*QUICConn, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{quicProto}}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("dial quic %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	// 流在首次写入前对端不可见
	if _, err := stream.Write(make([]byte, 4)); err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, fmt.Errorf("handshake: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	c := &QUICConn{p: newQUICPeer(conn, stream, log.Named("quic")), ev: newEvents(), cancel: cancel}
	go c.p.writePump()
	go func() {
		c.p.pumps(pumpCtx, func(ch wire.Channel, frame []byte) {
			c.ev.emit(Event{Kind: EventMessage, Conn: wire.NoConn, Channel: ch, Data: frame})
		})
		c.ev.post(Event{Kind: EventDisconnect, Conn: wire.NoConn})
	}()
	return c, nil
}

func (c *QUICConn) Events() <-chan Event { return c.ev.ch }

func (c *QUICConn) Send(ch wire.Channel, frame []byte) error {
	if c.ev.stopped() {
		return ErrClosed
	}
	return c.p.enqueue(ch, frame)
}

func (c *QUICConn) Close() error {
	c.ev.stop()
	c.cancel()
	return c.p.close()
}
