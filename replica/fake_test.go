package replica

import "syncarena/wire"

type fakeEntity struct {
	Base
	kind     Kind
	policy   Policy
	value    int32
	pos      wire.Vec3
	checksum int32
}

func newFake(kind Kind, policy Policy) *fakeEntity {
	return &fakeEntity{kind: kind, policy: policy}
}

func (f *fakeEntity) Kind() Kind          { return f.kind }
func (f *fakeEntity) Policy() Policy      { return f.policy }
func (f *fakeEntity) Position() wire.Vec3 { return f.pos }
func (f *fakeEntity) Checksum() int32     { return f.checksum }

func (f *fakeEntity) Serialize(w *wire.Writer) { w.WriteInt32(f.value) }

func (f *fakeEntity) Deserialize(r *wire.Reader) error {
	f.value = r.ReadInt32()
	return r.Err()
}

type recordingBroadcaster struct {
	packets []*wire.SyncPacket
}

func (b *recordingBroadcaster) Broadcast(ch wire.Channel, p wire.Packet) {
	if sp, ok := p.(*wire.SyncPacket); ok && ch == wire.Unreliable {
		b.packets = append(b.packets, sp)
	}
}

func (b *recordingBroadcaster) last() *wire.SyncPacket {
	if len(b.packets) == 0 {
		return nil
	}
	return b.packets[len(b.packets)-1]
}

type sentPacket struct {
	ch  wire.Channel
	pkt wire.Packet
}

type recordingSender struct {
	sent []sentPacket
}

func (s *recordingSender) Send(ch wire.Channel, p wire.Packet) {
	s.sent = append(s.sent, sentPacket{ch: ch, pkt: p})
}
