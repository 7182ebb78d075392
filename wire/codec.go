package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortRead 读取越过缓冲区末尾
	ErrShortRead = errors.New("wire: short read")
	// ErrTooLong 长度前缀放不下的数组或字符串
	ErrTooLong = errors.New("wire: value too long for length prefix")
	// ErrPlaneMismatch 列式整数数组的四个字节平面长度不一致
	ErrPlaneMismatch = errors.New("wire: int array planes differ in length")
)

// Writer 小端定长编码器。错误是粘滞的：第一次失败后后续写入全部忽略
type Writer struct {
	buf []byte
	err error
}

func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 64)} }

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }
func (w *Writer) Err() error    { return w.err }

func (w *Writer) WriteUint8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
		return
	}
	w.WriteUint8(0)
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

func (w *Writer) WriteFloat64(v float64) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) WriteVec3(v Vec3) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
}

// WriteBytesAndSize uint16 长度前缀 + 原始字节
func (w *Writer) WriteBytesAndSize(b []byte) {
	if w.err != nil {
		return
	}
	if len(b) > math.MaxUint16 {
		w.err = ErrTooLong
		return
	}
	w.WriteUint16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteBlob uint32 长度前缀，用于可能超过 64KB 的载荷
func (w *Writer) WriteBlob(b []byte) {
	if w.err != nil {
		return
	}
	if uint64(len(b)) > math.MaxUint32 {
		w.err = ErrTooLong
		return
	}
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteString(s string) { w.WriteBytesAndSize([]byte(s)) }

// WriteInts 以四个字节平面写出整数数组，见 SplitInts
func (w *Writer) WriteInts(v []int32) {
	planes := SplitInts(v)
	for i := range planes {
		w.WriteBytesAndSize(planes[i])
	}
}

// Reader 与 Writer 对称的解码器，同样使用粘滞错误
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Err() error     { return r.err }
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = ErrShortRead
		r.off = len(r.buf)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadUint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadBool() bool { return r.ReadUint8() != 0 }

func (r *Reader) ReadUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadInt16() int16 { return int16(r.ReadUint16()) }

func (r *Reader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadInt32() int32 { return int32(r.ReadUint32()) }

func (r *Reader) ReadFloat32() float32 { return math.Float32frombits(r.ReadUint32()) }

func (r *Reader) ReadFloat64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *Reader) ReadVec3() Vec3 {
	return Vec3{X: r.ReadFloat32(), Y: r.ReadFloat32(), Z: r.ReadFloat32()}
}

// ReadBytesAndSize 返回的切片是底层缓冲区的拷贝
func (r *Reader) ReadBytesAndSize() []byte {
	n := int(r.ReadUint16())
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *Reader) ReadBlob() []byte {
	n := r.ReadUint32()
	if uint64(n) > uint64(r.Remaining()) {
		r.take(r.Remaining() + 1)
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *Reader) ReadString() string { return string(r.ReadBytesAndSize()) }

// ReadInts 读取四个字节平面并重组整数数组
func (r *Reader) ReadInts() []int32 {
	var planes [4][]byte
	for i := range planes {
		planes[i] = r.ReadBytesAndSize()
	}
	if r.err != nil {
		return nil
	}
	v, err := JoinInts(planes)
	if err != nil {
		r.err = err
		return nil
	}
	return v
}
