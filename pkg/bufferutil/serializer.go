package bufferutil

import (
	"bytes"
	"encoding/binary"
)

// Serializer accumulates the canonical big-endian binary encoding used for
// coins, spend bundles and offer payloads. The encoding must be byte-stable:
// nonces and trade ids are hashes of serialized values.
type Serializer struct {
	buffer *bytes.Buffer
}

func NewSerializer() *Serializer {
	return &Serializer{buffer: new(bytes.Buffer)}
}

func (s *Serializer) Bytes() []byte {
	return s.buffer.Bytes()
}

func (s *Serializer) WriteUint8(v uint8) {
	s.buffer.WriteByte(v)
}

func (s *Serializer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buffer.Write(b[:])
}

func (s *Serializer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buffer.Write(b[:])
}

func (s *Serializer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	s.buffer.Write(b[:])
}

// WriteBytes writes raw bytes without a length prefix. Use for fixed-size
// fields only.
func (s *Serializer) WriteBytes(b []byte) {
	s.buffer.Write(b)
}

// WriteSlice writes a uint32 length prefix followed by the bytes.
func (s *Serializer) WriteSlice(b []byte) {
	s.WriteUint32(uint32(len(b)))
	s.buffer.Write(b)
}

// WriteBool writes a single 0x00/0x01 byte.
func (s *Serializer) WriteBool(v bool) {
	if v {
		s.buffer.WriteByte(0x01)
		return
	}
	s.buffer.WriteByte(0x00)
}
