package bufferutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrTrailingBytes is returned by End when a decoded value does not consume
// its whole input.
var ErrTrailingBytes = errors.New("unexpected trailing bytes")

// maxSliceLen caps length prefixes so a corrupted offer cannot force a huge
// allocation before decoding fails.
const maxSliceLen = 1 << 24

// Deserializer reads back values written by Serializer.
type Deserializer struct {
	reader *bytes.Reader
}

func NewDeserializer(b []byte) *Deserializer {
	return &Deserializer{reader: bytes.NewReader(b)}
}

func (d *Deserializer) ReadUint8() (uint8, error) {
	return d.reader.ReadByte()
}

func (d *Deserializer) ReadUint16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.reader, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Deserializer) ReadUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.reader, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (d *Deserializer) ReadUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.reader, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ReadBytes reads exactly n raw bytes.
func (d *Deserializer) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(d.reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadSlice reads a uint32 length prefix followed by that many bytes.
func (d *Deserializer) ReadSlice() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxSliceLen {
		return nil, errors.New("slice length prefix out of range")
	}
	return d.ReadBytes(int(n))
}

func (d *Deserializer) ReadBool() (bool, error) {
	b, err := d.reader.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, errors.New("invalid bool byte")
	}
}

// End verifies the input was fully consumed.
func (d *Deserializer) End() error {
	if d.reader.Len() > 0 {
		return ErrTrailingBytes
	}
	return nil
}
