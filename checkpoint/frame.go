package checkpoint

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// Frame layout (little endian):
//
//	magic       [4]byte "CKPT"
//	version     uint16
//	compression uint8
//	level       uint8
//	crc32c      uint32 of the payload as stored
//	length      uint64 of the payload as stored
//	payload     [length]byte
const (
	frameMagic      = "CKPT"
	frameVersion    = 1
	frameHeaderSize = 4 + 2 + 1 + 1 + 4 + 8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Header describes a stored checkpoint frame.
type Header struct {
	Version     uint16
	Compression Compression
	Level       uint8
	CRC         uint32
	Length      uint64
}

func (h Header) marshal() []byte {
	b := make([]byte, 0, frameHeaderSize)
	b = append(b, frameMagic...)
	b = binary.LittleEndian.AppendUint16(b, h.Version)
	b = append(b, byte(h.Compression), h.Level)
	b = binary.LittleEndian.AppendUint32(b, h.CRC)
	b = binary.LittleEndian.AppendUint64(b, h.Length)

	return b
}

func readFrameHeader(r io.Reader) (Header, error) {
	var b [frameHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, invalidFrame("read header: %v", err)
	}

	if string(b[:4]) != frameMagic {
		return Header{}, invalidFrame("bad magic %q", b[:4])
	}

	h := Header{
		Version:     binary.LittleEndian.Uint16(b[4:6]),
		Compression: Compression(b[6]),
		Level:       b[7],
		CRC:         binary.LittleEndian.Uint32(b[8:12]),
		Length:      binary.LittleEndian.Uint64(b[12:20]),
	}

	if h.Version != frameVersion {
		return Header{}, invalidFrame("unsupported version %d", h.Version)
	}

	if !h.Compression.valid() {
		return Header{}, invalidFrame("unknown %s", h.Compression)
	}

	return h, nil
}

func checksum(payload []byte) uint32 {
	return crc32.Checksum(payload, castagnoli)
}

func (h Header) verify(payload []byte) error {
	if uint64(len(payload)) != h.Length {
		return invalidFrame("payload is %d bytes, header declares %d", len(payload), h.Length)
	}

	if checksum(payload) != h.CRC {
		return ErrChecksum
	}

	return nil
}
