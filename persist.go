package celltrie

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/celltrie/cell"
	"github.com/hupe1980/celltrie/codec"
)

const (
	streamMagic   = "CTRI"
	streamVersion = 1

	// maxFieldLen bounds a single encoded owner or value.
	maxFieldLen = 64 << 20
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)

	return n, err
}

// WriteTo writes a read-only snapshot of m to w. The owners and values are
// encoded with the configured codec, whose name is recorded in the header.
func (m *Map[O, V]) WriteTo(w io.Writer) (int64, error) {
	ro := m.ReadOnlySnapshot()
	count := ro.Size()

	cw := &countingWriter{w: w}
	err := ro.encode(cw, count, m.IsReadOnly())
	m.logger.LogEncode(context.Background(), count, cw.n, err)

	return cw.n, err
}

func (m *Map[O, V]) encode(w io.Writer, count int, readOnly bool) error {
	bw := bufio.NewWriter(w)

	name := m.codec.Name()
	if len(name) > 255 {
		return fmt.Errorf("codec name %q too long", name)
	}

	hdr := make([]byte, 0, len(streamMagic)+2+1+len(name)+1+8)
	hdr = append(hdr, streamMagic...)
	hdr = binary.LittleEndian.AppendUint16(hdr, streamVersion)
	hdr = append(hdr, byte(len(name)))
	hdr = append(hdr, name...)
	hdr = append(hdr, boolByte(readOnly))
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(count))

	if _, err := bw.Write(hdr); err != nil {
		return err
	}

	var (
		buf     []byte
		written int
	)

	for k, v := range m.All() {
		owner, err := m.codec.Marshal(k.Owner())
		if err != nil {
			return fmt.Errorf("encode owner of %s: %w", k, err)
		}

		value, err := m.codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode value of %s: %w", k, err)
		}

		buf = binary.LittleEndian.AppendUint64(buf[:0], k.Address())
		buf = appendField(buf, owner)
		buf = appendField(buf, value)

		if _, err := bw.Write(buf); err != nil {
			return err
		}

		written++
	}

	if written != count {
		return fmt.Errorf("snapshot yielded %d entries, expected %d", written, count)
	}

	return bw.Flush()
}

func appendField(dst, field []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(field)))
	return append(dst, field...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

// Decode reads a map written by WriteTo. The codec is chosen by the name in
// the stream header; a codec passed with WithCodec is used if its name
// matches. A stream written from a read-only map decodes to a read-only map.
func Decode[O comparable, V any](r io.Reader, optFns ...Option) (*Map[O, V], error) {
	m := New[O, V](optFns...)

	count, readOnly, err := m.decode(bufio.NewReader(r))
	m.logger.LogDecode(context.Background(), count, err)

	if err != nil {
		return nil, err
	}

	if readOnly {
		return m.ReadOnlySnapshot(), nil
	}

	return m, nil
}

// StreamInfo describes the header of a persisted map.
type StreamInfo struct {
	Version  uint16
	Codec    string
	ReadOnly bool
	Count    uint64
}

// ReadStreamInfo reads the header of a stream written by WriteTo without
// decoding any entry.
func ReadStreamInfo(r io.Reader) (StreamInfo, error) {
	info, err := readHeader(bufio.NewReader(r))
	return info, corrupt(err)
}

func readHeader(br *bufio.Reader) (StreamInfo, error) {
	var magic [len(streamMagic)]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return StreamInfo{}, err
	}

	if string(magic[:]) != streamMagic {
		return StreamInfo{}, fmt.Errorf("bad magic %q", magic[:])
	}

	var fixed [3]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return StreamInfo{}, err
	}

	info := StreamInfo{Version: binary.LittleEndian.Uint16(fixed[:2])}
	if info.Version != streamVersion {
		return StreamInfo{}, fmt.Errorf("unsupported version %d", info.Version)
	}

	name := make([]byte, fixed[2])
	if _, err := io.ReadFull(br, name); err != nil {
		return StreamInfo{}, err
	}

	var tail [9]byte
	if _, err := io.ReadFull(br, tail[:]); err != nil {
		return StreamInfo{}, err
	}

	info.Codec = string(name)
	info.ReadOnly = tail[0] != 0
	info.Count = binary.LittleEndian.Uint64(tail[1:])

	return info, nil
}

func (m *Map[O, V]) decode(br *bufio.Reader) (int, bool, error) {
	info, err := readHeader(br)
	if err != nil {
		return 0, false, corrupt(err)
	}

	c, err := m.streamCodec(info.Codec)
	if err != nil {
		return 0, false, corrupt(err)
	}

	readOnly, count := info.ReadOnly, info.Count

	var addr [8]byte

	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, addr[:]); err != nil {
			return int(i), false, corrupt(err)
		}

		var owner O
		if err := readField(br, c, &owner); err != nil {
			return int(i), false, corrupt(fmt.Errorf("entry %d owner: %w", i, err))
		}

		var value V
		if err := readField(br, c, &value); err != nil {
			return int(i), false, corrupt(fmt.Errorf("entry %d value: %w", i, err))
		}

		k, err := cell.NewKey(binary.LittleEndian.Uint64(addr[:]), owner)
		if err != nil {
			return int(i), false, corrupt(err)
		}

		if _, _, err := m.Put(k, value); err != nil {
			return int(i), false, err
		}
	}

	m.codec = c

	return int(count), readOnly, nil
}

func (m *Map[O, V]) streamCodec(name string) (codec.Codec, error) {
	if m.codec.Name() == name {
		return m.codec, nil
	}

	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}

	return c, nil
}

func readField(br *bufio.Reader, c codec.Codec, v any) error {
	var n [4]byte
	if _, err := io.ReadFull(br, n[:]); err != nil {
		return err
	}

	size := binary.LittleEndian.Uint32(n[:])
	if size > maxFieldLen {
		return fmt.Errorf("field of %d bytes exceeds limit", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(br, data); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}

		return err
	}

	return c.Unmarshal(data, v)
}
