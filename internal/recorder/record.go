package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"time"

	"github.com/bytedance/sonic"

	"main/internal/event"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 12
	recordChecksumSize        = 4
)

var (
	recordMagic = [4]byte{'E', 'V', 'J', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic         = errors.New("journal invalid magic")
	ErrUnsupportedRecordVer = errors.New("journal unsupported record version")
	ErrInvalidRecordHeader  = errors.New("journal invalid record header")
	ErrInvalidRecordKind    = errors.New("journal invalid record kind")
)

var codec = sonic.ConfigFastest

// record is the serialized form of one journaled event.
type record struct {
	Kind      uint8          `json:"kind"`
	Origin    string         `json:"origin,omitempty"`
	CreatedAt int64          `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

func encodeBody(e event.Event) ([]byte, error) {
	return codec.Marshal(record{
		Kind:      uint8(e.Kind),
		Origin:    e.Origin,
		CreatedAt: e.CreatedAt.UnixNano(),
		Payload:   e.Payload,
	})
}

func decodeBody(body []byte) (event.Event, error) {
	var r record
	if err := codec.Unmarshal(body, &r); err != nil {
		return event.Event{}, err
	}
	kind := event.Kind(r.Kind)
	if !kind.IsAvailable() {
		return event.Event{}, ErrInvalidRecordKind
	}
	return event.Event{
		Kind:      kind,
		Payload:   r.Payload,
		CreatedAt: time.Unix(0, r.CreatedAt),
		Origin:    r.Origin,
	}, nil
}

// encodeHeader lays out [magic 4][version 2][headerSize 2][bodyLen 4].
func encodeHeader(dst []byte, bodyLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(bodyLen))
}

func decodeHeader(src []byte) (uint32, error) {
	if len(src) < recordHeaderSize {
		return 0, ErrInvalidRecordHeader
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return 0, ErrUnsupportedRecordVer
	}
	if headerSize := binary.LittleEndian.Uint16(src[6:8]); headerSize != recordHeaderSize {
		return 0, ErrInvalidRecordHeader
	}
	return binary.LittleEndian.Uint32(src[8:12]), nil
}

func checksum(header []byte, body []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, body)
}
