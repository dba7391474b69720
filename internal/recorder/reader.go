package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"main/internal/event"
)

var (
	ErrChecksumMismatch = errors.New("journal checksum mismatch")
	ErrRecordTooLarge   = errors.New("journal record too large")
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxBodySize     int
}

// Reader decodes journaled events sequentially. Next returns io.EOF at
// the end of the stream.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	body      []byte
}

// NewReader wraps an io.Reader with journal decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next journaled event.
func (r *Reader) Next() (event.Event, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return event.Event{}, io.EOF
		}
		return event.Event{}, err
	}

	bodyLen, err := decodeHeader(r.headerBuf)
	if err != nil {
		return event.Event{}, err
	}
	if r.opts.MaxBodySize > 0 && bodyLen > uint32(r.opts.MaxBodySize) {
		return event.Event{}, ErrRecordTooLarge
	}

	if cap(r.body) < int(bodyLen) {
		r.body = make([]byte, bodyLen)
	}
	r.body = r.body[:bodyLen]
	if _, err := io.ReadFull(r.r, r.body); err != nil {
		return event.Event{}, err
	}

	var crcBuf [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, crcBuf[:]); err != nil {
		return event.Event{}, err
	}
	if !r.opts.DisableChecksum {
		expected := binary.LittleEndian.Uint32(crcBuf[:])
		if sum := checksum(r.headerBuf, r.body); sum != expected {
			return event.Event{}, ErrChecksumMismatch
		}
	}

	return decodeBody(r.body)
}
