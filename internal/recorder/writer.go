package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/event"
)

var (
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
)

// Writer journals dispatched events to segment files from a buffered
// queue. It implements event.Listener, so registering it with an engine
// is all the wiring it needs.
type Writer struct {
	cfg   Config
	ch    chan event.Event
	wg    sync.WaitGroup
	err   atomic.Value
	store *Store

	started uint32
	closed  uint32
}

// NewWriter creates a journal writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan event.Event, cfg.QueueSize),
	}, nil
}

// WithStore mirrors journaled events into a Postgres store as well.
func (w *Writer) WithStore(store *Store) *Writer {
	w.store = store
	return w
}

// Name implements event.Listener.
func (w *Writer) Name() string { return "event_recorder" }

// Kinds implements event.Listener. An empty Kinds config records everything.
func (w *Writer) Kinds() []event.Kind {
	if len(w.cfg.Kinds) != 0 {
		return w.cfg.Kinds
	}
	all := make([]event.Kind, 0, 8)
	for k := event.Kind(1); k.IsAvailable(); k++ {
		all = append(all, k)
	}
	return all
}

// OnEvent implements event.Listener. Never blocks the dispatch loop;
// a full queue drops the record.
func (w *Writer) OnEvent(e event.Event) {
	if atomic.LoadUint32(&w.closed) != 0 {
		return
	}
	select {
	case w.ch <- e:
	default:
		logs.Warnf("event recorder queue full, dropping %s event", e.Kind)
	}
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop closes the queue and waits for the loop to drain it.
func (w *Writer) Stop() error {
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if !atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		return ErrClosed
	}
	close(w.ch)
	w.wg.Wait()
	return w.Err()
}

// Err returns the first write error the loop encountered, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()

	var seg *segment
	defer func() {
		if seg != nil {
			if err := seg.close(); err != nil {
				w.fail(err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.ch:
			if !ok {
				return
			}
			if seg == nil || seg.size >= w.cfg.SegmentMaxBytes {
				next, err := w.rotate(seg)
				if err != nil {
					w.fail(err)
					return
				}
				seg = next
			}
			if err := seg.append(e); err != nil {
				w.fail(err)
				return
			}
			if w.store != nil {
				if err := w.store.Save(ctx, e); err != nil {
					logs.Errorf("event recorder store save failed: %v", err)
				}
			}
		}
	}
}

func (w *Writer) rotate(prev *segment) (*segment, error) {
	if prev != nil {
		if err := prev.close(); err != nil {
			return nil, err
		}
	}
	path := filepath.Join(w.cfg.Dir, fmt.Sprintf("%s-%020d.evj", w.cfg.FilePrefix, time.Now().UnixNano()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &segment{
		f: f,
		w: bufio.NewWriterSize(f, w.cfg.BufferSize),
	}, nil
}

func (w *Writer) fail(err error) {
	if err == nil {
		return
	}
	if w.err.Load() == nil {
		w.err.Store(err)
	}
	logs.Errorf("event recorder writer failed: %v", err)
}

type segment struct {
	f    *os.File
	w    *bufio.Writer
	size int64
}

func (s *segment) append(e event.Event) error {
	body, err := encodeBody(e)
	if err != nil {
		return err
	}

	var header [recordHeaderSize]byte
	encodeHeader(header[:], len(body))

	var crcBuf [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(crcBuf[:], checksum(header[:], body))

	if _, err := s.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := s.w.Write(body); err != nil {
		return err
	}
	if _, err := s.w.Write(crcBuf[:]); err != nil {
		return err
	}
	s.size += int64(recordHeaderSize + len(body) + recordChecksumSize)
	return nil
}

func (s *segment) close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
