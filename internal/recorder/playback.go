package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"main/internal/event"
)

// PlaybackConfig controls journal playback behavior.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// Speed paces replay by recorded timestamps: 1 is real-time,
	// 0 disables pacing.
	Speed           float64
	DisableChecksum bool
	MaxBodySize     int
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid playback config: Dir is empty")
	}
	if c.Speed < 0 {
		return fmt.Errorf("invalid playback config: Speed must be >= 0")
	}
	return nil
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays journaled events in file order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run replays journaled events and calls the handler for each one.
func (p *Playback) Run(ctx context.Context, handler func(event.Event) error) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	files, err := p.collectFiles()
	if err != nil {
		return err
	}

	var prevTS int64
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prevTS); err != nil {
			return err
		}
	}
	return nil
}

// Replay re-injects journaled events into an event engine.
func (p *Playback) Replay(ctx context.Context, engine *event.Engine) error {
	if engine == nil {
		return errors.New("playback engine is nil")
	}
	return p.Run(ctx, func(e event.Event) error {
		engine.Put(e)
		return nil
	})
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(event.Event) error, prevTS *int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := NewReader(f, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxBodySize:     p.cfg.MaxBodySize,
	})
	for {
		e, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay %s: %w", path, err)
		}

		if p.cfg.Speed > 0 {
			ts := e.CreatedAt.UnixNano()
			if *prevTS != 0 && ts > *prevTS {
				gap := time.Duration(float64(ts-*prevTS) / p.cfg.Speed)
				if err := p.clock.Sleep(ctx, gap); err != nil {
					return err
				}
			}
			*prevTS = ts
		}

		if err := handler(e); err != nil {
			return err
		}
	}
}

func (p *Playback) collectFiles() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, p.cfg.FilePrefix+"-") || !strings.HasSuffix(name, ".evj") {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}
