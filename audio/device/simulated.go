// Package device provides audio devices for the recording session
package device

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"pratham-chat/backend/audio/session"

	"github.com/google/uuid"
)

var (
	ErrRecorderBusy = errors.New("device: recorder already running")
	ErrPlayerBusy   = errors.New("device: player already running")
	ErrNotPlaying   = errors.New("device: player not running")
)

// Simulated is a clock-driven AudioIO. It captures nothing; recording and
// playback positions advance with wall time and are reported every tick.
type Simulated struct {
	dir  string
	tick time.Duration

	mu       sync.Mutex
	recorder *stream
	player   *stream
}

type stream struct {
	cancel  context.CancelFunc
	uri     string
	started time.Time
	offset  int64
}

func (s *stream) position(now time.Time) int64 {
	return s.offset + now.Sub(s.started).Milliseconds()
}

// NewSimulated creates a device whose recordings live under dir
func NewSimulated(dir string, tick time.Duration) *Simulated {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Simulated{dir: dir, tick: tick}
}

var _ session.AudioIO = (*Simulated)(nil)

func (d *Simulated) StartRecorder(_ context.Context, onPosition session.PositionFunc) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recorder != nil {
		return "", ErrRecorderBusy
	}

	path, err := filepath.Abs(filepath.Join(d.dir, uuid.New().String()+".m4a"))
	if err != nil {
		return "", err
	}
	st := &stream{uri: fmt.Sprintf("file://%s", filepath.ToSlash(path)), started: time.Now()}
	d.recorder = st
	d.run(st, onPosition)
	return st.uri, nil
}

func (d *Simulated) StopRecorder(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recorder == nil {
		return "", nil
	}
	st := d.recorder
	d.recorder = nil
	st.cancel()
	return st.uri, nil
}

func (d *Simulated) StartPlayer(_ context.Context, uri string, offsetMs int64, onPosition session.PositionFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player != nil {
		return ErrPlayerBusy
	}
	st := &stream{uri: uri, started: time.Now(), offset: offsetMs}
	d.player = st
	d.run(st, onPosition)
	return nil
}

func (d *Simulated) SeekPlayer(_ context.Context, offsetMs int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player == nil {
		return ErrNotPlaying
	}
	d.player.offset = offsetMs
	d.player.started = time.Now()
	return nil
}

func (d *Simulated) StopPlayer(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player != nil {
		d.player.cancel()
		d.player = nil
	}
	return nil
}

// run starts the tick loop of st; must be called with d.mu held
func (d *Simulated) run(st *stream, onPosition session.PositionFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel

	go func() {
		ticker := time.NewTicker(d.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				d.mu.Lock()
				pos := st.position(now)
				d.mu.Unlock()

				if ctx.Err() != nil {
					return
				}
				onPosition(pos)
			}
		}
	}()
}
