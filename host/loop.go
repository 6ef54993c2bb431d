package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alphabill-org/wasm-framebuffer/engine"
	"github.com/alphabill-org/wasm-framebuffer/logger"
	"github.com/alphabill-org/wasm-framebuffer/memory"
)

const (
	DefaultFPS = 60
	// MaxDeltaTime caps the time step passed to the simulation, ie after
	// the process has been suspended the simulation doesn't jump ahead.
	MaxDeltaTime = 33 * time.Millisecond
)

var ErrLoopStopped = errors.New("frame loop is not running")

/*
Step produces one frame: advances the simulation by "dt" seconds and
renders. Called from the loop goroutine only.
*/
type Step func(ctx context.Context, e *engine.Engine, dt float32) error

type request struct {
	fn   func(e *engine.Engine) error
	done chan error
}

/*
Loop owns the engine: it drives the frame steps at fixed rate and serves
requests of other goroutines (REST API) between the frames, so that linear
memory is never accessed concurrently.
*/
type Loop struct {
	eng      *engine.Engine
	step     Step
	interval time.Duration
	frames   uint64 // stop after this many frames, zero means no limit
	log      *slog.Logger

	reqs    chan request
	stopped chan struct{}

	// state below is only accessed by the loop goroutine
	count    uint64
	paused   bool
	skipNext bool
}

func NewLoop(eng *engine.Engine, log *slog.Logger, opts ...LoopOption) (*Loop, error) {
	if eng == nil {
		return nil, errors.New("engine is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	l := &Loop{
		eng:      eng,
		step:     UpdateAndRender,
		interval: time.Second / DefaultFPS,
		log:      log,
		reqs:     make(chan request),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.interval <= 0 {
		return nil, fmt.Errorf("invalid frame interval %s", l.interval)
	}
	if l.step == nil {
		return nil, errors.New("frame step is nil")
	}
	return l, nil
}

type LoopOption func(*Loop)

// WithFPS sets the frame rate of the loop.
func WithFPS(fps float64) LoopOption {
	return func(l *Loop) {
		if fps > 0 {
			l.interval = time.Duration(float64(time.Second) / fps)
		} else {
			l.interval = 0
		}
	}
}

// WithFrameLimit makes Run return after "n" frames have been produced.
func WithFrameLimit(n uint64) LoopOption {
	return func(l *Loop) {
		l.frames = n
	}
}

func WithStep(step Step) LoopOption {
	return func(l *Loop) {
		l.step = step
	}
}

/*
UpdateAndRender is the default frame step.
*/
func UpdateAndRender(ctx context.Context, e *engine.Engine, dt float32) error {
	if err := e.Update(ctx, dt); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if _, err := e.Render(ctx); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

/*
Run drives the frame loop until "ctx" is cancelled or the frame limit is
reached. Failed frame steps are logged and the loop continues, except when
the memory arena has become unusable.
*/
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.reqs:
			req.done <- req.fn(l.eng)
		case now := <-ticker.C:
			dt := min(now.Sub(prev), MaxDeltaTime)
			prev = now
			if l.paused {
				continue
			}
			if l.skipNext {
				l.skipNext = false
				continue
			}
			if err := l.step(ctx, l.eng, float32(dt.Seconds())); err != nil {
				if errors.Is(err, memory.ErrArenaState) {
					return fmt.Errorf("frame %d: %w", l.count, err)
				}
				l.log.WarnContext(ctx, fmt.Sprintf("frame %d failed", l.count), logger.Error(err))
			}
			l.count++
			if l.frames > 0 && l.count >= l.frames {
				l.log.DebugContext(ctx, fmt.Sprintf("frame limit %d reached", l.frames))
				return nil
			}
		}
	}
}

/*
Do executes "f" on the loop goroutine between frames and returns its result.
*/
func (l *Loop) Do(ctx context.Context, f func(e *engine.Engine) error) error {
	req := request{fn: f, done: make(chan error, 1)}
	select {
	case l.reqs <- req:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

/*
Pause stops (pause == true) or restarts producing frames. After resume the
first tick is skipped so the time spent paused isn't fed into the simulation.
*/
func (l *Loop) Pause(ctx context.Context, pause bool) error {
	return l.Do(ctx, func(*engine.Engine) error {
		if l.paused && !pause {
			l.skipNext = true
		}
		l.paused = pause
		return nil
	})
}

// Frames returns number of frame steps the loop has executed.
func (l *Loop) Frames(ctx context.Context) (uint64, error) {
	var n uint64
	err := l.Do(ctx, func(*engine.Engine) error {
		n = l.count
		return nil
	})
	return n, err
}
