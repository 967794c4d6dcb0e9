package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"github.com/genricoloni/navicord/internal/presence"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Engine runs the poll/publish cycle.
// It polls the track source on a fixed interval and mirrors changes to the presence sink.
type Engine struct {
	logger *zap.Logger
	cfg    domain.Config
	poller domain.Poller
	sink   domain.PresenceSink

	// lastGeneration is the sink generation the current track was last published to
	lastGeneration uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new orchestration engine
func NewEngine(
	logger *zap.Logger,
	cfg domain.Config,
	poll domain.Poller,
	sink domain.PresenceSink,
) *Engine {
	return &Engine{
		logger: logger,
		cfg:    cfg,
		poller: poll,
		sink:   sink,
	}
}

// Start launches the engine's poll loop in a goroutine.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})

	e.logger.Info("Engine starting...",
		zap.Duration("interval", e.cfg.GetPollInterval()),
		zap.String("activity_name", string(e.cfg.GetDisplayMode())))

	go e.runLoop(loopCtx, e.done)
	return nil
}

// runLoop polls once immediately, then on every tick
func (e *Engine) runLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.GetPollInterval())
	defer ticker.Stop()

	for {
		e.tick(ctx)

		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// tick performs one poll and at most one presence update
func (e *Engine) tick(ctx context.Context) {
	track, changed := e.poller.Poll(ctx)
	generation := e.sink.Generation()

	if !track.IsPlaying() {
		if changed {
			e.logger.Info("Nothing playing, clearing presence")
			e.sink.Clear(ctx)
		}
		e.lastGeneration = generation
		return
	}

	// A new gateway session starts without presence, so republish the current track.
	if !changed && generation == e.lastGeneration {
		return
	}
	if !changed {
		e.logger.Info("Gateway session renewed, restoring presence",
			zap.Uint64("generation", generation))
	}
	e.lastGeneration = generation

	activity := presence.Build(track, e.cfg.GetDisplayMode(), e.cfg.GetClientID())
	e.sink.Publish(ctx, activity)

	e.logger.Debug("Presence published",
		zap.String("track", track.Title),
		zap.String("artist", track.Artist))
}

// Stop ends the poll loop and releases the track source
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			err = multierr.Append(err, ctx.Err())
		}
	}

	if closer, ok := e.poller.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}

	return err
}
