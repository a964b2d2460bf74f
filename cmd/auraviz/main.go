// Command auraviz runs the adaptive audio analysis engine against a live
// capture device and publishes the resulting visual state to renderers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/auraviz/auraviz/internal/controller"
	"github.com/auraviz/auraviz/internal/engine"
	"github.com/auraviz/auraviz/internal/memory"
	"github.com/auraviz/auraviz/internal/transport"
	"github.com/auraviz/auraviz/internal/ui"
)

func main() {
	cfg := parseCLIFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil && !eris.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func setupLogger(debug, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	if visualize && !debug {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}

func run(ctx context.Context, cfg runtimeOptions) error {
	logger := setupLogger(cfg.debug, cfg.visualize)

	if err := portaudio.Initialize(); err != nil {
		return eris.Wrap(err, "initialize PortAudio")
	}
	defer portaudio.Terminate()

	capture, err := resolveCapture(cfg)
	if err != nil {
		return err
	}

	var persister memory.Persister
	if cfg.memoryPath != "" {
		persister = memory.NewFileStore(cfg.memoryPath)
	}

	eng, err := engine.New(engine.Config{
		SampleRate:      capture.sampleRate,
		FFTSize:         capture.frameSize,
		InputGain:       cfg.inputGain,
		Sensitivity:     cfg.sensitivity,
		MinTickInterval: cfg.tickRate * 3 / 4,
	}, logger, persister)
	if err != nil {
		return err
	}
	defer eng.Close()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var viz *ui.Visualizer
	if cfg.visualize {
		viz = ui.NewVisualizer(cancel)
		defer viz.Close()
	}

	var hub *transport.Hub
	g, gctx := errgroup.WithContext(loopCtx)

	if cfg.listenAddr != "" {
		hub = transport.NewHub(cfg.listenAddr, logger)
		g.Go(func() error {
			return hub.Run(gctx)
		})
	}

	frameCh := make(chan []float32, 32)
	g.Go(func() error {
		defer close(frameCh)
		return captureAudio(gctx, logger, frameCh, capture)
	})

	g.Go(func() error {
		return tickLoop(gctx, logger, eng, viz, hub, frameCh, cfg, capture)
	})

	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		logger.Error("engine loop failed", slog.Any("error", err))
		return err
	}
	return nil
}

// tickLoop drives the engine at a fixed rate. The newest captured frame is
// analyzed; ticks without a fresh frame run the degraded controller-only
// path inside the engine.
func tickLoop(
	ctx context.Context,
	logger *slog.Logger,
	eng *engine.Engine,
	viz *ui.Visualizer,
	hub *transport.Hub,
	frames <-chan []float32,
	cfg runtimeOptions,
	capture captureConfig,
) error {
	builder := newFrameBuilder(capture.frameSize, capture.channels)
	// Hardware controller decoding is an external collaborator; the CLI build
	// runs with an idle controller state.
	ctrl := controller.NewState(nil)

	ticker := time.NewTicker(cfg.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var frame *engine.AudioFrame
			for drained := false; !drained; {
				select {
				case raw, ok := <-frames:
					if !ok {
						return nil
					}
					frame = builder.Build(raw)
				default:
					drained = true
				}
			}

			out := eng.Tick(frame, ctrl.Snapshot(), time.Now())
			if viz != nil {
				viz.Update(out)
			}
			if hub != nil {
				hub.Broadcast(out)
			}
			if out.Beat {
				logger.Debug("beat",
					slog.Float64("level", out.Level),
					slog.Float64("stability", out.Tempo.Stability),
					slog.String("genre", out.Genre))
			}
		}
	}
}
