// Package engine wires the analysis stages into a single tick-driven
// pipeline: spectral descriptors, level smoothing, beat detection, tempo
// tracking, classification and visual profile selection. All state is owned
// here and mutated only from the tick goroutine; there are no singletons and
// no locks.
package engine

import (
	"log/slog"
	"time"

	"github.com/auraviz/auraviz/internal/beat"
	"github.com/auraviz/auraviz/internal/classify"
	"github.com/auraviz/auraviz/internal/controller"
	"github.com/auraviz/auraviz/internal/level"
	"github.com/auraviz/auraviz/internal/memory"
	"github.com/auraviz/auraviz/internal/profile"
	"github.com/auraviz/auraviz/internal/spectral"
	"github.com/auraviz/auraviz/internal/utils"
)

// AudioFrame is one capture snapshot: frequency magnitudes normalized to
// [0,1] (bin i maps to i*sampleRate/fftSize Hz) and the matching time-domain
// samples. Both arrays belong to the same capture epoch and keep the same
// length across ticks.
type AudioFrame struct {
	Freq []float64
	Time []float64
}

// Output is the per-tick engine result handed to renderers.
type Output struct {
	Timestamp       time.Time                    `json:"timestamp"`
	Level           float64                      `json:"level"`
	Spectral        spectral.Descriptor          `json:"spectral"`
	Beat            bool                         `json:"beat"`
	Tempo           beat.TempoState              `json:"tempo"`
	Genre           string                       `json:"genre"`
	GenreConfidence float64                      `json:"genreConfidence"`
	Energy          float64                      `json:"energy"`
	EnergyTrend     string                       `json:"energyTrend"`
	Transition      classify.TransitionDetection `json:"transition"`
	Active          profile.ActiveState          `json:"active"`
	Display         profile.DisplayState         `json:"display"`
	AudioPresent    bool                         `json:"audioPresent"`
}

// Config tunes the engine. Zero values get defaults from New.
type Config struct {
	SampleRate  float64
	FFTSize     int
	InputGain   float64
	Sensitivity float64
	// MinTickInterval rate-limits analysis: ticks arriving faster leave all
	// state untouched and replay the previous output.
	MinTickInterval time.Duration
	Calibration     controller.Calibration
}

// Engine is the tick orchestrator. Construct with New; all collaborators are
// injected, none are ambient.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	extractor  *spectral.Extractor
	levels     *level.Estimator
	detector   *beat.Detector
	tempo      *beat.Tracker
	classifier *classify.Override
	selector   *profile.Selector
	mem        *memory.Store

	catalog *profile.Catalog

	lastTick   time.Time
	lastOutput Output
	lastFrame  AudioFrame
	lastSnap   controller.Snapshot
	frameLen   int
	hasOutput  bool
}

// New builds an Engine. persister may be nil (no long-term memory). The
// profile catalog is loaded from the embedded data; a broken catalog is the
// one startup-time error this package can return.
func New(cfg Config, logger *slog.Logger, persister memory.Persister) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = 2048
	}
	if cfg.MinTickInterval <= 0 {
		cfg.MinTickInterval = 25 * time.Millisecond
	}

	catalog, err := profile.LoadCatalog()
	if err != nil {
		return nil, err
	}

	mem := memory.NewStore(logger, persister)
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		extractor: spectral.NewExtractor(cfg.SampleRate, cfg.FFTSize),
		levels: level.NewEstimator(level.Config{
			InputGain:   cfg.InputGain,
			Sensitivity: cfg.Sensitivity,
		}),
		detector:   beat.NewDetector(beat.Options{}),
		tempo:      beat.NewTracker(),
		classifier: classify.NewOverride(classify.NewHeuristic(mem)),
		selector:   profile.NewSelector(catalog, logger, profile.Options{}),
		mem:        mem,
		catalog:    catalog,
	}
	return e, nil
}

// Tick runs the full pipeline once. frame may be nil when no new audio is
// ready, in which case the controller-only degraded path runs. Calling Tick
// again within MinTickInterval returns the previous output unchanged.
func (e *Engine) Tick(frame *AudioFrame, snap controller.Snapshot, now time.Time) Output {
	if e.hasOutput && now.Sub(e.lastTick) < e.cfg.MinTickInterval {
		return e.lastOutput
	}

	dt := 1.0 / 30.0
	if e.hasOutput {
		if elapsed := now.Sub(e.lastTick).Seconds(); elapsed > 0 && elapsed < 1 {
			dt = elapsed
		}
	}

	frame = e.validateFrame(frame)

	var out Output
	if frame != nil {
		out = e.audioTick(frame, now, dt)
	} else {
		out = e.controllerTick(snap, now)
	}
	out.Timestamp = now

	e.lastTick = now
	e.lastOutput = out
	e.hasOutput = true
	return out
}

// audioTick is the full analysis path.
func (e *Engine) audioTick(frame *AudioFrame, now time.Time, dt float64) Output {
	desc := e.extractor.Extract(frame.Freq, frame.Time)
	lvl := e.levels.Process(frame.Freq, frame.Time, dt)

	beatDetected := e.detector.Process(now, desc, lvl)
	if beatDetected {
		e.mem.Append(memory.ShortTerm, "beat", float64(now.UnixMilli()), now)
	}

	// Signal strength for the tempo confidence bonus blends level with
	// brightness consistency.
	signal := utils.Clamp(0.7*lvl+0.3*spectral.BrightnessNorm(desc.CentroidHz), 0.0, 1.0)
	tempo := e.tempo.Update(e.detector.Beats(), signal, true)

	res := e.classifier.Classify(classify.Input{
		Level:        lvl,
		Descriptor:   desc,
		AudioPresent: true,
		Now:          now,
	})

	e.selector.Update(now, res)

	return Output{
		Level:           lvl,
		Spectral:        desc,
		Beat:            beatDetected,
		Tempo:           tempo,
		Genre:           res.Genre,
		GenreConfidence: res.GenreConfidence,
		Energy:          res.Energy,
		EnergyTrend:     res.Trend.String(),
		Transition:      e.classifier.Transition(),
		Active:          e.selector.Active(),
		Display:         e.selector.Display(res.Energy),
		AudioPresent:    true,
	}
}

// controllerTick is the degraded path when no audio frame is available:
// energy comes from fader/EQ state and beats from update cadence.
func (e *Engine) controllerTick(snap controller.Snapshot, now time.Time) Output {
	energy := snap.Energy(e.cfg.Calibration)

	changed := !e.hasOutput || snap != e.lastSnap
	beatDetected := e.detector.ProcessControllerUpdate(now, changed)
	tempo := e.tempo.Update(e.detector.Beats(), energy, false)

	res := e.classifier.Classify(classify.Input{Now: now})
	res.Energy = energy

	e.selector.UpdateControllerOnly(now, energy)

	out := Output{
		Level:           e.levels.Level(),
		Beat:            beatDetected,
		Tempo:           tempo,
		Genre:           res.Genre,
		GenreConfidence: res.GenreConfidence,
		Energy:          energy,
		EnergyTrend:     res.Trend.String(),
		Transition:      e.classifier.Transition(),
		Active:          e.selector.Active(),
		Display:         e.selector.Display(energy),
		AudioPresent:    false,
	}
	e.lastSnap = snap
	return out
}

// validateFrame applies the malformed-input policy: a frame whose length
// differs from the established capture length is replaced by the last good
// frame and logged; the first frame establishes the length.
func (e *Engine) validateFrame(frame *AudioFrame) *AudioFrame {
	if frame == nil {
		return nil
	}
	if len(frame.Freq) == 0 || len(frame.Time) == 0 {
		e.logger.Warn("dropping empty audio frame")
		return e.lastGoodFrame()
	}
	if e.frameLen == 0 {
		e.frameLen = len(frame.Freq)
	} else if len(frame.Freq) != e.frameLen {
		e.logger.Warn("audio frame length mismatch",
			slog.Int("expected", e.frameLen),
			slog.Int("got", len(frame.Freq)))
		return e.lastGoodFrame()
	}
	e.lastFrame = AudioFrame{Freq: frame.Freq, Time: frame.Time}
	return frame
}

func (e *Engine) lastGoodFrame() *AudioFrame {
	if len(e.lastFrame.Freq) == 0 {
		return nil
	}
	f := e.lastFrame
	return &f
}

// SetTrackMatch installs or withdraws (nil) the external track
// identification, which overrides the heuristic classifier while active.
func (e *Engine) SetTrackMatch(m *classify.Match) {
	e.classifier.SetMatch(m)
}

// SelectProfileManually forces a transition to the named profile and opens
// the 30-second manual window. Returns false for an unknown id.
func (e *Engine) SelectProfileManually(id string) bool {
	now := e.lastTick
	if now.IsZero() {
		now = time.Now()
	}
	ok := e.selector.SelectManual(id, now)
	if ok {
		e.logger.Info("manual profile selected", slog.String("profile", id))
	}
	return ok
}

// ExitManualMode ends the manual window immediately.
func (e *Engine) ExitManualMode() {
	e.selector.ExitManualMode()
}

// IsManualMode reports whether manual selection is currently in force.
func (e *Engine) IsManualMode() bool {
	now := e.lastTick
	if now.IsZero() {
		now = time.Now()
	}
	return e.selector.IsManual(now)
}

// ListProfiles returns the static catalog summaries.
func (e *Engine) ListProfiles() []profile.Summary {
	return e.catalog.Summaries()
}

// Memory exposes the scoped store for collaborators that record their own
// pattern history.
func (e *Engine) Memory() *memory.Store {
	return e.mem
}

// Close flushes long-term memory. Call once on shutdown.
func (e *Engine) Close() {
	e.mem.Flush()
}
