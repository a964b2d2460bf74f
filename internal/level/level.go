// Package level combines several loudness estimators into one normalized
// signal and applies momentum-based smoothing so downstream visuals pump with
// the music instead of jittering with it.
package level

import (
	"math"

	"github.com/auraviz/auraviz/internal/utils"
)

// Empirical gains that bring the four raw estimators onto a comparable scale
// before taking their maximum.
const (
	rmsGain      = 1.8
	peakGain     = 1.2
	energyGain   = 2.2
	weightedGain = 2.0
)

const historySize = 10

// Config tunes the estimator. Zero values are replaced with defaults by
// NewEstimator.
type Config struct {
	InputGain      float64
	Sensitivity    float64
	SpringConstant float64
	Damping        float64
	TrendWeight    float64
}

// Estimator owns the smoothed level state. It is mutated once per tick and
// must not be shared across goroutines.
type Estimator struct {
	cfg Config

	level    float64
	velocity float64
	history  []float64
}

// NewEstimator returns an Estimator with sane defaults for a 20-40Hz tick
// loop.
func NewEstimator(cfg Config) *Estimator {
	if cfg.InputGain <= 0 {
		cfg.InputGain = 1.0
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = 1.0
	}
	if cfg.SpringConstant <= 0 {
		cfg.SpringConstant = 6.0
	}
	if cfg.Damping <= 0 || cfg.Damping >= 1 {
		cfg.Damping = 0.82
	}
	if cfg.TrendWeight <= 0 {
		cfg.TrendWeight = 0.08
	}
	return &Estimator{
		cfg:     cfg,
		history: make([]float64, 0, historySize),
	}
}

// Process ingests one frame and returns the smoothed level in [0,1].
// dt is the tick interval in seconds.
func (e *Estimator) Process(freq, timeDomain []float64, dt float64) float64 {
	raw := e.rawLevel(freq, timeDomain)
	return e.smooth(raw, dt)
}

// Level returns the current smoothed level without updating it.
func (e *Estimator) Level() float64 {
	return e.level
}

// SetGain adjusts the user-facing input gain at runtime.
func (e *Estimator) SetGain(inputGain, sensitivity float64) {
	if inputGain > 0 {
		e.cfg.InputGain = inputGain
	}
	if sensitivity > 0 {
		e.cfg.Sensitivity = sensitivity
	}
}

// rawLevel combines RMS, peak, mean bin energy and perceptually weighted bin
// energy. The maximum of the gain-scaled estimators wins, then the result is
// scaled by inputGain*sensitivity and clamped to [0,1].
func (e *Estimator) rawLevel(freq, timeDomain []float64) float64 {
	var rms, peak float64
	if len(timeDomain) > 0 {
		var sumSquares float64
		for _, s := range timeDomain {
			sumSquares += s * s
			if abs := math.Abs(s); abs > peak {
				peak = abs
			}
		}
		rms = math.Sqrt(sumSquares / float64(len(timeDomain)))
	}

	var meanEnergy, weighted float64
	if len(freq) > 0 {
		binWidth := 22050.0 / float64(len(freq))
		var sum, weightedSum, weightTotal float64
		for i, mag := range freq {
			sum += mag
			w := perceptualWeight(float64(i) * binWidth)
			weightedSum += mag * w
			weightTotal += w
		}
		meanEnergy = sum / float64(len(freq))
		weighted = utils.SafeDiv(weightedSum, weightTotal, 0)
	}

	raw := math.Max(
		math.Max(rms*rmsGain, peak*peakGain),
		math.Max(meanEnergy*energyGain, weighted*weightedGain),
	)
	raw *= e.cfg.InputGain * e.cfg.Sensitivity
	return utils.Clamp(raw, 0.0, 1.0)
}

// perceptualWeight boosts the ranges the ear keys on: bass for rhythm, mids
// for melody, presence for sheen.
func perceptualWeight(hz float64) float64 {
	switch {
	case hz >= 60 && hz < 250:
		return 2.0
	case hz >= 250 && hz < 2000:
		return 1.5
	case hz >= 2000 && hz < 8000:
		return 1.2
	default:
		return 1.0
	}
}

// smooth advances the spring state toward raw. Attack is fast, release slow,
// and the per-tick slew is bounded so a single loud frame cannot snap the
// level to its target.
func (e *Estimator) smooth(raw, dt float64) float64 {
	if dt <= 0 || dt > 1 {
		dt = 1.0 / 30.0
	}

	e.history = append(e.history, raw)
	if len(e.history) > historySize {
		e.history = e.history[len(e.history)-historySize:]
	}

	trend := 0.0
	if n := len(e.history); n >= 3 {
		trend = e.history[n-1] - e.history[n-3]
	}

	e.velocity += (raw - e.level) * e.cfg.SpringConstant * dt
	e.velocity *= e.cfg.Damping
	e.level += e.velocity*dt + trend*e.cfg.TrendWeight

	// Adaptive blend toward the raw value: large jumps follow quickly, small
	// wiggles are mostly ignored.
	delta := raw - e.level
	alpha := utils.Clamp(math.Abs(delta)*0.9, 0.02, 0.5)
	if delta < 0 {
		alpha *= 0.5 // slower release than attack
	}
	e.level += delta * alpha

	if math.IsNaN(e.level) || math.IsInf(e.level, 0) {
		e.level = 0
		e.velocity = 0
	}
	e.level = utils.Clamp(e.level, 0.0, 1.0)
	return e.level
}
