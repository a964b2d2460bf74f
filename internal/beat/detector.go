// Package beat detects rhythmic onsets from spectral energy flux and keeps
// enough beat history to predict where the next one lands.
package beat

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/auraviz/auraviz/internal/spectral"
)

const (
	energyHistorySize = 20
	maxBeatHistory    = 32

	// Fractions of the dynamic threshold each trigger has to clear.
	energyTriggerFraction  = 0.5
	lowFreqTriggerFraction = 0.4
	noveltyTriggerFraction = 0.8

	// Controller-cadence fallback: a pause of roughly one beat between
	// hardware updates is treated as an implicit beat.
	fallbackGapMin = 400 * time.Millisecond
	fallbackGapMax = 600 * time.Millisecond
)

// Options tunes the detector. Zero values get defaults from NewDetector.
type Options struct {
	MinBeatInterval time.Duration
	MinLevel        float64
}

// Detector holds the rolling energy histories and the bounded beat FIFO. All
// state is owned by the tick goroutine.
type Detector struct {
	opts Options

	energyHistory  []float64
	lowFreqHistory []float64
	prevTotal      float64
	hasPrevTotal   bool

	lastBeat       time.Time
	beats          []time.Time
	lastController time.Time
}

// NewDetector returns a Detector gated at 200ms between beats (≤300 BPM) by
// default.
func NewDetector(opts Options) *Detector {
	if opts.MinBeatInterval <= 0 {
		opts.MinBeatInterval = 200 * time.Millisecond
	}
	if opts.MinLevel <= 0 {
		opts.MinLevel = 0.08
	}
	return &Detector{
		opts:           opts,
		energyHistory:  make([]float64, 0, energyHistorySize),
		lowFreqHistory: make([]float64, 0, energyHistorySize),
		beats:          make([]time.Time, 0, maxBeatHistory),
	}
}

// Process evaluates one audio tick and reports whether a beat was detected.
// The rolling histories are always advanced, detection or not.
func (d *Detector) Process(now time.Time, desc spectral.Descriptor, level float64) bool {
	currentEnergy := meanBandEnergy(desc.TimbreBands[:])
	lowFreqEnergy := meanBandEnergy(desc.TimbreBands[:3])

	detected := false
	if len(d.energyHistory) >= 3 {
		detected = d.evaluate(now, currentEnergy, lowFreqEnergy, desc.TotalEnergy, level)
	}

	d.energyHistory = appendBounded(d.energyHistory, currentEnergy, energyHistorySize)
	d.lowFreqHistory = appendBounded(d.lowFreqHistory, lowFreqEnergy, energyHistorySize)
	d.prevTotal = desc.TotalEnergy
	d.hasPrevTotal = true

	if detected {
		d.recordBeat(now)
	}
	return detected
}

// ProcessControllerUpdate is the degraded no-audio path: it infers beats from
// the cadence of incoming controller updates only. Never called on a tick
// that already ran the audio path.
func (d *Detector) ProcessControllerUpdate(now time.Time, changed bool) bool {
	if !changed {
		return false
	}
	defer func() { d.lastController = now }()

	if d.lastController.IsZero() {
		return false
	}
	gap := now.Sub(d.lastController)
	if gap < fallbackGapMin || gap > fallbackGapMax {
		return false
	}
	if !d.lastBeat.IsZero() && now.Sub(d.lastBeat) < d.opts.MinBeatInterval {
		return false
	}
	d.recordBeat(now)
	return true
}

// Beats returns the bounded beat timestamp history, oldest first.
func (d *Detector) Beats() []time.Time {
	return d.beats
}

// LastBeat returns the most recent detected beat, zero if none.
func (d *Detector) LastBeat() time.Time {
	return d.lastBeat
}

func (d *Detector) evaluate(now time.Time, currentEnergy, lowFreqEnergy, totalEnergy, level float64) bool {
	if !d.lastBeat.IsZero() && now.Sub(d.lastBeat) < d.opts.MinBeatInterval {
		return false
	}
	if level < d.opts.MinLevel {
		return false
	}

	mean, std := stat.MeanStdDev(d.energyHistory, nil)
	if math.IsNaN(std) {
		std = 0
	}
	// The required jump scales with both how loud it has been and how much it
	// has been fluctuating.
	dynamic := mean*0.05 + std*1.5
	if dynamic < 1e-6 {
		dynamic = 1e-6
	}

	energyIncrease := currentEnergy - d.energyHistory[len(d.energyHistory)-1]
	lowFreqIncrease := lowFreqEnergy - d.lowFreqHistory[len(d.lowFreqHistory)-1]

	novelty := 0.0
	if d.hasPrevTotal {
		novelty = math.Abs(totalEnergy - d.prevTotal)
	}

	return energyIncrease > dynamic*energyTriggerFraction ||
		lowFreqIncrease > dynamic*lowFreqTriggerFraction ||
		novelty > dynamic*noveltyTriggerFraction
}

func (d *Detector) recordBeat(now time.Time) {
	d.lastBeat = now
	d.beats = append(d.beats, now)
	if len(d.beats) > maxBeatHistory {
		d.beats = d.beats[len(d.beats)-maxBeatHistory:]
	}
}

func meanBandEnergy(bands []float64) float64 {
	if len(bands) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bands {
		sum += math.Expm1(b)
	}
	return sum / float64(len(bands))
}

func appendBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
