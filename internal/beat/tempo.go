package beat

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/auraviz/auraviz/internal/utils"
)

const (
	minBeatsForTempo = 4

	baseConfidence     = 0.8
	maxConfidenceBonus = 0.2

	// Stability is never reported as a perfect 1.0; dual-source agreement can
	// raise it to at most 0.98.
	stabilityBoost = 0.08
	stabilityCap   = 0.98

	// The phase-correction nudge from recent energy variation is bounded to
	// ±5% of the mean interval.
	maxPhaseCorrection = 0.05
)

// TempoState is the derived rhythm summary, recomputed each tick from beat
// history. All scores are bounded; none extrapolate beyond the evidence.
type TempoState struct {
	NextBeatPrediction time.Time
	MeanInterval       time.Duration
	Confidence         float64
	Stability          float64
	BeatPattern        [4]time.Duration
}

// Tracker derives TempoState from the detector's beat FIFO.
type Tracker struct {
	last TempoState
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update recomputes the tempo state. energySignal in [0,1] describes how
// strong and consistent the recent energy/brightness evidence is;
// audioPresent marks whether real audio (not the controller fallback) drove
// the beats this tick.
func (t *Tracker) Update(beats []time.Time, energySignal float64, audioPresent bool) TempoState {
	if len(beats) < minBeatsForTempo {
		t.last = TempoState{}
		return t.last
	}

	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals = append(intervals, float64(beats[i].Sub(beats[i-1]))/float64(time.Millisecond))
	}

	meanMs, variance := stat.MeanVariance(intervals, nil)
	if math.IsNaN(variance) {
		variance = 0
	}
	if meanMs <= 0 {
		t.last = TempoState{}
		return t.last
	}

	// Phase correction: busier recent energy drags the prediction slightly
	// earlier, quieter pushes it later, bounded either way.
	correction := utils.Clamp((0.5-utils.Clamp(energySignal, 0.0, 1.0))*0.1, -maxPhaseCorrection, maxPhaseCorrection)
	predictedMs := meanMs * (1 + correction)

	state := TempoState{
		NextBeatPrediction: beats[len(beats)-1].Add(time.Duration(predictedMs * float64(time.Millisecond))),
		MeanInterval:       time.Duration(meanMs * float64(time.Millisecond)),
		Confidence:         utils.Clamp(baseConfidence+utils.Clamp(energySignal, 0.0, 1.0)*maxConfidenceBonus, 0.0, 1.0),
	}

	// Stability is capped below 1.0: perfectly even intervals are still only
	// evidence, not certainty.
	stability := utils.Clamp(1-variance/(meanMs*meanMs), 0.0, stabilityCap)
	if stability > 0.7 && audioPresent {
		stability = math.Min(stabilityCap, stability+stabilityBoost)
	}
	state.Stability = stability

	for i := range state.BeatPattern {
		idx := len(intervals) - len(state.BeatPattern) + i
		if idx >= 0 {
			state.BeatPattern[i] = time.Duration(intervals[idx] * float64(time.Millisecond))
		}
	}

	t.last = state
	return state
}

// Last returns the most recently computed state.
func (t *Tracker) Last() TempoState {
	return t.last
}
