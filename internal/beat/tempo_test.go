package beat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func beatsEvery(interval time.Duration, n int) []time.Time {
	beats := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		beats = append(beats, time.UnixMilli(0).Add(time.Duration(i)*interval))
	}
	return beats
}

func TestTempoSteadyBeats(t *testing.T) {
	tr := NewTracker()

	state := tr.Update(beatsEvery(500*time.Millisecond, 4), 0.5, true)

	assert.Equal(t, time.UnixMilli(2000), state.NextBeatPrediction)
	assert.Equal(t, 500*time.Millisecond, state.MeanInterval)
	assert.InDelta(t, 0.9, state.Confidence, 1e-9)
	assert.InDelta(t, 0.98, state.Stability, 1e-9)
	for _, iv := range state.BeatPattern[1:] {
		assert.Equal(t, 500*time.Millisecond, iv)
	}
}

func TestTempoNeedsFourBeats(t *testing.T) {
	tr := NewTracker()
	state := tr.Update(beatsEvery(500*time.Millisecond, 3), 0.8, true)
	assert.Equal(t, TempoState{}, state)
	assert.Equal(t, TempoState{}, tr.Last())
}

func TestTempoStabilityNeverPerfect(t *testing.T) {
	tr := NewTracker()
	// Perfectly even intervals, maximum signal, audio present: still capped.
	state := tr.Update(beatsEvery(400*time.Millisecond, 16), 1.0, true)
	assert.LessOrEqual(t, state.Stability, 0.98)
	assert.InDelta(t, 1.0, state.Confidence, 1e-9)
}

func TestTempoJitterLowersStability(t *testing.T) {
	tr := NewTracker()

	steady := tr.Update(beatsEvery(500*time.Millisecond, 8), 0.5, true).Stability

	jittery := []time.Time{
		time.UnixMilli(0),
		time.UnixMilli(350),
		time.UnixMilli(1000),
		time.UnixMilli(1300),
		time.UnixMilli(2100),
		time.UnixMilli(2450),
		time.UnixMilli(3300),
		time.UnixMilli(3600),
	}
	unstable := tr.Update(jittery, 0.5, true).Stability

	assert.Less(t, unstable, steady)
}

func TestTempoPhaseCorrectionBounded(t *testing.T) {
	tr := NewTracker()
	beats := beatsEvery(500*time.Millisecond, 4)

	// Dead signal pushes the prediction later, at most 5%.
	late := tr.Update(beats, 0.0, true)
	assert.Equal(t, beats[3].Add(525*time.Millisecond), late.NextBeatPrediction)

	// Hot signal drags it earlier, same bound.
	early := tr.Update(beats, 1.0, true)
	assert.Equal(t, beats[3].Add(475*time.Millisecond), early.NextBeatPrediction)
}

func TestTempoFallbackBeatsGetNoBoost(t *testing.T) {
	tr := NewTracker()

	// Uneven enough that stability sits below the cap, so the audio-presence
	// boost is observable.
	beats := []time.Time{
		time.UnixMilli(0),
		time.UnixMilli(300),
		time.UnixMilli(1000),
		time.UnixMilli(1300),
		time.UnixMilli(2000),
		time.UnixMilli(2300),
	}
	withAudio := tr.Update(beats, 0.5, true).Stability
	withoutAudio := tr.Update(beats, 0.5, false).Stability

	assert.Less(t, withoutAudio, withAudio)
}
