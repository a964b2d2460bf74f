package beat

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/auraviz/auraviz/internal/spectral"
)

func descriptorWithEnergy(e float64) spectral.Descriptor {
	var d spectral.Descriptor
	for i := range d.TimbreBands {
		d.TimbreBands[i] = math.Log1p(e)
	}
	d.TotalEnergy = e
	return d
}

func TestDetectsBeatOnEnergyJump(t *testing.T) {
	d := NewDetector(Options{})
	start := time.UnixMilli(0)

	quiet := descriptorWithEnergy(0.1)
	for i := 0; i < 5; i++ {
		got := d.Process(start.Add(time.Duration(i)*100*time.Millisecond), quiet, 0.5)
		assert.False(t, got)
	}

	loud := descriptorWithEnergy(2.0)
	got := d.Process(start.Add(500*time.Millisecond), loud, 0.5)
	assert.True(t, got)
	assert.Len(t, d.Beats(), 1)
}

func TestBeatGateEnforcesMinInterval(t *testing.T) {
	d := NewDetector(Options{})
	start := time.UnixMilli(0)

	quiet := descriptorWithEnergy(0.1)
	for i := 0; i < 5; i++ {
		d.Process(start.Add(time.Duration(i)*100*time.Millisecond), quiet, 0.5)
	}

	loud := descriptorWithEnergy(2.0)
	assert.True(t, d.Process(start.Add(500*time.Millisecond), loud, 0.5))

	// 50ms later: jump again, but inside the gate.
	louder := descriptorWithEnergy(5.0)
	assert.False(t, d.Process(start.Add(550*time.Millisecond), louder, 0.5))

	beats := d.Beats()
	for i := 1; i < len(beats); i++ {
		assert.GreaterOrEqual(t, beats[i].Sub(beats[i-1]), 200*time.Millisecond)
	}
}

func TestQuietSignalNeverBeats(t *testing.T) {
	d := NewDetector(Options{})
	start := time.UnixMilli(0)

	quiet := descriptorWithEnergy(0.1)
	for i := 0; i < 5; i++ {
		d.Process(start.Add(time.Duration(i)*100*time.Millisecond), quiet, 0.5)
	}
	// Big jump, but below the audibility floor.
	loud := descriptorWithEnergy(3.0)
	assert.False(t, d.Process(start.Add(500*time.Millisecond), loud, 0.01))
}

func TestBeatHistoryBounded(t *testing.T) {
	d := NewDetector(Options{})
	ts := time.UnixMilli(0)

	quiet := descriptorWithEnergy(0.1)
	loud := descriptorWithEnergy(3.0)
	for i := 0; i < 200; i++ {
		ts = ts.Add(250 * time.Millisecond)
		if i%2 == 0 {
			d.Process(ts, quiet, 0.5)
		} else {
			d.Process(ts, loud, 0.5)
		}
	}
	assert.LessOrEqual(t, len(d.Beats()), 32)
	assert.Greater(t, len(d.Beats()), 0)
}

func TestControllerFallbackCadence(t *testing.T) {
	d := NewDetector(Options{})
	start := time.UnixMilli(0)

	// First update only establishes cadence.
	assert.False(t, d.ProcessControllerUpdate(start, true))
	// 500ms gap lands inside the implicit-beat window.
	assert.True(t, d.ProcessControllerUpdate(start.Add(500*time.Millisecond), true))
	// A 2s pause is not a beat.
	assert.False(t, d.ProcessControllerUpdate(start.Add(2500*time.Millisecond), true))
	// Unchanged snapshots never beat.
	assert.False(t, d.ProcessControllerUpdate(start.Add(3000*time.Millisecond), false))
}
