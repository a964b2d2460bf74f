package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyFoldsEventsIntoSnapshot(t *testing.T) {
	s := NewState(nil)
	now := time.UnixMilli(0)

	s.Apply(CrossfaderEvent{Position: 64}, now)
	s.Apply(ChannelVolumeEvent{Deck: DeckA, Value: 100}, now)
	s.Apply(ChannelEQEvent{Deck: DeckA, Band: EQLow, Value: 90}, now)
	s.Apply(ChannelEQEvent{Deck: DeckB, Band: EQHigh, Value: 30}, now)
	s.Apply(PadEvent{Index: 2, Velocity: 127, Pressed: true}, now)

	snap := s.Snapshot()
	assert.Equal(t, uint8(64), snap.Crossfader)
	assert.Equal(t, uint8(100), snap.ChannelA.Volume)
	assert.Equal(t, uint8(90), snap.ChannelA.EQ.Low)
	assert.Equal(t, uint8(30), snap.ChannelB.EQ.High)
	assert.True(t, snap.Pads[2])
	assert.Equal(t, now, s.LastChange())

	s.Apply(PadEvent{Index: 2, Pressed: false}, now.Add(time.Second))
	assert.False(t, s.Snapshot().Pads[2])
	assert.Equal(t, now.Add(time.Second), s.LastChange())
}

func TestApplyClampsOutOfRange(t *testing.T) {
	s := NewState(nil)
	now := time.UnixMilli(0)

	s.Apply(CrossfaderEvent{Position: 200}, now)
	s.Apply(ChannelVolumeEvent{Deck: DeckB, Value: 255}, now)
	// Out-of-range pad indices are dropped, not panicking.
	s.Apply(PadEvent{Index: 8, Pressed: true}, now)
	s.Apply(PadEvent{Index: -1, Pressed: true}, now)

	snap := s.Snapshot()
	assert.Equal(t, uint8(127), snap.Crossfader)
	assert.Equal(t, uint8(127), snap.ChannelB.Volume)
	for _, pressed := range snap.Pads {
		assert.False(t, pressed)
	}
}

func TestDefaultCalibrationZeroMeansCenter(t *testing.T) {
	assert.InDelta(t, 0.5, DefaultCalibration(0), 1e-9)
	assert.InDelta(t, 1.0, DefaultCalibration(127), 1e-9)
	assert.InDelta(t, 64.0/127.0, DefaultCalibration(64), 1e-9)
}

func TestSnapshotEnergyCrossfaderWeighting(t *testing.T) {
	full := ChannelState{Volume: 127, EQ: EQState{Low: 127, Mid: 127, High: 127}}

	// Crossfader hard on deck A: deck B contributes nothing.
	snap := Snapshot{Crossfader: 0, ChannelA: full}
	assert.InDelta(t, 1.0, snap.Energy(nil), 1e-9)

	snap = Snapshot{Crossfader: 0, ChannelB: full}
	assert.InDelta(t, 0.0, snap.Energy(nil), 1e-9)

	snap = Snapshot{Crossfader: 127, ChannelB: full}
	assert.InDelta(t, 1.0, snap.Energy(nil), 1e-9)
}

func TestSnapshotEnergySilentWhenFadersDown(t *testing.T) {
	snap := Snapshot{Crossfader: 64}
	assert.InDelta(t, 0.0, snap.Energy(nil), 1e-9)
}

func TestSnapshotEnergyUsesCalibration(t *testing.T) {
	// Volume up, all EQ raw zero: the default calibration reads the knobs at
	// their center detent.
	snap := Snapshot{Crossfader: 0, ChannelA: ChannelState{Volume: 127}}
	assert.InDelta(t, 0.75, snap.Energy(nil), 1e-9)

	// A linear calibration reads the same knobs as fully cut.
	linear := func(raw uint8) float64 { return float64(raw) / 127.0 }
	assert.InDelta(t, 0.5, snap.Energy(linear), 1e-9)
}
