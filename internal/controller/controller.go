// Package controller models logical MIDI-controller state as typed events and
// a polled snapshot. Hardware protocol decoding lives outside the engine;
// this package only deals in 0-127 scaled logical values.
package controller

import (
	"time"

	"github.com/auraviz/auraviz/internal/utils"
)

// Deck identifies a mixer channel.
type Deck int

const (
	DeckA Deck = iota
	DeckB
)

// EQBand identifies one equalizer band on a channel.
type EQBand int

const (
	EQLow EQBand = iota
	EQMid
	EQHigh
)

// Event is the tagged union of controller inputs. Each variant carries typed
// fields; consumers dispatch with a type switch rather than string-keyed
// callback maps.
type Event interface {
	isEvent()
}

// CrossfaderEvent reports a crossfader move.
type CrossfaderEvent struct {
	Position uint8 // 0 = full A, 127 = full B
}

// ChannelVolumeEvent reports a channel fader move.
type ChannelVolumeEvent struct {
	Deck  Deck
	Value uint8
}

// ChannelEQEvent reports an EQ knob move.
type ChannelEQEvent struct {
	Deck  Deck
	Band  EQBand
	Value uint8
}

// PadEvent reports a performance pad press or release.
type PadEvent struct {
	Index    int
	Velocity uint8
	Pressed  bool
}

func (CrossfaderEvent) isEvent()    {}
func (ChannelVolumeEvent) isEvent() {}
func (ChannelEQEvent) isEvent()     {}
func (PadEvent) isEvent()           {}

// Calibration maps a raw 0-127 EQ value to a normalized [0,1] position.
// Pluggable because the remap is heuristic and unverified across hardware
// revisions.
type Calibration func(raw uint8) float64

// DefaultCalibration reproduces the observed hardware behavior where a raw 0
// means the knob sits at its center detent.
func DefaultCalibration(raw uint8) float64 {
	if raw == 0 {
		return 0.5
	}
	return utils.Clamp(float64(raw)/127.0, 0.0, 1.0)
}

// EQState is one channel's equalizer, raw values.
type EQState struct {
	Low  uint8
	Mid  uint8
	High uint8
}

// ChannelState is one deck's fader and EQ.
type ChannelState struct {
	Volume uint8
	EQ     EQState
}

// Snapshot is the logical hardware state polled once per tick.
type Snapshot struct {
	Crossfader uint8
	ChannelA   ChannelState
	ChannelB   ChannelState
	Pads       [8]bool
}

// State accumulates events into the current snapshot and tracks when input
// last changed, which the degraded no-audio path uses as a beat cadence hint.
type State struct {
	snap       Snapshot
	calibrate  Calibration
	lastChange time.Time
}

// NewState returns a State using cal, or DefaultCalibration when nil.
func NewState(cal Calibration) *State {
	if cal == nil {
		cal = DefaultCalibration
	}
	return &State{calibrate: cal}
}

// Apply folds one event into the snapshot. Out-of-range values are clamped to
// the 0-127 logical range rather than rejected.
func (s *State) Apply(ev Event, now time.Time) {
	switch e := ev.(type) {
	case CrossfaderEvent:
		s.snap.Crossfader = clamp127(e.Position)
	case ChannelVolumeEvent:
		ch := s.channel(e.Deck)
		ch.Volume = clamp127(e.Value)
	case ChannelEQEvent:
		ch := s.channel(e.Deck)
		switch e.Band {
		case EQLow:
			ch.EQ.Low = clamp127(e.Value)
		case EQMid:
			ch.EQ.Mid = clamp127(e.Value)
		case EQHigh:
			ch.EQ.High = clamp127(e.Value)
		}
	case PadEvent:
		if e.Index >= 0 && e.Index < len(s.snap.Pads) {
			s.snap.Pads[e.Index] = e.Pressed
		}
	}
	s.lastChange = now
}

// Snapshot returns the current logical state by value.
func (s *State) Snapshot() Snapshot {
	return s.snap
}

// LastChange reports when input last arrived, zero if never.
func (s *State) LastChange() time.Time {
	return s.lastChange
}

// Energy estimates output energy purely from fader and EQ positions, used
// when no audio signal is available. Crossfader position weights the two
// decks against each other.
func (s Snapshot) Energy(cal Calibration) float64 {
	if cal == nil {
		cal = DefaultCalibration
	}
	fade := float64(clamp127(s.Crossfader)) / 127.0
	a := channelEnergy(s.ChannelA, cal) * (1 - fade)
	b := channelEnergy(s.ChannelB, cal) * fade
	return utils.Clamp(a+b, 0.0, 1.0)
}

func channelEnergy(ch ChannelState, cal Calibration) float64 {
	volume := float64(clamp127(ch.Volume)) / 127.0
	eq := (cal(ch.EQ.Low) + cal(ch.EQ.Mid) + cal(ch.EQ.High)) / 3.0
	return volume * (0.5 + 0.5*eq)
}

func (s *State) channel(d Deck) *ChannelState {
	if d == DeckB {
		return &s.snap.ChannelB
	}
	return &s.snap.ChannelA
}

func clamp127(v uint8) uint8 {
	if v > 127 {
		return 127
	}
	return v
}
