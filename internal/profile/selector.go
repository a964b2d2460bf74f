package profile

import (
	"log/slog"
	"math"
	"time"

	"github.com/auraviz/auraviz/internal/classify"
)

// Options tunes the selector. Zero values get defaults from NewSelector.
type Options struct {
	Cooldown          time.Duration
	ManualWindow      time.Duration
	InterpolationStep float64
	// ControllerHysteresis is the minimum energy delta that triggers a
	// reselection on the degraded no-audio path.
	ControllerHysteresis float64
}

// ActiveState is the externally visible selector state. Exactly one of
// {TargetID empty} or {TargetID set, Progress advancing} holds at any time.
type ActiveState struct {
	CurrentProfileID string
	TargetProfileID  string
	Progress         float64
	ManualUntil      time.Time
}

// Selector owns the Idle/Transitioning state machine and the interpolator.
// All mutation happens on the tick goroutine.
type Selector struct {
	catalog *Catalog
	logger  *slog.Logger
	opts    Options
	interp  *Interpolator

	current  *Profile
	target   *Profile
	progress float64

	lastTransitionStart time.Time
	manualUntil         time.Time

	lastControllerEnergy float64
	hasControllerEnergy  bool
}

// NewSelector starts Idle on the catalog's low-energy default profile.
func NewSelector(catalog *Catalog, logger *slog.Logger, opts Options) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Second
	}
	if opts.ManualWindow <= 0 {
		opts.ManualWindow = 30 * time.Second
	}
	if opts.ControllerHysteresis <= 0 {
		opts.ControllerHysteresis = 0.3
	}
	return &Selector{
		catalog: catalog,
		logger:  logger,
		opts:    opts,
		interp:  NewInterpolator(opts.InterpolationStep),
		current: catalog.lowEnergyDefault(),
	}
}

// Update runs one tick of the audio-driven path: advance any in-progress
// transition, then consider an automatic reselection.
func (s *Selector) Update(now time.Time, res classify.Result) {
	s.expireManual(now)
	s.advance()

	if s.isManual(now) || s.target != nil {
		return
	}

	best := s.catalog.Match(res.Genre, res.Energy)
	if best == nil || best.ID == s.current.ID {
		return
	}
	if !s.lastTransitionStart.IsZero() && now.Sub(s.lastTransitionStart) < s.opts.Cooldown {
		return
	}
	s.begin(now, best)
	s.logger.Debug("profile transition",
		slog.String("from", s.current.ID),
		slog.String("to", best.ID),
		slog.String("genre", res.Genre),
		slog.Float64("energy", res.Energy))
}

// UpdateControllerOnly is the degraded no-audio path. Reselection happens
// only when the controller-derived energy has moved past the hysteresis
// band, so knob noise cannot flicker the visuals.
func (s *Selector) UpdateControllerOnly(now time.Time, energy float64) {
	s.expireManual(now)
	s.advance()

	if s.isManual(now) || s.target != nil {
		return
	}

	if s.hasControllerEnergy && math.Abs(energy-s.lastControllerEnergy) <= s.opts.ControllerHysteresis {
		return
	}
	s.lastControllerEnergy = energy
	s.hasControllerEnergy = true

	best := s.catalog.ByEnergy(energy)
	if best == nil || best.ID == s.current.ID {
		return
	}
	if !s.lastTransitionStart.IsZero() && now.Sub(s.lastTransitionStart) < s.opts.Cooldown {
		return
	}
	s.begin(now, best)
}

// SelectManual forces an immediate transition to the named profile and opens
// the manual window, suspending automatic selection. Returns false for an
// unknown id. Manual selection bypasses the cooldown.
func (s *Selector) SelectManual(id string, now time.Time) bool {
	p := s.catalog.ByID(id)
	if p == nil {
		return false
	}
	s.manualUntil = now.Add(s.opts.ManualWindow)
	if p.ID == s.current.ID && s.target == nil {
		return true
	}
	s.begin(now, p)
	return true
}

// ExitManualMode ends the manual window immediately.
func (s *Selector) ExitManualMode() {
	s.manualUntil = time.Time{}
}

// IsManual reports whether the manual window is open at the given time,
// lazily clearing it once expired.
func (s *Selector) IsManual(now time.Time) bool {
	s.expireManual(now)
	return s.isManual(now)
}

// Active returns the externally visible state.
func (s *Selector) Active() ActiveState {
	state := ActiveState{
		CurrentProfileID: s.current.ID,
		Progress:         s.progress,
		ManualUntil:      s.manualUntil,
	}
	if s.target != nil {
		state.TargetProfileID = s.target.ID
	}
	return state
}

// Current returns the settled profile (the transition origin while one is in
// progress).
func (s *Selector) Current() *Profile {
	return s.current
}

// Display produces the interpolated, energy-lit output for the renderer.
func (s *Selector) Display(energy float64) DisplayState {
	return s.interp.Display(s.current, energy)
}

// begin starts a transition: snapshot per-field records, reset progress.
// If a transition was already running its records are replaced, which only
// happens on manual selection.
func (s *Selector) begin(now time.Time, to *Profile) {
	s.interp.Begin(s.current, to)
	s.target = to
	s.progress = 0
	s.lastTransitionStart = now
}

// advance moves an in-progress transition forward and commits it at
// progress >= 1: current becomes target, records are cleared, state returns
// to Idle.
func (s *Selector) advance() {
	if s.target == nil {
		return
	}
	s.progress = s.interp.Advance()
	if s.progress >= 1 {
		s.current = s.target
		s.target = nil
		s.progress = 0
		s.interp.Clear()
	}
}

func (s *Selector) expireManual(now time.Time) {
	if !s.manualUntil.IsZero() && now.After(s.manualUntil) {
		s.manualUntil = time.Time{}
	}
}

func (s *Selector) isManual(now time.Time) bool {
	return !s.manualUntil.IsZero() && !now.After(s.manualUntil)
}
