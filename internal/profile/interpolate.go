package profile

import (
	"math"

	"github.com/auraviz/auraviz/internal/utils"
)

// Per-field interpolable names. Progress is tracked per field even though the
// selector drives a single shared value, so individual fields can later get
// their own easing without changing the state layout.
const (
	fieldPrimary   = "primary"
	fieldSecondary = "secondary"
	fieldTertiary  = "tertiary"
	fieldAccent    = "accent"

	fieldParticleCount   = "particleCount"
	fieldGeometryDetail  = "geometryDetail"
	fieldLayerCount      = "layerCount"
	fieldEffectIntensity = "effectIntensity"
	fieldMovementSpeed   = "movementSpeed"
	fieldTurbulence      = "turbulence"
)

type colorTransition struct {
	from, to RGB
	progress float64
}

type scalarTransition struct {
	from, to float64
	progress float64
}

// DisplayPalette is the currently displayed (interpolated, energy-lit) set of
// named colors.
type DisplayPalette struct {
	Primary   RGB
	Secondary RGB
	Tertiary  RGB
	Accent    RGB
}

// DisplayComplexity is the interpolated complexity with energy reactivity
// applied.
type DisplayComplexity struct {
	ParticleCount   int
	GeometryDetail  float64
	LayerCount      float64
	EffectIntensity float64
	MovementSpeed   float64
	Turbulence      float64
}

// DisplayState is what the renderer consumes each tick.
type DisplayState struct {
	Palette    DisplayPalette
	Complexity DisplayComplexity
}

// Interpolator advances an in-progress cross-fade and produces the displayed
// palette/complexity. It has no say in when transitions start; that is the
// selector's job.
type Interpolator struct {
	step float64

	colors  map[string]*colorTransition
	scalars map[string]*scalarTransition
}

// NewInterpolator returns an Interpolator advancing by step per tick
// (default 0.02, i.e. a transition spans ~50 ticks).
func NewInterpolator(step float64) *Interpolator {
	if step <= 0 || step > 1 {
		step = 0.02
	}
	return &Interpolator{step: step}
}

// Begin snapshots from/to values for every interpolable field. Any previous
// transition records are discarded.
func (ip *Interpolator) Begin(from, to *Profile) {
	ip.colors = map[string]*colorTransition{
		fieldPrimary:   {from: mustColor(from.Palette.Primary), to: mustColor(to.Palette.Primary)},
		fieldSecondary: {from: mustColor(from.Palette.Secondary), to: mustColor(to.Palette.Secondary)},
		fieldTertiary:  {from: mustColor(from.Palette.Tertiary), to: mustColor(to.Palette.Tertiary)},
		fieldAccent:    {from: mustColor(from.Palette.Accent), to: mustColor(to.Palette.Accent)},
	}
	ip.scalars = map[string]*scalarTransition{
		fieldParticleCount:   {from: float64(from.Complexity.ParticleCount), to: float64(to.Complexity.ParticleCount)},
		fieldGeometryDetail:  {from: float64(from.Complexity.GeometryDetail), to: float64(to.Complexity.GeometryDetail)},
		fieldLayerCount:      {from: float64(from.Complexity.LayerCount), to: float64(to.Complexity.LayerCount)},
		fieldEffectIntensity: {from: from.Complexity.EffectIntensity, to: to.Complexity.EffectIntensity},
		fieldMovementSpeed:   {from: from.Complexity.MovementSpeed, to: to.Complexity.MovementSpeed},
		fieldTurbulence:      {from: from.Complexity.Turbulence, to: to.Complexity.Turbulence},
	}
}

// Advance moves every per-field progress forward one tick and returns the
// shared progress value in [0,1]. Progress never decreases.
func (ip *Interpolator) Advance() float64 {
	if !ip.Active() {
		return 1
	}
	progress := 1.0
	for _, c := range ip.colors {
		c.progress = math.Min(1, c.progress+ip.step)
		progress = math.Min(progress, c.progress)
	}
	for _, s := range ip.scalars {
		s.progress = math.Min(1, s.progress+ip.step)
		progress = math.Min(progress, s.progress)
	}
	return progress
}

// Active reports whether transition records exist.
func (ip *Interpolator) Active() bool {
	return len(ip.colors) > 0 || len(ip.scalars) > 0
}

// Clear drops all transition records; called when a transition commits.
func (ip *Interpolator) Clear() {
	ip.colors = nil
	ip.scalars = nil
}

// Display produces the currently shown palette/complexity. base is the
// settled profile used when no transition is active. energy drives the
// brightness multiplier and the complexity reactivity, which doubles while a
// transition is running.
func (ip *Interpolator) Display(base *Profile, energy float64) DisplayState {
	energy = utils.Clamp(energy, 0.0, 1.0)
	transitioning := ip.Active()

	var pal DisplayPalette
	var cpx DisplayComplexity
	if transitioning {
		pal = DisplayPalette{
			Primary:   lerpColor(ip.colors[fieldPrimary]),
			Secondary: lerpColor(ip.colors[fieldSecondary]),
			Tertiary:  lerpColor(ip.colors[fieldTertiary]),
			Accent:    lerpColor(ip.colors[fieldAccent]),
		}
		cpx = DisplayComplexity{
			ParticleCount:   int(lerpScalar(ip.scalars[fieldParticleCount])),
			GeometryDetail:  lerpScalar(ip.scalars[fieldGeometryDetail]),
			LayerCount:      lerpScalar(ip.scalars[fieldLayerCount]),
			EffectIntensity: lerpScalar(ip.scalars[fieldEffectIntensity]),
			MovementSpeed:   lerpScalar(ip.scalars[fieldMovementSpeed]),
			Turbulence:      lerpScalar(ip.scalars[fieldTurbulence]),
		}
	} else {
		pal = DisplayPalette{
			Primary:   mustColor(base.Palette.Primary),
			Secondary: mustColor(base.Palette.Secondary),
			Tertiary:  mustColor(base.Palette.Tertiary),
			Accent:    mustColor(base.Palette.Accent),
		}
		cpx = DisplayComplexity{
			ParticleCount:   base.Complexity.ParticleCount,
			GeometryDetail:  float64(base.Complexity.GeometryDetail),
			LayerCount:      float64(base.Complexity.LayerCount),
			EffectIntensity: base.Complexity.EffectIntensity,
			MovementSpeed:   base.Complexity.MovementSpeed,
			Turbulence:      base.Complexity.Turbulence,
		}
	}

	brightness := 0.6 + 0.5*energy
	pal.Primary = scaleColor(pal.Primary, brightness)
	pal.Secondary = scaleColor(pal.Secondary, brightness)
	pal.Tertiary = scaleColor(pal.Tertiary, brightness)
	pal.Accent = scaleColor(pal.Accent, brightness)

	// Energy reactivity on complexity; responsiveness doubles mid-transition.
	weight := 0.6
	if transitioning {
		weight = 1.2
	}
	factor := 1 + weight*(energy-0.5)
	cpx.ParticleCount = int(math.Max(0, float64(cpx.ParticleCount)*factor))
	cpx.EffectIntensity = utils.Clamp(cpx.EffectIntensity*factor, 0.0, 1.5)
	cpx.MovementSpeed = math.Max(0, cpx.MovementSpeed*factor)

	return DisplayState{Palette: pal, Complexity: cpx}
}

func lerpColor(t *colorTransition) RGB {
	if t == nil {
		return RGB{}
	}
	return RGB{
		R: uint8(utils.Lerp(float64(t.from.R), float64(t.to.R), t.progress)),
		G: uint8(utils.Lerp(float64(t.from.G), float64(t.to.G), t.progress)),
		B: uint8(utils.Lerp(float64(t.from.B), float64(t.to.B), t.progress)),
	}
}

func lerpScalar(t *scalarTransition) float64 {
	if t == nil {
		return 0
	}
	return utils.Lerp(t.from, t.to, t.progress)
}

func scaleColor(c RGB, factor float64) RGB {
	return RGB{
		R: uint8(utils.Clamp(float64(c.R)*factor, 0, 255)),
		G: uint8(utils.Clamp(float64(c.G)*factor, 0, 255)),
		B: uint8(utils.Clamp(float64(c.B)*factor, 0, 255)),
	}
}

// mustColor is safe after catalog validation; a bad hex degrades to black
// rather than panicking mid-tick.
func mustColor(hex string) RGB {
	c, err := ParseColor(hex)
	if err != nil {
		return RGB{}
	}
	return c
}
