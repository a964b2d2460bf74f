// Package classify maps the smoothed level and spectral descriptors to a
// coarse genre label, an energy estimate and an energy trend. The logic is a
// tuned decision list, deliberately not a trained model; the Classifier
// interface exists so a real model can be substituted behind the same
// contract later.
package classify

import (
	"time"

	"github.com/auraviz/auraviz/internal/memory"
	"github.com/auraviz/auraviz/internal/spectral"
	"github.com/auraviz/auraviz/internal/utils"
)

// Trend describes the short-horizon energy direction.
type Trend int

const (
	TrendStable Trend = iota
	TrendRising
	TrendFalling
)

// String returns the lowercase trend name.
func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	default:
		return "stable"
	}
}

// The closed genre label set. Anything the decision list cannot place lands
// on GenreUnknown.
const (
	GenreElectronic = "electronic"
	GenreHouse      = "house"
	GenreHipHop     = "hip-hop"
	GenreAmbient    = "ambient"
	GenrePop        = "pop"
	GenreRock       = "rock"
	GenreUnknown    = "unknown"
)

// Input is everything a classification can draw on for one tick.
type Input struct {
	Level        float64
	Descriptor   spectral.Descriptor
	AudioPresent bool
	Now          time.Time
}

// Result is the classification output. Safe defaults (unknown/stable/0.5)
// are produced for missing input; classification never halts the pipeline.
type Result struct {
	Genre           string
	GenreConfidence float64
	Energy          float64
	Trend           Trend
}

// Classifier is the pluggable contract for genre/energy estimation.
type Classifier interface {
	Classify(in Input) Result
}

const (
	trendWindow    = 3
	trendThreshold = 0.1

	maxConfidence = 0.95
)

// Heuristic is the default Classifier: a threshold decision list over
// brightness, bandwidth and level. Recent energy samples are written to the
// short-term memory scope and read back for trend smoothing.
type Heuristic struct {
	mem *memory.Store
}

// NewHeuristic builds the default classifier. mem may be nil; the trend then
// degrades to stable.
func NewHeuristic(mem *memory.Store) *Heuristic {
	return &Heuristic{mem: mem}
}

// Classify implements Classifier.
func (h *Heuristic) Classify(in Input) Result {
	res := Result{Genre: GenreUnknown, Energy: 0.5, Trend: TrendStable}

	// No audio and no spectral evidence at all: keep the safe defaults with a
	// token confidence instead of classifying noise.
	if !in.AudioPresent && in.Descriptor.TotalEnergy == 0 {
		res.GenreConfidence = 0.2
		res.Trend = h.trend(res.Energy, in.Now)
		return res
	}

	brightness := spectral.BrightnessNorm(in.Descriptor.CentroidHz)
	bandwidthNorm := utils.Clamp(in.Descriptor.BandwidthHz/4000.0, 0.0, 1.0)

	// Spectral proxy for energy; real audio level dominates 80/20 when
	// available.
	proxy := utils.Clamp(0.6*brightness+0.4*bandwidthNorm, 0.0, 1.0)
	if in.AudioPresent {
		res.Energy = utils.Clamp(0.8*in.Level+0.2*proxy, 0.0, 1.0)
	} else {
		res.Energy = proxy
	}

	res.Genre, res.GenreConfidence = h.decideGenre(brightness, bandwidthNorm, in)
	res.Trend = h.trend(res.Energy, in.Now)
	return res
}

// decideGenre walks the threshold decision list. Confidence starts from a
// base (higher with real audio) and earns a small bonus per matched rule,
// capped at 0.95.
func (h *Heuristic) decideGenre(brightness, bandwidthNorm float64, in Input) (string, float64) {
	confidence := 0.35
	if in.AudioPresent {
		confidence = 0.5
	}

	zcr := in.Descriptor.ZeroCrossingRate
	level := in.Level

	genre := GenreUnknown
	switch {
	case brightness > 0.55 && level > 0.6 && bandwidthNorm > 0.5:
		genre = GenreElectronic
		confidence += 0.15
		if zcr > 0.2 {
			confidence += 0.05
		}
	case brightness > 0.4 && level > 0.55 && bandwidthNorm <= 0.5:
		genre = GenreHouse
		confidence += 0.12
	case brightness < 0.3 && level > 0.5:
		genre = GenreHipHop
		confidence += 0.12
		if bandwidthNorm < 0.35 {
			confidence += 0.05
		}
	case level < 0.3 && brightness < 0.4:
		genre = GenreAmbient
		confidence += 0.1
	case brightness > 0.35 && bandwidthNorm > 0.45 && zcr > 0.15:
		genre = GenreRock
		confidence += 0.1
	case level >= 0.3 && level <= 0.7:
		genre = GenrePop
		confidence += 0.08
	}

	if genre == GenreUnknown {
		confidence = utils.Clamp(confidence-0.15, 0.05, maxConfidence)
	}
	return genre, utils.Clamp(confidence, 0.0, maxConfidence)
}

// trend compares the mean of the last three energy samples with the mean of
// the three before, using the short-term memory scope as the sample source.
func (h *Heuristic) trend(energy float64, now time.Time) Trend {
	if h.mem == nil {
		return TrendStable
	}
	h.mem.Append(memory.ShortTerm, "energy", energy, now)

	samples := h.mem.Recent(memory.ShortTerm, "energy", trendWindow*2)
	if len(samples) < trendWindow*2 {
		return TrendStable
	}

	var older, newer float64
	for i := 0; i < trendWindow; i++ {
		older += samples[i].Value
		newer += samples[trendWindow+i].Value
	}
	older /= trendWindow
	newer /= trendWindow

	switch {
	case newer-older > trendThreshold:
		return TrendRising
	case older-newer > trendThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}
