package spectral

import (
	"math"

	"github.com/auraviz/auraviz/internal/utils"
)

// Number of descriptor dimensions for the coarse timbre/pitch summaries.
const (
	NumTimbreBands = 13
	NumChromaBins  = 12
	NumTonnetzAxes = 6
)

// Chroma accumulation is restricted to bins whose center frequency maps to a
// musically useful pitch range.
const (
	chromaMinHz = 80.0
	chromaMaxHz = 8000.0
)

// Descriptor is the per-tick spectral summary consumed by the level, beat and
// classification stages. One immutable value per analysis frame.
type Descriptor struct {
	CentroidHz       float64
	BandwidthHz      float64
	RolloffHz        float64
	ZeroCrossingRate float64
	TimbreBands      [NumTimbreBands]float64
	Chroma           [NumChromaBins]float64
	Tonnetz          [NumTonnetzAxes]float64
	TotalEnergy      float64
}

// Extractor derives a Descriptor from a frequency-magnitude buffer and the
// matching time-domain frame. It is stateless apart from precalculated
// per-bin lookup tables, which are rebuilt if the frame length changes.
type Extractor struct {
	sampleRate   float64
	fftSize      int
	binWidth     float64
	rolloffRatio float64

	freqBins     []float64
	pitchClasses []int // -1 when the bin is outside the chroma range
}

// NewExtractor constructs an Extractor for the given capture configuration.
// fftSize is the full transform size; the magnitude buffer handed to Extract
// is expected to hold fftSize/2 bins.
func NewExtractor(sampleRate float64, fftSize int) *Extractor {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if fftSize <= 0 {
		fftSize = 2048
	}
	return &Extractor{
		sampleRate:   sampleRate,
		fftSize:      fftSize,
		binWidth:     sampleRate / float64(fftSize),
		rolloffRatio: 0.85,
	}
}

// Extract computes the full descriptor set for one tick. All outputs are
// finite: zero-energy input produces a zero descriptor rather than NaN.
func (e *Extractor) Extract(freq, timeDomain []float64) Descriptor {
	var d Descriptor
	if len(freq) == 0 {
		return d
	}
	e.ensureTables(len(freq))

	var magnitudeSum float64
	var centroidNumerator float64
	for i, mag := range freq {
		magnitudeSum += mag
		centroidNumerator += e.freqBins[i] * mag
		d.TotalEnergy += mag * mag
	}

	if magnitudeSum > 1e-9 {
		d.CentroidHz = centroidNumerator / magnitudeSum
		d.BandwidthHz = e.computeBandwidth(freq, d.CentroidHz, magnitudeSum)
		d.RolloffHz = e.computeRolloff(freq, magnitudeSum)
	}

	d.ZeroCrossingRate = ZeroCrossingRate(timeDomain)
	d.TimbreBands = e.computeTimbreBands(freq)
	d.Chroma = e.computeChroma(freq)
	d.Tonnetz = projectTonnetz(d.Chroma)
	return d
}

// computeBandwidth returns the magnitude-weighted RMS deviation from the
// centroid.
func (e *Extractor) computeBandwidth(freq []float64, centroid, magnitudeSum float64) float64 {
	var numerator float64
	for i, mag := range freq {
		diff := e.freqBins[i] - centroid
		numerator += mag * diff * diff
	}
	return math.Sqrt(numerator / magnitudeSum)
}

// computeRolloff returns the frequency below which rolloffRatio of the
// cumulative magnitude lies.
func (e *Extractor) computeRolloff(freq []float64, magnitudeSum float64) float64 {
	target := magnitudeSum * e.rolloffRatio
	var cumulative float64
	for i, mag := range freq {
		cumulative += mag
		if cumulative >= target {
			return e.freqBins[i]
		}
	}
	return e.sampleRate / 2
}

// computeTimbreBands summarises the spectrum as log energy over 13 equal-width
// bin ranges. This is a coarse mel-like sketch, not a perceptual filterbank.
func (e *Extractor) computeTimbreBands(freq []float64) [NumTimbreBands]float64 {
	var bands [NumTimbreBands]float64
	bandSize := len(freq) / NumTimbreBands
	if bandSize == 0 {
		bandSize = 1
	}
	for b := 0; b < NumTimbreBands; b++ {
		start := b * bandSize
		end := start + bandSize
		if b == NumTimbreBands-1 || end > len(freq) {
			end = len(freq)
		}
		if start >= len(freq) {
			break
		}
		var energy float64
		for i := start; i < end; i++ {
			energy += freq[i] * freq[i]
		}
		bands[b] = math.Log1p(energy / float64(end-start))
	}
	return bands
}

// computeChroma folds bin magnitudes into 12 pitch classes and normalizes the
// result to sum to 1. Bins outside [chromaMinHz, chromaMaxHz] are skipped; an
// empty range yields an all-zero vector.
func (e *Extractor) computeChroma(freq []float64) [NumChromaBins]float64 {
	var chroma [NumChromaBins]float64
	var total float64
	for i, mag := range freq {
		pc := e.pitchClasses[i]
		if pc < 0 {
			continue
		}
		chroma[pc] += mag
		total += mag
	}
	if total > 1e-9 {
		for i := range chroma {
			chroma[i] /= total
		}
	}
	return chroma
}

// projectTonnetz maps chroma bins 0, 3, 4 and 7 onto the circle-of-fifths,
// minor-third and major-third axes using fixed trigonometric projections.
func projectTonnetz(chroma [NumChromaBins]float64) [NumTonnetzAxes]float64 {
	var t [NumTonnetzAxes]float64
	for _, pc := range [...]int{0, 3, 4, 7} {
		weight := chroma[pc]
		angle := float64(pc) * 2 * math.Pi / float64(NumChromaBins)
		t[0] += weight * math.Sin(angle*7)
		t[1] += weight * math.Cos(angle*7)
		t[2] += weight * math.Sin(angle*3)
		t[3] += weight * math.Cos(angle*3)
		t[4] += weight * math.Sin(angle*4)
		t[5] += weight * math.Cos(angle*4)
	}
	return t
}

// ZeroCrossingRate returns the fraction of sign changes across consecutive
// time-domain samples.
func ZeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	var crossings int
	prev := frame[0]
	for i := 1; i < len(frame); i++ {
		curr := frame[i]
		if (prev >= 0 && curr < 0) || (prev < 0 && curr >= 0) {
			crossings++
		}
		prev = curr
	}
	return float64(crossings) / float64(len(frame)-1)
}

// ensureTables rebuilds the per-bin lookup tables when the magnitude buffer
// length changes.
func (e *Extractor) ensureTables(numBins int) {
	if len(e.freqBins) == numBins {
		return
	}
	e.freqBins = make([]float64, numBins)
	e.pitchClasses = make([]int, numBins)
	for i := 0; i < numBins; i++ {
		f := float64(i) * e.binWidth
		e.freqBins[i] = f
		e.pitchClasses[i] = pitchClassFor(f)
	}
}

// pitchClassFor maps a frequency to its pitch class via
// 12*log2(f/440)+69 mod 12, or -1 when outside the chroma range.
func pitchClassFor(f float64) int {
	if f < chromaMinHz || f > chromaMaxHz {
		return -1
	}
	midi := int(math.Round(12*math.Log2(f/440.0))) + 69
	return ((midi % NumChromaBins) + NumChromaBins) % NumChromaBins
}

// BrightnessNorm maps a centroid to [0,1] against the audible upper bound used
// by the classifier heuristics.
func BrightnessNorm(centroidHz float64) float64 {
	return utils.Clamp(centroidHz/chromaMaxHz, 0.0, 1.0)
}
