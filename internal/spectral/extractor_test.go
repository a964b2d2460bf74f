package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testSampleRate = 44100.0
	testFFTSize    = 2048
)

func TestExtractSingleTone(t *testing.T) {
	e := NewExtractor(testSampleRate, testFFTSize)

	freq := make([]float64, testFFTSize/2)
	bin := 20
	freq[bin] = 1.0
	binHz := float64(bin) * testSampleRate / testFFTSize

	d := e.Extract(freq, nil)

	assert.InDelta(t, binHz, d.CentroidHz, 0.01)
	assert.InDelta(t, 0.0, d.BandwidthHz, 0.01)
	assert.InDelta(t, binHz, d.RolloffHz, 0.01)

	// 430.66 Hz is pitch class A.
	assert.InDelta(t, 1.0, d.Chroma[9], 1e-9)
	sum := 0.0
	for _, c := range d.Chroma {
		sum += c
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestExtractZeroEnergyIsFinite(t *testing.T) {
	e := NewExtractor(testSampleRate, testFFTSize)

	d := e.Extract(make([]float64, testFFTSize/2), make([]float64, 256))

	assert.Zero(t, d.CentroidHz)
	assert.Zero(t, d.BandwidthHz)
	assert.Zero(t, d.RolloffHz)
	for _, c := range d.Chroma {
		assert.False(t, math.IsNaN(c))
		assert.Zero(t, c)
	}
	for _, v := range d.Tonnetz {
		assert.False(t, math.IsNaN(v))
	}
}

func TestExtractEmptyInput(t *testing.T) {
	e := NewExtractor(testSampleRate, testFFTSize)
	d := e.Extract(nil, nil)
	assert.Equal(t, Descriptor{}, d)
}

func TestZeroCrossingRate(t *testing.T) {
	alternating := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	assert.InDelta(t, 1.0, ZeroCrossingRate(alternating), 1e-9)

	constant := []float64{0.5, 0.5, 0.5, 0.5}
	assert.Zero(t, ZeroCrossingRate(constant))

	assert.Zero(t, ZeroCrossingRate(nil))
	assert.Zero(t, ZeroCrossingRate([]float64{1}))
}

func TestTimbreBandsRespondToEnergy(t *testing.T) {
	e := NewExtractor(testSampleRate, testFFTSize)

	freq := make([]float64, testFFTSize/2)
	// Energy concentrated in the lowest band only.
	for i := 0; i < 20; i++ {
		freq[i] = 0.8
	}
	d := e.Extract(freq, nil)

	assert.Greater(t, d.TimbreBands[0], d.TimbreBands[12])
	assert.Greater(t, d.TimbreBands[0], 0.0)
}

func TestChromaIgnoresOutOfRangeBins(t *testing.T) {
	e := NewExtractor(testSampleRate, testFFTSize)

	freq := make([]float64, testFFTSize/2)
	freq[0] = 1.0 // 0 Hz, below the 80 Hz chroma floor
	d := e.Extract(freq, nil)

	for _, c := range d.Chroma {
		assert.Zero(t, c)
	}
}

func TestBrightnessNorm(t *testing.T) {
	assert.Zero(t, BrightnessNorm(0))
	assert.InDelta(t, 0.5, BrightnessNorm(4000), 1e-9)
	assert.Equal(t, 1.0, BrightnessNorm(20000))
}
