package main

import (
	"context"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/gordonklaus/portaudio"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/rotisserie/eris"

	"github.com/auraviz/auraviz/internal/engine"
)

// captureConfig is the resolved audio capture setup.
type captureConfig struct {
	device     *portaudio.DeviceInfo
	sampleRate float64
	frameSize  int
	channels   int
}

// resolveCapture picks the input device and fills in device defaults.
func resolveCapture(cfg runtimeOptions) (captureConfig, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return captureConfig{}, eris.Wrap(err, "enumerate audio devices")
	}

	var device *portaudio.DeviceInfo
	if cfg.deviceIndex >= 0 {
		if cfg.deviceIndex >= len(devices) {
			return captureConfig{}, eris.Errorf("device index %d out of range (%d devices)", cfg.deviceIndex, len(devices))
		}
		device = devices[cfg.deviceIndex]
	} else {
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return captureConfig{}, eris.Wrap(err, "resolve default audio input device")
		}
	}
	if device.MaxInputChannels < 1 {
		return captureConfig{}, eris.Errorf("device %s has no input channels; select a loopback/monitor device", device.Name)
	}

	out := captureConfig{
		device:     device,
		sampleRate: cfg.sampleRate,
		frameSize:  cfg.frameSize,
		channels:   cfg.channels,
	}
	if out.sampleRate <= 0 {
		out.sampleRate = device.DefaultSampleRate
	}
	if out.channels <= 0 || out.channels > int(device.MaxInputChannels) {
		out.channels = int(device.MaxInputChannels)
	}
	return out, nil
}

// captureAudio streams raw interleaved frames into out until ctx ends. The
// newest frame wins when the consumer falls behind.
func captureAudio(ctx context.Context, logger *slog.Logger, out chan []float32, cfg captureConfig) error {
	logger.Info("using audio input device",
		slog.String("name", cfg.device.Name),
		slog.Float64("sample_rate", cfg.sampleRate),
		slog.Int("channels", cfg.channels),
		slog.Int("frame_size", cfg.frameSize))

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   cfg.device,
			Channels: cfg.channels,
			Latency:  cfg.device.DefaultLowInputLatency,
		},
		SampleRate:      cfg.sampleRate,
		FramesPerBuffer: cfg.frameSize,
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		frame := make([]float32, len(in))
		copy(frame, in)

		select {
		case out <- frame:
		default:
			select {
			case <-out:
			default:
			}
			select {
			case out <- frame:
			default:
			}
		}
	})
	if err != nil {
		return eris.Wrap(err, "open audio stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return eris.Wrap(err, "start audio stream")
	}
	defer stream.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// frameBuilder turns raw interleaved capture frames into the engine's
// AudioFrame: mono mixdown, Hann window, FFT, magnitudes normalized to [0,1].
type frameBuilder struct {
	channels int
	window   []float64
	mono     []float64
	windowed []float64
	freq     []float64
}

func newFrameBuilder(frameSize, channels int) *frameBuilder {
	return &frameBuilder{
		channels: channels,
		window:   window.Hann(frameSize),
		windowed: make([]float64, frameSize),
		freq:     make([]float64, frameSize/2),
	}
}

// Build produces an immutable AudioFrame snapshot from one capture frame.
func (b *frameBuilder) Build(raw []float32) *engine.AudioFrame {
	b.mono = toMono(raw, b.channels, b.mono)
	if len(b.mono) != len(b.window) {
		return nil
	}

	copy(b.windowed, b.mono)
	for i := range b.windowed {
		b.windowed[i] *= b.window[i]
	}

	spectrum := fft.FFTReal(b.windowed)
	half := len(b.freq)
	// Normalize so a full-scale sine lands near 1.0.
	scale := 2.0 / float64(len(b.windowed))
	freq := make([]float64, half)
	for i := range half {
		freq[i] = math.Min(1, cmplx.Abs(spectrum[i])*scale)
	}

	timeDomain := make([]float64, len(b.mono))
	copy(timeDomain, b.mono)

	return &engine.AudioFrame{Freq: freq, Time: timeDomain}
}

// toMono averages interleaved multi-channel data into a mono frame.
func toMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	idx := 0
	for i := range frameLen {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}
