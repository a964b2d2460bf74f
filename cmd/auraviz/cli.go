package main

import (
	"flag"
	"time"
)

type runtimeOptions struct {
	deviceIndex int
	sampleRate  float64
	frameSize   int
	channels    int
	tickRate    time.Duration
	inputGain   float64
	sensitivity float64
	memoryPath  string
	listenAddr  string
	visualize   bool
	debug       bool
}

func parseCLIFlags() runtimeOptions {
	var (
		cfg    runtimeOptions
		tickMs int
	)

	flag.IntVar(&cfg.deviceIndex, "device", -1, "audio input device index (-1 = system default)")
	flag.Float64Var(&cfg.sampleRate, "sample-rate", 0, "capture sample rate (0 = device default)")
	flag.IntVar(&cfg.frameSize, "frame-size", 2048, "analysis frame size in samples (power of two)")
	flag.IntVar(&cfg.channels, "channels", 2, "number of input channels to capture (<= device max)")
	flag.IntVar(&tickMs, "tick-ms", 33, "engine tick interval in milliseconds")
	flag.Float64Var(&cfg.inputGain, "gain", 1.0, "input gain applied to the raw level")
	flag.Float64Var(&cfg.sensitivity, "sensitivity", 1.0, "level sensitivity multiplier")
	flag.StringVar(&cfg.memoryPath, "memory-file", "", "path for long-term memory persistence (empty = disabled)")
	flag.StringVar(&cfg.listenAddr, "listen", "", "address for the renderer websocket (empty = disabled)")
	flag.BoolVar(&cfg.visualize, "visualize", false, "render realtime terminal visualization (logs go to stderr)")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfg.tickRate = time.Duration(tickMs) * time.Millisecond

	return cfg
}
