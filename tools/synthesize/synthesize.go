/* The synthesize command renders, analyzes and plays signals defined as sums of overtones.
 *
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cheggaaa/pb"
	"github.com/google-research/overtones/tools/analysis"
	"github.com/google-research/overtones/tools/document"
	"github.com/google-research/overtones/tools/pcm"
	"github.com/google-research/overtones/tools/playback"
	"github.com/google-research/overtones/tools/playback/speaker"
	"github.com/google-research/overtones/tools/spectrum"
	"github.com/google-research/overtones/tools/synthesize/records"
	"github.com/google-research/overtones/tools/synthesize/signals"
	"go.uber.org/zap"
)

var (
	documentPath       = flag.String("document", "", "JSON document with a 'signals' list of signal definitions.")
	signalName         = flag.String("signal", "", "Name of the signal in the document to use. Defaults to the first one.")
	signalSpec         = flag.String("signal_spec", "", "The signal to use, given as a JSON signal definition. Overrides -document.")
	destination        = flag.String("destination", "", "WAV file to store the synthesized samples in.")
	printSpectrumWidth = flag.Int("print_spectrum_width", 0, "If > 0, print the spectrum of the signal as a chart this many characters wide.")
	tfRecordOutput     = flag.String("tfrecord_output", "", "TFRecord file to store the signal and its spectrum in as a tf.Example.")
	play               = flag.Bool("play", false, "Play the signal on the default output device.")
	concurrency        = flag.Int("concurrency", 0, "Number of goroutines computing the spectrum. Zero means one per CPU.")
	peakRatio          = flag.Float64("peak_ratio", 0.1, "Spectrum peaks with a gain below this ratio of the highest peak are not logged.")
)

func loadSignal() (*signals.Signal, error) {
	if *signalSpec != "" {
		var v interface{}
		if err := json.Unmarshal([]byte(*signalSpec), &v); err != nil {
			return nil, err
		}
		return records.DecodeSignal(v)
	}
	v, err := document.ReadProperty(*documentPath, "signals")
	if err != nil {
		return nil, err
	}
	sigs, err := records.Decode(v)
	if err != nil {
		return nil, err
	}
	for _, sig := range sigs {
		if *signalName == "" || sig.Name == *signalName {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("no signal named %q in %q: %w", *signalName, *documentPath, signals.MalformedInputError)
}

func main() {
	flag.Parse()
	if *signalSpec == "" && *documentPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *destination == "" && *printSpectrumWidth <= 0 && *tfRecordOutput == "" && !*play {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sig, err := loadSignal()
	if err != nil {
		logger.Fatal("unable to load signal", zap.String("document", *documentPath), zap.String("signal", *signalName), zap.Error(err))
	}
	logger.Info("loaded signal", zap.Stringer("signal", sig), zap.Int("samples", sig.NumSamples()))

	if *destination != "" {
		samples := sig.Samples()
		if peak := samples.Peak(); peak > 1 {
			logger.Warn("samples will be clamped", zap.Float64("peak", peak))
		}
		writer, err := os.Create(*destination)
		if err != nil {
			logger.Fatal("unable to create WAV file", zap.Error(err))
		}
		if err := pcm.WriteWAV(writer, samples, sig.SampleRate); err != nil {
			logger.Fatal("unable to write WAV file", zap.Error(err))
		}
		if err := writer.Close(); err != nil {
			logger.Fatal("unable to close WAV file", zap.Error(err))
		}
		logger.Info("wrote WAV file", zap.String("destination", *destination))
	}

	if *printSpectrumWidth > 0 || *tfRecordOutput != "" {
		bar := pb.StartNew(sig.NumSamples()).Prefix("DFT")
		analyzer := spectrum.Analyzer{
			Concurrency: *concurrency,
			Progress: func(bins int) {
				bar.Add(bins)
			},
		}
		a := analysis.Analyze(sig, analyzer)
		bar.Finish()
		logger.Info("analyzed signal", zap.Float64("power", a.Power))

		if *printSpectrumWidth > 0 {
			a.Spectrum.Print(*printSpectrumWidth, os.Stdout)
			for _, peak := range a.Spectrum.Peaks(*peakRatio) {
				logger.Info("spectrum peak", zap.Float64("frequency", float64(peak.Frequency)), zap.Float64("gain", peak.Gain))
			}
		}

		if *tfRecordOutput != "" {
			writer, err := os.Create(*tfRecordOutput)
			if err != nil {
				logger.Fatal("unable to create TFRecord file", zap.Error(err))
			}
			if err := analysis.WriteTFRecord(writer, a); err != nil {
				logger.Fatal("unable to write TFRecord file", zap.Error(err))
			}
			if err := writer.Close(); err != nil {
				logger.Fatal("unable to close TFRecord file", zap.Error(err))
			}
			logger.Info("wrote TFRecord file", zap.String("destination", *tfRecordOutput))
		}
	}

	if *play {
		player := playback.New(&speaker.Device{}, pcm.Default, logger)
		if err := player.Play(sig); err != nil {
			logger.Fatal("unable to play signal", zap.Error(err))
		}
		player.Wait()
	}
}
