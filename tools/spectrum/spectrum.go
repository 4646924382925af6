/* spectrum contains functions analysing spectrum composition of signals.
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
package spectrum

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"runtime"

	"github.com/google-research/overtones/tools/synthesize/signals"
	"github.com/google-research/overtones/tools/workerpool"
	"gonum.org/v1/gonum/floats"
)

const (
	// jobsPerWorker is how many bin ranges each worker gets, to even out uneven scheduling.
	jobsPerWorker = 4
)

// Analyzer computes direct discrete Fourier transforms, spreading the bins over a worker pool.
type Analyzer struct {
	// Concurrency is the max number of bin ranges computed at the same time.
	// Zero or less means runtime.NumCPU().
	Concurrency int
	// Progress, if set, is called with the number of bins finished each time a range of bins is done.
	// It is called from multiple goroutines.
	Progress func(bins int)
}

// DFT returns the discrete Fourier transform of samples using the default Analyzer.
func DFT(samples []float64) []complex128 {
	return Analyzer{}.DFT(samples)
}

// bin returns sum(samples[n] * exp(-2*pi*i*k*n/N)).
func bin(samples []float64, k int) complex128 {
	n := len(samples)
	var re, im float64
	for idx, sample := range samples {
		// Reducing k*idx modulo n keeps the angle small and the result accurate for large n.
		sin, cos := math.Sincos(-2 * math.Pi * float64((k*idx)%n) / float64(n))
		re += sample * cos
		im += sample * sin
	}
	return complex(re, im)
}

// DFT returns the discrete Fourier transform of samples, by direct summation.
// The result has one bin per sample, and is empty for empty input.
func (a Analyzer) DFT(samples []float64) []complex128 {
	coeffs := make([]complex128, len(samples))
	if len(samples) == 0 {
		return coeffs
	}
	concurrency := a.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	binsPerJob := len(samples) / (concurrency * jobsPerWorker)
	if binsPerJob < 1 {
		binsPerJob = 1
	}
	wp := workerpool.New(concurrency)
	for fromVar := 0; fromVar < len(samples); fromVar += binsPerJob {
		from := fromVar
		to := from + binsPerJob
		if to > len(samples) {
			to = len(samples)
		}
		wp.Go(func() error {
			for k := from; k < to; k++ {
				coeffs[k] = bin(samples, k)
			}
			if a.Progress != nil {
				a.Progress(to - from)
			}
			return nil
		})
	}
	// No job returns an error.
	wp.Wait()
	return coeffs
}

// S is the spectrum of a sampled signal.
type S struct {
	// Coeffs are the DFT coefficients, one per sample.
	Coeffs []complex128
	// BinWidth is the frequency distance between two bins.
	BinWidth signals.Hz
	// Rate is the sample rate of the analysed signal.
	Rate signals.Hz
}

// Compute returns the spectrum of buffer, sampled at rate, using the default Analyzer.
func Compute(buffer signals.Float64Slice, rate signals.Hz) *S {
	return Analyzer{}.Compute(buffer, rate)
}

// Compute returns the spectrum of buffer, sampled at rate.
func (a Analyzer) Compute(buffer signals.Float64Slice, rate signals.Hz) *S {
	spec := &S{
		Rate:   rate,
		Coeffs: a.DFT(buffer),
	}
	if len(buffer) > 0 {
		spec.BinWidth = rate / signals.Hz(len(buffer))
	}
	return spec
}

// Magnitudes returns the absolute value of each coefficient.
func (s *S) Magnitudes() []float64 {
	res := make([]float64, len(s.Coeffs))
	for idx := range s.Coeffs {
		res[idx] = cmplx.Abs(s.Coeffs[idx])
	}
	return res
}

// Phases returns the argument of each coefficient.
func (s *S) Phases() []float64 {
	res := make([]float64, len(s.Coeffs))
	for idx := range s.Coeffs {
		res[idx] = cmplx.Phase(s.Coeffs[idx])
	}
	return res
}

// Gains returns the magnitudes normalized so that a full scale sine has a gain of 1.0 in its bin.
func (s *S) Gains() []float64 {
	res := s.Magnitudes()
	if len(res) > 0 {
		floats.Scale(2/float64(len(res)), res)
	}
	return res
}

// Points returns the magnitudes as a chart series.
func (s *S) Points() []signals.Point {
	return signals.Float64Slice(s.Magnitudes()).Points()
}

// Peak is a local maximum in a spectrum.
type Peak struct {
	Frequency signals.Hz
	Gain      float64
}

// Peaks returns the local maxima of the lower half of the spectrum that reach over ratio
// of the max gain across the lower half, excluding the DC bin.
func (s *S) Peaks(ratio float64) []Peak {
	gains := s.Gains()
	half := len(gains) / 2
	if half < 2 {
		return nil
	}
	cutoff := floats.Max(gains[1:half]) * ratio
	peaks := []Peak{}
	for bin := 1; bin < half; bin++ {
		if gains[bin] > gains[bin-1] && gains[bin] >= gains[bin+1] && gains[bin] > cutoff {
			peaks = append(peaks, Peak{
				Frequency: signals.Hz(bin) * s.BinWidth,
				Gain:      gains[bin],
			})
		}
	}
	return peaks
}

// Print renders the magnitudes of the lower half of the spectrum as a horizontal bar chart of the given width.
func (s *S) Print(width int, w io.Writer) {
	half := len(s.Coeffs) / 2
	if half == 0 {
		return
	}
	headers := []string{}
	maxHeaderLen := 0
	for i := 0; i < half; i++ {
		header := fmt.Sprintf("%.2fHz ", signals.Hz(i)*s.BinWidth)
		if len(header) > maxHeaderLen {
			maxHeaderLen = len(header)
		}
		headers = append(headers, header)
	}
	gains := s.Magnitudes()[:half]
	maxGain := floats.Max(gains)
	gainLen := width - maxHeaderLen
	widthPerGain := 0.0
	if maxGain > 0 {
		widthPerGain = float64(gainLen) / maxGain
	}
	for i := 0; i < half; i++ {
		header := bytes.NewBufferString(headers[i])
		for header.Len() < maxHeaderLen {
			fmt.Fprint(header, " ")
		}
		gainPart := &bytes.Buffer{}
		for gainPart.Len() < int(gains[i]*widthPerGain) {
			fmt.Fprintf(gainPart, "*")
		}
		fmt.Fprintf(w, "%v%v\n", header.String(), gainPart.String())
	}
}
