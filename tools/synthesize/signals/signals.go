/* Package signals contains logic to express and sample composite harmonic signals.
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
package signals

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultSampleRate is the sample rate of newly created signals.
	DefaultSampleRate = 44100
	// DefaultDuration is the duration of newly created signals.
	DefaultDuration Seconds = 1.0
)

var (
	// IndexOutOfRangeError means that an overtone index was outside the overtones of a signal.
	IndexOutOfRangeError = errors.New("index out of range")
	// MalformedInputError means that a value or record didn't have the expected shape.
	MalformedInputError = errors.New("malformed input")
)

// Hz is cycles per second.
type Hz float64

// Period returns the period of this frequency.
func (h Hz) Period() Seconds {
	return Seconds(1.0 / h)
}

// Seconds is a point in time.
type Seconds float64

// CheckFinite returns an error matching MalformedInputError if f is NaN or infinite.
func CheckFinite(name string, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%v is %v: %w", name, f, MalformedInputError)
	}
	return nil
}

// ParseFinite parses the text form of a finite number.
func ParseFinite(name, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%v %q: %v: %w", name, value, err, MalformedInputError)
	}
	if err := CheckFinite(name, f); err != nil {
		return 0, err
	}
	return f, nil
}

// Overtone is a single harmonic term of a composite signal.
type Overtone struct {
	// Name is the display label of this overtone, not necessarily unique.
	Name string
	// Amplitude is the peak amplitude, conventionally between 0.0 and 1.0.
	Amplitude float64
	// Frequency is the frequency of this overtone.
	Frequency Hz
	// Phase is the phase offset in radians.
	Phase float64
}

// NewOvertone returns the overtone a user starts out with when adding one to a signal.
func NewOvertone() Overtone {
	return Overtone{
		Name:      "New Overtone",
		Amplitude: 1.0,
		Frequency: 440,
		Phase:     0,
	}
}

// Check returns an error matching MalformedInputError if any number in o isn't finite.
func (o Overtone) Check() error {
	if err := CheckFinite("amplitude", o.Amplitude); err != nil {
		return err
	}
	if err := CheckFinite("frequency", float64(o.Frequency)); err != nil {
		return err
	}
	return CheckFinite("phase", o.Phase)
}

// Value returns the value of this overtone at time t.
func (o Overtone) Value(t Seconds) float64 {
	return o.Amplitude * math.Cos(2*math.Pi*float64(o.Frequency)*float64(t)+o.Phase)
}

// OvertoneField identifies an editable field of an overtone.
type OvertoneField int

const (
	// OvertoneName is the Name field.
	OvertoneName OvertoneField = iota
	// OvertoneAmplitude is the Amplitude field.
	OvertoneAmplitude
	// OvertoneFrequency is the Frequency field.
	OvertoneFrequency
	// OvertonePhase is the Phase field.
	OvertonePhase
)

func (f OvertoneField) String() string {
	switch f {
	case OvertoneName:
		return "Name"
	case OvertoneAmplitude:
		return "Amplitude"
	case OvertoneFrequency:
		return "Frequency"
	case OvertonePhase:
		return "Phase"
	}
	return "Unknown"
}

// ParseOvertoneField returns the field with the given name, ignoring case.
func ParseOvertoneField(s string) (OvertoneField, error) {
	for _, f := range []OvertoneField{OvertoneName, OvertoneAmplitude, OvertoneFrequency, OvertonePhase} {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown overtone field %q: %w", s, MalformedInputError)
}

// Signal is a named superposition of overtones, sampled at SampleRate for Duration.
type Signal struct {
	// Name is the display label of this signal.
	Name string
	// Duration is how long this signal is sampled.
	Duration Seconds
	// SampleRate is the number of samples per second.
	SampleRate int
	// Overtones are the harmonic terms of this signal, in edit order.
	Overtones []Overtone
}

// New returns a signal without overtones.
func New(name string, sampleRate int, duration Seconds) *Signal {
	return &Signal{
		Name:       name,
		Duration:   duration,
		SampleRate: sampleRate,
		Overtones:  []Overtone{},
	}
}

// NewDefault returns the signal a user starts out with when creating a new one.
func NewDefault() *Signal {
	return New("New Signal", DefaultSampleRate, DefaultDuration)
}

func (s *Signal) String() string {
	return fmt.Sprintf("%+v", *s)
}

// Clone returns a deep copy of s that shares no storage with it.
func (s *Signal) Clone() *Signal {
	c := *s
	c.Overtones = make([]Overtone, len(s.Overtones))
	copy(c.Overtones, s.Overtones)
	return &c
}

// Check returns an error matching MalformedInputError if the duration or any overtone
// number isn't finite.
func (s *Signal) Check() error {
	if err := CheckFinite("duration", float64(s.Duration)); err != nil {
		return fmt.Errorf("signal %q: %w", s.Name, err)
	}
	for idx, o := range s.Overtones {
		if err := o.Check(); err != nil {
			return fmt.Errorf("overtone %v of %q: %w", idx, s.Name, err)
		}
	}
	return nil
}

// ValueAt returns the sum of all overtones at time t.
// A signal without a positive sample rate has no defined values, and returns 0.
func (s *Signal) ValueAt(t Seconds) float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	sum := 0.0
	for _, o := range s.Overtones {
		sum += o.Value(t)
	}
	return sum
}

// NumSamples returns the number of samples in Duration at SampleRate, rounded to
// the closest integer. Durations that aren't positive and finite, or that don't fit
// in an int at SampleRate, have no samples.
func (s *Signal) NumSamples() int {
	if s.SampleRate <= 0 || !(s.Duration > 0) {
		return 0
	}
	n := math.Round(float64(s.SampleRate) * float64(s.Duration))
	if math.IsInf(n, 0) || n >= float64(math.MaxInt) {
		return 0
	}
	return int(n)
}

// Samples returns NumSamples samples of the signal, where sample n is the value at n/SampleRate seconds.
func (s *Signal) Samples() Float64Slice {
	n := s.NumSamples()
	result := make(Float64Slice, n)
	if n == 0 {
		return result
	}
	period := Hz(s.SampleRate).Period()
	for idx := range result {
		result[idx] = s.ValueAt(Seconds(idx) * period)
	}
	return result
}

// Rename sets the name of the signal.
func (s *Signal) Rename(name string) {
	s.Name = name
}

// SetDuration sets the duration of the signal.
func (s *Signal) SetDuration(d Seconds) {
	s.Duration = d
}

// SetSampleRate sets the sample rate of the signal.
func (s *Signal) SetSampleRate(rate int) {
	s.SampleRate = rate
}

func (s *Signal) checkIndex(idx int) error {
	if idx < 0 || idx >= len(s.Overtones) {
		return fmt.Errorf("overtone %v of %q with %v overtones: %w", idx, s.Name, len(s.Overtones), IndexOutOfRangeError)
	}
	return nil
}

// AddOvertone appends o and returns its index.
func (s *Signal) AddOvertone(o Overtone) int {
	s.Overtones = append(s.Overtones, o)
	return len(s.Overtones) - 1
}

// Overtone returns the overtone at idx.
func (s *Signal) Overtone(idx int) (Overtone, error) {
	if err := s.checkIndex(idx); err != nil {
		return Overtone{}, err
	}
	return s.Overtones[idx], nil
}

// SetOvertone replaces the overtone at idx. Overtones with numbers that aren't finite are rejected.
func (s *Signal) SetOvertone(idx int, o Overtone) error {
	if err := s.checkIndex(idx); err != nil {
		return err
	}
	if err := o.Check(); err != nil {
		return err
	}
	s.Overtones[idx] = o
	return nil
}

// RemoveOvertone removes the overtone at idx, keeping the order of the rest.
func (s *Signal) RemoveOvertone(idx int) error {
	if err := s.checkIndex(idx); err != nil {
		return err
	}
	s.Overtones = append(s.Overtones[:idx], s.Overtones[idx+1:]...)
	return nil
}

// EditOvertone sets one field of the overtone at idx from its text representation.
// Numeric fields must parse as finite floats, otherwise the overtone is left unchanged.
func (s *Signal) EditOvertone(idx int, field OvertoneField, value string) error {
	o, err := s.Overtone(idx)
	if err != nil {
		return err
	}
	if field == OvertoneName {
		o.Name = value
		s.Overtones[idx] = o
		return nil
	}
	f, err := ParseFinite(field.String(), value)
	if err != nil {
		return fmt.Errorf("overtone %v: %w", idx, err)
	}
	switch field {
	case OvertoneAmplitude:
		o.Amplitude = f
	case OvertoneFrequency:
		o.Frequency = Hz(f)
	case OvertonePhase:
		o.Phase = f
	default:
		return fmt.Errorf("unknown overtone field %v: %w", field, MalformedInputError)
	}
	s.Overtones[idx] = o
	return nil
}

// Point is a single (index, value) pair of a chart series.
type Point struct {
	Index int
	Value float64
}

// Float64Slice represents a sound buffer of floats, normally between -1 and 1.
type Float64Slice []float64

// EqTol returns whether the other float slice is equal to this one,
// within the given tolerance.
func (f Float64Slice) EqTol(o Float64Slice, tol float64) bool {
	if len(f) != len(o) {
		return false
	}
	for idx := range f {
		if math.Abs(f[idx]-o[idx]) > tol {
			return false
		}
	}
	return true
}

// Points returns the samples as a chart series.
func (f Float64Slice) Points() []Point {
	result := make([]Point, len(f))
	for idx, v := range f {
		result[idx] = Point{Index: idx, Value: v}
	}
	return result
}

// Peak returns the largest absolute value in the slice.
func (f Float64Slice) Peak() float64 {
	peak := 0.0
	for _, v := range f {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// PowerCalculator calculates power of signals.
type PowerCalculator struct {
	sum          float64
	sumOfSquares float64
	len          float64
}

// Feed feeds the calculator the next sample.
func (p *PowerCalculator) Feed(f float64) {
	p.sum += f
	p.sumOfSquares += f * f
	p.len++
}

// Power returns the power (variance) of the signal so far.
func (p *PowerCalculator) Power() float64 {
	if p.len == 0 {
		return 0
	}
	mean := p.sum / p.len
	return p.sumOfSquares/p.len - mean*mean
}

// Power returns the signal power of the slice.
func (f Float64Slice) Power() float64 {
	pc := &PowerCalculator{}
	for _, val := range f {
		pc.Feed(val)
	}
	return pc.Power()
}
