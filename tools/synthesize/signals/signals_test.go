/*
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
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	tolerance = 0.001
)

func TestOvertoneValue(t *testing.T) {
	for _, tc := range []struct {
		overtone Overtone
		t        Seconds
		want     float64
	}{
		{
			overtone: Overtone{Amplitude: 1, Frequency: 1},
			t:        0,
			want:     1,
		},
		{
			overtone: Overtone{Amplitude: 0.5, Frequency: 1},
			t:        0.5,
			want:     -0.5,
		},
		{
			overtone: Overtone{Amplitude: 1, Frequency: 440, Phase: math.Pi / 2},
			t:        0,
			want:     0,
		},
		{
			overtone: Overtone{Amplitude: -2, Frequency: -1},
			t:        0.25,
			want:     0,
		},
	} {
		if got := tc.overtone.Value(tc.t); math.Abs(got-tc.want) > tolerance {
			t.Errorf("%+v.Value(%v) = %v, wanted %v", tc.overtone, tc.t, got, tc.want)
		}
	}
}

func TestValueAtZero(t *testing.T) {
	for _, overtones := range [][]Overtone{
		nil,
		{{Amplitude: 1, Frequency: 3, Phase: 0.3}},
		{{Amplitude: 0.2, Frequency: 100, Phase: 1}, {Amplitude: 0.7, Frequency: 5, Phase: -2}, {Amplitude: -1, Frequency: 1, Phase: math.Pi}},
	} {
		s := New("s", 100, 1)
		want := 0.0
		for _, o := range overtones {
			s.AddOvertone(o)
			want += o.Amplitude * math.Cos(o.Phase)
		}
		if got := s.ValueAt(0); math.Abs(got-want) > 1e-12 {
			t.Errorf("%+v.ValueAt(0) = %v, wanted %v", s, got, want)
		}
	}
}

func TestSamples(t *testing.T) {
	for _, tc := range []struct {
		desc      string
		signal    *Signal
		wantedLen int
		want      Float64Slice
	}{
		{
			desc: "one cycle at eight samples per second",
			signal: &Signal{
				SampleRate: 8,
				Duration:   1,
				Overtones:  []Overtone{{Amplitude: 1, Frequency: 1}},
			},
			wantedLen: 8,
			want: Float64Slice{
				1, math.Sqrt2 / 2, 0, -math.Sqrt2 / 2, -1, -math.Sqrt2 / 2, 0, math.Sqrt2 / 2,
			},
		},
		{
			desc:      "empty overtones produce silence",
			signal:    New("empty", 4, 1.5),
			wantedLen: 6,
			want:      Float64Slice{0, 0, 0, 0, 0, 0},
		},
		{
			desc:      "CD rate for one second",
			signal:    &Signal{SampleRate: 44100, Duration: 1, Overtones: []Overtone{NewOvertone()}},
			wantedLen: 44100,
		},
		{
			desc:      "count is rounded",
			signal:    New("rounded", 3, 0.5),
			wantedLen: 2,
		},
		{
			desc:      "zero sample rate",
			signal:    &Signal{SampleRate: 0, Duration: 1, Overtones: []Overtone{NewOvertone()}},
			wantedLen: 0,
			want:      Float64Slice{},
		},
		{
			desc:      "negative sample rate",
			signal:    &Signal{SampleRate: -10, Duration: 1, Overtones: []Overtone{NewOvertone()}},
			wantedLen: 0,
			want:      Float64Slice{},
		},
		{
			desc:      "negative duration",
			signal:    &Signal{SampleRate: 10, Duration: -1, Overtones: []Overtone{NewOvertone()}},
			wantedLen: 0,
			want:      Float64Slice{},
		},
		{
			desc:      "infinite duration",
			signal:    New("inf", 44100, Seconds(math.Inf(1))),
			wantedLen: 0,
			want:      Float64Slice{},
		},
		{
			desc:      "NaN duration",
			signal:    New("nan", 44100, Seconds(math.NaN())),
			wantedLen: 0,
			want:      Float64Slice{},
		},
		{
			desc:      "sample count overflowing an int",
			signal:    New("long", 44100, 1e300),
			wantedLen: 0,
			want:      Float64Slice{},
		},
	} {
		got := tc.signal.Samples()
		if len(got) != tc.wantedLen {
			t.Errorf("%v: got %v samples, wanted %v", tc.desc, len(got), tc.wantedLen)
			continue
		}
		if tc.want != nil && !got.EqTol(tc.want, tolerance) {
			t.Errorf("%v: got %+v, wanted %+v", tc.desc, got, tc.want)
		}
		if again := tc.signal.Samples(); !again.EqTol(got, 0) {
			t.Errorf("%v: second call produced %+v, first %+v", tc.desc, again, got)
		}
	}
}

func TestValueAtWithoutSampleRate(t *testing.T) {
	s := &Signal{Overtones: []Overtone{{Amplitude: 1, Frequency: 1}}}
	if got := s.ValueAt(0); got != 0 {
		t.Errorf("got %v, wanted 0", got)
	}
}

func TestRemoveOvertone(t *testing.T) {
	s := New("s", 10, 1)
	s.AddOvertone(Overtone{Name: "a"})
	s.AddOvertone(Overtone{Name: "b"})
	s.AddOvertone(Overtone{Name: "c"})
	before := s.Clone()

	for _, idx := range []int{3, 17, -1} {
		if err := s.RemoveOvertone(idx); !errors.Is(err, IndexOutOfRangeError) {
			t.Errorf("RemoveOvertone(%v) = %v, wanted IndexOutOfRangeError", idx, err)
		}
		if diff := cmp.Diff(before, s); diff != "" {
			t.Errorf("RemoveOvertone(%v) modified the signal: %v", idx, diff)
		}
	}

	if err := s.RemoveOvertone(1); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Overtone{{Name: "a"}, {Name: "c"}}, s.Overtones); diff != "" {
		t.Errorf("unexpected overtones after removal: %v", diff)
	}
}

func TestEditOvertone(t *testing.T) {
	for _, tc := range []struct {
		field       OvertoneField
		value       string
		idx         int
		want        Overtone
		wantedError error
	}{
		{
			field: OvertoneName,
			value: "fundamental",
			want:  Overtone{Name: "fundamental", Amplitude: 1, Frequency: 440},
		},
		{
			field: OvertoneAmplitude,
			value: "0.25",
			want:  Overtone{Name: "New Overtone", Amplitude: 0.25, Frequency: 440},
		},
		{
			field: OvertoneFrequency,
			value: " -880 ",
			want:  Overtone{Name: "New Overtone", Amplitude: 1, Frequency: -880},
		},
		{
			field: OvertonePhase,
			value: "3.14",
			want:  Overtone{Name: "New Overtone", Amplitude: 1, Frequency: 440, Phase: 3.14},
		},
		{
			field:       OvertoneAmplitude,
			value:       "loud",
			want:        NewOvertone(),
			wantedError: MalformedInputError,
		},
		{
			field:       OvertoneAmplitude,
			value:       "Inf",
			want:        NewOvertone(),
			wantedError: MalformedInputError,
		},
		{
			field:       OvertoneFrequency,
			value:       "NaN",
			want:        NewOvertone(),
			wantedError: MalformedInputError,
		},
		{
			field:       OvertonePhase,
			value:       "-infinity",
			want:        NewOvertone(),
			wantedError: MalformedInputError,
		},
		{
			field:       OvertonePhase,
			value:       "1",
			idx:         1,
			want:        NewOvertone(),
			wantedError: IndexOutOfRangeError,
		},
	} {
		s := New("s", 10, 1)
		s.AddOvertone(NewOvertone())
		err := s.EditOvertone(tc.idx, tc.field, tc.value)
		if !errors.Is(err, tc.wantedError) {
			t.Errorf("EditOvertone(%v, %v, %q) = %v, wanted %v", tc.idx, tc.field, tc.value, err, tc.wantedError)
		}
		if diff := cmp.Diff(tc.want, s.Overtones[0]); diff != "" {
			t.Errorf("EditOvertone(%v, %v, %q) produced %+v, wanted %+v: %v", tc.idx, tc.field, tc.value, s.Overtones[0], tc.want, diff)
		}
	}
}

func TestSetOvertone(t *testing.T) {
	s := New("s", 10, 1)
	s.AddOvertone(NewOvertone())
	for _, o := range []Overtone{
		{Amplitude: math.NaN()},
		{Frequency: Hz(math.Inf(-1))},
		{Phase: math.Inf(1)},
	} {
		if err := s.SetOvertone(0, o); !errors.Is(err, MalformedInputError) {
			t.Errorf("SetOvertone(0, %+v) = %v, wanted MalformedInputError", o, err)
		}
	}
	if err := s.SetOvertone(1, NewOvertone()); !errors.Is(err, IndexOutOfRangeError) {
		t.Errorf("got %v, wanted IndexOutOfRangeError", err)
	}
	want := Overtone{Name: "set", Amplitude: 0.5, Frequency: 220, Phase: 1}
	if err := s.SetOvertone(0, want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Overtone{want}, s.Overtones); diff != "" {
		t.Errorf("got overtones %+v, wanted %+v: %v", s.Overtones, want, diff)
	}
}

func TestCheck(t *testing.T) {
	for _, tc := range []struct {
		signal      *Signal
		wantedError error
	}{
		{
			signal: &Signal{Duration: 1, Overtones: []Overtone{NewOvertone()}},
		},
		{
			signal:      &Signal{Duration: Seconds(math.Inf(1))},
			wantedError: MalformedInputError,
		},
		{
			signal:      &Signal{Duration: 1, Overtones: []Overtone{NewOvertone(), {Amplitude: math.NaN()}}},
			wantedError: MalformedInputError,
		},
	} {
		if err := tc.signal.Check(); !errors.Is(err, tc.wantedError) {
			t.Errorf("%+v.Check() = %v, wanted %v", tc.signal, err, tc.wantedError)
		}
	}
}

func TestParseFinite(t *testing.T) {
	for _, value := range []string{"inf", "+Inf", "-Inf", "NaN", "", "one"} {
		if f, err := ParseFinite("x", value); !errors.Is(err, MalformedInputError) {
			t.Errorf("ParseFinite(%q) = %v, %v, wanted MalformedInputError", value, f, err)
		}
	}
	if f, err := ParseFinite("x", " 1.5e3 "); err != nil || f != 1500 {
		t.Errorf("got %v, %v, wanted 1500", f, err)
	}
}

func TestParseOvertoneField(t *testing.T) {
	for name, want := range map[string]OvertoneField{
		"name":      OvertoneName,
		"Amplitude": OvertoneAmplitude,
		"FREQUENCY": OvertoneFrequency,
		"phase":     OvertonePhase,
	} {
		got, err := ParseOvertoneField(name)
		if err != nil || got != want {
			t.Errorf("ParseOvertoneField(%q) = %v, %v, wanted %v", name, got, err, want)
		}
	}
	if _, err := ParseOvertoneField("color"); !errors.Is(err, MalformedInputError) {
		t.Errorf("got %v, wanted MalformedInputError", err)
	}
}

func TestClone(t *testing.T) {
	s := New("s", 10, 1)
	s.AddOvertone(NewOvertone())
	c := s.Clone()
	if err := s.EditOvertone(0, OvertoneAmplitude, "0.1"); err != nil {
		t.Fatal(err)
	}
	s.Rename("renamed")
	if c.Overtones[0].Amplitude != 1 || c.Name != "s" {
		t.Errorf("clone %+v shares state with %+v", c, s)
	}
}

func TestPower(t *testing.T) {
	for _, tc := range []struct {
		amplitude   float64
		wantedPower float64
	}{
		{
			amplitude:   1,
			wantedPower: 0.5,
		},
		{
			amplitude:   0.5,
			wantedPower: 0.125,
		},
	} {
		s := &Signal{SampleRate: 48000, Duration: 2, Overtones: []Overtone{{Amplitude: tc.amplitude, Frequency: 100}}}
		if power := s.Samples().Power(); math.Abs(power-tc.wantedPower) > tolerance {
			t.Errorf("got power %v, wanted %v", power, tc.wantedPower)
		}
	}
}

func TestPoints(t *testing.T) {
	got := Float64Slice{0.5, -1, 0.25}.Points()
	want := []Point{{0, 0.5}, {1, -1}, {2, 0.25}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("got %+v, wanted %+v: %v", got, want, diff)
	}
	if peak := (Float64Slice{0.5, -1, 0.25}).Peak(); peak != 1 {
		t.Errorf("got peak %v, wanted 1", peak)
	}
}
