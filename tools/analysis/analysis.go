/* analysis exports signals and their spectra as tf.Examples in TFRecord files.
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
package analysis

import (
	"fmt"
	"io"
	"reflect"

	"github.com/google-research/overtones/tools/spectrum"
	"github.com/google-research/overtones/tools/synthesize/records"
	"github.com/google-research/overtones/tools/synthesize/signals"
	"github.com/ryszard/tfutils/go/tfrecord"
	"google.golang.org/protobuf/proto"

	proto1 "github.com/golang/protobuf/proto"
	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

// SignalAnalysis is a signal definition with its samples and spectrum.
type SignalAnalysis struct {
	// Signal is the definition of the analyzed signal.
	Signal records.Signal
	// Samples are the time domain samples of the signal.
	Samples []float64
	// Power is the variance of the samples.
	Power float64
	// Magnitudes[binIdx] is the magnitude of each DFT bin.
	Magnitudes []float64
	// Phases[binIdx] is the phase of each DFT bin, in radians.
	Phases []float64
	// BinWidth is the frequency width of each bin.
	BinWidth signals.Hz
	// Rate is the sample rate of the signal.
	Rate signals.Hz
	// Spectrum is the spectrum the magnitudes and phases were computed from.
	Spectrum *spectrum.S `proto:"-"`
}

// Analyze samples sig and computes its spectrum using a.
func Analyze(sig *signals.Signal, a spectrum.Analyzer) *SignalAnalysis {
	samples := sig.Samples()
	spec := a.Compute(samples, signals.Hz(sig.SampleRate))
	return &SignalAnalysis{
		Signal:     records.FromSignal(sig),
		Samples:    samples,
		Power:      samples.Power(),
		Magnitudes: spec.Magnitudes(),
		Phases:     spec.Phases(),
		BinWidth:   spec.BinWidth,
		Rate:       spec.Rate,
		Spectrum:   spec,
	}
}

func (s *SignalAnalysis) toTFExample(val reflect.Value, namePrefix string, ex *tf.Example) error {
	typ := val.Type()
	switch typ.Kind() {
	case reflect.String:
		ex.Features.Feature[namePrefix] = &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: [][]byte{[]byte(val.String())}}}}
	case reflect.Float64:
		ex.Features.Feature[namePrefix] = &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: []float32{float32(val.Float())}}}}
	case reflect.Int:
		ex.Features.Feature[namePrefix] = &tf.Feature{Kind: &tf.Feature_Int64List{Int64List: &tf.Int64List{Value: []int64{val.Int()}}}}
	case reflect.Slice:
		switch typ.Elem().Kind() {
		case reflect.Struct:
			for elemIdx := 0; elemIdx < val.Len(); elemIdx++ {
				if err := s.toTFExample(val.Index(elemIdx), fmt.Sprintf("%v[%v]", namePrefix, elemIdx), ex); err != nil {
					return err
				}
			}
		case reflect.Float64:
			floats := make([]float32, val.Len())
			for idx := range floats {
				floats[idx] = float32(val.Index(idx).Float())
			}
			ex.Features.Feature[namePrefix] = &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: floats}}}
		default:
			return fmt.Errorf("%v is of an invalid slice type %v", namePrefix, typ)
		}
	case reflect.Struct:
		for fieldIdx := 0; fieldIdx < typ.NumField(); fieldIdx++ {
			fieldTyp := typ.Field(fieldIdx)
			if fieldTyp.Tag.Get("proto") != "-" {
				if err := s.toTFExample(val.Field(fieldIdx), namePrefix+"."+fieldTyp.Name, ex); err != nil {
					return err
				}
			}
		}
	default:
		return fmt.Errorf("%v %v is of an invalid type %v", namePrefix, val.Interface(), typ)
	}
	return nil
}

// ToTFExample flattens the analysis into a tf.Example with one feature per leaf field,
// named like "SignalAnalysis.Signal.Overtones[0].Frequency".
func (s *SignalAnalysis) ToTFExample() (*tf.Example, error) {
	ex := &tf.Example{
		Features: &tf.Features{
			Feature: map[string]*tf.Feature{},
		},
	}
	if err := s.toTFExample(reflect.ValueOf(*s), "SignalAnalysis", ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// WriteTFRecord writes the analyses as tf.Example records to w.
func WriteTFRecord(w io.Writer, analyses ...*SignalAnalysis) error {
	for _, a := range analyses {
		example, err := a.ToTFExample()
		if err != nil {
			return err
		}
		encoded, err := proto.Marshal(proto1.MessageV2(example))
		if err != nil {
			return err
		}
		if err := tfrecord.Write(w, encoded); err != nil {
			return fmt.Errorf("writing %q: %v", a.Signal.Name, err)
		}
	}
	return nil
}
