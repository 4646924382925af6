/* records converts between stored signal definitions and signals.
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
package records

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google-research/overtones/tools/synthesize/signals"
)

// Overtone is the stored form of a signals.Overtone.
type Overtone struct {
	Name      string  `json:"name"`
	Amplitude float64 `json:"amplitude"`
	Frequency float64 `json:"frequency"`
	Phase     float64 `json:"phase"`
}

// Signal is the stored form of a signals.Signal.
type Signal struct {
	Name       string     `json:"name"`
	SampleRate int        `json:"sampleRate"`
	Duration   float64    `json:"duration"`
	Overtones  []Overtone `json:"overtones"`
}

// ToOvertone returns the overtone described by the record.
func (o Overtone) ToOvertone() signals.Overtone {
	return signals.Overtone{
		Name:      o.Name,
		Amplitude: o.Amplitude,
		Frequency: signals.Hz(o.Frequency),
		Phase:     o.Phase,
	}
}

// ToSignal returns the signal described by the record.
func (s Signal) ToSignal() *signals.Signal {
	result := signals.New(s.Name, s.SampleRate, signals.Seconds(s.Duration))
	for _, o := range s.Overtones {
		result.AddOvertone(o.ToOvertone())
	}
	return result
}

// FromSignal returns the record describing s.
func FromSignal(s *signals.Signal) Signal {
	result := Signal{
		Name:       s.Name,
		SampleRate: s.SampleRate,
		Duration:   float64(s.Duration),
		Overtones:  make([]Overtone, len(s.Overtones)),
	}
	for idx, o := range s.Overtones {
		result.Overtones[idx] = Overtone{
			Name:      o.Name,
			Amplitude: o.Amplitude,
			Frequency: float64(o.Frequency),
			Phase:     o.Phase,
		}
	}
	return result
}

func decoder(result interface{}) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
}

func decodeRecord(kind string, v interface{}, result interface{}) error {
	if v == nil {
		return fmt.Errorf("no %v record: %w", kind, signals.MalformedInputError)
	}
	if k := reflect.ValueOf(v).Kind(); k != reflect.Map && k != reflect.Struct {
		return fmt.Errorf("%v record is a %T: %w", kind, v, signals.MalformedInputError)
	}
	dec, err := decoder(result)
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%v: %w", err, signals.MalformedInputError)
	}
	return nil
}

// DecodeSignal decodes a single loosely typed record, such as one produced by
// encoding/json. Missing keys get zero values, and numbers may be given as strings.
// Numbers that aren't finite make the record malformed.
func DecodeSignal(v interface{}) (*signals.Signal, error) {
	rec := Signal{}
	if err := decodeRecord("signal", v, &rec); err != nil {
		return nil, err
	}
	sig := rec.ToSignal()
	if err := sig.Check(); err != nil {
		return nil, err
	}
	return sig, nil
}

// DecodeOvertone decodes a single loosely typed overtone record, like DecodeSignal.
func DecodeOvertone(v interface{}) (signals.Overtone, error) {
	rec := Overtone{}
	if err := decodeRecord("overtone", v, &rec); err != nil {
		return signals.Overtone{}, err
	}
	o := rec.ToOvertone()
	if err := o.Check(); err != nil {
		return signals.Overtone{}, err
	}
	return o, nil
}

// Decode decodes a loosely typed list of signal records.
// A nil value decodes to no signals, anything but a list of records is malformed.
func Decode(v interface{}) ([]*signals.Signal, error) {
	if v == nil {
		return nil, nil
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return nil, fmt.Errorf("signal list is a %T: %w", v, signals.MalformedInputError)
	}
	result := make([]*signals.Signal, 0, val.Len())
	for idx := 0; idx < val.Len(); idx++ {
		sig, err := DecodeSignal(val.Index(idx).Interface())
		if err != nil {
			return nil, fmt.Errorf("signal %v: %w", idx, err)
		}
		result = append(result, sig)
	}
	return result, nil
}

// Encode returns the records describing sigs, in order.
func Encode(sigs []*signals.Signal) []Signal {
	result := make([]Signal, len(sigs))
	for idx, sig := range sigs {
		result[idx] = FromSignal(sig)
	}
	return result
}
