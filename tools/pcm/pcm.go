/* pcm encodes samples as 16 bit linear PCM and serves them to audio consumers.
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
package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/google-research/overtones/tools/synthesize/signals"
	"github.com/youpy/go-wav"
)

const (
	// BytesPerSample is the size of one encoded sample.
	BytesPerSample = 2
	// FullScale is the encoded value of a sample of 1.0.
	FullScale = math.MaxInt16
)

var (
	// UnsupportedAudioFormatError means that an audio format can't be produced or played.
	UnsupportedAudioFormatError = errors.New("unsupported audio format")
	// ReadOnlyError is returned when writing to a stream.
	ReadOnlyError = errors.New("stream is read only")
)

// Format describes a linear PCM stream.
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
	LittleEndian  bool
	Signed        bool
}

// Default is the only format Encode produces, and the format playback is declared with.
var Default = Format{
	SampleRate:    44100,
	BitsPerSample: 16,
	Channels:      1,
	LittleEndian:  true,
	Signed:        true,
}

func (f Format) String() string {
	endian := "BE"
	if f.LittleEndian {
		endian = "LE"
	}
	sign := "unsigned"
	if f.Signed {
		sign = "signed"
	}
	return fmt.Sprintf("%vHz/%vbit/%vch/%v/%v", f.SampleRate, f.BitsPerSample, f.Channels, endian, sign)
}

// CheckEncodable returns an error matching UnsupportedAudioFormatError unless
// f describes the sample layout produced by Encode.
func (f Format) CheckEncodable() error {
	if f.SampleRate <= 0 || f.BitsPerSample != 8*BytesPerSample || f.Channels != 1 || !f.LittleEndian || !f.Signed {
		return fmt.Errorf("%v can't be produced, wanted mono 16 bit signed little endian: %w", f, UnsupportedAudioFormatError)
	}
	return nil
}

// Quantize returns the 16 bit value of s, which is clamped to [-1, 1].
func Quantize(s float64) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(FullScale * s))
}

// Encode returns the samples as 16 bit signed little endian mono PCM.
func Encode(samples []float64) []byte {
	result := make([]byte, BytesPerSample*len(samples))
	for idx, sample := range samples {
		binary.LittleEndian.PutUint16(result[BytesPerSample*idx:], uint16(Quantize(sample)))
	}
	return result
}

// Decode returns the samples of 16 bit signed little endian mono PCM, scaled to [-1, 1].
// A trailing odd byte is ignored.
func Decode(b []byte) signals.Float64Slice {
	result := make(signals.Float64Slice, len(b)/BytesPerSample)
	for idx := range result {
		result[idx] = float64(int16(binary.LittleEndian.Uint16(b[BytesPerSample*idx:]))) / FullScale
	}
	return result
}

// Stream is a read only, seekable byte stream of encoded samples.
// It owns a private copy of its bytes.
type Stream struct {
	mu   sync.Mutex
	data []byte
	pos  int64
}

// NewStream returns a stream of the encoded samples.
func NewStream(samples []float64) *Stream {
	return &Stream{data: Encode(samples)}
}

// NewStreamFromBytes returns a stream of a copy of b.
func NewStreamFromBytes(b []byte) *Stream {
	data := make([]byte, len(b))
	copy(data, b)
	return &Stream{data: data}
}

// Read reads up to len(p) bytes from the cursor.
// At the end of the stream it returns 0, io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// Write always fails, the stream is read only.
func (s *Stream) Write(p []byte) (int, error) {
	return 0, ReadOnlyError
}

// Seek implements io.Seeker.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = int64(len(s.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %v", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position %v", pos)
	}
	s.pos = pos
	return pos, nil
}

// BytesAvailable returns the number of bytes left to read.
func (s *Stream) BytesAvailable() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= int64(len(s.data)) {
		return 0
	}
	return int64(len(s.data)) - s.pos
}

// Reset moves the cursor back to the start of the stream.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
}

// Len returns the total size of the stream in bytes.
func (s *Stream) Len() int {
	return len(s.data)
}

// WriteWAV writes the samples as a mono 16 bit WAV file to a writer, declaring a given
// sample rate. Samples are quantized like Encode does.
func WriteWAV(w io.Writer, samples []float64, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("sample rate %v: %w", rate, UnsupportedAudioFormatError)
	}
	wavSamples := make([]wav.Sample, len(samples))
	for idx := range samples {
		wavSamples[idx] = wav.Sample{
			Values: [2]int{int(Quantize(samples[idx])), 0},
		}
	}
	buf := &bytes.Buffer{}
	wavWriter := wav.NewWriter(buf, uint32(len(samples)), 1, uint32(rate), 8*BytesPerSample)
	if err := wavWriter.WriteSamples(wavSamples); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}
