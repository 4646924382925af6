/* speaker plays PCM streams on the default PortAudio output device.
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
package speaker

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/google-research/overtones/tools/pcm"
	"github.com/google-research/overtones/tools/playback"
	"github.com/gordonklaus/portaudio"
)

const (
	defaultFramesPerBuffer = 1024
)

// Device is the default PortAudio output device.
type Device struct {
	// FramesPerBuffer is the number of samples pulled per device callback. Zero means 1024.
	FramesPerBuffer int
}

func (d *Device) framesPerBuffer() int {
	if d.FramesPerBuffer > 0 {
		return d.FramesPerBuffer
	}
	return defaultFramesPerBuffer
}

func (d *Device) parameters(f pcm.Format) (portaudio.StreamParameters, error) {
	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return portaudio.StreamParameters{}, fmt.Errorf("no default output device: %v: %w", err, pcm.UnsupportedAudioFormatError)
	}
	params := portaudio.LowLatencyParameters(nil, out)
	params.Output.Channels = f.Channels
	params.SampleRate = float64(f.SampleRate)
	params.FramesPerBuffer = d.framesPerBuffer()
	return params, nil
}

// Check returns an error matching pcm.UnsupportedAudioFormatError if the default output device
// can't play f.
func (d *Device) Check(f pcm.Format) error {
	if err := f.CheckEncodable(); err != nil {
		return err
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("unable to initialize PortAudio: %v: %w", err, pcm.UnsupportedAudioFormatError)
	}
	defer portaudio.Terminate()
	params, err := d.parameters(f)
	if err != nil {
		return err
	}
	if err := portaudio.IsFormatSupported(params, make([]int16, d.framesPerBuffer())); err != nil {
		return fmt.Errorf("%v on %q: %v: %w", f, params.Output.Device.Name, err, pcm.UnsupportedAudioFormatError)
	}
	return nil
}

// Start opens the default output device and starts pulling samples from r.
func (d *Device) Start(f pcm.Format, r io.Reader) (playback.Session, error) {
	if err := f.CheckEncodable(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	params, err := d.parameters(f)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	s := &session{
		reader:  r,
		buf:     make([]byte, pcm.BytesPerSample*d.framesPerBuffer()),
		drained: make(chan struct{}),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.stream, err = portaudio.OpenStream(params, s.process)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	go s.run()
	return s, nil
}

type session struct {
	reader  io.Reader
	buf     []byte
	stream  *portaudio.Stream
	drained chan struct{}
	stopped chan struct{}
	done    chan struct{}

	drainOnce sync.Once
	stopOnce  sync.Once
	err       error
}

// process is called by PortAudio on its own thread.
func (s *session) process(out []int16) {
	want := pcm.BytesPerSample * len(out)
	if want > len(s.buf) {
		s.buf = make([]byte, want)
	}
	n, err := io.ReadFull(s.reader, s.buf[:want])
	for idx := range out {
		if pcm.BytesPerSample*idx+1 < n {
			out[idx] = int16(binary.LittleEndian.Uint16(s.buf[pcm.BytesPerSample*idx:]))
		} else {
			out[idx] = 0
		}
	}
	if err != nil {
		s.drainOnce.Do(func() { close(s.drained) })
	}
}

func (s *session) run() {
	select {
	case <-s.drained:
	case <-s.stopped:
	}
	if err := s.stream.Stop(); err != nil {
		s.err = err
	}
	if err := s.stream.Close(); err != nil && s.err == nil {
		s.err = err
	}
	if err := portaudio.Terminate(); err != nil && s.err == nil {
		s.err = err
	}
	close(s.done)
}

func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	<-s.done
	return s.err
}
