/* playback plays signals on an audio device, one at a time.
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
package playback

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google-research/overtones/tools/pcm"
	"github.com/google-research/overtones/tools/synthesize/signals"
	"go.uber.org/zap"
)

// NothingToReplayError is returned by Replay when nothing has been played.
var NothingToReplayError = errors.New("nothing to replay")

// Session is audio being played by a Device.
type Session interface {
	// Done is closed when the device has stopped pulling from the stream, either
	// because it was drained or because the session was stopped.
	Done() <-chan struct{}
	// Stop stops the session and releases the device. It is safe to call more than once.
	Stop() error
}

// Device is an audio output.
type Device interface {
	// Check returns an error matching pcm.UnsupportedAudioFormatError if the device can't play the format.
	Check(f pcm.Format) error
	// Start starts pulling PCM data of the given format from r.
	Start(f pcm.Format, r io.Reader) (Session, error)
}

// Player plays signals on a device, with at most one session at a time.
type Player struct {
	device Device
	format pcm.Format
	logger *zap.Logger

	mu      sync.Mutex
	session Session
	stream  *pcm.Stream
}

// New returns a player for the device using the given format.
func New(device Device, format pcm.Format, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		device: device,
		format: format,
		logger: logger,
	}
}

// Format returns the format the player plays.
func (p *Player) Format() pcm.Format {
	return p.format
}

func (p *Player) refuse(sig *signals.Signal, err error) error {
	p.logger.Warn("refusing playback", zap.String("signal", sig.Name), zap.Stringer("format", p.format), zap.Error(err))
	return err
}

// Play stops any current session and starts playing a snapshot of the samples of sig.
// If the format is unsupported, or sig isn't sampled at the format sample rate,
// nothing is started and any current session keeps playing.
func (p *Player) Play(sig *signals.Signal) error {
	if err := p.format.CheckEncodable(); err != nil {
		return p.refuse(sig, err)
	}
	if err := p.device.Check(p.format); err != nil {
		return p.refuse(sig, err)
	}
	if sig.SampleRate != p.format.SampleRate {
		return p.refuse(sig, fmt.Errorf("signal %q sampled at %vHz: %w", sig.Name, sig.SampleRate, pcm.UnsupportedAudioFormatError))
	}
	samples := sig.Samples()
	if peak := samples.Peak(); peak > 1 {
		p.logger.Warn("samples will be clamped", zap.String("signal", sig.Name), zap.Float64("peak", peak))
	}
	stream := pcm.NewStream(samples)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.stopLocked(); err != nil {
		return err
	}
	return p.startLocked(stream)
}

// Replay restarts the current snapshot from the beginning, without encoding it again.
func (p *Player) Replay() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stream := p.stream
	if stream == nil {
		return NothingToReplayError
	}
	if err := p.stopLocked(); err != nil {
		return err
	}
	stream.Reset()
	return p.startLocked(stream)
}

func (p *Player) startLocked(stream *pcm.Stream) error {
	session, err := p.device.Start(p.format, stream)
	if err != nil {
		p.logger.Warn("unable to start playback", zap.Error(err))
		return err
	}
	p.session = session
	p.stream = stream
	p.logger.Info("started playback", zap.Int("bytes", stream.Len()), zap.Stringer("format", p.format))
	return nil
}

func (p *Player) stopLocked() error {
	if p.session == nil {
		return nil
	}
	err := p.session.Stop()
	p.session = nil
	if err != nil {
		p.logger.Warn("unable to stop playback", zap.Error(err))
	}
	return err
}

// Stop stops the current session, if any. The snapshot is kept for Replay.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// Playing returns whether a session is running and hasn't drained its stream.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return false
	}
	select {
	case <-p.session.Done():
		return false
	default:
		return true
	}
}

// Wait blocks until the current session, if any, is done.
func (p *Player) Wait() {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()
	if session != nil {
		<-session.Done()
	}
}
