/* editor owns a collection of signals being edited, with a current selection.
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
package editor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google-research/overtones/tools/synthesize/records"
	"github.com/google-research/overtones/tools/synthesize/signals"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnknownSignalError is returned when a handle doesn't identify a signal in the editor.
var UnknownSignalError = errors.New("unknown signal")

// Handle identifies a signal in an editor for as long as it stays there.
type Handle string

// ParseHandle returns the handle in s, or an error matching UnknownSignalError if s isn't a handle.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%q: %v: %w", s, err, UnknownSignalError)
	}
	return Handle(id.String()), nil
}

func newHandle() Handle {
	return Handle(uuid.New().String())
}

// Entry is a signal in the editor.
type Entry struct {
	Handle Handle
	Signal *signals.Signal
}

// Editor is a list of signals, in the order they were added, and an optional selected signal.
// All methods are safe for concurrent use, and failing methods leave the editor unchanged.
type Editor struct {
	logger *zap.Logger

	mu       sync.Mutex
	entries  []Entry
	selected Handle
}

// New returns an empty editor.
func New(logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{logger: logger}
}

// Load replaces the signals with the ones decoded from a loosely typed list of records,
// and selects the first one. Malformed input is logged and leaves the editor empty.
func (e *Editor) Load(v interface{}) error {
	sigs, err := records.Decode(v)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = nil
	e.selected = ""
	if err != nil {
		e.logger.Warn("input signals are not in the expected format", zap.Error(err))
		return err
	}
	for _, sig := range sigs {
		e.entries = append(e.entries, Entry{Handle: newHandle(), Signal: sig})
	}
	if len(e.entries) > 0 {
		e.selected = e.entries[0].Handle
	}
	e.logger.Info("loaded signals", zap.Int("count", len(e.entries)))
	return nil
}

// Records returns the records describing the signals, in order.
func (e *Editor) Records() []records.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]records.Signal, len(e.entries))
	for idx, entry := range e.entries {
		result[idx] = records.FromSignal(entry.Signal)
	}
	return result
}

// Signals returns copies of all signals, in order.
func (e *Editor) Signals() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]Entry, len(e.entries))
	for idx, entry := range e.entries {
		result[idx] = Entry{Handle: entry.Handle, Signal: entry.Signal.Clone()}
	}
	return result
}

func (e *Editor) indexLocked(h Handle) (int, error) {
	for idx, entry := range e.entries {
		if entry.Handle == h {
			return idx, nil
		}
	}
	err := fmt.Errorf("%q: %w", h, UnknownSignalError)
	e.logger.Warn("invalid signal", zap.String("handle", string(h)))
	return -1, err
}

// Get returns a copy of the signal.
func (e *Editor) Get(h Handle) (Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.indexLocked(h)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Handle: h, Signal: e.entries[idx].Signal.Clone()}, nil
}

// Snapshot returns a copy of the signal that later edits won't affect.
func (e *Editor) Snapshot(h Handle) (*signals.Signal, error) {
	entry, err := e.Get(h)
	if err != nil {
		return nil, err
	}
	return entry.Signal, nil
}

// Add appends a copy of sig and returns its handle.
func (e *Editor) Add(sig *signals.Signal) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(sig.Clone())
}

func (e *Editor) addLocked(sig *signals.Signal) Handle {
	h := newHandle()
	e.entries = append(e.entries, Entry{Handle: h, Signal: sig})
	return h
}

// NewSignal appends a default signal, selects it and returns its handle.
func (e *Editor) NewSignal() Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.addLocked(signals.NewDefault())
	e.selected = h
	return h
}

// Remove removes the signal. If it was selected the first remaining signal,
// if any, is selected instead.
func (e *Editor) Remove(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.indexLocked(h)
	if err != nil {
		return err
	}
	e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
	if e.selected == h {
		e.selected = ""
		if len(e.entries) > 0 {
			e.selected = e.entries[0].Handle
		}
	}
	return nil
}

// Select makes the signal the selected one.
func (e *Editor) Select(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.indexLocked(h); err != nil {
		return err
	}
	e.selected = h
	return nil
}

// Selected returns the selected signal, if any.
func (e *Editor) Selected() (Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.selected != ""
}

// Checkpoint is a copy of the signals and selection of an editor.
type Checkpoint struct {
	entries  []Entry
	selected Handle
}

// Checkpoint returns a copy of the current signals and selection.
func (e *Editor) Checkpoint() Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := Checkpoint{
		entries:  make([]Entry, len(e.entries)),
		selected: e.selected,
	}
	for idx, entry := range e.entries {
		result.entries[idx] = Entry{Handle: entry.Handle, Signal: entry.Signal.Clone()}
	}
	return result
}

// Rollback restores the signals and selection of c, keeping their handles.
func (e *Editor) Rollback(c Checkpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = make([]Entry, len(c.entries))
	for idx, entry := range c.entries {
		e.entries[idx] = Entry{Handle: entry.Handle, Signal: entry.Signal.Clone()}
	}
	e.selected = c.selected
	e.logger.Info("rolled back signals", zap.Int("count", len(e.entries)))
}

// modify runs f on the signal, and logs any error returned.
func (e *Editor) modify(h Handle, op string, f func(sig *signals.Signal) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.indexLocked(h)
	if err != nil {
		return err
	}
	if err := f(e.entries[idx].Signal); err != nil {
		e.logger.Warn("invalid edit", zap.String("op", op), zap.String("handle", string(h)), zap.Error(err))
		return err
	}
	return nil
}

// Rename sets the name of the signal.
func (e *Editor) Rename(h Handle, name string) error {
	return e.modify(h, "rename", func(sig *signals.Signal) error {
		sig.Rename(name)
		return nil
	})
}

// SetDuration sets the duration of the signal. Durations that aren't finite are rejected.
func (e *Editor) SetDuration(h Handle, d signals.Seconds) error {
	return e.modify(h, "set duration", func(sig *signals.Signal) error {
		if err := signals.CheckFinite("duration", float64(d)); err != nil {
			return err
		}
		sig.SetDuration(d)
		return nil
	})
}

// SetSampleRate sets the sample rate of the signal.
func (e *Editor) SetSampleRate(h Handle, rate int) error {
	return e.modify(h, "set sample rate", func(sig *signals.Signal) error {
		sig.SetSampleRate(rate)
		return nil
	})
}

// AddOvertone appends o to the overtones of the signal and returns its index.
func (e *Editor) AddOvertone(h Handle, o signals.Overtone) (int, error) {
	idx := -1
	err := e.modify(h, "add overtone", func(sig *signals.Signal) error {
		idx = sig.AddOvertone(o)
		return nil
	})
	return idx, err
}

// RemoveOvertone removes an overtone of the signal.
func (e *Editor) RemoveOvertone(h Handle, idx int) error {
	return e.modify(h, "remove overtone", func(sig *signals.Signal) error {
		return sig.RemoveOvertone(idx)
	})
}

// EditOvertone sets one field of an overtone of the signal from its text form.
func (e *Editor) EditOvertone(h Handle, idx int, field signals.OvertoneField, value string) error {
	return e.modify(h, "edit overtone", func(sig *signals.Signal) error {
		return sig.EditOvertone(idx, field, value)
	})
}

// SetOvertone replaces an overtone of the signal.
func (e *Editor) SetOvertone(h Handle, idx int, o signals.Overtone) error {
	return e.modify(h, "set overtone", func(sig *signals.Signal) error {
		return sig.SetOvertone(idx, o)
	})
}
