/* overtones runs a server exposing an editor of overtone signals as a JSON API,
 * with waveform and spectrum chart series, WAV rendering and playback.
 *
 * Run it and use e.g. curl -X POST http://localhost:12000/signals.
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
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google-research/overtones/tools/document"
	"github.com/google-research/overtones/tools/editor"
	"github.com/google-research/overtones/tools/pcm"
	"github.com/google-research/overtones/tools/playback"
	"github.com/google-research/overtones/tools/playback/speaker"
	"github.com/google-research/overtones/tools/spectrum"
	"github.com/google-research/overtones/tools/synthesize/records"
	"github.com/google-research/overtones/tools/synthesize/signals"
	"go.uber.org/zap"
)

const (
	signalsKey = "signals"
	// peakRatio is the lowest gain, relative to the highest, of the reported spectrum peaks.
	peakRatio = 0.1
)

var (
	signalRequestReg    = regexp.MustCompile("^/signals/([^/]+)$")
	propertyRequestReg  = regexp.MustCompile("^/signals/([^/]+)/(name|duration|sample_rate|select|play|waveform|spectrum)$")
	overtonesRequestReg = regexp.MustCompile("^/signals/([^/]+)/overtones$")
	overtoneRequestReg  = regexp.MustCompile("^/signals/([^/]+)/overtones/([^/]+)$")
	wavRequestReg       = regexp.MustCompile("^/signal/([^/]+)\\.wav$")
)

var (
	documentPath = flag.String("document",
		filepath.Join(os.Getenv("HOME"), "overtones/signals.json"),
		"Path to the JSON document the signals are loaded from and saved to.")
	listen      = flag.String("listen", "localhost:12000", "Interface and port to listen for connections on.")
	play        = flag.Bool("play", true, "Whether to enable playback on the default output device.")
	concurrency = flag.Int("concurrency", 0, "Number of goroutines computing each spectrum. Zero means one per CPU.")
)

type server struct {
	logger   *zap.Logger
	editor   *editor.Editor
	document *document.Document
	player   *playback.Player
	analyzer spectrum.Analyzer

	// mutations serializes edits with the saves that persist them.
	mutations sync.Mutex
}

// signalResponse is the JSON form of a signal in the editor.
type signalResponse struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
	records.Signal
}

func (s *server) handleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, editor.UnknownSignalError):
		status = http.StatusNotFound
	case errors.Is(err, signals.IndexOutOfRangeError), errors.Is(err, signals.MalformedInputError):
		status = http.StatusBadRequest
	case errors.Is(err, pcm.UnsupportedAudioFormatError):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, playback.NothingToReplayError):
		status = http.StatusConflict
	}
	s.logger.Info("request failed", zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}

func (s *server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("%v not allowed for %v", r.Method, r.URL.Path), http.StatusMethodNotAllowed)
}

func (s *server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("unable to encode response", zap.Error(err))
	}
}

// save writes all signals to the document, if there is one.
func (s *server) save() error {
	if s.document == nil {
		return nil
	}
	if err := s.document.WriteProperty(signalsKey, s.editor.Records()); err != nil {
		return fmt.Errorf("unable to save signals to %q: %v", s.document.Path, err)
	}
	return nil
}

func (s *server) respond(w http.ResponseWriter, h editor.Handle) {
	entry, err := s.editor.Get(h)
	if err != nil {
		s.handleError(w, err)
		return
	}
	selected, _ := s.editor.Selected()
	s.writeJSON(w, signalResponse{
		ID:       string(h),
		Selected: selected == h,
		Signal:   records.FromSignal(entry.Signal),
	})
}

// mutate runs f and saves the signals. If saving fails the editor is rolled back to
// before f ran. Returns whether the change was made, and if not an error was sent to w.
func (s *server) mutate(w http.ResponseWriter, f func() error) bool {
	s.mutations.Lock()
	defer s.mutations.Unlock()
	checkpoint := s.editor.Checkpoint()
	if err := f(); err != nil {
		s.handleError(w, err)
		return false
	}
	if err := s.save(); err != nil {
		s.editor.Rollback(checkpoint)
		s.handleError(w, err)
		return false
	}
	return true
}

// mutateSignal runs f like mutate, and responds with the signal if it succeeded.
func (s *server) mutateSignal(w http.ResponseWriter, h editor.Handle, f func() error) {
	if s.mutate(w, f) {
		s.respond(w, h)
	}
}

// decodeJSON decodes the request body into v, returning io.EOF if the body is empty.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err == io.EOF {
		return err
	} else if err != nil {
		return fmt.Errorf("%v: %w", err, signals.MalformedInputError)
	}
	return nil
}

func (s *server) listSignals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		selected, _ := s.editor.Selected()
		result := []signalResponse{}
		for _, entry := range s.editor.Signals() {
			result = append(result, signalResponse{
				ID:       string(entry.Handle),
				Selected: entry.Handle == selected,
				Signal:   records.FromSignal(entry.Signal),
			})
		}
		s.writeJSON(w, result)
	case http.MethodPost:
		var v interface{}
		var sig *signals.Signal
		if err := decodeJSON(r, &v); err == nil {
			if sig, err = records.DecodeSignal(v); err != nil {
				s.handleError(w, err)
				return
			}
		} else if err != io.EOF {
			s.handleError(w, err)
			return
		}
		var h editor.Handle
		created := s.mutate(w, func() error {
			if sig == nil {
				h = s.editor.NewSignal()
				return nil
			}
			h = s.editor.Add(sig)
			return s.editor.Select(h)
		})
		if created {
			s.respond(w, h)
		}
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *server) signal(w http.ResponseWriter, r *http.Request, h editor.Handle) {
	switch r.Method {
	case http.MethodGet:
		s.respond(w, h)
	case http.MethodDelete:
		if s.mutate(w, func() error { return s.editor.Remove(h) }) {
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *server) property(w http.ResponseWriter, r *http.Request, h editor.Handle, property string) {
	switch property {
	case "waveform":
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w, r)
			return
		}
		sig, err := s.editor.Snapshot(h)
		if err != nil {
			s.handleError(w, err)
			return
		}
		s.writeJSON(w, sig.Samples().Points())
		return
	case "spectrum":
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w, r)
			return
		}
		sig, err := s.editor.Snapshot(h)
		if err != nil {
			s.handleError(w, err)
			return
		}
		spec := s.analyzer.Compute(sig.Samples(), signals.Hz(sig.SampleRate))
		s.writeJSON(w, map[string]interface{}{
			"binWidth": spec.BinWidth,
			"rate":     spec.Rate,
			"points":   spec.Points(),
			"phases":   spec.Phases(),
			"peaks":    spec.Peaks(peakRatio),
		})
		return
	}
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	value := r.FormValue("value")
	switch property {
	case "name":
		s.mutateSignal(w, h, func() error { return s.editor.Rename(h, value) })
	case "duration":
		s.mutateSignal(w, h, func() error {
			d, err := signals.ParseFinite("duration", value)
			if err != nil {
				return err
			}
			return s.editor.SetDuration(h, signals.Seconds(d))
		})
	case "sample_rate":
		s.mutateSignal(w, h, func() error {
			rate, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("sample rate %q: %v: %w", value, err, signals.MalformedInputError)
			}
			return s.editor.SetSampleRate(h, rate)
		})
	case "select":
		if err := s.editor.Select(h); err != nil {
			s.handleError(w, err)
			return
		}
		s.respond(w, h)
	case "play":
		if s.player == nil {
			s.handleError(w, fmt.Errorf("playback disabled: %w", pcm.UnsupportedAudioFormatError))
			return
		}
		sig, err := s.editor.Snapshot(h)
		if err != nil {
			s.handleError(w, err)
			return
		}
		if err := s.player.Play(sig); err != nil {
			s.handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) overtones(w http.ResponseWriter, r *http.Request, h editor.Handle) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	s.mutateSignal(w, h, func() error {
		_, err := s.editor.AddOvertone(h, signals.NewOvertone())
		return err
	})
}

func (s *server) overtone(w http.ResponseWriter, r *http.Request, h editor.Handle, idxString string) {
	idx, err := strconv.Atoi(idxString)
	if err != nil {
		s.handleError(w, fmt.Errorf("overtone index %q: %v: %w", idxString, err, signals.MalformedInputError))
		return
	}
	switch r.Method {
	case http.MethodPost:
		field, err := signals.ParseOvertoneField(r.FormValue("field"))
		if err != nil {
			s.handleError(w, err)
			return
		}
		value := r.FormValue("value")
		s.mutateSignal(w, h, func() error { return s.editor.EditOvertone(h, idx, field, value) })
	case http.MethodPut:
		var v interface{}
		if err := decodeJSON(r, &v); err == io.EOF {
			s.handleError(w, fmt.Errorf("no overtone in request: %w", signals.MalformedInputError))
			return
		} else if err != nil {
			s.handleError(w, err)
			return
		}
		o, err := records.DecodeOvertone(v)
		if err != nil {
			s.handleError(w, err)
			return
		}
		s.mutateSignal(w, h, func() error { return s.editor.SetOvertone(h, idx, o) })
	case http.MethodDelete:
		s.mutateSignal(w, h, func() error { return s.editor.RemoveOvertone(h, idx) })
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *server) routeSignal(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	var match []string
	for _, reg := range []*regexp.Regexp{signalRequestReg, propertyRequestReg, overtonesRequestReg, overtoneRequestReg} {
		if match = reg.FindStringSubmatch(path); match != nil {
			break
		}
	}
	if match == nil {
		http.NotFound(w, r)
		return
	}
	h, err := editor.ParseHandle(match[1])
	if err != nil {
		s.handleError(w, err)
		return
	}
	switch {
	case signalRequestReg.MatchString(path):
		s.signal(w, r, h)
	case propertyRequestReg.MatchString(path):
		s.property(w, r, h, match[2])
	case overtonesRequestReg.MatchString(path):
		s.overtones(w, r, h)
	default:
		s.overtone(w, r, h, match[2])
	}
}

func (s *server) renderSignal(w http.ResponseWriter, r *http.Request) {
	match := wavRequestReg.FindStringSubmatch(r.URL.Path)
	if match == nil {
		s.handleError(w, fmt.Errorf("missing signal ID in path %q: %w", r.URL.Path, signals.MalformedInputError))
		return
	}
	h, err := editor.ParseHandle(match[1])
	if err != nil {
		s.handleError(w, err)
		return
	}
	sig, err := s.editor.Snapshot(h)
	if err != nil {
		s.handleError(w, err)
		return
	}
	samples := sig.Samples()
	if peak := samples.Peak(); peak > 1 {
		s.logger.Warn("samples will be clamped", zap.String("signal", sig.Name), zap.Float64("peak", peak))
	}
	w.Header().Set("Content-Type", "audio/wav")
	if err := pcm.WriteWAV(w, samples, sig.SampleRate); err != nil {
		s.handleError(w, fmt.Errorf("unable to render WAV response: %w", err))
		return
	}
}

func (s *server) stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	if s.player != nil {
		if err := s.player.Stop(); err != nil {
			s.handleError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) replay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	if s.player == nil {
		s.handleError(w, fmt.Errorf("playback disabled: %w", pcm.UnsupportedAudioFormatError))
		return
	}
	if err := s.player.Replay(); err != nil {
		s.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/signals", s.listSignals)
	mux.HandleFunc("/signals/", s.routeSignal)
	mux.HandleFunc("/signal/", s.renderSignal)
	mux.HandleFunc("/stop", s.stop)
	mux.HandleFunc("/replay", s.replay)
	return logRequests(s.logger, mux)
}

// logRequests logs each request when done, and every 10 seconds while it's being processed.
func logRequests(logger *zap.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logInProgress := int64(1)
		go func() {
			for {
				time.Sleep(10 * time.Second)
				if atomic.LoadInt64(&logInProgress) == 0 {
					break
				}
				logger.Info("processing", zap.String("method", r.Method), zap.Stringer("url", r.URL), zap.Duration("elapsed", time.Since(start)))
			}
		}()
		h.ServeHTTP(w, r)
		atomic.StoreInt64(&logInProgress, 0)
		logger.Info("served", zap.String("method", r.Method), zap.Stringer("url", r.URL), zap.Duration("elapsed", time.Since(start)))
	})
}

func main() {
	flag.Parse()
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(*documentPath), 0755); err != nil {
		logger.Fatal("unable to create document directory", zap.Error(err))
	}
	s := &server{
		logger:   logger,
		editor:   editor.New(logger),
		document: document.New(*documentPath),
		analyzer: spectrum.Analyzer{Concurrency: *concurrency},
	}
	v, err := s.document.ReadProperty(signalsKey)
	if err != nil {
		logger.Warn("unable to read document, starting without signals", zap.String("document", *documentPath), zap.Error(err))
	} else {
		// Malformed signals are logged by the editor, which then starts empty.
		s.editor.Load(v)
	}
	if *play {
		s.player = playback.New(&speaker.Device{}, pcm.Default, logger)
	}

	logger.Info("starting server", zap.String("url", "http://"+*listen))
	logger.Fatal("server stopped", zap.Error(http.ListenAndServe(*listen, s.handler())))
}
