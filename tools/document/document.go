/* document stores named properties in a JSON object file.
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
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

// NotAnObjectError is returned when the document file doesn't contain a JSON object.
var NotAnObjectError = errors.New("document is not a JSON object")

// Document is a JSON object file. Missing files read as empty objects.
type Document struct {
	Path string

	mu sync.Mutex
}

// New returns a document stored at path.
func New(path string) *Document {
	return &Document{Path: path}
}

func (d *Document) load() (map[string]interface{}, error) {
	b, err := ioutil.ReadFile(d.Path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	} else if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return map[string]interface{}{}, nil
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%q: %v: %w", d.Path, err, NotAnObjectError)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%q contains a %T: %w", d.Path, v, NotAnObjectError)
	}
	return obj, nil
}

// ReadProperty returns the decoded value of the key, or nil if it isn't set.
func (d *Document) ReadProperty(key string) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, err := d.load()
	if err != nil {
		return nil, err
	}
	return obj[key], nil
}

// WriteProperty sets the key to the JSON encoding of value, keeping all other keys.
// The file is replaced atomically.
func (d *Document) WriteProperty(key string, value interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, err := d.load()
	if err != nil {
		return err
	}
	obj[key] = value
	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(d.Path), filepath.Base(d.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.Path)
}

// ReadProperty returns the value of the key in the JSON object file at path.
func ReadProperty(path, key string) (interface{}, error) {
	return New(path).ReadProperty(key)
}

// WriteProperty sets the key in the JSON object file at path, creating it if necessary.
func WriteProperty(path, key string, value interface{}) error {
	return New(path).WriteProperty(key, value)
}
