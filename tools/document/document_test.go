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
package document

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	v, err := ReadProperty(path, "signals")
	if err != nil || v != nil {
		t.Errorf("ReadProperty of a missing file = %v, %v, wanted nil, nil", v, err)
	}
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := ioutil.WriteFile(path, []byte(`{"other": {"kept": true}}`), 0644); err != nil {
		t.Fatal(err)
	}
	doc := New(path)
	value := []interface{}{map[string]interface{}{"name": "a", "duration": 1.0}}
	if err := doc.WriteProperty("signals", value); err != nil {
		t.Fatal(err)
	}
	got, err := doc.ReadProperty("signals")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(value, got); diff != "" {
		t.Errorf("read back differs: %v", diff)
	}
	other, err := doc.ReadProperty("other")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]interface{}{"kept": true}, other); diff != "" {
		t.Errorf("other key changed: %v", diff)
	}
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("got %v files after writing, wanted only the document", len(files))
	}
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.json")
	if err := WriteProperty(path, "signals", []interface{}{}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadProperty(path, "signals")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]interface{}{}, got); diff != "" {
		t.Errorf("got %v, wanted empty list", got)
	}
}

func TestNotAnObject(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"list.json":    `[1, 2]`,
		"garbage.json": `{"signals": `,
	} {
		path := filepath.Join(dir, name)
		if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadProperty(path, "signals"); !errors.Is(err, NotAnObjectError) {
			t.Errorf("%v: got %v, wanted NotAnObjectError", name, err)
		}
		if err := WriteProperty(path, "signals", nil); !errors.Is(err, NotAnObjectError) {
			t.Errorf("%v: writing got %v, wanted NotAnObjectError", name, err)
		}
	}
}
