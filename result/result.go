/*
 * result.go, part of diadem.
 *
 *
 * Copyright 2024 The diadem authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package result fills the result fragments of the stages from the output files of
//their programs, and collects the fragments in the result document of the run.
//
//A fragment is a copy of the result.yml skeleton of the stage's template. The
//functions here only write into keys that the skeleton already has.
package result

import (
	"fmt"
	"os"
	"strings"

	"github.com/diadem/calculators/dict"
)

// Document is the result document of a run: all the fragments, merged, under the
// InChIKey of the molecule.
type Document struct {
	key  string
	data map[string]any
}

// NewDocument returns an empty document for the molecule with the given InChIKey.
func NewDocument(inchiKey string) *Document {
	return &Document{key: inchiKey, data: map[string]any{}}
}

// Merge adds the top-level keys of fragment to the document, replacing existing ones.
func (D *Document) Merge(fragment map[string]any) {
	for k, v := range fragment {
		D.data[k] = v
	}
}

// Key returns the InChIKey of the document.
func (D *Document) Key() string { return D.key }

// Data returns the merged fragments. It is not a copy.
func (D *Document) Data() map[string]any { return D.data }

// Map returns the document as it is written: {inchiKey: data}.
func (D *Document) Map() map[string]any {
	return map[string]any{D.key: D.data}
}

// Write writes the document as YAML to path.
func (D *Document) Write(path string) error {
	return WriteYAML(D.Map(), path)
}

// WriteYAML writes v as YAML to path. Whole floats keep their decimal point.
func WriteYAML(v any, path string) error {
	b, err := dict.Marshal(v)
	if err != nil {
		return fmt.Errorf("result/WriteYAML: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("result/WriteYAML: %w", err)
	}
	return nil
}

//node follows keys down nested maps from m and returns the map at the end.
func node(m map[string]any, keys ...string) (map[string]any, error) {
	cur := m
	for i, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("result fragment has no mapping at '%s'", strings.Join(keys[:i+1], "."))
		}
		cur = next
	}
	return cur, nil
}

//toFloat converts the numbers that come out of a YAML decoder to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
