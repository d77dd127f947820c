/*
 * dict.go, part of diadem.
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

//Package dict applies the per-stage overrides of a calculator to the settings
//templates of the programs, and turns nested settings into command line arguments.
package dict

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// KeyError is returned when a change refers to a key that the original
// settings don't have.
type KeyError struct {
	Path string //dotted path of the missing key
	deco []string
}

func (E *KeyError) Error() string {
	return fmt.Sprintf("key '%s' not found in the original dictionary", E.Path)
}

// Decorate adds dec to the trail of the error and returns the trail.
func (E *KeyError) Decorate(dec string) []string {
	if dec == "" {
		return E.deco
	}
	E.deco = append(E.deco, dec)
	return E.deco
}

// Update merges changes into original, in place. Every key in changes must already
// exist in original, at every level. Mappings are merged recursively, lists are merged
// item by item (mappings recursively, anything else replaced, extra items appended), and
// everything else is replaced. A mapping or list that meets a value of another kind
// replaces it.
func Update(original, changes map[string]any) error {
	err := update(original, changes, "")
	if err != nil {
		if e, ok := err.(*KeyError); ok {
			e.Decorate("Update")
		}
	}
	return err
}

func update(original, changes map[string]any, prefix string) error {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := changes[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		ov, ok := original[k]
		if !ok {
			return &KeyError{Path: path}
		}
		switch cv := v.(type) {
		case map[string]any:
			om, ok := ov.(map[string]any)
			if !ok {
				original[k] = cv
				continue
			}
			if err := update(om, cv, path); err != nil {
				return err
			}
		case []any:
			ol, ok := ov.([]any)
			if !ok {
				original[k] = cv
				continue
			}
			for i, item := range cv {
				if i >= len(ol) {
					ol = append(ol, item)
					continue
				}
				im, iok := item.(map[string]any)
				om, ook := ol[i].(map[string]any)
				if iok && ook {
					if err := update(om, im, fmt.Sprintf("%s[%d]", path, i)); err != nil {
						return err
					}
					continue
				}
				ol[i] = item
			}
			original[k] = ol
		default:
			original[k] = v
		}
	}
	return nil
}

// Load reads a YAML mapping from path. An empty file gives an empty map.
func Load(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dict/Load: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("dict/Load: can't parse %s: %w", path, err)
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	m, ok := Normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dict/Load: %s doesn't contain a mapping", path)
	}
	return m, nil
}

// Save writes data to path as YAML.
func Save(data map[string]any, path string) error {
	b, err := Marshal(data)
	if err != nil {
		return fmt.Errorf("dict/Save: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("dict/Save: %w", err)
	}
	return nil
}

// CopyWithChanges reads the settings template src, applies changes to it and
// writes the result to dst.
func CopyWithChanges(src string, changes map[string]any, dst string) error {
	original, err := Load(src)
	if err != nil {
		return err
	}
	if err := Update(original, changes); err != nil {
		if e, ok := err.(*KeyError); ok {
			e.Decorate("CopyWithChanges: " + src)
		}
		return err
	}
	return Save(original, dst)
}

// Normalize turns the map[any]any values that YAML may produce for non-string
// keys into map[string]any, recursively, so the rest of the module only deals with
// string keys.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = Normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = Normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = Normalize(val)
		}
		return t
	default:
		return v
	}
}

// DeepCopy returns a copy of m that shares no maps or slices with it.
func DeepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return deepCopy(m).(map[string]any)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, val := range t {
			c[k] = deepCopy(val)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, val := range t {
			c[i] = deepCopy(val)
		}
		return c
	default:
		return v
	}
}
