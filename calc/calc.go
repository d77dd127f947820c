/*
 * calc.go, part of diadem.
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

//Package calc reads the two inputs of a workflow run: the molecule and the calculator.
package calc

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/diadem/calculators/dict"
	"gopkg.in/yaml.v3"
)

// ErrNoChanges is returned when a stage has no entry in the calculator specification.
var ErrNoChanges = errors.New("no changes for stage in calculator specification")

// Molecule identifies the molecule that the workflow works on.
type Molecule struct {
	InChI    string         `yaml:"inchi"`
	InChIKey string         `yaml:"inchiKey"`
	Extra    map[string]any `yaml:",inline"`
}

// Calculator is the calculator.yml of a run: what it provides, which files it returns
// and the settings of every stage.
type Calculator struct {
	ID            string         `yaml:"calculatorId"`
	Version       string         `yaml:"version"`
	Provides      []string       `yaml:"provides"`
	Files         []string       `yaml:"files"`
	Specification map[string]any `yaml:"specification"`
}

// ReadMolecule reads and checks molecule.yml.
func ReadMolecule(path string) (*Molecule, error) {
	errid := "calc/ReadMolecule"
	M := new(Molecule)
	present, err := decode(path, M)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	for _, k := range []string{"inchi", "inchiKey"} {
		if !present[k] {
			return nil, fmt.Errorf("%s: %s: missing required key '%s'", errid, path, k)
		}
	}
	if M.InChIKey == "" {
		return nil, fmt.Errorf("%s: %s: empty 'inchiKey'", errid, path)
	}
	return M, nil
}

// ReadCalculator reads and checks calculator.yml.
func ReadCalculator(path string) (*Calculator, error) {
	errid := "calc/ReadCalculator"
	C := new(Calculator)
	present, err := decode(path, C)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	for _, k := range []string{"provides", "files", "specification"} {
		if !present[k] {
			return nil, fmt.Errorf("%s: %s: missing required key '%s'", errid, path, k)
		}
	}
	if C.Specification == nil {
		C.Specification = map[string]any{}
	}
	C.Specification = dict.Normalize(C.Specification).(map[string]any)
	return C, nil
}

//decode unmarshals the YAML mapping in path into v and returns the set of
//top-level keys found in the file.
func decode(path string, v any) (map[string]bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: not a YAML mapping", path)
	}
	present := make(map[string]bool)
	root := node.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		present[root.Content[i].Value] = true
	}
	if err := root.Decode(v); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return present, nil
}

// Global returns the settings shared by all the stages, or an empty map.
func (C *Calculator) Global() map[string]any {
	if g, ok := C.Specification["global"].(map[string]any); ok {
		return g
	}
	return map[string]any{}
}

// Changes returns the overrides for stage. A stage with an empty entry gets an
// empty, non-nil map. A stage without an entry gives ErrNoChanges.
func (C *Calculator) Changes(stage string) (map[string]any, error) {
	v, ok := C.Specification[stage]
	if !ok {
		return nil, fmt.Errorf("calc/Changes: %s: %w", stage, ErrNoChanges)
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("calc/Changes: the specification of %s is not a mapping", stage)
	}
	return dict.DeepCopy(m), nil
}

// NCPU returns global.ncpus if it is set to a positive number, and fallback otherwise.
func (C *Calculator) NCPU(fallback int) int {
	switch n := C.Global()["ncpus"].(type) {
	case int:
		if n > 0 {
			return n
		}
	case float64:
		if n >= 1 {
			return int(n)
		}
	}
	return fallback
}

// StopAfter returns the value of global.stop_after, or "" if it is not set.
// The value must be one of valid.
func (C *Calculator) StopAfter(valid []string) (string, error) {
	v, ok := C.Global()["stop_after"]
	if !ok || v == nil {
		return "", nil
	}
	name, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("calc/StopAfter: stop_after must be a stage name, got %v", v)
	}
	for _, s := range valid {
		if s == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("calc/StopAfter: invalid value for stop_after '%s', must be one of: %s", name, strings.Join(valid, ", "))
}
