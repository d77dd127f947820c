/*
 * qp.go, part of diadem.
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

package result

import (
	"fmt"
	"strings"

	"github.com/diadem/calculators/dict"
	"gonum.org/v1/gonum/floats"
)

// QPParametrizer copies the values of the mol_data.yml file in molDataPath into
// fragment. A value is copied only if both the file and the fragment have it.
//
//	homo energy          -> HOMO.value
//	lumo energy          -> LUMO.value
//	dipole (vector)      -> dipole.value (its norm) and dipole.results.dipole_vector
//	Excitation energy N  -> E(SN)
//	total_energy         -> total_energy.value
func QPParametrizer(fragment map[string]any, molDataPath string) error {
	errid := "result/QPParametrizer"
	molData, err := dict.Load(molDataPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	for src, dst := range map[string]string{"homo energy": "HOMO", "lumo energy": "LUMO", "total_energy": "total_energy"} {
		v, ok := molData[src]
		if !ok {
			continue
		}
		if _, ok := fragment[dst]; !ok {
			continue
		}
		n, err := node(fragment, dst)
		if err != nil {
			return fmt.Errorf("%s: %w", errid, err)
		}
		n["value"] = v
	}
	if d, ok := molData["dipole"]; ok {
		if _, ok := fragment["dipole"]; ok {
			if err := dipole(fragment, d); err != nil {
				return fmt.Errorf("%s: %w", errid, err)
			}
		}
	}
	for k, v := range molData {
		if !strings.HasPrefix(k, "Excitation energy ") {
			continue
		}
		f := strings.Fields(k)
		skey := fmt.Sprintf("E(S%s)", f[len(f)-1])
		if _, ok := fragment[skey]; ok {
			fragment[skey] = v
		}
	}
	return nil
}

func dipole(fragment map[string]any, d any) error {
	raw, ok := d.([]any)
	if !ok || len(raw) < 3 {
		return fmt.Errorf("dipole is not a 3D vector: %v", d)
	}
	vec := make([]float64, 3)
	for i := range vec {
		f, ok := toFloat(raw[i])
		if !ok {
			return fmt.Errorf("dipole component %d is not a number: %v", i, raw[i])
		}
		vec[i] = f
	}
	n, err := node(fragment, "dipole")
	if err != nil {
		return err
	}
	n["value"] = floats.Norm(vec, 2)
	res, err := node(fragment, "dipole", "results")
	if err != nil {
		return err
	}
	res["dipole_vector"] = raw
	return nil
}
