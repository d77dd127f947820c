/*
 * stokes.go, part of diadem.
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

	"github.com/diadem/calculators/dict"
)

// StokesShift copies the "Stokes shift results:" section of the QuantumPatch
// results file in path into the StokesShift fragment. Fragments that use the
// key stokes_shift instead are also understood.
func StokesShift(fragment map[string]any, path string) error {
	errid := "result/StokesShift"
	data, err := dict.Load(path)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	section, ok := data["Stokes shift results:"].(map[string]any)
	if !ok {
		return fmt.Errorf("%s: %s has no 'Stokes shift results:' section", errid, path)
	}
	key := "StokesShift"
	if _, ok := fragment[key]; !ok {
		key = "stokes_shift"
	}
	ss, err := node(fragment, key)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	results, _ := ss["results"].(map[string]any)
	if ev, ok := section["Stokes shift in eV::"]; ok {
		ss["value"] = ev
		if results != nil {
			results["Stokes shift in eV"] = ev
			results["Stokes shift in nm"] = section["Stokes shift in nm::"]
		}
	}
	if _, ok := section["Excitation energy S0-S1 (S0 opt geometry) in eV:"]; ok && results != nil {
		for dst, src := range map[string]string{
			"E(S1,S0_opt) in eV": "Excitation energy S0-S1 (S0 opt geometry) in eV:",
			"E(S1,S0_opt) in nm": "Excitation energy S0-S1 (S0 opt geometry) in nm:",
			"E(S1,S1_opt) in eV": "Excitation energy S0-S1 (S1 opt geometry) in eV:",
			"E(S1,S1_opt) in nm": "Excitation energy S0-S1 (S1 opt geometry) in nm:",
		} {
			results[dst] = section[src]
		}
	}
	return nil
}
