/*
 * deposit.go, part of diadem.
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
	"os"
	"regexp"
	"strconv"
)

var (
	boxDensityRe = regexp.MustCompile(`box density avg over 20 samples:\s*([\d.]+(?:[eE][+-]?\d+)?)\s.*?\s([\d.]+(?:[eE][+-]?\d+)?)`)
	volumeRe     = regexp.MustCompile(`molecular volume in nm3: ([\d.]+)`)
	rdfPeakRe    = regexp.MustCompile(`First peak in RDF: ([\d.]+)`)
	//"Avergae" is how the analysis program spells it.
	neighborsRe = regexp.MustCompile(`Avergae neighbors of 80d0 around central 80d0: ([\d.]+)`)
)

// Deposit fills the morphology fragment from the density analysis output in
// path. The first "box density" line is the mass density and the second one the
// number density, both with their standard deviations.
func Deposit(fragment map[string]any, path string) error {
	errid := "result/Deposit"
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	text := string(b)
	set := func(key, field, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", errid, key, err)
		}
		n, err := node(fragment, "morphology", "results", key)
		if err != nil {
			return fmt.Errorf("%s: %w", errid, err)
		}
		n[field] = f
		return nil
	}
	densities := boxDensityRe.FindAllStringSubmatch(text, -1)
	for i, key := range []string{"mass_density", "number_density"} {
		if i >= len(densities) {
			break
		}
		if err := set(key, "value", densities[i][1]); err != nil {
			return err
		}
		if err := set(key, "std", densities[i][2]); err != nil {
			return err
		}
	}
	for key, re := range map[string]*regexp.Regexp{"molecular_volume": volumeRe, "rdf_first_peak": rdfPeakRe, "average_neighbors": neighborsRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if err := set(key, "value", m[1]); err != nil {
			return err
		}
	}
	return nil
}
