/*
 * carrier.go, part of diadem.
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

package dict

import "fmt"

const defaultInitialCarriers = 30

// SetCarrierType sets the lightforge settings in path up for either "hole" or
// "electron" transport: it switches particles.holes and particles.electrons and
// moves the initial carrier count of every experiment to the new carrier. An
// experiment without a count for the other carrier gets 30.
func SetCarrierType(path, carrier string) error {
	var on, off string
	switch carrier {
	case "hole":
		on, off = "holes", "electrons"
	case "electron":
		on, off = "electrons", "holes"
	default:
		return fmt.Errorf("dict/SetCarrierType: carrier type must be either 'hole' or 'electron', not '%s'", carrier)
	}
	config, err := Load(path)
	if err != nil {
		return err
	}
	particles, ok := config["particles"].(map[string]any)
	if !ok {
		return fmt.Errorf("dict/SetCarrierType: %s has no 'particles' section", path)
	}
	particles[on] = true
	particles[off] = false
	experiments, _ := config["experiments"].([]any)
	for _, e := range experiments {
		exp, ok := e.(map[string]any)
		if !ok {
			continue
		}
		onKey, offKey := "initial_"+on, "initial_"+off
		//a count for the other carrier moves over, else the default replaces whatever is there
		n, ok := exp[offKey]
		if !ok {
			n = defaultInitialCarriers
		}
		exp[onKey] = n
		delete(exp, offKey)
	}
	return Save(config, path)
}
