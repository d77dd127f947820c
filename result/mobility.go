/*
 * mobility.go, part of diadem.
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
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/diadem/calculators/dict"
	"gonum.org/v1/gonum/stat"
)

// Mobility holds the field dependent mobility of one carrier, as lightforge
// reports it, and its extrapolation to zero field.
type Mobility struct {
	Carrier    string
	Fields     []float64
	Mobilities []float64
	Std        []float64
	Stderr     []float64 //Std over the square root of the number of simulations
	ZeroField  float64
	Intercept  float64 //of ln(mobility) against sqrt(field)
	Slope      float64
}

// ReadMobilities reads the field, mobility and standard deviation columns of a
// mobilities_all_fields.dat file.
func ReadMobilities(path string) (fields, mobilities, std []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
			continue
		}
		if len(parts) < 3 {
			return nil, nil, nil, fmt.Errorf("%s:%d: expected 3 columns, got %d", path, line, len(parts))
		}
		var vals [3]float64
		for i := range vals {
			vals[i], err = strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
		}
		fields = append(fields, vals[0])
		mobilities = append(mobilities, vals[1])
		std = append(std, vals[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, nil, err
	}
	if len(fields) == 0 {
		return nil, nil, nil, fmt.Errorf("%s: no data", path)
	}
	return fields, mobilities, std, nil
}

// Simulations returns experiments[0].simulations from the lightforge settings in path.
func Simulations(path string) (int, error) {
	settings, err := dict.Load(path)
	if err != nil {
		return 0, err
	}
	exps, ok := settings["experiments"].([]any)
	if !ok || len(exps) == 0 {
		return 0, fmt.Errorf("%s: no experiments", path)
	}
	exp, ok := exps[0].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("%s: the first experiment is not a mapping", path)
	}
	n, ok := toFloat(exp["simulations"])
	if !ok || n < 1 {
		return 0, fmt.Errorf("%s: bad number of simulations: %v", path, exp["simulations"])
	}
	return int(n), nil
}

// ZeroField fits ln(mobility) against sqrt(field) by least squares and returns
// the intercept, the slope, and the extrapolated zero field mobility.
// Points with non-positive mobility can't be on a log scale and are left out.
func ZeroField(fields, mobilities []float64) (intercept, slope, mu0 float64, err error) {
	var x, y []float64
	for i := range fields {
		if mobilities[i] <= 0 || fields[i] < 0 {
			continue
		}
		x = append(x, math.Sqrt(fields[i]))
		y = append(y, math.Log(mobilities[i]))
	}
	switch len(x) {
	case 0:
		return 0, 0, 0, fmt.Errorf("no positive mobilities to fit")
	case 1:
		//A single point gives a flat line.
		return y[0], 0, math.Exp(y[0]), nil
	}
	intercept, slope = stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(intercept) {
		//all the fields are the same
		intercept, slope = stat.Mean(y, nil), 0
	}
	return intercept, slope, math.Exp(intercept), nil
}

// NewMobility reads the lightforge outputs and computes the zero field mobility
// for carrier.
func NewMobility(mobilitiesPath, settingsPath, carrier string) (*Mobility, error) {
	M := &Mobility{Carrier: carrier}
	var err error
	M.Fields, M.Mobilities, M.Std, err = ReadMobilities(mobilitiesPath)
	if err != nil {
		return nil, err
	}
	n, err := Simulations(settingsPath)
	if err != nil {
		return nil, err
	}
	sq := math.Sqrt(float64(n))
	M.Stderr = make([]float64, len(M.Std))
	for i, s := range M.Std {
		M.Stderr[i] = s / sq
	}
	M.Intercept, M.Slope, M.ZeroField, err = ZeroField(M.Fields, M.Mobilities)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", mobilitiesPath, err)
	}
	return M, nil
}

// Lightforge fills the <carrier>_mobility fragment from the lightforge outputs and,
// if plotPath is not empty, plots the mobility against the square root of the field
// there. carrier is either "hole" or "electron".
func Lightforge(fragment map[string]any, mobilitiesPath, settingsPath, carrier, plotPath string) error {
	errid := "result/Lightforge"
	if carrier != "hole" && carrier != "electron" {
		return fmt.Errorf("%s: carrier may be either 'hole' or 'electron', not '%s'", errid, carrier)
	}
	M, err := NewMobility(mobilitiesPath, settingsPath, carrier)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	key := carrier + "_mobility"
	for field, vals := range map[string][]float64{"fields": M.Fields, "mobilities": M.Mobilities, "stderr": M.Stderr} {
		n, err := node(fragment, key, "results", field)
		if err != nil {
			return fmt.Errorf("%s: %w", errid, err)
		}
		n["values"] = vals
	}
	top, err := node(fragment, key)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	top["value"] = M.ZeroField
	if plotPath == "" {
		return nil
	}
	if err := M.Plot(plotPath); err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	return nil
}
