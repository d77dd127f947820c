/*
 * lightforge.go, part of diadem.
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

package stage

import (
	"context"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/dict"
	"github.com/diadem/calculators/result"
	"github.com/diadem/calculators/runner"
)

// LightforgeHandle runs the lightforge kinetic Monte Carlo for one carrier type.
// The stage name is lightforge_<carrier>, with carrier either hole or electron.
type LightforgeHandle struct {
	name     string
	command  string
	carrier  string
	settings string
	nCPU     int
}

// NewLightforgeHandle returns a handle for the stage name, with the default settings.
func NewLightforgeHandle(name string) *LightforgeHandle {
	run := &LightforgeHandle{name: name}
	run.SetDefaults()
	return run
}

// SetDefaults sets the program and carrier from the stage name.
func (O *LightforgeHandle) SetDefaults() {
	O.command = Program(O.name)
	O.carrier = Suffix(O.name)
	O.settings = "settings"
	O.nCPU = defaultCPU()
}

// SetnCPU sets the number of MPI ranks, used when the workflow doesn't set one.
func (O *LightforgeHandle) SetnCPU(cpu int) { O.nCPU = cpu }

// SetCommand sets the lightforge executable.
func (O *LightforgeHandle) SetCommand(name string) { O.command = name }

// Carrier returns the carrier type of the stage.
func (O *LightforgeHandle) Carrier() string { return O.carrier }

// Name returns the stage name.
func (O *LightforgeHandle) Name() string { return O.name }

// Run runs the stage, and fills <carrier>_mobility in the result fragment.
// It also writes the plot <carrier>_mobility_vs_sqrt_field.png.
func (O *LightforgeHandle) Run(ctx context.Context, E *diadem.Env) error {
	if O.carrier != "hole" && O.carrier != "electron" {
		return errorf(O.name, ErrBadName, "the carrier must be hole or electron, not '%s'", O.carrier)
	}
	if err := settings(E, O.settings); err != nil {
		return diadem.ErrDecorate(err, "LightforgeHandle.Run")
	}
	if err := dict.SetCarrierType(E.Path(O.settings), O.carrier); err != nil {
		return err
	}
	exe, err := E.LookPath(O.command)
	if err != nil {
		return diadem.ErrDecorate(err, "LightforgeHandle.Run")
	}
	E.Setenv("OMP_NUM_THREADS", "1")
	line := runner.MPI{NP: ncpu(E, O.nCPU), Export: []string{"OMP_NUM_THREADS"}}.Line(exe, "-s", O.settings)
	if err := E.Run(ctx, runner.Command{Line: line}); err != nil {
		return diadem.ErrDecorate(err, "LightforgeHandle.Run")
	}
	return result.Lightforge(E.Result,
		E.Path("results", "experiments", "current_characteristics", "mobilities_all_fields.dat"),
		E.Path(O.settings), O.carrier, E.Path(O.carrier+"_mobility_vs_sqrt_field.png"))
}
