/*
 * qpparametrizer.go, part of diadem.
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
	"errors"
	"io/fs"
	"os"
	"strings"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/fileset"
	"github.com/diadem/calculators/result"
	"go.uber.org/zap"
)

// QPParametrizerHandle runs QPParametrizer. The same program is used by several
// stages (QPParametrizer, QPParametrizer_S0_opt, QPParametrizer_emission...), each
// with its own template directory.
type QPParametrizerHandle struct {
	name     string
	command  string
	settings string
	molData  string
	snapshot string
	stokes   string
}

// NewQPParametrizerHandle returns a handle for the stage name, with the default settings.
func NewQPParametrizerHandle(name string) *QPParametrizerHandle {
	run := &QPParametrizerHandle{name: name}
	run.SetDefaults()
	return run
}

// SetDefaults sets the default program and file names. Stages for optimized
// geometries (QPParametrizer_S0_opt, QPParametrizer_S1_opt) keep a copy of the
// output molecule as molecule_S0_opt.mol2 or molecule_S1_opt.mol2.
func (O *QPParametrizerHandle) SetDefaults() {
	O.command = Program(O.name)
	O.settings = "parametrizer_settings.yml"
	O.molData = "mol_data.yml"
	O.snapshot = ""
	if s := Suffix(O.name); strings.HasSuffix(s, "_opt") {
		O.snapshot = "molecule_" + s + ".mol2"
	}
	O.stokes = "results.yml"
}

// SetCommand sets the QPParametrizer executable.
func (O *QPParametrizerHandle) SetCommand(name string) {
	O.command = name
}

// SetSnapshot sets the name of the copy of output_molecule.mol2. An empty name
// means no copy.
func (O *QPParametrizerHandle) SetSnapshot(name string) {
	O.snapshot = name
}

// SetStokesShift sets the file with the Stokes shift analysis. If the file is there
// after the run, and the result fragment has a Stokes shift entry, it is filled from it.
// An empty name disables it.
func (O *QPParametrizerHandle) SetStokesShift(name string) {
	O.stokes = name
}

// Name returns the stage name.
func (O *QPParametrizerHandle) Name() string { return O.name }

// Run runs the stage.
func (O *QPParametrizerHandle) Run(ctx context.Context, E *diadem.Env) error {
	if err := settings(E, O.settings); err != nil {
		return diadem.ErrDecorate(err, "QPParametrizerHandle.Run")
	}
	if err := run(ctx, E, E.Dir, O.command); err != nil {
		return diadem.ErrDecorate(err, "QPParametrizerHandle.Run")
	}
	if O.snapshot != "" {
		if err := fileset.CopyFile(E.Path("output_molecule.mol2"), E.Path(O.snapshot)); err != nil {
			return diadem.ErrDecorate(err, "QPParametrizerHandle.Run")
		}
	}
	if err := result.QPParametrizer(E.Result, E.Path(O.molData)); err != nil {
		return err
	}
	if O.stokes == "" || !hasStokesShift(E.Result) {
		return nil
	}
	if _, err := os.Stat(E.Path(O.stokes)); errors.Is(err, fs.ErrNotExist) {
		E.Log().Info("No Stokes shift analysis found", zap.String("file", O.stokes))
		return nil
	}
	return result.StokesShift(E.Result, E.Path(O.stokes))
}

func hasStokesShift(fragment map[string]any) bool {
	_, a := fragment["StokesShift"]
	_, b := fragment["stokes_shift"]
	return a || b
}
