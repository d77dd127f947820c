/*
 * quantumpatch.go, part of diadem.
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
	"os"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/fileset"
	"github.com/diadem/calculators/runner"
)

// QuantumPatchHandle runs QuantumPatch under MPI on the morphology from Deposit,
// and packs its Analysis directory for lightforge.
type QuantumPatchHandle struct {
	command  string
	settings string
	output   string
	nCPU     int
}

// NewQuantumPatchHandle returns a handle with the default settings.
func NewQuantumPatchHandle() *QuantumPatchHandle {
	run := new(QuantumPatchHandle)
	run.SetDefaults()
	return run
}

// SetDefaults sets the default program and files.
func (O *QuantumPatchHandle) SetDefaults() {
	O.command = "QuantumPatch"
	O.settings = "settings_ng.yml"
	O.output = "QP_output_0.zip"
	O.nCPU = defaultCPU()
}

// SetnCPU sets the number of MPI ranks, used when the workflow doesn't set one.
func (O *QuantumPatchHandle) SetnCPU(cpu int) { O.nCPU = cpu }

// SetCommand sets the QuantumPatch executable.
func (O *QuantumPatchHandle) SetCommand(name string) { O.command = name }

// Name returns "QuantumPatch".
func (O *QuantumPatchHandle) Name() string { return "QuantumPatch" }

// Run runs the stage. If SCRATCH is not set, a qp_scratch_ directory in the stage
// directory takes its place.
func (O *QuantumPatchHandle) Run(ctx context.Context, E *diadem.Env) error {
	if err := settings(E, O.settings); err != nil {
		return diadem.ErrDecorate(err, "QuantumPatchHandle.Run")
	}
	if _, ok := E.LookupEnv("SCRATCH"); !ok {
		scratch, err := os.MkdirTemp(E.Dir, "qp_scratch_")
		if err != nil {
			return errorf(O.Name(), ErrNoInput, "%s", err)
		}
		E.Setenv("SCRATCH", scratch)
	}
	E.Log().Info("SCRATCH for QuantumPatch is set to: " + E.Getenv("SCRATCH"))
	exe, err := E.LookPath(O.command)
	if err != nil {
		return diadem.ErrDecorate(err, "QuantumPatchHandle.Run")
	}
	E.Setenv("OMP_NUM_THREADS", "1")
	line := runner.MPI{NP: ncpu(E, O.nCPU), Launcher: true}.Line(exe)
	if err := E.Run(ctx, runner.Command{Line: line}); err != nil {
		return diadem.ErrDecorate(err, "QuantumPatchHandle.Run")
	}
	if err := requireFiles(E.Dir, "Analysis/files_for_kmc/files_for_kmc.zip"); err != nil {
		return diadem.ErrDecorate(err, "QuantumPatchHandle.Run")
	}
	if _, err := fileset.ZipDir(E.Path("Analysis"), E.Path(O.output)); err != nil {
		return diadem.ErrDecorate(err, "QuantumPatchHandle.Run")
	}
	E.Log().Info("Directory 'Analysis' zipped into '" + O.output + "' successfully. This will be the LF input.")
	if _, err := fileset.RenameSingle(E.Dir, "Analysis/energy/DeltaE*.png", "DeltaE.png"); err != nil {
		return diadem.ErrDecorate(err, "QuantumPatchHandle.Run")
	}
	return nil
}
