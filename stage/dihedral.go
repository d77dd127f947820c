/*
 * dihedral.go, part of diadem.
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
	"path/filepath"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/fileset"
	"github.com/diadem/calculators/runner"
)

// DihedralParametrizerHandle adds the dihedral angles to the force field of the
// molecule and parametrizes them with DihedralParametrizer, under MPI.
type DihedralParametrizerHandle struct {
	command  string
	obabel   string
	settings string
	hostfile string
	host     string
	nCPU     int
}

// NewDihedralParametrizerHandle returns a handle with the default settings.
func NewDihedralParametrizerHandle() *DihedralParametrizerHandle {
	run := new(DihedralParametrizerHandle)
	run.SetDefaults()
	return run
}

// SetDefaults sets the default programs and files. The hostfile is hostfile.txt,
// unless HOSTFILE says otherwise, and the host is this machine.
func (O *DihedralParametrizerHandle) SetDefaults() {
	O.command = "DihedralParametrizer"
	O.obabel = "obabel"
	O.settings = "dhp_settings.yml"
	O.hostfile = "hostfile.txt"
	O.host, _ = os.Hostname()
	if O.host == "" {
		O.host = "localhost"
	}
	O.nCPU = defaultCPU()
}

// SetnCPU sets the number of MPI slots, used when the workflow doesn't set one.
func (O *DihedralParametrizerHandle) SetnCPU(cpu int) { O.nCPU = cpu }

// SetCommand sets the DihedralParametrizer executable.
func (O *DihedralParametrizerHandle) SetCommand(name string) { O.command = name }

// SetHost sets the host name written in the hostfile.
func (O *DihedralParametrizerHandle) SetHost(host string) { O.host = host }

// Name returns "DihedralParametrizer".
func (O *DihedralParametrizerHandle) Name() string { return "DihedralParametrizer" }

// Run runs the stage. It sets HOSTFILE in the Env, so later stages see it.
func (O *DihedralParametrizerHandle) Run(ctx context.Context, E *diadem.Env) error {
	hostfile, ok := E.LookupEnv("HOSTFILE")
	if !ok || hostfile == "" {
		hostfile = O.hostfile
	}
	E.Setenv("HOSTFILE", hostfile)
	hpath := hostfile
	if !filepath.IsAbs(hpath) {
		hpath = E.Path(hpath)
	}
	if err := fileset.WriteHostfile(hpath, O.host, ncpu(E, O.nCPU)); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	deptools := E.Getenv("DEPTOOLS")
	if deptools == "" {
		return errorf(O.Name(), ErrMissingEnv, "DEPTOOLS")
	}
	if err := run(ctx, E, E.Dir, filepath.Join(deptools, "add_dihedral_angles.sh"), "output_molecule.mol2", "molecule.spf"); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	if _, err := fileset.ZipPatterns(E.Dir, []string{"output_molecule.mol2", "molecule.pdb", "molecule.spf"}, E.Path("report.zip")); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	if err := runTo(ctx, E, E.Dir, "output_molecule.svg", O.obabel, "-imol2", "output_molecule.mol2", "-osvg"); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	if err := settings(E, O.settings); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	if err := requireFiles(E.Dir, "molecule.pdb", "molecule.spf", O.settings); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	exe, err := E.LookPath(O.command)
	if err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	line := runner.MPI{Launcher: true, Hostfile: true}.Line(exe, "./"+O.settings)
	if err := E.Run(ctx, runner.Command{Line: line}); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	if err := requireFiles(E.Dir, "molecule.pdb", "dihedral_forcefield.spf"); err != nil {
		return diadem.ErrDecorate(err, "DihedralParametrizerHandle.Run")
	}
	//These are the names Deposit looks for.
	for from, to := range map[string]string{"molecule.pdb": "molecule_0.pdb", "dihedral_forcefield.spf": "molecule_0.spf"} {
		if err := os.Rename(E.Path(from), E.Path(to)); err != nil {
			return errorf(O.Name(), ErrNoInput, "%s", err)
		}
	}
	return nil
}
