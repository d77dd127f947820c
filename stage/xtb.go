/*
 * xtb.go, part of diadem.
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
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	diadem "github.com/diadem/calculators"
)

// XTBHandle builds a 3D structure for the molecule from its InChI with obabel
// and pre-optimizes it with xtb.
//
//	mol.inchi -[obabel]-> mol.xyz -[xtb]-> xtbopt.xyz -[obabel]-> input_molecule.mol2
type XTBHandle struct {
	command   string
	obabel    string
	inputname string
	nCPU      int
}

// NewXTBHandle returns a handle with the default settings.
func NewXTBHandle() *XTBHandle {
	run := new(XTBHandle)
	run.SetDefaults()
	return run
}

// SetDefaults sets the default programs, input name and number of CPUs.
func (O *XTBHandle) SetDefaults() {
	O.command = "xtb"
	O.obabel = "obabel"
	O.inputname = "mol"
	O.nCPU = defaultCPU()
}

// SetnCPU sets the number of CPUs for xtb, used when the workflow doesn't set one.
func (O *XTBHandle) SetnCPU(cpu int) {
	O.nCPU = cpu
}

// SetCommand sets the xtb executable.
func (O *XTBHandle) SetCommand(name string) {
	O.command = name
}

// SetObabel sets the obabel executable.
func (O *XTBHandle) SetObabel(name string) {
	O.obabel = name
}

// Name returns "xtb".
func (O *XTBHandle) Name() string { return "xtb" }

// Run runs the stage.
func (O *XTBHandle) Run(ctx context.Context, E *diadem.Env) error {
	if E.Molecule == nil || E.Molecule.InChI == "" {
		return errorf(O.Name(), ErrNoInput, "no InChI for the molecule")
	}
	inchi := O.inputname + ".inchi"
	xyz := O.inputname + ".xyz"
	if err := os.WriteFile(E.Path(inchi), []byte(E.Molecule.InChI+"\n"), 0o644); err != nil {
		return errorf(O.Name(), ErrNoInput, "%s", err)
	}
	E.Log().Info("Generate 3D conformer of the molecule . . .")
	if err := run(ctx, E, E.Dir, O.obabel, "-i", "inchi", inchi, "-o", "xyz", "-O", xyz, "--gen3d"); err != nil {
		return diadem.ErrDecorate(err, "XTBHandle.Run")
	}
	if err := requireFiles(E.Dir, xyz); err != nil {
		return diadem.ErrDecorate(err, "XTBHandle.Run")
	}
	E.Log().Info("xtb optimization of 3D conformer of the molecule . . .")
	args := []string{xyz, "--opt"}
	if n := ncpu(E, O.nCPU); n > 1 {
		args = append(args, "-P", fmt.Sprintf("%d", n))
	}
	if err := runLog(ctx, E, E.Dir, "xtb.out", O.command, args...); err != nil {
		return diadem.ErrDecorate(err, "XTBHandle.Run")
	}
	if err := requireFiles(E.Dir, "xtbopt.xyz"); err != nil {
		return diadem.ErrDecorate(err, "XTBHandle.Run")
	}
	if !normalTermination(E.Path("xtb.out")) {
		return errorf(O.Name(), ErrNoTermination, "xtb reported abnormal termination in xtb.out")
	}
	E.Log().Info("Transfer xyz to mol2 . . .")
	if err := run(ctx, E, E.Dir, O.obabel, "-i", "xyz", "xtbopt.xyz", "-o", "mol2", "-O", "input_molecule.mol2"); err != nil {
		return diadem.ErrDecorate(err, "XTBHandle.Run")
	}
	return nil
}

//normalTermination returns false only if the last termination line of xtb
//says it ended abnormally.
func normalTermination(out string) bool {
	return !strings.Contains(searchBackwards("normal termination of x", out), "abnormal")
}

//searchBackwards returns the last line in filename that contains str, or ""
//if there is none or the file can't be read.
func searchBackwards(str, filename string) string {
	f, err := os.Open(filename)
	if err != nil {
		return ""
	}
	defer f.Close()
	last := ""
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), str) {
			last = scanner.Text()
		}
	}
	return last
}
