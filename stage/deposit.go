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

package stage

import (
	"context"
	"os"
	"os/user"
	"path/filepath"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/dict"
	"github.com/diadem/calculators/fileset"
	"github.com/diadem/calculators/result"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//restartFiles are packed into restartfile.zip after a Deposit run.
var restartFiles = []string{"deposited_*.pdb.gz", "static_parameters.dpcf.gz",
	"static_parameters.dpcf_molinfo.dat.gz", "grid.vdw.gz", "grid.es.gz", "neighbourgrid.vdw.gz"}

//logFiles are removed from the stage directory after a run in a scratch directory.
var logFiles = []string{"**/*.stdout", "**/*.stderr", "**/stdout", "**/stderr"}

// DepositHandle builds a morphology with Deposit and analyses it with
// QuantumPatchAnalysis. Deposit runs in a scratch directory when one is available.
type DepositHandle struct {
	command  string
	obabel   string
	analysis string
	cargs    string
	cutoff   string
	newID    func() string
}

// NewDepositHandle returns a handle with the default settings.
func NewDepositHandle() *DepositHandle {
	run := new(DepositHandle)
	run.SetDefaults()
	return run
}

// SetDefaults sets the default programs and files.
func (O *DepositHandle) SetDefaults() {
	O.command = "Deposit"
	O.obabel = "obabel"
	O.analysis = "QuantumPatchAnalysis"
	O.cargs = "deposit_cargs.yml"
	O.cutoff = "7.0"
	O.newID = uuid.NewString
}

// SetCommand sets the Deposit executable.
func (O *DepositHandle) SetCommand(name string) { O.command = name }

// SetIDFunc sets the function that names the scratch directory of a run.
func (O *DepositHandle) SetIDFunc(f func() string) {
	if f != nil {
		O.newID = f
	}
}

// Name returns "Deposit".
func (O *DepositHandle) Name() string { return "Deposit" }

// Run runs the stage.
func (O *DepositHandle) Run(ctx context.Context, E *diadem.Env) error {
	if err := settings(E, O.cargs); err != nil {
		return diadem.ErrDecorate(err, "DepositHandle.Run")
	}
	id := O.newID()
	E.Log().Info("Generated UUID: " + id)
	E.Setenv("GENERATED_UUID", id)
	work, err := O.workDir(E, id)
	if err != nil {
		return diadem.ErrDecorate(err, "DepositHandle.Run")
	}
	host, _ := os.Hostname()
	E.Log().Info("Deposit running on node "+host+" in directory "+work, zap.String("work_dir", work))
	err = O.deposit(ctx, E, work)
	O.cleanup(E, work)
	if err != nil {
		return diadem.ErrDecorate(err, "DepositHandle.Run")
	}
	if err := runTo(ctx, E, E.Dir, "DensityAnalysisInit.out", O.analysis); err != nil {
		return diadem.ErrDecorate(err, "DepositHandle.Run")
	}
	if err := runTo(ctx, E, E.Dir, "DensityAnalysis.out", O.analysis, "Analysis.Density.enabled=True", "Analysis.RDF.enabled=True"); err != nil {
		return diadem.ErrDecorate(err, "DepositHandle.Run")
	}
	if err := appendFile(E.Path("deposit_settings.yml"), E.Path("output_dict.yml")); err != nil {
		return errorf(O.Name(), ErrNoInput, "%s", err)
	}
	return result.Deposit(E.Result, E.Path("DensityAnalysis.out"))
}

//workDir picks and fills the directory where Deposit runs: $SCRATCH/<user>/<id>
//if SCRATCH is a directory, else $HOME/tmp/<id> if HOME is one, else the stage
//directory itself.
func (O *DepositHandle) workDir(E *diadem.Env, id string) (string, error) {
	work := E.Dir
	if scratch := E.Getenv("SCRATCH"); isDir(scratch) {
		work = filepath.Join(scratch, username(E), id)
	} else if home := E.Getenv("HOME"); isDir(home) {
		work = filepath.Join(home, "tmp", id)
	}
	if work == E.Dir {
		return work, nil
	}
	if err := os.MkdirAll(work, 0o755); err != nil {
		return "", errorf(O.Name(), ErrNoInput, "%s", err)
	}
	if err := fileset.CopyTree(E.Dir, work); err != nil {
		return "", err
	}
	return work, nil
}

//deposit runs Deposit and the post-processing of its morphology in work.
func (O *DepositHandle) deposit(ctx context.Context, E *diadem.Env, work string) error {
	if E.Getenv("DO_RESTART") == "True" {
		zp := filepath.Join(work, "restartfile.zip")
		if !isFile(zp) {
			return errorf(O.Name(), ErrRestart, "%s", zp)
		}
		if err := fileset.Unzip(zp, work); err != nil {
			return err
		}
		E.Log().Info("Found Checkpoint, extracting for restart.")
		if err := os.Remove(zp); err != nil {
			return errorf(O.Name(), ErrRestart, "%s", err)
		}
	}
	args, err := dict.BuildCommand(O.command, filepath.Join(work, O.cargs))
	if err != nil {
		return err
	}
	if err := run(ctx, E, work, args[0], args[1:]...); err != nil {
		return err
	}
	if err := requireFiles(work, "structure.cml"); err != nil {
		return err
	}
	if err := run(ctx, E, work, O.obabel, "-i", "cml", "structure.cml", "-o", "mol2", "-O", "structure.mol2"); err != nil {
		return err
	}
	deptools := E.Getenv("DEPTOOLS")
	if deptools == "" {
		return errorf(O.Name(), ErrMissingEnv, "DEPTOOLS")
	}
	if err := run(ctx, E, work, filepath.Join(deptools, "add_periodic_copies.py"), O.cutoff); err != nil {
		return err
	}
	periodic := filepath.Join(work, "periodic_output")
	if err := os.Rename(filepath.Join(periodic, "structurePBC.cml"), filepath.Join(work, "structurePBC.cml")); err != nil {
		return errorf(O.Name(), ErrNoInput, "%s", err)
	}
	os.RemoveAll(periodic)
	if _, err := fileset.ZipPatterns(work, restartFiles, filepath.Join(work, "restartfile.zip")); err != nil {
		return err
	}
	return fileset.RemoveMatches(work, restartFiles...)
}

//cleanup copies work back into the stage directory, drops the program logs and
//removes work. Failures are only logged.
func (O *DepositHandle) cleanup(E *diadem.Env, work string) {
	if work == E.Dir {
		return
	}
	E.Log().Info("Cleaning up working directory: " + work)
	if err := fileset.CopyTree(work, E.Dir); err != nil {
		E.Log().Warn("Failed to copy the working directory back", zap.Error(err))
	}
	if err := fileset.RemoveMatches(E.Dir, logFiles...); err != nil {
		E.Log().Warn("Failed to remove log files", zap.Error(err))
	}
	if err := os.RemoveAll(work); err != nil {
		E.Log().Warn("Failed to remove working directory "+work, zap.Error(err))
	}
}

func username(E *diadem.Env) string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if u := E.Getenv("USER"); u != "" {
		return u
	}
	return "diadem"
}

func isDir(p string) bool {
	if p == "" {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

//appendFile appends the contents of src to dst.
func appendFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
