/*
 * stage.go, part of diadem.
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
	"fmt"
	"runtime"
	"strings"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/calc"
	"github.com/diadem/calculators/dict"
	"github.com/diadem/calculators/fileset"
	"github.com/diadem/calculators/runner"
	"go.uber.org/zap"
)

// Program returns the executable of a stage: the part of its name before the
// first underscore ("QPParametrizer_S0_opt" runs "QPParametrizer").
func Program(name string) string {
	p, _, _ := strings.Cut(name, "_")
	return p
}

// Suffix returns the part of a stage name after the first underscore, or "".
func Suffix(name string) string {
	_, s, _ := strings.Cut(name, "_")
	return s
}

func defaultCPU() int {
	cpu := runtime.NumCPU() / 2
	if cpu < 1 {
		cpu = 1
	}
	return cpu
}

//ncpu returns the CPUs the Env asks for, or fallback.
func ncpu(E *diadem.Env, fallback int) int {
	if E.NCPU > 0 {
		return E.NCPU
	}
	if fallback > 0 {
		return fallback
	}
	return defaultCPU()
}

//requireFiles checks that all the files are in dir.
func requireFiles(dir string, files ...string) error {
	return fileset.CheckExist(dir, files, "file")
}

//settings copies the settings template name of the stage, with the calculator
//changes applied, into the stage directory. A stage without an entry in the
//calculator can't do that.
func settings(E *diadem.Env, name string) error {
	if E.Changes == nil {
		return fmt.Errorf("stage %s: %w", E.Stage, calc.ErrNoChanges)
	}
	src := E.Template(name)
	if err := dict.CopyWithChanges(src, E.Changes, E.Path(name)); err != nil {
		return err
	}
	E.Log().Info("Settings written", zap.String("template", src), zap.String("file", name))
	return nil
}

//run resolves program in the stage PATH and runs it with args in dir.
func run(ctx context.Context, E *diadem.Env, dir, program string, args ...string) error {
	return runOut(ctx, E, runner.Command{Program: program, Args: args, Dir: dir})
}

//runTo is like run, but writes the standard output of the program to stdout.
func runTo(ctx context.Context, E *diadem.Env, dir, stdout, program string, args ...string) error {
	return runOut(ctx, E, runner.Command{Program: program, Args: args, Dir: dir, Stdout: stdout})
}

//runLog is like runTo, but standard error goes to stdout too.
func runLog(ctx context.Context, E *diadem.Env, dir, stdout, program string, args ...string) error {
	return runOut(ctx, E, runner.Command{Program: program, Args: args, Dir: dir, Stdout: stdout, MergeStderr: true})
}

//runOut resolves the program of C in the stage PATH and runs C.
func runOut(ctx context.Context, E *diadem.Env, C runner.Command) error {
	exe, err := E.LookPath(C.Program)
	if err != nil {
		return err
	}
	C.Program = exe
	return E.Run(ctx, C)
}

func errorf(stage, message, format string, a ...any) error {
	return &Error{message, stage, fmt.Sprintf(format, a...), []string{"Run"}, true}
}
