/*
 * runner.go, part of diadem.
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

package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Command is one invocation of an external program.
// Exactly one of Program and Line must be set.
type Command struct {
	Program string   //name or path of the executable
	Args    []string //arguments for Program
	Line    string   //a full command line, run with "sh -c"
	Dir     string   //working directory. Empty means the current one.
	Env     []string //full environment. Nil means the process environment.
	Stdout  string   //if not empty, standard output goes to this file (relative to Dir) instead of the log

	//MergeStderr sends standard error to the Stdout file too, like "2>&1".
	MergeStderr bool
}

// Name returns the name of the program that the command runs.
func (C Command) Name() string {
	if C.Program != "" {
		return filepath.Base(C.Program)
	}
	f := strings.Fields(C.Line)
	if len(f) == 0 {
		return "sh"
	}
	return filepath.Base(f[0])
}

func (C Command) String() string {
	if C.Line != "" {
		return C.Line
	}
	parts := make([]string, 0, len(C.Args)+1)
	parts = append(parts, Quote(C.Program))
	for _, a := range C.Args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}

func (C Command) stdoutPath() string {
	if C.Stdout == "" || filepath.IsAbs(C.Stdout) || C.Dir == "" {
		return C.Stdout
	}
	return filepath.Join(C.Dir, C.Stdout)
}

// Run runs the command and waits for it to finish. Standard output is logged at info
// level (or written to C.Stdout) and standard error at error level. A program
// that can't be started, exits with non-zero status or is canceled through ctx
// gives an *Error.
func Run(ctx context.Context, logger *zap.Logger, C Command) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var cmd *exec.Cmd
	switch {
	case C.Program != "" && C.Line != "":
		return &Error{message: ErrBadCommand, program: C.Name(), detail: "both Program and Line given", deco: []string{"Run"}, critical: true}
	case C.Line != "":
		cmd = exec.CommandContext(ctx, "sh", "-c", C.Line)
	case C.Program != "":
		cmd = exec.CommandContext(ctx, C.Program, C.Args...)
	default:
		return &Error{message: ErrBadCommand, program: "?", detail: "nothing to run", deco: []string{"Run"}, critical: true}
	}
	cmd.Dir = C.Dir
	cmd.Env = C.Env
	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout
	if p := C.stdoutPath(); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return &Error{message: ErrOutput, program: C.Name(), dir: C.Dir, detail: err.Error(), cause: err, deco: []string{"os.Create", "Run"}, critical: true}
		}
		defer f.Close()
		cmd.Stdout = f
		if C.MergeStderr {
			//the tail is still kept for the error
			cmd.Stderr = io.MultiWriter(f, &stderr)
		}
	}
	logger.Info("Running command", zap.String("command", C.String()), zap.String("dir", C.Dir))
	err := cmd.Run()
	if stdout.Len() > 0 {
		logger.Info("Command stdout", zap.String("program", C.Name()), zap.String("stdout", stdout.String()))
	} else if C.Stdout != "" && err == nil {
		logger.Info("Command stdout written", zap.String("file", C.Stdout))
	}
	if stderr.Len() > 0 && !(C.MergeStderr && C.Stdout != "") {
		logger.Error("Command stderr", zap.String("program", C.Name()), zap.String("stderr", stderr.String()))
	}
	if err == nil {
		return nil
	}
	e := &Error{program: C.Name(), dir: C.Dir, detail: tail(stderr.String(), 5), cause: err, deco: []string{"exec.Cmd.Run", "Run"}, critical: true}
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		e.message = ErrCanceled
		e.cause = ctx.Err()
	case errors.As(err, &exitErr):
		e.message = ErrFailed
		e.exitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		e.message = ErrNotFound
	default:
		e.message = ErrNotRunning
		if e.detail == "" {
			e.detail = err.Error()
		}
	}
	logger.Error("Command failed", zap.String("command", C.String()), zap.Int("returncode", e.exitCode), zap.Error(err))
	return e
}
