/*
 * errors.go, part of diadem.
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
	"fmt"
	"strings"
)

//Error messages
const (
	ErrBadCommand = "Ill-formed command"
	ErrNotFound   = "Program not found"
	ErrNotRunning = "Program could not be started"
	ErrFailed     = "Program exited with an error"
	ErrCanceled   = "Program was canceled"
	ErrOutput     = "Can't create output file"
)

// Error is the error returned by Run and LookPath.
type Error struct {
	message  string
	program  string
	dir      string
	detail   string //usually the tail of stderr
	exitCode int
	cause    error
	deco     []string
	critical bool
}

// Error implements the error interface.
func (err *Error) Error() string {
	s := fmt.Sprintf("%s: %s", err.program, err.message)
	if err.exitCode != 0 {
		s += fmt.Sprintf(" (exit status %d)", err.exitCode)
	}
	if err.dir != "" {
		s += " in " + err.dir
	}
	if err.detail != "" {
		s += ": " + err.detail
	}
	return s
}

// Decorate adds dec to the trail of the error and returns the trail.
// An empty dec just returns the current trail.
func (err *Error) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical is always true for now: a program that fails stops the stage.
func (err *Error) Critical() bool { return err.critical }

// Message returns one of the Err* constants of this package.
func (err *Error) Message() string { return err.message }

// Program returns the name of the program that failed.
func (err *Error) Program() string { return err.program }

// ExitCode returns the exit status of the program, or 0 if it didn't exit by itself.
func (err *Error) ExitCode() int { return err.exitCode }

func (err *Error) Unwrap() error { return err.cause }

//tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
