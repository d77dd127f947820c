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

package stage

import "fmt"

// Error messages.
const (
	ErrMissingEnv    = "environment variable not set"
	ErrNoInput       = "missing input"
	ErrNoTermination = "program did not terminate normally"
	ErrRestart       = "restart was enabled, but no checkpoint file was found"
	ErrBadName       = "bad stage name"
)

// Error is the error type of the stage package.
type Error struct {
	message  string
	stage    string //the stage that failed
	detail   string
	deco     []string
	critical bool
}

func (err *Error) Error() string {
	if err.detail == "" {
		return fmt.Sprintf("stage %s: %s", err.stage, err.message)
	}
	return fmt.Sprintf("stage %s: %s: %s", err.stage, err.message, err.detail)
}

// Decorate adds dec to the trail of the error, and returns the trail.
func (err *Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// Critical returns whether the workflow can't go on after the error.
func (err *Error) Critical() bool { return err.critical }

// Stage returns the name of the stage that failed.
func (err *Error) Stage() string { return err.stage }
