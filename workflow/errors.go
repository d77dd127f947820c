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

package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStopped is returned by Run when the workflow stops after the stop_after stage.
// It is not a failure.
var ErrStopped = errors.New("workflow stopped after the stop_after stage")

// MismatchError is returned when the files of the calculator and the files that
// the stages return don't agree.
type MismatchError struct {
	Missing []string //in the calculator, but no stage returns them
	Extra   []string //returned by a stage, but not in the calculator
	deco    []string
}

func (err *MismatchError) Error() string {
	var parts []string
	if len(err.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(err.Missing, ", "))
	}
	if len(err.Extra) > 0 {
		parts = append(parts, "extra: "+strings.Join(err.Extra, ", "))
	}
	return "calculator files and stage files don't match: " + strings.Join(parts, "; ")
}

// Decorate adds dec to the trail of the error, and returns the trail.
func (err *MismatchError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// StageError is returned by Run when a stage fails.
type StageError struct {
	Stage string
	Err   error
	deco  []string
}

func (err *StageError) Error() string {
	return fmt.Sprintf("an error occurred during %s processing: %v", err.Stage, err.Err)
}

func (err *StageError) Unwrap() error { return err.Err }

// Decorate adds dec to the trail of the error, and returns the trail.
func (err *StageError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// Critical is always true. The workflow doesn't go on after a failed stage.
func (err *StageError) Critical() bool { return true }
