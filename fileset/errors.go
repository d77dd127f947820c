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

package fileset

import (
	"fmt"
	"strings"
)

// Error is the error type of the fileset package.
type Error struct {
	message  string
	filename string //the file or directory involved
	deco     []string
	critical bool
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s: %s", err.filename, err.message)
}

// Decorate adds dec to the trail of the error, and returns the trail.
// An empty dec just returns the trail.
func (err *Error) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical returns whether the error should stop the workflow.
func (err *Error) Critical() bool { return err.critical }

// MissingError is returned when some patterns of a file list don't match anything.
type MissingError struct {
	Description string   //what the files are for, "required file", "debug file"...
	Dir         string   //where they were looked for
	Patterns    []string //the patterns that didn't match anything
	deco        []string
}

func (err *MissingError) Error() string {
	return fmt.Sprintf("Required %s(s) missing in %s: %s", err.Description, err.Dir, strings.Join(err.Patterns, ", "))
}

// Decorate adds dec to the trail of the error, and returns the trail.
func (err *MissingError) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical always returns true: missing outputs stop the workflow.
func (err *MissingError) Critical() bool { return true }

//errDecorate decorates err with caller if it is one of our errors.
func errDecorate(err error, caller string) error {
	switch e := err.(type) {
	case *Error:
		e.Decorate(caller)
	case *MissingError:
		e.Decorate(caller)
	}
	return err
}
