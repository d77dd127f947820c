/*
 * interfaces.go, part of diadem.
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

package diadem

//Errors

// Error is the interface for errors that all packages in this module implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //Each call adds the caller to the trail and returns it. If passed an empty string, it should just return the current value, not add the empty string to the slice.
}

// CriticalError is an Error that can tell whether the workflow can continue after it.
type CriticalError interface {
	Error
	Critical() bool
}

// ErrDecorate decorates err with caller if err implements Error, and returns err.
// Other errors are returned untouched.
func ErrDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.Decorate(caller)
	}
	return err
}

// Trail returns the decoration trail of err, or nil if err doesn't implement Error.
func Trail(err error) []string {
	if e, ok := err.(Error); ok {
		return e.Decorate("")
	}
	return nil
}
