/*
 * doc.go, part of diadem.
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

//Package stage implements the stages of the diadem workflows, one handle per
//external program, in the same way for all of them: NewXHandle returns a handle
//with sane defaults, setters change them, and Run runs the program in the stage
//directory of the Env it gets, checks its outputs, and fills the result fragment.
//
//The programs themselves (obabel, xtb, QPParametrizer, DihedralParametrizer,
//Deposit, QuantumPatch, lightforge) are not part of this module, and must be
//in the PATH of the stage environment.
package stage
