/*
 * mpi.go, part of diadem.
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

// MPI describes an "mpirun ... python -m mpi4py <program>" line, the way the
// MPI-parallel programs of the pipeline are started.
type MPI struct {
	NP       int      //number of processes; 0 leaves the choice to mpirun (e.g. when a hostfile is given)
	Hostfile bool     //adds --hostfile $HOSTFILE
	Launcher bool     //adds $NMMPIARGS $ENVCOMMAND, left for the shell to expand
	Export   []string //variables exported to the ranks with -x
}

// Line returns the shell line that runs program with args under mpirun.
// It is meant to be used as Command.Line.
func (M MPI) Line(program string, args ...string) string {
	parts := []string{"mpirun"}
	for _, v := range M.Export {
		parts = append(parts, "-x", v)
	}
	parts = append(parts, "--bind-to", "none")
	if M.NP > 0 {
		parts = append(parts, "-np", fmt.Sprintf("%d", M.NP))
	}
	if M.Launcher {
		parts = append(parts, "$NMMPIARGS", "$ENVCOMMAND")
	}
	if M.Hostfile {
		parts = append(parts, "--hostfile", "$HOSTFILE")
	}
	parts = append(parts, "--mca", "btl", "self,vader,tcp", "python", "-m", "mpi4py", Quote(program))
	for _, a := range args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}

// Quote quotes s for sh, if needed.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '_' || r == '-' || r == '=' || r == ',' || r == ':' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
