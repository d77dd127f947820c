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

/*Package diadem is the root of the diadem calculators module. It sequences the external
programs of a computational-chemistry calculator (conformer generation, parametrization,
morphology deposition, charge-transport simulation) and collects their numeric results
into a single result document for the front-end.



	**Layout**


    calc: reads molecule.yml and calculator.yml.

    tmpl: reads the per-stage file contracts of a template directory (by default
	/opt/tmpl/<stage>/).

    dict: strict merging of calculator overrides into settings templates, and
	flattening of nested settings into command line arguments.

    fileset: globbing, copying and zipping of the files a stage declares.

    runner: runs the external programs, directly or through mpirun.

    stage: one handle per external program (xtb, QPParametrizer, DihedralParametrizer,
	Deposit, QuantumPatch, lightforge).

    result: extracts numbers from program output into result fragments.

    workflow: the pipelines themselves. It checks the file contracts, runs the stages in
	order, distributes their files, stops on the first failure or after a requested
	stage, and writes result.yml.


The programs themselves are not part of this module and must be installed
independently. The cmd/diadem command is the entry point used inside the container image.*/
package diadem
