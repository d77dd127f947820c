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

//Package workflow runs the stages of a diadem calculator in order.
//
//Each stage works in its own directory under the workflow root, named after the
//stage. Before a stage runs, the files in the out directories of the stages it
//depends on are copied into its directory. After it runs, its files are
//distributed following its contract: required files go to its out directory,
//returned files to the files directory, and debug, optional and error files
//are zipped in the root. The first stage that fails stops the workflow.
package workflow
