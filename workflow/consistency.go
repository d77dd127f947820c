/*
 * consistency.go, part of diadem.
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
	"sort"

	"github.com/diadem/calculators/tmpl"
	"go.uber.org/zap"
)

// CheckFiles checks that the files the calculator declares are exactly the files
// the stages return, by base name. It returns a *MismatchError if not.
func CheckFiles(calculatorFiles []string, table *tmpl.Table, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	located := table.FileBaseNames()
	declared := set(calculatorFiles)
	known := set(located)
	missing := difference(declared, known)
	extra := difference(known, declared)
	if len(missing) == 0 && len(extra) == 0 {
		logger.Info("Sanity Check Successful: The Calculator knows paths to the [diadem] files that have to be returned.")
		return nil
	}
	logger.Error("The calculator needs to know where to look for its files, but paths are only specified for some of them",
		zap.Strings("calculator_files", calculatorFiles), zap.Strings("located_files", located))
	if len(missing) > 0 {
		logger.Error("Missing files that are specified in the calculator but not in the file locations", zap.Strings("missing", missing))
	}
	if len(extra) > 0 {
		logger.Error("Extra files that have paths specified but are not required by the calculator", zap.Strings("extra", extra))
	}
	return &MismatchError{Missing: missing, Extra: extra, deco: []string{"CheckFiles"}}
}

func set(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

//difference returns the sorted elements of a that are not in b.
func difference(a, b map[string]bool) []string {
	var ret []string
	for k := range a {
		if !b[k] {
			ret = append(ret, k)
		}
	}
	sort.Strings(ret)
	return ret
}
