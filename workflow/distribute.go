/*
 * distribute.go, part of diadem.
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
	"path/filepath"

	"github.com/diadem/calculators/fileset"
	"go.uber.org/zap"
)

// distribute moves the files of stage name, in dir, where its contract says.
// In error mode nothing is checked, every step is tried, and the errors are
// joined in the return value.
func (W *Workflow) distribute(name, dir string, failed bool) error {
	c := W.table.Contract(name)
	var errs []error
	//in error mode, we keep going
	fail := func(err error) error {
		if err == nil {
			return nil
		}
		if !failed {
			return err
		}
		errs = append(errs, err)
		return nil
	}
	copyTo := func(patterns []string, dest, description string) error {
		if len(patterns) == 0 {
			return nil
		}
		if !failed {
			if err := fileset.CheckExist(dir, patterns, description); err != nil {
				return err
			}
		}
		skipped, err := fileset.CopyMatches(dir, patterns, dest, !failed)
		if len(skipped) > 0 {
			W.logger.Warn("Some "+description+"s could not be copied", zap.String("stage", name), zap.Strings("patterns", skipped))
		}
		return err
	}
	zipTo := func(patterns []string, suffix string) error {
		if len(patterns) == 0 {
			return nil
		}
		zipPath := filepath.Join(W.root, name+"_"+suffix+".zip")
		n, err := fileset.ZipPatterns(dir, patterns, zipPath)
		W.logger.Debug("Zipped files", zap.String("stage", name), zap.String("zip", zipPath), zap.Int("files", n))
		return err
	}

	if err := fail(copyTo(c.Required, filepath.Join(dir, "out"), "required file")); err != nil {
		return err
	}
	if err := fail(copyTo(c.Files, W.filesDir(), "diadem file")); err != nil {
		return err
	}
	if W.debug && len(c.Debug) > 0 {
		err := fileset.CheckExist(dir, c.Debug, "debug file")
		if err == nil {
			err = zipTo(c.Debug, "debugFiles")
		}
		if err = fail(err); err != nil {
			return err
		}
	}
	if err := zipTo(c.Optional, "optionalFiles"); err != nil {
		W.logger.Warn("Could not zip the optional files", zap.String("stage", name), zap.Error(err))
	}
	if failed {
		errs = append(errs, zipTo(c.ErrorStageOut, "errorStageOut"))
	}
	return errors.Join(errs...)
}
