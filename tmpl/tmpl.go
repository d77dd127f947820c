/*
 * tmpl.go, part of diadem.
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

//Package tmpl reads the file contracts of the stages from a template directory.
//
//Each stage S has a directory <tmpl>/S with the list files required_files.txt,
//files.txt, operationFiles/debugFiles, operationFiles/errorStageout and
//operationFiles/optionalFiles, the result skeleton result.yml, and the settings
//templates of the program that the stage runs.
package tmpl

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/diadem/calculators/dict"
	"go.uber.org/zap"
)

// DefaultDir is where the templates live in the production image.
const DefaultDir = "/opt/tmpl"

// Contract lists, as glob patterns relative to the stage directory, what happens
// to the files of a stage once it has run.
type Contract struct {
	Required      []string       //copied to the out directory, for the next stages
	Files         []string       //returned to the front-end
	Debug         []string       //zipped in debug mode
	ErrorStageOut []string       //zipped when the stage fails
	Optional      []string       //always zipped, if present
	Result        map[string]any //result skeleton
}

// Table holds the contracts of a set of stages, in order.
type Table struct {
	dir       string
	order     []string
	contracts map[string]*Contract
}

// Load reads the contracts of stages from dir.
func Load(dir string, stages []string) (*Table, error) {
	T := &Table{dir: dir, contracts: make(map[string]*Contract, len(stages))}
	for _, s := range stages {
		c, err := loadContract(filepath.Join(dir, s))
		if err != nil {
			return nil, fmt.Errorf("tmpl/Load: stage %s: %w", s, err)
		}
		T.order = append(T.order, s)
		T.contracts[s] = c
	}
	return T, nil
}

func loadContract(sdir string) (*Contract, error) {
	var err error
	C := new(Contract)
	lists := []struct {
		file string
		dst  *[]string
	}{
		{"required_files.txt", &C.Required},
		{"files.txt", &C.Files},
		{filepath.Join("operationFiles", "debugFiles"), &C.Debug},
		{filepath.Join("operationFiles", "errorStageout"), &C.ErrorStageOut},
		{filepath.Join("operationFiles", "optionalFiles"), &C.Optional},
	}
	for _, l := range lists {
		*l.dst, err = ReadList(filepath.Join(sdir, l.file))
		if err != nil {
			return nil, err
		}
	}
	rpath := filepath.Join(sdir, "result.yml")
	if _, err := os.Stat(rpath); errors.Is(err, fs.ErrNotExist) {
		C.Result = map[string]any{}
		return C, nil
	}
	C.Result, err = dict.Load(rpath)
	if err != nil {
		return nil, err
	}
	return C, nil
}

// ReadList reads a list file: one pattern per line, trimmed, skipping blank lines and
// lines that start with '#'. A missing file is an empty list.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ret []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ret = append(ret, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ret, nil
}

// Dir returns the template directory.
func (T *Table) Dir() string { return T.dir }

// Stages returns the stage names in the order they were loaded.
func (T *Table) Stages() []string {
	return append([]string(nil), T.order...)
}

// Contract returns the contract of stage. It never returns nil: an unknown stage
// gets an empty contract.
func (T *Table) Contract(stage string) *Contract {
	if c, ok := T.contracts[stage]; ok {
		return c
	}
	return &Contract{Result: map[string]any{}}
}

// Result returns a copy of the result skeleton of stage that the caller can fill.
func (T *Table) Result(stage string) map[string]any {
	r := dict.DeepCopy(T.Contract(stage).Result)
	if r == nil {
		r = map[string]any{}
	}
	return r
}

// SettingsPath returns the path of the settings template name for stage.
func (T *Table) SettingsPath(stage, name string) string {
	return filepath.Join(T.dir, stage, name)
}

// FileBaseNames returns the base names of the files that all the stages return to
// the front-end, in stage order.
func (T *Table) FileBaseNames() []string {
	var ret []string
	for _, s := range T.order {
		for _, f := range T.contracts[s].Files {
			ret = append(ret, filepath.Base(f))
		}
	}
	return ret
}

// Log logs every contract at info level.
func (T *Table) Log(logger *zap.Logger) {
	if logger == nil {
		return
	}
	for _, s := range T.order {
		c := T.contracts[s]
		logger.Info("Stage contract",
			zap.String("stage", s),
			zap.Strings("required_files", c.Required),
			zap.Strings("files", c.Files),
			zap.Strings("debug_files", c.Debug),
			zap.Strings("error_stage_out", c.ErrorStageOut),
			zap.Strings("optional_files", c.Optional),
			zap.Any("result", c.Result),
		)
	}
}
