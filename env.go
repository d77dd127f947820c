/*
 * env.go, part of diadem.
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

import (
	"context"
	"os"
	"path/filepath"

	"github.com/diadem/calculators/calc"
	"github.com/diadem/calculators/runner"
	"github.com/diadem/calculators/tmpl"
	"go.uber.org/zap"
)

// Stage is one step of a workflow, bound to an external program.
type Stage interface {
	//Name returns the name of the stage, which is also the name of its directory
	//and of its template directory.
	Name() string

	//Run runs the stage in E.Dir, filling E.Result with whatever it finds.
	Run(ctx context.Context, E *Env) error
}

// Env is what a stage gets to work with.
type Env struct {
	Root     string            //workflow root
	Dir      string            //stage directory, <Root>/<Stage>
	Stage    string            //stage name
	Tmpl     *tmpl.Table       //templates of all the stages
	Changes  map[string]any    //overrides of the calculator for this stage
	Global   map[string]any    //settings shared by all the stages
	Molecule *calc.Molecule    //the molecule of the run
	Result   map[string]any    //result fragment to fill, a copy of the stage's skeleton
	NCPU     int               //number of CPUs for the programs
	Debug    bool              //debug mode
	Logger   *zap.Logger       //never nil once the workflow has built the Env
	Vars     map[string]string //variables set by the stages, overlaid on the process environment
}

// Path returns the path of name in the stage directory.
func (E *Env) Path(name ...string) string {
	return filepath.Join(append([]string{E.Dir}, name...)...)
}

// Template returns the path of the settings template name of the stage.
func (E *Env) Template(name string) string {
	if E.Tmpl == nil {
		return filepath.Join(tmpl.DefaultDir, E.Stage, name)
	}
	return E.Tmpl.SettingsPath(E.Stage, name)
}

// Contract returns the file contract of the stage.
func (E *Env) Contract() *tmpl.Contract {
	if E.Tmpl == nil {
		return &tmpl.Contract{Result: map[string]any{}}
	}
	return E.Tmpl.Contract(E.Stage)
}

// Log returns the logger of the env, or a no-op one.
func (E *Env) Log() *zap.Logger {
	if E.Logger == nil {
		return zap.NewNop()
	}
	return E.Logger
}

// Getenv returns the value of key in the overlay, or in the process environment.
func (E *Env) Getenv(key string) string {
	if v, ok := E.Vars[key]; ok {
		return v
	}
	return os.Getenv(key)
}

// LookupEnv is like Getenv, but also tells whether key is set at all.
func (E *Env) LookupEnv(key string) (string, bool) {
	if v, ok := E.Vars[key]; ok {
		return v, true
	}
	return os.LookupEnv(key)
}

// Setenv sets key in the overlay. The process environment is not touched.
func (E *Env) Setenv(key, value string) {
	if E.Vars == nil {
		E.Vars = make(map[string]string)
	}
	E.Vars[key] = value
}

// Environ returns the environment for the programs of the stage.
func (E *Env) Environ() []string {
	return runner.Environ(E.Vars)
}

// LookPath finds the executable name in the PATH of the stage environment.
func (E *Env) LookPath(name string) (string, error) {
	p, err := runner.LookPath(name, E.Environ())
	if err != nil {
		E.Log().Error("Failed to find "+name, zap.Error(err))
		return "", err
	}
	E.Log().Info("Found "+name+" at "+p)
	return p, nil
}

// Run runs C in the stage directory and environment, unless C sets its own.
func (E *Env) Run(ctx context.Context, C runner.Command) error {
	if C.Dir == "" {
		C.Dir = E.Dir
	}
	if C.Env == nil {
		C.Env = E.Environ()
	}
	return runner.Run(ctx, E.Log(), C)
}
