/*
 * workflow.go, part of diadem.
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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/calc"
	"github.com/diadem/calculators/fileset"
	"github.com/diadem/calculators/result"
	"github.com/diadem/calculators/tmpl"
	"go.uber.org/zap"
)

// Workflow runs a pipeline for one molecule and one calculator.
type Workflow struct {
	root       string
	pipeline   *Pipeline
	molecule   *calc.Molecule
	calculator *calc.Calculator
	table      *tmpl.Table
	doc        *result.Document
	stopAfter  string
	ncpu       int
	debug      bool
	logger     *zap.Logger
	vars       map[string]string //shared by all the stages

	tmplDir        string
	moleculePath   string
	calculatorPath string
	cpuFallback    int
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithTemplates sets the template directory. The default is tmpl.DefaultDir.
func WithTemplates(dir string) Option {
	return func(W *Workflow) { W.tmplDir = dir }
}

// WithMolecule sets the path of the molecule file. The default is <root>/molecule.yml.
func WithMolecule(path string) Option {
	return func(W *Workflow) { W.moleculePath = path }
}

// WithCalculator sets the path of the calculator file. The default is <root>/calculator.yml.
func WithCalculator(path string) Option {
	return func(W *Workflow) { W.calculatorPath = path }
}

// WithDebug turns the debug mode on or off.
func WithDebug(debug bool) Option {
	return func(W *Workflow) { W.debug = debug }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(W *Workflow) { W.logger = logger }
}

// WithNCPU sets the number of CPUs used when the calculator doesn't set global.ncpus.
func WithNCPU(n int) Option {
	return func(W *Workflow) { W.cpuFallback = n }
}

// New reads the molecule, the calculator and the templates of the stages of P,
// checks that they agree, and returns a workflow ready to run in root.
func New(root string, P *Pipeline, opts ...Option) (*Workflow, error) {
	var err error
	if root, err = filepath.Abs(root); err != nil {
		return nil, fmt.Errorf("workflow/New: %w", err)
	}
	W := &Workflow{
		root:        root,
		pipeline:    P,
		tmplDir:     tmpl.DefaultDir,
		cpuFallback: runtime.NumCPU() / 2,
		vars:        map[string]string{},
	}
	for _, o := range opts {
		o(W)
	}
	if W.logger == nil {
		W.logger = zap.NewNop()
	}
	if W.cpuFallback < 1 {
		W.cpuFallback = 1
	}
	if W.moleculePath == "" {
		W.moleculePath = filepath.Join(root, "molecule.yml")
	}
	if W.calculatorPath == "" {
		W.calculatorPath = filepath.Join(root, "calculator.yml")
	}
	if W.molecule, err = calc.ReadMolecule(W.moleculePath); err != nil {
		return nil, diadem.ErrDecorate(err, "workflow/New")
	}
	if W.calculator, err = calc.ReadCalculator(W.calculatorPath); err != nil {
		return nil, diadem.ErrDecorate(err, "workflow/New")
	}
	if W.table, err = tmpl.Load(W.tmplDir, P.Stages()); err != nil {
		return nil, diadem.ErrDecorate(err, "workflow/New")
	}
	W.table.Log(W.logger)
	if err = CheckFiles(W.calculator.Files, W.table, W.logger); err != nil {
		var mis *MismatchError
		if !errors.As(err, &mis) || len(mis.Missing) > 0 || !P.AllowExtra {
			return nil, diadem.ErrDecorate(err, "workflow/New")
		}
		W.logger.Warn("The stages return files that the calculator doesn't ask for", zap.Strings("extra", mis.Extra))
	}
	if W.stopAfter, err = W.calculator.StopAfter(P.Stages()); err != nil {
		return nil, diadem.ErrDecorate(err, "workflow/New")
	}
	W.ncpu = W.calculator.NCPU(W.cpuFallback)
	W.doc = result.NewDocument(W.molecule.InChIKey)
	return W, nil
}

// Root returns the absolute path of the workflow root.
func (W *Workflow) Root() string { return W.root }

// StopAfter returns the stage after which the workflow stops, or "".
func (W *Workflow) StopAfter() string { return W.stopAfter }

// NCPU returns the number of CPUs the stages get.
func (W *Workflow) NCPU() int { return W.ncpu }

// Document returns the result document built so far.
func (W *Workflow) Document() *result.Document { return W.doc }

func (W *Workflow) filesDir() string {
	return filepath.Join(W.root, W.pipeline.FilesDir)
}

// Run runs the stages in order. It returns nil when all of them ran, ErrStopped
// when it stopped after the stop_after stage, and a *StageError when a stage failed.
// In every case the result document collected so far is written to <root>/result.yml.
func (W *Workflow) Run(ctx context.Context) error {
	if err := os.MkdirAll(W.filesDir(), 0o755); err != nil {
		return fmt.Errorf("workflow/Run: %w", err)
	}
	W.logger.Info(" ===== Workflow starts . . . =====", zap.String("pipeline", W.pipeline.Name), zap.Int("ncpus", W.ncpu))
	for i, step := range W.pipeline.Steps {
		name := step.Stage.Name()
		dir := filepath.Join(W.root, name)
		W.logger.Info("Starting stage", zap.String("stage", name))
		E, err := W.runStep(ctx, i, step, dir)
		if err == nil {
			err = W.distribute(name, dir, false)
		}
		if err != nil {
			W.logger.Error(fmt.Sprintf("An error occurred during %s processing", name),
				zap.Error(err), zap.Strings("trail", diadem.Trail(err)))
			if dErr := W.distribute(name, dir, true); dErr != nil {
				W.logger.Warn("Could not distribute the files of the failed stage", zap.String("stage", name), zap.Error(dErr))
			}
			W.writeResult()
			return &StageError{Stage: name, Err: err, deco: []string{"workflow/Run"}}
		}
		if len(E.Result) > 0 {
			if err := result.WriteYAML(E.Result, filepath.Join(dir, "result.yml")); err != nil {
				W.logger.Warn("Could not write the stage result", zap.String("stage", name), zap.Error(err))
			}
			W.doc.Merge(E.Result)
		}
		W.logger.Info("Stage finished", zap.String("stage", name))
		if name == W.stopAfter {
			W.logger.Info("Stopping after stage " + name + " as requested")
			W.finish()
			return ErrStopped
		}
	}
	W.finish()
	W.logger.Info(" ===== Workflow finished =====")
	return nil
}

// runStep prepares the directory of the i-th step, fetches its inputs and runs it.
func (W *Workflow) runStep(ctx context.Context, i int, step Step, dir string) (*diadem.Env, error) {
	name := step.Stage.Name()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workflow/runStep: %w", err)
	}
	from := step.From
	if from == nil && i > 0 {
		from = []string{W.pipeline.Steps[i-1].Stage.Name()}
	}
	for _, f := range from {
		W.logger.Debug("Fetching inputs", zap.String("stage", name), zap.String("from", f))
		if err := fileset.Fetch(filepath.Join(W.root, f, "out"), dir); err != nil {
			return nil, diadem.ErrDecorate(err, "workflow/runStep")
		}
	}
	E, err := W.env(name, dir)
	if err != nil {
		return nil, err
	}
	return E, step.Stage.Run(ctx, E)
}

// env builds the environment of stage name. A stage without an entry in the
// calculator gets nil Changes.
func (W *Workflow) env(name, dir string) (*diadem.Env, error) {
	changes, err := W.calculator.Changes(name)
	if err != nil && !errors.Is(err, calc.ErrNoChanges) {
		return nil, diadem.ErrDecorate(err, "workflow/env")
	}
	return &diadem.Env{
		Root:     W.root,
		Dir:      dir,
		Stage:    name,
		Tmpl:     W.table,
		Changes:  changes,
		Global:   W.calculator.Global(),
		Molecule: W.molecule,
		Result:   W.table.Result(name),
		NCPU:     W.ncpu,
		Debug:    W.debug,
		Logger:   W.logger.With(zap.String("stage", name)),
		Vars:     W.vars,
	}, nil
}

func (W *Workflow) writeResult() {
	p := filepath.Join(W.root, "result.yml")
	if err := W.doc.Write(p); err != nil {
		W.logger.Error("Could not write the result document", zap.String("path", p), zap.Error(err))
	}
}

func (W *Workflow) finish() {
	W.writeResult()
	fileset.List(W.root, W.logger)
}
