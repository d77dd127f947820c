/*
 * pipeline.go, part of diadem.
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
	"fmt"
	"sort"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/stage"
)

// Step is a stage in a pipeline. From lists the stages whose out directories are
// copied into the stage directory before it runs. If From is nil the previous
// step is used.
type Step struct {
	Stage diadem.Stage
	From  []string
}

// Pipeline is an ordered list of steps.
type Pipeline struct {
	Name  string
	Steps []Step
	//FilesDir is where the files for the front-end are collected, relative
	//to the workflow root.
	FilesDir string
	//AllowExtra lets the stages return files that the calculator doesn't list,
	//as happens when the calculator stops early. Such files are only warned about.
	AllowExtra bool
}

// Stages returns the names of the stages, in order.
func (P *Pipeline) Stages() []string {
	ret := make([]string, 0, len(P.Steps))
	for _, s := range P.Steps {
		ret = append(ret, s.Stage.Name())
	}
	return ret
}

// Mobility returns the charge mobility pipeline: from the InChI of a molecule
// to the zero field hole and electron mobilities of its amorphous morphology.
func Mobility() *Pipeline {
	kmcInputs := []string{"QuantumPatch", "DihedralParametrizer"}
	return &Pipeline{
		Name:     "mobility",
		FilesDir: "diadem_files",
		Steps: []Step{
			{Stage: stage.NewXTBHandle()},
			{Stage: stage.NewQPParametrizerHandle("QPParametrizer")},
			{Stage: stage.NewDihedralParametrizerHandle()},
			{Stage: stage.NewDepositHandle()},
			{Stage: stage.NewQuantumPatchHandle()},
			{Stage: stage.NewLightforgeHandle("lightforge_hole"), From: kmcInputs},
			{Stage: stage.NewLightforgeHandle("lightforge_electron"), From: kmcInputs},
		},
	}
}

// StokesShift returns the Stokes shift pipeline: S0 and S1 geometry optimizations,
// then absorption from the S0 geometry and emission from the S1 geometry.
func StokesShift() *Pipeline {
	return &Pipeline{
		Name:       "stokes_shift",
		FilesDir:   ".",
		AllowExtra: true,
		Steps: []Step{
			{Stage: stage.NewXTBHandle()},
			{Stage: stage.NewQPParametrizerHandle("QPParametrizer_S0_opt")},
			{Stage: stage.NewQPParametrizerHandle("QPParametrizer_S1_opt")},
			//the template directories spell it this way
			{Stage: stage.NewQPParametrizerHandle("QPParametrizer_absorbtion"), From: []string{"QPParametrizer_S0_opt"}},
			{Stage: stage.NewQPParametrizerHandle("QPParametrizer_emission"), From: []string{"QPParametrizer_S1_opt"}},
		},
	}
}

var pipelines = map[string]func() *Pipeline{
	"mobility":     Mobility,
	"stokes_shift": StokesShift,
}

// Names returns the names of the known pipelines.
func Names() []string {
	ret := make([]string, 0, len(pipelines))
	for k := range pipelines {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Get returns a new pipeline by name.
func Get(name string) (*Pipeline, error) {
	f, ok := pipelines[name]
	if !ok {
		return nil, fmt.Errorf("workflow/Get: unknown pipeline '%s', must be one of %v", name, Names())
	}
	return f(), nil
}
