/*
 * stage_test.go, part of diadem.
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

package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/calc"
	"github.com/diadem/calculators/tmpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

//fakeObabel writes something to the file after -O, or to stdout if there is none.
const fakeObabel = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in -O) out="$2"; shift;; esac
  shift
done
if [ -n "$out" ]; then echo fake > "$out"; else echo "<svg/>"; fi
`

//fakeMPIRun drops everything up to "mpi4py" and runs the rest.
const fakeMPIRun = `#!/bin/sh
echo "$@" > mpirun.args
while [ $# -gt 0 ]; do
  if [ "$1" = "mpi4py" ]; then shift; exec "$@"; fi
  shift
done
exit 1
`

//fakeBin writes the scripts to a directory at the front of PATH and returns it.
func fakeBin(Te *testing.T, scripts map[string]string) string {
	Te.Helper()
	bin := Te.TempDir()
	for name, body := range scripts {
		require.NoError(Te, os.WriteFile(filepath.Join(bin, name), []byte(body), 0o755))
	}
	Te.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	return bin
}

//newEnv sets up a workflow root with the templates for stage, and returns an Env
//for the stage.
func newEnv(Te *testing.T, stage string, templates map[string]string, changes map[string]any) *diadem.Env {
	Te.Helper()
	root := Te.TempDir()
	tdir := filepath.Join(root, "tmpl")
	for name, body := range templates {
		p := filepath.Join(tdir, stage, name)
		require.NoError(Te, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(Te, os.WriteFile(p, []byte(body), 0o644))
	}
	table, err := tmpl.Load(tdir, []string{stage})
	require.NoError(Te, err)
	dir := filepath.Join(root, stage)
	require.NoError(Te, os.MkdirAll(dir, 0o755))
	if changes == nil {
		changes = map[string]any{}
	}
	return &diadem.Env{
		Root:     root,
		Dir:      dir,
		Stage:    stage,
		Tmpl:     table,
		Changes:  changes,
		Global:   map[string]any{},
		Molecule: &calc.Molecule{InChI: "InChI=1S/CH4/h1H4", InChIKey: "VNWKTOKETHGBQD-UHFFFAOYSA-N"},
		Result:   table.Result(stage),
		NCPU:     2,
		Logger:   zaptest.NewLogger(Te),
		Vars:     map[string]string{},
	}
}

func writeIn(Te *testing.T, dir, name, content string) {
	Te.Helper()
	p := filepath.Join(dir, name)
	require.NoError(Te, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(Te, os.WriteFile(p, []byte(content), 0o644))
}

func readIn(Te *testing.T, dir, name string) string {
	Te.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(Te, err)
	return string(b)
}

func TestProgramSuffix(Te *testing.T) {
	assert.Equal(Te, "QPParametrizer", Program("QPParametrizer_S0_opt"))
	assert.Equal(Te, "S0_opt", Suffix("QPParametrizer_S0_opt"))
	assert.Equal(Te, "lightforge", Program("lightforge_hole"))
	assert.Equal(Te, "hole", Suffix("lightforge_hole"))
	assert.Equal(Te, "xtb", Program("xtb"))
	assert.Equal(Te, "", Suffix("xtb"))
}

func TestStagesImplementStage(Te *testing.T) {
	stages := []diadem.Stage{
		NewXTBHandle(),
		NewQPParametrizerHandle("QPParametrizer"),
		NewDihedralParametrizerHandle(),
		NewDepositHandle(),
		NewQuantumPatchHandle(),
		NewLightforgeHandle("lightforge_hole"),
	}
	names := []string{"xtb", "QPParametrizer", "DihedralParametrizer", "Deposit", "QuantumPatch", "lightforge_hole"}
	for i, s := range stages {
		assert.Equal(Te, names[i], s.Name())
	}
}

func TestXTB(Te *testing.T) {
	fakeBin(Te, map[string]string{
		"obabel": fakeObabel,
		"xtb":    "#!/bin/sh\necho \"$@\" > xtb.args\ntouch xtbopt.xyz\necho '   * finished run'\necho '   normal termination of xtb'\n",
	})
	E := newEnv(Te, "xtb", nil, nil)
	E.NCPU = 4
	require.NoError(Te, NewXTBHandle().Run(context.Background(), E))
	assert.Equal(Te, "InChI=1S/CH4/h1H4\n", readIn(Te, E.Dir, "mol.inchi"))
	assert.Equal(Te, "mol.xyz --opt -P 4\n", readIn(Te, E.Dir, "xtb.args"))
	assert.FileExists(Te, E.Path("input_molecule.mol2"))
	assert.Contains(Te, readIn(Te, E.Dir, "xtb.out"), "normal termination")
}

func TestXTBAbnormal(Te *testing.T) {
	fakeBin(Te, map[string]string{
		"obabel": fakeObabel,
		"xtb":    "#!/bin/sh\ntouch xtbopt.xyz\necho 'abnormal termination of xtb'\n",
	})
	E := newEnv(Te, "xtb", nil, nil)
	E.NCPU = 1
	err := NewXTBHandle().Run(context.Background(), E)
	assert.ErrorContains(Te, err, ErrNoTermination)
}

func TestXTBMissingOutput(Te *testing.T) {
	fakeBin(Te, map[string]string{"obabel": fakeObabel, "xtb": "#!/bin/sh\nexit 0\n"})
	E := newEnv(Te, "xtb", nil, nil)
	err := NewXTBHandle().Run(context.Background(), E)
	assert.ErrorContains(Te, err, "xtbopt.xyz")
}

func TestXTBAbnormalOnStderr(Te *testing.T) {
	fakeBin(Te, map[string]string{
		"obabel": fakeObabel,
		"xtb":    "#!/bin/sh\ntouch xtbopt.xyz\necho 'optimized geometry written'\necho 'abnormal termination of xtb' >&2\n",
	})
	E := newEnv(Te, "xtb", nil, nil)
	E.NCPU = 1
	err := NewXTBHandle().Run(context.Background(), E)
	assert.ErrorContains(Te, err, ErrNoTermination)
	out := readIn(Te, E.Dir, "xtb.out")
	assert.Contains(Te, out, "optimized geometry written")
	assert.Contains(Te, out, "abnormal termination of xtb")
}

func TestErrorTrail(Te *testing.T) {
	E := newEnv(Te, "xtb", nil, nil)
	E.Molecule = nil
	err := NewXTBHandle().Run(context.Background(), E)
	require.Error(Te, err)
	diadem.ErrDecorate(err, "workflow/runStep")
	assert.Equal(Te, []string{"Run", "workflow/runStep"}, diadem.Trail(err))
	var serr *Error
	require.ErrorAs(Te, err, &serr)
	assert.Equal(Te, "xtb", serr.Stage())
	assert.True(Te, serr.Critical())
}

func TestQPParametrizer(Te *testing.T) {
	fakeBin(Te, map[string]string{
		"QPParametrizer": `#!/bin/sh
cp parametrizer_settings.yml seen_settings.yml
echo mol2 > output_molecule.mol2
printf 'homo energy: -5.2\nlumo energy: -2.3\nExcitation energy 1: 3.3\n' > mol_data.yml
printf "'Stokes shift results:':\n  'Stokes shift in eV::': 0.1\n  'Stokes shift in nm::': 12.5\n" > results.yml
`,
	})
	templates := map[string]string{
		"parametrizer_settings.yml": "model:\n  functional: PBE\n  basis: def2-SVP\n",
		"result.yml":                "HOMO:\n  value: null\nLUMO:\n  value: null\nE(S1): null\nStokesShift:\n  value: null\n  results: {}\n",
	}
	changes := map[string]any{"model": map[string]any{"functional": "B3LYP"}}
	E := newEnv(Te, "QPParametrizer_S1_opt", templates, changes)
	require.NoError(Te, NewQPParametrizerHandle("QPParametrizer_S1_opt").Run(context.Background(), E))

	assert.Contains(Te, readIn(Te, E.Dir, "seen_settings.yml"), "functional: B3LYP")
	assert.Contains(Te, readIn(Te, E.Dir, "seen_settings.yml"), "basis: def2-SVP")
	assert.Equal(Te, "mol2\n", readIn(Te, E.Dir, "molecule_S1_opt.mol2"))
	assert.Equal(Te, -5.2, E.Result["HOMO"].(map[string]any)["value"])
	assert.Equal(Te, 3.3, E.Result["E(S1)"])
	assert.Equal(Te, 0.1, E.Result["StokesShift"].(map[string]any)["value"])
}

func TestQPParametrizerBadChanges(Te *testing.T) {
	fakeBin(Te, map[string]string{"QPParametrizer": "#!/bin/sh\nexit 0\n"})
	templates := map[string]string{"parametrizer_settings.yml": "model:\n  functional: PBE\n"}
	E := newEnv(Te, "QPParametrizer", templates, map[string]any{"nomodel": 1})
	err := NewQPParametrizerHandle("QPParametrizer").Run(context.Background(), E)
	assert.ErrorContains(Te, err, "nomodel")
	assert.NoFileExists(Te, E.Path("molecule_S0_opt.mol2"))
}

func TestDihedralParametrizer(Te *testing.T) {
	bin := fakeBin(Te, map[string]string{
		"obabel":               fakeObabel,
		"mpirun":               fakeMPIRun,
		"DihedralParametrizer": "#!/bin/sh\necho \"$@\" > dhp.args\necho spf > dihedral_forcefield.spf\n",
	})
	deptools := filepath.Join(bin, "deptools")
	require.NoError(Te, os.MkdirAll(deptools, 0o755))
	require.NoError(Te, os.WriteFile(filepath.Join(deptools, "add_dihedral_angles.sh"),
		[]byte("#!/bin/sh\necho pdb > molecule.pdb\necho spf > \"$2\"\n"), 0o755))
	Te.Setenv("DEPTOOLS", deptools)
	Te.Setenv("HOSTFILE", "")
	E := newEnv(Te, "DihedralParametrizer", map[string]string{"dhp_settings.yml": "steps: 1\n"}, nil)
	writeIn(Te, E.Dir, "output_molecule.mol2", "mol2\n")
	H := NewDihedralParametrizerHandle()
	H.SetHost("node1")
	require.NoError(Te, H.Run(context.Background(), E))

	assert.Equal(Te, "hostfile.txt", E.Vars["HOSTFILE"])
	assert.Equal(Te, "node1\nnode1\n", readIn(Te, E.Dir, "hostfile.txt"))
	assert.Equal(Te, "<svg/>\n", readIn(Te, E.Dir, "output_molecule.svg"))
	assert.FileExists(Te, E.Path("report.zip"))
	assert.FileExists(Te, E.Path("molecule_0.pdb"))
	assert.FileExists(Te, E.Path("molecule_0.spf"))
	assert.NoFileExists(Te, E.Path("dihedral_forcefield.spf"))
	assert.Equal(Te, "./dhp_settings.yml\n", readIn(Te, E.Dir, "dhp.args"))
	assert.Contains(Te, readIn(Te, E.Dir, "mpirun.args"), "--hostfile hostfile.txt")
}

func TestDihedralParametrizerNoDeptools(Te *testing.T) {
	Te.Setenv("DEPTOOLS", "")
	Te.Setenv("HOSTFILE", "")
	E := newEnv(Te, "DihedralParametrizer", nil, nil)
	err := NewDihedralParametrizerHandle().Run(context.Background(), E)
	assert.ErrorContains(Te, err, "DEPTOOLS")
}

const fakeDeposit = `#!/bin/sh
echo "$@" > deposit.args
echo cml > structure.cml
echo gz > deposited_1.pdb.gz
echo gz > grid.vdw.gz
echo log > Deposit.stdout
echo 'Temperature: 300' > deposit_settings.yml
echo 'run: 1' > output_dict.yml
pwd > deposit.pwd
`

const fakeAnalysis = `#!/bin/sh
if [ $# -eq 0 ]; then echo init; exit 0; fi
echo 'box density avg over 20 samples: 1.13 +/- 0.01 g/cm3'
echo 'box density avg over 20 samples: 4.40e+21 +/- 1.43e+20 1/cm3'
echo 'molecular volume in nm3: 0.23'
`

func TestDeposit(Te *testing.T) {
	bin := fakeBin(Te, map[string]string{
		"obabel":               fakeObabel,
		"Deposit":              fakeDeposit,
		"QuantumPatchAnalysis": fakeAnalysis,
	})
	deptools := filepath.Join(bin, "deptools")
	require.NoError(Te, os.MkdirAll(deptools, 0o755))
	require.NoError(Te, os.WriteFile(filepath.Join(deptools, "add_periodic_copies.py"),
		[]byte("#!/bin/sh\nmkdir -p periodic_output\necho pbc > periodic_output/structurePBC.cml\n"), 0o755))
	Te.Setenv("DEPTOOLS", deptools)
	home := Te.TempDir()
	Te.Setenv("HOME", home)
	Te.Setenv("SCRATCH", "")
	Te.Setenv("DO_RESTART", "")

	templates := map[string]string{
		"deposit_cargs.yml": "simparams:\n  Temperature: 300\n  PBC:\n    enabled: true\n",
		"result.yml": "morphology:\n  value: 'file: structure.cml'\n  results:\n    mass_density: {value: null, std: null}\n" +
			"    number_density: {value: null, std: null}\n    molecular_volume: {value: null}\n",
	}
	E := newEnv(Te, "Deposit", templates, map[string]any{"simparams": map[string]any{"Temperature": 350}})
	writeIn(Te, E.Dir, "molecule_0.pdb", "pdb\n")
	H := NewDepositHandle()
	H.SetIDFunc(func() string { return "run-1" })
	require.NoError(Te, H.Run(context.Background(), E))

	assert.Equal(Te, "simparams.PBC.enabled=True simparams.Temperature=350\n", readIn(Te, E.Dir, "deposit.args"))
	assert.Equal(Te, filepath.Join(home, "tmp", "run-1")+"\n", readIn(Te, E.Dir, "deposit.pwd"))
	assert.NoDirExists(Te, filepath.Join(home, "tmp", "run-1"))
	assert.FileExists(Te, E.Path("structurePBC.cml"))
	assert.FileExists(Te, E.Path("structure.mol2"))
	assert.NoFileExists(Te, E.Path("Deposit.stdout"))
	assert.NoFileExists(Te, E.Path("deposited_1.pdb.gz"))
	assert.FileExists(Te, E.Path("restartfile.zip"))
	assert.Equal(Te, "init\n", readIn(Te, E.Dir, "DensityAnalysisInit.out"))
	assert.Equal(Te, "run: 1\nTemperature: 300\n", readIn(Te, E.Dir, "output_dict.yml"))
	res := E.Result["morphology"].(map[string]any)["results"].(map[string]any)
	assert.Equal(Te, 1.13, res["mass_density"].(map[string]any)["value"])
	assert.Equal(Te, 1.43e+20, res["number_density"].(map[string]any)["std"])
	assert.Equal(Te, 0.23, res["molecular_volume"].(map[string]any)["value"])
}

func TestDepositRestartWithoutCheckpoint(Te *testing.T) {
	fakeBin(Te, map[string]string{"Deposit": fakeDeposit})
	Te.Setenv("HOME", "")
	Te.Setenv("SCRATCH", "")
	E := newEnv(Te, "Deposit", map[string]string{"deposit_cargs.yml": "a: 1\n"}, nil)
	E.Setenv("DO_RESTART", "True")
	err := NewDepositHandle().Run(context.Background(), E)
	assert.ErrorContains(Te, err, ErrRestart)
	assert.NoFileExists(Te, E.Path("deposit.args"))
}

func TestQuantumPatch(Te *testing.T) {
	fakeBin(Te, map[string]string{
		"mpirun": fakeMPIRun,
		"QuantumPatch": `#!/bin/sh
mkdir -p Analysis/files_for_kmc Analysis/energy
echo zip > Analysis/files_for_kmc/files_for_kmc.zip
echo png > Analysis/energy/DeltaE_0.12.png
echo "$OMP_NUM_THREADS $SCRATCH" > qp.env
`,
	})
	Te.Setenv("SCRATCH", "x")
	require.NoError(Te, os.Unsetenv("SCRATCH"))
	E := newEnv(Te, "QuantumPatch", map[string]string{"settings_ng.yml": "QuantumPatch:\n  number_of_steps: 5\n"}, nil)
	E.NCPU = 3
	require.NoError(Te, NewQuantumPatchHandle().Run(context.Background(), E))

	scratch := E.Vars["SCRATCH"]
	assert.DirExists(Te, scratch)
	assert.Equal(Te, E.Dir, filepath.Dir(scratch))
	assert.Equal(Te, "1 "+scratch+"\n", readIn(Te, E.Dir, "qp.env"))
	assert.Contains(Te, readIn(Te, E.Dir, "mpirun.args"), "-np 3")
	assert.FileExists(Te, E.Path("QP_output_0.zip"))
	assert.FileExists(Te, E.Path("Analysis", "energy", "DeltaE.png"))
}

func TestQuantumPatchNoOutput(Te *testing.T) {
	fakeBin(Te, map[string]string{"mpirun": fakeMPIRun, "QuantumPatch": "#!/bin/sh\nexit 0\n"})
	E := newEnv(Te, "QuantumPatch", map[string]string{"settings_ng.yml": "a: 1\n"}, nil)
	E.Setenv("SCRATCH", E.Dir)
	err := NewQuantumPatchHandle().Run(context.Background(), E)
	assert.ErrorContains(Te, err, "files_for_kmc.zip")
}

func TestLightforge(Te *testing.T) {
	fakeBin(Te, map[string]string{
		"mpirun": fakeMPIRun,
		"lightforge": `#!/bin/sh
d=results/experiments/current_characteristics
mkdir -p $d
printf '0.2 0.0118 0.0021\n0.3 0.0273 0.0089\n0.4 0.0390 0.0104\n' > $d/mobilities_all_fields.dat
echo "$@" > lf.args
`,
	})
	templates := map[string]string{
		"settings": "particles:\n  holes: false\n  electrons: true\nexperiments:\n- simulations: 5\n  initial_electrons: 20\n",
		"result.yml": "hole_mobility:\n  value: null\n  results:\n    fields: {values: []}\n" +
			"    mobilities: {values: []}\n    stderr: {values: []}\n",
	}
	E := newEnv(Te, "lightforge_hole", templates, map[string]any{"experiments": []any{map[string]any{"simulations": 10}}})
	H := NewLightforgeHandle("lightforge_hole")
	assert.Equal(Te, "hole", H.Carrier())
	require.NoError(Te, H.Run(context.Background(), E))

	assert.Equal(Te, "-s settings\n", readIn(Te, E.Dir, "lf.args"))
	assert.Contains(Te, readIn(Te, E.Dir, "mpirun.args"), "-x OMP_NUM_THREADS")
	settings := readIn(Te, E.Dir, "settings")
	assert.Contains(Te, settings, "initial_holes: 20")
	assert.Contains(Te, settings, "simulations: 10")
	m := E.Result["hole_mobility"].(map[string]any)
	assert.Greater(Te, m["value"].(float64), 0.0)
	assert.FileExists(Te, E.Path("hole_mobility_vs_sqrt_field.png"))
}

func TestLightforgeBadCarrier(Te *testing.T) {
	E := newEnv(Te, "lightforge_exciton", nil, nil)
	err := NewLightforgeHandle("lightforge_exciton").Run(context.Background(), E)
	assert.ErrorContains(Te, err, ErrBadName)
}

func TestSettingsWithoutChanges(Te *testing.T) {
	E := newEnv(Te, "QPParametrizer", map[string]string{"parametrizer_settings.yml": "a: 1\n"}, nil)
	E.Changes = nil
	err := NewQPParametrizerHandle("QPParametrizer").Run(context.Background(), E)
	assert.ErrorIs(Te, err, calc.ErrNoChanges)
}
