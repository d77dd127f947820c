/*
 * workflow_test.go, part of diadem.
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
	"os"
	"path/filepath"
	"strings"
	"testing"

	diadem "github.com/diadem/calculators"
	"github.com/diadem/calculators/dict"
	"github.com/diadem/calculators/fileset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const inchiKey = "VNWKTOKETHGBQD-UHFFFAOYSA-N"

const fakeObabel = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in -O) out="$2"; shift;; esac
  shift
done
if [ -n "$out" ]; then echo fake > "$out"; fi
`

const fakeXTB = "#!/bin/sh\ntouch xtbopt.xyz\necho '   normal termination of xtb'\n"

//fakeQP writes what QPParametrizer writes, and the name of its directory to ../order.txt.
//It fails in the directories named in $FAIL_IN.
const fakeQP = `#!/bin/sh
[ -f parametrizer_settings.yml ] || exit 2
here=$(basename "$(pwd -P)")
echo "$here" >> ../order.txt
case " $FAIL_IN " in *" $here "*) echo "QPParametrizer failed" > qp.err; exit 3;; esac
echo mol2 > output_molecule.mol2
printf 'homo energy: -5.5\nlumo energy: -1.5\nExcitation energy 1: 3.1\n' > mol_data.yml
`

//stokesTemplates are the templates of the Stokes shift stages, by path.
var stokesTemplates = map[string]string{
	"xtb/required_files.txt":                              "input_molecule.mol2\n",
	"xtb/operationFiles/optionalFiles":                    "xtb.out\n",
	"xtb/operationFiles/debugFiles":                       "xtb.out\nmol.*\n",
	"QPParametrizer_S0_opt/parametrizer_settings.yml":     "model:\n  functional: PBE\n",
	"QPParametrizer_S0_opt/required_files.txt":            "output_molecule.mol2\nmolecule_S0_opt.mol2\n",
	"QPParametrizer_S0_opt/files.txt":                     "molecule_S0_opt.mol2\n",
	"QPParametrizer_S0_opt/result.yml":                    "HOMO:\n  value: null\n",
	"QPParametrizer_S1_opt/parametrizer_settings.yml":     "model:\n  functional: PBE\n",
	"QPParametrizer_S1_opt/required_files.txt":            "# geometry for the emission\nmolecule_S1_opt.mol2\n",
	"QPParametrizer_S1_opt/files.txt":                     "molecule_S1_opt.mol2\n",
	"QPParametrizer_S1_opt/result.yml":                    "E(S1): null\n",
	"QPParametrizer_S1_opt/operationFiles/errorStageout":  "qp.err\nparametrizer_settings.yml\n",
	"QPParametrizer_absorbtion/parametrizer_settings.yml": "model:\n  functional: PBE\n",
	"QPParametrizer_absorbtion/result.yml":                "LUMO:\n  value: null\n",
	"QPParametrizer_emission/parametrizer_settings.yml":   "model:\n  functional: PBE\n",
}

//setup writes the templates, molecule.yml and calculator.yml, puts the fake programs
//in PATH, and returns the workflow root and the template directory.
func setup(Te *testing.T, files []string, stopAfter string) (string, string) {
	Te.Helper()
	root := Te.TempDir()
	tdir := Te.TempDir()
	for name, body := range stokesTemplates {
		p := filepath.Join(tdir, name)
		require.NoError(Te, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(Te, os.WriteFile(p, []byte(body), 0o644))
	}
	bin := Te.TempDir()
	for name, body := range map[string]string{"obabel": fakeObabel, "xtb": fakeXTB, "QPParametrizer": fakeQP} {
		require.NoError(Te, os.WriteFile(filepath.Join(bin, name), []byte(body), 0o755))
	}
	Te.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	Te.Setenv("FAIL_IN", "")

	mol := "inchi: InChI=1S/CH4/h1H4\ninchiKey: " + inchiKey + "\n"
	require.NoError(Te, os.WriteFile(filepath.Join(root, "molecule.yml"), []byte(mol), 0o644))
	var b strings.Builder
	b.WriteString("calculatorId: stokes\nversion: \"1.0\"\nprovides: [stokes_shift]\nfiles:\n")
	for _, f := range files {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("specification:\n  global:\n    ncpus: 1\n")
	if stopAfter != "" {
		b.WriteString("    stop_after: " + stopAfter + "\n")
	}
	b.WriteString("  QPParametrizer_S0_opt:\n    model:\n      functional: B3LYP\n")
	b.WriteString("  QPParametrizer_S1_opt: {}\n  QPParametrizer_absorbtion: {}\n  QPParametrizer_emission: {}\n")
	require.NoError(Te, os.WriteFile(filepath.Join(root, "calculator.yml"), []byte(b.String()), 0o644))
	return root, tdir
}

var stokesFiles = []string{"molecule_S0_opt.mol2", "molecule_S1_opt.mol2"}

func readOrder(Te *testing.T, root string) []string {
	Te.Helper()
	b, err := os.ReadFile(filepath.Join(root, "order.txt"))
	require.NoError(Te, err)
	return strings.Fields(string(b))
}

func TestGet(Te *testing.T) {
	assert.Equal(Te, []string{"mobility", "stokes_shift"}, Names())
	P, err := Get("mobility")
	require.NoError(Te, err)
	assert.Equal(Te, []string{"xtb", "QPParametrizer", "DihedralParametrizer", "Deposit", "QuantumPatch", "lightforge_hole", "lightforge_electron"}, P.Stages())
	assert.Equal(Te, "diadem_files", P.FilesDir)
	assert.False(Te, P.AllowExtra)
	assert.Equal(Te, []string{"QuantumPatch", "DihedralParametrizer"}, P.Steps[6].From)

	P, err = Get("stokes_shift")
	require.NoError(Te, err)
	assert.Equal(Te, []string{"xtb", "QPParametrizer_S0_opt", "QPParametrizer_S1_opt", "QPParametrizer_absorbtion", "QPParametrizer_emission"}, P.Stages())
	assert.Nil(Te, P.Steps[2].From)
	assert.Equal(Te, []string{"QPParametrizer_S0_opt"}, P.Steps[3].From)
	assert.Equal(Te, []string{"QPParametrizer_S1_opt"}, P.Steps[4].From)

	_, err = Get("bandgap")
	assert.ErrorContains(Te, err, "unknown pipeline")
}

func TestStokesShift(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "")
	core, logs := observer.New(zap.InfoLevel)
	W, err := New(root, StokesShift(), WithTemplates(tdir), WithDebug(true), WithLogger(zap.New(core)))
	require.NoError(Te, err)
	assert.Equal(Te, 1, W.NCPU())
	assert.Equal(Te, "", W.StopAfter())
	assert.Equal(Te, 1, logs.FilterMessageSnippet("Sanity Check Successful").Len())

	require.NoError(Te, W.Run(context.Background()))
	assert.Equal(Te, []string{"QPParametrizer_S0_opt", "QPParametrizer_S1_opt", "QPParametrizer_absorbtion", "QPParametrizer_emission"}, readOrder(Te, root))

	//inputs
	assert.FileExists(Te, filepath.Join(root, "xtb", "out", "input_molecule.mol2"))
	assert.FileExists(Te, filepath.Join(root, "QPParametrizer_S0_opt", "input_molecule.mol2"))
	assert.FileExists(Te, filepath.Join(root, "QPParametrizer_S1_opt", "molecule_S0_opt.mol2"))
	assert.FileExists(Te, filepath.Join(root, "QPParametrizer_absorbtion", "molecule_S0_opt.mol2"))
	assert.FileExists(Te, filepath.Join(root, "QPParametrizer_emission", "molecule_S1_opt.mol2"))
	assert.NoFileExists(Te, filepath.Join(root, "QPParametrizer_emission", "molecule_S0_opt.mol2"))

	//settings with the changes of the calculator
	s, err := dict.Load(filepath.Join(root, "QPParametrizer_S0_opt", "parametrizer_settings.yml"))
	require.NoError(Te, err)
	assert.Equal(Te, "B3LYP", s["model"].(map[string]any)["functional"])

	//distribution
	for _, f := range stokesFiles {
		assert.FileExists(Te, filepath.Join(root, f))
	}
	names, err := fileset.ZipNames(filepath.Join(root, "xtb_optionalFiles.zip"))
	require.NoError(Te, err)
	assert.Equal(Te, []string{"xtb.out"}, names)
	names, err = fileset.ZipNames(filepath.Join(root, "xtb_debugFiles.zip"))
	require.NoError(Te, err)
	assert.ElementsMatch(Te, []string{"xtb.out", "mol.inchi", "mol.xyz"}, names)
	assert.NoFileExists(Te, filepath.Join(root, "QPParametrizer_S1_opt_errorStageOut.zip"))

	//results
	assert.FileExists(Te, filepath.Join(root, "QPParametrizer_S0_opt", "result.yml"))
	assert.NoFileExists(Te, filepath.Join(root, "QPParametrizer_emission", "result.yml"))
	assert.NoFileExists(Te, filepath.Join(root, "xtb", "result.yml"))
	doc, err := dict.Load(filepath.Join(root, "result.yml"))
	require.NoError(Te, err)
	assert.Equal(Te, map[string]any{
		inchiKey: map[string]any{
			"HOMO":  map[string]any{"value": -5.5},
			"E(S1)": 3.1,
			"LUMO":  map[string]any{"value": -1.5},
		},
	}, doc)
	assert.Equal(Te, inchiKey, W.Document().Key())
	assert.Positive(Te, logs.FilterMessageSnippet("Found item: ").Len())
}

func TestStopAfter(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "QPParametrizer_S1_opt")
	W, err := New(root, StokesShift(), WithTemplates(tdir), WithLogger(zaptest.NewLogger(Te)))
	require.NoError(Te, err)
	assert.Equal(Te, "QPParametrizer_S1_opt", W.StopAfter())

	err = W.Run(context.Background())
	assert.ErrorIs(Te, err, ErrStopped)
	assert.Equal(Te, []string{"QPParametrizer_S0_opt", "QPParametrizer_S1_opt"}, readOrder(Te, root))
	assert.NoDirExists(Te, filepath.Join(root, "QPParametrizer_absorbtion"))
	//no debug mode
	assert.NoFileExists(Te, filepath.Join(root, "xtb_debugFiles.zip"))

	doc, err := dict.Load(filepath.Join(root, "result.yml"))
	require.NoError(Te, err)
	data := doc[inchiKey].(map[string]any)
	assert.Contains(Te, data, "HOMO")
	assert.Contains(Te, data, "E(S1)")
	assert.NotContains(Te, data, "LUMO")
}

func TestBadStopAfter(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "Deposit")
	_, err := New(root, StokesShift(), WithTemplates(tdir))
	assert.ErrorContains(Te, err, "must be one of")
}

func TestStageFails(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "")
	Te.Setenv("FAIL_IN", "QPParametrizer_S1_opt")
	W, err := New(root, StokesShift(), WithTemplates(tdir), WithLogger(zaptest.NewLogger(Te)))
	require.NoError(Te, err)

	err = W.Run(context.Background())
	var serr *StageError
	require.True(Te, errors.As(err, &serr))
	assert.Equal(Te, "QPParametrizer_S1_opt", serr.Stage)
	assert.True(Te, serr.Critical())
	assert.Equal(Te, []string{"QPParametrizer_S0_opt", "QPParametrizer_S1_opt"}, readOrder(Te, root))

	names, err := fileset.ZipNames(filepath.Join(root, "QPParametrizer_S1_opt_errorStageOut.zip"))
	require.NoError(Te, err)
	assert.ElementsMatch(Te, []string{"qp.err", "parametrizer_settings.yml"}, names)
	//best effort: the out directory is there, but empty
	assert.DirExists(Te, filepath.Join(root, "QPParametrizer_S1_opt", "out"))
	assert.NoFileExists(Te, filepath.Join(root, "QPParametrizer_S1_opt", "out", "molecule_S1_opt.mol2"))

	doc, err := dict.Load(filepath.Join(root, "result.yml"))
	require.NoError(Te, err)
	assert.Equal(Te, map[string]any{inchiKey: map[string]any{"HOMO": map[string]any{"value": -5.5}}}, doc)
}

func TestMissingRequiredFile(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "")
	require.NoError(Te, os.WriteFile(filepath.Join(tdir, "xtb", "required_files.txt"), []byte("input_molecule.mol2\nnothere.txt\n"), 0o644))
	W, err := New(root, StokesShift(), WithTemplates(tdir), WithLogger(zaptest.NewLogger(Te)))
	require.NoError(Te, err)

	err = W.Run(context.Background())
	var serr *StageError
	require.True(Te, errors.As(err, &serr))
	assert.Equal(Te, "xtb", serr.Stage)
	assert.ErrorContains(Te, err, "nothere.txt")
	//the error mode copy still gets what is there
	assert.FileExists(Te, filepath.Join(root, "xtb", "out", "input_molecule.mol2"))
	assert.NoFileExists(Te, filepath.Join(root, "order.txt"))
	assert.FileExists(Te, filepath.Join(root, "result.yml"))
}

func TestCanceled(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "")
	W, err := New(root, StokesShift(), WithTemplates(tdir), WithLogger(zaptest.NewLogger(Te)))
	require.NoError(Te, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = W.Run(ctx)
	assert.ErrorIs(Te, err, context.Canceled)
	assert.NoFileExists(Te, filepath.Join(root, "xtb", "mol.inchi"))
}

func TestNewFileMismatch(Te *testing.T) {
	root, tdir := setup(Te, append([]string{"spectrum.png"}, stokesFiles...), "")
	_, err := New(root, StokesShift(), WithTemplates(tdir))
	var mis *MismatchError
	require.True(Te, errors.As(err, &mis))
	assert.Equal(Te, []string{"spectrum.png"}, mis.Missing)
	assert.Empty(Te, mis.Extra)

	//the Stokes shift pipeline only warns about extra files
	root, tdir = setup(Te, stokesFiles[:1], "")
	core, logs := observer.New(zap.WarnLevel)
	_, err = New(root, StokesShift(), WithTemplates(tdir), WithLogger(zap.New(core)))
	require.NoError(Te, err)
	require.Equal(Te, 1, logs.FilterMessageSnippet("doesn't ask for").Len())
	assert.Equal(Te, []any{"molecule_S1_opt.mol2"}, logs.FilterMessageSnippet("doesn't ask for").All()[0].ContextMap()["extra"])
}

func TestNewMissingInputs(Te *testing.T) {
	root, tdir := setup(Te, stokesFiles, "")
	require.NoError(Te, os.Remove(filepath.Join(root, "molecule.yml")))
	_, err := New(root, StokesShift(), WithTemplates(tdir))
	assert.Error(Te, err)

	root, tdir = setup(Te, stokesFiles, "")
	_, err = New(root, StokesShift(), WithTemplates(tdir), WithCalculator(filepath.Join(root, "nope.yml")))
	assert.Error(Te, err)
}

//fileStage writes its files in its directory, and records what it found there before.
type fileStage struct {
	name  string
	files map[string]string
	seen  []string
}

func (S *fileStage) Name() string { return S.name }

func (S *fileStage) Run(ctx context.Context, E *diadem.Env) error {
	entries, err := os.ReadDir(E.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		S.seen = append(S.seen, e.Name())
	}
	for name, content := range S.files {
		if err := os.MkdirAll(filepath.Dir(E.Path(name)), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(E.Path(name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestFetchFromSeveralStages(Te *testing.T) {
	root := Te.TempDir()
	tdir := Te.TempDir()
	for name, body := range map[string]string{
		"parametrize/required_files.txt": "shared.txt\nparams.spf\n",
		"patch/required_files.txt":       "shared.txt\nkmc.zip\n",
		"kmc/files.txt":                  "mobility.png\nresults/mobilities.dat\n",
	} {
		p := filepath.Join(tdir, name)
		require.NoError(Te, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(Te, os.WriteFile(p, []byte(body), 0o644))
	}
	require.NoError(Te, os.WriteFile(filepath.Join(root, "molecule.yml"), []byte("inchi: InChI=1S/CH4/h1H4\ninchiKey: "+inchiKey+"\n"), 0o644))
	calc := "calculatorId: mob\nprovides: [mobility]\nfiles: [mobility.png, mobilities.dat]\nspecification: {}\n"
	require.NoError(Te, os.WriteFile(filepath.Join(root, "calculator.yml"), []byte(calc), 0o644))

	param := &fileStage{name: "parametrize", files: map[string]string{"shared.txt": "from parametrize", "params.spf": "spf"}}
	patch := &fileStage{name: "patch", files: map[string]string{"shared.txt": "from patch", "kmc.zip": "zip"}}
	kmc := &fileStage{name: "kmc", files: map[string]string{"mobility.png": "png", "results/mobilities.dat": "0.1 0.2"}}
	P := &Pipeline{
		Name:     "small",
		FilesDir: "diadem_files",
		Steps: []Step{
			{Stage: param},
			{Stage: patch, From: []string{}},
			{Stage: kmc, From: []string{"parametrize", "patch"}},
		},
	}
	W, err := New(root, P, WithTemplates(tdir), WithLogger(zaptest.NewLogger(Te)))
	require.NoError(Te, err)
	require.NoError(Te, W.Run(context.Background()))

	assert.Empty(Te, param.seen)
	assert.Empty(Te, patch.seen)
	assert.ElementsMatch(Te, []string{"shared.txt", "params.spf", "kmc.zip"}, kmc.seen)
	//the later source wins
	b, err := os.ReadFile(filepath.Join(root, "kmc", "shared.txt"))
	require.NoError(Te, err)
	assert.Equal(Te, "from patch", string(b))

	files := filepath.Join(root, "diadem_files")
	assert.FileExists(Te, filepath.Join(files, "mobility.png"))
	assert.FileExists(Te, filepath.Join(files, "mobilities.dat"))
	assert.NoFileExists(Te, filepath.Join(root, "mobility.png"))
	assert.NoFileExists(Te, filepath.Join(files, "kmc.zip"))
}
