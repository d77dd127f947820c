/*
 * main.go, part of diadem.
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

//Command diadem runs the diadem calculator workflows.
//
//	diadem run mobility --root /work --tmpl /opt/tmpl
//
//The workflow root must have molecule.yml and calculator.yml. The exit status is
//0 when the workflow finished, or stopped after the stop_after stage, and 1 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/diadem/calculators/tmpl"
	"github.com/diadem/calculators/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	root       string
	tmplDir    string
	molecule   string
	calculator string
	debug      bool
	logLevel   string
	logFormat  string
	ncpu       int

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{}
	defTmpl := os.Getenv("DIADEM_TMPL")
	if defTmpl == "" {
		defTmpl = tmpl.DefaultDir
	}
	root := &cobra.Command{
		Use:   "diadem",
		Short: "Run the diadem calculator workflows",
		Long: `diadem runs a pipeline of simulation stages for one molecule.

Each stage runs an external program in its own directory under the workflow
root, with settings built from the stage templates and the calculator.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			o.logger, err = o.buildLogger(cmd.Name() == "run" || cmd.Name() == "check")
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if o.debug {
				logEnviron(o.logger)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.root, "root", ".", "Workflow root directory")
	pf.StringVar(&o.tmplDir, "tmpl", defTmpl, "Template directory (or set DIADEM_TMPL)")
	pf.StringVar(&o.molecule, "molecule", "", "Molecule file (default: <root>/molecule.yml)")
	pf.StringVar(&o.calculator, "calculator", "", "Calculator file (default: <root>/calculator.yml)")
	pf.BoolVar(&o.debug, "debug", false, "Debug mode: debug logging and debug files zipped")
	pf.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&o.logFormat, "log-format", "console", "Log format (console or json)")
	pf.IntVar(&o.ncpu, "ncpus", 0, "CPUs for the programs when the calculator doesn't set global.ncpus (default: half the CPUs)")

	root.AddCommand(o.runCmd(), o.checkCmd(), stagesCmd(), versionCmd())
	return root
}

func pipelineArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := workflow.Get(args[0])
	return err
}

func (o *options) workflow(name string) (*workflow.Workflow, error) {
	P, err := workflow.Get(name)
	if err != nil {
		return nil, err
	}
	opts := []workflow.Option{
		workflow.WithTemplates(o.tmplDir),
		workflow.WithDebug(o.debug),
		workflow.WithLogger(o.logger),
	}
	if o.molecule != "" {
		opts = append(opts, workflow.WithMolecule(o.molecule))
	}
	if o.calculator != "" {
		opts = append(opts, workflow.WithCalculator(o.calculator))
	}
	if o.ncpu > 0 {
		opts = append(opts, workflow.WithNCPU(o.ncpu))
	}
	return workflow.New(o.root, P, opts...)
}

func (o *options) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <pipeline>",
		Short:     "Run a pipeline",
		Args:      pipelineArg,
		ValidArgs: workflow.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			W, err := o.workflow(args[0])
			if err != nil {
				o.logger.Error("Could not set up the workflow", zap.Error(err))
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = W.Run(ctx)
			if errors.Is(err, workflow.ErrStopped) {
				fmt.Fprintf(cmd.OutOrStdout(), "stopped after %s\n", W.StopAfter())
				return nil
			}
			return err
		},
	}
}

func (o *options) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "check <pipeline>",
		Short:     "Check the molecule, the calculator and the templates without running anything",
		Args:      pipelineArg,
		ValidArgs: workflow.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			W, err := o.workflow(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s, %d CPUs", args[0], W.NCPU())
			if s := W.StopAfter(); s != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ", stops after %s", s)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "stages <pipeline>",
		Short:     "List the stages of a pipeline and where their inputs come from",
		Args:      pipelineArg,
		ValidArgs: workflow.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			P, err := workflow.Get(args[0])
			if err != nil {
				return err
			}
			for i, s := range P.Steps {
				from := s.From
				if from == nil && i > 0 {
					from = []string{P.Steps[i-1].Stage.Name()}
				}
				line := s.Stage.Name()
				if len(from) > 0 {
					line += " <- " + strings.Join(from, ", ")
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "diadem", version)
		},
	}
}

// buildLogger logs to stderr, and also to <root>/log.txt if toFile is true.
func (o *options) buildLogger(toFile bool) (*zap.Logger, error) {
	var config zap.Config
	switch o.logFormat {
	case "json":
		config = zap.NewProductionConfig()
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Development = false
		config.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format '%s'", o.logFormat)
	}
	level, err := zapcore.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	if o.debug {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	if toFile {
		if err := os.MkdirAll(o.root, 0o755); err != nil {
			return nil, err
		}
		config.OutputPaths = append(config.OutputPaths, filepath.Join(o.root, "log.txt"))
	}
	return config.Build()
}

// debugVars are the environment variables that the stages read.
var debugVars = []string{"CONDA_DEFAULT_ENV", "OMP_NUM_THREADS", "SLURM_CPU_BIND", "NMMPIARGS", "ENVCOMMAND", "HOSTFILE", "DEPTOOLS", "SCRATCH", "DO_RESTART"}

func logEnviron(logger *zap.Logger) {
	for _, k := range debugVars {
		v, ok := os.LookupEnv(k)
		if !ok {
			v = "Not set"
		}
		logger.Debug("Environment variable", zap.String("key", k), zap.String("value", v))
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
