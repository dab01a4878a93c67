/*
Copyright © 2023 the chemsolve authors.
This file is part of chemsolve.

chemsolve is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

chemsolve is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with chemsolve.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package chemsolveutil contains the command-line interface of the
// chemsolve box model.
package chemsolveutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemsolve"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands.
var Log = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to chemsolve.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the logging level: one of panic, fatal, error,
              warn, info, debug, or trace.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mechanism",
			usage: `
              Mechanism is the chemical mechanism to integrate: either
              "chapman" for the built-in Chapman mechanism or the path to a
              TOML mechanism file.`,
			shorthand:  "m",
			defaultVal: "chapman",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "Method",
			usage: `
              Method is the Rosenbrock method: one of ROS2, ROS3, ROS4,
              or RODAS3.`,
			defaultVal: "ROS3",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "Layout",
			usage: `
              Layout is the memory layout of the solver matrices: one of
              standard, vector1, vector2, vector3, vector4, or vector8.`,
			defaultVal: "standard",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells",
			usage: `
              Cells is the number of independent grid cells to integrate.
              Every cell starts from the same conditions.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "Steps",
			usage: `
              Steps is the number of external time steps to take.`,
			shorthand:  "n",
			defaultVal: 24,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep",
			usage: `
              TimeStep is the length of each external time step [s].`,
			defaultVal: 3600.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Temperature",
			usage: `
              Temperature is the air temperature [K].`,
			defaultVal: 227.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Pressure",
			usage: `
              Pressure is the air pressure [Pa].`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Concentrations",
			usage: `
              Concentrations gives the initial concentration [mol/m³] of
              species by name, for example {"O3":1.2e-6}. Species that are
              not listed start at zero, except that the built-in Chapman
              mechanism fills in typical stratospheric values.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RateParameters",
			usage: `
              RateParameters gives the value of custom rate parameters,
              such as photolysis rates [1/s], by label, for example
              {"PHOTO.O2_1":1.2e-11}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AbsoluteTolerance",
			usage: `
              AbsoluteTolerance is the absolute error tolerance [mol/m³]
              for species without a tolerance of their own.`,
			defaultVal: 1.0e-12,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "RelativeTolerance",
			usage: `
              RelativeTolerance is the relative error tolerance.`,
			defaultVal: 1.0e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "ClampNegative",
			usage: `
              ClampNegative specifies whether negative concentrations are
              set to zero at stage evaluation points and after every
              accepted step.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "Specialized",
			usage: `
              Specialized specifies whether to build alpha·I - J with a
              routine specialized to the Jacobian sparsity pattern.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of goroutines used to evaluate forcing
              and Jacobian terms. 1 evaluates them on the calling
              goroutine; 0 uses one per processor.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxSteps",
			usage: `
              MaxSteps is the largest number of internal solver steps per
              sub-step. 0 uses the default of the method.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "MaxRetries",
			usage: `
              MaxRetries is the number of times a failed external step is
              retried, each time split into twice as many sub-steps.`,
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the CSV file the concentration
              time series is written to.`,
			shorthand:  "o",
			defaultVal: "chemsolve.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path to a PNG file to plot the time series of
              the variable species in the first grid cell to. If empty, no
              plot is made.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CHEMSOLVE")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := strings.TrimSpace(b.String())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(paramsCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("chemsolve: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("chemsolve: %v", err)
	}
	Log.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "chemsolve",
	Short: "A box model for stiff chemical kinetics.",
	Long: `chemsolve integrates the chemical kinetics of a mechanism in one or more
independent grid cells with an adaptive Rosenbrock solver.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CHEMSOLVE_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of chemsolve.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("chemsolve v%s\n", chemsolve.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a box model simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the box model.",
	Long: `run integrates the configured mechanism for Steps external time steps of
TimeStep seconds each and writes the concentrations of every species in every
grid cell after each step to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := BoxConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		r, err := RunBox(c)
		if err != nil {
			return err
		}
		f, err := os.Create(os.ExpandEnv(Cfg.GetString("OutputFile")))
		if err != nil {
			return fmt.Errorf("chemsolve: creating output file: %v", err)
		}
		if err := r.WriteCSV(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if p := Cfg.GetString("PlotFile"); p != "" {
			if err := r.Plot(os.ExpandEnv(p), 0); err != nil {
				return err
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// paramsCmd is a command that prints the solver parameters.
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the solver parameters.",
	Long: `params prints the Rosenbrock solver parameters that result from the
current configuration, along with the species and reactions of the mechanism.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := BoxConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		m, err := LoadMechanism(c.Mechanism)
		if err != nil {
			return err
		}
		p, err := c.Parameters(m)
		if err != nil {
			return err
		}
		procs, err := m.Processes()
		if err != nil {
			return err
		}
		cmd.Printf("%# v\n", pretty.Formatter(p))
		cmd.Printf("species: %v\n", m.Species())
		for _, proc := range procs {
			cmd.Printf("%s: %v -> %v (%v)\n", proc.Name, proc.ReactantNames(), proc.Products, proc.RateConstant)
		}
		return nil
	},
	DisableAutoGenTag: true,
}
