// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package render implements a tool for rendering various "visualizations" of dex methods.
// -dotout Given a path for a .dot file, generates the control-flow graphs of the methods in
// that file.
// -irout Given a path for a folder, generates subfolders with files containing
// the ir listing of each class.
package render

import (
	"bufio"
	"fmt"
	"os"

	"github.com/awslabs/ar-dex-tools/analysis"
	"github.com/awslabs/ar-dex-tools/analysis/config"
	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/analysis/render"
	"github.com/awslabs/ar-dex-tools/analysis/subcomponents"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/tools"
	"github.com/awslabs/ar-dex-tools/internal/formatutil"
)

const usage = `Render control-flow graphs or ir representation of your methods.
Usage:
  ardex render [options] <method file path(s)>
Examples:
Render the control-flow graphs annotated with the access path bindings of each block
  % ardex render -config config.yaml -with-states -dotout example.dot methods.yaml
Print out all the methods in ir form
  % ardex render -irout tmpIr methods.yaml
`

// Flags represents the parsed render sub-command flags.
type Flags struct {
	tools.CommonFlags
	withStates bool
	dotOut     string
	irOut      string
}

// NewFlags returns the parsed render sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("render")
	withStates := flags.FlagSet.Bool("with-states", false, "annotate every block with the access path bindings at its entry")
	dotOut := flags.FlagSet.String("dotout", "", "output file for control-flow graphs (no output if not specified)")
	irOut := flags.FlagSet.String("irout", "", "output folder for ir listings (no output if not specified)")
	tools.SetUsage(flags.FlagSet, usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command render with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		withStates: *withStates,
		dotOut:     *dotOut,
		irOut:      *irOut,
	}, nil
}

// Run runs the render tool with flags.
func Run(flags Flags) error {
	var err error
	renderConfig := config.NewDefault() // empty default config
	if flags.ConfigPath != "" {
		config.SetGlobalConfig(flags.ConfigPath)
		renderConfig, err = config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("could not load config %q", flags.ConfigPath)
		}
	}
	if flags.Verbose {
		renderConfig.LogLevel = int(config.DebugLevel)
	}

	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading method files")+"\n")

	methods, err := analysis.LoadMethods(flags.FlagSet.Args())
	if err != nil {
		return fmt.Errorf("could not load methods: %v", err)
	}

	for _, m := range methods {
		if m.Graph == nil {
			continue
		}
		summary := render.SummarizeCFG(m)
		fmt.Printf("%s: %d blocks, %d edges, %d exits, %d cycles, %d self-loops\n",
			formatutil.SanitizeRepr(m.Ref), summary.Blocks, summary.Edges, summary.Exits,
			summary.Cycles, summary.SelfLoops)
	}

	if flags.dotOut != "" {
		fmt.Fprintf(os.Stderr, formatutil.Faint("Writing control-flow graphs in "+flags.dotOut+"\n"))
		if err := writeGraphs(renderConfig, methods, flags); err != nil {
			return fmt.Errorf("could not print control-flow graphs: %v", err)
		}
	}

	if flags.irOut != "" {
		fmt.Fprintf(os.Stderr, formatutil.Faint("Generating ir in ")+flags.irOut+"\n")
		err := render.OutputMethodsIR(methods, flags.irOut)
		if err != nil {
			return fmt.Errorf("could not print ir form: %v", err)
		}
	}

	return nil
}

// writeGraphs writes the graphs of all the methods into one dot file, one digraph per method.
func writeGraphs(cfg *config.Config, methods []*ir.Method, flags Flags) error {
	f, err := os.Create(flags.dotOut)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	logger := config.NewLogGroup(cfg)
	for _, m := range methods {
		if m.Graph == nil {
			continue
		}
		var an *subcomponents.Analyzer
		if flags.withStates {
			an, err = analysis.AnalyzeMethod(cfg, logger, m)
			if err != nil {
				logger.Warnf("skipping the annotations of %v: %v", m, err)
				an = nil
			}
		}
		if err := render.WriteGraphviz(m, an, w); err != nil {
			return err
		}
	}
	return nil
}
