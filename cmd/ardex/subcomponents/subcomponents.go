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

// Package subcomponents implements the frontend to the immutable subcomponent analysis.
package subcomponents

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/awslabs/ar-dex-tools/analysis"
	"github.com/awslabs/ar-dex-tools/analysis/config"
	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/tools"
	"github.com/awslabs/ar-dex-tools/internal/formatutil"
)

const usage = ` Compute the immutable access paths held in each register of your methods.
Usage:
  ardex subcomponents [options] <method file path(s)>
Examples:
  % ardex subcomponents -config config.yaml methods.yaml
`

// Flags represents the parsed flags for the subcomponent analysis.
type Flags struct {
	tools.CommonFlags
	dumpStates bool
	jobs       int
	excludes   tools.ExcludeClasses
}

// NewFlags returns the parsed flags for the subcomponent analysis with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("subcomponents")
	dumpStates := flags.FlagSet.Bool("dump-states", false, "print the per-block states of every analyzed method")
	jobs := flags.FlagSet.Int("jobs", runtime.NumCPU(), "number of methods to analyze in parallel")
	var excludes tools.ExcludeClasses
	flags.FlagSet.Var(&excludes, "exclude", "class descriptor prefixes to exclude from analysis")
	tools.SetUsage(flags.FlagSet, usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command subcomponents with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		dumpStates: *dumpStates,
		jobs:       *jobs,
		excludes:   excludes,
	}, nil
}

// Run runs the subcomponent analysis with flags.
func Run(flags Flags) error {
	logger := log.New(os.Stdout, "", log.Flags())

	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}

	// Override config parameters with command-line parameters
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}

	logger.Printf(formatutil.Faint("Ardex subcomponents tool - " + analysis.Version))
	logger.Printf(formatutil.Faint("Reading method files") + "\n")

	methods, err := analysis.LoadMethods(flags.FlagSet.Args())
	if err != nil {
		return fmt.Errorf("could not load methods: %v", err)
	}
	if len(flags.excludes) > 0 {
		var kept []*ir.Method
		for _, m := range methods {
			if flags.excludes.Excluded(m.Ref.Class) {
				continue
			}
			kept = append(kept, m)
		}
		methods = kept
	}

	lg := config.NewLogGroup(cfg)
	start := time.Now()
	results := analysis.RunMethodAnalyses(cfg, lg, methods, flags.jobs)
	duration := time.Since(start)

	lg.Infof("")
	lg.Infof(strings.Repeat("*", 80))
	lg.Infof("Analysis took %3.4f s", duration.Seconds())
	lg.Infof("")

	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
			continue
		}
		logger.Printf("%s: %d passes, %d registers bound at exits\n",
			formatutil.Sanitize(res.Method.Ref.String()), res.Analyzer.Passes(), boundAtExits(res))
		if flags.dumpStates {
			res.Analyzer.Show(os.Stdout)
		}
	}
	if failures > 0 {
		lg.Errorf("RESULT:\n\t\t%s", formatutil.Red(fmt.Sprintf("%d methods could not be analyzed", failures))) // safe %s
		return fmt.Errorf("failed to analyze %d methods", failures)
	}
	lg.Infof("RESULT:\n\t\t%s", formatutil.Green("All methods analyzed ✓")) // safe %s
	return nil
}

// boundAtExits counts the register bindings in the exit states of the blocks without successors.
func boundAtExits(res analysis.MethodAnalysisResult) int {
	snapshots := res.Analyzer.BlockStateSnapshots()
	n := 0
	for _, b := range res.Method.Graph.Blocks() {
		if len(b.Succs()) != 0 {
			continue
		}
		n += len(snapshots[b.ID()].Exit)
	}
	return n
}
