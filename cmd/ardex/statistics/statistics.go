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

// Package statistics implements the front-end for the method statistics analysis.
package statistics

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/awslabs/ar-dex-tools/analysis"
	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/tools"
	"github.com/awslabs/ar-dex-tools/internal/formatutil"
)

const usage = `Compute statistics for a collection of dex methods.

Usage:
  ardex statistics methods.yaml...
  ardex statistics -exclude Landroidx/ methods.yaml

Use the -help flag to display the options.

Examples:
% ardex statistics methods.yaml
`

// Flags represents the flags for the statistics sub-tool.
type Flags struct {
	tools.CommonFlags
	outputJson bool
	excludes   tools.ExcludeClasses
}

// NewFlags returns parsed flags for statistics.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("statistics")
	outputJson := flags.FlagSet.Bool("json", false, "output results as JSON")
	var excludes tools.ExcludeClasses
	flags.FlagSet.Var(&excludes, "exclude", "class descriptor prefixes to exclude from analysis")
	tools.SetUsage(flags.FlagSet, usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command statistics with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		outputJson: *outputJson,
		excludes:   excludes,
	}, nil
}

// Run runs the method statistics analysis on args.
func Run(flags Flags) error {
	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading method files")+"\n")

	methods, err := analysis.LoadMethods(flags.FlagSet.Args())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, formatutil.Faint("Analyzing")+"\n")

	if len(flags.excludes) > 0 {
		var kept []*ir.Method
		for _, m := range methods {
			if !flags.excludes.Excluded(m.Ref.Class) {
				kept = append(kept, m)
			}
		}
		methods = kept
	}

	result := analysis.MethodStatistics(methods)
	if flags.outputJson {
		buf, _ := json.Marshal(result)
		fmt.Println(string(buf))
	} else {
		fmt.Printf("Number of methods: %d\n", result.NumberOfMethods)
		fmt.Printf("Number of nonempty methods: %d\n", result.NumberOfNonemptyMethods)
		fmt.Printf("Number of blocks: %d\n", result.NumberOfBlocks)
		fmt.Printf("Number of instructions: %d\n", result.NumberOfInstructions)
	}

	if flags.ConfigPath != "" {
		cfg, err := tools.LoadConfig(flags.ConfigPath)
		if err != nil {
			return err
		}
		analysis.GetterStats(log.Default(), methods, analysis.GetterPredicateFromConfig(cfg))
	}

	return nil
}
