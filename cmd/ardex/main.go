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

package main

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-dex-tools/analysis"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/render"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/statistics"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/subcomponents"
	"github.com/awslabs/ar-dex-tools/cmd/ardex/tools"
)

const usage = `Ardex: Automated Reasoning Dex Tools
Usage:
  ardex [tool] [options] <method file path(s)>
Tools:
  - subcomponents: computes the immutable access paths held in the registers of each method
  - render: renders the control-flow graphs of the methods, or prints their ir form
  - statistics: prints statistics about the loaded method bodies
Examples:
  Run the subcomponent analysis: ardex subcomponents -config config.yaml methods.yaml
  Render control-flow graphs: ardex render -dotout graphs.dot methods.yaml`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "render":
		flags, err := render.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := render.Run(flags); err != nil {
			errExit(err)
		}
	case "statistics":
		flags, err := statistics.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := statistics.Run(flags); err != nil {
			errExit(err)
		}
	case "subcomponents":
		flags, err := subcomponents.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := subcomponents.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
