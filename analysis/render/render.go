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

// Package render draws the control-flow graphs of dex methods in GraphViz format and computes
// basic structural facts about them.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/analysis/subcomponents"
	"github.com/awslabs/ar-dex-tools/internal/formatutil"
	"github.com/awslabs/ar-dex-tools/internal/graphutil"
	"github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// edgeColor defines specific colors for specific edges in the control-flow graph
// - an edge that lies on a cycle will be colored with a blue edge
// - all other edges will have a default color edge
func edgeColor(from *ir.Block, to *ir.Block, mem map[*ir.Block]map[*ir.Block]bool) string {
	if ir.HasPathTo(to, from, mem) {
		return "[color=blue]"
	}
	return ""
}

// blockLabel renders the GraphViz label of one basic block. Instruction text comes from the
// method file, so it is sanitized before it lands in the label.
func blockLabel(b *ir.Block, snapshots map[ir.BlockID]subcomponents.BlockStateSnapshot) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("b%d:", b.ID()))
	if snapshots != nil {
		if snap, ok := snapshots[b.ID()]; ok && snap.Entry != nil {
			lines = append(lines, "entry: "+formatutil.Sanitize(snap.Entry.String()))
		}
	}
	for _, i := range b.Instrs() {
		lines = append(lines, formatutil.SanitizeRepr(i))
	}
	return strings.Join(lines, "\\l") + "\\l"
}

// WriteGraphviz writes a graphviz representation of the method's control-flow graph to w.
// When an is not nil, every block is annotated with the access path bindings at its entry.
func WriteGraphviz(m *ir.Method, an *subcomponents.Analyzer, w io.Writer) error {
	var err error
	before := fmt.Sprintf("digraph \"%s\" {\n", formatutil.SanitizeRepr(m.Ref))
	after := "}\n"

	_, err = w.Write([]byte(before))
	if err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}
	var snapshots map[ir.BlockID]subcomponents.BlockStateSnapshot
	if an != nil {
		snapshots = an.BlockStateSnapshots()
	}
	for _, b := range m.Graph.Blocks() {
		s := fmt.Sprintf("  %d [shape=box,label=\"%s\"];\n", b.ID(), blockLabel(b, snapshots))
		_, err = w.Write([]byte(s))
		if err != nil {
			return fmt.Errorf("error while writing in file: %w", err)
		}
	}
	mem := map[*ir.Block]map[*ir.Block]bool{}
	for _, b := range m.Graph.Blocks() {
		for _, succ := range b.Succs() {
			s := fmt.Sprintf("  %d -> %d %s;\n", b.ID(), succ.ID(), edgeColor(b, succ, mem))
			_, err = w.Write([]byte(s))
			if err != nil {
				return fmt.Errorf("error while writing in file: %w", err)
			}
		}
	}
	_, err = w.Write([]byte(after))
	if err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}
	return nil
}

// GraphvizToFile writes a graphviz representation of the method's control-flow graph to the
// file named filename.
func GraphvizToFile(m *ir.Method, an *subcomponents.Analyzer, filename string) error {
	var err error
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	err = WriteGraphviz(m, an, w)
	if err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return err
}

// A CFGSummary describes the shape of one method's control-flow graph.
type CFGSummary struct {
	// Blocks is the number of basic blocks
	Blocks int
	// Edges is the number of unique control-flow edges
	Edges int
	// SelfLoops is the number of blocks that branch directly to themselves
	SelfLoops int
	// Exits is the number of blocks without successors
	Exits int
	// Cycles is the number of elementary cycles through at least two blocks
	Cycles int
	// Order is a topological order of the block ids when the graph is acyclic, nil otherwise
	Order []ir.BlockID
}

// SummarizeCFG computes the summary of the method's control-flow graph.
func SummarizeCFG(m *ir.Method) CFGSummary {
	fg := graphutil.NewFlowIterator(m.Graph)
	stats := graph.Check(fg)
	exits := 0
	for _, b := range m.Graph.Blocks() {
		if len(b.Succs()) == 0 {
			exits++
		}
	}
	cycles := 0
	for _, c := range graphutil.FindAllElementaryCycles(fg) {
		// A self-loop on a block of a larger cycle comes back as a length two circuit; those
		// are already counted by SelfLoops.
		if len(c) > 2 {
			cycles++
		}
	}
	summary := CFGSummary{
		Blocks:    fg.Order(),
		Edges:     stats.Size,
		SelfLoops: stats.Loops,
		Exits:     exits,
		Cycles:    cycles,
	}
	if summary.SelfLoops == 0 && summary.Cycles == 0 {
		if sorted, err := topo.Sort(fg); err == nil {
			order := make([]ir.BlockID, len(sorted))
			for i, n := range sorted {
				order[i] = ir.BlockID(n.ID())
			}
			summary.Order = order
		}
	}
	return summary
}

// OutputMethodsIR writes the ir listing of the methods, one file per declaring class, under
// dirName. Each class file holds the listing of every method of that class.
func OutputMethodsIR(methods []*ir.Method, dirName string) error {
	if len(methods) == 0 {
		fmt.Print("No methods found.")
		return nil
	}
	err := os.MkdirAll(dirName, 0700)
	if err != nil {
		return fmt.Errorf("could not create directory %s: %v", dirName, err)
	}

	byClass := map[string][]*ir.Method{}
	for _, m := range methods {
		byClass[m.Ref.Class] = append(byClass[m.Ref.Class], m)
	}
	for class, ms := range byClass {
		// "Lcom/app/Box;" maps to the file com/app/Box.ir
		classPath := strings.TrimSuffix(strings.TrimPrefix(class, "L"), ";")
		appendDirPath, className := filepath.Split(classPath)
		fullDirPath := dirName
		if appendDirPath != "" {
			fullDirPath = filepath.Join(fullDirPath, appendDirPath)
			err := os.MkdirAll(fullDirPath, 0700)
			if err != nil {
				return fmt.Errorf("could not create directory %s: %v", fullDirPath, err)
			}
		}
		irFilePath := filepath.Join(fullDirPath, className+".ir")
		if err := classToFile(ms, irFilePath); err != nil {
			return err
		}
	}
	return nil
}

func classToFile(methods []*ir.Method, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	defer w.Flush()

	for _, m := range methods {
		WriteMethodIR(m, w)
	}
	return nil
}

// WriteMethodIR writes a textual listing of the method body to w.
func WriteMethodIR(m *ir.Method, w io.Writer) {
	fmt.Fprintf(w, "method %v:\n", m.Ref)
	if m.Graph == nil {
		fmt.Fprintf(w, "  (no body)\n\n")
		return
	}
	fmt.Fprintf(w, "  params: %v\n", m.Params)
	for _, b := range m.Graph.Blocks() {
		var succs []string
		for _, succ := range b.Succs() {
			succs = append(succs, fmt.Sprintf("b%d", succ.ID()))
		}
		fmt.Fprintf(w, "  b%d: (succs: %s)\n", b.ID(), strings.Join(succs, ", "))
		for _, i := range b.Instrs() {
			fmt.Fprintf(w, "    %v\n", i)
		}
	}
	fmt.Fprintf(w, "\n")
}
