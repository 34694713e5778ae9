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

package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/analysis/subcomponents"
)

func methodOf(t *testing.T, refStr string, params []ir.Reg,
	blocks [][]*ir.Instruction, edges [][2]int) *ir.Method {
	ref, err := ir.ParseMethodRef(refStr)
	if err != nil {
		t.Fatalf("error parsing method reference %q: %v", refStr, err)
	}
	g := ir.NewGraph()
	bs := make([]*ir.Block, len(blocks))
	for i := range blocks {
		bs[i] = g.NewBlock()
		bs[i].Append(blocks[i]...)
	}
	for _, e := range edges {
		g.AddEdge(bs[e[0]], bs[e[1]])
	}
	return &ir.Method{Ref: ref, Params: params, Graph: g}
}

// loopMethod spins on v0 in b1 before returning.
func loopMethod(t *testing.T) *ir.Method {
	return methodOf(t, "Lcom/app/Main;.run:()V", []ir.Reg{0},
		[][]*ir.Instruction{
			{ir.NewNop()},
			{ir.NewIfEqz(0)},
			{ir.NewReturnVoid()},
		},
		[][2]int{{0, 1}, {1, 1}, {1, 2}})
}

func diamondMethod(t *testing.T) *ir.Method {
	return methodOf(t, "Lcom/app/Main;.pick:()V", []ir.Reg{0},
		[][]*ir.Instruction{
			{ir.NewIfEqz(0)},
			{ir.NewNop()},
			{ir.NewNop()},
			{ir.NewReturnVoid()},
		},
		[][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
}

func TestWriteGraphviz(t *testing.T) {
	m := loopMethod(t)
	buf := &bytes.Buffer{}
	if err := WriteGraphviz(m, nil, buf); err != nil {
		t.Fatalf("error writing graph: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "digraph \"Lcom/app/Main;.run:()V\" {") {
		t.Errorf("Unexpected graph header:\n%s", out)
	}
	if !strings.Contains(out, "0 -> 1 ;") {
		t.Errorf("Missing forward edge in:\n%s", out)
	}
	if !strings.Contains(out, "1 -> 1 [color=blue];") {
		t.Errorf("The self-loop should be colored:\n%s", out)
	}
	if !strings.Contains(out, "b2:") || !strings.Contains(out, "return-void") {
		t.Errorf("Missing block label in:\n%s", out)
	}
}

func TestWriteGraphvizWithBindings(t *testing.T) {
	m := loopMethod(t)
	an, err := subcomponents.NewAnalyzer(m, nil, subcomponents.Params{})
	if err != nil {
		t.Fatalf("error analyzing method: %v", err)
	}
	buf := &bytes.Buffer{}
	if err := WriteGraphviz(m, an, buf); err != nil {
		t.Fatalf("error writing graph: %v", err)
	}
	if !strings.Contains(buf.String(), "entry: {v0 -> p0}") {
		t.Errorf("The entry block should be annotated with its bindings:\n%s", buf.String())
	}
}

func TestGraphvizToFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "main.dot")
	if err := GraphvizToFile(diamondMethod(t), nil, filename); err != nil {
		t.Fatalf("error writing graph file: %v", err)
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("error reading graph file: %v", err)
	}
	if !strings.HasPrefix(string(b), "digraph \"Lcom/app/Main;.pick:()V\" {") {
		t.Errorf("Unexpected graph file contents:\n%s", b)
	}
}

func TestSummarizeCFGLoop(t *testing.T) {
	summary := SummarizeCFG(loopMethod(t))
	if summary.Blocks != 3 || summary.Edges != 3 {
		t.Errorf("Unexpected size, expected: 3 blocks and 3 edges vs computed: %+v", summary)
	}
	if summary.SelfLoops != 1 {
		t.Errorf("Unexpected number of self-loops, expected: 1 vs computed: %d", summary.SelfLoops)
	}
	if summary.Exits != 1 {
		t.Errorf("Unexpected number of exits, expected: 1 vs computed: %d", summary.Exits)
	}
	if summary.Order != nil {
		t.Errorf("A cyclic graph should have no topological order, got %v", summary.Order)
	}
}

func TestSummarizeCFGDiamond(t *testing.T) {
	summary := SummarizeCFG(diamondMethod(t))
	if summary.Blocks != 4 || summary.Edges != 4 {
		t.Errorf("Unexpected size, expected: 4 blocks and 4 edges vs computed: %+v", summary)
	}
	if summary.SelfLoops != 0 || summary.Cycles != 0 {
		t.Errorf("A diamond should have no cycles, got %+v", summary)
	}
	if len(summary.Order) != 4 || summary.Order[0] != 0 || summary.Order[3] != 3 {
		t.Errorf("Unexpected topological order: %v", summary.Order)
	}
}

func TestWriteMethodIR(t *testing.T) {
	m := loopMethod(t)
	buf := &bytes.Buffer{}
	WriteMethodIR(m, buf)
	out := buf.String()
	if !strings.Contains(out, "method Lcom/app/Main;.run:()V:") {
		t.Errorf("Missing method header in:\n%s", out)
	}
	if !strings.Contains(out, "b1: (succs: b1, b2)") {
		t.Errorf("Missing block successors in:\n%s", out)
	}
	if !strings.Contains(out, "if-eqz") {
		t.Errorf("Missing instruction listing in:\n%s", out)
	}
}

func TestOutputMethodsIR(t *testing.T) {
	dir := t.TempDir()
	ref, err := ir.ParseMethodRef("Lnet/lib/Other;.h:()V")
	if err != nil {
		t.Fatalf("error parsing method reference: %v", err)
	}
	methods := []*ir.Method{loopMethod(t), diamondMethod(t), {Ref: ref}}
	if err := OutputMethodsIR(methods, dir); err != nil {
		t.Fatalf("error writing methods: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "com", "app", "Main.ir"))
	if err != nil {
		t.Fatalf("error reading output file: %v", err)
	}
	if !strings.Contains(string(b), "method Lcom/app/Main;.run:()V:") ||
		!strings.Contains(string(b), "method Lcom/app/Main;.pick:()V:") {
		t.Errorf("The class file should list both methods:\n%s", b)
	}

	b, err = os.ReadFile(filepath.Join(dir, "net", "lib", "Other.ir"))
	if err != nil {
		t.Fatalf("error reading output file: %v", err)
	}
	if !strings.Contains(string(b), "(no body)") {
		t.Errorf("The bodyless method should be marked:\n%s", b)
	}
}
