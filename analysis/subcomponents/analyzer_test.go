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

package subcomponents

import (
	"bytes"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/awslabs/ar-dex-tools/analysis/config"
	"github.com/awslabs/ar-dex-tools/analysis/ir"
)

// boxGetters is the getter predicate used by the engine tests.
func boxGetters(m *ir.MethodRef) bool {
	return strings.HasPrefix(m.Name, "get")
}

// methodOf wires the given blocks of instructions into a method body. Edges connect block
// indices; block 0 is the entry.
func methodOf(params []ir.Reg, blocks [][]*ir.Instruction, edges [][2]int) *ir.Method {
	g := ir.NewGraph()
	bs := make([]*ir.Block, len(blocks))
	for i, instrs := range blocks {
		bs[i] = g.NewBlock()
		bs[i].Append(instrs...)
	}
	for _, e := range edges {
		g.AddEdge(bs[e[0]], bs[e[1]])
	}
	return &ir.Method{
		Ref:    &ir.MethodRef{Class: "Lcom/app/Main;", Name: "run", Proto: "()V"},
		Params: params,
		Graph:  g,
	}
}

// straightLineMethod wires the instructions into a single entry block.
func straightLineMethod(params []ir.Reg, instrs ...*ir.Instruction) *ir.Method {
	return methodOf(params, [][]*ir.Instruction{instrs}, nil)
}

// mustAnalyze runs the analysis and fails the test on construction errors.
func mustAnalyze(t *testing.T, m *ir.Method, isGetter GetterPredicate, params Params) *Analyzer {
	an, err := NewAnalyzer(m, isGetter, params)
	if err != nil {
		t.Fatalf("Unexpected analysis error: %v", err)
	}
	return an
}

// assertPathAt checks that reg is bound to a path rendering as want right before insn.
func assertPathAt(t *testing.T, an *Analyzer, reg ir.Reg, insn *ir.Instruction, want string) {
	p, ok := an.AccessPathAt(reg, insn)
	if !ok {
		t.Fatalf("No access path for %v before %v, expected %s", reg, insn, want)
	}
	if p.String() != want {
		t.Fatalf("Unexpected access path for %v, expected: %s vs computed: %s", reg, want, p)
	}
}

// assertNoPathAt checks that reg has no known derivation right before insn.
func assertNoPathAt(t *testing.T, an *Analyzer, reg ir.Reg, insn *ir.Instruction) {
	if p, ok := an.AccessPathAt(reg, insn); ok {
		t.Fatalf("Unexpected access path for %v before %v: %v", reg, insn, p)
	}
}

// v1 = p0.getA(); v2 = v1.getB() leaves v2 bound to p0.getA().getB().
func TestChainedGetters(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	callB := ir.NewInvoke(ir.OpInvokeVirtual, getB, []ir.Reg{1})
	mvB := ir.NewMoveResult(2)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, callA, mvA, callB, mvB, ret), boxGetters, Params{})

	assertPathAt(t, an, 0, ret, "p0")
	assertPathAt(t, an, 1, ret, "p0.getA()")
	assertPathAt(t, an, 2, ret, "p0.getA().getB()")
	// Queries see the state before their instruction: v1 only exists once its move-result
	// has executed, v2 once its own has.
	assertNoPathAt(t, an, 1, mvA)
	assertPathAt(t, an, 1, callB, "p0.getA()")
	assertNoPathAt(t, an, 2, mvB)
}

// A query before a clobbering write still sees the old binding of a reused register.
func TestRegisterReuse(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	clobber := ir.NewConst(1, 0)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, callA, mvA, clobber, ret), boxGetters, Params{})

	assertPathAt(t, an, 1, clobber, "p0.getA()")
	assertNoPathAt(t, an, 1, ret)
}

func TestMoveAndArithmetic(t *testing.T) {
	mv := ir.NewMove(1, 0)
	add := ir.NewAddInt(1, 1, 1)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, mv, add, ret), boxGetters, Params{})

	assertPathAt(t, an, 1, add, "p0")
	assertNoPathAt(t, an, 1, ret)
}

// Both branches compute the same chain, so the join keeps it.
func TestBranchMergeAgreement(t *testing.T) {
	branch := ir.NewIfEqz(0)
	leftCall := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	leftMv := ir.NewMoveResult(1)
	rightCall := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	rightMv := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0},
		[][]*ir.Instruction{{branch}, {leftCall, leftMv}, {rightCall, rightMv}, {ret}},
		[][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
	an := mustAnalyze(t, m, boxGetters, Params{})

	assertPathAt(t, an, 1, ret, "p0.getA()")
	assertPathAt(t, an, 0, ret, "p0")
}

// The branches disagree on v1 and only one of them writes v2, so the join knows neither.
func TestBranchMergeDisagreement(t *testing.T) {
	branch := ir.NewIfEqz(0)
	leftCallA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	leftMv := ir.NewMoveResult(1)
	leftCallB := ir.NewInvoke(ir.OpInvokeVirtual, getB, []ir.Reg{0})
	leftMvExtra := ir.NewMoveResult(2)
	rightCall := ir.NewInvoke(ir.OpInvokeVirtual, getB, []ir.Reg{0})
	rightMv := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0},
		[][]*ir.Instruction{{branch}, {leftCallA, leftMv, leftCallB, leftMvExtra}, {rightCall, rightMv}, {ret}},
		[][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
	an := mustAnalyze(t, m, boxGetters, Params{})

	assertNoPathAt(t, an, 1, ret)
	assertNoPathAt(t, an, 2, ret)
	assertPathAt(t, an, 0, ret, "p0")
}

// A loop that keeps applying a getter to the same register converges with that register
// Unknown at the loop head, while registers the loop leaves alone keep their paths.
func TestLoopConverges(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	callNext := ir.NewInvoke(ir.OpInvokeVirtual, getNext, []ir.Reg{1})
	mvNext := ir.NewMoveResult(1)
	cond := ir.NewIfEqz(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0},
		[][]*ir.Instruction{{callA, mvA}, {callNext, mvNext, cond}, {ret}},
		[][2]int{{0, 1}, {1, 1}, {1, 2}})
	an := mustAnalyze(t, m, boxGetters, Params{})

	assertNoPathAt(t, an, 1, callNext)
	assertNoPathAt(t, an, 1, ret)
	assertPathAt(t, an, 0, ret, "p0")
	if an.Passes() > 4 {
		t.Fatalf("Expected convergence in a few passes, computed: %d", an.Passes())
	}
}

// Chains longer than MaxPathLength degrade to Unknown instead of growing without bound.
func TestPathLengthCap(t *testing.T) {
	var insns []*ir.Instruction
	for i := 0; i < 4; i++ {
		insns = append(insns, ir.NewInvoke(ir.OpInvokeVirtual, getNext, []ir.Reg{0}), ir.NewMoveResult(0))
	}
	ret := ir.NewReturnVoid()
	insns = append(insns, ret)
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, insns...), boxGetters, Params{MaxPathLength: 3})

	lastCall := insns[6]
	assertPathAt(t, an, 0, lastCall, "p0.getNext().getNext().getNext()")
	assertNoPathAt(t, an, 0, ret)
}

func TestDefaultPathLengthCap(t *testing.T) {
	var insns []*ir.Instruction
	for i := 0; i < config.DefaultMaxPathLength+1; i++ {
		insns = append(insns, ir.NewInvoke(ir.OpInvokeVirtual, getNext, []ir.Reg{0}), ir.NewMoveResult(0))
	}
	ret := ir.NewReturnVoid()
	insns = append(insns, ret)
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, insns...), boxGetters, Params{})

	lastCall := insns[2*config.DefaultMaxPathLength]
	p, ok := an.AccessPathAt(0, lastCall)
	if !ok || len(p.Getters()) != config.DefaultMaxPathLength {
		t.Fatalf("Expected a full-length chain before the last call, computed: %v", p)
	}
	assertNoPathAt(t, an, 0, ret)
}

// Registers sharing a derivation are reported exactly, the result pseudo-register aside.
func TestFindAccessPathRegisters(t *testing.T) {
	callA1 := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mv2 := ir.NewMoveResult(2)
	callA2 := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mv5 := ir.NewMoveResult(5)
	callB := ir.NewInvoke(ir.OpInvokeVirtual, getB, []ir.Reg{0})
	mv3 := ir.NewMoveResult(3)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, callA1, mv2, callA2, mv5, callB, mv3, ret), boxGetters, Params{})

	pathA := Extend(NewParameterPath(0), getA)
	if got := an.FindAccessPathRegisters(ret, pathA); !reflect.DeepEqual(got, []ir.Reg{2, 5}) {
		t.Fatalf("Unexpected registers, expected: [v2 v5] vs computed: %v", got)
	}
	if got := an.FindAccessPathRegisters(ret, NewParameterPath(0)); !reflect.DeepEqual(got, []ir.Reg{0}) {
		t.Fatalf("Unexpected registers, expected: [v0] vs computed: %v", got)
	}
	// v3 holds p0.getB() and so does the result pseudo-register after the last call; only
	// the addressable register is reported.
	pathB := Extend(NewParameterPath(0), getB)
	if got := an.FindAccessPathRegisters(ret, pathB); !reflect.DeepEqual(got, []ir.Reg{3}) {
		t.Fatalf("Unexpected registers, expected: [v3] vs computed: %v", got)
	}
	if got := an.FindAccessPathRegisters(ret, Unknown); got != nil {
		t.Fatalf("Searching for Unknown should find nothing, computed: %v", got)
	}
	if got := an.FindAccessPathRegisters(ret, Extend(NewParameterPath(1), getA)); len(got) != 0 {
		t.Fatalf("Unexpected registers for an unbound path: %v", got)
	}
}

func TestStaticFinalFieldRead(t *testing.T) {
	sgetFinal := ir.NewSGet(0, confLimit)
	call := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mv := ir.NewMoveResult(1)
	sgetMutable := ir.NewSGet(2, confFlags)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod(nil, sgetFinal, call, mv, sgetMutable, ret), boxGetters, Params{})

	assertPathAt(t, an, 0, ret, "Lcom/app/Conf;.limit")
	assertPathAt(t, an, 1, ret, "Lcom/app/Conf;.limit.getA()")
	assertNoPathAt(t, an, 2, ret)
}

func TestInstanceFinalFieldRead(t *testing.T) {
	igetRoot := ir.NewIGet(1, 0, boxInner)
	call := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{1})
	mv := ir.NewMoveResult(2)
	igetChained := ir.NewIGet(3, 2, boxInner)
	igetMutable := ir.NewIGet(4, 0, boxCount)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, igetRoot, call, mv, igetChained, igetMutable, ret), boxGetters, Params{})

	assertPathAt(t, an, 1, ret, "Lcom/app/Box;.inner")
	assertPathAt(t, an, 2, ret, "Lcom/app/Box;.inner.getA()")
	// v2 already carries a getter chain, so a field read through it is not representable.
	assertNoPathAt(t, an, 3, ret)
	assertNoPathAt(t, an, 4, ret)
}

func TestTrackLocals(t *testing.T) {
	alloc := ir.NewNewInstance(0, boxClass)
	call := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mv := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	m := straightLineMethod(nil, alloc, call, mv, ret)

	tracked := mustAnalyze(t, m, boxGetters, Params{TrackLocals: true})
	assertPathAt(t, tracked, 0, ret, "local0")
	assertPathAt(t, tracked, 1, ret, "local0.getA()")

	untracked := mustAnalyze(t, m, boxGetters, Params{})
	assertNoPathAt(t, untracked, 0, ret)
	assertNoPathAt(t, untracked, 1, ret)
}

// Only argument-less instance calls of recognized getters extend paths.
func TestInvokeGating(t *testing.T) {
	process := &ir.MethodRef{Class: boxClass, Name: "process", Proto: "()" + boxClass}
	callOther := ir.NewInvoke(ir.OpInvokeVirtual, process, []ir.Reg{0})
	mvOther := ir.NewMoveResult(1)
	callWithArg := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0, 0})
	mvWithArg := ir.NewMoveResult(2)
	callStatic := ir.NewInvoke(ir.OpInvokeStatic, getA, []ir.Reg{0})
	mvStatic := ir.NewMoveResult(3)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0},
		callOther, mvOther, callWithArg, mvWithArg, callStatic, mvStatic, ret), boxGetters, Params{})

	assertNoPathAt(t, an, 1, ret)
	assertNoPathAt(t, an, 2, ret)
	assertNoPathAt(t, an, 3, ret)
	assertPathAt(t, an, 0, ret, "p0")
}

// A nil predicate disables getter tracking but parameters still flow.
func TestNilPredicate(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, callA, mvA, ret), nil, Params{})

	assertPathAt(t, an, 0, ret, "p0")
	assertNoPathAt(t, an, 1, ret)
}

func TestUnreachableBlock(t *testing.T) {
	ret := ir.NewReturnVoid()
	orphanCall := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	orphanRet := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0}, [][]*ir.Instruction{{ret}, {orphanCall, orphanRet}}, nil)
	an := mustAnalyze(t, m, boxGetters, Params{})

	assertPathAt(t, an, 0, ret, "p0")
	assertNoPathAt(t, an, 0, orphanRet)
	if got := an.FindAccessPathRegisters(orphanRet, NewParameterPath(0)); len(got) != 0 {
		t.Fatalf("Unexpected registers in an unreachable block: %v", got)
	}
	snap := an.BlockStateSnapshots()
	if len(snap[1].Entry) != 0 || len(snap[1].Exit) != 0 {
		t.Fatalf("Unreachable block should have empty snapshots, got %v", snap[1])
	}
}

func TestBlockStateSnapshots(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0}, [][]*ir.Instruction{{callA, mvA}, {ret}}, [][2]int{{0, 1}})
	an := mustAnalyze(t, m, boxGetters, Params{})

	snap := an.BlockStateSnapshots()
	if len(snap) != 2 {
		t.Fatalf("Expected a snapshot per block, computed: %d", len(snap))
	}
	if !snap[0].Entry[0].Equal(NewParameterPath(0)) {
		t.Fatalf("Unexpected entry state of the entry block: %v", snap[0].Entry)
	}
	if !snap[0].Exit[1].Equal(Extend(NewParameterPath(0), getA)) {
		t.Fatalf("Unexpected exit state of the entry block: %v", snap[0].Exit)
	}
	if !reflect.DeepEqual(snap[1].Entry, snap[0].Exit) {
		t.Fatalf("A sole successor should inherit its predecessor's exit state")
	}
}

// Re-running the analysis on the same method produces identical frozen states, including on
// graphs with a back edge into the entry block.
func TestAnalysisIsIdempotent(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	cond := ir.NewIfEqz(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0},
		[][]*ir.Instruction{{callA, mvA, cond}, {ret}},
		[][2]int{{0, 1}, {0, 0}})
	first := mustAnalyze(t, m, boxGetters, Params{})
	second := mustAnalyze(t, m, boxGetters, Params{})

	if !reflect.DeepEqual(first.BlockStateSnapshots(), second.BlockStateSnapshots()) {
		t.Fatalf("Two runs over the same method disagree")
	}
}

// With the iteration limit exhausted the engine abandons precision: every reachable block
// drops to all-Unknown entry bindings, except the parameters of an entry block no back edge
// targets, and exit states are recomputed to stay consistent.
func TestIterationValve(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	callNext := ir.NewInvoke(ir.OpInvokeVirtual, getNext, []ir.Reg{1})
	mvNext := ir.NewMoveResult(1)
	cond := ir.NewIfEqz(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0},
		[][]*ir.Instruction{{callA, mvA}, {callNext, mvNext, cond}, {ret}},
		[][2]int{{0, 1}, {1, 1}, {1, 2}})
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.ErrLevel)
	an := mustAnalyze(t, m, boxGetters, Params{MaxIterations: 1, Logger: config.NewLogGroup(cfg)})

	if an.Passes() != 1 {
		t.Fatalf("Expected the engine to stop after one pass, computed: %d", an.Passes())
	}
	assertPathAt(t, an, 0, callA, "p0")
	assertNoPathAt(t, an, 0, ret)
	snap := an.BlockStateSnapshots()
	if len(snap[1].Entry) != 0 || len(snap[2].Entry) != 0 {
		t.Fatalf("Expected all-Unknown entries after giving up, got %v and %v", snap[1].Entry, snap[2].Entry)
	}
	if !snap[0].Exit[1].Equal(Extend(NewParameterPath(0), getA)) {
		t.Fatalf("Exit states should stay consistent with entry states, got %v", snap[0].Exit)
	}
}

func TestNewAnalyzerErrors(t *testing.T) {
	if _, err := NewAnalyzer(nil, boxGetters, Params{}); err == nil {
		t.Fatalf("Expected an error for a nil method")
	}
	headless := &ir.Method{Ref: &ir.MethodRef{Class: "Lcom/app/Main;", Name: "run", Proto: "()V"}}
	if _, err := NewAnalyzer(headless, boxGetters, Params{}); err == nil {
		t.Fatalf("Expected an error for a method without a body")
	}
	empty := &ir.Method{Ref: headless.Ref, Graph: ir.NewGraph()}
	if _, err := NewAnalyzer(empty, boxGetters, Params{}); err == nil {
		t.Fatalf("Expected an error for an empty graph")
	}
}

func TestQueryForeignInstructionPanics(t *testing.T) {
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, ir.NewReturnVoid()), boxGetters, Params{})
	foreign := ir.NewReturnVoid()
	assertPanics(t, func() { an.AccessPathAt(0, foreign) })
	assertPanics(t, func() { an.FindAccessPathRegisters(foreign, NewParameterPath(0)) })
}

func TestShow(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	m := methodOf([]ir.Reg{0}, [][]*ir.Instruction{{callA, mvA}, {ret}}, [][2]int{{0, 1}})
	an := mustAnalyze(t, m, boxGetters, Params{})

	var buf bytes.Buffer
	an.Show(&buf)
	out := buf.String()
	for _, want := range []string{"Lcom/app/Main;.run:()V", "b0:", "b1:", "p0.getA()"} {
		if !strings.Contains(out, want) {
			t.Fatalf("Missing %q in dump:\n%s", want, out)
		}
	}
}

// Queries replay on private copies of the frozen states, so concurrent readers need no
// synchronization.
func TestConcurrentQueries(t *testing.T) {
	callA := ir.NewInvoke(ir.OpInvokeVirtual, getA, []ir.Reg{0})
	mvA := ir.NewMoveResult(1)
	ret := ir.NewReturnVoid()
	an := mustAnalyze(t, straightLineMethod([]ir.Reg{0}, callA, mvA, ret), boxGetters, Params{})
	pathA := Extend(NewParameterPath(0), getA)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if p, ok := an.AccessPathAt(1, ret); !ok || p.String() != "p0.getA()" {
					t.Errorf("Unexpected concurrent query result: %v", p)
					return
				}
				if regs := an.FindAccessPathRegisters(ret, pathA); len(regs) != 1 {
					t.Errorf("Unexpected concurrent alias result: %v", regs)
					return
				}
			}
		}()
	}
	wg.Wait()
}
