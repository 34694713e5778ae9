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

// Package subcomponents implements an intraprocedural analysis that discovers, for each
// register at each program point of one method body, the access path that produced its value:
// a chain of immutable getter calls rooted at a parameter, a local allocation or a final
// field. Registers bound to equal access paths at the same point hold structurally equal
// values, which callers exploit to deduplicate repeated getter chains without object identity
// or escape reasoning.
//
// The analysis runs a forward dataflow fixpoint over the method's control-flow graph during
// construction of the Analyzer. Queries then replay the transfer function inside a single
// block, so they never mutate shared state and may run concurrently.
package subcomponents

import (
	"fmt"
	"io"

	"github.com/awslabs/ar-dex-tools/analysis/config"
	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/internal/graphutil"
	"golang.org/x/tools/container/intsets"
)

// A GetterPredicate reports whether the referenced method is a side-effect-free getter on an
// immutable structure, so that successive calls on the same receiver return the same value.
// It must be a pure function of the reference; the analysis consults it once per call
// instruction per pass.
type GetterPredicate func(*ir.MethodRef) bool

// Params configures the analysis of one method. The zero value selects the defaults of the
// config package for every knob.
type Params struct {
	// MaxPathLength caps the number of chained getters a register may accumulate before its
	// binding degrades to Unknown. Non-positive selects config.DefaultMaxPathLength.
	MaxPathLength int
	// TrackLocals roots access paths at in-method allocations as well as parameters.
	TrackLocals bool
	// MaxIterations caps the number of passes of the fixpoint engine over the blocks before
	// it abandons precision. Non-positive selects config.DefaultMaxFixpointIters.
	MaxIterations int
	// Logger receives progress and warning messages. Nil selects a logger with default
	// settings.
	Logger *config.LogGroup
}

// A BlockStateSnapshot holds the frozen register bindings of one basic block at its entry and
// its exit.
type BlockStateSnapshot struct {
	Entry BindingSnapshot
	Exit  BindingSnapshot
}

// An Analyzer holds the converged per-block states of one method and answers access path
// queries about it. Construction runs the whole analysis eagerly; the result is immutable and
// safe for concurrent use.
type Analyzer struct {
	impl *analyzer
}

type analyzer struct {
	method      *ir.Method
	isGetter    GetterPredicate
	maxPathLen  int
	trackLocals bool

	// entryStates and exitStates are indexed by ir.BlockID. After run returns, every exit
	// state is the entry state threaded through the block's instructions, and no query
	// mutates either.
	entryStates []*bindingEnv
	exitStates  []*bindingEnv
	insnBlock   map[*ir.Instruction]*ir.Block
	widened     bool
	passes      int
}

// NewAnalyzer runs the analysis of method to convergence and returns the query interface.
// isGetter decides which invoked methods extend access paths; a nil predicate tracks only
// parameter, local and final-field roots. An error is returned when the method has no body to
// analyze.
func NewAnalyzer(method *ir.Method, isGetter GetterPredicate, params Params) (*Analyzer, error) {
	if method == nil {
		return nil, fmt.Errorf("no method to analyze")
	}
	if method.Graph == nil || method.Graph.Order() == 0 {
		return nil, fmt.Errorf("method %v has no body", method)
	}
	if params.MaxPathLength <= 0 {
		params.MaxPathLength = config.DefaultMaxPathLength
	}
	if params.MaxIterations <= 0 {
		params.MaxIterations = config.DefaultMaxFixpointIters
	}
	logger := params.Logger
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	a := &analyzer{
		method:      method,
		isGetter:    isGetter,
		maxPathLen:  params.MaxPathLength,
		trackLocals: params.TrackLocals,
	}
	a.run(logger, params.MaxIterations)
	return &Analyzer{impl: a}, nil
}

// parameterBindings returns the state at method entry: each declared parameter register bound
// to its empty parameter path, everything else Unknown.
func (a *analyzer) parameterBindings() *bindingEnv {
	env := topBindingEnv()
	for i, r := range a.method.Params {
		env.set(r, NewParameterPath(i))
	}
	return env
}

// run computes the per-block entry and exit states by iterating the transfer function until
// nothing changes. Blocks are visited in an order that follows the condensation of the graph,
// so acyclic regions settle in a single pass and only cycles need reiteration.
func (a *analyzer) run(logger *config.LogGroup, maxIterations int) {
	g := a.method.Graph
	blocks := graphutil.FixpointOrder(g)

	a.entryStates = make([]*bindingEnv, g.Order())
	a.exitStates = make([]*bindingEnv, g.Order())
	a.insnBlock = map[*ir.Instruction]*ir.Block{}
	// Change flags are a poor man's work list.
	changed := make([]bool, g.Order())
	for _, b := range g.Blocks() {
		a.entryStates[b.ID()] = newBindingEnv()
		a.exitStates[b.ID()] = newBindingEnv()
		for _, insn := range b.Instrs() {
			a.insnBlock[insn] = b
		}
	}
	entry := g.Entry()
	a.entryStates[entry.ID()] = a.parameterBindings()
	changed[entry.ID()] = true

	converged := false
	for a.passes = 0; a.passes < maxIterations; a.passes++ {
		iterationChanged := false
		for _, b := range blocks {
			i := b.ID()
			// Early out if the entry state is the same as the last time we looked.
			if !changed[i] {
				continue
			}
			iterationChanged = true
			changed[i] = false
			exit := a.entryStates[i].clone()
			for _, insn := range b.Instrs() {
				if applyTransfer(exit, insn, a.isGetter, a.maxPathLen, a.trackLocals) {
					a.widened = true
				}
			}
			a.exitStates[i] = exit
			for _, succ := range b.Succs() {
				if a.entryStates[succ.ID()].joinFrom(exit) {
					changed[succ.ID()] = true
				}
			}
		}
		if !iterationChanged {
			converged = true
			break
		}
	}

	if !converged {
		// Give up precision rather than iterate further: every reachable block drops to the
		// all-Unknown state, recomputing exits so the frozen pairs stay consistent. The entry
		// block keeps its parameter bindings when no back edge targets it.
		a.widened = true
		logger.Warnf("analysis of %v did not converge after %d passes, giving up precision", a.method, maxIterations)
		mem := map[*ir.Block]map[*ir.Block]bool{}
		for _, b := range g.Blocks() {
			if !ir.HasPathTo(entry, b, mem) {
				continue
			}
			if len(b.Preds()) > 0 {
				a.entryStates[b.ID()] = topBindingEnv()
			}
			exit := a.entryStates[b.ID()].clone()
			for _, insn := range b.Instrs() {
				applyTransfer(exit, insn, a.isGetter, a.maxPathLen, a.trackLocals)
			}
			a.exitStates[b.ID()] = exit
		}
		return
	}
	logger.Debugf("analysis of %v converged after %d passes", a.method, a.passes)
	if a.widened {
		logger.Debugf("getter chains in %v were truncated at length %d", a.method, a.maxPathLen)
	}
}

// block returns the containing block of insn. Passing an instruction from another method is a
// caller bug and panics.
func (a *analyzer) block(insn *ir.Instruction) *ir.Block {
	b, ok := a.insnBlock[insn]
	if !ok {
		panic(fmt.Sprintf("instruction %v is not part of method %v", insn, a.method))
	}
	return b
}

// stateBefore reconstructs the bindings in force when insn is about to execute, by replaying
// the transfer function across the block's instructions and stopping short of insn itself.
// Returns nil when the block is unreachable.
func (a *analyzer) stateBefore(insn *ir.Instruction) *bindingEnv {
	b := a.block(insn)
	entry := a.entryStates[b.ID()]
	if !entry.reachable {
		return nil
	}
	env := entry.clone()
	for _, cur := range b.Instrs() {
		if cur == insn {
			break
		}
		applyTransfer(env, cur, a.isGetter, a.maxPathLen, a.trackLocals)
	}
	return env
}

// Method returns the analyzed method.
func (an *Analyzer) Method() *ir.Method {
	return an.impl.method
}

// Passes returns the number of passes over the blocks the fixpoint engine performed before
// detecting convergence.
func (an *Analyzer) Passes() int {
	return an.impl.passes
}

// AccessPathAt returns the access path bound to reg immediately before insn executes. The
// boolean is false when the register has no known derivation at that point or the containing
// block is unreachable. insn must belong to the analyzed method.
func (an *Analyzer) AccessPathAt(reg ir.Reg, insn *ir.Instruction) (AccessPath, bool) {
	env := an.impl.stateBefore(insn)
	if env == nil {
		return nil, false
	}
	if p := env.get(reg); p.Kind() != KindUnknown {
		return p, true
	}
	return nil, false
}

// FindAccessPathRegisters returns every register bound to a path equal to path immediately
// before insn executes, in increasing register order. Registers with unknown derivations
// share nothing, so searching for Unknown or nil finds no registers. insn must belong to the
// analyzed method.
func (an *Analyzer) FindAccessPathRegisters(insn *ir.Instruction, path AccessPath) []ir.Reg {
	if path == nil || path.Kind() == KindUnknown {
		return nil
	}
	env := an.impl.stateBefore(insn)
	if env == nil {
		return nil
	}
	found := &intsets.Sparse{}
	for r, p := range env.bindings {
		// The result pseudo-register is not addressable by ordinary instructions.
		if r != ir.ResultRegister && p.Equal(path) {
			found.Insert(int(r))
		}
	}
	var regs []ir.Reg
	for _, r := range found.AppendTo(nil) {
		regs = append(regs, ir.Reg(r))
	}
	return regs
}

// BlockStateSnapshots returns the frozen entry and exit bindings of every block, keyed by
// block identifier. Unreachable blocks appear with empty snapshots.
func (an *Analyzer) BlockStateSnapshots() map[ir.BlockID]BlockStateSnapshot {
	a := an.impl
	out := make(map[ir.BlockID]BlockStateSnapshot, a.method.Graph.Order())
	for _, b := range a.method.Graph.Blocks() {
		out[b.ID()] = BlockStateSnapshot{
			Entry: a.entryStates[b.ID()].snapshot(),
			Exit:  a.exitStates[b.ID()].snapshot(),
		}
	}
	return out
}

// Show writes the per-block entry and exit bindings in block order.
func (an *Analyzer) Show(w io.Writer) {
	a := an.impl
	fmt.Fprintf(w, "%v\n", a.method)
	for _, b := range a.method.Graph.Blocks() {
		fmt.Fprintf(w, "  %v:\n", b)
		fmt.Fprintf(w, "    entry: %v\n", a.entryStates[b.ID()])
		fmt.Fprintf(w, "    exit:  %v\n", a.exitStates[b.ID()])
	}
}
