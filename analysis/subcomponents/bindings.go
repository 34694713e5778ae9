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
	"strings"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/internal/funcutil"
)

// A BindingSnapshot is a copy of the concrete register bindings at a program point. Registers
// absent from the map had no known access path at that point.
type BindingSnapshot map[ir.Reg]AccessPath

func (s BindingSnapshot) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, r := range funcutil.SortedKeys(s) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.String())
		sb.WriteString(" -> ")
		sb.WriteString(s[r].String())
	}
	sb.WriteString("}")
	return sb.String()
}

// A bindingEnv maps registers to their access paths at one program point. Only concrete paths
// are stored; a register missing from the map is bound to Unknown. The zero reachable flag is
// the bottom element: the state of a point no execution has reached yet. Joining anything into
// bottom adopts it, so unreachable predecessors never erode information.
type bindingEnv struct {
	bindings  map[ir.Reg]AccessPath
	reachable bool
}

// newBindingEnv returns the bottom environment.
func newBindingEnv() *bindingEnv {
	return &bindingEnv{}
}

// topBindingEnv returns a reachable environment with every register bound to Unknown.
func topBindingEnv() *bindingEnv {
	return &bindingEnv{bindings: map[ir.Reg]AccessPath{}, reachable: true}
}

// get returns the binding of r, or Unknown if the register has none.
func (e *bindingEnv) get(r ir.Reg) AccessPath {
	if p, ok := e.bindings[r]; ok {
		return p
	}
	return Unknown
}

// set binds r to p. Binding a register to Unknown removes it from the map, keeping absence as
// the single representation of an unknown register.
func (e *bindingEnv) set(r ir.Reg, p AccessPath) {
	if p.Kind() == KindUnknown {
		delete(e.bindings, r)
		return
	}
	e.bindings[r] = p
}

// clone returns a copy that shares no binding storage with e. Paths themselves are immutable
// and are shared.
func (e *bindingEnv) clone() *bindingEnv {
	c := &bindingEnv{reachable: e.reachable}
	if e.bindings != nil {
		c.bindings = make(map[ir.Reg]AccessPath, len(e.bindings))
		for r, p := range e.bindings {
			c.bindings[r] = p
		}
	}
	return c
}

// equal returns true when the two environments bind exactly the same registers to equal paths
// and agree on reachability.
func (e *bindingEnv) equal(other *bindingEnv) bool {
	if e.reachable != other.reachable || len(e.bindings) != len(other.bindings) {
		return false
	}
	for r, p := range e.bindings {
		q, ok := other.bindings[r]
		if !ok || !p.Equal(q) {
			return false
		}
	}
	return true
}

// joinFrom merges the state flowing in from a predecessor into e and reports whether e changed.
// A register survives the join only if both sides bind it to the same path; any disagreement,
// or absence on either side, drops it to Unknown. Joining from bottom is a no-op and joining
// into bottom adopts the incoming state.
func (e *bindingEnv) joinFrom(incoming *bindingEnv) bool {
	if !incoming.reachable {
		return false
	}
	if !e.reachable {
		e.reachable = true
		e.bindings = make(map[ir.Reg]AccessPath, len(incoming.bindings))
		for r, p := range incoming.bindings {
			e.bindings[r] = p
		}
		return true
	}
	changed := false
	for r, p := range e.bindings {
		q, ok := incoming.bindings[r]
		if !ok || !p.Equal(q) {
			delete(e.bindings, r)
			changed = true
		}
	}
	return changed
}

// snapshot returns a copy of the concrete bindings that the caller may keep.
func (e *bindingEnv) snapshot() BindingSnapshot {
	s := make(BindingSnapshot, len(e.bindings))
	for r, p := range e.bindings {
		s[r] = p
	}
	return s
}

func (e *bindingEnv) String() string {
	if !e.reachable {
		return "unreachable"
	}
	return BindingSnapshot(e.bindings).String()
}
