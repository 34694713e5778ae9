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

package ir

import "fmt"

// A BlockID is the stable identifier of a basic block within its graph. Identifiers are dense,
// starting at 0 for the entry block, so analyses can index per-block state by slice.
type BlockID uint32

// A Block is a basic block: an ordered sequence of instructions with predecessor and successor edges.
type Block struct {
	graph  *Graph
	id     BlockID
	instrs []*Instruction
	preds  []*Block
	succs  []*Block
}

// ID returns the block's stable identifier.
func (b *Block) ID() BlockID {
	return b.id
}

// Instrs returns the block's instructions in program order.
func (b *Block) Instrs() []*Instruction {
	return b.instrs
}

// Preds returns the block's predecessors in edge insertion order.
func (b *Block) Preds() []*Block {
	return b.preds
}

// Succs returns the block's successors in edge insertion order.
func (b *Block) Succs() []*Block {
	return b.succs
}

// Append adds instructions at the end of the block.
func (b *Block) Append(instrs ...*Instruction) {
	for _, insn := range instrs {
		if insn == nil {
			panic(fmt.Sprintf("nil instruction appended to block %d", b.id))
		}
	}
	b.instrs = append(b.instrs, instrs...)
}

func (b *Block) String() string {
	return fmt.Sprintf("b%d", b.id)
}

// A Graph is the control-flow graph of one method body. The first block created is the entry block.
type Graph struct {
	blocks []*Block
}

// NewGraph returns an empty control-flow graph.
func NewGraph() *Graph {
	return &Graph{}
}

// NewBlock creates a new block in the graph and returns it. The first block created is the entry block.
func (g *Graph) NewBlock() *Block {
	b := &Block{graph: g, id: BlockID(len(g.blocks))}
	g.blocks = append(g.blocks, b)
	return b
}

// AddEdge adds a control-flow edge from one block to another. Both blocks must belong to this graph.
func (g *Graph) AddEdge(from *Block, to *Block) {
	if from == nil || to == nil || from.graph != g || to.graph != g {
		panic("edge endpoints must be blocks of this graph")
	}
	from.succs = append(from.succs, to)
	to.preds = append(to.preds, from)
}

// Blocks returns all blocks in creation order, indexed by their BlockID.
func (g *Graph) Blocks() []*Block {
	return g.blocks
}

// Entry returns the entry block, or nil for an empty graph.
func (g *Graph) Entry() *Block {
	if len(g.blocks) == 0 {
		return nil
	}
	return g.blocks[0]
}

// Order returns the number of blocks in the graph.
func (g *Graph) Order() int {
	return len(g.blocks)
}

// HasPathTo returns true if there is a control-flow path from b1 to b2. Use mem to amortize cost. If mem is nil,
// then the algorithm runs without memoization, and no map is allocated.
func HasPathTo(b1 *Block, b2 *Block, mem map[*Block]map[*Block]bool) bool {
	if mem != nil {
		if _, ok := mem[b1]; !ok {
			mem[b1] = map[*Block]bool{}
		}
		if val, ok := mem[b1][b2]; ok {
			return val
		}
	}
	vis := map[*Block]bool{}
	que := []*Block{b1}
	for len(que) > 0 {
		cur := que[0]
		if cur == b2 {
			if mem != nil {
				mem[b1][b2] = true
			}
			return true
		}
		if mem != nil && mem[cur] != nil && mem[cur][b2] {
			mem[b1][b2] = true
			return true
		}
		vis[cur] = true
		que = que[1:]
		for _, nb := range cur.succs {
			if !vis[nb] {
				que = append(que, nb)
			}
		}
	}
	if mem != nil {
		mem[b1][b2] = false
	}
	return false
}

// LastInstr returns the last instruction in a block. Returns nil for an empty block
// (a block can be empty if it is non-reachable).
func LastInstr(block *Block) *Instruction {
	if len(block.instrs) == 0 {
		return nil
	}
	return block.instrs[len(block.instrs)-1]
}

// FirstInstr returns the first instruction in a block. Returns nil for an empty block
// (a block can be empty if it is non-reachable).
func FirstInstr(block *Block) *Instruction {
	if len(block.instrs) == 0 {
		return nil
	}
	return block.instrs[0]
}
