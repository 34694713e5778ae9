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

// Package graphutil adapts the ir control-flow graph to existing graph libraries and provides
// the graph algorithms the analyses need on top of them.
package graphutil

import (
	"sort"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"gonum.org/v1/gonum/graph"
)

// FlowGraph is an abstraction over a control-flow graph to work with existing graph libraries.
// It implements the methods to satisfy graph.Iterator and Gonum's graph.Directed.
type FlowGraph struct {
	// The order of the graph
	order int

	// The original control-flow graph the FlowGraph was constructed from
	Graph *ir.Graph

	// IDMap maps from node IDs to BlockNodes
	IDMap map[int64]BlockNode

	// Keys are all the node IDs, sorted in increasing order
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge from IDMap[x] to IDMap[y]
	Edges map[int64]map[int64]bool

	// RevEdges is the reverse adjacency matrix: RevEdges[y][x] iff Edges[x][y]
	RevEdges map[int64]map[int64]bool
}

// NewFlowIterator returns a new control-flow graph iterator where node ids correspond to the
// BlockID of each basic block.
func NewFlowIterator(g *ir.Graph) FlowGraph {
	n := g.Order()
	idmap := make(map[int64]BlockNode, n)
	edges := make(map[int64]map[int64]bool, n)
	redges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, 0, n)
	for _, block := range g.Blocks() {
		id := int64(block.ID())
		keys = append(keys, id)
		idmap[id] = BlockNode{block}
		if edges[id] == nil {
			edges[id] = map[int64]bool{}
		}
		if redges[id] == nil {
			redges[id] = map[int64]bool{}
		}
		for _, succ := range block.Succs() {
			sid := int64(succ.ID())
			edges[id][sid] = true
			if redges[sid] == nil {
				redges[sid] = map[int64]bool{}
			}
			redges[sid][id] = true
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return FlowGraph{
		order:    n,
		Graph:    g,
		IDMap:    idmap,
		Edges:    edges,
		RevEdges: redges,
		Keys:     keys,
	}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and Graph are the same as in the original, meaning that node indices stay consistent
// across subgraphs.
func Subgraph(original FlowGraph, include []int64) FlowGraph {
	idmap := make(map[int64]BlockNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	redges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
				if redges[e] == nil {
					redges[e] = map[int64]bool{}
				}
				redges[e][i] = true
			}
		}
	}

	return FlowGraph{
		order:    original.Order(),
		Graph:    original.Graph,
		IDMap:    idmap,
		Edges:    edges,
		RevEdges: redges,
		Keys:     keys,
	}
}

// Order implements the order of the graph.Iterator interface for the FlowGraph
func (c FlowGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the FlowGraph
func (c FlowGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Gonum Directed interface implementation **********************

// Node returns the node with the given ID, nil if it is not part of the graph
func (c FlowGraph) Node(id int64) graph.Node {
	if n, ok := c.IDMap[id]; ok {
		return n
	}
	return nil
}

// Nodes returns the set of nodes in the graph
func (c FlowGraph) Nodes() graph.Nodes {
	ids := make([]int64, len(c.Keys))
	copy(ids, c.Keys)
	return &NodeSet{nodes: c.IDMap, ids: ids}
}

// From returns the set of nodes reachable from the id through one edge
func (c FlowGraph) From(id int64) graph.Nodes {
	var ids []int64
	for out := range c.Edges[id] {
		ids = append(ids, out)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &NodeSet{nodes: c.IDMap, ids: ids}
}

// To returns the set of nodes that can reach the id through one edge
func (c FlowGraph) To(id int64) graph.Nodes {
	var ids []int64
	for in := range c.RevEdges[id] {
		ids = append(ids, in)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &NodeSet{nodes: c.IDMap, ids: ids}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers,
// regardless of direction
func (c FlowGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// HasEdgeFromTo returns a boolean indicating whether a directed edge exists from uid to vid
func (c FlowGraph) HasEdgeFromTo(uid, vid int64) bool {
	ue := c.Edges[uid]
	return ue != nil && ue[vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c FlowGraph) Edge(uid, vid int64) graph.Edge {
	if c.HasEdgeFromTo(uid, vid) {
		return FlowEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

// *************** Nodes implementation **********************

// BlockNode is a wrapper around an *ir.Block that implements the graph.Node interface
type BlockNode struct {
	Block *ir.Block
}

// ID returns the id of the node
func (n BlockNode) ID() int64 {
	return int64(n.Block.ID())
}

func (n BlockNode) String() string {
	if n.Block == nil {
		return ""
	}
	return n.Block.String()
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes.
// consumed counts the nodes already returned, so the current node is nodes[ids[consumed-1]].
type NodeSet struct {
	nodes    map[int64]BlockNode
	ids      []int64
	consumed int
}

// Next moves the iterator to the next node and returns true if one exists.
func (ns *NodeSet) Next() bool {
	if ns.consumed < len(ns.ids) {
		ns.consumed++
		return true
	}
	return false
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	return len(ns.ids) - ns.consumed
}

// Reset rewinds the iterator to before the first node
func (ns *NodeSet) Reset() {
	ns.consumed = 0
}

// Node returns the current node in the set, nil before the first call to Next
func (ns *NodeSet) Node() graph.Node {
	if ns.consumed == 0 || ns.consumed > len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.consumed-1]]
}

// *************** Edge implementation **********************

// FlowEdge implements the graph.Edge interface
type FlowEdge struct {
	from BlockNode
	to   BlockNode
}

// From returns the origin of the edge
func (e FlowEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e FlowEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e FlowEdge) ReversedEdge() graph.Edge {
	return FlowEdge{from: e.to, to: e.from}
}
