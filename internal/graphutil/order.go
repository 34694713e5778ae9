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

package graphutil

import (
	"sort"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/internal/funcutil"
	"github.com/yourbasic/graph"
)

// FixpointOrder returns the blocks of g in an order suited to forward dataflow iteration:
// strongly connected components in topological order, block ids increasing within each
// component. Iterating passes in this order propagates states along forward edges within a
// single pass, so acyclic graphs converge in one pass and loops only rerun their own
// component.
func FixpointOrder(g *ir.Graph) []*ir.Block {
	fg := NewFlowIterator(g)
	components := graph.StrongComponents(fg)
	// Tarjan emits components in reverse topological order.
	funcutil.Reverse(components)
	order := make([]*ir.Block, 0, g.Order())
	for _, component := range components {
		sort.Ints(component)
		for _, v := range component {
			order = append(order, fg.IDMap[int64(v)].Block)
		}
	}
	return order
}
