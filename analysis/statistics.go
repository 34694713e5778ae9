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

package analysis

import (
	"log"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/analysis/subcomponents"
)

type Result struct {
	NumberOfMethods         uint
	NumberOfNonemptyMethods uint
	NumberOfBlocks          uint
	NumberOfInstructions    uint
}

// MethodStatistics returns a Result with general statistics about the loaded method bodies.
func MethodStatistics(methods []*ir.Method) Result {

	result := Result{0, 0, 0, 0}

	for _, m := range methods {
		result.NumberOfMethods++

		if m.Graph != nil && m.Graph.Order() != 0 {
			result.NumberOfNonemptyMethods++
			for _, b := range m.Graph.Blocks() {
				result.NumberOfBlocks++
				result.NumberOfInstructions += uint(len(b.Instrs()))
			}
		}
	}

	return result
}

// GetterStats logs information about the invoke sites matching the getter predicate in each method.
// It is meant to help calibrate an immutability configuration against a corpus of method bodies.
func GetterStats(log *log.Logger, methods []*ir.Method, isGetter subcomponents.GetterPredicate) {
	num := 0
	sumInvokes := 0
	sumGetters := 0
	for _, m := range methods {
		if m.Graph == nil {
			continue
		}
		invokes := 0
		getters := 0

		for _, b := range m.Graph.Blocks() {
			for _, i := range b.Instrs() {
				if !i.Op().IsInvoke() {
					continue
				}
				invokes++
				if isGetter != nil && isGetter(i.Method()) {
					getters++
				}
			}
		}
		if getters > 0 {
			log.Printf("%v has %d getter calls out of %d invokes\n", m.Ref, getters, invokes)
			num++
		}
		sumInvokes += invokes
		sumGetters += getters
	}
	log.Printf("%d methods had getter calls\n", num)
	log.Printf("%d total invokes, %d matched the getter predicate\n", sumInvokes, sumGetters)
}
