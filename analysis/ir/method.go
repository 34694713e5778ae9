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

// A Method is one analyzable method body: its reference, the registers holding the incoming
// parameters in declared order (for instance methods the receiver comes first), and the
// control-flow graph of the body.
type Method struct {
	Ref    *MethodRef
	Params []Reg
	Graph  *Graph
}

func (m *Method) String() string {
	if m == nil || m.Ref == nil {
		return "<method>"
	}
	return m.Ref.String()
}
