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

// An InstrOp must implement methods for ALL instruction families. The four invoke kinds dispatch
// to DoInvoke and the two const kinds to DoConst, since they only differ in encoding.
type InstrOp interface {
	DoNop(*Instruction)
	DoConst(*Instruction)
	DoMove(*Instruction)
	DoMoveResult(*Instruction)
	DoNewInstance(*Instruction)
	DoInvoke(*Instruction)
	DoIGet(*Instruction)
	DoIPut(*Instruction)
	DoSGet(*Instruction)
	DoSPut(*Instruction)
	DoBinOp(*Instruction)
	DoIf(*Instruction)
	DoGoto(*Instruction)
	DoReturn(*Instruction)
}

// OpSwitch is mainly a map from the different instructions to the methods of the visitor.
func OpSwitch(visitor InstrOp, instr *Instruction) {
	switch instr.Op() {
	case OpNop:
		visitor.DoNop(instr)
	case OpConst, OpConstString:
		visitor.DoConst(instr)
	case OpMove:
		visitor.DoMove(instr)
	case OpMoveResult:
		visitor.DoMoveResult(instr)
	case OpNewInstance:
		visitor.DoNewInstance(instr)
	case OpInvokeVirtual, OpInvokeInterface, OpInvokeDirect, OpInvokeStatic:
		visitor.DoInvoke(instr)
	case OpIGet:
		visitor.DoIGet(instr)
	case OpIPut:
		visitor.DoIPut(instr)
	case OpSGet:
		visitor.DoSGet(instr)
	case OpSPut:
		visitor.DoSPut(instr)
	case OpAddInt:
		visitor.DoBinOp(instr)
	case OpIfEqz:
		visitor.DoIf(instr)
	case OpGoto:
		visitor.DoGoto(instr)
	case OpReturnVoid, OpReturn:
		visitor.DoReturn(instr)
	default:
		panic(instr)
	}
}
