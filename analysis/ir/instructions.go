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

// Package ir provides a register-based intermediate representation of dex method bodies: instructions over
// virtual registers, method and field references, and the control-flow graph of basic blocks that analyses
// operate on. It also provides an interface to implement visitors for instructions.
package ir

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// A Reg is a virtual register number.
type Reg uint32

// ResultRegister is the pseudo-register that holds the result of the most recent invoke instruction.
// A move-result instruction copies out of it. It is never a valid destination or source register number
// for ordinary instructions.
const ResultRegister Reg = ^Reg(0)

func (r Reg) String() string {
	if r == ResultRegister {
		return "res"
	}
	return fmt.Sprintf("v%d", uint32(r))
}

// An Opcode identifies the operation performed by an instruction.
type Opcode int

const (
	OpNop Opcode = iota
	OpConst
	OpConstString
	OpMove
	OpMoveResult
	OpNewInstance
	OpInvokeVirtual
	OpInvokeInterface
	OpInvokeDirect
	OpInvokeStatic
	OpIGet
	OpIPut
	OpSGet
	OpSPut
	OpAddInt
	OpIfEqz
	OpGoto
	OpReturnVoid
	OpReturn
)

// opInfo records the static properties of each opcode.
// hasDest: the instruction writes an ordinary destination register.
// writesResult: the instruction writes the result pseudo-register instead of a destination.
var opInfo = [...]struct {
	name         string
	hasDest      bool
	writesResult bool
}{
	OpNop:             {"nop", false, false},
	OpConst:           {"const", true, false},
	OpConstString:     {"const-string", true, false},
	OpMove:            {"move", true, false},
	OpMoveResult:      {"move-result", true, false},
	OpNewInstance:     {"new-instance", true, false},
	OpInvokeVirtual:   {"invoke-virtual", false, true},
	OpInvokeInterface: {"invoke-interface", false, true},
	OpInvokeDirect:    {"invoke-direct", false, true},
	OpInvokeStatic:    {"invoke-static", false, true},
	OpIGet:            {"iget", true, false},
	OpIPut:            {"iput", false, false},
	OpSGet:            {"sget", true, false},
	OpSPut:            {"sput", false, false},
	OpAddInt:          {"add-int", true, false},
	OpIfEqz:           {"if-eqz", false, false},
	OpGoto:            {"goto", false, false},
	OpReturnVoid:      {"return-void", false, false},
	OpReturn:          {"return", false, false},
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opInfo) {
		return fmt.Sprintf("opcode(%d)", int(op))
	}
	return opInfo[op].name
}

// IsInvoke returns true for the invoke opcode family.
func (op Opcode) IsInvoke() bool {
	switch op {
	case OpInvokeVirtual, OpInvokeInterface, OpInvokeDirect, OpInvokeStatic:
		return true
	default:
		return false
	}
}

// An Instruction is one register-machine operation. Instructions are built through the New* constructors,
// which check the shape required by the opcode; a malformed construction is a bug in the caller and panics.
// Instances are immutable after construction and are identified by pointer in analysis results.
type Instruction struct {
	op     Opcode
	srcs   []Reg
	dest   Reg
	hasDst bool
	method *MethodRef
	field  *FieldRef
	lit    int64
	str    string
}

// NewNop returns a nop instruction.
func NewNop() *Instruction {
	return &Instruction{op: OpNop}
}

// NewConst returns an instruction loading the literal lit into dest.
func NewConst(dest Reg, lit int64) *Instruction {
	return &Instruction{op: OpConst, dest: dest, hasDst: true, lit: lit}
}

// NewConstString returns an instruction loading the string constant s into dest.
func NewConstString(dest Reg, s string) *Instruction {
	return &Instruction{op: OpConstString, dest: dest, hasDst: true, str: s}
}

// NewMove returns a register-to-register copy.
func NewMove(dest Reg, src Reg) *Instruction {
	return &Instruction{op: OpMove, dest: dest, hasDst: true, srcs: []Reg{src}}
}

// NewMoveResult returns an instruction copying the result pseudo-register into dest.
func NewMoveResult(dest Reg) *Instruction {
	return &Instruction{op: OpMoveResult, dest: dest, hasDst: true}
}

// NewNewInstance returns an instruction allocating an instance of the type descriptor typ into dest.
func NewNewInstance(dest Reg, typ string) *Instruction {
	if typ == "" {
		panic("new-instance requires a type descriptor")
	}
	return &Instruction{op: OpNewInstance, dest: dest, hasDst: true, str: typ}
}

// NewInvoke returns an invoke instruction of the given kind. For instance kinds the receiver is args[0].
// The result, if any, lands in the result pseudo-register until a move-result copies it out.
func NewInvoke(kind Opcode, method *MethodRef, args []Reg) *Instruction {
	if !kind.IsInvoke() {
		panic(fmt.Sprintf("%v is not an invoke opcode", kind))
	}
	if method == nil {
		panic(fmt.Sprintf("%v requires a method reference", kind))
	}
	return &Instruction{op: kind, srcs: args, method: method}
}

// NewIGet returns an instance field read: dest receives the value of field on the object in obj.
func NewIGet(dest Reg, obj Reg, field *FieldRef) *Instruction {
	if field == nil {
		panic("iget requires a field reference")
	}
	return &Instruction{op: OpIGet, dest: dest, hasDst: true, srcs: []Reg{obj}, field: field}
}

// NewIPut returns an instance field write: the value in src is stored into field on the object in obj.
func NewIPut(src Reg, obj Reg, field *FieldRef) *Instruction {
	if field == nil {
		panic("iput requires a field reference")
	}
	return &Instruction{op: OpIPut, srcs: []Reg{src, obj}, field: field}
}

// NewSGet returns a static field read into dest. The field reference must be static.
func NewSGet(dest Reg, field *FieldRef) *Instruction {
	if field == nil {
		panic("sget requires a field reference")
	}
	if !field.IsStatic() {
		panic(fmt.Sprintf("sget on non-static field %v", field))
	}
	return &Instruction{op: OpSGet, dest: dest, hasDst: true, field: field}
}

// NewSPut returns a static field write of the value in src. The field reference must be static.
func NewSPut(src Reg, field *FieldRef) *Instruction {
	if field == nil {
		panic("sput requires a field reference")
	}
	if !field.IsStatic() {
		panic(fmt.Sprintf("sput on non-static field %v", field))
	}
	return &Instruction{op: OpSPut, srcs: []Reg{src}, field: field}
}

// NewAddInt returns an integer addition of registers a and b into dest.
func NewAddInt(dest Reg, a Reg, b Reg) *Instruction {
	return &Instruction{op: OpAddInt, dest: dest, hasDst: true, srcs: []Reg{a, b}}
}

// NewIfEqz returns a conditional branch on src. Branch targets are edges of the containing block.
func NewIfEqz(src Reg) *Instruction {
	return &Instruction{op: OpIfEqz, srcs: []Reg{src}}
}

// NewGoto returns an unconditional branch. The target is the single successor of the containing block.
func NewGoto() *Instruction {
	return &Instruction{op: OpGoto}
}

// NewReturnVoid returns a return instruction with no value.
func NewReturnVoid() *Instruction {
	return &Instruction{op: OpReturnVoid}
}

// NewReturn returns a return instruction for the value in src.
func NewReturn(src Reg) *Instruction {
	return &Instruction{op: OpReturn, srcs: []Reg{src}}
}

// Op returns the instruction's opcode.
func (insn *Instruction) Op() Opcode {
	return insn.op
}

// Srcs returns the source registers of the instruction, in operand order. The result pseudo-register
// is never listed; a move-result reads it implicitly.
func (insn *Instruction) Srcs() []Reg {
	return insn.srcs
}

// Src returns the i-th source register.
func (insn *Instruction) Src(i int) Reg {
	return insn.srcs[i]
}

// HasDest returns true if the instruction writes a destination register.
func (insn *Instruction) HasDest() bool {
	return insn.hasDst
}

// Dest returns the destination register. Calling Dest on an instruction without one is a caller bug.
func (insn *Instruction) Dest() Reg {
	if !insn.hasDst {
		panic(fmt.Sprintf("instruction %v has no destination register", insn))
	}
	return insn.dest
}

// WritesResult returns true if the instruction writes the result pseudo-register.
func (insn *Instruction) WritesResult() bool {
	return opInfo[insn.op].writesResult
}

// Method returns the method reference of an invoke instruction. Calling Method on any other
// instruction is a caller bug.
func (insn *Instruction) Method() *MethodRef {
	if insn.method == nil {
		panic(fmt.Sprintf("instruction %v has no method reference", insn))
	}
	return insn.method
}

// Field returns the field reference of a field access instruction. Calling Field on any other
// instruction is a caller bug.
func (insn *Instruction) Field() *FieldRef {
	if insn.field == nil {
		panic(fmt.Sprintf("instruction %v has no field reference", insn))
	}
	return insn.field
}

// Literal returns the integer literal of a const instruction.
func (insn *Instruction) Literal() int64 {
	return insn.lit
}

// TypeDescriptor returns the type descriptor of a new-instance instruction.
func (insn *Instruction) TypeDescriptor() string {
	return insn.str
}

// StringLit returns the string constant of a const-string instruction.
func (insn *Instruction) StringLit() string {
	return insn.str
}

// Equal returns true when the two instructions perform the same operation on the same operands.
// References are compared by value. Pointer identity still distinguishes occurrences in a method body.
func (insn *Instruction) Equal(other *Instruction) bool {
	if insn == nil || other == nil {
		return insn == other
	}
	if insn.op != other.op || insn.hasDst != other.hasDst || insn.lit != other.lit || insn.str != other.str {
		return false
	}
	if insn.hasDst && insn.dest != other.dest {
		return false
	}
	if len(insn.srcs) != len(other.srcs) {
		return false
	}
	for i, s := range insn.srcs {
		if s != other.srcs[i] {
			return false
		}
	}
	if (insn.method == nil) != (other.method == nil) || (insn.method != nil && !insn.method.Equal(other.method)) {
		return false
	}
	if (insn.field == nil) != (other.field == nil) || (insn.field != nil && !insn.field.Equal(other.field)) {
		return false
	}
	return true
}

// Hash returns a structural hash consistent with Equal.
func (insn *Instruction) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	mix := func(x uint64) {
		binary.LittleEndian.PutUint64(buf[:], x)
		h.Write(buf[:])
	}
	mix(uint64(insn.op))
	for _, s := range insn.srcs {
		mix(uint64(s))
	}
	if insn.hasDst {
		mix(uint64(insn.dest))
	}
	mix(uint64(insn.lit))
	h.Write([]byte(insn.str))
	if insn.method != nil {
		h.Write([]byte(insn.method.String()))
	}
	if insn.field != nil {
		h.Write([]byte(insn.field.String()))
	}
	return h.Sum64()
}

func (insn *Instruction) String() string {
	switch insn.op {
	case OpNop, OpGoto, OpReturnVoid:
		return insn.op.String()
	case OpConst:
		return fmt.Sprintf("%v %v, #%d", insn.op, insn.dest, insn.lit)
	case OpConstString:
		return fmt.Sprintf("%v %v, %q", insn.op, insn.dest, insn.str)
	case OpMove:
		return fmt.Sprintf("%v %v, %v", insn.op, insn.dest, insn.srcs[0])
	case OpMoveResult:
		return fmt.Sprintf("%v %v", insn.op, insn.dest)
	case OpNewInstance:
		return fmt.Sprintf("%v %v, %s", insn.op, insn.dest, insn.str)
	case OpInvokeVirtual, OpInvokeInterface, OpInvokeDirect, OpInvokeStatic:
		args := make([]string, len(insn.srcs))
		for i, s := range insn.srcs {
			args[i] = s.String()
		}
		return fmt.Sprintf("%v {%s}, %v", insn.op, strings.Join(args, ", "), insn.method)
	case OpIGet:
		return fmt.Sprintf("%v %v, %v, %v", insn.op, insn.dest, insn.srcs[0], insn.field)
	case OpIPut:
		return fmt.Sprintf("%v %v, %v, %v", insn.op, insn.srcs[0], insn.srcs[1], insn.field)
	case OpSGet:
		return fmt.Sprintf("%v %v, %v", insn.op, insn.dest, insn.field)
	case OpSPut:
		return fmt.Sprintf("%v %v, %v", insn.op, insn.srcs[0], insn.field)
	case OpAddInt:
		return fmt.Sprintf("%v %v, %v, %v", insn.op, insn.dest, insn.srcs[0], insn.srcs[1])
	case OpIfEqz, OpReturn:
		return fmt.Sprintf("%v %v", insn.op, insn.srcs[0])
	default:
		return insn.op.String()
	}
}
