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

import (
	"testing"
)

func assertPanics(t *testing.T, msg string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic: %s", msg)
		}
	}()
	f()
}

func TestParseMethodRef(t *testing.T) {
	m, err := ParseMethodRef("Lcom/app/A;.getB:()Lcom/app/B;")
	if err != nil {
		t.Fatalf("failed to parse method ref: %v", err)
	}
	if m.Class != "Lcom/app/A;" || m.Name != "getB" || m.Proto != "()Lcom/app/B;" {
		t.Errorf("unexpected parse result: %+v", m)
	}
	if m.String() != "Lcom/app/A;.getB:()Lcom/app/B;" {
		t.Errorf("String should render the dex notation, got %q", m.String())
	}
	for _, bad := range []string{
		"",
		"Lcom/app/A;getB:()V",
		"com/app/A.getB:()V",
		"Lcom/app/A;.getB()V",
		"Lcom/app/A;.getB:V",
		"Lcom/app/A;.:()V",
	} {
		if _, err := ParseMethodRef(bad); err == nil {
			t.Errorf("expected an error parsing %q", bad)
		}
	}
}

func TestParseFieldRef(t *testing.T) {
	f, err := ParseFieldRef("Lcom/app/A;.count:I")
	if err != nil {
		t.Fatalf("failed to parse field ref: %v", err)
	}
	if f.Class != "Lcom/app/A;" || f.Name != "count" || f.Type != "I" {
		t.Errorf("unexpected parse result: %+v", f)
	}
	if f.IsFinal() || f.IsStatic() {
		t.Errorf("parsed refs should carry no access flags")
	}
	f.Flags = AccStatic | AccFinal
	if !f.IsFinal() || !f.IsStatic() {
		t.Errorf("flags should report static and final")
	}
	if _, err := ParseFieldRef("Lcom/app/A;.count"); err == nil {
		t.Errorf("expected an error for a field ref without a type")
	}
}

func TestRefEqualIgnoresFlags(t *testing.T) {
	a := &FieldRef{Class: "LA;", Name: "f", Type: "I", Flags: AccFinal}
	b := &FieldRef{Class: "LA;", Name: "f", Type: "I"}
	if !a.Equal(b) {
		t.Errorf("field identity should not depend on access flags")
	}
	c := &FieldRef{Class: "LA;", Name: "g", Type: "I"}
	if a.Equal(c) {
		t.Errorf("fields with different names should not be equal")
	}
}

func TestInstructionString(t *testing.T) {
	getB := &MethodRef{Class: "Lcom/app/A;", Name: "getB", Proto: "()Lcom/app/B;"}
	count := &FieldRef{Class: "Lcom/app/A;", Name: "count", Type: "I", Flags: AccFinal}
	instance := &FieldRef{Class: "Lcom/app/A;", Name: "INSTANCE", Type: "Lcom/app/A;", Flags: AccStatic | AccFinal}
	cases := []struct {
		insn *Instruction
		want string
	}{
		{NewNop(), "nop"},
		{NewConst(1, 42), "const v1, #42"},
		{NewConstString(1, "hi"), `const-string v1, "hi"`},
		{NewMove(2, 1), "move v2, v1"},
		{NewMoveResult(3), "move-result v3"},
		{NewNewInstance(0, "Lcom/app/A;"), "new-instance v0, Lcom/app/A;"},
		{NewInvoke(OpInvokeVirtual, getB, []Reg{1}), "invoke-virtual {v1}, Lcom/app/A;.getB:()Lcom/app/B;"},
		{NewIGet(3, 1, count), "iget v3, v1, Lcom/app/A;.count:I"},
		{NewIPut(3, 1, count), "iput v3, v1, Lcom/app/A;.count:I"},
		{NewSGet(3, instance), "sget v3, Lcom/app/A;.INSTANCE:Lcom/app/A;"},
		{NewSPut(3, instance), "sput v3, Lcom/app/A;.INSTANCE:Lcom/app/A;"},
		{NewAddInt(3, 1, 2), "add-int v3, v1, v2"},
		{NewIfEqz(1), "if-eqz v1"},
		{NewGoto(), "goto"},
		{NewReturnVoid(), "return-void"},
		{NewReturn(1), "return v1"},
	}
	for _, c := range cases {
		if got := c.insn.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestInstructionEqualHash(t *testing.T) {
	getB := &MethodRef{Class: "Lcom/app/A;", Name: "getB", Proto: "()Lcom/app/B;"}
	getB2 := &MethodRef{Class: "Lcom/app/A;", Name: "getB", Proto: "()Lcom/app/B;"}
	a := NewInvoke(OpInvokeVirtual, getB, []Reg{1})
	b := NewInvoke(OpInvokeVirtual, getB2, []Reg{1})
	if !a.Equal(b) {
		t.Errorf("structurally identical invokes should be equal")
	}
	if a.Hash() != b.Hash() {
		t.Errorf("equal instructions must hash equal")
	}
	c := NewInvoke(OpInvokeVirtual, getB, []Reg{2})
	if a.Equal(c) {
		t.Errorf("invokes with different argument registers should not be equal")
	}
	d := NewInvoke(OpInvokeStatic, getB, []Reg{1})
	if a.Equal(d) {
		t.Errorf("invokes of different kinds should not be equal")
	}
	if !NewMove(2, 1).Equal(NewMove(2, 1)) {
		t.Errorf("identical moves should be equal")
	}
	if NewMove(2, 1).Equal(NewMove(1, 2)) {
		t.Errorf("moves with swapped registers should not be equal")
	}
	if NewConst(1, 3).Equal(NewConst(1, 4)) {
		t.Errorf("consts with different literals should not be equal")
	}
}

func TestConstructorContracts(t *testing.T) {
	getB := &MethodRef{Class: "LA;", Name: "getB", Proto: "()LB;"}
	member := &FieldRef{Class: "LA;", Name: "f", Type: "I"}
	assertPanics(t, "invoke with a non-invoke opcode", func() { NewInvoke(OpMove, getB, []Reg{1}) })
	assertPanics(t, "invoke without a method reference", func() { NewInvoke(OpInvokeVirtual, nil, []Reg{1}) })
	assertPanics(t, "iget without a field reference", func() { NewIGet(1, 2, nil) })
	assertPanics(t, "sget on a non-static field", func() { NewSGet(1, member) })
	assertPanics(t, "sput on a non-static field", func() { NewSPut(1, member) })
	assertPanics(t, "new-instance without a type", func() { NewNewInstance(1, "") })
	assertPanics(t, "Dest on a dest-less instruction", func() { NewGoto().Dest() })
	assertPanics(t, "Method on a non-invoke", func() { NewMove(1, 2).Method() })
	assertPanics(t, "Field on a non-field access", func() { NewMove(1, 2).Field() })
}

// opRecorder records visited instruction families to check OpSwitch dispatch.
type opRecorder struct {
	got []string
}

func (r *opRecorder) DoNop(*Instruction)         { r.got = append(r.got, "nop") }
func (r *opRecorder) DoConst(*Instruction)       { r.got = append(r.got, "const") }
func (r *opRecorder) DoMove(*Instruction)        { r.got = append(r.got, "move") }
func (r *opRecorder) DoMoveResult(*Instruction)  { r.got = append(r.got, "move-result") }
func (r *opRecorder) DoNewInstance(*Instruction) { r.got = append(r.got, "new-instance") }
func (r *opRecorder) DoInvoke(*Instruction)      { r.got = append(r.got, "invoke") }
func (r *opRecorder) DoIGet(*Instruction)        { r.got = append(r.got, "iget") }
func (r *opRecorder) DoIPut(*Instruction)        { r.got = append(r.got, "iput") }
func (r *opRecorder) DoSGet(*Instruction)        { r.got = append(r.got, "sget") }
func (r *opRecorder) DoSPut(*Instruction)        { r.got = append(r.got, "sput") }
func (r *opRecorder) DoBinOp(*Instruction)       { r.got = append(r.got, "binop") }
func (r *opRecorder) DoIf(*Instruction)          { r.got = append(r.got, "if") }
func (r *opRecorder) DoGoto(*Instruction)        { r.got = append(r.got, "goto") }
func (r *opRecorder) DoReturn(*Instruction)      { r.got = append(r.got, "return") }

func TestOpSwitchDispatch(t *testing.T) {
	getB := &MethodRef{Class: "LA;", Name: "getB", Proto: "()LB;"}
	field := &FieldRef{Class: "LA;", Name: "f", Type: "I"}
	global := &FieldRef{Class: "LA;", Name: "F", Type: "I", Flags: AccStatic}
	instrs := []*Instruction{
		NewNop(),
		NewConst(1, 0),
		NewConstString(1, "s"),
		NewMove(2, 1),
		NewMoveResult(3),
		NewNewInstance(0, "LA;"),
		NewInvoke(OpInvokeVirtual, getB, []Reg{1}),
		NewInvoke(OpInvokeStatic, getB, nil),
		NewIGet(3, 1, field),
		NewIPut(3, 1, field),
		NewSGet(3, global),
		NewSPut(3, global),
		NewAddInt(3, 1, 2),
		NewIfEqz(1),
		NewGoto(),
		NewReturnVoid(),
		NewReturn(1),
	}
	r := &opRecorder{}
	for _, insn := range instrs {
		OpSwitch(r, insn)
	}
	want := []string{"nop", "const", "const", "move", "move-result", "new-instance", "invoke", "invoke",
		"iget", "iput", "sget", "sput", "binop", "if", "goto", "return", "return"}
	if len(r.got) != len(want) {
		t.Fatalf("visited %d instructions, want %d", len(r.got), len(want))
	}
	for i := range want {
		if r.got[i] != want[i] {
			t.Errorf("dispatch %d: got %q, want %q", i, r.got[i], want[i])
		}
	}
}

func TestResultRegisterString(t *testing.T) {
	if ResultRegister.String() != "res" {
		t.Errorf("result pseudo-register should render as res, got %q", ResultRegister.String())
	}
	if Reg(7).String() != "v7" {
		t.Errorf("register 7 should render as v7, got %q", Reg(7).String())
	}
}
