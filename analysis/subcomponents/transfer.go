// Copyright 2021 Amazon.com, Inc. or its affiliates. All Rights Reserved.

package subcomponents

import (
	"github.com/awslabs/ar-dex-tools/analysis/ir"
)

// transferFunc interprets one instruction over a binding environment. It visits every
// instruction family; anything that writes a register without getter semantics clobbers the
// destination to Unknown, and instructions that write no register leave the state untouched.
type transferFunc struct {
	env         *bindingEnv
	isGetter    GetterPredicate
	maxPathLen  int
	trackLocals bool
	widened     bool
}

// applyTransfer interprets insn over env in place and reports whether the getter chain length
// cap forced a binding to Unknown. Query replays work on private clones of the frozen block
// states, so the same function serves both the fixpoint engine and concurrent readers.
func applyTransfer(env *bindingEnv, insn *ir.Instruction, isGetter GetterPredicate, maxPathLen int, trackLocals bool) bool {
	t := &transferFunc{env: env, isGetter: isGetter, maxPathLen: maxPathLen, trackLocals: trackLocals}
	ir.OpSwitch(t, insn)
	return t.widened
}

// extend grows a concrete path by one getter, clamping to Unknown once the chain exceeds the
// configured length cap. The clamp is what bounds the domain height on cyclic graphs.
func (t *transferFunc) extend(p AccessPath, getter *ir.MethodRef) AccessPath {
	if t.maxPathLen > 0 && len(p.Getters())+1 > t.maxPathLen {
		t.widened = true
		return Unknown
	}
	return extension(p, getter)
}

func (t *transferFunc) DoNop(i *ir.Instruction) {}

func (t *transferFunc) DoConst(i *ir.Instruction) {
	// Constants carry no derivation.
	t.env.set(i.Dest(), Unknown)
}

func (t *transferFunc) DoMove(i *ir.Instruction) {
	t.env.set(i.Dest(), t.env.get(i.Src(0)))
}

func (t *transferFunc) DoMoveResult(i *ir.Instruction) {
	t.env.set(i.Dest(), t.env.get(ir.ResultRegister))
}

func (t *transferFunc) DoNewInstance(i *ir.Instruction) {
	if t.trackLocals {
		t.env.set(i.Dest(), NewLocalPath(int(i.Dest())))
		return
	}
	t.env.set(i.Dest(), Unknown)
}

// DoInvoke binds the result pseudo-register. Only an instance call of a recognized getter with
// no arguments besides the receiver extends the receiver's path: a call taking further
// arguments may return a different value per argument, so treating it as a pure accessor would
// equate paths that hold different values.
func (t *transferFunc) DoInvoke(i *ir.Instruction) {
	m := i.Method()
	if t.isGetter != nil && t.isGetter(m) && i.Op() != ir.OpInvokeStatic && len(i.Srcs()) == 1 {
		if recv := t.env.get(i.Src(0)); recv.Kind() != KindUnknown {
			t.env.set(ir.ResultRegister, t.extend(recv, m))
			return
		}
	}
	t.env.set(ir.ResultRegister, Unknown)
}

// DoIGet roots a fresh final-field path when the field is final and the receiver is a traced
// root. A receiver that already carries getters cannot keep its chain through a field read, so
// that case degrades to Unknown like any other untracked write.
func (t *transferFunc) DoIGet(i *ir.Instruction) {
	field := i.Field()
	if field.IsFinal() {
		if recv := t.env.get(i.Src(0)); recv.Kind() != KindUnknown && len(recv.Getters()) == 0 {
			t.env.set(i.Dest(), finalFieldRoot(field))
			return
		}
	}
	t.env.set(i.Dest(), Unknown)
}

func (t *transferFunc) DoIPut(i *ir.Instruction) {}

// DoSGet roots a final-field path for a static final field. The declaring class is a stable
// receiver, so the read needs no traced register.
func (t *transferFunc) DoSGet(i *ir.Instruction) {
	if field := i.Field(); field.IsFinal() {
		t.env.set(i.Dest(), finalFieldRoot(field))
		return
	}
	t.env.set(i.Dest(), Unknown)
}

func (t *transferFunc) DoSPut(i *ir.Instruction) {}

func (t *transferFunc) DoBinOp(i *ir.Instruction) {
	t.env.set(i.Dest(), Unknown)
}

func (t *transferFunc) DoIf(i *ir.Instruction) {}

func (t *transferFunc) DoGoto(i *ir.Instruction) {}

func (t *transferFunc) DoReturn(i *ir.Instruction) {}
