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
	"fmt"
	"os"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"gopkg.in/yaml.v3"
)

// methodFile is the on-disk YAML layout of analyzable method bodies. Example:
//
//	methods:
//	  - method: "Lcom/app/Main;.run:(Lcom/app/Box;)V"
//	    params: [0]
//	    blocks:
//	      - instructions:
//	          - op: invoke-virtual
//	            args: [0]
//	            method: "Lcom/app/Box;.getA:()Lcom/app/Box;"
//	          - op: move-result
//	            dest: 1
//	        succs: [1]
//	      - instructions:
//	          - op: return-void
//
// The first block of a method is its entry block. Successor lists refer to block positions
// within the same method.
type methodFile struct {
	Methods []methodSpec `yaml:"methods"`
}

type methodSpec struct {
	Method string      `yaml:"method"`
	Params []uint32    `yaml:"params"`
	Blocks []blockSpec `yaml:"blocks"`
}

type blockSpec struct {
	Instructions []instructionSpec `yaml:"instructions"`
	Succs        []int             `yaml:"succs"`
}

// instructionSpec is one instruction line. Which keys are read depends on the op:
//
//	const          dest, value            const-string   dest, text
//	move           dest, args[0]          move-result    dest
//	new-instance   dest, type             invoke-*       args, method
//	iget           dest, args[0], field   iput           args[0] value, args[1] object, field
//	sget           dest, field            sput           args[0], field
//	add-int        dest, args[0], args[1]
//	if-eqz         args[0]                return         args[0]
//
// Field reads and writes take their access flags from the final and static keys, since dex
// field references do not carry the declaration's flags themselves.
type instructionSpec struct {
	Op     string   `yaml:"op"`
	Dest   uint32   `yaml:"dest"`
	Args   []uint32 `yaml:"args"`
	Method string   `yaml:"method"`
	Field  string   `yaml:"field"`
	Final  bool     `yaml:"final"`
	Static bool     `yaml:"static"`
	Value  int64    `yaml:"value"`
	Text   string   `yaml:"text"`
	Type   string   `yaml:"type"`
}

// LoadMethods reads method bodies from the given YAML files, in order.
func LoadMethods(filenames []string) ([]*ir.Method, error) {
	var methods []*ir.Method
	for _, filename := range filenames {
		b, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read method file %s: %v", filename, err)
		}
		ms, err := LoadMethodBytes(b)
		if err != nil {
			return nil, fmt.Errorf("failed to load methods from %s: %v", filename, err)
		}
		methods = append(methods, ms...)
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no methods")
	}
	return methods, nil
}

// LoadMethodBytes parses one method file held in memory.
func LoadMethodBytes(b []byte) ([]*ir.Method, error) {
	file := methodFile{}
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("failed to parse method file: %v", err)
	}
	methods := make([]*ir.Method, 0, len(file.Methods))
	for _, spec := range file.Methods {
		m, err := buildMethod(spec)
		if err != nil {
			return nil, fmt.Errorf("method %s: %v", spec.Method, err)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func buildMethod(spec methodSpec) (*ir.Method, error) {
	ref, err := ir.ParseMethodRef(spec.Method)
	if err != nil {
		return nil, err
	}
	if len(spec.Blocks) == 0 {
		return nil, fmt.Errorf("no blocks")
	}

	g := ir.NewGraph()
	blocks := make([]*ir.Block, len(spec.Blocks))
	for i := range spec.Blocks {
		blocks[i] = g.NewBlock()
	}
	for i, bs := range spec.Blocks {
		for j, is := range bs.Instructions {
			insn, err := buildInstruction(is)
			if err != nil {
				return nil, fmt.Errorf("block %d, instruction %d: %v", i, j, err)
			}
			blocks[i].Append(insn)
		}
		for _, succ := range bs.Succs {
			if succ < 0 || succ >= len(blocks) {
				return nil, fmt.Errorf("block %d: successor %d out of range", i, succ)
			}
			g.AddEdge(blocks[i], blocks[succ])
		}
	}

	params := make([]ir.Reg, len(spec.Params))
	for i, p := range spec.Params {
		params[i] = ir.Reg(p)
	}
	return &ir.Method{Ref: ref, Params: params, Graph: g}, nil
}

func buildInstruction(spec instructionSpec) (*ir.Instruction, error) {
	switch spec.Op {
	case "nop":
		return ir.NewNop(), nil
	case "const":
		return ir.NewConst(ir.Reg(spec.Dest), spec.Value), nil
	case "const-string":
		return ir.NewConstString(ir.Reg(spec.Dest), spec.Text), nil
	case "move":
		if len(spec.Args) != 1 {
			return nil, fmt.Errorf("move expects 1 argument, got %d", len(spec.Args))
		}
		return ir.NewMove(ir.Reg(spec.Dest), ir.Reg(spec.Args[0])), nil
	case "move-result":
		return ir.NewMoveResult(ir.Reg(spec.Dest)), nil
	case "new-instance":
		if spec.Type == "" {
			return nil, fmt.Errorf("new-instance requires a type")
		}
		return ir.NewNewInstance(ir.Reg(spec.Dest), spec.Type), nil
	case "invoke-virtual", "invoke-interface", "invoke-direct", "invoke-static":
		method, err := ir.ParseMethodRef(spec.Method)
		if err != nil {
			return nil, err
		}
		args := make([]ir.Reg, len(spec.Args))
		for i, a := range spec.Args {
			args[i] = ir.Reg(a)
		}
		return ir.NewInvoke(invokeKind(spec.Op), method, args), nil
	case "iget":
		field, err := fieldRef(spec)
		if err != nil {
			return nil, err
		}
		if len(spec.Args) != 1 {
			return nil, fmt.Errorf("iget expects 1 argument, got %d", len(spec.Args))
		}
		return ir.NewIGet(ir.Reg(spec.Dest), ir.Reg(spec.Args[0]), field), nil
	case "iput":
		field, err := fieldRef(spec)
		if err != nil {
			return nil, err
		}
		if len(spec.Args) != 2 {
			return nil, fmt.Errorf("iput expects 2 arguments, got %d", len(spec.Args))
		}
		return ir.NewIPut(ir.Reg(spec.Args[0]), ir.Reg(spec.Args[1]), field), nil
	case "sget":
		field, err := fieldRef(spec)
		if err != nil {
			return nil, err
		}
		if !field.IsStatic() {
			return nil, fmt.Errorf("sget on field %v not marked static", field)
		}
		return ir.NewSGet(ir.Reg(spec.Dest), field), nil
	case "sput":
		field, err := fieldRef(spec)
		if err != nil {
			return nil, err
		}
		if !field.IsStatic() {
			return nil, fmt.Errorf("sput on field %v not marked static", field)
		}
		if len(spec.Args) != 1 {
			return nil, fmt.Errorf("sput expects 1 argument, got %d", len(spec.Args))
		}
		return ir.NewSPut(ir.Reg(spec.Args[0]), field), nil
	case "add-int":
		if len(spec.Args) != 2 {
			return nil, fmt.Errorf("add-int expects 2 arguments, got %d", len(spec.Args))
		}
		return ir.NewAddInt(ir.Reg(spec.Dest), ir.Reg(spec.Args[0]), ir.Reg(spec.Args[1])), nil
	case "if-eqz":
		if len(spec.Args) != 1 {
			return nil, fmt.Errorf("if-eqz expects 1 argument, got %d", len(spec.Args))
		}
		return ir.NewIfEqz(ir.Reg(spec.Args[0])), nil
	case "goto":
		return ir.NewGoto(), nil
	case "return-void":
		return ir.NewReturnVoid(), nil
	case "return":
		if len(spec.Args) != 1 {
			return nil, fmt.Errorf("return expects 1 argument, got %d", len(spec.Args))
		}
		return ir.NewReturn(ir.Reg(spec.Args[0])), nil
	default:
		return nil, fmt.Errorf("unknown op %q", spec.Op)
	}
}

func invokeKind(op string) ir.Opcode {
	switch op {
	case "invoke-virtual":
		return ir.OpInvokeVirtual
	case "invoke-interface":
		return ir.OpInvokeInterface
	case "invoke-direct":
		return ir.OpInvokeDirect
	default:
		return ir.OpInvokeStatic
	}
}

func fieldRef(spec instructionSpec) (*ir.FieldRef, error) {
	field, err := ir.ParseFieldRef(spec.Field)
	if err != nil {
		return nil, err
	}
	if spec.Final {
		field.Flags |= ir.AccFinal
	}
	if spec.Static {
		field.Flags |= ir.AccStatic
	}
	return field, nil
}
