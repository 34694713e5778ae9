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

package subcomponents

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"golang.org/x/exp/slices"
)

// A PathKind discriminates the variants of an access path.
type PathKind int

const (
	// KindParameter is an access path rooted at a method parameter
	KindParameter PathKind = iota
	// KindLocal is an access path rooted at an object allocated in the method body
	KindLocal
	// KindFinalField is an access path rooted at a read of a final field
	KindFinalField
	// KindUnknown is the absence of a known derivation
	KindUnknown
)

func (k PathKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindLocal:
		return "local"
	case KindFinalField:
		return "final-field"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("PathKind(%d)", int(k))
	}
}

// An AccessPath is the symbolic value of a register: a chain of getter calls applied to a root
// that is stable for the duration of the analyzed method.
//
// Examples:
//
//	p0.getA().getB()
//	p1.getC()
//	p2               (an empty access path, i.e., the value of parameter #2)
//
// An access path is an immutable value: extending a path allocates a new one. The interface is
// sealed; the variants are ParameterPath, LocalPath, FinalFieldPath and the Unknown singleton,
// each carrying exactly the fields that are meaningful for it.
type AccessPath interface {
	// Kind returns the variant of the access path
	Kind() PathKind
	// Getters returns the chain of getter calls applied to the root, in application order
	Getters() []*ir.MethodRef
	// Equal returns true if the other path has the same variant, the same root and the same
	// getter chain, in order
	Equal(other AccessPath) bool
	// Hash returns a hash value consistent with Equal
	Hash() uint64

	fmt.Stringer
	sealed()
}

// A ParameterPath is an access path rooted at an incoming method parameter.
type ParameterPath struct {
	index   int
	getters []*ir.MethodRef
}

// NewParameterPath returns the empty access path of the parameter at the given position: the
// value of the parameter register, unmodified.
func NewParameterPath(index int) *ParameterPath {
	if index < 0 {
		panic(fmt.Sprintf("negative parameter position %d", index))
	}
	return &ParameterPath{index: index}
}

// Index returns the position of the root parameter in the method's parameter list.
func (p *ParameterPath) Index() int { return p.index }

// Kind returns KindParameter
func (p *ParameterPath) Kind() PathKind { return KindParameter }

// Getters returns the getter chain applied to the parameter
func (p *ParameterPath) Getters() []*ir.MethodRef { return p.getters }

// Equal returns true if other is a parameter path with the same position and getter chain
func (p *ParameterPath) Equal(other AccessPath) bool {
	o, ok := other.(*ParameterPath)
	return ok && p.index == o.index && equalGetters(p.getters, o.getters)
}

// Hash returns a hash of the path, consistent with Equal
func (p *ParameterPath) Hash() uint64 {
	return hashPath(KindParameter, strconv.Itoa(p.index), p.getters)
}

func (p *ParameterPath) String() string {
	return renderPath("p"+strconv.Itoa(p.index), p.getters)
}

func (p *ParameterPath) sealed() {}

// A LocalPath is an access path rooted at an object allocated in the method body, identified by
// the register the allocation wrote. It cannot be traced back to a caller-visible value, so most
// consumers only use it for printing and debugging.
type LocalPath struct {
	index   int
	getters []*ir.MethodRef
}

// NewLocalPath returns the empty access path of the local allocated into the given register.
func NewLocalPath(index int) *LocalPath {
	if index < 0 {
		panic(fmt.Sprintf("negative local index %d", index))
	}
	return &LocalPath{index: index}
}

// Index returns the register the rooting allocation wrote.
func (p *LocalPath) Index() int { return p.index }

// Kind returns KindLocal
func (p *LocalPath) Kind() PathKind { return KindLocal }

// Getters returns the getter chain applied to the local
func (p *LocalPath) Getters() []*ir.MethodRef { return p.getters }

// Equal returns true if other is a local path with the same index and getter chain
func (p *LocalPath) Equal(other AccessPath) bool {
	o, ok := other.(*LocalPath)
	return ok && p.index == o.index && equalGetters(p.getters, o.getters)
}

// Hash returns a hash of the path, consistent with Equal
func (p *LocalPath) Hash() uint64 {
	return hashPath(KindLocal, strconv.Itoa(p.index), p.getters)
}

func (p *LocalPath) String() string {
	return renderPath("local"+strconv.Itoa(p.index), p.getters)
}

func (p *LocalPath) sealed() {}

// A FinalFieldPath is an access path rooted at a read of a field that is statically known to be
// final.
type FinalFieldPath struct {
	field   *ir.FieldRef
	getters []*ir.MethodRef
}

// NewFinalFieldPath returns the empty access path rooted at a read of the given field. The field
// must be final.
func NewFinalFieldPath(field *ir.FieldRef) *FinalFieldPath {
	if field == nil {
		panic("final field access path requires a field")
	}
	if !field.IsFinal() {
		panic(fmt.Sprintf("field %v is not final", field))
	}
	return &FinalFieldPath{field: field}
}

// finalFieldRoot is the unvalidated constructor reserved for the transfer function, which checks
// the field's access flags itself.
func finalFieldRoot(field *ir.FieldRef) *FinalFieldPath {
	return &FinalFieldPath{field: field}
}

// Field returns the final field the path is rooted at.
func (p *FinalFieldPath) Field() *ir.FieldRef { return p.field }

// Kind returns KindFinalField
func (p *FinalFieldPath) Kind() PathKind { return KindFinalField }

// Getters returns the getter chain applied to the field value
func (p *FinalFieldPath) Getters() []*ir.MethodRef { return p.getters }

// Equal returns true if other is a final field path with the same field and getter chain
func (p *FinalFieldPath) Equal(other AccessPath) bool {
	o, ok := other.(*FinalFieldPath)
	return ok && p.field.Equal(o.field) && equalGetters(p.getters, o.getters)
}

// Hash returns a hash of the path, consistent with Equal
func (p *FinalFieldPath) Hash() uint64 {
	return hashPath(KindFinalField, p.field.String(), p.getters)
}

func (p *FinalFieldPath) String() string {
	return renderPath(p.field.Class+"."+p.field.Name, p.getters)
}

func (p *FinalFieldPath) sealed() {}

// Unknown is the access path of a register with no known derivation: the default value of every
// register and the absorbing element of the join. It compares equal only to itself.
var Unknown AccessPath = unknownPath{}

type unknownPath struct{}

// Kind returns KindUnknown
func (unknownPath) Kind() PathKind { return KindUnknown }

// Getters returns nil; an unknown path carries no derivation
func (unknownPath) Getters() []*ir.MethodRef { return nil }

// Equal returns true only if other is Unknown
func (unknownPath) Equal(other AccessPath) bool {
	_, ok := other.(unknownPath)
	return ok
}

// Hash returns a hash of the path, consistent with Equal
func (unknownPath) Hash() uint64 {
	return hashPath(KindUnknown, "", nil)
}

func (unknownPath) String() string { return "<unknown>" }

func (unknownPath) sealed() {}

// Extend returns p extended by one getter call. Extending Unknown gives Unknown; the getter must
// not be nil.
func Extend(p AccessPath, getter *ir.MethodRef) AccessPath {
	if getter == nil {
		panic("cannot extend an access path with a nil getter")
	}
	if p.Kind() == KindUnknown {
		return Unknown
	}
	return extension(p, getter)
}

// extension appends a getter to a concrete path without validating the arguments. The transfer
// function performs its own checks before calling it; external callers go through Extend.
func extension(p AccessPath, getter *ir.MethodRef) AccessPath {
	switch q := p.(type) {
	case *ParameterPath:
		return &ParameterPath{index: q.index, getters: appendGetter(q.getters, getter)}
	case *LocalPath:
		return &LocalPath{index: q.index, getters: appendGetter(q.getters, getter)}
	case *FinalFieldPath:
		return &FinalFieldPath{field: q.field, getters: appendGetter(q.getters, getter)}
	default:
		return Unknown
	}
}

// appendGetter copies on every append so that paths sharing a prefix never share the backing
// array of their getter chains.
func appendGetter(getters []*ir.MethodRef, g *ir.MethodRef) []*ir.MethodRef {
	return append(getters[0:len(getters):len(getters)], g)
}

func equalGetters(a []*ir.MethodRef, b []*ir.MethodRef) bool {
	return slices.EqualFunc(a, b, func(x *ir.MethodRef, y *ir.MethodRef) bool { return x.Equal(y) })
}

func hashPath(kind PathKind, root string, getters []*ir.MethodRef) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(kind))
	h.Write(buf[:])
	h.Write([]byte(root))
	for _, g := range getters {
		h.Write([]byte{0})
		h.Write([]byte(g.String()))
	}
	return h.Sum64()
}

func renderPath(root string, getters []*ir.MethodRef) string {
	var sb strings.Builder
	sb.WriteString(root)
	for _, g := range getters {
		sb.WriteString(".")
		sb.WriteString(g.Name)
		sb.WriteString("()")
	}
	return sb.String()
}
