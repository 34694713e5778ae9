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
	"fmt"
	"strings"
)

// AccessFlags is the dex access flag bitmask of a class member.
type AccessFlags uint32

const (
	AccPublic    AccessFlags = 0x1
	AccPrivate   AccessFlags = 0x2
	AccProtected AccessFlags = 0x4
	AccStatic    AccessFlags = 0x8
	AccFinal     AccessFlags = 0x10
)

// A MethodRef identifies a method by its defining class descriptor, name and prototype.
// Identity is the triple; two refs to the same method compare equal wherever they were built.
type MethodRef struct {
	Class string
	Name  string
	Proto string
}

// Equal returns true when the two references identify the same method.
func (m *MethodRef) Equal(other *MethodRef) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Class == other.Class && m.Name == other.Name && m.Proto == other.Proto
}

func (m *MethodRef) String() string {
	return m.Class + "." + m.Name + ":" + m.Proto
}

// A FieldRef identifies a field by its defining class descriptor, name and type descriptor.
// Flags carry the declared access flags when the declaration is known; they are not part of
// the reference's identity.
type FieldRef struct {
	Class string
	Name  string
	Type  string
	Flags AccessFlags
}

// IsFinal returns true when the referenced field is statically known to be declared final.
func (f *FieldRef) IsFinal() bool {
	return f.Flags&AccFinal != 0
}

// IsStatic returns true when the referenced field is declared static.
func (f *FieldRef) IsStatic() bool {
	return f.Flags&AccStatic != 0
}

// Equal returns true when the two references identify the same field.
func (f *FieldRef) Equal(other *FieldRef) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Class == other.Class && f.Name == other.Name && f.Type == other.Type
}

func (f *FieldRef) String() string {
	return f.Class + "." + f.Name + ":" + f.Type
}

// splitMemberRef splits "Lpkg/Class;.member:descriptor" into its three parts. Class descriptors
// use '/' as the package separator, so the first '.' always separates class from member.
func splitMemberRef(s string) (class, name, desc string, err error) {
	dot := strings.Index(s, ".")
	if dot < 0 {
		return "", "", "", fmt.Errorf("missing '.' separator in %q", s)
	}
	colon := strings.Index(s[dot+1:], ":")
	if colon < 0 {
		return "", "", "", fmt.Errorf("missing ':' separator in %q", s)
	}
	class = s[:dot]
	name = s[dot+1 : dot+1+colon]
	desc = s[dot+2+colon:]
	if !strings.HasPrefix(class, "L") || !strings.HasSuffix(class, ";") {
		return "", "", "", fmt.Errorf("malformed class descriptor %q in %q", class, s)
	}
	if name == "" || desc == "" {
		return "", "", "", fmt.Errorf("empty member name or descriptor in %q", s)
	}
	return class, name, desc, nil
}

// ParseMethodRef parses a method reference in dex notation, e.g. "Lcom/app/A;.getB:()Lcom/app/B;".
func ParseMethodRef(s string) (*MethodRef, error) {
	class, name, proto, err := splitMemberRef(s)
	if err != nil {
		return nil, fmt.Errorf("invalid method reference: %w", err)
	}
	if !strings.HasPrefix(proto, "(") {
		return nil, fmt.Errorf("invalid method reference: prototype %q does not start with '(' in %q", proto, s)
	}
	return &MethodRef{Class: class, Name: name, Proto: proto}, nil
}

// ParseFieldRef parses a field reference in dex notation, e.g. "Lcom/app/A;.count:I".
// Access flags are not part of the notation; the caller sets them from the declaration.
func ParseFieldRef(s string) (*FieldRef, error) {
	class, name, typ, err := splitMemberRef(s)
	if err != nil {
		return nil, fmt.Errorf("invalid field reference: %w", err)
	}
	return &FieldRef{Class: class, Name: name, Type: typ}, nil
}
