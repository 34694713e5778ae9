package config

import "regexp"

// A MethodIdentifier identifies a dex method, for example a method that should be treated as an
// immutable getter.
// A method can be identified from its declaring class descriptor, its name or its prototype, or
// any combination of those
type MethodIdentifier struct {
	Class string
	Name  string
	Proto string
	// This will not be part of the yaml config
	computedRegexs *MethodIdentifierRegex
}

// A MethodIdentifierRegex holds the compiled regexes of a MethodIdentifier
type MethodIdentifierRegex struct {
	classRegex *regexp.Regexp
	nameRegex  *regexp.Regexp
	protoRegex *regexp.Regexp
}

// compileRegexes compiles the strings in the method identifier into regexes. It compiles all
// identifiers into regexes or none.
func compileRegexes(mi MethodIdentifier) MethodIdentifier {
	classRegex, err := regexp.Compile(mi.Class)
	if err != nil {
		return mi
	}
	nameRegex, err := regexp.Compile(mi.Name)
	if err != nil {
		return mi
	}
	protoRegex, err := regexp.Compile(mi.Proto)
	if err != nil {
		return mi
	}
	mi.computedRegexs = &MethodIdentifierRegex{
		classRegex,
		nameRegex,
		protoRegex,
	}
	return mi
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (mi *MethodIdentifier) equalOnNonEmptyFields(miRef MethodIdentifier) bool {
	if miRef.computedRegexs != nil {
		return ((miRef.computedRegexs.classRegex.MatchString(mi.Class)) || (miRef.Class == "")) &&
			((miRef.computedRegexs.nameRegex.MatchString(mi.Name)) || (miRef.Name == "")) &&
			((miRef.computedRegexs.protoRegex.MatchString(mi.Proto)) || (miRef.Proto == ""))
	}
	return ((mi.Class == miRef.Class) || (miRef.Class == "")) &&
		((mi.Name == miRef.Name) || (miRef.Name == "")) &&
		((mi.Proto == miRef.Proto) || (miRef.Proto == ""))
}

// ExistsMid is true if there is some x in a such that f(x) is true.
// O(len(a))
func ExistsMid(a []MethodIdentifier, f func(identifier MethodIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
