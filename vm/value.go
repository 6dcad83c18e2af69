// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package vm implements the stack-based bytecode virtual machine: the value
// model, the operand and call stacks, the managed heap, the opcode
// dispatcher, and the fetch-execute runtime loop.
package vm

import "fmt"

// Kind tags the variant a Value currently holds.
type Kind uint8

const (
	KindInteger Kind = iota
	KindFloat
	KindBoolean
	KindString
	KindGcString
	KindGcObject
	KindNull
)

// typeNames gives the stable textual type name the profiler keys type
// observations by.
var typeNames = [...]string{
	KindInteger:  "integer",
	KindFloat:    "float",
	KindBoolean:  "boolean",
	KindString:   "string",
	KindGcString: "gc_string",
	KindGcObject: "gc_object",
	KindNull:     "null",
}

func (k Kind) String() string {
	if int(k) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[k]
}

// Value is a tagged variant over the language's primitive and heap-managed
// types. The zero Value is KindInteger(0), not Null — always construct
// through a constructor function or use NullValue().
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	gcS  *StringHandle
	gcO  *ObjectHandle
}

// IntegerValue constructs a signed 64-bit integer Value.
func IntegerValue(i int64) Value { return Value{kind: KindInteger, i: i} }

// FloatValue constructs a binary64 float Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BooleanValue constructs a Boolean Value.
func BooleanValue(b bool) Value { return Value{kind: KindBoolean, b: b} }

// StringValue constructs an inline String Value (not heap-managed).
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// GcStringValue constructs a Value wrapping a heap string handle.
func GcStringValue(h *StringHandle) Value { return Value{kind: KindGcString, gcS: h} }

// GcObjectValue constructs a Value wrapping a heap object handle.
func GcObjectValue(h *ObjectHandle) Value { return Value{kind: KindGcObject, gcO: h} }

// NullValue is the singleton Null Value.
func NullValue() Value { return Value{kind: KindNull} }

// Kind reports the variant currently held.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns the stable textual type name used by the profiler.
func (v Value) TypeName() string { return v.kind.String() }

// Integer returns the payload; callers must check Kind() == KindInteger.
func (v Value) Integer() int64 { return v.i }

// Float returns the payload; callers must check Kind() == KindFloat.
func (v Value) Float() float64 { return v.f }

// Boolean returns the payload; callers must check Kind() == KindBoolean.
func (v Value) Boolean() bool { return v.b }

// String returns the string payload for KindString and KindGcString, and a
// textual rendering of the value for every other kind ("null" for Null,
// "<object>" for a GcObject).
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindGcString:
		if v.gcS != nil {
			return v.gcS.Value()
		}
		return ""
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindGcObject:
		return "<object>"
	default:
		return "null"
	}
}

// GcStringHandle returns the heap string handle; callers must check
// Kind() == KindGcString.
func (v Value) GcStringHandle() *StringHandle { return v.gcS }

// GcObjectHandle returns the heap object handle; callers must check
// Kind() == KindGcObject.
func (v Value) GcObjectHandle() *ObjectHandle { return v.gcO }

// IsTruthy implements the language's truthiness rule: Boolean true;
// non-zero Integer; non-zero Float (NaN included — NaN != 0.0, so NaN is
// truthy, per the documented implementation-defined choice); non-empty
// string, inline or heap; any GcObject; never Null.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindInteger:
		return v.i != 0
	case KindFloat:
		return v.f != 0.0
	case KindString:
		return v.s != ""
	case KindGcString:
		return v.gcS != nil && v.gcS.Value() != ""
	case KindGcObject:
		return true
	default: // KindNull
		return false
	}
}

// isNumeric reports whether the Value is an Integer or a Float.
func (v Value) isNumeric() bool {
	return v.kind == KindInteger || v.kind == KindFloat
}

// asFloat widens a numeric Value to float64. Callers must check isNumeric
// first.
func (v Value) asFloat() float64 {
	if v.kind == KindInteger {
		return float64(v.i)
	}
	return v.f
}
