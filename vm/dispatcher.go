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

package vm

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

const defaultBranchPredictionCacheSize = 4096

// Profiler observes a running VM. It is satisfied by profiler.HotSpotProfiler;
// this package depends on it only through this interface so the dependency
// never runs the other way.
type Profiler interface {
	RecordFunctionEntry(functionID int)
	RecordLoopIteration(loopPC int)
	RecordTypeObservation(pc int, v Value)
	RecordBranchTaken(pc int, taken bool)
	RecordInstructionExecution(pc int, opcode Opcode)
}

// InstructionDispatcher decodes and executes one Instruction at a time
// against a VM's operand stack, call stack, constants pool, and heap. It
// owns the program counter and a running instruction count.
type InstructionDispatcher struct {
	programCounter    int
	instructionCount  uint64
	branchPredictions *lru.Cache
}

// NewInstructionDispatcher returns a dispatcher positioned at PC 0.
func NewInstructionDispatcher() *InstructionDispatcher {
	cache, err := lru.New(defaultBranchPredictionCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultBranchPredictionCacheSize never is.
		panic(fmt.Sprintf("vm: branch prediction cache: %v", err))
	}
	return &InstructionDispatcher{branchPredictions: cache}
}

// CurrentPC reports the next instruction address the dispatcher will fetch.
func (d *InstructionDispatcher) CurrentPC() int { return d.programCounter }

// SetPC overrides the next instruction address.
func (d *InstructionDispatcher) SetPC(pc int) { d.programCounter = pc }

// InstructionCount reports how many instructions have been executed.
func (d *InstructionDispatcher) InstructionCount() uint64 { return d.instructionCount }

// RecordBranchPrediction caches the most recently observed direction for a
// conditional branch at pc, evicting the least recently used entry once the
// table is full.
func (d *InstructionDispatcher) RecordBranchPrediction(pc int, taken bool) {
	d.branchPredictions.Add(pc, taken)
}

// BranchPrediction returns the most recently cached direction for pc, if
// any is still resident in the cache.
func (d *InstructionDispatcher) BranchPrediction(pc int) (bool, bool) {
	v, ok := d.branchPredictions.Get(pc)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// Tick increments the dispatcher's instruction count. VM.Step calls this
// for every fetched instruction, including Halt, so InstructionCount
// reflects the number of instructions processed rather than only those
// that reached a dispatch case.
func (d *InstructionDispatcher) Tick() { d.instructionCount++ }

// ExecuteWithConstants decodes and executes instr, consulting constants for
// Push's pool-index operand and heap for NewObject's allocation. Callers
// that drive execution through VM.Step do not need to call Tick
// separately; VM.Step ticks once per fetched instruction itself.
func (d *InstructionDispatcher) ExecuteWithConstants(instr Instruction, stack *OperandStack, callStack *CallStack, constants []Value, heap *Heap) error {
	switch instr.Opcode() {
	case OpAdd:
		return d.executeAdd(stack)
	case OpSub:
		return d.executeSub(stack)
	case OpMul:
		return d.executeMul(stack)
	case OpDiv:
		return d.executeDiv(stack)
	case OpMod:
		return d.executeMod(stack)
	case OpPush:
		return d.executePushWithConstants(instr, stack, constants)
	case OpPop:
		return d.executePop(stack)
	case OpDup:
		return d.executeDup(stack)
	case OpSwap:
		return d.executeSwap(stack)
	case OpJump:
		return d.executeJump(instr)
	case OpJumpIfTrue:
		return d.executeJumpIfTrue(instr, stack)
	case OpJumpIfFalse:
		return d.executeJumpIfFalse(instr, stack)
	case OpCall:
		return d.executeCall(instr, callStack)
	case OpReturn:
		return d.executeReturn(callStack)
	case OpEqual:
		return d.executeCompare(stack, cmpEqual)
	case OpNotEqual:
		return d.executeCompare(stack, cmpNotEqual)
	case OpLessThan:
		return d.executeCompare(stack, cmpLessThan)
	case OpLessEqual:
		return d.executeCompare(stack, cmpLessEqual)
	case OpGreaterThan:
		return d.executeCompare(stack, cmpGreaterThan)
	case OpGreaterEqual:
		return d.executeCompare(stack, cmpGreaterEqual)
	case OpAnd:
		return d.executeAnd(stack)
	case OpOr:
		return d.executeOr(stack)
	case OpNot:
		return d.executeNot(stack)
	case OpXor:
		return d.executeXor(stack)
	case OpLoad:
		return d.executeLoad(instr, stack, callStack)
	case OpStore:
		return d.executeStore(instr, stack, callStack)
	case OpNewObject:
		return d.executeNewObject(stack, heap)
	case OpGetField:
		return d.executeGetField(instr, stack)
	case OpSetField:
		return d.executeSetField(instr, stack)
	case OpHalt:
		return nil
	default:
		return ErrUnknownOpcode
	}
}

// Execute decodes and executes instr without a constants pool or heap;
// OpNewObject always fails since it requires heap access.
func (d *InstructionDispatcher) Execute(instr Instruction, stack *OperandStack, callStack *CallStack) error {
	if instr.Opcode() == OpNewObject {
		return fmt.Errorf("%w: NewObject requires heap access", ErrInvalidOperand)
	}
	return d.ExecuteWithConstants(instr, stack, callStack, nil, nil)
}

func (d *InstructionDispatcher) executeAdd(stack *OperandStack) error {
	return d.binaryArith(stack, func(a, b int64) Value { return IntegerValue(a + b) },
		func(a, b float64) Value { return FloatValue(a + b) })
}

func (d *InstructionDispatcher) executeSub(stack *OperandStack) error {
	return d.binaryArith(stack, func(a, b int64) Value { return IntegerValue(a - b) },
		func(a, b float64) Value { return FloatValue(a - b) })
}

func (d *InstructionDispatcher) executeMul(stack *OperandStack) error {
	return d.binaryArith(stack, func(a, b int64) Value { return IntegerValue(a * b) },
		func(a, b float64) Value { return FloatValue(a * b) })
}

// binaryArith implements the shared Add/Sub/Mul widening rule: Integer op
// Integer stays Integer; any Float operand widens both sides to Float.
func (d *InstructionDispatcher) binaryArith(stack *OperandStack, intOp func(a, b int64) Value, floatOp func(a, b float64) Value) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}

	var result Value
	switch {
	case a.Kind() == KindInteger && b.Kind() == KindInteger:
		result = intOp(a.Integer(), b.Integer())
	case a.isNumeric() && b.isNumeric():
		result = floatOp(a.asFloat(), b.asFloat())
	default:
		return ErrTypeError
	}
	return stack.Push(result)
}

func (d *InstructionDispatcher) executeDiv(stack *OperandStack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}

	var result Value
	switch {
	case a.Kind() == KindInteger && b.Kind() == KindInteger:
		if b.Integer() == 0 {
			return ErrDivisionByZero
		}
		result = IntegerValue(a.Integer() / b.Integer())
	case a.isNumeric() && b.isNumeric():
		bf := b.asFloat()
		if bf == 0.0 {
			return ErrDivisionByZero
		}
		result = FloatValue(a.asFloat() / bf)
	default:
		return ErrTypeError
	}
	return stack.Push(result)
}

func (d *InstructionDispatcher) executeMod(stack *OperandStack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}

	if a.Kind() != KindInteger || b.Kind() != KindInteger {
		return ErrTypeError
	}
	if b.Integer() == 0 {
		return ErrDivisionByZero
	}
	return stack.Push(IntegerValue(a.Integer() % b.Integer()))
}

func (d *InstructionDispatcher) executePushWithConstants(instr Instruction, stack *OperandStack, constants []Value) error {
	operand, ok := instr.Operand()
	if !ok {
		return ErrInsufficientOperands
	}

	if operand.Kind() != KindInteger {
		return stack.Push(operand)
	}

	// Push polymorphism: an empty pool means the integer operand is a
	// literal, for backward compatibility with pool-less bytecode.
	if len(constants) == 0 {
		return stack.Push(operand)
	}

	index := int(operand.Integer())
	if index < 0 || index >= len(constants) {
		return fmt.Errorf("%w: constant index %d out of bounds (pool size %d)", ErrInvalidOperand, index, len(constants))
	}
	return stack.Push(constants[index])
}

func (d *InstructionDispatcher) executePop(stack *OperandStack) error {
	_, err := stack.Pop()
	return err
}

func (d *InstructionDispatcher) executeDup(stack *OperandStack) error {
	v, err := stack.Peek()
	if err != nil {
		return err
	}
	return stack.Push(v)
}

func (d *InstructionDispatcher) executeSwap(stack *OperandStack) error {
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	if err := stack.Push(a); err != nil {
		return err
	}
	return stack.Push(b)
}

func (d *InstructionDispatcher) executeJump(instr Instruction) error {
	operand, ok := instr.Operand()
	if !ok {
		return ErrInsufficientOperands
	}
	if operand.Kind() != KindInteger {
		return fmt.Errorf("%w: jump requires integer operand", ErrInvalidOperand)
	}
	addr := operand.Integer()
	if addr < 0 {
		return ErrInvalidJumpAddress
	}
	d.programCounter = int(addr)
	return nil
}

func (d *InstructionDispatcher) executeJumpIfTrue(instr Instruction, stack *OperandStack) error {
	cond, err := stack.Pop()
	if err != nil {
		return err
	}
	if cond.IsTruthy() {
		return d.executeJump(instr)
	}
	return nil
}

func (d *InstructionDispatcher) executeJumpIfFalse(instr Instruction, stack *OperandStack) error {
	cond, err := stack.Pop()
	if err != nil {
		return err
	}
	if !cond.IsTruthy() {
		return d.executeJump(instr)
	}
	return nil
}

func (d *InstructionDispatcher) executeCall(instr Instruction, callStack *CallStack) error {
	operand, ok := instr.Operand()
	if !ok {
		return ErrInsufficientOperands
	}
	if operand.Kind() != KindInteger {
		return fmt.Errorf("%w: call requires integer operand", ErrInvalidOperand)
	}
	addr := operand.Integer()
	if addr < 0 {
		return ErrInvalidJumpAddress
	}

	returnAddr := d.programCounter + 1
	frame := NewCallFrame(int(addr), returnAddr, 0)
	callStack.PushUnchecked(frame)
	d.programCounter = int(addr)
	return nil
}

func (d *InstructionDispatcher) executeReturn(callStack *CallStack) error {
	frame, err := callStack.Pop()
	if err != nil {
		return err
	}
	d.programCounter = frame.ReturnAddress()
	return nil
}

type compareOp int

const (
	cmpEqual compareOp = iota
	cmpNotEqual
	cmpLessThan
	cmpLessEqual
	cmpGreaterThan
	cmpGreaterEqual
)

// executeCompare unifies the six comparison opcodes: numeric operands
// cross-widen Integer<->Float for every comparison, including
// Equal/NotEqual; same-Kind non-numeric operands compare by payload for
// Equal/NotEqual only; any other mismatch is a TypeError.
func (d *InstructionDispatcher) executeCompare(stack *OperandStack, op compareOp) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}

	var result bool
	switch {
	case a.isNumeric() && b.isNumeric():
		af, bf := a.asFloat(), b.asFloat()
		switch op {
		case cmpEqual:
			result = af == bf
		case cmpNotEqual:
			result = af != bf
		case cmpLessThan:
			result = af < bf
		case cmpLessEqual:
			result = af <= bf
		case cmpGreaterThan:
			result = af > bf
		case cmpGreaterEqual:
			result = af >= bf
		}
	case (op == cmpEqual || op == cmpNotEqual) && a.Kind() == b.Kind():
		eq := valuesEqualSameKind(a, b)
		if op == cmpEqual {
			result = eq
		} else {
			result = !eq
		}
	default:
		return ErrTypeError
	}

	return stack.Push(BooleanValue(result))
}

// valuesEqualSameKind compares two Values already known to share a Kind.
func valuesEqualSameKind(a, b Value) bool {
	switch a.Kind() {
	case KindBoolean:
		return a.Boolean() == b.Boolean()
	case KindString:
		return a.String() == b.String()
	case KindGcString:
		return a.GcStringHandle() == b.GcStringHandle()
	case KindGcObject:
		return a.GcObjectHandle() == b.GcObjectHandle()
	case KindNull:
		return true
	default:
		return false
	}
}

func (d *InstructionDispatcher) executeAnd(stack *OperandStack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	return stack.Push(BooleanValue(a.IsTruthy() && b.IsTruthy()))
}

func (d *InstructionDispatcher) executeOr(stack *OperandStack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	return stack.Push(BooleanValue(a.IsTruthy() || b.IsTruthy()))
}

func (d *InstructionDispatcher) executeNot(stack *OperandStack) error {
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	return stack.Push(BooleanValue(!a.IsTruthy()))
}

func (d *InstructionDispatcher) executeXor(stack *OperandStack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	return stack.Push(BooleanValue(a.IsTruthy() != b.IsTruthy()))
}

func localIndexOperand(instr Instruction) (int, error) {
	operand, ok := instr.Operand()
	if !ok {
		return 0, fmt.Errorf("%w: requires operand", ErrInvalidOperand)
	}
	if operand.Kind() != KindInteger {
		return 0, fmt.Errorf("%w: requires integer operand", ErrInvalidOperand)
	}
	return int(operand.Integer()), nil
}

func (d *InstructionDispatcher) executeLoad(instr Instruction, stack *OperandStack, callStack *CallStack) error {
	index, err := localIndexOperand(instr)
	if err != nil {
		return err
	}
	frame, err := callStack.Current()
	if err != nil {
		return err
	}
	v, err := frame.GetLocal(index)
	if err != nil {
		return err
	}
	return stack.Push(v)
}

func (d *InstructionDispatcher) executeStore(instr Instruction, stack *OperandStack, callStack *CallStack) error {
	index, err := localIndexOperand(instr)
	if err != nil {
		return err
	}
	v, err := stack.Pop()
	if err != nil {
		return err
	}
	frame, err := callStack.Current()
	if err != nil {
		return err
	}
	return frame.SetLocal(index, v)
}

func (d *InstructionDispatcher) executeNewObject(stack *OperandStack, heap *Heap) error {
	if heap == nil {
		return fmt.Errorf("%w: NewObject requires heap access", ErrInvalidOperand)
	}
	handle, err := heap.AllocateObject(NewObject())
	if err != nil {
		return fmt.Errorf("%w: failed to allocate object: %v", ErrInvalidOperand, err)
	}
	return stack.Push(GcObjectValue(handle))
}

func fieldNameOperand(instr Instruction) (string, error) {
	operand, ok := instr.Operand()
	if !ok {
		return "", fmt.Errorf("%w: requires operand", ErrInvalidOperand)
	}
	switch operand.Kind() {
	case KindString:
		return operand.String(), nil
	case KindInteger:
		return fmt.Sprintf("field_%d", operand.Integer()), nil
	default:
		return "", fmt.Errorf("%w: requires string or integer operand", ErrInvalidOperand)
	}
}

func (d *InstructionDispatcher) executeGetField(instr Instruction, stack *OperandStack) error {
	name, err := fieldNameOperand(instr)
	if err != nil {
		return err
	}
	obj, err := stack.Pop()
	if err != nil {
		return err
	}
	if obj.Kind() != KindGcObject {
		return fmt.Errorf("%w: GetField can only be used on objects", ErrTypeError)
	}
	v, ok := obj.GcObjectHandle().Object().GetField(name)
	if !ok {
		return stack.Push(NullValue())
	}
	return stack.Push(v)
}

// executeSetField preserves the documented hard limitation: it restores the
// popped object and value to the stack and reports an error rather than
// mutating through a shared handle, matching the read-only handle model's
// contract.
func (d *InstructionDispatcher) executeSetField(instr Instruction, stack *OperandStack) error {
	_, err := fieldNameOperand(instr)
	if err != nil {
		return err
	}
	value, err := stack.Pop()
	if err != nil {
		return err
	}
	obj, err := stack.Pop()
	if err != nil {
		return err
	}

	if obj.Kind() != KindGcObject {
		_ = stack.Push(obj)
		_ = stack.Push(value)
		return fmt.Errorf("%w: SetField can only be used on objects", ErrTypeError)
	}

	_ = stack.Push(obj)
	_ = stack.Push(value)
	return fmt.Errorf("%w: SetField not implemented - requires interior mutability across shared handles", ErrInvalidOperand)
}
