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

// Package profiler implements a hot-spot profiler that observes a running
// vm.VM through the vm.Profiler interface: function and loop execution
// counts, per-PC type and branch profiles, per-PC instruction counts, and
// deoptimization bookkeeping, with a JSON export/import pair for offline
// analysis.
package profiler

import (
	"sync"

	"github.com/probechain/probevm/vm"
)

const (
	defaultFunctionThreshold = 1000
	defaultLoopThreshold     = 10000
)

// OptimizationLevel is a suggested JIT tier for a function, derived purely
// from its observed call count.
type OptimizationLevel int

const (
	OptimizationNone OptimizationLevel = iota
	OptimizationO1
	OptimizationO2
	OptimizationO3
)

func (o OptimizationLevel) String() string {
	switch o {
	case OptimizationNone:
		return "None"
	case OptimizationO1:
		return "O1"
	case OptimizationO2:
		return "O2"
	case OptimizationO3:
		return "O3"
	default:
		return "Unknown"
	}
}

// TypeProfile accumulates per-type observation counts at a single PC, used
// to detect monomorphic call/arithmetic sites.
type TypeProfile struct {
	counts             map[string]uint64
	totalObservations  uint64
}

func newTypeProfile() *TypeProfile {
	return &TypeProfile{counts: make(map[string]uint64)}
}

func (t *TypeProfile) recordObservation(typeName string) {
	t.counts[typeName]++
	t.totalObservations++
}

// TotalObservations reports how many type observations this profile has
// accumulated.
func (t *TypeProfile) TotalObservations() uint64 { return t.totalObservations }

// TypeFrequency reports how often typeName was observed at this site.
func (t *TypeProfile) TypeFrequency(typeName string) uint64 { return t.counts[typeName] }

// IsMonomorphic reports whether a single type accounts for at least
// threshold of all observations at this site.
func (t *TypeProfile) IsMonomorphic(threshold float64) bool {
	if t.totalObservations == 0 {
		return false
	}
	var max uint64
	for _, c := range t.counts {
		if c > max {
			max = c
		}
	}
	return float64(max)/float64(t.totalObservations) >= threshold
}

// BranchProfile tracks how often a conditional branch at a PC was taken
// versus not taken.
type BranchProfile struct {
	takenCount    uint64
	notTakenCount uint64
}

func newBranchProfile() *BranchProfile { return &BranchProfile{} }

func (b *BranchProfile) recordBranch(taken bool) {
	if taken {
		b.takenCount++
	} else {
		b.notTakenCount++
	}
}

// TotalBranches reports the total number of recorded observations.
func (b *BranchProfile) TotalBranches() uint64 { return b.takenCount + b.notTakenCount }

// TakenCount reports how often the branch was taken.
func (b *BranchProfile) TakenCount() uint64 { return b.takenCount }

// NotTakenCount reports how often the branch was not taken.
func (b *BranchProfile) NotTakenCount() uint64 { return b.notTakenCount }

// TakenPercentage reports the fraction of observations that were taken, in
// [0, 1]; 0 if there are no observations yet.
func (b *BranchProfile) TakenPercentage() float64 {
	total := b.TotalBranches()
	if total == 0 {
		return 0.0
	}
	return float64(b.takenCount) / float64(total)
}

// PredictTaken reports the profiler's best guess for the branch's next
// direction: taken if it has been taken more often than not.
func (b *BranchProfile) PredictTaken() bool { return b.TakenPercentage() > 0.5 }

// ProfiledInstruction records how many times the instruction at a PC has
// executed.
type ProfiledInstruction struct {
	PC              int
	Opcode          vm.Opcode
	ExecutionCount  uint64
}

// HotSpotProfiler observes a VM's execution and accumulates the counters a
// JIT tier would use to decide what to compile. It implements
// vm.Profiler.
type HotSpotProfiler struct {
	mu sync.Mutex

	functionCounts    map[int]uint64
	functionThreshold uint64

	loopCounts    map[int]uint64
	loopThreshold uint64

	typeProfiles   map[int]*TypeProfile
	branchProfiles map[int]*BranchProfile

	instructionProfiles map[int]*ProfiledInstruction

	deoptimizationCounts  map[int]uint32
	deoptimizationReasons map[int][]string

	totalExecutions uint64
}

// New returns a profiler using the default function (1000) and loop
// (10000) hotness thresholds.
func New() *HotSpotProfiler {
	return WithThresholds(defaultFunctionThreshold, defaultLoopThreshold)
}

// WithThresholds returns a profiler using the given hotness thresholds.
func WithThresholds(functionThreshold, loopThreshold uint64) *HotSpotProfiler {
	return &HotSpotProfiler{
		functionCounts:        make(map[int]uint64),
		functionThreshold:     functionThreshold,
		loopCounts:            make(map[int]uint64),
		loopThreshold:         loopThreshold,
		typeProfiles:          make(map[int]*TypeProfile),
		branchProfiles:        make(map[int]*BranchProfile),
		instructionProfiles:   make(map[int]*ProfiledInstruction),
		deoptimizationCounts:  make(map[int]uint32),
		deoptimizationReasons: make(map[int][]string),
	}
}

// RecordFunctionEntry records one call to the function identified by
// functionID.
func (p *HotSpotProfiler) RecordFunctionEntry(functionID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.functionCounts[functionID]++
	p.totalExecutions++
}

// FunctionCount reports how many times functionID has been entered.
func (p *HotSpotProfiler) FunctionCount(functionID int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.functionCounts[functionID]
}

// HotFunctions returns every function id whose entry count has reached the
// configured threshold.
func (p *HotSpotProfiler) HotFunctions() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []int
	for id, count := range p.functionCounts {
		if count >= p.functionThreshold {
			ids = append(ids, id)
		}
	}
	return ids
}

// RecordLoopIteration records one iteration of the loop whose back-edge
// sits at loopPC.
func (p *HotSpotProfiler) RecordLoopIteration(loopPC int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopCounts[loopPC]++
	p.totalExecutions++
}

// LoopCount reports how many iterations have been recorded at loopPC.
func (p *HotSpotProfiler) LoopCount(loopPC int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopCounts[loopPC]
}

// HotLoops returns every loop PC whose iteration count has reached the
// configured threshold.
func (p *HotSpotProfiler) HotLoops() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var pcs []int
	for pc, count := range p.loopCounts {
		if count >= p.loopThreshold {
			pcs = append(pcs, pc)
		}
	}
	return pcs
}

// RecordTypeObservation records that a value of v's type flowed through pc.
func (p *HotSpotProfiler) RecordTypeObservation(pc int, v vm.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.typeProfiles[pc]
	if !ok {
		profile = newTypeProfile()
		p.typeProfiles[pc] = profile
	}
	profile.recordObservation(v.TypeName())
}

// TypeProfile returns the accumulated type profile at pc, if any.
func (p *HotSpotProfiler) TypeProfile(pc int) (*TypeProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.typeProfiles[pc]
	return profile, ok
}

// RecordBranchTaken records one observation of the conditional branch at pc.
func (p *HotSpotProfiler) RecordBranchTaken(pc int, taken bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.branchProfiles[pc]
	if !ok {
		profile = newBranchProfile()
		p.branchProfiles[pc] = profile
	}
	profile.recordBranch(taken)
}

// BranchProfile returns the accumulated branch profile at pc, if any.
func (p *HotSpotProfiler) BranchProfile(pc int) (*BranchProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.branchProfiles[pc]
	return profile, ok
}

// RecordInstructionExecution records one execution of opcode at pc. This is
// the method the VM calls on every non-Halt instruction when profiling is
// enabled, satisfying vm.Profiler.
func (p *HotSpotProfiler) RecordInstructionExecution(pc int, opcode vm.Opcode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.instructionProfiles[pc]
	if !ok {
		profile = &ProfiledInstruction{PC: pc, Opcode: opcode}
		p.instructionProfiles[pc] = profile
	}
	profile.ExecutionCount++
}

// InstructionProfile returns the accumulated instruction profile at pc, if
// any.
func (p *HotSpotProfiler) InstructionProfile(pc int) (ProfiledInstruction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.instructionProfiles[pc]
	if !ok {
		return ProfiledInstruction{}, false
	}
	return *profile, true
}

// HotInstructions returns every profiled instruction whose execution count
// has reached threshold.
func (p *HotSpotProfiler) HotInstructions(threshold uint64) []ProfiledInstruction {
	p.mu.Lock()
	defer p.mu.Unlock()
	var hot []ProfiledInstruction
	for _, profile := range p.instructionProfiles {
		if profile.ExecutionCount >= threshold {
			hot = append(hot, *profile)
		}
	}
	return hot
}

// SuggestedOptimizationLevel maps functionID's call count to an
// OptimizationLevel tier.
func (p *HotSpotProfiler) SuggestedOptimizationLevel(functionID int) OptimizationLevel {
	count := p.FunctionCount(functionID)
	switch {
	case count <= 50:
		return OptimizationNone
	case count <= 500:
		return OptimizationO1
	case count <= 5000:
		return OptimizationO2
	default:
		return OptimizationO3
	}
}

// RecordDeoptimization records that a speculative assumption at pc was
// violated, for the given reason.
func (p *HotSpotProfiler) RecordDeoptimization(pc int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deoptimizationCounts[pc]++
	p.deoptimizationReasons[pc] = append(p.deoptimizationReasons[pc], reason)
}

// DeoptimizationCount reports how many deoptimizations have been recorded
// at pc.
func (p *HotSpotProfiler) DeoptimizationCount(pc int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deoptimizationCounts[pc]
}

// ShouldAvoidOptimization reports whether pc's deoptimization count has
// reached threshold.
func (p *HotSpotProfiler) ShouldAvoidOptimization(pc int, threshold uint32) bool {
	return p.DeoptimizationCount(pc) >= threshold
}

// TotalExecutions reports the combined count of recorded function entries
// and loop iterations.
func (p *HotSpotProfiler) TotalExecutions() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalExecutions
}

// Reset clears every accumulated counter and profile.
func (p *HotSpotProfiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.functionCounts = make(map[int]uint64)
	p.loopCounts = make(map[int]uint64)
	p.typeProfiles = make(map[int]*TypeProfile)
	p.branchProfiles = make(map[int]*BranchProfile)
	p.instructionProfiles = make(map[int]*ProfiledInstruction)
	p.deoptimizationCounts = make(map[int]uint32)
	p.deoptimizationReasons = make(map[int][]string)
	p.totalExecutions = 0
}
