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

package profiler

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformedProfileData is returned by ImportJSON when data does not
// parse into the expected document shape. The profiler's existing state is
// left untouched when this is returned.
var ErrMalformedProfileData = errors.New("profiler: malformed profile data")

// ExportJSON serializes the profiler's function counts, loop counts, type
// profiles, and branch profiles into the document shape described by the
// PC-as-string-keyed `function_counts`, `loop_counts`, `type_profiles`, and
// `branch_profiles` top-level fields. It is built field-by-field with
// sjson rather than through a mirrored exported struct, since the internal
// maps are keyed by int and sjson accepts arbitrary path segments directly.
func (p *HotSpotProfiler) ExportJSON() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := "{}"
	var err error

	doc, err = sjson.SetRaw(doc, "function_counts", "{}")
	if err != nil {
		return "", errors.Wrap(err, "profiler: export function_counts")
	}
	for pc, count := range p.functionCounts {
		doc, err = sjson.Set(doc, "function_counts."+strconv.Itoa(pc), count)
		if err != nil {
			return "", errors.Wrap(err, "profiler: export function_counts")
		}
	}

	doc, err = sjson.SetRaw(doc, "loop_counts", "{}")
	if err != nil {
		return "", errors.Wrap(err, "profiler: export loop_counts")
	}
	for pc, count := range p.loopCounts {
		doc, err = sjson.Set(doc, "loop_counts."+strconv.Itoa(pc), count)
		if err != nil {
			return "", errors.Wrap(err, "profiler: export loop_counts")
		}
	}

	doc, err = sjson.SetRaw(doc, "type_profiles", "{}")
	if err != nil {
		return "", errors.Wrap(err, "profiler: export type_profiles")
	}
	for pc, profile := range p.typeProfiles {
		key := "type_profiles." + strconv.Itoa(pc)
		doc, err = sjson.Set(doc, key, profile.counts)
		if err != nil {
			return "", errors.Wrap(err, "profiler: export type_profiles")
		}
	}

	doc, err = sjson.SetRaw(doc, "branch_profiles", "{}")
	if err != nil {
		return "", errors.Wrap(err, "profiler: export branch_profiles")
	}
	for pc, profile := range p.branchProfiles {
		key := "branch_profiles." + strconv.Itoa(pc)
		doc, err = sjson.Set(doc, key, []uint64{profile.takenCount, profile.notTakenCount})
		if err != nil {
			return "", errors.Wrap(err, "profiler: export branch_profiles")
		}
	}

	return doc, nil
}

// ImportJSON parses data with gjson and replaces the profiler's function
// counts, loop counts, type profiles, and branch profiles. Parsing and
// validation happen against local variables first; the profiler's state is
// only mutated once the full document has been validated, so a malformed
// document never leaves the profiler partially overwritten.
func (p *HotSpotProfiler) ImportJSON(data string) error {
	if !gjson.Valid(data) {
		return ErrMalformedProfileData
	}
	root := gjson.Parse(data)

	functionCounts := make(map[int]uint64)
	var parseErr error
	root.Get("function_counts").ForEach(func(key, value gjson.Result) bool {
		pc, err := strconv.Atoi(key.String())
		if err != nil {
			parseErr = errors.Wrap(ErrMalformedProfileData, "function_counts key "+key.String())
			return false
		}
		functionCounts[pc] = uint64(value.Int())
		return true
	})
	if parseErr != nil {
		return parseErr
	}

	loopCounts := make(map[int]uint64)
	root.Get("loop_counts").ForEach(func(key, value gjson.Result) bool {
		pc, err := strconv.Atoi(key.String())
		if err != nil {
			parseErr = errors.Wrap(ErrMalformedProfileData, "loop_counts key "+key.String())
			return false
		}
		loopCounts[pc] = uint64(value.Int())
		return true
	})
	if parseErr != nil {
		return parseErr
	}

	typeProfiles := make(map[int]*TypeProfile)
	root.Get("type_profiles").ForEach(func(pcKey, typeCounts gjson.Result) bool {
		pc, err := strconv.Atoi(pcKey.String())
		if err != nil {
			parseErr = errors.Wrap(ErrMalformedProfileData, "type_profiles key "+pcKey.String())
			return false
		}
		profile := newTypeProfile()
		typeCounts.ForEach(func(typeName, count gjson.Result) bool {
			profile.counts[typeName.String()] = uint64(count.Int())
			profile.totalObservations += uint64(count.Int())
			return true
		})
		typeProfiles[pc] = profile
		return true
	})
	if parseErr != nil {
		return parseErr
	}

	branchProfiles := make(map[int]*BranchProfile)
	root.Get("branch_profiles").ForEach(func(pcKey, pair gjson.Result) bool {
		pc, err := strconv.Atoi(pcKey.String())
		if err != nil {
			parseErr = errors.Wrap(ErrMalformedProfileData, "branch_profiles key "+pcKey.String())
			return false
		}
		counts := pair.Array()
		if len(counts) != 2 {
			parseErr = errors.Wrap(ErrMalformedProfileData, "branch_profiles entry shape")
			return false
		}
		branchProfiles[pc] = &BranchProfile{
			takenCount:    uint64(counts[0].Int()),
			notTakenCount: uint64(counts[1].Int()),
		}
		return true
	})
	if parseErr != nil {
		return parseErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.functionCounts = functionCounts
	p.loopCounts = loopCounts
	p.typeProfiles = typeProfiles
	p.branchProfiles = branchProfiles

	return nil
}
