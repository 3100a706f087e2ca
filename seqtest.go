package svsim

import (
	"encoding/json"
)

// Mismatch is a non-fatal test-assertion failure: data, not an error
// (§7), collected by the driver in step/case order.
type Mismatch struct {
	CaseName  string
	StepIndex int
	Signal    string
	Actual    Value
	Expected  Value
}

// CombTestCase is one entry of a combinational test-case array (§6).
type CombTestCase struct {
	Inputs map[string]int64 `json:"-"`
	Expect map[string]int64 `json:"expect"`
}

// UnmarshalJSON accepts the flat shape §6 describes: an input-name to
// integer map plus a sibling "expect" key, rather than a nested object.
func (c *CombTestCase) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Inputs = map[string]int64{}
	for k, v := range raw {
		if k == "expect" {
			var exp map[string]int64
			if err := json.Unmarshal(v, &exp); err != nil {
				return err
			}
			c.Expect = exp
			continue
		}
		var n int64
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		c.Inputs[k] = n
	}
	return nil
}

// SequentialStep is one `{ "inputs": {...}, "expected": {...} }` entry of
// a sequential test case's sequence (§6). Missing inputs default to zero;
// missing expected outputs are not checked.
type SequentialStep struct {
	Inputs   map[string]int64 `json:"inputs"`
	Expected map[string]int64 `json:"expected"`
}

// SequentialTestCase is one named sequence of steps (§6).
type SequentialTestCase struct {
	Name     string           `json:"name"`
	Sequence []SequentialStep `json:"sequence"`
}

// MemoryFileBinding preloads a named memory array in a named module
// instance from a data file, for RAM/ROM initialization (§6).
type MemoryFileBinding struct {
	Module string `json:"module"`
	Memory string `json:"memory"`
	File   string `json:"file"`
}

// SequentialTestSpec is the top-level sequential test-case document (§6).
type SequentialTestSpec struct {
	Sequential   bool                `json:"sequential"`
	MemoryFiles  []MemoryFileBinding `json:"memory_files"`
	TestCases    []SequentialTestCase `json:"test_cases"`
}

// ParseCombTestCases decodes a combinational test-case JSON array.
func ParseCombTestCases(data []byte) ([]CombTestCase, error) {
	var cases []CombTestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, wrapErr(KindSyntaxError, Location{}, err, "parsing combinational test cases")
	}
	return cases, nil
}

// ParseSequentialTestSpec decodes a sequential test-case JSON document.
func ParseSequentialTestSpec(data []byte) (*SequentialTestSpec, error) {
	var spec SequentialTestSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, wrapErr(KindSyntaxError, Location{}, err, "parsing sequential test spec")
	}
	return &spec, nil
}

// RunCombinationalTests evaluates m once per case and diffs its outputs
// against each case's "expect" map, per §2 item 7 / §7.
func RunCombinationalTests(cache *Cache, dir string, m *Module, cases []CombTestCase) (mismatches []Mismatch, passed int, err error) {
	for i, tc := range cases {
		inputs := map[string]Value{}
		for _, p := range m.Inputs() {
			n, ok := tc.Inputs[p.Name]
			if !ok {
				n = 0
			}
			inputs[p.Name] = NewValue(p.Width, uint64(n))
		}
		env, err := evalCombFixpoint(cache, dir, m, inputs, nil)
		if err != nil {
			return nil, passed, err
		}
		ok := true
		for name, want := range tc.Expect {
			got, exists := env.Vars[name]
			p := m.PortByName(name)
			width := 32
			if p != nil {
				width = p.Width
			}
			wantV := NewValue(width, uint64(want))
			if !exists || got.Bits != wantV.Bits {
				mismatches = append(mismatches, Mismatch{
					CaseName: caseLabel(i), StepIndex: i, Signal: name,
					Actual: got, Expected: wantV,
				})
				ok = false
			}
		}
		if ok {
			passed++
		}
	}
	return mismatches, passed, nil
}

func caseLabel(i int) string {
	return "case_" + itoa(i)
}

// RunSequentialTests preloads any memory_files bindings, then steps m
// through each test case's sequence from a fresh InstanceState, diffing
// expected outputs at each step (§2 item 8 / §6 / §7).
func RunSequentialTests(cache *Cache, dir string, m *Module, spec *SequentialTestSpec) (mismatches []Mismatch, passed int, err error) {
	for _, tc := range spec.TestCases {
		state := NewInstanceState()
		if err := preloadMemoryFiles(cache, dir, m, state, spec.MemoryFiles); err != nil {
			return nil, passed, err
		}
		ok := true
		for stepIdx, step := range tc.Sequence {
			inputs := map[string]Value{}
			for _, p := range m.Inputs() {
				n, has := step.Inputs[p.Name]
				if !has {
					n = 0
				}
				inputs[p.Name] = NewValue(p.Width, uint64(n))
			}
			out, err := StepSequential(cache, dir, m, inputs, state)
			if err != nil {
				return nil, passed, err
			}
			for name, want := range step.Expected {
				p := m.PortByName(name)
				width := 32
				if p != nil {
					width = p.Width
				}
				wantV := NewValue(width, uint64(want))
				got, exists := out[name]
				if !exists || got.Bits != wantV.Bits {
					mismatches = append(mismatches, Mismatch{
						CaseName: tc.Name, StepIndex: stepIdx, Signal: name,
						Actual: got, Expected: wantV,
					})
					ok = false
				}
			}
		}
		if ok {
			passed++
		}
	}
	return mismatches, passed, nil
}

// preloadMemoryFiles applies memory_files bindings into the appropriate
// instance state. "module" is matched first against the top module's own
// name (applies to state directly), then against the module names of
// child instances, walking the instance tree breadth-first and taking the
// first match, since the JSON contract names a
// module rather than a full hierarchical instance path (§6's open
// question about memory-file targeting, resolved in DESIGN.md).
func preloadMemoryFiles(cache *Cache, dir string, top *Module, state *InstanceState, bindings []MemoryFileBinding) error {
	for _, b := range bindings {
		target, targetMod, err := findMemoryTarget(cache, dir, top, state, b.Module)
		if err != nil {
			return err
		}
		var elemWidth, depth int
		for _, mm := range targetMod.Memories {
			if mm.Name == b.Memory {
				elemWidth, depth = mm.ElementWidth, mm.Depth
			}
		}
		if depth == 0 {
			continue
		}
		re, err := parseRomFile(b.File, 0, elemWidth)
		if err != nil {
			return wrapErr(KindRomDataMissing, Location{File: b.File}, err, "loading memory file for %q.%q", b.Module, b.Memory)
		}
		arr := make([]Value, depth)
		for i := range arr {
			arr[i] = re.Read(uint64(i))
		}
		target.Mem[b.Memory] = arr
	}
	return nil
}

// findMemoryTarget locates the InstanceState and Module AST that own the
// named module in the instance tree rooted at top.
func findMemoryTarget(cache *Cache, dir string, top *Module, state *InstanceState, moduleName string) (*InstanceState, *Module, error) {
	if top.Name == moduleName {
		return state, top, nil
	}
	type frame struct {
		m   *Module
		dir string
		st  *InstanceState
	}
	queue := []frame{{top, dir, state}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, inst := range f.m.Instances {
			child, err := cache.Resolve(inst.ModuleName, f.dir)
			if err != nil {
				return nil, nil, err
			}
			childState := f.st.child(inst.Label)
			if child.Name == moduleName {
				return childState, child, nil
			}
			queue = append(queue, frame{child, f.dir, childState})
		}
	}
	return nil, nil, newErr(KindModuleNotFound, Location{Module: moduleName}, "no instance of module %q found under %q for memory_files binding", moduleName, top.Name)
}
