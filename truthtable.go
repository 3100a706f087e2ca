package svsim

// TruthTableRow is one enumerated input/output combination.
type TruthTableRow struct {
	Inputs  map[string]Value
	Outputs map[string]Value
}

// DefaultMaxCombinations bounds truth-table enumeration for modules with
// wide inputs, mirroring pysvsim.py's TruthTableGenerator max_combinations
// guard so a 32-bit adder input doesn't attempt 2^32 rows.
const DefaultMaxCombinations = 1 << 16

// TruthTable enumerates every input combination (bounded by
// maxCombinations) of a combinational module and evaluates its outputs
// for each, per §2 item 7. A module with zero inputs enumerates to
// exactly one row (§8's boundary behavior). Truncated reports how many
// combinations were skipped once the bound was reached; for an input
// space larger than the largest int it is counted as if the space had
// exactly that size.
func TruthTable(cache *Cache, dir string, m *Module, maxCombinations int) (rows []TruthTableRow, truncated int, err error) {
	if m.IsSequential() {
		return nil, 0, newErr(KindUnsupportedConstruct, m.Loc, "module %q is sequential; use the sequential test facade", m.Name)
	}
	if maxCombinations <= 0 {
		maxCombinations = DefaultMaxCombinations
	}
	inputs := m.Inputs()

	// total is the size of the input space, saturated at the largest int.
	maxInt := int(^uint(0) >> 1)
	total := 1
	for _, p := range inputs {
		if total > maxInt>>uint(p.Width) {
			total = maxInt
			break
		}
		total <<= uint(p.Width)
	}

	produced := 0
	var walk func(i int, cur map[string]Value) error
	walk = func(i int, cur map[string]Value) error {
		if produced >= maxCombinations {
			return nil
		}
		if i == len(inputs) {
			env, err := evalCombFixpoint(cache, dir, m, cur, nil)
			if err != nil {
				return err
			}
			outVals := map[string]Value{}
			for _, p := range m.Outputs() {
				outVals[p.Name] = env.Vars[p.Name]
			}
			inCopy := make(map[string]Value, len(cur))
			for k, v := range cur {
				inCopy[k] = v
			}
			rows = append(rows, TruthTableRow{Inputs: inCopy, Outputs: outVals})
			produced++
			return nil
		}
		p := inputs[i]
		for v := uint64(0); v < uint64(1)<<uint(p.Width); v++ {
			cur[p.Name] = NewValue(p.Width, v)
			if err := walk(i+1, cur); err != nil {
				return err
			}
			if produced >= maxCombinations {
				return nil
			}
		}
		return nil
	}

	if err := walk(0, map[string]Value{}); err != nil {
		return nil, 0, err
	}
	truncated = total - produced
	return rows, truncated, nil
}
