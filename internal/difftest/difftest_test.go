package difftest

import "testing"

func TestCompareMaps_identical(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"x": 1, "y": 2}
	if diffs := CompareMaps(a, b); len(diffs) != 0 {
		t.Errorf("CompareMaps(identical) = %v, want none", diffs)
	}
}

func TestCompareMaps_valueMismatch(t *testing.T) {
	a := map[string]int{"x": 1}
	b := map[string]int{"x": 2}
	diffs := CompareMaps(a, b)
	if len(diffs) != 1 || diffs[0].Signal != "x" {
		t.Fatalf("CompareMaps(mismatch) = %v, want one diff on x", diffs)
	}
	if diffs[0].A != 1 || diffs[0].B != 2 {
		t.Errorf("diff = %+v, want A=1 B=2", diffs[0])
	}
}

func TestCompareMaps_missingKey(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"x": 1}
	diffs := CompareMaps(a, b)
	if len(diffs) != 1 || diffs[0].Signal != "y" {
		t.Fatalf("CompareMaps(missing) = %v, want one diff on y", diffs)
	}
}

func TestCompare_deterministicFunctionHasNoDiffs(t *testing.T) {
	diffs, err := Compare(func() (map[string]int, error) {
		return map[string]int{"a": 42}, nil
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(diffs) != 0 {
		t.Errorf("Compare(deterministic) = %v, want none", diffs)
	}
}

func TestDiff_string(t *testing.T) {
	d := Diff{Signal: "q", A: 1, B: 2}
	if got, want := d.String(), "q: 1 != 2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
