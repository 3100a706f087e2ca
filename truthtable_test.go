package svsim

import "testing"

func TestTruthTable_nandGateEnumeratesAllFour(t *testing.T) {
	c, m := resolveTestdata(t, "nand_gate")
	rows, truncated, err := TruthTable(c, "testdata", m, DefaultMaxCombinations)
	if err != nil {
		t.Fatalf("TruthTable: %v", err)
	}
	if truncated != 0 {
		t.Fatalf("truncated = %d, want 0", truncated)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	for _, row := range rows {
		a, b := row.Inputs["inA"].Bits, row.Inputs["inB"].Bits
		want := uint64(1)
		if a == 1 && b == 1 {
			want = 0
		}
		if got := row.Outputs["outY"].Bits; got != want {
			t.Errorf("nand(%d,%d) = %d, want %d", a, b, got, want)
		}
	}
}

func TestTruthTable_zeroInputModuleEnumeratesOneRow(t *testing.T) {
	src := `module tied(output y);
  assign y = 1'b1;
endmodule`
	mods, err := NewParser(src, "tied.sv").ParseFile()
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	c := NewCache()
	rows, truncated, err := TruthTable(c, ".", mods[0], DefaultMaxCombinations)
	if err != nil {
		t.Fatalf("TruthTable: %v", err)
	}
	if truncated != 0 {
		t.Errorf("truncated = %d, want 0", truncated)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want exactly 1 for a zero-input module", len(rows))
	}
	if rows[0].Outputs["y"].Bits != 1 {
		t.Errorf("y = %d, want 1", rows[0].Outputs["y"].Bits)
	}
}

func TestTruthTable_rejectsSequentialModules(t *testing.T) {
	c, m := resolveTestdata(t, "counter8")
	_, _, err := TruthTable(c, "testdata", m, DefaultMaxCombinations)
	if err == nil {
		t.Fatalf("expected an error enumerating a sequential module")
	}
	svErr, ok := err.(*Error)
	if !ok || svErr.Kind != KindUnsupportedConstruct {
		t.Errorf("err = %v, want KindUnsupportedConstruct", err)
	}
}

func TestTruthTable_boundsRowCount(t *testing.T) {
	c, m := resolveTestdata(t, "nand_gate")
	rows, _, err := TruthTable(c, "testdata", m, 2)
	if err != nil {
		t.Fatalf("TruthTable: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want the bound of 2 even though the full space has 4", len(rows))
	}
}
