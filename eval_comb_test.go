package svsim

import (
	"testing"

	"svsim/internal/difftest"
)

func resolveTestdata(t *testing.T, name string) (*Cache, *Module) {
	t.Helper()
	c := NewCache()
	m, err := c.Resolve(name, "testdata")
	if err != nil {
		t.Fatalf("Resolve(%q): %v", name, err)
	}
	return c, m
}

func TestEvalComb_signedComparisonUsesTwosComplement(t *testing.T) {
	c, m := resolveTestdata(t, "signed_cmp")
	data := []struct {
		a, b, want uint64
	}{
		{8, 1, 1}, // a=4'sb1000=-8, b=1: -8 < 1
		{1, 8, 0}, // a=1, b=4'sb1000=-8: 1 < -8 is false
	}
	for _, d := range data {
		env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
			"a": NewValue(4, d.a), "b": NewValue(4, d.b),
		}, nil)
		if err != nil {
			t.Fatalf("evalCombFixpoint(a=%d,b=%d): %v", d.a, d.b, err)
		}
		if got := env.Vars["lt"].Bits; got != d.want {
			t.Errorf("signed_cmp.lt(a=%d,b=%d) = %d, want %d", d.a, d.b, got, d.want)
		}
	}
}

func TestEvalComb_nandGate(t *testing.T) {
	c, m := resolveTestdata(t, "nand_gate")
	data := []struct {
		a, b, want uint64
	}{
		{0, 0, 1},
		{0, 1, 1},
		{1, 0, 1},
		{1, 1, 0},
	}
	for _, d := range data {
		env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
			"inA": NewValue(1, d.a), "inB": NewValue(1, d.b),
		}, nil)
		if err != nil {
			t.Fatalf("evalCombFixpoint(a=%d,b=%d): %v", d.a, d.b, err)
		}
		if got := env.Vars["outY"].Bits; got != d.want {
			t.Errorf("nand(%d,%d) = %d, want %d", d.a, d.b, got, d.want)
		}
	}
}

func TestEvalComb_fullAdderInstances(t *testing.T) {
	c, m := resolveTestdata(t, "full_adder")
	env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
		"a": NewValue(1, 1), "b": NewValue(1, 1), "cin": NewValue(1, 1),
	}, nil)
	if err != nil {
		t.Fatalf("evalCombFixpoint: %v", err)
	}
	if env.Vars["sum"].Bits != 1 || env.Vars["cout"].Bits != 1 {
		t.Errorf("full_adder(1,1,1) = sum=%d cout=%d, want sum=1 cout=1", env.Vars["sum"].Bits, env.Vars["cout"].Bits)
	}
}

func TestEvalComb_rippleAdder4BitSelectBindings(t *testing.T) {
	c, m := resolveTestdata(t, "ripple_adder4")
	env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
		"A": NewValue(4, 15), "B": NewValue(4, 1), "Cin": NewValue(1, 0),
	}, nil)
	if err != nil {
		t.Fatalf("evalCombFixpoint: %v", err)
	}
	if env.Vars["Sum"].Bits != 0 || env.Vars["Cout"].Bits != 1 {
		t.Errorf("ripple_adder4(15,1,0) = Sum=%d Cout=%d, want Sum=0 Cout=1", env.Vars["Sum"].Bits, env.Vars["Cout"].Bits)
	}
}

func TestEvalComb_romAsTopLevelModule(t *testing.T) {
	c, m := resolveTestdata(t, "rom_deadbeef")
	want := []uint64{0xDE, 0xAD, 0xBE, 0xEF}
	for addr, w := range want {
		env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
			"addr": NewValue(2, uint64(addr)),
		}, nil)
		if err != nil {
			t.Fatalf("evalCombFixpoint(addr=%d): %v", addr, err)
		}
		if got := env.Vars["data"].Bits; got != w {
			t.Errorf("rom_deadbeef[%d] = %#x, want %#x", addr, got, w)
		}
	}
}

func TestEvalComb_decoderBitFields(t *testing.T) {
	c, m := resolveTestdata(t, "decoder")
	// 0b01_000_101: opcode=01, dest=000, srcimm=101
	env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
		"instr": NewValue(8, 0x45),
	}, nil)
	if err != nil {
		t.Fatalf("evalCombFixpoint: %v", err)
	}
	if env.Vars["opcode"].Bits != 1 || env.Vars["dest"].Bits != 0 || env.Vars["srcimm"].Bits != 5 {
		t.Errorf("decoder(0x45) = opcode=%d dest=%d srcimm=%d, want 1,0,5",
			env.Vars["opcode"].Bits, env.Vars["dest"].Bits, env.Vars["srcimm"].Bits)
	}
}

func TestEvalComb_combinationalCycleDetected(t *testing.T) {
	src := `module cyc(input a, output y);
  assign y = z;
  assign z = y;
endmodule`
	mods, err := NewParser(src, "cyc.sv").ParseFile()
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	c := NewCache()
	_, err = evalCombFixpoint(c, ".", mods[0], map[string]Value{"a": NewValue(1, 0)}, nil)
	if err == nil {
		t.Fatalf("expected a combinational-cycle error")
	}
	svErr, ok := err.(*Error)
	if !ok || svErr.Kind != KindCombinationalCycle {
		t.Errorf("err = %v, want KindCombinationalCycle", err)
	}
}

func TestEvalComb_reevaluationIsDeterministic(t *testing.T) {
	c, m := resolveTestdata(t, "nand_gate")
	diffs, err := difftest.Compare(func() (map[string]Value, error) {
		env, err := evalCombFixpoint(c, "testdata", m, map[string]Value{
			"inA": NewValue(1, 1), "inB": NewValue(1, 0),
		}, nil)
		if err != nil {
			return nil, err
		}
		return env.Vars, nil
	})
	if err != nil {
		t.Fatalf("difftest.Compare: %v", err)
	}
	if len(diffs) != 0 {
		t.Errorf("re-evaluating the same combinational inputs produced different outputs: %v", diffs)
	}
}
