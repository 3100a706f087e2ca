package svsim

import "testing"

func stepClk(t *testing.T, c *Cache, m *Module, state *InstanceState, clk uint64, extras map[string]int64) map[string]Value {
	t.Helper()
	inputs := map[string]Value{}
	for _, p := range m.Inputs() {
		if p.Name == "clk" {
			inputs[p.Name] = NewValue(p.Width, clk)
			continue
		}
		n := extras[p.Name]
		inputs[p.Name] = NewValue(p.Width, uint64(n))
	}
	out, err := StepSequential(c, "testdata", m, inputs, state)
	if err != nil {
		t.Fatalf("StepSequential: %v", err)
	}
	return out
}

func TestStepSequential_pcRegResetAndIncrement(t *testing.T) {
	c, m := resolveTestdata(t, "pc_reg")
	state := NewInstanceState()

	stepClk(t, c, m, state, 0, map[string]int64{"reset": 1})
	out := stepClk(t, c, m, state, 1, map[string]int64{"reset": 1})
	if out["pc"].Bits != 0 {
		t.Fatalf("after reset edge, pc = %d, want 0", out["pc"].Bits)
	}

	stepClk(t, c, m, state, 0, map[string]int64{"reset": 0})
	out = stepClk(t, c, m, state, 1, map[string]int64{"reset": 0})
	if out["pc"].Bits != 1 {
		t.Fatalf("after first increment edge, pc = %d, want 1", out["pc"].Bits)
	}
}

func TestStepSequential_counter8EnableAndReset(t *testing.T) {
	c, m := resolveTestdata(t, "counter8")
	state := NewInstanceState()

	stepClk(t, c, m, state, 0, map[string]int64{"reset": 1, "enable": 0})
	out := stepClk(t, c, m, state, 1, map[string]int64{"reset": 1, "enable": 0})
	if out["count"].Bits != 0 {
		t.Fatalf("after reset edge, count = %d, want 0", out["count"].Bits)
	}

	for want := uint64(1); want <= 4; want++ {
		stepClk(t, c, m, state, 0, map[string]int64{"reset": 0, "enable": 1})
		out = stepClk(t, c, m, state, 1, map[string]int64{"reset": 0, "enable": 1})
		if out["count"].Bits != want {
			t.Fatalf("count after %d enabled edges = %d, want %d", want, out["count"].Bits, want)
		}
	}

	// no clock transition (clk stays 1): count must not advance again.
	out = stepClk(t, c, m, state, 1, map[string]int64{"reset": 0, "enable": 1})
	if out["count"].Bits != 4 {
		t.Fatalf("count with no rising edge = %d, want unchanged at 4", out["count"].Bits)
	}
}

func TestStepSequential_nonBlockingOrderIndependence(t *testing.T) {
	// Two always_ff blocks swap `a` and `b` non-blockingly, each reading
	// the register the other writes; if either write leaked into the
	// other's read, the swap would be wrong regardless of textual order.
	src := `module swap(input clk, output reg [3:0] a, output reg [3:0] b);
  always_ff @(posedge clk) begin
    a <= b;
  end
  always_ff @(posedge clk) begin
    b <= a;
  end
endmodule`
	mods, err := NewParser(src, "swap.sv").ParseFile()
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	m := mods[0]
	c := NewCache()
	state := NewInstanceState()
	state.Vars["a"] = NewValue(4, 3)
	state.Vars["b"] = NewValue(4, 9)

	out, err := StepSequential(c, ".", m, map[string]Value{"clk": NewValue(1, 0)}, state)
	if err != nil {
		t.Fatalf("StepSequential (settle): %v", err)
	}
	_ = out
	out, err = StepSequential(c, ".", m, map[string]Value{"clk": NewValue(1, 1)}, state)
	if err != nil {
		t.Fatalf("StepSequential (edge): %v", err)
	}
	if out["a"].Bits != 9 || out["b"].Bits != 3 {
		t.Errorf("swap: a=%d b=%d, want a=9 b=3 regardless of block order", out["a"].Bits, out["b"].Bits)
	}
}

func TestStepSequential_memoryElementReadWrite(t *testing.T) {
	src := `module ram(input clk, input we, input [2:0] addr, input [7:0] wdata, output [7:0] rdata);
  reg [7:0] cells [7:0];
  assign rdata = cells[addr];
  always_ff @(posedge clk) begin
    if (we)
      cells[addr] <= wdata;
  end
endmodule`
	mods, err := NewParser(src, "ram.sv").ParseFile()
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	m := mods[0]
	c := NewCache()
	state := NewInstanceState()

	in := func(clk, we, addr, wdata uint64) map[string]Value {
		return map[string]Value{
			"clk": NewValue(1, clk), "we": NewValue(1, we),
			"addr": NewValue(3, addr), "wdata": NewValue(8, wdata),
		}
	}
	if _, err := StepSequential(c, ".", m, in(0, 1, 3, 42), state); err != nil {
		t.Fatalf("StepSequential: %v", err)
	}
	if _, err := StepSequential(c, ".", m, in(1, 1, 3, 42), state); err != nil {
		t.Fatalf("StepSequential: %v", err)
	}
	out, err := StepSequential(c, ".", m, in(0, 0, 3, 0), state)
	if err != nil {
		t.Fatalf("StepSequential: %v", err)
	}
	if out["rdata"].Bits != 42 {
		t.Errorf("rdata after write to cells[3] = %d, want 42", out["rdata"].Bits)
	}
}

func TestStepSequential_cpuProgramLoadsAndAdds(t *testing.T) {
	c, m := resolveTestdata(t, "cpu")
	state := NewInstanceState()

	edges := []struct {
		reset uint64
	}{
		{1}, // reset edge
		{0}, // LOADI R0, #5
		{0}, // MOV R1, R0
		{0}, // ADD R3 = R1 + R2
	}
	var out map[string]Value
	for _, e := range edges {
		stepClk(t, c, m, state, 0, map[string]int64{"reset": int64(e.reset), "in_port": 0})
		out = stepClk(t, c, m, state, 1, map[string]int64{"reset": int64(e.reset), "in_port": 0})
	}
	if out["R3_out"].Bits != 5 {
		t.Errorf("R3_out after the 3-instruction program = %d, want 5", out["R3_out"].Bits)
	}
}
