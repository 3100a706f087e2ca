package svsim

import "testing"

func parseOneModule(t *testing.T, src string) *Module {
	t.Helper()
	mods, err := NewParser(src, "test.sv").ParseFile()
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(mods) != 1 {
		t.Fatalf("ParseFile: got %d modules, want 1", len(mods))
	}
	return mods[0]
}

func TestParseModule_ansiPorts(t *testing.T) {
	src := `module nand_gate(input inA, input inB, output outY);
  assign outY = ~(inA & inB);
endmodule`
	m := parseOneModule(t, src)
	if m.Name != "nand_gate" {
		t.Errorf("Name = %q, want nand_gate", m.Name)
	}
	if len(m.Ports) != 3 {
		t.Fatalf("got %d ports, want 3", len(m.Ports))
	}
	if len(m.Continuous) != 1 {
		t.Fatalf("got %d continuous assigns, want 1", len(m.Continuous))
	}
	out := m.PortByName("outY")
	if out == nil || out.Direction != Output || out.Width != 1 {
		t.Errorf("outY port = %+v, want output width 1", out)
	}
}

func TestParseModule_widthRange(t *testing.T) {
	src := `module w(input [7:0] a, output [7:0] b);
  assign b = a;
endmodule`
	m := parseOneModule(t, src)
	a := m.PortByName("a")
	if a == nil || a.Width != 8 {
		t.Fatalf("port a = %+v, want width 8", a)
	}
}

func TestParseModule_nonAnsiPorts(t *testing.T) {
	src := `module g(a, b, y);
  input a;
  input b;
  output y;
  assign y = a & b;
endmodule`
	m := parseOneModule(t, src)
	if len(m.Ports) != 3 {
		t.Fatalf("got %d ports, want 3", len(m.Ports))
	}
	y := m.PortByName("y")
	if y == nil || y.Direction != Output {
		t.Fatalf("port y = %+v, want output", y)
	}
}

func TestParseModule_memoryDecl(t *testing.T) {
	src := `module m(input clk, output [7:0] q);
  reg [7:0] regs [7:0];
  assign q = regs[0];
endmodule`
	m := parseOneModule(t, src)
	if len(m.Memories) != 1 {
		t.Fatalf("got %d memories, want 1", len(m.Memories))
	}
	mem := m.Memories[0]
	if mem.Name != "regs" || mem.ElementWidth != 8 || mem.Depth != 8 {
		t.Errorf("memory = %+v, want regs[8] of width 8", mem)
	}
}

func TestParseModule_instanceBindings(t *testing.T) {
	src := `module top(input a, input b, output y);
  half_adder ha1(.a(a), .b(b), .sum(y));
endmodule`
	m := parseOneModule(t, src)
	if len(m.Instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(m.Instances))
	}
	inst := m.Instances[0]
	if inst.ModuleName != "half_adder" || inst.Label != "ha1" {
		t.Errorf("instance = %+v", inst)
	}
	if _, ok := inst.Bindings["sum"]; !ok {
		t.Errorf("bindings = %v, want a %q key", inst.Bindings, "sum")
	}
}

func TestParsePortDisjoint_rejectsDuplicateDirection(t *testing.T) {
	src := `module bad(input a, output a);
  assign a = a;
endmodule`
	_, err := NewParser(src, "bad.sv").ParseFile()
	if err == nil {
		t.Fatalf("expected an error for a port declared as both input and output")
	}
}

func TestParseExpr_precedence(t *testing.T) {
	// a | b & c should parse as a | (b & c): AND binds tighter than OR.
	src := `module m(input a, input b, input c, output y);
  assign y = a | b & c;
endmodule`
	m := parseOneModule(t, src)
	e := m.Continuous[0].Expr
	if e.Kind != ExprBinary || e.BinOp != OpOr {
		t.Fatalf("top-level op = %v, want OpOr", e.BinOp)
	}
	if e.R.Kind != ExprBinary || e.R.BinOp != OpAnd {
		t.Fatalf("right operand = %v, want an AND", e.R)
	}
}

func TestParseExpr_ternaryRightAssociative(t *testing.T) {
	src := `module m(input a, input b, input c, input d, output y);
  assign y = a ? b : c ? 1'b0 : d;
endmodule`
	m := parseOneModule(t, src)
	e := m.Continuous[0].Expr
	if e.Kind != ExprTernary {
		t.Fatalf("top-level = %v, want a ternary", e.Kind)
	}
	if e.B.Kind != ExprTernary {
		t.Fatalf("else-branch = %v, want a nested ternary (right-associative)", e.B.Kind)
	}
}

func TestParseExpr_concatAndReplicate(t *testing.T) {
	src := `module m(input a, input [3:0] b, output [7:0] y);
  assign y = { {4{a}}, b };
endmodule`
	m := parseOneModule(t, src)
	e := m.Continuous[0].Expr
	if e.Kind != ExprConcat || len(e.Parts) != 2 {
		t.Fatalf("expr = %+v, want a 2-part concat", e)
	}
	if e.Parts[0].Kind != ExprReplicate || e.Parts[0].Count != 4 {
		t.Fatalf("first part = %+v, want {4{a}}", e.Parts[0])
	}
}

func TestParseAlwaysFf_requiresPosedge(t *testing.T) {
	src := `module m(input clk, output reg [7:0] q);
  always_ff @(posedge clk) begin
    q <= q;
  end
endmodule`
	m := parseOneModule(t, src)
	if len(m.Procedural) != 1 {
		t.Fatalf("got %d procedural blocks, want 1", len(m.Procedural))
	}
	blk := m.Procedural[0]
	if blk.Kind != AlwaysFf || blk.Clock != "clk" || blk.Edge != PosEdge {
		t.Errorf("block = %+v, want always_ff on posedge clk", blk)
	}
}

func TestParseCaseStmt_withDefault(t *testing.T) {
	src := `module m(input [1:0] sel, output reg [7:0] y);
  always_comb begin
    case (sel)
      2'd0: y = 8'd1;
      default: y = 8'd0;
    endcase
  end
endmodule`
	m := parseOneModule(t, src)
	blk := m.Procedural[0].Body
	if len(blk.Body) != 1 || blk.Body[0].Kind != StmtCase {
		t.Fatalf("body = %+v, want a single case statement", blk.Body)
	}
	arms := blk.Body[0].Cases
	if len(arms) != 2 || !arms[1].IsDefault {
		t.Fatalf("arms = %+v, want 2 arms with the last as default", arms)
	}
}

func TestParseLvalue_bitSelectAmbiguity(t *testing.T) {
	// name[expr] on the left of an assignment always parses to LvalueBit;
	// bit-select vs. memory-element is disambiguated later, at eval time.
	src := `module m(input clk, output reg [7:0] q);
  always_ff @(posedge clk) begin
    q[0] <= 1'b1;
  end
endmodule`
	m := parseOneModule(t, src)
	assign := m.Procedural[0].Body.Body[0].Assign
	if assign.Target.Kind != LvalueBit || assign.Target.Name != "q" {
		t.Errorf("target = %+v, want a bit-select lvalue on q", assign.Target)
	}
}
