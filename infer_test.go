package svsim

import "testing"

func TestRunWidthInference_widensUnderdeclaredNet(t *testing.T) {
	src := `module m(input [7:0] a, input [7:0] b, output [7:0] y);
  wire sum;
  assign sum = a + b;
  assign y = sum;
endmodule`
	mods, err := NewParser(src, "m.sv").ParseFile()
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	m := mods[0]
	runWidthInference(m)
	for _, n := range m.Nets {
		if n.Name == "sum" && n.Width != 8 {
			t.Errorf("sum net width = %d, want 8 (inferred from a+b)", n.Width)
		}
	}
}

func TestStaticWidth_comparisonIsAlwaysOneBit(t *testing.T) {
	e := Expr{Kind: ExprBinary, BinOp: OpLt,
		L: &Expr{Kind: ExprLiteral, LitValue: NewValue(8, 1)},
		R: &Expr{Kind: ExprLiteral, LitValue: NewValue(8, 2)},
	}
	w, ok := staticWidth(e, func(string) (int, bool) { return 0, false })
	if !ok || w != 1 {
		t.Errorf("staticWidth(a<b) = (%d,%v), want (1,true)", w, ok)
	}
}

func TestStaticWidth_unaryReductionsAreAlwaysOneBit(t *testing.T) {
	operand := Expr{Kind: ExprLiteral, LitValue: NewValue(8, 0xff)}
	reducing := []UnOp{OpLogNot, OpReduceAnd, OpReduceOr, OpReduceXor}
	for _, op := range reducing {
		e := Expr{Kind: ExprUnary, UnOp: op, X: &operand}
		w, ok := staticWidth(e, func(string) (int, bool) { return 0, false })
		if !ok || w != 1 {
			t.Errorf("staticWidth(unary %v on 8-bit operand) = (%d,%v), want (1,true)", op, w, ok)
		}
	}

	notExpr := Expr{Kind: ExprUnary, UnOp: OpNot, X: &operand}
	w, ok := staticWidth(notExpr, func(string) (int, bool) { return 0, false })
	if !ok || w != 8 {
		t.Errorf("staticWidth(~a) = (%d,%v), want (8,true) — width-preserving unlike the reductions", w, ok)
	}
}
