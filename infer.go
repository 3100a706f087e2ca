package svsim

// runWidthInference is the "explicit inference pass that runs once per
// module load" recommended by the design notes (§9): it widens a net's
// declared width to the width of a continuous-assignment expression that
// feeds it as a whole. The widths of instance ports a net is connected to
// are not consulted. It mutates m.Nets in place.
//
// This is a best-effort static pass: only literal widths, port widths and
// already-resolved net widths are propagated; anything it cannot resolve
// keeps its declared (or default 1-bit) width, and values assigned to
// such a net are truncated to that width by bindAssign.
func runWidthInference(m *Module) {
	declared := map[string]bool{}
	for _, n := range m.Nets {
		declared[n.Name] = true
	}
	widthOfIdent := func(name string) (int, bool) {
		if p := m.PortByName(name); p != nil {
			return p.Width, true
		}
		for _, n := range m.Nets {
			if n.Name == name {
				return n.Width, true
			}
		}
		return 0, false
	}

	changed := true
	for pass := 0; pass < 4 && changed; pass++ {
		changed = false
		for _, a := range m.Continuous {
			if a.Target.Kind != LvalueWhole {
				continue
			}
			w, ok := staticWidth(a.Expr, widthOfIdent)
			if !ok || w <= 1 {
				continue
			}
			for i := range m.Nets {
				if m.Nets[i].Name == a.Target.Name && m.Nets[i].Width < w {
					m.Nets[i].Width = w
					changed = true
				}
			}
		}
	}
}

// staticWidth computes an expression's width using only static
// information (literal widths and already-known identifier widths). It
// mirrors §4.1's width rules but never evaluates values.
func staticWidth(e Expr, lookup func(string) (int, bool)) (int, bool) {
	switch e.Kind {
	case ExprLiteral:
		return int(e.LitValue.Width), true
	case ExprIdent:
		return lookup(e.Name)
	case ExprBitSelect:
		return 1, true
	case ExprRangeSelect:
		return 0, false
	case ExprConcat:
		total := 0
		for _, part := range e.Parts {
			w, ok := staticWidth(part, lookup)
			if !ok {
				return 0, false
			}
			total += w
		}
		return total, true
	case ExprReplicate:
		w, ok := staticWidth(*e.Elem, lookup)
		if !ok {
			return 0, false
		}
		return e.Count * w, true
	case ExprUnary:
		switch e.UnOp {
		case OpNot:
			return staticWidth(*e.X, lookup)
		case OpLogNot, OpReduceAnd, OpReduceOr, OpReduceXor:
			return 1, true
		default:
			return 0, false
		}
	case ExprBinary:
		switch e.BinOp {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLogAnd, OpLogOr:
			return 1, true
		default:
			lw, ok1 := staticWidth(*e.L, lookup)
			rw, ok2 := staticWidth(*e.R, lookup)
			if !ok1 || !ok2 {
				return 0, false
			}
			if lw > rw {
				return lw, true
			}
			return rw, true
		}
	case ExprTernary:
		aw, ok1 := staticWidth(*e.A, lookup)
		bw, ok2 := staticWidth(*e.B, lookup)
		if !ok1 || !ok2 {
			return 0, false
		}
		if aw > bw {
			return aw, true
		}
		return bw, true
	default:
		return 0, false
	}
}
