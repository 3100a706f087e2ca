package svsim

// maxFixpointPasses bounds the dataflow worklist (§9's "terminate when a
// full pass adds no binding; this also detects combinational cycles").
// It is generous relative to any module this subset can express.
const maxFixpointPasses = 256

// declaredWidth returns the declared or inferred width of a net or port
// named name, or (0, false) if name is neither.
func declaredWidth(m *Module, name string) (int, bool) {
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

// bindAssign applies value to target within env, honoring the declared
// width of the target net/port when known. Memory-element targets are
// not valid outside always_ff's non-blocking commit (§4.6) and are
// rejected here.
func bindAssign(target Lvalue, v Value, env *Env, m *Module) error {
	switch target.Kind {
	case LvalueWhole:
		if w, ok := declaredWidth(m, target.Name); ok {
			v = NewValue(w, v.Bits)
		}
		env.Vars[target.Name] = v
		return nil

	case LvalueBit, LvalueMemElem:
		if isMemoryName(m, target.Name) {
			return newErr(KindUnsupportedConstruct, Location{}, "memory writes are only valid in always_ff (%q)", target.Name)
		}
		w, _ := declaredWidth(m, target.Name)
		if w == 0 {
			w = 1
		}
		base, ok := env.Vars[target.Name]
		if !ok {
			base = NewValue(w, 0)
		}
		idxV, err := eval(target.BitIndex, env)
		if err != nil {
			return err
		}
		idx := int(idxV.Bits)
		if idx < 0 || idx >= int(base.Width) {
			return newErr(KindIndexOut, Location{}, "bit index %d out of range for %q (%d bits)", idx, target.Name, base.Width)
		}
		bit := v.Bits & 1
		newBits := base.Bits
		if bit != 0 {
			newBits |= 1 << uint(idx)
		} else {
			newBits &^= 1 << uint(idx)
		}
		env.Vars[target.Name] = NewValue(int(base.Width), newBits)
		return nil

	case LvalueRange:
		w, _ := declaredWidth(m, target.Name)
		if w == 0 {
			w = 1
		}
		base, ok := env.Vars[target.Name]
		if !ok {
			base = NewValue(w, 0)
		}
		hiV, err := eval(target.RangeHi, env)
		if err != nil {
			return err
		}
		loV, err := eval(target.RangeLo, env)
		if err != nil {
			return err
		}
		hi, lo := int(hiV.Bits), int(loV.Bits)
		if hi < lo || lo < 0 || hi >= int(base.Width) {
			return newErr(KindIndexOut, Location{}, "range [%d:%d] out of bounds for %q (%d bits)", hi, lo, target.Name, base.Width)
		}
		rangeWidth := hi - lo + 1
		clearMask := mask(rangeWidth) << uint(lo)
		newBits := (base.Bits &^ clearMask) | ((v.Bits & mask(rangeWidth)) << uint(lo))
		env.Vars[target.Name] = NewValue(int(base.Width), newBits)
		return nil
	}
	return newErr(KindUnsupportedConstruct, Location{}, "unsupported lvalue kind")
}

func isMemoryName(m *Module, name string) bool {
	for _, mem := range m.Memories {
		if mem.Name == name {
			return true
		}
	}
	return false
}

// isNotReady reports whether err represents "this statement/block reads
// an identifier not yet bound this pass" — not a real UndefinedIdentifier
// failure until the fixpoint loop exhausts its passes.
func isNotReady(err error) bool {
	if err == nil {
		return false
	}
	if svErr, ok := err.(*Error); ok {
		return svErr.Kind == KindUndefinedIdentifier
	}
	return false
}

// combState threads the mutable bookkeeping of one combinational
// fixpoint evaluation: which instances have already produced outputs,
// and each child's persistent state (for sequential children reached
// from a combinational or sequential parent).
type combState struct {
	cache      *Cache
	instOut    map[string]map[string]Value
	instDone   map[string]bool
	childState func(label string) *InstanceState
}

// evalCombFixpoint runs the §4.5 dataflow fixpoint over m, seeded with
// inputs and, if state is non-nil, the module's current persistent
// registers/memories (per §4.6 step 1's "mixing in the current
// persistent state of this module instance").
func evalCombFixpoint(cache *Cache, dir string, m *Module, inputs map[string]Value, state *InstanceState) (*Env, error) {
	if isRom, _ := cache.romInfo(m); isRom {
		out, err := evalRomInstance(cache, dir, m, inputs)
		if err != nil {
			return nil, err
		}
		env := NewEnv()
		env.Signed = signedVars(m)
		for k, v := range inputs {
			env.Vars[k] = v
		}
		for k, v := range out {
			env.Vars[k] = v
		}
		return env, nil
	}

	env := NewEnv()
	env.Signed = signedVars(m)
	for _, p := range m.Inputs() {
		v, ok := inputs[p.Name]
		if !ok {
			return nil, newErr(KindPortWidthMismatch, m.Loc, "missing binding for input port %q of module %q", p.Name, m.Name)
		}
		if int(v.Width) != p.Width {
			return nil, newErr(KindPortWidthMismatch, m.Loc, "input %q: got %d-bit value, want %d bits", p.Name, v.Width, p.Width)
		}
		env.Vars[p.Name] = v
	}
	if state != nil {
		for k, v := range state.Vars {
			if _, exists := env.Vars[k]; !exists {
				env.Vars[k] = v
			}
		}
		if len(state.Mem) > 0 {
			env.Mem = state.Mem
		}
	}

	cs := &combState{cache: cache, instOut: map[string]map[string]Value{}, instDone: map[string]bool{}}
	if state != nil {
		cs.childState = func(label string) *InstanceState {
			return state.child(label)
		}
	}

	for pass := 0; pass < maxFixpointPasses; pass++ {
		changed := false

		for _, a := range m.Continuous {
			if !fullyBound(a.Expr, env) {
				continue
			}
			// Already-bound whole-signal targets never need recomputation
			// once stable; but re-evaluating is cheap and keeps the loop
			// simple, and the value is idempotent once inputs stabilize.
			v, err := eval(a.Expr, env)
			if err != nil {
				return nil, err
			}
			before, existed := env.Vars[a.Target.Name]
			if err := bindAssign(a.Target, v, env, m); err != nil {
				return nil, err
			}
			after := env.Vars[a.Target.Name]
			if !existed || before.Bits != after.Bits {
				changed = true
			}
		}

		for _, inst := range m.Instances {
			if cs.instDone[inst.Label] {
				continue
			}
			did, err := cs.tryEvalInstance(cache, dir, m, &inst, env)
			if err != nil {
				return nil, err
			}
			if did {
				changed = true
			}
		}

		for _, blk := range m.Procedural {
			if blk.Kind != AlwaysComb {
				continue
			}
			did, err := tryExecBlock(blk, env, m)
			if err != nil {
				return nil, err
			}
			if did {
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	if err := checkOutputsBound(m, env); err != nil {
		return nil, err
	}
	return env, nil
}

func checkOutputsBound(m *Module, env *Env) error {
	for _, p := range m.Outputs() {
		if _, ok := env.Vars[p.Name]; !ok {
			return newErr(KindCombinationalCycle, m.Loc, "output %q of module %q never became bound", p.Name, m.Name)
		}
	}
	return nil
}

// tryEvalInstance attempts to evaluate one child instance if all of its
// input-port bindings are fully bound in the parent env, per §4.5 step 3.
func (cs *combState) tryEvalInstance(cache *Cache, dir string, parent *Module, inst *Instance, env *Env) (bool, error) {
	child, err := cache.Resolve(inst.ModuleName, dir)
	if err != nil {
		return false, err
	}

	inputs := child.Inputs()
	inputVals := map[string]Value{}
	for i, p := range inputs {
		e, ok := lookupBinding(inst, p.Name, i)
		if !ok {
			inputVals[p.Name] = NewValue(p.Width, 0)
			continue
		}
		if !fullyBound(e, env) {
			return false, nil
		}
		v, err := eval(e, env)
		if err != nil {
			return false, err
		}
		inputVals[p.Name] = NewValue(p.Width, v.Bits)
	}

	childDir := dir
	if isRom, _ := cache.romInfo(child); isRom {
		out, err := evalRomInstance(cache, childDir, child, inputVals)
		if err != nil {
			return false, err
		}
		return cs.commitInstanceOutputs(parent, inst, child, out, env)
	}

	var childState *InstanceState
	if cs.childState != nil {
		childState = cs.childState(inst.Label)
	}
	if child.IsSequential() && childState == nil {
		return false, newErr(KindUnsupportedConstruct, inst.Loc, "instance %q of sequential module %q has no persistent state available in this evaluation", inst.Label, inst.ModuleName)
	}
	if childState != nil {
		// Registers the child has not written yet read as zero, exactly as
		// StepSequential initializes them for its own module.
		ensureDefaultState(child, childState)
	}

	// Read-only: this resolves the child's combinational network against
	// its *current* register/memory values (childState, if any) without
	// detecting a clock edge or committing a write. A sequential child's
	// own edge is triggered and committed separately, once per cycle, by
	// StepSequential's stepChildEdges walk — never from here, mid
	// fixpoint-pass, where the parent's own always_ff bodies have not yet
	// read this cycle's pre-edge values (§4.6 step 1).
	cenv, err := evalCombFixpoint(cache, childDir, child, inputVals, childState)
	if err != nil {
		return false, err
	}
	out := map[string]Value{}
	for _, p := range child.Outputs() {
		out[p.Name] = cenv.Vars[p.Name]
	}
	return cs.commitInstanceOutputs(parent, inst, child, out, env)
}

func (cs *combState) commitInstanceOutputs(parent *Module, inst *Instance, child *Module, out map[string]Value, env *Env) (bool, error) {
	for i, p := range child.Outputs() {
		e, ok := lookupBinding(inst, p.Name, len(child.Inputs())+i)
		if !ok {
			continue
		}
		target, err := exprToLvalue(e)
		if err != nil {
			return false, err
		}
		if err := bindAssign(target, out[p.Name], env, parent); err != nil {
			return false, err
		}
	}
	cs.instDone[inst.Label] = true
	cs.instOut[inst.Label] = out
	return true, nil
}

// lookupBinding finds the expression bound to child port name, by either
// its name (named binding form) or its position (positional form).
func lookupBinding(inst *Instance, name string, position int) (Expr, bool) {
	if e, ok := inst.Bindings[name]; ok {
		return e, true
	}
	if e, ok := inst.Bindings[itoa(position)]; ok {
		return e, true
	}
	return Expr{}, false
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

// exprToLvalue converts an output-binding expression (a bare identifier,
// bit-select, or range-select) into an Lvalue so the child's output value
// can be written into the parent's environment.
func exprToLvalue(e Expr) (Lvalue, error) {
	switch e.Kind {
	case ExprIdent:
		return Lvalue{Kind: LvalueWhole, Name: e.Name}, nil
	case ExprBitSelect:
		if e.Base.Kind != ExprIdent {
			return Lvalue{}, newErr(KindUnsupportedConstruct, e.Loc, "unsupported output port binding expression")
		}
		return Lvalue{Kind: LvalueBit, Name: e.Base.Name, BitIndex: *e.Index, AddrExpr: *e.Index}, nil
	case ExprRangeSelect:
		if e.Base.Kind != ExprIdent {
			return Lvalue{}, newErr(KindUnsupportedConstruct, e.Loc, "unsupported output port binding expression")
		}
		return Lvalue{Kind: LvalueRange, Name: e.Base.Name, RangeHi: *e.Hi, RangeLo: *e.Lo}, nil
	}
	return Lvalue{}, newErr(KindUnsupportedConstruct, e.Loc, "output port binding must be a signal, bit-select, or range-select")
}

// evalRomInstance evaluates a ROM primitive as a pure lookup, per §4.6's
// "ROM primitive modules behave as synchronous/combinational lookup
// tables".
func evalRomInstance(cache *Cache, dir string, rom *Module, inputs map[string]Value) (map[string]Value, error) {
	addrPort := rom.Inputs()[0]
	dataPort := rom.Outputs()[0]
	re, err := cache.LoadRom(rom.Name, dir)
	if err != nil {
		return nil, err
	}
	addr := inputs[addrPort.Name]
	return map[string]Value{dataPort.Name: re.Read(addr.Bits)}, nil
}

// tryExecBlock attempts to run an always_comb block if it can complete
// without hitting an unbound identifier; if it hits one, it discards any
// partial writes and reports "not ready yet" (retried on a later pass).
func tryExecBlock(blk *ProceduralBlock, env *Env, m *Module) (bool, error) {
	scratch := &Env{Vars: cloneVars(env.Vars), Mem: env.Mem, Signed: env.Signed}
	before := len(scratch.Vars)
	if err := execStmt(blk.Body, scratch, m, Blocking); err != nil {
		if isNotReady(err) {
			return false, nil
		}
		return false, err
	}
	changed := before != len(scratch.Vars)
	for k, v := range scratch.Vars {
		old, existed := env.Vars[k]
		if !existed || old.Bits != v.Bits {
			changed = true
		}
		env.Vars[k] = v
	}
	return changed, nil
}

func cloneVars(v map[string]Value) map[string]Value {
	out := make(map[string]Value, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// execStmt runs a statement (or nested block) against env for an
// always_comb body (blocking-only per §4.5): every assignment is applied
// to env immediately, whatever its own Kind. defaultKind is only passed
// down to nested statements and does not change how an assignment is
// applied; always_ff bodies run through execFfBody instead.
func execStmt(s *Stmt, env *Env, m *Module, defaultKind AssignKind) error {
	switch s.Kind {
	case StmtBlock:
		for _, sub := range s.Body {
			if err := execStmt(sub, env, m, defaultKind); err != nil {
				return err
			}
		}
		return nil
	case StmtAssign:
		v, err := eval(s.Assign.Expr, env)
		if err != nil {
			return err
		}
		return bindAssign(s.Assign.Target, v, env, m)
	case StmtIf:
		c, err := eval(s.Cond, env)
		if err != nil {
			return err
		}
		if c.Truthy() {
			return execStmt(s.Then, env, m, defaultKind)
		}
		if s.Else != nil {
			return execStmt(s.Else, env, m, defaultKind)
		}
		return nil
	case StmtCase:
		sel, err := eval(s.Selector, env)
		if err != nil {
			return err
		}
		for _, arm := range s.Cases {
			if arm.IsDefault {
				continue
			}
			v, err := eval(arm.Value, env)
			if err != nil {
				return err
			}
			if v.Bits == sel.Bits {
				return execStmt(arm.Body, env, m, defaultKind)
			}
		}
		for _, arm := range s.Cases {
			if arm.IsDefault {
				return execStmt(arm.Body, env, m, defaultKind)
			}
		}
		return nil
	}
	return newErr(KindUnsupportedConstruct, Location{}, "unsupported statement kind")
}
